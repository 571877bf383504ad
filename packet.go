package rohc

// ROHC channel framing, RFC 3095 section 5.2.
//
// A ROHC packet is zero or more padding octets, zero or more feedback
// elements, an optional Add-CID octet (small CIDs) and the packet type octet.
// With large CIDs the CID travels SDVL-encoded directly after the type octet.

// packet type classes after CID resolution
type pktClass int

const (
	pktUO0 pktClass = iota
	pktUO1
	pktUOR2
	pktIR
	pktIRDYN
	pktSegment
	pktUnknown
)

func classify(typeOctet byte) pktClass {
	switch {
	case typeOctet&typeUO0Mask == 0:
		return pktUO0
	case typeOctet&typeUO1Mask == typeUO1:
		return pktUO1
	case typeOctet&typeUOR2Mask == typeUOR2:
		return pktUOR2
	case typeOctet&typeIRMask == typeIR:
		return pktIR
	case typeOctet == typeIRDYN:
		return pktIRDYN
	case typeOctet&typeSegmentMask == typeSegment:
		return pktSegment
	}
	return pktUnknown
}

func isPadding(b byte) bool  { return b == typePadding }
func isAddCID(b byte) bool   { return b&typeAddCIDMask == typeAddCID && b != typePadding }
func isFeedback(b byte) bool { return b&0xf8 == typeFeedback }

// appendCIDPrefix writes the small-CID Add-CID octet when needed.  CID 0 has
// no prefix.
func appendCIDPrefix(dst []byte, cid int) []byte {
	if cid == 0 {
		return dst
	}
	return append(dst, typeAddCID|byte(cid&0x0f))
}

// readPrelude consumes padding and resolves the CID, leaving the cursor on
// the first octet after the type octet (and after a large CID field).  It
// returns the CID and the type octet.
func readPrelude(cur *cursor, largeCID bool) (cid int, typeOctet byte, err error) {
	for {
		b, err := cur.peekByte()
		if err != nil {
			return 0, 0, err
		}
		if !isPadding(b) {
			break
		}
		cur.skip(1)
	}

	b, err := cur.readByte()
	if err != nil {
		return 0, 0, err
	}

	if !largeCID {
		if isAddCID(b) {
			cid = int(b & 0x0f)
			b, err = cur.readByte()
			if err != nil {
				return 0, 0, err
			}
		}
		return cid, b, nil
	}

	// large CID channel: CID follows the type octet, except for padding-only
	// and feedback handled by the caller
	v, err := sdvlRead(cur)
	if err != nil {
		return 0, 0, err
	}
	if v > ROHC_MAX_CID_LARGE {
		return 0, 0, errPacketTooShort
	}
	return int(v), b, nil
}
