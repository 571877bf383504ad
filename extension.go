package rohc

// Extensions to UO-1-ID and UOR-2 packets, RFC 3095 section 5.7.5.
//
// EXT-0/1/2 widen the SN and IP-ID/TS fields by a few bits; EXT-3 is the
// flag-driven variable layout that repairs arbitrary dynamic-field changes
// without a full IR-DYN.

const (
	extDiscMask = 0xc0
	extType0    = 0x00
	extType1    = 0x40
	extType2    = 0x80
	extType3    = 0xc0
)

// ext3 carries the decoded (or to-be-encoded) content of an EXT-3.
// Zero value means "nothing present".
type ext3 struct {
	s   bool // 8 extra SN MSBs
	rts bool // TS field present (SDVL)
	tsc bool // TS is scaled
	i   bool // inner IP-ID present verbatim
	ip  bool // inner IP header flags/fields octets present
	rtp bool // RTP flags/fields octet present

	sn uint8  // SN MSBs
	ts uint32 // SDVL-decoded TS (scaled or unscaled per tsc)

	inner ext3IPFlags
	ip2   bool // outer IP header flags/fields present
	outer ext3IPFlags

	// RTP flags octet
	mode     byte
	ptSet    bool
	pt       byte
	mSet     bool
	m        bool
	tsStride uint32
	tssSet   bool
}

// ext3IPFlags mirrors the inner/outer IP header flags octet and the fields
// it announces.
type ext3IPFlags struct {
	tosSet bool
	ttlSet bool
	prSet  bool
	df     bool
	nbo    bool
	rnd    bool

	tos byte
	ttl byte
	pr  byte

	// IP-ID: announced by I2 in the outer flags octet; for the inner header
	// by the I flag of the EXT-3 flags octet
	ipidSet bool
	ipid    uint16
}

func (f *ext3IPFlags) any() bool {
	return f.tosSet || f.ttlSet || f.prSet
}

func (f *ext3IPFlags) flagsOctet(ip2 bool) byte {
	var b byte
	if f.tosSet {
		b |= 0x80
	}
	if f.ttlSet {
		b |= 0x40
	}
	if f.df {
		b |= 0x20
	}
	if f.prSet {
		b |= 0x10
	}
	if f.nbo {
		b |= 0x04
	}
	if f.rnd {
		b |= 0x02
	}
	if ip2 { // inner octet: ip2 continuation; outer octet: I2
		b |= 0x01
	}
	return b
}

func (f *ext3IPFlags) setFromOctet(b byte) (cont bool) {
	f.tosSet = b&0x80 != 0
	f.ttlSet = b&0x40 != 0
	f.df = b&0x20 != 0
	f.prSet = b&0x10 != 0
	f.nbo = b&0x04 != 0
	f.rnd = b&0x02 != 0
	return b&0x01 != 0
}

func (f *ext3IPFlags) appendFields(dst []byte) []byte {
	if f.tosSet {
		dst = append(dst, f.tos)
	}
	if f.ttlSet {
		dst = append(dst, f.ttl)
	}
	if f.prSet {
		dst = append(dst, f.pr)
	}
	return dst
}

func (f *ext3IPFlags) readFields(cur *cursor) error {
	var err error
	if f.tosSet {
		if f.tos, err = cur.readByte(); err != nil {
			return err
		}
	}
	if f.ttlSet {
		if f.ttl, err = cur.readByte(); err != nil {
			return err
		}
	}
	if f.prSet {
		if f.pr, err = cur.readByte(); err != nil {
			return err
		}
	}
	return nil
}

// appendExt0 emits `00 SN(3) +T(3)`.
func appendExt0(dst []byte, sn byte, t byte) []byte {
	return append(dst, extType0|sn<<3&0x38|t&0x07)
}

// appendExt1 emits `01 SN(3) +T(3)` then `-T(8)`.
func appendExt1(dst []byte, sn byte, t byte, minusT byte) []byte {
	return append(dst, extType1|sn<<3&0x38|t&0x07, minusT)
}

// appendExt2 emits `10 SN(3) +T(3)` then `+T(8)` `-T(8)`; +T gets 11 bits.
func appendExt2(dst []byte, sn byte, t uint16, minusT byte) []byte {
	return append(dst, extType2|sn<<3&0x38|byte(t>>8)&0x07, byte(t), minusT)
}

// appendExt3 serializes an EXT-3 with the minimum set of sub-chains.
func appendExt3(dst []byte, e *ext3) ([]byte, error) {
	var flags byte = extType3
	if e.s {
		flags |= 0x20
	}
	if e.rts {
		flags |= 0x10
	}
	if e.tsc {
		flags |= 0x08
	}
	if e.i {
		flags |= 0x04
	}
	e.ip = e.ip || e.inner.any() || e.ip2
	if e.ip {
		flags |= 0x02
	}
	if e.rtp {
		flags |= 0x01
	}
	dst = append(dst, flags)

	if e.ip {
		dst = append(dst, e.inner.flagsOctet(e.ip2))
	}
	if e.ip2 {
		dst = append(dst, e.outer.flagsOctet(e.outer.ipidSet))
	}
	if e.s {
		dst = append(dst, e.sn)
	}
	if e.rts {
		var err error
		if dst, err = sdvlAppend(dst, e.ts); err != nil {
			return nil, err
		}
	}
	if e.ip {
		dst = e.inner.appendFields(dst)
	}
	if e.i {
		dst = append(dst, byte(e.inner.ipid>>8), byte(e.inner.ipid))
	}
	if e.ip2 {
		dst = e.outer.appendFields(dst)
		if e.outer.ipidSet {
			dst = append(dst, byte(e.outer.ipid>>8), byte(e.outer.ipid))
		}
	}
	if e.rtp {
		var rf byte = e.mode << 6
		if e.ptSet {
			rf |= 0x20
		}
		if e.mSet && e.m {
			rf |= 0x10
		}
		if e.tssSet {
			rf |= 0x02
		}
		dst = append(dst, rf)
		if e.ptSet {
			dst = append(dst, e.pt&0x7f)
		}
		if e.tssSet {
			var err error
			if dst, err = sdvlAppend(dst, e.tsStride); err != nil {
				return nil, err
			}
		}
	}
	return dst, nil
}

// readExtension parses whichever extension follows, returning its type.
// For EXT-0/1/2 no ext3 is returned: the SN bits, the +T bits and the -T
// octet come back as the separate snBits, tBits and minusT results.
func readExtension(cur *cursor) (typ byte, e *ext3, snBits byte, tBits uint16, minusT byte, err error) {
	b, err := cur.readByte()
	if err != nil {
		return 0, nil, 0, 0, 0, err
	}
	typ = b & extDiscMask
	switch typ {
	case extType0:
		return typ, nil, b >> 3 & 0x07, uint16(b & 0x07), 0, nil
	case extType1:
		mt, err := cur.readByte()
		if err != nil {
			return 0, nil, 0, 0, 0, err
		}
		return typ, nil, b >> 3 & 0x07, uint16(b & 0x07), mt, nil
	case extType2:
		rest, err := cur.read(2)
		if err != nil {
			return 0, nil, 0, 0, 0, err
		}
		return typ, nil, b >> 3 & 0x07, uint16(b&0x07)<<8 | uint16(rest[0]), rest[1], nil
	}

	e = &ext3{}
	e.s = b&0x20 != 0
	e.rts = b&0x10 != 0
	e.tsc = b&0x08 != 0
	e.i = b&0x04 != 0
	e.ip = b&0x02 != 0
	e.rtp = b&0x01 != 0

	if e.ip {
		fb, err := cur.readByte()
		if err != nil {
			return typ, nil, 0, 0, 0, err
		}
		e.ip2 = e.inner.setFromOctet(fb)
	}
	outerHasID := false
	if e.ip2 {
		fb, err := cur.readByte()
		if err != nil {
			return typ, nil, 0, 0, 0, err
		}
		outerHasID = e.outer.setFromOctet(fb)
	}
	if e.s {
		if e.sn, err = cur.readByte(); err != nil {
			return typ, nil, 0, 0, 0, err
		}
	}
	if e.rts {
		if e.ts, err = sdvlRead(cur); err != nil {
			return typ, nil, 0, 0, 0, err
		}
	}
	if e.ip {
		if err = e.inner.readFields(cur); err != nil {
			return typ, nil, 0, 0, 0, err
		}
	}
	if e.i {
		id, err := cur.readUint16()
		if err != nil {
			return typ, nil, 0, 0, 0, err
		}
		e.inner.ipidSet = true
		e.inner.ipid = id
	}
	if e.ip2 {
		if err = e.outer.readFields(cur); err != nil {
			return typ, nil, 0, 0, 0, err
		}
		if outerHasID {
			id, err := cur.readUint16()
			if err != nil {
				return typ, nil, 0, 0, 0, err
			}
			e.outer.ipidSet = true
			e.outer.ipid = id
		}
	}
	if e.rtp {
		rf, err := cur.readByte()
		if err != nil {
			return typ, nil, 0, 0, 0, err
		}
		e.mode = rf >> 6
		e.ptSet = rf&0x20 != 0
		e.mSet = true
		e.m = rf&0x10 != 0
		e.tssSet = rf&0x02 != 0
		if e.ptSet {
			if e.pt, err = cur.readByte(); err != nil {
				return typ, nil, 0, 0, 0, err
			}
		}
		if e.tssSet {
			if e.tsStride, err = sdvlRead(cur); err != nil {
				return typ, nil, 0, 0, 0, err
			}
		}
	}
	return typ, e, 0, 0, 0, nil
}
