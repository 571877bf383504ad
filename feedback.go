package rohc

import "github.com/pkg/errors"

// Feedback encoding, RFC 3095 section 5.2.2 and 5.7.6.
//
// A feedback element is a "1111 0 Code" octet, an optional Size octet when
// Code is zero, then the feedback data: an optional Add-CID (small CIDs) or
// SDVL CID (large CIDs) followed by FEEDBACK-1 or FEEDBACK-2.

// FEEDBACK-2 acknowledgement types
const (
	fbAck        = 0
	fbNack       = 1
	fbStaticNack = 2
)

// FEEDBACK-2 option types
const (
	fbOptCRC        = 1
	fbOptReject     = 2
	fbOptSNNotValid = 3
	fbOptSN         = 4
	fbOptClock      = 5
	fbOptJitter     = 6
	fbOptLoss       = 7
	fbOptContextMem = 9
)

var errFeedbackMalformed = errors.New("rohc: malformed feedback")

// feedback is the parsed form of one feedback element.
type feedback struct {
	cid     int
	small   bool // FEEDBACK-1
	ackType byte // FEEDBACK-2 only
	mode    byte
	sn      uint16 // 8 bits for FEEDBACK-1, 12 bits (+SN option) for FEEDBACK-2
	snValid bool
	reject  bool
	ctxMem  bool
	loss    byte
}

// appendFeedback1 emits an implicit ACK carrying the SN low octet.
func appendFeedback1(dst []byte, cid int, largeCID bool, sn uint16) []byte {
	data := feedbackData(cid, largeCID, []byte{byte(sn)})
	return appendFeedbackEnvelope(dst, data)
}

// appendFeedback2 emits an ACK/NACK/STATIC-NACK with a 12-bit SN and
// options.  withCRC protects the element with a CRC-8 option as R-mode
// requires.
func appendFeedback2(dst []byte, cid int, largeCID bool, ackType, mode byte, sn uint16, withCRC bool) []byte {
	// 12-bit SN field holds the MSBs, an SN option carries the low octet so
	// the full 16 bits travel
	body := []byte{
		ackType<<6 | mode<<4, // SN field MSBs beyond 16 bits are always zero
		byte(sn >> 8),
		fbOptSN<<4 | 1, byte(sn),
	}
	if withCRC {
		body = append(body, fbOptCRC<<4|1, 0)
		data := feedbackData(cid, largeCID, body)
		crc := crc8(data, crc8Init)
		data[len(data)-1] = crc
		return appendFeedbackEnvelope(dst, data)
	}
	return appendFeedbackEnvelope(dst, feedbackData(cid, largeCID, body))
}

func feedbackData(cid int, largeCID bool, body []byte) []byte {
	var data []byte
	if largeCID {
		data, _ = sdvlAppend(data, uint32(cid))
	} else {
		data = appendCIDPrefix(data, cid)
	}
	return append(data, body...)
}

func appendFeedbackEnvelope(dst, data []byte) []byte {
	if len(data) < 8 {
		dst = append(dst, typeFeedback|byte(len(data)))
	} else {
		dst = append(dst, typeFeedback, byte(len(data)))
	}
	return append(dst, data...)
}

// readFeedback parses one feedback element, cursor positioned at the
// "1111 0 Code" octet.
func readFeedback(cur *cursor, largeCID bool) (*feedback, error) {
	b, err := cur.readByte()
	if err != nil {
		return nil, err
	}
	if !isFeedback(b) {
		return nil, errFeedbackMalformed
	}
	size := int(b & 0x07)
	if size == 0 {
		s, err := cur.readByte()
		if err != nil {
			return nil, err
		}
		size = int(s)
	}
	raw, err := cur.read(size)
	if err != nil {
		return nil, err
	}
	return parseFeedbackData(raw, largeCID)
}

func parseFeedbackData(raw []byte, largeCID bool) (*feedback, error) {
	fb := &feedback{}
	cur := newCursor(raw)

	if largeCID {
		v, err := sdvlRead(cur)
		if err != nil {
			return nil, errFeedbackMalformed
		}
		fb.cid = int(v)
	} else {
		b, err := cur.peekByte()
		if err != nil {
			return nil, errFeedbackMalformed
		}
		if isAddCID(b) {
			fb.cid = int(b & 0x0f)
			cur.skip(1)
		}
	}

	switch cur.remaining() {
	case 0:
		return nil, errFeedbackMalformed
	case 1:
		b, _ := cur.readByte()
		fb.small = true
		fb.ackType = fbAck
		fb.sn = uint16(b)
		fb.snValid = true
		return fb, nil
	}

	b0, _ := cur.readByte()
	b1, _ := cur.readByte()
	fb.ackType = b0 >> 6
	fb.mode = b0 >> 4 & 0x03
	fb.sn = uint16(b0&0x0f)<<8 | uint16(b1)
	fb.snValid = true

	// options; a CRC or SN option of the wrong length is skipped and parsing
	// goes on, while a truncated option or a CRC mismatch rejects the element
	for cur.remaining() > 0 {
		opt, err := cur.readByte()
		if err != nil {
			break
		}
		typ, olen := opt>>4, int(opt&0x0f)
		data, err := cur.read(olen)
		if err != nil {
			return nil, errFeedbackMalformed
		}
		switch typ {
		case fbOptCRC:
			if olen != 1 {
				continue
			}
			// verify over the element with the CRC octet zeroed
			idx := len(raw) - cur.remaining() - 1
			got := data[0]
			raw[idx] = 0
			want := crc8(raw, crc8Init)
			raw[idx] = got
			if got != want {
				return nil, errFeedbackMalformed
			}
		case fbOptSN:
			if olen != 1 {
				continue
			}
			fb.sn = fb.sn<<8 | uint16(data[0])
		case fbOptSNNotValid:
			fb.snValid = false
		case fbOptReject:
			fb.reject = true
		case fbOptContextMem:
			fb.ctxMem = true
		case fbOptLoss:
			if olen == 1 {
				fb.loss = data[0]
			}
		case fbOptClock, fbOptJitter:
			// informational, tolerated and ignored
		default:
			Logf(DEBUG, "feedback: unknown option %d ignored", typ)
		}
	}
	return fb, nil
}
