package rohc

import "github.com/pkg/errors"

// Self-Describing Variable-Length values, RFC 3095 section 4.5.6.
// The one to three leading bits discriminate the encoded width:
//
//	0xxxxxxx                            7 bits, 1 octet
//	10xxxxxx xxxxxxxx                  14 bits, 2 octets
//	110xxxxx xxxxxxxx xxxxxxxx         21 bits, 3 octets
//	111xxxxx xxxxxxxx xxxxxxxx xxxxxxxx  29 bits, 4 octets

const (
	sdvlMax1 = 1<<7 - 1
	sdvlMax2 = 1<<14 - 1
	sdvlMax3 = 1<<21 - 1
	sdvlMax4 = 1<<29 - 1
)

var errSDVLOverflow = errors.New("sdvl: value exceeds 29 bits")

// sdvlLen returns the number of octets sdvlAppend will use for v.
func sdvlLen(v uint32) int {
	switch {
	case v <= sdvlMax1:
		return 1
	case v <= sdvlMax2:
		return 2
	case v <= sdvlMax3:
		return 3
	default:
		return 4
	}
}

// sdvlAppend encodes v in the shortest self-describing form.
func sdvlAppend(dst []byte, v uint32) ([]byte, error) {
	switch {
	case v <= sdvlMax1:
		return append(dst, byte(v)), nil
	case v <= sdvlMax2:
		return append(dst, 0x80|byte(v>>8), byte(v)), nil
	case v <= sdvlMax3:
		return append(dst, 0xc0|byte(v>>16), byte(v>>8), byte(v)), nil
	case v <= sdvlMax4:
		return append(dst, 0xe0|byte(v>>24), byte(v>>16), byte(v>>8), byte(v)), nil
	}
	return dst, errSDVLOverflow
}

// sdvlRead decodes one self-describing value from the cursor.
func sdvlRead(cur *cursor) (uint32, error) {
	b0, err := cur.readByte()
	if err != nil {
		return 0, err
	}
	switch {
	case b0&0x80 == 0:
		return uint32(b0), nil
	case b0&0xc0 == 0x80:
		b1, err := cur.readByte()
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x3f)<<8 | uint32(b1), nil
	case b0&0xe0 == 0xc0:
		rest, err := cur.read(2)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x1f)<<16 | uint32(rest[0])<<8 | uint32(rest[1]), nil
	default:
		rest, err := cur.read(3)
		if err != nil {
			return 0, err
		}
		return uint32(b0&0x1f)<<24 | uint32(rest[0])<<16 | uint32(rest[1])<<8 | uint32(rest[2]), nil
	}
}
