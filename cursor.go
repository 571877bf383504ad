package rohc

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

var errPacketTooShort = errors.New("rohc: packet too short")

// cursor is a bounded reader over a received packet.  Every read is a checked
// advance; underflow surfaces as errPacketTooShort and maps to
// StatusMalformed at the API boundary.
type cursor struct {
	buf []byte
	pos int
}

func newCursor(buf []byte) *cursor {
	return &cursor{buf: buf}
}

func (c *cursor) remaining() int { return len(c.buf) - c.pos }

func (c *cursor) offset() int { return c.pos }

// rest returns the unread tail without consuming it.
func (c *cursor) rest() []byte { return c.buf[c.pos:] }

func (c *cursor) skip(n int) error {
	if c.remaining() < n {
		return errPacketTooShort
	}
	c.pos += n
	return nil
}

func (c *cursor) peekByte() (byte, error) {
	if c.remaining() < 1 {
		return 0, errPacketTooShort
	}
	return c.buf[c.pos], nil
}

func (c *cursor) readByte() (byte, error) {
	if c.remaining() < 1 {
		return 0, errPacketTooShort
	}
	b := c.buf[c.pos]
	c.pos++
	return b, nil
}

func (c *cursor) read(n int) ([]byte, error) {
	if c.remaining() < n {
		return nil, errPacketTooShort
	}
	out := c.buf[c.pos : c.pos+n]
	c.pos += n
	return out, nil
}

func (c *cursor) readUint16() (uint16, error) {
	b, err := c.read(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (c *cursor) readUint32() (uint32, error) {
	b, err := c.read(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}
