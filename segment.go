package rohc

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/pkg/errors"
)

// Segmentation, RFC 3095 section 5.2.5.  A ROHC packet larger than the link
// can carry is split into segments `1111 111F` (F marks the final one); the
// reassembled unit ends with a 4-octet FCS over everything before it.
// Segments are channel-level: one unit is in flight at a time and an
// interleaved non-segment packet discards the partial unit at the receiver.

const segmentFCSLen = 4

var errSegmentTooLarge = errors.New("rohc: packet exceeds MRRU")

// Segment splits an already compressed packet into MTU-sized segments.
// Callers use it when Compress output exceeds the link MTU; MRRU bounds the
// reassembled unit including the FCS.
func (c *Compressor) Segment(pkt []byte, mtu int) ([][]byte, error) {
	if c.cfg.MRRU == 0 {
		return nil, errors.New("rohc: segmentation disabled (MRRU 0)")
	}
	if len(pkt)+segmentFCSLen > c.cfg.MRRU {
		return nil, errSegmentTooLarge
	}
	if mtu < 2 {
		return nil, errors.New("rohc: mtu too small to segment")
	}

	var fcs [segmentFCSLen]byte
	binary.BigEndian.PutUint32(fcs[:], segmentFCS(pkt))
	unit := make([]byte, 0, len(pkt)+segmentFCSLen)
	unit = append(unit, pkt...)
	unit = append(unit, fcs[:]...)

	chunk := mtu - 1
	var segs [][]byte
	for off := 0; off < len(unit); off += chunk {
		end := off + chunk
		final := false
		if end >= len(unit) {
			end = len(unit)
			final = true
		}
		hdr := byte(typeSegment)
		if final {
			hdr |= 0x01
		}
		seg := make([]byte, 0, 1+end-off)
		seg = append(seg, hdr)
		seg = append(seg, unit[off:end]...)
		segs = append(segs, seg)
	}
	return segs, nil
}

// reassembler accumulates one in-flight segmented unit per channel.
type reassembler struct {
	buf     []byte
	partial bool
}

func (r *reassembler) reset() {
	r.buf = r.buf[:0]
	r.partial = false
}

// feed consumes one segment from the cursor.  It returns the reassembled
// unit with StatusOK on the final segment, StatusSegment while the unit is
// incomplete, and discards on any error.
func (r *reassembler) feed(cur *cursor, mrru int) ([]byte, Status) {
	b, err := cur.readByte()
	if err != nil {
		return nil, StatusMalformed
	}
	atomic.AddUint64(&DefaultSnmp.SegmentsReceived, 1)
	if mrru == 0 {
		atomic.AddUint64(&DefaultSnmp.SegmentsDiscarded, 1)
		return nil, StatusMalformed
	}

	r.buf = append(r.buf, cur.rest()...)
	r.partial = true
	if len(r.buf) > mrru {
		r.reset()
		atomic.AddUint64(&DefaultSnmp.SegmentsDiscarded, 1)
		return nil, StatusMalformed
	}

	if b&0x01 == 0 {
		return nil, StatusSegment
	}

	// final: verify the trailing FCS
	if len(r.buf) < segmentFCSLen {
		r.reset()
		atomic.AddUint64(&DefaultSnmp.SegmentsDiscarded, 1)
		return nil, StatusMalformed
	}
	unit := r.buf[:len(r.buf)-segmentFCSLen]
	want := binary.BigEndian.Uint32(r.buf[len(r.buf)-segmentFCSLen:])
	if segmentFCS(unit) != want {
		r.reset()
		atomic.AddUint64(&DefaultSnmp.SegmentsDiscarded, 1)
		atomic.AddUint64(&DefaultSnmp.CRCFailures, 1)
		return nil, StatusCRCFailure
	}

	out := make([]byte, len(unit))
	copy(out, unit)
	r.reset()
	atomic.AddUint64(&DefaultSnmp.SegmentsReassembled, 1)
	return out, StatusOK
}
