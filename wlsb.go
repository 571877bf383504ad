package rohc

import "github.com/pkg/errors"

// Window-based Least Significant Bits encoding, RFC 3095 section 4.5.1/4.5.2.
//
// The compressor side keeps a sliding window of recently transmitted values;
// the number of LSBs sent must let the peer decode against any reference
// still plausible on its side, so the window maximum over per-reference
// widths is used.  The decompressor side keeps a single reference, the last
// correctly decoded value.

var errLSBDecodeFailure = errors.New("rohc: no value in LSB interpretation interval")

// p-offsets per field class.  RFC 3095 section 4.5.1 and the RFC 4815
// corrections.
func pSN(k uint) int32 {
	if k <= 4 {
		return 1
	}
	return 1<<(k-5) - 1
}

func pTS(k uint) int32 {
	if k < 2 {
		return 0
	}
	return 1<<(k-2) - 1
}

func pIPID(uint) int32 { return 0 }

type pFunc func(k uint) int32

// lsbDecode16 resolves k received bits against ref over a 16-bit field.
// The interpretation interval is [ref-p, ref-p+2^k-1] modulo 2^16.
func lsbDecode16(bits uint16, k uint, ref uint16, p pFunc) (uint16, error) {
	if k == 0 {
		return ref, nil
	}
	if k >= 16 {
		return bits, nil
	}
	mask := uint16(1)<<k - 1
	if bits > mask {
		return 0, errLSBDecodeFailure
	}
	base := ref - uint16(p(k))
	return base + ((bits - base) & mask), nil
}

func lsbDecode32(bits uint32, k uint, ref uint32, p pFunc) (uint32, error) {
	if k == 0 {
		return ref, nil
	}
	if k >= 32 {
		return bits, nil
	}
	mask := uint32(1)<<k - 1
	if bits > mask {
		return 0, errLSBDecodeFailure
	}
	base := ref - uint32(p(k))
	return base + ((bits - base) & mask), nil
}

// lsbWidth16 returns the minimum k that decodes value against the single
// reference ref.
func lsbWidth16(value, ref uint16, p pFunc) uint {
	for k := uint(1); k < 16; k++ {
		got, err := lsbDecode16(value&(1<<k-1), k, ref, p)
		if err == nil && got == value {
			return k
		}
	}
	return 16
}

func lsbWidth32(value, ref uint32, p pFunc) uint {
	for k := uint(1); k < 32; k++ {
		got, err := lsbDecode32(value&(1<<k-1), k, ref, p)
		if err == nil && got == value {
			return k
		}
	}
	return 32
}

// wlsbEntry pairs a transmitted value with the SN of the packet that carried
// it, so acknowledgements can retire window entries.
type wlsbEntry struct {
	sn    uint16
	value uint32
}

// wlsb is the compressor-side window.  Storage is a fixed ring; pushing into
// a full window drops the oldest entry, so that reference no longer counts
// toward the chosen k (which can then only stay the same or shrink).
type wlsb struct {
	entries []wlsbEntry
	head    int
	count   int
	bits    uint // field width, 16 or 32
	p       pFunc
}

func newWLSB(width int, bits uint, p pFunc) *wlsb {
	if width < 2 {
		width = 2
	}
	return &wlsb{
		entries: make([]wlsbEntry, width),
		bits:    bits,
		p:       p,
	}
}

func (w *wlsb) reset() {
	w.head = 0
	w.count = 0
}

func (w *wlsb) empty() bool { return w.count == 0 }

// push records a value about to be transmitted under sequence number sn.
func (w *wlsb) push(sn uint16, value uint32) {
	idx := (w.head + w.count) % len(w.entries)
	w.entries[idx] = wlsbEntry{sn: sn, value: value}
	if w.count < len(w.entries) {
		w.count++
	} else {
		w.head = (w.head + 1) % len(w.entries)
	}
}

// width returns the minimum number of LSBs that decode value against every
// reference still in the window.  An empty window demands the full field.
func (w *wlsb) width(value uint32) uint {
	if w.count == 0 {
		return w.bits
	}
	var k uint = 1
	for i := 0; i < w.count; i++ {
		e := w.entries[(w.head+i)%len(w.entries)]
		var need uint
		if w.bits == 16 {
			need = lsbWidth16(uint16(value), uint16(e.value), w.p)
		} else {
			need = lsbWidth32(value, e.value, w.p)
		}
		if need > k {
			k = need
		}
	}
	return k
}

// allEqual reports whether every window entry holds exactly v, i.e. the
// field is inferable at the peer no matter which reference it kept.
func (w *wlsb) allEqual(v uint32) bool {
	if w.count == 0 {
		return false
	}
	for i := 0; i < w.count; i++ {
		if w.entries[(w.head+i)%len(w.entries)].value != v {
			return false
		}
	}
	return true
}

// predicts reports whether v equals ref.value + (sn - ref.sn) for every
// window entry: the linear inference UO-0 relies on for the scaled TS.
func (w *wlsb) predicts(sn uint16, v uint32) bool {
	if w.count == 0 {
		return false
	}
	for i := 0; i < w.count; i++ {
		e := w.entries[(w.head+i)%len(w.entries)]
		if v != e.value+uint32(int32(_sndiff16(sn, e.sn))) {
			return false
		}
	}
	return true
}

// trim drops the oldest entries beyond n.  U/O-mode compressors call it
// after the optimistic number of transmissions: the peer is presumed to hold
// one of the last n references, so older ones stop widening k.
func (w *wlsb) trim(n int) {
	if n < 1 {
		n = 1
	}
	for w.count > n {
		w.head = (w.head + 1) % len(w.entries)
		w.count--
	}
}

// ack retires every entry older than sn.  The acked entry itself survives:
// it is the reference the peer now holds.
func (w *wlsb) ack(sn uint16) {
	for w.count > 1 {
		e := w.entries[w.head]
		if _sndiff16(sn, e.sn) <= 0 {
			break
		}
		w.head = (w.head + 1) % len(w.entries)
		w.count--
	}
}
