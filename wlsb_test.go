package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLSBDecodeWraparound(t *testing.T) {
	// spec case: ref 0xFFFE, 4 bits of value 0x0001
	got, err := lsbDecode16(0x1, 4, 0xfffe, pSN)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0001), got)
}

func TestLSBRoundTripSweep(t *testing.T) {
	// every value inside the interpretation interval must survive
	// encode/decode for each k
	for _, ref := range []uint16{0, 1, 100, 0x7fff, 0xfffe, 0xffff} {
		for k := uint(1); k <= 8; k++ {
			base := ref - uint16(pSN(k))
			for off := uint16(0); off < 1<<k; off++ {
				v := base + off
				got, err := lsbDecode16(v&(1<<k-1), k, ref, pSN)
				require.NoError(t, err)
				require.Equal(t, v, got, "ref=%#x k=%d off=%d", ref, k, off)
			}
		}
	}
}

func TestLSBWidthMinimal(t *testing.T) {
	// SN one ahead of the reference: interval [41,44] at k=2 with p=1
	assert.Equal(t, uint(2), lsbWidth16(43, 42, pSN))
	// a jump of 200 needs at least 8 bits (p=7 at k=8)
	assert.Greater(t, lsbWidth16(242, 42, pSN), uint(7))
}

func TestWLSBWindowWidens(t *testing.T) {
	w := newWLSB(4, 16, pSN)
	w.push(10, 10)
	w.push(11, 11)
	w.push(12, 12)
	// value 13 must decode against the oldest reference 10 as well
	k := w.width(13)
	got, err := lsbDecode16(13&(1<<k-1), k, 10, pSN)
	require.NoError(t, err)
	assert.Equal(t, uint16(13), got)
}

func TestWLSBAckShrinksWindow(t *testing.T) {
	w := newWLSB(8, 16, pSN)
	for sn := uint16(0); sn < 6; sn++ {
		w.push(sn, uint32(sn))
	}
	before := w.width(6)
	w.ack(5)
	after := w.width(6)
	assert.LessOrEqual(t, after, before)
	assert.Equal(t, uint(2), after, "after ack(5) two bits suffice for 6")
}

func TestWLSBEmptyWindowFullWidth(t *testing.T) {
	w := newWLSB(4, 16, pSN)
	assert.Equal(t, uint(16), w.width(1234))
}

func TestWLSBOverflowKeepsDecodable(t *testing.T) {
	w := newWLSB(4, 16, pSN)
	for sn := uint16(0); sn < 40; sn++ {
		w.push(sn, uint32(sn))
	}
	// only the last 4 entries remain; 40 is near all of them
	assert.LessOrEqual(t, w.width(40), uint(4))
}
