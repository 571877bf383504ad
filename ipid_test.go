package rohc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIPIDSequentialStaysNBO(t *testing.T) {
	tr := newIPIDTracker(ROHC_RND_THRESHOLD)
	for i := 0; i < 10; i++ {
		tr.observe(uint16(1000+i), uint16(i))
	}
	assert.False(t, tr.rnd)
	assert.True(t, tr.nbo)
	assert.Equal(t, uint16(1000+9)-uint16(9), tr.offset)
}

func TestIPIDRandomFlipsRND(t *testing.T) {
	tr := newIPIDTracker(4)
	ids := []uint16{0x8421, 0x13fe, 0xa0a0, 0x0102, 0xdead, 0x7777}
	for i, id := range ids {
		tr.observe(id, uint16(i))
	}
	assert.True(t, tr.rnd, "non-monotonic IP-IDs must flip RND after threshold")
}

func TestIPIDLittleEndianDetected(t *testing.T) {
	tr := newIPIDTracker(4)
	for i := 0; i < 8; i++ {
		id := uint16(0x0100 + i)
		wire := id<<8 | id>>8 // sender stores little endian
		tr.observe(wire, uint16(i))
	}
	assert.False(t, tr.rnd)
	assert.False(t, tr.nbo)
}

func TestTSStrideDetection(t *testing.T) {
	tr := newTSTracker(3)
	ts := uint32(16000)
	for i := 0; i < 5; i++ {
		assert.True(t, tr.observe(ts))
		ts += 160
	}
	assert.True(t, tr.scaled)
	assert.Equal(t, uint32(160), tr.stride)

	// round trip through the scaler
	scaled := tr.scale(ts - 160)
	assert.Equal(t, ts-160, tr.unscale(scaled))
}

func TestTSStrideBreakLeavesScaledMode(t *testing.T) {
	tr := newTSTracker(3)
	ts := uint32(0)
	for i := 0; i < 6; i++ {
		tr.observe(ts)
		ts += 160
	}
	assert.True(t, tr.scaled)
	assert.False(t, tr.observe(ts+7), "stride break must be reported")
	assert.False(t, tr.scaled)
}
