package rohc

// Scaled RTP timestamp encoding, RFC 3095 section 4.5.3/4.5.4.
//
// Audio and video sources advance the RTP timestamp by a fixed stride per
// packet.  After tsStrideObs equal inter-packet deltas the compressor
// switches to transmitting TS_SCALED = TS / stride; the residue TS mod
// stride is pinned when scaled mode engages and a change to either ends
// scaled mode until the next refresh.

type tsTracker struct {
	stride uint32
	offset uint32 // TS mod stride, fixed while scaled
	scaled bool

	lastTS    uint32
	lastDelta uint32
	equalObs  int
	samples   int
	obsNeed   int
}

func newTSTracker(obsNeed int) *tsTracker {
	return &tsTracker{obsNeed: obsNeed}
}

func (t *tsTracker) reset() {
	t.stride = 0
	t.offset = 0
	t.scaled = false
	t.equalObs = 0
	t.samples = 0
}

// observe feeds a new timestamp.  It returns false when an established
// stride was broken, which forces the compressor back to FO.
func (t *tsTracker) observe(ts uint32) bool {
	defer func() {
		t.lastTS = ts
		t.samples++
	}()

	if t.samples == 0 {
		return true
	}

	delta := ts - t.lastTS
	if t.scaled {
		if t.stride != 0 && delta%t.stride == 0 && ts%t.stride == t.offset {
			return true
		}
		t.scaled = false
		t.equalObs = 0
		t.lastDelta = delta
		return false
	}

	if delta != 0 && delta == t.lastDelta {
		t.equalObs++
		if t.equalObs+1 >= t.obsNeed {
			t.stride = delta
			t.offset = ts % delta
			t.scaled = true
		}
	} else {
		t.equalObs = 0
	}
	t.lastDelta = delta
	return true
}

func (t *tsTracker) scale(ts uint32) uint32 {
	return ts / t.stride
}

func (t *tsTracker) unscale(scaled uint32) uint32 {
	return scaled*t.stride + t.offset
}
