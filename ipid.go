package rohc

// IP-ID offset encoding, RFC 3095 section 4.5.5.
//
// Most stacks assign the IPv4 identification sequentially, so the offset
// IP-ID - SN stays constant and compresses to nothing.  The tracker watches
// the stream and raises RND once the field stops looking sequential, after
// which the full value travels verbatim.  NBO=0 flags senders that store the
// field little endian; the octets are swapped before offset encoding.

type ipidTracker struct {
	rnd bool
	nbo bool

	offset       uint16 // ipid - sn under NBO interpretation
	lastID       uint16 // raw wire value of the previous packet
	samples      int
	nonSeq       int // consecutive non-sequential observations
	rndThreshold int
}

func newIPIDTracker(rndThreshold int) *ipidTracker {
	return &ipidTracker{nbo: true, rndThreshold: rndThreshold}
}

func (t *ipidTracker) reset() {
	t.rnd = false
	t.nbo = true
	t.samples = 0
	t.nonSeq = 0
}

// observe feeds the raw wire IP-ID of a new packet together with the SN the
// packet compresses under, updating RND/NBO.
func (t *ipidTracker) observe(wireID, sn uint16) {
	defer func() {
		t.lastID = wireID
		t.offset = t.valueNBO(wireID) - sn
		t.samples++
	}()

	if t.samples == 0 {
		return
	}

	delta := _sndiff16(wireID, t.lastID)
	if delta > 0 && delta < 32 {
		t.nonSeq = 0
		t.nbo = true
		t.rnd = false
		return
	}

	// a small positive delta after byte swapping means NBO=0
	swapped := _sndiff16(wireID<<8|wireID>>8, t.lastID<<8|t.lastID>>8)
	if swapped > 0 && swapped < 32 {
		t.nonSeq = 0
		t.nbo = false
		t.rnd = false
		return
	}

	t.nonSeq++
	if t.nonSeq >= t.rndThreshold {
		t.rnd = true
	}
}

// valueNBO returns the IP-ID under the current NBO interpretation.
func (t *ipidTracker) valueNBO(wireID uint16) uint16 {
	if t.nbo {
		return wireID
	}
	return wireID<<8 | wireID>>8
}

// wireValue converts a decoded NBO IP-ID back to its wire representation.
func (t *ipidTracker) wireValue(id uint16) uint16 {
	if t.nbo {
		return id
	}
	return id<<8 | id>>8
}
