package rohc

import "sync/atomic"

// Snmp defines compression statistics indicators
type Snmp struct {
	PacketsIn           uint64 // uncompressed packets offered to the compressor
	PacketsOut          uint64 // ROHC packets produced
	BytesIn             uint64
	BytesOut            uint64
	IRSent              uint64
	IRDynSent           uint64
	UO0Sent             uint64
	UO1Sent             uint64
	UOR2Sent            uint64
	UncompressedSent    uint64 // packets bypassed via profile 0x0000
	Decompressed        uint64 // successfully rebuilt packets
	MalformedPackets    uint64
	CRCFailures         uint64
	CRCRepairs          uint64 // failures recovered by reference correction
	FeedbackSent        uint64
	FeedbackReceived    uint64
	ContextsCreated     uint64
	ContextsEvicted     uint64 // LRU evictions
	ContextDowngrades   uint64 // FC->SC and SC->NC transitions
	SegmentsReceived    uint64
	SegmentsReassembled uint64
	SegmentsDiscarded   uint64
}

func newSnmp() *Snmp {
	return new(Snmp)
}

// Copy makes a copy of current snmp snapshot
func (s *Snmp) Copy() *Snmp {
	d := newSnmp()
	d.PacketsIn = atomic.LoadUint64(&s.PacketsIn)
	d.PacketsOut = atomic.LoadUint64(&s.PacketsOut)
	d.BytesIn = atomic.LoadUint64(&s.BytesIn)
	d.BytesOut = atomic.LoadUint64(&s.BytesOut)
	d.IRSent = atomic.LoadUint64(&s.IRSent)
	d.IRDynSent = atomic.LoadUint64(&s.IRDynSent)
	d.UO0Sent = atomic.LoadUint64(&s.UO0Sent)
	d.UO1Sent = atomic.LoadUint64(&s.UO1Sent)
	d.UOR2Sent = atomic.LoadUint64(&s.UOR2Sent)
	d.UncompressedSent = atomic.LoadUint64(&s.UncompressedSent)
	d.Decompressed = atomic.LoadUint64(&s.Decompressed)
	d.MalformedPackets = atomic.LoadUint64(&s.MalformedPackets)
	d.CRCFailures = atomic.LoadUint64(&s.CRCFailures)
	d.CRCRepairs = atomic.LoadUint64(&s.CRCRepairs)
	d.FeedbackSent = atomic.LoadUint64(&s.FeedbackSent)
	d.FeedbackReceived = atomic.LoadUint64(&s.FeedbackReceived)
	d.ContextsCreated = atomic.LoadUint64(&s.ContextsCreated)
	d.ContextsEvicted = atomic.LoadUint64(&s.ContextsEvicted)
	d.ContextDowngrades = atomic.LoadUint64(&s.ContextDowngrades)
	d.SegmentsReceived = atomic.LoadUint64(&s.SegmentsReceived)
	d.SegmentsReassembled = atomic.LoadUint64(&s.SegmentsReassembled)
	d.SegmentsDiscarded = atomic.LoadUint64(&s.SegmentsDiscarded)
	return d
}

// Reset zeroes the counters.
func (s *Snmp) Reset() {
	atomic.StoreUint64(&s.PacketsIn, 0)
	atomic.StoreUint64(&s.PacketsOut, 0)
	atomic.StoreUint64(&s.BytesIn, 0)
	atomic.StoreUint64(&s.BytesOut, 0)
	atomic.StoreUint64(&s.IRSent, 0)
	atomic.StoreUint64(&s.IRDynSent, 0)
	atomic.StoreUint64(&s.UO0Sent, 0)
	atomic.StoreUint64(&s.UO1Sent, 0)
	atomic.StoreUint64(&s.UOR2Sent, 0)
	atomic.StoreUint64(&s.UncompressedSent, 0)
	atomic.StoreUint64(&s.Decompressed, 0)
	atomic.StoreUint64(&s.MalformedPackets, 0)
	atomic.StoreUint64(&s.CRCFailures, 0)
	atomic.StoreUint64(&s.CRCRepairs, 0)
	atomic.StoreUint64(&s.FeedbackSent, 0)
	atomic.StoreUint64(&s.FeedbackReceived, 0)
	atomic.StoreUint64(&s.ContextsCreated, 0)
	atomic.StoreUint64(&s.ContextsEvicted, 0)
	atomic.StoreUint64(&s.ContextDowngrades, 0)
	atomic.StoreUint64(&s.SegmentsReceived, 0)
	atomic.StoreUint64(&s.SegmentsReassembled, 0)
	atomic.StoreUint64(&s.SegmentsDiscarded, 0)
}

// DefaultSnmp is the global ROHC statistics collector
var DefaultSnmp *Snmp

func init() {
	DefaultSnmp = newSnmp()
}
