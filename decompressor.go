package rohc

import "sync/atomic"

// DecompressResult is the outcome of one Decompress call.
type DecompressResult struct {
	// Packet holds the rebuilt uncompressed packet, nil for feedback-only
	// packets and swallowed segments.  It aliases an internal scratch
	// buffer valid until the next call.
	Packet []byte

	// Feedback holds feedback generated by this decompressor, addressed to
	// the peer compressor.  The caller ships it on the reverse channel,
	// typically via Compressor.PiggybackFeedback.
	Feedback []byte

	// PiggybackedFeedback holds feedback extracted from the packet when no
	// associated compressor was given to consume it directly.
	PiggybackedFeedback []byte

	Status Status
}

// Decompressor is the receiving half of a ROHC channel.  Not safe for
// concurrent use.
type Decompressor struct {
	cfg      *Config
	assoc    *Compressor // consumes extracted feedback, may be nil
	enabled  map[int]bool
	slots    []*decompContext
	lru      *lruList
	largeCID bool
	buf      []byte // scratch for rebuilt packets
	reasm    reassembler

	// clock, when set, returns the current time in RTP timestamp units and
	// enables timer-based TS interpolation across long silent gaps
	// (RFC 3095 section 4.5.4)
	clock func() uint32
}

// NewDecompressor builds a decompressor; assoc, when non-nil, receives
// piggybacked feedback without caller involvement.
func NewDecompressor(assoc *Compressor, cfg *Config) (*Decompressor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	d := &Decompressor{
		cfg:      cfg,
		assoc:    assoc,
		enabled:  make(map[int]bool),
		slots:    make([]*decompContext, cfg.MaxCID+1),
		lru:      newLRUList(cfg.MaxCID + 1),
		largeCID: cfg.LargeCID,
		buf:      make([]byte, 0, 2048),
	}
	for _, p := range cfg.Profiles {
		d.enabled[p] = true
	}
	d.enabled[ProfileUncompressed] = true
	return d, nil
}

// EnableProfile turns on a profile at runtime.
func (d *Decompressor) EnableProfile(id int) { d.enabled[id] = true }

// SetClock installs the timestamp-unit clock used for timer-based TS
// interpolation on RTP flows.  fn must count in the flow's RTP clock rate.
func (d *Decompressor) SetClock(fn func() uint32) { d.clock = fn }

// Flush destroys the context bound to cid.
func (d *Decompressor) Flush(cid int) {
	if cid >= 0 && cid < len(d.slots) && d.slots[cid] != nil {
		d.slots[cid] = nil
		d.lru.remove(cid)
	}
}

// FlushAll destroys every context.
func (d *Decompressor) FlushAll() {
	for cid := range d.slots {
		d.Flush(cid)
	}
}

// Decompress consumes one ROHC packet from the channel.
func (d *Decompressor) Decompress(pkt []byte) (*DecompressResult, error) {
	res := &DecompressResult{Status: StatusOK}
	cur := newCursor(pkt)

	// padding and piggybacked feedback precede the compressed header
	for cur.remaining() > 0 {
		b, _ := cur.peekByte()
		if isPadding(b) {
			cur.skip(1)
			continue
		}
		if !isFeedback(b) {
			break
		}
		start := cur.offset()
		fb, err := readFeedback(cur, d.largeCID)
		if err != nil {
			atomic.AddUint64(&DefaultSnmp.MalformedPackets, 1)
			res.Status = StatusMalformed
			return res, nil
		}
		if d.assoc != nil {
			d.assoc.applyFeedback(fb)
		} else {
			res.PiggybackedFeedback = append(res.PiggybackedFeedback, pkt[start:cur.offset()]...)
		}
	}

	if cur.remaining() == 0 {
		res.Status = StatusFeedbackOnly
		return res, nil
	}

	// segments are channel-level, before any CID
	if b, _ := cur.peekByte(); b&typeSegmentMask == typeSegment {
		unit, status := d.reasm.feed(cur, d.cfg.MRRU)
		if status != StatusOK {
			res.Status = status
			return res, nil
		}
		return d.Decompress(unit)
	}

	// a non-segment packet aborts any reassembly in progress
	if d.reasm.partial {
		d.reasm.reset()
		atomic.AddUint64(&DefaultSnmp.SegmentsDiscarded, 1)
	}

	cid, typeOctet, err := readPrelude(cur, d.largeCID)
	if err != nil || cid >= len(d.slots) {
		atomic.AddUint64(&DefaultSnmp.MalformedPackets, 1)
		res.Status = StatusMalformed
		return res, nil
	}

	switch classify(typeOctet) {
	case pktIR:
		d.decodeIR(res, cur, cid, typeOctet&0x01 != 0)
	case pktIRDYN:
		d.decodeIRDyn(res, cur, cid)
	case pktUO0, pktUO1, pktUOR2:
		d.decodeUO(res, cur, cid, typeOctet)
	default:
		atomic.AddUint64(&DefaultSnmp.MalformedPackets, 1)
		res.Status = StatusMalformed
	}
	return res, nil
}

// decodeIR installs (or refreshes) a context from the full chains.
func (d *Decompressor) decodeIR(res *DecompressResult, cur *cursor, cid int, hasDyn bool) {
	profByte, err := cur.readByte()
	if err != nil {
		d.malformed(res)
		return
	}
	wantCRC, err := cur.readByte()
	if err != nil {
		d.malformed(res)
		return
	}
	p := profileFor(int(profByte))
	if p == nil || !d.enabled[p.id] {
		res.Status = StatusProfileUnsupported
		return
	}

	ctx := &decompContext{
		cid:       cid,
		profile:   p.id,
		mode:      d.cfg.Mode,
		outerOff:  -1,
		rtpOff:    -1,
		transOff:  -1,
		ipidInner: newIPIDTracker(d.cfg.RNDThreshold),
		ipidOuter: newIPIDTracker(d.cfg.RNDThreshold),
	}

	if p.id == ProfileUncompressed {
		if wantCRC != crc8Init { // empty chains hash to the init value
			d.crcFailed(res, d.slots[cid])
			return
		}
		ctx.state = StateFC
		d.install(cid, ctx)
		res.Packet = append(d.buf[:0], cur.rest()...)
		d.buf = res.Packet[:0]
		atomic.AddUint64(&DefaultSnmp.Decompressed, 1)
		res.Feedback = d.ackIfNeeded(ctx)
		return
	}

	chainStart := cur.offset()
	if err := p.parseStaticChain(cur, ctx); err != nil {
		d.malformed(res)
		return
	}
	staticEnd := cur.offset()
	ctx.crcCache.update(cur.buf[chainStart:staticEnd])
	if hasDyn {
		if err := p.parseDynamicChain(cur, ctx); err != nil {
			d.malformed(res)
			return
		}
	}
	if ctx.crcCache.sum(cur.buf[staticEnd:cur.offset()]) != wantCRC {
		atomic.AddUint64(&DefaultSnmp.CRCFailures, 1)
		d.crcFailed(res, d.slots[cid])
		return
	}

	ctx.state = StateFC
	if !hasDyn {
		ctx.state = StateSC
	}
	d.noteOffsets(ctx)
	if d.clock != nil {
		ctx.lastClock = d.clock()
	}
	d.install(cid, ctx)

	res.Packet = d.assemble(ctx, cur.rest())
	atomic.AddUint64(&DefaultSnmp.Decompressed, 1)
	res.Feedback = d.ackIfNeeded(ctx)
}

// decodeIRDyn refreshes the dynamic chain of an existing context.
func (d *Decompressor) decodeIRDyn(res *DecompressResult, cur *cursor, cid int) {
	ctx := d.slots[cid]
	if ctx == nil || ctx.state == StateNC {
		res.Status = StatusNoContext
		res.Feedback = d.nackStatic(cid)
		return
	}
	profByte, err := cur.readByte()
	if err != nil {
		d.malformed(res)
		return
	}
	wantCRC, err := cur.readByte()
	if err != nil {
		d.malformed(res)
		return
	}
	if int(profByte) != ctx.profile {
		d.malformed(res)
		return
	}
	p := profileFor(ctx.profile)

	// parse onto a scratch context so a CRC failure cannot poison state
	probe := d.cloneContext(ctx)
	dynStart := cur.offset()
	if err := p.parseDynamicChain(cur, probe); err != nil {
		d.malformed(res)
		return
	}
	if crc8(cur.buf[dynStart:cur.offset()], crc8Init) != wantCRC {
		atomic.AddUint64(&DefaultSnmp.CRCFailures, 1)
		d.crcFailed(res, ctx)
		return
	}

	d.adopt(ctx, probe)
	ctx.state = StateFC
	ctx.resetCRCWindow()
	d.noteOffsets(ctx)
	if d.clock != nil {
		ctx.lastClock = d.clock()
	}
	d.lru.touch(cid)

	res.Packet = d.assemble(ctx, cur.rest())
	atomic.AddUint64(&DefaultSnmp.Decompressed, 1)
	res.Feedback = d.ackIfNeeded(ctx)
}

func (d *Decompressor) install(cid int, ctx *decompContext) {
	if d.slots[cid] == nil {
		atomic.AddUint64(&DefaultSnmp.ContextsCreated, 1)
	}
	d.slots[cid] = ctx
	d.lru.touch(cid)
}

// noteOffsets derives the IP-ID offsets implied by freshly parsed chains.
func (d *Decompressor) noteOffsets(ctx *decompContext) {
	if ctx.innerOff >= 0 && !ctx.innerV6 {
		id := ipv4Hdr(ctx.template[ctx.innerOff:]).idNBO(ctx.ipidInner.nbo)
		ctx.ipidOffInner = id - ctx.refSN
	}
	if ctx.hasOuter() && !ctx.outerV6 {
		id := ipv4Hdr(ctx.template[ctx.outerOff:]).idNBO(ctx.ipidOuter.nbo)
		ctx.ipidOffOuter = id - ctx.refSN
	}
}

func (d *Decompressor) cloneContext(ctx *decompContext) *decompContext {
	cp := *ctx
	cp.template = append([]byte(nil), ctx.template...)
	ti := *ctx.ipidInner
	to := *ctx.ipidOuter
	cp.ipidInner = &ti
	cp.ipidOuter = &to
	return &cp
}

func (d *Decompressor) adopt(ctx, probe *decompContext) {
	probe.cid = ctx.cid
	*ctx = *probe
}

func (d *Decompressor) malformed(res *DecompressResult) {
	atomic.AddUint64(&DefaultSnmp.MalformedPackets, 1)
	res.Status = StatusMalformed
}

// crcFailed books a failure against the context and downgrades per the
// k-out-of-n rules, emitting the matching negative feedback.
func (d *Decompressor) crcFailed(res *DecompressResult, ctx *decompContext) {
	res.Status = StatusCRCFailure
	if ctx == nil {
		return
	}
	switch ctx.state {
	case StateFC:
		if ctx.markCRC(false, d.cfg.CRCWindowN1) >= d.cfg.CRCFailuresK1 {
			ctx.state = StateSC
			ctx.resetCRCWindow()
			atomic.AddUint64(&DefaultSnmp.ContextDowngrades, 1)
			Logf(INFO, "cid %d: FC -> SC", ctx.cid)
			res.Feedback = d.nack(ctx, fbNack)
		}
	case StateSC:
		if ctx.markCRC(false, d.cfg.CRCWindowN2) >= d.cfg.CRCFailuresK2 {
			ctx.state = StateNC
			ctx.resetCRCWindow()
			atomic.AddUint64(&DefaultSnmp.ContextDowngrades, 1)
			Logf(INFO, "cid %d: SC -> NC", ctx.cid)
			res.Feedback = d.nack(ctx, fbStaticNack)
		}
	}
}

// ackIfNeeded implements the per-mode acknowledgement policy.
func (d *Decompressor) ackIfNeeded(ctx *decompContext) []byte {
	switch ctx.mode {
	case ModeR:
		atomic.AddUint64(&DefaultSnmp.FeedbackSent, 1)
		return appendFeedback2(nil, ctx.cid, d.largeCID, fbAck, byte(ctx.mode), ctx.refSN, true)
	case ModeO:
		// sparse ACKs: only context-installing packets are acknowledged
		atomic.AddUint64(&DefaultSnmp.FeedbackSent, 1)
		return appendFeedback2(nil, ctx.cid, d.largeCID, fbAck, byte(ctx.mode), ctx.refSN, true)
	}
	return nil
}

func (d *Decompressor) nack(ctx *decompContext, ackType byte) []byte {
	if ctx.mode == ModeU {
		return nil
	}
	atomic.AddUint64(&DefaultSnmp.FeedbackSent, 1)
	return appendFeedback2(nil, ctx.cid, d.largeCID, ackType, byte(ctx.mode), ctx.refSN, true)
}

func (d *Decompressor) nackStatic(cid int) []byte {
	if d.cfg.Mode == ModeU {
		return nil
	}
	atomic.AddUint64(&DefaultSnmp.FeedbackSent, 1)
	return appendFeedback2(nil, cid, d.largeCID, fbStaticNack, byte(d.cfg.Mode), 0, true)
}
