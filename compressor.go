package rohc

import (
	"bytes"
	"sync/atomic"
	"unsafe"

	"github.com/pkg/errors"
)

// compressed packet shapes the selector can pick
type uoFormat int

const (
	fmtNone uoFormat = iota
	fmtUO0
	fmtUO1   // non-RTP layout, or plain RTP UO-1 when no sequential IP-ID
	fmtUO1ID // RTP, T=0
	fmtUO1TS // RTP, T=1
	fmtUOR2  // with optional EXT-0
	fmtUOR2ID
	fmtUOR2TS
)

// Compressor is the sending half of a ROHC channel.  It is not safe for
// concurrent use; callers must serialize.
type Compressor struct {
	cfg       *Config
	enabled   map[int]bool
	slots     []*compContext
	lru       *lruList
	buf       []byte // scratch; the slice returned by Compress aliases it
	fbQueue   [][]byte
	rtpDetect func(*pktInfo) bool
	largeCID  bool
}

// NewCompressor builds a compressor for the given channel parameters.
func NewCompressor(cfg *Config) (*Compressor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	c := &Compressor{
		cfg:       cfg,
		enabled:   make(map[int]bool),
		slots:     make([]*compContext, cfg.MaxCID+1),
		lru:       newLRUList(cfg.MaxCID + 1),
		buf:       make([]byte, 0, 2048),
		rtpDetect: defaultRTPDetect,
		largeCID:  cfg.LargeCID,
	}
	for _, p := range cfg.Profiles {
		c.enabled[p] = true
	}
	c.enabled[ProfileUncompressed] = true
	return c, nil
}

// EnableProfile turns on a compression profile at runtime.
func (c *Compressor) EnableProfile(id int) { c.enabled[id] = true }

// SetRTPDetector replaces the heuristic deciding whether a UDP packet is RTP.
func (c *Compressor) SetRTPDetector(f func(*pktInfo) bool) { c.rtpDetect = f }

// SetPeriodicRefresh overrides the IR/FO refresh counters.
func (c *Compressor) SetPeriodicRefresh(ir, fo uint32) {
	c.cfg.IRTimeout = ir
	c.cfg.FOTimeout = fo
}

// SetMRRU sets the maximum reconstructed reception unit for segmentation.
func (c *Compressor) SetMRRU(n int) { c.cfg.MRRU = n }

// SetWLSBWindowWidth resizes the W-LSB windows of contexts created from now
// on; live contexts keep their windows.
func (c *Compressor) SetWLSBWindowWidth(w int) {
	if w > 0 {
		c.cfg.WLSBWidth = w
	}
}

// PiggybackFeedback queues locally generated feedback for prepending to the
// next compressed packet.
func (c *Compressor) PiggybackFeedback(fb []byte) {
	if len(fb) == 0 {
		return
	}
	cp := make([]byte, len(fb))
	copy(cp, fb)
	c.fbQueue = append(c.fbQueue, cp)
}

// FlushFeedback drains the piggyback queue as a standalone feedback-only
// packet, for channels with no reverse data traffic to ride on.
func (c *Compressor) FlushFeedback() []byte {
	if len(c.fbQueue) == 0 {
		return nil
	}
	var out []byte
	for _, fb := range c.fbQueue {
		out = append(out, fb...)
	}
	c.fbQueue = c.fbQueue[:0]
	return out
}

// Flush destroys the context bound to cid.
func (c *Compressor) Flush(cid int) {
	if cid >= 0 && cid < len(c.slots) && c.slots[cid] != nil {
		c.slots[cid] = nil
		c.lru.remove(cid)
	}
}

// FlushAll destroys every context.
func (c *Compressor) FlushAll() {
	for cid := range c.slots {
		c.Flush(cid)
	}
}

// Compress turns one uncompressed packet into one ROHC packet.  The returned
// slice aliases an internal scratch buffer and is valid until the next call.
func (c *Compressor) Compress(pkt []byte) ([]byte, Status, error) {
	atomic.AddUint64(&DefaultSnmp.PacketsIn, 1)
	atomic.AddUint64(&DefaultSnmp.BytesIn, uint64(len(pkt)))

	out := c.buf[:0]
	for _, fb := range c.fbQueue {
		out = append(out, fb...)
	}
	c.fbQueue = c.fbQueue[:0]

	info, err := dissect(pkt, c.rtpDetect)
	pid := ProfileUncompressed
	if err == nil {
		pid = c.pickProfile(info)
		if pid != ProfileUncompressed {
			info = info.trimTo(profileFor(pid))
		}
	} else if len(pkt) == 0 {
		return nil, StatusMalformed, nil
	} else {
		info = &pktInfo{raw: pkt, payload: pkt}
	}

	ctx, status := c.findOrCreate(pid, info)
	if ctx == nil {
		return nil, status, nil
	}
	c.lru.touch(ctx.cid)

	out, err = c.compressWith(out, ctx, info)
	if err != nil {
		return nil, StatusInternal, errors.WithStack(err)
	}
	c.buf = out[:0]
	atomic.AddUint64(&DefaultSnmp.PacketsOut, 1)
	atomic.AddUint64(&DefaultSnmp.BytesOut, uint64(len(out)))
	return out, StatusOK, nil
}

// DeliverFeedback feeds feedback received from the peer decompressor.  The
// buffer may hold several feedback elements back to back.
func (c *Compressor) DeliverFeedback(buf []byte) (Status, error) {
	cur := newCursor(buf)
	for cur.remaining() > 0 {
		b, _ := cur.peekByte()
		if !isFeedback(b) {
			return StatusMalformed, nil
		}
		fb, err := readFeedback(cur, c.largeCID)
		if err != nil {
			atomic.AddUint64(&DefaultSnmp.MalformedPackets, 1)
			return StatusMalformed, nil
		}
		c.applyFeedback(fb)
	}
	return StatusOK, nil
}

func (c *Compressor) applyFeedback(fb *feedback) {
	atomic.AddUint64(&DefaultSnmp.FeedbackReceived, 1)
	if fb.cid >= len(c.slots) || c.slots[fb.cid] == nil {
		Logf(DEBUG, "feedback for unknown cid %d dropped", fb.cid)
		return
	}
	ctx := c.slots[fb.cid]

	if !fb.small && modeValid(fb.mode) && int(fb.mode) != ctx.mode {
		Logf(INFO, "cid %d: mode transition %d -> %d", ctx.cid, ctx.mode, fb.mode)
		ctx.mode = int(fb.mode)
	}

	switch {
	case fb.small || fb.ackType == fbAck:
		sn := fb.sn
		if fb.small {
			// FEEDBACK-1 carries 8 SN bits; resolve against the current SN
			sn = ctx.sn&0xff00 | fb.sn&0xff
			if _sndiff16(ctx.sn, sn) < 0 {
				sn -= 0x100
			}
		}
		if fb.snValid {
			ctx.snWin.ack(sn)
			ctx.tsWin.ack(sn)
			ctx.ipidWin.ack(sn)
		}
		if ctx.state != StateSO {
			ctx.state++
			ctx.sent = 0
			Logf(DEBUG, "cid %d: ack promotes state to %d", ctx.cid, ctx.state)
		}
	case fb.ackType == fbNack:
		if ctx.state == StateSO {
			ctx.state = StateFO
			ctx.sent = 0
		}
		Logf(DEBUG, "cid %d: NACK, state %d", ctx.cid, ctx.state)
	case fb.ackType == fbStaticNack:
		ctx.state = StateIR
		ctx.sent = 0
		Logf(DEBUG, "cid %d: STATIC-NACK, back to IR", ctx.cid)
	}
}

// pickProfile returns the most specific enabled profile for the packet.
func (c *Compressor) pickProfile(info *pktInfo) int {
	for _, id := range profileOrder {
		if !c.enabled[id] {
			continue
		}
		if p := profileFor(id); p != nil && p.classify(info) {
			return id
		}
	}
	return ProfileUncompressed
}

// contextKey is the flow classifier: the static chain without the fields a
// same-flow refresh may change (the RTP SSRC).
func contextKey(p *profile, info *pktInfo) string {
	var key []byte
	if p.id == ProfileUncompressed {
		return "uncompressed"
	}
	if p.hasRTP {
		key = ipStaticChain(nil, info)
		u := udpHdr(info.udp)
		key = append(key,
			byte(u.srcPort()>>8), byte(u.srcPort()),
			byte(u.dstPort()>>8), byte(u.dstPort()))
	} else {
		key = p.staticChain(nil, info)
	}
	return string(append(key, byte(p.id)))
}

func (c *Compressor) findOrCreate(pid int, info *pktInfo) (*compContext, Status) {
	p := profileFor(pid)
	key := contextKey(p, info)

	for _, ctx := range c.slots {
		if ctx != nil && ctx.profile == pid && ctx.key == key {
			// same flow; a changed static chain (e.g. new SSRC) forces IR
			if pid != ProfileUncompressed {
				if !bytes.Equal(p.staticChain(nil, info), p.staticChain(nil, ctx.info)) {
					Logf(INFO, "cid %d: static chain changed, refreshing", ctx.cid)
					c.resetContext(ctx, pid)
				}
			}
			return ctx, StatusOK
		}
	}

	cid := -1
	for i, ctx := range c.slots {
		if ctx == nil {
			cid = i
			break
		}
	}
	if cid == -1 {
		cid = c.lru.oldest()
		if cid == lruNil {
			return nil, StatusNoContext
		}
		Logf(DEBUG, "evicting cid %d", cid)
		atomic.AddUint64(&DefaultSnmp.ContextsEvicted, 1)
		c.lru.remove(cid)
	}

	ctx := &compContext{cid: cid, key: key}
	c.resetContext(ctx, pid)
	ctx.mode = c.cfg.Mode
	c.slots[cid] = ctx
	atomic.AddUint64(&DefaultSnmp.ContextsCreated, 1)
	return ctx, StatusOK
}

func (c *Compressor) resetContext(ctx *compContext, pid int) {
	p := profileFor(pid)
	ctx.profile = pid
	ctx.state = StateIR
	ctx.sent = 0
	ctx.sinceIR = 0
	ctx.sinceFO = 0
	ctx.snWin = newWLSB(c.cfg.WLSBWidth, 16, pSN)
	ctx.ipidWin = newWLSB(c.cfg.WLSBWidth, 16, pIPID)
	ctx.tsWin = newWLSB(c.cfg.WLSBWidth, 32, pTS)
	ctx.ipidInner = newIPIDTracker(c.cfg.RNDThreshold)
	ctx.ipidOuter = newIPIDTracker(c.cfg.RNDThreshold)
	ctx.ts = newTSTracker(c.cfg.TSStrideObs)
	ctx.info = nil
	ctx.lastHdr = nil
	ctx.udpChecksumUsed = false
	ctx.espSN = 0
	ctx.tsStrideSignaled = 0
	ctx.ipidOuterSignaled = 0
	ctx.crcCache.valid = false
	if p.generatedSN {
		if c.cfg.RandomizeInitSN {
			ctx.sn = randUint16()
		} else {
			ctx.sn = 0
		}
	}
}

// compressWith runs the per-context state machine and emits the packet.
func (c *Compressor) compressWith(out []byte, ctx *compContext, info *pktInfo) ([]byte, error) {
	p := profileFor(ctx.profile)

	if ctx.profile == ProfileUncompressed {
		return c.emitUncompressed(out, ctx, info)
	}

	// master SN for this packet
	switch {
	case p.hasRTP:
		ctx.sn = rtpHdr(info.rtp).seq()
	case p.hasESP:
		ctx.espSN = espHdr(info.esp).sn()
		ctx.sn = uint16(ctx.espSN)
	default:
		ctx.sn++
	}

	// observe field behavior before selecting a format
	degraded := false
	if info.innerIP != nil && !info.innerV6 {
		prevRND := ctx.ipidInner.rnd
		prevNBO := ctx.ipidInner.nbo
		ctx.ipidInner.observe(ipv4Hdr(info.innerIP).id(), ctx.sn)
		if ctx.info != nil && (ctx.ipidInner.rnd != prevRND || ctx.ipidInner.nbo != prevNBO) {
			degraded = true
		}
	}
	if info.outerIP != nil && !info.outerV6 {
		prevRND := ctx.ipidOuter.rnd
		ctx.ipidOuter.observe(ipv4Hdr(info.outerIP).id(), ctx.sn)
		if ctx.info != nil && ctx.ipidOuter.rnd != prevRND {
			degraded = true
		}
	}
	if p.hasRTP {
		prevScaled := ctx.ts.scaled
		if !ctx.ts.observe(rtpHdr(info.rtp).timestamp()) {
			degraded = true
		}
		if ctx.ts.scaled != prevScaled {
			// the window mixes scaled and unscaled values across the flip
			ctx.tsWin.reset()
		}
		if ctx.info != nil && !sameRTPShape(ctx.info, info) {
			degraded = true
		}
		if ctx.ts.scaled && ctx.tsStrideSignaled != ctx.ts.stride {
			// the peer has not seen this stride yet
			degraded = true
		}
	}
	if ctx.info != nil {
		if ipFieldsChanged(ctx.info.innerIP, info.innerIP, info.innerV6) {
			degraded = true
		}
		if info.outerIP != nil && ipFieldsChanged(ctx.info.outerIP, info.outerIP, info.outerV6) {
			degraded = true
		}
	}
	if p.hasUDP && ctx.info != nil {
		wasUsed := ctx.udpChecksumUsed
		isUsed := udpHdr(info.udp).checksum() != 0
		if wasUsed != isUsed {
			degraded = true
		}
	}
	if p.hasTCP && ctx.info != nil && !bytes.Equal(tcpHdr(ctx.info.tcp).options(), tcpHdr(info.tcp).options()) {
		degraded = true
	}

	// periodic refreshes, U-mode insurance against stale references
	if ctx.mode == ModeU {
		if ctx.sinceIR >= c.cfg.IRTimeout {
			ctx.state = StateIR
			ctx.sent = 0
		} else if ctx.sinceFO >= c.cfg.FOTimeout && ctx.state == StateSO {
			ctx.state = StateFO
			ctx.sent = 0
		}
	}
	if degraded && ctx.state == StateSO {
		ctx.state = StateFO
		ctx.sent = 0
	}

	var err error
	switch ctx.state {
	case StateIR:
		out, err = c.emitIR(out, ctx, info, p)
	case StateFO:
		out, err = c.emitIRDyn(out, ctx, info, p)
	default:
		fmtSel := c.selectFormat(ctx, info, p)
		if fmtSel == fmtNone {
			ctx.state = StateFO
			ctx.sent = 0
			out, err = c.emitIRDyn(out, ctx, info, p)
		} else {
			out, err = c.emitUO(out, ctx, info, p, fmtSel)
		}
	}
	if err != nil {
		return nil, err
	}

	c.advanceState(ctx)
	c.storeLast(ctx, info)
	return out, nil
}

// ipFieldsChanged reports a change in the IP fields no SO format conveys
// (TOS/TTL/DF, or traffic class/hop limit for IPv6).
func ipFieldsChanged(last, cur []byte, v6 bool) bool {
	if last == nil {
		return false
	}
	if v6 {
		lh, ch := ipv6Hdr(last), ipv6Hdr(cur)
		return lh.trafficClass() != ch.trafficClass() || lh.hopLimit() != ch.hopLimit()
	}
	lh, ch := ipv4Hdr(last), ipv4Hdr(cur)
	return lh.tos() != ch.tos() || lh.ttl() != ch.ttl() || lh.df() != ch.df()
}

// sameRTPShape checks the RTP fields UO packets cannot convey.
func sameRTPShape(last, cur *pktInfo) bool {
	l, r := last.rtp, cur.rtp
	if l[0] != r[0] { // V, P, X, CC
		return false
	}
	if l[1]&0x7f != r[1]&0x7f { // PT (M is carried)
		return false
	}
	return bytes.Equal(l[rtpMinLen:], r[rtpMinLen:]) // CSRC list
}

func (c *Compressor) advanceState(ctx *compContext) {
	ctx.sinceIR++
	ctx.sinceFO++
	ctx.sent++
	if ctx.mode == ModeR {
		return // promotions come from ACKs only
	}
	if ctx.state != StateSO && ctx.sent >= c.cfg.OptimismL {
		ctx.state++
		ctx.sent = 0
	}
}

func (c *Compressor) storeLast(ctx *compContext, info *pktInfo) {
	hdr := info.raw[:info.hdrLen]
	ctx.lastHdr = append(ctx.lastHdr[:0], hdr...)
	cp := *info
	cp.raw = ctx.lastHdr
	cp.payload = nil
	rebind := func(b []byte) []byte {
		if b == nil {
			return nil
		}
		off := offsetIn(info.raw, b)
		return ctx.lastHdr[off : off+len(b)]
	}
	cp.outerIP = rebind(info.outerIP)
	cp.innerIP = rebind(info.innerIP)
	cp.udp = rebind(info.udp)
	cp.rtp = rebind(info.rtp)
	cp.esp = rebind(info.esp)
	cp.tcp = rebind(info.tcp)
	ctx.info = &cp

	ctx.snWin.push(ctx.sn, uint32(ctx.sn))
	if info.innerIP != nil && !info.innerV6 && !ctx.ipidInner.rnd {
		ctx.ipidWin.push(ctx.sn, uint32(ctx.ipidInner.offset))
	}
	if ctx.profile == ProfileRTP {
		if ctx.ts.scaled {
			ctx.tsWin.push(ctx.sn, ctx.ts.scale(rtpHdr(info.rtp).timestamp()))
		} else {
			ctx.tsWin.push(ctx.sn, rtpHdr(info.rtp).timestamp())
		}
	}
	if ctx.mode != ModeR {
		// optimistic approach: the peer is presumed to have received one
		// of the last L transmissions, so older references stop costing bits
		ctx.snWin.trim(c.cfg.OptimismL)
		ctx.ipidWin.trim(c.cfg.OptimismL)
		ctx.tsWin.trim(c.cfg.OptimismL)
	}
	if ctx.profile != ProfileUncompressed {
		p := profileFor(ctx.profile)
		if p.hasUDP {
			ctx.udpChecksumUsed = udpHdr(info.udp).checksum() != 0
		}
	}
}

// offsetIn locates a sub-slice inside its backing slice.
func offsetIn(base, sub []byte) int {
	return int(uintptr(unsafe.Pointer(&sub[0])) - uintptr(unsafe.Pointer(&base[0])))
}
