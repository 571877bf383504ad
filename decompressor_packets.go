package rohc

import "sync/atomic"

// uoDecoded is the field set parsed from a UO-0/UO-1/UOR-2 base header and
// its extension, before W-LSB resolution.
type uoDecoded struct {
	snBits uint16
	snK    uint

	m      bool
	mValid bool

	tsBits  uint32
	tsK     uint
	tsInfer bool

	ipidBits  uint32
	ipidK     uint
	ipidInfer bool

	crc     byte
	crcBits int

	ext *ext3
}

// decodeUO handles every compressed (non-chain) packet type.
func (d *Decompressor) decodeUO(res *DecompressResult, cur *cursor, cid int, typeOctet byte) {
	ctx := d.slots[cid]
	if ctx == nil || ctx.state == StateNC {
		res.Status = StatusNoContext
		res.Feedback = d.nackStatic(cid)
		return
	}

	if ctx.profile == ProfileUncompressed {
		out := append(d.buf[:0], typeOctet)
		out = append(out, cur.rest()...)
		d.buf = out[:0]
		res.Packet = out
		d.lru.touch(cid)
		atomic.AddUint64(&DefaultSnmp.Decompressed, 1)
		return
	}

	if ctx.state == StateSC {
		// only chain-carrying packets can rebuild a static-only context;
		// the miss still counts toward the SC -> NC rule
		d.crcFailed(res, ctx)
		res.Status = StatusNoContext
		if res.Feedback == nil {
			res.Feedback = d.nack(ctx, fbNack)
		}
		return
	}

	p := profileFor(ctx.profile)
	dec, err := d.parseUO(cur, ctx, p, typeOctet)
	if err != nil {
		d.malformed(res)
		return
	}

	// TCP carries its own presence-flagged body instead of the generic
	// remainder
	var tcpBody []byte
	if p.hasTCP {
		start := cur.offset()
		var scratch [tcpMinLen]byte
		if _, _, err := readTCPCo(cur, scratch[:]); err != nil {
			d.malformed(res)
			return
		}
		tcpBody = cur.buf[start:cur.offset()]
	}

	// remainder: random IP-IDs verbatim, then the UDP checksum family
	var outerID, innerID uint16
	outerIDSet, innerIDSet := false, false
	if ctx.hasOuter() && !ctx.outerV6 && ctx.ipidOuter.rnd {
		if outerID, err = cur.readUint16(); err != nil {
			d.malformed(res)
			return
		}
		outerIDSet = true
	}
	if ctx.innerOff >= 0 && !ctx.innerV6 && ctx.ipidInner.rnd && !p.hasTCP {
		if innerID, err = cur.readUint16(); err != nil {
			d.malformed(res)
			return
		}
		innerIDSet = true
	}
	var udpCk, udpCov uint16
	if p.udpLite {
		if udpCov, err = cur.readUint16(); err != nil {
			d.malformed(res)
			return
		}
		if udpCk, err = cur.readUint16(); err != nil {
			d.malformed(res)
			return
		}
	} else if p.hasUDP && ctx.udpChecksumUsed {
		if udpCk, err = cur.readUint16(); err != nil {
			d.malformed(res)
			return
		}
	}
	payload := cur.rest()

	// resolve W-LSB fields against the reference, verify, then retry with
	// slipped references (RFC 3095 section 5.3.2.2.4) before giving up
	refs := []uint16{ctx.refSN}
	if dec.snK < 16 {
		slip := uint16(1) << dec.snK
		refs = append(refs, ctx.refSN+slip, ctx.refSN-slip)
	}
	tries := d.cfg.RepairTries + 1
	if tries > len(refs) {
		tries = len(refs)
	}

	type attempt struct {
		ref     uint16
		useHint bool
	}
	attempts := make([]attempt, 0, 4)
	for i := 0; i < tries; i++ {
		attempts = append(attempts, attempt{ref: refs[i]})
	}
	// timer-based TS interpolation: after a long silent gap the SN-linear
	// inference is wrong, the wall clock projection is not
	if d.clock != nil && p.hasRTP && dec.tsInfer && ctx.tsScaled {
		attempts = append(attempts, attempt{ref: ctx.refSN, useHint: true})
	}

	for i, a := range attempts {
		out, probe, ok := d.tryDecode(ctx, p, dec, a.ref, a.useHint, outerID, outerIDSet, innerID, innerIDSet, udpCk, udpCov, tcpBody, payload)
		if !ok {
			continue
		}
		if i > 0 {
			atomic.AddUint64(&DefaultSnmp.CRCRepairs, 1)
			Logf(DEBUG, "cid %d: reference repair succeeded on attempt %d", cid, i)
		}
		d.commit(ctx, probe)
		d.lru.touch(cid)
		res.Packet = out
		atomic.AddUint64(&DefaultSnmp.Decompressed, 1)
		if ctx.mode == ModeR {
			atomic.AddUint64(&DefaultSnmp.FeedbackSent, 1)
			res.Feedback = appendFeedback2(nil, ctx.cid, d.largeCID, fbAck, byte(ctx.mode), ctx.refSN, true)
		}
		return
	}

	atomic.AddUint64(&DefaultSnmp.CRCFailures, 1)
	d.crcFailed(res, ctx)
}

// parseUO reads the base header octets and the optional extension.
func (d *Decompressor) parseUO(cur *cursor, ctx *decompContext, p *profile, typeOctet byte) (*uoDecoded, error) {
	dec := &uoDecoded{}
	innerV4Seq := ctx.innerOff >= 0 && !ctx.innerV6 && !ctx.ipidInner.rnd

	switch classify(typeOctet) {
	case pktUO0:
		dec.snBits = uint16(typeOctet >> 3 & 0x0f)
		dec.snK = 4
		dec.crc = typeOctet & 0x07
		dec.crcBits = 3
		dec.tsInfer = true
		dec.ipidInfer = true
		return dec, nil

	case pktUO1:
		b1, err := cur.readByte()
		if err != nil {
			return nil, err
		}
		dec.crc = b1 & 0x07
		dec.crcBits = 3
		if !p.hasRTP {
			dec.ipidBits = uint32(typeOctet & 0x3f)
			dec.ipidK = 6
			dec.snBits = uint16(b1 >> 3 & 0x1f)
			dec.snK = 5
			return dec, nil
		}
		dec.snBits = uint16(b1 >> 3 & 0x0f)
		dec.snK = 4
		if innerV4Seq {
			if typeOctet&0x20 == 0 { // UO-1-ID
				dec.ipidBits = uint32(typeOctet & 0x1f)
				dec.ipidK = 5
				dec.tsInfer = true
			} else { // UO-1-TS
				dec.tsBits = uint32(typeOctet & 0x1f)
				dec.tsK = 5
				dec.ipidInfer = true
				dec.m = b1&0x80 != 0
				dec.mValid = true
			}
			return dec, nil
		}
		dec.tsBits = uint32(typeOctet & 0x3f)
		dec.tsK = 6
		dec.m = b1&0x80 != 0
		dec.mValid = true
		return dec, nil
	}

	// UOR-2 family
	if p.hasTCP {
		dec.snBits = uint16(typeOctet & 0x1f)
		dec.snK = 5
		b1, err := cur.readByte()
		if err != nil {
			return nil, err
		}
		dec.crc = b1 & 0x7f
		dec.crcBits = 7
		return dec, nil
	}

	if !p.hasRTP {
		b1, err := cur.readByte()
		if err != nil {
			return nil, err
		}
		dec.crc = b1 & 0x7f
		dec.crcBits = 7
		dec.snBits = uint16(typeOctet & 0x1f)
		dec.snK = 5
		dec.ipidInfer = true
		if b1&0x80 != 0 {
			typ, e, snExt, tExt, _, err := readExtension(cur)
			if err != nil {
				return nil, err
			}
			switch typ {
			case extType0:
				dec.snBits = dec.snBits<<3 | uint16(snExt)
				dec.snK = 8
				if innerV4Seq {
					dec.ipidBits = uint32(tExt)
					dec.ipidK = 3
					dec.ipidInfer = false
				}
			case extType3:
				dec.ext = e
				d.applyExt3SN(dec, e)
			default:
				return nil, errPacketTooShort
			}
		}
		return dec, nil
	}

	b1, err := cur.readByte()
	if err != nil {
		return nil, err
	}
	b2, err := cur.readByte()
	if err != nil {
		return nil, err
	}
	dec.crc = b2 & 0x7f
	dec.crcBits = 7
	dec.m = b1&0x40 != 0
	dec.mValid = true
	dec.snBits = uint16(b1 & 0x3f)
	dec.snK = 6

	if innerV4Seq {
		if b1&0x80 == 0 { // UOR-2-ID
			dec.ipidBits = uint32(typeOctet & 0x1f)
			dec.ipidK = 5
			dec.tsInfer = true
		} else { // UOR-2-TS
			dec.tsBits = uint32(typeOctet & 0x1f)
			dec.tsK = 5
			dec.ipidInfer = true
		}
	} else {
		dec.tsBits = uint32(typeOctet&0x1f)<<1 | uint32(b1>>7)
		dec.tsK = 6
		dec.ipidInfer = true
	}

	if b2&0x80 != 0 {
		typ, e, snExt, tExt, _, err := readExtension(cur)
		if err != nil {
			return nil, err
		}
		switch typ {
		case extType0:
			dec.snBits = dec.snBits<<3 | uint16(snExt)
			dec.snK += 3
			if dec.ipidK > 0 {
				dec.ipidBits = dec.ipidBits<<3 | uint32(tExt)
				dec.ipidK += 3
			}
		case extType3:
			dec.ext = e
			d.applyExt3SN(dec, e)
		default:
			return nil, errPacketTooShort
		}
	}
	return dec, nil
}

// applyExt3SN folds the EXT-3 SN MSBs into the decoded field.
func (d *Decompressor) applyExt3SN(dec *uoDecoded, e *ext3) {
	if e.s {
		dec.snBits |= uint16(e.sn) << dec.snK
		dec.snK += 8
	}
	if e.rts {
		dec.tsBits = e.ts
		dec.tsK = 32
		dec.tsInfer = false
	}
	if e.i {
		dec.ipidBits = uint32(e.inner.ipid)
		dec.ipidK = 16
		dec.ipidInfer = false
	}
}

// tryDecode resolves fields against ref, rebuilds the packet and checks the
// CRC.  On success the returned probe context carries the advanced state.
func (d *Decompressor) tryDecode(ctx *decompContext, p *profile, dec *uoDecoded, ref uint16, clockHint bool,
	outerID uint16, outerIDSet bool, innerID uint16, innerIDSet bool,
	udpCk, udpCov uint16, tcpBody, payload []byte) ([]byte, *decompContext, bool) {

	sn, err := lsbDecode16(dec.snBits, dec.snK, ref, pSN)
	if err != nil {
		return nil, nil, false
	}

	probe := d.cloneContext(ctx)
	probe.sn = sn

	if e := dec.ext; e != nil {
		d.applyExt3State(probe, e)
	}

	tmpl := probe.template

	// timestamps
	var ts uint32
	if p.hasRTP {
		snDelta := uint32(int32(_sndiff16(sn, ctx.refSN)))
		switch {
		case dec.tsK > 0 && probe.tsScaled:
			refScaled := (ctx.refTS - probe.tsOffset) / probe.tsStride
			scaled, err := lsbDecode32(dec.tsBits, dec.tsK, refScaled, pTS)
			if err != nil {
				return nil, nil, false
			}
			ts = scaled*probe.tsStride + probe.tsOffset
		case dec.tsK > 0:
			v, err := lsbDecode32(dec.tsBits, dec.tsK, ctx.refTS, pTS)
			if err != nil {
				return nil, nil, false
			}
			ts = v
		case probe.tsScaled && clockHint:
			elapsed := d.clock() - ctx.lastClock
			refScaled := (ctx.refTS - probe.tsOffset) / probe.tsStride
			ts = (refScaled+(elapsed+probe.tsStride/2)/probe.tsStride)*probe.tsStride + probe.tsOffset
		case probe.tsScaled:
			refScaled := (ctx.refTS - probe.tsOffset) / probe.tsStride
			ts = (refScaled+snDelta)*probe.tsStride + probe.tsOffset
		default:
			ts = ctx.refTS
		}
		probe.refTS = ts
		if d.clock != nil {
			probe.lastClock = d.clock()
		}

		m := dec.m
		if !dec.mValid {
			m = rtpHdr(tmpl[probe.rtpOff:]).marker()
		}
		patchRTP(tmpl[probe.rtpOff:], m, sn, ts)
	}

	// IP-IDs
	if probe.innerOff >= 0 && !probe.innerV6 && !p.hasTCP {
		var wire uint16
		switch {
		case probe.ipidInner.rnd:
			if !innerIDSet {
				return nil, nil, false
			}
			wire = innerID
		case dec.ipidK > 0:
			off, err := lsbDecode16(uint16(dec.ipidBits), dec.ipidK, probe.ipidOffInner, pIPID)
			if err != nil {
				return nil, nil, false
			}
			probe.ipidOffInner = off
			wire = probe.ipidInner.wireValue(sn + off)
		default:
			wire = probe.ipidInner.wireValue(sn + probe.ipidOffInner)
		}
		hdr := tmpl[probe.innerOff:]
		hdr[4] = byte(wire >> 8)
		hdr[5] = byte(wire)
	}
	if probe.hasOuter() && !probe.outerV6 {
		var wire uint16
		if probe.ipidOuter.rnd {
			if !outerIDSet {
				return nil, nil, false
			}
			wire = outerID
		} else {
			wire = probe.ipidOuter.wireValue(sn + probe.ipidOffOuter)
		}
		hdr := tmpl[probe.outerOff:]
		hdr[4] = byte(wire >> 8)
		hdr[5] = byte(wire)
	}

	// transport layers
	switch {
	case p.hasTCP:
		hdr := tmpl[probe.transOff:]
		ipid, ipidSet, err := readTCPCo(newCursor(tcpBody), hdr)
		if err != nil {
			return nil, nil, false
		}
		if ipidSet && probe.innerOff >= 0 && !probe.innerV6 {
			ih := tmpl[probe.innerOff:]
			ih[4] = byte(ipid >> 8)
			ih[5] = byte(ipid)
		}
		probe.tcpSeq = tcpHdr(hdr).seq()
		probe.tcpAck = tcpHdr(hdr).ack()
	case p.hasESP:
		esp := ctx.espSN + uint32(int32(_sndiff16(sn, uint16(ctx.espSN))))
		probe.espSN = esp
		patchESP(tmpl[probe.transOff:], esp)
	case p.udpLite:
		patchUDPLite(tmpl[probe.transOff:], udpCov, udpCk)
	case p.hasUDP && probe.udpChecksumUsed:
		hdr := tmpl[probe.transOff:]
		hdr[6] = byte(udpCk >> 8)
		hdr[7] = byte(udpCk)
	}

	probe.refSN = sn

	out := d.assembleInto(probe, tmpl, payload)

	var got byte
	if dec.crcBits == 3 {
		got = crc3(out[:len(tmpl)], crc3Init)
	} else {
		got = crc7(out[:len(tmpl)], crc7Init)
	}
	if got != dec.crc {
		return nil, nil, false
	}
	return out, probe, true
}

// applyExt3State folds the context-mutating EXT-3 content into the probe.
func (d *Decompressor) applyExt3State(probe *decompContext, e *ext3) {
	if e.ip {
		hdr := probe.template[probe.innerOff:]
		if !probe.innerV6 {
			if e.inner.tosSet {
				hdr[1] = e.inner.tos
			}
			if e.inner.ttlSet {
				hdr[8] = e.inner.ttl
			}
			probe.ipidInner.nbo = e.inner.nbo
			probe.ipidInner.rnd = e.inner.rnd
		}
	}
	if e.ip2 && probe.hasOuter() && !probe.outerV6 {
		hdr := probe.template[probe.outerOff:]
		if e.outer.tosSet {
			hdr[1] = e.outer.tos
		}
		if e.outer.ttlSet {
			hdr[8] = e.outer.ttl
		}
		if e.outer.ipidSet {
			hdr[4] = byte(e.outer.ipid >> 8)
			hdr[5] = byte(e.outer.ipid)
		}
	}
	if e.rtp {
		if modeValid(e.mode) {
			probe.mode = int(e.mode)
		}
		if e.ptSet && probe.rtpOff >= 0 {
			hdr := probe.template[probe.rtpOff:]
			hdr[1] = hdr[1]&0x80 | e.pt&0x7f
		}
		if e.tssSet {
			probe.tsStride = e.tsStride
			probe.tsScaled = e.tsStride != 0
			if probe.tsScaled {
				probe.tsOffset = probe.refTS % probe.tsStride
			}
		}
	}
}

// commit installs a successfully verified probe as the live context.
func (d *Decompressor) commit(ctx, probe *decompContext) {
	probe.markCRC(true, d.cfg.CRCWindowN1)
	d.adopt(ctx, probe)
}

// assembleInto builds the final packet from a patched template, fixing the
// per-packet length and checksum fields.
func (d *Decompressor) assembleInto(ctx *decompContext, tmpl, payload []byte) []byte {
	out := append(d.buf[:0], tmpl...)
	out = append(out, payload...)
	d.buf = out[:0]

	if ctx.innerOff >= 0 {
		if ctx.innerV6 {
			patchIPv6(out[ctx.innerOff:], uint16(len(out)-ctx.innerOff-ipv6Len))
		} else {
			hdr := ipv4Hdr(out[ctx.innerOff:])
			patchIPv4(out[ctx.innerOff:], hdr.id(), uint16(len(out)-ctx.innerOff))
		}
	}
	if ctx.hasOuter() {
		if ctx.outerV6 {
			patchIPv6(out[ctx.outerOff:], uint16(len(out)-ctx.outerOff-ipv6Len))
		} else {
			hdr := ipv4Hdr(out[ctx.outerOff:])
			patchIPv4(out[ctx.outerOff:], hdr.id(), uint16(len(out)-ctx.outerOff))
		}
	}
	if ctx.transOff >= 0 && ctx.innerIPProto() == ipProtoUDP && !ctx.udpLite {
		hdr := udpHdr(out[ctx.transOff:])
		patchUDP(out[ctx.transOff:], uint16(len(out)-ctx.transOff), hdr.checksum())
	}
	return out
}

// assemble is the chain-path variant: the template is already current.
func (d *Decompressor) assemble(ctx *decompContext, payload []byte) []byte {
	return d.assembleInto(ctx, ctx.template, payload)
}
