package rohc

import "sync/atomic"

// Packet emitters.  Every builder starts with beginPacket, which places the
// CID per channel flavor: small CIDs as an Add-CID octet before the type
// octet, large CIDs SDVL-coded right after it.

func (c *Compressor) beginPacket(out []byte, cid int, typeOctet byte) []byte {
	if !c.largeCID {
		out = appendCIDPrefix(out, cid)
		return append(out, typeOctet)
	}
	out = append(out, typeOctet)
	enc, _ := sdvlAppend(nil, uint32(cid))
	return append(out, enc...)
}

// emitUncompressed sends profile 0x0000: IR until the context settles, then
// Normal packets carrying the datagram verbatim behind the CID.
func (c *Compressor) emitUncompressed(out []byte, ctx *compContext, info *pktInfo) ([]byte, error) {
	if ctx.state == StateIR {
		out = c.beginPacket(out, ctx.cid, typeIR) // D=0, no dynamic chain
		out = append(out, 0x00)                   // profile
		// profile 0 has no chains; the CRC-8 over zero octets is the
		// initial value
		out = append(out, crc8Init)
		out = append(out, info.raw...)
		ctx.sent++
		if ctx.mode != ModeR && ctx.sent >= c.cfg.OptimismL {
			ctx.state = StateFO
			ctx.sent = 0
		}
		atomic.AddUint64(&DefaultSnmp.IRSent, 1)
		return out, nil
	}
	out = c.beginPacket(out, ctx.cid, info.raw[0])
	out = append(out, info.raw[1:]...)
	atomic.AddUint64(&DefaultSnmp.UncompressedSent, 1)
	return out, nil
}

// emitIR sends the full static+dynamic chains under CRC-8.
func (c *Compressor) emitIR(out []byte, ctx *compContext, info *pktInfo, p *profile) ([]byte, error) {
	out = c.beginPacket(out, ctx.cid, typeIR|0x01) // D=1
	out = append(out, byte(p.id))
	crcIdx := len(out)
	out = append(out, 0)

	staticStart := len(out)
	out = p.staticChain(out, info)
	ctx.crcCache.update(out[staticStart:])
	dynStart := len(out)
	out = p.dynamicChain(out, ctx, info)
	out[crcIdx] = ctx.crcCache.sum(out[dynStart:])

	out = append(out, info.payload...)
	ctx.sinceIR = 0
	ctx.sinceFO = 0
	c.noteChainsSent(ctx, p)
	atomic.AddUint64(&DefaultSnmp.IRSent, 1)
	return out, nil
}

// noteChainsSent records what the dynamic chain just told the peer.
func (c *Compressor) noteChainsSent(ctx *compContext, p *profile) {
	if p.hasRTP && ctx.ts.scaled {
		ctx.tsStrideSignaled = ctx.ts.stride
	}
	ctx.ipidOuterSignaled = ctx.ipidOuter.offset
}

// emitIRDyn refreshes the dynamic chain only.
func (c *Compressor) emitIRDyn(out []byte, ctx *compContext, info *pktInfo, p *profile) ([]byte, error) {
	out = c.beginPacket(out, ctx.cid, typeIRDYN)
	out = append(out, byte(p.id))
	crcIdx := len(out)
	out = append(out, 0)

	dynStart := len(out)
	out = p.dynamicChain(out, ctx, info)
	out[crcIdx] = crc8(out[dynStart:], crc8Init)

	out = append(out, info.payload...)
	ctx.sinceFO = 0
	c.noteChainsSent(ctx, p)
	atomic.AddUint64(&DefaultSnmp.IRDynSent, 1)
	return out, nil
}

// selectFormat picks the cheapest SO packet able to carry this packet's
// field deltas, or fmtNone when only a dynamic refresh can.
func (c *Compressor) selectFormat(ctx *compContext, info *pktInfo, p *profile) uoFormat {
	kSN := ctx.snWin.width(uint32(ctx.sn))

	innerV4Seq := info.innerIP != nil && !info.innerV6 && !ctx.ipidInner.rnd
	ipidInferable := true
	kIPID := uint(0)
	if innerV4Seq {
		ipidInferable = ctx.snWin.count > 0 && ctx.ipidWin.allEqual(uint32(ctx.ipidInner.offset))
		kIPID = ctx.ipidWin.width(uint32(ctx.ipidInner.offset))
	}
	// an outer random IP-ID travels verbatim in the remainder; an outer
	// sequential one is only refreshed by chains, so it must be inferable
	if info.outerIP != nil && !info.outerV6 && !ctx.ipidOuter.rnd {
		if ctx.ipidOuter.offset != ctx.ipidOuterSignaled {
			return fmtNone
		}
	}

	if p.hasTCP {
		if kSN <= 5 {
			return fmtUOR2
		}
		return fmtNone
	}

	if !p.hasRTP {
		switch {
		case kSN <= 4 && ipidInferable:
			return fmtUO0
		case innerV4Seq && kSN <= 5 && kIPID <= 6:
			return fmtUO1
		case kSN <= 5 && ipidInferable:
			return fmtUOR2
		case kSN <= 8 && (!innerV4Seq || kIPID <= 3):
			return fmtUOR2 // with EXT-0
		}
		return fmtNone
	}

	// RTP: TS handling
	r := rtpHdr(info.rtp)
	m := r.marker()
	lastM := ctx.info != nil && rtpHdr(ctx.info.rtp).marker()

	tsVal := r.timestamp()
	scaled := ctx.ts.scaled
	if scaled {
		tsVal = ctx.ts.scale(tsVal)
	}
	tsInferable := scaled && ctx.tsWin.predicts(ctx.sn, tsVal)
	kTS := ctx.tsWin.width(tsVal)

	if innerV4Seq {
		switch {
		case kSN <= 4 && tsInferable && ipidInferable && m == lastM:
			return fmtUO0
		case kSN <= 4 && tsInferable && kIPID <= 5 && m == lastM:
			return fmtUO1ID
		case kSN <= 4 && kTS <= 5 && ipidInferable:
			return fmtUO1TS
		case kSN <= 6 && tsInferable && kIPID <= 5:
			return fmtUOR2ID
		case kSN <= 6 && kTS <= 5 && ipidInferable:
			return fmtUOR2TS
		case kSN <= 9 && tsInferable && kIPID <= 8:
			return fmtUOR2ID // with EXT-0
		}
		return fmtNone
	}

	switch {
	case kSN <= 4 && tsInferable && m == lastM:
		return fmtUO0
	case kSN <= 4 && kTS <= 6:
		return fmtUO1
	case kSN <= 6 && kTS <= 6:
		return fmtUOR2
	}
	return fmtNone
}

// emitUO serializes the chosen SO format, its extension and the remainder.
func (c *Compressor) emitUO(out []byte, ctx *compContext, info *pktInfo, p *profile, f uoFormat) ([]byte, error) {
	hdr := info.raw[:info.hdrLen]
	c3 := crc3(hdr, crc3Init)
	c7 := crc7(hdr, crc7Init)
	sn := ctx.sn

	var m byte
	var tsVal uint32
	if p.hasRTP {
		r := rtpHdr(info.rtp)
		if r.marker() {
			m = 1
		}
		tsVal = r.timestamp()
		if ctx.ts.scaled {
			tsVal = ctx.ts.scale(tsVal)
		}
	}
	ipidOff := uint32(ctx.ipidInner.offset)

	switch f {
	case fmtUO0:
		out = c.beginPacket(out, ctx.cid, byte(sn&0x0f)<<3|c3)
		atomic.AddUint64(&DefaultSnmp.UO0Sent, 1)

	case fmtUO1:
		if p.hasRTP {
			out = c.beginPacket(out, ctx.cid, typeUO1|byte(tsVal&0x3f))
			out = append(out, m<<7|byte(sn&0x0f)<<3|c3)
		} else {
			out = c.beginPacket(out, ctx.cid, typeUO1|byte(ipidOff&0x3f))
			out = append(out, byte(sn&0x1f)<<3|c3)
		}
		atomic.AddUint64(&DefaultSnmp.UO1Sent, 1)

	case fmtUO1ID:
		out = c.beginPacket(out, ctx.cid, typeUO1|byte(ipidOff&0x1f))
		out = append(out, byte(sn&0x0f)<<3|c3)
		atomic.AddUint64(&DefaultSnmp.UO1Sent, 1)

	case fmtUO1TS:
		out = c.beginPacket(out, ctx.cid, typeUO1|0x20|byte(tsVal&0x1f))
		out = append(out, m<<7|byte(sn&0x0f)<<3|c3)
		atomic.AddUint64(&DefaultSnmp.UO1Sent, 1)

	case fmtUOR2:
		if p.hasTCP {
			out = c.beginPacket(out, ctx.cid, typeUOR2|byte(sn&0x1f))
			out = append(out, c7)
			out = c.appendTCPBody(out, ctx, info)
			atomic.AddUint64(&DefaultSnmp.UOR2Sent, 1)
			return append(out, info.payload...), nil
		}
		if p.hasRTP {
			out = c.beginPacket(out, ctx.cid, typeUOR2|byte(tsVal>>1&0x1f))
			out = append(out, byte(tsVal&0x01)<<7|m<<6|byte(sn&0x3f), c7)
			atomic.AddUint64(&DefaultSnmp.UOR2Sent, 1)
			break
		}
		// non-RTP: EXT-0 widens SN to 8 bits and carries 3 IP-ID bits
		kSN := ctx.snWin.width(uint32(sn))
		innerV4Seq := info.innerIP != nil && !info.innerV6 && !ctx.ipidInner.rnd
		needExt := kSN > 5 || (innerV4Seq && !ctx.ipidWin.allEqual(ipidOff))
		if !needExt {
			out = c.beginPacket(out, ctx.cid, typeUOR2|byte(sn&0x1f))
			out = append(out, c7) // X=0
		} else {
			out = c.beginPacket(out, ctx.cid, typeUOR2|byte(sn>>3&0x1f))
			out = append(out, 0x80|c7)
			out = appendExt0(out, byte(sn&0x07), byte(ipidOff&0x07))
		}
		atomic.AddUint64(&DefaultSnmp.UOR2Sent, 1)

	case fmtUOR2ID:
		kSN := ctx.snWin.width(uint32(sn))
		kIPID := ctx.ipidWin.width(ipidOff)
		if kSN <= 6 && kIPID <= 5 {
			out = c.beginPacket(out, ctx.cid, typeUOR2|byte(ipidOff&0x1f))
			out = append(out, m<<6|byte(sn&0x3f), c7) // T=0, X=0
		} else {
			out = c.beginPacket(out, ctx.cid, typeUOR2|byte(ipidOff>>3&0x1f))
			out = append(out, m<<6|byte(sn>>3&0x3f), 0x80|c7)
			out = appendExt0(out, byte(sn&0x07), byte(ipidOff&0x07))
		}
		atomic.AddUint64(&DefaultSnmp.UOR2Sent, 1)

	case fmtUOR2TS:
		out = c.beginPacket(out, ctx.cid, typeUOR2|byte(tsVal&0x1f))
		out = append(out, 0x80|m<<6|byte(sn&0x3f), c7) // T=1, X=0
		atomic.AddUint64(&DefaultSnmp.UOR2Sent, 1)
	}

	return c.finishUO(out, ctx, info, p)
}

// finishUO appends the per-packet remainder: random IP-IDs verbatim, then
// the UDP checksum family.
func (c *Compressor) finishUO(out []byte, ctx *compContext, info *pktInfo, p *profile) ([]byte, error) {
	if info.outerIP != nil && !info.outerV6 && ctx.ipidOuter.rnd {
		id := ipv4Hdr(info.outerIP).id()
		out = append(out, byte(id>>8), byte(id))
	}
	if info.innerIP != nil && !info.innerV6 && ctx.ipidInner.rnd {
		id := ipv4Hdr(info.innerIP).id()
		out = append(out, byte(id>>8), byte(id))
	}
	if p.udpLite {
		u := udpHdr(info.udp)
		out = append(out,
			byte(u.coverage()>>8), byte(u.coverage()),
			byte(u.checksum()>>8), byte(u.checksum()))
	} else if p.hasUDP && ctx.udpChecksumUsed {
		ck := udpHdr(info.udp).checksum()
		out = append(out, byte(ck>>8), byte(ck))
	}
	return append(out, info.payload...), nil
}

// appendTCPBody emits the presence-flagged TCP field set.
func (c *Compressor) appendTCPBody(out []byte, ctx *compContext, info *pktInfo) []byte {
	cur := tcpHdr(info.tcp)
	last := tcpHdr(ctx.info.tcp)
	var lastID, curID uint16
	innerV4 := !info.innerV6
	if innerV4 {
		curID = ipv4Hdr(info.innerIP).id()
		lastID = ipv4Hdr(ctx.info.innerIP).id()
	}
	fl := tcpChanges(last, cur, lastID, curID, innerV4)
	return appendTCPCo(out, fl, cur, curID)
}
