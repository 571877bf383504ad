package rohc

import "encoding/binary"

// profile is the capability set of one compression profile.  Dispatch is by
// profile id; the generic UO-0/UO-1/UOR-2 engine in compressor.go and
// decompressor.go drives these hooks for every profile except Uncompressed
// and TCP, which take their own paths.
type profile struct {
	id int

	// classify reports whether the dissected packet belongs to this profile.
	classify func(info *pktInfo) bool

	// staticChain appends the flow-identifying fields.
	staticChain func(dst []byte, info *pktInfo) []byte

	// dynamicChain appends the reference snapshot of the changing fields.
	dynamicChain func(dst []byte, c *compContext, info *pktInfo) []byte

	// parseStaticChain rebuilds the header template inside d.
	parseStaticChain func(cur *cursor, d *decompContext) error

	// parseDynamicChain patches the template's dynamic fields.
	parseDynamicChain func(cur *cursor, d *decompContext) error

	hasRTP      bool
	hasUDP      bool // UDP or UDP-Lite present
	udpLite     bool
	hasESP      bool
	hasTCP      bool
	generatedSN bool // SN is a context counter, not taken from the packet
}

// profileOrder is the classification precedence: most specific first.
var profileOrder = []int{ProfileRTP, ProfileUDPLite, ProfileUDP, ProfileESP, ProfileTCP, ProfileIP}

func profileFor(id int) *profile {
	switch id {
	case ProfileUncompressed:
		return uncompressedProfile
	case ProfileRTP:
		return rtpProfile
	case ProfileUDP:
		return udpProfile
	case ProfileUDPLite:
		return udpLiteProfile
	case ProfileESP:
		return espProfile
	case ProfileIP:
		return ipOnlyProfile
	case ProfileTCP:
		return tcpProfile
	}
	return nil
}

// --- shared IP chain pieces ---------------------------------------------

// ipStaticChain appends the static part for the packet's IP headers, outer
// first.
func ipStaticChain(dst []byte, info *pktInfo) []byte {
	if info.outerIP != nil {
		dst = oneIPStatic(dst, info.outerIP, info.outerV6)
	}
	return oneIPStatic(dst, info.innerIP, info.innerV6)
}

func oneIPStatic(dst []byte, hdr []byte, v6 bool) []byte {
	if v6 {
		h := ipv6Hdr(hdr)
		flow := h.flowLabel()
		dst = append(dst, 0x60|byte(flow>>16)&0x0f, byte(flow>>8), byte(flow))
		dst = append(dst, h.nextHeader())
		dst = append(dst, h.src()...)
		return append(dst, h.dst()...)
	}
	h := ipv4Hdr(hdr)
	dst = append(dst, 0x40, h.protocol())
	dst = append(dst, h.src()...)
	return append(dst, h.dst()...)
}

// ipDynamicChain appends the dynamic part for the packet's IP headers.
func ipDynamicChain(dst []byte, c *compContext, info *pktInfo) []byte {
	if info.outerIP != nil {
		dst = oneIPDynamic(dst, info.outerIP, info.outerV6, c.ipidOuter)
	}
	return oneIPDynamic(dst, info.innerIP, info.innerV6, c.ipidInner)
}

func oneIPDynamic(dst []byte, hdr []byte, v6 bool, t *ipidTracker) []byte {
	if v6 {
		h := ipv6Hdr(hdr)
		return append(dst, h.trafficClass(), h.hopLimit())
	}
	h := ipv4Hdr(hdr)
	var flags byte
	if h.df() {
		flags |= 0x80
	}
	if t.nbo {
		flags |= 0x40
	}
	if t.rnd {
		flags |= 0x20
	}
	dst = append(dst, h.tos(), h.ttl(), byte(h.id()>>8), byte(h.id()), flags)
	return dst
}

// parseIPStatic consumes one IP static part and appends a template header.
func parseIPStatic(cur *cursor, d *decompContext) (off int, v6 bool, err error) {
	b0, err := cur.peekByte()
	if err != nil {
		return 0, false, err
	}
	off = len(d.template)
	if b0&0xf0 == 0x60 {
		raw, err := cur.read(3 + 1 + 16 + 16)
		if err != nil {
			return 0, false, err
		}
		hdr := make([]byte, ipv6Len)
		hdr[0] = 0x60
		flow := uint32(raw[0]&0x0f)<<16 | uint32(raw[1])<<8 | uint32(raw[2])
		hdr[1] = byte(flow >> 16 & 0x0f)
		hdr[2] = byte(flow >> 8)
		hdr[3] = byte(flow)
		hdr[6] = raw[3]
		copy(hdr[8:24], raw[4:20])
		copy(hdr[24:40], raw[20:36])
		d.template = append(d.template, hdr...)
		return off, true, nil
	}
	if b0&0xf0 != 0x40 {
		return 0, false, errPacketTooShort
	}
	raw, err := cur.read(2 + 4 + 4)
	if err != nil {
		return 0, false, err
	}
	hdr := make([]byte, ipv4MinLen)
	hdr[0] = 0x45
	hdr[9] = raw[1]
	copy(hdr[12:16], raw[2:6])
	copy(hdr[16:20], raw[6:10])
	d.template = append(d.template, hdr...)
	return off, false, nil
}

// parseIPDynamic consumes one IP dynamic part and patches the template
// header at off.
func parseIPDynamic(cur *cursor, d *decompContext, off int, v6 bool, t *ipidTracker) error {
	hdr := d.template[off:]
	if v6 {
		raw, err := cur.read(2)
		if err != nil {
			return err
		}
		tc := raw[0]
		hdr[0] = 0x60 | tc>>4
		hdr[1] = hdr[1]&0x0f | tc<<4
		hdr[7] = raw[1]
		return nil
	}
	raw, err := cur.read(5)
	if err != nil {
		return err
	}
	hdr[1] = raw[0]
	hdr[8] = raw[1]
	binary.BigEndian.PutUint16(hdr[4:], uint16(raw[2])<<8|uint16(raw[3]))
	if raw[4]&0x80 != 0 {
		hdr[6] = 0x40
	} else {
		hdr[6] = 0
	}
	t.nbo = raw[4]&0x40 != 0
	t.rnd = raw[4]&0x20 != 0
	return nil
}

// parseIPChainsStatic handles one or two IP static parts: a second part
// follows when the first announces an IP-in-IP payload.
func parseIPChainsStatic(cur *cursor, d *decompContext) error {
	off, v6, err := parseIPStatic(cur, d)
	if err != nil {
		return err
	}
	proto := ipNextProto(d.template[off:], v6)
	if proto == ipProtoIPIP || proto == ipProtoIPv6 {
		d.outerOff, d.outerV6 = off, v6
		off, v6, err = parseIPStatic(cur, d)
		if err != nil {
			return err
		}
	} else {
		d.outerOff = -1
	}
	d.innerOff, d.innerV6 = off, v6
	return nil
}

func parseIPChainsDynamic(cur *cursor, d *decompContext) error {
	if d.hasOuter() {
		if err := parseIPDynamic(cur, d, d.outerOff, d.outerV6, d.ipidOuter); err != nil {
			return err
		}
	}
	return parseIPDynamic(cur, d, d.innerOff, d.innerV6, d.ipidInner)
}

// innerIPProto reads the protocol above the inner IP header of the template.
func (d *decompContext) innerIPProto() byte {
	return ipNextProto(d.template[d.innerOff:], d.innerV6)
}
