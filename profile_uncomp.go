package rohc

// Uncompressed profile 0x0000, RFC 3095 section 5.10.  The IR packet
// establishes the context; every later packet travels verbatim behind the
// CID ("Normal" packets).

var uncompressedProfile = &profile{
	id:       ProfileUncompressed,
	classify: func(info *pktInfo) bool { return true },
	staticChain: func(dst []byte, info *pktInfo) []byte {
		return dst
	},
	dynamicChain: func(dst []byte, c *compContext, info *pktInfo) []byte {
		return dst
	},
	parseStaticChain: func(cur *cursor, d *decompContext) error {
		d.outerOff = -1
		d.innerOff = -1
		d.transOff = -1
		d.rtpOff = -1
		return nil
	},
	parseDynamicChain: func(cur *cursor, d *decompContext) error {
		return nil
	},
}
