// Package rohc implements the RObust Header Compression (ROHC) version 1
// framework of RFC 3095 together with the IP-only (RFC 3843), UDP, UDP-Lite
// (RFC 4019), RTP, ESP and TCP (RFC 6846, staged) profiles.
//
// The package contains a Compressor and a Decompressor, each owning a bounded
// table of per-flow contexts keyed by CID.  Both halves are synchronous and
// single-threaded; a pair used in opposite directions shares no state and may
// live on different goroutines.
package rohc

// ROHC profile identifiers, as carried in IR packets.
const (
	ProfileUncompressed = 0x0000
	ProfileRTP          = 0x0001
	ProfileUDP          = 0x0002
	ProfileESP          = 0x0003
	ProfileIP           = 0x0004
	ProfileTCP          = 0x0006
	ProfileUDPLite      = 0x0008
)

// Operating modes of a ROHC channel, RFC 3095 section 4.4.
const (
	ModeU = 1 // unidirectional
	ModeO = 2 // bidirectional optimistic
	ModeR = 3 // bidirectional reliable
)

// Compressor context states, RFC 3095 section 4.3.1.
const (
	StateIR = iota + 1
	StateFO
	StateSO
)

// Decompressor context states, RFC 3095 section 4.3.2.
const (
	StateNC = iota + 1
	StateSC
	StateFC
)

// Default protocol parameters.  The RFC leaves most of these to the
// implementation; Config can override every one of them.
const (
	ROHC_OPTIMISM_L    = 4    // transmissions before an optimistic upgrade
	ROHC_IR_TIMEOUT    = 1700 // packets between periodic IR refreshes
	ROHC_FO_TIMEOUT    = 700  // packets between periodic FO refreshes
	ROHC_WLSB_WIDTH    = 16   // compressor W-LSB window entries
	ROHC_RND_THRESHOLD = 4    // non-monotonic IP-IDs before RND=1
	ROHC_TS_STRIDE_OBS = 3    // equal TS deltas before scaled mode
	ROHC_CRC_K1        = 2    // FC->SC after k1 failures out of n1
	ROHC_CRC_N1        = 8
	ROHC_CRC_K2        = 2 // SC->NC after k2 failures out of n2
	ROHC_CRC_N2        = 8
	ROHC_REPAIR_TRIES  = 2 // candidate v_ref corrections per failure
	ROHC_MAX_CID_SMALL = 15
	ROHC_MAX_CID_LARGE = 16383
)

// CID space selector.
const (
	CIDTypeSmall = iota // 0..15, Add-CID octet
	CIDTypeLarge        // 0..16383, SDVL encoded
)

// Status reports the outcome of a Compress/Decompress/DeliverFeedback call.
type Status int

const (
	StatusOK Status = iota
	StatusNoContext
	StatusSegment // decompressor swallowed a non-final segment
	StatusMalformed
	StatusCRCFailure
	StatusProfileUnsupported
	StatusFeedbackOnly // packet carried feedback and no compressed header
	StatusInternal
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusNoContext:
		return "NO_CONTEXT"
	case StatusSegment:
		return "SEGMENT"
	case StatusMalformed:
		return "PACKET_MALFORMED"
	case StatusCRCFailure:
		return "CRC_FAILURE"
	case StatusProfileUnsupported:
		return "PROFILE_UNSUPPORTED"
	case StatusFeedbackOnly:
		return "FEEDBACK_ONLY"
	case StatusInternal:
		return "INTERNAL_ERROR"
	}
	return "UNKNOWN"
}

// Packet type octet discriminators, RFC 3095 section 5.2.
const (
	typePadding     = 0xe0 // also Add-CID with CID 0 is never emitted
	typeAddCIDMask  = 0xf0
	typeAddCID      = 0xe0 // 1110 xxxx, xxxx = CID 1..15
	typeFeedback    = 0xf0 // 11110 xxx
	typeIRMask      = 0xfe
	typeIR          = 0xfc // 1111 110x, x = D bit
	typeIRDYN       = 0xf8
	typeSegmentMask = 0xfe
	typeSegment     = 0xfe // 1111 111x, x = final bit
	typeUO0Mask     = 0x80 // 0xxxxxxx
	typeUO1Mask     = 0xc0
	typeUO1         = 0x80 // 10xxxxxx
	typeUOR2Mask    = 0xe0
	typeUOR2        = 0xc0 // 110xxxxx
)

// mode bits as carried in FEEDBACK-2 and EXT-3
func modeValid(m byte) bool { return m >= ModeU && m <= ModeR }

// _sndiff16 interprets the distance between two modular sequence numbers
// as a signed quantity.
func _sndiff16(later, earlier uint16) int16 {
	return int16(later - earlier)
}
