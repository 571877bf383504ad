// Header field patching for reconstructed packets.
//
// The decompressor rebuilds a packet by copying the context's header template
// and overwriting the fields a compressed packet updates.  The patchers below
// use BCE (Bounds Check Elimination) hints so the slice bounds check happens
// once per call; binary.BigEndian.PutUintXX compiles to bare MOVs on
// amd64/arm64.

package rohc

import "encoding/binary"

// patchIPv4 rewrites identification and total length, then restores the
// header checksum.  Caller MUST ensure len(hdr) >= ipv4MinLen.
func patchIPv4(hdr []byte, id, totalLen uint16) {
	_ = hdr[ipv4MinLen-1] // BCE hint
	binary.BigEndian.PutUint16(hdr[2:], totalLen)
	binary.BigEndian.PutUint16(hdr[4:], id)
	binary.BigEndian.PutUint16(hdr[10:], 0)
	binary.BigEndian.PutUint16(hdr[10:], ipv4Checksum(hdr[:ipv4MinLen]))
}

// patchIPv6 rewrites the payload length.  Caller MUST ensure len(hdr) >= ipv6Len.
func patchIPv6(hdr []byte, payloadLen uint16) {
	_ = hdr[ipv6Len-1] // BCE hint
	binary.BigEndian.PutUint16(hdr[4:], payloadLen)
}

// patchUDP rewrites length and checksum.  For UDP-Lite the length slot holds
// the checksum coverage and is left to patchUDPLite.
func patchUDP(hdr []byte, length, checksum uint16) {
	_ = hdr[udpLen-1] // BCE hint
	binary.BigEndian.PutUint16(hdr[4:], length)
	binary.BigEndian.PutUint16(hdr[6:], checksum)
}

func patchUDPLite(hdr []byte, coverage, checksum uint16) {
	_ = hdr[udpLen-1] // BCE hint
	binary.BigEndian.PutUint16(hdr[4:], coverage)
	binary.BigEndian.PutUint16(hdr[6:], checksum)
}

// patchRTP rewrites marker, sequence number and timestamp.
func patchRTP(hdr []byte, marker bool, seq uint16, ts uint32) {
	_ = hdr[rtpMinLen-1] // BCE hint
	if marker {
		hdr[1] |= 0x80
	} else {
		hdr[1] &^= 0x80
	}
	binary.BigEndian.PutUint16(hdr[2:], seq)
	binary.BigEndian.PutUint32(hdr[4:], ts)
}

// patchESP rewrites the sequence number.
func patchESP(hdr []byte, sn uint32) {
	_ = hdr[espMinLen-1] // BCE hint
	binary.BigEndian.PutUint32(hdr[4:], sn)
}

// patchTCP rewrites the variable fields of the base TCP header.
func patchTCP(hdr []byte, seq, ack uint32, window, checksum, urgent uint16, flags byte) {
	_ = hdr[tcpMinLen-1] // BCE hint
	binary.BigEndian.PutUint32(hdr[4:], seq)
	binary.BigEndian.PutUint32(hdr[8:], ack)
	hdr[13] = flags
	binary.BigEndian.PutUint16(hdr[14:], window)
	binary.BigEndian.PutUint16(hdr[16:], checksum)
	binary.BigEndian.PutUint16(hdr[18:], urgent)
}
