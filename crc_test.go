package rohc

import "testing"

func TestCRC8KnownValue(t *testing.T) {
	// CRC over an empty buffer is the initial value.
	if got := crc8(nil, crc8Init); got != crc8Init {
		t.Fatalf("crc8(nil) = %#x, want %#x", got, crc8Init)
	}

	// One zero byte through the reflected table.
	if got := crc8([]byte{0}, crc8Init); got != crc8Table[0xff] {
		t.Fatalf("crc8({0}) = %#x, want %#x", got, crc8Table[0xff])
	}
}

func TestCRC3Range(t *testing.T) {
	buf := []byte{0x45, 0x00, 0x00, 0x54, 0xde, 0xad}
	if got := crc3(buf, crc3Init); got > 0x7 {
		t.Fatalf("crc3 produced %#x, exceeds 3 bits", got)
	}
	if got := crc7(buf, crc7Init); got > 0x7f {
		t.Fatalf("crc7 produced %#x, exceeds 7 bits", got)
	}
}

func TestCRCDetectsCorruption(t *testing.T) {
	buf := []byte{0x45, 0x00, 0x00, 0x54, 0x12, 0x34, 0x40, 0x00, 0x40, 0x11}
	orig := crc8(buf, crc8Init)
	for i := range buf {
		buf[i] ^= 0x01
		if crc8(buf, crc8Init) == orig {
			t.Fatalf("single-bit flip at byte %d not detected", i)
		}
		buf[i] ^= 0x01
	}
}

func TestIRCRCSplitMatchesWhole(t *testing.T) {
	static := []byte{0x40, 0x11, 0xc0, 0xa8, 0x00, 0x01, 0xc0, 0xa8, 0x00, 0x02}
	dynamic := []byte{0x00, 0x40, 0x12, 0x34}

	var h irCRC
	h.update(static)

	whole := append(append([]byte{}, static...), dynamic...)
	if got, want := h.sum(dynamic), crc8(whole, crc8Init); got != want {
		t.Fatalf("split crc8 = %#x, whole = %#x", got, want)
	}
}
