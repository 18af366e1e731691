package dfu

import (
	"math/rand"
	"testing"
)

// bitwiseCRC is the textbook MSB-first shift register for polynomial 0x1021.
func bitwiseCRC(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

func TestCRC16(t *testing.T) {
	cases := []struct {
		in   []byte
		want uint16
	}{
		{nil, 0xFFFF},
		{[]byte{}, 0xFFFF},
		{[]byte("123456789"), 0x29B1},
		{[]byte{0x00}, 0xE1F0},
	}
	for _, tt := range cases {
		if got := CRC16(tt.in); got != tt.want {
			t.Errorf("CRC16(%q): got 0x%04X want 0x%04X", tt.in, got, tt.want)
		}
	}
}

func TestCRC16MatchesShiftRegister(t *testing.T) {
	r := rand.New(rand.NewSource(1))
	for n := 0; n < 300; n += 7 {
		b := make([]byte, n)
		r.Read(b)
		if got, want := CRC16(b), bitwiseCRC(b); got != want {
			t.Fatalf("len %d: got 0x%04X want 0x%04X", n, got, want)
		}
	}
}

func TestUpdateCRCIncremental(t *testing.T) {
	data := []byte("firmware image")
	crc := CRCInit
	for _, b := range data {
		crc = UpdateCRC(crc, b)
	}
	if want := CRC16(data); crc != want {
		t.Errorf("incremental: got 0x%04X want 0x%04X", crc, want)
	}
}
