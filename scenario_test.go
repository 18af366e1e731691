package dfu

import (
	"bytes"
	"testing"
)

func TestEvilPacket(t *testing.T) {
	cases := []struct {
		n, need int
		want    int
		err     bool
	}{
		{100, 3, 25, false},
		{10, 3, 2, false}, // 2.5 rounds to even
		{14, 3, 4, false}, // 3.5 rounds to even
		{3, 3, 1, false},
		{2, 2, 1, false},
		{5, 3, 1, false},
		{2, 3, 0, true},
		{1, 2, 0, true},
	}
	for _, tt := range cases {
		got, err := evilPacket(tt.n, tt.need)
		if (err != nil) != tt.err {
			t.Errorf("evilPacket(%d, %d): got err %v want err %t", tt.n, tt.need, err, tt.err)
			continue
		}
		if got != tt.want {
			t.Errorf("evilPacket(%d, %d): got %d want %d", tt.n, tt.need, got, tt.want)
		}
	}
}

func TestCorruptCRC(t *testing.T) {
	cases := []struct {
		in, want []byte
	}{
		{[]byte{0xB1, 0x29}, []byte{0x10, 0x00}},
		{[]byte{0x10, 0x00}, []byte{0xEF, 0xFF}},
		{[]byte{0x00, 0x00}, []byte{0xFF, 0xFF}},
	}
	for _, tt := range cases {
		if got := CorruptCRC(tt.in); !bytes.Equal(got, tt.want) {
			t.Errorf("CorruptCRC(% X): got % X want % X", tt.in, got, tt.want)
		}
	}
}

func TestLookupScenario(t *testing.T) {
	for _, name := range []string{"valid", "sizeTooBig", "missingpackets", "addedpackets", "timeout", "reset", "invalidcrc"} {
		sc, ok := LookupScenario(name)
		if !ok {
			t.Errorf("LookupScenario(%q): not found", name)
			continue
		}
		if sc.Name() != name {
			t.Errorf("LookupScenario(%q): got %q", name, sc.Name())
		}
	}
	if _, ok := LookupScenario("bogus"); ok {
		t.Errorf("LookupScenario(bogus): found")
	}
}
