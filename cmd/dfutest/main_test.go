package main

import (
	"bytes"
	"testing"
)

func TestParseHex(t *testing.T) {
	cases := []struct {
		in   string
		want []byte
		err  bool
	}{
		{"0a1b", []byte{0x0a, 0x1b}, false},
		{"0A 1B", []byte{0x0a, 0x1b}, false},
		{"0a:1b", []byte{0x0a, 0x1b}, false},
		{"0x10 0x20", []byte{0x10, 0x20}, false},
		{"0X10,0x20", []byte{0x10, 0x20}, false},
		{"10 0x20", []byte{0x10, 0x20}, false},
		{"30 x5", nil, true},
		{"a0x1", nil, true},
		{"0a1", nil, true},
	}
	for _, tt := range cases {
		got, err := parseHex(tt.in)
		if tt.err {
			if err == nil {
				t.Errorf("%q: got %X want error", tt.in, got)
			}
			continue
		}
		if err != nil || !bytes.Equal(got, tt.want) {
			t.Errorf("%q: got %X, %v want %X", tt.in, got, err, tt.want)
		}
	}
}
