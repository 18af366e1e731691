package dfu

import (
	"errors"
	"fmt"
	"io"

	"github.com/marcinbor85/gohex"
)

// ErrHexFormat is returned for a malformed Intel HEX stream.
var ErrHexFormat = errors.New("ihex: bad format")

// LoadHex parses an Intel HEX stream and returns the flat image starting at
// its lowest address. Gaps between records are filled with 0xFF.
func LoadHex(r io.Reader) ([]byte, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrHexFormat, err)
	}
	segs := mem.GetDataSegments()
	if len(segs) == 0 {
		return []byte{}, nil
	}
	lo, hi := segs[0].Address, uint32(0)
	for _, s := range segs {
		if s.Address < lo {
			lo = s.Address
		}
		if end := s.Address + uint32(len(s.Data)); end > hi {
			hi = end
		}
	}
	return mem.ToBinary(lo, hi-lo, 0xFF), nil
}
