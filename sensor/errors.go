package sensor

import (
	"errors"
	"fmt"
	"strings"
)

// Decode failure classes. A *DecodeError unwraps to one of these.
var (
	ErrTooShort      = errors.New("buffer too short")
	ErrReservedBits  = errors.New("reserved flag bits set")
	ErrInvalidYear   = errors.New("timestamp year out of range")
	ErrInvalidStatus = errors.New("invalid measurement status")
)

// A DecodeError describes why a buffer could not be decoded into a value.
type DecodeError struct {
	Type     string // value or record type being decoded
	Err      error  // one of the Err* classes above
	Flags    uint8  // flags byte, for record types
	Expected int    // expected length, for ErrTooShort
	Actual   int    // available length, for ErrTooShort
	Value    int    // offending value, for ErrInvalidYear and ErrInvalidStatus
}

func (e *DecodeError) Error() string {
	switch e.Err {
	case ErrTooShort:
		return fmt.Sprintf("%s: invalid data length (flags 0x%02X, expected length %d, actual length %d)",
			e.Type, e.Flags, e.Expected, e.Actual)
	case ErrReservedBits:
		return fmt.Sprintf("%s: flags RFU bit(s) set (0x%02X)", e.Type, e.Flags)
	case ErrInvalidYear:
		return fmt.Sprintf("%s: year out of range (%d)", e.Type, e.Value)
	case ErrInvalidStatus:
		return fmt.Sprintf("%s: RFU bits or value used in measurement status (0x%04X)", e.Type, e.Value)
	}
	return fmt.Sprintf("%s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

func tooShort(typ string, flags uint8, expected, actual int) *DecodeError {
	return &DecodeError{Type: typ, Err: ErrTooShort, Flags: flags, Expected: expected, Actual: actual}
}

// A Mismatch is one field whose decoded value differs from the expected one.
type Mismatch struct {
	Field string
	Got   interface{}
	Want  interface{}
}

func (m Mismatch) String() string {
	return fmt.Sprintf("Unexpected value for %s (was %v, expected %v)", m.Field, m.Got, m.Want)
}

// A ValidationError lists every mismatch found by a Compare call.
type ValidationError struct {
	Mismatches []Mismatch
}

func (e *ValidationError) Error() string {
	s := make([]string, len(e.Mismatches))
	for i, m := range e.Mismatches {
		s[i] = m.String()
	}
	return strings.Join(s, "; ")
}

// comparer accumulates mismatches under a field path prefix.
type comparer struct {
	name string
	mm   []Mismatch
}

func newComparer(name string) *comparer { return &comparer{name: name} }

func (c *comparer) field(f string) string { return c.name + "." + f }

func (c *comparer) check(f string, got, want interface{}) {
	if got != want {
		c.mm = append(c.mm, Mismatch{Field: c.field(f), Got: got, Want: want})
	}
}

// flag compares the presence of a single flag bit.
func (c *comparer) flag(f string, got, want, bit uint8) {
	g, w := got&bit != 0, want&bit != 0
	if g != w {
		c.mm = append(c.mm, Mismatch{Field: c.field("flags." + f), Got: g, Want: w})
	}
}

func (c *comparer) err() error {
	if len(c.mm) == 0 {
		return nil
	}
	return &ValidationError{Mismatches: c.mm}
}
