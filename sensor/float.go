package sensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// SFloat is the 16-bit IEEE-11073 short float: a signed 4-bit exponent in the
// high nibble and a signed 12-bit mantissa in the remaining bits. Special
// values (NaN, NRes, +/-Inf) are kept as their raw mantissa.
type SFloat struct {
	Exponent int8  // -8..7
	Mantissa int16 // -2048..2047
}

// SFloatLen is the encoded size of an SFloat.
const SFloatLen = 2

// DecodeSFloat reads an SFloat at off.
func DecodeSFloat(b []byte, off int) (SFloat, error) {
	if off < 0 || len(b)-off < SFloatLen {
		return SFloat{}, tooShort("SFloat", 0, SFloatLen, avail(b, off))
	}
	raw := binary.LittleEndian.Uint16(b[off:])
	return SFloat{
		Exponent: int8(raw>>8) >> 4,
		Mantissa: int16(raw<<4) >> 4,
	}, nil
}

// Encode returns the 2 byte little-endian form of f.
func (f SFloat) Encode() []byte {
	b := make([]byte, SFloatLen)
	f.put(b)
	return b
}

func (f SFloat) put(b []byte) {
	b[0] = byte(f.Mantissa)
	b[1] = byte(f.Exponent)<<4 | byte(f.Mantissa>>8)&0x0f
}

// Float64 returns Mantissa * 10^Exponent.
func (f SFloat) Float64() float64 {
	return float64(f.Mantissa) * math.Pow10(int(f.Exponent))
}

func (f SFloat) String() string {
	return fmt.Sprintf("SFloat(exponent=%d, mantissa=%d)", f.Exponent, f.Mantissa)
}

// Float is the 32-bit IEEE-11073 float: a signed 24-bit mantissa in the low
// three bytes followed by a signed 8-bit exponent.
type Float struct {
	Exponent int8
	Mantissa int32 // -8388608..8388607
}

// FloatLen is the encoded size of a Float.
const FloatLen = 4

// DecodeFloat reads a Float at off.
func DecodeFloat(b []byte, off int) (Float, error) {
	if off < 0 || len(b)-off < FloatLen {
		return Float{}, tooShort("Float", 0, FloatLen, avail(b, off))
	}
	raw := binary.LittleEndian.Uint32(b[off:])
	return Float{
		Exponent: int8(raw >> 24),
		Mantissa: int32(raw<<8) >> 8,
	}, nil
}

// Encode returns the 4 byte little-endian form of f.
func (f Float) Encode() []byte {
	b := make([]byte, FloatLen)
	f.put(b)
	return b
}

func (f Float) put(b []byte) {
	binary.LittleEndian.PutUint32(b, uint32(f.Mantissa)&0x00ffffff|uint32(uint8(f.Exponent))<<24)
}

// Float64 returns Mantissa * 10^Exponent.
func (f Float) Float64() float64 {
	return float64(f.Mantissa) * math.Pow10(int(f.Exponent))
}

func (f Float) String() string {
	return fmt.Sprintf("Float(exponent=%d, mantissa=%d)", f.Exponent, f.Mantissa)
}

func avail(b []byte, off int) int {
	if off < 0 || off > len(b) {
		return 0
	}
	return len(b) - off
}
