package sensor

import "encoding/binary"

// checkFlags reads the flags byte at off and validates it against the
// record's defined bits and the total length the set bits require.
func checkFlags(typ string, b []byte, off int, defined uint8, length func(uint8) int) (uint8, []byte, error) {
	if off < 0 || len(b)-off < 1 {
		return 0, nil, tooShort(typ, 0, 1, avail(b, off))
	}
	p := b[off:]
	flags := p[0]
	if flags&^defined != 0 {
		return flags, nil, &DecodeError{Type: typ, Err: ErrReservedBits, Flags: flags}
	}
	if n := length(flags); len(p) < n {
		return flags, nil, tooShort(typ, flags, n, len(p))
	}
	return flags, p, nil
}

// fields walks a record buffer in order.
type fields struct {
	b   []byte
	off int
}

func (f *fields) u8() uint8 {
	v := f.b[f.off]
	f.off++
	return v
}

func (f *fields) u16() uint16 {
	v := binary.LittleEndian.Uint16(f.b[f.off:])
	f.off += 2
	return v
}

func (f *fields) u32() uint32 {
	v := binary.LittleEndian.Uint32(f.b[f.off:])
	f.off += 4
	return v
}

func (f *fields) sfloat() SFloat {
	v, _ := DecodeSFloat(f.b, f.off)
	f.off += SFloatLen
	return v
}

func (f *fields) float() Float {
	v, _ := DecodeFloat(f.b, f.off)
	f.off += FloatLen
	return v
}

func (f *fields) timestamp() (Timestamp, error) {
	v, err := DecodeTimestamp(f.b, f.off)
	f.off += TimestampLen
	return v, err
}

// writer appends record fields in order.
type writer []byte

func (w *writer) u8(v uint8) { *w = append(*w, v) }

func (w *writer) u16(v uint16) { *w = binary.LittleEndian.AppendUint16(*w, v) }

func (w *writer) u32(v uint32) { *w = binary.LittleEndian.AppendUint32(*w, v) }

func (w *writer) sfloat(v SFloat) { *w = append(*w, v.Encode()...) }

func (w *writer) float(v Float) { *w = append(*w, v.Encode()...) }

func (w *writer) timestamp(v Timestamp) { *w = append(*w, v.Encode()...) }
