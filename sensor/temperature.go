package sensor

import "fmt"

// Temperature measurement flags.
const (
	TempFahrenheit uint8 = 0x01
	TempTimestamp  uint8 = 0x02
	TempType       uint8 = 0x04

	tempDefined = TempFahrenheit | TempTimestamp | TempType
)

// TemperatureMeasurement is a health thermometer record.
type TemperatureMeasurement struct {
	Flags     uint8
	Value     Float
	Timestamp Timestamp
	Type      uint8
}

// NewTemperatureMeasurement returns a record with optional fields at their
// defaults.
func NewTemperatureMeasurement(flags uint8, v Float) TemperatureMeasurement {
	return TemperatureMeasurement{Flags: flags, Value: v, Timestamp: DefaultTimestamp}
}

func tempLength(flags uint8) int {
	n := 1 + FloatLen
	if flags&TempTimestamp != 0 {
		n += TimestampLen
	}
	if flags&TempType != 0 {
		n++
	}
	return n
}

// DecodeTemperatureMeasurement decodes the record starting at off.
func DecodeTemperatureMeasurement(b []byte, off int) (TemperatureMeasurement, error) {
	flags, p, err := checkFlags("TemperatureMeasurement", b, off, tempDefined, tempLength)
	if err != nil {
		return TemperatureMeasurement{}, err
	}
	f := fields{b: p, off: 1}
	m := NewTemperatureMeasurement(flags, f.float())
	if m.HasTimestamp() {
		if m.Timestamp, err = f.timestamp(); err != nil {
			return TemperatureMeasurement{}, err
		}
	}
	if m.HasType() {
		m.Type = f.u8()
	}
	return m, nil
}

func (m TemperatureMeasurement) IsFahrenheit() bool { return m.Flags&TempFahrenheit != 0 }
func (m TemperatureMeasurement) HasTimestamp() bool { return m.Flags&TempTimestamp != 0 }
func (m TemperatureMeasurement) HasType() bool      { return m.Flags&TempType != 0 }

// Encode returns the wire form of m.
func (m TemperatureMeasurement) Encode() []byte {
	w := writer{m.Flags}
	w.float(m.Value)
	if m.HasTimestamp() {
		w.timestamp(m.Timestamp)
	}
	if m.HasType() {
		w.u8(m.Type)
	}
	return w
}

// Equal reports whether m and o match on flags, the measured value and every
// optional field the flags mark as present.
func (m TemperatureMeasurement) Equal(o TemperatureMeasurement) bool {
	return m.Compare(o, "") == nil
}

// Compare checks m against want and returns a *ValidationError naming each
// differing field.
func (m TemperatureMeasurement) Compare(want TemperatureMeasurement, name string) error {
	c := newComparer(name)
	c.flag("FAHRENHEIT", m.Flags, want.Flags, TempFahrenheit)
	c.flag("TIME_STAMP", m.Flags, want.Flags, TempTimestamp)
	c.flag("TEMP_TYPE", m.Flags, want.Flags, TempType)
	c.check("value", m.Value, want.Value)
	if m.HasTimestamp() && want.HasTimestamp() {
		c.check("timeStamp", m.Timestamp, want.Timestamp)
	}
	if m.HasType() && want.HasType() {
		c.check("tempType", m.Type, want.Type)
	}
	return c.err()
}

func (m TemperatureMeasurement) String() string {
	return fmt.Sprintf("TemperatureMeasurement(flags=0x%02X, value=%v, timeStamp=%v, tempType=%d)",
		m.Flags, m.Value, m.Timestamp, m.Type)
}
