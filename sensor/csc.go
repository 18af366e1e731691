package sensor

import "fmt"

// Cycling speed and cadence measurement flags.
const (
	CscWheelRevPresent uint8 = 0x01
	CscCrankRevPresent uint8 = 0x02

	cscDefined = CscWheelRevPresent | CscCrankRevPresent
)

// CscMeasurement is a cycling speed and cadence measurement.
type CscMeasurement struct {
	Flags               uint8
	CumulativeWheelRevs uint32
	LastWheelEventTime  uint16
	CumulativeCrankRevs uint16
	LastCrankEventTime  uint16
}

func cscLength(flags uint8) int {
	n := 1
	if flags&CscWheelRevPresent != 0 {
		n += 6
	}
	if flags&CscCrankRevPresent != 0 {
		n += 4
	}
	return n
}

// DecodeCscMeasurement decodes the record starting at off.
func DecodeCscMeasurement(b []byte, off int) (CscMeasurement, error) {
	flags, p, err := checkFlags("CscMeasurement", b, off, cscDefined, cscLength)
	if err != nil {
		return CscMeasurement{}, err
	}
	m := CscMeasurement{Flags: flags}
	f := fields{b: p, off: 1}
	if m.HasWheelRevs() {
		m.CumulativeWheelRevs = f.u32()
		m.LastWheelEventTime = f.u16()
	}
	if m.HasCrankRevs() {
		m.CumulativeCrankRevs = f.u16()
		m.LastCrankEventTime = f.u16()
	}
	return m, nil
}

func (m CscMeasurement) HasWheelRevs() bool { return m.Flags&CscWheelRevPresent != 0 }
func (m CscMeasurement) HasCrankRevs() bool { return m.Flags&CscCrankRevPresent != 0 }

// Encode returns the wire form of m, emitting only the flagged fields.
func (m CscMeasurement) Encode() []byte {
	w := writer{m.Flags}
	if m.HasWheelRevs() {
		w.u32(m.CumulativeWheelRevs)
		w.u16(m.LastWheelEventTime)
	}
	if m.HasCrankRevs() {
		w.u16(m.CumulativeCrankRevs)
		w.u16(m.LastCrankEventTime)
	}
	return w
}

// Equal reports whether m and o carry the same flags and the same values in
// every field those flags mark as present.
func (m CscMeasurement) Equal(o CscMeasurement) bool {
	return m.Compare(o, "") == nil
}

// Compare checks m against want and returns a *ValidationError naming each
// differing field as name.<field>.
func (m CscMeasurement) Compare(want CscMeasurement, name string) error {
	c := newComparer(name)
	c.flag("WHEEL_REV_DATA_PRESENT", m.Flags, want.Flags, CscWheelRevPresent)
	c.flag("CRANK_REV_DATA_PRESENT", m.Flags, want.Flags, CscCrankRevPresent)
	if m.HasWheelRevs() && want.HasWheelRevs() {
		c.check("cumulWheelRev", m.CumulativeWheelRevs, want.CumulativeWheelRevs)
		c.check("lastWheelEventTime", m.LastWheelEventTime, want.LastWheelEventTime)
	}
	if m.HasCrankRevs() && want.HasCrankRevs() {
		c.check("cumulCrankRev", m.CumulativeCrankRevs, want.CumulativeCrankRevs)
		c.check("lastCrankEventTime", m.LastCrankEventTime, want.LastCrankEventTime)
	}
	return c.err()
}

func (m CscMeasurement) String() string {
	return fmt.Sprintf("CscMeasurement(flags=0x%02X, cumulWheelRev=%d, lastWheelEventTime=%d, cumulCrankRev=%d, lastCrankEventTime=%d)",
		m.Flags, m.CumulativeWheelRevs, m.LastWheelEventTime, m.CumulativeCrankRevs, m.LastCrankEventTime)
}
