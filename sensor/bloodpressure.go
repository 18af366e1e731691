package sensor

import "fmt"

// Blood pressure measurement flags.
const (
	BpUnitKPa         uint8 = 0x01
	BpTimestamp       uint8 = 0x02
	BpPulseRate       uint8 = 0x04
	BpUserID          uint8 = 0x08
	BpMeasurementStat uint8 = 0x10

	bpDefined = BpUnitKPa | BpTimestamp | BpPulseRate | BpUserID | BpMeasurementStat
)

// Defaults for absent optional fields.
const (
	DefaultUserID            uint8  = 0xFF
	DefaultMeasurementStatus uint16 = 0xFFFF
)

// BloodPressureMeasurement is a blood pressure record. Optional fields keep
// their defaults when the matching flag is clear.
type BloodPressureMeasurement struct {
	Flags             uint8
	Systolic          SFloat
	Diastolic         SFloat
	MeanArterial      SFloat
	Timestamp         Timestamp
	PulseRate         SFloat
	UserID            uint8
	MeasurementStatus uint16
}

// NewBloodPressureMeasurement returns a record with the given flags and
// mandatory fields and every optional field at its default.
func NewBloodPressureMeasurement(flags uint8, systolic, diastolic, mean SFloat) BloodPressureMeasurement {
	return BloodPressureMeasurement{
		Flags:             flags,
		Systolic:          systolic,
		Diastolic:         diastolic,
		MeanArterial:      mean,
		Timestamp:         DefaultTimestamp,
		UserID:            DefaultUserID,
		MeasurementStatus: DefaultMeasurementStatus,
	}
}

func bpLength(flags uint8) int {
	n := 1 + 3*SFloatLen
	if flags&BpTimestamp != 0 {
		n += TimestampLen
	}
	if flags&BpPulseRate != 0 {
		n += SFloatLen
	}
	if flags&BpUserID != 0 {
		n++
	}
	if flags&BpMeasurementStat != 0 {
		n += 2
	}
	return n
}

// validStatus rejects measurement status words with RFU bits set or the
// reserved pulse rate range value.
func validStatus(s uint16) bool {
	return s&0xFFC0 == 0 && (s>>3)&0x3 != 0x3
}

// DecodeBloodPressureMeasurement decodes the record starting at off.
func DecodeBloodPressureMeasurement(b []byte, off int) (BloodPressureMeasurement, error) {
	const typ = "BloodPressureMeasurement"
	flags, p, err := checkFlags(typ, b, off, bpDefined, bpLength)
	if err != nil {
		return BloodPressureMeasurement{}, err
	}
	f := fields{b: p, off: 1}
	m := NewBloodPressureMeasurement(flags, f.sfloat(), f.sfloat(), f.sfloat())
	if m.HasTimestamp() {
		if m.Timestamp, err = f.timestamp(); err != nil {
			return BloodPressureMeasurement{}, err
		}
	}
	if m.HasPulseRate() {
		m.PulseRate = f.sfloat()
	}
	if m.HasUserID() {
		m.UserID = f.u8()
	}
	if m.HasMeasurementStatus() {
		m.MeasurementStatus = f.u16()
		if !validStatus(m.MeasurementStatus) {
			return BloodPressureMeasurement{}, &DecodeError{Type: typ, Err: ErrInvalidStatus, Flags: flags, Value: int(m.MeasurementStatus)}
		}
	}
	return m, nil
}

func (m BloodPressureMeasurement) IsKPa() bool                { return m.Flags&BpUnitKPa != 0 }
func (m BloodPressureMeasurement) HasTimestamp() bool         { return m.Flags&BpTimestamp != 0 }
func (m BloodPressureMeasurement) HasPulseRate() bool         { return m.Flags&BpPulseRate != 0 }
func (m BloodPressureMeasurement) HasUserID() bool            { return m.Flags&BpUserID != 0 }
func (m BloodPressureMeasurement) HasMeasurementStatus() bool { return m.Flags&BpMeasurementStat != 0 }

// Encode returns the wire form of m.
func (m BloodPressureMeasurement) Encode() []byte {
	w := writer{m.Flags}
	w.sfloat(m.Systolic)
	w.sfloat(m.Diastolic)
	w.sfloat(m.MeanArterial)
	if m.HasTimestamp() {
		w.timestamp(m.Timestamp)
	}
	if m.HasPulseRate() {
		w.sfloat(m.PulseRate)
	}
	if m.HasUserID() {
		w.u8(m.UserID)
	}
	if m.HasMeasurementStatus() {
		w.u16(m.MeasurementStatus)
	}
	return w
}

// Equal reports whether m and o match on flags, mandatory fields and every
// optional field the flags mark as present.
func (m BloodPressureMeasurement) Equal(o BloodPressureMeasurement) bool {
	return m.Compare(o, "") == nil
}

// Compare checks m against want and returns a *ValidationError naming each
// differing field.
func (m BloodPressureMeasurement) Compare(want BloodPressureMeasurement, name string) error {
	c := newComparer(name)
	c.flag("UNITS_KPA", m.Flags, want.Flags, BpUnitKPa)
	c.flag("TIME_STAMP", m.Flags, want.Flags, BpTimestamp)
	c.flag("PULSE_RATE", m.Flags, want.Flags, BpPulseRate)
	c.flag("USER_ID", m.Flags, want.Flags, BpUserID)
	c.flag("MEASUREMENT_STATUS", m.Flags, want.Flags, BpMeasurementStat)
	c.check("systolic", m.Systolic, want.Systolic)
	c.check("diastolic", m.Diastolic, want.Diastolic)
	c.check("meanArterialPressure", m.MeanArterial, want.MeanArterial)
	if m.HasTimestamp() && want.HasTimestamp() {
		c.check("timeStamp", m.Timestamp, want.Timestamp)
	}
	if m.HasPulseRate() && want.HasPulseRate() {
		c.check("pulseRate", m.PulseRate, want.PulseRate)
	}
	if m.HasUserID() && want.HasUserID() {
		c.check("userId", m.UserID, want.UserID)
	}
	if m.HasMeasurementStatus() && want.HasMeasurementStatus() {
		c.check("measurementStatus", m.MeasurementStatus, want.MeasurementStatus)
	}
	return c.err()
}

func (m BloodPressureMeasurement) String() string {
	return fmt.Sprintf("BloodPressureMeasurement(flags=0x%02X, systolic=%v, diastolic=%v, mean=%v, timeStamp=%v, pulseRate=%v, userId=%d, measStatus=0x%04X)",
		m.Flags, m.Systolic, m.Diastolic, m.MeanArterial, m.Timestamp, m.PulseRate, m.UserID, m.MeasurementStatus)
}
