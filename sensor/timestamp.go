package sensor

import (
	"encoding/binary"
	"fmt"
	"time"
)

// MinYear is the earliest year a Timestamp may carry.
const MinYear = 1582

// TimestampLen is the encoded size of a Timestamp.
const TimestampLen = 7

// Timestamp is the BLE date-time: a little-endian year followed by month,
// day, hours, minutes and seconds, one byte each.
type Timestamp struct {
	Year    uint16
	Month   uint8
	Day     uint8
	Hours   uint8
	Minutes uint8
	Seconds uint8
}

// DefaultTimestamp is the value records carry when no timestamp is present.
var DefaultTimestamp = Timestamp{Year: MinYear, Month: 1, Day: 1}

// NewTimestamp builds a Timestamp, rejecting years before MinYear.
func NewTimestamp(year uint16, month, day, hours, minutes, seconds uint8) (Timestamp, error) {
	if year < MinYear {
		return Timestamp{}, &DecodeError{Type: "Timestamp", Err: ErrInvalidYear, Value: int(year)}
	}
	return Timestamp{year, month, day, hours, minutes, seconds}, nil
}

// DecodeTimestamp reads a Timestamp at off.
func DecodeTimestamp(b []byte, off int) (Timestamp, error) {
	if off < 0 || len(b)-off < TimestampLen {
		return Timestamp{}, tooShort("Timestamp", 0, TimestampLen, avail(b, off))
	}
	p := b[off:]
	return NewTimestamp(binary.LittleEndian.Uint16(p), p[2], p[3], p[4], p[5], p[6])
}

// Encode returns the 7 byte form of t.
func (t Timestamp) Encode() []byte {
	b := make([]byte, TimestampLen)
	t.put(b)
	return b
}

func (t Timestamp) put(b []byte) {
	binary.LittleEndian.PutUint16(b, t.Year)
	b[2], b[3], b[4], b[5], b[6] = t.Month, t.Day, t.Hours, t.Minutes, t.Seconds
}

// Time converts t to a UTC time.Time.
func (t Timestamp) Time() time.Time {
	return time.Date(int(t.Year), time.Month(t.Month), int(t.Day),
		int(t.Hours), int(t.Minutes), int(t.Seconds), 0, time.UTC)
}

func (t Timestamp) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", t.Year, t.Month, t.Day, t.Hours, t.Minutes, t.Seconds)
}
