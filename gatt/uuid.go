package gatt

import (
	"encoding/binary"

	uuid "github.com/satori/go.uuid"
)

// A UUID is a BLE UUID. 16-bit UUIDs are expanded over the Bluetooth base
// UUID so every attribute type compares as a 128-bit value.
type UUID = uuid.UUID

// baseUUID is the Bluetooth base UUID, 00000000-0000-1000-8000-00805f9b34fb.
var baseUUID = uuid.Must(uuid.FromString("00000000-0000-1000-8000-00805f9b34fb"))

// UUID16 converts a uint16 (such as 0x1800) to a UUID.
func UUID16(i uint16) UUID {
	u := baseUUID
	binary.BigEndian.PutUint16(u[2:], i)
	return u
}

// ParseUUID parses a standard-format UUID string, such
// as "1800" or "34DA3AD1-7110-41A1-B1EF-4430F509CDE7".
func ParseUUID(s string) (UUID, error) {
	if len(s) == 4 {
		var b [2]byte
		if _, err := hexDecode(b[:], s); err != nil {
			return UUID{}, err
		}
		return UUID16(binary.BigEndian.Uint16(b[:])), nil
	}
	return uuid.FromString(s)
}

// MustParseUUID parses a standard-format UUID string,
// like ParseUUID, but panics in case of error.
func MustParseUUID(s string) UUID {
	u, err := ParseUUID(s)
	if err != nil {
		panic(err)
	}
	return u
}

// Short returns the 16-bit form of u and whether u lies on the base UUID.
func Short(u UUID) (uint16, bool) {
	v := u
	binary.BigEndian.PutUint16(v[2:], 0)
	if !uuid.Equal(v, baseUUID) {
		return 0, false
	}
	return binary.BigEndian.Uint16(u[2:]), true
}

// uuidEqual reports whether u and v are the same attribute type.
func uuidEqual(u, v UUID) bool {
	return uuid.Equal(u, v)
}

// reverse returns a reversed copy of u, the on-air byte order of a 128-bit UUID.
func reverse(u []byte) []byte {
	// Special-case 16 bit UUIDS for speed.
	l := len(u)
	if l == 2 {
		return []byte{u[1], u[0]}
	}
	b := make([]byte, l)
	for i := 0; i < l/2+1; i++ {
		b[i], b[l-i-1] = u[l-i-1], u[i]
	}
	return b
}

// LittleEndian returns u as it is sent on the air.
func LittleEndian(u UUID) []byte {
	if s, ok := Short(u); ok {
		return []byte{byte(s), byte(s >> 8)}
	}
	return reverse(u.Bytes())
}
