package gatt

import (
	"errors"
)

// MaxEIRPacketLength is the maximum allowed AdvertisingPacket
// and ScanResponsePacket length.
const MaxEIRPacketLength = 31

// ErrEIRPacketTooLong is the error returned when an AdvertisingPacket
// or ScanResponsePacket is too long.
var ErrEIRPacketTooLong = errors.New("max packet length is 31")

// advertising data field types
const (
	typeFlags        = 0x01 // Flags
	typeSomeUUID16   = 0x02 // Incomplete List of 16-bit Service Class UUIDs
	typeAllUUID16    = 0x03 // Complete List of 16-bit Service Class UUIDs
	typeSomeUUID128  = 0x06 // Incomplete List of 128-bit Service Class UUIDs
	typeAllUUID128   = 0x07 // Complete List of 128-bit Service Class UUIDs
	typeShortName    = 0x08 // Shortened Local Name
	typeCompleteName = 0x09 // Complete Local Name
	typeTxPower      = 0x0A // Tx Power Level
)

// flag bits
const (
	flagLimitedDiscoverable = 1 << iota // LE Limited Discoverable Mode
	flagGeneralDiscoverable             // LE General Discoverable Mode
	flagLEOnly                          // BR/EDR Not Supported.
)

// An Advertisement is the decoded content of an advertising packet and
// its scan response.
type Advertisement struct {
	LocalName    string
	Services     []UUID
	TxPowerLevel int
	Connectable  bool
}

// Unmarshal adds the fields of the advertising data b to a. Unknown
// field types are skipped.
func (a *Advertisement) Unmarshal(b []byte) error {
	for len(b) > 0 {
		if len(b) < 2 {
			return errors.New("invalid advertise data")
		}
		l, t := b[0], b[1]
		if l == 0 || len(b) < int(1+l) {
			return errors.New("invalid advertise data")
		}
		d := b[2 : 1+l]
		switch t {
		case typeFlags:
			a.Connectable = len(d) > 0 && d[0]&(flagLimitedDiscoverable|flagGeneralDiscoverable) != 0
		case typeSomeUUID16, typeAllUUID16:
			a.Services = uuidList(a.Services, d, 2)
		case typeSomeUUID128, typeAllUUID128:
			a.Services = uuidList(a.Services, d, 16)
		case typeShortName, typeCompleteName:
			a.LocalName = string(d)
		case typeTxPower:
			if len(d) > 0 {
				a.TxPowerLevel = int(int8(d[0]))
			}
		}
		b = b[1+l:]
	}
	return nil
}

// Advertises reports whether u is among the advertised services.
func (a *Advertisement) Advertises(u UUID) bool {
	for _, s := range a.Services {
		if uuidEqual(s, u) {
			return true
		}
	}
	return false
}

func uuidList(u []UUID, d []byte, w int) []UUID {
	for len(d) >= w {
		switch w {
		case 2:
			u = append(u, UUID16(uint16(d[0])|uint16(d[1])<<8))
		case 16:
			var v UUID
			copy(v[:], reverse(d[:w]))
			u = append(u, v)
		}
		d = d[w:]
	}
	return u
}

// NameScanResponsePacket constructs a scan response packet with
// the given name, truncated as necessary.
func NameScanResponsePacket(name string) []byte {
	return new(AdvPacket).AppendName(name).data
}

// ServiceAdvertisingPacket constructs an advertising packet that
// advertises as many of the provided service uuids as possible.
// It returns the advertising packet and the contained uuids.
func ServiceAdvertisingPacket(uu []UUID) ([]byte, []UUID) {
	fit := make([]UUID, 0, len(uu))
	adv := new(AdvPacket).AppendFlags(flagGeneralDiscoverable | flagLEOnly)
	for _, u := range uu {
		if ok := adv.AppendUUIDFit(u); ok {
			fit = append(fit, u)
		}
	}
	return adv.data, fit
}

// An AdvPacket is an advertising or scan response packet under
// construction.
type AdvPacket struct {
	data []byte
}

// Bytes returns the packet padded to MaxEIRPacketLength.
func (p *AdvPacket) Bytes() [MaxEIRPacketLength]byte {
	var b [MaxEIRPacketLength]byte
	copy(b[:], p.data)
	return b
}

// Len is the unpadded packet length.
func (p *AdvPacket) Len() int { return len(p.data) }

// AppendField appends a BLE advertising packet field.
func (p *AdvPacket) AppendField(typ byte, data []byte) *AdvPacket {
	// A field consists of len, typ, data.
	// Len is 1 byte for typ plus len(data).
	p.data = append(p.data, byte(len(data)+1), typ)
	p.data = append(p.data, data...)
	return p
}

// AppendFlags appends a flags field.
func (p *AdvPacket) AppendFlags(f byte) *AdvPacket {
	return p.AppendField(typeFlags, []byte{f})
}

// AppendName appends a name field, shortening the name if it does not
// fit in the packet.
func (p *AdvPacket) AppendName(n string) *AdvPacket {
	typ := byte(typeCompleteName)
	if max := MaxEIRPacketLength - p.Len() - 2; len(n) > max {
		if max < 0 {
			max = 0
		}
		typ = byte(typeShortName)
		n = n[:max]
	}
	return p.AppendField(typ, []byte(n))
}

// AppendUUIDFit appends a BLE advertised service UUID
// packet field if it fits in the packet, and reports
// whether the UUID fit.
func (p *AdvPacket) AppendUUIDFit(u UUID) bool {
	b := LittleEndian(u)
	if p.Len()+len(b)+2 > MaxEIRPacketLength {
		return false
	}
	typ := byte(typeSomeUUID128)
	if len(b) == 2 {
		typ = typeSomeUUID16
	}
	p.AppendField(typ, b)
	return true
}
