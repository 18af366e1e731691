package dfu

import "github.com/XC-/dfu/gatt"

// DFU service and characteristic UUIDs.
var (
	ServiceUUID      = gatt.MustParseUUID("00001530-1212-efde-1523-785feabcd123")
	ControlPointUUID = gatt.MustParseUUID("00001531-1212-efde-1523-785feabcd123")
	PacketUUID       = gatt.MustParseUUID("00001532-1212-efde-1523-785feabcd123")
	VersionUUID      = gatt.MustParseUUID("00001534-1212-efde-1523-785feabcd123")
)
