package gatt

// This file includes constants from the BLE spec.

var (
	attrGAPUUID  = UUID16(0x1800)
	attrGATTUUID = UUID16(0x1801)

	attrClientCharacteristicConfigUUID = UUID16(0x2902)

	attrDeviceNameUUID = UUID16(0x2A00)
	attrAppearanceUUID = UUID16(0x2A01)
)

// https://developer.bluetooth.org/gatt/characteristics/Pages/CharacteristicViewer.aspx?u=org.bluetooth.characteristic.gap.appearance.xml
var gapCharAppearanceGenericComputer = []byte{0x00, 0x80}

// Client characteristic configuration values.
const (
	CCCNotifyFlag   = 0x0001
	CCCIndicateFlag = 0x0002
)

// ClientCharacteristicConfigUUID is the type of the descriptor through which
// a peer subscribes to notifications.
var ClientCharacteristicConfigUUID = attrClientCharacteristicConfigUUID
