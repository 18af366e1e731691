package dfu

import "context"

// Channel addresses a characteristic (or descriptor) on the device.
type Channel uint16

// A Transport carries bytes to the device and delivers its control point
// notifications.
type Transport interface {
	// SendPacket writes data to ch. A non-nil error means the write did
	// not happen; the caller may retry.
	SendPacket(ch Channel, data []byte) error

	// RequestLastValue reads back the current value of ch.
	RequestLastValue(ch Channel) ([]byte, error)

	// Notifications is the FIFO of control point payloads.
	Notifications() *NotificationQueue
}

// Pipes are the channels of the DFU service.
type Pipes struct {
	ControlPoint     Channel
	ControlPointCCCD Channel
	Packet           Channel
}

// A Link is a connected Transport that can locate the DFU service and be
// torn down.
type Link interface {
	Transport
	Discover(ctx context.Context) (Pipes, error)
	Close() error
}

// A Dialer connects to the device under test.
type Dialer interface {
	Dial(ctx context.Context) (Link, error)
}

// A Resetter resets the device out of band, like a programmer pulling the
// reset line.
type Resetter interface {
	ResetDevice() error
}
