package dfu

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrTimeout is matched by every *TimeoutError.
	ErrTimeout = errors.New("timed out")

	// ErrDisconnected is returned once the link to the device is gone.
	ErrDisconnected = errors.New("device disconnected")

	// ErrUnsolicited is wrapped when a notification arrives while the
	// control point is expected to stay silent.
	ErrUnsolicited = errors.New("unsolicited notification")

	// ErrInvalidTransition is returned when an operation is not allowed in
	// the controller's current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrBusy is returned when a request is issued while another one is
	// still awaiting its response.
	ErrBusy = errors.New("request outstanding")

	// ErrCCCD is wrapped when the control point CCCD does not hold the
	// value written to it.
	ErrCCCD = errors.New("unexpected CCCD value")
)

// A ProtocolError is a control point notification that does not answer the
// outstanding request the expected way.
type ProtocolError struct {
	Want   Response
	Got    Response
	Raw    []byte
	Reason string
}

func (e *ProtocolError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("protocol error: %s (got % X, want %v)", e.Reason, e.Raw, e.Want)
	}
	return fmt.Sprintf("protocol error: got %v, want %v", e.Got, e.Want)
}

// A TimeoutError reports that no notification arrived in time.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s: no notification after %v", e.Op, e.After)
}

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// A ChecksumError reports that the device rejected the image checksum when
// something else was expected.
type ChecksumError struct {
	Op OpCode
}

func (e *ChecksumError) Error() string {
	return fmt.Sprintf("%v: device reported %v", e.Op, ResultCRCError)
}

// A TransportError wraps a send that failed on every try.
type TransportError struct {
	Op      string
	Channel Channel
	Tries   int
	Err     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: send on channel 0x%04X failed after %d tries: %v", e.Op, uint16(e.Channel), e.Tries, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }
