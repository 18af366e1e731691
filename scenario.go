package dfu

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
)

// OversizedImageLength is the length the sizeTooBig scenario declares.
const OversizedImageLength = 0x019000

// A Session is the state a scenario runs against: one connection to the
// device and the image being transferred.
type Session struct {
	RunID  string
	Image  *Image
	Ctrl   *Controller
	Config TransferConfig
	Device Resetter // nil when the device cannot be reset out of band
	Log    logrus.FieldLogger
	Report *Report
}

// Step runs fn as the named step and records its outcome.
func (s *Session) Step(ctx context.Context, name string, fn func(context.Context) error) error {
	l := s.Log.WithField("step", name)
	l.Infof("Executing '%s'", name)
	start := time.Now()
	err := fn(ctx)
	s.Report.add(Step{Name: name, Err: err, Duration: time.Since(start)})
	if err != nil {
		l.WithError(err).WithField("state", s.Ctrl.State()).Error("step failed")
		return err
	}
	l.Info("step passed")
	return nil
}

// A Scenario is one firmware update exchange with an expected outcome.
type Scenario interface {
	Name() string
	// Setup prepares the connection, subscribing to notifications.
	Setup(ctx context.Context, s *Session) error
	// Run performs the exchange. A failed run leaves cleanup to the caller.
	Run(ctx context.Context, s *Session) error
}

type scenario struct {
	name string
	run  func(ctx context.Context, s *Session) error
}

func (sc scenario) Name() string { return sc.name }

func (sc scenario) Setup(ctx context.Context, s *Session) error {
	if err := s.Step(ctx, "enable notifications", s.Ctrl.EnableNotifications); err != nil {
		return err
	}
	if n := s.Config.ReceiptInterval; n > 0 {
		return s.Step(ctx, "set receipt interval", func(ctx context.Context) error {
			return s.Ctrl.SetReceiptInterval(ctx, n)
		})
	}
	return nil
}

func (sc scenario) Run(ctx context.Context, s *Session) error { return sc.run(ctx, s) }

// Scenarios returns every scenario, in the order the harness runs them.
func Scenarios() []Scenario {
	return []Scenario{
		Valid(),
		SizeTooBig(),
		MissingPackets(),
		AddedPackets(),
		Timeout(),
		DeviceReset(),
		InvalidCRC(),
	}
}

// LookupScenario finds a scenario by name.
func LookupScenario(name string) (Scenario, bool) {
	for _, sc := range Scenarios() {
		if sc.Name() == name {
			return sc, true
		}
	}
	return nil, false
}

// Valid transfers the whole image and activates it.
func Valid() Scenario {
	return scenario{name: "valid", run: func(ctx context.Context, s *Session) error {
		if err := startAndInit(ctx, s, s.Image.CRCPacket); err != nil {
			return err
		}
		if err := streamAll(ctx, s); err != nil {
			return err
		}
		if n := s.Image.Size(); n <= math.MaxUint16 {
			if err := s.Step(ctx, "report size", func(ctx context.Context) error {
				return s.Ctrl.ReportSize(ctx, uint16(n))
			}); err != nil {
				return err
			}
		}
		if err := validate(ctx, s, ResultSuccess); err != nil {
			return err
		}
		return activate(ctx, s)
	}}
}

// SizeTooBig declares an image larger than the device accepts and expects
// START_DFU to be rejected.
func SizeTooBig() Scenario {
	return scenario{name: "sizeTooBig", run: func(ctx context.Context, s *Session) error {
		n := uint32(OversizedImageLength)
		size := []byte{byte(n), byte(n >> 8), byte(n >> 16), 0}
		if err := s.Step(ctx, "start DFU (oversized)", func(ctx context.Context) error {
			return s.Ctrl.Start(ctx, size, ResultDataSizeExceedsLimit)
		}); err != nil {
			return err
		}
		return activate(ctx, s)
	}}
}

// MissingPackets withholds two consecutive image packets and expects
// VALIDATE to fail with INVALID_STATE.
func MissingPackets() Scenario {
	return scenario{name: "missingpackets", run: func(ctx context.Context, s *Session) error {
		pkts := s.Image.Packets
		evil, err := evilPacket(len(pkts), 3)
		if err != nil {
			return err
		}
		if err := startAndInit(ctx, s, s.Image.CRCPacket); err != nil {
			return err
		}
		if err := beginData(ctx, s); err != nil {
			return err
		}
		if err := s.Step(ctx, fmt.Sprintf("send data skipping packets %d and %d", evil, evil+1), func(ctx context.Context) error {
			if err := s.Ctrl.SendData(ctx, pkts[:evil-1]); err != nil {
				return err
			}
			return s.Ctrl.SendData(ctx, pkts[evil+1:])
		}); err != nil {
			return err
		}
		if err := validate(ctx, s, ResultInvalidState); err != nil {
			return err
		}
		return activate(ctx, s)
	}}
}

// AddedPackets sends two packets past the end of a complete image. The
// first is rejected with DATA_SIZE_EXCEEDS_LIMIT, the second with
// OPERATION_FAILED, and VALIDATE then answers INVALID_STATE.
func AddedPackets() Scenario {
	return scenario{name: "addedpackets", run: func(ctx context.Context, s *Session) error {
		pkts := s.Image.Packets
		if len(pkts) < 3 {
			return fmt.Errorf("addedpackets: image has %d packets, need at least 3", len(pkts))
		}
		if err := startAndInit(ctx, s, s.Image.CRCPacket); err != nil {
			return err
		}
		if err := streamAll(ctx, s); err != nil {
			return err
		}
		if err := s.Step(ctx, "send extra packet", func(ctx context.Context) error {
			return s.Ctrl.SendPacketExpect(ctx, pkts[1], ResultDataSizeExceedsLimit)
		}); err != nil {
			return err
		}
		if err := s.Step(ctx, "send second extra packet", func(ctx context.Context) error {
			return s.Ctrl.SendPacketExpect(ctx, pkts[2], ResultOperationFailed)
		}); err != nil {
			return err
		}
		if err := validate(ctx, s, ResultInvalidState); err != nil {
			return err
		}
		return activate(ctx, s)
	}}
}

// Timeout stalls mid-transfer for longer than the device's inactivity
// timeout and expects the device to reset and drop the link.
func Timeout() Scenario {
	return scenario{name: "timeout", run: func(ctx context.Context, s *Session) error {
		if err := sendUntilEvil(ctx, s); err != nil {
			return err
		}
		if err := s.Step(ctx, "stall", func(ctx context.Context) error {
			return sleep(ctx, s.Config.StallDuration)
		}); err != nil {
			return err
		}
		return s.Step(ctx, "await disconnect", func(ctx context.Context) error {
			return s.Ctrl.ExpectDisconnect(ctx, s.Config.ResponseTimeout)
		})
	}}
}

// DeviceReset resets the device out of band mid-transfer and expects the
// link to drop.
func DeviceReset() Scenario {
	return scenario{name: "reset", run: func(ctx context.Context, s *Session) error {
		if s.Device == nil {
			return fmt.Errorf("reset: no out of band reset available")
		}
		if err := sendUntilEvil(ctx, s); err != nil {
			return err
		}
		if err := s.Step(ctx, "reset device", func(context.Context) error {
			return s.Device.ResetDevice()
		}); err != nil {
			return err
		}
		return s.Step(ctx, "await disconnect", func(ctx context.Context) error {
			return s.Ctrl.ExpectDisconnect(ctx, s.Config.ResponseTimeout)
		})
	}}
}

// InvalidCRC corrupts the CRC packet and expects VALIDATE to answer
// CRC_ERROR.
func InvalidCRC() Scenario {
	return scenario{name: "invalidcrc", run: func(ctx context.Context, s *Session) error {
		crc := CorruptCRC(s.Image.CRCPacket)
		if err := startAndInit(ctx, s, crc); err != nil {
			return err
		}
		if err := streamAll(ctx, s); err != nil {
			return err
		}
		if err := validate(ctx, s, ResultCRCError); err != nil {
			return err
		}
		return activate(ctx, s)
	}}
}

// CorruptCRC masks each byte of a CRC packet with 0x10. A CRC the mask
// leaves unchanged is inverted instead.
func CorruptCRC(p []byte) []byte {
	out := make([]byte, len(p))
	same := true
	for i, b := range p {
		out[i] = b & 0x10
		same = same && out[i] == b
	}
	if same {
		for i, b := range p {
			out[i] = ^b
		}
	}
	return out
}

// evilPacket picks the 1-based index of the first tampered packet, a
// quarter of the way into an image of n packets. need is the minimum
// number of packets the scenario works with.
func evilPacket(n, need int) (int, error) {
	if n < need {
		return 0, fmt.Errorf("image has %d packets, need at least %d", n, need)
	}
	evil := int(math.RoundToEven(float64(n) / 4))
	if evil < 1 {
		evil = 1
	}
	if evil > n-1 {
		evil = n - 1
	}
	return evil, nil
}

func startAndInit(ctx context.Context, s *Session, crc []byte) error {
	if err := s.Step(ctx, "start DFU", func(ctx context.Context) error {
		return s.Ctrl.Start(ctx, s.Image.SizePacket, ResultSuccess)
	}); err != nil {
		return err
	}
	return s.Step(ctx, "init packet", func(ctx context.Context) error {
		return s.Ctrl.SendInit(ctx, crc)
	})
}

func beginData(ctx context.Context, s *Session) error {
	return s.Step(ctx, "receive data", s.Ctrl.BeginData)
}

func streamAll(ctx context.Context, s *Session) error {
	if err := beginData(ctx, s); err != nil {
		return err
	}
	return s.Step(ctx, fmt.Sprintf("send %d packets", len(s.Image.Packets)), func(ctx context.Context) error {
		return s.Ctrl.Stream(ctx, s.Image.Packets)
	})
}

func sendUntilEvil(ctx context.Context, s *Session) error {
	evil, err := evilPacket(len(s.Image.Packets), 2)
	if err != nil {
		return err
	}
	if err := startAndInit(ctx, s, s.Image.CRCPacket); err != nil {
		return err
	}
	if err := beginData(ctx, s); err != nil {
		return err
	}
	return s.Step(ctx, fmt.Sprintf("send %d packets", evil), func(ctx context.Context) error {
		return s.Ctrl.SendData(ctx, s.Image.Packets[:evil])
	})
}

func validate(ctx context.Context, s *Session, want ResultCode) error {
	return s.Step(ctx, fmt.Sprintf("validate (%v)", want), func(ctx context.Context) error {
		return s.Ctrl.Validate(ctx, want)
	})
}

func activate(ctx context.Context, s *Session) error {
	return s.Step(ctx, "activate", s.Ctrl.Activate)
}
