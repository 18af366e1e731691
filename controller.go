package dfu

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
)

// State is the Controller's view of the device's update state.
type State int

// Controller states.
const (
	StateIdle State = iota
	StateReady
	StateAwaitingInit
	StateReceivingData
	StateValidating
	StateActivating
	StateTerminal
)

var stateNames = [...]string{
	StateIdle:          "IDLE",
	StateReady:         "READY",
	StateAwaitingInit:  "AWAITING_INIT",
	StateReceivingData: "RECEIVING_DATA",
	StateValidating:    "VALIDATING",
	StateActivating:    "ACTIVATING",
	StateTerminal:      "TERMINAL",
}

func (s State) String() string {
	if s >= 0 && int(s) < len(stateNames) {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// CCCD values written to the control point descriptor.
var (
	cccdDisabled = []byte{0x00, 0x00}
	cccdEnabled  = []byte{0x01, 0x00}
)

// A Controller drives a device through a firmware update over a Transport.
// It issues one request at a time and correlates each control point
// notification with the request it answers.
type Controller struct {
	t       Transport
	q       *NotificationQueue
	pipes   Pipes
	cfg     TransferConfig
	log     logrus.FieldLogger
	metrics *Metrics
	limiter *rate.Limiter

	mu       sync.Mutex
	state    State
	busy     bool
	pending  *Response
	last     Response
	sent     int // image packets sent since RECEIVE_DATA_PACK
	sentLen  int // image bytes sent since RECEIVE_DATA_PACK
	receipt  uint16
	complete bool
}

// An Option configures a Controller.
type Option func(*Controller)

// WithConfig sets the transfer settings.
func WithConfig(cfg TransferConfig) Option {
	return func(c *Controller) { c.cfg = cfg }
}

// WithLogger sets the logger.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Controller) { c.log = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *Metrics) Option {
	return func(c *Controller) { c.metrics = m }
}

// NewController returns a Controller in StateIdle.
func NewController(t Transport, p Pipes, opts ...Option) *Controller {
	c := &Controller{
		t:     t,
		q:     t.Notifications(),
		pipes: p,
		cfg:   DefaultTransferConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = discardLogger()
	}
	if c.cfg.SendTries < 1 {
		c.cfg.SendTries = 1
	}
	lim := rate.Inf
	if c.cfg.PacketsPerSecond > 0 {
		lim = rate.Limit(c.cfg.PacketsPerSecond)
	}
	c.limiter = rate.NewLimiter(lim, 1)
	return c
}

// State returns the current state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastResponse returns the most recent notification received.
func (c *Controller) LastResponse() Response {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// begin claims the request slot if the controller is in one of states.
func (c *Controller) begin(op string, states ...State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.busy {
		if c.pending != nil {
			return fmt.Errorf("%s: %w (awaiting %v)", op, ErrBusy, *c.pending)
		}
		return fmt.Errorf("%s: %w", op, ErrBusy)
	}
	if len(states) > 0 {
		ok := false
		for _, s := range states {
			ok = ok || s == c.state
		}
		if !ok {
			return fmt.Errorf("%s in state %v: %w", op, c.state, ErrInvalidTransition)
		}
	}
	c.busy = true
	return nil
}

func (c *Controller) end() {
	c.mu.Lock()
	c.busy = false
	c.pending = nil
	c.mu.Unlock()
}

func (c *Controller) setState(s State) {
	c.mu.Lock()
	prev := c.state
	c.state = s
	c.mu.Unlock()
	if prev != s {
		c.log.WithFields(logrus.Fields{"from": prev, "state": s}).Debug("state change")
	}
}

// EnableNotifications subscribes to control point notifications. The CCCD
// is first written disabled, then enabled, and read back after each write.
func (c *Controller) EnableNotifications(ctx context.Context) error {
	if err := c.begin("enable notifications"); err != nil {
		return err
	}
	defer c.end()
	for _, v := range [][]byte{cccdDisabled, cccdEnabled} {
		if err := c.send(ctx, "write CCCD", c.pipes.ControlPointCCCD, v); err != nil {
			return err
		}
		got, err := c.t.RequestLastValue(c.pipes.ControlPointCCCD)
		if err != nil {
			return fmt.Errorf("read CCCD: %w", err)
		}
		if !bytes.Equal(got, v) {
			return fmt.Errorf("%w: got % X want % X", ErrCCCD, got, v)
		}
	}
	return nil
}

// ValidateCCCD reads the control point CCCD and checks it holds a defined
// value, 00 00 or 01 00.
func (c *Controller) ValidateCCCD(ctx context.Context) error {
	got, err := c.t.RequestLastValue(c.pipes.ControlPointCCCD)
	if err != nil {
		return fmt.Errorf("read CCCD: %w", err)
	}
	if !bytes.Equal(got, cccdDisabled) && !bytes.Equal(got, cccdEnabled) {
		return fmt.Errorf("%w: % X", ErrCCCD, got)
	}
	return nil
}

// Start sends START_DFU followed by the size packet. want is the result the
// device should answer with: SUCCESS moves to StateReady, while a rejected
// start (DATA_SIZE_EXCEEDS_LIMIT for an oversized image) leaves the
// controller in StateIdle.
func (c *Controller) Start(ctx context.Context, sizePacket []byte, want ResultCode) error {
	if err := c.begin("start", StateIdle); err != nil {
		return err
	}
	defer c.end()
	if n := c.q.Clear(); n > 0 {
		c.log.WithField("dropped", n).Warn("stale notifications before START_DFU")
	}
	if err := c.command(ctx, OpStartDFU); err != nil {
		return err
	}
	if err := c.send(ctx, "size packet", c.pipes.Packet, sizePacket); err != nil {
		return err
	}
	if _, err := c.await(ctx, ResponseTo(OpStartDFU, want)); err != nil {
		return err
	}
	if want == ResultSuccess {
		c.setState(StateReady)
	}
	return nil
}

// SendInit sends RECEIVE_INIT_PACK and then the CRC packet. The control
// point must stay silent between the two.
func (c *Controller) SendInit(ctx context.Context, crcPacket []byte) error {
	if err := c.begin("init packet", StateReady); err != nil {
		return err
	}
	defer c.end()
	if err := c.command(ctx, OpReceiveInitPack); err != nil {
		return err
	}
	if err := c.expectSilence(ctx, c.cfg.SilencePeriod); err != nil {
		return err
	}
	if err := c.send(ctx, "crc packet", c.pipes.Packet, crcPacket); err != nil {
		return err
	}
	if _, err := c.await(ctx, ResponseTo(OpReceiveInitPack, ResultSuccess)); err != nil {
		return err
	}
	c.setState(StateAwaitingInit)
	return nil
}

// SetReceiptInterval asks the device for a PKT_RCPT_NOTIFY_RSP every n image
// packets. 0 turns receipts off.
func (c *Controller) SetReceiptInterval(ctx context.Context, n uint16) error {
	if err := c.begin("receipt interval", StateIdle, StateReady, StateAwaitingInit); err != nil {
		return err
	}
	defer c.end()
	if err := c.command(ctx, OpReceiptNotifyReq, byte(n), byte(n>>8)); err != nil {
		return err
	}
	c.mu.Lock()
	c.receipt = n
	c.mu.Unlock()
	return nil
}

// BeginData sends RECEIVE_DATA_PACK.
func (c *Controller) BeginData(ctx context.Context) error {
	if err := c.begin("begin data", StateReady, StateAwaitingInit); err != nil {
		return err
	}
	defer c.end()
	if err := c.command(ctx, OpReceiveDataPack); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent, c.sentLen, c.complete = 0, 0, false
	c.mu.Unlock()
	c.setState(StateReceivingData)
	return nil
}

// SendData streams image packets without expecting a response, other than
// the receipt notifications requested with SetReceiptInterval.
func (c *Controller) SendData(ctx context.Context, packets [][]byte) error {
	if err := c.begin("send data", StateReceivingData); err != nil {
		return err
	}
	defer c.end()
	for _, p := range packets {
		if err := c.sendImagePacket(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// SendPacketExpect sends one image packet after checking the control point
// is silent, and expects the device to answer RECEIVE_DATA_PACK with want.
// It is used for the final packet of an image and for packets sent past
// its end.
func (c *Controller) SendPacketExpect(ctx context.Context, p []byte, want ResultCode) error {
	if err := c.begin("send packet", StateReceivingData); err != nil {
		return err
	}
	defer c.end()
	if err := c.expectSilence(ctx, c.cfg.SilencePeriod); err != nil {
		return err
	}
	if err := c.sendImagePacket(ctx, p); err != nil {
		return err
	}
	if _, err := c.await(ctx, ResponseTo(OpReceiveDataPack, want)); err != nil {
		return err
	}
	if want == ResultSuccess {
		c.mu.Lock()
		c.complete = true
		c.mu.Unlock()
	}
	return nil
}

// Stream sends every packet of an image and expects the device to confirm
// the complete image.
func (c *Controller) Stream(ctx context.Context, packets [][]byte) error {
	if len(packets) == 0 {
		return nil
	}
	if err := c.SendData(ctx, packets[:len(packets)-1]); err != nil {
		return err
	}
	return c.SendPacketExpect(ctx, packets[len(packets)-1], ResultSuccess)
}

// Validate sends VALIDATE and expects want.
func (c *Controller) Validate(ctx context.Context, want ResultCode) error {
	if err := c.begin("validate", StateReceivingData); err != nil {
		return err
	}
	defer c.end()
	c.setState(StateValidating)
	if err := c.command(ctx, OpValidate); err != nil {
		return err
	}
	_, err := c.await(ctx, ResponseTo(OpValidate, want))
	return err
}

// ReportSize asks the device how many image bytes it received and expects
// want.
func (c *Controller) ReportSize(ctx context.Context, want uint16) error {
	if err := c.begin("report size", StateReady, StateAwaitingInit, StateReceivingData); err != nil {
		return err
	}
	defer c.end()
	if err := c.command(ctx, OpReportSize); err != nil {
		return err
	}
	exp := ResponseTo(OpReportSize, ResultSuccess)
	exp.Param = want
	_, err := c.await(ctx, exp)
	return err
}

// Activate sends ACTIVATE_SYS_RESET and ends the session. The device resets
// without answering, so a failed send is logged and otherwise ignored.
func (c *Controller) Activate(ctx context.Context) error {
	return c.finish(ctx, OpActivateAndReset, StateActivating)
}

// Reset sends RESET_SYSTEM and ends the session, ignoring a failed send.
func (c *Controller) Reset(ctx context.Context) error {
	return c.finish(ctx, OpResetSystem, StateTerminal)
}

func (c *Controller) finish(ctx context.Context, op OpCode, via State) error {
	if err := c.begin(op.String()); err != nil {
		return err
	}
	defer c.end()
	if c.State() == StateTerminal {
		return fmt.Errorf("%v in state %v: %w", op, StateTerminal, ErrInvalidTransition)
	}
	c.setState(via)
	if err := c.command(ctx, op); err != nil {
		c.log.WithError(err).WithField("op", op).Warn("ignoring failed send")
	}
	c.setState(StateTerminal)
	return nil
}

// ExpectSilence waits d and fails if any notification arrives.
func (c *Controller) ExpectSilence(ctx context.Context, d time.Duration) error {
	if err := c.begin("expect silence"); err != nil {
		return err
	}
	defer c.end()
	return c.expectSilence(ctx, d)
}

// ExpectDisconnect waits up to within for the device to drop the link. A
// disconnect moves the controller to StateTerminal.
func (c *Controller) ExpectDisconnect(ctx context.Context, within time.Duration) error {
	if err := c.begin("expect disconnect"); err != nil {
		return err
	}
	defer c.end()
	b, err := c.q.AwaitNext(ctx, within)
	switch {
	case errors.Is(err, ErrDisconnected):
		c.log.Info("device disconnected")
		c.setState(StateTerminal)
		return nil
	case errors.Is(err, ErrTimeout):
		return &TimeoutError{Op: "await disconnect", After: within}
	case err != nil:
		return err
	}
	return fmt.Errorf("await disconnect: %w: % X", ErrUnsolicited, b)
}

func (c *Controller) expectSilence(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		if c.q.Len() > 0 {
			b, _ := c.q.AwaitNext(ctx, time.Millisecond)
			return fmt.Errorf("%w: % X", ErrUnsolicited, b)
		}
		return nil
	}
	b, err := c.q.AwaitNext(ctx, d)
	if errors.Is(err, ErrTimeout) {
		return nil
	}
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: % X", ErrUnsolicited, b)
}

// sendImagePacket writes one image packet and checks the receipt
// notification when one is due.
func (c *Controller) sendImagePacket(ctx context.Context, p []byte) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := c.send(ctx, "data packet", c.pipes.Packet, p); err != nil {
		return err
	}
	c.mu.Lock()
	c.sent++
	c.sentLen += len(p)
	due := c.receipt > 0 && !c.complete && c.sent%int(c.receipt) == 0
	n := c.sentLen
	c.mu.Unlock()
	if !due {
		return nil
	}
	_, err := c.await(ctx, ReceiptNotification(uint16(n)))
	return err
}

// command writes op and its parameters to the control point.
func (c *Controller) command(ctx context.Context, op OpCode, params ...byte) error {
	return c.send(ctx, op.String(), c.pipes.ControlPoint, append([]byte{byte(op)}, params...))
}

// send writes data to ch, retrying up to SendTries times.
func (c *Controller) send(ctx context.Context, op string, ch Channel, data []byte) error {
	pipe := "packet"
	if ch != c.pipes.Packet {
		pipe = "control"
	}
	var err error
	for try := 1; try <= c.cfg.SendTries; try++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err = c.t.SendPacket(ch, data); err == nil {
			c.log.WithFields(logrus.Fields{"op": op, "pipe": pipe}).Debugf("sent % X", data)
			c.metrics.packetSent(pipe, len(data), op == "data packet")
			return nil
		}
		if errors.Is(err, ErrDisconnected) {
			return &TransportError{Op: op, Channel: ch, Tries: try, Err: err}
		}
		if try < c.cfg.SendTries {
			c.metrics.retried()
			c.log.WithError(err).WithField("op", op).Debug("send failed, retrying")
			if err := sleep(ctx, c.cfg.SendInterval); err != nil {
				return err
			}
		}
	}
	return &TransportError{Op: op, Channel: ch, Tries: c.cfg.SendTries, Err: err}
}

// await takes the next notification and checks it against want.
func (c *Controller) await(ctx context.Context, want Response) (Response, error) {
	c.mu.Lock()
	c.pending = &want
	c.mu.Unlock()

	b, err := c.q.AwaitNext(ctx, c.cfg.ResponseTimeout)
	if err != nil {
		if errors.Is(err, ErrTimeout) {
			c.metrics.timedOut()
			return Response{}, &TimeoutError{Op: want.String(), After: c.cfg.ResponseTimeout}
		}
		return Response{}, fmt.Errorf("await %v: %w", want, err)
	}
	got, err := ParseResponse(b)
	if err != nil {
		return got, &ProtocolError{Want: want, Got: got, Raw: b, Reason: err.Error()}
	}
	c.metrics.response(got)
	c.mu.Lock()
	c.last = got
	c.mu.Unlock()

	l := c.log.WithField("op", want.String())
	if !want.Matches(got) {
		l.WithFields(logrus.Fields{"got": got, "want": want}).Error("unexpected notification")
		if got.OpCode == OpResponse && got.Request == want.Request && got.Result == ResultCRCError {
			return got, &ChecksumError{Op: got.Request}
		}
		return got, &ProtocolError{Want: want, Got: got, Raw: b}
	}
	l.WithField("response", got).Debug("notification matched")
	return got, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
