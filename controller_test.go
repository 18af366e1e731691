package dfu

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTransport struct {
	mock.Mock
	q *NotificationQueue
}

func newMockTransport() *mockTransport {
	return &mockTransport{q: NewNotificationQueue()}
}

func (m *mockTransport) SendPacket(ch Channel, data []byte) error {
	return m.Called(ch, data).Error(0)
}

func (m *mockTransport) RequestLastValue(ch Channel) ([]byte, error) {
	args := m.Called(ch)
	b, _ := args.Get(0).([]byte)
	return b, args.Error(1)
}

func (m *mockTransport) Notifications() *NotificationQueue { return m.q }

// notify makes the mock answer a send with r.
func (m *mockTransport) notify(r Response) func(mock.Arguments) {
	return func(mock.Arguments) { m.q.Push(r.Bytes()) }
}

var testPipes = Pipes{ControlPoint: 0x10, ControlPointCCCD: 0x11, Packet: 0x13}

func testController(t *testing.T, m *mockTransport, opts ...Option) *Controller {
	cfg := DefaultTransferConfig()
	cfg.ResponseTimeout = 50 * time.Millisecond
	cfg.SilencePeriod = 5 * time.Millisecond
	return NewController(m, testPipes, append([]Option{WithConfig(cfg)}, opts...)...)
}

var errLink = errors.New("link busy")

func TestStart(t *testing.T) {
	m := newMockTransport()
	size := []byte{45, 0, 0, 0}
	m.On("SendPacket", testPipes.ControlPoint, []byte{byte(OpStartDFU)}).Return(nil)
	m.On("SendPacket", testPipes.Packet, size).Return(nil).
		Run(m.notify(ResponseTo(OpStartDFU, ResultSuccess)))

	c := testController(t, m)
	m.q.Push([]byte{0x10, 0x04, 0x01}) // stale, cleared by Start
	require.NoError(t, c.Start(context.Background(), size, ResultSuccess))
	assert.Equal(t, StateReady, c.State())
	assert.Equal(t, ResponseTo(OpStartDFU, ResultSuccess), c.LastResponse())
	m.AssertExpectations(t)
}

func TestStartRejected(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, mock.Anything).Return(nil)
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).
		Run(m.notify(ResponseTo(OpStartDFU, ResultDataSizeExceedsLimit)))

	c := testController(t, m)
	require.NoError(t, c.Start(context.Background(), []byte{0, 144, 1, 0}, ResultDataSizeExceedsLimit))
	assert.Equal(t, StateIdle, c.State())
}

func TestNoDataAfterRejectedStart(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, mock.Anything).Return(nil)
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).
		Run(m.notify(ResponseTo(OpStartDFU, ResultDataSizeExceedsLimit)))

	c := testController(t, m)
	ctx := context.Background()
	require.NoError(t, c.Start(ctx, []byte{0, 144, 1, 0}, ResultDataSizeExceedsLimit))

	cases := []struct {
		name string
		fn   func() error
	}{
		{"init", func() error { return c.SendInit(ctx, []byte{0, 0}) }},
		{"begin", func() error { return c.BeginData(ctx) }},
		{"data", func() error { return c.SendData(ctx, [][]byte{{1, 2, 3}}) }},
		{"stream", func() error { return c.Stream(ctx, [][]byte{{1, 2, 3}}) }},
		{"validate", func() error { return c.Validate(ctx, ResultSuccess) }},
	}
	for _, tt := range cases {
		if err := tt.fn(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s after rejected start: got %v want %v", tt.name, err, ErrInvalidTransition)
		}
	}
	assert.Equal(t, StateIdle, c.State())
	m.AssertNumberOfCalls(t, "SendPacket", 2)
}

func TestStartProtocolError(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, mock.Anything).Return(nil)
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).
		Run(m.notify(ResponseTo(OpStartDFU, ResultDataSizeExceedsLimit)))

	c := testController(t, m)
	err := c.Start(context.Background(), []byte{0, 144, 1, 0}, ResultSuccess)
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.Equal(t, ResultDataSizeExceedsLimit, pe.Got.Result)
	assert.Equal(t, StateIdle, c.State())
}

func TestAwaitTimeout(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", mock.Anything, mock.Anything).Return(nil)

	c := testController(t, m)
	err := c.Start(context.Background(), []byte{1, 0, 0, 0}, ResultSuccess)
	assert.True(t, errors.Is(err, ErrTimeout), "got %v", err)
	var te *TimeoutError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, 50*time.Millisecond, te.After)
	assert.Equal(t, StateIdle, c.State())
}

func TestSendRetries(t *testing.T) {
	m := newMockTransport()
	cmd := []byte{byte(OpResetSystem)}
	m.On("SendPacket", testPipes.ControlPoint, cmd).Return(errLink).Twice()
	m.On("SendPacket", testPipes.ControlPoint, cmd).Return(nil).Once()

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	c := testController(t, m, WithMetrics(metrics))
	c.cfg.SendTries = 3
	require.NoError(t, c.Reset(context.Background()))
	m.AssertNumberOfCalls(t, "SendPacket", 3)
	assert.Equal(t, 2.0, testutil.ToFloat64(metrics.retries))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.packets.WithLabelValues("control")))
	assert.Equal(t, StateTerminal, c.State())
}

func TestSendGivesUp(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", mock.Anything, mock.Anything).Return(errLink)

	c := testController(t, m)
	c.cfg.SendTries = 2
	err := c.Start(context.Background(), []byte{1, 0, 0, 0}, ResultSuccess)
	var te *TransportError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Equal(t, 2, te.Tries)
	assert.Equal(t, testPipes.ControlPoint, te.Channel)
	assert.True(t, errors.Is(err, errLink))
}

func TestSendDisconnected(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", mock.Anything, mock.Anything).Return(ErrDisconnected)

	c := testController(t, m)
	c.cfg.SendTries = 5
	err := c.Start(context.Background(), []byte{1, 0, 0, 0}, ResultSuccess)
	assert.True(t, errors.Is(err, ErrDisconnected))
	m.AssertNumberOfCalls(t, "SendPacket", 1)
}

func TestSendInitUnsolicited(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, []byte{byte(OpReceiveInitPack)}).Return(nil).
		Run(m.notify(ResponseTo(OpReceiveInitPack, ResultSuccess)))

	c := testController(t, m)
	c.state = StateReady
	err := c.SendInit(context.Background(), []byte{0xB1, 0x29})
	assert.True(t, errors.Is(err, ErrUnsolicited), "got %v", err)
	m.AssertNotCalled(t, "SendPacket", testPipes.Packet, mock.Anything)
}

func TestSendInit(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, []byte{byte(OpReceiveInitPack)}).Return(nil)
	m.On("SendPacket", testPipes.Packet, []byte{0xB1, 0x29}).Return(nil).
		Run(m.notify(ResponseTo(OpReceiveInitPack, ResultSuccess)))

	c := testController(t, m)
	c.state = StateReady
	require.NoError(t, c.SendInit(context.Background(), []byte{0xB1, 0x29}))
	assert.Equal(t, StateAwaitingInit, c.State())
}

func TestInvalidTransition(t *testing.T) {
	c := testController(t, newMockTransport())
	ctx := context.Background()
	cases := []struct {
		name string
		fn   func() error
	}{
		{"validate", func() error { return c.Validate(ctx, ResultSuccess) }},
		{"init", func() error { return c.SendInit(ctx, []byte{0, 0}) }},
		{"data", func() error { return c.SendData(ctx, nil) }},
		{"packet", func() error { return c.SendPacketExpect(ctx, []byte{1}, ResultSuccess) }},
		{"begin", func() error { return c.BeginData(ctx) }},
	}
	for _, tt := range cases {
		if err := tt.fn(); !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s in IDLE: got %v want %v", tt.name, err, ErrInvalidTransition)
		}
	}
}

func TestBusy(t *testing.T) {
	c := testController(t, newMockTransport())
	want := ResponseTo(OpValidate, ResultSuccess)
	c.busy, c.pending = true, &want
	err := c.Start(context.Background(), []byte{1, 0, 0, 0}, ResultSuccess)
	assert.True(t, errors.Is(err, ErrBusy))
	assert.Contains(t, err.Error(), "RESPONSE(VALIDATE, SUCCESS)")
}

func TestValidateChecksumError(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, []byte{byte(OpValidate)}).Return(nil).
		Run(m.notify(ResponseTo(OpValidate, ResultCRCError)))

	c := testController(t, m)
	c.state = StateReceivingData
	err := c.Validate(context.Background(), ResultSuccess)
	var ce *ChecksumError
	require.True(t, errors.As(err, &ce), "got %v", err)
	assert.Equal(t, OpValidate, ce.Op)
	assert.Equal(t, StateValidating, c.State())
}

func TestValidateExpectedFailure(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, []byte{byte(OpValidate)}).Return(nil).
		Run(m.notify(ResponseTo(OpValidate, ResultCRCError)))

	c := testController(t, m)
	c.state = StateReceivingData
	assert.NoError(t, c.Validate(context.Background(), ResultCRCError))
}

func TestStreamWithReceipts(t *testing.T) {
	m := newMockTransport()
	pkts := [][]byte{make([]byte, 20), make([]byte, 20), make([]byte, 20), make([]byte, 5)}
	m.On("SendPacket", testPipes.ControlPoint, mock.Anything).Return(nil)
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).Once()
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).Once().
		Run(m.notify(ReceiptNotification(40)))
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).Once()
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).Once().
		Run(func(mock.Arguments) {
			m.q.Push(ReceiptNotification(65).Bytes())
			m.q.Push(ResponseTo(OpReceiveDataPack, ResultSuccess).Bytes())
		})

	c := testController(t, m)
	ctx := context.Background()
	require.NoError(t, c.SetReceiptInterval(ctx, 2))
	m.AssertCalled(t, "SendPacket", testPipes.ControlPoint, []byte{byte(OpReceiptNotifyReq), 2, 0})
	c.state = StateReady
	require.NoError(t, c.BeginData(ctx))
	require.NoError(t, c.Stream(ctx, pkts))
	assert.Equal(t, ResponseTo(OpReceiveDataPack, ResultSuccess), c.LastResponse())
}

func TestStreamWrongReceipt(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPoint, mock.Anything).Return(nil)
	m.On("SendPacket", testPipes.Packet, mock.Anything).Return(nil).
		Run(m.notify(ReceiptNotification(19)))

	c := testController(t, m)
	c.receipt = 1
	c.state = StateReceivingData
	err := c.SendData(context.Background(), [][]byte{make([]byte, 20)})
	var pe *ProtocolError
	require.True(t, errors.As(err, &pe), "got %v", err)
	assert.EqualValues(t, 20, pe.Want.Param)
	assert.EqualValues(t, 19, pe.Got.Param)
}

func TestReportSize(t *testing.T) {
	m := newMockTransport()
	r := ResponseTo(OpReportSize, ResultSuccess)
	r.Param = 100
	m.On("SendPacket", testPipes.ControlPoint, []byte{byte(OpReportSize)}).Return(nil).Run(m.notify(r))

	c := testController(t, m)
	c.state = StateReceivingData
	require.NoError(t, c.ReportSize(context.Background(), 100))
	err := c.ReportSize(context.Background(), 99)
	assert.Error(t, err)
}

func TestEnableNotifications(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPointCCCD, []byte{0, 0}).Return(nil)
	m.On("SendPacket", testPipes.ControlPointCCCD, []byte{1, 0}).Return(nil)
	m.On("RequestLastValue", testPipes.ControlPointCCCD).Return([]byte{0, 0}, nil).Once()
	m.On("RequestLastValue", testPipes.ControlPointCCCD).Return([]byte{1, 0}, nil).Once()

	c := testController(t, m)
	require.NoError(t, c.EnableNotifications(context.Background()))
	m.AssertExpectations(t)

	m.On("RequestLastValue", testPipes.ControlPointCCCD).Return([]byte{2, 0}, nil)
	assert.True(t, errors.Is(c.ValidateCCCD(context.Background()), ErrCCCD))
}

func TestEnableNotificationsNotStored(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", testPipes.ControlPointCCCD, mock.Anything).Return(nil)
	m.On("RequestLastValue", testPipes.ControlPointCCCD).Return([]byte{0, 0}, nil)

	c := testController(t, m)
	err := c.EnableNotifications(context.Background())
	assert.True(t, errors.Is(err, ErrCCCD), "got %v", err)
}

func TestActivateIgnoresSendFailure(t *testing.T) {
	m := newMockTransport()
	m.On("SendPacket", mock.Anything, mock.Anything).Return(errLink)

	c := testController(t, m)
	c.state = StateValidating
	require.NoError(t, c.Activate(context.Background()))
	assert.Equal(t, StateTerminal, c.State())
	assert.True(t, errors.Is(c.Activate(context.Background()), ErrInvalidTransition))
}

func TestExpectDisconnect(t *testing.T) {
	m := newMockTransport()
	c := testController(t, m)

	err := c.ExpectDisconnect(context.Background(), 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrTimeout))

	m.q.Push([]byte{0x11, 0x14, 0x00})
	err = c.ExpectDisconnect(context.Background(), 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrUnsolicited))

	m.q.Close()
	require.NoError(t, c.ExpectDisconnect(context.Background(), 10*time.Millisecond))
	assert.Equal(t, StateTerminal, c.State())
}
