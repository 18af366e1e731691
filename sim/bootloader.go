package sim

import (
	"encoding/binary"
	"sync"
	"time"

	"github.com/XC-/dfu"
	"github.com/XC-/dfu/gatt"
	"github.com/sirupsen/logrus"
)

type state int

const (
	stIdle state = iota
	stStarting
	stReady
	stRxInit
	stRxData
	stFwValid
	stFwInvalid
	stError
	stAny
)

var stateNames = [...]string{"IDLE", "STARTING", "READY", "RX_INIT_PKT", "RX_DATA_PKT", "FW_VALID", "FW_INVALID", "ERROR", "ANY"}

func (s state) String() string { return stateNames[s] }

// event is a control point op code or evPacket for a packet pipe write.
type event int

const evPacket event = 0x100

func (e event) String() string {
	if e == evPacket {
		return "PACKET"
	}
	return dfu.OpCode(e).String()
}

type transition struct {
	from state
	ev   event
	fn   func(b *Bootloader, data []byte)
}

// transitions is searched in order; the first match wins.
var transitions = []transition{
	{stIdle, event(dfu.OpStartDFU), (*Bootloader).startDFU},
	{stStarting, evPacket, (*Bootloader).imageSize},
	{stReady, event(dfu.OpReceiveInitPack), (*Bootloader).beginInit},
	{stRxInit, evPacket, (*Bootloader).initPacket},
	{stReady, event(dfu.OpReceiveDataPack), (*Bootloader).beginData},
	{stRxInit, event(dfu.OpReceiveDataPack), (*Bootloader).beginData},
	{stRxData, evPacket, (*Bootloader).dataPacket},
	{stError, evPacket, (*Bootloader).rejectPacket},
	{stRxData, event(dfu.OpValidate), (*Bootloader).validate},
	{stError, event(dfu.OpValidate), (*Bootloader).validate},
	{stFwValid, event(dfu.OpActivateAndReset), (*Bootloader).activate},
	{stAny, event(dfu.OpActivateAndReset), (*Bootloader).systemReset},
	{stAny, event(dfu.OpResetSystem), (*Bootloader).systemReset},
	{stAny, event(dfu.OpReceiptNotifyReq), (*Bootloader).receiptInterval},
	{stAny, event(dfu.OpReportSize), (*Bootloader).reportSize},
}

// A Bootloader is the device side of the DFU exchange.
type Bootloader struct {
	maxSize uint32
	timeout time.Duration
	log     logrus.FieldLogger
	onReset func()

	ctrl *gatt.Characteristic
	pkt  *gatt.Characteristic

	mu          sync.Mutex
	state       state
	notifier    gatt.Notifier
	size        uint32
	expectedCRC uint16
	crc         uint16
	received    uint32
	packets     uint32
	interval    uint16
	timer       *time.Timer
	gen         uint64
	activations int
	resets      int
	image       []byte
}

func newBootloader(cfg dfu.SimConfig, log logrus.FieldLogger, svc *gatt.Service) *Bootloader {
	b := &Bootloader{
		maxSize: cfg.MaxImageSize,
		timeout: cfg.InactivityTimeout,
		log:     log,
	}
	b.ctrl = svc.AddCharacteristic(dfu.ControlPointUUID)
	b.ctrl.HandleWriteFunc(func(r gatt.Request, data []byte) byte {
		if len(data) == 0 {
			return gatt.StatusInvalidLength
		}
		b.dispatch(event(data[0]), data)
		return gatt.StatusSuccess
	})
	b.ctrl.HandleNotifyFunc(func(r gatt.Request, n gatt.Notifier) {
		b.mu.Lock()
		b.notifier = n
		b.mu.Unlock()
	})
	b.pkt = svc.AddCharacteristic(dfu.PacketUUID)
	b.pkt.HandleWriteFunc(func(r gatt.Request, data []byte) byte {
		b.dispatch(evPacket, data)
		return gatt.StatusSuccess
	})
	svc.AddCharacteristic(dfu.VersionUUID).SetValue([]byte{0x08, 0x00})
	return b
}

func (b *Bootloader) dispatch(ev event, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	l := b.log.WithFields(logrus.Fields{"state": b.state, "event": ev})
	for _, t := range transitions {
		if (t.from == b.state || t.from == stAny) && t.ev == ev {
			l.Debugf("handling % X", data)
			t.fn(b, data)
			b.touch()
			return
		}
	}
	if ev == evPacket {
		l.Warn("dropping packet")
		return
	}
	op := dfu.OpCode(ev)
	if op < dfu.OpStartDFU || op > dfu.OpReceiptNotifyReq {
		b.respond(dfu.ResponseTo(op, dfu.ResultNotSupported))
		return
	}
	b.respond(dfu.ResponseTo(op, dfu.ResultInvalidState))
}

// touch rearms the inactivity timer while an update is in progress.
func (b *Bootloader) touch() {
	if b.timeout <= 0 {
		return
	}
	if b.timer != nil {
		b.timer.Stop()
	}
	b.gen++
	if b.state == stIdle {
		b.timer = nil
		return
	}
	gen := b.gen
	b.timer = time.AfterFunc(b.timeout, func() { b.expire(gen) })
}

// expire resets the device unless the timer that fired was rearmed or
// stopped after it was started.
func (b *Bootloader) expire(gen uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if gen != b.gen || b.state == stIdle {
		return
	}
	b.log.WithField("state", b.state).Warn("inactivity timeout")
	b.reset()
}

func (b *Bootloader) respond(r dfu.Response) {
	if b.notifier == nil || b.notifier.Done() {
		b.log.WithField("response", r).Warn("notifications disabled, dropping response")
		return
	}
	if _, err := b.notifier.Write(r.Bytes()); err != nil {
		b.log.WithError(err).Warn("notify failed")
	}
}

func (b *Bootloader) startDFU(data []byte) {
	b.state = stStarting
}

func (b *Bootloader) imageSize(data []byte) {
	b.state = stIdle
	if len(data) != 4 {
		b.respond(dfu.ResponseTo(dfu.OpStartDFU, dfu.ResultOperationFailed))
		return
	}
	size := binary.LittleEndian.Uint32(data)
	if b.maxSize > 0 && size > b.maxSize {
		b.respond(dfu.ResponseTo(dfu.OpStartDFU, dfu.ResultDataSizeExceedsLimit))
		return
	}
	b.size = size
	b.state = stReady
	b.respond(dfu.ResponseTo(dfu.OpStartDFU, dfu.ResultSuccess))
}

func (b *Bootloader) beginInit(data []byte) {
	b.state = stRxInit
}

func (b *Bootloader) initPacket(data []byte) {
	if len(data) != 2 {
		b.respond(dfu.ResponseTo(dfu.OpReceiveInitPack, dfu.ResultOperationFailed))
		return
	}
	b.expectedCRC = binary.LittleEndian.Uint16(data)
	b.respond(dfu.ResponseTo(dfu.OpReceiveInitPack, dfu.ResultSuccess))
}

func (b *Bootloader) beginData(data []byte) {
	b.state = stRxData
	b.crc = dfu.CRCInit
	b.received = 0
	b.packets = 0
	b.image = b.image[:0]
}

func (b *Bootloader) dataPacket(data []byte) {
	if b.received+uint32(len(data)) > b.size {
		b.state = stError
		b.respond(dfu.ResponseTo(dfu.OpReceiveDataPack, dfu.ResultDataSizeExceedsLimit))
		return
	}
	for _, c := range data {
		b.crc = dfu.UpdateCRC(b.crc, c)
	}
	b.image = append(b.image, data...)
	b.received += uint32(len(data))
	b.packets++
	if b.interval > 0 && b.packets%uint32(b.interval) == 0 {
		b.respond(dfu.ReceiptNotification(uint16(b.received)))
	}
	if b.received == b.size {
		b.respond(dfu.ResponseTo(dfu.OpReceiveDataPack, dfu.ResultSuccess))
	}
}

func (b *Bootloader) rejectPacket(data []byte) {
	b.respond(dfu.ResponseTo(dfu.OpReceiveDataPack, dfu.ResultOperationFailed))
}

func (b *Bootloader) validate(data []byte) {
	res := dfu.ResultSuccess
	switch {
	case b.state != stRxData || b.received != b.size:
		res = dfu.ResultInvalidState
	case b.crc != b.expectedCRC:
		res = dfu.ResultCRCError
	}
	b.state = stFwInvalid
	if res == dfu.ResultSuccess {
		b.state = stFwValid
	}
	b.respond(dfu.ResponseTo(dfu.OpValidate, res))
}

func (b *Bootloader) activate(data []byte) {
	b.log.WithField("size", b.received).Info("activating image")
	b.activations++
	b.reset()
}

func (b *Bootloader) systemReset(data []byte) {
	b.reset()
}

func (b *Bootloader) receiptInterval(data []byte) {
	if len(data) < 3 {
		b.interval = 0
		return
	}
	b.interval = binary.LittleEndian.Uint16(data[1:])
}

func (b *Bootloader) reportSize(data []byte) {
	r := dfu.ResponseTo(dfu.OpReportSize, dfu.ResultSuccess)
	r.Param = uint16(b.received)
	b.respond(r)
}

// reset returns to IDLE and drops the connection. b.mu must be held.
func (b *Bootloader) reset() {
	b.state = stIdle
	b.size, b.expectedCRC, b.crc, b.received, b.packets, b.interval = 0, 0, 0, 0, 0, 0
	b.notifier = nil
	b.resets++
	b.gen++
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
	if b.onReset != nil {
		b.onReset()
	}
}

// Reset resets the device, as a programmer toggling its reset line would.
func (b *Bootloader) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.log.Info("external reset")
	b.reset()
}

// Activations counts images that validated and were activated.
func (b *Bootloader) Activations() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activations
}

// Resets counts device resets of any cause.
func (b *Bootloader) Resets() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.resets
}

// Image returns the bytes received in the current or last transfer.
func (b *Bootloader) Image() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]byte(nil), b.image...)
}
