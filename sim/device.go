package sim

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/XC-/dfu"
	"github.com/XC-/dfu/gatt"
	"github.com/sirupsen/logrus"
)

// ErrConnected is returned by Dial while another link is open.
var ErrConnected = errors.New("sim: device already connected")

// A Device is a simulated DFU target. It accepts one connection at a time.
type Device struct {
	boot *Bootloader
	db   *gatt.Database
	log  logrus.FieldLogger
	adv  []byte
	scan []byte

	failWrites atomic.Int32

	mu   sync.Mutex
	link *Link
}

// NewDevice builds a device from cfg. A nil log discards output.
func NewDevice(cfg dfu.SimConfig, log logrus.FieldLogger) *Device {
	if log == nil {
		l := logrus.New()
		l.SetLevel(logrus.PanicLevel)
		log = l
	}
	log = log.WithField("device", cfg.Name)
	svc := gatt.NewService(dfu.ServiceUUID)
	d := &Device{log: log}
	d.boot = newBootloader(cfg, log, svc)
	d.boot.onReset = d.disconnect
	d.db = gatt.NewDatabase([]*gatt.Service{svc}, gatt.Name(cfg.Name))
	d.adv, _ = gatt.ServiceAdvertisingPacket([]gatt.UUID{dfu.ServiceUUID})
	d.scan = gatt.NameScanResponsePacket(cfg.Name)
	return d
}

// Advertisement returns the advertising packet and scan response the
// device broadcasts while in its bootloader.
func (d *Device) Advertisement() (adv, scan []byte) {
	return d.adv, d.scan
}

// Bootloader returns the device's bootloader.
func (d *Device) Bootloader() *Bootloader { return d.boot }

// FailWrites makes the next n writes fail with an ATT error.
func (d *Device) FailWrites(n int) { d.failWrites.Store(int32(n)) }

// Dial connects to the device.
func (d *Device) Dial(ctx context.Context) (dfu.Link, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.link != nil {
		return nil, ErrConnected
	}
	l := &Link{dev: d, q: dfu.NewNotificationQueue()}
	d.link = l
	d.db.Attach(l.deliver)
	d.log.Debug("connected")
	return l, nil
}

// ResetDevice resets the device out of band.
func (d *Device) ResetDevice() error {
	d.boot.Reset()
	return nil
}

// disconnect drops the current link, if any.
func (d *Device) disconnect() {
	d.mu.Lock()
	l := d.link
	d.link = nil
	d.mu.Unlock()
	if l == nil {
		return
	}
	d.db.Attach(nil)
	l.drop()
	d.log.Debug("disconnected")
}

// release drops l if it is still the current link.
func (d *Device) release(l *Link) {
	d.mu.Lock()
	current := d.link == l
	d.mu.Unlock()
	if current {
		d.disconnect()
	}
}

// write is the device's side of an ATT write.
func (d *Device) write(h uint16, data []byte) byte {
	if d.failWrites.Load() > 0 && d.failWrites.Add(-1) >= 0 {
		return gatt.StatusUnexpectedError
	}
	return d.db.Write(h, data)
}

// A Link is a connection to a Device.
type Link struct {
	dev    *Device
	q      *dfu.NotificationQueue
	closed atomic.Bool
}

// SendPacket writes data to the attribute ch.
func (l *Link) SendPacket(ch dfu.Channel, data []byte) error {
	if l.closed.Load() {
		return dfu.ErrDisconnected
	}
	if st := l.dev.write(uint16(ch), append([]byte(nil), data...)); st != gatt.StatusSuccess {
		return fmt.Errorf("write 0x%04X: %s", uint16(ch), gatt.StatusText(st))
	}
	return nil
}

// RequestLastValue reads the attribute ch.
func (l *Link) RequestLastValue(ch dfu.Channel) ([]byte, error) {
	if l.closed.Load() {
		return nil, dfu.ErrDisconnected
	}
	v, st := l.dev.db.Read(uint16(ch))
	if st != gatt.StatusSuccess {
		return nil, fmt.Errorf("read 0x%04X: %s", uint16(ch), gatt.StatusText(st))
	}
	return v, nil
}

// Notifications returns the control point notification queue.
func (l *Link) Notifications() *dfu.NotificationQueue { return l.q }

// Discover locates the DFU service's control point, its CCCD and the
// packet characteristic.
func (l *Link) Discover(ctx context.Context) (dfu.Pipes, error) {
	if l.closed.Load() {
		return dfu.Pipes{}, dfu.ErrDisconnected
	}
	cp, cccd, ok := l.dev.db.Lookup(dfu.ServiceUUID, dfu.ControlPointUUID)
	if !ok || cccd == 0 {
		return dfu.Pipes{}, errors.New("control point not found")
	}
	pkt, _, ok := l.dev.db.Lookup(dfu.ServiceUUID, dfu.PacketUUID)
	if !ok {
		return dfu.Pipes{}, errors.New("packet characteristic not found")
	}
	return dfu.Pipes{
		ControlPoint:     dfu.Channel(cp),
		ControlPointCCCD: dfu.Channel(cccd),
		Packet:           dfu.Channel(pkt),
	}, nil
}

// Close disconnects.
func (l *Link) Close() error {
	l.dev.release(l)
	l.drop()
	return nil
}

func (l *Link) drop() {
	if l.closed.CompareAndSwap(false, true) {
		l.q.Close()
	}
}

func (l *Link) deliver(h uint16, data []byte) error {
	if l.closed.Load() {
		return dfu.ErrDisconnected
	}
	return l.q.Push(data)
}
