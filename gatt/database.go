package gatt

import (
	"encoding/binary"
	"errors"
	"sync"
)

// ErrNotConnected is returned by a Notifier when no peer is attached.
var ErrNotConnected = errors.New("no peer attached")

// A NotifyFunc delivers a notification for the characteristic value handle h
// to the connected peer.
type NotifyFunc func(h uint16, data []byte) error

// A Database is an attribute table built from a set of services.
type Database struct {
	name string
	mtu  int
	svcs []*Service

	handles *handleRange

	mu     sync.Mutex
	notify NotifyFunc
}

// An Option configures a Database.
type Option func(*Database)

// Name sets the device name served from the GAP service.
func Name(n string) Option {
	return func(d *Database) { d.name = n }
}

// MTU sets the ATT MTU. Notifications carry at most MTU-3 bytes.
func MTU(n int) Option {
	return func(d *Database) { d.mtu = n }
}

// NewDatabase assigns handles to svcs, starting at handle 1 after the GAP
// and GATT services.
func NewDatabase(svcs []*Service, opts ...Option) *Database {
	d := &Database{name: "gatt", mtu: 23, svcs: svcs}
	for _, opt := range opts {
		opt(d)
	}
	d.handles = generateHandles(d.name, svcs, uint16(1)) // ble handles start at 1
	return d
}

// Attach routes notifications to f. A nil f detaches the peer and stops
// every active notifier.
func (d *Database) Attach(f NotifyFunc) {
	d.mu.Lock()
	d.notify = f
	d.mu.Unlock()
	if f == nil {
		d.stopAll()
	}
}

// Lookup finds the value handle of the characteristic char in service svc
// and the handle of its client characteristic configuration descriptor,
// which is 0 when the characteristic does not notify.
func (d *Database) Lookup(svc, char UUID) (value, cccd uint16, ok bool) {
	for _, s := range d.handles.hh {
		if !s.isPrimaryService(svc) {
			continue
		}
		var in bool
		for _, h := range d.handles.Subrange(s.startn+1, s.endn) {
			switch {
			case h.typ == typCharacteristic:
				in = h.isCharacteristic(char)
				if in {
					value, ok = h.valuen, true
				}
			case in && h.isDescriptor(attrClientCharacteristicConfigUUID):
				cccd = h.n
			}
		}
		return value, cccd, ok
	}
	return 0, 0, false
}

// Read serves a read of attribute n.
func (d *Database) Read(n uint16) ([]byte, byte) {
	h, ok := d.handles.At(n)
	if !ok {
		return nil, StatusInvalidHandle
	}
	if h.props&charRead == 0 {
		return nil, StatusReadNotPermit
	}
	switch a := h.attr.(type) {
	case *Characteristic:
		if h.typ != typCharacteristicValue {
			return nil, StatusReadNotPermit
		}
		return d.readChar(a, d.mtu-1, 0)
	case *Descriptor:
		return a.Value(), StatusSuccess
	}
	return nil, StatusReadNotPermit
}

// Write serves a write of data to attribute n.
func (d *Database) Write(n uint16, data []byte) byte {
	h, ok := d.handles.At(n)
	if !ok {
		return StatusInvalidHandle
	}
	if h.props&(charWrite|charWriteNR) == 0 {
		return StatusWriteNotPermit
	}
	switch a := h.attr.(type) {
	case *Characteristic:
		if h.typ != typCharacteristicValue {
			return StatusWriteNotPermit
		}
		return d.writeChar(a, data)
	case *Descriptor:
		if a != a.char.cccd {
			a.SetValue(data)
			return StatusSuccess
		}
		if len(data) != 2 {
			return StatusInvalidLength
		}
		a.SetValue(data)
		if binary.LittleEndian.Uint16(data)&CCCNotifyFlag != 0 {
			d.startNotify(a.char, d.mtu-3)
		} else {
			d.stopNotify(a.char)
		}
		return StatusSuccess
	}
	return StatusWriteNotPermit
}

func (d *Database) readChar(c *Characteristic, maxlen int, offset int) ([]byte, byte) {
	if c.rhandler == nil {
		if offset > len(c.value) {
			return nil, StatusInvalidOffset
		}
		return append([]byte(nil), c.value[offset:]...), StatusSuccess
	}
	resp := newReadResponseWriter(maxlen)
	req := &ReadRequest{
		Request: Request{Service: c.service, Characteristic: c},
		Cap:     maxlen,
		Offset:  offset,
	}
	c.rhandler.ServeRead(resp, req)
	return resp.bytes(), resp.status
}

func (d *Database) writeChar(c *Characteristic, data []byte) byte {
	if c.whandler == nil {
		return StatusWriteNotPermit
	}
	return c.whandler.ServeWrite(Request{Service: c.service, Characteristic: c}, data)
}

func (d *Database) startNotify(c *Characteristic, maxlen int) {
	d.mu.Lock()
	if c.notifier != nil || c.nhandler == nil {
		d.mu.Unlock()
		return
	}
	n := newNotifier(d, c, maxlen)
	c.notifier = n
	d.mu.Unlock()
	c.nhandler.ServeNotify(Request{Service: c.service, Characteristic: c}, n)
}

func (d *Database) stopNotify(c *Characteristic) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if c.notifier == nil {
		return
	}
	c.notifier.stop()
	c.notifier = nil
}

// stopAll ends every subscription and clears the stored CCCD values.
func (d *Database) stopAll() {
	for _, s := range d.svcs {
		for _, c := range s.chars {
			d.stopNotify(c)
			if c.cccd != nil {
				c.cccd.SetValue([]byte{0x00, 0x00})
			}
		}
	}
}

func (d *Database) sendNotification(c *Characteristic, data []byte) (int, error) {
	d.mu.Lock()
	f := d.notify
	d.mu.Unlock()
	if f == nil {
		return 0, ErrNotConnected
	}
	if err := f(c.valuen, append([]byte(nil), data...)); err != nil {
		return 0, err
	}
	return len(data), nil
}
