package gatt

import "sync"

// A Descriptor is a characteristic descriptor with a stored value.
type Descriptor struct {
	uuid     UUID
	writable bool
	char     *Characteristic
	n        uint16

	mu    sync.Mutex
	value []byte
}

func (d *Descriptor) handle(n uint16) handle {
	d.n = n
	props := uint(charRead)
	if d.writable {
		props |= charWrite
	}
	return handle{
		typ:    typDescriptor,
		n:      n,
		uuid:   d.uuid,
		attr:   d,
		props:  props,
		secure: 0,
		value:  d.value,
	}
}

// SetValue sets the descriptor's stored value.
func (d *Descriptor) SetValue(b []byte) {
	d.mu.Lock()
	d.value = append([]byte(nil), b...)
	d.mu.Unlock()
}

// Value returns a copy of the stored value.
func (d *Descriptor) Value() []byte {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]byte(nil), d.value...)
}

// UUID returns the descriptor's UUID.
func (d *Descriptor) UUID() UUID {
	return d.uuid
}

// Handle returns the descriptor's attribute handle.
func (d *Descriptor) Handle() uint16 {
	return d.n
}
