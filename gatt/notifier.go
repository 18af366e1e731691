package gatt

import (
	"errors"
	"sync"
)

// ErrNotifyStopped is returned by a Notifier after the peer unsubscribed.
var ErrNotifyStopped = errors.New("central stopped notifications")

type notifier struct {
	db     *Database
	char   *Characteristic
	maxlen int
	donemu sync.RWMutex
	done   bool
}

func newNotifier(db *Database, cc *Characteristic, maxlen int) *notifier {
	return &notifier{db: db, char: cc, maxlen: maxlen}
}

func (n *notifier) Write(data []byte) (int, error) {
	if n.Done() {
		return 0, ErrNotifyStopped
	}
	if len(data) > n.maxlen {
		data = data[:n.maxlen]
	}
	return n.db.sendNotification(n.char, data)
}

func (n *notifier) Cap() int {
	return n.maxlen
}

func (n *notifier) Done() bool {
	n.donemu.RLock()
	done := n.done
	n.donemu.RUnlock()
	return done
}

func (n *notifier) stop() {
	n.donemu.Lock()
	n.done = true
	n.donemu.Unlock()
}
