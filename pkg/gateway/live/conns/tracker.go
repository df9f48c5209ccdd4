// Package conns tracks live WebSocket connections so shutdown can notify
// and then cancel them, and wait for their goroutines to finish.
package conns

import (
	"context"
	"sync"
)

type Handle struct {
	Cancel func()
	Notify func(message string) error
}

type Tracker struct {
	mu    sync.Mutex
	conns map[string]*trackedConn
	wg    sync.WaitGroup
}

type trackedConn struct {
	handle Handle
	once   sync.Once
}

func NewTracker() *Tracker {
	return &Tracker{
		conns: make(map[string]*trackedConn),
	}
}

func (t *Tracker) Register(connID string, h Handle) (unregister func()) {
	if t == nil {
		return func() {}
	}

	entry := &trackedConn{handle: h}

	t.mu.Lock()
	if t.conns == nil {
		t.conns = make(map[string]*trackedConn)
	}
	old := t.conns[connID]
	t.conns[connID] = entry
	t.wg.Add(1)
	t.mu.Unlock()

	if old != nil {
		t.unregister(connID, old)
	}

	return func() { t.unregister(connID, entry) }
}

func (t *Tracker) unregister(connID string, entry *trackedConn) {
	if t == nil || entry == nil {
		return
	}
	entry.once.Do(func() {
		t.mu.Lock()
		if t.conns != nil && t.conns[connID] == entry {
			delete(t.conns, connID)
		}
		t.mu.Unlock()
		t.wg.Done()
	})
}

func (t *Tracker) Count() int {
	if t == nil {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.conns)
}

// NotifyAll sends a courtesy message to every live connection, typically
// right before CancelAll during graceful shutdown.
func (t *Tracker) NotifyAll(message string) (sent int) {
	if t == nil {
		return 0
	}

	var notifies []func(message string) error
	t.mu.Lock()
	for _, entry := range t.conns {
		if entry == nil || entry.handle.Notify == nil {
			continue
		}
		notifies = append(notifies, entry.handle.Notify)
	}
	t.mu.Unlock()

	for _, notify := range notifies {
		_ = notify(message)
		sent++
	}
	return sent
}

func (t *Tracker) CancelAll() (canceled int) {
	if t == nil {
		return 0
	}

	var cancels []func()
	t.mu.Lock()
	for _, entry := range t.conns {
		if entry == nil || entry.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, entry.handle.Cancel)
	}
	t.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

func (t *Tracker) Wait(ctx context.Context) bool {
	if t == nil {
		return true
	}
	if ctx == nil {
		t.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		t.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
