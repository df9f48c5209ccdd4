// Package lifecycle holds the gateway's drain state. The signal handler
// flips it when shutdown starts; /readyz and the WebSocket upgrade path
// read it so load balancers stop routing while in-flight interviews
// finish.
package lifecycle

import "sync/atomic"

type Lifecycle struct {
	draining atomic.Bool
}

// BeginDrain marks the gateway as draining. Draining is one-way; the
// process exits once the grace period ends.
func (l *Lifecycle) BeginDrain() {
	if l == nil {
		return
	}
	l.draining.Store(true)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}
