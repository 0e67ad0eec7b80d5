package sandbox

import "sync"

// readiness is a one-shot NotReady -> Ready transition. Waiters block on
// done() and are all released when fire closes the channel.
type readiness struct {
	once sync.Once
	ch   chan struct{}
}

func newReadiness() *readiness {
	return &readiness{ch: make(chan struct{})}
}

func (r *readiness) fire() {
	r.once.Do(func() { close(r.ch) })
}

func (r *readiness) done() <-chan struct{} {
	return r.ch
}

func (r *readiness) isSet() bool {
	select {
	case <-r.ch:
		return true
	default:
		return false
	}
}
