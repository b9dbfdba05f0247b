// Package shutdown provides a single-use termination signal shared between
// the host and the embedded service.
package shutdown

import "sync"

// Trigger delivers one termination event to one waiting consumer.
// Fire may be called any number of times from any goroutine; only the first
// call has an effect.
type Trigger struct {
	mu sync.Mutex
	ch chan struct{}
	// pending is nil once the trigger has fired.
	pending chan struct{}
}

// New returns an unfired trigger.
func New() *Trigger {
	ch := make(chan struct{})
	return &Trigger{ch: ch, pending: ch}
}

// Fire delivers the signal. It reports whether this call delivered it.
func (t *Trigger) Fire() bool {
	t.mu.Lock()
	ch := t.pending
	t.pending = nil
	t.mu.Unlock()

	if ch == nil {
		return false
	}
	close(ch)
	return true
}

// Done returns a channel that is closed once the trigger fires.
func (t *Trigger) Done() <-chan struct{} {
	return t.ch
}

// Fired reports whether the signal has been delivered.
func (t *Trigger) Fired() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.pending == nil
}
