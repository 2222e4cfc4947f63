package models

import (
	"sync"
	"sync/atomic"
)

// Readiness is a one-shot signal that flips when model loading finishes,
// successfully or not.
type Readiness struct {
	done  chan struct{}
	once  sync.Once
	ready atomic.Bool
	err   error
}

// NewReadiness returns an unresolved signal.
func NewReadiness() *Readiness {
	return &Readiness{done: make(chan struct{})}
}

// Resolve records the outcome. Later calls are ignored.
func (r *Readiness) Resolve(err error) {
	r.once.Do(func() {
		r.err = err
		r.ready.Store(err == nil)
		close(r.done)
	})
}

// Done is closed once loading finished.
func (r *Readiness) Done() <-chan struct{} {
	return r.done
}

// IsReady reports whether loading succeeded.
func (r *Readiness) IsReady() bool {
	return r.ready.Load()
}

// Err returns the loading error; nil while pending or on success.
func (r *Readiness) Err() error {
	select {
	case <-r.done:
		return r.err
	default:
		return nil
	}
}

// Failed reports whether loading finished with an error.
func (r *Readiness) Failed() bool {
	return r.Err() != nil
}
