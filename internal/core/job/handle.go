package job

import (
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
)

// Handle states. Terminal states are absorbing: once a handle reports
// completed or faulted it never changes again.
const (
	statePending int32 = iota
	stateRunning
	stateCompleted
	stateFaulted
)

// Handle is the waitable, inspectable reference to one scheduled unit of
// work. It is resolved exactly once, by the worker that finishes the work.
type Handle struct {
	state int32 // atomic

	mu        sync.Mutex
	err       error
	callbacks []func()
	done      chan struct{}
}

func newHandle() *Handle {
	return &Handle{done: make(chan struct{})}
}

// newCompletedHandle returns an already-resolved handle. Used for zero-size
// parallel/batch ranges and empty combines.
func newCompletedHandle(err error) *Handle {
	h := newHandle()
	h.resolve(err)
	return h
}

// Completed reports whether the work has resolved, successfully or not.
func (h *Handle) Completed() bool {
	s := atomic.LoadInt32(&h.state)
	return s == stateCompleted || s == stateFaulted
}

// Faulted reports whether the work resolved with a captured error.
func (h *Handle) Faulted() bool {
	return atomic.LoadInt32(&h.state) == stateFaulted
}

// Err returns the captured error, or nil if the work succeeded or has not
// resolved yet. The error remains retrievable for the life of the handle.
func (h *Handle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

// Done returns a channel closed when the handle resolves.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the handle resolves.
func (h *Handle) Wait() { <-h.done }

// WaitTimeout blocks up to d and reports whether the handle resolved in
// time. A timed-out wait is an observation only: the work keeps running and
// a later wait can still succeed.
func (h *Handle) WaitTimeout(d time.Duration) bool {
	if h.Completed() {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-h.done:
		return true
	case <-t.C:
		return false
	}
}

// markRunning transitions Pending → Running. A no-op for combined handles
// that resolve straight from Pending.
func (h *Handle) markRunning() {
	atomic.CompareAndSwapInt32(&h.state, statePending, stateRunning)
}

// resolve moves the handle to its terminal state and fires registered
// callbacks. Resolving twice is a no-op.
func (h *Handle) resolve(err error) {
	h.mu.Lock()
	s := atomic.LoadInt32(&h.state)
	if s == stateCompleted || s == stateFaulted {
		h.mu.Unlock()
		return
	}
	h.err = err
	if err != nil {
		atomic.StoreInt32(&h.state, stateFaulted)
	} else {
		atomic.StoreInt32(&h.state, stateCompleted)
	}
	cbs := h.callbacks
	h.callbacks = nil
	close(h.done)
	h.mu.Unlock()

	for _, cb := range cbs {
		cb()
	}
}

// onDone registers fn to run when the handle resolves. If it already has,
// fn runs immediately on the calling goroutine.
func (h *Handle) onDone(fn func()) {
	h.mu.Lock()
	s := atomic.LoadInt32(&h.state)
	if s == stateCompleted || s == stateFaulted {
		h.mu.Unlock()
		fn()
		return
	}
	h.callbacks = append(h.callbacks, fn)
	h.mu.Unlock()
}

// Combine returns a handle that resolves once every input has. An empty
// input yields an already-complete handle; a single input is returned
// unchanged. The combined handle faults if any input faulted; the first
// fault is primary and the rest stay retrievable through the combined
// error.
func Combine(handles ...*Handle) *Handle {
	switch len(handles) {
	case 0:
		return newCompletedHandle(nil)
	case 1:
		return handles[0]
	}
	combined := newHandle()
	remaining := int32(len(handles))
	for _, in := range handles {
		in.onDone(func() {
			if atomic.AddInt32(&remaining, -1) == 0 {
				var err error
				for _, h := range handles {
					err = multierr.Append(err, h.Err())
				}
				combined.resolve(err)
			}
		})
	}
	return combined
}
