package canvas

import (
	"sync"

	"tshirt-studio/core"
)

// State is the lifecycle state of a Handle.
type State int

const (
	StateUninitialized State = iota
	StateReady
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateReady:
		return "ready"
	case StateDisposed:
		return "disposed"
	}
	return "unknown"
}

// Handle is the non-owning reference downstream components hold to a
// surface. Async work must re-check it before touching the surface.
type Handle struct {
	mu        sync.Mutex
	state     State
	surface   *Surface
	onDispose []func()
}

// NewReadyHandle wraps an existing surface, for callers that manage the
// surface outside a Manager (tests, one-shot rendering).
func NewReadyHandle(s *Surface) *Handle {
	return &Handle{state: StateReady, surface: s}
}

func (h *Handle) State() State {
	if h == nil {
		return StateUninitialized
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Surface returns the live surface, or ErrHandleNotReady.
func (h *Handle) Surface() (*Surface, error) {
	if h == nil {
		return nil, core.ErrHandleNotReady
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateReady {
		return nil, core.ErrHandleNotReady
	}
	return h.surface, nil
}

// Live reports whether the handle is ready.
func (h *Handle) Live() bool {
	return h.State() == StateReady
}

// OnDispose registers fn to run when the handle is disposed. On an already
// disposed handle fn runs immediately.
func (h *Handle) OnDispose(fn func()) {
	h.mu.Lock()
	if h.state == StateDisposed {
		h.mu.Unlock()
		fn()
		return
	}
	h.onDispose = append(h.onDispose, fn)
	h.mu.Unlock()
}

func (h *Handle) markReady(s *Surface) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != StateUninitialized {
		return false
	}
	h.state = StateReady
	h.surface = s
	return true
}

// markDisposed moves the handle to Disposed and hands back what needs
// releasing. ok is false when it was already disposed.
func (h *Handle) markDisposed() (s *Surface, hooks []func(), ok bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state == StateDisposed {
		return nil, nil, false
	}
	h.state = StateDisposed
	s, hooks = h.surface, h.onDispose
	h.surface, h.onDispose = nil, nil
	return s, hooks, true
}
