package canvas

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

// DefaultWidth and DefaultHeight are the fixed editor surface size.
const (
	DefaultWidth  = 800
	DefaultHeight = 600
)

// Container is the UI element a surface is mounted into.
type Container interface {
	Attached() bool
	Size() (width, height int)
}

// Driver brings up the underlying drawing library for a surface.
type Driver func(ctx context.Context, width, height int) (*Surface, error)

func defaultDriver(ctx context.Context, width, height int) (*Surface, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return NewSurface(width, height), nil
}

// Options configure a Manager. A zero Width or Height takes the size from
// the container.
type Options struct {
	Width  int
	Height int
	Brush  Brush
	Driver Driver
	Logger logrus.FieldLogger
}

// Manager creates and tears down surfaces bound to a container.
type Manager struct {
	mu      sync.Mutex
	opts    Options
	pending *Handle
	log     logrus.FieldLogger
}

func NewManager(opts Options) *Manager {
	if opts.Driver == nil {
		opts.Driver = defaultDriver
	}
	if opts.Brush == (Brush{}) {
		opts.Brush = DefaultBrush
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Manager{opts: opts, log: log}
}

// Create brings up a surface for c. While a previous Create is still in
// progress a second call is a no-op returning the pending handle. On
// failure the returned handle is still safe to pass to Dispose.
func (m *Manager) Create(ctx context.Context, c Container) (*Handle, error) {
	if c == nil || !c.Attached() {
		return nil, &core.InitError{Reason: "container is not attached"}
	}

	m.mu.Lock()
	if m.pending != nil {
		h := m.pending
		m.mu.Unlock()
		m.log.Debug("Canvas creation already in progress")
		return h, nil
	}
	h := &Handle{}
	m.pending = h
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		if m.pending == h {
			m.pending = nil
		}
		m.mu.Unlock()
	}()

	width, height := m.opts.Width, m.opts.Height
	if width <= 0 || height <= 0 {
		width, height = c.Size()
	}
	if width <= 0 || height <= 0 {
		return h, &core.InitError{Reason: fmt.Sprintf("invalid surface size %dx%d", width, height)}
	}

	surface, err := m.opts.Driver(ctx, width, height)
	if err != nil {
		m.log.WithError(err).Error("Failed to load drawing library")
		return h, &core.InitError{Reason: "drawing library failed to load", Err: err}
	}
	surface.SetLogger(m.log)
	surface.SetBrush(m.opts.Brush)

	if !h.markReady(surface) {
		surface.Dispose()
		return h, &core.InitError{Reason: "handle disposed before initialization completed"}
	}

	m.log.WithFields(logrus.Fields{"width": width, "height": height}).Info("Canvas initialized")
	return h, nil
}

// Dispose runs the handle's teardown hooks and releases its surface. Every
// hook runs even if an earlier one panics. Disposing twice, or disposing a
// handle whose Create never finished, is safe.
func (m *Manager) Dispose(h *Handle) error {
	if h == nil {
		return nil
	}
	surface, hooks, ok := h.markDisposed()
	if !ok {
		return nil
	}

	var errs []error
	for _, hook := range hooks {
		if err := runHook(hook); err != nil {
			m.log.WithError(err).Warn("Error removing canvas listener")
			errs = append(errs, err)
		}
	}
	if surface != nil {
		surface.Dispose()
		m.log.Info("Canvas disposed")
	}
	return errors.Join(errs...)
}

func runHook(fn func()) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("teardown hook panicked: %v", r)
		}
	}()
	fn()
	return nil
}

// Resize follows a container size change. Objects are left untouched.
func (m *Manager) Resize(h *Handle, width, height int) error {
	if width <= 0 || height <= 0 {
		return fmt.Errorf("invalid surface size %dx%d", width, height)
	}
	surface, err := h.Surface()
	if err != nil {
		return err
	}
	surface.SetSize(width, height)
	surface.Render()
	m.log.WithFields(logrus.Fields{"width": width, "height": height}).Debug("Canvas resized")
	return nil
}
