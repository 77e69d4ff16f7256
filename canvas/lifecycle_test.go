package canvas

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"tshirt-studio/core"
)

type testContainer struct {
	attached      bool
	width, height int
}

func (c *testContainer) Attached() bool            { return c.attached }
func (c *testContainer) Size() (width, height int) { return c.width, c.height }

func attachedContainer() *testContainer {
	return &testContainer{attached: true, width: 1024, height: 768}
}

func TestCreate_FixedSizeAndDefaultBrush(t *testing.T) {
	m := NewManager(Options{Width: DefaultWidth, Height: DefaultHeight})

	h, err := m.Create(context.Background(), attachedContainer())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	s, err := h.Surface()
	if err != nil {
		t.Fatalf("Surface() failed: %v", err)
	}
	if w, hh := s.Size(); w != 800 || hh != 600 {
		t.Errorf("size mismatch: got %dx%d, want 800x600", w, hh)
	}
	if s.Brush() != DefaultBrush {
		t.Errorf("brush mismatch: got %+v", s.Brush())
	}
}

func TestCreate_ContainerDerivedSize(t *testing.T) {
	m := NewManager(Options{})

	h, err := m.Create(context.Background(), attachedContainer())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	s, _ := h.Surface()
	if w, hh := s.Size(); w != 1024 || hh != 768 {
		t.Errorf("size mismatch: got %dx%d, want 1024x768", w, hh)
	}
}

func TestCreate_DetachedContainer(t *testing.T) {
	m := NewManager(Options{})

	_, err := m.Create(context.Background(), &testContainer{})
	var initErr *core.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("Create() error mismatch: got %v, want InitError", err)
	}
}

func TestCreate_DriverFailure(t *testing.T) {
	m := NewManager(Options{Driver: func(context.Context, int, int) (*Surface, error) {
		return nil, errors.New("library missing")
	}})

	h, err := m.Create(context.Background(), attachedContainer())
	var initErr *core.InitError
	if !errors.As(err, &initErr) {
		t.Fatalf("Create() error mismatch: got %v, want InitError", err)
	}
	if h.State() != StateUninitialized {
		t.Errorf("state mismatch: got %v", h.State())
	}
	if err := m.Dispose(h); err != nil {
		t.Errorf("Dispose() of failed handle returned %v", err)
	}
}

func TestCreate_SecondCallWhilePendingIsNoop(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var calls int
	var mu sync.Mutex
	m := NewManager(Options{Driver: func(ctx context.Context, w, h int) (*Surface, error) {
		mu.Lock()
		calls++
		mu.Unlock()
		close(started)
		<-release
		return NewSurface(w, h), nil
	}})

	type result struct {
		h   *Handle
		err error
	}
	done := make(chan result, 1)
	go func() {
		h, err := m.Create(context.Background(), attachedContainer())
		done <- result{h, err}
	}()
	<-started

	second, err := m.Create(context.Background(), attachedContainer())
	if err != nil {
		t.Fatalf("second Create() failed: %v", err)
	}
	if second.State() != StateUninitialized {
		t.Errorf("pending handle state mismatch: got %v", second.State())
	}

	close(release)
	first := <-done
	if first.err != nil {
		t.Fatalf("first Create() failed: %v", first.err)
	}
	if first.h != second {
		t.Error("second Create() did not return the pending handle")
	}
	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("driver calls mismatch: got %d, want 1", calls)
	}
}

func TestDispose_BeforeCreateResolves(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var built *Surface
	m := NewManager(Options{Driver: func(ctx context.Context, w, h int) (*Surface, error) {
		close(started)
		<-release
		built = NewSurface(w, h)
		return built, nil
	}})

	done := make(chan error, 1)
	go func() {
		_, err := m.Create(context.Background(), attachedContainer())
		done <- err
	}()
	<-started

	pending, _ := m.Create(context.Background(), attachedContainer())
	if err := m.Dispose(pending); err != nil {
		t.Fatalf("Dispose() failed: %v", err)
	}
	close(release)

	select {
	case err := <-done:
		if err == nil {
			t.Error("Create() should fail once its handle was disposed")
		}
	case <-time.After(time.Second):
		t.Fatal("Create() did not return")
	}
	if pending.State() != StateDisposed {
		t.Errorf("state mismatch: got %v", pending.State())
	}
	if !built.Disposed() {
		t.Error("late surface was not released")
	}
}

func TestDispose_IdempotentAndNoEventsAfter(t *testing.T) {
	m := NewManager(Options{})
	h, err := m.Create(context.Background(), attachedContainer())
	if err != nil {
		t.Fatalf("Create() failed: %v", err)
	}
	s, _ := h.Surface()

	observed := 0
	id := s.On(EventObjectAdded, func(Event) { observed++ })
	hookRuns := 0
	h.OnDispose(func() { panic("listener removal failed") })
	h.OnDispose(func() {
		hookRuns++
		s.Off(EventObjectAdded, id)
	})

	if err := m.Dispose(h); err == nil {
		t.Error("Dispose() should report the panicking hook")
	}
	if err := m.Dispose(h); err != nil {
		t.Errorf("second Dispose() returned %v", err)
	}
	if hookRuns != 1 {
		t.Errorf("hook runs mismatch: got %d, want 1", hookRuns)
	}

	s.Add(&Object{Kind: core.KindImage, Source: "a.png"})
	if observed != 0 {
		t.Errorf("observed %d events after disposal", observed)
	}
	if s.ListenerCount() != 0 {
		t.Errorf("dangling listeners: %d", s.ListenerCount())
	}
	if _, err := h.Surface(); !errors.Is(err, core.ErrHandleNotReady) {
		t.Errorf("Surface() after Dispose() error mismatch: got %v", err)
	}
}

func TestOnDispose_AfterDisposeRunsImmediately(t *testing.T) {
	m := NewManager(Options{})
	h, _ := m.Create(context.Background(), attachedContainer())
	m.Dispose(h)

	ran := false
	h.OnDispose(func() { ran = true })
	if !ran {
		t.Error("OnDispose() on a disposed handle did not run")
	}
}

func TestDispose_NilHandle(t *testing.T) {
	m := NewManager(Options{})
	if err := m.Dispose(nil); err != nil {
		t.Errorf("Dispose(nil) returned %v", err)
	}
}

func TestResize_KeepsObjectsAndRenders(t *testing.T) {
	m := NewManager(Options{Width: 800, Height: 600})
	h, _ := m.Create(context.Background(), attachedContainer())
	s, _ := h.Surface()
	s.Add(&Object{Kind: core.KindImage, Source: "a.png", ID: "image-1", Left: 12})

	if err := m.Resize(h, 640, 480); err != nil {
		t.Fatalf("Resize() failed: %v", err)
	}
	if w, hh := s.Size(); w != 640 || hh != 480 {
		t.Errorf("size mismatch: got %dx%d", w, hh)
	}
	if len(s.Objects()) != 1 {
		t.Error("Resize() erased objects")
	}
	if s.Renders() != 1 {
		t.Errorf("Resize() did not render: renders=%d", s.Renders())
	}
}
