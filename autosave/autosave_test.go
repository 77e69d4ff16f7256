package autosave

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"tshirt-studio/core"
)

const quiet = 20 * time.Millisecond

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestMarkDirty_CoalescesBurstIntoOneFlush(t *testing.T) {
	var (
		mu     sync.Mutex
		state  int
		saved  []int
		stamps = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	)
	p := New(Options{QuietPeriod: quiet, Persist: func(ctx context.Context) (time.Time, error) {
		mu.Lock()
		defer mu.Unlock()
		saved = append(saved, state)
		return stamps, nil
	}})
	defer p.Stop()

	for i := 1; i <= 10; i++ {
		mu.Lock()
		state = i
		mu.Unlock()
		p.MarkDirty()
	}
	if got := p.Status(); got != core.StatusDirty {
		t.Errorf("status mismatch: got %v, want dirty", got)
	}

	waitFor(t, "saved status", func() bool { return p.Status() == core.StatusSaved })
	time.Sleep(3 * quiet)
	p.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(saved) != 1 || saved[0] != 10 {
		t.Errorf("flush calls mismatch: got %v, want [10]", saved)
	}
	if !p.UpdatedAt().Equal(stamps) {
		t.Errorf("updatedAt mismatch: got %v, want %v", p.UpdatedAt(), stamps)
	}
}

func TestMarkDirty_TimerResetsOnEachCall(t *testing.T) {
	var calls atomic.Int32
	p := New(Options{QuietPeriod: 40 * time.Millisecond, Persist: func(ctx context.Context) (time.Time, error) {
		calls.Add(1)
		return time.Now(), nil
	}})
	defer p.Stop()

	for i := 0; i < 5; i++ {
		p.MarkDirty()
		time.Sleep(15 * time.Millisecond)
	}
	if got := calls.Load(); got != 0 {
		t.Errorf("flush ran before the quiet period elapsed: %d calls", got)
	}
	waitFor(t, "flush", func() bool { return calls.Load() == 1 })
}

func TestFlush_InFlightExclusivityAndSingleFollowUp(t *testing.T) {
	var (
		active, maxActive, calls atomic.Int32
		release                  = make(chan struct{})
		started                  = make(chan struct{}, 4)
	)
	p := New(Options{QuietPeriod: quiet, Persist: func(ctx context.Context) (time.Time, error) {
		n := active.Add(1)
		if n > maxActive.Load() {
			maxActive.Store(n)
		}
		calls.Add(1)
		started <- struct{}{}
		<-release
		active.Add(-1)
		return time.Now(), nil
	}})
	defer p.Stop()

	done := make(chan SaveResult, 1)
	go func() {
		res, _ := p.Flush(context.Background())
		done <- res
	}()
	<-started
	if got := p.Status(); got != core.StatusSaving {
		t.Errorf("status mismatch: got %v, want saving", got)
	}

	for i := 0; i < 5; i++ {
		p.MarkDirty()
	}
	res, err := p.Flush(context.Background())
	if err != nil || !res.Coalesced {
		t.Errorf("Flush() during save mismatch: got %+v, %v", res, err)
	}

	release <- struct{}{}
	<-done
	if got := p.Status(); got != core.StatusDirty {
		t.Errorf("status after first save mismatch: got %v, want dirty", got)
	}
	<-started // follow-up
	release <- struct{}{}

	waitFor(t, "saved status", func() bool { return p.Status() == core.StatusSaved })
	p.Wait()
	time.Sleep(3 * quiet)

	if got := calls.Load(); got != 2 {
		t.Errorf("persist calls mismatch: got %d, want 2", got)
	}
	if got := maxActive.Load(); got != 1 {
		t.Errorf("concurrent persist calls: got %d, want 1", got)
	}
}

func TestFlush_FailureDoesNotRetry(t *testing.T) {
	var calls atomic.Int32
	wantErr := &core.PersistenceError{Op: "save", DesignID: "d", Err: errors.New("502 bad gateway")}
	p := New(Options{QuietPeriod: quiet, Persist: func(ctx context.Context) (time.Time, error) {
		calls.Add(1)
		return time.Time{}, wantErr
	}})
	defer p.Stop()

	p.MarkDirty()
	waitFor(t, "error status", func() bool { return p.Status() == core.StatusError })
	time.Sleep(5 * quiet)
	if got := calls.Load(); got != 1 {
		t.Errorf("persist calls after failure: got %d, want 1", got)
	}

	// the next edit restarts the cycle
	p.MarkDirty()
	if got := p.Status(); got != core.StatusDirty {
		t.Errorf("status after edit mismatch: got %v, want dirty", got)
	}
	waitFor(t, "second attempt", func() bool { return calls.Load() == 2 })

	_, err := p.Flush(context.Background())
	var perr *core.PersistenceError
	if !errors.As(err, &perr) {
		t.Errorf("Flush() error mismatch: got %v", err)
	}
}

func TestFlush_NothingToSaveIsLocalNoop(t *testing.T) {
	var statuses []core.SaveStatus
	var mu sync.Mutex
	p := New(Options{
		Persist: func(ctx context.Context) (time.Time, error) { return time.Time{}, core.ErrNothingToSave },
		OnStatus: func(s core.SaveStatus) {
			mu.Lock()
			statuses = append(statuses, s)
			mu.Unlock()
		},
	})
	defer p.Stop()

	res, err := p.Flush(context.Background())
	if err != nil {
		t.Fatalf("Flush() failed: %v", err)
	}
	if !res.Skipped {
		t.Errorf("Flush() result mismatch: got %+v, want skipped", res)
	}
	if got := p.Status(); got != core.StatusIdle {
		t.Errorf("status mismatch: got %v, want idle", got)
	}

	mu.Lock()
	defer mu.Unlock()
	want := []core.SaveStatus{core.StatusSaving, core.StatusIdle}
	if len(statuses) != len(want) || statuses[0] != want[0] || statuses[1] != want[1] {
		t.Errorf("status transitions mismatch: got %v, want %v", statuses, want)
	}
}

func TestStop_CancelsPendingTimer(t *testing.T) {
	var calls atomic.Int32
	p := New(Options{QuietPeriod: quiet, Persist: func(ctx context.Context) (time.Time, error) {
		calls.Add(1)
		return time.Now(), nil
	}})

	p.MarkDirty()
	p.Stop()
	p.Stop()
	p.MarkDirty()
	time.Sleep(5 * quiet)

	if got := calls.Load(); got != 0 {
		t.Errorf("flush ran after Stop(): %d calls", got)
	}
}

func TestStop_CancelsInFlightContext(t *testing.T) {
	started := make(chan struct{})
	p := New(Options{QuietPeriod: quiet, Persist: func(ctx context.Context) (time.Time, error) {
		close(started)
		<-ctx.Done()
		return time.Time{}, ctx.Err()
	}})

	p.MarkDirty()
	<-started
	p.Stop()
	p.Wait()

	if got := p.Status(); got != core.StatusError {
		t.Errorf("status mismatch: got %v, want error", got)
	}
}

func TestRun_PanicBecomesError(t *testing.T) {
	p := New(Options{Persist: func(ctx context.Context) (time.Time, error) { panic("boom") }})
	defer p.Stop()

	if _, err := p.Flush(context.Background()); err == nil {
		t.Error("Flush() should fail when persist panics")
	}
	if got := p.Status(); got != core.StatusError {
		t.Errorf("status mismatch: got %v, want error", got)
	}
}

func TestFlush_FollowUpWaitsQuietPeriod(t *testing.T) {
	const spacing = 100 * time.Millisecond
	var (
		mu     sync.Mutex
		starts []time.Time
		ends   []time.Time
	)
	release := make(chan struct{})
	p := New(Options{QuietPeriod: spacing, Persist: func(ctx context.Context) (time.Time, error) {
		mu.Lock()
		starts = append(starts, time.Now())
		first := len(starts) == 1
		mu.Unlock()
		if first {
			<-release
		}
		mu.Lock()
		ends = append(ends, time.Now())
		mu.Unlock()
		return time.Now(), nil
	}})
	defer p.Stop()

	go p.Flush(context.Background())
	waitFor(t, "first save", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(starts) == 1
	})
	p.MarkDirty()
	p.MarkDirty()
	close(release)

	waitFor(t, "follow-up save", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(ends) == 2
	})
	time.Sleep(2 * spacing)

	mu.Lock()
	defer mu.Unlock()
	if len(starts) != 2 {
		t.Fatalf("persist calls mismatch: got %d, want 2", len(starts))
	}
	if gap := starts[1].Sub(ends[0]); gap < spacing {
		t.Errorf("follow-up started %v after the first save, want at least %v", gap, spacing)
	}
}
