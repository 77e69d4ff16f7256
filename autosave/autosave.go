// Package autosave debounces edits into persistence calls.
//
// A burst of MarkDirty calls produces one flush once the quiet period has
// passed since the last call. At most one flush runs at a time; edits that
// arrive while it runs are folded into exactly one follow-up flush, which
// waits a fresh quiet period after the running save completes.
// Failures are not retried until the next edit or explicit Flush.
package autosave

import (
	"context"
	"errors"
	"sync"
	"time"

	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

const DefaultQuietPeriod = 500 * time.Millisecond

// PersistFunc saves the current design and returns the server's update
// time. Returning core.ErrNothingToSave marks a local no-op.
type PersistFunc func(ctx context.Context) (time.Time, error)

type Options struct {
	QuietPeriod time.Duration
	Persist     PersistFunc
	// OnStatus observes every status transition. It runs outside the
	// pipeline's lock.
	OnStatus func(core.SaveStatus)
	Log      logrus.FieldLogger
}

// SaveResult describes what a Flush call did.
type SaveResult struct {
	UpdatedAt time.Time
	// Skipped is set when there was nothing to save yet.
	Skipped bool
	// Coalesced is set when a flush was already running; the edit will be
	// saved by its follow-up one quiet period later.
	Coalesced bool
}

type Pipeline struct {
	quiet    time.Duration
	persist  PersistFunc
	onStatus func(core.SaveStatus)
	log      logrus.FieldLogger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu        sync.Mutex
	timer     *time.Timer
	gen       uint64
	inFlight  bool
	pending   bool
	stopped   bool
	status    core.SaveStatus
	updatedAt time.Time
}

func New(opts Options) *Pipeline {
	if opts.QuietPeriod <= 0 {
		opts.QuietPeriod = DefaultQuietPeriod
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pipeline{
		quiet:    opts.QuietPeriod,
		persist:  opts.Persist,
		onStatus: opts.OnStatus,
		log:      opts.Log,
		ctx:      ctx,
		cancel:   cancel,
		status:   core.StatusIdle,
	}
}

func (p *Pipeline) Status() core.SaveStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// UpdatedAt is the server time of the last successful save.
func (p *Pipeline) UpdatedAt() time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.updatedAt
}

// MarkDirty records an edit and (re)starts the quiet period.
func (p *Pipeline) MarkDirty() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	if p.inFlight {
		p.pending = true
		p.mu.Unlock()
		return
	}

	p.scheduleLocked()
	changed := p.setStatusLocked(core.StatusDirty)
	p.mu.Unlock()

	p.notify(changed, core.StatusDirty)
}

func (p *Pipeline) fire(gen uint64) {
	p.mu.Lock()
	if p.stopped || gen != p.gen {
		p.mu.Unlock()
		return
	}
	p.timer = nil
	p.wg.Add(1)
	p.mu.Unlock()

	defer p.wg.Done()
	if _, err := p.Flush(p.ctx); err != nil {
		p.log.WithError(err).Debug("Scheduled save failed")
	}
}

// Flush saves now, cancelling any scheduled save. If a save is already
// running the request is folded into its follow-up.
func (p *Pipeline) Flush(ctx context.Context) (SaveResult, error) {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return SaveResult{Skipped: true}, nil
	}
	if p.inFlight {
		p.pending = true
		p.mu.Unlock()
		return SaveResult{Coalesced: true}, nil
	}

	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.inFlight = true
	prev := p.status
	p.setStatusLocked(core.StatusSaving)
	p.mu.Unlock()
	p.notify(true, core.StatusSaving)

	updatedAt, err := p.run(ctx)

	p.mu.Lock()
	p.inFlight = false
	var (
		next   core.SaveStatus
		result SaveResult
	)
	switch {
	case errors.Is(err, core.ErrNothingToSave):
		next = prev
		result.Skipped = true
		p.log.Debug("Nothing to save yet")
		err = nil
	case err != nil:
		next = core.StatusError
		p.log.WithError(err).Warn("Failed to save design")
	default:
		next = core.StatusSaved
		if !updatedAt.IsZero() {
			p.updatedAt = updatedAt
		}
		result.UpdatedAt = p.updatedAt
	}
	if p.stopped {
		p.pending = false
	}
	if p.pending {
		p.pending = false
		next = core.StatusDirty
		p.scheduleLocked()
	}
	changed := p.setStatusLocked(next)
	p.mu.Unlock()
	p.notify(changed, next)
	return result, err
}

// scheduleLocked (re)starts the quiet period. The caller holds p.mu.
func (p *Pipeline) scheduleLocked() {
	p.gen++
	gen := p.gen
	if p.timer != nil {
		p.timer.Stop()
	}
	p.timer = time.AfterFunc(p.quiet, func() { p.fire(gen) })
}

func (p *Pipeline) run(ctx context.Context) (t time.Time, err error) {
	if p.persist == nil {
		return time.Time{}, core.ErrNothingToSave
	}
	defer func() {
		if r := recover(); r != nil {
			p.log.WithField("panic", r).Error("Persist function panicked")
			err = &core.PersistenceError{Op: "save", Err: errors.New("persist panicked")}
		}
	}()
	return p.persist(ctx)
}

// Stop cancels any scheduled save and the context of saves the pipeline
// started itself. Later calls are no-ops.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	p.pending = false
	p.gen++
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	p.mu.Unlock()
	p.cancel()
}

// Wait blocks until saves started by the timer return. A save still
// waiting out its quiet period is not waited for.
func (p *Pipeline) Wait() {
	p.wg.Wait()
}

func (p *Pipeline) setStatusLocked(s core.SaveStatus) bool {
	if p.status == s {
		return false
	}
	p.status = s
	return true
}

func (p *Pipeline) notify(changed bool, s core.SaveStatus) {
	if changed && p.onStatus != nil {
		p.onStatus(s)
	}
}
