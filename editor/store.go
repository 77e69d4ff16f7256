// Package editor holds the state of the design being edited and wires the
// canvas, background, change tracking and autosave together.
package editor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"tshirt-studio/autosave"
	"tshirt-studio/bridge"
	"tshirt-studio/canvas"
	"tshirt-studio/codec"
	"tshirt-studio/compositor"
	"tshirt-studio/core"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Persistence is the remote side of a design: load returns nil, nil when
// the design was never saved.
type Persistence interface {
	LoadDesign(ctx context.Context, designID string) (*core.Design, error)
	PersistDesign(ctx context.Context, designID string, doc core.CanvasDocument, name string) (time.Time, error)
}

type Config struct {
	QuietPeriod time.Duration
	// Width and Height fix the surface size; zero means follow the container.
	Width  int
	Height int
	Driver canvas.Driver
}

func DefaultConfig() Config {
	return Config{
		QuietPeriod: autosave.DefaultQuietPeriod,
		Width:       canvas.DefaultWidth,
		Height:      canvas.DefaultHeight,
	}
}

// DesignStore is the context object for one editing session. Only one
// design is active at a time; switch designs with Reset then Initialize.
type DesignStore struct {
	cfg         Config
	persistence Persistence
	compositor  *compositor.Compositor
	codec       *codec.Codec
	manager     *canvas.Manager
	log         logrus.FieldLogger

	mu          sync.Mutex
	active      bool
	design      core.Design
	handle      *canvas.Handle
	mounting    bool
	// mountGen changes on every Unmount so a mount that was still starting
	// can tell it has been cancelled.
	mountGen    uint64
	unsubscribe bridge.Unsubscribe
	pipeline    *autosave.Pipeline
	notice      *Notice
	selected    string
}

func New(cfg Config, persistence Persistence, comp *compositor.Compositor, log logrus.FieldLogger) *DesignStore {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if comp == nil {
		comp = compositor.New(compositor.NewLoader(nil), log)
	}
	return &DesignStore{
		cfg:         cfg,
		persistence: persistence,
		compositor:  comp,
		codec:       &codec.Codec{Images: comp.Loader(), Log: log},
		manager: canvas.NewManager(canvas.Options{
			Width:  cfg.Width,
			Height: cfg.Height,
			Driver: cfg.Driver,
			Logger: log,
		}),
		log: log,
	}
}

// Initialize activates designID with default fields. An empty id starts a
// new design with a fresh UUID. Initializing while a different design is
// active fails with core.ErrDesignActive.
func (s *DesignStore) Initialize(designID string) (string, error) {
	if designID == "" {
		designID = uuid.NewString()
	} else if _, err := uuid.Parse(designID); err != nil {
		return "", fmt.Errorf("invalid design id %q: %w", designID, err)
	}

	s.mu.Lock()
	if s.active && s.design.DesignID != designID {
		s.mu.Unlock()
		return "", core.ErrDesignActive
	}
	old := s.pipeline
	s.active = true
	s.design = defaultDesign(designID)
	s.notice = nil
	s.selected = ""
	s.pipeline = s.newPipeline()
	s.mu.Unlock()

	if old != nil {
		old.Stop()
	}
	s.log.WithField("design_id", designID).Info("Design initialized")
	return designID, nil
}

func defaultDesign(id string) core.Design {
	return core.Design{
		DesignID:     id,
		Name:         core.DefaultDesignName,
		GarmentColor: core.DefaultGarmentColor,
		CanvasDocument: core.CanvasDocument{
			Width:      canvas.DefaultWidth,
			Height:     canvas.DefaultHeight,
			Background: core.DefaultGarmentColor,
			Objects:    []core.DrawableObject{},
		},
	}
}

func (s *DesignStore) newPipeline() *autosave.Pipeline {
	return autosave.New(autosave.Options{
		QuietPeriod: s.cfg.QuietPeriod,
		Persist:     s.persist,
		Log:         s.log,
		OnStatus: func(st core.SaveStatus) {
			s.log.WithField("status", st.String()).Debug("Save status changed")
		},
	})
}

// Reset tears down any mounted canvas and forgets the active design.
func (s *DesignStore) Reset() error {
	err := s.Unmount()

	s.mu.Lock()
	p := s.pipeline
	s.active = false
	s.design = core.Design{}
	s.pipeline = nil
	s.notice = nil
	s.selected = ""
	s.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	return err
}

var errMountCanceled = errors.New("canvas mount canceled by unmount")

// Mount creates the canvas inside c, loads the saved document and applies
// the garment background. A failed canvas start is retried once. Mounting
// while a canvas is mounted or still starting is a no-op.
func (s *DesignStore) Mount(ctx context.Context, c canvas.Container) error {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return errors.New("no active design")
	}
	if s.handle != nil || s.mounting {
		s.mu.Unlock()
		s.log.Debug("Canvas already mounted")
		return nil
	}
	s.mounting = true
	gen := s.mountGen
	id := s.design.DesignID
	s.mu.Unlock()
	log := s.log.WithField("design_id", id)

	defer func() {
		s.mu.Lock()
		if s.mountGen == gen {
			s.mounting = false
		}
		s.mu.Unlock()
	}()

	h, err := s.manager.Create(ctx, c)
	if err != nil {
		log.WithError(err).Warn("Canvas failed to start, retrying once")
		s.manager.Dispose(h)
		h, err = s.manager.Create(ctx, c)
	}
	if err != nil {
		s.setNotice(NoticeInit, "The editor could not start.", err)
		return err
	}
	if err := s.install(h, &gen); err != nil {
		s.manager.Dispose(h)
		if errors.Is(err, errMountCanceled) {
			log.Info("Editor unmounted while the canvas was starting")
		}
		return err
	}

	color := s.load(ctx, h, log)
	if err := s.compositor.ApplyBackground(ctx, h, color); err != nil {
		log.WithError(err).Warn("Garment background not applied")
	}
	return nil
}

// load applies the saved document, if any, and returns the garment color.
func (s *DesignStore) load(ctx context.Context, h *canvas.Handle, log logrus.FieldLogger) core.GarmentColor {
	s.mu.Lock()
	id, color := s.design.DesignID, s.design.GarmentColor
	s.mu.Unlock()

	if s.persistence == nil {
		return color
	}
	saved, err := s.persistence.LoadDesign(ctx, id)
	var docErr *core.DocumentError
	if err != nil && !(errors.As(err, &docErr) && saved != nil) {
		log.WithError(err).Error("Failed to load design")
		s.setNotice(NoticePersistence, "The saved design could not be loaded.", err)
		return color
	}
	if saved == nil {
		log.Info("No saved design, starting blank")
		return color
	}

	if saved.GarmentColor == "" {
		saved.GarmentColor = saved.CanvasDocument.Background
	}
	if !saved.GarmentColor.Valid() {
		saved.GarmentColor = core.DefaultGarmentColor
	}
	if err == nil {
		err = s.codec.Decode(ctx, h, saved.CanvasDocument)
	}
	if errors.Is(err, core.ErrHandleNotReady) {
		log.Info("Canvas went away while the design was loading")
		return saved.GarmentColor
	} else if err != nil {
		log.WithError(err).Warn("Saved canvas document rejected, starting blank")
		s.setNotice(NoticeDocument, "Part of the saved design could not be restored.", err)
		saved.CanvasDocument = core.CanvasDocument{Objects: []core.DrawableObject{}}
	}

	s.mu.Lock()
	if s.design.DesignID == id {
		s.design.Name = saved.Name
		if s.design.Name == "" {
			s.design.Name = core.DefaultDesignName
		}
		s.design.GarmentColor = saved.GarmentColor
		s.design.CreatedAt = saved.CreatedAt
		s.design.UpdatedAt = saved.UpdatedAt
		if doc, err := s.codec.Encode(h); err == nil {
			doc.Background = saved.GarmentColor
			s.design.CanvasDocument = doc
		}
	}
	s.mu.Unlock()

	log.WithField("objects", len(saved.CanvasDocument.Objects)).Info("Design loaded")
	return saved.GarmentColor
}

// SetCanvasHandle makes h the live canvas and starts tracking its changes.
// A different handle it replaces is disposed.
func (s *DesignStore) SetCanvasHandle(h *canvas.Handle) error {
	return s.install(h, nil)
}

// install swaps in h. With a non-nil gen it fails with errMountCanceled if
// an Unmount happened since gen was taken.
func (s *DesignStore) install(h *canvas.Handle, gen *uint64) error {
	unsubscribe, err := bridge.Attach(h, bridge.Handlers{
		OnDirty:     s.onDirty,
		OnSelection: s.onSelection,
	}, s.log)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if gen != nil && *gen != s.mountGen {
		s.mu.Unlock()
		unsubscribe()
		return errMountCanceled
	}
	prev, prevHandle := s.unsubscribe, s.handle
	s.handle = h
	s.unsubscribe = unsubscribe
	s.mu.Unlock()

	if prev != nil {
		prev()
	}
	if prevHandle != nil && prevHandle != h {
		if err := s.manager.Dispose(prevHandle); err != nil {
			s.log.WithError(err).Warn("Failed to dispose replaced canvas")
		}
	}
	return nil
}

func (s *DesignStore) onDirty(doc core.CanvasDocument) {
	s.mu.Lock()
	doc.Background = s.design.GarmentColor
	s.design.CanvasDocument = doc
	p := s.pipeline
	s.mu.Unlock()

	if p != nil {
		p.MarkDirty()
	}
}

func (s *DesignStore) onSelection(id string) {
	s.mu.Lock()
	s.selected = id
	s.mu.Unlock()
}

// Unmount stops the autosave timer, detaches change tracking and disposes
// the canvas, in that order. Every step runs even if an earlier one fails.
func (s *DesignStore) Unmount() error {
	s.mu.Lock()
	p, unsubscribe, h := s.pipeline, s.unsubscribe, s.handle
	s.unsubscribe = nil
	s.handle = nil
	s.mountGen++
	s.mounting = false
	s.selected = ""
	if p != nil {
		// a remount gets a fresh pipeline
		s.pipeline = s.newPipeline()
	}
	s.mu.Unlock()

	var errs []error
	if p != nil {
		errs = append(errs, guard("stop autosave", func() error {
			p.Stop()
			return nil
		}))
	}
	if unsubscribe != nil {
		errs = append(errs, guard("unsubscribe", func() error {
			unsubscribe()
			return nil
		}))
	}
	if h != nil {
		errs = append(errs, guard("dispose canvas", func() error {
			return s.manager.Dispose(h)
		}))
	}

	err := errors.Join(errs...)
	if err != nil {
		s.log.WithError(err).Warn("Editor teardown finished with errors")
	}
	return err
}

func guard(step string, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%s: panic: %v", step, r)
		}
	}()
	if err := fn(); err != nil {
		return fmt.Errorf("%s: %w", step, err)
	}
	return nil
}

// Resize follows a container size change.
func (s *DesignStore) Resize(width, height int) error {
	return s.manager.Resize(s.Handle(), width, height)
}

// SetGarmentColor switches the garment and swaps the background.
func (s *DesignStore) SetGarmentColor(ctx context.Context, color core.GarmentColor) error {
	if !color.Valid() {
		s.log.WithField("garment_color", string(color)).Warn("Ignoring unknown garment color")
		return nil
	}

	s.mu.Lock()
	s.design.GarmentColor = color
	s.design.CanvasDocument.Background = color
	h := s.handle
	s.mu.Unlock()

	s.MarkAsModified()
	if h == nil {
		return nil
	}
	return s.compositor.ApplyBackground(ctx, h, color)
}

func (s *DesignStore) SetName(name string) {
	s.mu.Lock()
	s.design.Name = name
	s.mu.Unlock()
	s.MarkAsModified()
}

// MarkAsModified schedules an autosave.
func (s *DesignStore) MarkAsModified() {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	if p != nil {
		p.MarkDirty()
	}
}

// Save persists the design now.
func (s *DesignStore) Save(ctx context.Context) (autosave.SaveResult, error) {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	if p == nil {
		return autosave.SaveResult{Skipped: true}, nil
	}
	return p.Flush(ctx)
}

func (s *DesignStore) persist(ctx context.Context) (time.Time, error) {
	s.mu.Lock()
	id, name, color, h := s.design.DesignID, s.design.Name, s.design.GarmentColor, s.handle
	s.mu.Unlock()

	if id == "" || !h.Live() || s.persistence == nil {
		return time.Time{}, core.ErrNothingToSave
	}
	doc, err := s.codec.Encode(h)
	if err != nil {
		return time.Time{}, core.ErrNothingToSave
	}
	doc.Background = color

	updatedAt, err := s.persistence.PersistDesign(ctx, id, doc, name)
	if err != nil {
		var perr *core.PersistenceError
		if !errors.As(err, &perr) {
			err = &core.PersistenceError{Op: "save", DesignID: id, Err: err}
		}
		s.setNotice(NoticePersistence, "Your latest changes are not saved.", err)
		return time.Time{}, err
	}

	s.mu.Lock()
	if s.design.DesignID == id {
		s.design.UpdatedAt = updatedAt
		if s.notice != nil && s.notice.Kind == NoticePersistence {
			s.notice = nil
		}
	}
	s.mu.Unlock()
	s.log.WithFields(logrus.Fields{"design_id": id, "objects": len(doc.Objects)}).Info("Design saved")
	return updatedAt, nil
}

// Design returns a copy of the current design fields.
func (s *DesignStore) Design() core.Design {
	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.design
	d.CanvasDocument.Objects = append([]core.DrawableObject(nil), d.CanvasDocument.Objects...)
	return d
}

func (s *DesignStore) Status() core.SaveStatus {
	s.mu.Lock()
	p := s.pipeline
	s.mu.Unlock()
	if p == nil {
		return core.StatusIdle
	}
	return p.Status()
}

// Handle returns the live canvas handle, or nil when unmounted.
func (s *DesignStore) Handle() *canvas.Handle {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle
}

// Selected is the id of the selected object, or "".
func (s *DesignStore) Selected() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}
