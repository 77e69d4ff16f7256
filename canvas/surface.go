package canvas

import (
	"fmt"
	"image"
	"sync"
	"time"

	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

// Brush is the freehand drawing tool style.
type Brush struct {
	Color string
	Width float64
}

// DefaultBrush matches the editor's pencil: black, 5px.
var DefaultBrush = Brush{Color: "#000000", Width: 5}

// Surface is the live drawing area. It is safe for concurrent use; events
// are delivered synchronously on the goroutine that made the change, after
// the surface lock has been released.
type Surface struct {
	mu sync.RWMutex

	width      int
	height     int
	objects    []*Object
	background *Background
	brush      Brush
	drawing    bool
	selected   string

	listeners    map[EventType][]listenerEntry
	nextListener ListenerID

	lastStamp int64
	disposed  bool
	frame     image.Image
	renders   int

	log logrus.FieldLogger
	now func() time.Time
}

// NewSurface returns an empty surface of the given size.
func NewSurface(width, height int) *Surface {
	return &Surface{
		width:     width,
		height:    height,
		brush:     DefaultBrush,
		listeners: make(map[EventType][]listenerEntry),
		log:       logrus.StandardLogger(),
		now:       time.Now,
	}
}

// SetLogger replaces the surface logger.
func (s *Surface) SetLogger(log logrus.FieldLogger) {
	s.mu.Lock()
	s.log = log
	s.mu.Unlock()
}

func (s *Surface) Size() (width, height int) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.width, s.height
}

// SetSize resizes the surface. Objects keep their geometry; the background
// is refitted to the new size.
func (s *Surface) SetSize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.width, s.height = width, height
	if s.background != nil {
		s.background.Fit(width, height)
	}
}

func (s *Surface) Brush() Brush {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.brush
}

// SetBrush changes the freehand style. A non-positive width keeps the
// default width.
func (s *Surface) SetBrush(b Brush) {
	if b.Width <= 0 {
		b.Width = DefaultBrush.Width
	}
	s.mu.Lock()
	s.brush = b
	s.mu.Unlock()
}

func (s *Surface) DrawingMode() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.drawing
}

func (s *Surface) SetDrawingMode(on bool) {
	s.mu.Lock()
	s.drawing = on
	s.mu.Unlock()
}

// Objects returns copies of the objects in z-order.
func (s *Surface) Objects() []*Object {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*Object, len(s.objects))
	for i, o := range s.objects {
		out[i] = o.Clone()
	}
	return out
}

// Object returns a copy of the object with the given id.
func (s *Surface) Object(id string) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := s.indexOf(id); i >= 0 {
		return s.objects[i].Clone(), true
	}
	return nil, false
}

func (s *Surface) indexOf(id string) int {
	for i, o := range s.objects {
		if o.ID == id {
			return i
		}
	}
	return -1
}

// NewObjectID returns a "<kind>-<unix ms>" id unique on this surface.
func (s *Surface) NewObjectID(kind core.ObjectKind) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.newObjectIDLocked(kind)
}

func (s *Surface) newObjectIDLocked(kind core.ObjectKind) string {
	stamp := s.now().UnixMilli()
	if stamp <= s.lastStamp {
		stamp = s.lastStamp + 1
	}
	for {
		id := fmt.Sprintf("%s-%d", kind, stamp)
		if s.indexOf(id) < 0 {
			s.lastStamp = stamp
			return id
		}
		stamp++
	}
}

// Add places obj on top of the stack. An empty id is assigned, a zero scale
// becomes 1.
func (s *Surface) Add(obj *Object) (*Object, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, core.ErrHandleNotReady
	}

	o := obj.Clone()
	if o.ID == "" {
		o.ID = s.newObjectIDLocked(o.Kind)
	}
	if o.ScaleX == 0 {
		o.ScaleX = 1
	}
	if o.ScaleY == 0 {
		o.ScaleY = 1
	}
	if err := checkGeometry(o); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	if s.indexOf(o.ID) >= 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("object %s already exists", o.ID)
	}
	s.objects = append(s.objects, o)
	fns := s.snapshotListeners(EventObjectAdded)
	out := o.Clone()
	s.mu.Unlock()

	s.emit(Event{Type: EventObjectAdded, Target: out.Clone()}, fns)
	return out, nil
}

// Modify applies fn to the object with the given id. The kind and id cannot
// be changed.
func (s *Surface) Modify(id string, fn func(o *Object)) (*Object, error) {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return nil, core.ErrHandleNotReady
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return nil, fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}

	o := s.objects[i].Clone()
	fn(o)
	o.ID, o.Kind = s.objects[i].ID, s.objects[i].Kind
	if err := checkGeometry(o); err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.objects[i] = o
	fns := s.snapshotListeners(EventObjectModified)
	out := o.Clone()
	s.mu.Unlock()

	s.emit(Event{Type: EventObjectModified, Target: out.Clone()}, fns)
	return out, nil
}

// Remove deletes the object with the given id. Removing the selected object
// also clears the selection.
func (s *Surface) Remove(id string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return core.ErrHandleNotReady
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}

	removed := s.objects[i]
	s.objects = append(s.objects[:i:i], s.objects[i+1:]...)
	removedFns := s.snapshotListeners(EventObjectRemoved)
	var selFns []Listener
	if s.selected == id {
		s.selected = ""
		selFns = s.snapshotListeners(EventSelectionChanged)
	}
	s.mu.Unlock()

	s.emit(Event{Type: EventObjectRemoved, Target: removed.Clone()}, removedFns)
	if selFns != nil {
		s.emit(Event{Type: EventSelectionChanged}, selFns)
	}
	return nil
}

// Select makes the object with the given id the active object.
func (s *Surface) Select(id string) error {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return core.ErrHandleNotReady
	}
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return fmt.Errorf("object %s: %w", id, core.ErrNotFound)
	}
	if !s.objects[i].Selectable {
		s.mu.Unlock()
		return fmt.Errorf("object %s is not selectable", id)
	}
	s.selected = id
	fns := s.snapshotListeners(EventSelectionChanged)
	target := s.objects[i].Clone()
	s.mu.Unlock()

	s.emit(Event{Type: EventSelectionChanged, Target: target, Selected: id}, fns)
	return nil
}

// ClearSelection deselects the active object, if any.
func (s *Surface) ClearSelection() {
	s.mu.Lock()
	if s.disposed || s.selected == "" {
		s.mu.Unlock()
		return
	}
	s.selected = ""
	fns := s.snapshotListeners(EventSelectionChanged)
	s.mu.Unlock()

	s.emit(Event{Type: EventSelectionChanged}, fns)
}

// Selected returns the id of the active object, or "".
func (s *Surface) Selected() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.selected
}

// Replace swaps the whole object stack in one step. Loading a document is
// not an edit, so no events are emitted.
func (s *Surface) Replace(objs []*Object) error {
	next := make([]*Object, 0, len(objs))
	seen := make(map[string]struct{}, len(objs))
	for _, o := range objs {
		c := o.Clone()
		if err := checkGeometry(c); err != nil {
			return err
		}
		if _, dup := seen[c.ID]; dup || c.ID == "" {
			return fmt.Errorf("object id %q is empty or duplicated", c.ID)
		}
		seen[c.ID] = struct{}{}
		next = append(next, c)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.disposed {
		return core.ErrHandleNotReady
	}
	s.objects = next
	s.selected = ""
	return nil
}

// ObjectAt returns the topmost object under (x, y) that receives pointer
// events. The background never does.
func (s *Surface) ObjectAt(x, y float64) (*Object, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(s.objects) - 1; i >= 0; i-- {
		o := s.objects[i]
		if !o.Evented {
			continue
		}
		minX, minY, maxX, maxY := o.Bounds()
		if x >= minX && x <= maxX && y >= minY && y <= maxY {
			return o.Clone(), true
		}
	}
	return nil, false
}

// Background returns a copy of the background layer, or nil.
func (s *Surface) Background() *Background {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.background == nil {
		return nil
	}
	bg := *s.background
	return &bg
}

// SetBackground installs bg, fitted to the current size.
func (s *Surface) SetBackground(bg *Background) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.disposed {
		return core.ErrHandleNotReady
	}
	if bg != nil {
		c := *bg
		c.Fit(s.width, s.height)
		bg = &c
	}
	s.background = bg
	return nil
}

// Disposed reports whether Dispose has been called.
func (s *Surface) Disposed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.disposed
}

// Dispose drops every listener, object and bitmap. It is idempotent.
func (s *Surface) Dispose() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.disposed = true
	s.listeners = make(map[EventType][]listenerEntry)
	s.objects = nil
	s.background = nil
	s.frame = nil
	s.selected = ""
}
