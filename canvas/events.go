package canvas

import (
	"fmt"
)

// EventType names a surface notification.
type EventType string

const (
	EventObjectAdded      EventType = "object:added"
	EventObjectModified   EventType = "object:modified"
	EventObjectRemoved    EventType = "object:removed"
	EventPathCreated      EventType = "path:created"
	EventSelectionChanged EventType = "selection:changed"
)

// Structural reports whether the event changes the document.
func (t EventType) Structural() bool {
	return t != EventSelectionChanged
}

// Event is delivered to listeners after the mutation has been applied.
// Target is a copy of the affected object.
type Event struct {
	Type     EventType
	Target   *Object
	Selected string
}

type (
	Listener   func(Event)
	ListenerID uint64
)

type listenerEntry struct {
	id ListenerID
	fn Listener
}

// On registers fn for events of type t.
func (s *Surface) On(t EventType, fn Listener) ListenerID {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextListener++
	id := s.nextListener
	if s.disposed {
		return id
	}
	s.listeners[t] = append(s.listeners[t], listenerEntry{id: id, fn: fn})
	return id
}

// Off removes a listener. Unknown ids are ignored.
func (s *Surface) Off(t EventType, id ListenerID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.listeners[t]
	for i, e := range entries {
		if e.id == id {
			s.listeners[t] = append(entries[:i:i], entries[i+1:]...)
			return
		}
	}
}

// ListenerCount returns the number of registered listeners of all types.
func (s *Surface) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := 0
	for _, entries := range s.listeners {
		n += len(entries)
	}
	return n
}

// snapshotListeners must be called with s.mu held.
func (s *Surface) snapshotListeners(t EventType) []Listener {
	entries := s.listeners[t]
	fns := make([]Listener, 0, len(entries))
	for _, e := range entries {
		fns = append(fns, e.fn)
	}
	return fns
}

// emit runs listeners on the calling goroutine, in registration order. A
// panicking listener is logged and does not stop the others.
func (s *Surface) emit(ev Event, fns []Listener) {
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.WithField("event", string(ev.Type)).
						WithError(fmt.Errorf("%v", r)).
						Error("Canvas event listener panicked")
				}
			}()
			fn(ev)
		}()
	}
}
