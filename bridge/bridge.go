// Package bridge turns canvas events into design-level notifications.
package bridge

import (
	"sync"

	"tshirt-studio/canvas"
	"tshirt-studio/codec"
	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

// Unsubscribe removes every listener registered by Attach. It is safe to
// call more than once.
type Unsubscribe func()

// Handlers receive bridged notifications. Either may be nil.
type Handlers struct {
	// OnDirty is called once per structural change with a snapshot of the
	// canvas taken right after the change.
	OnDirty func(doc core.CanvasDocument)
	// OnSelection reports the active object id, or "" when cleared.
	OnSelection func(selected string)
}

// Attach listens on the surface behind h. The returned Unsubscribe also
// runs when h is disposed.
func Attach(h *canvas.Handle, hs Handlers, log logrus.FieldLogger) (Unsubscribe, error) {
	s, err := h.Surface()
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	dirty := func(ev canvas.Event) {
		if hs.OnDirty == nil {
			return
		}
		doc, err := codec.Encode(h)
		if err != nil {
			log.WithError(err).WithField("event", string(ev.Type)).Debug("Skipping change on released canvas")
			return
		}
		hs.OnDirty(doc)
	}

	structural := []canvas.EventType{
		canvas.EventObjectAdded,
		canvas.EventObjectModified,
		canvas.EventObjectRemoved,
		canvas.EventPathCreated,
	}
	type reg struct {
		t  canvas.EventType
		id canvas.ListenerID
	}
	regs := make([]reg, 0, len(structural)+1)
	for _, t := range structural {
		regs = append(regs, reg{t, s.On(t, dirty)})
	}
	regs = append(regs, reg{canvas.EventSelectionChanged, s.On(canvas.EventSelectionChanged, func(ev canvas.Event) {
		if hs.OnSelection != nil {
			hs.OnSelection(ev.Selected)
		}
	})})

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			for _, r := range regs {
				s.Off(r.t, r.id)
			}
			log.Debug("Canvas listeners removed")
		})
	}
	h.OnDispose(unsubscribe)
	return unsubscribe, nil
}
