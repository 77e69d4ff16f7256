package core

import (
	"context"
	"time"
)

// DefaultDesignName is the placeholder name a new design starts with.
const DefaultDesignName = "Untitled Design"

// GarmentColor selects the garment base image a design is composited on.
type GarmentColor string

const (
	GarmentWhite GarmentColor = "white"
	GarmentBlack GarmentColor = "black"
	GarmentPink  GarmentColor = "pink"
)

// DefaultGarmentColor is the color every new design starts with.
const DefaultGarmentColor = GarmentWhite

// Valid reports whether c is one of the supported garment colors.
func (c GarmentColor) Valid() bool {
	switch c {
	case GarmentWhite, GarmentBlack, GarmentPink:
		return true
	}
	return false
}

// ObjectKind is the kind of a placed item.
type ObjectKind string

const (
	KindImage ObjectKind = "image"
	KindPath  ObjectKind = "path"
)

type (
	// Point is one vertex of a freehand stroke in canvas coordinates.
	Point struct {
		X float64 `json:"x"`
		Y float64 `json:"y"`
	}

	// DrawableObject is the portable record of one placed item.
	DrawableObject struct {
		Kind    ObjectKind `json:"kind"`
		ID      string     `json:"id"`
		Left    float64    `json:"left"`
		Top     float64    `json:"top"`
		ScaleX  float64    `json:"scaleX"`
		ScaleY  float64    `json:"scaleY"`
		Angle   float64    `json:"angle,omitempty"`
		Padding float64    `json:"padding,omitempty"`

		// Image fields. Width and Height are the intrinsic bitmap size.
		Width  float64 `json:"width,omitempty"`
		Height float64 `json:"height,omitempty"`
		Source string  `json:"source,omitempty"`

		// Path fields.
		Points      []Point `json:"points,omitempty"`
		Stroke      string  `json:"stroke,omitempty"`
		StrokeWidth float64 `json:"strokeWidth,omitempty"`
	}

	// CanvasDocument is the serialized drawing surface. Objects are in
	// z-order, bottom first. Background names the garment color; the
	// garment bitmap itself is never stored.
	CanvasDocument struct {
		Width      int              `json:"width"`
		Height     int              `json:"height"`
		Background GarmentColor     `json:"background,omitempty"`
		Objects    []DrawableObject `json:"objects"`
	}

	// Design is the persisted unit.
	Design struct {
		DesignID       string         `json:"designId"`
		OwnerUserID    string         `json:"-"`
		Name           string         `json:"name"`
		GarmentColor   GarmentColor   `json:"garmentColor"`
		CanvasDocument CanvasDocument `json:"canvasDocument"`
		CreatedAt      time.Time      `json:"createdAt"`
		UpdatedAt      time.Time      `json:"updatedAt"`
	}

	// DesignStorage is the server-side persistence layer for designs.
	// All operations are scoped to the owning user.
	DesignStorage interface {
		// List returns metadata for all designs of a user. The returned
		// designs carry an empty CanvasDocument.
		List(ctx context.Context, ownerID string) ([]*Design, error)

		// Get returns a design, ensuring it belongs to the user. A missing
		// design yields an error wrapping ErrNotFound.
		Get(ctx context.Context, ownerID, designID string) (*Design, error)

		// Save creates or updates a design. CreatedAt is preserved on
		// update and UpdatedAt is stamped by the store. It reports whether
		// the design was newly created.
		Save(ctx context.Context, design *Design) (created bool, err error)

		// Delete removes a design, ensuring it belongs to the user.
		Delete(ctx context.Context, ownerID, designID string) error
	}

	// Revision is a stored past version of a design document.
	Revision struct {
		ID        string `json:"id"`
		DesignID  string `json:"designId"`
		Name      string `json:"name"`
		CreatedAt int64  `json:"createdAt"`
		Data      []byte `json:"data,omitempty"`
	}

	// RevisionStore is implemented by backends that keep design history.
	RevisionStore interface {
		ListRevisions(ctx context.Context, ownerID, designID string) ([]Revision, error)
		GetRevision(ctx context.Context, ownerID, revisionID string) (*Revision, error)
	}
)

// SaveStatus is the autosave state of the active design.
type SaveStatus int

const (
	StatusIdle SaveStatus = iota
	StatusDirty
	StatusSaving
	StatusSaved
	StatusError
)

func (s SaveStatus) String() string {
	switch s {
	case StatusIdle:
		return "Idle"
	case StatusDirty:
		return "Dirty"
	case StatusSaving:
		return "Saving"
	case StatusSaved:
		return "Saved"
	case StatusError:
		return "Error"
	}
	return "Unknown"
}
