package codec

import (
	"encoding/json"
	"fmt"

	"tshirt-studio/core"
)

// Validate checks that doc can be applied to a surface.
func Validate(doc core.CanvasDocument) error {
	if doc.Width < 0 || doc.Height < 0 {
		return &core.DocumentError{Index: -1, Reason: fmt.Sprintf("invalid size %dx%d", doc.Width, doc.Height)}
	}
	if doc.Background != "" && !doc.Background.Valid() {
		return &core.DocumentError{Index: -1, Reason: fmt.Sprintf("unknown background %q", doc.Background)}
	}

	seen := make(map[string]struct{}, len(doc.Objects))
	for i, o := range doc.Objects {
		if err := o.Validate(); err != nil {
			return &core.DocumentError{Index: i, Reason: err.Error()}
		}
		if _, dup := seen[o.ID]; dup {
			return &core.DocumentError{Index: i, Reason: fmt.Sprintf("duplicate id %q", o.ID)}
		}
		seen[o.ID] = struct{}{}
	}
	return nil
}

// wireObject mirrors core.DrawableObject with pointers so that missing
// geometry can be told apart from zero values.
type wireObject struct {
	Kind        *core.ObjectKind `json:"kind"`
	ID          *string          `json:"id"`
	Left        *float64         `json:"left"`
	Top         *float64         `json:"top"`
	ScaleX      *float64         `json:"scaleX"`
	ScaleY      *float64         `json:"scaleY"`
	Angle       float64          `json:"angle"`
	Padding     float64          `json:"padding"`
	Width       float64          `json:"width"`
	Height      float64          `json:"height"`
	Source      string           `json:"source"`
	Points      []core.Point     `json:"points"`
	Stroke      string           `json:"stroke"`
	StrokeWidth *float64         `json:"strokeWidth"`
}

type wireDocument struct {
	Width      *int              `json:"width"`
	Height     *int              `json:"height"`
	Background core.GarmentColor `json:"background"`
	Objects    []wireObject      `json:"objects"`
}

// Marshal encodes doc as JSON.
func Marshal(doc core.CanvasDocument) ([]byte, error) {
	if doc.Objects == nil {
		doc.Objects = []core.DrawableObject{}
	}
	return json.Marshal(doc)
}

// Unmarshal parses and validates a JSON canvas document. Images must carry
// left, top, scaleX and scaleY; paths must carry strokeWidth. Path position
// and scale default to the origin and 1.
func Unmarshal(data []byte) (core.CanvasDocument, error) {
	var wire wireDocument
	if err := json.Unmarshal(data, &wire); err != nil {
		return core.CanvasDocument{}, &core.DocumentError{Index: -1, Reason: "malformed JSON", Err: err}
	}
	if wire.Width == nil || wire.Height == nil {
		return core.CanvasDocument{}, &core.DocumentError{Index: -1, Reason: "missing width or height"}
	}

	doc := core.CanvasDocument{
		Width:      *wire.Width,
		Height:     *wire.Height,
		Background: wire.Background,
		Objects:    make([]core.DrawableObject, 0, len(wire.Objects)),
	}
	for i, w := range wire.Objects {
		o, err := w.toObject()
		if err != nil {
			return core.CanvasDocument{}, &core.DocumentError{Index: i, Reason: err.Error()}
		}
		doc.Objects = append(doc.Objects, o)
	}
	if err := Validate(doc); err != nil {
		return core.CanvasDocument{}, err
	}
	return doc, nil
}

func (w wireObject) toObject() (core.DrawableObject, error) {
	if w.Kind == nil {
		return core.DrawableObject{}, fmt.Errorf("missing kind")
	}
	if w.ID == nil {
		return core.DrawableObject{}, fmt.Errorf("missing id")
	}

	o := core.DrawableObject{
		Kind:    *w.Kind,
		ID:      *w.ID,
		Angle:   w.Angle,
		Padding: w.Padding,
		Width:   w.Width,
		Height:  w.Height,
		Source:  w.Source,
		Points:  w.Points,
		Stroke:  w.Stroke,
		ScaleX:  1,
		ScaleY:  1,
	}

	switch o.Kind {
	case core.KindImage:
		if w.Left == nil || w.Top == nil || w.ScaleX == nil || w.ScaleY == nil {
			return core.DrawableObject{}, fmt.Errorf("image %s is missing geometry", o.ID)
		}
	case core.KindPath:
		if w.StrokeWidth == nil {
			return core.DrawableObject{}, fmt.Errorf("path %s is missing strokeWidth", o.ID)
		}
		o.StrokeWidth = *w.StrokeWidth
	default:
		return core.DrawableObject{}, fmt.Errorf("unknown kind %q", o.Kind)
	}

	if w.Left != nil {
		o.Left = *w.Left
	}
	if w.Top != nil {
		o.Top = *w.Top
	}
	if w.ScaleX != nil {
		o.ScaleX = *w.ScaleX
	}
	if w.ScaleY != nil {
		o.ScaleY = *w.ScaleY
	}
	return o, nil
}
