package canvas

import (
	"fmt"
	"image"
	"math"

	"tshirt-studio/core"
)

// Object is a live item on a surface. Bitmap and the interaction flags are
// runtime state and never leave the process.
type Object struct {
	Kind    core.ObjectKind
	ID      string
	Left    float64
	Top     float64
	ScaleX  float64
	ScaleY  float64
	Angle   float64
	Padding float64

	Width  float64
	Height float64
	Source string
	Bitmap image.Image

	// Points are relative to (Left, Top).
	Points      []core.Point
	Stroke      string
	StrokeWidth float64

	Selectable bool
	Evented    bool
}

// Clone returns a copy that shares only the immutable bitmap.
func (o *Object) Clone() *Object {
	if o == nil {
		return nil
	}
	c := *o
	if o.Points != nil {
		c.Points = append([]core.Point(nil), o.Points...)
	}
	return &c
}

// Bounds returns the axis-aligned box the object covers, ignoring rotation.
func (o *Object) Bounds() (minX, minY, maxX, maxY float64) {
	switch o.Kind {
	case core.KindPath:
		if len(o.Points) == 0 {
			return o.Left, o.Top, o.Left, o.Top
		}
		minX, minY = math.Inf(1), math.Inf(1)
		maxX, maxY = math.Inf(-1), math.Inf(-1)
		for _, p := range o.Points {
			minX = math.Min(minX, p.X)
			minY = math.Min(minY, p.Y)
			maxX = math.Max(maxX, p.X)
			maxY = math.Max(maxY, p.Y)
		}
		return o.Left + minX*o.ScaleX, o.Top + minY*o.ScaleY, o.Left + maxX*o.ScaleX, o.Top + maxY*o.ScaleY
	default:
		return o.Left - o.Padding, o.Top - o.Padding,
			o.Left + o.Width*o.ScaleX + o.Padding, o.Top + o.Height*o.ScaleY + o.Padding
	}
}

// Drawable returns the portable record of o. Runtime state is dropped.
func (o *Object) Drawable() core.DrawableObject {
	d := core.DrawableObject{
		Kind:    o.Kind,
		ID:      o.ID,
		Left:    o.Left,
		Top:     o.Top,
		ScaleX:  o.ScaleX,
		ScaleY:  o.ScaleY,
		Angle:   o.Angle,
		Padding: o.Padding,
	}
	switch o.Kind {
	case core.KindImage:
		d.Width, d.Height, d.Source = o.Width, o.Height, o.Source
	case core.KindPath:
		d.Points = append([]core.Point(nil), o.Points...)
		d.Stroke, d.StrokeWidth = o.Stroke, o.StrokeWidth
	}
	return d
}

// checkGeometry rejects states a stored document could not hold.
func checkGeometry(o *Object) error {
	if err := o.Drawable().Validate(); err != nil {
		return fmt.Errorf("object %s: %w", o.ID, err)
	}
	return nil
}

// Background is the non-interactive garment layer drawn below all objects.
type Background struct {
	Color core.GarmentColor
	Ref   string
	Image image.Image

	Left  float64
	Top   float64
	Scale float64
}

// Fit scales the bitmap uniformly to fit width x height and centers it.
func (b *Background) Fit(width, height int) {
	if b == nil || b.Image == nil {
		return
	}
	size := b.Image.Bounds().Size()
	if size.X == 0 || size.Y == 0 {
		return
	}
	iw, ih := float64(size.X), float64(size.Y)
	b.Scale = FitScale(iw, ih, float64(width), float64(height))
	b.Left = (float64(width) - iw*b.Scale) / 2
	b.Top = (float64(height) - ih*b.Scale) / 2
}

// FitScale is the uniform scale that makes w x h fit inside maxW x maxH.
func FitScale(w, h, maxW, maxH float64) float64 {
	return math.Min(maxW/w, maxH/h)
}
