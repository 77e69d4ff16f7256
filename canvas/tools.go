package canvas

import (
	"errors"
	"image"
	"math"

	"tshirt-studio/core"
)

const (
	// MaxImageDimension bounds the larger side of a freshly placed image.
	MaxImageDimension = 400
	imageOffset       = 100
	imagePadding      = 10
)

// FitToMaxDimension returns the uniform scale that brings the larger side of
// a w x h bitmap down to max. Bitmaps that already fit keep scale 1.
func FitToMaxDimension(w, h, max float64) float64 {
	if w <= max && h <= max {
		return 1
	}
	return max / math.Max(w, h)
}

// AddImage places an uploaded bitmap on the surface and selects it.
func (s *Surface) AddImage(source string, bitmap image.Image) (*Object, error) {
	if bitmap == nil {
		return nil, errors.New("image bitmap is nil")
	}
	size := bitmap.Bounds().Size()
	w, h := float64(size.X), float64(size.Y)
	if w == 0 || h == 0 {
		return nil, errors.New("image has no pixels")
	}

	scale := FitToMaxDimension(w, h, MaxImageDimension)
	obj, err := s.Add(&Object{
		Kind:       core.KindImage,
		ID:         s.NewObjectID(core.KindImage),
		Left:       imageOffset,
		Top:        imageOffset,
		ScaleX:     scale,
		ScaleY:     scale,
		Padding:    imagePadding,
		Width:      w,
		Height:     h,
		Source:     source,
		Bitmap:     bitmap,
		Selectable: true,
		Evented:    true,
	})
	if err != nil {
		return nil, err
	}
	if err := s.Select(obj.ID); err != nil {
		return nil, err
	}
	return obj, nil
}

// CompletePath turns a finished freehand stroke, given in canvas
// coordinates, into a path object styled with the current brush. Listeners
// see object:added followed by path:created.
func (s *Surface) CompletePath(points []core.Point) (*Object, error) {
	if len(points) < 2 {
		return nil, errors.New("a stroke needs at least two points")
	}

	minX, minY := points[0].X, points[0].Y
	for _, p := range points[1:] {
		minX = math.Min(minX, p.X)
		minY = math.Min(minY, p.Y)
	}
	rel := make([]core.Point, len(points))
	for i, p := range points {
		rel[i] = core.Point{X: p.X - minX, Y: p.Y - minY}
	}

	brush := s.Brush()
	obj, err := s.Add(&Object{
		Kind:        core.KindPath,
		ID:          s.NewObjectID(core.KindPath),
		Left:        minX,
		Top:         minY,
		ScaleX:      1,
		ScaleY:      1,
		Points:      rel,
		Stroke:      brush.Color,
		StrokeWidth: brush.Width,
		Selectable:  true,
		Evented:     true,
	})
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	fns := s.snapshotListeners(EventPathCreated)
	s.mu.RUnlock()
	s.emit(Event{Type: EventPathCreated, Target: obj.Clone()}, fns)
	return obj, nil
}
