package core

import (
	"fmt"
	"math"
)

// Validate checks the rules every placed object obeys, on the live surface
// and in a stored document alike.
func (o DrawableObject) Validate() error {
	if o.ID == "" {
		return fmt.Errorf("missing id")
	}
	switch o.Kind {
	case KindImage:
		if o.Source == "" {
			return fmt.Errorf("image %s has no source", o.ID)
		}
	case KindPath:
		if len(o.Points) < 2 {
			return fmt.Errorf("path %s needs at least two points", o.ID)
		}
		// zero widths are dropped from the wire form
		if o.StrokeWidth <= 0 {
			return fmt.Errorf("path %s needs a positive strokeWidth", o.ID)
		}
	default:
		return fmt.Errorf("unknown kind %q", o.Kind)
	}

	for name, v := range map[string]float64{
		"left": o.Left, "top": o.Top, "scaleX": o.ScaleX, "scaleY": o.ScaleY,
		"angle": o.Angle, "padding": o.Padding, "width": o.Width, "height": o.Height,
		"strokeWidth": o.StrokeWidth,
	} {
		if !finite(v) {
			return fmt.Errorf("%s is not finite", name)
		}
	}
	for _, p := range o.Points {
		if !finite(p.X) || !finite(p.Y) {
			return fmt.Errorf("path %s has a point that is not finite", o.ID)
		}
	}
	if o.ScaleX == 0 || o.ScaleY == 0 {
		return fmt.Errorf("zero scale")
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
