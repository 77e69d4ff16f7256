package canvas

import (
	"image"
	"image/color"
	"math"

	"tshirt-studio/core"

	"github.com/fogleman/gg"
	xdraw "golang.org/x/image/draw"
)

// Render rasterises the background and then every object in z-order.
func (s *Surface) Render() image.Image {
	s.mu.RLock()
	width, height := s.width, s.height
	var bg *Background
	if s.background != nil {
		c := *s.background
		bg = &c
	}
	objs := make([]*Object, len(s.objects))
	for i, o := range s.objects {
		objs[i] = o.Clone()
	}
	s.mu.RUnlock()

	dc := gg.NewContext(width, height)
	dc.SetColor(color.White)
	dc.Clear()

	if bg != nil && bg.Image != nil {
		drawBackground(dc, bg)
	}
	for _, o := range objs {
		switch o.Kind {
		case core.KindImage:
			drawImage(dc, o)
		case core.KindPath:
			drawPath(dc, o)
		}
	}

	frame := dc.Image()
	s.mu.Lock()
	if !s.disposed {
		s.frame = frame
		s.renders++
	}
	s.mu.Unlock()
	return frame
}

// Frame returns the last rendered frame, or nil.
func (s *Surface) Frame() image.Image {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Renders counts completed renders.
func (s *Surface) Renders() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.renders
}

func drawBackground(dc *gg.Context, bg *Background) {
	src := bg.Image.Bounds()
	w := int(math.Round(float64(src.Dx()) * bg.Scale))
	h := int(math.Round(float64(src.Dy()) * bg.Scale))
	if w <= 0 || h <= 0 {
		return
	}
	scaled := image.NewRGBA(image.Rect(0, 0, w, h))
	xdraw.CatmullRom.Scale(scaled, scaled.Bounds(), bg.Image, src, xdraw.Over, nil)
	dc.DrawImage(scaled, int(math.Round(bg.Left)), int(math.Round(bg.Top)))
}

func drawImage(dc *gg.Context, o *Object) {
	if o.Bitmap == nil {
		return
	}
	dc.Push()
	dc.Translate(o.Left, o.Top)
	dc.Rotate(gg.Radians(o.Angle))
	dc.Scale(o.ScaleX, o.ScaleY)
	dc.DrawImage(o.Bitmap, 0, 0)
	dc.Pop()
}

func drawPath(dc *gg.Context, o *Object) {
	if len(o.Points) < 2 {
		return
	}
	stroke := o.Stroke
	if stroke == "" {
		stroke = DefaultBrush.Color
	}

	dc.Push()
	dc.Translate(o.Left, o.Top)
	dc.Rotate(gg.Radians(o.Angle))
	dc.Scale(o.ScaleX, o.ScaleY)
	dc.SetHexColor(stroke)
	dc.SetLineWidth(o.StrokeWidth)
	dc.SetLineCapRound()
	dc.SetLineJoinRound()
	dc.MoveTo(o.Points[0].X, o.Points[0].Y)
	for _, p := range o.Points[1:] {
		dc.LineTo(p.X, p.Y)
	}
	dc.Stroke()
	dc.Pop()
}
