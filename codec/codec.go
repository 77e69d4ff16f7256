// Package codec converts live surfaces to portable canvas documents and back.
package codec

import (
	"context"
	"image"

	"tshirt-studio/canvas"
	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

// ImageLoader fetches the bitmap behind an image object's source.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Codec encodes and decodes canvas documents. Images is optional; without
// it decoded image objects carry no bitmap and render as nothing.
type Codec struct {
	Images ImageLoader
	Log    logrus.FieldLogger
}

func New(images ImageLoader) *Codec {
	return &Codec{Images: images}
}

func (c *Codec) logger() logrus.FieldLogger {
	if c == nil || c.Log == nil {
		return logrus.StandardLogger()
	}
	return c.Log
}

// Encode is Codec.Encode without an image loader.
func Encode(h *canvas.Handle) (core.CanvasDocument, error) {
	return (*Codec)(nil).Encode(h)
}

// Decode is Codec.Decode without an image loader.
func Decode(ctx context.Context, h *canvas.Handle, doc core.CanvasDocument) error {
	return (*Codec)(nil).Decode(ctx, h, doc)
}

// Encode snapshots the surface behind h. The background bitmap and
// interaction state are left out; only the garment color is recorded.
func (c *Codec) Encode(h *canvas.Handle) (core.CanvasDocument, error) {
	s, err := h.Surface()
	if err != nil {
		return core.CanvasDocument{}, err
	}

	width, height := s.Size()
	doc := core.CanvasDocument{Width: width, Height: height}
	if bg := s.Background(); bg != nil {
		doc.Background = bg.Color
	}

	objs := s.Objects()
	doc.Objects = make([]core.DrawableObject, 0, len(objs))
	for _, o := range objs {
		doc.Objects = append(doc.Objects, o.Drawable())
	}
	return doc, nil
}

// Decode replaces every foreground object on the surface with the objects
// of doc, in order. The background is not touched. An invalid document
// yields a *core.DocumentError and leaves the surface as it was.
func (c *Codec) Decode(ctx context.Context, h *canvas.Handle, doc core.CanvasDocument) error {
	if err := Validate(doc); err != nil {
		return err
	}
	if !h.Live() {
		return core.ErrHandleNotReady
	}

	objs := make([]*canvas.Object, 0, len(doc.Objects))
	for _, d := range doc.Objects {
		o := fromDrawable(d)
		if o.Kind == core.KindImage && c != nil && c.Images != nil {
			bitmap, err := c.Images.Load(ctx, o.Source)
			if err != nil {
				c.logger().WithField("object_id", o.ID).WithError(err).Warn("Failed to load image bitmap")
			} else {
				o.Bitmap = bitmap
			}
		}
		objs = append(objs, o)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	// Bitmap loads may have outlived the handle.
	s, err := h.Surface()
	if err != nil {
		return err
	}
	if err := s.Replace(objs); err != nil {
		return &core.DocumentError{Index: -1, Reason: "cannot apply objects", Err: err}
	}
	c.logger().WithField("objects", len(objs)).Debug("Canvas document decoded")
	return nil
}

func fromDrawable(d core.DrawableObject) *canvas.Object {
	return &canvas.Object{
		Kind:        d.Kind,
		ID:          d.ID,
		Left:        d.Left,
		Top:         d.Top,
		ScaleX:      d.ScaleX,
		ScaleY:      d.ScaleY,
		Angle:       d.Angle,
		Padding:     d.Padding,
		Width:       d.Width,
		Height:      d.Height,
		Source:      d.Source,
		Points:      append([]core.Point(nil), d.Points...),
		Stroke:      d.Stroke,
		StrokeWidth: d.StrokeWidth,
		Selectable:  true,
		Evented:     true,
	}
}
