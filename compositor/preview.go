package compositor

import (
	"context"
	"image"
	"image/png"
	"io"

	"tshirt-studio/canvas"
	"tshirt-studio/codec"
	"tshirt-studio/core"
)

// Preview draws doc over its garment on a throwaway surface.
func (c *Compositor) Preview(ctx context.Context, doc core.CanvasDocument) (image.Image, error) {
	width, height := doc.Width, doc.Height
	if width <= 0 || height <= 0 {
		width, height = canvas.DefaultWidth, canvas.DefaultHeight
	}
	s := canvas.NewSurface(width, height)
	s.SetLogger(c.log)
	h := canvas.NewReadyHandle(s)
	defer s.Dispose()

	dec := &codec.Codec{Images: c.loader, Log: c.log}
	if err := dec.Decode(ctx, h, doc); err != nil {
		return nil, err
	}

	color := doc.Background
	if color == "" {
		color = core.DefaultGarmentColor
	}
	if err := c.ApplyBackground(ctx, h, color); err != nil {
		return nil, err
	}
	return s.Render(), nil
}

// WritePreviewPNG renders doc and writes it as PNG.
func (c *Compositor) WritePreviewPNG(ctx context.Context, w io.Writer, doc core.CanvasDocument) error {
	img, err := c.Preview(ctx, doc)
	if err != nil {
		return err
	}
	return png.Encode(w, img)
}
