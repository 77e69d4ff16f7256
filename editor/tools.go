package editor

import (
	"context"
	"errors"

	"tshirt-studio/canvas"
	"tshirt-studio/core"
)

func (s *DesignStore) surface() (*canvas.Surface, error) {
	return s.Handle().Surface()
}

// AddImage loads an uploaded bitmap and places it on the canvas.
func (s *DesignStore) AddImage(ctx context.Context, source string) (*canvas.Object, error) {
	h := s.Handle()
	if !h.Live() {
		return nil, core.ErrHandleNotReady
	}
	bitmap, err := s.compositor.Loader().Load(ctx, source)
	if err != nil {
		s.log.WithError(err).Warn("Failed to load uploaded image")
		return nil, &core.AssetLoadError{Ref: source, Err: err}
	}

	// the canvas may have been unmounted while the upload decoded
	surface, err := h.Surface()
	if err != nil {
		return nil, err
	}
	return surface.AddImage(source, bitmap)
}

// SetDrawingMode toggles freehand drawing.
func (s *DesignStore) SetDrawingMode(on bool) error {
	surface, err := s.surface()
	if err != nil {
		return err
	}
	surface.SetDrawingMode(on)
	return nil
}

// Draw completes a freehand stroke. Drawing mode must be on.
func (s *DesignStore) Draw(points []core.Point) (*canvas.Object, error) {
	surface, err := s.surface()
	if err != nil {
		return nil, err
	}
	if !surface.DrawingMode() {
		return nil, errors.New("drawing mode is off")
	}
	return surface.CompletePath(points)
}

// RemoveSelected deletes the selected object, if any.
func (s *DesignStore) RemoveSelected() error {
	surface, err := s.surface()
	if err != nil {
		return err
	}
	id := surface.Selected()
	if id == "" {
		return nil
	}
	return surface.Remove(id)
}
