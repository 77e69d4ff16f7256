// Package compositor installs the garment base image behind the artwork
// and renders product previews.
package compositor

import (
	"context"
	"image"
	"sync"

	"tshirt-studio/canvas"
	"tshirt-studio/core"

	"github.com/sirupsen/logrus"
)

// ImageLoader fetches a bitmap by reference.
type ImageLoader interface {
	Load(ctx context.Context, ref string) (image.Image, error)
}

// Compositor swaps garment backgrounds. When calls overlap for the same
// handle, only the most recent one is applied.
type Compositor struct {
	loader ImageLoader
	log    logrus.FieldLogger

	mu     sync.Mutex
	seq    uint64
	latest map[*canvas.Handle]uint64
}

func New(loader ImageLoader, log logrus.FieldLogger) *Compositor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Compositor{
		loader: loader,
		log:    log,
		latest: make(map[*canvas.Handle]uint64),
	}
}

// Loader returns the bitmap loader the compositor was built with.
func (c *Compositor) Loader() ImageLoader {
	return c.loader
}

// ApplyBackground loads the garment image for color and installs it on h.
// The previous background stays visible until the load completes and is
// kept if it fails. An unknown color is logged and ignored.
func (c *Compositor) ApplyBackground(ctx context.Context, h *canvas.Handle, color core.GarmentColor) error {
	log := c.log.WithField("garment_color", string(color))

	ref, ok := ResolveGarmentAsset(color)
	if !ok {
		log.Warn("Unknown garment color, keeping current background")
		return nil
	}
	if !h.Live() {
		return core.ErrHandleNotReady
	}

	c.mu.Lock()
	c.seq++
	token := c.seq
	c.latest[h] = token
	c.mu.Unlock()

	img, err := c.loader.Load(ctx, ref)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.latest[h] != token {
		log.WithField("token", token).Debug("Discarding stale background load")
		return nil
	}
	delete(c.latest, h)

	if err != nil {
		log.WithError(err).WithField("asset", ref).Warn("Failed to load garment image, keeping current background")
		return &core.AssetLoadError{Ref: ref, Err: err}
	}

	surface, err := h.Surface()
	if err != nil {
		log.Debug("Canvas disposed before background loaded")
		return nil
	}
	if err := surface.SetBackground(&canvas.Background{Color: color, Ref: ref, Image: img}); err != nil {
		log.Debug("Canvas disposed before background loaded")
		return nil
	}
	surface.Render()

	log.WithField("asset", ref).Info("Garment background updated")
	return nil
}
