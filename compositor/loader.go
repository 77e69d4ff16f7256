package compositor

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"io/fs"
	"net/http"
	"strings"
	"time"

	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"
)

const (
	maxBitmapBytes = 20 << 20
	// DefaultMaxPixels caps the decoded size of a bitmap.
	DefaultMaxPixels = 40_000_000
)

// ErrRemoteDisabled is returned for http(s) references when the loader
// does not fetch remote images.
var ErrRemoteDisabled = errors.New("remote image fetch disabled")

// Loader resolves a bitmap reference: a data URL, an http(s) URL, or a
// path inside Assets. Garment asset references fall back to built-in
// silhouettes when Assets is nil or lacks the file.
type Loader struct {
	Assets fs.FS
	HTTP   *http.Client
	// AllowRemote enables http(s) references.
	AllowRemote bool
	// MaxPixels bounds width*height of any bitmap, checked from its header
	// before the pixels are decoded. Zero means DefaultMaxPixels.
	MaxPixels int
}

// NewLoader returns a loader that also fetches remote images. Servers that
// render untrusted documents should clear AllowRemote.
func NewLoader(assets fs.FS) *Loader {
	return &Loader{
		Assets:      assets,
		HTTP:        &http.Client{Timeout: 15 * time.Second},
		AllowRemote: true,
	}
}

func (l *Loader) Load(ctx context.Context, ref string) (image.Image, error) {
	switch {
	case strings.HasPrefix(ref, "data:"):
		data, err := decodeDataURL(ref)
		if err != nil {
			return nil, err
		}
		return l.decode(data)
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		if !l.AllowRemote {
			return nil, fmt.Errorf("load %s: %w", ref, ErrRemoteDisabled)
		}
		return l.fetch(ctx, ref)
	}

	if l.Assets != nil {
		data, err := fs.ReadFile(l.Assets, strings.TrimPrefix(ref, "/"))
		if err == nil {
			return l.decode(data)
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if img, ok := silhouette(ref); ok {
		return img, nil
	}
	return nil, fmt.Errorf("asset %s: %w", ref, fs.ErrNotExist)
}

func (l *Loader) fetch(ctx context.Context, url string) (image.Image, error) {
	client := l.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBitmapBytes))
	if err != nil {
		return nil, err
	}
	return l.decode(data)
}

func decodeDataURL(ref string) ([]byte, error) {
	header, payload, ok := strings.Cut(ref, ",")
	if !ok || !strings.HasSuffix(header, ";base64") {
		return nil, errors.New("data URL is not base64 encoded")
	}
	if base64.StdEncoding.DecodedLen(len(payload)) > maxBitmapBytes {
		return nil, fmt.Errorf("data URL larger than %d bytes", maxBitmapBytes)
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("data URL: %w", err)
	}
	return data, nil
}

func (l *Loader) decode(data []byte) (image.Image, error) {
	limit := l.MaxPixels
	if limit <= 0 {
		limit = DefaultMaxPixels
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > int64(limit) {
		return nil, fmt.Errorf("decode bitmap: %dx%d exceeds %d pixels", cfg.Width, cfg.Height, limit)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode bitmap: %w", err)
	}
	return img, nil
}
