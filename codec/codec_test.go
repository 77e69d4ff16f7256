package codec

import (
	"context"
	"errors"
	"image"
	"image/color"
	"strings"
	"testing"

	"tshirt-studio/canvas"
	"tshirt-studio/core"

	"github.com/google/go-cmp/cmp"
)

type stubLoader struct {
	images map[string]image.Image
	calls  []string
}

func (l *stubLoader) Load(ctx context.Context, ref string) (image.Image, error) {
	l.calls = append(l.calls, ref)
	if img, ok := l.images[ref]; ok {
		return img, nil
	}
	return nil, errors.New("no such image")
}

func populatedHandle(t *testing.T) *canvas.Handle {
	t.Helper()
	s := canvas.NewSurface(800, 600)
	s.SetBackground(&canvas.Background{Color: core.GarmentPink, Image: image.NewRGBA(image.Rect(0, 0, 4, 4))})

	if _, err := s.AddImage("https://cdn.example.com/logo.png", image.NewRGBA(image.Rect(0, 0, 1200, 800))); err != nil {
		t.Fatalf("AddImage() failed: %v", err)
	}
	if _, err := s.CompletePath([]core.Point{{X: 1, Y: 2}, {X: 3.5, Y: 4.25}, {X: 9, Y: 1}}); err != nil {
		t.Fatalf("CompletePath() failed: %v", err)
	}
	if _, err := s.Add(&canvas.Object{Kind: core.KindImage, ID: "image-top", Left: -20, Top: 30.5, ScaleX: 0.5, ScaleY: 2, Angle: 45, Width: 10, Height: 20, Source: "data:image/png;base64,AAAA"}); err != nil {
		t.Fatalf("Add() failed: %v", err)
	}
	return canvas.NewReadyHandle(s)
}

func TestRoundTrip_PreservesOrderGeometryAndIDs(t *testing.T) {
	src := populatedHandle(t)
	want, err := Encode(src)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	dst := canvas.NewReadyHandle(canvas.NewSurface(800, 600))
	if err := Decode(context.Background(), dst, want); err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	got, err := Encode(dst)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}

	// The background is regenerated by the compositor, not decoded.
	got.Background = want.Background
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTrip_ThroughJSON(t *testing.T) {
	want, err := Encode(populatedHandle(t))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	data, err := Marshal(want)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	got, err := Unmarshal(data)
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("JSON round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_OmitsBackgroundBitmapAndRuntimeState(t *testing.T) {
	doc, err := Encode(populatedHandle(t))
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	if doc.Background != core.GarmentPink {
		t.Errorf("background reference mismatch: got %q", doc.Background)
	}
	if len(doc.Objects) != 3 {
		t.Fatalf("object count mismatch: got %d, want 3", len(doc.Objects))
	}

	data, _ := Marshal(doc)
	for _, field := range []string{"bitmap", "selectable", "evented", "Bitmap"} {
		if strings.Contains(string(data), field) {
			t.Errorf("encoded document contains runtime field %q", field)
		}
	}
}

func TestEncode_NotReadyHandle(t *testing.T) {
	if _, err := Encode(&canvas.Handle{}); !errors.Is(err, core.ErrHandleNotReady) {
		t.Errorf("Encode() error mismatch: got %v", err)
	}
}

func TestDecode_UnknownKindLeavesCanvasUnchanged(t *testing.T) {
	h := populatedHandle(t)
	before, _ := Encode(h)

	doc := core.CanvasDocument{Width: 800, Height: 600, Objects: []core.DrawableObject{
		{Kind: core.KindImage, ID: "image-1", ScaleX: 1, ScaleY: 1, Source: "a.png"},
		{Kind: "unknown", ID: "thing-1", ScaleX: 1, ScaleY: 1},
	}}
	err := Decode(context.Background(), h, doc)

	var docErr *core.DocumentError
	if !errors.As(err, &docErr) {
		t.Fatalf("Decode() error mismatch: got %v, want DocumentError", err)
	}
	if docErr.Index != 1 {
		t.Errorf("DocumentError index mismatch: got %d, want 1", docErr.Index)
	}
	after, _ := Encode(h)
	if diff := cmp.Diff(before, after); diff != "" {
		t.Errorf("canvas changed after failed Decode() (-before +after):\n%s", diff)
	}
}

func TestDecode_DoesNotTouchBackgroundOrEmitEvents(t *testing.T) {
	h := populatedHandle(t)
	s, _ := h.Surface()
	events := 0
	s.On(canvas.EventObjectAdded, func(canvas.Event) { events++ })
	s.On(canvas.EventObjectRemoved, func(canvas.Event) { events++ })

	err := Decode(context.Background(), h, core.CanvasDocument{Width: 800, Height: 600})
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}
	if len(s.Objects()) != 0 {
		t.Errorf("objects not cleared: %d left", len(s.Objects()))
	}
	if bg := s.Background(); bg == nil || bg.Color != core.GarmentPink {
		t.Error("Decode() touched the background")
	}
	if events != 0 {
		t.Errorf("Decode() emitted %d structural events", events)
	}
}

func TestDecode_LoadsBitmaps(t *testing.T) {
	bitmap := image.NewRGBA(image.Rect(0, 0, 2, 2))
	bitmap.Set(0, 0, color.Black)
	loader := &stubLoader{images: map[string]image.Image{"ok.png": bitmap}}
	c := New(loader)
	h := canvas.NewReadyHandle(canvas.NewSurface(100, 100))

	err := c.Decode(context.Background(), h, core.CanvasDocument{Width: 100, Height: 100, Objects: []core.DrawableObject{
		{Kind: core.KindImage, ID: "image-1", ScaleX: 1, ScaleY: 1, Source: "ok.png", Width: 2, Height: 2},
		{Kind: core.KindImage, ID: "image-2", ScaleX: 1, ScaleY: 1, Source: "missing.png"},
	}})
	if err != nil {
		t.Fatalf("Decode() failed: %v", err)
	}

	s, _ := h.Surface()
	objs := s.Objects()
	if objs[0].Bitmap == nil {
		t.Error("bitmap not attached to image-1")
	}
	if objs[1].Bitmap != nil {
		t.Error("missing bitmap should leave image-2 without one")
	}
	if len(loader.calls) != 2 {
		t.Errorf("loader calls mismatch: got %v", loader.calls)
	}
}

func TestDecode_DisposedHandle(t *testing.T) {
	m := canvas.NewManager(canvas.Options{})
	h := canvas.NewReadyHandle(canvas.NewSurface(10, 10))
	m.Dispose(h)

	err := Decode(context.Background(), h, core.CanvasDocument{Width: 10, Height: 10})
	if !errors.Is(err, core.ErrHandleNotReady) {
		t.Errorf("Decode() error mismatch: got %v", err)
	}
}

func TestUnmarshal_RejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name  string
		input string
		index int
	}{
		{"malformed JSON", `{"width": 800,`, -1},
		{"missing size", `{"objects": []}`, -1},
		{"unknown kind", `{"width":800,"height":600,"objects":[{"kind":"unknown","id":"x-1"}]}`, 0},
		{"missing image geometry", `{"width":800,"height":600,"objects":[{"kind":"image","id":"image-1","left":1,"top":2,"source":"a.png"}]}`, 0},
		{"missing path stroke width", `{"width":800,"height":600,"objects":[{"kind":"path","id":"path-1","points":[{"x":0,"y":0},{"x":1,"y":1}]}]}`, 0},
		{"missing id", `{"width":800,"height":600,"objects":[{"kind":"path","strokeWidth":5,"points":[{"x":0,"y":0},{"x":1,"y":1}]}]}`, 0},
		{"duplicate id", `{"width":800,"height":600,"objects":[
			{"kind":"path","id":"p","strokeWidth":5,"points":[{"x":0,"y":0},{"x":1,"y":1}]},
			{"kind":"path","id":"p","strokeWidth":5,"points":[{"x":0,"y":0},{"x":1,"y":1}]}]}`, 1},
		{"unknown background", `{"width":800,"height":600,"background":"green","objects":[]}`, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Unmarshal([]byte(tt.input))
			var docErr *core.DocumentError
			if !errors.As(err, &docErr) {
				t.Fatalf("Unmarshal() error mismatch: got %v, want DocumentError", err)
			}
			if docErr.Index != tt.index {
				t.Errorf("index mismatch: got %d, want %d", docErr.Index, tt.index)
			}
		})
	}
}

func TestUnmarshal_PathDefaults(t *testing.T) {
	doc, err := Unmarshal([]byte(`{"width":800,"height":600,"objects":[
		{"kind":"path","id":"path-1","points":[{"x":0,"y":0},{"x":4,"y":2}],"stroke":"#000000","strokeWidth":5}]}`))
	if err != nil {
		t.Fatalf("Unmarshal() failed: %v", err)
	}
	o := doc.Objects[0]
	if o.ScaleX != 1 || o.ScaleY != 1 || o.Left != 0 || o.Top != 0 {
		t.Errorf("path defaults mismatch: %+v", o)
	}
}

func TestRoundTrip_AfterRejectedEdits(t *testing.T) {
	s := canvas.NewSurface(800, 600)
	h := canvas.NewReadyHandle(s)
	path, err := s.CompletePath([]core.Point{{X: 0, Y: 0}, {X: 5, Y: 5}})
	if err != nil {
		t.Fatalf("CompletePath() failed: %v", err)
	}
	s.Modify(path.ID, func(o *canvas.Object) { o.ScaleX = 0 })
	s.Modify(path.ID, func(o *canvas.Object) { o.Points = o.Points[:1] })

	doc, err := Encode(h)
	if err != nil {
		t.Fatalf("Encode() failed: %v", err)
	}
	data, err := Marshal(doc)
	if err != nil {
		t.Fatalf("Marshal() failed: %v", err)
	}
	if _, err := Unmarshal(data); err != nil {
		t.Errorf("Unmarshal() of an encoded surface failed: %v", err)
	}

	target := canvas.NewReadyHandle(canvas.NewSurface(800, 600))
	if err := Decode(context.Background(), target, doc); err != nil {
		t.Errorf("Decode() of an encoded surface failed: %v", err)
	}
}
