package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"tshirt-studio/core"
)

func newDesign(owner, id string) *core.Design {
	return &core.Design{
		DesignID:     id,
		OwnerUserID:  owner,
		Name:         core.DefaultDesignName,
		GarmentColor: core.GarmentWhite,
		CanvasDocument: core.CanvasDocument{Width: 800, Height: 600, Objects: []core.DrawableObject{
			{Kind: core.KindPath, ID: "path-1", ScaleX: 1, ScaleY: 1, StrokeWidth: 5,
				Points: []core.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}},
		}},
	}
}

func TestSave_CreateThenUpdate(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return clock }

	created, err := store.Save(ctx, newDesign("u1", "d1"))
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if !created {
		t.Error("first Save() should report a create")
	}

	clock = clock.Add(time.Hour)
	d := newDesign("u1", "d1")
	d.Name = "Renamed"
	created, err = store.Save(ctx, d)
	if err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if created {
		t.Error("second Save() should report an update")
	}

	got, err := store.Get(ctx, "u1", "d1")
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	if got.Name != "Renamed" {
		t.Errorf("name mismatch: got %q, want %q", got.Name, "Renamed")
	}
	if !got.CreatedAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("createdAt not preserved: got %v", got.CreatedAt)
	}
	if !got.UpdatedAt.Equal(clock) {
		t.Errorf("updatedAt mismatch: got %v, want %v", got.UpdatedAt, clock)
	}
	if len(got.CanvasDocument.Objects) != 1 {
		t.Errorf("document not stored: %+v", got.CanvasDocument)
	}
}

func TestGet_ScopedToOwner(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.Save(ctx, newDesign("u1", "d1"))

	if _, err := store.Get(ctx, "u2", "d1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() for another owner: got %v, want ErrNotFound", err)
	}
	if _, err := store.Get(ctx, "u1", "missing"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() of missing design: got %v, want ErrNotFound", err)
	}
}

func TestList_OmitsDocuments(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.Save(ctx, newDesign("u1", "d1"))
	store.Save(ctx, newDesign("u1", "d2"))
	store.Save(ctx, newDesign("u2", "d3"))

	list, err := store.List(ctx, "u1")
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("List() count mismatch: got %d, want 2", len(list))
	}
	for _, d := range list {
		if d.CanvasDocument.Objects != nil {
			t.Errorf("List() returned a document for %s", d.DesignID)
		}
	}

	empty, err := store.List(ctx, "nobody")
	if err != nil || len(empty) != 0 {
		t.Errorf("List() for unknown owner: got %v, %v", empty, err)
	}
}

func TestSave_RequiresIDs(t *testing.T) {
	store := NewStore()
	if _, err := store.Save(context.Background(), newDesign("", "d1")); err == nil {
		t.Error("Save() without owner should fail")
	}
	if _, err := store.Save(context.Background(), newDesign("u1", "")); err == nil {
		t.Error("Save() without design id should fail")
	}
}

func TestDelete(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	store.Save(ctx, newDesign("u1", "d1"))

	if err := store.Delete(ctx, "u1", "d1"); err != nil {
		t.Fatalf("Delete() failed: %v", err)
	}
	if _, err := store.Get(ctx, "u1", "d1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("Get() after Delete(): got %v", err)
	}
	if err := store.Delete(ctx, "u1", "d1"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("second Delete(): got %v, want ErrNotFound", err)
	}
}
