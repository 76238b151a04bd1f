package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/orchard-search/orchard/internal/catalog"
)

func TestRepo_UpsertAssignsIDAndPreservesItOnUpdate(t *testing.T) {
	ctx := context.Background()
	r := New()

	e := &catalog.Entry{URL: "https://example.org/a", Pod: "fruit", RowID: 0}
	if err := r.Upsert(ctx, e); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if e.ID == uuid.Nil {
		t.Fatal("expected an id to be assigned")
	}
	firstID := e.ID
	created := e.CreatedAt

	e2 := &catalog.Entry{URL: "https://example.org/a", Pod: "fruit", RowID: 3, Title: "updated"}
	if err := r.Upsert(ctx, e2); err != nil {
		t.Fatalf("second Upsert failed: %v", err)
	}
	if e2.ID != firstID {
		t.Error("expected re-upsert to keep the original id")
	}
	if !e2.CreatedAt.Equal(created) {
		t.Error("expected re-upsert to keep the original creation time")
	}

	got, err := r.GetByURL(ctx, "https://example.org/a")
	if err != nil {
		t.Fatalf("GetByURL failed: %v", err)
	}
	if got.RowID != 3 || got.Title != "updated" {
		t.Errorf("update not applied: %+v", got)
	}
}

func TestRepo_GetByURLNotFound(t *testing.T) {
	r := New()
	if _, err := r.GetByURL(context.Background(), "https://example.org/nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_ListAndCountByPod(t *testing.T) {
	ctx := context.Background()
	r := New()

	for i, url := range []string{"https://a.org/1", "https://a.org/2"} {
		if err := r.Upsert(ctx, &catalog.Entry{URL: url, Pod: "fruit", RowID: i}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := r.Upsert(ctx, &catalog.Entry{URL: "https://b.org/1", Pod: "veg", RowID: 0}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	entries, err := r.ListByPod(ctx, "fruit")
	if err != nil {
		t.Fatalf("ListByPod failed: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries in fruit, got %d", len(entries))
	}

	count, err := r.CountByPod(ctx, "veg")
	if err != nil {
		t.Fatalf("CountByPod failed: %v", err)
	}
	if count != 1 {
		t.Errorf("expected count 1 in veg, got %d", count)
	}
}

func TestRepo_DeleteAndApplyRenumbering(t *testing.T) {
	ctx := context.Background()
	r := New()

	urls := []string{"https://a.org/0", "https://a.org/1", "https://a.org/2"}
	for i, url := range urls {
		if err := r.Upsert(ctx, &catalog.Entry{URL: url, Pod: "fruit", RowID: i}); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	if err := r.Delete(ctx, urls[1]); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := r.ApplyRenumbering(ctx, "fruit", 1); err != nil {
		t.Fatalf("ApplyRenumbering failed: %v", err)
	}

	e0, err := r.GetByURL(ctx, urls[0])
	if err != nil {
		t.Fatalf("GetByURL failed: %v", err)
	}
	if e0.RowID != 0 {
		t.Errorf("expected row 0 untouched, got %d", e0.RowID)
	}
	e2, err := r.GetByURL(ctx, urls[2])
	if err != nil {
		t.Fatalf("GetByURL failed: %v", err)
	}
	if e2.RowID != 1 {
		t.Errorf("expected row 2 renumbered to 1, got %d", e2.RowID)
	}

	if err := r.Delete(ctx, "https://a.org/nope"); !errors.Is(err, catalog.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestRepo_DeleteByPod(t *testing.T) {
	ctx := context.Background()
	r := New()

	if err := r.Upsert(ctx, &catalog.Entry{URL: "https://a.org/1", Pod: "fruit", RowID: 0}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := r.Upsert(ctx, &catalog.Entry{URL: "https://b.org/1", Pod: "veg", RowID: 0}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	if err := r.DeleteByPod(ctx, "fruit"); err != nil {
		t.Fatalf("DeleteByPod failed: %v", err)
	}
	if count, _ := r.CountByPod(ctx, "fruit"); count != 0 {
		t.Errorf("expected fruit to be empty, got %d", count)
	}
	if count, _ := r.CountByPod(ctx, "veg"); count != 1 {
		t.Errorf("expected veg untouched, got %d", count)
	}
}
