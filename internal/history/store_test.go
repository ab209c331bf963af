package history_test

import (
	"context"
	"testing"

	"github.com/clipper-camera/clipper-app/internal/queue"
	"github.com/clipper-camera/clipper-app/internal/testsupport"
)

func TestInsertIsIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.Insert(ctx, 100, queue.MediaImage, queue.StatusPending); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.MarkCompleted(ctx, 100); err != nil {
		t.Fatalf("MarkCompleted: %v", err)
	}
	// A repeated insert must not resurrect the entry as pending.
	if err := store.Insert(ctx, 100, queue.MediaImage, queue.StatusPending); err != nil {
		t.Fatalf("repeated Insert: %v", err)
	}

	entry, err := store.Get(ctx, 100)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != queue.StatusCompleted {
		t.Fatalf("status = %q, want completed", entry.Status)
	}
	if entry.Progress != 100 {
		t.Fatalf("progress = %d, want 100", entry.Progress)
	}
}

func TestProgressIsMonotonic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.Insert(ctx, 7, queue.MediaVideo, queue.StatusUploading); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	for _, p := range []int{10, 55, 40, 120} {
		if err := store.SetProgress(ctx, 7, p); err != nil {
			t.Fatalf("SetProgress(%d): %v", p, err)
		}
	}

	entry, err := store.Get(ctx, 7)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Progress != 100 {
		t.Fatalf("progress = %d, want clamped monotonic 100", entry.Progress)
	}
}

func TestMarkFailedRecordsReason(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	if err := store.Insert(ctx, 8, queue.MediaImage, queue.StatusPending); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := store.MarkFailed(ctx, 8, "payload missing"); err != nil {
		t.Fatalf("MarkFailed: %v", err)
	}

	entry, err := store.Get(ctx, 8)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if entry.Status != queue.StatusFailed || entry.ErrorMessage != "payload missing" {
		t.Fatalf("entry = %+v", entry)
	}
	if entry.Open() {
		t.Fatal("failed entry reported open")
	}
}

func TestListOpenAndOrdering(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	for id, status := range map[int64]queue.Status{
		1: queue.StatusPending,
		2: queue.StatusUploading,
		3: queue.StatusCompleted,
		4: queue.StatusFailed,
	} {
		if err := store.Insert(ctx, id, queue.MediaImage, status); err != nil {
			t.Fatalf("Insert(%d): %v", id, err)
		}
	}

	open, err := store.ListOpen(ctx)
	if err != nil {
		t.Fatalf("ListOpen: %v", err)
	}
	if len(open) != 2 || open[0].ID != 1 || open[1].ID != 2 {
		t.Fatalf("open = %+v", open)
	}

	all, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 4 || all[0].ID != 4 {
		t.Fatalf("List not newest-first: %+v", all)
	}

	limited, err := store.List(ctx, 2)
	if err != nil {
		t.Fatalf("List limited: %v", err)
	}
	if len(limited) != 2 {
		t.Fatalf("limit ignored: %d entries", len(limited))
	}
}

func TestClearRemovesEverything(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenHistory(t, cfg)
	ctx := context.Background()

	for id := int64(1); id <= 3; id++ {
		if err := store.Insert(ctx, id, queue.MediaImage, queue.StatusCompleted); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	removed, err := store.Clear(ctx)
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if removed != 3 {
		t.Fatalf("removed = %d, want 3", removed)
	}
	entries, err := store.List(ctx, 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("entries remain after clear: %d", len(entries))
	}
}
