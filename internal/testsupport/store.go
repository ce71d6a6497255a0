package testsupport

import (
	"context"
	"testing"

	"gloss/internal/batch"
	"gloss/internal/config"
)

// MustOpenStore opens a batch.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *batch.Store {
	t.Helper()

	store, err := batch.Open(cfg)
	if err != nil {
		t.Fatalf("batch.Open: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}

// NewBatch seeds the store with a batch holding the named images.
func NewBatch(t testing.TB, store *batch.Store, instructions string, names ...string) *batch.Batch {
	t.Helper()

	images := make([]batch.NewImage, 0, len(names))
	for _, name := range names {
		images = append(images, batch.NewImage{Name: name})
	}
	b, err := store.CreateBatch(context.Background(), images, instructions)
	if err != nil {
		t.Fatalf("store.CreateBatch: %v", err)
	}
	return b
}

// AdvanceToQueued walks one image through pending -> uploading -> queued.
func AdvanceToQueued(t testing.TB, store *batch.Store, imageID string) {
	t.Helper()

	ctx := context.Background()
	if err := store.Transition(ctx, imageID, batch.StatusPending, batch.StatusUploading); err != nil {
		t.Fatalf("transition to uploading: %v", err)
	}
	if err := store.SetOriginal(ctx, imageID, "orig/"+imageID); err != nil {
		t.Fatalf("set original: %v", err)
	}
	if err := store.Transition(ctx, imageID, batch.StatusUploading, batch.StatusQueued); err != nil {
		t.Fatalf("transition to queued: %v", err)
	}
}

// AdvanceToCompleted walks one image all the way to completed with the given
// processed reference.
func AdvanceToCompleted(t testing.TB, store *batch.Store, imageID, processedRef string) {
	t.Helper()

	ctx := context.Background()
	AdvanceToQueued(t, store, imageID)
	if err := store.MarkProcessing(ctx, imageID); err != nil {
		t.Fatalf("mark processing: %v", err)
	}
	if err := store.MarkCompleted(ctx, imageID, processedRef); err != nil {
		t.Fatalf("mark completed: %v", err)
	}
}
