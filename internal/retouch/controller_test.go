package retouch_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"gloss/internal/batch"
	"gloss/internal/logging"
	"gloss/internal/retouch"
	"gloss/internal/services"
	"gloss/internal/testsupport"
)

type fakeRetoucher struct {
	mu      sync.Mutex
	calls   int
	fail    error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeRetoucher) Process(ctx context.Context, originalRef, instructions string) (string, error) {
	return "proc/" + originalRef, nil
}

func (f *fakeRetoucher) Retouch(ctx context.Context, processedRef, instruction string) (string, error) {
	f.mu.Lock()
	f.calls++
	block := f.block
	started := f.started
	f.mu.Unlock()

	if started != nil {
		close(started)
		f.mu.Lock()
		f.started = nil
		f.mu.Unlock()
	}
	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.fail != nil {
		return "", f.fail
	}
	return processedRef + "+retouched", nil
}

func newController(t *testing.T, store *batch.Store, processor *fakeRetoucher) *retouch.Controller {
	t.Helper()
	return retouch.NewController(testsupport.NewConfig(t), store, processor, logging.NewNop())
}

func completedImage(t *testing.T, store *batch.Store) string {
	t.Helper()
	b := testsupport.NewBatch(t, store, "grade", "a.jpg")
	imageID := b.Images[0].ID
	testsupport.AdvanceToCompleted(t, store, imageID, "proc/v1")
	return imageID
}

func TestRetouchSuccessUpdatesRefAndHistory(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := newController(t, store, &fakeRetoucher{})
	imageID := completedImage(t, store)

	img, err := controller.Retouch(context.Background(), imageID, "soften shadows")
	if err != nil {
		t.Fatalf("Retouch: %v", err)
	}
	if img.Status != batch.StatusCompleted {
		t.Fatalf("status = %s", img.Status)
	}
	if img.ProcessedRef != "proc/v1+retouched" {
		t.Fatalf("processed ref = %q", img.ProcessedRef)
	}

	loaded, err := store.Batch(context.Background())
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	history := loaded.Images[0].History
	if len(history) != 1 || history[0].Instruction != "soften shadows" {
		t.Fatalf("history = %+v", history)
	}
}

func TestRetouchFailureRestoresImage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	processor := &fakeRetoucher{fail: services.Wrap(services.ErrTransient, "ai", "retouch", "503", nil)}
	controller := newController(t, store, processor)
	imageID := completedImage(t, store)

	_, err := controller.Retouch(context.Background(), imageID, "soften shadows")
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected transient error, got %v", err)
	}

	img, lookupErr := store.Image(context.Background(), imageID)
	if lookupErr != nil {
		t.Fatalf("Image: %v", lookupErr)
	}
	if img.Status != batch.StatusCompleted {
		t.Fatalf("status = %s, want completed", img.Status)
	}
	if img.ProcessedRef != "proc/v1" {
		t.Fatalf("processed ref = %q, want proc/v1", img.ProcessedRef)
	}

	loaded, _ := store.Batch(context.Background())
	if len(loaded.Images[0].History) != 0 {
		t.Fatal("failed retouch must not append history")
	}
}

func TestRetouchValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := newController(t, store, &fakeRetoucher{})
	imageID := completedImage(t, store)

	if _, err := controller.Retouch(context.Background(), imageID, "   "); !errors.Is(err, services.ErrInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
	if _, err := controller.Retouch(context.Background(), "missing", "fix"); !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRetouchRejectsNonCompletedImage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := newController(t, store, &fakeRetoucher{})

	b := testsupport.NewBatch(t, store, "grade", "a.jpg")
	_, err := controller.Retouch(context.Background(), b.Images[0].ID, "fix")
	if !errors.Is(err, services.ErrInvalidState) {
		t.Fatalf("expected invalid state for pending image, got %v", err)
	}
}

func TestRetouchReportsNotFoundWhenResetLandsMidApply(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	controller := newController(t, store, &fakeRetoucher{})
	imageID := completedImage(t, store)

	// Discard the batch the moment the retouch result commits, before the
	// controller re-reads the record. The first change for this image is
	// the retouch lock, the second the committed result.
	var seen int
	token := store.Subscribe(func(change batch.Change) {
		if change.ImageID != imageID {
			return
		}
		seen++
		if seen == 2 {
			if err := store.Reset(context.Background()); err != nil {
				t.Errorf("Reset: %v", err)
			}
		}
	})
	defer store.Unsubscribe(token)

	img, err := controller.Retouch(context.Background(), imageID, "soften shadows")
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found after reset, got %v", err)
	}
	if img != nil {
		t.Fatalf("expected nil image, got %+v", img)
	}
}

func TestConcurrentRetouchObservesConflict(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	release := make(chan struct{})
	started := make(chan struct{})
	processor := &fakeRetoucher{block: release, started: started}
	controller := newController(t, store, processor)
	imageID := completedImage(t, store)

	done := make(chan error, 1)
	go func() {
		_, err := controller.Retouch(context.Background(), imageID, "first pass")
		done <- err
	}()
	<-started

	_, err := controller.Retouch(context.Background(), imageID, "second pass")
	if !errors.Is(err, services.ErrConflict) {
		t.Fatalf("expected conflict for concurrent retouch, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("first retouch failed: %v", err)
	}

	img, _ := store.Image(context.Background(), imageID)
	if img.ProcessedRef != "proc/v1+retouched" {
		t.Fatalf("processed ref = %q", img.ProcessedRef)
	}
}
