package upload_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"gloss/internal/batch"
	"gloss/internal/logging"
	"gloss/internal/services"
	"gloss/internal/testsupport"
	"gloss/internal/upload"
)

type fakeObjects struct {
	mu   sync.Mutex
	puts int
	fail map[string]error
}

func (f *fakeObjects) PutOriginal(ctx context.Context, name string, payload io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.puts++
	if err, ok := f.fail[name]; ok {
		return "", err
	}
	data, err := io.ReadAll(payload)
	if err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", errors.New("empty payload")
	}
	return "orig/" + name, nil
}

func (f *fakeObjects) Fetch(ctx context.Context, ref string) (io.ReadCloser, error) {
	return nil, services.Wrap(services.ErrNotFound, "storage", "fetch", ref, nil)
}

type fakeWaker struct {
	mu    sync.Mutex
	kicks int
}

func (f *fakeWaker) Kick() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.kicks++
}

func (f *fakeWaker) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.kicks
}

func TestSubmitValidation(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	coordinator := upload.NewCoordinator(store, &fakeObjects{}, &fakeWaker{}, logging.NewNop())
	ctx := context.Background()

	cases := []struct {
		name         string
		inputs       []upload.Input
		instructions string
	}{
		{"no images", nil, "enhance"},
		{"blank instructions", []upload.Input{{Name: "a.jpg", Data: []byte("x")}}, "  "},
		{"empty image data", []upload.Input{{Name: "a.jpg", Data: nil}}, "enhance"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := coordinator.Submit(ctx, tc.inputs, tc.instructions)
			if !errors.Is(err, services.ErrInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	// Validation failures must not create a batch.
	active, err := store.ActiveBatchID(ctx)
	if err != nil {
		t.Fatalf("ActiveBatchID: %v", err)
	}
	if active != "" {
		t.Fatalf("batch created despite validation failure: %s", active)
	}
}

func TestSubmitQueuesAllImages(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	waker := &fakeWaker{}
	coordinator := upload.NewCoordinator(store, &fakeObjects{}, waker, logging.NewNop())
	ctx := context.Background()

	batchID, err := coordinator.Submit(ctx, []upload.Input{
		{Name: "a.jpg", Data: []byte("aaa")},
		{Name: "b.jpg", Data: []byte("bbb")},
	}, "warm tones")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if batchID == "" {
		t.Fatal("empty batch id")
	}

	b, err := store.Batch(ctx)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if b.ID != batchID {
		t.Fatalf("batch id = %s, want %s", b.ID, batchID)
	}
	for _, img := range b.Images {
		if img.Status != batch.StatusQueued {
			t.Fatalf("image %s status = %s, want queued", img.ID, img.Status)
		}
		if img.OriginalRef != "orig/"+img.Name {
			t.Fatalf("image %s original ref = %q", img.ID, img.OriginalRef)
		}
	}
	if waker.count() != 1 {
		t.Fatalf("kicks = %d, want 1", waker.count())
	}
}

func TestSubmitStorageFailureFailsOnlyThatImage(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	objects := &fakeObjects{fail: map[string]error{
		"b.jpg": services.Wrap(services.ErrTransient, "storage", "put", "503", nil),
	}}
	coordinator := upload.NewCoordinator(store, objects, &fakeWaker{}, logging.NewNop())
	ctx := context.Background()

	_, err := coordinator.Submit(ctx, []upload.Input{
		{Name: "a.jpg", Data: []byte("aaa")},
		{Name: "b.jpg", Data: []byte("bbb")},
		{Name: "c.jpg", Data: []byte("ccc")},
	}, "warm tones")
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	b, err := store.Batch(ctx)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	statuses := make(map[string]batch.Status)
	for _, img := range b.Images {
		statuses[img.Name] = img.Status
	}
	if statuses["a.jpg"] != batch.StatusQueued || statuses["c.jpg"] != batch.StatusQueued {
		t.Fatalf("sibling images not queued: %v", statuses)
	}
	if statuses["b.jpg"] != batch.StatusFailed {
		t.Fatalf("failed upload status = %s, want failed", statuses["b.jpg"])
	}
	for _, img := range b.Images {
		if img.Name == "b.jpg" {
			if img.ErrorKind != services.KindTransient {
				t.Fatalf("error kind = %q", img.ErrorKind)
			}
		}
	}
}

func TestSubmitReplacesPriorBatch(t *testing.T) {
	store := testsupport.MustOpenStore(t, testsupport.NewConfig(t))
	coordinator := upload.NewCoordinator(store, &fakeObjects{}, &fakeWaker{}, logging.NewNop())
	ctx := context.Background()

	first, err := coordinator.Submit(ctx, []upload.Input{{Name: "a.jpg", Data: []byte("a")}}, "one")
	if err != nil {
		t.Fatalf("first Submit: %v", err)
	}
	second, err := coordinator.Submit(ctx, []upload.Input{{Name: "b.jpg", Data: []byte("b")}}, "two")
	if err != nil {
		t.Fatalf("second Submit: %v", err)
	}
	if first == second {
		t.Fatal("batch id reused")
	}

	active, err := store.ActiveBatchID(ctx)
	if err != nil {
		t.Fatalf("ActiveBatchID: %v", err)
	}
	if active != second {
		t.Fatalf("active = %s, want %s", active, second)
	}
}
