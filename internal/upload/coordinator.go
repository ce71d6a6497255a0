// Package upload accepts raw image inputs and turns them into a queued
// batch.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"

	"gloss/internal/batch"
	"gloss/internal/logging"
	"gloss/internal/services"
	"gloss/internal/services/storage"
)

// Input is one raw image handed to Submit.
type Input struct {
	Name string
	Data []byte
}

// Waker nudges the processing pool after new work arrives.
type Waker interface {
	Kick()
}

// Coordinator creates batches: it validates inputs, stores original bytes,
// and walks each image from pending through uploading to queued.
type Coordinator struct {
	store   *batch.Store
	objects storage.Store
	waker   Waker
	logger  *slog.Logger
}

// NewCoordinator constructs an upload coordinator.
func NewCoordinator(store *batch.Store, objects storage.Store, waker Waker, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		store:   store,
		objects: objects,
		waker:   waker,
		logger:  logging.NewComponentLogger(logger, "upload"),
	}
}

// Submit validates the inputs, replaces any prior batch with a new one, and
// queues every image for processing. Validation failures return before any
// store mutation. A storage failure for one image fails that image alone;
// its siblings still queue.
func (c *Coordinator) Submit(ctx context.Context, inputs []Input, instructions string) (string, error) {
	if len(inputs) == 0 {
		return "", services.Wrap(services.ErrInvalidInput, "upload", "submit", "at least one image is required", nil)
	}
	if strings.TrimSpace(instructions) == "" {
		return "", services.Wrap(services.ErrInvalidInput, "upload", "submit", "instructions must not be empty", nil)
	}
	for i, input := range inputs {
		if len(input.Data) == 0 {
			return "", services.Wrap(services.ErrInvalidInput, "upload", "submit",
				fmt.Sprintf("image %d has no data", i), nil)
		}
	}

	records := make([]batch.NewImage, len(inputs))
	for i, input := range inputs {
		records[i] = batch.NewImage{Name: input.Name}
	}

	b, err := c.store.CreateBatch(ctx, records, instructions)
	if err != nil {
		return "", err
	}
	ctx = services.WithBatchID(ctx, b.ID)
	logging.WithContext(ctx, c.logger).Info("batch created", logging.Int("images", len(inputs)))

	for i, img := range b.Images {
		c.uploadOne(ctx, img.ID, inputs[i])
	}

	if c.waker != nil {
		c.waker.Kick()
	}
	return b.ID, nil
}

// uploadOne moves a single image pending -> uploading -> queued. Failures
// land the image in failed without touching siblings.
func (c *Coordinator) uploadOne(ctx context.Context, imageID string, input Input) {
	ctx = services.WithImageID(ctx, imageID)
	logger := logging.WithContext(ctx, c.logger)

	if err := c.store.Transition(ctx, imageID, batch.StatusPending, batch.StatusUploading); err != nil {
		logger.Warn("failed to start upload", logging.Error(err))
		return
	}

	ref, err := c.objects.PutOriginal(ctx, input.Name, bytes.NewReader(input.Data))
	if err != nil {
		kind := services.Kind(err)
		if failErr := c.store.MarkFailed(ctx, imageID, batch.StatusUploading, kind, err.Error()); failErr != nil {
			logger.Error("failed to record upload failure", logging.Error(failErr))
			return
		}
		logger.Warn("image upload failed",
			logging.String("error_kind", kind),
			logging.Error(err),
		)
		return
	}

	if err := c.store.SetOriginal(ctx, imageID, ref); err != nil {
		logger.Error("failed to record original ref", logging.Error(err))
		return
	}
	if err := c.store.Transition(ctx, imageID, batch.StatusUploading, batch.StatusQueued); err != nil {
		logger.Warn("failed to queue image", logging.Error(err))
	}
}
