// Package retouch applies single-image follow-up instructions to completed
// images.
package retouch

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gloss/internal/batch"
	"gloss/internal/config"
	"gloss/internal/logging"
	"gloss/internal/services"
	"gloss/internal/services/ai"
)

// Controller runs one retouch at a time per image. The store's
// completed -> retouching transition is the lock: a second concurrent
// retouch of the same image observes Conflict.
type Controller struct {
	store          *batch.Store
	processor      ai.Processor
	logger         *slog.Logger
	requestTimeout time.Duration
}

// NewController constructs a retouch controller.
func NewController(cfg *config.Config, store *batch.Store, processor ai.Processor, logger *slog.Logger) *Controller {
	return &Controller{
		store:          store,
		processor:      processor,
		logger:         logging.NewComponentLogger(logger, "retouch"),
		requestTimeout: time.Duration(cfg.Processing.RequestTimeout) * time.Second,
	}
}

// Retouch applies one instruction to a completed image. On success the
// image carries the new processed reference and an appended history entry;
// on failure it returns to completed with reference and history untouched,
// and the error is surfaced to the caller rather than recorded on the
// image.
func (c *Controller) Retouch(ctx context.Context, imageID, instruction string) (*batch.ImageRecord, error) {
	instruction = strings.TrimSpace(instruction)
	if instruction == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "retouch", "apply", "instruction must not be empty", nil)
	}

	ctx = services.WithImageID(ctx, imageID)
	logger := logging.WithContext(ctx, c.logger)

	if err := c.store.BeginRetouch(ctx, imageID); err != nil {
		return nil, err
	}

	img, err := c.store.Image(ctx, imageID)
	if err != nil {
		c.release(ctx, imageID)
		return nil, err
	}
	if img == nil {
		return nil, services.Wrap(services.ErrNotFound, "retouch", "apply", "image "+imageID, nil)
	}

	logger.Info("retouching image", logging.String("instruction", instruction))

	newRef, err := c.callProcessor(ctx, img.ProcessedRef, instruction)
	if err != nil {
		c.release(ctx, imageID)
		logger.Warn("retouch failed",
			logging.String("error_kind", services.Kind(err)),
			logging.Error(err),
		)
		return nil, err
	}

	if err := c.store.FinishRetouch(ctx, imageID, instruction, newRef); err != nil {
		return nil, err
	}
	logger.Info("retouch applied")

	// A reset can delete the image between the finish and this read.
	img, err = c.store.Image(ctx, imageID)
	if err != nil {
		return nil, err
	}
	if img == nil {
		return nil, services.Wrap(services.ErrNotFound, "retouch", "apply", "image "+imageID, nil)
	}
	return img, nil
}

func (c *Controller) callProcessor(ctx context.Context, processedRef, instruction string) (string, error) {
	callCtx := ctx
	if c.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.requestTimeout)
		defer cancel()
	}
	return c.processor.Retouch(callCtx, processedRef, instruction)
}

func (c *Controller) release(ctx context.Context, imageID string) {
	if err := c.store.AbortRetouch(ctx, imageID); err != nil {
		logging.WithContext(ctx, c.logger).Error("failed to release retouch lock", logging.Error(err))
	}
}
