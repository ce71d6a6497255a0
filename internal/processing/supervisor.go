// Package processing drives queued images through the AI service with a
// bounded worker pool.
package processing

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"gloss/internal/batch"
	"gloss/internal/config"
	"gloss/internal/logging"
	"gloss/internal/services"
	"gloss/internal/services/ai"
)

// Supervisor owns the worker pool that turns queued images into completed
// or failed ones. Claims go through the store's compare-and-swap
// transitions, so the pool size bound and the no-double-submission rule
// both reduce to "a claim either wins the CAS or drops the image".
type Supervisor struct {
	cfg       *config.Config
	store     *batch.Store
	processor ai.Processor
	logger    *slog.Logger

	poolSize       int
	maxAttempts    int
	pollInterval   time.Duration
	requestTimeout time.Duration
	retryInitial   time.Duration
	retryMax       time.Duration

	wake    chan struct{}
	results chan result

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// result carries one worker outcome back to the dispatcher. The batch id
// tag is what makes reset cancellation work: results for a discarded batch
// no longer match the active id and are dropped.
type result struct {
	batchID      string
	imageID      string
	processedRef string
	err          error
}

// NewSupervisor constructs a supervisor over the given store and processor.
func NewSupervisor(cfg *config.Config, store *batch.Store, processor ai.Processor, logger *slog.Logger) *Supervisor {
	poolSize := cfg.Processing.PoolSize
	if poolSize < 1 {
		poolSize = 1
	}
	maxAttempts := cfg.Processing.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	pollInterval := time.Duration(cfg.Processing.PollInterval) * time.Second
	if pollInterval <= 0 {
		pollInterval = time.Second
	}
	return &Supervisor{
		cfg:            cfg,
		store:          store,
		processor:      processor,
		logger:         logging.NewComponentLogger(logger, "processing"),
		poolSize:       poolSize,
		maxAttempts:    maxAttempts,
		pollInterval:   pollInterval,
		requestTimeout: time.Duration(cfg.Processing.RequestTimeout) * time.Second,
		retryInitial:   time.Duration(cfg.Processing.RetryInitialSeconds) * time.Second,
		retryMax:       time.Duration(cfg.Processing.RetryMaxSeconds) * time.Second,
		wake:           make(chan struct{}, 1),
		results:        make(chan result, poolSize),
	}
}

// Kick nudges the dispatcher to look for queued work immediately instead of
// waiting for the next poll tick.
func (s *Supervisor) Kick() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// Requeue returns one failed image to the queue and wakes the pool.
func (s *Supervisor) Requeue(ctx context.Context, imageID string) error {
	ctx = services.WithImageID(ctx, imageID)
	if err := s.store.Requeue(ctx, imageID); err != nil {
		return err
	}
	logging.WithContext(ctx, s.logger).Info("image requeued")
	s.Kick()
	return nil
}

// Progress reads the current completion state. Each call is a fresh store
// read; callers poll this for UI updates.
func (s *Supervisor) Progress(ctx context.Context) (*batch.Progress, error) {
	return s.store.Progress(ctx)
}

// Snapshot reads the full active batch.
func (s *Supervisor) Snapshot(ctx context.Context) (*batch.Batch, error) {
	return s.store.Batch(ctx)
}
