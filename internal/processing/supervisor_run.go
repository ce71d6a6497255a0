package processing

import (
	"context"
	"errors"
	"time"

	"gloss/internal/batch"
	"gloss/internal/logging"
	"gloss/internal/services"
)

// Start begins background processing.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return errors.New("processing already running")
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true
	s.wg.Add(1)
	s.mu.Unlock()

	if err := s.reclaimInFlight(runCtx); err != nil {
		s.logger.Warn("reclaim in-flight images failed; stuck images may remain",
			logging.Error(err),
			logging.String(logging.FieldEventType, "reclaim_failed"),
		)
	}

	go s.run(runCtx)
	return nil
}

// Stop terminates background processing and waits for workers to finish.
// Results not yet applied when the context ends are lost; the next Start
// reclaims their images back to queued.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	s.running = false
	s.cancel = nil
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
}

// reclaimInFlight returns images stranded in processing by a previous run
// to the queue.
func (s *Supervisor) reclaimInFlight(ctx context.Context) error {
	stranded, err := s.store.ImagesByStatus(ctx, batch.StatusProcessing)
	if err != nil {
		return err
	}
	for _, img := range stranded {
		if err := s.store.Transition(ctx, img.ID, batch.StatusProcessing, batch.StatusQueued); err != nil {
			return err
		}
		s.logger.Info("reclaimed stranded image",
			logging.String(logging.FieldImageID, img.ID),
			logging.String(logging.FieldBatchID, img.BatchID),
		)
	}
	return nil
}

func (s *Supervisor) run(ctx context.Context) {
	defer s.wg.Done()

	slots := make(chan struct{}, s.poolSize)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	s.dispatch(ctx, slots)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.dispatch(ctx, slots)
		case <-s.wake:
			s.dispatch(ctx, slots)
		case res := <-s.results:
			s.apply(ctx, res)
			s.dispatch(ctx, slots)
		}
	}
}

// dispatch claims queued images while pool slots remain.
func (s *Supervisor) dispatch(ctx context.Context, slots chan struct{}) {
	b, err := s.store.Batch(ctx)
	if err != nil {
		s.logger.Error("failed to read batch for dispatch",
			logging.Error(err),
			logging.String(logging.FieldEventType, "dispatch_failed"),
		)
		return
	}
	if b == nil {
		return
	}

	for _, img := range b.Images {
		if img.Status != batch.StatusQueued {
			continue
		}
		select {
		case slots <- struct{}{}:
		default:
			return
		}
		if err := s.store.MarkProcessing(ctx, img.ID); err != nil {
			<-slots
			if errors.Is(err, services.ErrConflict) || errors.Is(err, services.ErrNotFound) {
				continue
			}
			s.logger.Error("failed to claim image",
				logging.String(logging.FieldImageID, img.ID),
				logging.Error(err),
			)
			continue
		}
		workCtx := services.WithImageID(services.WithBatchID(ctx, b.ID), img.ID)
		logging.WithContext(workCtx, s.logger).Info("processing image")
		s.wg.Add(1)
		go s.work(workCtx, slots, b.ID, b.Instructions, img)
	}
}

// work runs one image to a final outcome, retrying transient failures in
// place. The image keeps its processing status (and its pool slot) across
// retries, so a retried image can never be claimed twice.
func (s *Supervisor) work(ctx context.Context, slots chan struct{}, batchID, instructions string, img *batch.ImageRecord) {
	defer s.wg.Done()
	defer func() { <-slots }()

	logger := logging.WithContext(ctx, s.logger)
	delay := s.retryInitial
	var lastErr error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		ref, err := s.processOnce(ctx, img.OriginalRef, instructions)
		if err == nil {
			s.deliver(ctx, result{batchID: batchID, imageID: img.ID, processedRef: ref})
			return
		}
		lastErr = err
		if !services.Retryable(err) {
			break
		}
		if attempt == s.maxAttempts {
			break
		}
		logger.Warn("processing attempt failed; retrying",
			logging.Int("attempt", attempt),
			logging.Duration("backoff", delay),
			logging.Error(err),
		)
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
		if delay *= 2; delay > s.retryMax {
			delay = s.retryMax
		}
		if err := s.store.BumpAttempts(ctx, img.ID); err != nil {
			// The image moved under us, most likely a reset. Stop retrying.
			return
		}
	}
	s.deliver(ctx, result{batchID: batchID, imageID: img.ID, err: lastErr})
}

func (s *Supervisor) processOnce(ctx context.Context, originalRef, instructions string) (string, error) {
	callCtx := ctx
	if s.requestTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.requestTimeout)
		defer cancel()
	}
	return s.processor.Process(callCtx, originalRef, instructions)
}

func (s *Supervisor) deliver(ctx context.Context, res result) {
	select {
	case s.results <- res:
	case <-ctx.Done():
	}
}

// apply records one worker outcome, dropping results whose batch tag no
// longer matches the active batch.
func (s *Supervisor) apply(ctx context.Context, res result) {
	ctx = services.WithImageID(services.WithBatchID(ctx, res.batchID), res.imageID)
	logger := logging.WithContext(ctx, s.logger)

	active, err := s.store.ActiveBatchID(ctx)
	if err != nil {
		logger.Error("failed to read active batch", logging.Error(err))
		return
	}
	if active != res.batchID {
		logger.Info("dropping result for discarded batch",
			logging.String(logging.FieldEventType, "stale_result_dropped"),
		)
		return
	}

	if res.err == nil {
		if err := s.store.MarkCompleted(ctx, res.imageID, res.processedRef); err != nil {
			logger.Warn("failed to record completion", logging.Error(err))
			return
		}
		logger.Info("image completed")
	} else {
		kind := services.Kind(res.err)
		if err := s.store.MarkFailed(ctx, res.imageID, batch.StatusProcessing, kind, res.err.Error()); err != nil {
			logger.Warn("failed to record failure", logging.Error(err))
			return
		}
		logger.Warn("image failed",
			logging.String("error_kind", kind),
			logging.Error(res.err),
		)
	}

	progress, err := s.store.Progress(ctx)
	if err == nil && progress != nil && progress.Terminal() {
		logger.Info("batch finished",
			logging.Int("completed", progress.Completed),
			logging.Int("failed", progress.Failed),
		)
	}
}
