package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"gloss/internal/services"
)

// NewImage describes one input to CreateBatch.
type NewImage struct {
	Name string
}

// CreateBatch replaces any existing batch with a new one holding one
// pending ImageRecord per input. The whole replacement commits in a single
// transaction.
func (s *Store) CreateBatch(ctx context.Context, images []NewImage, instructions string) (*Batch, error) {
	ctx = ensureContext(ctx)
	if len(images) == 0 {
		return nil, services.Wrap(services.ErrInvalidInput, "batch", "create", "at least one image is required", nil)
	}
	if strings.TrimSpace(instructions) == "" {
		return nil, services.Wrap(services.ErrInvalidInput, "batch", "create", "instructions must not be empty", nil)
	}

	batchID := uuid.NewString()
	now := timestamp(time.Now())

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin create batch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM batches`); err != nil {
		return nil, fmt.Errorf("replace prior batch: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO batches (id, instructions, summary, created_at) VALUES (?, ?, NULL, ?)`,
		batchID, strings.TrimSpace(instructions), now,
	); err != nil {
		return nil, fmt.Errorf("insert batch: %w", err)
	}

	for position, img := range images {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO images (id, batch_id, position, name, status, attempts, created_at, updated_at)
             VALUES (?, ?, ?, ?, ?, 0, ?, ?)`,
			uuid.NewString(), batchID, position, nullableString(strings.TrimSpace(img.Name)),
			StatusPending, now, now,
		); err != nil {
			return nil, fmt.Errorf("insert image %d: %w", position, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit create batch: %w", err)
	}

	s.notify(Change{BatchID: batchID})
	return s.Batch(ctx)
}

// Batch returns the active batch with its images and retouch history, or
// nil when no batch exists.
func (s *Store) Batch(ctx context.Context) (*Batch, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT id, instructions, summary, created_at FROM batches LIMIT 1`)

	var (
		b          Batch
		summary    sql.NullString
		createdRaw string
	)
	if err := row.Scan(&b.ID, &b.Instructions, &summary, &createdRaw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get batch: %w", err)
	}
	b.Summary = summary.String
	if created, err := parseTimeString(createdRaw); err == nil {
		b.CreatedAt = created
	}

	images, err := s.imagesForBatch(ctx, b.ID)
	if err != nil {
		return nil, err
	}
	b.Images = images
	return &b, nil
}

// ActiveBatchID returns the current batch identifier, or empty when none.
func (s *Store) ActiveBatchID(ctx context.Context) (string, error) {
	ctx = ensureContext(ctx)
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM batches LIMIT 1`).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("active batch id: %w", err)
	}
	return id, nil
}

// SetSummary stores user-editable free text on the active batch.
func (s *Store) SetSummary(ctx context.Context, text string) error {
	ctx = ensureContext(ctx)
	batchID, err := s.ActiveBatchID(ctx)
	if err != nil {
		return err
	}
	if batchID == "" {
		return services.Wrap(services.ErrNotFound, "batch", "set summary", "no active batch", nil)
	}
	if _, err := s.execWithRetry(ctx, `UPDATE batches SET summary = ? WHERE id = ?`, nullableString(text), batchID); err != nil {
		return fmt.Errorf("set summary: %w", err)
	}
	s.notify(Change{BatchID: batchID})
	return nil
}

// Reset discards the active batch and all of its images. Late-arriving
// results for the discarded batch id no longer match and are dropped by
// their dispatchers.
func (s *Store) Reset(ctx context.Context) error {
	ctx = ensureContext(ctx)
	batchID, err := s.ActiveBatchID(ctx)
	if err != nil {
		return err
	}
	if batchID == "" {
		return nil
	}
	if _, err := s.execWithRetry(ctx, `DELETE FROM batches`); err != nil {
		return fmt.Errorf("reset batch: %w", err)
	}
	s.notify(Change{BatchID: batchID})
	return nil
}
