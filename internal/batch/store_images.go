package batch

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gloss/internal/services"
)

const imageColumns = "id, batch_id, position, name, original_ref, processed_ref, status, error_kind, error_message, attempts, created_at, updated_at"

// Image fetches one image record (without history), or nil when absent.
func (s *Store) Image(ctx context.Context, imageID string) (*ImageRecord, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+imageColumns+` FROM images WHERE id = ?`, imageID)
	img, err := scanImage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get image: %w", err)
	}
	return img, nil
}

// ImagesByStatus returns the active batch's images matching a status,
// ordered by position.
func (s *Store) ImagesByStatus(ctx context.Context, status Status) ([]*ImageRecord, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images WHERE status = ? ORDER BY position`, status)
	if err != nil {
		return nil, fmt.Errorf("query by status: %w", err)
	}
	defer rows.Close()

	var images []*ImageRecord
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
	}
	return images, rows.Err()
}

// Transition performs a compare-and-swap status change. The caller's `from`
// expectation acts as the per-image lock: when the row has moved on, the
// call fails with Conflict instead of clobbering a concurrent writer.
func (s *Store) Transition(ctx context.Context, imageID string, from, to Status) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		to, timestamp(time.Now()), imageID, from,
	)
	if err != nil {
		return fmt.Errorf("transition image: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.casFailure(ctx, imageID, from)
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// SetOriginal records the storage reference obtained for an image's source
// pixels.
func (s *Store) SetOriginal(ctx context.Context, imageID, ref string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET original_ref = ?, updated_at = ? WHERE id = ?`,
		ref, timestamp(time.Now()), imageID,
	)
	if err != nil {
		return fmt.Errorf("set original ref: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return services.Wrap(services.ErrNotFound, "batch", "set original", fmt.Sprintf("image %s", imageID), nil)
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// MarkProcessing claims a queued image for the worker pool. The CAS ensures
// an image is never double-submitted.
func (s *Store) MarkProcessing(ctx context.Context, imageID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET status = ?, attempts = attempts + 1, error_kind = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusProcessing, timestamp(time.Now()), imageID, StatusQueued,
	)
	if err != nil {
		return fmt.Errorf("mark processing: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.casFailure(ctx, imageID, StatusQueued)
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// BumpAttempts records one additional processing attempt for an in-flight
// image.
func (s *Store) BumpAttempts(ctx context.Context, imageID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET attempts = attempts + 1, updated_at = ? WHERE id = ? AND status = ?`,
		timestamp(time.Now()), imageID, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("bump attempts: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.casFailure(ctx, imageID, StatusProcessing)
	}
	return nil
}

// MarkCompleted finishes processing with the produced reference.
func (s *Store) MarkCompleted(ctx context.Context, imageID, processedRef string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET status = ?, processed_ref = ?, error_kind = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusCompleted, processedRef, timestamp(time.Now()), imageID, StatusProcessing,
	)
	if err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.casFailure(ctx, imageID, StatusProcessing)
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// MarkFailed records a classified failure. The processed_ref column is left
// untouched: a later stage failing never erases earlier successful output.
func (s *Store) MarkFailed(ctx context.Context, imageID string, from Status, kind, message string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
         WHERE id = ? AND status = ?`,
		StatusFailed, nullableString(kind), nullableString(message), timestamp(time.Now()), imageID, from,
	)
	if err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.casFailure(ctx, imageID, from)
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// Requeue returns one failed image to the queue for a fresh run, resetting
// its attempt budget. Sibling images and batch metadata are untouched. Only
// images with a stored original qualify; one that failed during upload has
// nothing to reprocess and needs a fresh submit.
func (s *Store) Requeue(ctx context.Context, imageID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET status = ?, attempts = 0, error_kind = NULL, error_message = NULL, updated_at = ?
         WHERE id = ? AND status = ? AND original_ref IS NOT NULL`,
		StatusQueued, timestamp(time.Now()), imageID, StatusFailed,
	)
	if err != nil {
		return fmt.Errorf("requeue image: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		img, lookupErr := s.Image(ctx, imageID)
		if lookupErr != nil {
			return lookupErr
		}
		switch {
		case img == nil:
			return services.Wrap(services.ErrNotFound, "batch", "requeue", fmt.Sprintf("image %s", imageID), nil)
		case img.Status != StatusFailed:
			return services.Wrap(services.ErrConflict, "batch", "requeue",
				fmt.Sprintf("image %s is %s, expected %s", imageID, img.Status, StatusFailed), nil)
		default:
			return services.Wrap(services.ErrInvalidState, "batch", "requeue",
				fmt.Sprintf("image %s has no stored original; resubmit the batch", imageID), nil)
		}
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// BeginRetouch acquires the per-image retouch lock. Only a completed image
// with a processed reference qualifies; a concurrent retouch observes
// Conflict, any other state InvalidState.
func (s *Store) BeginRetouch(ctx context.Context, imageID string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE images SET status = ?, updated_at = ?
         WHERE id = ? AND status = ? AND processed_ref IS NOT NULL`,
		StatusRetouching, timestamp(time.Now()), imageID, StatusCompleted,
	)
	if err != nil {
		return fmt.Errorf("begin retouch: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		img, lookupErr := s.Image(ctx, imageID)
		if lookupErr != nil {
			return lookupErr
		}
		switch {
		case img == nil:
			return services.Wrap(services.ErrNotFound, "batch", "retouch", fmt.Sprintf("image %s", imageID), nil)
		case img.Status == StatusRetouching:
			return services.Wrap(services.ErrConflict, "batch", "retouch", fmt.Sprintf("image %s already retouching", imageID), nil)
		default:
			return services.Wrap(services.ErrInvalidState, "batch", "retouch", fmt.Sprintf("image %s is %s, expected %s", imageID, img.Status, StatusCompleted), nil)
		}
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// FinishRetouch releases the retouch lock with a new processed reference and
// appends the applied instruction to the image's history in the same
// transaction.
func (s *Store) FinishRetouch(ctx context.Context, imageID, instruction, newRef string) error {
	ctx = ensureContext(ctx)
	now := time.Now()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin finish retouch: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE images SET status = ?, processed_ref = ?, updated_at = ? WHERE id = ? AND status = ?`,
		StatusCompleted, newRef, timestamp(now), imageID, StatusRetouching,
	)
	if err != nil {
		return fmt.Errorf("finish retouch: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return s.casFailure(ctx, imageID, StatusRetouching)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO retouch_history (image_id, seq, instruction, processed_ref, applied_at)
         SELECT ?, COALESCE(MAX(seq), 0) + 1, ?, ?, ? FROM retouch_history WHERE image_id = ?`,
		imageID, instruction, newRef, timestamp(now), imageID,
	); err != nil {
		return fmt.Errorf("append retouch history: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit finish retouch: %w", err)
	}
	s.notifyImage(ctx, imageID)
	return nil
}

// AbortRetouch releases the retouch lock leaving the prior processed
// reference and history untouched.
func (s *Store) AbortRetouch(ctx context.Context, imageID string) error {
	return s.Transition(ctx, imageID, StatusRetouching, StatusCompleted)
}

func (s *Store) casFailure(ctx context.Context, imageID string, expected Status) error {
	img, err := s.Image(ctx, imageID)
	if err != nil {
		return err
	}
	if img == nil {
		return services.Wrap(services.ErrNotFound, "batch", "update", fmt.Sprintf("image %s", imageID), nil)
	}
	return services.Wrap(services.ErrConflict, "batch", "update",
		fmt.Sprintf("image %s is %s, expected %s", imageID, img.Status, expected), nil)
}

func (s *Store) notifyImage(ctx context.Context, imageID string) {
	batchID, err := s.ActiveBatchID(ctx)
	if err != nil {
		batchID = ""
	}
	s.notify(Change{BatchID: batchID, ImageID: imageID})
}

func (s *Store) imagesForBatch(ctx context.Context, batchID string) ([]*ImageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+imageColumns+` FROM images WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	var images []*ImageRecord
	byID := make(map[string]*ImageRecord)
	for rows.Next() {
		img, err := scanImage(rows)
		if err != nil {
			return nil, err
		}
		images = append(images, img)
		byID[img.ID] = img
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	histRows, err := s.db.QueryContext(ctx,
		`SELECT h.image_id, h.seq, h.instruction, h.processed_ref, h.applied_at
         FROM retouch_history h JOIN images i ON i.id = h.image_id
         WHERE i.batch_id = ? ORDER BY h.image_id, h.seq`, batchID)
	if err != nil {
		return nil, fmt.Errorf("list retouch history: %w", err)
	}
	defer histRows.Close()

	for histRows.Next() {
		var (
			imageID    string
			entry      RetouchEntry
			appliedRaw string
		)
		if err := histRows.Scan(&imageID, &entry.Seq, &entry.Instruction, &entry.ProcessedRef, &appliedRaw); err != nil {
			return nil, err
		}
		if applied, err := parseTimeString(appliedRaw); err == nil {
			entry.AppliedAt = applied
		}
		if img, ok := byID[imageID]; ok {
			img.History = append(img.History, entry)
		}
	}
	return images, histRows.Err()
}

func scanImage(scanner interface{ Scan(dest ...any) error }) (*ImageRecord, error) {
	var (
		img          ImageRecord
		name         sql.NullString
		originalRef  sql.NullString
		processedRef sql.NullString
		statusStr    string
		errorKind    sql.NullString
		errorMessage sql.NullString
		createdRaw   string
		updatedRaw   string
	)

	if err := scanner.Scan(
		&img.ID,
		&img.BatchID,
		&img.Position,
		&name,
		&originalRef,
		&processedRef,
		&statusStr,
		&errorKind,
		&errorMessage,
		&img.Attempts,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}

	img.Name = name.String
	img.OriginalRef = originalRef.String
	img.ProcessedRef = processedRef.String
	img.Status = Status(statusStr)
	img.ErrorKind = errorKind.String
	img.ErrorMessage = errorMessage.String
	if created, err := parseTimeString(createdRaw); err == nil {
		img.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw); err == nil {
		img.UpdatedAt = updated
	}
	return &img, nil
}
