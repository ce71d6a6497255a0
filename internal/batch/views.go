package batch

import (
	"context"
	"fmt"
)

// CountsByStatus tallies the active batch's images per status.
func (s *Store) CountsByStatus(ctx context.Context) (map[Status]int, error) {
	ctx = ensureContext(ctx)
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(1) FROM images GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var (
			statusStr string
			count     int
		)
		if err := rows.Scan(&statusStr, &count); err != nil {
			return nil, err
		}
		counts[Status(statusStr)] = count
	}
	return counts, rows.Err()
}

// Progress builds a completion read model for the active batch, or nil when
// no batch exists.
func (s *Store) Progress(ctx context.Context) (*Progress, error) {
	ctx = ensureContext(ctx)
	batchID, err := s.ActiveBatchID(ctx)
	if err != nil {
		return nil, err
	}
	if batchID == "" {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, status FROM images WHERE batch_id = ? ORDER BY position`, batchID)
	if err != nil {
		return nil, fmt.Errorf("progress query: %w", err)
	}
	defer rows.Close()

	progress := &Progress{BatchID: batchID, PerImage: make(map[string]Status)}
	for rows.Next() {
		var (
			imageID   string
			statusStr string
		)
		if err := rows.Scan(&imageID, &statusStr); err != nil {
			return nil, err
		}
		status := Status(statusStr)
		progress.PerImage[imageID] = status
		progress.Total++
		switch status {
		case StatusCompleted:
			progress.Completed++
		case StatusFailed:
			progress.Failed++
		}
	}
	return progress, rows.Err()
}
