// Package export packages processed images for download or delivers them to
// an asset management target.
package export

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"gloss/internal/batch"
	"gloss/internal/config"
	"gloss/internal/logging"
	"gloss/internal/services"
	"gloss/internal/services/dam"
	"gloss/internal/services/storage"
	"gloss/internal/textutil"
)

// Connection describes one DAM export target. Zero fields fall back to the
// configured defaults.
type Connection struct {
	Provider         string
	TargetFolder     string
	SubfolderPattern string
	Visibility       string
	CredentialsRef   string
	AttachMetadata   bool
}

// Outcome labels one report entry.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Entry is one image's delivery result.
type Entry struct {
	ImageID      string
	Name         string
	Outcome      string
	RemoteRef    string
	ErrorKind    string
	ErrorMessage string
}

// Report lists every attempted delivery. Failed deliveries are entries, not
// errors; the export itself only fails when it cannot run at all.
type Report struct {
	BatchID   string
	Delivered int
	Failed    int
	Entries   []Entry
}

// Coordinator exports the completed subset of the active batch.
type Coordinator struct {
	cfg       *config.Config
	store     *batch.Store
	objects   storage.Store
	publisher dam.Publisher
	logger    *slog.Logger

	now func() time.Time
}

// NewCoordinator constructs an export coordinator.
func NewCoordinator(cfg *config.Config, store *batch.Store, objects storage.Store, publisher dam.Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		cfg:       cfg,
		store:     store,
		objects:   objects,
		publisher: publisher,
		logger:    logging.NewComponentLogger(logger, "export"),
		now:       time.Now,
	}
}

// exportSet returns the active batch and its completed images. Failed and
// in-flight images are excluded from the set, never treated as errors.
func (c *Coordinator) exportSet(ctx context.Context) (*batch.Batch, []*batch.ImageRecord, error) {
	b, err := c.store.Batch(ctx)
	if err != nil {
		return nil, nil, err
	}
	if b == nil {
		return nil, nil, services.Wrap(services.ErrNotFound, "export", "collect", "no active batch", nil)
	}
	var completed []*batch.ImageRecord
	for _, img := range b.Images {
		if img.Status == batch.StatusCompleted {
			completed = append(completed, img)
		}
	}
	if len(completed) == 0 {
		return nil, nil, services.Wrap(services.ErrInvalidState, "export", "collect", "no completed images to export", nil)
	}
	return b, completed, nil
}

// ExportDam delivers every completed image to the DAM target, fanning out
// so one failed delivery never blocks the rest. Image records are not
// mutated; outcomes live only in the report.
func (c *Coordinator) ExportDam(ctx context.Context, conn Connection) (*Report, error) {
	conn = c.withDefaults(conn)
	if err := validateConnection(conn); err != nil {
		return nil, err
	}

	b, completed, err := c.exportSet(ctx)
	if err != nil {
		return nil, err
	}
	ctx = services.WithBatchID(ctx, b.ID)

	report := &Report{BatchID: b.ID, Entries: make([]Entry, 0, len(completed))}
	for _, img := range completed {
		entry := c.deliverOne(ctx, b, img, conn)
		if entry.Outcome == OutcomeSuccess {
			report.Delivered++
		} else {
			report.Failed++
		}
		report.Entries = append(report.Entries, entry)
	}

	logging.WithContext(ctx, c.logger).Info("dam export finished",
		logging.Int("delivered", report.Delivered),
		logging.Int("failed", report.Failed),
	)
	return report, nil
}

func (c *Coordinator) deliverOne(ctx context.Context, b *batch.Batch, img *batch.ImageRecord, conn Connection) Entry {
	entry := Entry{ImageID: img.ID, Name: img.Name}

	var metadata map[string]string
	if conn.AttachMetadata {
		metadata = map[string]string{
			"batch_id":     b.ID,
			"instructions": b.Instructions,
		}
		if img.Name != "" {
			metadata["name"] = img.Name
		}
	}

	remoteRef, err := c.publisher.Publish(ctx, dam.PublishRequest{
		Ref:        img.ProcessedRef,
		TargetPath: targetPath(conn, b.ID, exportName(img), c.now()),
		Visibility: conn.Visibility,
		Metadata:   metadata,
	})
	if err != nil {
		entry.Outcome = OutcomeFailure
		entry.ErrorKind = services.Kind(err)
		entry.ErrorMessage = err.Error()
		logging.WithContext(services.WithImageID(ctx, img.ID), c.logger).Warn("dam delivery failed",
			logging.String("error_kind", entry.ErrorKind),
			logging.Error(err),
		)
		return entry
	}
	entry.Outcome = OutcomeSuccess
	entry.RemoteRef = remoteRef
	return entry
}

// withDefaults fills blank connection fields from the configured DAM
// section.
func (c *Coordinator) withDefaults(conn Connection) Connection {
	defaults := c.cfg.Dam
	if strings.TrimSpace(conn.Provider) == "" {
		conn.Provider = defaults.Provider
	}
	if strings.TrimSpace(conn.TargetFolder) == "" {
		conn.TargetFolder = defaults.TargetFolder
	}
	if strings.TrimSpace(conn.SubfolderPattern) == "" {
		conn.SubfolderPattern = defaults.SubfolderPattern
	}
	if strings.TrimSpace(conn.Visibility) == "" {
		conn.Visibility = defaults.Visibility
	}
	if strings.TrimSpace(conn.CredentialsRef) == "" {
		conn.CredentialsRef = defaults.CredentialsRef
	}
	return conn
}

func validateConnection(conn Connection) error {
	switch conn.SubfolderPattern {
	case PatternDate, PatternBatch, PatternLiteral:
	default:
		return services.Wrap(services.ErrInvalidInput, "export", "dam",
			"unknown subfolder pattern "+conn.SubfolderPattern, nil)
	}
	if conn.SubfolderPattern == PatternLiteral && strings.TrimSpace(conn.TargetFolder) == "" {
		return services.Wrap(services.ErrInvalidInput, "export", "dam",
			"literal pattern requires a target folder", nil)
	}
	return nil
}

// exportName is the sanitized filename an image travels under in archives
// and DAM paths.
func exportName(img *batch.ImageRecord) string {
	return textutil.SanitizeFileName(img.Name, img.ID+".jpg")
}
