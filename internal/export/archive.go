package export

import (
	"archive/zip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gloss/internal/batch"
	"gloss/internal/logging"
	"gloss/internal/services"
)

type manifest struct {
	BatchID      string          `json:"batch_id"`
	Instructions string          `json:"instructions"`
	CreatedAt    string          `json:"created_at"`
	Images       []manifestImage `json:"images"`
}

type manifestImage struct {
	ID           string `json:"id"`
	Name         string `json:"name,omitempty"`
	ProcessedRef string `json:"processed_ref"`
	Retouches    int    `json:"retouches"`
}

// ExportArchive packages every completed image plus the batch summary into
// a zip under the archive dir and returns its path. Image state is not
// mutated.
func (c *Coordinator) ExportArchive(ctx context.Context) (string, error) {
	b, completed, err := c.exportSet(ctx)
	if err != nil {
		return "", err
	}
	ctx = services.WithBatchID(ctx, b.ID)

	if err := os.MkdirAll(c.cfg.Paths.ArchiveDir, 0o755); err != nil {
		return "", services.Wrap(services.ErrPermanent, "export", "archive", "create archive dir", err)
	}
	archivePath := filepath.Join(c.cfg.Paths.ArchiveDir,
		fmt.Sprintf("gloss-%s-%s.zip", shortID(b.ID), c.now().UTC().Format("20060102-150405")))

	f, err := os.Create(archivePath)
	if err != nil {
		return "", services.Wrap(services.ErrPermanent, "export", "archive", "create archive file", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := c.writeArchive(ctx, zw, b, completed); err != nil {
		zw.Close()
		os.Remove(archivePath)
		return "", err
	}
	if err := zw.Close(); err != nil {
		os.Remove(archivePath)
		return "", services.Wrap(services.ErrPermanent, "export", "archive", "finalize archive", err)
	}

	logging.WithContext(ctx, c.logger).Info("archive written",
		logging.String("path", archivePath),
		logging.Int("images", len(completed)),
	)
	return archivePath, nil
}

func (c *Coordinator) writeArchive(ctx context.Context, zw *zip.Writer, b *batch.Batch, completed []*batch.ImageRecord) error {
	man := manifest{
		BatchID:      b.ID,
		Instructions: b.Instructions,
		CreatedAt:    b.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}

	seen := make(map[string]int)
	for _, img := range completed {
		name := uniqueName(seen, exportName(img))
		if err := c.writeImage(ctx, zw, "images/"+name, img.ProcessedRef); err != nil {
			return err
		}
		man.Images = append(man.Images, manifestImage{
			ID:           img.ID,
			Name:         img.Name,
			ProcessedRef: img.ProcessedRef,
			Retouches:    len(img.History),
		})
	}

	manifestEntry, err := zw.Create("manifest.json")
	if err != nil {
		return services.Wrap(services.ErrPermanent, "export", "archive", "create manifest entry", err)
	}
	encoder := json.NewEncoder(manifestEntry)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(man); err != nil {
		return services.Wrap(services.ErrPermanent, "export", "archive", "encode manifest", err)
	}

	if b.Summary != "" {
		summaryEntry, err := zw.Create("summary.txt")
		if err != nil {
			return services.Wrap(services.ErrPermanent, "export", "archive", "create summary entry", err)
		}
		if _, err := io.WriteString(summaryEntry, b.Summary+"\n"); err != nil {
			return services.Wrap(services.ErrPermanent, "export", "archive", "write summary", err)
		}
	}
	return nil
}

func (c *Coordinator) writeImage(ctx context.Context, zw *zip.Writer, entryName, ref string) error {
	payload, err := c.objects.Fetch(ctx, ref)
	if err != nil {
		return err
	}
	defer payload.Close()

	entry, err := zw.Create(entryName)
	if err != nil {
		return services.Wrap(services.ErrPermanent, "export", "archive", "create entry "+entryName, err)
	}
	if _, err := io.Copy(entry, payload); err != nil {
		return services.Wrap(services.ErrTransient, "export", "archive", "copy "+ref, err)
	}
	return nil
}

func uniqueName(seen map[string]int, name string) string {
	seen[name]++
	if seen[name] == 1 {
		return name
	}
	ext := filepath.Ext(name)
	base := name[:len(name)-len(ext)]
	return fmt.Sprintf("%s-%d%s", base, seen[name], ext)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
