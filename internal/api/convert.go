package api

import (
	"gloss/internal/batch"
	"gloss/internal/export"
)

// FromBatch converts a store batch into its API read model.
func FromBatch(b *batch.Batch) *Batch {
	if b == nil {
		return nil
	}
	out := &Batch{
		ID:           b.ID,
		Instructions: b.Instructions,
		Summary:      b.Summary,
		CreatedAt:    b.CreatedAt,
		Terminal:     b.Terminal(),
		Images:       make([]Image, 0, len(b.Images)),
	}
	for _, img := range b.Images {
		out.Images = append(out.Images, FromImage(img))
	}
	return out
}

// FromImage converts one image record.
func FromImage(img *batch.ImageRecord) Image {
	out := Image{
		ID:           img.ID,
		Name:         img.Name,
		Status:       string(img.Status),
		OriginalRef:  img.OriginalRef,
		ProcessedRef: img.ProcessedRef,
		ErrorKind:    img.ErrorKind,
		ErrorMessage: img.ErrorMessage,
		Attempts:     img.Attempts,
	}
	for _, entry := range img.History {
		out.History = append(out.History, RetouchEntry{
			Seq:          entry.Seq,
			Instruction:  entry.Instruction,
			ProcessedRef: entry.ProcessedRef,
			AppliedAt:    entry.AppliedAt,
		})
	}
	return out
}

// FromProgress converts the progress read model.
func FromProgress(p *batch.Progress) *Progress {
	if p == nil {
		return nil
	}
	out := &Progress{
		BatchID:   p.BatchID,
		Completed: p.Completed,
		Failed:    p.Failed,
		Total:     p.Total,
		Percent:   p.Percent(),
		Terminal:  p.Terminal(),
		PerImage:  make(map[string]string, len(p.PerImage)),
	}
	for id, status := range p.PerImage {
		out.PerImage[id] = string(status)
	}
	return out
}

// FromReport converts a DAM delivery report.
func FromReport(report *export.Report) ExportReport {
	out := ExportReport{
		BatchID:   report.BatchID,
		Delivered: report.Delivered,
		Failed:    report.Failed,
		Entries:   make([]ExportEntry, 0, len(report.Entries)),
	}
	for _, entry := range report.Entries {
		out.Entries = append(out.Entries, ExportEntry{
			ImageID:      entry.ImageID,
			Name:         entry.Name,
			Outcome:      entry.Outcome,
			RemoteRef:    entry.RemoteRef,
			ErrorKind:    entry.ErrorKind,
			ErrorMessage: entry.ErrorMessage,
		})
	}
	return out
}

// ToConnection converts an API connection override into the export type.
func ToConnection(conn DamConnection) export.Connection {
	return export.Connection{
		Provider:         conn.Provider,
		TargetFolder:     conn.TargetFolder,
		SubfolderPattern: conn.SubfolderPattern,
		Visibility:       conn.Visibility,
		CredentialsRef:   conn.CredentialsRef,
		AttachMetadata:   conn.AttachMetadata,
	}
}
