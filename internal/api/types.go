// Package api defines the JSON contracts shared by the daemon's HTTP
// surface and the CLI client.
package api

import "time"

// ImageInput is one raw image in a submit request. Data travels base64
// encoded in JSON.
type ImageInput struct {
	Name string `json:"name,omitempty"`
	Data []byte `json:"data"`
}

// SubmitRequest creates a new batch, replacing any prior one.
type SubmitRequest struct {
	Images       []ImageInput `json:"images"`
	Instructions string       `json:"instructions"`
}

// SubmitResponse carries the id of the created batch.
type SubmitResponse struct {
	BatchID string `json:"batch_id"`
}

// RetouchEntry is one applied retouch instruction.
type RetouchEntry struct {
	Seq          int       `json:"seq"`
	Instruction  string    `json:"instruction"`
	ProcessedRef string    `json:"processed_ref"`
	AppliedAt    time.Time `json:"applied_at"`
}

// Image is the read model of one image record.
type Image struct {
	ID           string         `json:"id"`
	Name         string         `json:"name,omitempty"`
	Status       string         `json:"status"`
	OriginalRef  string         `json:"original_ref,omitempty"`
	ProcessedRef string         `json:"processed_ref,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	ErrorMessage string         `json:"error_message,omitempty"`
	Attempts     int            `json:"attempts"`
	History      []RetouchEntry `json:"history,omitempty"`
}

// Batch is the read model of the active batch.
type Batch struct {
	ID           string    `json:"id"`
	Instructions string    `json:"instructions"`
	Summary      string    `json:"summary,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	Terminal     bool      `json:"terminal"`
	Images       []Image   `json:"images"`
}

// BatchResponse wraps the active batch; Batch is null when none exists.
type BatchResponse struct {
	Batch *Batch `json:"batch"`
}

// Progress is the completion read model for polling UIs.
type Progress struct {
	BatchID   string            `json:"batch_id"`
	Completed int               `json:"completed"`
	Failed    int               `json:"failed"`
	Total     int               `json:"total"`
	Percent   float64           `json:"percent"`
	Terminal  bool              `json:"terminal"`
	PerImage  map[string]string `json:"per_image"`
}

// ProgressResponse wraps progress; Progress is null when no batch exists.
type ProgressResponse struct {
	Progress *Progress `json:"progress"`
}

// SummaryRequest replaces the batch summary text.
type SummaryRequest struct {
	Summary string `json:"summary"`
}

// RetouchRequest applies one instruction to a completed image.
type RetouchRequest struct {
	Instruction string `json:"instruction"`
}

// RetouchResponse returns the image after a successful retouch.
type RetouchResponse struct {
	Image Image `json:"image"`
}

// DamConnection overrides the configured DAM target per export. Zero
// fields fall back to configuration.
type DamConnection struct {
	Provider         string `json:"provider,omitempty"`
	TargetFolder     string `json:"target_folder,omitempty"`
	SubfolderPattern string `json:"subfolder_pattern,omitempty"`
	Visibility       string `json:"visibility,omitempty"`
	CredentialsRef   string `json:"credentials_ref,omitempty"`
	AttachMetadata   bool   `json:"attach_metadata,omitempty"`
}

// ExportDamRequest starts a DAM export.
type ExportDamRequest struct {
	Connection DamConnection `json:"connection"`
}

// ExportEntry is one image's delivery outcome.
type ExportEntry struct {
	ImageID      string `json:"image_id"`
	Name         string `json:"name,omitempty"`
	Outcome      string `json:"outcome"`
	RemoteRef    string `json:"remote_ref,omitempty"`
	ErrorKind    string `json:"error_kind,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// ExportReport lists every attempted delivery.
type ExportReport struct {
	BatchID   string        `json:"batch_id"`
	Delivered int           `json:"delivered"`
	Failed    int           `json:"failed"`
	Entries   []ExportEntry `json:"entries"`
}

// ExportDamResponse wraps the delivery report.
type ExportDamResponse struct {
	Report ExportReport `json:"report"`
}

// ExportArchiveResponse carries the path of the written archive.
type ExportArchiveResponse struct {
	ArchivePath string `json:"archive_path"`
}

// DaemonStatus reports daemon health.
type DaemonStatus struct {
	Running      bool   `json:"running"`
	PID          int    `json:"pid"`
	SessionDB    string `json:"session_db"`
	LockFilePath string `json:"lock_file_path"`
	ActiveBatch  string `json:"active_batch,omitempty"`
}

// ErrorResponse is the uniform error body. Kind carries the taxonomy name
// so clients can branch without parsing messages.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}
