package batch

import (
	"strings"
	"time"
)

// Status represents the lifecycle of an image record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusUploading  Status = "uploading"
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusRetouching Status = "retouching"
)

var allStatuses = []Status{
	StatusPending,
	StatusUploading,
	StatusQueued,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
	StatusRetouching,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// inFlightStatuses double as per-image locks: an image in one of these
// states rejects a second concurrent operation.
var inFlightStatuses = map[Status]struct{}{
	StatusUploading:  {},
	StatusProcessing: {},
	StatusRetouching: {},
}

var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
}

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsInFlight reports whether a status reflects an in-flight operation.
func IsInFlight(status Status) bool {
	_, ok := inFlightStatuses[status]
	return ok
}

// IsTerminal reports whether a status is terminal for automatic processing.
func IsTerminal(status Status) bool {
	_, ok := terminalStatuses[status]
	return ok
}

// RetouchEntry records one applied retouch instruction and the processed
// reference it produced. Entries are append-only.
type RetouchEntry struct {
	Seq          int
	Instruction  string
	ProcessedRef string
	AppliedAt    time.Time
}

// ImageRecord tracks one image through the pipeline.
type ImageRecord struct {
	ID           string
	BatchID      string
	Position     int
	Name         string
	OriginalRef  string
	ProcessedRef string
	Status       Status
	ErrorKind    string
	ErrorMessage string
	Attempts     int
	CreatedAt    time.Time
	UpdatedAt    time.Time
	History      []RetouchEntry
}

// IsInFlight returns true when the record holds its status lock.
func (r ImageRecord) IsInFlight() bool {
	return IsInFlight(r.Status)
}

// Batch is the unit of one upload session.
type Batch struct {
	ID           string
	Instructions string
	Summary      string
	CreatedAt    time.Time
	Images       []*ImageRecord
}

// Terminal returns true when every image is completed or failed.
func (b *Batch) Terminal() bool {
	if b == nil {
		return false
	}
	for _, img := range b.Images {
		if !IsTerminal(img.Status) {
			return false
		}
	}
	return true
}

// Progress is a pure read model of batch completion state.
type Progress struct {
	BatchID   string
	Completed int
	Failed    int
	Total     int
	PerImage  map[string]Status
}

// Percent returns completion as (completed+failed)/total in [0, 100].
func (p Progress) Percent() float64 {
	if p.Total == 0 {
		return 0
	}
	return float64(p.Completed+p.Failed) / float64(p.Total) * 100
}

// Terminal reports whether every image reached a terminal status.
func (p Progress) Terminal() bool {
	return p.Total > 0 && p.Completed+p.Failed == p.Total
}

// Change describes a committed store mutation delivered to subscribers.
type Change struct {
	BatchID string
	ImageID string
}
