package export

import (
	"path"
	"time"
)

// Subfolder patterns for DAM target paths.
const (
	PatternDate    = "date"
	PatternBatch   = "batch"
	PatternLiteral = "literal"
)

// targetPath computes the remote path for one image. The date pattern
// shards by delivery day, the batch pattern groups by batch id, and the
// literal pattern uses the configured folder verbatim.
func targetPath(conn Connection, batchID, name string, now time.Time) string {
	switch conn.SubfolderPattern {
	case PatternDate:
		return path.Join(conn.TargetFolder, now.UTC().Format("2006/01/02"), name)
	case PatternBatch:
		return path.Join(conn.TargetFolder, batchID, name)
	default:
		return path.Join(conn.TargetFolder, name)
	}
}
