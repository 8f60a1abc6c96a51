// Package ingest imports Yape reports dropped into a local inbox directory.
package ingest

import (
	"context"
	"time"

	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/services/upload"
)

// IngestionResult is the per-file ingest outcome.
type IngestionResult struct {
	SourcePath      string    `json:"source_path"`
	Deduplicated    bool      `json:"deduplicated"`
	HashHex         string    `json:"content_hash"`
	SavedCount      int       `json:"saved_count"`
	UploadHistoryID int64     `json:"upload_history_id,omitempty"`
	UploadedAt      time.Time `json:"uploaded_at"`
	Err             string    `json:"error,omitempty"`
}

// DirStats summarizes a directory ingest.
type DirStats struct {
	Scanned      uint32 `json:"scanned"`
	Matched      uint32 `json:"matched"`
	Succeeded    uint32 `json:"succeeded"`
	Deduplicated uint32 `json:"deduplicated"`
	Failed       uint32 `json:"failed"`
}

// Ingestor is the behavior the scheduler and CLI depend on.
type Ingestor interface {
	// IngestPath imports a single workbook.
	IngestPath(ctx context.Context, path string) (IngestionResult, error)
	// IngestDirectory imports all workbooks under root.
	IngestDirectory(ctx context.Context, root string, skipHidden bool) ([]IngestionResult, DirStats, error)
}

// Confirmer persists one workbook.
type Confirmer interface {
	Confirm(ctx context.Context, content []byte, fileName string) (*upload.ConfirmResult, error)
}

// HistoryLookup finds previous uploads of identical content.
type HistoryLookup interface {
	GetByContentHash(ctx context.Context, hash []byte) (*entity.UploadHistory, error)
}
