package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/metrics"
)

// FSIngestor reads workbooks from the local filesystem and confirms them.
type FSIngestor struct {
	uploads Confirmer
	history HistoryLookup
	metrics *metrics.Recorder
	logger  *slog.Logger
}

var _ Ingestor = (*FSIngestor)(nil)

func NewFSIngestor(uploads Confirmer, history HistoryLookup, rec *metrics.Recorder, logger *slog.Logger) *FSIngestor {
	if logger == nil {
		logger = slog.Default()
	}
	return &FSIngestor{
		uploads: uploads,
		history: history,
		metrics: rec,
		logger:  logger,
	}
}

// IngestPath confirms the workbook at path unless a file with the same sha256
// was already uploaded, in which case the result is marked Deduplicated.
func (i *FSIngestor) IngestPath(ctx context.Context, path string) (IngestionResult, error) {
	out := IngestionResult{SourcePath: path}

	abs, err := filepath.Abs(path)
	if err != nil {
		i.logger.Error("abs path error", "path", path, "error", err)
		return out, err
	}
	out.SourcePath = abs

	ext := constants.NormalizeExt(filepath.Ext(abs))
	if ext == "" || !AllowedExt(ext) {
		i.logger.Warn("unsupported or missing extension", "path", abs, "ext", ext)
		i.metrics.InboxFile(metrics.OutcomeFailed)
		return out, fmt.Errorf("%w: unsupported or missing extension %q", common.ErrInvalidInput, ext)
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		i.logger.Error("read error", "path", abs, "error", err)
		i.metrics.InboxFile(metrics.OutcomeFailed)
		return out, err
	}
	sum := sha256.Sum256(content)
	out.HashHex = hex.EncodeToString(sum[:])

	prev, err := i.history.GetByContentHash(ctx, sum[:])
	switch {
	case err == nil:
		i.logger.Info("file already uploaded", "path", abs, "upload_history_id", prev.ID)
		out.Deduplicated = true
		out.UploadHistoryID = prev.ID
		out.UploadedAt = prev.UploadDate
		i.metrics.InboxFile(metrics.OutcomeDuplicated)
		return out, nil
	case !errors.Is(err, common.ErrNotFound):
		i.logger.Error("content hash lookup failed", "path", abs, "error", err)
		i.metrics.InboxFile(metrics.OutcomeFailed)
		return out, err
	}

	res, err := i.uploads.Confirm(ctx, content, filepath.Base(abs))
	if err != nil {
		i.metrics.InboxFile(metrics.OutcomeFailed)
		return out, err
	}
	out.SavedCount = res.SavedCount
	out.UploadHistoryID = res.UploadHistoryID
	out.UploadedAt = time.Now().UTC()
	i.metrics.InboxFile(metrics.OutcomeOK)

	i.logger.Info("ingest.file.ok", "path", abs, "saved", res.SavedCount, "upload_history_id", res.UploadHistoryID)
	return out, nil
}
