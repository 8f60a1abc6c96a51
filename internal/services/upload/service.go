// Package upload implements the two-phase spreadsheet import: a read-only
// validate followed by a separately invoked confirm that persists.
package upload

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/metrics"
	"github.com/joseph-ayodele/yape-tracker/internal/pipeline"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
)

// ConfirmResult is returned by Confirm.
type ConfirmResult struct {
	SavedCount      int   `json:"savedCount"`
	UploadHistoryID int64 `json:"uploadHistoryId"`
	SkippedExisting int   `json:"skippedExisting,omitempty"`
}

// Options tunes the service. Zero values pick the defaults. CheckExisting
// drops rows already in storage before inserting them.
type Options struct {
	BatchSize     int
	Location      *time.Location
	CheckExisting bool
	Metrics       *metrics.Recorder
}

// Service runs the import pipeline against the transaction store.
type Service struct {
	pipeline     *pipeline.Pipeline
	transactions repository.TransactionRepository
	history      repository.UploadHistoryRepository
	opts         Options
	logger       *slog.Logger
}

// NewService creates a new upload service.
func NewService(txRepo repository.TransactionRepository, historyRepo repository.UploadHistoryRepository, opts Options, logger *slog.Logger) (*Service, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = repository.DefaultBatchSize
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	p, err := pipeline.New(opts.Location, logger)
	if err != nil {
		return nil, err
	}
	return &Service{
		pipeline:     p,
		transactions: txRepo,
		history:      historyRepo,
		opts:         opts,
		logger:       logger,
	}, nil
}

// Validate previews an import. It never writes and returns the same result
// for the same bytes and file name.
func (s *Service) Validate(ctx context.Context, content []byte, fileName string) (*pipeline.UploadResult, error) {
	logger := common.LoggerWithContext(ctx, s.logger).With("file_name", fileName, "phase", constants.PhaseValidate)
	start := time.Now()
	logger.Info("validating upload", "size", len(content))

	out, err := s.pipeline.Run(content, fileName)
	if err != nil {
		s.observeFailure(constants.PhaseValidate, err, start)
		logger.Warn("upload rejected", "error", err)
		return nil, fmt.Errorf("validate %s: %w", fileName, err)
	}

	s.observeRows(constants.PhaseValidate, &out.Result)
	s.opts.Metrics.Upload(constants.PhaseValidate, metrics.OutcomeOK, time.Since(start))
	logger.Info("validation complete",
		"valid", out.Result.ValidRecords,
		"duplicates", out.Result.DuplicateRecords,
		"invalid", out.Result.InvalidRecords,
		"empty", out.Result.SkippedEmptyRows,
	)
	return &out.Result, nil
}

// Confirm re-runs the pipeline on content, stores the unique records and
// writes one upload history entry. Structural failures abort before any write.
func (s *Service) Confirm(ctx context.Context, content []byte, fileName string) (*ConfirmResult, error) {
	logger := common.LoggerWithContext(ctx, s.logger).With("file_name", fileName, "phase", constants.PhaseConfirm)
	start := time.Now()
	logger.Info("confirming upload", "size", len(content))

	out, err := s.pipeline.Run(content, fileName)
	if err != nil {
		s.observeFailure(constants.PhaseConfirm, err, start)
		logger.Warn("upload rejected", "error", err)
		return nil, fmt.Errorf("confirm %s: %w", fileName, err)
	}
	s.observeRows(constants.PhaseConfirm, &out.Result)

	txs := toTransactions(out.Unique)

	skipped := 0
	if s.opts.CheckExisting {
		txs, skipped, err = s.dropExisting(ctx, txs)
		if err != nil {
			s.observeFailure(constants.PhaseConfirm, err, start)
			return nil, fmt.Errorf("confirm %s: check existing: %w", fileName, err)
		}
		if skipped > 0 {
			logger.Info("skipping transactions already stored", "count", skipped)
		}
	}

	saved, err := s.transactions.CreateMany(ctx, txs, s.opts.BatchSize)
	if err != nil {
		s.observeFailure(constants.PhaseConfirm, err, start)
		logger.Error("failed to save transactions", "saved_before_failure", saved, "error", err)
		return nil, fmt.Errorf("confirm %s: save transactions: %w", fileName, err)
	}

	errorsJSON, err := serializeRowErrors(out.Result.Errors)
	if err != nil {
		s.observeFailure(constants.PhaseConfirm, err, start)
		return nil, fmt.Errorf("confirm %s: %w", fileName, err)
	}
	hash := sha256.Sum256(content)

	history, err := s.history.Create(ctx, &entity.UploadHistory{
		FileName:          fileName,
		PhoneNumber:       out.PhoneNumber,
		TotalRecords:      out.Result.TotalRecords,
		SuccessfulRecords: saved,
		FailedRecords:     out.Result.InvalidRecords,
		DuplicateRecords:  out.Result.DuplicateRecords,
		Errors:            errorsJSON,
		ContentHash:       hash[:],
		UploadDate:        time.Now().UTC(),
	})
	if err != nil {
		s.observeFailure(constants.PhaseConfirm, err, start)
		logger.Error("failed to record upload history", "saved", saved, "error", err)
		return nil, fmt.Errorf("confirm %s: record upload history: %w", fileName, err)
	}

	s.opts.Metrics.Saved(saved, skipped)
	s.opts.Metrics.Upload(constants.PhaseConfirm, metrics.OutcomeOK, time.Since(start))
	logger.Info("upload confirmed", "saved", saved, "upload_history_id", history.ID)

	return &ConfirmResult{
		SavedCount:      saved,
		UploadHistoryID: history.ID,
		SkippedExisting: skipped,
	}, nil
}

// dropExisting removes txs whose identity key is already stored.
func (s *Service) dropExisting(ctx context.Context, txs []*entity.Transaction) ([]*entity.Transaction, int, error) {
	existing, err := s.transactions.FindDuplicates(ctx, txs)
	if err != nil {
		return nil, 0, err
	}
	if len(existing) == 0 {
		return txs, 0, nil
	}

	stored := make(map[pipeline.IdentityKey]struct{}, len(existing))
	for _, e := range existing {
		stored[keyOf(e)] = struct{}{}
	}
	kept := make([]*entity.Transaction, 0, len(txs))
	for _, t := range txs {
		if _, ok := stored[keyOf(t)]; ok {
			continue
		}
		kept = append(kept, t)
	}
	return kept, len(txs) - len(kept), nil
}

func (s *Service) observeRows(phase constants.UploadPhase, res *pipeline.UploadResult) {
	m := s.opts.Metrics
	m.Rows(phase, constants.RowValid, res.ValidRecords)
	m.Rows(phase, constants.RowInvalid, res.InvalidRecords)
	m.Rows(phase, constants.RowDuplicate, res.DuplicateRecords)
	m.Rows(phase, constants.RowEmpty, res.SkippedEmptyRows)
}

func (s *Service) observeFailure(phase constants.UploadPhase, err error, start time.Time) {
	outcome := metrics.OutcomeFailed
	if common.IsStructural(err) {
		outcome = metrics.OutcomeRejected
	}
	s.opts.Metrics.Upload(phase, outcome, time.Since(start))
}

func keyOf(t *entity.Transaction) pipeline.IdentityKey {
	return pipeline.KeyOf(pipeline.ParsedRecord{
		Origin:        t.Origin,
		Destination:   t.Destination,
		Amount:        t.Amount,
		OperationDate: t.OperationDate,
	})
}

func toTransactions(records []pipeline.ParsedRecord) []*entity.Transaction {
	txs := make([]*entity.Transaction, 0, len(records))
	for _, r := range records {
		t := &entity.Transaction{
			TransactionType: r.TransactionType,
			Origin:          r.Origin,
			Destination:     r.Destination,
			Amount:          r.Amount,
			OperationDate:   r.OperationDate.UTC(),
			PhoneNumber:     r.PhoneNumber,
		}
		if r.Message != "" {
			msg := r.Message
			t.Message = &msg
		}
		txs = append(txs, t)
	}
	return txs
}

// serializeRowErrors renders row errors as JSON, or nil when there are none.
func serializeRowErrors(rowErrors []pipeline.RowError) (*string, error) {
	if len(rowErrors) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(rowErrors)
	if err != nil {
		return nil, errors.Join(common.ErrInternal, err)
	}
	s := string(b)
	return &s, nil
}
