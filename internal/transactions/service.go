// Package transactions serves read access to stored transactions and upload
// history.
package transactions

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
)

// DateLayout is the format of date filters.
const DateLayout = "2006-01-02"

// Service handles transaction queries.
type Service struct {
	txRepo      repository.TransactionRepository
	historyRepo repository.UploadHistoryRepository
	location    *time.Location
	logger      *slog.Logger
}

// NewService creates a new transaction service. Date filters are interpreted
// in loc.
func NewService(txRepo repository.TransactionRepository, historyRepo repository.UploadHistoryRepository, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{
		txRepo:      txRepo,
		historyRepo: historyRepo,
		location:    loc,
		logger:      logger,
	}
}

// ListRequest represents transaction listing parameters as received from a
// client. Empty strings mean no filter.
type ListRequest struct {
	TransactionType string
	FromDate        string
	ToDate          string
	MinAmount       string
	MaxAmount       string
	Search          string
	Page            int
	Limit           int
}

// ListResponse is one page of transactions.
type ListResponse struct {
	Transactions []*entity.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
	Page         int                   `json:"page"`
	Limit        int                   `json:"limit"`
}

// ParseFilter validates req and converts it into a repository filter. ToDate
// covers the whole day.
func (s *Service) ParseFilter(req ListRequest) (entity.TransactionFilter, error) {
	f := entity.TransactionFilter{
		TransactionType: strings.TrimSpace(req.TransactionType),
		Search:          strings.TrimSpace(req.Search),
		Page:            req.Page,
		Limit:           req.Limit,
	}
	if f.TransactionType != "" && !constants.IsReceived(f.TransactionType) && !constants.IsPaid(f.TransactionType) {
		return f, common.InvalidArgumentErrorf("transaction_type %q is not a known transaction type", f.TransactionType)
	}

	if fd := strings.TrimSpace(req.FromDate); fd != "" {
		from, err := time.ParseInLocation(DateLayout, fd, s.location)
		if err != nil {
			return f, common.InvalidArgumentErrorf("from_date invalid (YYYY-MM-DD): %v", err)
		}
		f.StartDate = &from
	}
	if td := strings.TrimSpace(req.ToDate); td != "" {
		to, err := time.ParseInLocation(DateLayout, td, s.location)
		if err != nil {
			return f, common.InvalidArgumentErrorf("to_date invalid (YYYY-MM-DD): %v", err)
		}
		end := to.AddDate(0, 0, 1).Add(-time.Second)
		f.EndDate = &end
	}
	if f.StartDate != nil && f.EndDate != nil && f.EndDate.Before(*f.StartDate) {
		return f, common.InvalidArgumentError("to_date must not be before from_date")
	}

	var err error
	if f.MinAmount, err = parseAmountFilter("min_amount", req.MinAmount); err != nil {
		return f, err
	}
	if f.MaxAmount, err = parseAmountFilter("max_amount", req.MaxAmount); err != nil {
		return f, err
	}
	if f.MinAmount != nil && f.MaxAmount != nil && f.MaxAmount.LessThan(*f.MinAmount) {
		return f, common.InvalidArgumentError("max_amount must not be less than min_amount")
	}
	if req.Page < 0 || req.Limit < 0 {
		return f, common.InvalidArgumentError("page and limit must not be negative")
	}
	return f.Normalize(), nil
}

func parseAmountFilter(field, raw string) (*decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, common.InvalidArgumentErrorf("%s invalid: %q", field, raw)
	}
	return &d, nil
}

// ListTransactions returns one page of transactions matching req, with the
// total number of matches.
func (s *Service) ListTransactions(ctx context.Context, req ListRequest) (*ListResponse, error) {
	logger := common.LoggerWithContext(ctx, s.logger)
	filter, err := s.ParseFilter(req)
	if err != nil {
		logger.Warn("invalid list transactions request", "error", err)
		return nil, err
	}

	logger.Info("listing transactions", "type", filter.TransactionType, "from_date", filter.StartDate, "to_date", filter.EndDate, "page", filter.Page)
	txs, err := s.txRepo.List(ctx, filter)
	if err != nil {
		logger.Error("failed to list transactions", "error", err)
		return nil, common.InternalErrorf("list transactions: %v", err)
	}
	total, err := s.txRepo.Count(ctx, filter)
	if err != nil {
		logger.Error("failed to count transactions", "error", err)
		return nil, common.InternalErrorf("count transactions: %v", err)
	}

	logger.Info("transactions listed successfully", "count", len(txs), "total", total)
	return &ListResponse{
		Transactions: txs,
		Total:        total,
		Page:         filter.Page,
		Limit:        filter.Limit,
	}, nil
}

// GetTransaction returns one transaction by id.
func (s *Service) GetTransaction(ctx context.Context, id int64) (*entity.Transaction, error) {
	if id <= 0 {
		return nil, common.InvalidArgumentError("id must be positive")
	}
	tx, err := s.txRepo.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, common.NotFoundError("transaction not found")
		}
		s.logger.Error("failed to get transaction", "id", id, "error", err)
		return nil, common.InternalErrorf("get transaction: %v", err)
	}
	return tx, nil
}

// Statistics returns totals over all stored transactions.
func (s *Service) Statistics(ctx context.Context) (*entity.TransactionStatistics, error) {
	stats, err := s.txRepo.Statistics(ctx)
	if err != nil {
		s.logger.Error("failed to compute statistics", "error", err)
		return nil, common.InternalErrorf("statistics: %v", err)
	}
	return stats, nil
}

// UploadHistory returns the most recent uploads first, at most limit entries
// when limit is positive.
func (s *Service) UploadHistory(ctx context.Context, limit int) ([]*entity.UploadHistory, error) {
	out, err := s.historyRepo.List(ctx, limit)
	if err != nil {
		s.logger.Error("failed to list upload history", "error", err)
		return nil, common.InternalErrorf("list upload history: %v", err)
	}
	return out, nil
}
