package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/shopspring/decimal"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
)

// DefaultBatchSize is the number of rows per INSERT statement.
const DefaultBatchSize = 100

var identityColumns = []string{"operation_date", "amount", "origin", "destination"}

type TransactionRepository interface {
	CreateMany(ctx context.Context, txs []*entity.Transaction, batchSize int) (int, error)
	FindDuplicates(ctx context.Context, txs []*entity.Transaction) ([]*entity.Transaction, error)
	List(ctx context.Context, filter entity.TransactionFilter) ([]*entity.Transaction, error)
	Count(ctx context.Context, filter entity.TransactionFilter) (int, error)
	GetByID(ctx context.Context, id int64) (*entity.Transaction, error)
	Statistics(ctx context.Context) (*entity.TransactionStatistics, error)
}

type transactionRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewTransactionRepository(db *DB, logger *slog.Logger) TransactionRepository {
	return &transactionRepository{
		db:     db,
		logger: logger,
	}
}

// CreateMany inserts txs in sequential batches. Rows whose identity already
// exists are skipped by the database; the count returned is rows actually
// inserted. A failing batch stops the loop and earlier batches stay committed.
func (r *transactionRepository) CreateMany(ctx context.Context, txs []*entity.Transaction, batchSize int) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	now := time.Now().UTC()
	inserted := 0
	for start := 0; start < len(txs); start += batchSize {
		end := min(start+batchSize, len(txs))

		ins := entsql.Dialect(r.db.Dialect).
			Insert(transactionsTable).
			Columns("transaction_type", "origin", "destination", "amount", "message",
				"operation_date", "phone_number", "status", "created_at", "updated_at")
		for _, t := range txs[start:end] {
			ins.Values(t.TransactionType, t.Origin, t.Destination, t.Amount, nullString(t.Message),
				t.OperationDate.UTC(), nullString(t.PhoneNumber), nullString(t.Status), now, now)
		}
		ins.OnConflict(entsql.ConflictColumns(identityColumns...), entsql.DoNothing())

		query, args := ins.Query()
		res, err := r.db.SQL.ExecContext(ctx, query, args...)
		if err != nil {
			r.logger.Error("failed to insert transaction batch", "batch_start", start, "batch_size", end-start, "inserted", inserted, "error", err)
			return inserted, fmt.Errorf("%w: insert batch at %d: %v", common.ErrDatabase, start, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return inserted, fmt.Errorf("%w: rows affected: %v", common.ErrDatabase, err)
		}
		inserted += int(n)
		r.logger.Debug("transaction batch inserted", "batch_start", start, "batch_size", end-start, "inserted", n)
	}
	return inserted, nil
}

// FindDuplicates returns stored transactions sharing an identity key with any of txs.
func (r *transactionRepository) FindDuplicates(ctx context.Context, txs []*entity.Transaction) ([]*entity.Transaction, error) {
	if len(txs) == 0 {
		return nil, nil
	}

	var found []*entity.Transaction
	for start := 0; start < len(txs); start += DefaultBatchSize {
		end := min(start+DefaultBatchSize, len(txs))

		conds := make([]*entsql.Predicate, 0, end-start)
		for _, t := range txs[start:end] {
			conds = append(conds, entsql.And(
				entsql.EQ("operation_date", t.OperationDate.UTC()),
				entsql.EQ("amount", t.Amount),
				entsql.EQ("origin", t.Origin),
				entsql.EQ("destination", t.Destination),
			))
		}

		sel := r.selectTransactions().Where(entsql.Or(conds...))
		batch, err := r.queryTransactions(ctx, sel)
		if err != nil {
			r.logger.Error("failed to find duplicate transactions", "batch_start", start, "error", err)
			return nil, err
		}
		found = append(found, batch...)
	}
	return found, nil
}

func (r *transactionRepository) List(ctx context.Context, filter entity.TransactionFilter) ([]*entity.Transaction, error) {
	f := filter.Normalize()
	sel := r.selectTransactions()
	if p := filterPredicate(f); p != nil {
		sel.Where(p)
	}
	sel.OrderBy("operation_date", "id").Limit(f.Limit).Offset(f.Offset())

	txs, err := r.queryTransactions(ctx, sel)
	if err != nil {
		r.logger.Error("failed to list transactions", "page", f.Page, "limit", f.Limit, "error", err)
		return nil, err
	}
	return txs, nil
}

func (r *transactionRepository) Count(ctx context.Context, filter entity.TransactionFilter) (int, error) {
	sel := entsql.Dialect(r.db.Dialect).
		Select(entsql.Count("*")).
		From(entsql.Table(transactionsTable))
	if p := filterPredicate(filter); p != nil {
		sel.Where(p)
	}

	query, args := sel.Query()
	var n int
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		r.logger.Error("failed to count transactions", "error", err)
		return 0, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return n, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id int64) (*entity.Transaction, error) {
	sel := r.selectTransactions().Where(entsql.EQ("id", id)).Limit(1)
	txs, err := r.queryTransactions(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return nil, fmt.Errorf("%w: transaction %d", common.ErrNotFound, id)
	}
	return txs[0], nil
}

// Statistics totals every stored transaction by direction. Types that are
// neither received nor paid only count toward TotalTransactions.
func (r *transactionRepository) Statistics(ctx context.Context) (*entity.TransactionStatistics, error) {
	sel := entsql.Dialect(r.db.Dialect).
		Select("transaction_type", entsql.Count("*"), entsql.Sum("amount")).
		From(entsql.Table(transactionsTable)).
		GroupBy("transaction_type")

	query, args := sel.Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("failed to compute transaction statistics", "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	stats := &entity.TransactionStatistics{
		TotalReceived: decimal.Zero,
		TotalPaid:     decimal.Zero,
	}
	for rows.Next() {
		var (
			kind  string
			count int64
			sum   decimal.NullDecimal
		)
		if err := rows.Scan(&kind, &count, &sum); err != nil {
			return nil, fmt.Errorf("%w: scan statistics: %v", common.ErrDatabase, err)
		}
		stats.TotalTransactions += count
		switch {
		case constants.IsReceived(kind):
			stats.ReceivedCount += count
			stats.TotalReceived = stats.TotalReceived.Add(sum.Decimal)
		case constants.IsPaid(kind):
			stats.PaidCount += count
			stats.TotalPaid = stats.TotalPaid.Add(sum.Decimal)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}

	stats.TotalReceived = stats.TotalReceived.Round(2)
	stats.TotalPaid = stats.TotalPaid.Round(2)
	stats.Balance = stats.TotalReceived.Sub(stats.TotalPaid)
	return stats, nil
}

func (r *transactionRepository) selectTransactions() *entsql.Selector {
	return entsql.Dialect(r.db.Dialect).
		Select(transactionSelectColumns...).
		From(entsql.Table(transactionsTable))
}

func (r *transactionRepository) queryTransactions(ctx context.Context, sel *entsql.Selector) ([]*entity.Transaction, error) {
	query, args := sel.Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: scan transaction: %v", common.ErrDatabase, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

func scanTransaction(rows *sql.Rows) (*entity.Transaction, error) {
	var t entity.Transaction
	var message, phone, status sql.NullString
	err := rows.Scan(&t.ID, &t.TransactionType, &t.Origin, &t.Destination, &t.Amount, &message,
		&t.OperationDate, &phone, &status, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}
	t.Message = stringPtr(message)
	t.PhoneNumber = stringPtr(phone)
	t.Status = stringPtr(status)
	t.OperationDate = t.OperationDate.UTC()
	return &t, nil
}

// filterPredicate combines the non-zero filter fields, or returns nil.
func filterPredicate(f entity.TransactionFilter) *entsql.Predicate {
	var preds []*entsql.Predicate
	if f.TransactionType != "" {
		preds = append(preds, entsql.EQ("transaction_type", f.TransactionType))
	}
	if f.StartDate != nil {
		preds = append(preds, entsql.GTE("operation_date", f.StartDate.UTC()))
	}
	if f.EndDate != nil {
		preds = append(preds, entsql.LTE("operation_date", f.EndDate.UTC()))
	}
	if f.MinAmount != nil {
		preds = append(preds, entsql.GTE("amount", *f.MinAmount))
	}
	if f.MaxAmount != nil {
		preds = append(preds, entsql.LTE("amount", *f.MaxAmount))
	}
	if f.Search != "" {
		preds = append(preds, entsql.Or(
			entsql.ContainsFold("origin", f.Search),
			entsql.ContainsFold("destination", f.Search),
			entsql.ContainsFold("message", f.Search),
		))
	}
	switch len(preds) {
	case 0:
		return nil
	case 1:
		return preds[0]
	default:
		return entsql.And(preds...)
	}
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// IsNotFound reports whether err is a missing-row error from this package.
func IsNotFound(err error) bool {
	return errors.Is(err, common.ErrNotFound) || errors.Is(err, sql.ErrNoRows)
}
