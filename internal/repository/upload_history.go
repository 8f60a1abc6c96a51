package repository

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
)

type UploadHistoryRepository interface {
	Create(ctx context.Context, h *entity.UploadHistory) (*entity.UploadHistory, error)
	List(ctx context.Context, limit int) ([]*entity.UploadHistory, error)
	GetByContentHash(ctx context.Context, hash []byte) (*entity.UploadHistory, error)
}

type uploadHistoryRepository struct {
	db     *DB
	logger *slog.Logger
}

func NewUploadHistoryRepository(db *DB, logger *slog.Logger) UploadHistoryRepository {
	return &uploadHistoryRepository{
		db:     db,
		logger: logger,
	}
}

// Create stores h and returns it with its ID and upload date set.
func (r *uploadHistoryRepository) Create(ctx context.Context, h *entity.UploadHistory) (*entity.UploadHistory, error) {
	row := *h
	if row.UploadDate.IsZero() {
		row.UploadDate = time.Now().UTC()
	}
	row.UploadDate = row.UploadDate.UTC()

	query, args := entsql.Dialect(r.db.Dialect).
		Insert(uploadHistoryTable).
		Columns("file_name", "phone_number", "total_records", "successful_records",
			"failed_records", "duplicate_records", "errors", "content_hash", "upload_date").
		Values(row.FileName, nullString(row.PhoneNumber), row.TotalRecords, row.SuccessfulRecords,
			row.FailedRecords, row.DuplicateRecords, nullString(row.Errors), row.ContentHash, row.UploadDate).
		Returning("id").
		Query()

	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&row.ID); err != nil {
		r.logger.Error("failed to create upload history", "file_name", row.FileName, "error", err)
		return nil, fmt.Errorf("%w: create upload history: %v", common.ErrDatabase, err)
	}
	return &row, nil
}

// List returns the most recent uploads first. A non-positive limit means all.
func (r *uploadHistoryRepository) List(ctx context.Context, limit int) ([]*entity.UploadHistory, error) {
	sel := orderDesc(r.selectHistory(), "upload_date", "id")
	if limit > 0 {
		sel.Limit(limit)
	}
	out, err := r.queryHistory(ctx, sel)
	if err != nil {
		r.logger.Error("failed to list upload history", "error", err)
		return nil, err
	}
	return out, nil
}

// GetByContentHash returns the latest upload of a file with the given sha256.
func (r *uploadHistoryRepository) GetByContentHash(ctx context.Context, hash []byte) (*entity.UploadHistory, error) {
	sel := orderDesc(r.selectHistory().Where(entsql.EQ("content_hash", hash)), "id").Limit(1)
	out, err := r.queryHistory(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: upload with content hash %x", common.ErrNotFound, hash)
	}
	return out[0], nil
}

func (r *uploadHistoryRepository) selectHistory() *entsql.Selector {
	return entsql.Dialect(r.db.Dialect).
		Select(uploadHistorySelectColumns...).
		From(entsql.Table(uploadHistoryTable))
}

func (r *uploadHistoryRepository) queryHistory(ctx context.Context, sel *entsql.Selector) ([]*entity.UploadHistory, error) {
	query, args := sel.Query()
	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []*entity.UploadHistory
	for rows.Next() {
		var h entity.UploadHistory
		var phone, errs sql.NullString
		if err := rows.Scan(&h.ID, &h.FileName, &phone, &h.TotalRecords, &h.SuccessfulRecords,
			&h.FailedRecords, &h.DuplicateRecords, &errs, &h.ContentHash, &h.UploadDate); err != nil {
			return nil, fmt.Errorf("%w: scan upload history: %v", common.ErrDatabase, err)
		}
		h.PhoneNumber = stringPtr(phone)
		h.Errors = stringPtr(errs)
		h.UploadDate = h.UploadDate.UTC()
		out = append(out, &h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	return out, nil
}

// orderDesc appends a descending ORDER BY quoted for the selector's dialect.
func orderDesc(sel *entsql.Selector, columns ...string) *entsql.Selector {
	return sel.OrderExprFunc(func(b *entsql.Builder) {
		for i, c := range columns {
			if i > 0 {
				b.Comma()
			}
			b.Ident(c).WriteString(" DESC")
		}
	})
}
