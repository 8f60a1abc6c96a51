package upload

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/metrics"
	"github.com/joseph-ayodele/yape-tracker/internal/pipeline"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
	"github.com/joseph-ayodele/yape-tracker/internal/workbook/workbooktest"
)

const reportName = "ReporteTransacciones+51922076456.xlsx"

// fakeTransactions mimics the store's identity conflict handling in memory.
type fakeTransactions struct {
	repository.TransactionRepository
	stored      map[pipeline.IdentityKey]*entity.Transaction
	batches     []int
	failAtBatch int
}

func newFakeTransactions() *fakeTransactions {
	return &fakeTransactions{stored: map[pipeline.IdentityKey]*entity.Transaction{}}
}

func (f *fakeTransactions) CreateMany(_ context.Context, txs []*entity.Transaction, batchSize int) (int, error) {
	inserted := 0
	for start := 0; start < len(txs); start += batchSize {
		end := min(start+batchSize, len(txs))
		f.batches = append(f.batches, end-start)
		if f.failAtBatch > 0 && len(f.batches) == f.failAtBatch {
			return inserted, errors.New("connection reset")
		}
		for _, t := range txs[start:end] {
			k := keyOf(t)
			if _, ok := f.stored[k]; ok {
				continue
			}
			f.stored[k] = t
			inserted++
		}
	}
	return inserted, nil
}

func (f *fakeTransactions) FindDuplicates(_ context.Context, txs []*entity.Transaction) ([]*entity.Transaction, error) {
	var out []*entity.Transaction
	for _, t := range txs {
		if s, ok := f.stored[keyOf(t)]; ok {
			out = append(out, s)
		}
	}
	return out, nil
}

type fakeHistory struct {
	repository.UploadHistoryRepository
	rows []*entity.UploadHistory
}

func (f *fakeHistory) Create(_ context.Context, h *entity.UploadHistory) (*entity.UploadHistory, error) {
	row := *h
	row.ID = int64(len(f.rows) + 1)
	f.rows = append(f.rows, &row)
	return &row, nil
}

func scenario(t *testing.T) []byte {
	tx := workbooktest.Tx
	return workbooktest.Build(t, workbooktest.Report{Rows: [][]any{
		tx("TE PAGÓ", "Ana P.", "Luis R.", "10,00", "almuerzo", "01/11/2025 10:00:00"),
		tx("PAGASTE", "Luis R.", "Ana P.", 20, "", "01/11/2025 11:00:00"),
		tx("TE PAGÓ", "Ana P.", "Luis R.", nil, "sin monto", "01/11/2025 12:00:00"),
		tx("TE PAGÓ", "Rosa T.", "Luis R.", 30.5, "", "02/11/2025 09:15:00"),
		tx("PAGASTE", "Luis R.", "Rosa T.", "-15.00", "", "02/11/2025 10:00:00"),
		tx("TE PAGÓ", "Ana P.", "Luis R.", 10, "repetido", "01/11/2025 10:00:00"),
		tx("TE PAGÓ", "Juan Q.", "Luis R.", "S/ 1.250,75", "", "03/11/2025 18:30:00"),
		tx("TE PAGÓ", "", "Luis R.", 5, "", "03/11/2025 19:00:00"),
		tx("PAGASTE", "Luis R.", "Ana P.", "20.00", "", "01/11/2025 11:00:00"),
		tx("PAGASTE", "Luis R.", "Juan Q.", 7.25, "taxi", "04/11/2025 07:45:00"),
		tx("TE PAGÓ", "Rosa T.", "Luis R.", 12, "", "2025-11-05"),
		tx("TE PAGÓ", "Ana P.", "Luis R.", 10, "", "05/11/2025 10:00:00"),
	}})
}

func newTestService(t *testing.T, txs repository.TransactionRepository, hist repository.UploadHistoryRepository, opts Options) *Service {
	t.Helper()
	svc, err := NewService(txs, hist, opts, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	return svc
}

func TestValidate_DoesNotPersistAndIsIdempotent(t *testing.T) {
	txs, hist := newFakeTransactions(), &fakeHistory{}
	svc := newTestService(t, txs, hist, Options{})
	content := scenario(t)

	first, err := svc.Validate(context.Background(), content, reportName)
	require.NoError(t, err)
	second, err := svc.Validate(context.Background(), content, reportName)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 12, first.TotalRecords)
	assert.Equal(t, 6, first.ValidRecords)
	assert.Equal(t, 4, first.InvalidRecords)
	assert.Equal(t, 2, first.DuplicateRecords)
	assert.Equal(t, 6, first.Duplicates[0].OriginalRow)

	assert.Empty(t, txs.batches)
	assert.Empty(t, hist.rows)
}

func TestConfirm_SavesUniquesAndRecordsHistory(t *testing.T) {
	txs, hist := newFakeTransactions(), &fakeHistory{}
	rec := metrics.NewRecorder()
	svc := newTestService(t, txs, hist, Options{BatchSize: 4, Metrics: rec})
	content := scenario(t)

	preview, err := svc.Validate(context.Background(), content, reportName)
	require.NoError(t, err)

	res, err := svc.Confirm(context.Background(), content, reportName)
	require.NoError(t, err)
	assert.Equal(t, preview.ValidRecords, res.SavedCount)
	assert.Equal(t, int64(1), res.UploadHistoryID)
	assert.Zero(t, res.SkippedExisting)
	assert.Equal(t, []int{4, 2}, txs.batches)

	require.Len(t, hist.rows, 1)
	h := hist.rows[0]
	assert.Equal(t, reportName, h.FileName)
	require.NotNil(t, h.PhoneNumber)
	assert.Equal(t, "+51922076456", *h.PhoneNumber)
	assert.Equal(t, 12, h.TotalRecords)
	assert.Equal(t, 6, h.SuccessfulRecords)
	assert.Equal(t, 4, h.FailedRecords)
	assert.Equal(t, 2, h.DuplicateRecords)
	assert.Len(t, h.ContentHash, 32)

	require.NotNil(t, h.Errors)
	var rowErrors []pipeline.RowError
	require.NoError(t, json.Unmarshal([]byte(*h.Errors), &rowErrors))
	assert.Equal(t, preview.Errors, rowErrors)

	expected := `
# HELP yape_transactions_saved_total Transactions inserted by confirmed uploads.
# TYPE yape_transactions_saved_total counter
yape_transactions_saved_total 6
`
	assert.NoError(t, testutil.GatherAndCompare(rec.Registry(), strings.NewReader(expected), "yape_transactions_saved_total"))
}

func TestConfirm_SecondConfirmSavesNothing(t *testing.T) {
	txs, hist := newFakeTransactions(), &fakeHistory{}
	svc := newTestService(t, txs, hist, Options{})
	content := scenario(t)

	first, err := svc.Confirm(context.Background(), content, reportName)
	require.NoError(t, err)
	assert.Equal(t, 6, first.SavedCount)

	second, err := svc.Confirm(context.Background(), content, reportName)
	require.NoError(t, err)
	assert.Zero(t, second.SavedCount)
	assert.Equal(t, int64(2), second.UploadHistoryID)
	assert.Len(t, txs.stored, 6)
}

func TestConfirm_CheckExisting(t *testing.T) {
	txs, hist := newFakeTransactions(), &fakeHistory{}
	rec := metrics.NewRecorder()
	svc := newTestService(t, txs, hist, Options{CheckExisting: true, Metrics: rec})
	content := scenario(t)

	_, err := svc.Confirm(context.Background(), content, reportName)
	require.NoError(t, err)

	again, err := svc.Confirm(context.Background(), content, reportName)
	require.NoError(t, err)
	assert.Zero(t, again.SavedCount)
	assert.Equal(t, 6, again.SkippedExisting)
	assert.Equal(t, 0, hist.rows[1].SuccessfulRecords)
}

func TestConfirm_StructuralFailureWritesNothing(t *testing.T) {
	tests := []struct {
		name    string
		content func(t *testing.T) []byte
		want    error
	}{
		{
			name: "missing Monto header",
			content: func(t *testing.T) []byte {
				return workbooktest.Build(t, workbooktest.Report{
					Headers: []string{"Tipo de Transacción", "Origen", "Destino", "Mensaje", "Fecha de operación"},
					Rows:    [][]any{{"TE PAGÓ", "Ana P.", "Luis R.", "", "01/11/2025 10:00:00"}},
				})
			},
			want: common.ErrInvalidHeaders,
		},
		{
			name: "only invalid rows",
			content: func(t *testing.T) []byte {
				return workbooktest.Build(t, workbooktest.Report{Rows: [][]any{
					workbooktest.Tx("TE PAGÓ", "Ana P.", "Luis R.", -1, "", "01/11/2025 10:00:00"),
				}})
			},
			want: common.ErrNoValidData,
		},
		{
			name:    "not a workbook",
			content: func(*testing.T) []byte { return []byte("hello") },
			want:    common.ErrUnreadableWorkbook,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			txs, hist := newFakeTransactions(), &fakeHistory{}
			svc := newTestService(t, txs, hist, Options{})
			content := tt.content(t)

			preview, err := svc.Validate(context.Background(), content, reportName)
			assert.Nil(t, preview)
			assert.ErrorIs(t, err, tt.want)

			res, err := svc.Confirm(context.Background(), content, reportName)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.want)
			assert.True(t, common.IsStructural(err))

			assert.Empty(t, txs.batches)
			assert.Empty(t, hist.rows)
		})
	}
}

func TestConfirm_BatchFailureAbortsRemainder(t *testing.T) {
	txs, hist := newFakeTransactions(), &fakeHistory{}
	txs.failAtBatch = 2
	svc := newTestService(t, txs, hist, Options{BatchSize: 2})

	res, err := svc.Confirm(context.Background(), scenario(t), reportName)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.False(t, common.IsStructural(err))
	assert.Equal(t, []int{2, 2}, txs.batches)
	assert.Len(t, txs.stored, 2)
	assert.Empty(t, hist.rows)
}

func TestConfirm_SQLiteStore(t *testing.T) {
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	dsn := "file:" + filepath.Join(t.TempDir(), "yape.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	require.NoError(t, repository.Migrate(ctx, db, logger))

	txRepo := repository.NewTransactionRepository(db, logger)
	histRepo := repository.NewUploadHistoryRepository(db, logger)
	lima := time.FixedZone("PET", -5*3600)
	svc := newTestService(t, txRepo, histRepo, Options{Location: lima, BatchSize: 4})
	content := scenario(t)

	preview, err := svc.Validate(ctx, content, reportName)
	require.NoError(t, err)

	res, err := svc.Confirm(ctx, content, reportName)
	require.NoError(t, err)
	assert.Equal(t, preview.ValidRecords, res.SavedCount)

	n, err := txRepo.Count(ctx, entity.TransactionFilter{})
	require.NoError(t, err)
	assert.Equal(t, 6, n)

	list, err := txRepo.List(ctx, entity.TransactionFilter{})
	require.NoError(t, err)
	require.NotEmpty(t, list)
	assert.True(t, time.Date(2025, 11, 1, 15, 0, 0, 0, time.UTC).Equal(list[0].OperationDate))
	assert.Equal(t, "10", list[0].Amount.String())
	require.NotNil(t, list[0].Message)
	assert.Equal(t, "almuerzo", *list[0].Message)

	again, err := svc.Confirm(ctx, content, reportName)
	require.NoError(t, err)
	assert.Zero(t, again.SavedCount)

	history, err := histRepo.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, again.UploadHistoryID, history[0].ID)
}
