package export

import (
	"bytes"
	"context"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/pipeline"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
)

var lima = time.FixedZone("PET", -5*3600)

func seededRepo(t *testing.T, txs []*entity.Transaction) repository.TransactionRepository {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	dsn := "file:" + filepath.Join(t.TempDir(), "yape.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	require.NoError(t, repository.Migrate(ctx, db, logger))

	repo := repository.NewTransactionRepository(db, logger)
	if len(txs) > 0 {
		_, err = repo.CreateMany(ctx, txs, repository.DefaultBatchSize)
		require.NoError(t, err)
	}
	return repo
}

func TestExportTransactionsXLSX_RoundTrip(t *testing.T) {
	msg := "almuerzo"
	at := time.Date(2025, 11, 1, 10, 0, 0, 0, lima)
	repo := seededRepo(t, []*entity.Transaction{
		{TransactionType: "TE PAGÓ", Origin: "Ana P.", Destination: "Luis R.", Amount: decimal.RequireFromString("10.50"), Message: &msg, OperationDate: at.UTC()},
		{TransactionType: "PAGASTE", Origin: "Luis R.", Destination: "Juan Q.", Amount: decimal.RequireFromString("1250.75"), OperationDate: at.Add(2 * time.Hour).UTC()},
	})
	svc := NewService(repo, lima, slog.New(slog.DiscardHandler))

	content, err := svc.ExportTransactionsXLSX(context.Background(), entity.TransactionFilter{})
	require.NoError(t, err)

	p, err := pipeline.New(lima, slog.New(slog.DiscardHandler))
	require.NoError(t, err)
	out, err := p.Run(content, "export.xlsx")
	require.NoError(t, err)

	assert.Equal(t, 2, out.Result.TotalRecords)
	assert.Equal(t, 2, out.Result.ValidRecords)
	assert.Empty(t, out.Result.Errors)
	require.Len(t, out.Unique, 2)

	first := out.Unique[0]
	assert.Equal(t, constants.FirstDataRow, first.Row)
	assert.Equal(t, "Ana P.", first.Origin)
	assert.Equal(t, "10.5", first.Amount.String())
	assert.Equal(t, "almuerzo", first.Message)
	assert.True(t, at.Equal(first.OperationDate))

	second := out.Unique[1]
	assert.Equal(t, "1250.75", second.Amount.String())
	assert.Empty(t, second.Message)
}

func TestExportTransactionsXLSX_Filtered(t *testing.T) {
	at := time.Date(2025, 11, 1, 10, 0, 0, 0, lima)
	var seed []*entity.Transaction
	for i := range 150 {
		kind := "TE PAGÓ"
		if i%3 == 0 {
			kind = "PAGASTE"
		}
		seed = append(seed, &entity.Transaction{
			TransactionType: kind,
			Origin:          "Ana P.",
			Destination:     "Luis R.",
			Amount:          decimal.NewFromInt(int64(i + 1)),
			OperationDate:   at.Add(time.Duration(i) * time.Minute).UTC(),
		})
	}
	svc := NewService(seededRepo(t, seed), lima, nil)

	content, err := svc.ExportTransactionsXLSX(context.Background(), entity.TransactionFilter{TransactionType: "TE PAGÓ", Limit: 5})
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(content))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(sheetName)
	require.NoError(t, err)
	assert.Equal(t, constants.ReportTitle, rows[0][0])
	assert.Equal(t, constants.ExpectedHeaders, rows[constants.HeaderRowIndex])
	assert.Len(t, rows, constants.HeaderRowIndex+1+100)
}
