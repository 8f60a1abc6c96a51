package transactions

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
)

var lima = time.FixedZone("PET", -5*3600)

func newTestService(t *testing.T, txs []*entity.Transaction) *Service {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)
	dsn := "file:" + filepath.Join(t.TempDir(), "yape.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := repository.Open(ctx, repository.Config{Driver: "sqlite", DSN: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { repository.Close(db, logger) })
	require.NoError(t, repository.Migrate(ctx, db, logger))

	txRepo := repository.NewTransactionRepository(db, logger)
	if len(txs) > 0 {
		n, err := txRepo.CreateMany(ctx, txs, 50)
		require.NoError(t, err)
		require.Equal(t, len(txs), n)
	}
	return NewService(txRepo, repository.NewUploadHistoryRepository(db, logger), lima, logger)
}

func tx(kind, origin string, amount string, at time.Time) *entity.Transaction {
	return &entity.Transaction{
		TransactionType: kind,
		Origin:          origin,
		Destination:     "Luis R.",
		Amount:          decimal.RequireFromString(amount),
		OperationDate:   at.UTC(),
	}
}

func TestParseFilter(t *testing.T) {
	svc := NewService(nil, nil, lima, nil)

	tests := []struct {
		name    string
		req     ListRequest
		check   func(t *testing.T, f entity.TransactionFilter)
		wantErr string
	}{
		{
			name: "defaults",
			req:  ListRequest{},
			check: func(t *testing.T, f entity.TransactionFilter) {
				assert.Equal(t, 1, f.Page)
				assert.Equal(t, entity.DefaultPageLimit, f.Limit)
				assert.Nil(t, f.StartDate)
				assert.Nil(t, f.MinAmount)
			},
		},
		{
			name: "dates cover whole days in local time",
			req:  ListRequest{FromDate: "2025-11-01", ToDate: "2025-11-01"},
			check: func(t *testing.T, f entity.TransactionFilter) {
				require.NotNil(t, f.StartDate)
				require.NotNil(t, f.EndDate)
				assert.True(t, time.Date(2025, 11, 1, 5, 0, 0, 0, time.UTC).Equal(*f.StartDate))
				assert.True(t, time.Date(2025, 11, 2, 4, 59, 59, 0, time.UTC).Equal(*f.EndDate))
			},
		},
		{
			name: "amounts and limit clamp",
			req:  ListRequest{MinAmount: "10", MaxAmount: "20.5", Limit: 1000},
			check: func(t *testing.T, f entity.TransactionFilter) {
				assert.Equal(t, "10", f.MinAmount.String())
				assert.Equal(t, "20.5", f.MaxAmount.String())
				assert.Equal(t, entity.MaxPageLimit, f.Limit)
			},
		},
		{name: "bad from date", req: ListRequest{FromDate: "01/11/2025"}, wantErr: "from_date invalid"},
		{name: "bad to date", req: ListRequest{ToDate: "tomorrow"}, wantErr: "to_date invalid"},
		{name: "inverted dates", req: ListRequest{FromDate: "2025-11-02", ToDate: "2025-11-01"}, wantErr: "to_date must not be before from_date"},
		{name: "bad amount", req: ListRequest{MinAmount: "ten"}, wantErr: "min_amount invalid"},
		{name: "inverted amounts", req: ListRequest{MinAmount: "5", MaxAmount: "1"}, wantErr: "max_amount must not be less than min_amount"},
		{name: "unknown type", req: ListRequest{TransactionType: "REFUND"}, wantErr: "not a known transaction type"},
		{name: "negative page", req: ListRequest{Page: -1}, wantErr: "must not be negative"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := svc.ParseFilter(tt.req)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Equal(t, codes.InvalidArgument, status.Code(err))
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			tt.check(t, f)
		})
	}
}

func TestListTransactions(t *testing.T) {
	base := time.Date(2025, 11, 1, 10, 0, 0, 0, lima)
	var seed []*entity.Transaction
	for i := range 25 {
		kind := "TE PAGÓ"
		if i%5 == 0 {
			kind = "PAGASTE"
		}
		seed = append(seed, tx(kind, fmt.Sprintf("Cliente %02d", i), fmt.Sprintf("%d.50", i+1), base.Add(time.Duration(i)*time.Hour)))
	}
	svc := newTestService(t, seed)
	ctx := context.Background()

	page, err := svc.ListTransactions(ctx, ListRequest{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 2, page.Page)
	require.Len(t, page.Transactions, 10)
	assert.Equal(t, "Cliente 10", page.Transactions[0].Origin)

	paid, err := svc.ListTransactions(ctx, ListRequest{TransactionType: "PAGASTE"})
	require.NoError(t, err)
	assert.Equal(t, 5, paid.Total)

	day, err := svc.ListTransactions(ctx, ListRequest{FromDate: "2025-11-02", ToDate: "2025-11-02"})
	require.NoError(t, err)
	assert.Equal(t, 11, day.Total)

	search, err := svc.ListTransactions(ctx, ListRequest{Search: "cliente 1"})
	require.NoError(t, err)
	assert.Equal(t, 10, search.Total)
}

func TestGetTransaction(t *testing.T) {
	svc := newTestService(t, []*entity.Transaction{
		tx("TE PAGÓ", "Ana P.", "10", time.Date(2025, 11, 1, 10, 0, 0, 0, lima)),
	})
	ctx := context.Background()

	got, err := svc.GetTransaction(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Ana P.", got.Origin)

	_, err = svc.GetTransaction(ctx, 99)
	assert.Equal(t, codes.NotFound, status.Code(err))

	_, err = svc.GetTransaction(ctx, 0)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

func TestStatisticsAndHistory(t *testing.T) {
	at := time.Date(2025, 11, 1, 10, 0, 0, 0, lima)
	svc := newTestService(t, []*entity.Transaction{
		tx("TE PAGÓ", "Ana P.", "10.50", at),
		tx("TE PAGÓ", "Rosa T.", "4.50", at),
		tx("PAGASTE", "Luis R.", "5", at.Add(time.Hour)),
	})
	ctx := context.Background()

	stats, err := svc.Statistics(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.TotalTransactions)
	assert.Equal(t, int64(2), stats.ReceivedCount)
	assert.Equal(t, "15", stats.TotalReceived.String())
	assert.Equal(t, "10", stats.Balance.String())

	history, err := svc.UploadHistory(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}
