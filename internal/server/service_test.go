package server

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/export"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
	"github.com/joseph-ayodele/yape-tracker/internal/services/upload"
	"github.com/joseph-ayodele/yape-tracker/internal/transactions"
	"github.com/joseph-ayodele/yape-tracker/internal/workbook/workbooktest"
)

const reportName = "ReporteTransacciones+51922076456.xlsx"

var lima = time.FixedZone("PET", -5*3600)

func startServer(t *testing.T) (*ImportServiceClient, *grpc.ClientConn) {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	dsn := "file:" + filepath.Join(t.TempDir(), "yape.db") +
		"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"
	db, err := ConnectDB(ctx, common.DatabaseConfig{Driver: "sqlite", DSN: dsn}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { CloseDB(db, logger) })

	txRepo := repository.NewTransactionRepository(db, logger)
	historyRepo := repository.NewUploadHistoryRepository(db, logger)
	uploads, err := upload.NewService(txRepo, historyRepo, upload.Options{Location: lima}, logger)
	require.NoError(t, err)
	svc := NewImportService(
		uploads,
		transactions.NewService(txRepo, historyRepo, lima, logger),
		export.NewService(txRepo, lima, logger),
		logger,
	)

	lis := bufconn.Listen(1 << 20)
	s, _ := NewGRPCServer(svc, logger)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewImportServiceClient(conn), conn
}

func uploadRequest(t *testing.T, fileName string, content []byte) *structpb.Struct {
	t.Helper()
	req, err := structpb.NewStruct(map[string]any{
		"file_name": fileName,
		"content":   base64.StdEncoding.EncodeToString(content),
	})
	require.NoError(t, err)
	return req
}

func scenario(t *testing.T) []byte {
	tx := workbooktest.Tx
	return workbooktest.Build(t, workbooktest.Report{Rows: [][]any{
		tx("TE PAGÓ", "Ana P.", "Luis R.", "10,00", "almuerzo", "01/11/2025 10:00:00"),
		tx("PAGASTE", "Luis R.", "Ana P.", 20, "", "01/11/2025 11:00:00"),
		tx("TE PAGÓ", "Ana P.", "Luis R.", -3, "", "01/11/2025 12:00:00"),
		tx("TE PAGÓ", "Ana P.", "Luis R.", 10, "repetido", "01/11/2025 10:00:00"),
	}})
}

func TestImportService_ValidateThenConfirm(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()
	req := uploadRequest(t, reportName, scenario(t))

	var header metadata.MD
	preview, err := client.Call(ctx, MethodValidateUpload, req, grpc.Header(&header))
	require.NoError(t, err)
	assert.NotEmpty(t, header.Get(RequestIDHeader))

	m := preview.AsMap()
	assert.Equal(t, float64(4), m["totalRecords"])
	assert.Equal(t, float64(2), m["validRecords"])
	assert.Equal(t, float64(1), m["invalidRecords"])
	assert.Equal(t, float64(1), m["duplicateRecords"])

	confirmed, err := client.Call(ctx, MethodConfirmUpload, req)
	require.NoError(t, err)
	assert.Equal(t, float64(2), confirmed.AsMap()["savedCount"])

	list, err := client.Call(ctx, MethodListTransactions, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), list.AsMap()["total"])

	stats, err := client.Call(ctx, MethodGetStatistics, nil)
	require.NoError(t, err)
	assert.Equal(t, float64(2), stats.AsMap()["total_transactions"])

	history, err := client.Call(ctx, MethodListUploadHistory, nil)
	require.NoError(t, err)
	uploads, ok := history.AsMap()["uploads"].([]any)
	require.True(t, ok)
	assert.Len(t, uploads, 1)

	one, err := structpb.NewStruct(map[string]any{"id": 1})
	require.NoError(t, err)
	got, err := client.Call(ctx, MethodGetTransaction, one)
	require.NoError(t, err)
	assert.Equal(t, "Ana P.", got.AsMap()["origin"])
}

func TestImportService_RejectsBadRequests(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	tests := []struct {
		name    string
		method  string
		req     *structpb.Struct
		code    codes.Code
		message string
	}{
		{
			name:    "wrong extension",
			method:  MethodValidateUpload,
			req:     uploadRequest(t, "report.csv", []byte("a,b")),
			code:    codes.InvalidArgument,
			message: "file must be an Excel file (.xlsx)",
		},
		{
			name:    "empty content",
			method:  MethodConfirmUpload,
			req:     uploadRequest(t, reportName, nil),
			code:    codes.InvalidArgument,
			message: "content",
		},
		{
			name:    "not a workbook",
			method:  MethodConfirmUpload,
			req:     uploadRequest(t, reportName, []byte("not a workbook")),
			code:    codes.InvalidArgument,
			message: common.ErrUnreadableWorkbook.Error(),
		},
		{
			name:    "missing headers",
			method:  MethodValidateUpload,
			req:     uploadRequest(t, reportName, workbooktest.Build(t, workbooktest.Report{Headers: []string{"Origen", "Destino"}, Rows: [][]any{{"a", "b"}}})),
			code:    codes.InvalidArgument,
			message: "Expected:",
		},
		{
			name:   "bad date filter",
			method: MethodListTransactions,
			req:    mustStruct(t, map[string]any{"from_date": "yesterday"}),
			code:   codes.InvalidArgument,
		},
		{
			name:   "fractional page",
			method: MethodListTransactions,
			req:    mustStruct(t, map[string]any{"page": 1.5}),
			code:   codes.InvalidArgument,
		},
		{
			name:   "unknown transaction",
			method: MethodGetTransaction,
			req:    mustStruct(t, map[string]any{"id": 42}),
			code:   codes.NotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := client.Call(ctx, tt.method, tt.req)
			require.Error(t, err)
			st, _ := status.FromError(err)
			assert.Equal(t, tt.code, st.Code())
			assert.Contains(t, st.Message(), tt.message)
		})
	}
}

func TestImportService_ExportRoundTrip(t *testing.T) {
	client, _ := startServer(t)
	ctx := context.Background()

	_, err := client.Call(ctx, MethodConfirmUpload, uploadRequest(t, reportName, scenario(t)))
	require.NoError(t, err)

	exported, err := client.Call(ctx, MethodExportTransactions, nil)
	require.NoError(t, err)
	assert.Equal(t, constants.XLSXContentType, exported.AsMap()["content_type"])
	content, err := base64.StdEncoding.DecodeString(exported.AsMap()["content"].(string))
	require.NoError(t, err)

	again, err := client.Call(ctx, MethodConfirmUpload, uploadRequest(t, "export.xlsx", content))
	require.NoError(t, err)
	assert.Equal(t, float64(0), again.AsMap()["savedCount"])
}

func TestHealth(t *testing.T) {
	_, conn := startServer(t)

	resp, err := grpc_health_v1.NewHealthClient(conn).Check(context.Background(), &grpc_health_v1.HealthCheckRequest{Service: ServiceName})
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.GetStatus())
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	require.NoError(t, err)
	return s
}

func TestNewGRPCServer_Services(t *testing.T) {
	s, _ := NewGRPCServer(nil, slog.New(slog.DiscardHandler))
	t.Cleanup(s.Stop)

	info := s.GetServiceInfo()
	assert.Len(t, info, 2)
	assert.Contains(t, info, grpc_health_v1.Health_ServiceDesc.ServiceName)

	svc, ok := info[ServiceName]
	require.True(t, ok)
	assert.Len(t, svc.Methods, 7)
	assert.Nil(t, svc.Metadata)
}
