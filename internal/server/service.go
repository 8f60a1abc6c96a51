package server

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/export"
	"github.com/joseph-ayodele/yape-tracker/internal/services/upload"
	"github.com/joseph-ayodele/yape-tracker/internal/transactions"
)

// MaxUploadBytes caps the decoded size of an uploaded workbook.
const MaxUploadBytes = 10 << 20

// ImportService implements ImportServiceServer on top of the upload,
// transaction and export services.
type ImportService struct {
	uploads      *upload.Service
	transactions *transactions.Service
	exports      *export.Service
	logger       *slog.Logger
}

var _ ImportServiceServer = (*ImportService)(nil)

func NewImportService(uploads *upload.Service, txs *transactions.Service, exports *export.Service, logger *slog.Logger) *ImportService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportService{
		uploads:      uploads,
		transactions: txs,
		exports:      exports,
		logger:       logger,
	}
}

// ValidateUpload previews an import: {file_name, content} -> UploadResult.
func (s *ImportService) ValidateUpload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileName, content, err := s.uploadRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := s.uploads.Validate(ctx, content, fileName)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(res)
}

// ConfirmUpload persists an import: {file_name, content} -> {savedCount, uploadHistoryId}.
func (s *ImportService) ConfirmUpload(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	fileName, content, err := s.uploadRequest(ctx, req)
	if err != nil {
		return nil, err
	}
	res, err := s.uploads.Confirm(ctx, content, fileName)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return toStruct(res)
}

func (s *ImportService) ListTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	listReq, err := listRequest(req)
	if err != nil {
		return nil, err
	}
	res, err := s.transactions.ListTransactions(ctx, listReq)
	if err != nil {
		return nil, err
	}
	return toStruct(res)
}

func (s *ImportService) GetTransaction(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	id, err := intField(req, "id")
	if err != nil {
		return nil, err
	}
	tx, err := s.transactions.GetTransaction(ctx, int64(id))
	if err != nil {
		return nil, err
	}
	return toStruct(tx)
}

func (s *ImportService) GetStatistics(ctx context.Context, _ *structpb.Struct) (*structpb.Struct, error) {
	stats, err := s.transactions.Statistics(ctx)
	if err != nil {
		return nil, err
	}
	return toStruct(stats)
}

func (s *ImportService) ListUploadHistory(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	limit, err := intField(req, "limit")
	if err != nil {
		return nil, err
	}
	uploads, err := s.transactions.UploadHistory(ctx, limit)
	if err != nil {
		return nil, err
	}
	return toStruct(map[string]any{"uploads": uploads})
}

// ExportTransactions returns matching transactions as a base64 encoded workbook.
func (s *ImportService) ExportTransactions(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	listReq, err := listRequest(req)
	if err != nil {
		return nil, err
	}
	filter, err := s.transactions.ParseFilter(listReq)
	if err != nil {
		return nil, err
	}
	xlsx, err := s.exports.ExportTransactionsXLSX(ctx, filter)
	if err != nil {
		common.LoggerWithContext(ctx, s.logger).Error("export.xlsx.failed", "error", err)
		return nil, common.InternalError(err.Error())
	}
	return toStruct(map[string]any{
		"file_name":    "transacciones.xlsx",
		"content_type": constants.XLSXContentType,
		"content":      base64.StdEncoding.EncodeToString(xlsx),
	})
}

// uploadRequest extracts and validates {file_name, content}.
func (s *ImportService) uploadRequest(ctx context.Context, req *structpb.Struct) (string, []byte, error) {
	logger := common.LoggerWithContext(ctx, s.logger)
	fileName := strings.TrimSpace(stringField(req, "file_name"))
	encoded := stringField(req, "content")

	v := common.NewValidator().
		Field("file_name", fileName, common.Required, common.MaxLength(255), common.SpreadsheetFileName).
		Field("content", encoded, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		logger.Warn("invalid upload request", "file_name", fileName, "error", v.ErrorMessage())
		return "", nil, err
	}

	content, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		logger.Warn("upload content is not base64", "file_name", fileName, "error", err)
		return "", nil, common.InvalidArgumentError("content must be base64 encoded")
	}
	v = common.NewValidator().Field("content", content, common.Required, common.MaxBytes(MaxUploadBytes))
	if err := common.ValidateAndReturnError(v); err != nil {
		logger.Warn("invalid upload request", "file_name", fileName, "error", v.ErrorMessage())
		return "", nil, err
	}
	return fileName, content, nil
}

func listRequest(req *structpb.Struct) (transactions.ListRequest, error) {
	page, err := intField(req, "page")
	if err != nil {
		return transactions.ListRequest{}, err
	}
	limit, err := intField(req, "limit")
	if err != nil {
		return transactions.ListRequest{}, err
	}
	return transactions.ListRequest{
		TransactionType: stringField(req, "transaction_type"),
		FromDate:        stringField(req, "from_date"),
		ToDate:          stringField(req, "to_date"),
		MinAmount:       stringField(req, "min_amount"),
		MaxAmount:       stringField(req, "max_amount"),
		Search:          stringField(req, "search"),
		Page:            page,
		Limit:           limit,
	}, nil
}

// stringField returns a string or number field as text, or "" when absent.
func stringField(req *structpb.Struct, key string) string {
	v, ok := req.GetFields()[key]
	if !ok {
		return ""
	}
	switch k := v.GetKind().(type) {
	case *structpb.Value_StringValue:
		return k.StringValue
	case *structpb.Value_NumberValue:
		return strconv.FormatFloat(k.NumberValue, 'f', -1, 64)
	default:
		return ""
	}
}

// intField returns a whole number field, or 0 when absent.
func intField(req *structpb.Struct, key string) (int, error) {
	v, ok := req.GetFields()[key]
	if !ok {
		return 0, nil
	}
	n, isNumber := v.GetKind().(*structpb.Value_NumberValue)
	if !isNumber || n.NumberValue != math.Trunc(n.NumberValue) || math.Abs(n.NumberValue) > math.MaxInt32 {
		return 0, common.InvalidArgumentErrorf("%s must be a whole number", key)
	}
	return int(n.NumberValue), nil
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, common.InternalErrorf("encode response: %v", err)
	}
	return out, nil
}
