// Package export renders stored transactions as a workbook in the Yape
// report layout, so an export can be imported again.
package export

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/entity"
	"github.com/joseph-ayodele/yape-tracker/internal/repository"
)

const sheetName = "Transacciones"

// Service is a tiny façade over the transaction repository that produces XLSX bytes.
type Service struct {
	txRepo   repository.TransactionRepository
	location *time.Location
	logger   *slog.Logger
}

// NewService creates an export service. Operation dates are written in loc.
func NewService(txRepo repository.TransactionRepository, loc *time.Location, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	return &Service{txRepo: txRepo, location: loc, logger: logger}
}

// ExportTransactionsXLSX returns every transaction matching filter as an XLSX
// workbook. Pagination fields of filter are ignored.
func (s *Service) ExportTransactionsXLSX(ctx context.Context, filter entity.TransactionFilter) ([]byte, error) {
	start := time.Now()

	txs, err := s.collect(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()
	if err := f.SetSheetName("Sheet1", sheetName); err != nil {
		return nil, fmt.Errorf("xlsx sheet: %w", err)
	}

	write := func(col, row int, v any) error {
		cell, err := excelize.CoordinatesToCellName(col, row)
		if err != nil {
			return err
		}
		return f.SetCellValue(sheetName, cell, v)
	}

	if err := write(1, 1, constants.ReportTitle); err != nil {
		return nil, fmt.Errorf("xlsx title: %w", err)
	}
	if err := write(1, 3, fmt.Sprintf("Exportado el %s", time.Now().In(s.location).Format(constants.OperationDateLayout))); err != nil {
		return nil, fmt.Errorf("xlsx title: %w", err)
	}
	headerRow := constants.HeaderRowIndex + 1
	for i, h := range constants.ExpectedHeaders {
		if err := write(i+1, headerRow, h); err != nil {
			return nil, fmt.Errorf("xlsx header: %w", err)
		}
	}

	amountStyle, err := f.NewStyle(&excelize.Style{NumFmt: 4}) // #,##0.00
	if err != nil {
		return nil, fmt.Errorf("xlsx style: %w", err)
	}

	row := constants.FirstDataRow
	for _, t := range txs {
		message := ""
		if t.Message != nil {
			message = *t.Message
		}
		values := []any{
			t.TransactionType,
			t.Origin,
			t.Destination,
			t.Amount.Round(2).InexactFloat64(),
			message,
			t.OperationDate.In(s.location).Format(constants.OperationDateLayout),
		}
		for col, v := range values {
			if err := write(col+1, row, v); err != nil {
				return nil, fmt.Errorf("xlsx row %d: %w", row, err)
			}
		}
		amountCell, _ := excelize.CoordinatesToCellName(4, row)
		if err := f.SetCellStyle(sheetName, amountCell, amountCell, amountStyle); err != nil {
			return nil, fmt.Errorf("xlsx row %d: %w", row, err)
		}
		row++
	}

	_ = f.SetColWidth(sheetName, "A", "A", 22) // type
	_ = f.SetColWidth(sheetName, "B", "C", 28) // origin, destination
	_ = f.SetColWidth(sheetName, "D", "D", 12) // amount
	_ = f.SetColWidth(sheetName, "E", "E", 40) // message
	_ = f.SetColWidth(sheetName, "F", "F", 20) // date

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}

	s.logger.Info("export.xlsx.ok",
		"rows", len(txs),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// collect pages through the repository until a short page.
func (s *Service) collect(ctx context.Context, filter entity.TransactionFilter) ([]*entity.Transaction, error) {
	filter.Page, filter.Limit = 1, entity.MaxPageLimit
	var all []*entity.Transaction
	for {
		page, err := s.txRepo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		all = append(all, page...)
		if len(page) < filter.Limit {
			return all, nil
		}
		filter.Page++
	}
}
