package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/workbook"
)

// ParseResult holds the per-row outcome of one sheet.
type ParseResult struct {
	TotalRecords int
	Records      []ParsedRecord
	Errors       []RowError
	Skipped      []SkippedRow
	PhoneNumber  *string
}

// Parser maps data rows through the row schema, isolating row failures.
type Parser struct {
	schema *RowSchema
	logger *slog.Logger
}

// NewParser creates a row parser reading operation dates in loc.
func NewParser(loc *time.Location, logger *slog.Logger) (*Parser, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema, err := NewRowSchema(loc)
	if err != nil {
		return nil, err
	}
	return &Parser{schema: schema, logger: logger}, nil
}

// Parse classifies every data row of sheet as empty, invalid or valid. It
// fails with ErrNoValidData when no row is valid.
func (p *Parser) Parse(sheet *workbook.Sheet, columns ColumnMap, fileName string) (*ParseResult, error) {
	phone := ExtractPhoneNumber(fileName)
	res := &ParseResult{
		Records:     make([]ParsedRecord, 0, len(sheet.Rows)),
		Errors:      []RowError{},
		Skipped:     []SkippedRow{},
		PhoneNumber: phone,
	}

	for _, row := range sheet.Rows {
		if row.IsEmpty() {
			res.Skipped = append(res.Skipped, SkippedRow{Row: row.Number, Reason: constants.EmptyRowReason})
			continue
		}
		res.TotalRecords++

		rec, err := p.schema.Parse(rowFields(row, columns))
		if err != nil {
			res.Errors = append(res.Errors, RowError{Row: row.Number, Error: err.Error()})
			p.logger.Warn("row validation failed", "file_name", fileName, "row", row.Number, "error", err)
			continue
		}
		rec.Row = row.Number
		rec.PhoneNumber = phone
		res.Records = append(res.Records, *rec)
	}

	if len(res.Records) == 0 {
		p.logger.Warn("no valid rows", "file_name", fileName, "invalid", len(res.Errors), "empty", len(res.Skipped))
		return nil, fmt.Errorf("%w: %d invalid rows, %d empty rows", common.ErrNoValidData, len(res.Errors), len(res.Skipped))
	}
	return res, nil
}

// rowFields builds the label→value map of one row. Blank cells are left out
// so the schema reports them as missing.
func rowFields(row workbook.Row, columns ColumnMap) map[string]any {
	fields := make(map[string]any, len(columns))
	for label, col := range columns {
		cell := row.Cell(col)
		if cell.IsBlank() {
			continue
		}
		switch {
		case label == constants.HeaderAmount && cell.Kind == workbook.CellNumber:
			fields[label] = json.Number(cell.Text)
		case cell.Kind == workbook.CellDate:
			fields[label] = cell.Time.Format(constants.OperationDateLayout)
		default:
			fields[label] = strings.TrimSpace(cell.Text)
		}
	}
	return fields
}
