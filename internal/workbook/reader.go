// Package workbook opens Yape report spreadsheets and exposes their header
// and data rows as typed cells.
package workbook

import (
	"bytes"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/yape-tracker/constants"
	"github.com/joseph-ayodele/yape-tracker/internal/common"
)

// CellKind is the decoded type of a spreadsheet cell.
type CellKind int

const (
	CellEmpty CellKind = iota
	CellString
	CellNumber
	CellDate
)

func (k CellKind) String() string {
	switch k {
	case CellString:
		return "string"
	case CellNumber:
		return "number"
	case CellDate:
		return "date"
	default:
		return "empty"
	}
}

// Cell is one decoded cell. Text holds the raw value: the string itself, or
// the numeric literal for numbers and dates. Time is only set for dates and
// carries the wall clock of the cell in UTC.
type Cell struct {
	Kind CellKind
	Text string
	Time time.Time
}

// IsBlank reports whether the cell has no content or only whitespace.
func (c Cell) IsBlank() bool {
	return c.Kind == CellEmpty || strings.TrimSpace(c.Text) == ""
}

// Row is a data row with its 1-based spreadsheet row number.
type Row struct {
	Number int
	Cells  []Cell
}

// Cell returns the cell at the 0-based column, or an empty cell past the row's end.
func (r Row) Cell(col int) Cell {
	if col < 0 || col >= len(r.Cells) {
		return Cell{}
	}
	return r.Cells[col]
}

// IsEmpty reports whether every cell of the row is blank.
func (r Row) IsEmpty() bool {
	for _, c := range r.Cells {
		if !c.IsBlank() {
			return false
		}
	}
	return true
}

// Sheet is the extracted content of the first worksheet.
type Sheet struct {
	Name   string
	Header []Cell
	Rows   []Row
}

// HeaderLabels returns the header cells as trimmed strings, position preserved.
func (s *Sheet) HeaderLabels() []string {
	labels := make([]string, len(s.Header))
	for i, c := range s.Header {
		labels[i] = strings.TrimSpace(c.Text)
	}
	return labels
}

// Reader decodes workbook bytes.
type Reader struct {
	logger *slog.Logger
}

// NewReader creates a workbook reader.
func NewReader(logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{logger: logger}
}

// Read opens content as an .xlsx workbook and extracts the header row and
// every row after it from the first worksheet.
func (r *Reader) Read(content []byte) (*Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		r.logger.Warn("workbook.open.failed", "size", len(content), "error", err)
		return nil, fmt.Errorf("%w: %v", common.ErrUnreadableWorkbook, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil {
			r.logger.Debug("workbook.close.failed", "error", cerr)
		}
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, common.ErrWorksheetNotFound
	}
	name := sheets[0]

	rows, err := readRows(f, name)
	if err != nil {
		return nil, fmt.Errorf("%w: read sheet %q: %v", common.ErrUnreadableWorkbook, name, err)
	}
	if len(rows) < constants.MinSheetRows {
		r.logger.Warn("workbook.too_short", "sheet", name, "rows", len(rows))
		return nil, common.ErrNoValidData
	}

	d := &decoder{f: f, sheet: name, date1904: uses1904(f)}

	sheet := &Sheet{
		Name:   name,
		Header: d.row(constants.HeaderRowIndex+1, rows[constants.HeaderRowIndex]),
		Rows:   make([]Row, 0, len(rows)-constants.HeaderRowIndex-1),
	}
	for i := constants.HeaderRowIndex + 1; i < len(rows); i++ {
		number := i + 1
		sheet.Rows = append(sheet.Rows, Row{Number: number, Cells: d.row(number, rows[i])})
	}

	r.logger.Debug("workbook.read", "sheet", name, "data_rows", len(sheet.Rows))
	return sheet, nil
}

// readRows returns every row of the sheet as raw cell values. Unlike GetRows
// it keeps trailing rows whose cells are all blank, and pads up to the last
// row of the declared sheet dimension.
func readRows(f *excelize.File, sheet string) ([][]string, error) {
	iter, err := f.Rows(sheet)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var rows [][]string
	for iter.Next() {
		cols, err := iter.Columns(excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, err
		}
		rows = append(rows, cols)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}

	for last := dimensionLastRow(f, sheet); len(rows) < last; {
		rows = append(rows, nil)
	}
	return rows, nil
}

// dimensionLastRow reads the bottom row of the sheet's dimension ref, or 0
// when the sheet declares none.
func dimensionLastRow(f *excelize.File, sheet string) int {
	ref, err := f.GetSheetDimension(sheet)
	if err != nil || ref == "" {
		return 0
	}
	cells := strings.Split(ref, ":")
	_, row, err := excelize.CellNameToCoordinates(cells[len(cells)-1])
	if err != nil {
		return 0
	}
	return row
}

func uses1904(f *excelize.File) bool {
	props, err := f.GetWorkbookProps()
	if err != nil || props.Date1904 == nil {
		return false
	}
	return *props.Date1904
}

type decoder struct {
	f        *excelize.File
	sheet    string
	date1904 bool
}

func (d *decoder) row(number int, raw []string) []Cell {
	cells := make([]Cell, len(raw))
	for col, v := range raw {
		cells[col] = d.cell(col+1, number, v)
	}
	return cells
}

func (d *decoder) cell(col, row int, raw string) Cell {
	if raw == "" {
		return Cell{Kind: CellEmpty}
	}
	axis, err := excelize.CoordinatesToCellName(col, row)
	if err != nil {
		return Cell{Kind: CellString, Text: raw}
	}

	typ, err := d.f.GetCellType(d.sheet, axis)
	if err != nil {
		return Cell{Kind: CellString, Text: raw}
	}
	switch typ {
	case excelize.CellTypeUnset, excelize.CellTypeNumber:
	default:
		return Cell{Kind: CellString, Text: raw}
	}

	serial, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return Cell{Kind: CellString, Text: raw}
	}
	if d.isDateStyled(axis) {
		if t, err := excelize.ExcelDateToTime(serial, d.date1904); err == nil {
			return Cell{Kind: CellDate, Text: raw, Time: t.Round(time.Second)}
		}
	}
	return Cell{Kind: CellNumber, Text: raw}
}

func (d *decoder) isDateStyled(axis string) bool {
	idx, err := d.f.GetCellStyle(d.sheet, axis)
	if err != nil || idx == 0 {
		return false
	}
	style, err := d.f.GetStyle(idx)
	if err != nil || style == nil {
		return false
	}
	if style.CustomNumFmt != nil {
		return isDateFormatCode(*style.CustomNumFmt)
	}
	return isBuiltInDateFormat(style.NumFmt)
}

func isBuiltInDateFormat(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58,
		id >= 71 && id <= 81:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom number format renders a date or time.
// Quoted literals, escaped characters and bracketed modifiers are ignored.
func isDateFormatCode(code string) bool {
	var b strings.Builder
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case inQuote:
			inQuote = ch != '"'
		case inBracket:
			inBracket = ch != ']'
		case ch == '"':
			inQuote = true
		case ch == '[':
			inBracket = true
		case ch == '\\':
			i++
		default:
			b.WriteByte(ch)
		}
	}
	plain := strings.ToLower(b.String())
	if plain == "general" {
		return false
	}
	return strings.ContainsAny(plain, "ymdhs")
}
