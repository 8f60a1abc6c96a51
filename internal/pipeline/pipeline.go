// Package pipeline turns an uploaded Yape report into typed records and an
// import report.
package pipeline

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/yape-tracker/internal/workbook"
)

// Outcome is everything one pipeline run derives from a file.
type Outcome struct {
	Result      UploadResult
	Unique      []ParsedRecord
	PhoneNumber *string
}

// Pipeline chains the workbook reader, header check, row parser and
// duplicate detector. It holds no per-file state.
type Pipeline struct {
	reader *workbook.Reader
	parser *Parser
	logger *slog.Logger
}

// New creates a pipeline reading operation dates in loc.
func New(loc *time.Location, logger *slog.Logger) (*Pipeline, error) {
	if logger == nil {
		logger = slog.Default()
	}
	parser, err := NewParser(loc, logger)
	if err != nil {
		return nil, fmt.Errorf("build row parser: %w", err)
	}
	return &Pipeline{
		reader: workbook.NewReader(logger),
		parser: parser,
		logger: logger,
	}, nil
}

// Run processes content. Structural failures are returned as errors and no
// partial result is produced.
func (p *Pipeline) Run(content []byte, fileName string) (*Outcome, error) {
	sheet, err := p.reader.Read(content)
	if err != nil {
		return nil, err
	}

	columns, err := ResolveHeaders(sheet.HeaderLabels())
	if err != nil {
		p.logger.Warn("invalid headers", "file_name", fileName, "sheet", sheet.Name, "error", err)
		return nil, err
	}

	parsed, err := p.parser.Parse(sheet, columns, fileName)
	if err != nil {
		return nil, err
	}

	dups := DetectDuplicates(parsed.Records)

	out := &Outcome{
		Result: UploadResult{
			TotalRecords:      parsed.TotalRecords,
			ValidRecords:      len(dups.Unique),
			InvalidRecords:    len(parsed.Errors),
			DuplicateRecords:  len(dups.Duplicates),
			SkippedEmptyRows:  len(parsed.Skipped),
			SkippedRowDetails: parsed.Skipped,
			Duplicates:        dups.Duplicates,
			Errors:            parsed.Errors,
		},
		Unique:      dups.Unique,
		PhoneNumber: parsed.PhoneNumber,
	}

	p.logger.Info("pipeline completed",
		"file_name", fileName,
		"total", out.Result.TotalRecords,
		"valid", out.Result.ValidRecords,
		"invalid", out.Result.InvalidRecords,
		"duplicates", out.Result.DuplicateRecords,
		"empty", out.Result.SkippedEmptyRows,
	)
	return out, nil
}
