package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	_ "time/tzdata"

	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/export"
	"github.com/joseph-ayodele/yape-tracker/internal/ingest"
	"github.com/joseph-ayodele/yape-tracker/internal/pipeline"
	repo "github.com/joseph-ayodele/yape-tracker/internal/repository"
	"github.com/joseph-ayodele/yape-tracker/internal/server"
	"github.com/joseph-ayodele/yape-tracker/internal/services/upload"
	"github.com/joseph-ayodele/yape-tracker/internal/transactions"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	os.Exit(run())
}

func run() int {
	// Parse CLI flags
	var (
		file    = flag.String("file", "", "Yape report (.xlsx) to import")
		dir     = flag.String("dir", "", "directory of Yape reports to import")
		confirm = flag.Bool("confirm", false, "persist the import; without it files are only validated")
		out     = flag.String("export", "", "write stored transactions to this XLSX path")
		fromStr = flag.String("from", "", "export from date YYYY-MM-DD")
		toStr   = flag.String("to", "", "export to date YYYY-MM-DD")
		verbose = flag.Bool("v", false, "log pipeline progress to stderr")
	)
	flag.Parse()

	if *file == "" && *dir == "" && *out == "" {
		printError("Error: one of --file, --dir or --export is required\n")
		flag.Usage()
		return 1
	}
	if *file != "" && *dir != "" {
		printError("Error: --file and --dir are mutually exclusive\n")
		return 1
	}

	// Setup logger
	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx := context.Background()
	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		printError("Error: %v\n", err)
		return 2
	}
	loc := cfg.Import.Location()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		printError("Error: opening database: %v\n", err)
		return 1
	}
	defer server.CloseDB(db, logger)

	txRepo := repo.NewTransactionRepository(db, logger)
	historyRepo := repo.NewUploadHistoryRepository(db, logger)
	uploads, err := upload.NewService(txRepo, historyRepo, upload.Options{
		BatchSize:     cfg.Import.BatchSize,
		Location:      loc,
		CheckExisting: cfg.Import.CheckExisting,
	}, logger)
	if err != nil {
		printError("Error: %v\n", err)
		return 1
	}

	exitCode := 0
	switch {
	case *file != "":
		exitCode = importFile(ctx, uploads, *file, *confirm)
	case *dir != "":
		exitCode = importDir(ctx, uploads, historyRepo, *dir, *confirm, logger)
	}

	if *out != "" {
		txService := transactions.NewService(txRepo, historyRepo, loc, logger)
		filter, err := txService.ParseFilter(transactions.ListRequest{FromDate: *fromStr, ToDate: *toStr})
		if err != nil {
			printError("Error: %v\n", err)
			return 1
		}
		xlsx, err := export.NewService(txRepo, loc, logger).ExportTransactionsXLSX(ctx, filter)
		if err != nil {
			printError("Error: exporting transactions: %v\n", err)
			return 1
		}
		if err := os.WriteFile(*out, xlsx, 0o644); err != nil {
			printError("Error: writing %s: %v\n", *out, err)
			return 1
		}
		fmt.Fprintf(os.Stderr, "Exported transactions to %s\n", *out)
	}
	return exitCode
}

type fileReport struct {
	File       string                 `json:"file"`
	Validation *pipeline.UploadResult `json:"validation,omitempty"`
	Confirm    *upload.ConfirmResult  `json:"confirm,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

func importFile(ctx context.Context, uploads *upload.Service, path string, confirm bool) int {
	report := fileReport{File: path}
	content, err := os.ReadFile(path)
	if err != nil {
		report.Error = err.Error()
		printJSON(report)
		return 1
	}
	name := filepath.Base(path)
	if err := common.ValidateAndReturnError(common.NewValidator().
		Field("file", name, common.SpreadsheetFileName).
		Field("content", content, common.Required)); err != nil {
		report.Error = err.Error()
		printJSON(report)
		return 1
	}

	report.Validation, err = uploads.Validate(ctx, content, name)
	if err != nil {
		report.Error = err.Error()
		printJSON(report)
		return 1
	}
	if confirm {
		report.Confirm, err = uploads.Confirm(ctx, content, name)
		if err != nil {
			report.Error = err.Error()
			printJSON(report)
			return 1
		}
	}
	printJSON(report)
	return 0
}

func importDir(ctx context.Context, uploads *upload.Service, history ingest.HistoryLookup, dir string, confirm bool, logger *slog.Logger) int {
	if confirm {
		results, stats, err := ingest.NewFSIngestor(uploads, history, nil, logger).IngestDirectory(ctx, dir, true)
		printJSON(map[string]any{"stats": stats, "results": results})
		if err != nil || stats.Failed > 0 {
			return 1
		}
		return 0
	}

	var reports []fileReport
	code := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path != dir && ingest.IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !ingest.AllowedExt(filepath.Ext(path)) {
			return nil
		}
		report := fileReport{File: path}
		content, err := os.ReadFile(path)
		if err == nil {
			report.Validation, err = uploads.Validate(ctx, content, filepath.Base(path))
		}
		if err != nil {
			report.Error = err.Error()
			code = 1
		}
		reports = append(reports, report)
		return nil
	})
	if err != nil {
		printError("Error: walking %s: %v\n", dir, err)
		return 1
	}
	printJSON(reports)
	return code
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		printError("Error: encoding output: %v\n", err)
	}
}
