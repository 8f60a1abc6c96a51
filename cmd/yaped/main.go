package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joseph-ayodele/yape-tracker/internal/common"
	"github.com/joseph-ayodele/yape-tracker/internal/export"
	"github.com/joseph-ayodele/yape-tracker/internal/ingest"
	"github.com/joseph-ayodele/yape-tracker/internal/metrics"
	repo "github.com/joseph-ayodele/yape-tracker/internal/repository"
	svc "github.com/joseph-ayodele/yape-tracker/internal/server"
	"github.com/joseph-ayodele/yape-tracker/internal/services/upload"
	"github.com/joseph-ayodele/yape-tracker/internal/transactions"
)

func main() {
	// Setup structured logger that outputs messages with variables but no time
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			return a
		},
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	addr := cfg.Server.GRPCAddr
	if !strings.Contains(addr, ":") {
		addr = ":" + addr
	}
	loc := cfg.Import.Location()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := svc.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database", "error", err, "driver", cfg.Database.Driver)
		os.Exit(1)
	}
	defer svc.CloseDB(db, logger)

	recorder := metrics.NewRecorder()

	txRepo := repo.NewTransactionRepository(db, logger)
	historyRepo := repo.NewUploadHistoryRepository(db, logger)

	uploads, err := upload.NewService(txRepo, historyRepo, upload.Options{
		BatchSize:     cfg.Import.BatchSize,
		Location:      loc,
		CheckExisting: cfg.Import.CheckExisting,
		Metrics:       recorder,
	}, logger)
	if err != nil {
		logger.Error("failed to build upload service", "error", err)
		os.Exit(1)
	}
	importService := svc.NewImportService(
		uploads,
		transactions.NewService(txRepo, historyRepo, loc, logger),
		export.NewService(txRepo, loc, logger),
		logger,
	)

	// gRPC server
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", addr, "error", err)
		os.Exit(1)
	}
	grpcServer, healthServer := svc.NewGRPCServer(importService, logger)

	// Metrics endpoint
	var metricsServer *http.Server
	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", recorder.Handler())
		metricsServer = &http.Server{Addr: cfg.Server.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr)
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics serve error", "error", err)
			}
		}()
	}

	// Inbox scheduler
	var scheduler *ingest.Scheduler
	if cfg.Inbox.Dir != "" {
		ingestor := ingest.NewFSIngestor(uploads, historyRepo, recorder, logger)
		scheduler, err = ingest.NewScheduler(ingestor, ingest.SchedulerConfig{
			Root:       cfg.Inbox.Dir,
			Schedule:   cfg.Inbox.Schedule,
			SkipHidden: cfg.Inbox.SkipHidden,
			Location:   loc,
		}, logger)
		if err != nil {
			logger.Error("failed to configure inbox scheduler", "error", err)
			os.Exit(1)
		}
		scheduler.Start(ctx)
	}

	logger.Info("yaped listening", "addr", addr, "db_driver", cfg.Database.Driver, "timezone", loc.String())
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("gRPC serve error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if scheduler != nil {
		scheduler.Stop(shutdownCtx)
	}
	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	grpcServer.GracefulStop()
}
