package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// SchedulerConfig configures periodic inbox ingestion.
type SchedulerConfig struct {
	Root       string
	Schedule   string
	SkipHidden bool
	Location   *time.Location
	RunTimeout time.Duration
}

// Scheduler runs IngestDirectory over an inbox on a cron schedule. A run
// that is still going when the next one is due makes that one skip.
type Scheduler struct {
	cron     *cron.Cron
	ingestor Ingestor
	cfg      SchedulerConfig
	logger   *slog.Logger

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler validates cfg.Schedule and prepares the job. Nothing runs
// until Start.
func NewScheduler(ing Ingestor, cfg SchedulerConfig, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Root == "" {
		return nil, fmt.Errorf("inbox directory is required")
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.RunTimeout <= 0 {
		cfg.RunTimeout = 5 * time.Minute
	}

	cronLogger := cronLogger{logger: logger.With("component", "inbox_scheduler")}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(cfg.Location),
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		ingestor: ing,
		cfg:      cfg,
		logger:   logger,
		ctx:      context.Background(),
	}
	if _, err := s.cron.AddFunc(cfg.Schedule, s.run); err != nil {
		return nil, fmt.Errorf("unable to schedule inbox ingestion %q: %w", cfg.Schedule, err)
	}
	return s, nil
}

// Start begins scheduling. Runs are cancelled when ctx is done.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.cron.Start()
	s.logger.Info("inbox scheduler started", "root", s.cfg.Root, "schedule", s.cfg.Schedule)
}

// Stop halts scheduling and waits for a running ingestion to finish or for
// ctx to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		s.mu.Lock()
		if s.cancel != nil {
			s.cancel()
		}
		s.mu.Unlock()
	}
	s.logger.Info("inbox scheduler stopped")
}

// RunOnce ingests the inbox immediately.
func (s *Scheduler) RunOnce(ctx context.Context) (DirStats, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	start := time.Now()
	_, stats, err := s.ingestor.IngestDirectory(ctx, s.cfg.Root, s.cfg.SkipHidden)
	if err != nil {
		s.logger.Error("inbox.run.failed", "root", s.cfg.Root, "error", err)
		return stats, err
	}
	s.logger.Info("inbox.run.ok",
		"root", s.cfg.Root,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"deduplicated", stats.Deduplicated,
		"failed", stats.Failed,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return stats, nil
}

func (s *Scheduler) run() {
	s.mu.Lock()
	ctx := s.ctx
	s.mu.Unlock()
	_, _ = s.RunOnce(ctx)
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
