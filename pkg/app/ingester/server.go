// Package ingester implements app.Runner for the ingestion process.
package ingester

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/chainsafe/ledger-ingest/internal/metrics"
	"github.com/chainsafe/ledger-ingest/pkg/app/httpserver"
	"github.com/chainsafe/ledger-ingest/pkg/config"
	"github.com/chainsafe/ledger-ingest/pkg/db"
	"github.com/chainsafe/ledger-ingest/pkg/pgutil"
)

const defaultPushTimeout = 10 * time.Second

// Options selects what one invocation does
type Options struct {
	// Jobs limits the run to the named jobs. Empty means all configured jobs.
	Jobs []string
	// Latest fetches one page from the start and stores it without
	// touching any checkpoint.
	Latest bool
	// Serve keeps the process running, repeating every job on
	// Server.RunInterval and exposing the ops API.
	Serve bool
}

// Server holds configuration for the ingestion process.
type Server struct {
	cfg  *config.Config
	opts Options
}

// NewServer initializes a new ingestion Server.
func NewServer(cfg *config.Config, opts Options) *Server {
	return &Server{cfg: cfg, opts: opts}
}

// Run executes the selected jobs once, or until a shutdown signal in serve
// mode. The returned error is non-nil only for fatal job failures.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("nil config")
	}
	if s.opts.Serve && s.opts.Latest {
		return fmt.Errorf("latest and serve are mutually exclusive")
	}
	cfg := s.cfg

	jobCfgs, err := cfg.SelectJobs(s.opts.Jobs)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting ledger ingester",
		zap.Int("jobs", len(jobCfgs)),
		zap.Bool("latest", s.opts.Latest),
		zap.Bool("serve", s.opts.Serve))

	database, err := pgutil.ConnectDB(ctx, &cfg.Database)
	if err != nil {
		return fmt.Errorf("connect ingest db: %w", err)
	}
	store := db.NewStore(database, logger)
	defer func() { _ = store.Close() }()
	logger.Info("Database connection established",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database))

	jobs, err := buildJobs(ctx, jobCfgs, store, logger)
	if err != nil {
		return fmt.Errorf("build jobs: %w", err)
	}
	defer closeJobs(jobs)

	board := newStatusBoard(jobCfgs)

	if s.opts.Serve {
		return s.serve(ctx, jobs, board, store, logger)
	}

	runErr := runJobs(ctx, jobs, s.opts.Latest, board, logger)
	s.pushMetrics(logger)
	if runErr != nil {
		logger.Error("Ingestion finished with fatal errors", zap.Error(runErr))
		return runErr
	}
	logger.Info("Ingestion finished")
	return nil
}

func (s *Server) serve(ctx context.Context, jobs []*job, board *statusBoard, checkpoints CheckpointLister, logger *zap.Logger) error {
	router := newRouter(board, checkpoints, logger)
	httpServer := newHTTPServer(s.cfg.Server.Addr(), router)

	done := make(chan struct{})
	go func() {
		defer close(done)
		schedule(ctx, jobs, board, s.cfg.Server.RunInterval, logger)
	}()

	err := httpserver.ServeAndWait(ctx, logger, httpServer, s.cfg.Server.ShutdownTimeout)
	<-done
	return err
}

// schedule runs every job, then again on each tick, until ctx is done.
// A round never overlaps the previous one.
func schedule(ctx context.Context, jobs []*job, board *statusBoard, interval time.Duration, logger *zap.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		err := runJobs(ctx, jobs, false, board, logger)
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Scheduled round finished with fatal errors", zap.Error(err))
		}
		board.markReady()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Server) pushMetrics(logger *zap.Logger) {
	url := s.cfg.Monitoring.PushgatewayURL
	if url == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), defaultPushTimeout)
	defer cancel()
	if err := metrics.Push(ctx, url, s.cfg.Monitoring.PushJob); err != nil {
		logger.Warn("Failed to push metrics", zap.Error(err))
		return
	}
	logger.Debug("Metrics pushed", zap.String("url", url))
}
