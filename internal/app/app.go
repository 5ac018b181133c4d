// Package app wires configuration, the store, the loader and the servers
// into one runnable application.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/foxzi/mailseed/internal/api"
	"github.com/foxzi/mailseed/internal/config"
	"github.com/foxzi/mailseed/internal/journal"
	"github.com/foxzi/mailseed/internal/loader"
	"github.com/foxzi/mailseed/internal/metrics"
	"github.com/foxzi/mailseed/internal/seeder"
	"github.com/foxzi/mailseed/internal/store"
)

// App is the main application
type App struct {
	config  *config.Config
	db      *store.DB
	journal journal.Journal
	loader  *loader.Loader
	seeder  *seeder.Service
	metrics *metrics.Metrics
	logger  *slog.Logger
	version string
}

// Options selects what New opens besides the store
type Options struct {
	// Journal opens the bbolt journal file when the loader runs in saga
	// mode. The file admits one process at a time, so commands that only
	// read leave it closed.
	Journal bool
}

// New opens the store, brings the schema up to date and builds the seeder.
// Logs go to logOut so command output on stdout stays clean.
func New(ctx context.Context, cfg *config.Config, version string, logOut io.Writer, opts Options) (*App, error) {
	logger := setupLogger(cfg.Logging, logOut)

	m := metrics.New()
	metrics.SetGlobal(m)

	db, err := store.Open(cfg.Database.URL, cfg.Database.ServiceKey)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	initCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := db.Ping(initCtx); err != nil {
		db.Close()
		return nil, err
	}
	if err := db.Migrate(initCtx); err != nil {
		db.Close()
		return nil, err
	}

	var j journal.Journal = journal.NewMemoryJournal()
	if opts.Journal && cfg.Journal.Path != "" && loader.Mode(cfg.Seed.Mode) == loader.ModeSaga {
		bj, err := journal.NewBoltJournal(cfg.Journal.Path, cfg.Journal.LockTimeout)
		if errors.Is(err, journal.ErrLocked) {
			db.Close()
			return nil, fmt.Errorf("failed to open journal: %w (stop mailseed serve or use its admin API)", err)
		}
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to open journal: %w", err)
		}
		j = bj
	}

	l := loader.New(db, loader.Options{
		BatchSize:         cfg.Seed.BatchSize,
		Concurrency:       cfg.Seed.Concurrency,
		RequestsPerSecond: cfg.Seed.RequestsPerSecond,
		Mode:              loader.Mode(cfg.Seed.Mode),
		Self:              loader.Identity{Name: cfg.Seed.SelfName, Email: cfg.Seed.SelfEmail},
		Journal:           j,
	}, logger)

	logger.Debug("store ready", "dialect", db.Dialect(), "mode", cfg.Seed.Mode, "batch_size", cfg.Seed.BatchSize)

	return &App{
		config:  cfg,
		db:      db,
		journal: j,
		loader:  l,
		seeder:  seeder.New(db, l, cfg.Seed.SessionTTL, logger),
		metrics: m,
		logger:  logger,
		version: version,
	}, nil
}

// Seeder returns the seed service
func (a *App) Seeder() *seeder.Service {
	return a.seeder
}

// Loader returns the loader behind the seed service
func (a *App) Loader() *loader.Loader {
	return a.loader
}

// Logger returns the application logger
func (a *App) Logger() *slog.Logger {
	return a.logger
}

// RecoverPending replays every journal left by an interrupted saga write
func (a *App) RecoverPending(ctx context.Context) (int, error) {
	pending, err := a.loader.PendingSessions(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list pending journals: %w", err)
	}

	var errs []error
	recovered := 0
	for _, id := range pending {
		res, err := a.seeder.Recover(ctx, id)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		recovered++
		a.logger.Info("recovered interrupted write", "session_id", id, "rows", res.Deleted.Total())
	}
	return recovered, errors.Join(errs...)
}

// Run serves the admin API and, when enabled, the metrics endpoint until
// a signal arrives
func (a *App) Run(ctx context.Context) error {
	if err := a.config.RequireAPIKey(); err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if n, err := a.RecoverPending(ctx); err != nil {
		a.logger.Error("journal recovery incomplete", "recovered", n, "error", err)
	}

	apiServer := api.NewServer(a.seeder, &a.config.API, a.version, a.logger)

	var (
		metricsServer *metrics.Server
		collector     *metrics.Collector
	)
	if a.config.Metrics.Enabled {
		var err error
		collector, err = metrics.NewCollector(a.boltDB(), a.metrics, a.seeder, a.config.Metrics.FlushInterval)
		if err != nil {
			return fmt.Errorf("failed to create metrics collector: %w", err)
		}
		collector.Start(ctx)

		metricsServer = metrics.NewServer(a.metrics, metrics.ServerConfig{
			Addr:       a.config.Metrics.ListenAddr,
			Path:       a.config.Metrics.Path,
			AllowedIPs: a.config.Metrics.AllowedIPs,
		}, a.logger)
	}

	a.logger.Info("starting mailseed",
		"version", a.version,
		"api_addr", a.config.API.ListenAddr,
		"metrics", a.config.Metrics.Enabled,
		"mode", a.loader.Mode(),
	)

	errCh := make(chan error, 2)

	go func() {
		if err := apiServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("api server: %w", err)
		}
	}()

	if metricsServer != nil {
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("metrics server: %w", err)
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		a.logger.Error("server error", "error", runErr)
		cancel()
	}

	shutdownCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()

	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("api server shutdown error", "error", err)
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			a.logger.Error("metrics server shutdown error", "error", err)
		}
	}
	if collector != nil {
		if err := collector.Stop(); err != nil {
			a.logger.Error("metrics collector stop error", "error", err)
		}
	}

	a.logger.Info("shutdown complete")
	return runErr
}

// boltDB shares the journal's bbolt file with the metrics collector
func (a *App) boltDB() *bolt.DB {
	if bj, ok := a.journal.(*journal.BoltJournal); ok {
		return bj.DB()
	}
	return nil
}

// Close releases the journal and the store
func (a *App) Close() error {
	var errs []error
	if err := a.journal.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close journal: %w", err))
	}
	if err := a.db.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close store: %w", err))
	}
	return errors.Join(errs...)
}

// setupLogger creates a logger based on configuration
func setupLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	var handler slog.Handler

	if out == nil {
		out = os.Stderr
	}

	level := slog.LevelInfo
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, opts)
	} else {
		handler = slog.NewTextHandler(out, opts)
	}

	return slog.New(handler)
}
