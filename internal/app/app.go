// Package app initializes and holds long-lived panel services, acting as a dependency injection container.
package app

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/JakeFAU/mediacrawler-panel/internal/config"
	"github.com/JakeFAU/mediacrawler-panel/internal/desktop"
	"github.com/JakeFAU/mediacrawler-panel/internal/metrics"
	"github.com/JakeFAU/mediacrawler-panel/internal/progress"
	"github.com/JakeFAU/mediacrawler-panel/internal/progress/sinks"
	"github.com/JakeFAU/mediacrawler-panel/internal/results"
	"github.com/JakeFAU/mediacrawler-panel/internal/runconfig"
	"github.com/JakeFAU/mediacrawler-panel/internal/storage/memory"
	"github.com/JakeFAU/mediacrawler-panel/internal/storage/postgres"
	"github.com/JakeFAU/mediacrawler-panel/internal/storage/sqlite"
	"github.com/JakeFAU/mediacrawler-panel/internal/store"
	"github.com/JakeFAU/mediacrawler-panel/internal/supervisor"
)

// App holds the shared, long-lived services of the panel. It is built once at
// startup; the CLI commands and the terminal UI only talk to these services.
type App struct {
	cfg    config.Config
	logger *zap.Logger

	settings   *runconfig.Synchronizer
	hub        *progress.Hub
	history    store.RunRepository
	supervisor *supervisor.Supervisor
	explorer   *results.Explorer
	opener     *desktop.Opener

	closers []func(context.Context) error
}

// Option customises New.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
	history    store.RunRepository
}

// WithRegisterer registers the run collectors on reg instead of the default registry.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) { o.registerer = reg }
}

// WithHistory replaces the configured history backend.
func WithHistory(repo store.RunRepository) Option {
	return func(o *options) { o.history = repo }
}

// Config returns the configuration the App was built from.
func (a *App) Config() config.Config { return a.cfg }

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Settings returns the synchronizer bound to the crawler's settings file.
func (a *App) Settings() *runconfig.Synchronizer { return a.settings }

// Hub returns the progress hub the supervisor publishes to.
func (a *App) Hub() *progress.Hub { return a.hub }

// History returns the run history repository.
func (a *App) History() store.RunRepository { return a.history }

// Supervisor returns the worker supervisor.
func (a *App) Supervisor() *supervisor.Supervisor { return a.supervisor }

// Explorer returns the result explorer.
func (a *App) Explorer() *results.Explorer { return a.explorer }

// Opener returns the desktop opener used for folders and links.
func (a *App) Opener() *desktop.Opener { return a.opener }

// New wires every panel service from cfg. It fails fast when the history
// backend cannot be reached; everything else is local and cannot fail.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{registerer: prometheus.DefaultRegisterer}
	for _, opt := range opts {
		opt(&o)
	}
	logger.Info("initializing panel services", zap.String("worker_dir", cfg.Worker.Dir))

	metrics.Init()

	a := &App{cfg: cfg, logger: logger, opener: desktop.New()}

	history := o.history
	if history == nil {
		repo, closeRepo, err := openHistory(ctx, cfg.History, logger)
		if err != nil {
			return nil, err
		}
		history = repo
		if closeRepo != nil {
			a.closers = append(a.closers, closeRepo)
		}
	}
	a.history = history

	promSink, err := sinks.NewPrometheusSink(o.registerer)
	if err != nil {
		a.closeAll(ctx)
		return nil, fmt.Errorf("init run metrics: %w", err)
	}

	a.hub = progress.NewHub(progress.Config{
		BufferSize:     cfg.Hub.BufferSize,
		MaxBatchEvents: cfg.Hub.MaxBatchEvents,
		MaxBatchWait:   cfg.BatchWait(),
		Logger:         logger,
	},
		sinks.NewLogSink(logger.Named("worker")),
		sinks.NewStoreSink(history, logger),
		promSink,
	)

	candidates := make([]string, 0, len(cfg.CrawlerConfig.Paths))
	for _, p := range cfg.CrawlerConfig.Paths {
		candidates = append(candidates, WorkerPath(cfg, p))
	}
	a.settings = runconfig.NewSynchronizer(runconfig.Resolve(candidates...), logger)

	a.supervisor = supervisor.New(supervisor.Config{
		Runtime:    cfg.Worker.Runtime,
		Entrypoint: cfg.Worker.Entrypoint,
		Dir:        cfg.Worker.Dir,
		Encoding:   cfg.Worker.Encoding,
		Env:        cfg.Worker.Env,
	}, a.settings, a.hub,
		supervisor.WithLogger(logger.Named("supervisor")),
	)

	a.explorer = results.NewExplorer(WorkerPath(cfg, cfg.Results.Dir), cfg.Results.Extension, cfg.Results.MaxRows, logger)

	logger.Info("panel services initialized",
		zap.String("settings", a.settings.Path()),
		zap.String("results", a.explorer.Dir()),
		zap.String("history", cfg.History.Backend),
	)
	return a, nil
}

// WorkerPath resolves p against the worker directory unless it is absolute.
func WorkerPath(cfg config.Config, p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(cfg.Worker.Dir, p)
}

func openHistory(ctx context.Context, cfg config.HistoryConfig, logger *zap.Logger) (store.RunRepository, func(context.Context) error, error) {
	switch cfg.Backend {
	case config.HistoryMemory:
		logger.Info("using in-memory run history; runs are forgotten on exit")
		return memory.NewRunStore(), nil, nil
	case config.HistorySQLite:
		if cfg.SQLitePath == "" {
			return nil, nil, errors.New("history backend is 'sqlite' but history.sqlite_path is not set")
		}
		logger.Info("opening sqlite run history", zap.String("path", cfg.SQLitePath))
		repo, err := sqlite.NewRunStore(cfg.SQLitePath, sqlite.WithMkdirAll())
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		return repo, func(context.Context) error { return repo.Close() }, nil
	case config.HistoryPostgres:
		if cfg.DSN == "" {
			return nil, nil, errors.New("history backend is 'postgres' but history.dsn is not set")
		}
		logger.Info("connecting to postgres run history")
		repo, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{DSN: cfg.DSN})
		if err != nil {
			return nil, nil, fmt.Errorf("failed to initialize run history: %w", err)
		}
		if err := repo.Migrate(ctx); err != nil {
			repo.Close()
			return nil, nil, fmt.Errorf("migrate run history: %w", err)
		}
		return repo, func(context.Context) error { repo.Close(); return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown history backend: %s", cfg.Backend)
	}
}

// Close stops any running worker, drains the hub, closes the history store,
// writes the metrics textfile and flushes the logger.
func (a *App) Close(ctx context.Context) {
	if a.supervisor != nil && a.supervisor.State() != supervisor.StateIdle {
		if err := a.supervisor.Stop(); err != nil {
			a.logger.Warn("failed to stop worker on shutdown", zap.Error(err))
		} else if err := a.supervisor.Wait(ctx); err != nil {
			a.logger.Warn("worker did not exit before shutdown", zap.Error(err))
		}
	}
	if a.hub != nil {
		if err := a.hub.Close(ctx); err != nil {
			a.logger.Warn("failed to drain progress hub", zap.Error(err))
		}
	}
	a.closeAll(ctx)
	if err := metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
		a.logger.Warn("failed to write metrics textfile", zap.Error(err))
	}
	_ = a.logger.Sync()
}

func (a *App) closeAll(ctx context.Context) {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("failed to close service", zap.Error(err))
		}
	}
	a.closers = nil
}
