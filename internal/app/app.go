package app

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"x402index/internal/alerting"
	"x402index/internal/classifier"
	"x402index/internal/config"
	"x402index/internal/prober"
	"x402index/internal/scheduler"
	"x402index/internal/service"
	"x402index/internal/sources"
	"x402index/internal/storage"
	"x402index/internal/telemetry"
	"x402index/internal/version"
)

var errNoDatabase = errors.New("database.dsn not configured")

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newAggregator() *sources.Aggregator {
	var srcs []sources.Source
	networks := sources.DefaultNetworks()

	if cfg := a.Config.Sources.Bazaar; cfg.Enabled {
		srcs = append(srcs, sources.NewBazaar(sources.BazaarOptions{
			BaseURL:  cfg.BaseURL,
			PageSize: cfg.PageSize,
			Client:   clientOptions(cfg),
			Networks: networks,
		}, a.Logger))
	}
	if cfg := a.Config.Sources.X402APIs; cfg.Enabled {
		srcs = append(srcs, sources.NewX402APIs(sources.X402APIsOptions{
			BaseURL:  cfg.BaseURL,
			PageSize: cfg.PageSize,
			Client:   clientOptions(cfg),
			Networks: networks,
		}, a.Logger))
	}

	return sources.NewAggregator(srcs, a.Logger)
}

func clientOptions(cfg config.SourceConfig) sources.ClientOptions {
	return sources.ClientOptions{
		Timeout:      cfg.RequestTimeout,
		UserAgent:    cfg.UserAgent,
		PageInterval: cfg.PageInterval,
		Retry: sources.RetryPolicy{
			Attempts:  cfg.Retry.Attempts,
			BaseDelay: cfg.Retry.BaseDelay,
			MaxDelay:  cfg.Retry.MaxDelay,
		},
	}
}

func (a *App) newProber() *prober.Prober {
	hc := a.Config.HealthCheck
	return prober.New(prober.Options{
		Timeout:              hc.Timeout,
		UserAgent:            hc.UserAgent,
		Concurrency:          hc.Concurrency,
		InactiveThreshold:    hc.InactiveThreshold,
		BlockPrivateNetworks: hc.BlockPrivateNetworks,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	notifiers := alerting.Multi{alerting.NewLogNotifier(a.Logger)}
	if a.Config.Alerting.Telegram.Enabled {
		cfg := a.Config.Alerting.Telegram
		notifiers = append(notifiers, alerting.NewTelegramNotifier(cfg.BotToken, cfg.ChatID, cfg.APIBase, 10*time.Second, a.Logger))
	}
	return notifiers
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errNoDatabase
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}
	if a.Config.Database.AutoMigrate {
		if err := storage.Migrate(ctx, pool, a.Logger); err != nil {
			pool.Close()
			return nil, nil, err
		}
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

// newService wires the service over store. The recorder may be nil.
func (a *App) newService(store *storage.Store, recorder telemetry.Recorder) *service.Service {
	return service.New(a.Config, service.Dependencies{
		Sources:    a.newAggregator(),
		Classifier: classifier.Default(),
		Prober:     a.newProber(),
		Endpoints:  store,
		Pings:      store,
		Prices:     store,
		Categories: store,
		Notifier:   a.newNotifier(),
		Recorder:   recorder,
	}, a.Logger)
}

// withService opens the store, builds a service and hands it to fn.
func (a *App) withService(ctx context.Context, fn func(*service.Service) error) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()
	return fn(a.newService(store, nil))
}

// Run executes the long-running ingestion and health-check loops, plus the
// metrics listener when telemetry is enabled.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	var recorder telemetry.Recorder
	var registry *prometheus.Registry
	if a.Config.Telemetry.Enabled {
		registry = prometheus.NewRegistry()
		recorder = telemetry.NewCollector(registry)
	}

	svc := a.newService(store, recorder)

	ingest := scheduler.New(scheduler.Options{
		Name:           "ingest",
		Interval:       a.Config.Ingestion.Interval,
		RunImmediately: true,
	}, a.Logger)
	health := scheduler.New(scheduler.Options{
		Name:         "healthcheck",
		Interval:     a.Config.HealthCheck.Interval,
		AlignToStart: true,
	}, a.Logger)
	prune := scheduler.New(scheduler.Options{
		Name:     "prune-pings",
		Interval: 24 * time.Hour,
	}, a.Logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.RunAll(gctx,
			scheduler.Job{Scheduler: ingest, Tick: svc.IngestTick},
			scheduler.Job{Scheduler: health, Tick: svc.HealthCheckTick},
			scheduler.Job{Scheduler: prune, Tick: func(ctx context.Context, _ time.Time) error {
				_, err := svc.PrunePings(ctx)
				return err
			}},
		)
	})
	if registry != nil {
		g.Go(func() error {
			return telemetry.Serve(gctx, a.Config.Telemetry.ListenAddr, registry, a.Logger)
		})
	}

	a.Logger.Info().Str("version", version.Version).Str("commit", version.Commit).Msg("starting indexer")
	err = g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("indexer terminated with error")
		return err
	}

	a.Logger.Info().Msg("indexer stopped")
	return nil
}

// IngestOptions configure a one-off ingestion.
type IngestOptions struct {
	MaxPages int
	JSON     bool
}

// Ingest runs one ingestion and prints its report.
func (a *App) Ingest(ctx context.Context, opts IngestOptions) error {
	return a.withService(ctx, func(svc *service.Service) error {
		report, err := svc.RunIngestion(ctx, a.Config.ResolveMaxPages(opts.MaxPages))
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(a.Out, report)
		}
		return writeIngestionReport(a.Out, report)
	})
}

// HealthCheckOptions configure a one-off health-check batch.
type HealthCheckOptions struct {
	BatchSize int
	JSON      bool
}

// HealthCheck runs one probe batch and prints its report.
func (a *App) HealthCheck(ctx context.Context, opts HealthCheckOptions) error {
	batch := opts.BatchSize
	if batch <= 0 {
		batch = a.Config.HealthCheck.BatchSize
	}
	return a.withService(ctx, func(svc *service.Service) error {
		report, err := svc.RunHealthCheckBatch(ctx, batch)
		if err != nil {
			return err
		}
		if opts.JSON {
			return writeJSON(a.Out, report)
		}
		return writeHealthCheckReport(a.Out, report)
	})
}

// PrunePings deletes pings past the retention window.
func (a *App) PrunePings(ctx context.Context) error {
	return a.withService(ctx, func(svc *service.Service) error {
		n, err := svc.PrunePings(ctx)
		if err != nil {
			return err
		}
		_, err = io.WriteString(a.Out, formatCount("pings deleted", n))
		return err
	})
}

// Migrate applies the schema migrations regardless of database.auto_migrate.
func (a *App) Migrate(ctx context.Context) error {
	if a.Config.Database.DSN == "" {
		return errNoDatabase
	}
	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return err
	}
	defer pool.Close()
	return storage.Migrate(ctx, pool, a.Logger)
}
