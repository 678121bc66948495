package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"x402index/internal/alerting"
	"x402index/internal/classifier"
	"x402index/internal/config"
	"x402index/internal/prober"
	"x402index/internal/sources"
	"x402index/internal/storage"
	"x402index/internal/telemetry"
)

// ErrInvalidQuery marks a read query rejected before touching the store.
var ErrInvalidQuery = errors.New("service: invalid query")

// maxSampleErrors caps the error messages kept in a job report.
const maxSampleErrors = 5

// Fetcher aggregates endpoints from every configured registry.
type Fetcher interface {
	Sources() []string
	FetchAll(ctx context.Context, maxPages int) sources.Result
}

// Prober checks targets and folds each outcome into probe bookkeeping.
type Prober interface {
	ProbeBatch(ctx context.Context, targets []storage.ProbeTarget) []prober.Outcome
	Apply(target storage.ProbeTarget, ping storage.Ping, now time.Time) prober.Transition
}

// Dependencies groups the collaborators of a Service. Sources and Prober are
// only required by the jobs that use them; read queries need the stores only.
type Dependencies struct {
	Sources    Fetcher
	Classifier *classifier.Classifier
	Prober     Prober
	Endpoints  storage.EndpointStore
	Pings      storage.PingStore
	Prices     storage.PriceHistoryStore
	Categories storage.CategoryStore
	Notifier   alerting.Notifier
	Recorder   telemetry.Recorder
}

// Service orchestrates ingestion, health checks and the read queries over
// the index.
type Service struct {
	sources    Fetcher
	classifier *classifier.Classifier
	prober     Prober
	endpoints  storage.EndpointStore
	pings      storage.PingStore
	prices     storage.PriceHistoryStore
	categories storage.CategoryStore
	notifier   alerting.Notifier
	recorder   telemetry.Recorder
	logger     zerolog.Logger

	maxPages       int
	snapshotPrices bool
	batchSize      int
	metricsWindow  time.Duration
	pingRetention  time.Duration
	channels       []string
	alertsOn       bool

	locker        storage.AdvisoryLocker
	ingestLockKey int64
	healthLockKey int64

	now func() time.Time
}

// New constructs the service.
func New(cfg *config.Config, deps Dependencies, logger zerolog.Logger) *Service {
	var locker storage.AdvisoryLocker
	if l, ok := deps.Endpoints.(storage.AdvisoryLocker); ok {
		locker = l
	}

	cls := deps.Classifier
	if cls == nil {
		cls = classifier.Default()
	}
	recorder := deps.Recorder
	if recorder == nil {
		recorder = telemetry.Nop{}
	}

	return &Service{
		sources:        deps.Sources,
		classifier:     cls,
		prober:         deps.Prober,
		endpoints:      deps.Endpoints,
		pings:          deps.Pings,
		prices:         deps.Prices,
		categories:     deps.Categories,
		notifier:       deps.Notifier,
		recorder:       recorder,
		logger:         logger.With().Str("component", "service").Logger(),
		maxPages:       cfg.ResolveMaxPages(0),
		snapshotPrices: cfg.Ingestion.SnapshotPrices,
		batchSize:      cfg.HealthCheck.BatchSize,
		metricsWindow:  cfg.HealthCheck.MetricsWindow,
		pingRetention:  cfg.HealthCheck.PingRetention,
		channels:       cfg.Alerting.Channels,
		alertsOn:       cfg.Alerting.Enabled,
		locker:         locker,
		ingestLockKey:  cfg.Ingestion.AdvisoryLockKey,
		healthLockKey:  cfg.HealthCheck.AdvisoryLockKey,
		now:            func() time.Time { return time.Now().UTC() },
	}
}

// IngestTick runs one scheduled ingestion with the configured page limit.
func (s *Service) IngestTick(ctx context.Context, at time.Time) error {
	report, err := s.RunIngestion(ctx, s.maxPages)
	if err != nil {
		return err
	}
	if report.Skipped {
		s.logger.Debug().Time("tick", at).Msg("skip ingestion because advisory lock held elsewhere")
	}
	return nil
}

// HealthCheckTick runs one scheduled health-check batch.
func (s *Service) HealthCheckTick(ctx context.Context, at time.Time) error {
	report, err := s.RunHealthCheckBatch(ctx, s.batchSize)
	if err != nil {
		return err
	}
	if report.Skipped {
		s.logger.Debug().Time("tick", at).Msg("skip health check because advisory lock held elsewhere")
	}
	return nil
}

func (s *Service) acquireLock(ctx context.Context, key int64) (func(), bool, error) {
	if key == 0 || s.locker == nil {
		return nil, true, nil
	}
	unlock, acquired, err := s.locker.TryAdvisoryLock(ctx, key)
	if err != nil {
		return nil, false, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !acquired {
		return nil, false, nil
	}
	return unlock, true, nil
}

// sampleErrors collects the first few messages of a batch.
type sampleErrors []string

func (e *sampleErrors) add(format string, args ...any) {
	if len(*e) < maxSampleErrors {
		*e = append(*e, fmt.Sprintf(format, args...))
	}
}
