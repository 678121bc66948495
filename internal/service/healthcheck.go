package service

import (
	"context"
	"fmt"
	"time"

	"x402index/internal/alerting"
	"x402index/internal/prober"
	"x402index/internal/reliability"
	"x402index/internal/storage"
)

// DefaultBatchSize is how many endpoints one health-check run probes when
// the caller sets no batch size.
const DefaultBatchSize = 50

// HealthCheckReport summarises one health-check batch.
type HealthCheckReport struct {
	Skipped      bool          `json:"skipped,omitempty"`
	Checked      int           `json:"checked"`
	Successful   int           `json:"successful"`
	Failed       int           `json:"failed"`
	Errors       int           `json:"errors"`
	Deactivated  int           `json:"deactivated"`
	SampleErrors []string      `json:"sample_errors,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// RunHealthCheckBatch probes the least recently seen active endpoints,
// records one ping each, updates their failure streaks and recomputes their
// reliability metrics. Failing to list the batch is fatal; failing to write
// one endpoint's results is counted and logged.
func (s *Service) RunHealthCheckBatch(ctx context.Context, batchSize int) (report HealthCheckReport, err error) {
	if s.prober == nil {
		return report, fmt.Errorf("health check: prober not configured")
	}
	if s.endpoints == nil || s.pings == nil {
		return report, storage.ErrNotConfigured
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	unlock, proceed, err := s.acquireLock(ctx, s.healthLockKey)
	if err != nil {
		return report, err
	}
	if !proceed {
		report.Skipped = true
		return report, nil
	}
	if unlock != nil {
		defer unlock()
	}

	start := s.now()
	defer func() {
		report.Duration = s.now().Sub(start)
		s.recorder.RecordJob("healthcheck", report.Duration, err)
	}()

	targets, err := s.endpoints.ListProbeTargets(ctx, batchSize)
	if err != nil {
		return report, fmt.Errorf("list probe targets: %w", err)
	}
	if len(targets) == 0 {
		s.logger.Info().Msg("no endpoints to check")
		return report, nil
	}

	s.logger.Info().Int("targets", len(targets)).Msg("health check started")
	outcomes := s.prober.ProbeBatch(ctx, targets)

	var samples sampleErrors
	pings := make([]storage.Ping, 0, len(outcomes))
	for _, o := range outcomes {
		report.Checked++
		if o.Ping.Success {
			report.Successful++
		} else {
			report.Failed++
		}
		var latency time.Duration
		if o.Ping.LatencyMs != nil {
			latency = time.Duration(*o.Ping.LatencyMs) * time.Millisecond
		}
		s.recorder.RecordProbe(o.Ping.Success, latency)
		pings = append(pings, o.Ping)
	}

	if err := s.pings.InsertPings(ctx, pings); err != nil {
		report.Errors++
		samples.add("insert pings: %v", err)
		s.logger.Error().Err(err).Int("pings", len(pings)).Msg("failed to insert pings")
	}

	now := s.now()
	for _, o := range outcomes {
		tr := s.prober.Apply(o.Target, o.Ping, now)
		stored, err := s.endpoints.UpdateProbeState(ctx, tr.State)
		if err != nil {
			report.Errors++
			samples.add("%s: %v", o.Target.ResourceURL, err)
			s.logger.Error().Err(err).Str("endpoint_id", o.Target.ID).Msg("failed to update probe state")
			continue
		}
		if stored.ConsecutiveFailures != tr.State.ConsecutiveFailures {
			s.logger.Debug().
				Str("endpoint_id", o.Target.ID).
				Int("expected", tr.State.ConsecutiveFailures).
				Int("stored", stored.ConsecutiveFailures).
				Msg("failure streak changed during the batch")
		}
		if stored.Deactivated {
			report.Deactivated++
			s.notifyDeactivated(ctx, o, stored, now)
		}
	}
	s.recorder.RecordDeactivations(report.Deactivated)

	for _, t := range targets {
		if err := s.refreshReliability(ctx, t.ID, now); err != nil {
			report.Errors++
			samples.add("%s: %v", t.ResourceURL, err)
			s.logger.Error().Err(err).Str("endpoint_id", t.ID).Msg("failed to refresh reliability metrics")
		}
	}
	report.SampleErrors = samples

	s.logger.Info().
		Int("checked", report.Checked).
		Int("successful", report.Successful).
		Int("failed", report.Failed).
		Int("errors", report.Errors).
		Int("deactivated", report.Deactivated).
		Dur("duration", s.now().Sub(start)).
		Msg("health check completed")

	return report, nil
}

func (s *Service) refreshReliability(ctx context.Context, endpointID string, now time.Time) error {
	window := s.metricsWindow
	if window < reliability.Window30d {
		window = reliability.Window30d
	}
	pings, err := s.pings.ListPingsSince(ctx, endpointID, now.Add(-window))
	if err != nil {
		return fmt.Errorf("list pings: %w", err)
	}
	if err := s.endpoints.UpdateReliability(ctx, endpointID, reliability.Calculate(pings, now)); err != nil {
		return fmt.Errorf("update reliability: %w", err)
	}
	return nil
}

func (s *Service) notifyDeactivated(ctx context.Context, o prober.Outcome, stored storage.CheckResult, now time.Time) {
	s.logger.Warn().
		Str("endpoint_id", o.Target.ID).
		Str("url", o.Target.ResourceURL).
		Int("consecutive_failures", stored.ConsecutiveFailures).
		Msg("endpoint deactivated")

	if !s.alertsOn || s.notifier == nil {
		return
	}
	note := alerting.Notification{
		At:                  now,
		EndpointID:          o.Target.ID,
		ResourceURL:         o.Target.ResourceURL,
		ConsecutiveFailures: stored.ConsecutiveFailures,
		Channels:            s.channels,
	}
	if o.Target.Description != nil {
		note.Description = *o.Target.Description
	}
	if o.Ping.ErrorMessage != nil {
		note.LastError = *o.Ping.ErrorMessage
	}
	if err := s.notifier.Notify(ctx, note); err != nil {
		s.logger.Error().Err(err).Str("endpoint_id", o.Target.ID).Msg("failed to dispatch alert")
	}
}

// BackfillReliability recomputes the stored metrics of every endpoint, active
// or not, from its ping history.
func (s *Service) BackfillReliability(ctx context.Context) (updated, failed int, err error) {
	if s.endpoints == nil || s.pings == nil {
		return 0, 0, storage.ErrNotConfigured
	}
	rows, err := s.endpoints.ListCandidates(ctx, storage.CandidateFilter{})
	if err != nil {
		return 0, 0, fmt.Errorf("list endpoints: %w", err)
	}

	now := s.now()
	for _, ep := range rows {
		if err := ctx.Err(); err != nil {
			return updated, failed, err
		}
		if err := s.refreshReliability(ctx, ep.ID, now); err != nil {
			failed++
			s.logger.Error().Err(err).Str("endpoint_id", ep.ID).Msg("failed to backfill reliability metrics")
			continue
		}
		updated++
	}
	s.logger.Info().Int("updated", updated).Int("failed", failed).Msg("reliability backfill completed")
	return updated, failed, nil
}
