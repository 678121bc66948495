package service

import (
	"context"
	"fmt"
	"time"

	"x402index/internal/classifier"
	"x402index/internal/config"
	"x402index/internal/sources"
	"x402index/internal/storage"
	"x402index/internal/urlnorm"
)

// IngestionReport summarises one ingestion run.
type IngestionReport struct {
	Skipped        bool                  `json:"skipped,omitempty"`
	MaxPages       int                   `json:"max_pages"`
	Fetched        int                   `json:"fetched"`
	Duplicates     int                   `json:"duplicates"`
	Updated        int                   `json:"updated"`
	Errors         int                   `json:"errors"`
	SampleErrors   []string              `json:"sample_errors,omitempty"`
	PriceSnapshots int64                 `json:"price_snapshots"`
	Sources        []sources.SourceStats `json:"sources"`
	Duration       time.Duration         `json:"duration"`
}

// RunIngestion fetches every registry, classifies the merged endpoints and
// upserts them. A failed upsert is counted and never aborts the run; a
// cancelled context does. Re-ingested endpoints are reactivated.
func (s *Service) RunIngestion(ctx context.Context, maxPages int) (report IngestionReport, err error) {
	if s.sources == nil {
		return report, fmt.Errorf("ingestion: sources not configured")
	}
	if s.endpoints == nil {
		return report, storage.ErrNotConfigured
	}

	unlock, proceed, err := s.acquireLock(ctx, s.ingestLockKey)
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
		s.recorder.RecordJob("ingest", report.Duration, err)
	}()

	s.seedCategories(ctx)

	report.MaxPages = config.ClampPages(maxPages)
	s.logger.Info().Strs("sources", s.sources.Sources()).Int("max_pages", report.MaxPages).Msg("ingestion started")

	result := s.sources.FetchAll(ctx, report.MaxPages)
	report.Sources = result.Stats
	report.Fetched = len(result.Endpoints)
	report.Duplicates = result.Total - len(result.Endpoints)
	for _, st := range result.Stats {
		s.recorder.RecordSourceFetch(st.Source, st.Count, st.Err != "")
	}

	var samples sampleErrors
	for _, ep := range result.Endpoints {
		if err := ctx.Err(); err != nil {
			report.SampleErrors = samples
			return report, fmt.Errorf("ingestion interrupted: %w", err)
		}

		upsert := s.prepare(ep)
		if _, err := s.endpoints.UpsertEndpoint(ctx, upsert, s.now()); err != nil {
			report.Errors++
			samples.add("%s: %v", upsert.ResourceURL, err)
			s.logger.Error().Err(err).Str("url", upsert.ResourceURL).Msg("failed to upsert endpoint")
			continue
		}
		report.Updated++
	}
	report.SampleErrors = samples
	s.recorder.RecordEndpointsUpserted(report.Updated)
	s.recorder.RecordUpsertFailures(report.Errors)

	if s.snapshotPrices && s.prices != nil {
		n, err := s.prices.SnapshotPrices(ctx, s.now())
		if err != nil {
			s.logger.Error().Err(err).Msg("failed to record price snapshots")
		} else {
			report.PriceSnapshots = n
		}
	}

	if s.categories != nil {
		if err := s.categories.RefreshCategoryCounts(ctx); err != nil {
			s.logger.Error().Err(err).Msg("failed to refresh category counts")
		}
	}

	s.logger.Info().
		Int("fetched", report.Fetched).
		Int("updated", report.Updated).
		Int("errors", report.Errors).
		Int64("price_snapshots", report.PriceSnapshots).
		Dur("duration", s.now().Sub(start)).
		Msg("ingestion completed")

	return report, nil
}

// prepare normalizes the URL, backfills a missing description from the URL
// and classifies the endpoint.
func (s *Service) prepare(ep sources.SourceEndpoint) storage.EndpointUpsert {
	normalized := urlnorm.Normalize(ep.ResourceURL)

	description := ep.Description
	if description == nil || *description == "" {
		description = classifier.GenerateDescriptionFromURL(normalized)
	}

	res := classifier.Resource{URL: normalized, Metadata: ep.RawData}
	if description != nil {
		res.Description = *description
	}
	if ep.ProviderName != nil {
		res.ProviderName = *ep.ProviderName
	}
	class := s.classifier.Classify(res)

	return storage.EndpointUpsert{
		ResourceURL:    normalized,
		Description:    description,
		Category:       class.Category,
		Tags:           class.Tags,
		RawData:        ep.RawData,
		PriceMicroUSDC: ep.PriceMicroUSDC,
		Network:        ep.Network,
		PayToAddress:   ep.PayToAddress,
		Source:         ep.Source,
	}
}

// seedCategories makes sure every classifier category exists before
// endpoints reference it.
func (s *Service) seedCategories(ctx context.Context) {
	if s.categories == nil {
		return
	}
	taxonomy := s.classifier.Taxonomy()
	cats := make([]storage.Category, 0, len(taxonomy))
	for _, def := range taxonomy {
		cats = append(cats, storage.Category{Slug: def.Slug, Name: def.Name, Description: def.Description})
	}
	if err := s.categories.SeedCategories(ctx, cats); err != nil {
		s.logger.Error().Err(err).Msg("failed to seed categories")
	}
}
