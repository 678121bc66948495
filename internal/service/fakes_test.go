package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"x402index/internal/alerting"
	"x402index/internal/config"
	"x402index/internal/prober"
	"x402index/internal/sources"
	"x402index/internal/storage"
	"x402index/internal/urlnorm"
)

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func testConfig() *config.Config {
	return &config.Config{
		Ingestion: config.IngestionConfig{
			MaxPages:        20,
			AdvisoryLockKey: 11,
			SnapshotPrices:  true,
		},
		HealthCheck: config.HealthCheckConfig{
			BatchSize:       50,
			AdvisoryLockKey: 12,
			MetricsWindow:   30 * 24 * time.Hour,
			PingRetention:   90 * 24 * time.Hour,
		},
		Alerting: config.AlertingConfig{Enabled: true, Channels: []string{"telegram"}},
	}
}

func newTestService(store *memStore, deps Dependencies) *Service {
	deps.Endpoints = store
	deps.Pings = store
	deps.Prices = store
	deps.Categories = store
	s := New(testConfig(), deps, nopLogger())
	s.now = func() time.Time { return testNow }
	return s
}

// memStore implements every storage interface in memory.
type memStore struct {
	mu sync.Mutex

	upserts    []storage.EndpointUpsert
	failUpsert map[string]error

	targets     []storage.ProbeTarget
	current     map[string]storage.ProbeTarget
	targetLimit int
	listErr     error
	states      []storage.ProbeState
	stateErr    map[string]error
	metrics     map[string]storage.Reliability

	endpoints  []storage.Endpoint
	lastFilter storage.CandidateFilter

	inserted     []storage.Ping
	pingHistory  map[string][]storage.Ping
	pingsSince   time.Time
	recentLimit  int
	prunedBefore time.Time
	pruned       int64

	snapshotDays []time.Time
	history      []storage.PriceRecord
	historySince time.Time

	seeded     []storage.Category
	refreshed  int
	categories []storage.Category
	existing   map[string]bool
	summary    storage.EndpointSummary

	lockHeld bool
	locked   []int64
	unlocked []int64
}

var (
	_ storage.EndpointStore     = (*memStore)(nil)
	_ storage.PingStore         = (*memStore)(nil)
	_ storage.PriceHistoryStore = (*memStore)(nil)
	_ storage.CategoryStore     = (*memStore)(nil)
	_ storage.AdvisoryLocker    = (*memStore)(nil)
)

func newMemStore() *memStore {
	return &memStore{
		failUpsert:  map[string]error{},
		current:     map[string]storage.ProbeTarget{},
		stateErr:    map[string]error{},
		metrics:     map[string]storage.Reliability{},
		pingHistory: map[string][]storage.Ping{},
		existing:    map[string]bool{},
	}
}

func (m *memStore) TryAdvisoryLock(_ context.Context, key int64) (func(), bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lockHeld {
		return nil, false, nil
	}
	m.locked = append(m.locked, key)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.unlocked = append(m.unlocked, key)
	}, true, nil
}

func (m *memStore) UpsertEndpoint(_ context.Context, ep storage.EndpointUpsert, _ time.Time) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failUpsert[ep.ResourceURL]; err != nil {
		return "", err
	}
	m.upserts = append(m.upserts, ep)
	return fmt.Sprintf("id-%d", len(m.upserts)), nil
}

func (m *memStore) ListProbeTargets(_ context.Context, limit int) ([]storage.ProbeTarget, error) {
	m.targetLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if len(m.targets) > limit {
		return m.targets[:limit], nil
	}
	return m.targets, nil
}

// UpdateProbeState applies the outcome to the current row, which starts as
// the listed target unless the test changed it through current.
func (m *memStore) UpdateProbeState(_ context.Context, state storage.ProbeState) (storage.CheckResult, error) {
	if err := m.stateErr[state.EndpointID]; err != nil {
		return storage.CheckResult{}, err
	}
	m.states = append(m.states, state)

	row, ok := m.current[state.EndpointID]
	if !ok {
		for _, t := range m.targets {
			if t.ID == state.EndpointID {
				row = t
			}
		}
	}
	tr := prober.ApplyOutcome(row, storage.Ping{Success: state.Success}, testNow, state.InactiveThreshold)
	row.ConsecutiveFailures = tr.State.ConsecutiveFailures
	row.IsActive = tr.State.IsActive
	m.current[state.EndpointID] = row
	return storage.CheckResult{
		ConsecutiveFailures: row.ConsecutiveFailures,
		IsActive:            row.IsActive,
		Deactivated:         tr.Deactivated,
	}, nil
}

func (m *memStore) UpdateReliability(_ context.Context, endpointID string, r storage.Reliability) error {
	m.metrics[endpointID] = r
	return nil
}

func (m *memStore) GetEndpointByURL(_ context.Context, resourceURL string) (storage.Endpoint, error) {
	key := urlnorm.Normalize(resourceURL)
	for _, ep := range m.endpoints {
		if ep.ResourceURL == key {
			return ep, nil
		}
	}
	return storage.Endpoint{}, fmt.Errorf("get endpoint by url: %w", storage.ErrNotFound)
}

func (m *memStore) GetEndpoint(_ context.Context, id string) (storage.Endpoint, error) {
	for _, ep := range m.endpoints {
		if ep.ID == id {
			return ep, nil
		}
	}
	return storage.Endpoint{}, fmt.Errorf("get endpoint: %w", storage.ErrNotFound)
}

func (m *memStore) ListCandidates(_ context.Context, filter storage.CandidateFilter) ([]storage.Endpoint, error) {
	m.lastFilter = filter
	out := m.matching(filter)
	if filter.OrderBy != storage.OrderByURL {
		sortCandidates(out, filter.OrderBy, filter.Descending)
	}
	if filter.Offset > 0 {
		out = out[min(filter.Offset, len(out)):]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m *memStore) CountCandidates(_ context.Context, filter storage.CandidateFilter) (int, error) {
	return len(m.matching(filter)), nil
}

func (m *memStore) matching(filter storage.CandidateFilter) []storage.Endpoint {
	search := strings.ToLower(filter.Search)
	var out []storage.Endpoint
	for _, ep := range m.endpoints {
		if filter.Category != nil && (ep.Category == nil || *ep.Category != *filter.Category) {
			continue
		}
		if filter.ActiveOnly && !ep.IsActive {
			continue
		}
		if filter.RequireUptime && ep.Uptime24h == nil {
			continue
		}
		if filter.MinUptime != nil && (ep.Uptime24h == nil || *ep.Uptime24h < *filter.MinUptime) {
			continue
		}
		if filter.MaxPrice != nil && (ep.PriceMicroUSDC == nil || *ep.PriceMicroUSDC > *filter.MaxPrice) {
			continue
		}
		if search != "" {
			desc := ""
			if ep.Description != nil {
				desc = strings.ToLower(*ep.Description)
			}
			if !strings.Contains(desc, search) && !strings.Contains(strings.ToLower(ep.ResourceURL), search) {
				continue
			}
		}
		out = append(out, ep)
	}
	return out
}

// sortCandidates orders by the named column with missing values last.
func sortCandidates(eps []storage.Endpoint, order storage.CandidateOrder, desc bool) {
	value := func(ep storage.Endpoint) (float64, bool) {
		switch order {
		case storage.OrderByUptime:
			if ep.Uptime24h != nil {
				return *ep.Uptime24h, true
			}
		case storage.OrderByPrice:
			if ep.PriceMicroUSDC != nil {
				return float64(*ep.PriceMicroUSDC), true
			}
		case storage.OrderByLatency:
			if ep.AvgLatencyMs != nil {
				return float64(*ep.AvgLatencyMs), true
			}
		}
		return 0, false
	}
	sort.SliceStable(eps, func(i, j int) bool {
		a, okA := value(eps[i])
		b, okB := value(eps[j])
		if okA != okB {
			return okA
		}
		if desc {
			return a > b
		}
		return a < b
	})
}

func (m *memStore) SummarizeEndpoints(context.Context) (storage.EndpointSummary, error) {
	return m.summary, nil
}

func (m *memStore) InsertPings(_ context.Context, pings []storage.Ping) error {
	m.inserted = append(m.inserted, pings...)
	return nil
}

func (m *memStore) ListPingsSince(_ context.Context, endpointID string, since time.Time) ([]storage.Ping, error) {
	m.pingsSince = since
	return m.pingHistory[endpointID], nil
}

func (m *memStore) ListRecentPings(_ context.Context, endpointID string, limit int) ([]storage.Ping, error) {
	m.recentLimit = limit
	pings := m.pingHistory[endpointID]
	if len(pings) > limit {
		pings = pings[:limit]
	}
	return pings, nil
}

func (m *memStore) DeletePingsBefore(_ context.Context, before time.Time) (int64, error) {
	m.prunedBefore = before
	return m.pruned, nil
}

func (m *memStore) SnapshotPrices(_ context.Context, day time.Time) (int64, error) {
	m.snapshotDays = append(m.snapshotDays, day)
	return int64(len(m.upserts)), nil
}

func (m *memStore) ListPriceHistory(_ context.Context, _ string, since time.Time) ([]storage.PriceRecord, error) {
	m.historySince = since
	return m.history, nil
}

func (m *memStore) SeedCategories(_ context.Context, categories []storage.Category) error {
	m.seeded = categories
	return nil
}

func (m *memStore) RefreshCategoryCounts(context.Context) error {
	m.refreshed++
	return nil
}

func (m *memStore) ListCategories(context.Context) ([]storage.Category, error) {
	return m.categories, nil
}

func (m *memStore) CategoryExists(_ context.Context, slug string) (bool, error) {
	return m.existing[slug], nil
}

type stubFetcher struct {
	result   sources.Result
	maxPages int
}

func (f *stubFetcher) Sources() []string { return []string{"bazaar"} }

func (f *stubFetcher) FetchAll(_ context.Context, maxPages int) sources.Result {
	f.maxPages = maxPages
	return f.result
}

// stubProber answers with canned pings and the real transition rules.
type stubProber struct {
	pings     map[string]storage.Ping
	threshold int
}

func (p *stubProber) ProbeBatch(_ context.Context, targets []storage.ProbeTarget) []prober.Outcome {
	out := make([]prober.Outcome, 0, len(targets))
	for _, t := range targets {
		ping := p.pings[t.ID]
		ping.EndpointID = t.ID
		out = append(out, prober.Outcome{Target: t, Ping: ping})
	}
	return out
}

func (p *stubProber) Apply(target storage.ProbeTarget, ping storage.Ping, now time.Time) prober.Transition {
	return prober.ApplyOutcome(target, ping, now, p.threshold)
}

type recordingNotifier struct {
	notes []alerting.Notification
}

func (n *recordingNotifier) Notify(_ context.Context, note alerting.Notification) error {
	n.notes = append(n.notes, note)
	return nil
}

func ptr[T any](v T) *T { return &v }
