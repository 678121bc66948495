package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"x402index/internal/urlnorm"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
	// ErrNotFound is returned by point lookups that match no row.
	ErrNotFound = errors.New("storage: not found")
)

const endpointColumns = `id,
        resource_url,
        description,
        category,
        tags,
        raw_data,
        price_micro_usdc,
        network,
        pay_to_address,
        source,
        uptime_24h,
        uptime_7d,
        uptime_30d,
        avg_latency_ms,
        p95_latency_ms,
        error_rate,
        last_seen_at,
        last_error_at,
        consecutive_failures,
        is_active,
        first_indexed_at,
        updated_at`

const (
	upsertEndpointSQL = `INSERT INTO endpoints (
        id,
        resource_url,
        description,
        category,
        tags,
        raw_data,
        price_micro_usdc,
        network,
        pay_to_address,
        source,
        is_active,
        consecutive_failures,
        first_indexed_at,
        updated_at
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,TRUE,0,$11,$11
    )
    ON CONFLICT (resource_url) DO UPDATE
    SET
        description          = EXCLUDED.description,
        category             = EXCLUDED.category,
        tags                 = EXCLUDED.tags,
        raw_data             = EXCLUDED.raw_data,
        price_micro_usdc     = EXCLUDED.price_micro_usdc,
        network              = EXCLUDED.network,
        pay_to_address       = EXCLUDED.pay_to_address,
        source               = EXCLUDED.source,
        is_active            = TRUE,
        consecutive_failures = 0,
        updated_at           = EXCLUDED.updated_at
    RETURNING id;`

	listProbeTargetsSQL = `SELECT
        id,
        resource_url,
        description,
        last_seen_at,
        last_error_at,
        consecutive_failures,
        is_active
    FROM endpoints
    WHERE is_active
    ORDER BY last_seen_at ASC NULLS FIRST, id
    LIMIT $1;`

	updateProbeStateSQL = `WITH prev AS (
        SELECT id, is_active, consecutive_failures
        FROM endpoints
        WHERE id = $1
        FOR UPDATE
    )
    UPDATE endpoints e
    SET last_seen_at         = COALESCE($2, e.last_seen_at),
        last_error_at        = COALESCE($3, e.last_error_at),
        consecutive_failures = CASE WHEN $4 THEN 0 ELSE prev.consecutive_failures + 1 END,
        is_active            = prev.is_active AND (CASE WHEN $4 THEN 0 ELSE prev.consecutive_failures + 1 END) < $5,
        updated_at           = now()
    FROM prev
    WHERE e.id = prev.id
    RETURNING e.consecutive_failures, e.is_active, prev.is_active;`

	updateReliabilitySQL = `UPDATE endpoints
    SET uptime_24h     = $2,
        uptime_7d      = $3,
        uptime_30d     = $4,
        avg_latency_ms = $5,
        p95_latency_ms = $6,
        error_rate     = $7
    WHERE id = $1;`

	getEndpointByURLSQL = `SELECT ` + endpointColumns + ` FROM endpoints WHERE resource_url = $1;`
	getEndpointByIDSQL  = `SELECT ` + endpointColumns + ` FROM endpoints WHERE id = $1;`

	candidateWhere = `
    WHERE ($1::text IS NULL OR category = $1)
      AND (NOT $2 OR is_active)
      AND (NOT $3 OR uptime_24h IS NOT NULL)
      AND ($4::double precision IS NULL OR uptime_24h >= $4)
      AND ($5::bigint IS NULL OR price_micro_usdc <= $5)
      AND ($6::text = '' OR description ILIKE '%' || $6 || '%' OR resource_url ILIKE '%' || $6 || '%')`

	// listCandidatesSQL is completed by candidateOrderClause and the
	// LIMIT $7 OFFSET $8 tail.
	listCandidatesSQL = `SELECT ` + endpointColumns + `
    FROM endpoints` + candidateWhere + `
    ORDER BY `

	countCandidatesSQL = `SELECT COUNT(*) FROM endpoints` + candidateWhere + `;`

	summarizeEndpointsSQL = `SELECT
        COUNT(*) FILTER (WHERE is_active),
        COUNT(*) FILTER (WHERE is_active AND category IS NULL),
        COUNT(*) FILTER (WHERE NOT is_active)
    FROM endpoints;`

	insertPingSQL = `INSERT INTO pings (
        id,
        endpoint_id,
        pinged_at,
        success,
        status_code,
        latency_ms,
        error_message
    ) VALUES ($1,$2,$3,$4,$5,$6,$7);`

	listPingsSinceSQL = `SELECT id, endpoint_id, pinged_at, success, status_code, latency_ms, error_message
    FROM pings
    WHERE endpoint_id = $1
      AND pinged_at >= $2
    ORDER BY pinged_at DESC;`

	listRecentPingsSQL = `SELECT id, endpoint_id, pinged_at, success, status_code, latency_ms, error_message
    FROM pings
    WHERE endpoint_id = $1
    ORDER BY pinged_at DESC
    LIMIT $2;`

	deletePingsBeforeSQL = `DELETE FROM pings WHERE pinged_at < $1;`

	snapshotPricesSQL = `INSERT INTO price_history (endpoint_id, recorded_at, price_micro_usdc)
    SELECT id, $1::date, price_micro_usdc
    FROM endpoints
    WHERE is_active
      AND price_micro_usdc IS NOT NULL
    ON CONFLICT (endpoint_id, recorded_at) DO NOTHING;`

	listPriceHistorySQL = `SELECT endpoint_id, recorded_at, price_micro_usdc
    FROM price_history
    WHERE endpoint_id = $1
      AND recorded_at >= $2::date
    ORDER BY recorded_at ASC;`

	seedCategorySQL = `INSERT INTO categories (slug, name, description)
    VALUES ($1,$2,$3)
    ON CONFLICT (slug) DO UPDATE
    SET name        = EXCLUDED.name,
        description = EXCLUDED.description;`

	refreshCategoryCountsSQL = `UPDATE categories c
    SET endpoint_count = (
        SELECT COUNT(*) FROM endpoints e
        WHERE e.category = c.slug AND e.is_active
    );`

	listCategoriesSQL = `SELECT slug, name, description, endpoint_count
    FROM categories
    ORDER BY endpoint_count DESC, slug;`

	categoryExistsSQL = `SELECT EXISTS (SELECT 1 FROM categories WHERE slug = $1);`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// EndpointStore persists indexed endpoints. Rows are keyed by normalized URL.
type EndpointStore interface {
	UpsertEndpoint(ctx context.Context, ep EndpointUpsert, now time.Time) (string, error)
	ListProbeTargets(ctx context.Context, limit int) ([]ProbeTarget, error)
	UpdateProbeState(ctx context.Context, state ProbeState) (CheckResult, error)
	UpdateReliability(ctx context.Context, endpointID string, r Reliability) error
	GetEndpointByURL(ctx context.Context, resourceURL string) (Endpoint, error)
	GetEndpoint(ctx context.Context, id string) (Endpoint, error)
	ListCandidates(ctx context.Context, filter CandidateFilter) ([]Endpoint, error)
	CountCandidates(ctx context.Context, filter CandidateFilter) (int, error)
	SummarizeEndpoints(ctx context.Context) (EndpointSummary, error)
}

// PingStore appends and reads probe observations.
type PingStore interface {
	InsertPings(ctx context.Context, pings []Ping) error
	ListPingsSince(ctx context.Context, endpointID string, since time.Time) ([]Ping, error)
	ListRecentPings(ctx context.Context, endpointID string, limit int) ([]Ping, error)
	DeletePingsBefore(ctx context.Context, before time.Time) (int64, error)
}

// PriceHistoryStore records one price per endpoint per day.
type PriceHistoryStore interface {
	SnapshotPrices(ctx context.Context, day time.Time) (int64, error)
	ListPriceHistory(ctx context.Context, endpointID string, since time.Time) ([]PriceRecord, error)
}

// CategoryStore manages the category taxonomy and its cached counts.
type CategoryStore interface {
	SeedCategories(ctx context.Context, categories []Category) error
	RefreshCategoryCounts(ctx context.Context) error
	ListCategories(ctx context.Context) ([]Category, error)
	CategoryExists(ctx context.Context, slug string) (bool, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// EndpointSummary counts endpoints by state.
type EndpointSummary struct {
	Active        int64
	Uncategorized int64
	Inactive      int64
}

var (
	_ EndpointStore     = (*Store)(nil)
	_ PingStore         = (*Store)(nil)
	_ PriceHistoryStore = (*Store)(nil)
	_ CategoryStore     = (*Store)(nil)
	_ AdvisoryLocker    = (*Store)(nil)
)

// Store implements every store interface on top of a pgx pool.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// the lock dies with the session if this fails
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// UpsertEndpoint inserts or refreshes an endpoint and returns its id. Any
// upsert re-activates the endpoint and clears its failure streak.
func (s *Store) UpsertEndpoint(ctx context.Context, ep EndpointUpsert, now time.Time) (string, error) {
	pool, err := s.getPool()
	if err != nil {
		return "", err
	}

	key := urlnorm.Normalize(ep.ResourceURL)
	if key != ep.ResourceURL {
		return "", fmt.Errorf("upsert endpoint: resource url %q is not normalized", ep.ResourceURL)
	}

	tags := ep.Tags
	if tags == nil {
		tags = []string{}
	}
	var raw []byte
	if len(ep.RawData) > 0 {
		raw = []byte(ep.RawData)
	}

	var id string
	if err := pool.QueryRow(ctx, upsertEndpointSQL,
		uuid.NewString(),
		key,
		ep.Description,
		ep.Category,
		tags,
		raw,
		ep.PriceMicroUSDC,
		ep.Network,
		ep.PayToAddress,
		ep.Source,
		now.UTC(),
	).Scan(&id); err != nil {
		return "", fmt.Errorf("upsert endpoint: %w", err)
	}
	return id, nil
}

// ListProbeTargets returns active endpoints, least recently seen first.
func (s *Store) ListProbeTargets(ctx context.Context, limit int) ([]ProbeTarget, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, listProbeTargetsSQL, limit)
	if err != nil {
		return nil, fmt.Errorf("list probe targets: %w", err)
	}
	defer rows.Close()

	targets := make([]ProbeTarget, 0, limit)
	for rows.Next() {
		var t ProbeTarget
		if err := rows.Scan(
			&t.ID,
			&t.ResourceURL,
			&t.Description,
			&t.LastSeenAt,
			&t.LastErrorAt,
			&t.ConsecutiveFailures,
			&t.IsActive,
		); err != nil {
			return nil, fmt.Errorf("scan probe target: %w", err)
		}
		targets = append(targets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list probe targets: %w", err)
	}
	return targets, nil
}

// UpdateProbeState applies one health check outcome to the current row. A
// success clears the failure streak and a failure extends it until the
// threshold deactivates the endpoint. The streak is read under the row lock so
// a concurrent re-ingestion reset is never overwritten by a stale snapshot.
// Nil timestamps leave the stored value unchanged.
func (s *Store) UpdateProbeState(ctx context.Context, state ProbeState) (CheckResult, error) {
	if state.InactiveThreshold <= 0 {
		return CheckResult{}, fmt.Errorf("update probe state: inactive threshold must be positive")
	}
	pool, err := s.getPool()
	if err != nil {
		return CheckResult{}, err
	}

	var res CheckResult
	var wasActive bool
	err = pool.QueryRow(ctx, updateProbeStateSQL,
		state.EndpointID,
		state.LastSeenAt,
		state.LastErrorAt,
		state.Success,
		state.InactiveThreshold,
	).Scan(&res.ConsecutiveFailures, &res.IsActive, &wasActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return CheckResult{}, ErrNotFound
	}
	if err != nil {
		return CheckResult{}, fmt.Errorf("update probe state: %w", err)
	}
	res.Deactivated = wasActive && !res.IsActive
	return res, nil
}

// UpdateReliability replaces the rolling metrics of an endpoint.
func (s *Store) UpdateReliability(ctx context.Context, endpointID string, r Reliability) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	tag, err := pool.Exec(ctx, updateReliabilitySQL,
		endpointID,
		r.Uptime24h,
		r.Uptime7d,
		r.Uptime30d,
		r.AvgLatencyMs,
		r.P95LatencyMs,
		r.ErrorRate,
	)
	if err != nil {
		return fmt.Errorf("update reliability: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// GetEndpointByURL looks up an endpoint by resource URL. The URL is
// normalized before the lookup.
func (s *Store) GetEndpointByURL(ctx context.Context, resourceURL string) (Endpoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return Endpoint{}, err
	}
	ep, err := scanEndpoint(pool.QueryRow(ctx, getEndpointByURLSQL, urlnorm.Normalize(resourceURL)))
	if err != nil {
		return Endpoint{}, fmt.Errorf("get endpoint by url: %w", err)
	}
	return ep, nil
}

// GetEndpoint looks up an endpoint by id.
func (s *Store) GetEndpoint(ctx context.Context, id string) (Endpoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return Endpoint{}, err
	}
	if _, err := uuid.Parse(id); err != nil {
		return Endpoint{}, fmt.Errorf("get endpoint: %w", ErrNotFound)
	}
	ep, err := scanEndpoint(pool.QueryRow(ctx, getEndpointByIDSQL, id))
	if err != nil {
		return Endpoint{}, fmt.Errorf("get endpoint: %w", err)
	}
	return ep, nil
}

var candidateOrderColumns = map[CandidateOrder]string{
	OrderByUptime:  "uptime_24h",
	OrderByPrice:   "price_micro_usdc",
	OrderByLatency: "avg_latency_ms",
}

// candidateOrderClause renders the ORDER BY list for filter. Unset values
// always sort last and the URL breaks ties.
func candidateOrderClause(filter CandidateFilter) (string, error) {
	if filter.OrderBy == OrderByURL {
		return "resource_url", nil
	}
	column, ok := candidateOrderColumns[filter.OrderBy]
	if !ok {
		return "", fmt.Errorf("unknown candidate order %q", filter.OrderBy)
	}
	dir := "ASC"
	if filter.Descending {
		dir = "DESC"
	}
	return column + " " + dir + " NULLS LAST, resource_url", nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func candidateArgs(filter CandidateFilter) []any {
	return []any{
		filter.Category,
		filter.ActiveOnly,
		filter.RequireUptime,
		filter.MinUptime,
		filter.MaxPrice,
		likeEscaper.Replace(strings.TrimSpace(filter.Search)),
	}
}

// ListCandidates lists endpoints matching the filter, ordered by URL unless
// the filter names another column.
func (s *Store) ListCandidates(ctx context.Context, filter CandidateFilter) ([]Endpoint, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	order, err := candidateOrderClause(filter)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}
	args := append(candidateArgs(filter), limit, max(filter.Offset, 0))

	rows, err := pool.Query(ctx, listCandidatesSQL+order+"\n    LIMIT $7 OFFSET $8;", args...)
	if err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	defer rows.Close()

	endpoints := make([]Endpoint, 0)
	for rows.Next() {
		ep, err := scanEndpoint(rows)
		if err != nil {
			return nil, fmt.Errorf("list candidates: %w", err)
		}
		endpoints = append(endpoints, ep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list candidates: %w", err)
	}
	return endpoints, nil
}

// CountCandidates counts the endpoints matching the filter, ignoring its
// limit and offset.
func (s *Store) CountCandidates(ctx context.Context, filter CandidateFilter) (int, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var total int
	if err := pool.QueryRow(ctx, countCandidatesSQL, candidateArgs(filter)...).Scan(&total); err != nil {
		return 0, fmt.Errorf("count candidates: %w", err)
	}
	return total, nil
}

// SummarizeEndpoints counts active, uncategorized and inactive endpoints.
func (s *Store) SummarizeEndpoints(ctx context.Context) (EndpointSummary, error) {
	pool, err := s.getPool()
	if err != nil {
		return EndpointSummary{}, err
	}
	var sum EndpointSummary
	if err := pool.QueryRow(ctx, summarizeEndpointsSQL).Scan(&sum.Active, &sum.Uncategorized, &sum.Inactive); err != nil {
		return EndpointSummary{}, fmt.Errorf("summarize endpoints: %w", err)
	}
	return sum, nil
}

// InsertPings appends pings in a single batch. Pings without an id get one.
func (s *Store) InsertPings(ctx context.Context, pings []Ping) error {
	if len(pings) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	batch := &pgx.Batch{}
	for _, p := range pings {
		id := p.ID
		if id == "" {
			id = uuid.NewString()
		}
		batch.Queue(insertPingSQL,
			id,
			p.EndpointID,
			p.PingedAt.UTC(),
			p.Success,
			p.StatusCode,
			p.LatencyMs,
			p.ErrorMessage,
		)
	}

	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("insert pings: %w", err)
	}
	return nil
}

// ListPingsSince returns an endpoint's pings at or after since, newest first.
func (s *Store) ListPingsSince(ctx context.Context, endpointID string, since time.Time) ([]Ping, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listPingsSinceSQL, endpointID, since.UTC())
	if err != nil {
		return nil, fmt.Errorf("list pings since: %w", err)
	}
	return collectPings(rows)
}

// ListRecentPings returns the latest limit pings of an endpoint, newest first.
func (s *Store) ListRecentPings(ctx context.Context, endpointID string, limit int) ([]Ping, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listRecentPingsSQL, endpointID, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent pings: %w", err)
	}
	return collectPings(rows)
}

// DeletePingsBefore prunes pings older than before and reports how many went.
func (s *Store) DeletePingsBefore(ctx context.Context, before time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, deletePingsBeforeSQL, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete pings before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SnapshotPrices records the current price of every active priced endpoint
// for day. Existing rows for the same day are left untouched.
func (s *Store) SnapshotPrices(ctx context.Context, day time.Time) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	tag, err := pool.Exec(ctx, snapshotPricesSQL, day.UTC().Format(time.DateOnly))
	if err != nil {
		return 0, fmt.Errorf("snapshot prices: %w", err)
	}
	return tag.RowsAffected(), nil
}

// ListPriceHistory returns the daily prices of an endpoint from since, oldest first.
func (s *Store) ListPriceHistory(ctx context.Context, endpointID string, since time.Time) ([]PriceRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listPriceHistorySQL, endpointID, since.UTC().Format(time.DateOnly))
	if err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	defer rows.Close()

	records := make([]PriceRecord, 0)
	for rows.Next() {
		var rec PriceRecord
		if err := rows.Scan(&rec.EndpointID, &rec.RecordedAt, &rec.PriceMicroUSDC); err != nil {
			return nil, fmt.Errorf("scan price record: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list price history: %w", err)
	}
	return records, nil
}

// SeedCategories inserts the taxonomy, refreshing names and descriptions.
func (s *Store) SeedCategories(ctx context.Context, categories []Category) error {
	if len(categories) == 0 {
		return nil
	}
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, c := range categories {
		batch.Queue(seedCategorySQL, c.Slug, c.Name, c.Description)
	}
	if err := pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("seed categories: %w", err)
	}
	return nil
}

// RefreshCategoryCounts recomputes the active endpoint count of every category.
func (s *Store) RefreshCategoryCounts(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, refreshCategoryCountsSQL); err != nil {
		return fmt.Errorf("refresh category counts: %w", err)
	}
	return nil
}

// ListCategories lists categories, largest first.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}
	rows, err := pool.Query(ctx, listCategoriesSQL)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	categories := make([]Category, 0)
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.Slug, &c.Name, &c.Description, &c.EndpointCount); err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return categories, nil
}

// CategoryExists reports whether slug is a known category.
func (s *Store) CategoryExists(ctx context.Context, slug string) (bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return false, err
	}
	var exists bool
	if err := pool.QueryRow(ctx, categoryExistsSQL, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("category exists: %w", err)
	}
	return exists, nil
}

func scanEndpoint(row pgx.Row) (Endpoint, error) {
	var ep Endpoint
	var raw []byte
	if err := row.Scan(
		&ep.ID,
		&ep.ResourceURL,
		&ep.Description,
		&ep.Category,
		&ep.Tags,
		&raw,
		&ep.PriceMicroUSDC,
		&ep.Network,
		&ep.PayToAddress,
		&ep.Source,
		&ep.Uptime24h,
		&ep.Uptime7d,
		&ep.Uptime30d,
		&ep.AvgLatencyMs,
		&ep.P95LatencyMs,
		&ep.ErrorRate,
		&ep.LastSeenAt,
		&ep.LastErrorAt,
		&ep.ConsecutiveFailures,
		&ep.IsActive,
		&ep.FirstIndexedAt,
		&ep.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Endpoint{}, ErrNotFound
		}
		return Endpoint{}, err
	}
	if len(raw) > 0 {
		ep.RawData = raw
	}
	return ep, nil
}

func collectPings(rows pgx.Rows) ([]Ping, error) {
	defer rows.Close()

	pings := make([]Ping, 0)
	for rows.Next() {
		var p Ping
		if err := rows.Scan(
			&p.ID,
			&p.EndpointID,
			&p.PingedAt,
			&p.Success,
			&p.StatusCode,
			&p.LatencyMs,
			&p.ErrorMessage,
		); err != nil {
			return nil, fmt.Errorf("scan ping: %w", err)
		}
		pings = append(pings, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pings: %w", err)
	}
	return pings, nil
}
