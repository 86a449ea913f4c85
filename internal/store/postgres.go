package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/redev-labs/complex-scanner/internal/db"
	"github.com/redev-labs/complex-scanner/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

const complexColumns = `id, name, city, neighborhood, status, price_per_sqm,
	benchmark_price_per_sqm, developer, developer_strength, signature_pct,
	unit_count, has_enforcement, has_receivership, has_bankruptcy, narrative,
	data_quality_flag, last_enriched_at, priority_score, investment_score,
	created_at, updated_at`

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hottest store operations (the job driver updates
// progress after every complex).
var preparedStatements = map[string]string{
	"get_complex":           `SELECT ` + complexColumns + ` FROM complexes WHERE id = $1`,
	"update_complex_scores": `UPDATE complexes SET investment_score = $1, priority_score = $2, updated_at = $3 WHERE id = $4`,
	"update_scan_job": `UPDATE scan_jobs SET status = $1, progress = $2, fields_updated = $3,
		error_count = $4, last_error = $5, finished_at = $6 WHERE id = $7`,
	"get_scan_job": `SELECT id, tier, mode, complex_ids, status, progress, total, fields_updated,
		error_count, last_error, started_at, finished_at FROM scan_jobs WHERE id = $1`,
	"update_listing_stress": `UPDATE listings SET stress_score = $1 WHERE id = $2`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// Pool returns the underlying database pool for subsystems needing direct
// query access.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS complexes (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	city                    TEXT NOT NULL DEFAULT '',
	neighborhood            TEXT NOT NULL DEFAULT '',
	status                  TEXT NOT NULL DEFAULT '',
	price_per_sqm           DOUBLE PRECISION NOT NULL DEFAULT 0,
	benchmark_price_per_sqm DOUBLE PRECISION NOT NULL DEFAULT 0,
	developer               TEXT NOT NULL DEFAULT '',
	developer_strength      INTEGER NOT NULL DEFAULT 0,
	signature_pct           DOUBLE PRECISION NOT NULL DEFAULT 0,
	unit_count              INTEGER NOT NULL DEFAULT 0,
	has_enforcement         BOOLEAN NOT NULL DEFAULT false,
	has_receivership        BOOLEAN NOT NULL DEFAULT false,
	has_bankruptcy          BOOLEAN NOT NULL DEFAULT false,
	narrative               TEXT NOT NULL DEFAULT '',
	data_quality_flag       BOOLEAN NOT NULL DEFAULT false,
	last_enriched_at        TIMESTAMPTZ,
	priority_score          DOUBLE PRECISION NOT NULL DEFAULT 0,
	investment_score        DOUBLE PRECISION NOT NULL DEFAULT 0,
	created_at              TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at              TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_complexes_priority ON complexes(priority_score DESC);
CREATE INDEX IF NOT EXISTS idx_complexes_locality ON complexes(city, neighborhood);

CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	complex_id     TEXT REFERENCES complexes(id),
	source         TEXT NOT NULL DEFAULT '',
	external_id    TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	asking_price   DOUBLE PRECISION NOT NULL DEFAULT 0,
	area_sqm       DOUBLE PRECISION NOT NULL DEFAULT 0,
	price_drop_pct DOUBLE PRECISION NOT NULL DEFAULT 0,
	days_on_market INTEGER NOT NULL DEFAULT 0,
	foreclosure    BOOLEAN NOT NULL DEFAULT false,
	inheritance    BOOLEAN NOT NULL DEFAULT false,
	keywords       JSONB,
	stress_score   DOUBLE PRECISION NOT NULL DEFAULT 0,
	active         BOOLEAN NOT NULL DEFAULT true,
	first_seen_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
	last_seen_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	superseded_at  TIMESTAMPTZ
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_active_source
	ON listings(source, external_id) WHERE active AND external_id <> '';
CREATE INDEX IF NOT EXISTS idx_listings_complex ON listings(complex_id) WHERE active;

CREATE TABLE IF NOT EXISTS transactions (
	id         TEXT PRIMARY KEY,
	complex_id TEXT REFERENCES complexes(id),
	address    TEXT NOT NULL DEFAULT '',
	price      DOUBLE PRECISION NOT NULL,
	area_sqm   DOUBLE PRECISION NOT NULL DEFAULT 0,
	sold_at    TIMESTAMPTZ NOT NULL,
	source     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_complex ON transactions(complex_id, sold_at DESC);

CREATE TABLE IF NOT EXISTS scan_jobs (
	id             TEXT PRIMARY KEY,
	tier           TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL,
	complex_ids    JSONB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	progress       INTEGER NOT NULL DEFAULT 0,
	total          INTEGER NOT NULL DEFAULT 0,
	fields_updated INTEGER NOT NULL DEFAULT 0,
	error_count    INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	finished_at    TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_scan_jobs_status ON scan_jobs(status);
CREATE INDEX IF NOT EXISTS idx_scan_jobs_started ON scan_jobs(started_at DESC);

CREATE TABLE IF NOT EXISTS priority_snapshot (
	complex_id  TEXT PRIMARY KEY,
	total       DOUBLE PRECISION NOT NULL,
	components  JSONB NOT NULL,
	tier        TEXT NOT NULL,
	computed_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_priority_snapshot_tier ON priority_snapshot(tier, total DESC);

CREATE TABLE IF NOT EXISTS tier_claims (
	tier       TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL,
	claimed_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateComplex(ctx context.Context, c *model.Complex) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO complexes (`+complexColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)`,
		c.ID, c.Name, c.City, c.Neighborhood, string(c.Status), c.PricePerSqm,
		c.BenchmarkPricePerSqm, c.Developer, c.DeveloperStrength, c.SignaturePct,
		c.UnitCount, c.HasEnforcement, c.HasReceivership, c.HasBankruptcy, c.Narrative,
		c.DataQualityFlag, c.LastEnrichedAt, c.PriorityScore, c.InvestmentScore,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "postgres: insert complex")
}

func (s *PostgresStore) ListComplexes(ctx context.Context) ([]model.Complex, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+complexColumns+` FROM complexes ORDER BY priority_score DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list complexes")
	}
	defer rows.Close()

	var complexes []model.Complex
	for rows.Next() {
		c, err := scanComplex(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan complex")
		}
		complexes = append(complexes, *c)
	}
	return complexes, eris.Wrap(rows.Err(), "postgres: list complexes iterate")
}

func (s *PostgresStore) GetComplex(ctx context.Context, id string) (*model.Complex, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+complexColumns+` FROM complexes WHERE id = $1`, id)
	c, err := scanComplex(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get complex %s", id)
	}
	return c, nil
}

// UpdateComplexEnrichment persists every fact field of the complex. Score
// fields are deliberately excluded: the recompute pass owns them.
func (s *PostgresStore) UpdateComplexEnrichment(ctx context.Context, c *model.Complex) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE complexes SET
			status = $1, price_per_sqm = $2, benchmark_price_per_sqm = $3,
			developer = $4, developer_strength = $5, signature_pct = $6,
			unit_count = $7, has_enforcement = $8, has_receivership = $9,
			has_bankruptcy = $10, narrative = $11, data_quality_flag = $12,
			last_enriched_at = $13, updated_at = $14
		 WHERE id = $15`,
		string(c.Status), c.PricePerSqm, c.BenchmarkPricePerSqm,
		c.Developer, c.DeveloperStrength, c.SignaturePct,
		c.UnitCount, c.HasEnforcement, c.HasReceivership,
		c.HasBankruptcy, c.Narrative, c.DataQualityFlag,
		c.LastEnrichedAt, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update complex enrichment %s", c.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("complex not found: %s", c.ID)
	}
	return nil
}

func (s *PostgresStore) UpdateComplexScores(ctx context.Context, complexID string, investment, priorityScore float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE complexes SET investment_score = $1, priority_score = $2, updated_at = $3 WHERE id = $4`,
		investment, priorityScore, time.Now().UTC(), complexID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update complex scores %s", complexID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("complex not found: %s", complexID)
	}
	return nil
}

const listingColumns = `id, complex_id, source, external_id, address, asking_price,
	area_sqm, price_drop_pct, days_on_market, foreclosure, inheritance, keywords,
	stress_score, active, first_seen_at, last_seen_at, superseded_at`

func (s *PostgresStore) ActiveListings(ctx context.Context, complexID string) ([]model.Listing, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE complex_id = $1 AND active ORDER BY first_seen_at`,
		complexID)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListing(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "postgres: active listings iterate")
}

func (s *PostgresStore) ActiveListingCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT complex_id, COUNT(*) FROM listings
		 WHERE active AND complex_id IS NOT NULL GROUP BY complex_id`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: active listing counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan listing count")
		}
		counts[id] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: active listing counts iterate")
}

// UpsertListing supersedes any active row with the same natural key, then
// inserts the new observation as the single active row.
func (s *PostgresStore) UpsertListing(ctx context.Context, l *model.Listing) error {
	now := time.Now().UTC()
	if l.ID == "" {
		l.ID = uuid.New().String()
	}
	l.Active = true
	if l.FirstSeenAt.IsZero() {
		l.FirstSeenAt = now
	}
	l.LastSeenAt = now

	var err error
	if l.ExternalID != "" {
		_, err = s.pool.Exec(ctx,
			`UPDATE listings SET active = false, superseded_at = $1
			 WHERE source = $2 AND external_id = $3 AND active`,
			now, l.Source, l.ExternalID)
	} else {
		_, err = s.pool.Exec(ctx,
			`UPDATE listings SET active = false, superseded_at = $1
			 WHERE complex_id = $2 AND address = $3 AND active`,
			now, l.ComplexID, l.Address)
	}
	if err != nil {
		return eris.Wrap(err, "postgres: supersede listing")
	}

	keywordsJSON, err := json.Marshal(l.Keywords)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal keywords")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		l.ID, nullIfEmpty(l.ComplexID), l.Source, l.ExternalID, l.Address, l.AskingPrice,
		l.AreaSqm, l.PriceDropPct, l.DaysOnMarket, l.Foreclosure, l.Inheritance, keywordsJSON,
		l.StressScore, l.Active, l.FirstSeenAt, l.LastSeenAt, l.SupersededAt,
	)
	return eris.Wrap(err, "postgres: insert listing")
}

func (s *PostgresStore) UpdateListingStress(ctx context.Context, listingID string, stress float64) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE listings SET stress_score = $1 WHERE id = $2`,
		stress, listingID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update listing stress %s", listingID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("listing not found: %s", listingID)
	}
	return nil
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO transactions (id, complex_id, address, price, area_sqm, sold_at, source)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		tx.ID, nullIfEmpty(tx.ComplexID), tx.Address, tx.Price, tx.AreaSqm, tx.SoldAt, tx.Source,
	)
	return eris.Wrap(err, "postgres: insert transaction")
}

func (s *PostgresStore) RecentTransactionCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT complex_id, COUNT(*) FROM transactions
		 WHERE sold_at >= $1 AND complex_id IS NOT NULL GROUP BY complex_id`,
		since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: recent transaction counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "postgres: scan transaction count")
		}
		counts[id] = n
	}
	return counts, eris.Wrap(rows.Err(), "postgres: recent transaction counts iterate")
}

// LocalityBenchmarks averages per-square-meter transaction prices by
// city/neighborhood over the trailing window.
func (s *PostgresStore) LocalityBenchmarks(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT c.city || '/' || c.neighborhood, AVG(t.price / t.area_sqm)
		 FROM transactions t
		 JOIN complexes c ON c.id = t.complex_id
		 WHERE t.sold_at >= $1 AND t.area_sqm > 0
		 GROUP BY c.city, c.neighborhood`,
		since)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: locality benchmarks")
	}
	defer rows.Close()

	benchmarks := make(map[string]float64)
	for rows.Next() {
		var locality string
		var avg float64
		if err := rows.Scan(&locality, &avg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan locality benchmark")
		}
		benchmarks[locality] = avg
	}
	return benchmarks, eris.Wrap(rows.Err(), "postgres: locality benchmarks iterate")
}

func (s *PostgresStore) CreateScanJob(ctx context.Context, job *model.ScanJob) error {
	idsJSON, err := json.Marshal(job.ComplexIDs)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal complex ids")
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO scan_jobs (id, tier, mode, complex_ids, status, progress, total,
			fields_updated, error_count, last_error, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		job.ID, string(job.Tier), string(job.Mode), idsJSON, string(job.Status),
		job.Progress, job.Total, job.FieldsUpdated, job.ErrorCount, job.LastError,
		job.StartedAt, job.FinishedAt,
	)
	return eris.Wrap(err, "postgres: insert scan job")
}

func (s *PostgresStore) UpdateScanJob(ctx context.Context, job *model.ScanJob) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE scan_jobs SET status = $1, progress = $2, fields_updated = $3,
			error_count = $4, last_error = $5, finished_at = $6 WHERE id = $7`,
		string(job.Status), job.Progress, job.FieldsUpdated,
		job.ErrorCount, job.LastError, job.FinishedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update scan job %s", job.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("scan job not found: %s", job.ID)
	}
	return nil
}

func (s *PostgresStore) GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, tier, mode, complex_ids, status, progress, total, fields_updated,
			error_count, last_error, started_at, finished_at
		 FROM scan_jobs WHERE id = $1`, jobID)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get scan job %s", jobID)
	}
	return job, nil
}

func (s *PostgresStore) ListScanJobs(ctx context.Context, filter JobFilter) ([]model.ScanJob, error) {
	query := `SELECT id, tier, mode, complex_ids, status, progress, total, fields_updated,
		error_count, last_error, started_at, finished_at FROM scan_jobs WHERE true`
	args := []any{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(` AND status = $%d`, argIdx)
		args = append(args, string(filter.Status))
		argIdx++
	}
	if filter.Tier != "" {
		query += fmt.Sprintf(` AND tier = $%d`, argIdx)
		args = append(args, string(filter.Tier))
		argIdx++
	}
	query += ` ORDER BY started_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += fmt.Sprintf(` LIMIT $%d`, argIdx)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list scan jobs")
	}
	defer rows.Close()

	var jobs []model.ScanJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "postgres: list scan jobs iterate")
}

// ReplacePrioritySnapshot swaps in a full new ranking snapshot. The old
// snapshot is dropped first; records land via COPY.
func (s *PostgresStore) ReplacePrioritySnapshot(ctx context.Context, records []model.PriorityRecord) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM priority_snapshot`); err != nil {
		return eris.Wrap(err, "postgres: clear priority snapshot")
	}

	rows := make([][]any, 0, len(records))
	for _, r := range records {
		componentsJSON, err := json.Marshal(r.Components)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal priority components")
		}
		rows = append(rows, []any{r.ComplexID, r.Total, componentsJSON, string(r.Tier), r.ComputedAt})
	}

	_, err := db.CopyFrom(ctx, s.pool, "priority_snapshot",
		[]string{"complex_id", "total", "components", "tier", "computed_at"}, rows)
	return eris.Wrap(err, "postgres: copy priority snapshot")
}

// ClaimTier atomically takes the per-tier scan lock. A second claim on the
// same tier loses until Release.
func (s *PostgresStore) ClaimTier(ctx context.Context, tier model.Tier, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO tier_claims (tier, job_id, claimed_at) VALUES ($1, $2, $3)
		 ON CONFLICT (tier) DO NOTHING`,
		string(tier), jobID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "postgres: claim tier %s", tier)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ReleaseTier(ctx context.Context, tier model.Tier) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM tier_claims WHERE tier = $1`, string(tier))
	return eris.Wrapf(err, "postgres: release tier %s", tier)
}

// --- scan helpers ---

func scanComplex(row pgx.Row) (*model.Complex, error) {
	var c model.Complex
	var status string
	err := row.Scan(&c.ID, &c.Name, &c.City, &c.Neighborhood, &status, &c.PricePerSqm,
		&c.BenchmarkPricePerSqm, &c.Developer, &c.DeveloperStrength, &c.SignaturePct,
		&c.UnitCount, &c.HasEnforcement, &c.HasReceivership, &c.HasBankruptcy, &c.Narrative,
		&c.DataQualityFlag, &c.LastEnrichedAt, &c.PriorityScore, &c.InvestmentScore,
		&c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Status = model.PlanningStatus(status)
	return &c, nil
}

func scanListing(row pgx.Row) (*model.Listing, error) {
	var l model.Listing
	var complexID *string
	var keywordsJSON []byte
	err := row.Scan(&l.ID, &complexID, &l.Source, &l.ExternalID, &l.Address, &l.AskingPrice,
		&l.AreaSqm, &l.PriceDropPct, &l.DaysOnMarket, &l.Foreclosure, &l.Inheritance, &keywordsJSON,
		&l.StressScore, &l.Active, &l.FirstSeenAt, &l.LastSeenAt, &l.SupersededAt)
	if err != nil {
		return nil, err
	}
	if complexID != nil {
		l.ComplexID = *complexID
	}
	if len(keywordsJSON) > 0 {
		if err := json.Unmarshal(keywordsJSON, &l.Keywords); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

func scanJob(row pgx.Row) (*model.ScanJob, error) {
	var j model.ScanJob
	var tier, mode, status string
	var idsJSON []byte
	err := row.Scan(&j.ID, &tier, &mode, &idsJSON, &status, &j.Progress, &j.Total,
		&j.FieldsUpdated, &j.ErrorCount, &j.LastError, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	j.Tier = model.Tier(tier)
	j.Mode = model.ScanMode(mode)
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal(idsJSON, &j.ComplexIDs); err != nil {
		return nil, err
	}
	return &j, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
