package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for single-node
// deployments and local development.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := sqlDB.Exec(pragma); err != nil {
			sqlDB.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: sqlDB}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS complexes (
	id                      TEXT PRIMARY KEY,
	name                    TEXT NOT NULL,
	city                    TEXT NOT NULL DEFAULT '',
	neighborhood            TEXT NOT NULL DEFAULT '',
	status                  TEXT NOT NULL DEFAULT '',
	price_per_sqm           REAL NOT NULL DEFAULT 0,
	benchmark_price_per_sqm REAL NOT NULL DEFAULT 0,
	developer               TEXT NOT NULL DEFAULT '',
	developer_strength      INTEGER NOT NULL DEFAULT 0,
	signature_pct           REAL NOT NULL DEFAULT 0,
	unit_count              INTEGER NOT NULL DEFAULT 0,
	has_enforcement         INTEGER NOT NULL DEFAULT 0,
	has_receivership        INTEGER NOT NULL DEFAULT 0,
	has_bankruptcy          INTEGER NOT NULL DEFAULT 0,
	narrative               TEXT NOT NULL DEFAULT '',
	data_quality_flag       INTEGER NOT NULL DEFAULT 0,
	last_enriched_at        DATETIME,
	priority_score          REAL NOT NULL DEFAULT 0,
	investment_score        REAL NOT NULL DEFAULT 0,
	created_at              DATETIME NOT NULL,
	updated_at              DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_complexes_priority ON complexes(priority_score DESC);

CREATE TABLE IF NOT EXISTS listings (
	id             TEXT PRIMARY KEY,
	complex_id     TEXT,
	source         TEXT NOT NULL DEFAULT '',
	external_id    TEXT NOT NULL DEFAULT '',
	address        TEXT NOT NULL DEFAULT '',
	asking_price   REAL NOT NULL DEFAULT 0,
	area_sqm       REAL NOT NULL DEFAULT 0,
	price_drop_pct REAL NOT NULL DEFAULT 0,
	days_on_market INTEGER NOT NULL DEFAULT 0,
	foreclosure    INTEGER NOT NULL DEFAULT 0,
	inheritance    INTEGER NOT NULL DEFAULT 0,
	keywords       TEXT,
	stress_score   REAL NOT NULL DEFAULT 0,
	active         INTEGER NOT NULL DEFAULT 1,
	first_seen_at  DATETIME NOT NULL,
	last_seen_at   DATETIME NOT NULL,
	superseded_at  DATETIME
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_listings_active_source
	ON listings(source, external_id) WHERE active AND external_id <> '';
CREATE INDEX IF NOT EXISTS idx_listings_complex ON listings(complex_id) WHERE active;

CREATE TABLE IF NOT EXISTS transactions (
	id         TEXT PRIMARY KEY,
	complex_id TEXT,
	address    TEXT NOT NULL DEFAULT '',
	price      REAL NOT NULL,
	area_sqm   REAL NOT NULL DEFAULT 0,
	sold_at    DATETIME NOT NULL,
	source     TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_transactions_complex ON transactions(complex_id, sold_at DESC);

CREATE TABLE IF NOT EXISTS scan_jobs (
	id             TEXT PRIMARY KEY,
	tier           TEXT NOT NULL DEFAULT '',
	mode           TEXT NOT NULL,
	complex_ids    TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'running',
	progress       INTEGER NOT NULL DEFAULT 0,
	total          INTEGER NOT NULL DEFAULT 0,
	fields_updated INTEGER NOT NULL DEFAULT 0,
	error_count    INTEGER NOT NULL DEFAULT 0,
	last_error     TEXT NOT NULL DEFAULT '',
	started_at     DATETIME NOT NULL,
	finished_at    DATETIME
);

CREATE INDEX IF NOT EXISTS idx_scan_jobs_status ON scan_jobs(status);

CREATE TABLE IF NOT EXISTS priority_snapshot (
	complex_id  TEXT PRIMARY KEY,
	total       REAL NOT NULL,
	components  TEXT NOT NULL,
	tier        TEXT NOT NULL,
	computed_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS tier_claims (
	tier       TEXT PRIMARY KEY,
	job_id     TEXT NOT NULL,
	claimed_at DATETIME NOT NULL
);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Close() error {
	return eris.Wrap(s.db.Close(), "sqlite: close")
}

func (s *SQLiteStore) CreateComplex(ctx context.Context, c *model.Complex) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO complexes (`+complexColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.City, c.Neighborhood, string(c.Status), c.PricePerSqm,
		c.BenchmarkPricePerSqm, c.Developer, c.DeveloperStrength, c.SignaturePct,
		c.UnitCount, c.HasEnforcement, c.HasReceivership, c.HasBankruptcy, c.Narrative,
		c.DataQualityFlag, c.LastEnrichedAt, c.PriorityScore, c.InvestmentScore,
		c.CreatedAt, c.UpdatedAt,
	)
	return eris.Wrap(err, "sqlite: insert complex")
}

func (s *SQLiteStore) ListComplexes(ctx context.Context) ([]model.Complex, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+complexColumns+` FROM complexes ORDER BY priority_score DESC, id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list complexes")
	}
	defer rows.Close()

	var complexes []model.Complex
	for rows.Next() {
		c, err := scanComplexSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan complex")
		}
		complexes = append(complexes, *c)
	}
	return complexes, eris.Wrap(rows.Err(), "sqlite: list complexes iterate")
}

func (s *SQLiteStore) GetComplex(ctx context.Context, id string) (*model.Complex, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+complexColumns+` FROM complexes WHERE id = ?`, id)
	c, err := scanComplexSQL(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get complex %s", id)
	}
	return c, nil
}

func (s *SQLiteStore) UpdateComplexEnrichment(ctx context.Context, c *model.Complex) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE complexes SET
			status = ?, price_per_sqm = ?, benchmark_price_per_sqm = ?,
			developer = ?, developer_strength = ?, signature_pct = ?,
			unit_count = ?, has_enforcement = ?, has_receivership = ?,
			has_bankruptcy = ?, narrative = ?, data_quality_flag = ?,
			last_enriched_at = ?, updated_at = ?
		 WHERE id = ?`,
		string(c.Status), c.PricePerSqm, c.BenchmarkPricePerSqm,
		c.Developer, c.DeveloperStrength, c.SignaturePct,
		c.UnitCount, c.HasEnforcement, c.HasReceivership,
		c.HasBankruptcy, c.Narrative, c.DataQualityFlag,
		c.LastEnrichedAt, time.Now().UTC(), c.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update complex enrichment %s", c.ID)
	}
	return requireRow(res, "complex", c.ID)
}

func (s *SQLiteStore) UpdateComplexScores(ctx context.Context, complexID string, investment, priorityScore float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE complexes SET investment_score = ?, priority_score = ?, updated_at = ? WHERE id = ?`,
		investment, priorityScore, time.Now().UTC(), complexID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update complex scores %s", complexID)
	}
	return requireRow(res, "complex", complexID)
}

func (s *SQLiteStore) ActiveListings(ctx context.Context, complexID string) ([]model.Listing, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+listingColumns+` FROM listings WHERE complex_id = ? AND active ORDER BY first_seen_at`,
		complexID)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active listings")
	}
	defer rows.Close()

	var listings []model.Listing
	for rows.Next() {
		l, err := scanListingSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing")
		}
		listings = append(listings, *l)
	}
	return listings, eris.Wrap(rows.Err(), "sqlite: active listings iterate")
}

func (s *SQLiteStore) ActiveListingCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT complex_id, COUNT(*) FROM listings
		 WHERE active AND complex_id IS NOT NULL GROUP BY complex_id`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: active listing counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan listing count")
		}
		counts[id] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: active listing counts iterate")
}

func (s *SQLiteStore) UpsertListing(ctx context.Context, l *model.Listing) error {
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
		_, err = s.db.ExecContext(ctx,
			`UPDATE listings SET active = 0, superseded_at = ?
			 WHERE source = ? AND external_id = ? AND active`,
			now, l.Source, l.ExternalID)
	} else {
		_, err = s.db.ExecContext(ctx,
			`UPDATE listings SET active = 0, superseded_at = ?
			 WHERE complex_id = ? AND address = ? AND active`,
			now, l.ComplexID, l.Address)
	}
	if err != nil {
		return eris.Wrap(err, "sqlite: supersede listing")
	}

	keywordsJSON, err := json.Marshal(l.Keywords)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal keywords")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO listings (`+listingColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		l.ID, nullIfEmpty(l.ComplexID), l.Source, l.ExternalID, l.Address, l.AskingPrice,
		l.AreaSqm, l.PriceDropPct, l.DaysOnMarket, l.Foreclosure, l.Inheritance, string(keywordsJSON),
		l.StressScore, l.Active, l.FirstSeenAt, l.LastSeenAt, l.SupersededAt,
	)
	return eris.Wrap(err, "sqlite: insert listing")
}

func (s *SQLiteStore) UpdateListingStress(ctx context.Context, listingID string, stress float64) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE listings SET stress_score = ? WHERE id = ?`,
		stress, listingID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update listing stress %s", listingID)
	}
	return requireRow(res, "listing", listingID)
}

func (s *SQLiteStore) InsertTransaction(ctx context.Context, tx *model.Transaction) error {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO transactions (id, complex_id, address, price, area_sqm, sold_at, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		tx.ID, nullIfEmpty(tx.ComplexID), tx.Address, tx.Price, tx.AreaSqm, tx.SoldAt, tx.Source,
	)
	return eris.Wrap(err, "sqlite: insert transaction")
}

func (s *SQLiteStore) RecentTransactionCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT complex_id, COUNT(*) FROM transactions
		 WHERE sold_at >= ? AND complex_id IS NOT NULL GROUP BY complex_id`,
		since)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: recent transaction counts")
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan transaction count")
		}
		counts[id] = n
	}
	return counts, eris.Wrap(rows.Err(), "sqlite: recent transaction counts iterate")
}

func (s *SQLiteStore) LocalityBenchmarks(ctx context.Context, since time.Time) (map[string]float64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.city || '/' || c.neighborhood, AVG(t.price / t.area_sqm)
		 FROM transactions t
		 JOIN complexes c ON c.id = t.complex_id
		 WHERE t.sold_at >= ? AND t.area_sqm > 0
		 GROUP BY c.city, c.neighborhood`,
		since)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: locality benchmarks")
	}
	defer rows.Close()

	benchmarks := make(map[string]float64)
	for rows.Next() {
		var locality string
		var avg float64
		if err := rows.Scan(&locality, &avg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan locality benchmark")
		}
		benchmarks[locality] = avg
	}
	return benchmarks, eris.Wrap(rows.Err(), "sqlite: locality benchmarks iterate")
}

func (s *SQLiteStore) CreateScanJob(ctx context.Context, job *model.ScanJob) error {
	idsJSON, err := json.Marshal(job.ComplexIDs)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal complex ids")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO scan_jobs (id, tier, mode, complex_ids, status, progress, total,
			fields_updated, error_count, last_error, started_at, finished_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, string(job.Tier), string(job.Mode), string(idsJSON), string(job.Status),
		job.Progress, job.Total, job.FieldsUpdated, job.ErrorCount, job.LastError,
		job.StartedAt, job.FinishedAt,
	)
	return eris.Wrap(err, "sqlite: insert scan job")
}

func (s *SQLiteStore) UpdateScanJob(ctx context.Context, job *model.ScanJob) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE scan_jobs SET status = ?, progress = ?, fields_updated = ?,
			error_count = ?, last_error = ?, finished_at = ? WHERE id = ?`,
		string(job.Status), job.Progress, job.FieldsUpdated,
		job.ErrorCount, job.LastError, job.FinishedAt, job.ID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update scan job %s", job.ID)
	}
	return requireRow(res, "scan job", job.ID)
}

func (s *SQLiteStore) GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, tier, mode, complex_ids, status, progress, total, fields_updated,
			error_count, last_error, started_at, finished_at
		 FROM scan_jobs WHERE id = ?`, jobID)
	job, err := scanJobSQL(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "sqlite: get scan job %s", jobID)
	}
	return job, nil
}

func (s *SQLiteStore) ListScanJobs(ctx context.Context, filter JobFilter) ([]model.ScanJob, error) {
	query := `SELECT id, tier, mode, complex_ids, status, progress, total, fields_updated,
		error_count, last_error, started_at, finished_at FROM scan_jobs WHERE true`
	args := []any{}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Tier != "" {
		query += ` AND tier = ?`
		args = append(args, string(filter.Tier))
	}
	query += ` ORDER BY started_at DESC LIMIT ?`
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list scan jobs")
	}
	defer rows.Close()

	var jobs []model.ScanJob
	for rows.Next() {
		job, err := scanJobSQL(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan scan job")
		}
		jobs = append(jobs, *job)
	}
	return jobs, eris.Wrap(rows.Err(), "sqlite: list scan jobs iterate")
}

func (s *SQLiteStore) ReplacePrioritySnapshot(ctx context.Context, records []model.PriorityRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin snapshot tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, `DELETE FROM priority_snapshot`); err != nil {
		return eris.Wrap(err, "sqlite: clear priority snapshot")
	}
	for _, r := range records {
		componentsJSON, err := json.Marshal(r.Components)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal priority components")
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO priority_snapshot (complex_id, total, components, tier, computed_at)
			 VALUES (?, ?, ?, ?, ?)`,
			r.ComplexID, r.Total, string(componentsJSON), string(r.Tier), r.ComputedAt,
		); err != nil {
			return eris.Wrap(err, "sqlite: insert priority record")
		}
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit snapshot")
}

func (s *SQLiteStore) ClaimTier(ctx context.Context, tier model.Tier, jobID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO tier_claims (tier, job_id, claimed_at) VALUES (?, ?, ?)
		 ON CONFLICT (tier) DO NOTHING`,
		string(tier), jobID, time.Now().UTC(),
	)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: claim tier %s", tier)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, eris.Wrap(err, "sqlite: claim tier rows affected")
	}
	return n > 0, nil
}

func (s *SQLiteStore) ReleaseTier(ctx context.Context, tier model.Tier) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM tier_claims WHERE tier = ?`, string(tier))
	return eris.Wrapf(err, "sqlite: release tier %s", tier)
}

// --- scan helpers (database/sql flavor) ---

type sqlRow interface {
	Scan(dest ...any) error
}

func scanComplexSQL(row sqlRow) (*model.Complex, error) {
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

func scanListingSQL(row sqlRow) (*model.Listing, error) {
	var l model.Listing
	var complexID, keywordsJSON sql.NullString
	err := row.Scan(&l.ID, &complexID, &l.Source, &l.ExternalID, &l.Address, &l.AskingPrice,
		&l.AreaSqm, &l.PriceDropPct, &l.DaysOnMarket, &l.Foreclosure, &l.Inheritance, &keywordsJSON,
		&l.StressScore, &l.Active, &l.FirstSeenAt, &l.LastSeenAt, &l.SupersededAt)
	if err != nil {
		return nil, err
	}
	l.ComplexID = complexID.String
	if keywordsJSON.Valid && keywordsJSON.String != "" {
		if err := json.Unmarshal([]byte(keywordsJSON.String), &l.Keywords); err != nil {
			return nil, err
		}
	}
	return &l, nil
}

func scanJobSQL(row sqlRow) (*model.ScanJob, error) {
	var j model.ScanJob
	var tier, mode, status, idsJSON string
	err := row.Scan(&j.ID, &tier, &mode, &idsJSON, &status, &j.Progress, &j.Total,
		&j.FieldsUpdated, &j.ErrorCount, &j.LastError, &j.StartedAt, &j.FinishedAt)
	if err != nil {
		return nil, err
	}
	j.Tier = model.Tier(tier)
	j.Mode = model.ScanMode(mode)
	j.Status = model.JobStatus(status)
	if err := json.Unmarshal([]byte(idsJSON), &j.ComplexIDs); err != nil {
		return nil, err
	}
	return &j, nil
}

func requireRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", kind, id)
	}
	return nil
}
