package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/model"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return &PostgresStore{pool: mock}, mock
}

// anyListingArgs matches the 17 listing-column arguments without checking
// their values; pgxmock requires the argument count to match exactly.
func anyListingArgs() []any {
	args := make([]any, 17)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func TestClaimTier(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("INSERT INTO tier_claims").
		WithArgs("hot", "job-1", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	won, err := s.ClaimTier(context.TODO(), model.TierHot, "job-1")
	require.NoError(t, err)
	assert.True(t, won)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestClaimTier_AlreadyHeld(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	// ON CONFLICT DO NOTHING affects zero rows when the claim exists.
	mock.ExpectExec("INSERT INTO tier_claims").
		WithArgs("hot", "job-2", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	won, err := s.ClaimTier(context.TODO(), model.TierHot, "job-2")
	require.NoError(t, err)
	assert.False(t, won)
}

func TestReleaseTier(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("DELETE FROM tier_claims").
		WithArgs("active").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	require.NoError(t, s.ReleaseTier(context.TODO(), model.TierActive))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetComplex_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("FROM complexes WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	c, err := s.GetComplex(context.TODO(), "missing")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestGetComplex(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	now := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "name", "city", "neighborhood", "status", "price_per_sqm",
		"benchmark_price_per_sqm", "developer", "developer_strength", "signature_pct",
		"unit_count", "has_enforcement", "has_receivership", "has_bankruptcy", "narrative",
		"data_quality_flag", "last_enriched_at", "priority_score", "investment_score",
		"created_at", "updated_at",
	}).AddRow(
		"cx-1", "Herzl 12", "Tel Aviv", "Florentin", "permits", 32000.0,
		38000.0, "Azorim", 4, 71.5,
		120, false, false, false, "",
		false, (*time.Time)(nil), 82.0, 74.0,
		now, now,
	)
	mock.ExpectQuery("FROM complexes WHERE id").
		WithArgs("cx-1").
		WillReturnRows(rows)

	c, err := s.GetComplex(context.TODO(), "cx-1")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, model.StatusPermits, c.Status)
	assert.Equal(t, 32000.0, c.PricePerSqm)
	assert.Equal(t, 120, c.UnitCount)
}

func TestUpdateComplexScores_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE complexes SET investment_score").
		WithArgs(74.0, 82.0, pgxmock.AnyArg(), "missing").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := s.UpdateComplexScores(context.TODO(), "missing", 74.0, 82.0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestUpsertListing_SupersedesByExternalID(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE listings SET active = false").
		WithArgs(pgxmock.AnyArg(), "yad2", "y2-991").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(anyListingArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l := &model.Listing{
		ComplexID:   "cx-1",
		Source:      "yad2",
		ExternalID:  "y2-991",
		Address:     "Herzl 12/4",
		AskingPrice: 2_900_000,
	}
	require.NoError(t, s.UpsertListing(context.TODO(), l))
	assert.NotEmpty(t, l.ID)
	assert.True(t, l.Active)
	assert.False(t, l.FirstSeenAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertListing_NoExternalIDMatchesByAddress(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("UPDATE listings SET active = false").
		WithArgs(pgxmock.AnyArg(), "cx-1", "Herzl 12/4").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mock.ExpectExec("INSERT INTO listings").
		WithArgs(anyListingArgs()...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	l := &model.Listing{
		ComplexID:   "cx-1",
		Source:      "manual",
		Address:     "Herzl 12/4",
		AskingPrice: 2_750_000,
	}
	require.NoError(t, s.UpsertListing(context.TODO(), l))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetScanJob(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	started := time.Now().UTC()
	rows := pgxmock.NewRows([]string{
		"id", "tier", "mode", "complex_ids", "status", "progress", "total",
		"fields_updated", "error_count", "last_error", "started_at", "finished_at",
	}).AddRow(
		"job-1", "hot", "full", []byte(`["cx-1","cx-2"]`), "running", 1, 2,
		5, 0, "", started, (*time.Time)(nil),
	)
	mock.ExpectQuery("FROM scan_jobs WHERE id").
		WithArgs("job-1").
		WillReturnRows(rows)

	job, err := s.GetScanJob(context.TODO(), "job-1")
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, model.TierHot, job.Tier)
	assert.Equal(t, model.ModeFull, job.Mode)
	assert.Equal(t, []string{"cx-1", "cx-2"}, job.ComplexIDs)
	assert.Equal(t, 1, job.Progress)
}

func TestGetScanJob_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery("FROM scan_jobs WHERE id").
		WithArgs("missing").
		WillReturnError(pgx.ErrNoRows)

	job, err := s.GetScanJob(context.TODO(), "missing")
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestListScanJobs_Filtered(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	rows := pgxmock.NewRows([]string{
		"id", "tier", "mode", "complex_ids", "status", "progress", "total",
		"fields_updated", "error_count", "last_error", "started_at", "finished_at",
	}).AddRow(
		"job-9", "dormant", "status_check", []byte(`["cx-7"]`), "completed", 1, 1,
		2, 0, "", time.Now().UTC(), (*time.Time)(nil),
	)
	mock.ExpectQuery("FROM scan_jobs WHERE true AND status").
		WithArgs("completed", "dormant", 10).
		WillReturnRows(rows)

	jobs, err := s.ListScanJobs(context.TODO(), JobFilter{
		Status: model.JobStatusCompleted,
		Tier:   model.TierDormant,
		Limit:  10,
	})
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "job-9", jobs[0].ID)
	assert.Equal(t, model.JobStatusCompleted, jobs[0].Status)
}

func TestReplacePrioritySnapshot(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec("DELETE FROM priority_snapshot").
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"priority_snapshot"},
		[]string{"complex_id", "total", "components", "tier", "computed_at"}).
		WillReturnResult(2)

	records := []model.PriorityRecord{
		{ComplexID: "cx-1", Total: 91.0, Tier: model.TierHot, ComputedAt: time.Now().UTC()},
		{ComplexID: "cx-2", Total: 44.0, Tier: model.TierActive, ComputedAt: time.Now().UTC()},
	}
	require.NoError(t, s.ReplacePrioritySnapshot(context.TODO(), records))
	assert.NoError(t, mock.ExpectationsWereMet())
}
