package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redev-labs/complex-scanner/internal/model"
)

func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	st, err := NewSQLite(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func seedComplex(t *testing.T, st *SQLiteStore, name string) *model.Complex {
	t.Helper()
	c := &model.Complex{
		Name:         name,
		City:         "Tel Aviv",
		Neighborhood: "Florentin",
		Status:       model.StatusPermits,
		PricePerSqm:  32000,
		Developer:    "Azorim",
		UnitCount:    120,
	}
	require.NoError(t, st.CreateComplex(context.Background(), c))
	return c
}

// --- Complexes ---

func TestSQLite_Complex_CreateAndGet(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")
	assert.NotEmpty(t, c.ID)

	got, err := st.GetComplex(ctx, c.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Herzl 12", got.Name)
	assert.Equal(t, model.StatusPermits, got.Status)
	assert.Equal(t, 32000.0, got.PricePerSqm)
}

func TestSQLite_Complex_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetComplex(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_Complex_UpdateEnrichment(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")
	now := time.Now().UTC().Truncate(time.Second)
	c.Status = model.StatusConstruction
	c.SignaturePct = 88.5
	c.HasEnforcement = true
	c.Narrative = "permits extended, sales office open"
	c.LastEnrichedAt = &now
	require.NoError(t, st.UpdateComplexEnrichment(ctx, c))

	got, err := st.GetComplex(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusConstruction, got.Status)
	assert.Equal(t, 88.5, got.SignaturePct)
	assert.True(t, got.HasEnforcement)
	require.NotNil(t, got.LastEnrichedAt)
}

func TestSQLite_Complex_UpdateScores(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")
	require.NoError(t, st.UpdateComplexScores(ctx, c.ID, 74.0, 82.0))

	got, err := st.GetComplex(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, 74.0, got.InvestmentScore)
	assert.Equal(t, 82.0, got.PriorityScore)
}

func TestSQLite_Complex_UpdateScoresMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	err := st.UpdateComplexScores(context.Background(), "nonexistent", 10, 10)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestSQLite_Complex_ListOrderedByPriority(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	low := seedComplex(t, st, "Low")
	high := seedComplex(t, st, "High")
	require.NoError(t, st.UpdateComplexScores(ctx, low.ID, 20, 15))
	require.NoError(t, st.UpdateComplexScores(ctx, high.ID, 80, 95))

	all, err := st.ListComplexes(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "High", all[0].Name)
	assert.Equal(t, "Low", all[1].Name)
}

// --- Listings ---

func TestSQLite_Listing_UpsertSupersedes(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")

	first := &model.Listing{
		ComplexID:   c.ID,
		Source:      "yad2",
		ExternalID:  "y2-991",
		Address:     "Herzl 12/4",
		AskingPrice: 2_900_000,
		Keywords:    []string{"urgent"},
	}
	require.NoError(t, st.UpsertListing(ctx, first))

	second := &model.Listing{
		ComplexID:    c.ID,
		Source:       "yad2",
		ExternalID:   "y2-991",
		Address:      "Herzl 12/4",
		AskingPrice:  2_750_000,
		PriceDropPct: 5.2,
	}
	require.NoError(t, st.UpsertListing(ctx, second))
	assert.NotEqual(t, first.ID, second.ID)

	active, err := st.ActiveListings(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, second.ID, active[0].ID)
	assert.Equal(t, 2_750_000.0, active[0].AskingPrice)
}

func TestSQLite_Listing_KeywordsRoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")
	l := &model.Listing{
		ComplexID: c.ID,
		Source:    "manual",
		Address:   "Herzl 12/7",
		Keywords:  []string{"urgent", "divorce"},
	}
	require.NoError(t, st.UpsertListing(ctx, l))

	active, err := st.ActiveListings(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, []string{"urgent", "divorce"}, active[0].Keywords)
}

func TestSQLite_Listing_UpdateStress(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")
	l := &model.Listing{ComplexID: c.ID, Source: "manual", Address: "Herzl 12/7"}
	require.NoError(t, st.UpsertListing(ctx, l))
	require.NoError(t, st.UpdateListingStress(ctx, l.ID, 60))

	active, err := st.ActiveListings(ctx, c.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, 60.0, active[0].StressScore)
}

func TestSQLite_Listing_ActiveCounts(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	a := seedComplex(t, st, "A")
	b := seedComplex(t, st, "B")
	for i, addr := range []string{"A 1", "A 2", "B 1"} {
		cid := a.ID
		if i == 2 {
			cid = b.ID
		}
		require.NoError(t, st.UpsertListing(ctx, &model.Listing{
			ComplexID: cid, Source: "manual", Address: addr,
		}))
	}

	counts, err := st.ActiveListingCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, counts[a.ID])
	assert.Equal(t, 1, counts[b.ID])
}

// --- Transactions and benchmarks ---

func TestSQLite_Transactions_CountsAndBenchmarks(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	c := seedComplex(t, st, "Herzl 12")
	now := time.Now().UTC()
	for _, tx := range []model.Transaction{
		{ComplexID: c.ID, Address: "Herzl 12/1", Price: 3_000_000, AreaSqm: 100, SoldAt: now.AddDate(0, -2, 0)},
		{ComplexID: c.ID, Address: "Herzl 12/2", Price: 2_000_000, AreaSqm: 50, SoldAt: now.AddDate(0, -1, 0)},
		{ComplexID: c.ID, Address: "Herzl 12/3", Price: 1_000_000, AreaSqm: 50, SoldAt: now.AddDate(-2, 0, 0)},
	} {
		require.NoError(t, st.InsertTransaction(ctx, &tx))
	}

	counts, err := st.RecentTransactionCounts(ctx, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, 2, counts[c.ID])

	// (30000 + 40000) / 2 over the trailing year.
	benchmarks, err := st.LocalityBenchmarks(ctx, now.AddDate(-1, 0, 0))
	require.NoError(t, err)
	assert.InDelta(t, 35000, benchmarks["Tel Aviv/Florentin"], 0.01)
}

// --- Scan jobs ---

func TestSQLite_ScanJob_RoundTrip(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	job := &model.ScanJob{
		ID:         "job-1",
		Tier:       model.TierHot,
		Mode:       model.ModeFull,
		ComplexIDs: []string{"cx-1", "cx-2"},
		Status:     model.JobStatusRunning,
		Total:      2,
		StartedAt:  time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, st.CreateScanJob(ctx, job))

	finished := time.Now().UTC().Truncate(time.Second)
	job.Status = model.JobStatusCompleted
	job.Progress = 2
	job.FieldsUpdated = 7
	job.FinishedAt = &finished
	require.NoError(t, st.UpdateScanJob(ctx, job))

	got, err := st.GetScanJob(ctx, "job-1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.JobStatusCompleted, got.Status)
	assert.Equal(t, []string{"cx-1", "cx-2"}, got.ComplexIDs)
	assert.Equal(t, 7, got.FieldsUpdated)
	require.NotNil(t, got.FinishedAt)
}

func TestSQLite_ScanJob_GetMissing(t *testing.T) {
	st := newTestSQLiteStore(t)

	got, err := st.GetScanJob(context.Background(), "nonexistent")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLite_ScanJob_ListFiltered(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	jobs := []*model.ScanJob{
		{ID: "job-1", Tier: model.TierHot, Mode: model.ModeFull, ComplexIDs: []string{"a"}, Status: model.JobStatusCompleted, StartedAt: base.Add(-2 * time.Hour)},
		{ID: "job-2", Tier: model.TierHot, Mode: model.ModeFull, ComplexIDs: []string{"b"}, Status: model.JobStatusRunning, StartedAt: base.Add(-time.Hour)},
		{ID: "job-3", Tier: model.TierDormant, Mode: model.ModeStatusCheck, ComplexIDs: []string{"c"}, Status: model.JobStatusCompleted, StartedAt: base},
	}
	for _, j := range jobs {
		require.NoError(t, st.CreateScanJob(ctx, j))
	}

	completed, err := st.ListScanJobs(ctx, JobFilter{Status: model.JobStatusCompleted})
	require.NoError(t, err)
	require.Len(t, completed, 2)
	assert.Equal(t, "job-3", completed[0].ID) // newest first

	hot, err := st.ListScanJobs(ctx, JobFilter{Tier: model.TierHot, Status: model.JobStatusRunning})
	require.NoError(t, err)
	require.Len(t, hot, 1)
	assert.Equal(t, "job-2", hot[0].ID)
}

// --- Priority snapshot ---

func TestSQLite_PrioritySnapshot_Replace(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	now := time.Now().UTC().Truncate(time.Second)
	first := []model.PriorityRecord{
		{ComplexID: "cx-1", Total: 91, Tier: model.TierHot, ComputedAt: now},
		{ComplexID: "cx-2", Total: 44, Tier: model.TierActive, ComputedAt: now},
	}
	require.NoError(t, st.ReplacePrioritySnapshot(ctx, first))

	// A second snapshot fully replaces the first.
	second := []model.PriorityRecord{
		{ComplexID: "cx-3", Total: 12, Tier: model.TierDormant, ComputedAt: now},
	}
	require.NoError(t, st.ReplacePrioritySnapshot(ctx, second))

	var n int
	row := st.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM priority_snapshot`)
	require.NoError(t, row.Scan(&n))
	assert.Equal(t, 1, n)
}

// --- Tier claims ---

func TestSQLite_TierClaims(t *testing.T) {
	st := newTestSQLiteStore(t)
	ctx := context.Background()

	won, err := st.ClaimTier(ctx, model.TierHot, "job-1")
	require.NoError(t, err)
	assert.True(t, won)

	// Same tier is held; a different tier is free.
	won, err = st.ClaimTier(ctx, model.TierHot, "job-2")
	require.NoError(t, err)
	assert.False(t, won)

	won, err = st.ClaimTier(ctx, model.TierActive, "job-3")
	require.NoError(t, err)
	assert.True(t, won)

	require.NoError(t, st.ReleaseTier(ctx, model.TierHot))
	won, err = st.ClaimTier(ctx, model.TierHot, "job-4")
	require.NoError(t, err)
	assert.True(t, won)
}
