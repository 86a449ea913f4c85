package scoring

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/priority"
)

type fakeStore struct {
	mu sync.Mutex

	complexes  []model.Complex
	listings   map[string][]model.Listing
	counts     map[string]int
	txCounts   map[string]int
	benchmarks map[string]float64

	listErr        error
	activeErrFor   string
	complexScores  map[string][2]float64
	listingStress  map[string]float64
	snapshot       []model.PriorityRecord
	snapshotCalled int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		listings:      map[string][]model.Listing{},
		counts:        map[string]int{},
		txCounts:      map[string]int{},
		benchmarks:    map[string]float64{},
		complexScores: map[string][2]float64{},
		listingStress: map[string]float64{},
	}
}

func (f *fakeStore) ListComplexes(context.Context) ([]model.Complex, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.complexes, nil
}

func (f *fakeStore) ActiveListingCounts(context.Context) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeStore) RecentTransactionCounts(context.Context, time.Time) (map[string]int, error) {
	return f.txCounts, nil
}

func (f *fakeStore) LocalityBenchmarks(context.Context, time.Time) (map[string]float64, error) {
	return f.benchmarks, nil
}

func (f *fakeStore) ActiveListings(_ context.Context, complexID string) ([]model.Listing, error) {
	if complexID == f.activeErrFor {
		return nil, errors.New("listing fetch blew up")
	}
	return f.listings[complexID], nil
}

func (f *fakeStore) UpdateListingStress(_ context.Context, listingID string, stress float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listingStress[listingID] = stress
	return nil
}

func (f *fakeStore) UpdateComplexScores(_ context.Context, complexID string, investment, priorityScore float64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complexScores[complexID] = [2]float64{investment, priorityScore}
	return nil
}

func (f *fakeStore) ReplacePrioritySnapshot(_ context.Context, records []model.PriorityRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snapshot = records
	f.snapshotCalled++
	return nil
}

func recomputeClock() func() time.Time {
	fixed := time.Date(2025, 6, 4, 9, 0, 0, 0, time.UTC)
	return func() time.Time { return fixed }
}

func TestRecomputeAll_PersistsScoresAndSnapshot(t *testing.T) {
	store := newFakeStore()
	store.complexes = []model.Complex{
		{ID: "cx-1", Name: "Herzl 12", City: "Tel Aviv", Neighborhood: "Florentin",
			Status: model.StatusApproved, PricePerSqm: 9000, BenchmarkPricePerSqm: 11000,
			Developer: "Azorim", DeveloperStrength: 3, UnitCount: 90},
		{ID: "cx-2", Name: "Bialik 4", City: "Ramat Gan", Neighborhood: "Center",
			Status: model.StatusDeclared},
	}
	store.counts = map[string]int{"cx-1": 2}
	store.listings["cx-1"] = []model.Listing{
		{ID: "ls-1", ComplexID: "cx-1", DaysOnMarket: 95, PriceDropPct: 12},
		{ID: "ls-2", ComplexID: "cx-1", DaysOnMarket: 10},
	}

	r := NewRecomputer(store, priority.NewScorer(priority.Config{}), WithClock(recomputeClock()))
	partition, err := r.RecomputeAll(context.Background())

	require.NoError(t, err)
	require.NotNil(t, partition)
	assert.Len(t, store.complexScores, 2)
	assert.Equal(t, 1, store.snapshotCalled)
	assert.Len(t, store.snapshot, 2)

	// Persisted investment score matches a fresh pure computation.
	want := ComputeInvestmentScore(&store.complexes[0], MomentumInputs{ActiveListings: 2})
	assert.Equal(t, want.Total, store.complexScores["cx-1"][0])
	assert.Greater(t, store.complexScores["cx-1"][1], 0.0)

	assert.Equal(t, 60.0, store.listingStress["ls-1"])
	assert.Equal(t, 0.0, store.listingStress["ls-2"])
}

func TestRecomputeAll_BackfillsBenchmarkFromLocality(t *testing.T) {
	store := newFakeStore()
	store.complexes = []model.Complex{
		{ID: "cx-1", City: "Tel Aviv", Neighborhood: "Florentin",
			Status: model.StatusApproved, PricePerSqm: 8000},
	}
	store.benchmarks = map[string]float64{"Tel Aviv/Florentin": 10000}

	r := NewRecomputer(store, priority.NewScorer(priority.Config{}), WithClock(recomputeClock()))
	_, err := r.RecomputeAll(context.Background())

	require.NoError(t, err)
	withBenchmark := model.Complex{ID: "cx-1", City: "Tel Aviv", Neighborhood: "Florentin",
		Status: model.StatusApproved, PricePerSqm: 8000, BenchmarkPricePerSqm: 10000}
	want := ComputeInvestmentScore(&withBenchmark, MomentumInputs{})
	assert.Equal(t, want.Total, store.complexScores["cx-1"][0])
}

func TestRecomputeAll_PerComplexFailureDoesNotAbort(t *testing.T) {
	store := newFakeStore()
	store.complexes = []model.Complex{
		{ID: "cx-bad", Status: model.StatusApproved},
		{ID: "cx-good", Status: model.StatusApproved, PricePerSqm: 9000, BenchmarkPricePerSqm: 10000},
	}
	store.activeErrFor = "cx-bad"

	r := NewRecomputer(store, priority.NewScorer(priority.Config{}), WithClock(recomputeClock()))
	partition, err := r.RecomputeAll(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 1, store.snapshotCalled)
	// Both complexes still get classified and persisted; only the failed
	// complex's listing pass is lost.
	assert.Len(t, partition.Records(), 2)
	assert.Contains(t, store.complexScores, "cx-good")
	assert.Contains(t, store.complexScores, "cx-bad")
}

func TestRecomputeAll_LoadFailureIsFatal(t *testing.T) {
	store := newFakeStore()
	store.listErr = errors.New("db down")

	r := NewRecomputer(store, priority.NewScorer(priority.Config{}), WithClock(recomputeClock()))
	_, err := r.RecomputeAll(context.Background())

	require.Error(t, err)
	assert.Equal(t, 0, store.snapshotCalled)
}
