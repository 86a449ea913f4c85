package scoring

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/priority"
)

// benchmarkWindow is how far back locality transaction averages look.
const benchmarkWindow = 365 * 24 * time.Hour

// defaultParallelism bounds the per-complex recompute fan-out.
const defaultParallelism = 8

// Store is the persistence surface the recompute pass needs.
type Store interface {
	ListComplexes(ctx context.Context) ([]model.Complex, error)
	ActiveListingCounts(ctx context.Context) (map[string]int, error)
	RecentTransactionCounts(ctx context.Context, since time.Time) (map[string]int, error)
	LocalityBenchmarks(ctx context.Context, since time.Time) (map[string]float64, error)
	ActiveListings(ctx context.Context, complexID string) ([]model.Listing, error)
	UpdateListingStress(ctx context.Context, listingID string, stress float64) error
	UpdateComplexScores(ctx context.Context, complexID string, investment, priorityScore float64) error
	ReplacePrioritySnapshot(ctx context.Context, records []model.PriorityRecord) error
}

// Recomputer rebuilds every derived score across the full population. It is
// the only writer of investment scores, stress scores and the priority
// snapshot, so a completed pass leaves all three mutually consistent.
type Recomputer struct {
	store       Store
	scorer      *priority.Scorer
	parallelism int
	now         func() time.Time
	log         *zap.Logger
}

// RecomputerOption customizes a Recomputer.
type RecomputerOption func(*Recomputer)

// WithParallelism bounds the per-complex fan-out.
func WithParallelism(n int) RecomputerOption {
	return func(r *Recomputer) {
		if n > 0 {
			r.parallelism = n
		}
	}
}

// WithClock overrides the wall clock, for tests.
func WithClock(now func() time.Time) RecomputerOption {
	return func(r *Recomputer) { r.now = now }
}

// NewRecomputer wires a Recomputer against a store and a priority scorer.
func NewRecomputer(store Store, scorer *priority.Scorer, opts ...RecomputerOption) *Recomputer {
	r := &Recomputer{
		store:       store,
		scorer:      scorer,
		parallelism: defaultParallelism,
		now:         time.Now,
		log:         zap.L().Named("recompute"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// RecomputeAll rescores the whole tracked population and replaces the
// priority snapshot. Per-complex failures are logged and skipped so one bad
// row cannot abort the pass; load and snapshot failures are fatal.
func (r *Recomputer) RecomputeAll(ctx context.Context) (*priority.Partition, error) {
	now := r.now()
	since := now.Add(-benchmarkWindow)

	complexes, err := r.store.ListComplexes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "recompute: list complexes")
	}
	listingCounts, err := r.store.ActiveListingCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "recompute: active listing counts")
	}
	txCounts, err := r.store.RecentTransactionCounts(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "recompute: recent transaction counts")
	}
	benchmarks, err := r.store.LocalityBenchmarks(ctx, since)
	if err != nil {
		return nil, eris.Wrap(err, "recompute: locality benchmarks")
	}

	var failed atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for i := range complexes {
		c := &complexes[i]
		g.Go(func() error {
			if err := r.rescoreComplex(gctx, c, listingCounts, txCounts, benchmarks); err != nil {
				failed.Add(1)
				r.log.Warn("complex rescore failed",
					zap.String("complex_id", c.ID),
					zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "recompute: rescore fan-out")
	}

	partition := r.scorer.Classify(complexes, listingCounts, now)

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(r.parallelism)
	for _, rec := range partition.Records() {
		g.Go(func() error {
			inv := investmentByID(complexes, rec.ComplexID)
			if err := r.store.UpdateComplexScores(gctx, rec.ComplexID, inv, rec.Total); err != nil {
				failed.Add(1)
				r.log.Warn("score persist failed",
					zap.String("complex_id", rec.ComplexID),
					zap.Error(err))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "recompute: persist fan-out")
	}

	if err := r.store.ReplacePrioritySnapshot(ctx, partition.Records()); err != nil {
		return nil, eris.Wrap(err, "recompute: replace priority snapshot")
	}

	r.log.Info("population rescored",
		zap.Int("complexes", len(complexes)),
		zap.Int("hot", len(partition.Hot)),
		zap.Int("active", len(partition.Active)),
		zap.Int("dormant", len(partition.Dormant)),
		zap.Int64("failed", failed.Load()))
	return partition, nil
}

// rescoreComplex recomputes one complex's investment score and the stress
// score of each of its active listings, mutating c in place so the later
// classification sees the fresh value.
func (r *Recomputer) rescoreComplex(ctx context.Context, c *model.Complex, listingCounts, txCounts map[string]int, benchmarks map[string]float64) error {
	if c.BenchmarkPricePerSqm <= 0 {
		if avg, ok := benchmarks[localityKey(c)]; ok {
			c.BenchmarkPricePerSqm = avg
		}
	}

	inv := ComputeInvestmentScore(c, MomentumInputs{
		RecentTransactions: txCounts[c.ID],
		ActiveListings:     listingCounts[c.ID],
	})
	c.InvestmentScore = inv.Total

	listings, err := r.store.ActiveListings(ctx, c.ID)
	if err != nil {
		return eris.Wrapf(err, "list active listings for %s", c.ID)
	}
	for i := range listings {
		stress := ComputeSellerStress(&listings[i])
		if err := r.store.UpdateListingStress(ctx, listings[i].ID, stress.Total); err != nil {
			return eris.Wrapf(err, "persist stress for listing %s", listings[i].ID)
		}
	}
	return nil
}

func localityKey(c *model.Complex) string {
	return c.City + "/" + c.Neighborhood
}

func investmentByID(complexes []model.Complex, id string) float64 {
	for i := range complexes {
		if complexes[i].ID == id {
			return complexes[i].InvestmentScore
		}
	}
	return 0
}
