// Package store persists complexes, listings, transactions, scan jobs and
// the priority snapshot behind one interface with Postgres and SQLite
// backends.
package store

import (
	"context"
	"time"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// JobFilter specifies criteria for listing scan jobs.
type JobFilter struct {
	Status model.JobStatus `json:"status,omitempty"`
	Tier   model.Tier      `json:"tier,omitempty"`
	Limit  int             `json:"limit,omitempty"`
}

// Store defines the persistence interface for the scan pipeline.
type Store interface {
	// Complexes
	CreateComplex(ctx context.Context, c *model.Complex) error
	ListComplexes(ctx context.Context) ([]model.Complex, error)
	GetComplex(ctx context.Context, id string) (*model.Complex, error)
	UpdateComplexEnrichment(ctx context.Context, c *model.Complex) error
	UpdateComplexScores(ctx context.Context, complexID string, investment, priorityScore float64) error

	// Listings and transactions
	ActiveListings(ctx context.Context, complexID string) ([]model.Listing, error)
	ActiveListingCounts(ctx context.Context) (map[string]int, error)
	UpsertListing(ctx context.Context, l *model.Listing) error
	UpdateListingStress(ctx context.Context, listingID string, stress float64) error
	InsertTransaction(ctx context.Context, tx *model.Transaction) error
	RecentTransactionCounts(ctx context.Context, since time.Time) (map[string]int, error)
	LocalityBenchmarks(ctx context.Context, since time.Time) (map[string]float64, error)

	// Scan jobs
	CreateScanJob(ctx context.Context, job *model.ScanJob) error
	UpdateScanJob(ctx context.Context, job *model.ScanJob) error
	GetScanJob(ctx context.Context, jobID string) (*model.ScanJob, error)
	ListScanJobs(ctx context.Context, filter JobFilter) ([]model.ScanJob, error)

	// Priority snapshot
	ReplacePrioritySnapshot(ctx context.Context, records []model.PriorityRecord) error

	// Tier claims. ClaimTier atomically takes the per-tier scan lock and
	// reports whether this caller won it.
	ClaimTier(ctx context.Context, tier model.Tier, jobID string) (bool, error)
	ReleaseTier(ctx context.Context, tier model.Tier) error

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
