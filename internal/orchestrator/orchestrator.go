package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/engine"
	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/priority"
	"github.com/redev-labs/complex-scanner/internal/scoring"
	"github.com/redev-labs/complex-scanner/internal/store"
)

const defaultComplexPacing = 3 * time.Second

// ErrJobNotFound is returned by Status for an unknown job ID.
var ErrJobNotFound = eris.New("orchestrator: job not found")

// ErrTierBusy is returned by Launch when the requested tier already has a
// running scan holding the claim.
var ErrTierBusy = eris.New("orchestrator: tier already claimed")

// Enricher runs the multi-engine research pass for one complex.
type Enricher interface {
	Enrich(ctx context.Context, c *model.Complex, mode model.ScanMode) (*model.MergedResult, error)
}

// Recomputer rescores the whole population and returns the fresh partition.
type Recomputer interface {
	RecomputeAll(ctx context.Context) (*priority.Partition, error)
}

// chainRequest is a follow-up scan to launch when its target job terminates.
type chainRequest struct {
	jobID string
	tier  model.Tier
	mode  model.ScanMode
}

// TierSummary is the scheduler-facing record of the last finished scan of a
// tier.
type TierSummary struct {
	JobID         string          `json:"job_id"`
	Status        model.JobStatus `json:"status"`
	Mode          model.ScanMode  `json:"mode"`
	FieldsUpdated int             `json:"fields_updated"`
	ErrorCount    int             `json:"error_count"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// Orchestrator launches scan jobs, drives them in the background, and sweeps
// finished jobs on Monitor ticks. All dependencies are injected.
type Orchestrator struct {
	store      store.Store
	enricher   Enricher
	recomputer Recomputer

	pacing time.Duration
	now    func() time.Time
	log    *zap.Logger

	mu        sync.Mutex
	jobs      map[string]*model.ScanJob // running plus not-yet-swept terminal jobs
	chain     *chainRequest
	summaries map[model.Tier]TierSummary
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithPacing sets the fixed delay between complexes within one job.
func WithPacing(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.pacing = d
		}
	}
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// New wires an Orchestrator from its dependencies.
func New(st store.Store, enricher Enricher, recomputer Recomputer, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		store:      st,
		enricher:   enricher,
		recomputer: recomputer,
		pacing:     defaultComplexPacing,
		now:        time.Now,
		log:        zap.L().Named("orchestrator"),
		jobs:       make(map[string]*model.ScanJob),
		summaries:  make(map[model.Tier]TierSummary),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Launch persists a new scan job over the given complexes and starts its
// driver goroutine. Tiered launches take the tier claim first and fail fast
// if another scan of the same tier is still running.
func (o *Orchestrator) Launch(ctx context.Context, complexIDs []string, tier model.Tier, mode model.ScanMode) (model.JobSnapshot, error) {
	if len(complexIDs) == 0 {
		return model.JobSnapshot{}, eris.New("orchestrator: empty complex list")
	}
	if !model.ValidScanMode(mode) {
		return model.JobSnapshot{}, eris.Errorf("orchestrator: invalid scan mode %q", mode)
	}
	if tier != "" && !model.ValidTier(tier) {
		return model.JobSnapshot{}, eris.Errorf("orchestrator: invalid tier %q", tier)
	}

	jobID := uuid.New().String()

	o.mu.Lock()
	defer o.mu.Unlock()

	if tier != "" {
		won, err := o.store.ClaimTier(ctx, tier, jobID)
		if err != nil {
			return model.JobSnapshot{}, eris.Wrapf(err, "orchestrator: claim tier %s", tier)
		}
		if !won {
			return model.JobSnapshot{}, ErrTierBusy
		}
	}

	job := &model.ScanJob{
		ID:         jobID,
		Tier:       tier,
		Mode:       mode,
		ComplexIDs: append([]string(nil), complexIDs...),
		Status:     model.JobStatusRunning,
		Total:      len(complexIDs),
		StartedAt:  o.now().UTC(),
	}
	if err := o.store.CreateScanJob(ctx, job); err != nil {
		if tier != "" {
			if relErr := o.store.ReleaseTier(ctx, tier); relErr != nil {
				o.log.Warn("release tier after failed launch", zap.Error(relErr))
			}
		}
		return model.JobSnapshot{}, eris.Wrap(err, "orchestrator: persist job")
	}
	o.jobs[jobID] = job

	o.log.Info("job launched",
		zap.String("job_id", jobID),
		zap.String("tier", string(tier)),
		zap.String("mode", string(mode)),
		zap.Int("complexes", len(complexIDs)))

	// The driver outlives the launching request.
	go o.drive(context.WithoutCancel(ctx), job)

	return job.Snapshot(), nil
}

// drive processes the job's complexes strictly in order. A per-complex
// failure is counted and skipped; only a driver-level failure marks the job
// as errored.
func (o *Orchestrator) drive(ctx context.Context, job *model.ScanJob) {
	log := o.log.With(zap.String("job_id", job.ID))

	defer func() {
		if r := recover(); r != nil {
			log.Error("driver panic", zap.Any("panic", r))
			o.finishJob(ctx, job, model.JobStatusError, eris.Errorf("driver panic: %v", r))
		}
	}()

	ids := job.ComplexIDs
	for i, complexID := range ids {
		if i > 0 {
			select {
			case <-time.After(o.pacing):
			case <-ctx.Done():
				o.finishJob(ctx, job, model.JobStatusError, ctx.Err())
				return
			}
		}

		updated, err := o.processComplex(ctx, complexID, job.Mode)

		o.mu.Lock()
		job.Progress = i + 1
		job.FieldsUpdated += updated
		if err != nil {
			job.ErrorCount++
			job.LastError = err.Error()
			log.Warn("complex failed", zap.String("complex_id", complexID), zap.Error(err))
		}
		snapshot := *job
		o.mu.Unlock()

		if persistErr := o.store.UpdateScanJob(ctx, &snapshot); persistErr != nil {
			log.Error("persist progress", zap.Error(persistErr))
			o.finishJob(ctx, job, model.JobStatusError, persistErr)
			return
		}
	}

	o.finishJob(ctx, job, model.JobStatusCompleted, nil)
}

// processComplex runs one enrichment pass and persists everything it
// produced. Returns the fields-updated count.
func (o *Orchestrator) processComplex(ctx context.Context, complexID string, mode model.ScanMode) (int, error) {
	c, err := o.store.GetComplex(ctx, complexID)
	if err != nil {
		return 0, eris.Wrapf(err, "load complex %s", complexID)
	}
	if c == nil {
		return 0, eris.Errorf("complex not found: %s", complexID)
	}

	merged, err := o.enricher.Enrich(ctx, c, mode)
	if err != nil {
		return 0, eris.Wrapf(err, "enrich complex %s", complexID)
	}

	now := o.now().UTC()
	updated := engine.Apply(c, merged, now)
	if err := o.store.UpdateComplexEnrichment(ctx, c); err != nil {
		return updated, eris.Wrapf(err, "persist complex %s", complexID)
	}

	for _, obs := range merged.Listings {
		l := &model.Listing{
			ComplexID:    c.ID,
			Source:       obs.Source,
			ExternalID:   obs.ExternalID,
			Address:      obs.Address,
			AskingPrice:  obs.AskingPrice,
			AreaSqm:      obs.AreaSqm,
			PriceDropPct: obs.PriceDropPct,
			DaysOnMarket: obs.DaysOnMarket,
			Foreclosure:  obs.Foreclosure,
			Inheritance:  obs.Inheritance,
			Keywords:     obs.Keywords,
		}
		if l.Source == "" {
			l.Source = "research"
		}
		l.StressScore = scoring.ComputeSellerStress(l).Total
		if err := o.store.UpsertListing(ctx, l); err != nil {
			return updated, eris.Wrapf(err, "upsert listing %s", obs.Address)
		}
	}

	for _, obs := range merged.Transactions {
		tx := &model.Transaction{
			ComplexID: c.ID,
			Address:   obs.Address,
			Price:     obs.Price,
			AreaSqm:   obs.AreaSqm,
			SoldAt:    parseSoldAt(obs.SoldAt, now),
			Source:    "research",
		}
		if err := o.store.InsertTransaction(ctx, tx); err != nil {
			return updated, eris.Wrapf(err, "insert transaction %s", obs.Address)
		}
	}

	return updated, nil
}

// finishJob records the terminal status in memory and in the store.
func (o *Orchestrator) finishJob(ctx context.Context, job *model.ScanJob, status model.JobStatus, cause error) {
	finished := o.now().UTC()

	o.mu.Lock()
	job.Status = status
	job.FinishedAt = &finished
	if cause != nil && job.LastError == "" {
		job.LastError = cause.Error()
	}
	snapshot := *job
	o.mu.Unlock()

	if err := o.store.UpdateScanJob(ctx, &snapshot); err != nil {
		o.log.Error("persist terminal job state", zap.String("job_id", job.ID), zap.Error(err))
	}
	o.log.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("status", string(status)),
		zap.Int("fields_updated", snapshot.FieldsUpdated),
		zap.Int("errors", snapshot.ErrorCount))
}

// Status returns the job snapshot, consulting memory first and the store for
// swept jobs and jobs from earlier process lifetimes.
func (o *Orchestrator) Status(ctx context.Context, jobID string) (model.JobSnapshot, error) {
	o.mu.Lock()
	if job, ok := o.jobs[jobID]; ok {
		snap := job.Snapshot()
		o.mu.Unlock()
		return snap, nil
	}
	o.mu.Unlock()

	job, err := o.store.GetScanJob(ctx, jobID)
	if err != nil {
		return model.JobSnapshot{}, eris.Wrapf(err, "orchestrator: load job %s", jobID)
	}
	if job == nil {
		return model.JobSnapshot{}, ErrJobNotFound
	}
	return job.Snapshot(), nil
}

// RegisterChain queues a follow-up scan to fire when jobID terminates. At
// most one chain is pending; a new registration replaces the old one.
func (o *Orchestrator) RegisterChain(jobID string, tier model.Tier, mode model.ScanMode) error {
	if !model.ValidTier(tier) {
		return eris.Errorf("orchestrator: invalid chain tier %q", tier)
	}
	if !model.ValidScanMode(mode) {
		return eris.Errorf("orchestrator: invalid chain mode %q", mode)
	}
	o.mu.Lock()
	o.chain = &chainRequest{jobID: jobID, tier: tier, mode: mode}
	o.mu.Unlock()
	o.log.Info("chain registered",
		zap.String("after_job", jobID),
		zap.String("tier", string(tier)),
		zap.String("mode", string(mode)))
	return nil
}

// Monitor sweeps jobs that reached a terminal state since the last sweep:
// records tier summaries, releases tier claims, triggers the
// whole-population recompute, and fires a pending chain whose target
// terminated. Each terminal transition is observed exactly once.
func (o *Orchestrator) Monitor(ctx context.Context) error {
	o.mu.Lock()
	var finished []*model.ScanJob
	for id, job := range o.jobs {
		if job.Status.Terminal() {
			// Evicting the job guarantees a single terminal transition and
			// keeps the map bounded in the daemon; Status falls back to the
			// persisted row.
			snapshot := *job
			finished = append(finished, &snapshot)
			delete(o.jobs, id)
		}
	}

	var pending *chainRequest
	for _, job := range finished {
		if job.Tier != "" {
			fin := time.Time{}
			if job.FinishedAt != nil {
				fin = *job.FinishedAt
			}
			o.summaries[job.Tier] = TierSummary{
				JobID:         job.ID,
				Status:        job.Status,
				Mode:          job.Mode,
				FieldsUpdated: job.FieldsUpdated,
				ErrorCount:    job.ErrorCount,
				FinishedAt:    fin,
			}
		}
		if o.chain != nil && o.chain.jobID == job.ID {
			// Cleared before launch so a failing launch cannot refire it.
			pending = o.chain
			o.chain = nil
		}
	}
	o.mu.Unlock()

	if len(finished) == 0 {
		return nil
	}

	for _, job := range finished {
		if job.Tier == "" {
			continue
		}
		if err := o.store.ReleaseTier(ctx, job.Tier); err != nil {
			o.log.Warn("release tier", zap.String("tier", string(job.Tier)), zap.Error(err))
		}
	}

	partition, err := o.recomputer.RecomputeAll(ctx)
	if err != nil {
		return eris.Wrap(err, "orchestrator: recompute after sweep")
	}

	if pending != nil {
		ids := partition.TierIDs(pending.tier)
		if len(ids) == 0 {
			o.log.Warn("chain skipped, tier empty", zap.String("tier", string(pending.tier)))
			return nil
		}
		if _, err := o.Launch(ctx, ids, pending.tier, pending.mode); err != nil {
			return eris.Wrapf(err, "orchestrator: launch chained %s scan", pending.tier)
		}
	}
	return nil
}

// TierSummaries returns the last finished scan per tier.
func (o *Orchestrator) TierSummaries() map[model.Tier]TierSummary {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make(map[model.Tier]TierSummary, len(o.summaries))
	for k, v := range o.summaries {
		out[k] = v
	}
	return out
}

var soldAtLayouts = []string{"2006-01-02", time.RFC3339, "01/2006", "2006-01"}

// parseSoldAt turns an engine-reported sale date into a timestamp, falling
// back to the scan time when the format is unrecognizable.
func parseSoldAt(s string, fallback time.Time) time.Time {
	for _, layout := range soldAtLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return fallback
}
