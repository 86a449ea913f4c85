// Package scheduler fires tiered scans on a fixed cron cadence, gated by the
// Israeli work calendar, and sweeps running jobs on a monitor tick.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/calendar"
	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/orchestrator"
	"github.com/redev-labs/complex-scanner/internal/priority"
	"github.com/redev-labs/complex-scanner/internal/store"
)

const defaultMonitorInterval = 30 * time.Second

// CadenceRule maps one cron spec onto a tiered scan launch.
type CadenceRule struct {
	Spec   string              `yaml:"spec" mapstructure:"spec"`
	Tier   model.Tier          `yaml:"tier" mapstructure:"tier"`
	Mode   model.ScanMode      `yaml:"mode" mapstructure:"mode"`
	Gated  bool                `yaml:"gated" mapstructure:"gated"`
	Window []calendar.DayRange `yaml:"window" mapstructure:"window"`
}

// Launcher is the orchestrator surface the scheduler drives.
type Launcher interface {
	Launch(ctx context.Context, complexIDs []string, tier model.Tier, mode model.ScanMode) (model.JobSnapshot, error)
	Monitor(ctx context.Context) error
}

// TierState is the diagnostic record of the most recent launch per tier.
type TierState struct {
	LastJobID  string          `json:"last_job_id"`
	LastStatus model.JobStatus `json:"last_status"`
	LastRunAt  time.Time       `json:"last_run_at"`
}

// Stats are the scheduler's diagnostic counters. They reset on restart;
// Rehydrate rebuilds only the per-tier state from persisted jobs.
type Stats struct {
	Fired         int                      `json:"fired"`
	SkippedGate   int                      `json:"skipped_gate"`
	SkippedWindow int                      `json:"skipped_window"`
	SkippedBusy   int                      `json:"skipped_busy"`
	LaunchErrors  int                      `json:"launch_errors"`
	Tiers         map[model.Tier]TierState `json:"tiers"`
}

// Scheduler owns the cron timers. All work happens in cron callbacks; Start
// and Stop only control the timer loop.
type Scheduler struct {
	cron     *cron.Cron
	gate     *calendar.Gate
	launcher Launcher
	store    store.Store
	scorer   *priority.Scorer
	rules    []CadenceRule

	monitorInterval time.Duration
	now             func() time.Time
	log             *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithMonitorInterval overrides the sweep cadence.
func WithMonitorInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.monitorInterval = d
		}
	}
}

// WithClock injects the time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// New wires a Scheduler. Rules are validated at Start, not here.
func New(gate *calendar.Gate, launcher Launcher, st store.Store, scorer *priority.Scorer, rules []CadenceRule, opts ...Option) *Scheduler {
	s := &Scheduler{
		cron:            cron.New(),
		gate:            gate,
		launcher:        launcher,
		store:           st,
		scorer:          scorer,
		rules:           rules,
		monitorInterval: defaultMonitorInterval,
		now:             time.Now,
		log:             zap.L().Named("scheduler"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stats.Tiers = make(map[model.Tier]TierState)
	return s
}

// Start registers every cadence rule plus the monitor tick and starts the
// timers. The context bounds all launched work.
func (s *Scheduler) Start(ctx context.Context) error {
	for _, rule := range s.rules {
		if !model.ValidTier(rule.Tier) {
			return eris.Errorf("scheduler: invalid tier %q in cadence table", rule.Tier)
		}
		if !model.ValidScanMode(rule.Mode) {
			return eris.Errorf("scheduler: invalid mode %q in cadence table", rule.Mode)
		}
		r := rule
		if _, err := s.cron.AddFunc(rule.Spec, func() { s.runRule(ctx, r) }); err != nil {
			return eris.Wrapf(err, "scheduler: register cadence %q", rule.Spec)
		}
		s.log.Info("cadence registered",
			zap.String("spec", rule.Spec),
			zap.String("tier", string(rule.Tier)),
			zap.String("mode", string(rule.Mode)),
			zap.Bool("gated", rule.Gated))
	}

	if _, err := s.cron.AddFunc("@every "+s.monitorInterval.String(), func() {
		if err := s.launcher.Monitor(ctx); err != nil {
			s.log.Error("monitor sweep failed", zap.Error(err))
		}
	}); err != nil {
		return eris.Wrap(err, "scheduler: register monitor tick")
	}

	s.cron.Start()
	s.log.Info("scheduler started", zap.Int("rules", len(s.rules)))
	return nil
}

// Stop halts the timers and waits for in-flight callbacks to return.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.log.Info("scheduler stopped")
}

// runRule is one cadence firing: calendar checks, classification, launch.
func (s *Scheduler) runRule(ctx context.Context, rule CadenceRule) {
	log := s.log.With(zap.String("tier", string(rule.Tier)), zap.String("mode", string(rule.Mode)))

	if rule.Gated && !s.gate.IsEligibleDay() {
		s.bump(func(st *Stats) { st.SkippedGate++ })
		log.Info("cadence skipped, rest day or holiday")
		return
	}
	if len(rule.Window) > 0 && !s.gate.IsPeriodWindow(rule.Window) {
		s.bump(func(st *Stats) { st.SkippedWindow++ })
		log.Info("cadence skipped, outside period window")
		return
	}

	ids, err := s.tierIDs(ctx, rule.Tier)
	if err != nil {
		s.bump(func(st *Stats) { st.LaunchErrors++ })
		log.Error("classification failed", zap.Error(err))
		return
	}
	if len(ids) == 0 {
		log.Info("cadence skipped, tier empty")
		return
	}

	snap, err := s.launcher.Launch(ctx, ids, rule.Tier, rule.Mode)
	if err != nil {
		if eris.Is(err, orchestrator.ErrTierBusy) {
			s.bump(func(st *Stats) { st.SkippedBusy++ })
			log.Info("cadence skipped, previous scan still running")
			return
		}
		s.bump(func(st *Stats) { st.LaunchErrors++ })
		log.Error("launch failed", zap.Error(err))
		return
	}

	s.bump(func(st *Stats) {
		st.Fired++
		st.Tiers[rule.Tier] = TierState{
			LastJobID:  snap.JobID,
			LastStatus: snap.Status,
			LastRunAt:  snap.StartedAt,
		}
	})
	log.Info("cadence fired", zap.String("job_id", snap.JobID), zap.Int("complexes", len(ids)))
}

// tierIDs classifies the current population and returns the rule's tier in
// priority order.
func (s *Scheduler) tierIDs(ctx context.Context, tier model.Tier) ([]string, error) {
	complexes, err := s.store.ListComplexes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list complexes")
	}
	counts, err := s.store.ActiveListingCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "active listing counts")
	}
	partition := s.scorer.Classify(complexes, counts, s.now().UTC())
	return partition.TierIDs(tier), nil
}

// Rehydrate rebuilds per-tier launch state from persisted job history so a
// restarted process knows what already ran.
func (s *Scheduler) Rehydrate(ctx context.Context) error {
	for _, tier := range []model.Tier{model.TierHot, model.TierActive, model.TierDormant} {
		jobs, err := s.store.ListScanJobs(ctx, store.JobFilter{Tier: tier, Limit: 1})
		if err != nil {
			return eris.Wrapf(err, "scheduler: rehydrate tier %s", tier)
		}
		if len(jobs) == 0 {
			continue
		}
		last := jobs[0]
		s.bump(func(st *Stats) {
			st.Tiers[tier] = TierState{
				LastJobID:  last.ID,
				LastStatus: last.Status,
				LastRunAt:  last.StartedAt,
			}
		})
		s.log.Info("tier state rehydrated",
			zap.String("tier", string(tier)),
			zap.String("job_id", last.ID),
			zap.String("status", string(last.Status)))
	}
	return nil
}

// Stats returns a copy of the diagnostic counters.
func (s *Scheduler) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.stats
	out.Tiers = make(map[model.Tier]TierState, len(s.stats.Tiers))
	for k, v := range s.stats.Tiers {
		out.Tiers[k] = v
	}
	return out
}

func (s *Scheduler) bump(fn func(*Stats)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.stats)
}
