package main

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/redev-labs/complex-scanner/internal/calendar"
	"github.com/redev-labs/complex-scanner/internal/engine"
	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/orchestrator"
	"github.com/redev-labs/complex-scanner/internal/priority"
	"github.com/redev-labs/complex-scanner/internal/resilience"
	"github.com/redev-labs/complex-scanner/internal/scheduler"
	"github.com/redev-labs/complex-scanner/internal/scoring"
	"github.com/redev-labs/complex-scanner/internal/store"
	"github.com/redev-labs/complex-scanner/pkg/claude"
	"github.com/redev-labs/complex-scanner/pkg/perplexity"
)

// scanEnv holds the wired application graph shared by the scan, monitor, and
// serve commands.
type scanEnv struct {
	Store        store.Store
	Scorer       *priority.Scorer
	Gate         *calendar.Gate
	Orchestrator *orchestrator.Orchestrator
	Scheduler    *scheduler.Scheduler
}

// Close releases resources held by the environment.
func (e *scanEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured backend.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		if cfg.Store.DatabaseURL == "" {
			return nil, eris.New("store.database_url is required for the postgres driver")
		}
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "complex-scanner.db"
		}
		return store.NewSQLite(dsn)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// initEnv wires the full dependency graph. Callers should defer env.Close().
func initEnv(ctx context.Context) (*scanEnv, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	var regs []engine.Registration
	if cfg.Perplexity.Key != "" {
		pplxOpts := []perplexity.Option{
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL),
			perplexity.WithModel(cfg.Perplexity.Model),
			perplexity.WithRecency(cfg.Perplexity.Recency),
		}
		if len(cfg.Perplexity.SearchDomains) > 0 {
			pplxOpts = append(pplxOpts, perplexity.WithSearchDomains(cfg.Perplexity.SearchDomains))
		}
		pplx := perplexity.NewClient(cfg.Perplexity.Key, pplxOpts...)
		regs = append(regs, engine.Registration{
			Engine: engine.NewPerplexityEngine(pplx),
			Weight: cfg.Engine.PrimaryWeight,
		})
	} else {
		zap.L().Warn("SCANNER_PERPLEXITY_KEY not set, perplexity engine disabled")
	}
	if cfg.Claude.Key != "" {
		claudeOpts := []claude.Option{claude.WithModel(cfg.Claude.Model)}
		if cfg.Claude.BaseURL != "" {
			claudeOpts = append(claudeOpts, claude.WithBaseURL(cfg.Claude.BaseURL))
		}
		cl := claude.NewClient(cfg.Claude.Key, claudeOpts...)
		regs = append(regs, engine.Registration{
			Engine: engine.NewClaudeEngine(cl),
			Weight: cfg.Engine.SecondaryWeight,
		})
	} else {
		zap.L().Warn("SCANNER_CLAUDE_KEY not set, claude engine disabled")
	}

	registry := engine.NewRegistry(regs...)
	enricher := engine.NewEnricher(registry, cfg.Engine.DivergenceThreshold,
		engine.WithCallTimeout(time.Duration(cfg.Engine.CallTimeoutSecs)*time.Second),
		engine.WithEngineSpacing(time.Duration(cfg.Engine.SpacingSecs)*time.Second),
		engine.WithRetryConfig(resilience.RetryConfig{MaxAttempts: cfg.Engine.RetryMaxAttempts}),
	)

	scorer := priority.NewScorer(priority.Config{
		HotWindowSize: cfg.Scan.HotWindowSize,
		DormantFloor:  cfg.Scan.DormantFloor,
	})
	recomputer := scoring.NewRecomputer(st, scorer,
		scoring.WithParallelism(cfg.Scan.Parallelism))

	orch := orchestrator.New(st, enricher, recomputer,
		orchestrator.WithPacing(time.Duration(cfg.Scan.PacingSecs)*time.Second))

	gate, err := initGate()
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	rules, err := cadenceRules()
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	sched := scheduler.New(gate, orch, st, scorer, rules,
		scheduler.WithMonitorInterval(cfg.Scheduler.MonitorInterval()))

	return &scanEnv{
		Store:        st,
		Scorer:       scorer,
		Gate:         gate,
		Orchestrator: orch,
		Scheduler:    sched,
	}, nil
}

// initGate builds the calendar gate from configured rest days plus holidays
// from the config list and the optional XLSX table.
func initGate() (*calendar.Gate, error) {
	holidays, err := cfg.Calendar.HolidayDates()
	if err != nil {
		return nil, err
	}
	if cfg.Calendar.HolidaysXLSX != "" {
		fromSheet, err := calendar.LoadHolidaysXLSX(cfg.Calendar.HolidaysXLSX)
		if err != nil {
			return nil, err
		}
		holidays = append(holidays, fromSheet...)
	}

	var opts []calendar.Option
	if cfg.Calendar.Location != "" {
		loc, err := time.LoadLocation(cfg.Calendar.Location)
		if err != nil {
			return nil, eris.Wrapf(err, "load location %q", cfg.Calendar.Location)
		}
		opts = append(opts, calendar.WithLocation(loc))
	}
	return calendar.New(cfg.Calendar.RestWeekdays(), holidays, opts...), nil
}

// cadenceRules converts the config cadence table into scheduler rules.
func cadenceRules() ([]scheduler.CadenceRule, error) {
	rules := make([]scheduler.CadenceRule, 0, len(cfg.Scheduler.Cadence))
	for _, r := range cfg.Scheduler.Cadence {
		rule := scheduler.CadenceRule{
			Spec:  r.Spec,
			Tier:  model.Tier(r.Tier),
			Mode:  model.ScanMode(r.Mode),
			Gated: r.Gated,
		}
		if !model.ValidTier(rule.Tier) {
			return nil, eris.Errorf("cadence rule %q: unknown tier %q", r.Spec, r.Tier)
		}
		if !model.ValidScanMode(rule.Mode) {
			return nil, eris.Errorf("cadence rule %q: unknown mode %q", r.Spec, r.Mode)
		}
		for _, w := range r.Window {
			rule.Window = append(rule.Window, calendar.DayRange{From: w.From, To: w.To})
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// tierIDs classifies the population and returns one tier priority-descending.
func tierIDs(ctx context.Context, env *scanEnv, tier model.Tier) ([]string, error) {
	complexes, err := env.Store.ListComplexes(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "list complexes")
	}
	counts, err := env.Store.ActiveListingCounts(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "active listing counts")
	}
	partition := env.Scorer.Classify(complexes, counts, time.Now().UTC())
	return partition.TierIDs(tier), nil
}
