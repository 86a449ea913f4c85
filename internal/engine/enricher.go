package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/redev-labs/complex-scanner/internal/model"
	"github.com/redev-labs/complex-scanner/internal/resilience"
)

const (
	defaultCallTimeout   = 90 * time.Second
	defaultEngineSpacing = 2 * time.Second
)

// Enricher runs one complex through every wired engine in parallel and
// merges the settled results. One engine's failure never fails the others.
type Enricher struct {
	registry *Registry
	merger   *Merger
	retry    resilience.RetryConfig
	timeout  time.Duration
	limiters map[string]*rate.Limiter
	now      func() time.Time
	log      *zap.Logger
}

// EnricherOption customizes an Enricher.
type EnricherOption func(*Enricher)

// WithCallTimeout bounds each individual engine call.
func WithCallTimeout(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithRetryConfig overrides the per-call retry policy.
func WithRetryConfig(cfg resilience.RetryConfig) EnricherOption {
	return func(e *Enricher) { e.retry = cfg }
}

// WithEngineSpacing sets the minimum delay between consecutive calls to the
// same engine.
func WithEngineSpacing(d time.Duration) EnricherOption {
	return func(e *Enricher) {
		if d <= 0 {
			return
		}
		for name := range e.limiters {
			e.limiters[name] = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithEnrichClock overrides the wall clock, for tests.
func WithEnrichClock(now func() time.Time) EnricherOption {
	return func(e *Enricher) { e.now = now }
}

// NewEnricher wires an enricher over the registered engines.
func NewEnricher(registry *Registry, divergenceThreshold float64, opts ...EnricherOption) *Enricher {
	e := &Enricher{
		registry: registry,
		merger:   NewMerger(registry, divergenceThreshold),
		retry:    resilience.DefaultRetryConfig(),
		timeout:  defaultCallTimeout,
		limiters: make(map[string]*rate.Limiter, registry.Len()),
		now:      time.Now,
		log:      zap.L().Named("enricher"),
	}
	for _, name := range registry.Order() {
		e.limiters[name] = rate.NewLimiter(rate.Every(defaultEngineSpacing), 1)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enrich researches one complex across all engines and merges the settled
// results. It returns an error only when every engine call errored; partial
// and empty answers produce a merged result with fewer (or no) contributors.
func (e *Enricher) Enrich(ctx context.Context, c *model.Complex, mode model.ScanMode) (*model.MergedResult, error) {
	entries := e.registry.Entries()
	if len(entries) == 0 {
		return nil, eris.New("enrich: no research engines wired")
	}
	prompt := BuildPrompt(c, mode)

	results := make([]model.EngineResult, len(entries))
	var wg sync.WaitGroup
	for i, entry := range entries {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = e.callEngine(ctx, entry.Engine, prompt)
		}()
	}
	wg.Wait()

	merged := e.merger.Merge(results)
	if merged.EngineErrors == len(entries) {
		return nil, eris.Errorf("enrich: all %d engines failed for complex %s", len(entries), c.ID)
	}

	e.log.Debug("complex enriched",
		zap.String("complex_id", c.ID),
		zap.String("mode", string(mode)),
		zap.Strings("contributors", merged.Contributors),
		zap.Int("engine_errors", merged.EngineErrors),
		zap.Float64("divergence_pct", merged.DivergencePct))
	return &merged, nil
}

// callEngine runs one engine with pacing, retry and a bounded wait, then
// parses whatever came back. Parse failures settle as no-data.
func (e *Enricher) callEngine(ctx context.Context, eng ResearchEngine, prompt string) model.EngineResult {
	name := eng.Name()
	started := e.now()
	result := model.EngineResult{Engine: name, ReceivedAt: started}

	if limiter, ok := e.limiters[name]; ok {
		if err := limiter.Wait(ctx); err != nil {
			result.Err = err.Error()
			return result
		}
	}

	cfg := e.retry
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(name, "research")
	}
	text, err := resilience.DoVal(ctx, cfg, func(ctx context.Context) (string, error) {
		callCtx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		return eng.Research(callCtx, prompt)
	})
	result.ElapsedMS = time.Since(started).Milliseconds()
	result.ReceivedAt = e.now()
	if err != nil {
		result.Err = err.Error()
		e.log.Warn("engine call failed",
			zap.String("engine", name),
			zap.Error(err))
		return result
	}

	parsed := Parse(text)
	switch parsed.Outcome {
	case ParseOK:
		result.Payload = parsed.Payload
	case ParseMalformed:
		e.log.Warn("engine returned unreadable structured data",
			zap.String("engine", name))
		result.NoData = true
	default:
		result.NoData = true
	}
	return result
}

// Apply writes a merged result onto a complex non-destructively: only unset
// fields take the merged value, so a previously verified fact is never
// downgraded. It returns the number of fields updated.
func Apply(c *model.Complex, m *model.MergedResult, now time.Time) int {
	updated := 0

	if !c.Status.Valid() && m.Status != nil {
		status := model.PlanningStatus(strings.TrimSpace(strings.ToLower(*m.Status)))
		if status.Valid() {
			c.Status = status
			updated++
		}
	}
	if c.PricePerSqm <= 0 && m.PricePerSqm != nil {
		c.PricePerSqm = *m.PricePerSqm
		updated++
	}
	if c.BenchmarkPricePerSqm <= 0 && m.BenchmarkPricePerSqm != nil {
		c.BenchmarkPricePerSqm = *m.BenchmarkPricePerSqm
		updated++
	}
	if c.Developer == "" && m.Developer != nil {
		c.Developer = *m.Developer
		updated++
	}
	if c.DeveloperStrength <= 0 && m.DeveloperStrength != nil {
		c.DeveloperStrength = *m.DeveloperStrength
		updated++
	}
	if c.SignaturePct <= 0 && m.SignaturePct != nil {
		c.SignaturePct = *m.SignaturePct
		updated++
	}
	if c.UnitCount <= 0 && m.UnitCount != nil {
		c.UnitCount = *m.UnitCount
		updated++
	}
	if !c.HasEnforcement && m.HasEnforcement != nil && *m.HasEnforcement {
		c.HasEnforcement = true
		updated++
	}
	if !c.HasReceivership && m.HasReceivership != nil && *m.HasReceivership {
		c.HasReceivership = true
		updated++
	}
	if !c.HasBankruptcy && m.HasBankruptcy != nil && *m.HasBankruptcy {
		c.HasBankruptcy = true
		updated++
	}
	if c.Narrative == "" && m.Narrative != "" {
		c.Narrative = m.Narrative
		updated++
	}
	if m.DivergenceFlag && !c.DataQualityFlag {
		c.DataQualityFlag = true
	}
	if len(m.Contributors) > 0 {
		t := now
		c.LastEnrichedAt = &t
	}
	return updated
}

// BuildPrompt shapes the research query for one complex by scan mode.
func BuildPrompt(c *model.Complex, mode model.ScanMode) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Research the urban-renewal complex %q in %s", c.Name, c.City)
	if c.Neighborhood != "" {
		fmt.Fprintf(&b, " (%s)", c.Neighborhood)
	}
	b.WriteString(".\n")

	switch mode {
	case model.ModeStatusCheck:
		b.WriteString("Report only the current planning stage and the signature percentage.\n")
	case model.ModeListings:
		b.WriteString("Report active for-sale listings and recent closed transactions for units in this complex.\n")
	case model.ModeDistress:
		b.WriteString("Report enforcement proceedings, receivership or bankruptcy involving the complex or its developer.\n")
	default:
		b.WriteString("Report the planning stage, price per square meter, the neighborhood benchmark price per square meter, the developer and its track record, the signature percentage, the unit count, distress signals, active listings and recent transactions.\n")
	}

	b.WriteString("Answer with a single JSON object using these keys where known: ")
	b.WriteString(`status, price_per_sqm, benchmark_price_per_sqm, developer, developer_strength, signature_pct, unit_count, has_enforcement, has_receivership, has_bankruptcy, narrative, confidence, transactions, listings.`)
	b.WriteString("\nValid status values: declared, team_selected, plan_submitted, deposited, approved, permits, demolition, construction, completed.")
	b.WriteString("\nconfidence is one of low, medium, high. Omit keys you could not verify.")
	return b.String()
}
