package engine

import (
	"math"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// DefaultDivergenceThreshold is the disagreement percentage above which the
// merged result carries a data-quality flag.
const DefaultDivergenceThreshold = 20.0

// Merger resolves conflicting engine payloads into one result. Engine order
// and weights come from the registry at construction.
type Merger struct {
	order     []string
	weights   map[string]float64
	threshold float64
}

// NewMerger builds a merger for the given registry. A non-positive threshold
// falls back to the default.
func NewMerger(registry *Registry, divergenceThreshold float64) *Merger {
	if divergenceThreshold <= 0 {
		divergenceThreshold = DefaultDivergenceThreshold
	}
	return &Merger{
		order:     registry.Order(),
		weights:   registry.Weights(),
		threshold: divergenceThreshold,
	}
}

// Merge folds all settled engine results into one conflict-resolved value.
// Errored and no-data engines contribute nothing but are counted.
func (m *Merger) Merge(results []model.EngineResult) model.MergedResult {
	var out model.MergedResult

	contributing := m.contributorsInOrder(results)
	for _, r := range results {
		if r.Err != "" {
			out.EngineErrors++
		}
	}
	for _, r := range contributing {
		out.Contributors = append(out.Contributors, r.Engine)
	}
	if len(contributing) == 0 {
		return out
	}

	out.PricePerSqm, out.DivergencePct = m.mergeNumeric(contributing, func(p *model.EnginePayload) *float64 { return p.PricePerSqm })
	benchmark, benchDiv := m.mergeNumeric(contributing, func(p *model.EnginePayload) *float64 { return p.BenchmarkPricePerSqm })
	out.BenchmarkPricePerSqm = benchmark
	if benchDiv > out.DivergencePct {
		out.DivergencePct = benchDiv
	}
	out.DivergenceFlag = out.DivergencePct > m.threshold

	out.Status = firstString(contributing, func(p *model.EnginePayload) *string { return p.Status })
	out.Developer = firstString(contributing, func(p *model.EnginePayload) *string { return p.Developer })
	out.DeveloperStrength = firstInt(contributing, func(p *model.EnginePayload) *int { return p.DeveloperStrength })
	out.UnitCount = firstInt(contributing, func(p *model.EnginePayload) *int { return p.UnitCount })
	out.SignaturePct = firstFloat(contributing, func(p *model.EnginePayload) *float64 { return p.SignaturePct })
	out.HasEnforcement = firstBool(contributing, func(p *model.EnginePayload) *bool { return p.HasEnforcement })
	out.HasReceivership = firstBool(contributing, func(p *model.EnginePayload) *bool { return p.HasReceivership })
	out.HasBankruptcy = firstBool(contributing, func(p *model.EnginePayload) *bool { return p.HasBankruptcy })
	for _, r := range contributing {
		if r.Payload.Narrative != "" {
			out.Narrative = r.Payload.Narrative
			break
		}
	}

	out.Transactions = dedupeTransactions(contributing)
	out.Listings = dedupeListings(contributing)
	out.Confidence = m.mergeConfidence(contributing)

	return out
}

// contributorsInOrder filters down to results that carried a payload, sorted
// into the fixed engine-priority order.
func (m *Merger) contributorsInOrder(results []model.EngineResult) []model.EngineResult {
	byEngine := make(map[string]model.EngineResult, len(results))
	for _, r := range results {
		if r.Err != "" || r.NoData {
			continue
		}
		byEngine[r.Engine] = r
	}
	out := make([]model.EngineResult, 0, len(byEngine))
	for _, name := range m.order {
		if r, ok := byEngine[name]; ok {
			out = append(out, r)
			delete(byEngine, name)
		}
	}
	// Engines not in the configured order still contribute, last.
	for _, r := range results {
		if _, ok := byEngine[r.Engine]; ok {
			out = append(out, r)
			delete(byEngine, r.Engine)
		}
	}
	return out
}

// mergeNumeric weight-averages a numeric field across contributing engines
// and reports the divergence percentage between the first two reporters.
// The average is rounded to a whole value before persistence.
func (m *Merger) mergeNumeric(contributing []model.EngineResult, field func(*model.EnginePayload) *float64) (*float64, float64) {
	type obs struct {
		value  float64
		weight float64
	}
	var seen []obs
	for _, r := range contributing {
		v := field(&r.Payload)
		if v == nil {
			continue
		}
		w := m.weights[r.Engine]
		if w <= 0 {
			w = 1
		}
		seen = append(seen, obs{value: *v, weight: w})
	}
	if len(seen) == 0 {
		return nil, 0
	}
	if len(seen) == 1 {
		v := seen[0].value
		return &v, 0
	}

	var weightSum, total float64
	for _, o := range seen {
		weightSum += o.weight
		total += o.value * o.weight
	}
	avg := math.Round(total / weightSum)

	var divergence float64
	if seen[0].value != 0 {
		divergence = math.Abs(seen[0].value-seen[1].value) / seen[0].value * 100
	}
	return &avg, divergence
}

// mergeConfidence takes the lowest self-reported confidence across
// contributors. Direct scalar agreement between two engines upgrades the
// result to high; a single contributor is never upgraded.
func (m *Merger) mergeConfidence(contributing []model.EngineResult) model.Confidence {
	merged := model.ConfidenceHigh
	reported := false
	for _, r := range contributing {
		c := r.Payload.Confidence
		if c == "" {
			c = model.ConfidenceLow
		}
		merged = model.MinConfidence(merged, c)
		reported = true
	}
	if !reported {
		return model.ConfidenceLow
	}
	if len(contributing) >= 2 && scalarsAgree(contributing) {
		return model.ConfidenceHigh
	}
	return merged
}

// scalarsAgree reports whether at least two engines directly agree on a
// reported scalar: identical price-per-area or identical planning status.
func scalarsAgree(contributing []model.EngineResult) bool {
	prices := map[float64]int{}
	statuses := map[string]int{}
	for _, r := range contributing {
		if p := r.Payload.PricePerSqm; p != nil {
			prices[*p]++
			if prices[*p] >= 2 {
				return true
			}
		}
		if s := r.Payload.Status; s != nil {
			key := strings.TrimSpace(strings.ToLower(*s))
			statuses[key]++
			if statuses[key] >= 2 {
				return true
			}
		}
	}
	return false
}

func firstString(contributing []model.EngineResult, field func(*model.EnginePayload) *string) *string {
	for _, r := range contributing {
		if v := field(&r.Payload); v != nil && *v != "" {
			out := *v
			return &out
		}
	}
	return nil
}

func firstFloat(contributing []model.EngineResult, field func(*model.EnginePayload) *float64) *float64 {
	for _, r := range contributing {
		if v := field(&r.Payload); v != nil {
			out := *v
			return &out
		}
	}
	return nil
}

func firstInt(contributing []model.EngineResult, field func(*model.EnginePayload) *int) *int {
	for _, r := range contributing {
		if v := field(&r.Payload); v != nil {
			out := *v
			return &out
		}
	}
	return nil
}

func firstBool(contributing []model.EngineResult, field func(*model.EnginePayload) *bool) *bool {
	for _, r := range contributing {
		if v := field(&r.Payload); v != nil {
			out := *v
			return &out
		}
	}
	return nil
}

var addressFolder = cases.Fold()

// normalizeKey canonicalizes free-text address fragments so that the same
// unit reported with different casing or spacing dedupes to one row.
func normalizeKey(s string) string {
	s = norm.NFC.String(s)
	s = addressFolder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

func dedupeTransactions(contributing []model.EngineResult) []model.TransactionObs {
	seen := map[string]bool{}
	var out []model.TransactionObs
	for _, r := range contributing {
		for _, tx := range r.Payload.Transactions {
			key := normalizeKey(tx.Address) + "|" + formatPrice(tx.Price)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, tx)
		}
	}
	return out
}

func dedupeListings(contributing []model.EngineResult) []model.ListingObs {
	seen := map[string]bool{}
	var out []model.ListingObs
	for _, r := range contributing {
		for _, l := range r.Payload.Listings {
			key := listingKey(l)
			if seen[key] {
				continue
			}
			seen[key] = true
			out = append(out, l)
		}
	}
	return out
}

// listingKey prefers the stable external ID; address+price is the fallback
// natural key.
func listingKey(l model.ListingObs) string {
	if l.ExternalID != "" {
		return "id|" + normalizeKey(l.Source) + "|" + normalizeKey(l.ExternalID)
	}
	return "addr|" + normalizeKey(l.Address) + "|" + formatPrice(l.AskingPrice)
}

func formatPrice(p float64) string {
	return strconv.FormatFloat(p, 'f', -1, 64)
}
