// Package priority ranks the tracked population and partitions it into scan
// tiers. Classification is a stateless full recomputation: it keeps no
// incremental state between calls.
package priority

import (
	"sort"
	"time"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// Component caps. The five components sum to at most 100.
const (
	maxCompletenessGap = 25.0
	maxMarketActivity  = 25.0
	maxScoreMagnitude  = 20.0
	maxStaleness       = 15.0
	maxDistress        = 15.0

	pointsPerListing     = 5.0
	stalenessDaysPerStep = 2.0
	pointsPerDistress    = 5.0
)

// Config tunes tier classification.
type Config struct {
	// HotWindowSize is the number of top-scored complexes in the hot tier.
	HotWindowSize int `mapstructure:"hot_window_size"`
	// DormantFloor is the score below which a complex is parked dormant.
	DormantFloor float64 `mapstructure:"dormant_floor"`
}

// DefaultConfig returns the standard tiering parameters.
func DefaultConfig() Config {
	return Config{HotWindowSize: 50, DormantFloor: 10}
}

// dormantStatuses never need scanning again.
var dormantStatuses = map[model.PlanningStatus]bool{
	model.StatusCompleted: true,
}

// Scorer computes priority scores and tier partitions.
type Scorer struct {
	cfg Config
}

// NewScorer creates a Scorer with the given config, falling back to defaults
// for zero values.
func NewScorer(cfg Config) *Scorer {
	if cfg.HotWindowSize <= 0 {
		cfg.HotWindowSize = DefaultConfig().HotWindowSize
	}
	if cfg.DormantFloor <= 0 {
		cfg.DormantFloor = DefaultConfig().DormantFloor
	}
	return &Scorer{cfg: cfg}
}

// Score computes the bounded multi-factor priority of one complex.
// activeListings is the complex's current active-listing count.
func (s *Scorer) Score(c *model.Complex, activeListings int, now time.Time) (float64, model.PriorityComponents) {
	comp := model.PriorityComponents{
		CompletenessGap: completenessGap(c),
		MarketActivity:  capFloat(float64(activeListings)*pointsPerListing, maxMarketActivity),
		ScoreMagnitude:  capFloat(c.InvestmentScore*0.2, maxScoreMagnitude),
		Staleness:       staleness(c, now),
		Distress:        capFloat(float64(c.DistressFlagCount())*pointsPerDistress, maxDistress),
	}
	total := comp.CompletenessGap + comp.MarketActivity + comp.ScoreMagnitude + comp.Staleness + comp.Distress
	return capFloat(total, 100), comp
}

func completenessGap(c *model.Complex) float64 {
	gaps := float64(c.EnrichmentGaps())
	checklist := float64(c.ChecklistSize())
	if checklist == 0 {
		return 0
	}
	return capFloat(gaps/checklist*maxCompletenessGap, maxCompletenessGap)
}

func staleness(c *model.Complex, now time.Time) float64 {
	if c.LastEnrichedAt == nil {
		return maxStaleness
	}
	days := now.Sub(*c.LastEnrichedAt).Hours() / 24
	if days < 0 {
		days = 0
	}
	return capFloat(days/stalenessDaysPerStep, maxStaleness)
}

// Partition is the result of classifying the full population. Records inside
// each tier are ordered by descending score.
type Partition struct {
	Hot     []model.PriorityRecord
	Active  []model.PriorityRecord
	Dormant []model.PriorityRecord
}

// TierIDs returns the ordered complex IDs of one tier.
func (p *Partition) TierIDs(tier model.Tier) []string {
	var recs []model.PriorityRecord
	switch tier {
	case model.TierHot:
		recs = p.Hot
	case model.TierActive:
		recs = p.Active
	case model.TierDormant:
		recs = p.Dormant
	}
	ids := make([]string, len(recs))
	for i, r := range recs {
		ids[i] = r.ComplexID
	}
	return ids
}

// Records returns every record across all tiers, for snapshot persistence.
func (p *Partition) Records() []model.PriorityRecord {
	out := make([]model.PriorityRecord, 0, len(p.Hot)+len(p.Active)+len(p.Dormant))
	out = append(out, p.Hot...)
	out = append(out, p.Active...)
	out = append(out, p.Dormant...)
	return out
}

// Classify scores the whole population and partitions it into exactly one
// tier per complex. listingCounts maps complex ID to its active-listing
// count; missing entries count as zero.
func (s *Scorer) Classify(complexes []model.Complex, listingCounts map[string]int, now time.Time) *Partition {
	records := make([]model.PriorityRecord, 0, len(complexes))
	dormantByRule := make(map[string]bool, len(complexes))

	for i := range complexes {
		c := &complexes[i]
		total, comp := s.Score(c, listingCounts[c.ID], now)
		records = append(records, model.PriorityRecord{
			ComplexID:  c.ID,
			Total:      total,
			Components: comp,
			ComputedAt: now,
		})

		switch {
		case dormantStatuses[c.Status]:
			dormantByRule[c.ID] = true
		case c.LastEnrichedAt == nil && total == 0:
			dormantByRule[c.ID] = true
		case total < s.cfg.DormantFloor:
			dormantByRule[c.ID] = true
		}
	}

	// Strict score-descending order; ties keep input order.
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Total > records[j].Total
	})

	p := &Partition{}
	for _, rec := range records {
		switch {
		case dormantByRule[rec.ComplexID]:
			rec.Tier = model.TierDormant
			p.Dormant = append(p.Dormant, rec)
		case len(p.Hot) < s.cfg.HotWindowSize:
			rec.Tier = model.TierHot
			p.Hot = append(p.Hot, rec)
		default:
			rec.Tier = model.TierActive
			p.Active = append(p.Active, rec)
		}
	}
	return p
}

func capFloat(v, max float64) float64 {
	if v > max {
		return max
	}
	if v < 0 {
		return 0
	}
	return v
}
