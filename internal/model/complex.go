package model

import "time"

// PlanningStatus is the planning-stage of an urban-renewal complex. The set
// is fixed and ordered: a complex only moves forward through it.
type PlanningStatus string

const (
	StatusDeclared      PlanningStatus = "declared"
	StatusTeamSelected  PlanningStatus = "team_selected"
	StatusPlanSubmitted PlanningStatus = "plan_submitted"
	StatusDeposited     PlanningStatus = "deposited"
	StatusApproved      PlanningStatus = "approved"
	StatusPermits       PlanningStatus = "permits"
	StatusDemolition    PlanningStatus = "demolition"
	StatusConstruction  PlanningStatus = "construction"
	StatusCompleted     PlanningStatus = "completed"
)

// planningOrder fixes the progression rank of each status.
var planningOrder = map[PlanningStatus]int{
	StatusDeclared:      0,
	StatusTeamSelected:  1,
	StatusPlanSubmitted: 2,
	StatusDeposited:     3,
	StatusApproved:      4,
	StatusPermits:       5,
	StatusDemolition:    6,
	StatusConstruction:  7,
	StatusCompleted:     8,
}

// Rank returns the position of the status in the fixed progression,
// or -1 for an unknown status.
func (s PlanningStatus) Rank() int {
	if r, ok := planningOrder[s]; ok {
		return r
	}
	return -1
}

// Valid reports whether the status is a member of the fixed set.
func (s PlanningStatus) Valid() bool {
	return s.Rank() >= 0
}

// MaxPlanningRank is the rank of the final planning stage.
const MaxPlanningRank = 8

// Complex is a tracked urban-renewal investment target. Score fields are
// machine-recomputed only and never accepted from user input.
type Complex struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	City                 string         `json:"city"`
	Neighborhood         string         `json:"neighborhood,omitempty"`
	Status               PlanningStatus `json:"status,omitempty"`
	PricePerSqm          float64        `json:"price_per_sqm,omitempty"`
	BenchmarkPricePerSqm float64        `json:"benchmark_price_per_sqm,omitempty"`
	Developer            string         `json:"developer,omitempty"`
	DeveloperStrength    int            `json:"developer_strength,omitempty"` // 0-5
	SignaturePct         float64        `json:"signature_pct,omitempty"`
	UnitCount            int            `json:"unit_count,omitempty"`
	HasEnforcement       bool           `json:"has_enforcement,omitempty"`
	HasReceivership      bool           `json:"has_receivership,omitempty"`
	HasBankruptcy        bool           `json:"has_bankruptcy,omitempty"`
	Narrative            string         `json:"narrative,omitempty"`
	DataQualityFlag      bool           `json:"data_quality_flag,omitempty"`
	LastEnrichedAt       *time.Time     `json:"last_enriched_at,omitempty"`
	PriorityScore        float64        `json:"priority_score"`
	InvestmentScore      float64        `json:"investment_score"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// enrichmentChecklistSize is the number of fields a fully enriched
// complex carries. Kept in sync with EnrichmentGaps.
const enrichmentChecklistSize = 7

// EnrichmentGaps counts how many fields from the fixed enrichment checklist
// are still missing: status, price, benchmark, developer, signature pct,
// unit count, narrative.
func (c *Complex) EnrichmentGaps() int {
	gaps := 0
	if !c.Status.Valid() {
		gaps++
	}
	if c.PricePerSqm <= 0 {
		gaps++
	}
	if c.BenchmarkPricePerSqm <= 0 {
		gaps++
	}
	if c.Developer == "" {
		gaps++
	}
	if c.SignaturePct <= 0 {
		gaps++
	}
	if c.UnitCount <= 0 {
		gaps++
	}
	if c.Narrative == "" {
		gaps++
	}
	return gaps
}

// ChecklistSize returns the size of the fixed enrichment checklist.
func (c *Complex) ChecklistSize() int {
	return enrichmentChecklistSize
}

// DistressFlagCount counts present distress markers.
func (c *Complex) DistressFlagCount() int {
	n := 0
	if c.HasEnforcement {
		n++
	}
	if c.HasReceivership {
		n++
	}
	if c.HasBankruptcy {
		n++
	}
	return n
}

// PremiumPct returns the rounded premium (or discount, negative) of the
// complex's price-per-sqm over its benchmark, in percent. Zero when either
// value is missing.
func (c *Complex) PremiumPct() int {
	return PremiumPct(c.PricePerSqm, c.BenchmarkPricePerSqm)
}

// PremiumPct computes round((price-benchmark)/benchmark*100).
func PremiumPct(pricePerSqm, benchmarkPerSqm float64) int {
	if pricePerSqm <= 0 || benchmarkPerSqm <= 0 {
		return 0
	}
	pct := (pricePerSqm - benchmarkPerSqm) / benchmarkPerSqm * 100
	if pct >= 0 {
		return int(pct + 0.5)
	}
	return int(pct - 0.5)
}
