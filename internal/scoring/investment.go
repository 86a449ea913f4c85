// Package scoring holds the pure score calculators and the population-wide
// recompute pass. Both calculators are pure functions of persisted facts:
// identical input always yields identical output.
package scoring

import (
	"math"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// Axis caps for the investment score. The six axes sum to at most 100.
const (
	maxStageAxis      = 25.0
	maxPremiumAxis    = 20.0
	maxMomentumAxis   = 15.0
	maxScaleAxis      = 10.0
	maxDeveloperAxis  = 15.0
	maxConfidenceAxis = 15.0

	// Neutral defaults under missing data. Each axis degrades to a small
	// non-null value instead of propagating absence.
	neutralStageAxis   = 5.0
	neutralPremiumAxis = 6.0
	parPremiumAxis     = 8.0
)

// InvestmentAxes breaks the investment score into its bounded axes.
type InvestmentAxes struct {
	Stage      float64 `json:"stage"`       // 0-25
	PremiumGap float64 `json:"premium_gap"` // 0-20
	Momentum   float64 `json:"momentum"`    // 0-15
	Scale      float64 `json:"scale"`       // 0-10
	Developer  float64 `json:"developer"`   // 0-15
	Confidence float64 `json:"confidence"`  // 0-15
}

// InvestmentScore is the result of ComputeInvestmentScore.
type InvestmentScore struct {
	Total float64        `json:"total"` // 0-100
	Axes  InvestmentAxes `json:"axes"`
}

// MomentumInputs are the cross-row aggregates the momentum axis consumes:
// transactions observed in the trailing year and currently active listings.
type MomentumInputs struct {
	RecentTransactions int
	ActiveListings     int
}

// ComputeInvestmentScore recomputes the investment score of a complex from
// its persisted facts. No network access, no store access.
func ComputeInvestmentScore(c *model.Complex, momentum MomentumInputs) InvestmentScore {
	axes := InvestmentAxes{
		Stage:      stageAxis(c.Status),
		PremiumGap: premiumGapAxis(c.PricePerSqm, c.BenchmarkPricePerSqm),
		Momentum:   momentumAxis(momentum),
		Scale:      scaleAxis(c.UnitCount),
		Developer:  developerAxis(c.Developer, c.DeveloperStrength),
		Confidence: confidenceAxis(c),
	}
	total := axes.Stage + axes.PremiumGap + axes.Momentum + axes.Scale + axes.Developer + axes.Confidence
	if total > 100 {
		total = 100
	}
	return InvestmentScore{Total: total, Axes: axes}
}

func stageAxis(status model.PlanningStatus) float64 {
	rank := status.Rank()
	if rank < 0 {
		return neutralStageAxis
	}
	return float64(rank) / float64(model.MaxPlanningRank) * maxStageAxis
}

// premiumGapAxis rewards buying below benchmark with diminishing returns: a
// discount saturates toward the cap instead of growing linearly, and a
// premium decays the axis toward zero. Par pricing scores a flat midpoint.
func premiumGapAxis(pricePerSqm, benchmarkPerSqm float64) float64 {
	if pricePerSqm <= 0 || benchmarkPerSqm <= 0 {
		return neutralPremiumAxis
	}
	premium := (pricePerSqm - benchmarkPerSqm) / benchmarkPerSqm * 100
	if premium <= 0 {
		discount := -premium
		return parPremiumAxis + (maxPremiumAxis-parPremiumAxis)*(1-math.Pow(2, -discount/10))
	}
	return parPremiumAxis * math.Pow(2, -premium/15)
}

func momentumAxis(m MomentumInputs) float64 {
	tx := float64(m.RecentTransactions) * 2
	if tx > 9 {
		tx = 9
	}
	li := float64(m.ActiveListings) * 1.5
	if li > 6 {
		li = 6
	}
	return tx + li
}

func scaleAxis(units int) float64 {
	switch {
	case units >= 300:
		return 10
	case units >= 150:
		return 8
	case units >= 80:
		return 6
	case units >= 30:
		return 4
	case units > 0:
		return 2
	default:
		return 0
	}
}

func developerAxis(developer string, strength int) float64 {
	if developer == "" {
		return 0
	}
	if strength <= 0 {
		return 6 // known developer, unrated
	}
	if strength > 5 {
		strength = 5
	}
	return float64(strength) * 3
}

func confidenceAxis(c *model.Complex) float64 {
	checklist := float64(c.ChecklistSize())
	if checklist == 0 {
		return 0
	}
	axis := (1 - float64(c.EnrichmentGaps())/checklist) * maxConfidenceAxis
	if c.DataQualityFlag {
		axis -= 3
	}
	if axis < 0 {
		axis = 0
	}
	return axis
}
