package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redev-labs/complex-scanner/internal/model"
)

func buildableComplex() *model.Complex {
	return &model.Complex{
		ID:                   "cx-1",
		Name:                 "Herzl 12",
		City:                 "Tel Aviv",
		Neighborhood:         "Florentin",
		Status:               model.StatusPermits,
		PricePerSqm:          10000,
		BenchmarkPricePerSqm: 12000,
		Developer:            "Shikun Binui",
		DeveloperStrength:    4,
		UnitCount:            120,
	}
}

func TestComputeInvestmentScore_AxesBounded(t *testing.T) {
	score := ComputeInvestmentScore(buildableComplex(), MomentumInputs{RecentTransactions: 50, ActiveListings: 50})

	assert.LessOrEqual(t, score.Axes.Stage, maxStageAxis)
	assert.LessOrEqual(t, score.Axes.PremiumGap, maxPremiumAxis)
	assert.LessOrEqual(t, score.Axes.Momentum, maxMomentumAxis)
	assert.LessOrEqual(t, score.Axes.Scale, maxScaleAxis)
	assert.LessOrEqual(t, score.Axes.Developer, maxDeveloperAxis)
	assert.LessOrEqual(t, score.Axes.Confidence, maxConfidenceAxis)
	assert.LessOrEqual(t, score.Total, 100.0)
	assert.GreaterOrEqual(t, score.Total, 0.0)
}

func TestComputeInvestmentScore_Deterministic(t *testing.T) {
	c := buildableComplex()
	m := MomentumInputs{RecentTransactions: 3, ActiveListings: 2}

	first := ComputeInvestmentScore(c, m)
	second := ComputeInvestmentScore(c, m)

	assert.Equal(t, first, second)
}

func TestPremiumGapAxis(t *testing.T) {
	tests := []struct {
		name      string
		price     float64
		benchmark float64
		check     func(t *testing.T, axis float64)
	}{
		{
			name: "missing price falls to neutral", price: 0, benchmark: 10000,
			check: func(t *testing.T, axis float64) { assert.Equal(t, neutralPremiumAxis, axis) },
		},
		{
			name: "missing benchmark falls to neutral", price: 10000, benchmark: 0,
			check: func(t *testing.T, axis float64) { assert.Equal(t, neutralPremiumAxis, axis) },
		},
		{
			name: "par pricing scores midpoint", price: 10000, benchmark: 10000,
			check: func(t *testing.T, axis float64) { assert.Equal(t, parPremiumAxis, axis) },
		},
		{
			name: "twenty percent premium decays below par", price: 12000, benchmark: 10000,
			check: func(t *testing.T, axis float64) {
				assert.Less(t, axis, parPremiumAxis)
				assert.Greater(t, axis, 0.0)
			},
		},
		{
			name: "discount climbs toward cap", price: 8000, benchmark: 10000,
			check: func(t *testing.T, axis float64) {
				assert.Greater(t, axis, parPremiumAxis)
				assert.Less(t, axis, maxPremiumAxis)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, premiumGapAxis(tt.price, tt.benchmark))
		})
	}
}

func TestPremiumGapAxis_DiminishingReturns(t *testing.T) {
	// Each additional 10% of discount must add less than the previous 10%.
	first := premiumGapAxis(9000, 10000) - premiumGapAxis(10000, 10000)
	second := premiumGapAxis(8000, 10000) - premiumGapAxis(9000, 10000)

	assert.Greater(t, first, second)
	assert.Greater(t, second, 0.0)
}

func TestStageAxis(t *testing.T) {
	assert.Equal(t, neutralStageAxis, stageAxis(model.PlanningStatus("")))
	assert.Equal(t, 0.0, stageAxis(model.StatusDeclared))
	assert.Equal(t, maxStageAxis, stageAxis(model.StatusCompleted))
	assert.Less(t, stageAxis(model.StatusPlanSubmitted), stageAxis(model.StatusPermits))
}

func TestMomentumAxis_Caps(t *testing.T) {
	assert.Equal(t, 0.0, momentumAxis(MomentumInputs{}))
	assert.Equal(t, 4.0, momentumAxis(MomentumInputs{RecentTransactions: 2}))
	assert.Equal(t, maxMomentumAxis, momentumAxis(MomentumInputs{RecentTransactions: 100, ActiveListings: 100}))
}

func TestDeveloperAxis(t *testing.T) {
	assert.Equal(t, 0.0, developerAxis("", 5))
	assert.Equal(t, 6.0, developerAxis("Unrated Builder", 0))
	assert.Equal(t, 15.0, developerAxis("Top Builder", 5))
	assert.Equal(t, 15.0, developerAxis("Top Builder", 9))
}

func TestConfidenceAxis_QualityFlagPenalty(t *testing.T) {
	c := buildableComplex()
	c.Narrative = "filled"
	c.SignaturePct = 80

	clean := confidenceAxis(c)
	c.DataQualityFlag = true
	flagged := confidenceAxis(c)

	assert.Equal(t, clean-3, flagged)
	assert.GreaterOrEqual(t, flagged, 0.0)
}
