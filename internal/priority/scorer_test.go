package priority

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redev-labs/complex-scanner/internal/model"
)

var testNow = time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)

func enrichedComplex(id string) model.Complex {
	enriched := testNow.Add(-24 * time.Hour)
	return model.Complex{
		ID:                   id,
		Name:                 "Complex " + id,
		City:                 "Haifa",
		Status:               model.StatusApproved,
		PricePerSqm:          11000,
		BenchmarkPricePerSqm: 10000,
		Developer:            "Solid Build Ltd",
		DeveloperStrength:    4,
		SignaturePct:         72,
		UnitCount:            180,
		Narrative:            "moving toward permits",
		LastEnrichedAt:       &enriched,
	}
}

func TestScore_ComponentBounds(t *testing.T) {
	s := NewScorer(DefaultConfig())

	c := model.Complex{
		ID:              "c1",
		InvestmentScore: 500, // deliberately out of range input
		HasEnforcement:  true,
		HasReceivership: true,
		HasBankruptcy:   true,
	}
	total, comp := s.Score(&c, 100, testNow)

	assert.LessOrEqual(t, comp.CompletenessGap, 25.0)
	assert.LessOrEqual(t, comp.MarketActivity, 25.0)
	assert.LessOrEqual(t, comp.ScoreMagnitude, 20.0)
	assert.LessOrEqual(t, comp.Staleness, 15.0)
	assert.LessOrEqual(t, comp.Distress, 15.0)
	assert.LessOrEqual(t, total, 100.0)
	assert.GreaterOrEqual(t, total, 0.0)
}

func TestScore_NeverScannedGetsMaxStaleness(t *testing.T) {
	s := NewScorer(DefaultConfig())
	c := model.Complex{ID: "c1"}
	_, comp := s.Score(&c, 0, testNow)
	assert.Equal(t, 15.0, comp.Staleness)
}

func TestScore_CompletenessGap(t *testing.T) {
	s := NewScorer(DefaultConfig())

	full := enrichedComplex("full")
	_, comp := s.Score(&full, 0, testNow)
	assert.Equal(t, 0.0, comp.CompletenessGap)

	empty := model.Complex{ID: "empty"}
	_, comp = s.Score(&empty, 0, testNow)
	assert.Equal(t, 25.0, comp.CompletenessGap)
}

func TestScore_DistressIncrements(t *testing.T) {
	s := NewScorer(DefaultConfig())
	c := enrichedComplex("d")
	c.HasEnforcement = true
	c.HasBankruptcy = true
	_, comp := s.Score(&c, 0, testNow)
	assert.Equal(t, 10.0, comp.Distress)
}

func TestClassify_PartitionIsExact(t *testing.T) {
	s := NewScorer(Config{HotWindowSize: 3, DormantFloor: 5})

	var complexes []model.Complex
	for _, id := range []string{"a", "b", "c", "d", "e", "f"} {
		complexes = append(complexes, enrichedComplex(id))
	}
	// One complex the dormant status rule catches.
	complexes[5].Status = model.StatusCompleted

	p := s.Classify(complexes, nil, testNow)

	seen := make(map[string]int)
	for _, rec := range p.Records() {
		seen[rec.ComplexID]++
	}
	require.Len(t, seen, len(complexes), "every complex classified")
	for id, n := range seen {
		assert.Equal(t, 1, n, "complex %s in exactly one tier", id)
	}
	assert.LessOrEqual(t, len(p.Hot), 3)
	assert.Len(t, p.Dormant, 1)
	assert.Equal(t, "f", p.Dormant[0].ComplexID)
}

func TestClassify_HotWindowDescending(t *testing.T) {
	// Scores come out [95-ish, 40-ish, 0]: a fully stale, distressed, listed
	// complex; a partially enriched one; and an untouched empty one.
	s := NewScorer(Config{HotWindowSize: 2, DormantFloor: 10})

	high := model.Complex{ // gaps 25 + listings 25 + magnitude 20 + staleness 15 + distress 10 = 95
		ID:              "high",
		InvestmentScore: 100,
		HasEnforcement:  true,
		HasReceivership: true,
	}
	mid := enrichedComplex("mid") // staleness only, low score
	mid.InvestmentScore = 100    // magnitude 20 + staleness 0.5 → well above floor
	zero := model.Complex{ID: "zero"}

	// A never-scanned complex scores staleness 15, never 0, so the
	// "never-scanned AND score 0" dormant rule needs a completed status to
	// observe score 0. Use the completed blocklist for the third complex.
	zero.Status = model.StatusCompleted

	p := s.Classify([]model.Complex{mid, high, zero}, map[string]int{"high": 6}, testNow)

	require.Len(t, p.Hot, 2)
	assert.Equal(t, "high", p.Hot[0].ComplexID)
	assert.Equal(t, "mid", p.Hot[1].ComplexID)
	assert.Greater(t, p.Hot[0].Total, p.Hot[1].Total)
	require.Len(t, p.Dormant, 1)
	assert.Equal(t, "zero", p.Dormant[0].ComplexID)
	assert.Empty(t, p.Active)
}

func TestClassify_DormantFloor(t *testing.T) {
	s := NewScorer(Config{HotWindowSize: 10, DormantFloor: 10})

	c := enrichedComplex("low")
	recent := testNow.Add(-1 * time.Hour)
	c.LastEnrichedAt = &recent
	c.InvestmentScore = 0

	p := s.Classify([]model.Complex{c}, nil, testNow)
	require.Len(t, p.Dormant, 1)
	assert.Equal(t, model.TierDormant, p.Dormant[0].Tier)
}

func TestClassify_Stateless(t *testing.T) {
	s := NewScorer(DefaultConfig())
	complexes := []model.Complex{enrichedComplex("a"), enrichedComplex("b")}

	p1 := s.Classify(complexes, nil, testNow)
	p2 := s.Classify(complexes, nil, testNow)
	assert.Equal(t, p1.Records(), p2.Records())
}

func TestTierIDs_Order(t *testing.T) {
	s := NewScorer(Config{HotWindowSize: 5, DormantFloor: 1})

	a := model.Complex{ID: "a", InvestmentScore: 100, HasEnforcement: true}
	b := model.Complex{ID: "b", InvestmentScore: 50}

	p := s.Classify([]model.Complex{b, a}, nil, testNow)
	ids := p.TierIDs(model.TierHot)
	require.Len(t, ids, 2)
	assert.Equal(t, []string{"a", "b"}, ids)
}
