package model

import "time"

// Tier is the scan-priority bucket a complex belongs to. Every complex is in
// exactly one tier after classification.
type Tier string

const (
	TierHot     Tier = "hot"
	TierActive  Tier = "active"
	TierDormant Tier = "dormant"
)

// ValidTier reports whether t is one of the three tiers.
func ValidTier(t Tier) bool {
	return t == TierHot || t == TierActive || t == TierDormant
}

// PriorityComponents breaks a priority score into its five capped parts.
type PriorityComponents struct {
	CompletenessGap float64 `json:"completeness_gap"` // 0-25
	MarketActivity  float64 `json:"market_activity"`  // 0-25
	ScoreMagnitude  float64 `json:"score_magnitude"`  // 0-20
	Staleness       float64 `json:"staleness"`        // 0-15
	Distress        float64 `json:"distress"`         // 0-15
}

// PriorityRecord is a derived ranking snapshot for one complex. It has no
// independent lifecycle and is fully replaced on every recomputation.
type PriorityRecord struct {
	ComplexID  string             `json:"complex_id"`
	Total      float64            `json:"total"`
	Components PriorityComponents `json:"components"`
	Tier       Tier               `json:"tier"`
	ComputedAt time.Time          `json:"computed_at"`
}
