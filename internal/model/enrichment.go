package model

import "time"

// Confidence is an engine's self-reported certainty about its payload.
type Confidence string

const (
	ConfidenceLow    Confidence = "low"
	ConfidenceMedium Confidence = "medium"
	ConfidenceHigh   Confidence = "high"
)

// confidenceOrder ranks confidence levels for min/upgrade comparisons.
var confidenceOrder = map[Confidence]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// Rank returns the numeric order of the confidence level; unknown maps to low.
func (c Confidence) Rank() int {
	if r, ok := confidenceOrder[c]; ok {
		return r
	}
	return 0
}

// MinConfidence returns the lower of two confidence levels.
func MinConfidence(a, b Confidence) Confidence {
	if a.Rank() <= b.Rank() {
		return a
	}
	return b
}

// EnginePayload is the parsed body of one engine's response.
// All fields are optional; a nil pointer means the engine did not report it.
type EnginePayload struct {
	Status               *string          `json:"status,omitempty"`
	PricePerSqm          *float64         `json:"price_per_sqm,omitempty"`
	BenchmarkPricePerSqm *float64         `json:"benchmark_price_per_sqm,omitempty"`
	Developer            *string          `json:"developer,omitempty"`
	DeveloperStrength    *int             `json:"developer_strength,omitempty"`
	SignaturePct         *float64         `json:"signature_pct,omitempty"`
	UnitCount            *int             `json:"unit_count,omitempty"`
	HasEnforcement       *bool            `json:"has_enforcement,omitempty"`
	HasReceivership      *bool            `json:"has_receivership,omitempty"`
	HasBankruptcy        *bool            `json:"has_bankruptcy,omitempty"`
	Narrative            string           `json:"narrative,omitempty"`
	Confidence           Confidence       `json:"confidence,omitempty"`
	Transactions         []TransactionObs `json:"transactions,omitempty"`
	Listings             []ListingObs     `json:"listings,omitempty"`
}

// TransactionObs is a transaction as reported by a research engine, before
// it is keyed and persisted.
type TransactionObs struct {
	Address string  `json:"address"`
	Price   float64 `json:"price"`
	AreaSqm float64 `json:"area_sqm,omitempty"`
	SoldAt  string  `json:"sold_at,omitempty"` // engine-reported, best effort
}

// ListingObs is an active listing as reported by a research engine.
type ListingObs struct {
	ExternalID   string   `json:"external_id,omitempty"`
	Source       string   `json:"source,omitempty"`
	Address      string   `json:"address"`
	AskingPrice  float64  `json:"asking_price"`
	AreaSqm      float64  `json:"area_sqm,omitempty"`
	PriceDropPct float64  `json:"price_drop_pct,omitempty"`
	DaysOnMarket int      `json:"days_on_market,omitempty"`
	Foreclosure  bool     `json:"foreclosure,omitempty"`
	Inheritance  bool     `json:"inheritance,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`
}

// EngineResult is the ephemeral per-engine extraction for one complex. It is
// consumed into Complex/Listing rows and never stored as-is.
type EngineResult struct {
	Engine     string        `json:"engine"`
	Payload    EnginePayload `json:"payload"`
	NoData     bool          `json:"no_data,omitempty"`
	Err        string        `json:"error,omitempty"`
	ElapsedMS  int64         `json:"elapsed_ms"`
	ReceivedAt time.Time     `json:"received_at"`
}

// MergedResult is the conflict-resolved union of all engine results for one
// complex.
type MergedResult struct {
	Status               *string          `json:"status,omitempty"`
	PricePerSqm          *float64         `json:"price_per_sqm,omitempty"`
	BenchmarkPricePerSqm *float64         `json:"benchmark_price_per_sqm,omitempty"`
	Developer            *string          `json:"developer,omitempty"`
	DeveloperStrength    *int             `json:"developer_strength,omitempty"`
	SignaturePct         *float64         `json:"signature_pct,omitempty"`
	UnitCount            *int             `json:"unit_count,omitempty"`
	HasEnforcement       *bool            `json:"has_enforcement,omitempty"`
	HasReceivership      *bool            `json:"has_receivership,omitempty"`
	HasBankruptcy        *bool            `json:"has_bankruptcy,omitempty"`
	Narrative            string           `json:"narrative,omitempty"`
	Transactions         []TransactionObs `json:"transactions,omitempty"`
	Listings             []ListingObs     `json:"listings,omitempty"`
	Confidence           Confidence       `json:"confidence"`
	DivergencePct        float64          `json:"divergence_pct,omitempty"`
	DivergenceFlag       bool             `json:"divergence_flag,omitempty"`
	Contributors         []string         `json:"contributors,omitempty"`
	EngineErrors         int              `json:"engine_errors,omitempty"`
}
