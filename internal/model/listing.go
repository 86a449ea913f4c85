package model

import "time"

// Listing is an observed for-sale unit, optionally linked to a complex.
// At most one active row exists per (source, external id); a newer
// observation supersedes the old row, which is marked inactive, not deleted.
type Listing struct {
	ID           string     `json:"id"`
	ComplexID    string     `json:"complex_id,omitempty"`
	Source       string     `json:"source"`
	ExternalID   string     `json:"external_id"`
	Address      string     `json:"address"`
	AskingPrice  float64    `json:"asking_price"`
	AreaSqm      float64    `json:"area_sqm,omitempty"`
	PriceDropPct float64    `json:"price_drop_pct,omitempty"`
	DaysOnMarket int        `json:"days_on_market,omitempty"`
	Foreclosure  bool       `json:"foreclosure,omitempty"`
	Inheritance  bool       `json:"inheritance,omitempty"`
	Keywords     []string   `json:"keywords,omitempty"` // matched distress keywords
	StressScore  float64    `json:"stress_score"`
	Active       bool       `json:"active"`
	FirstSeenAt  time.Time  `json:"first_seen_at"`
	LastSeenAt   time.Time  `json:"last_seen_at"`
	SupersededAt *time.Time `json:"superseded_at,omitempty"`
}

// Transaction is a recorded sale inside a complex's locality. Transactions
// feed the locality benchmark averages and the momentum axis; they are
// append-only.
type Transaction struct {
	ID        string    `json:"id"`
	ComplexID string    `json:"complex_id,omitempty"`
	Address   string    `json:"address"`
	Price     float64   `json:"price"`
	AreaSqm   float64   `json:"area_sqm,omitempty"`
	SoldAt    time.Time `json:"sold_at"`
	Source    string    `json:"source"`
}
