package scoring

import (
	"strings"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// Subscore caps for the seller stress score.
const (
	maxTimeSubscore      = 40.0
	maxPriceSubscore     = 35.0
	maxIndicatorSubscore = 25.0
)

// stressKeywords are the listing-text markers that count toward the
// indicator subscore when present in the extracted keyword list.
var stressKeywords = map[string]struct{}{
	"urgent":      {},
	"flexible":    {},
	"divorce":     {},
	"relocation":  {},
	"estate sale": {},
	"motivated":   {},
}

// StressSubscores breaks the seller stress score into its bounded parts.
type StressSubscores struct {
	Time      float64 `json:"time"`      // 0-40, days on market
	Price     float64 `json:"price"`     // 0-35, cumulative price drop
	Indicator float64 `json:"indicator"` // 0-25, distress markers
}

// StressScore is the result of ComputeSellerStress.
type StressScore struct {
	Total     float64         `json:"total"` // 0-100
	Subscores StressSubscores `json:"subscores"`
}

// ComputeSellerStress scores how motivated a seller looks from the listing's
// persisted facts alone.
func ComputeSellerStress(l *model.Listing) StressScore {
	sub := StressSubscores{
		Time:      timeSubscore(l.DaysOnMarket),
		Price:     priceSubscore(l.PriceDropPct),
		Indicator: indicatorSubscore(l),
	}
	total := sub.Time + sub.Price + sub.Indicator
	if total > 100 {
		total = 100
	}
	return StressScore{Total: total, Subscores: sub}
}

func timeSubscore(days int) float64 {
	switch {
	case days >= 120:
		return 40
	case days >= 90:
		return 30
	case days >= 60:
		return 20
	case days >= 30:
		return 10
	default:
		return 0
	}
}

func priceSubscore(dropPct float64) float64 {
	switch {
	case dropPct > 15:
		return 35
	case dropPct >= 10:
		return 30
	case dropPct >= 5:
		return 15
	default:
		return 0
	}
}

func indicatorSubscore(l *model.Listing) float64 {
	var score float64
	if l.Foreclosure {
		score += 15
	}
	if l.Inheritance {
		score += 10
	}
	for _, kw := range l.Keywords {
		if _, ok := stressKeywords[strings.ToLower(strings.TrimSpace(kw))]; ok {
			score += 5
			break
		}
	}
	if score > maxIndicatorSubscore {
		score = maxIndicatorSubscore
	}
	return score
}
