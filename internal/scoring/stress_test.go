package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/redev-labs/complex-scanner/internal/model"
)

func TestComputeSellerStress_BandedSubscores(t *testing.T) {
	l := &model.Listing{
		DaysOnMarket: 95,
		PriceDropPct: 12,
		Foreclosure:  true,
		Inheritance:  true,
	}

	score := ComputeSellerStress(l)

	assert.Equal(t, 30.0, score.Subscores.Time)
	assert.Equal(t, 30.0, score.Subscores.Price)
	assert.Equal(t, 25.0, score.Subscores.Indicator)
	assert.Equal(t, 85.0, score.Total)
}

func TestTimeSubscore(t *testing.T) {
	tests := []struct {
		days int
		want float64
	}{
		{0, 0},
		{29, 0},
		{30, 10},
		{59, 10},
		{60, 20},
		{89, 20},
		{90, 30},
		{119, 30},
		{120, 40},
		{400, 40},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, timeSubscore(tt.days), "days=%d", tt.days)
	}
}

func TestPriceSubscore(t *testing.T) {
	tests := []struct {
		drop float64
		want float64
	}{
		{0, 0},
		{4.9, 0},
		{5, 15},
		{9.9, 15},
		{10, 30},
		{15, 30},
		{15.1, 35},
		{40, 35},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, priceSubscore(tt.drop), "drop=%.1f", tt.drop)
	}
}

func TestIndicatorSubscore(t *testing.T) {
	assert.Equal(t, 0.0, indicatorSubscore(&model.Listing{}))
	assert.Equal(t, 15.0, indicatorSubscore(&model.Listing{Foreclosure: true}))
	assert.Equal(t, 10.0, indicatorSubscore(&model.Listing{Inheritance: true}))
	assert.Equal(t, 5.0, indicatorSubscore(&model.Listing{Keywords: []string{"Urgent", "garden"}}))

	// Keywords add one increment regardless of how many match.
	assert.Equal(t, 5.0, indicatorSubscore(&model.Listing{Keywords: []string{"urgent", "divorce", "motivated"}}))

	all := &model.Listing{Foreclosure: true, Inheritance: true, Keywords: []string{"urgent"}}
	assert.Equal(t, maxIndicatorSubscore, indicatorSubscore(all))
}

func TestComputeSellerStress_CappedAtHundred(t *testing.T) {
	l := &model.Listing{
		DaysOnMarket: 500,
		PriceDropPct: 50,
		Foreclosure:  true,
		Inheritance:  true,
		Keywords:     []string{"urgent"},
	}

	assert.Equal(t, 100.0, ComputeSellerStress(l).Total)
}
