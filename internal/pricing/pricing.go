package pricing

import (
	"context"
	"fmt"
	"math"

	"reserva/internal/models"
)

// Calculator prices a booking window as hours * hourly base price plus a
// flat commission rate. Seasonal tariffs and per-type strategies stay behind
// the interface; this is the default used by the engine.
type Calculator struct {
	commissionRate float64
}

func NewCalculator(commissionRate float64) *Calculator {
	return &Calculator{commissionRate: commissionRate}
}

func (c *Calculator) Calculate(ctx context.Context, resourceType string, basePrice float64, currency string, period models.Period) (models.PriceSnapshot, error) {
	if !period.IsValid() {
		return models.PriceSnapshot{}, fmt.Errorf("invalid period for pricing: %v", period)
	}
	if basePrice < 0 {
		return models.PriceSnapshot{}, fmt.Errorf("negative base price: %v", basePrice)
	}

	base := roundMoney(basePrice * period.Hours())
	commission := roundMoney(base * c.commissionRate)

	return models.PriceSnapshot{
		BasePrice:  base,
		Commission: commission,
		TotalPrice: roundMoney(base + commission),
		Currency:   currency,
	}, nil
}

func roundMoney(v float64) float64 {
	return math.Round(v*100) / 100
}
