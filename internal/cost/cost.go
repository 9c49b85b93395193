// Package cost estimates what a discovery run spent on paid ad-library APIs.
package cost

import (
	"math"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
)

// Rates holds per-provider discovery pricing.
type Rates struct {
	SearchAPIPerRequest float64
	MetaPerRequest      float64
	BigQueryPerQuery    float64
}

// RatesFrom converts the pricing config section into Rates.
func RatesFrom(cfg config.PricingConfig) Rates {
	return Rates{
		SearchAPIPerRequest: cfg.SearchAPIPerRequest,
		MetaPerRequest:      cfg.MetaPerRequest,
		BigQueryPerQuery:    cfg.BigQueryPerQuery,
	}
}

// Usage counts billable calls made during one discovery run.
type Usage struct {
	Source  model.Source
	Queries int
	// Lookups are domain-resolution searches, always billed as SearchAPI.
	Lookups int
}

// Breakdown is the estimated spend of one discovery run.
type Breakdown struct {
	Queries float64 `json:"queries"`
	Lookups float64 `json:"lookups"`
	Total   float64 `json:"total"`
}

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// QueryRate returns the price of one discovery query against src.
func (c *Calculator) QueryRate(src model.Source) float64 {
	switch src {
	case model.SourceSearchAPI:
		return c.rates.SearchAPIPerRequest
	case model.SourceMetaAds:
		return c.rates.MetaPerRequest
	case model.SourceBigQueryAds:
		return c.rates.BigQueryPerQuery
	default:
		return 0
	}
}

// Discovery estimates the spend for u, rounded to cents. Paged sources may
// bill more than one request per query, so the figure is a floor.
func (c *Calculator) Discovery(u Usage) Breakdown {
	b := Breakdown{
		Queries: cents(float64(u.Queries) * c.QueryRate(u.Source)),
		Lookups: cents(float64(u.Lookups) * c.rates.SearchAPIPerRequest),
	}
	b.Total = cents(b.Queries + b.Lookups)
	return b
}

func cents(v float64) float64 {
	return math.Round(v*100) / 100
}
