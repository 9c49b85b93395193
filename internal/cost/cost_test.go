package cost

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
)

func testRates() Rates {
	return Rates{
		SearchAPIPerRequest: 0.004,
		MetaPerRequest:      0,
		BigQueryPerQuery:    0.05,
	}
}

func TestQueryRate(t *testing.T) {
	c := NewCalculator(testRates())

	assert.InDelta(t, 0.004, c.QueryRate(model.SourceSearchAPI), 1e-9)
	assert.Zero(t, c.QueryRate(model.SourceMetaAds))
	assert.InDelta(t, 0.05, c.QueryRate(model.SourceBigQueryAds), 1e-9)
	assert.Zero(t, c.QueryRate("UNKNOWN"))
}

func TestDiscovery(t *testing.T) {
	tests := []struct {
		name  string
		usage Usage
		want  Breakdown
	}{
		{
			name:  "searchapi with lookups",
			usage: Usage{Source: model.SourceSearchAPI, Queries: 250, Lookups: 500},
			want:  Breakdown{Queries: 1.00, Lookups: 2.00, Total: 3.00},
		},
		{
			name:  "meta queries are free",
			usage: Usage{Source: model.SourceMetaAds, Queries: 40, Lookups: 25},
			want:  Breakdown{Queries: 0, Lookups: 0.10, Total: 0.10},
		},
		{
			name:  "bigquery flat per query",
			usage: Usage{Source: model.SourceBigQueryAds, Queries: 3},
			want:  Breakdown{Queries: 0.15, Total: 0.15},
		},
		{
			name:  "rounds to cents",
			usage: Usage{Source: model.SourceSearchAPI, Queries: 1},
			want:  Breakdown{Queries: 0, Total: 0},
		},
	}

	c := NewCalculator(testRates())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Discovery(tt.usage)
			assert.InDelta(t, tt.want.Queries, got.Queries, 1e-9)
			assert.InDelta(t, tt.want.Lookups, got.Lookups, 1e-9)
			assert.InDelta(t, tt.want.Total, got.Total, 1e-9)
		})
	}
}

func TestRatesFrom(t *testing.T) {
	r := RatesFrom(config.PricingConfig{SearchAPIPerRequest: 0.004, MetaPerRequest: 0.001, BigQueryPerQuery: 0.02})
	assert.Equal(t, Rates{SearchAPIPerRequest: 0.004, MetaPerRequest: 0.001, BigQueryPerQuery: 0.02}, r)
}
