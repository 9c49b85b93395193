package leak

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/sells-group/adlead-cli/internal/model"
)

const (
	// DefaultCorrection discounts the raw inefficiency, since not every
	// below-benchmark dollar is recoverable.
	DefaultCorrection = 0.65
	// NeutralEfficiency is used when there are no impressions to judge.
	NeutralEfficiency = 50.0
)

// Metrics are the observed monthly ad metrics for one prospect.
type Metrics struct {
	Spend       float64 `json:"spend"`
	Impressions float64 `json:"impressions"`
	Clicks      float64 `json:"clicks"`
	Conversions float64 `json:"conversions"`
}

// MetricsFor builds Metrics from a prospect's monthly figures.
func MetricsFor(p *model.Prospect) Metrics {
	return Metrics{
		Spend:       p.EstimatedMonthlySpend,
		Impressions: p.MonthlyImpressions,
		Clicks:      p.MonthlyClicks,
		Conversions: p.MonthlyConversions,
	}
}

// Estimator converts observed metrics into a monthly leak figure.
type Estimator struct {
	table      *Table
	correction float64
}

// NewEstimator creates an estimator over a benchmark table. The correction
// factor is clamped to [0, 1]; NaN selects DefaultCorrection.
func NewEstimator(table *Table, correction float64) *Estimator {
	if table == nil {
		table = DefaultTable()
	}
	if math.IsNaN(correction) {
		correction = DefaultCorrection
	}
	return &Estimator{table: table, correction: clamp(correction, 0, 1)}
}

// Correction returns the effective correction factor.
func (e *Estimator) Correction() float64 { return e.correction }

// Table returns the benchmark table.
func (e *Estimator) Table() *Table { return e.table }

// Estimate computes the leak for the given metrics and industry. It never
// fails: unknown industries fall back to the default benchmark at LOW
// confidence, and the leak is always within [0, spend].
func (e *Estimator) Estimate(m Metrics, industry string) model.LeakEstimate {
	m = sanitize(m)
	bench, key, match := e.table.Resolve(industry)

	est := model.LeakEstimate{Benchmark: key}
	switch match {
	case MatchExact:
		if m.Spend > 0 && m.Impressions > 0 {
			est.Confidence = model.ConfidenceHigh
		} else {
			est.Confidence = model.ConfidenceMedium
		}
	case MatchAlias:
		est.Confidence = model.ConfidenceMedium
	default:
		est.Confidence = model.ConfidenceLow
	}

	eff := NeutralEfficiency
	if m.Impressions > 0 {
		var sum float64
		var n int

		cpm := m.Spend / m.Impressions * 1000
		est.ObservedCPM = round(cpm, 4)
		if m.Spend > 0 {
			sum += lowerIsBetter(cpm, bench.CPM.Mid())
			n++
		}

		ctr := m.Clicks / m.Impressions
		est.ObservedCTR = round(ctr, 4)
		sum += higherIsBetter(ctr, bench.CTR.Mid())
		n++

		if m.Clicks > 0 {
			cvr := m.Conversions / m.Clicks
			est.ObservedCVR = round(cvr, 4)
			sum += higherIsBetter(cvr, bench.ConversionRate.Mid())
			n++
		}
		eff = sum / float64(n)
	}
	eff = clamp(eff, 0, 100)
	est.EfficiencyScore = round(eff, 2)

	raw := m.Spend * (1 - eff/100) * e.correction
	raw = clamp(raw, 0, m.Spend)
	// Round down so cents never push the figure above spend.
	est.MonthlyLeak = decimal.NewFromFloat(raw).RoundFloor(2).InexactFloat64()
	return est
}

// EstimateProspect estimates the leak for a prospect using its vertical.
func (e *Estimator) EstimateProspect(p *model.Prospect) model.LeakEstimate {
	return e.Estimate(MetricsFor(p), string(p.Vertical))
}

// lowerIsBetter scores cost metrics: at or below the midpoint is fully
// efficient.
func lowerIsBetter(obs, mid float64) float64 {
	if mid <= 0 || obs <= mid {
		return 100
	}
	return 100 * mid / obs
}

// higherIsBetter scores rate metrics: at or above the midpoint is fully
// efficient.
func higherIsBetter(obs, mid float64) float64 {
	if mid <= 0 || obs >= mid {
		return 100
	}
	return 100 * obs / mid
}

func sanitize(m Metrics) Metrics {
	fix := func(v float64) float64 {
		if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
			return 0
		}
		return v
	}
	return Metrics{
		Spend:       fix(m.Spend),
		Impressions: fix(m.Impressions),
		Clicks:      fix(m.Clicks),
		Conversions: fix(m.Conversions),
	}
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// round returns 0 for non-finite values. Ratios over tiny denominators can
// overflow to +Inf even when every input is finite.
func round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return decimal.NewFromFloat(v).Round(places).InexactFloat64()
}
