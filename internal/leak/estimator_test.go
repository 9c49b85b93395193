package leak

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/model"
)

func TestEstimate_DentalScenario(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)

	est := e.Estimate(Metrics{Spend: 4500, Impressions: 180000, Clicks: 2800, Conversions: 112}, "dental")

	assert.Equal(t, model.ConfidenceHigh, est.Confidence)
	assert.Equal(t, "dental", est.Benchmark)
	assert.GreaterOrEqual(t, est.MonthlyLeak, 0.0)
	assert.LessOrEqual(t, est.MonthlyLeak, 4500.0)
	// CPM 25 sits at the midpoint (100), CTR 1.56% vs 4.5% (34.57),
	// CVR 4% vs 6.5% (61.54).
	assert.InDelta(t, 25.0, est.ObservedCPM, 0.0001)
	assert.InDelta(t, 65.37, est.EfficiencyScore, 0.01)
	assert.InDelta(t, 4500*(1-0.6537)*0.65, est.MonthlyLeak, 1.0)
}

func TestEstimate_Confidence(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)
	full := Metrics{Spend: 3000, Impressions: 100000, Clicks: 2000, Conversions: 80}

	tests := []struct {
		name      string
		metrics   Metrics
		industry  string
		want      model.Confidence
		benchmark string
	}{
		{"exact with metrics", full, "dental", model.ConfidenceHigh, "dental"},
		{"exact case-folded", full, " Dental ", model.ConfidenceHigh, "dental"},
		{"exact without impressions", Metrics{Spend: 3000}, "dental", model.ConfidenceMedium, "dental"},
		{"exact without spend", Metrics{Impressions: 1000}, "legal", model.ConfidenceMedium, "legal"},
		{"alias", full, "MedSpa", model.ConfidenceMedium, "aesthetic"},
		{"alias with spaces", full, "law firm", model.ConfidenceMedium, "legal"},
		{"unknown", full, "underwater basket weaving", model.ConfidenceLow, "default"},
		{"empty", full, "", model.ConfidenceLow, "default"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			est := e.Estimate(tt.metrics, tt.industry)
			assert.Equal(t, tt.want, est.Confidence)
			assert.Equal(t, tt.benchmark, est.Benchmark)
		})
	}
}

func TestEstimate_NoImpressionsIsNeutral(t *testing.T) {
	e := NewEstimator(DefaultTable(), 1)
	est := e.Estimate(Metrics{Spend: 1000}, "dental")
	assert.InDelta(t, NeutralEfficiency, est.EfficiencyScore, 0.001)
	assert.InDelta(t, 500.0, est.MonthlyLeak, 0.001)
}

func TestEstimate_PerfectEfficiencyLeaksNothing(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)
	// CPM 10 (below mid), CTR 10%, CVR 20%.
	est := e.Estimate(Metrics{Spend: 1000, Impressions: 100000, Clicks: 10000, Conversions: 2000}, "dental")
	assert.InDelta(t, 100.0, est.EfficiencyScore, 0.001)
	assert.Equal(t, 0.0, est.MonthlyLeak)
}

func TestEstimate_ConversionRateOnlyWithClicks(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)
	est := e.Estimate(Metrics{Spend: 500, Impressions: 50000, Conversions: 10}, "dental")
	assert.Equal(t, 0.0, est.ObservedCVR)
	// CPM 10 -> 100, CTR 0 -> 0.
	assert.InDelta(t, 50.0, est.EfficiencyScore, 0.001)
}

func TestNewEstimator_ClampsCorrection(t *testing.T) {
	assert.Equal(t, 1.0, NewEstimator(nil, 4).Correction())
	assert.Equal(t, 0.0, NewEstimator(nil, -1).Correction())
	assert.Equal(t, DefaultCorrection, NewEstimator(nil, math.NaN()).Correction())
	assert.NotNil(t, NewEstimator(nil, 0.5).Table())
}

func TestEstimate_ZeroCorrectionLeaksNothing(t *testing.T) {
	e := NewEstimator(DefaultTable(), 0)
	est := e.Estimate(Metrics{Spend: 4500, Impressions: 180000, Clicks: 100}, "dental")
	assert.Equal(t, 0.0, est.MonthlyLeak)
	assert.Equal(t, model.ConfidenceHigh, est.Confidence)
}

func TestEstimate_LeakWithinSpend(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))
	industries := append(DefaultTable().Keys(), "medspa", "unknown-industry", "")
	e := NewEstimator(DefaultTable(), 1)

	for i := 0; i < 2000; i++ {
		m := Metrics{
			Spend:       rng.Float64()*20000 - 1000,
			Impressions: rng.Float64()*1e6 - 1000,
			Clicks:      rng.Float64() * 50000,
			Conversions: rng.Float64() * 5000,
		}
		est := e.Estimate(m, industries[rng.IntN(len(industries))])
		spend := math.Max(0, m.Spend)
		require.GreaterOrEqual(t, est.MonthlyLeak, 0.0, "metrics %+v", m)
		require.LessOrEqual(t, est.MonthlyLeak, spend, "metrics %+v", m)
		require.GreaterOrEqual(t, est.EfficiencyScore, 0.0)
		require.LessOrEqual(t, est.EfficiencyScore, 100.0)
		require.NotEmpty(t, est.Confidence)
	}
}

func TestEstimate_ExtremeMagnitudes(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)
	tests := []struct {
		name string
		m    Metrics
	}{
		{"huge spend", Metrics{Spend: 1e306, Impressions: 1}},
		{"max spend", Metrics{Spend: math.MaxFloat64, Impressions: 1e-300, Clicks: 1}},
		{"subnormal impressions", Metrics{Spend: 5000, Impressions: 1e-320, Clicks: 10}},
		{"subnormal clicks", Metrics{Spend: 5000, Impressions: 1000, Clicks: 5e-324, Conversions: 100}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var est model.LeakEstimate
			require.NotPanics(t, func() { est = e.Estimate(tt.m, "dental") })
			assert.GreaterOrEqual(t, est.MonthlyLeak, 0.0)
			assert.LessOrEqual(t, est.MonthlyLeak, tt.m.Spend)
			assert.GreaterOrEqual(t, est.EfficiencyScore, 0.0)
			assert.LessOrEqual(t, est.EfficiencyScore, 100.0)
			assert.False(t, math.IsInf(est.ObservedCPM, 0) || math.IsNaN(est.ObservedCPM))
			assert.False(t, math.IsInf(est.ObservedCTR, 0) || math.IsNaN(est.ObservedCTR))
			assert.False(t, math.IsInf(est.ObservedCVR, 0) || math.IsNaN(est.ObservedCVR))
		})
	}
}

func TestEstimate_NaNMetrics(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)
	est := e.Estimate(Metrics{Spend: math.NaN(), Impressions: math.Inf(1)}, "dental")
	assert.Equal(t, 0.0, est.MonthlyLeak)
	assert.Equal(t, model.ConfidenceMedium, est.Confidence)
}

func TestEstimateProspect(t *testing.T) {
	e := NewEstimator(DefaultTable(), DefaultCorrection)
	p := &model.Prospect{
		Vertical:              model.VerticalDental,
		EstimatedMonthlySpend: 4500,
		MonthlyImpressions:    180000,
		MonthlyClicks:         2800,
		MonthlyConversions:    112,
	}
	assert.Equal(t, e.Estimate(MetricsFor(p), "dental"), e.EstimateProspect(p))
}

func TestFormatLeak(t *testing.T) {
	s, err := FormatLeak(model.LeakEstimate{
		MonthlyLeak: 1012.5, Confidence: model.ConfidenceHigh, Benchmark: "dental", EfficiencyScore: 65.37,
	})
	require.NoError(t, err)
	assert.Contains(t, s, "$1,012.50/mo")
	assert.Contains(t, s, "confidence HIGH")

	_, err = FormatLeak(model.LeakEstimate{MonthlyLeak: 1012.5})
	assert.Error(t, err)
}
