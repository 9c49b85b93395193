package scorer

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/icp"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/signal"
)

var testNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

// stubRegistry returns a registry whose extractors return values[name]
// and count how often they run.
func stubRegistry(values map[string]float64, caps map[string]float64, calls *int) *signal.Registry {
	reg := signal.NewRegistry(signal.DefaultConfig())
	for name, c := range caps {
		reg.Register(signal.Extractor{
			Name: name,
			Cap:  c,
			Fn: func(*model.Prospect, time.Time) float64 {
				if calls != nil {
					*calls++
				}
				return values[name]
			},
		})
	}
	return reg
}

func stubProfile(weights map[string]float64) *icp.Profile {
	return &icp.Profile{
		Name:                   "stub",
		MinMonthlySpend:        1000,
		QualificationThreshold: 50,
		HighThreshold:          70,
		ImmediateThreshold:     85,
		Weights:                weights,
	}
}

func defaultScorer(t *testing.T, name string) *Scorer {
	t.Helper()
	reg := signal.NewRegistry(signal.DefaultConfig())
	set, err := icp.DefaultSet(reg)
	require.NoError(t, err)
	p, ok := set.Get(name)
	require.True(t, ok)
	s, err := New(p, reg)
	require.NoError(t, err)
	return s
}

func TestNew_RejectsInvalidProfile(t *testing.T) {
	reg := signal.NewRegistry(signal.DefaultConfig())
	_, err := New(stubProfile(map[string]float64{signal.CreativeGap: 0.5}), reg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights must sum to 1.0")
}

func TestScore_BelowMinSpendSkipsExtractors(t *testing.T) {
	var calls int
	caps := map[string]float64{"a": 10, "b": 10}
	reg := stubRegistry(map[string]float64{"a": 10, "b": 10}, caps, &calls)
	s, err := New(stubProfile(map[string]float64{"a": 0.5, "b": 0.5}), reg)
	require.NoError(t, err)

	for _, spend := range []float64{0, 500, 999.99} {
		p := &model.Prospect{EstimatedMonthlySpend: spend}
		res := s.Score(p, testNow)
		assert.False(t, res.Qualified)
		assert.Equal(t, model.TierUnqualified, res.Tier)
		assert.Equal(t, model.ReasonBelowMinSpend, res.Reason)
		assert.Nil(t, p.Signals)
	}
	assert.Equal(t, 0, calls, "no extractor may run below the spend floor")

	s.Score(&model.Prospect{EstimatedMonthlySpend: 1000}, testNow)
	assert.Equal(t, 2, calls)
}

func TestScore_WeightedSumAndTiers(t *testing.T) {
	caps := map[string]float64{"a": 20, "b": 10}
	tests := []struct {
		name      string
		a, b      float64
		wantScore float64
		wantTier  model.Tier
		qualified bool
	}{
		{"perfect", 20, 10, 100, model.TierImmediate, true},
		{"immediate boundary", 17, 8.5, 85, model.TierImmediate, true},
		{"high", 16, 7, 75, model.TierHigh, true},
		{"medium", 12, 5, 55, model.TierMedium, true},
		{"below threshold", 8, 4, 40, model.TierUnqualified, false},
		{"zero", 0, 0, 0, model.TierUnqualified, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := stubRegistry(map[string]float64{"a": tt.a, "b": tt.b}, caps, nil)
			s, err := New(stubProfile(map[string]float64{"a": 0.5, "b": 0.5}), reg)
			require.NoError(t, err)

			res := s.Score(&model.Prospect{EstimatedMonthlySpend: 5000}, testNow)
			assert.InDelta(t, tt.wantScore, res.Score, 1e-9)
			assert.Equal(t, tt.wantTier, res.Tier)
			assert.Equal(t, tt.qualified, res.Qualified)
			if !tt.qualified {
				assert.Equal(t, model.ReasonBelowScore, res.Reason)
			}
			assert.Equal(t, "stub", res.ICP)
		})
	}
}

func TestScore_SignalsDetectedUsesRawSubscore(t *testing.T) {
	caps := map[string]float64{"a": 20, "b": 10, "c": 10}
	reg := stubRegistry(map[string]float64{"a": 16, "b": 7, "c": 9}, caps, nil)
	prof := stubProfile(map[string]float64{"a": 0.01, "b": 0.49, "c": 0.5})
	prof.Notable = map[string]float64{"c": 9.5}
	s, err := New(prof, reg)
	require.NoError(t, err)

	res := s.Score(&model.Prospect{EstimatedMonthlySpend: 5000}, testNow)
	// a is notable despite its tiny weight; c misses its overridden cutoff.
	assert.Equal(t, []string{"a"}, res.SignalsDetected)
	assert.Equal(t, map[string]float64{"a": 16, "b": 7, "c": 9}, res.Signals)
}

func TestScore_SignalsDetectedNeedsToExceedCutoff(t *testing.T) {
	caps := map[string]float64{"a": 20, "b": 10}
	reg := stubRegistry(map[string]float64{"a": 15, "b": 7.6}, caps, nil)
	s, err := New(stubProfile(map[string]float64{"a": 0.5, "b": 0.5}), reg)
	require.NoError(t, err)

	res := s.Score(&model.Prospect{EstimatedMonthlySpend: 5000}, testNow)
	// a sits exactly on its 0.75 × cap cutoff.
	assert.Equal(t, []string{"b"}, res.SignalsDetected)
}

func TestScore_Idempotent(t *testing.T) {
	s := defaultScorer(t, "dental_premium_toronto")
	clock := signal.FixedClock(testNow)

	mk := func() *model.Prospect {
		return &model.Prospect{
			CompanyName:           "Bloor Dental",
			Domain:                "bloordental.ca",
			Vertical:              model.VerticalDental,
			AdVolume:              model.IntPtr(12),
			CreativeDiversity:     0.25,
			EstimatedMonthlySpend: 4500,
			MonthlyImpressions:    180000,
			PlatformsActive:       []string{"google", "meta"},
			FirstSeen:             testNow.AddDate(0, -4, 0),
		}
	}

	first := s.Score(mk(), clock.Now())
	second := s.Score(mk(), clock.Now())
	assert.Equal(t, first, second)

	// Scoring the same record value twice also mutates nothing else.
	p := mk()
	third := s.Score(p, clock.Now())
	fourth := s.Score(p, clock.Now())
	assert.Equal(t, third, fourth)
	assert.Equal(t, first, third)
}

func TestScore_Monotonic(t *testing.T) {
	caps := map[string]float64{"a": 25, "b": 20, "c": 15, "d": 10}
	weights := map[string]float64{"a": 0.4, "b": 0.3, "c": 0.2, "d": 0.1}
	rng := rand.New(rand.NewPCG(1, 2))

	for i := 0; i < 500; i++ {
		values := map[string]float64{}
		for n, c := range caps {
			values[n] = rng.Float64() * c
		}
		s, err := New(stubProfile(weights), stubRegistry(values, caps, nil))
		require.NoError(t, err)
		base := s.Score(&model.Prospect{EstimatedMonthlySpend: 5000}, testNow).Score

		for n, c := range caps {
			bumped := map[string]float64{}
			for k, v := range values {
				bumped[k] = v
			}
			bumped[n] = values[n] + rng.Float64()*(c-values[n])
			s2, err := New(stubProfile(weights), stubRegistry(bumped, caps, nil))
			require.NoError(t, err)
			got := s2.Score(&model.Prospect{EstimatedMonthlySpend: 5000}, testNow).Score
			require.GreaterOrEqual(t, got, base, "raising %s lowered the score", n)
		}
	}
}

func TestScore_CreativeInterpretation(t *testing.T) {
	s := defaultScorer(t, "local_sme")

	sophisticated := &model.Prospect{AdVolume: model.IntPtr(15), CreativeDiversity: 0.85, EstimatedMonthlySpend: 3000}
	res := s.Score(sophisticated, testNow)
	assert.Contains(t, res.Insights, signal.InsightSophisticatedMarketing)
	assert.NotContains(t, res.SignalsDetected, signal.CreativeStagnation)

	stagnant := &model.Prospect{AdVolume: model.IntPtr(12), CreativeDiversity: 0.2, EstimatedMonthlySpend: 3000}
	res = s.Score(stagnant, testNow)
	assert.Contains(t, res.Insights, signal.InsightCreativeStagnation)
	assert.Contains(t, res.SignalsDetected, signal.CreativeStagnation)
}

func TestScore_RealisticDentalLead(t *testing.T) {
	s := defaultScorer(t, "dental_premium_toronto")
	p := &model.Prospect{
		Vertical:              model.VerticalDental,
		AdVolume:              model.IntPtr(18),
		CreativeDiversity:     0.2,
		EstimatedMonthlySpend: 12000,
		MonthlyImpressions:    2_400_000,
		PlatformsActive:       []string{"google", "meta", "youtube", "tiktok"},
		FirstSeen:             testNow.AddDate(-1, 0, 0),
	}
	res := s.Score(p, testNow)

	// Every signal sits at its cap except stagnation (8/10) and overlap (10/15).
	// 0.15*100 + 0.25*100 + 0.20*100 + 0.15*100 + 0.15*66.67 + 0.10*80 = 93
	assert.InDelta(t, 93, res.Score, 0.01)
	assert.Equal(t, model.TierImmediate, res.Tier)
	assert.True(t, res.Qualified)
	assert.Empty(t, res.Reason)
	assert.Len(t, p.Signals, 6)
	for name, v := range p.Signals {
		e, _ := signal.NewRegistry(signal.DefaultConfig()).Get(name)
		assert.LessOrEqual(t, v, e.Cap, name)
	}
}
