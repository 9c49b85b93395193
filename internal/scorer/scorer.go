// Package scorer implements ICP-parameterized lead qualification scoring.
package scorer

import (
	"math"
	"time"

	"github.com/sells-group/adlead-cli/internal/icp"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/signal"
)

// Scorer combines signal sub-scores into a qualification decision for one
// ICP. It holds only read-only state and is safe for concurrent use.
type Scorer struct {
	profile *icp.Profile
	reg     *signal.Registry
	names   []string
}

// New creates a Scorer for the given profile. The profile is validated
// against the registry so a broken weight table fails before any scoring.
func New(profile *icp.Profile, reg *signal.Registry) (*Scorer, error) {
	if err := icp.Validate(profile, reg); err != nil {
		return nil, err
	}
	return &Scorer{profile: profile, reg: reg, names: profile.SignalNames()}, nil
}

// Profile returns the scorer's ICP.
func (s *Scorer) Profile() *icp.Profile { return s.profile }

// Score qualifies a prospect. It fills p.Signals and returns the result.
//
// Prospects below the profile's spend floor short-circuit to UNQUALIFIED
// without running any extractor. Otherwise:
//
//	score = Σ (subscore[s] / cap[s] × 100) × weight[s]
//
// summed in sorted signal order, so identical input and "now" always give
// a bit-identical result. "now" only reaches the creative_gap extractor.
func (s *Scorer) Score(p *model.Prospect, now time.Time) model.QualificationResult {
	res := model.QualificationResult{
		ICP:  s.profile.Name,
		Tier: model.TierUnqualified,
	}

	if !(p.EstimatedMonthlySpend >= s.profile.MinMonthlySpend) {
		res.Reason = model.ReasonBelowMinSpend
		return res
	}

	signals := make(map[string]float64, len(s.names))
	var total float64
	for _, name := range s.names {
		e, ok := s.reg.Get(name)
		if !ok || e.Cap <= 0 {
			continue
		}
		sub := e.Extract(p, now)
		signals[name] = sub
		total += sub / e.Cap * 100 * s.profile.Weights[name]

		if sub > s.notableCutoff(name, e) {
			res.SignalsDetected = append(res.SignalsDetected, name)
		}
	}

	total = math.Max(0, math.Min(100, total))
	res.Score = math.Round(total*100) / 100
	res.Tier = s.tier(res.Score)
	res.Qualified = res.Score >= s.profile.QualificationThreshold
	if !res.Qualified {
		res.Reason = model.ReasonBelowScore
	}

	p.Signals = signals
	res.Signals = copySignals(signals)
	res.Insights = []string{signal.InterpretCreative(p)}
	return res
}

func (s *Scorer) notableCutoff(name string, e signal.Extractor) float64 {
	if v, ok := s.profile.Notable[name]; ok {
		return v
	}
	return e.Notable
}

func (s *Scorer) tier(score float64) model.Tier {
	switch {
	case score >= s.profile.ImmediateThreshold:
		return model.TierImmediate
	case score >= s.profile.HighThreshold:
		return model.TierHigh
	case score >= s.profile.QualificationThreshold:
		return model.TierMedium
	default:
		return model.TierUnqualified
	}
}

func copySignals(in map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
