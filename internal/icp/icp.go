// Package icp loads and validates Ideal Customer Profiles: which prospects
// are worth pursuing and how their qualification signals are weighted.
package icp

import (
	"fmt"
	"math"
	"slices"
	"strings"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/signal"
)

// WeightTolerance is the allowed deviation of a weight table's sum from 1.0.
const WeightTolerance = 1e-6

// Default tier cutoffs, applied by the loader when a profile omits them.
const (
	DefaultHighThreshold      = 70
	DefaultImmediateThreshold = 85
)

// Profile is one ideal customer profile.
type Profile struct {
	Name                   string             `yaml:"name" json:"name"`
	Description            string             `yaml:"description,omitempty" json:"description,omitempty"`
	Industries             []model.Vertical   `yaml:"industries" json:"industries"`
	Countries              []string           `yaml:"countries" json:"countries"`
	MinMonthlySpend        float64            `yaml:"min_monthly_spend" json:"min_monthly_spend"`
	QualificationThreshold float64            `yaml:"qualification_threshold" json:"qualification_threshold"`
	HighThreshold          float64            `yaml:"high_threshold" json:"high_threshold"`
	ImmediateThreshold     float64            `yaml:"immediate_threshold" json:"immediate_threshold"`
	Weights                map[string]float64 `yaml:"weights" json:"weights"`
	// Notable overrides the per-signal notable cutoff, in signal points.
	Notable map[string]float64 `yaml:"notable,omitempty" json:"notable,omitempty"`
}

// SignalNames returns the weighted signal names in sorted order.
func (p *Profile) SignalNames() []string {
	names := make([]string, 0, len(p.Weights))
	for n := range p.Weights {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// Matches reports whether a prospect falls inside the profile's target
// industries and countries. An empty target set matches everything.
func (p *Profile) Matches(pr *model.Prospect) bool {
	if len(p.Industries) > 0 && !slices.Contains(p.Industries, pr.Vertical) {
		return false
	}
	if len(p.Countries) > 0 {
		found := false
		for _, c := range p.Countries {
			if strings.EqualFold(c, pr.Country) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Validate checks a profile against the extractor registry. Problems are
// reported as a *config.ValidationError; weights are never renormalized.
func Validate(p *Profile, reg *signal.Registry) error {
	var errs []string

	if strings.TrimSpace(p.Name) == "" {
		errs = append(errs, "name is required")
	}
	if len(p.Weights) == 0 {
		errs = append(errs, "weights must not be empty")
	}

	var sum float64
	for _, name := range p.SignalNames() {
		w := p.Weights[name]
		if _, ok := reg.Get(name); !ok {
			errs = append(errs, fmt.Sprintf("weight %q has no extractor", name))
		}
		if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
			errs = append(errs, fmt.Sprintf("weight %q must be a non-negative number", name))
			continue
		}
		sum += w
	}
	if len(p.Weights) > 0 && math.Abs(sum-1) > WeightTolerance {
		errs = append(errs, fmt.Sprintf("weights must sum to 1.0, got %.6f", sum))
	}

	if p.MinMonthlySpend < 0 {
		errs = append(errs, "min_monthly_spend must be >= 0")
	}
	if p.QualificationThreshold < 0 || p.ImmediateThreshold > 100 ||
		p.QualificationThreshold > p.HighThreshold || p.HighThreshold > p.ImmediateThreshold {
		errs = append(errs, fmt.Sprintf(
			"thresholds must satisfy 0 <= qualification (%.1f) <= high (%.1f) <= immediate (%.1f) <= 100",
			p.QualificationThreshold, p.HighThreshold, p.ImmediateThreshold))
	}

	for name, cutoff := range p.Notable {
		e, ok := reg.Get(name)
		if !ok {
			errs = append(errs, fmt.Sprintf("notable %q has no extractor", name))
			continue
		}
		if cutoff <= 0 || cutoff >= e.Cap {
			errs = append(errs, fmt.Sprintf("notable %q must be in (0, %.0f)", name, e.Cap))
		}
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		src := p.Name
		if src == "" {
			src = "<unnamed>"
		}
		return &config.ValidationError{Source: "profile " + src, Problems: errs}
	}
	return nil
}

// applyDefaults fills omitted tier cutoffs.
func applyDefaults(p *Profile) {
	if p.HighThreshold == 0 {
		p.HighThreshold = DefaultHighThreshold
	}
	if p.ImmediateThreshold == 0 {
		p.ImmediateThreshold = DefaultImmediateThreshold
	}
}

// DefaultProfiles returns the built-in profiles used when no ICP file exists.
func DefaultProfiles() []Profile {
	return []Profile{
		{
			Name:                   "local_sme",
			Description:            "Any small or medium local advertiser",
			MinMonthlySpend:        1000,
			QualificationThreshold: 45,
			HighThreshold:          DefaultHighThreshold,
			ImmediateThreshold:     DefaultImmediateThreshold,
			Weights: map[string]float64{
				signal.AdFrequency:        0.20,
				signal.TargetingPrecision: 0.20,
				signal.CreativeGap:        0.20,
				signal.CrossPlatform:      0.15,
				signal.CompetitorOverlap:  0.10,
				signal.CreativeStagnation: 0.15,
			},
		},
		{
			Name:                   "dental_premium_toronto",
			Description:            "Premium dental practices in the Toronto market",
			Industries:             []model.Vertical{model.VerticalDental},
			Countries:              []string{"CA"},
			MinMonthlySpend:        2000,
			QualificationThreshold: 50,
			HighThreshold:          DefaultHighThreshold,
			ImmediateThreshold:     DefaultImmediateThreshold,
			Weights: map[string]float64{
				signal.AdFrequency:        0.15,
				signal.TargetingPrecision: 0.25,
				signal.CreativeGap:        0.20,
				signal.CrossPlatform:      0.15,
				signal.CompetitorOverlap:  0.15,
				signal.CreativeStagnation: 0.10,
			},
		},
		{
			Name:                   "aesthetic_growth",
			Description:            "Med spas and aesthetic clinics scaling paid acquisition",
			Industries:             []model.Vertical{model.VerticalAesthetic},
			Countries:              []string{"US", "CA"},
			MinMonthlySpend:        2500,
			QualificationThreshold: 55,
			HighThreshold:          DefaultHighThreshold,
			ImmediateThreshold:     DefaultImmediateThreshold,
			Weights: map[string]float64{
				signal.AdFrequency:        0.10,
				signal.TargetingPrecision: 0.25,
				signal.CreativeGap:        0.20,
				signal.CrossPlatform:      0.15,
				signal.CompetitorOverlap:  0.20,
				signal.CreativeStagnation: 0.10,
			},
			Notable: map[string]float64{signal.CompetitorOverlap: 12},
		},
	}
}
