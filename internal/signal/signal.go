// Package signal implements the bounded sub-score extractors used by the
// qualification scorer.
//
// Every extractor is a pure function of a prospect and the current time.
// Only creative_gap reads the time, so freezing the Clock makes a whole
// scoring run deterministic.
package signal

import (
	"math"
	"slices"
	"time"

	"github.com/sells-group/adlead-cli/internal/model"
)

// Signal names.
const (
	AdFrequency        = "ad_frequency"
	TargetingPrecision = "targeting_precision"
	CreativeGap        = "creative_gap"
	CrossPlatform      = "cross_platform"
	CompetitorOverlap  = "competitor_overlap"
	CreativeStagnation = "creative_stagnation"
)

// DefaultNotableFraction is the share of a signal's cap at which the
// signal is listed in signals_detected.
const DefaultNotableFraction = 0.75

// Clock supplies "now" to time-dependent extractors.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock in UTC.
type SystemClock struct{}

// Now returns the current UTC time.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// FixedClock always returns the same instant.
type FixedClock time.Time

// Now returns the fixed instant.
func (c FixedClock) Now() time.Time { return time.Time(c) }

// Func computes a raw sub-score. Extract clamps it to the extractor's cap.
type Func func(p *model.Prospect, now time.Time) float64

// Extractor is a named, capped sub-score function.
type Extractor struct {
	Name    string
	Cap     float64
	Notable float64
	Fn      Func
}

// Extract runs the extractor and clamps its output to [0, Cap].
func (e Extractor) Extract(p *model.Prospect, now time.Time) float64 {
	v := e.Fn(p, now)
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return math.Min(v, e.Cap)
}

// OverlapRule awards Points for competitor overlap when a prospect in
// Vertical spends more than MinSpend per month.
type OverlapRule struct {
	Vertical model.Vertical `yaml:"vertical" mapstructure:"vertical"`
	MinSpend float64        `yaml:"min_spend" mapstructure:"min_spend"`
	Points   float64        `yaml:"points" mapstructure:"points"`
}

// Config holds the tunable constants of the extractors.
type Config struct {
	// ImpressionPoints is the ad_frequency points per impression-per-dollar.
	ImpressionPoints float64       `yaml:"impression_points" mapstructure:"impression_points"`
	OverlapRules     []OverlapRule `yaml:"overlap_rules" mapstructure:"overlap_rules"`
	OverlapBaseline  float64       `yaml:"overlap_baseline" mapstructure:"overlap_baseline"`
}

// DefaultConfig returns the stock extractor constants.
func DefaultConfig() Config {
	return Config{
		ImpressionPoints: 0.125, // 200 impressions per dollar reaches the cap
		OverlapRules: []OverlapRule{
			{Vertical: model.VerticalAesthetic, MinSpend: 2500, Points: 15},
			{Vertical: model.VerticalDental, MinSpend: 2000, Points: 10},
		},
		OverlapBaseline: 5,
	}
}

// Registry holds the extractors available to ICP weight tables.
type Registry struct {
	extractors map[string]Extractor
}

// NewRegistry builds a registry with the standard extractors.
func NewRegistry(cfg Config) *Registry {
	if cfg.ImpressionPoints <= 0 {
		cfg.ImpressionPoints = DefaultConfig().ImpressionPoints
	}
	r := &Registry{extractors: make(map[string]Extractor)}
	r.Register(Extractor{Name: AdFrequency, Cap: 25, Fn: adFrequency(cfg.ImpressionPoints)})
	r.Register(Extractor{Name: TargetingPrecision, Cap: 25, Fn: targetingPrecision})
	r.Register(Extractor{Name: CreativeGap, Cap: 20, Fn: creativeGap})
	r.Register(Extractor{Name: CrossPlatform, Cap: 15, Fn: crossPlatform})
	r.Register(Extractor{Name: CompetitorOverlap, Cap: 15, Fn: competitorOverlap(cfg.OverlapRules, cfg.OverlapBaseline)})
	r.Register(Extractor{Name: CreativeStagnation, Cap: 10, Fn: creativeStagnation})
	return r
}

// Register adds or replaces an extractor. A zero Notable defaults to
// DefaultNotableFraction of the cap.
func (r *Registry) Register(e Extractor) {
	if e.Notable <= 0 {
		e.Notable = e.Cap * DefaultNotableFraction
	}
	r.extractors[e.Name] = e
}

// Get looks up an extractor by name.
func (r *Registry) Get(name string) (Extractor, bool) {
	e, ok := r.extractors[name]
	return e, ok
}

// Names returns the registered signal names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.extractors))
	for n := range r.extractors {
		names = append(names, n)
	}
	slices.Sort(names)
	return names
}

// adFrequency models reach per dollar: impressions / max(spend, 1).
func adFrequency(pointsPerUnit float64) Func {
	return func(p *model.Prospect, _ time.Time) float64 {
		if p.MonthlyImpressions <= 0 {
			return 0
		}
		perDollar := p.MonthlyImpressions / math.Max(p.EstimatedMonthlySpend, 1)
		return perDollar * pointsPerUnit
	}
}

// targetingPrecision treats spend magnitude as a proxy for targeting
// sophistication.
func targetingPrecision(p *model.Prospect, _ time.Time) float64 {
	s := p.EstimatedMonthlySpend
	switch {
	case s >= 10000:
		return 25
	case s >= 5000:
		return 20
	case s >= 2500:
		return 15
	case s >= 1000:
		return 10
	case s > 0:
		return 5
	default:
		return 0
	}
}

// creativeGap scores how long a prospect has run ads since first seen.
func creativeGap(p *model.Prospect, now time.Time) float64 {
	if p.FirstSeen.IsZero() || now.Before(p.FirstSeen) {
		return 0
	}
	days := now.Sub(p.FirstSeen).Hours() / 24
	switch {
	case days >= 180:
		return 20
	case days >= 90:
		return 15
	case days >= 60:
		return 10
	case days >= 30:
		return 5
	default:
		return 0
	}
}

// crossPlatform scores uncoordinated presence on several ad platforms.
func crossPlatform(p *model.Prospect, _ time.Time) float64 {
	switch n := p.PlatformCount(); {
	case n >= 4:
		return 15
	case n == 3:
		return 12
	case n == 2:
		return 8
	case n == 1:
		return 3
	default:
		return 0
	}
}

func competitorOverlap(rules []OverlapRule, baseline float64) Func {
	return func(p *model.Prospect, _ time.Time) float64 {
		for _, r := range rules {
			if p.Vertical == r.Vertical && p.EstimatedMonthlySpend > r.MinSpend {
				return r.Points
			}
		}
		return baseline
	}
}

// creativeStagnation rises as creative diversity falls. High diversity is
// sophisticated marketing and scores near zero here.
func creativeStagnation(p *model.Prospect, _ time.Time) float64 {
	if p.AdCount() < 1 {
		return 0
	}
	d := math.Max(0, math.Min(1, p.CreativeDiversity))
	return (1 - d) * 10
}
