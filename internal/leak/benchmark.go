// Package leak estimates how much of a prospect's monthly ad spend is wasted
// relative to industry benchmarks.
package leak

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/vertical"
)

// Range is a benchmark band. Rates (CTR, conversion rate) are fractions.
type Range struct {
	Min float64 `yaml:"min" json:"min"`
	Max float64 `yaml:"max" json:"max"`
}

// Mid returns the midpoint of the band.
func (r Range) Mid() float64 { return (r.Min + r.Max) / 2 }

// Benchmark holds the reference metrics for one industry.
type Benchmark struct {
	CPC            Range              `yaml:"cpc" json:"cpc"`
	CTR            Range              `yaml:"ctr" json:"ctr"`
	ConversionRate Range              `yaml:"conversion_rate" json:"conversion_rate"`
	CPM            Range              `yaml:"cpm" json:"cpm"`
	BounceRate     float64            `yaml:"bounce_rate" json:"bounce_rate"`
	PlatformCPM    map[string]float64 `yaml:"platform_cpm,omitempty" json:"platform_cpm,omitempty"`
}

// Match describes how an industry key resolved against the table.
type Match int

const (
	MatchDefault Match = iota
	MatchAlias
	MatchExact
)

// Table maps industries to benchmarks. It is read-only after construction
// and safe to share across goroutines.
type Table struct {
	Industries map[string]Benchmark `yaml:"industries"`
	Aliases    map[string]string    `yaml:"aliases"`
	Default    Benchmark            `yaml:"default"`
}

// NormalizeKey folds an industry name into table key form: lowercase,
// accent-free, words joined by underscores.
func NormalizeKey(s string) string {
	s = vertical.Fold(strings.TrimSpace(s))
	return strings.Join(strings.FieldsFunc(s, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '/'
	}), "_")
}

// Resolve looks up the benchmark for an industry. Unknown industries get
// the default benchmark; the key returned is then "default".
func (t *Table) Resolve(industry string) (Benchmark, string, Match) {
	key := NormalizeKey(industry)
	if b, ok := t.Industries[key]; ok && key != "" {
		return b, key, MatchExact
	}
	if target, ok := t.Aliases[key]; ok {
		if b, ok := t.Industries[target]; ok {
			return b, target, MatchAlias
		}
	}
	return t.Default, "default", MatchDefault
}

// Keys returns the industry keys in sorted order.
func (t *Table) Keys() []string {
	keys := make([]string, 0, len(t.Industries))
	for k := range t.Industries {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

// Validate checks every benchmark band and alias target.
func (t *Table) Validate() error {
	var errs []string
	if len(t.Industries) == 0 {
		errs = append(errs, "at least one industry is required")
	}
	for _, k := range t.Keys() {
		errs = append(errs, validateBenchmark(k, t.Industries[k])...)
	}
	errs = append(errs, validateBenchmark("default", t.Default)...)
	for alias, target := range t.Aliases {
		if _, ok := t.Industries[target]; !ok {
			errs = append(errs, fmt.Sprintf("alias %q points at unknown industry %q", alias, target))
		}
	}
	if len(errs) > 0 {
		slices.Sort(errs)
		return &config.ValidationError{Source: "benchmarks", Problems: errs}
	}
	return nil
}

func validateBenchmark(name string, b Benchmark) []string {
	var errs []string
	check := func(field string, r Range, maxVal float64) {
		if r.Min < 0 || r.Max < r.Min || r.Max > maxVal || r.Mid() <= 0 {
			errs = append(errs, fmt.Sprintf("%s: %s range [%g, %g] is invalid", name, field, r.Min, r.Max))
		}
	}
	unbounded := float64(1 << 30)
	check("cpc", b.CPC, unbounded)
	check("cpm", b.CPM, unbounded)
	check("ctr", b.CTR, 1)
	check("conversion_rate", b.ConversionRate, 1)
	if b.BounceRate < 0 || b.BounceRate > 1 {
		errs = append(errs, fmt.Sprintf("%s: bounce_rate %g must be in [0, 1]", name, b.BounceRate))
	}
	for platform, cpm := range b.PlatformCPM {
		if cpm <= 0 {
			errs = append(errs, fmt.Sprintf("%s: platform_cpm %s must be > 0", name, platform))
		}
	}
	return errs
}

// LoadTable reads a benchmark table from YAML.
//
// A missing file (or an empty path) falls back to the built-in table. A file
// that exists but cannot be parsed or validated is a *config.ValidationError.
// Aliases and industries not present in the file are not merged from the
// built-in table.
func LoadTable(path string) (*Table, error) {
	if path == "" {
		return DefaultTable(), nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Info("leak: benchmark file not found, using built-in table", zap.String("path", path))
		return DefaultTable(), nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "leak: read %s", path)
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var t Table
	if err := dec.Decode(&t); err != nil {
		zap.L().Error("leak: malformed benchmark file", zap.String("path", path), zap.Error(err))
		return nil, &config.ValidationError{Source: path, Problems: []string{err.Error()}}
	}
	t.normalize()
	if err := t.Validate(); err != nil {
		zap.L().Error("leak: invalid benchmark file", zap.String("path", path), zap.Error(err))
		return nil, err
	}

	zap.L().Info("leak: loaded benchmarks", zap.String("path", path), zap.Int("industries", len(t.Industries)))
	return &t, nil
}

// normalize rewrites keys and alias targets into NormalizeKey form.
func (t *Table) normalize() {
	inds := make(map[string]Benchmark, len(t.Industries))
	for k, b := range t.Industries {
		inds[NormalizeKey(k)] = b
	}
	t.Industries = inds
	aliases := make(map[string]string, len(t.Aliases))
	for a, target := range t.Aliases {
		aliases[NormalizeKey(a)] = NormalizeKey(target)
	}
	t.Aliases = aliases
}

// DefaultTable returns the built-in benchmark table.
func DefaultTable() *Table {
	return &Table{
		Industries: map[string]Benchmark{
			"dental": {
				CPC: Range{3.5, 6.5}, CTR: Range{0.03, 0.06}, ConversionRate: Range{0.04, 0.09},
				CPM: Range{15, 35}, BounceRate: 0.45,
				PlatformCPM: map[string]float64{"google": 30, "meta": 14, "youtube": 12},
			},
			"aesthetic": {
				CPC: Range{2.5, 5.5}, CTR: Range{0.025, 0.05}, ConversionRate: Range{0.03, 0.07},
				CPM: Range{12, 30}, BounceRate: 0.5,
				PlatformCPM: map[string]float64{"google": 26, "meta": 12, "youtube": 10},
			},
			"legal": {
				CPC: Range{6, 12}, CTR: Range{0.02, 0.045}, ConversionRate: Range{0.03, 0.07},
				CPM: Range{25, 55}, BounceRate: 0.5,
				PlatformCPM: map[string]float64{"google": 48, "meta": 18},
			},
			"home_services": {
				CPC: Range{3, 7}, CTR: Range{0.03, 0.06}, ConversionRate: Range{0.05, 0.1},
				CPM: Range{12, 28}, BounceRate: 0.42,
				PlatformCPM: map[string]float64{"google": 24, "meta": 11},
			},
			"real_estate": {
				CPC: Range{1.5, 3.5}, CTR: Range{0.02, 0.04}, ConversionRate: Range{0.02, 0.05},
				CPM: Range{10, 22}, BounceRate: 0.55,
				PlatformCPM: map[string]float64{"google": 18, "meta": 9},
			},
			"fitness": {
				CPC: Range{1.2, 3}, CTR: Range{0.025, 0.05}, ConversionRate: Range{0.04, 0.08},
				CPM: Range{8, 18}, BounceRate: 0.5,
				PlatformCPM: map[string]float64{"google": 15, "meta": 8},
			},
			"restaurant": {
				CPC: Range{0.8, 2}, CTR: Range{0.03, 0.06}, ConversionRate: Range{0.03, 0.06},
				CPM: Range{6, 14}, BounceRate: 0.48,
				PlatformCPM: map[string]float64{"google": 11, "meta": 7},
			},
			"automotive": {
				CPC: Range{1.5, 3}, CTR: Range{0.03, 0.055}, ConversionRate: Range{0.03, 0.07},
				CPM: Range{10, 24}, BounceRate: 0.47,
				PlatformCPM: map[string]float64{"google": 20, "meta": 10},
			},
			"healthcare": {
				CPC: Range{2.5, 5}, CTR: Range{0.025, 0.05}, ConversionRate: Range{0.03, 0.07},
				CPM: Range{14, 32}, BounceRate: 0.48,
				PlatformCPM: map[string]float64{"google": 28, "meta": 13},
			},
		},
		Aliases: map[string]string{
			"dentist":          "dental",
			"dentistry":        "dental",
			"dental_clinic":    "dental",
			"orthodontist":     "dental",
			"orthodontics":     "dental",
			"medspa":           "aesthetic",
			"med_spa":          "aesthetic",
			"aesthetics":       "aesthetic",
			"cosmetic":         "aesthetic",
			"cosmetic_surgery": "aesthetic",
			"lawyer":           "legal",
			"law_firm":         "legal",
			"attorney":         "legal",
			"plumber":          "home_services",
			"plumbing":         "home_services",
			"hvac":             "home_services",
			"roofing":          "home_services",
			"contractor":       "home_services",
			"realtor":          "real_estate",
			"realty":           "real_estate",
			"gym":              "fitness",
			"yoga":             "fitness",
			"cafe":             "restaurant",
			"restaurants":      "restaurant",
			"auto":             "automotive",
			"dealership":       "automotive",
			"clinic":           "healthcare",
			"medical":          "healthcare",
			"chiropractor":     "healthcare",
		},
		Default: Benchmark{
			CPC: Range{2, 5}, CTR: Range{0.02, 0.05}, ConversionRate: Range{0.03, 0.07},
			CPM: Range{10, 30}, BounceRate: 0.5,
		},
	}
}
