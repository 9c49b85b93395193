// Package batch runs the filter, scorer, and leak estimator over a set of
// prospects and summarizes the outcomes.
package batch

import (
	"context"
	"math"
	"strings"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/icp"
	"github.com/sells-group/adlead-cli/internal/leak"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/prefilter"
	"github.com/sells-group/adlead-cli/internal/scorer"
	"github.com/sells-group/adlead-cli/internal/signal"
	"github.com/sells-group/adlead-cli/internal/vertical"
)

// AutoProfile selects the best-matching profile for each prospect.
const AutoProfile = "auto"

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 5

// Record-level data error reasons.
const (
	ReasonMissingCompanyName = "missing_company_name"
	ReasonInvalidSpend       = "invalid_spend"
	ReasonInvalidDiversity   = "invalid_creative_diversity"
	ReasonInvalidAdVolume    = "invalid_ad_volume"
	ReasonInvalidMetrics     = "invalid_metrics"
)

// Deps are the read-only collaborators a Runner shares across workers.
type Deps struct {
	Filter    *prefilter.Filter
	Profiles  *icp.Set
	Registry  *signal.Registry
	Estimator *leak.Estimator
	Clock     signal.Clock
}

// Options tune a run.
type Options struct {
	// Profile names the ICP to score against. Empty selects the set's
	// default; AutoProfile matches per prospect.
	Profile     string
	Concurrency int
	EstimateAll bool
}

// Runner scores batches of prospects. It is safe to reuse across runs.
type Runner struct {
	deps    Deps
	opts    Options
	fixed   *scorer.Scorer
	scorers map[string]*scorer.Scorer
}

// New validates the configuration once and prepares scorers. Any problem
// is a *config.ValidationError and no record should be processed.
func New(deps Deps, opts Options) (*Runner, error) {
	var problems []string
	if deps.Filter == nil {
		problems = append(problems, "filter is required")
	}
	if deps.Profiles == nil {
		problems = append(problems, "ICP profiles are required")
	}
	if deps.Registry == nil {
		problems = append(problems, "signal registry is required")
	}
	if len(problems) > 0 {
		return nil, &config.ValidationError{Source: "batch", Problems: problems}
	}
	if deps.Estimator == nil {
		deps.Estimator = leak.NewEstimator(leak.DefaultTable(), leak.DefaultCorrection)
	}
	if deps.Clock == nil {
		deps.Clock = signal.SystemClock{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}

	r := &Runner{deps: deps, opts: opts, scorers: make(map[string]*scorer.Scorer)}
	for _, name := range deps.Profiles.Names() {
		prof, _ := deps.Profiles.Get(name)
		s, err := scorer.New(prof, deps.Registry)
		if err != nil {
			return nil, err
		}
		r.scorers[name] = s
	}

	switch opts.Profile {
	case AutoProfile:
	case "":
		r.fixed = r.scorers[deps.Profiles.Default().Name]
	default:
		s, ok := r.scorers[opts.Profile]
		if !ok {
			return nil, &config.ValidationError{
				Source:   "batch",
				Problems: []string{"unknown profile " + opts.Profile + " (have " + strings.Join(deps.Profiles.Names(), ", ") + ")"},
			}
		}
		r.fixed = s
	}
	return r, nil
}

// ConfigFailure is the summary of a run that was aborted by a
// configuration error before any record was processed.
func ConfigFailure(total int) model.RunSummary {
	return model.RunSummary{Total: total, ConfigErrors: 1}
}

// Run processes prospects with bounded concurrency. Outcomes keep input
// order. "Now" is read from the clock once for the whole batch. Record
// errors never abort the run; only context cancellation does.
func (r *Runner) Run(ctx context.Context, prospects []model.Prospect) ([]model.Outcome, model.RunSummary, error) {
	now := r.deps.Clock.Now()
	outcomes := make([]model.Outcome, len(prospects))

	log := zap.L().With(zap.Int("prospects", len(prospects)), zap.String("profile", r.opts.Profile))
	log.Info("batch: starting", zap.Int("concurrency", r.opts.Concurrency))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	var processed atomic.Int64
	for i := range prospects {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			outcomes[i] = r.Process(prospects[i], now)
			processed.Add(1)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Warn("batch: interrupted", zap.Int64("processed", processed.Load()), zap.Error(err))
		return nil, model.RunSummary{}, eris.Wrap(err, "batch: run")
	}

	sum := Summarize(outcomes)
	log.Info("batch: complete",
		zap.Int("qualified", sum.Qualified),
		zap.Int("filtered_out", sum.FilteredOut),
		zap.Int("scored_unqualified", sum.ScoredUnqualified),
		zap.Int("data_errors", sum.DataErrors),
	)
	return outcomes, sum, nil
}

// Process runs one prospect through validation, the filter, the scorer and,
// when warranted, the estimator. The input is copied, never modified.
func (r *Runner) Process(p model.Prospect, now time.Time) model.Outcome {
	out := model.Outcome{Prospect: p}
	log := zap.L().With(zap.String("domain", p.Domain), zap.String("company", p.CompanyName))

	if reason := validateRecord(&out.Prospect); reason != "" {
		out.Stage = model.StageDataError
		out.Reason = reason
		log.Warn("batch: invalid record", zap.String("reason", reason))
		return out
	}

	if pass, reason := r.deps.Filter.Check(&out.Prospect); !pass {
		out.Stage = model.StageFiltered
		out.Reason = reason
		log.Debug("batch: filtered", zap.String("reason", reason))
		return out
	}

	pr := &out.Prospect
	pr.Domain = model.CanonicalDomain(pr.Domain)
	pr.PlatformsActive = model.NormalizePlatforms(pr.PlatformsActive)
	if pr.Vertical == "" {
		pr.Vertical = vertical.Classify(pr.CompanyName, pr.Title, pr.Snippet, pr.Description)
	}

	s := r.scorerFor(pr)
	res := s.Score(pr, now)
	out.Stage = model.StageScored
	out.Result = &res
	out.Reason = res.Reason

	if res.Qualified || r.opts.EstimateAll {
		est := r.deps.Estimator.EstimateProspect(pr)
		out.Leak = &est
	}

	if res.Qualified {
		log.Info("batch: qualified",
			zap.String("icp", res.ICP),
			zap.Float64("score", res.Score),
			zap.String("tier", string(res.Tier)),
		)
	} else {
		log.Debug("batch: not qualified", zap.Float64("score", res.Score), zap.String("reason", res.Reason))
	}
	return out
}

func (r *Runner) scorerFor(p *model.Prospect) *scorer.Scorer {
	if r.fixed != nil {
		return r.fixed
	}
	return r.scorers[r.deps.Profiles.Match(p).Name]
}

// validateRecord returns a data error reason, or "" when the record is
// well formed. Missing domain and ad volume are filter failures, not data
// errors.
func validateRecord(p *model.Prospect) string {
	switch {
	case strings.TrimSpace(p.CompanyName) == "":
		return ReasonMissingCompanyName
	case badNumber(p.EstimatedMonthlySpend):
		return ReasonInvalidSpend
	case math.IsNaN(p.CreativeDiversity) || p.CreativeDiversity < 0 || p.CreativeDiversity > 1:
		return ReasonInvalidDiversity
	case p.AdVolume != nil && *p.AdVolume < 0:
		return ReasonInvalidAdVolume
	case badNumber(p.MonthlyImpressions), badNumber(p.MonthlyClicks), badNumber(p.MonthlyConversions):
		return ReasonInvalidMetrics
	}
	return ""
}

func badNumber(v float64) bool {
	return v < 0 || math.IsNaN(v) || math.IsInf(v, 0)
}

// Summarize counts outcomes by stage, filter reason and tier.
func Summarize(outcomes []model.Outcome) model.RunSummary {
	sum := model.RunSummary{
		Total:         len(outcomes),
		FilterReasons: make(map[string]int),
		Tiers:         make(map[model.Tier]int),
	}
	for i := range outcomes {
		o := &outcomes[i]
		switch o.Stage {
		case model.StageDataError:
			sum.DataErrors++
		case model.StageFiltered:
			sum.FilteredOut++
			sum.FilterReasons[o.Reason]++
		case model.StageScored:
			sum.Tiers[o.Result.Tier]++
			if o.Result.Qualified {
				sum.Qualified++
			} else {
				sum.ScoredUnqualified++
			}
		}
	}
	return sum
}
