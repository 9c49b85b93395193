package main

import (
	"context"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/batch"
	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/discovery"
	"github.com/sells-group/adlead-cli/internal/icp"
	"github.com/sells-group/adlead-cli/internal/leak"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/prefilter"
	"github.com/sells-group/adlead-cli/internal/resilience"
	"github.com/sells-group/adlead-cli/internal/signal"
	"github.com/sells-group/adlead-cli/internal/store"
	"github.com/sells-group/adlead-cli/pkg/metaads"
	"github.com/sells-group/adlead-cli/pkg/notion"
	"github.com/sells-group/adlead-cli/pkg/salesforce"
	"github.com/sells-group/adlead-cli/pkg/searchapi"
)

// signalConfig maps the scoring section onto extractor constants.
func signalConfig(sc config.ScoringConfig) signal.Config {
	out := signal.Config{
		ImpressionPoints: sc.ImpressionPoints,
		OverlapBaseline:  sc.OverlapBaseline,
	}
	for _, r := range sc.OverlapRules {
		out.OverlapRules = append(out.OverlapRules, signal.OverlapRule{
			Vertical: model.Vertical(r.Vertical),
			MinSpend: r.MinSpend,
			Points:   r.Points,
		})
	}
	return out
}

// buildScoringDeps loads the ICP profiles, the benchmark table and the
// filter. Any problem is a *config.ValidationError.
func buildScoringDeps(c *config.Config) (batch.Deps, error) {
	reg := signal.NewRegistry(signalConfig(c.Scoring))

	profiles, err := icp.Load(c.Scoring.ICPPath, reg)
	if err != nil {
		return batch.Deps{}, err
	}
	table, err := leak.LoadTable(c.Scoring.BenchmarkPath)
	if err != nil {
		return batch.Deps{}, err
	}
	filter, err := prefilter.New(c.Filter)
	if err != nil {
		return batch.Deps{}, err
	}

	zap.L().Debug("scoring deps ready",
		zap.Strings("profiles", profiles.Names()),
		zap.Strings("benchmarks", table.Keys()),
	)
	return batch.Deps{
		Filter:    filter,
		Profiles:  profiles,
		Registry:  reg,
		Estimator: leak.NewEstimator(table, c.Scoring.LeakCorrection),
		Clock:     signal.SystemClock{},
	}, nil
}

// newRunner builds a batch runner for the given profile override.
func newRunner(c *config.Config, profile string) (*batch.Runner, batch.Deps, error) {
	deps, err := buildScoringDeps(c)
	if err != nil {
		return nil, batch.Deps{}, err
	}
	if profile == "" {
		profile = c.Scoring.Profile
	}
	r, err := batch.New(deps, batch.Options{
		Profile:     profile,
		Concurrency: c.Batch.MaxConcurrent,
		EstimateAll: c.Scoring.EstimateAll,
	})
	return r, deps, err
}

func initStore(ctx context.Context) (store.Store, error) {
	st, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "open store")
	}
	return st, nil
}

func httpTimeout(secs int) *http.Client {
	if secs <= 0 {
		secs = 20
	}
	return &http.Client{Timeout: time.Duration(secs) * time.Second}
}

func newSearchAPIClient(c *config.Config, op string) searchapi.Client {
	return searchapi.NewClient(c.SearchAPI.Key,
		searchapi.WithBaseURL(c.SearchAPI.BaseURL),
		searchapi.WithRateLimit(c.SearchAPI.RateLimit),
		searchapi.WithHTTPClient(httpTimeout(c.SearchAPI.TimeoutSecs)),
		searchapi.WithRetryPolicy(resilience.PolicyFrom(c.Retry).Logged("searchapi", op)),
	)
}

func newMetaClient(c *config.Config) metaads.Client {
	return metaads.NewClient(c.Meta.AccessToken,
		metaads.WithBaseURL(c.Meta.BaseURL),
		metaads.WithRateLimit(c.Meta.RateLimit),
		metaads.WithHTTPClient(httpTimeout(c.Meta.TimeoutSecs)),
		metaads.WithRetryPolicy(resilience.PolicyFrom(c.Retry).Logged("meta", "ads_archive")),
	)
}

// newDiscoverer wires the named ad source. The returned close func is
// never nil.
func newDiscoverer(ctx context.Context, c *config.Config, source model.Source) (*discovery.Discoverer, func() error, error) {
	noop := func() error { return nil }

	var (
		src     discovery.Source
		closeFn = noop
	)
	switch source {
	case model.SourceSearchAPI:
		if err := c.Validate("searchapi"); err != nil {
			return nil, noop, err
		}
		src = discovery.NewSearchAPISource(newSearchAPIClient(c, "ads_transparency"))
	case model.SourceMetaAds:
		if err := c.Validate("meta"); err != nil {
			return nil, noop, err
		}
		src = discovery.NewMetaSource(newMetaClient(c))
	case model.SourceBigQueryAds:
		if err := c.Validate("bigquery"); err != nil {
			return nil, noop, err
		}
		bq, err := discovery.NewBigQuerySource(ctx, c.BigQuery)
		if err != nil {
			return nil, noop, err
		}
		src, closeFn = bq, bq.Close
	default:
		return nil, noop, eris.Errorf("unsupported source %q", source)
	}

	var opts []discovery.Option
	switch {
	case !c.Discovery.ResolveDomains:
	case c.SearchAPI.Key == "":
		zap.L().Warn("domain resolution needs ADLEAD_SEARCHAPI_KEY, advertisers without a domain will be filtered")
	default:
		opts = append(opts, discovery.WithResolver(
			discovery.NewSearchResolver(newSearchAPIClient(c, "google_search"), c.Filter.PlatformDomains),
		))
	}
	return discovery.New(src, c.Discovery, opts...), closeFn, nil
}

// exportOutcomes sends qualified outcomes to the named outreach sink.
func exportOutcomes(ctx context.Context, c *config.Config, target string, outcomes []model.Outcome) (any, error) {
	switch target {
	case "notion":
		if err := c.Validate("notion"); err != nil {
			return nil, err
		}
		client := notion.NewClient(c.Notion.Token, notion.WithRateLimit(3))
		return notion.ExportLeads(ctx, client, c.Notion.LeadDB, outcomes)
	case "salesforce":
		if err := c.Validate("salesforce"); err != nil {
			return nil, err
		}
		client, err := salesforce.Connect(c.Salesforce, salesforce.WithRateLimit(5))
		if err != nil {
			return nil, err
		}
		return salesforce.ExportLeads(ctx, client, c.Salesforce.LeadSource, outcomes)
	default:
		return nil, eris.Errorf("unsupported export target %q (want notion or salesforce)", target)
	}
}
