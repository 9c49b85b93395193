package discovery

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/signal"
)

const defaultConcurrency = 5

// Discoverer runs queries against one source and aggregates the results.
type Discoverer struct {
	source      Source
	resolver    Resolver
	spend       SpendModel
	region      string
	lookback    int
	concurrency int
	clock       signal.Clock
}

// Option configures a Discoverer.
type Option func(*Discoverer)

// WithResolver enables domain resolution for advertisers without one.
func WithResolver(r Resolver) Option {
	return func(d *Discoverer) { d.resolver = r }
}

// WithClock freezes the time used for the lookback window.
func WithClock(c signal.Clock) Option {
	return func(d *Discoverer) { d.clock = c }
}

// New creates a Discoverer for src from the discovery config section.
func New(src Source, cfg config.DiscoveryConfig, opts ...Option) *Discoverer {
	d := &Discoverer{
		source:      src,
		spend:       SpendModel(cfg.PerAdMonthlySpend),
		region:      cfg.Region,
		lookback:    cfg.LookbackDays,
		concurrency: cfg.Concurrency,
		clock:       signal.SystemClock{},
	}
	if d.concurrency <= 0 {
		d.concurrency = defaultConcurrency
	}
	if d.spend == nil {
		d.spend = SpendModel{}
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Discover fetches every query concurrently, aggregates the ads into
// prospects and resolves missing domains. A failing query is logged and
// skipped; Discover fails only when every query failed.
func (d *Discoverer) Discover(ctx context.Context, queries []string) ([]model.Prospect, Stats, error) {
	log := zap.L().With(zap.String("source", string(d.source.Name())))
	stats := Stats{Queries: len(queries)}
	if len(queries) == 0 {
		return nil, stats, eris.New("discovery: at least one query is required")
	}

	now := d.clock.Now()
	req := Request{Queries: queries, Region: d.region, Since: Since(now, d.lookback), Until: now}

	var (
		mu     sync.Mutex
		ads    []Ad
		failed atomic.Int32
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for _, q := range queries {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			got, err := d.source.Fetch(gctx, q, req)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				failed.Add(1)
				log.Warn("discovery query failed", zap.String("query", q), zap.Error(err))
				return nil
			}
			log.Info("discovery query complete", zap.String("query", q), zap.Int("ads", len(got)))
			mu.Lock()
			ads = append(ads, got...)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, stats, eris.Wrap(err, "discovery: fetch")
	}

	stats.FailedQuery = int(failed.Load())
	if stats.FailedQuery == len(queries) {
		return nil, stats, eris.Errorf("discovery: all %d queries failed", len(queries))
	}
	stats.Ads = len(ads)

	prospects := Aggregate(ads, d.source.Name(), d.spend)
	if d.resolver != nil {
		resolved, unresolved, err := d.resolveDomains(ctx, prospects)
		if err != nil {
			return nil, stats, err
		}
		stats.Resolved, stats.Unresolved = resolved, unresolved
	}
	stats.Prospects = len(prospects)

	log.Info("discovery complete",
		zap.Int("queries", stats.Queries),
		zap.Int("failed_queries", stats.FailedQuery),
		zap.Int("ads", stats.Ads),
		zap.Int("prospects", stats.Prospects),
	)
	return prospects, stats, nil
}

// resolveDomains fills Domain in place for prospects that lack one.
// Prospects that stay unresolved keep an empty domain and are dropped by
// the prospect filter later.
func (d *Discoverer) resolveDomains(ctx context.Context, prospects []model.Prospect) (int, int, error) {
	var resolved, unresolved atomic.Int32

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i := range prospects {
		if prospects[i].Domain != "" || prospects[i].CompanyName == "" {
			continue
		}
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			p := &prospects[i]
			domain, err := d.resolver.Resolve(gctx, p.CompanyName, d.region)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				zap.L().Warn("domain resolution failed", zap.String("company", p.CompanyName), zap.Error(err))
			}
			if domain == "" {
				unresolved.Add(1)
				return nil
			}
			p.Domain = domain
			resolved.Add(1)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, 0, eris.Wrap(err, "discovery: resolve domains")
	}
	return int(resolved.Load()), int(unresolved.Load()), nil
}

// Since returns the start of the lookback window relative to now.
func Since(now time.Time, lookbackDays int) time.Time {
	if lookbackDays <= 0 {
		return time.Time{}
	}
	return now.AddDate(0, 0, -lookbackDays)
}
