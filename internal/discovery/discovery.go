// Package discovery turns ad-transparency observations into prospects.
//
// A Source fetches raw ads for a query. The Discoverer fans queries out to
// the source, groups ads by advertiser domain, derives ad volume, creative
// diversity, platforms and estimated spend, and optionally resolves missing
// domains through a Resolver.
package discovery

import (
	"context"
	"time"

	"github.com/sells-group/adlead-cli/internal/model"
)

// Ad is one observed creative, normalized across sources.
type Ad struct {
	ID         string
	Advertiser string
	// Domain is the landing domain if the source reports one.
	Domain    string
	Text      string
	Format    string
	Platforms []string
	// Channel keys the per-ad spend table: google, youtube or meta.
	Channel   string
	FirstSeen time.Time
	LastSeen  time.Time
	// SpendHint is a source-reported monthly spend for this ad, if any.
	SpendHint float64
}

// Request scopes one discovery run.
type Request struct {
	Queries  []string
	Region   string
	Since    time.Time
	Until    time.Time
	MaxPages int
}

// Source fetches ads for a single query.
type Source interface {
	Name() model.Source
	Fetch(ctx context.Context, query string, req Request) ([]Ad, error)
}

// Resolver finds the website domain of an advertiser by name.
type Resolver interface {
	Resolve(ctx context.Context, advertiser, region string) (string, error)
}

// Stats describes what a discovery run saw.
type Stats struct {
	Queries     int `json:"queries"`
	FailedQuery int `json:"failed_queries"`
	Ads         int `json:"ads"`
	Prospects   int `json:"prospects"`
	Resolved    int `json:"domains_resolved"`
	Unresolved  int `json:"domains_unresolved"`
}
