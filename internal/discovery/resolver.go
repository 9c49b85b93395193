package discovery

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/pkg/searchapi"
)

// SearchResolver resolves advertiser domains with a Google web search,
// skipping social networks, marketplaces and directories.
type SearchResolver struct {
	client  searchapi.Client
	exclude []string
}

// NewSearchResolver creates a resolver that never returns any of the
// excluded domains or their subdomains.
func NewSearchResolver(c searchapi.Client, exclude []string) *SearchResolver {
	ex := make([]string, 0, len(exclude))
	for _, d := range exclude {
		if d = model.CanonicalDomain(d); d != "" {
			ex = append(ex, d)
		}
	}
	return &SearchResolver{client: c, exclude: ex}
}

// Resolve returns the first acceptable organic result's domain, or "" when
// none qualifies.
func (r *SearchResolver) Resolve(ctx context.Context, advertiser, region string) (string, error) {
	opts := []searchapi.SearchOption{searchapi.WithNum(5)}
	if region != "" {
		opts = append(opts, searchapi.WithCountry(strings.ToLower(region)))
	}

	resp, err := r.client.Search(ctx, advertiser, opts...)
	if err != nil {
		return "", eris.Wrapf(err, "discovery: resolve %q", advertiser)
	}
	for _, res := range resp.Organic {
		link := res.Link
		if link == "" {
			link = res.Domain
		}
		domain := model.CanonicalDomain(link)
		if domain != "" && !r.excluded(domain) {
			return domain, nil
		}
	}
	return "", nil
}

func (r *SearchResolver) excluded(domain string) bool {
	for _, ex := range r.exclude {
		if domain == ex || strings.HasSuffix(domain, "."+ex) {
			return true
		}
	}
	return false
}
