package discovery

import (
	"context"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/pkg/metaads"
	"github.com/sells-group/adlead-cli/pkg/searchapi"
)

// SearchAPISource reads creatives from the Google Ads Transparency engine.
type SearchAPISource struct {
	client searchapi.Client
}

// NewSearchAPISource wraps a SearchAPI client.
func NewSearchAPISource(c searchapi.Client) *SearchAPISource {
	return &SearchAPISource{client: c}
}

func (s *SearchAPISource) Name() model.Source { return model.SourceSearchAPI }

func (s *SearchAPISource) Fetch(ctx context.Context, query string, req Request) ([]Ad, error) {
	q := searchapi.AdsQuery{
		Query:    query,
		Region:   req.Region,
		MaxPages: req.MaxPages,
	}
	if !req.Since.IsZero() {
		until := req.Until
		if until.IsZero() {
			until = time.Now().UTC()
		}
		q.TimePeriod = req.Since.Format("2006-01-02") + ".." + until.Format("2006-01-02")
	}

	creatives, err := s.client.AllCreatives(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: searchapi %q", query)
	}

	ads := make([]Ad, 0, len(creatives))
	for _, c := range creatives {
		platforms := c.Platforms
		if len(platforms) == 0 {
			platforms = []string{ChannelGoogle}
		}
		ads = append(ads, Ad{
			ID:         c.ID,
			Advertiser: c.Advertiser.Name,
			Domain:     c.Target,
			Format:     c.Format,
			Platforms:  platforms,
			Channel:    googleChannel(c.Format, platforms),
			FirstSeen:  c.FirstSeen(),
			LastSeen:   c.LastSeen(),
		})
	}
	return ads, nil
}

// googleChannel maps a Google creative onto a spend channel.
func googleChannel(format string, platforms []string) string {
	if strings.EqualFold(format, "video") {
		return ChannelYouTube
	}
	for _, p := range platforms {
		if strings.Contains(strings.ToLower(p), "youtube") {
			return ChannelYouTube
		}
	}
	return ChannelGoogle
}

// MetaSource reads ads from the Meta Ad Library.
type MetaSource struct {
	client metaads.Client
}

// NewMetaSource wraps an Ad Library client.
func NewMetaSource(c metaads.Client) *MetaSource {
	return &MetaSource{client: c}
}

func (s *MetaSource) Name() model.Source { return model.SourceMetaAds }

func (s *MetaSource) Fetch(ctx context.Context, query string, req Request) ([]Ad, error) {
	q := metaads.Query{
		SearchTerms:    query,
		Countries:      []string{strings.ToUpper(req.Region)},
		DeliveredSince: req.Since,
		MaxPages:       req.MaxPages,
	}

	raw, err := s.client.AllAds(ctx, q)
	if err != nil {
		return nil, eris.Wrapf(err, "discovery: meta %q", query)
	}

	ads := make([]Ad, 0, len(raw))
	for _, a := range raw {
		ad := Ad{
			ID:         a.ID,
			Advertiser: a.PageName,
			Domain:     a.Domain(),
			Text:       a.Text(),
			Platforms:  a.Platforms,
			Channel:    ChannelMeta,
			FirstSeen:  a.Started(),
		}
		if len(ad.Platforms) == 0 {
			ad.Platforms = []string{"facebook"}
		}
		if mid, ok := a.Spend.Mid(); ok {
			ad.SpendHint = mid
		}
		ads = append(ads, ad)
	}
	return ads, nil
}
