package discovery

import (
	"cmp"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/vertical"
)

// Channels used as spend table keys.
const (
	ChannelGoogle  = "google"
	ChannelYouTube = "youtube"
	ChannelMeta    = "meta"
	channelDefault = "default"
)

// SpendModel maps a channel to the assumed monthly spend of one active ad.
type SpendModel map[string]float64

// PerAd returns the per-ad monthly spend for channel, falling back to the
// "default" entry.
func (m SpendModel) PerAd(channel string) float64 {
	if v, ok := m[channel]; ok && v > 0 {
		return v
	}
	return m[channelDefault]
}

// group accumulates ads that belong to one advertiser.
type group struct {
	domain    string
	ids       map[string]struct{}
	creatives map[string]struct{}
	adverts   map[string]int
	platforms []string
	texts     []string
	spend     float64
	firstSeen time.Time
	lastSeen  time.Time
}

// Aggregate groups ads by canonical domain, or by folded advertiser name
// when the domain is unknown, and builds one prospect per group.
// Duplicate ad IDs are counted once.
func Aggregate(ads []Ad, source model.Source, spend SpendModel) []model.Prospect {
	groups := make(map[string]*group)
	var order []string

	for _, ad := range ads {
		domain := model.CanonicalDomain(ad.Domain)
		key := domain
		if key == "" {
			key = "name:" + vertical.Fold(strings.TrimSpace(ad.Advertiser))
			if key == "name:" {
				continue
			}
		}

		g, ok := groups[key]
		if !ok {
			g = &group{
				domain:    domain,
				ids:       make(map[string]struct{}),
				creatives: make(map[string]struct{}),
				adverts:   make(map[string]int),
			}
			groups[key] = g
			order = append(order, key)
		}

		id := ad.ID
		if id == "" {
			id = fingerprint(ad)
		}
		if _, dup := g.ids[id]; dup {
			continue
		}
		g.ids[id] = struct{}{}
		g.creatives[fingerprint(ad)] = struct{}{}

		if name := strings.TrimSpace(ad.Advertiser); name != "" {
			g.adverts[name]++
		}
		g.platforms = append(g.platforms, ad.Platforms...)
		if ad.Text != "" {
			g.texts = append(g.texts, ad.Text)
		}

		if ad.SpendHint > 0 {
			g.spend += ad.SpendHint
		} else {
			g.spend += spend.PerAd(ad.Channel)
		}

		if !ad.FirstSeen.IsZero() && (g.firstSeen.IsZero() || ad.FirstSeen.Before(g.firstSeen)) {
			g.firstSeen = ad.FirstSeen
		}
		seen := ad.LastSeen
		if seen.IsZero() {
			seen = ad.FirstSeen
		}
		if seen.After(g.lastSeen) {
			g.lastSeen = seen
		}
	}

	out := make([]model.Prospect, 0, len(order))
	for _, key := range order {
		g := groups[key]
		volume := len(g.ids)
		name := dominantName(g.adverts)

		p := model.Prospect{
			CompanyName:           name,
			Domain:                g.domain,
			Source:                source,
			AdVolume:              model.IntPtr(volume),
			CreativeDiversity:     math.Round(float64(len(g.creatives))/float64(volume)*100) / 100,
			EstimatedMonthlySpend: math.Round(g.spend*100) / 100,
			PlatformsActive:       model.NormalizePlatforms(g.platforms),
			FirstSeen:             g.firstSeen,
			LastSeen:              g.lastSeen,
		}
		if len(g.texts) > 0 {
			p.Snippet = g.texts[0]
		}
		p.Vertical = vertical.Classify(append([]string{name}, g.texts...)...)
		out = append(out, p)
	}

	slices.SortStableFunc(out, func(a, b model.Prospect) int {
		if c := cmp.Compare(b.EstimatedMonthlySpend, a.EstimatedMonthlySpend); c != 0 {
			return c
		}
		return cmp.Compare(a.CompanyName, b.CompanyName)
	})
	return out
}

// fingerprint identifies a distinct creative by its content. Ads without
// text are told apart by ID only.
func fingerprint(ad Ad) string {
	text := vertical.Fold(strings.TrimSpace(ad.Text))
	if text == "" {
		return "id:" + ad.ID + "|" + strings.ToLower(ad.Format)
	}
	return strings.ToLower(ad.Format) + "|" + text
}

// dominantName picks the most frequent advertiser name, breaking ties
// alphabetically.
func dominantName(counts map[string]int) string {
	var best string
	for name, n := range counts {
		if best == "" || n > counts[best] || (n == counts[best] && name < best) {
			best = name
		}
	}
	return best
}
