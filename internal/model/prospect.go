// Package model defines the prospect, qualification, and run types shared across the toolkit.
package model

import (
	"net/url"
	"slices"
	"strings"
	"time"
)

// Source identifies which discovery collaborator produced a prospect.
type Source string

const (
	SourceBigQueryAds Source = "BIGQUERY_ADS"
	SourceSearchAPI   Source = "SEARCHAPI"
	SourceMetaAds     Source = "META_ADS"
)

// ParseSource maps a loosely formatted source name to a Source.
func ParseSource(s string) (Source, bool) {
	switch strings.ToUpper(strings.TrimSpace(strings.ReplaceAll(s, "-", "_"))) {
	case "BIGQUERY_ADS", "BIGQUERY", "BQ":
		return SourceBigQueryAds, true
	case "SEARCHAPI", "SEARCH_API":
		return SourceSearchAPI, true
	case "META_ADS", "META", "FACEBOOK":
		return SourceMetaAds, true
	default:
		return "", false
	}
}

// Vertical is the industry classification of a prospect.
type Vertical string

const (
	VerticalDental       Vertical = "dental"
	VerticalAesthetic    Vertical = "aesthetic"
	VerticalLegal        Vertical = "legal"
	VerticalHomeServices Vertical = "home_services"
	VerticalRealEstate   Vertical = "real_estate"
	VerticalFitness      Vertical = "fitness"
	VerticalRestaurant   Vertical = "restaurant"
	VerticalAutomotive   Vertical = "automotive"
	VerticalHealthcare   Vertical = "healthcare"
	VerticalOther        Vertical = "other"
)

// Prospect is one discovered business candidate.
//
// Discovery collaborators create it, the signal extractors fill Signals,
// and the scorer finalizes it. Downstream sinks treat it as immutable.
type Prospect struct {
	CompanyName string   `json:"company_name"`
	Domain      string   `json:"domain"`
	Source      Source   `json:"source"`
	Vertical    Vertical `json:"industry_vertical"`
	Country     string   `json:"country,omitempty"`

	// Free text used by the prospect filter.
	Title       string `json:"title,omitempty"`
	Snippet     string `json:"snippet,omitempty"`
	Description string `json:"description,omitempty"`

	// AdVolume is nil when discovery could not count creatives.
	AdVolume              *int      `json:"ad_volume,omitempty"`
	CreativeDiversity     float64   `json:"creative_diversity"`
	EstimatedMonthlySpend float64   `json:"estimated_monthly_spend"`
	MonthlyImpressions    float64   `json:"monthly_impressions,omitempty"`
	MonthlyClicks         float64   `json:"monthly_clicks,omitempty"`
	MonthlyConversions    float64   `json:"monthly_conversions,omitempty"`
	PlatformsActive       []string  `json:"platforms_active,omitempty"`
	FirstSeen             time.Time `json:"first_seen,omitzero"`
	LastSeen              time.Time `json:"last_seen,omitzero"`

	Signals map[string]float64 `json:"signals,omitempty"`
}

// AdCount returns the ad volume, or 0 when it is unknown.
func (p *Prospect) AdCount() int {
	if p.AdVolume == nil {
		return 0
	}
	return *p.AdVolume
}

// PlatformCount returns the number of distinct active platforms.
func (p *Prospect) PlatformCount() int {
	return len(NormalizePlatforms(p.PlatformsActive))
}

// IntPtr returns a pointer to v.
func IntPtr(v int) *int { return &v }

// NormalizePlatforms lowercases, trims, dedupes, and sorts platform names.
func NormalizePlatforms(platforms []string) []string {
	if len(platforms) == 0 {
		return nil
	}
	out := make([]string, 0, len(platforms))
	for _, p := range platforms {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" || slices.Contains(out, p) {
			continue
		}
		out = append(out, p)
	}
	slices.Sort(out)
	return out
}

// CanonicalDomain reduces a URL or bare host to a lowercase hostname with
// no scheme, no "www." prefix, no port, and no path.
func CanonicalDomain(raw string) string {
	raw = strings.TrimSpace(strings.ToLower(raw))
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "http://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	host := strings.TrimSuffix(u.Hostname(), ".")
	host = strings.TrimPrefix(host, "www.")
	return host
}
