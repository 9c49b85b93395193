package ingest

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/vertical"
)

// Canonical field names.
const (
	fieldCompany     = "company_name"
	fieldDomain      = "domain"
	fieldSource      = "source"
	fieldVertical    = "industry_vertical"
	fieldCountry     = "country"
	fieldTitle       = "title"
	fieldSnippet     = "snippet"
	fieldDescription = "description"
	fieldAdVolume    = "ad_volume"
	fieldDiversity   = "creative_diversity"
	fieldSpend       = "estimated_monthly_spend"
	fieldImpressions = "monthly_impressions"
	fieldClicks      = "monthly_clicks"
	fieldConversions = "monthly_conversions"
	fieldPlatforms   = "platforms_active"
	fieldFirstSeen   = "first_seen"
	fieldLastSeen    = "last_seen"
)

// aliases maps each canonical field to the header names accepted for it.
var aliases = map[string][]string{
	fieldCompany:     {"company_name", "company", "name", "business_name", "advertiser_name", "advertiser"},
	fieldDomain:      {"domain_or_url", "domain", "website", "url"},
	fieldSource:      {"source"},
	fieldVertical:    {"industry_vertical", "vertical", "industry"},
	fieldCountry:     {"country", "country_code", "region"},
	fieldTitle:       {"title"},
	fieldSnippet:     {"snippet"},
	fieldDescription: {"description"},
	fieldAdVolume:    {"ad_volume", "ad_count", "ads", "num_ads"},
	fieldDiversity:   {"creative_diversity", "diversity"},
	fieldSpend:       {"estimated_monthly_spend", "monthly_spend", "spend"},
	fieldImpressions: {"monthly_impressions", "impressions"},
	fieldClicks:      {"monthly_clicks", "clicks"},
	fieldConversions: {"monthly_conversions", "conversions"},
	fieldPlatforms:   {"platforms_active", "platforms"},
	fieldFirstSeen:   {"first_seen", "first_shown"},
	fieldLastSeen:    {"last_seen", "last_shown"},
}

var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"01/02/2006",
	"2006/01/02",
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
	return strings.NewReplacer(" ", "_", "-", "_").Replace(h)
}

func lookup(fields map[string]string, field string) string {
	for _, name := range aliases[field] {
		if v, ok := fields[name]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// toProspect maps a flat record onto a Prospect. Values that are present but
// unparsable are errors; missing values are left for the filter to judge.
func toProspect(fields map[string]string) (model.Prospect, error) {
	p := model.Prospect{
		CompanyName: lookup(fields, fieldCompany),
		Domain:      lookup(fields, fieldDomain),
		Country:     strings.ToUpper(lookup(fields, fieldCountry)),
		Title:       lookup(fields, fieldTitle),
		Snippet:     lookup(fields, fieldSnippet),
		Description: lookup(fields, fieldDescription),
	}

	if s := lookup(fields, fieldSource); s != "" {
		if src, ok := model.ParseSource(s); ok {
			p.Source = src
		}
	}
	if v := lookup(fields, fieldVertical); v != "" {
		if parsed, ok := vertical.Parse(v); ok {
			p.Vertical = parsed
		} else {
			p.Vertical = vertical.Classify(v)
		}
	}

	var err error
	if s := lookup(fields, fieldAdVolume); s != "" {
		n, perr := parseNumber(s)
		if perr != nil || n != math.Trunc(n) {
			return p, eris.Errorf("%s %q is not a whole number", fieldAdVolume, s)
		}
		p.AdVolume = model.IntPtr(int(n))
	}
	if p.CreativeDiversity, err = optionalNumber(fields, fieldDiversity); err != nil {
		return p, err
	}
	if p.EstimatedMonthlySpend, err = optionalNumber(fields, fieldSpend); err != nil {
		return p, err
	}
	if p.MonthlyImpressions, err = optionalNumber(fields, fieldImpressions); err != nil {
		return p, err
	}
	if p.MonthlyClicks, err = optionalNumber(fields, fieldClicks); err != nil {
		return p, err
	}
	if p.MonthlyConversions, err = optionalNumber(fields, fieldConversions); err != nil {
		return p, err
	}

	if s := lookup(fields, fieldPlatforms); s != "" {
		p.PlatformsActive = model.NormalizePlatforms(strings.FieldsFunc(s, func(r rune) bool {
			return r == ',' || r == ';' || r == '|'
		}))
	}
	if p.FirstSeen, err = optionalTime(fields, fieldFirstSeen); err != nil {
		return p, err
	}
	if p.LastSeen, err = optionalTime(fields, fieldLastSeen); err != nil {
		return p, err
	}
	return p, nil
}

func optionalNumber(fields map[string]string, field string) (float64, error) {
	s := lookup(fields, field)
	if s == "" {
		return 0, nil
	}
	n, err := parseNumber(s)
	if err != nil {
		return 0, eris.Errorf("%s %q is not a number", field, s)
	}
	return n, nil
}

// parseNumber accepts plain numbers plus "$12,000" and "85%" forms.
func parseNumber(s string) (float64, error) {
	s = strings.TrimSpace(s)
	percent := strings.HasSuffix(s, "%")
	s = strings.TrimSuffix(s, "%")
	s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(s)
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(n) || math.IsInf(n, 0) {
		return 0, eris.New("not finite")
	}
	if percent {
		n /= 100
	}
	return n, nil
}

func optionalTime(fields map[string]string, field string) (time.Time, error) {
	s := lookup(fields, field)
	if s == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("%s %q is not a recognized date", field, s)
}

// stringify flattens a decoded JSON value into the string form the row
// mapper expects. Arrays become comma-separated lists.
func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		return strconv.FormatBool(x)
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			parts = append(parts, stringify(e))
		}
		return strings.Join(parts, ",")
	default:
		return fmt.Sprint(x)
	}
}
