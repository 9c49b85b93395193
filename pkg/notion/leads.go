package notion

import (
	"context"
	"math"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/model"
)

// Property names of the outreach database.
const (
	PropName       = "Name"
	PropDomain     = "Domain"
	PropTier       = "Tier"
	PropScore      = "Score"
	PropICP        = "ICP"
	PropVertical   = "Vertical"
	PropSource     = "Source"
	PropLeak       = "Monthly Leak"
	PropConfidence = "Confidence"
	PropSignals    = "Signals"
	PropInsights   = "Insights"
	PropStatus     = "Status"

	statusNew = "New"
)

// ExportResult counts what an export did.
type ExportResult struct {
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// ExportLeads upserts every qualified outcome into the database, keyed by
// domain. Existing pages keep their Status so outreach progress is not reset.
func ExportLeads(ctx context.Context, c Client, dbID string, outcomes []model.Outcome) (ExportResult, error) {
	var res ExportResult

	existing, err := domainIndex(ctx, c, dbID)
	if err != nil {
		return res, err
	}

	for i := range outcomes {
		o := &outcomes[i]
		if !o.Qualified() || o.Prospect.Domain == "" {
			res.Skipped++
			continue
		}
		if ctx.Err() != nil {
			return res, eris.Wrap(ctx.Err(), "notion: export cancelled")
		}

		props := leadProperties(o)
		if pageID, ok := existing[o.Prospect.Domain]; ok {
			if _, err := c.UpdatePage(ctx, pageID, &notionapi.PageUpdateRequest{Properties: props}); err != nil {
				return res, eris.Wrapf(err, "notion: update lead %s", o.Prospect.Domain)
			}
			res.Updated++
			continue
		}

		props[PropStatus] = notionapi.StatusProperty{
			Type:   notionapi.PropertyTypeStatus,
			Status: notionapi.Status{Name: statusNew},
		}
		page, err := c.CreatePage(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: props,
		})
		if err != nil {
			return res, eris.Wrapf(err, "notion: create lead %s", o.Prospect.Domain)
		}
		existing[o.Prospect.Domain] = string(page.ID)
		res.Created++
	}

	zap.L().Info("notion export complete",
		zap.String("database", dbID),
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
	)
	return res, nil
}

// domainIndex maps the Domain property of every page to its page ID.
func domainIndex(ctx context.Context, c Client, dbID string) (map[string]string, error) {
	index := make(map[string]string)
	req := &notionapi.DatabaseQueryRequest{PageSize: 100}
	for {
		resp, err := c.QueryDatabase(ctx, dbID, req)
		if err != nil {
			return nil, eris.Wrap(err, "notion: index existing leads")
		}
		for _, page := range resp.Results {
			if d := plainText(page.Properties[PropDomain]); d != "" {
				index[model.CanonicalDomain(d)] = string(page.ID)
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			return index, nil
		}
		req = &notionapi.DatabaseQueryRequest{PageSize: 100, StartCursor: resp.NextCursor}
	}
}

func plainText(p notionapi.Property) string {
	var parts []notionapi.RichText
	switch v := p.(type) {
	case *notionapi.RichTextProperty:
		parts = v.RichText
	case notionapi.RichTextProperty:
		parts = v.RichText
	case *notionapi.URLProperty:
		return v.URL
	case notionapi.URLProperty:
		return v.URL
	default:
		return ""
	}
	var b strings.Builder
	for _, rt := range parts {
		if rt.Text != nil {
			b.WriteString(rt.Text.Content)
		} else {
			b.WriteString(rt.PlainText)
		}
	}
	return strings.TrimSpace(b.String())
}

func leadProperties(o *model.Outcome) notionapi.Properties {
	p := o.Prospect
	r := o.Result

	props := notionapi.Properties{
		PropName: notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(p.CompanyName),
		},
		PropDomain:   notionapi.RichTextProperty{Type: notionapi.PropertyTypeRichText, RichText: richText(p.Domain)},
		PropTier:     selectOf(string(r.Tier)),
		PropScore:    notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: round2(r.Score)},
		PropICP:      selectOf(r.ICP),
		PropVertical: selectOf(string(p.Vertical)),
	}
	if p.Source != "" {
		props[PropSource] = selectOf(string(p.Source))
	}

	if len(r.SignalsDetected) > 0 {
		opts := make([]notionapi.Option, 0, len(r.SignalsDetected))
		for _, s := range r.SignalsDetected {
			opts = append(opts, notionapi.Option{Name: s})
		}
		props[PropSignals] = notionapi.MultiSelectProperty{Type: notionapi.PropertyTypeMultiSelect, MultiSelect: opts}
	}
	if len(r.Insights) > 0 {
		props[PropInsights] = notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(strings.Join(r.Insights, "\n")),
		}
	}
	if o.Leak != nil {
		props[PropLeak] = notionapi.NumberProperty{Type: notionapi.PropertyTypeNumber, Number: o.Leak.MonthlyLeak}
		props[PropConfidence] = selectOf(string(o.Leak.Confidence))
	}
	return props
}

func richText(s string) []notionapi.RichText {
	return []notionapi.RichText{{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}}}
}

func selectOf(name string) notionapi.SelectProperty {
	return notionapi.SelectProperty{Type: notionapi.PropertyTypeSelect, Select: notionapi.Option{Name: name}}
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
