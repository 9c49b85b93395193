package salesforce

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/model"
)

// lookupChunk bounds the number of websites per SOQL IN clause.
const lookupChunk = 100

// Lead is the part of a Salesforce Lead the exporter reads back.
type Lead struct {
	ID      string `json:"Id" salesforce:"Id"`
	Website string `json:"Website" salesforce:"Website"`
	Status  string `json:"Status" salesforce:"Status"`
}

// ExportResult counts what an export did.
type ExportResult struct {
	Created int      `json:"created"`
	Updated int      `json:"updated"`
	Skipped int      `json:"skipped"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors,omitempty"`
}

// ExportLeads upserts qualified outcomes as Leads matched on Website.
// Record-level failures are counted, not returned; only transport errors
// abort the export.
func ExportLeads(ctx context.Context, c Client, leadSource string, outcomes []model.Outcome) (ExportResult, error) {
	var res ExportResult

	var leads []*model.Outcome
	for i := range outcomes {
		o := &outcomes[i]
		if !o.Qualified() || o.Prospect.Domain == "" {
			res.Skipped++
			continue
		}
		leads = append(leads, o)
	}
	if len(leads) == 0 {
		return res, nil
	}

	domains := make([]string, len(leads))
	for i, o := range leads {
		domains[i] = o.Prospect.Domain
	}
	existing, err := findLeads(ctx, c, domains)
	if err != nil {
		return res, err
	}

	var inserts, updates []map[string]any
	for _, o := range leads {
		fields := leadFields(o, leadSource)
		if id, ok := existing[o.Prospect.Domain]; ok {
			fields["Id"] = id
			delete(fields, "LeadSource")
			updates = append(updates, fields)
			continue
		}
		inserts = append(inserts, fields)
	}

	for start := 0; start < len(inserts); start += maxBatchSize {
		batch := inserts[start:min(start+maxBatchSize, len(inserts))]
		results, err := c.InsertCollection(ctx, "Lead", batch)
		if err != nil {
			return res, eris.Wrapf(err, "sf: insert leads batch %d", start/maxBatchSize)
		}
		res.tally(results, &res.Created)
	}
	for start := 0; start < len(updates); start += maxBatchSize {
		batch := updates[start:min(start+maxBatchSize, len(updates))]
		results, err := c.UpdateCollection(ctx, "Lead", batch)
		if err != nil {
			return res, eris.Wrapf(err, "sf: update leads batch %d", start/maxBatchSize)
		}
		res.tally(results, &res.Updated)
	}

	zap.L().Info("salesforce export complete",
		zap.Int("created", res.Created),
		zap.Int("updated", res.Updated),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

func (r *ExportResult) tally(results []CollectionResult, ok *int) {
	for _, cr := range results {
		if cr.Success {
			*ok++
			continue
		}
		r.Failed++
		r.Errors = append(r.Errors, strings.Join(cr.Errors, "; "))
	}
}

// findLeads maps canonical website domains to existing Lead IDs.
func findLeads(ctx context.Context, c Client, domains []string) (map[string]string, error) {
	found := make(map[string]string)
	for start := 0; start < len(domains); start += lookupChunk {
		chunk := domains[start:min(start+lookupChunk, len(domains))]
		quoted := make([]string, 0, len(chunk)*2)
		for _, d := range chunk {
			quoted = append(quoted, "'"+escapeSoql(d)+"'", "'https://"+escapeSoql(d)+"'")
		}
		soql := fmt.Sprintf("SELECT Id, Website, Status FROM Lead WHERE IsConverted = false AND Website IN (%s)",
			strings.Join(quoted, ", "))

		var leads []Lead
		if err := c.Query(ctx, soql, &leads); err != nil {
			return nil, eris.Wrap(err, "sf: find existing leads")
		}
		for _, l := range leads {
			if d := model.CanonicalDomain(l.Website); d != "" {
				found[d] = l.ID
			}
		}
	}
	return found, nil
}

// ratings maps tiers onto the standard Lead Rating picklist.
var ratings = map[model.Tier]string{
	model.TierImmediate: "Hot",
	model.TierHigh:      "Warm",
	model.TierMedium:    "Cold",
}

func leadFields(o *model.Outcome, leadSource string) map[string]any {
	p := o.Prospect
	r := o.Result

	fields := map[string]any{
		"Company":     truncate(p.CompanyName, 255),
		"LastName":    "Unknown",
		"Website":     p.Domain,
		"Industry":    string(p.Vertical),
		"Rating":      ratings[r.Tier],
		"Description": truncate(describe(o), 32000),
	}
	if leadSource != "" {
		fields["LeadSource"] = leadSource
	}
	if p.Country != "" {
		fields["Country"] = p.Country
	}
	return fields
}

func describe(o *model.Outcome) string {
	r := o.Result
	var b strings.Builder
	fmt.Fprintf(&b, "ICP: %s\nScore: %.1f (%s)\n", r.ICP, r.Score, r.Tier)
	if len(r.SignalsDetected) > 0 {
		fmt.Fprintf(&b, "Signals: %s\n", strings.Join(r.SignalsDetected, ", "))
	}
	if o.Leak != nil {
		fmt.Fprintf(&b, "Estimated monthly leak: $%.2f (confidence %s)\n", o.Leak.MonthlyLeak, o.Leak.Confidence)
	}
	for _, in := range r.Insights {
		b.WriteString("- " + in + "\n")
	}
	return strings.TrimSpace(b.String())
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// escapeSoql escapes quotes and backslashes in SOQL string literals.
func escapeSoql(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}
