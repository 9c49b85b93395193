package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/model"
)

// Output formats.
const (
	formatTable = "table"
	formatCSV   = "csv"
	formatJSON  = "json"
)

var outcomeHeader = []string{
	"company", "domain", "stage", "icp", "score", "tier",
	"monthly_leak", "confidence", "signals", "reason",
}

// openOutput returns stdout for "" or "-", else creates path.
func openOutput(path string) (io.Writer, func() error, error) {
	if path == "" || path == "-" {
		return os.Stdout, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, eris.Wrapf(err, "create %s", path)
	}
	return f, f.Close, nil
}

func writeOutcomes(w io.Writer, format string, outcomes []model.Outcome) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(outcomes)
	case formatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(outcomeHeader); err != nil {
			return err
		}
		for i := range outcomes {
			if err := cw.Write(outcomeRecord(&outcomes[i])); err != nil {
				return err
			}
		}
		cw.Flush()
		return cw.Error()
	case formatTable, "":
		formatOutcomeTable(w, outcomes)
		return nil
	default:
		return eris.Errorf("unsupported format %q (want table, csv or json)", format)
	}
}

// outcomeRecord flattens an outcome in outcomeHeader order. The leak and
// its confidence are always emitted together.
func outcomeRecord(o *model.Outcome) []string {
	rec := []string{o.Prospect.CompanyName, o.Prospect.Domain, string(o.Stage), "", "", "", "", "", "", o.Reason}
	if r := o.Result; r != nil {
		rec[3] = r.ICP
		rec[4] = strconv.FormatFloat(r.Score, 'f', 1, 64)
		rec[5] = string(r.Tier)
		rec[8] = strings.Join(r.SignalsDetected, ";")
	}
	if l := o.Leak; l != nil {
		rec[6] = strconv.FormatFloat(l.MonthlyLeak, 'f', 2, 64)
		rec[7] = string(l.Confidence)
	}
	return rec
}

// formatOutcomeTable writes qualified leads first, best score first.
func formatOutcomeTable(out io.Writer, outcomes []model.Outcome) {
	sorted := slices.Clone(outcomes)
	slices.SortStableFunc(sorted, func(a, b model.Outcome) int {
		return compareOutcome(&a, &b)
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "COMPANY\tDOMAIN\tICP\tSCORE\tTIER\tLEAK/MO\tSTATUS")
	_, _ = fmt.Fprintln(w, "-------\t------\t---\t-----\t----\t-------\t------")
	for i := range sorted {
		o := &sorted[i]
		icpName, score, tier, leakStr := "-", "-", "-", "-"
		if r := o.Result; r != nil {
			icpName = r.ICP
			score = fmt.Sprintf("%.1f", r.Score)
			tier = string(r.Tier)
		}
		if l := o.Leak; l != nil {
			leakStr = fmt.Sprintf("$%.2f (%s)", l.MonthlyLeak, l.Confidence)
		}
		status := string(o.Stage)
		if o.Qualified() {
			status = "qualified"
		} else if o.Reason != "" {
			status += ": " + o.Reason
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncate(o.Prospect.CompanyName, 30), o.Prospect.Domain, icpName, score, tier, leakStr, status)
	}
	_ = w.Flush()
}

func compareOutcome(a, b *model.Outcome) int {
	if a.Qualified() != b.Qualified() {
		if a.Qualified() {
			return -1
		}
		return 1
	}
	var sa, sb float64
	if a.Result != nil {
		sa = a.Result.Score
	}
	if b.Result != nil {
		sb = b.Result.Score
	}
	switch {
	case sa > sb:
		return -1
	case sa < sb:
		return 1
	}
	return 0
}

// formatSummary writes the run counts so "no good leads" and "something
// is broken" read differently.
func formatSummary(out io.Writer, sum model.RunSummary) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Total:\t%d\n", sum.Total)
	_, _ = fmt.Fprintf(w, "Qualified:\t%d\n", sum.Qualified)
	for _, t := range []model.Tier{model.TierImmediate, model.TierHigh, model.TierMedium} {
		if n := sum.Tiers[t]; n > 0 {
			_, _ = fmt.Fprintf(w, "  %s:\t%d\n", t, n)
		}
	}
	_, _ = fmt.Fprintf(w, "Scored, unqualified:\t%d\n", sum.ScoredUnqualified)
	_, _ = fmt.Fprintf(w, "Filtered out:\t%d\n", sum.FilteredOut)
	formatReasons(w, sum.FilterReasons)
	_, _ = fmt.Fprintf(w, "Data errors:\t%d\n", sum.DataErrors)
	if sum.ConfigErrors > 0 {
		_, _ = fmt.Fprintf(w, "Config errors:\t%d\n", sum.ConfigErrors)
	}
	_ = w.Flush()
}

func formatReasons(w io.Writer, reasons map[string]int) {
	keys := make([]string, 0, len(reasons))
	for k := range reasons {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		_, _ = fmt.Fprintf(w, "  %s:\t%d\n", k, reasons[k])
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-3] + "..."
}
