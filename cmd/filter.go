package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/adlead-cli/internal/ingest"
	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/prefilter"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Run only the prospect filter and count rejections by reason",
	RunE: func(cmd *cobra.Command, _ []string) error {
		input, _ := cmd.Flags().GetString("input")

		if err := cfg.Validate(); err != nil {
			return err
		}
		f, err := prefilter.New(cfg.Filter)
		if err != nil {
			return err
		}
		in, err := ingest.ReadFile(cmd.Context(), input)
		if err != nil {
			return err
		}

		passed, reasons := applyFilter(f, in.Prospects)
		formatFilterReport(os.Stdout, len(in.Prospects), passed, len(in.Rejected), reasons)
		return nil
	},
}

// applyFilter counts passing prospects and rejection reasons.
func applyFilter(f *prefilter.Filter, prospects []model.Prospect) (int, map[string]int) {
	passed := 0
	reasons := make(map[string]int)
	for i := range prospects {
		p := prospects[i]
		if ok, reason := f.Check(&p); ok {
			passed++
		} else {
			reasons[reason]++
		}
	}
	return passed, reasons
}

func formatFilterReport(out io.Writer, total, passed, rejectedRows int, reasons map[string]int) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Prospects:\t%d\n", total)
	_, _ = fmt.Fprintf(w, "Passed:\t%d\n", passed)
	_, _ = fmt.Fprintf(w, "Filtered:\t%d\n", total-passed)
	formatReasons(w, reasons)
	if rejectedRows > 0 {
		_, _ = fmt.Fprintf(w, "Unreadable rows:\t%d\n", rejectedRows)
	}
	_ = w.Flush()
}

func init() {
	filterCmd.Flags().String("input", "", "prospect file (.json, .ndjson, .csv, .xlsx)")
	_ = filterCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(filterCmd)
}
