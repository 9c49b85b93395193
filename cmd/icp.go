package main

import (
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adlead-cli/internal/icp"
	"github.com/sells-group/adlead-cli/internal/signal"
)

var icpCmd = &cobra.Command{
	Use:   "icp",
	Short: "Inspect and validate ideal customer profiles",
}

var icpListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the loaded ICP profiles and their weights",
	RunE: func(cmd *cobra.Command, _ []string) error {
		set, err := icp.Load(cfg.Scoring.ICPPath, signal.NewRegistry(signalConfig(cfg.Scoring)))
		if err != nil {
			return err
		}
		formatProfiles(cmd.OutOrStdout(), set)
		return nil
	},
}

var icpValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate an ICP file without scoring anything",
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("file")
		if path == "" {
			path = cfg.Scoring.ICPPath
		} else if _, err := os.Stat(path); err != nil {
			return eris.Wrapf(err, "icp file %s", path)
		}
		set, err := icp.Load(path, signal.NewRegistry(signalConfig(cfg.Scoring)))
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s: %d profiles OK (%s)\n",
			path, len(set.Names()), strings.Join(set.Names(), ", "))
		return err
	},
}

func formatProfiles(out io.Writer, set *icp.Set) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "NAME\tINDUSTRIES\tCOUNTRIES\tMIN SPEND\tTHRESHOLD\tWEIGHTS")
	_, _ = fmt.Fprintln(w, "----\t----------\t---------\t---------\t---------\t-------")
	def := set.Default().Name
	for _, name := range set.Names() {
		p, _ := set.Get(name)
		industries := make([]string, len(p.Industries))
		for i, v := range p.Industries {
			industries[i] = string(v)
		}
		weights := make([]string, 0, len(p.Weights))
		for _, s := range p.SignalNames() {
			weights = append(weights, fmt.Sprintf("%s=%.2f", s, p.Weights[s]))
		}
		label := name
		if name == def {
			label += " (default)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%.0f\t%.0f\t%s\n",
			label, orAny(industries), orAny(p.Countries), p.MinMonthlySpend, p.QualificationThreshold, strings.Join(weights, " "))
	}
	_ = w.Flush()
}

func orAny(vals []string) string {
	if len(vals) == 0 {
		return "any"
	}
	return strings.Join(vals, ",")
}

func init() {
	icpValidateCmd.Flags().String("file", "", "ICP file to validate (default scoring.icp_path)")
	icpCmd.AddCommand(icpListCmd)
	icpCmd.AddCommand(icpValidateCmd)
	rootCmd.AddCommand(icpCmd)
}
