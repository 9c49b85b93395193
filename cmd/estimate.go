package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/adlead-cli/internal/leak"
)

var estimateCmd = &cobra.Command{
	Use:   "estimate",
	Short: "Estimate monthly wasted ad spend for one set of metrics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		spend, _ := cmd.Flags().GetFloat64("spend")
		impressions, _ := cmd.Flags().GetFloat64("impressions")
		clicks, _ := cmd.Flags().GetFloat64("clicks")
		conversions, _ := cmd.Flags().GetFloat64("conversions")
		industry, _ := cmd.Flags().GetString("industry")

		if err := cfg.Validate(); err != nil {
			return err
		}
		table, err := leak.LoadTable(cfg.Scoring.BenchmarkPath)
		if err != nil {
			return err
		}
		est := leak.NewEstimator(table, cfg.Scoring.LeakCorrection).Estimate(leak.Metrics{
			Spend:       spend,
			Impressions: impressions,
			Clicks:      clicks,
			Conversions: conversions,
		}, industry)

		line, err := leak.FormatLeak(est)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), line)
		return err
	},
}

func init() {
	estimateCmd.Flags().Float64("spend", 0, "monthly ad spend in dollars")
	estimateCmd.Flags().Float64("impressions", 0, "monthly impressions")
	estimateCmd.Flags().Float64("clicks", 0, "monthly clicks")
	estimateCmd.Flags().Float64("conversions", 0, "monthly conversions")
	estimateCmd.Flags().String("industry", "", "benchmark industry (e.g. dental, legal)")
	_ = estimateCmd.MarkFlagRequired("spend")
	rootCmd.AddCommand(estimateCmd)
}
