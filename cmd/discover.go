package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/cost"
	"github.com/sells-group/adlead-cli/internal/discovery"
	"github.com/sells-group/adlead-cli/internal/model"
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover advertising prospects from an ad library",
	Long:  "Searches an ad library for the given queries, aggregates creatives into one prospect per advertiser, resolves missing websites, and writes the prospects as JSON. With --score the prospects are scored in the same run.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		sourceName, _ := cmd.Flags().GetString("source")
		queries, _ := cmd.Flags().GetStringSlice("query")
		output, _ := cmd.Flags().GetString("output")
		score, _ := cmd.Flags().GetBool("score")
		format, _ := cmd.Flags().GetString("format")

		source, ok := model.ParseSource(sourceName)
		if !ok {
			return eris.Errorf("unknown source %q (want searchapi, meta or bigquery)", sourceName)
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		d, closeSrc, err := newDiscoverer(ctx, cfg, source)
		if err != nil {
			return err
		}
		defer closeSrc() //nolint:errcheck

		prospects, stats, err := d.Discover(ctx, queries)
		if err != nil {
			return eris.Wrap(err, "discover")
		}
		spent := discoveryCost(cfg.Pricing, source, stats)
		zap.L().Info("discovery complete",
			zap.Float64("estimated_cost_usd", spent.Total),
			zap.Int("queries", stats.Queries),
			zap.Int("failed_queries", stats.FailedQuery),
			zap.Int("ads", stats.Ads),
			zap.Int("prospects", stats.Prospects),
			zap.Int("resolved", stats.Resolved),
			zap.Int("unresolved", stats.Unresolved),
		)

		if !score {
			w, closeOut, err := openOutput(output)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			if err := enc.Encode(prospects); err != nil {
				_ = closeOut()
				return eris.Wrap(err, "write prospects")
			}
			return closeOut()
		}

		runner, _, err := newRunner(cfg, "")
		if err != nil {
			return err
		}
		outcomes, sum, err := runner.Run(ctx, prospects)
		if err != nil {
			return eris.Wrap(err, "score")
		}
		w, closeOut, err := openOutput(output)
		if err != nil {
			return err
		}
		if err := writeOutcomes(w, format, outcomes); err != nil {
			_ = closeOut()
			return eris.Wrap(err, "write outcomes")
		}
		if err := closeOut(); err != nil {
			return err
		}
		formatSummary(os.Stderr, sum)
		return nil
	},
}

func init() {
	discoverCmd.Flags().String("source", "searchapi", "ad library: searchapi, meta or bigquery")
	discoverCmd.Flags().StringSlice("query", nil, "search term (repeatable), e.g. --query \"dentist toronto\"")
	discoverCmd.Flags().String("output", "", "write results to this file instead of stdout")
	discoverCmd.Flags().Bool("score", false, "score the discovered prospects instead of writing them")
	discoverCmd.Flags().String("format", formatTable, "output format with --score: table, csv or json")
	_ = discoverCmd.MarkFlagRequired("query")
	rootCmd.AddCommand(discoverCmd)
}

// discoveryCost estimates what a discovery run spent on paid APIs.
func discoveryCost(p config.PricingConfig, source model.Source, stats discovery.Stats) cost.Breakdown {
	return cost.NewCalculator(cost.RatesFrom(p)).Discovery(cost.Usage{
		Source:  source,
		Queries: stats.Queries,
		Lookups: stats.Resolved + stats.Unresolved,
	})
}
