package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/batch"
	"github.com/sells-group/adlead-cli/internal/ingest"
	"github.com/sells-group/adlead-cli/internal/model"
)

var scoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Filter, score and estimate leaks for a file of prospects",
	Long:  "Reads prospects from JSON, NDJSON, CSV or XLSX, runs each through the prospect filter, the ICP scorer and the money-leak estimator, and prints the outcomes with a run summary.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		input, _ := cmd.Flags().GetString("input")
		profile, _ := cmd.Flags().GetString("profile")
		format, _ := cmd.Flags().GetString("format")
		output, _ := cmd.Flags().GetString("output")
		save, _ := cmd.Flags().GetBool("save")
		export, _ := cmd.Flags().GetString("export")

		modes := []string{}
		if save {
			modes = append(modes, "score")
		}
		if err := cfg.Validate(modes...); err != nil {
			return err
		}

		in, err := ingest.ReadFile(ctx, input)
		if err != nil {
			return err
		}

		runner, _, err := newRunner(cfg, profile)
		if err != nil {
			formatSummary(os.Stderr, batch.ConfigFailure(len(in.Prospects)+len(in.Rejected)))
			return err
		}

		outcomes, sum, err := runner.Run(ctx, in.Prospects)
		if err != nil {
			return eris.Wrap(err, "score")
		}
		in.Apply(&sum)

		w, closeOut, err := openOutput(output)
		if err != nil {
			return err
		}
		if err := writeOutcomes(w, format, outcomes); err != nil {
			_ = closeOut()
			return eris.Wrap(err, "write outcomes")
		}
		if err := closeOut(); err != nil {
			return eris.Wrap(err, "close output")
		}
		formatSummary(os.Stderr, sum)

		if save {
			if err := saveRun(ctx, profile, input, outcomes, sum); err != nil {
				return err
			}
		}
		if export != "" {
			res, err := exportOutcomes(ctx, cfg, export, outcomes)
			if err != nil {
				return eris.Wrapf(err, "export to %s", export)
			}
			enc := json.NewEncoder(os.Stderr)
			enc.SetIndent("", "  ")
			_ = enc.Encode(res)
		}
		return nil
	},
}

// saveRun persists a completed run and its outcomes.
func saveRun(ctx context.Context, profile, input string, outcomes []model.Outcome, sum model.RunSummary) error {
	st, err := initStore(ctx)
	if err != nil {
		return err
	}
	defer st.Close() //nolint:errcheck

	if profile == "" {
		profile = cfg.Scoring.Profile
	}
	run, err := st.CreateRun(ctx, profile, input)
	if err != nil {
		return eris.Wrap(err, "create run")
	}
	if err := st.SaveOutcomes(ctx, run.ID, outcomes); err != nil {
		if ferr := st.FailRun(ctx, run.ID, err.Error()); ferr != nil {
			zap.L().Warn("mark run failed", zap.String("run_id", run.ID), zap.Error(ferr))
		}
		return eris.Wrap(err, "save outcomes")
	}
	if err := st.CompleteRun(ctx, run.ID, sum); err != nil {
		return eris.Wrap(err, "complete run")
	}
	zap.L().Info("run saved", zap.String("run_id", run.ID), zap.Int("qualified", sum.Qualified))
	return nil
}

func init() {
	scoreCmd.Flags().String("input", "", "prospect file (.json, .ndjson, .csv, .xlsx)")
	scoreCmd.Flags().String("profile", "", "ICP profile name, or \"auto\" to match per prospect (default from config)")
	scoreCmd.Flags().String("format", formatTable, "output format: table, csv or json")
	scoreCmd.Flags().String("output", "", "write outcomes to this file instead of stdout")
	scoreCmd.Flags().Bool("save", false, "persist the run and its outcomes to the store")
	scoreCmd.Flags().String("export", "", "export qualified leads: notion or salesforce")
	_ = scoreCmd.MarkFlagRequired("input")
	rootCmd.AddCommand(scoreCmd)
}
