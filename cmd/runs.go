package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/monitoring"
	"github.com/sells-group/adlead-cli/internal/store"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List stored scoring runs",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		status, _ := cmd.Flags().GetString("status")
		profile, _ := cmd.Flags().GetString("profile")
		limit, _ := cmd.Flags().GetInt("limit")

		runs, err := st.ListRuns(ctx, store.RunFilter{
			Status:  model.RunStatus(status),
			Profile: profile,
			Limit:   limit,
		})
		if err != nil {
			return eris.Wrap(err, "runs list")
		}
		if len(runs) == 0 {
			fmt.Fprintln(os.Stderr, "No runs found.")
			return nil
		}
		formatRunsList(os.Stdout, runs)
		return nil
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show a run and its qualified leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		run, err := st.GetRun(ctx, args[0])
		if err != nil {
			return eris.Wrap(err, "runs show")
		}
		all, _ := cmd.Flags().GetBool("all")
		outcomes, err := st.ListOutcomes(ctx, run.ID, !all)
		if err != nil {
			return eris.Wrap(err, "runs show")
		}

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*model.Run
			Outcomes []model.Outcome `json:"outcomes"`
		}{run, outcomes})
	},
}

var runsHealthCmd = &cobra.Command{
	Use:   "health",
	Short: "Summarize recent run health and evaluate alert thresholds",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		hours, _ := cmd.Flags().GetInt("hours")
		if hours <= 0 {
			hours = cfg.Monitoring.LookbackWindowHours
		}
		snap, err := monitoring.NewCollector(st).Collect(ctx, hours)
		if err != nil {
			return err
		}

		alerter := monitoring.NewAlerter(cfg.Monitoring)
		alerts := alerter.Evaluate(snap)
		formatHealth(os.Stdout, snap, alerts)

		if send, _ := cmd.Flags().GetBool("send"); send && len(alerts) > 0 {
			sent := alerter.SendAlerts(ctx, alerts)
			fmt.Fprintf(os.Stderr, "Sent %d of %d alerts.\n", sent, len(alerts))
		}
		return nil
	},
}

func init() {
	runsHealthCmd.Flags().Int("hours", 0, "lookback window in hours (default from config)")
	runsHealthCmd.Flags().Bool("send", false, "deliver triggered alerts to the monitoring webhook")

	runsCmd.Flags().String("status", "", "filter by run status (running, complete, failed)")
	runsCmd.Flags().String("profile", "", "filter by ICP profile")
	runsCmd.Flags().Int("limit", 20, "max number of runs to display")

	runsShowCmd.Flags().Bool("all", false, "include unqualified and filtered outcomes")

	runsCmd.AddCommand(runsShowCmd)
	runsCmd.AddCommand(runsHealthCmd)
	rootCmd.AddCommand(runsCmd)
}

// formatRunsList writes a tabular list of runs to w.
func formatRunsList(out io.Writer, runs []model.Run) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tPROFILE\tINPUT\tSTATUS\tTOTAL\tQUALIFIED\tCREATED\tDURATION")
	_, _ = fmt.Fprintln(w, "--\t-------\t-----\t------\t-----\t---------\t-------\t--------")

	for _, r := range runs {
		dur := r.UpdatedAt.Sub(r.CreatedAt).Round(time.Second).String()
		total, qualified := "-", "-"
		if r.Summary != nil {
			total = fmt.Sprint(r.Summary.Total)
			qualified = fmt.Sprint(r.Summary.Qualified)
		}
		profile := r.Profile
		if profile == "" {
			profile = "default"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(r.ID),
			profile,
			truncate(r.Input, 30),
			r.Status,
			total,
			qualified,
			r.CreatedAt.Format("2006-01-02 15:04"),
			dur,
		)
	}
	_ = w.Flush()
}

// truncateID returns the first 8 characters of a UUID for compact display.
func truncateID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// formatHealth writes a run health snapshot and any triggered alerts to out.
func formatHealth(out io.Writer, snap *monitoring.MetricsSnapshot, alerts []monitoring.Alert) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintf(w, "Window:\tlast %dh\n", snap.LookbackHours)
	_, _ = fmt.Fprintf(w, "Runs:\t%d (%d complete, %d failed, %d running)\n",
		snap.RunsTotal, snap.RunsComplete, snap.RunsFailed, snap.RunsRunning)
	_, _ = fmt.Fprintf(w, "Failure rate:\t%.1f%%\n", snap.RunFailRate*100)
	_, _ = fmt.Fprintf(w, "Records:\t%d (%d qualified, %d filtered, %d data errors)\n",
		snap.Records, snap.Qualified, snap.FilteredOut, snap.DataErrors)
	_, _ = fmt.Fprintf(w, "Qualified rate:\t%.1f%%\n", snap.QualifiedRate*100)
	_, _ = fmt.Fprintf(w, "Runs without leads:\t%d\n", snap.NoLeadStreak)
	_ = w.Flush()

	if len(alerts) == 0 {
		_, _ = fmt.Fprintln(out, "\nNo alerts.")
		return
	}
	_, _ = fmt.Fprintf(out, "\nAlerts (%d):\n", len(alerts))
	for _, a := range alerts {
		_, _ = fmt.Fprintf(out, "  [%s] %s: %s\n", a.Severity, a.Type, a.Message)
	}
}
