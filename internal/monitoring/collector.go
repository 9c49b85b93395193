// Package monitoring watches stored scoring runs for signs that the
// pipeline is broken rather than simply finding no good leads.
package monitoring

import (
	"context"
	"math"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/signal"
	"github.com/sells-group/adlead-cli/internal/store"
)

// maxRuns bounds how many runs one collection reads.
const maxRuns = 10000

// MetricsSnapshot holds a point-in-time view of run health.
type MetricsSnapshot struct {
	// Runs within the lookback window.
	RunsTotal    int     `json:"runs_total"`
	RunsComplete int     `json:"runs_complete"`
	RunsFailed   int     `json:"runs_failed"`
	RunsRunning  int     `json:"runs_running"`
	RunFailRate  float64 `json:"run_fail_rate"`

	// Record counts summed over completed runs.
	Records       int     `json:"records"`
	Qualified     int     `json:"qualified"`
	FilteredOut   int     `json:"filtered_out"`
	DataErrors    int     `json:"data_errors"`
	ConfigErrors  int     `json:"config_errors"`
	QualifiedRate float64 `json:"qualified_rate"`
	DataErrorRate float64 `json:"data_error_rate"`

	// NoLeadStreak counts the most recent consecutive completed runs that
	// produced no qualified lead.
	NoLeadStreak int `json:"no_lead_streak"`

	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// RunLister is the part of the store the collector reads.
type RunLister interface {
	ListRuns(ctx context.Context, filter store.RunFilter) ([]model.Run, error)
}

// Collector gathers run metrics from the store.
type Collector struct {
	runs  RunLister
	clock signal.Clock
}

// NewCollector creates a new metrics collector.
func NewCollector(runs RunLister) *Collector {
	return &Collector{runs: runs, clock: signal.SystemClock{}}
}

// Collect gathers a snapshot of run metrics over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := c.clock.Now()
	snap := &MetricsSnapshot{LookbackHours: lookbackHours, CollectedAt: now}

	runs, err := c.runs.ListRuns(ctx, store.RunFilter{
		CreatedAfter: now.Add(-time.Duration(lookbackHours) * time.Hour),
		Limit:        maxRuns,
	})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	snap.RunsTotal = len(runs)
	streakOpen := true
	for _, r := range runs {
		switch r.Status {
		case model.RunStatusComplete:
			snap.RunsComplete++
		case model.RunStatusFailed:
			snap.RunsFailed++
		case model.RunStatusRunning:
			snap.RunsRunning++
		}

		if r.Summary != nil {
			snap.Records += r.Summary.Total
			snap.Qualified += r.Summary.Qualified
			snap.FilteredOut += r.Summary.FilteredOut
			snap.DataErrors += r.Summary.DataErrors
			snap.ConfigErrors += r.Summary.ConfigErrors
		}

		// Runs are newest first; the streak ends at the first completed
		// run that qualified anything.
		if streakOpen && r.Status == model.RunStatusComplete {
			if r.Summary != nil && r.Summary.Qualified > 0 {
				streakOpen = false
			} else {
				snap.NoLeadStreak++
			}
		}
	}

	if finished := snap.RunsComplete + snap.RunsFailed; finished > 0 {
		snap.RunFailRate = ratio(snap.RunsFailed, finished)
	}
	if snap.Records > 0 {
		snap.QualifiedRate = ratio(snap.Qualified, snap.Records)
		snap.DataErrorRate = ratio(snap.DataErrors, snap.Records)
	}
	return snap, nil
}

func ratio(n, d int) float64 {
	return math.Round(float64(n)/float64(d)*10000) / 10000
}
