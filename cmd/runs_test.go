package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/adlead-cli/internal/model"
	"github.com/sells-group/adlead-cli/internal/monitoring"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 6, 15, 10, 30, 0, 0, time.UTC)
	runs := []model.Run{
		{
			ID:        "abc12345-6789-0000-0000-000000000000",
			Profile:   "dental_premium_toronto",
			Input:     "prospects.csv",
			Status:    model.RunStatusComplete,
			Summary:   &model.RunSummary{Total: 40, Qualified: 7},
			CreatedAt: now,
			UpdatedAt: now.Add(2 * time.Second),
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Input:     "api:req-1",
			Status:    model.RunStatusFailed,
			Error:     "store: copy failed",
			CreatedAt: now.Add(-1 * time.Hour),
			UpdatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "PROFILE")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "dental_premium_toronto")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "40")
	assert.Contains(t, output, "2026-06-15 10:30")
	assert.Contains(t, output, "default")
	assert.Contains(t, output, "failed")
	assert.NotContains(t, output, "abc12345-6789")
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789-0000-0000-000000000000"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestFormatHealth(t *testing.T) {
	snap := &monitoring.MetricsSnapshot{
		RunsTotal:     6,
		RunsComplete:  4,
		RunsFailed:    2,
		RunFailRate:   0.3333,
		Records:       120,
		Qualified:     6,
		FilteredOut:   90,
		QualifiedRate: 0.05,
		NoLeadStreak:  1,
		LookbackHours: 24,
	}

	var buf bytes.Buffer
	formatHealth(&buf, snap, nil)
	out := buf.String()
	assert.Contains(t, out, "last 24h")
	assert.Contains(t, out, "6 (4 complete, 2 failed, 0 running)")
	assert.Contains(t, out, "33.3%")
	assert.Contains(t, out, "120 (6 qualified, 90 filtered, 0 data errors)")
	assert.Contains(t, out, "No alerts.")

	buf.Reset()
	formatHealth(&buf, snap, []monitoring.Alert{
		{Type: monitoring.AlertRunFailureRate, Severity: "high", Message: "too many failures"},
	})
	out = buf.String()
	assert.Contains(t, out, "Alerts (1):")
	assert.Contains(t, out, "[high] run_failure_rate: too many failures")
	assert.NotContains(t, out, "No alerts.")
}
