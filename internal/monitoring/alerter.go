package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/resilience"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate   AlertType = "run_failure_rate"
	AlertConfigErrors     AlertType = "config_errors"
	AlertDataErrorRate    AlertType = "data_error_rate"
	AlertNoQualifiedLeads AlertType = "no_qualified_leads"
)

// Minimum sample sizes before rate alerts fire.
const (
	minFinishedRuns = 5
	minRecords      = 20
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds
// and sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
	policy resilience.Policy
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
		policy: resilience.DefaultPolicy().Logged("webhook", "alert"),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	ts := snap.CollectedAt

	finished := snap.RunsComplete + snap.RunsFailed
	if finished >= minFinishedRuns && snap.RunFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Run failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.RunFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.RunsFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.RunFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.RunsFailed,
				"finished":     finished,
			},
			Timestamp: ts,
		})
	}

	if snap.ConfigErrors > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertConfigErrors,
			Severity: "high",
			Message:  fmt.Sprintf("%d run(s) aborted by configuration errors in last %dh", snap.ConfigErrors, snap.LookbackHours),
			Details: map[string]any{
				"config_errors": snap.ConfigErrors,
				"runs_total":    snap.RunsTotal,
			},
			Timestamp: ts,
		})
	}

	if snap.Records >= minRecords && snap.DataErrorRate > a.cfg.DataErrorRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertDataErrorRate,
			Severity: "medium",
			Message: fmt.Sprintf(
				"Data error rate %.1f%% exceeds threshold %.1f%% (%d of %d records in last %dh)",
				snap.DataErrorRate*100, a.cfg.DataErrorRateThreshold*100,
				snap.DataErrors, snap.Records, snap.LookbackHours,
			),
			Details: map[string]any{
				"data_error_rate": snap.DataErrorRate,
				"threshold":       a.cfg.DataErrorRateThreshold,
				"data_errors":     snap.DataErrors,
				"records":         snap.Records,
			},
			Timestamp: ts,
		})
	}

	if a.cfg.NoLeadStreak > 0 && snap.NoLeadStreak >= a.cfg.NoLeadStreak {
		alerts = append(alerts, Alert{
			Type:     AlertNoQualifiedLeads,
			Severity: "medium",
			Message:  fmt.Sprintf("Last %d completed runs produced no qualified leads", snap.NoLeadStreak),
			Details: map[string]any{
				"streak":       snap.NoLeadStreak,
				"threshold":    a.cfg.NoLeadStreak,
				"filtered_out": snap.FilteredOut,
				"records":      snap.Records,
			},
			Timestamp: ts,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		err := resilience.Do(ctx, a.policy, func(ctx context.Context) error {
			return a.sendWebhook(ctx, alert)
		})
		if err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return resilience.NewTransientError(eris.Wrap(err, "monitoring: webhook request"))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resilience.NewStatusError("webhook", resp, body)
	}
	return nil
}
