package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/adlead-cli/internal/config"
)

func testMonitoringConfig() config.MonitoringConfig {
	return config.MonitoringConfig{
		FailureRateThreshold:   0.2,
		DataErrorRateThreshold: 0.25,
		NoLeadStreak:           3,
	}
}

func fastAlerter(cfg config.MonitoringConfig) *Alerter {
	a := NewAlerter(cfg)
	a.policy.InitialBackoff = time.Millisecond
	a.policy.MaxBackoff = time.Millisecond
	return a
}

func TestAlerter_Evaluate_NoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	snap := &MetricsSnapshot{
		RunsTotal:     20,
		RunsComplete:  19,
		RunsFailed:    1,
		RunFailRate:   0.05,
		Records:       400,
		DataErrors:    8,
		DataErrorRate: 0.02,
		NoLeadStreak:  1,
		LookbackHours: 24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestAlerter_Evaluate(t *testing.T) {
	tests := []struct {
		name string
		snap MetricsSnapshot
		want AlertType
		msg  string
	}{
		{
			name: "failure rate",
			snap: MetricsSnapshot{RunsComplete: 6, RunsFailed: 4, RunFailRate: 0.4, LookbackHours: 24},
			want: AlertRunFailureRate,
			msg:  "40.0%",
		},
		{
			name: "config errors",
			snap: MetricsSnapshot{RunsTotal: 2, RunsFailed: 1, ConfigErrors: 1, LookbackHours: 24},
			want: AlertConfigErrors,
			msg:  "1 run(s) aborted",
		},
		{
			name: "data error rate",
			snap: MetricsSnapshot{Records: 100, DataErrors: 40, DataErrorRate: 0.4, LookbackHours: 24},
			want: AlertDataErrorRate,
			msg:  "40 of 100 records",
		},
		{
			name: "no lead streak",
			snap: MetricsSnapshot{RunsComplete: 3, NoLeadStreak: 3, LookbackHours: 24},
			want: AlertNoQualifiedLeads,
			msg:  "Last 3 completed runs",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			alerts := NewAlerter(testMonitoringConfig()).Evaluate(&tt.snap)
			require.Len(t, alerts, 1)
			assert.Equal(t, tt.want, alerts[0].Type)
			assert.Contains(t, alerts[0].Message, tt.msg)
		})
	}
}

func TestAlerter_Evaluate_SmallSamplesIgnored(t *testing.T) {
	a := NewAlerter(testMonitoringConfig())

	alerts := a.Evaluate(&MetricsSnapshot{
		RunsComplete: 2, RunsFailed: 2, RunFailRate: 0.5,
		Records: 10, DataErrors: 9, DataErrorRate: 0.9,
	})
	assert.Empty(t, alerts)
}

func TestAlerter_Evaluate_StreakDisabled(t *testing.T) {
	cfg := testMonitoringConfig()
	cfg.NoLeadStreak = 0
	assert.Empty(t, NewAlerter(cfg).Evaluate(&MetricsSnapshot{NoLeadStreak: 10}))
}

func TestAlerter_SendAlerts(t *testing.T) {
	var received atomic.Int32
	var got Alert
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	sent := fastAlerter(cfg).SendAlerts(context.Background(), []Alert{
		{Type: AlertConfigErrors, Severity: "high", Message: "broken"},
	})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(1), received.Load())
	assert.Equal(t, AlertConfigErrors, got.Type)
}

func TestAlerter_SendAlerts_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	sent := fastAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate}})
	assert.Equal(t, 1, sent)
	assert.Equal(t, int32(2), calls.Load())
}

func TestAlerter_SendAlerts_ClientErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer ts.Close()

	cfg := testMonitoringConfig()
	cfg.WebhookURL = ts.URL
	sent := fastAlerter(cfg).SendAlerts(context.Background(), []Alert{{Type: AlertRunFailureRate}})
	assert.Equal(t, 0, sent)
	assert.Equal(t, int32(1), calls.Load())
}

func TestAlerter_SendAlerts_NoWebhook(t *testing.T) {
	assert.Equal(t, 0, NewAlerter(testMonitoringConfig()).SendAlerts(context.Background(), []Alert{{Type: AlertConfigErrors}}))
}
