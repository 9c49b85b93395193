package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/adlead-cli/internal/config"
)

const defaultCheckInterval = 5 * time.Minute

// Checker evaluates run health on a fixed interval.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig

	// lastStreak is the no-lead streak seen by the previous tick.
	lastStreak int
}

// NewChecker creates a background run health checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{collector: collector, alerter: alerter, cfg: cfg}
}

// Run checks once immediately, then on every interval until ctx is done.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	zap.L().Info("monitoring: run health checker started",
		zap.Duration("interval", interval),
		zap.Int("lookback_hours", c.cfg.LookbackWindowHours),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		c.tick(ctx)
		select {
		case <-ctx.Done():
			zap.L().Info("monitoring: run health checker stopped")
			return
		case <-ticker.C:
		}
	}
}

// tick runs one check and logs how the no-lead streak moved.
func (c *Checker) tick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	snap, alerts, err := c.Check(ctx)
	if err != nil {
		return
	}

	fields := []zap.Field{
		zap.Int("runs", snap.RunsTotal),
		zap.Float64("run_fail_rate", snap.RunFailRate),
		zap.Float64("qualified_rate", snap.QualifiedRate),
		zap.Int("no_lead_streak", snap.NoLeadStreak),
		zap.Int("alerts", len(alerts)),
	}
	switch {
	case snap.NoLeadStreak > c.lastStreak:
		zap.L().Warn("monitoring: no-lead streak growing", fields...)
	case snap.NoLeadStreak == 0 && c.lastStreak > 0:
		zap.L().Info("monitoring: qualified leads resumed", append(fields, zap.Int("previous_streak", c.lastStreak))...)
	default:
		zap.L().Debug("monitoring: run health", fields...)
	}
	c.lastStreak = snap.NoLeadStreak
}

// Check collects one snapshot, evaluates it and delivers any alerts.
func (c *Checker) Check(ctx context.Context) (*MetricsSnapshot, []Alert, error) {
	snap, err := c.collector.Collect(ctx, c.cfg.LookbackWindowHours)
	if err != nil {
		zap.L().Error("monitoring: collect run metrics", zap.Error(err))
		return nil, nil, err
	}

	alerts := c.alerter.Evaluate(snap)
	if len(alerts) > 0 {
		sent := c.alerter.SendAlerts(ctx, alerts)
		zap.L().Info("monitoring: alerts evaluated",
			zap.Int("triggered", len(alerts)),
			zap.Int("sent", sent),
		)
	}
	return snap, alerts, nil
}
