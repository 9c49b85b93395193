// Package store persists scoring runs and their per-prospect outcomes.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/config"
	"github.com/sells-group/adlead-cli/internal/model"
)

// ErrNotFound is returned when a run does not exist.
var ErrNotFound = errors.New("store: not found")

// RunFilter specifies criteria for listing runs.
type RunFilter struct {
	Status  model.RunStatus `json:"status,omitempty"`
	Profile string          `json:"profile,omitempty"`
	// CreatedAfter, when set, keeps runs created at or after it.
	CreatedAfter time.Time `json:"created_after,omitzero"`
	Limit        int       `json:"limit,omitempty"`
	Offset       int       `json:"offset,omitempty"`
}

// Store defines the persistence interface for scoring runs.
type Store interface {
	// Runs
	CreateRun(ctx context.Context, profile, input string) (*model.Run, error)
	CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error
	FailRun(ctx context.Context, runID string, reason string) error
	GetRun(ctx context.Context, runID string) (*model.Run, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error)

	// Outcomes
	SaveOutcomes(ctx context.Context, runID string, outcomes []model.Outcome) error
	ListOutcomes(ctx context.Context, runID string, qualifiedOnly bool) ([]model.Outcome, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open connects to the configured store and applies migrations.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	var (
		st  Store
		err error
	)
	switch cfg.Driver {
	case "", "sqlite":
		dsn := cfg.DatabaseURL
		if dsn == "" {
			dsn = "adlead.db"
		}
		st, err = NewSQLite(dsn)
	case "postgres":
		st, err = NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unsupported driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, err
	}
	return st, nil
}

const defaultListLimit = 100

// outcomeRow flattens an outcome into the indexed columns plus a JSON payload.
type outcomeRow struct {
	domain      string
	company     string
	stage       string
	reason      string
	qualified   bool
	score       *float64
	tier        string
	monthlyLeak *float64
	confidence  string
	payload     []byte
}

func flattenOutcome(o *model.Outcome) (outcomeRow, error) {
	payload, err := json.Marshal(o)
	if err != nil {
		return outcomeRow{}, eris.Wrapf(err, "store: marshal outcome %s", o.Prospect.Domain)
	}
	row := outcomeRow{
		domain:    o.Prospect.Domain,
		company:   o.Prospect.CompanyName,
		stage:     string(o.Stage),
		reason:    o.Reason,
		qualified: o.Qualified(),
		payload:   payload,
	}
	if o.Result != nil {
		score := o.Result.Score
		row.score = &score
		row.tier = string(o.Result.Tier)
	}
	if o.Leak != nil {
		leak := o.Leak.MonthlyLeak
		row.monthlyLeak = &leak
		row.confidence = string(o.Leak.Confidence)
	}
	return row, nil
}

func decodeSummary(data []byte) (*model.RunSummary, error) {
	if len(data) == 0 {
		return nil, nil
	}
	var sum model.RunSummary
	if err := json.Unmarshal(data, &sum); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal summary")
	}
	return &sum, nil
}
