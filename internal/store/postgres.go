package store

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/adlead-cli/internal/db"
	"github.com/sells-group/adlead-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

var outcomeColumns = []string{
	"run_id", "seq", "domain", "company_name", "stage", "reason",
	"qualified", "score", "tier", "monthly_leak", "confidence", "payload",
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConns = 10
	pgxCfg.MinConns = 1
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	profile    TEXT NOT NULL,
	input      TEXT NOT NULL DEFAULT '',
	status     TEXT NOT NULL DEFAULT 'running',
	summary    JSONB,
	error      TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS outcomes (
	run_id       TEXT NOT NULL REFERENCES runs(id),
	seq          INTEGER NOT NULL,
	domain       TEXT NOT NULL,
	company_name TEXT NOT NULL,
	stage        TEXT NOT NULL,
	reason       TEXT NOT NULL DEFAULT '',
	qualified    BOOLEAN NOT NULL DEFAULT false,
	score        DOUBLE PRECISION,
	tier         TEXT NOT NULL DEFAULT '',
	monthly_leak NUMERIC(12, 2),
	confidence   TEXT NOT NULL DEFAULT '',
	payload      JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_outcomes_domain ON outcomes(domain);
CREATE INDEX IF NOT EXISTS idx_outcomes_qualified ON outcomes(run_id) WHERE qualified;
`

func (s *PostgresStore) Ping(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, "SELECT 1")
	return eris.Wrap(err, "postgres: ping")
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) CreateRun(ctx context.Context, profile, input string) (*model.Run, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	_, err := s.pool.Exec(ctx,
		`INSERT INTO runs (id, profile, input, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, profile, input, string(model.RunStatusRunning), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: insert run")
	}

	return &model.Run{
		ID:        id,
		Profile:   profile,
		Input:     input,
		Status:    model.RunStatusRunning,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, summary model.RunSummary) error {
	summaryJSON, err := json.Marshal(summary)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal summary")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET summary = $1, status = $2, updated_at = $3 WHERE id = $4`,
		summaryJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) FailRun(ctx context.Context, runID string, reason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET error = $1, status = $2, updated_at = $3 WHERE id = $4`,
		reason, string(model.RunStatusFailed), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrNotFound, "run %s", runID)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	r, err := scanPgRun(s.pool.QueryRow(ctx,
		`SELECT id, profile, input, status, summary, error, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get run %s", runID)
	}
	return r, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, profile, input, status, summary, error, created_at, updated_at FROM runs WHERE true`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	if filter.Profile != "" {
		query += ` AND profile = ` + arg(filter.Profile)
	}
	if !filter.CreatedAfter.IsZero() {
		query += ` AND created_at >= ` + arg(filter.CreatedAfter)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

// SaveOutcomes writes all outcomes of a run in one COPY inside a transaction.
func (s *PostgresStore) SaveOutcomes(ctx context.Context, runID string, outcomes []model.Outcome) error {
	if len(outcomes) == 0 {
		return nil
	}

	rows := make([][]any, 0, len(outcomes))
	for i := range outcomes {
		row, err := flattenOutcome(&outcomes[i])
		if err != nil {
			return err
		}
		rows = append(rows, []any{
			runID, i, row.domain, row.company, row.stage, row.reason,
			row.qualified, row.score, row.tier, row.monthlyLeak, row.confidence, row.payload,
		})
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin outcomes tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := db.CopyRows(ctx, tx, "outcomes", outcomeColumns, rows); err != nil {
		return eris.Wrapf(err, "postgres: save outcomes for run %s", runID)
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit outcomes")
}

func (s *PostgresStore) ListOutcomes(ctx context.Context, runID string, qualifiedOnly bool) ([]model.Outcome, error) {
	query := `SELECT payload FROM outcomes WHERE run_id = $1`
	if qualifiedOnly {
		query += ` AND qualified`
	}
	query += ` ORDER BY seq`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list outcomes %s", runID)
	}
	defer rows.Close()

	var out []model.Outcome
	for rows.Next() {
		var payload []byte
		if err := rows.Scan(&payload); err != nil {
			return nil, eris.Wrap(err, "postgres: scan outcome")
		}
		var o model.Outcome
		if err := json.Unmarshal(payload, &o); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal outcome")
		}
		out = append(out, o)
	}
	return out, eris.Wrap(rows.Err(), "postgres: list outcomes iterate")
}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var summaryJSON []byte

	if err := row.Scan(&r.ID, &r.Profile, &r.Input, &r.Status, &summaryJSON, &r.Error, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	sum, err := decodeSummary(summaryJSON)
	if err != nil {
		return nil, err
	}
	r.Summary = sum
	return &r, nil
}
