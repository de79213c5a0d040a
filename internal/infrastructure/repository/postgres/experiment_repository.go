package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/olshev/transcript-insight/internal/core/domain"
)

// ExperimentRepository persists experiment configurations and their
// append-only outcome log in Postgres.
type ExperimentRepository struct {
	db *sql.DB
}

func NewExperimentRepository(db *sql.DB) *ExperimentRepository {
	return &ExperimentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ExperimentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across replica startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082901)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS experiments (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	tag TEXT,
	parameters JSONB NOT NULL DEFAULT '{}'::jsonb,
	status TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL,
	activated_at TIMESTAMPTZ,
	deactivated_at TIMESTAMPTZ
);

CREATE TABLE IF NOT EXISTS experiment_outcomes (
	experiment_id TEXT NOT NULL REFERENCES experiments(id) ON DELETE CASCADE,
	trace_id TEXT NOT NULL,
	coverage DOUBLE PRECISION NOT NULL,
	result_len INTEGER NOT NULL,
	trust TEXT NOT NULL,
	latency_ms BIGINT NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_experiments_status ON experiments(status);
CREATE INDEX IF NOT EXISTS idx_experiments_tag ON experiments(tag);
CREATE INDEX IF NOT EXISTS idx_experiment_outcomes_experiment ON experiment_outcomes(experiment_id, recorded_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ExperimentRepository) Create(ctx context.Context, exp *domain.Experiment) error {
	paramsJSON, err := json.Marshal(exp.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	_, err = r.db.ExecContext(ctx, `
INSERT INTO experiments (
	id, name, tag, parameters, status, created_at, updated_at, activated_at, deactivated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		exp.ID, exp.Name, exp.Tag, paramsJSON, string(exp.Status),
		exp.CreatedAt, exp.UpdatedAt, exp.ActivatedAt, exp.DeactivatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert experiment: %w", err)
	}
	return nil
}

func (r *ExperimentRepository) Update(ctx context.Context, exp *domain.Experiment) error {
	paramsJSON, err := json.Marshal(exp.Parameters)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE experiments
SET name = $2, tag = $3, parameters = $4, status = $5, updated_at = $6, activated_at = $7, deactivated_at = $8
WHERE id = $1
`,
		exp.ID, exp.Name, exp.Tag, paramsJSON, string(exp.Status),
		exp.UpdatedAt, exp.ActivatedAt, exp.DeactivatedAt,
	)
	if err != nil {
		return fmt.Errorf("update experiment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrExperimentNotFound, "update experiment", fmt.Errorf("id %s", exp.ID))
	}
	return nil
}

func (r *ExperimentRepository) GetByID(ctx context.Context, id string) (*domain.Experiment, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, name, tag, parameters, status, created_at, updated_at, activated_at, deactivated_at
FROM experiments
WHERE id = $1
`, id)

	exp, err := scanExperiment(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrExperimentNotFound, "get experiment", fmt.Errorf("id %s", id))
		}
		return nil, err
	}

	outcomes, err := r.loadOutcomes(ctx, id)
	if err != nil {
		return nil, err
	}
	exp.Outcomes = outcomes
	return exp, nil
}

func (r *ExperimentRepository) List(ctx context.Context, tag string, status domain.ExperimentStatus) ([]domain.Experiment, error) {
	query := `
SELECT id, name, tag, parameters, status, created_at, updated_at, activated_at, deactivated_at
FROM experiments
WHERE ($1 = '' OR tag = $1) AND ($2 = '' OR status = $2)
ORDER BY created_at DESC
`
	rows, err := r.db.QueryContext(ctx, query, tag, string(status))
	if err != nil {
		return nil, fmt.Errorf("list experiments: %w", err)
	}
	defer rows.Close()

	var out []domain.Experiment
	for rows.Next() {
		exp, err := scanExperiment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate experiments: %w", err)
	}
	return out, nil
}

func (r *ExperimentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM experiments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete experiment: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return domain.WrapError(domain.ErrExperimentNotFound, "delete experiment", fmt.Errorf("id %s", id))
	}
	return nil
}

func (r *ExperimentRepository) AppendOutcome(ctx context.Context, id string, outcome domain.ExperimentOutcome) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO experiment_outcomes (experiment_id, trace_id, coverage, result_len, trust, latency_ms, recorded_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`,
		id, outcome.TraceID, outcome.Coverage, outcome.ResultLen, string(outcome.Trust), outcome.LatencyMs, outcome.RecordedAt,
	)
	if err != nil {
		return fmt.Errorf("append outcome: %w", err)
	}
	return nil
}

func (r *ExperimentRepository) loadOutcomes(ctx context.Context, id string) ([]domain.ExperimentOutcome, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT trace_id, coverage, result_len, trust, latency_ms, recorded_at
FROM experiment_outcomes
WHERE experiment_id = $1
ORDER BY recorded_at DESC
LIMIT 100
`, id)
	if err != nil {
		return nil, fmt.Errorf("load outcomes: %w", err)
	}
	defer rows.Close()

	var out []domain.ExperimentOutcome
	for rows.Next() {
		var o domain.ExperimentOutcome
		var trust string
		if err := rows.Scan(&o.TraceID, &o.Coverage, &o.ResultLen, &trust, &o.LatencyMs, &o.RecordedAt); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.Trust = domain.TrustTier(trust)
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExperiment(row rowScanner) (*domain.Experiment, error) {
	var exp domain.Experiment
	var tag sql.NullString
	var paramsRaw []byte
	var status string

	err := row.Scan(
		&exp.ID, &exp.Name, &tag, &paramsRaw, &status,
		&exp.CreatedAt, &exp.UpdatedAt, &exp.ActivatedAt, &exp.DeactivatedAt,
	)
	if err != nil {
		return nil, err
	}

	exp.Tag = tag.String
	exp.Status = domain.ExperimentStatus(status)
	if err := json.Unmarshal(paramsRaw, &exp.Parameters); err != nil {
		return nil, fmt.Errorf("unmarshal parameters: %w", err)
	}
	return &exp, nil
}
