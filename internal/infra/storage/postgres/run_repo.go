package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/gardentiller/tiller/internal/core/domain"
)

// RunRepo persists validation runs and their per-host results.
type RunRepo struct {
	db *DB
}

// NewRunRepo creates a new PostgreSQL run repository.
func NewRunRepo(db *DB) *RunRepo {
	return &RunRepo{db: db}
}

// SaveRun upserts a run record. Called once when the run starts and
// again when it finishes, so an upsert keeps the call sites simple.
func (r *RunRepo) SaveRun(ctx context.Context, run *domain.ValidationRun) error {
	query := `
		INSERT INTO validation_runs (id, status, host_count, completed, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET status = EXCLUDED.status,
		    completed = EXCLUDED.completed,
		    finished_at = EXCLUDED.finished_at
	`
	var finished *time.Time
	if !run.FinishedAt.IsZero() {
		finished = &run.FinishedAt
	}

	_, err := r.db.ExecContext(
		ctx,
		query,
		run.ID,
		string(run.Status),
		run.HostCount,
		run.Completed,
		run.StartedAt,
		finished,
	)
	if err != nil {
		return fmt.Errorf("failed to save run %s: %w", run.ID, err)
	}
	return nil
}

// SaveHostResult stores one host's result for a run. Results arrive
// once per host, but an interrupted run may be retried, so conflicts
// replace the previous row.
func (r *RunRepo) SaveHostResult(ctx context.Context, runID string, res *domain.HostResult) error {
	steps, err := json.Marshal(res.Steps)
	if err != nil {
		return fmt.Errorf("failed to marshal steps for %s: %w", res.Host, err)
	}

	query := `
		INSERT INTO host_results (run_id, host, status, steps, started_at, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (run_id, host) DO UPDATE
		SET status = EXCLUDED.status,
		    steps = EXCLUDED.steps,
		    finished_at = EXCLUDED.finished_at
	`
	_, err = r.db.ExecContext(
		ctx,
		query,
		runID,
		res.Host,
		string(res.Status),
		steps,
		res.StartedAt,
		res.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to save host result %s/%s: %w", runID, res.Host, err)
	}
	return nil
}

type hostResultRow struct {
	Host       string    `db:"host"`
	Status     string    `db:"status"`
	Steps      []byte    `db:"steps"`
	StartedAt  time.Time `db:"started_at"`
	FinishedAt time.Time `db:"finished_at"`
}

// HostResults loads every host result stored for a run.
func (r *RunRepo) HostResults(ctx context.Context, runID string) ([]*domain.HostResult, error) {
	query := `
		SELECT host, status, steps, started_at, finished_at
		FROM host_results
		WHERE run_id = $1
		ORDER BY host
	`
	var rows []hostResultRow
	if err := r.db.SelectContext(ctx, &rows, query, runID); err != nil {
		return nil, fmt.Errorf("failed to load host results for %s: %w", runID, err)
	}

	out := make([]*domain.HostResult, 0, len(rows))
	for _, row := range rows {
		res := &domain.HostResult{
			Host:       row.Host,
			Status:     domain.StepStatus(row.Status),
			StartedAt:  row.StartedAt,
			FinishedAt: row.FinishedAt,
		}
		if err := json.Unmarshal(row.Steps, &res.Steps); err != nil {
			return nil, fmt.Errorf("failed to decode steps for %s/%s: %w", runID, row.Host, err)
		}
		out = append(out, res)
	}
	return out, nil
}
