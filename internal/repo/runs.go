package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"studioflow/internal/domain"
)

// ErrRunTerminal is returned when a finished run would be transitioned again.
var ErrRunTerminal = errors.New("workflow run already finished")

const runColumns = `id,type,status,started_at,finished_at,COALESCE(metadata_json,''),COALESCE(result_summary,'')`

func scanRun(row rowScanner) (domain.WorkflowRun, error) {
	var run domain.WorkflowRun
	var finished sql.NullString
	err := row.Scan(&run.ID, &run.Type, &run.Status, &run.StartedAt, &finished, &run.Metadata, &run.ResultSummary)
	if err == sql.ErrNoRows {
		return run, ErrNotFound
	}
	if finished.Valid {
		run.FinishedAt = &finished.String
	}
	return run, err
}

// CreateRun inserts a run. Runs created in a terminal status get finished_at set to their start.
func (r Repo) CreateRun(ctx context.Context, run domain.WorkflowRun) (domain.WorkflowRun, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	if run.Status == "" {
		run.Status = domain.RunRunning
	}
	if run.StartedAt == "" {
		run.StartedAt = r.now()
	}
	run.FinishedAt = nil
	if domain.IsTerminalRunStatus(run.Status) {
		finished := run.StartedAt
		run.FinishedAt = &finished
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO workflow_runs(id,type,status,started_at,finished_at,metadata_json,result_summary) VALUES (?,?,?,?,?,?,?)`,
		run.ID, run.Type, run.Status, run.StartedAt, nullableStringPtr(run.FinishedAt), nullable(run.Metadata), nullable(run.ResultSummary))
	if err != nil {
		return run, fmt.Errorf("insert workflow run: %w", err)
	}
	return run, nil
}

// UpdateRunStatus transitions a RUNNING run. finished_at is set exactly when the
// new status is terminal; a run that already finished is left untouched.
func (r Repo) UpdateRunStatus(ctx context.Context, id, status, summary string) (domain.WorkflowRun, error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.WorkflowRun{}, err
	}
	defer tx.Rollback()

	run, err := scanRun(tx.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id=?`, id))
	if err != nil {
		return run, err
	}
	if domain.IsTerminalRunStatus(run.Status) {
		return run, fmt.Errorf("run %s is %s: %w", id, run.Status, ErrRunTerminal)
	}
	run.Status = status
	run.ResultSummary = summary
	run.FinishedAt = nil
	if domain.IsTerminalRunStatus(status) {
		finished := r.now()
		run.FinishedAt = &finished
	}
	if _, err := tx.ExecContext(ctx, `UPDATE workflow_runs SET status=?, finished_at=?, result_summary=? WHERE id=?`,
		run.Status, nullableStringPtr(run.FinishedAt), nullable(run.ResultSummary), run.ID); err != nil {
		return run, fmt.Errorf("update workflow run: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return run, err
	}
	return run, nil
}

func (r Repo) GetRun(ctx context.Context, id string) (domain.WorkflowRun, error) {
	return scanRun(r.DB.QueryRowContext(ctx, `SELECT `+runColumns+` FROM workflow_runs WHERE id=?`, id))
}

// ListRuns returns the newest runs first, optionally filtered by type and status.
func (r Repo) ListRuns(ctx context.Context, runType, status string, limit int) ([]domain.WorkflowRun, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + runColumns + ` FROM workflow_runs WHERE 1=1`
	var args []any
	if runType != "" {
		query += ` AND type=?`
		args = append(args, runType)
	}
	if status != "" {
		query += ` AND status=?`
		args = append(args, status)
	}
	query += ` ORDER BY started_at DESC, rowid DESC LIMIT ?`
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.WorkflowRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, run)
	}
	return res, rows.Err()
}
