// Package engine runs the studio workflows. Every workflow is a fixed,
// sequential saga: it opens a run in the ledger, calls its decision units in
// order and closes the run as COMPLETED or FAILED. Side effects of steps that
// already ran are never compensated.
package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"studioflow/internal/agents"
	"studioflow/internal/config"
	"studioflow/internal/domain"
	"studioflow/internal/events"
	"studioflow/internal/llm"
	"studioflow/internal/repo"
)

var (
	// ErrNotApproved matches the error of a bootstrap rejected by the evaluator.
	ErrNotApproved     = errors.New("project not approved")
	ErrProjectNotFound = errors.New("project not found")
)

// ApprovalError carries the evaluation that stopped a bootstrap. Its message
// is the evaluator's rationale.
type ApprovalError struct {
	Evaluation agents.Evaluation
}

func (e *ApprovalError) Error() string        { return e.Evaluation.Rationale }
func (e *ApprovalError) Is(target error) bool { return target == ErrNotApproved }

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Ledger Ledger
	Units  Units
	Config *config.Config
	Logger *log.Logger
	Now    func() time.Time
}

// New wires an engine over db with the default decision units. gen may be nil,
// in which case every unit uses its rule-based path.
func New(db *sql.DB, cfg *config.Config, gen llm.Generator) Engine {
	e := Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Config: cfg,
		Logger: log.Default(),
		Now:    time.Now,
	}
	e.Ledger = SQLLedger{Repo: e.Repo, Events: e.Events}
	e.Units = DefaultUnits(agents.Base{Generator: gen, Logger: e.Logger}, e.Repo, nil)
	return e
}

// WithClock returns a copy of e whose engine, repo and event timestamps all come from now.
func (e Engine) WithClock(now func() time.Time) Engine {
	e.Now = now
	e.Repo.Now = now
	e.Events.Now = now
	if l, ok := e.Ledger.(SQLLedger); ok {
		l.Repo.Now = now
		l.Events.Now = now
		e.Ledger = l
	}
	if ops, ok := e.Units.Ops.(agents.Ops); ok {
		ops.Now = now
		if r, ok := ops.Store.(repo.Repo); ok {
			r.Now = now
			ops.Store = r
		}
		e.Units.Ops = ops
	}
	if tp, ok := e.Units.Tasks.(agents.TaskPlanner); ok {
		if r, ok := tp.Store.(repo.Repo); ok {
			r.Now = now
			tp.Store = r
		}
		e.Units.Tasks = tp
	}
	return e
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logf(format string, args ...any) {
	l := e.Logger
	if l == nil {
		l = log.Default()
	}
	l.Printf(format, args...)
}

// saga runs body inside a ledger run of runType. The run is closed as
// COMPLETED with the summary body returns, or as FAILED with its error.
func (e Engine) saga(ctx context.Context, runType, name string, metadata any, body func(ctx context.Context, run domain.WorkflowRun) (string, error)) (domain.WorkflowRun, error) {
	run, err := e.Ledger.CreateRun(ctx, runType, domain.RunRunning, e.now(), metadata)
	if err != nil {
		return run, fmt.Errorf("create %s run: %w", runType, err)
	}
	e.logf("%s: run %s started", name, run.ID)
	if _, err := e.Ledger.LogEvent(ctx, domain.EventWorkflowTriggered, "workflow_run", run.ID, events.EventPayload{
		"workflowType":  name,
		"workflowRunId": run.ID,
	}); err != nil {
		return e.fail(ctx, run, name, err)
	}

	summary, err := body(ctx, run)
	if err != nil {
		return e.fail(ctx, run, name, err)
	}
	done, err := e.Ledger.UpdateRunStatus(ctx, run.ID, domain.RunCompleted, summary)
	if err != nil {
		return e.fail(ctx, run, name, err)
	}
	if _, err := e.Ledger.LogEvent(ctx, domain.EventWorkflowCompleted, "workflow_run", run.ID, events.EventPayload{
		"workflowRunId": run.ID,
		"status":        domain.RunCompleted,
		"summary":       summary,
	}); err != nil {
		// The run is already closed; only the notification is missing.
		return done, fmt.Errorf("log completion of run %s: %w", run.ID, err)
	}
	e.logf("%s: run %s completed: %s", name, run.ID, summary)
	return done, nil
}

// fail closes run as FAILED. An error writing the FAILED status is returned
// as is, in place of cause.
func (e Engine) fail(ctx context.Context, run domain.WorkflowRun, name string, cause error) (domain.WorkflowRun, error) {
	e.logf("error: %s: run %s failed: %v", name, run.ID, cause)
	failed, err := e.Ledger.UpdateRunStatus(ctx, run.ID, domain.RunFailed, cause.Error())
	if err != nil {
		return run, err
	}
	if _, err := e.Ledger.LogEvent(ctx, domain.EventWorkflowCompleted, "workflow_run", run.ID, events.EventPayload{
		"workflowRunId": run.ID,
		"status":        domain.RunFailed,
		"summary":       cause.Error(),
	}); err != nil {
		return failed, errors.Join(cause, fmt.Errorf("log failure of run %s: %w", run.ID, err))
	}
	return failed, cause
}
