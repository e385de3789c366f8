package engine

import (
	"context"
	"time"

	"studioflow/internal/agents"
	"studioflow/internal/domain"
	"studioflow/internal/events"
)

// DailySummary aggregates date's activity outside of any run. A zero date means today.
func (e Engine) DailySummary(ctx context.Context, date time.Time) (agents.DailySummary, error) {
	if date.IsZero() {
		date = e.now()
	}
	return e.Units.Ops.DailySummary(ctx, date)
}

func (e Engine) NudgeLateTasks(ctx context.Context) (agents.NudgeResult, error) {
	return e.Units.Ops.NudgeLateTasks(ctx)
}

// SetTaskStatus moves a task and records the change. Reaching DONE also
// records a completion event.
func (e Engine) SetTaskStatus(ctx context.Context, taskID, status string, force bool) (domain.Task, error) {
	before, err := e.Repo.GetTask(ctx, taskID)
	if err != nil {
		return before, err
	}
	t, err := e.Repo.UpdateTaskStatus(ctx, taskID, status, force)
	if err != nil || before.Status == t.Status {
		return t, err
	}
	payload := events.EventPayload{"from": before.Status, "to": t.Status, "projectId": t.ProjectID}
	if _, err := e.Ledger.LogEvent(ctx, domain.EventTaskUpdated, "task", t.ID, payload); err != nil {
		return t, err
	}
	if t.Status == domain.TaskDone {
		if _, err := e.Ledger.LogEvent(ctx, domain.EventTaskCompleted, "task", t.ID, events.EventPayload{"title": t.Title, "projectId": t.ProjectID}); err != nil {
			return t, err
		}
	}
	return t, nil
}
