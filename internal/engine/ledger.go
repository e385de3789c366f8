package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"studioflow/internal/domain"
	"studioflow/internal/events"
	"studioflow/internal/repo"
)

// Ledger records workflow runs and domain events.
type Ledger interface {
	CreateRun(ctx context.Context, runType, status string, startedAt time.Time, metadata any) (domain.WorkflowRun, error)
	// UpdateRunStatus sets finishedAt exactly when status is terminal.
	UpdateRunStatus(ctx context.Context, id, status, summary string) (domain.WorkflowRun, error)
	LogEvent(ctx context.Context, evtType, entityKind, entityID string, payload events.EventPayload) (domain.Event, error)
}

// SQLLedger is the Ledger over the sqlite store.
type SQLLedger struct {
	Repo   repo.Repo
	Events events.Writer
}

func (l SQLLedger) CreateRun(ctx context.Context, runType, status string, startedAt time.Time, metadata any) (domain.WorkflowRun, error) {
	meta := ""
	if metadata != nil {
		data, err := json.Marshal(metadata)
		if err != nil {
			return domain.WorkflowRun{}, fmt.Errorf("marshal run metadata: %w", err)
		}
		meta = string(data)
	}
	return l.Repo.CreateRun(ctx, domain.WorkflowRun{
		Type:      runType,
		Status:    status,
		StartedAt: startedAt.UTC().Format(time.RFC3339),
		Metadata:  meta,
	})
}

func (l SQLLedger) UpdateRunStatus(ctx context.Context, id, status, summary string) (domain.WorkflowRun, error) {
	return l.Repo.UpdateRunStatus(ctx, id, status, summary)
}

func (l SQLLedger) LogEvent(ctx context.Context, evtType, entityKind, entityID string, payload events.EventPayload) (domain.Event, error) {
	return l.Events.Append(ctx, nil, evtType, entityKind, entityID, payload)
}
