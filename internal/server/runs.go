package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"studioflow/internal/domain"
	"studioflow/internal/engine"
)

type RunResponse struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	StartedAt     string         `json:"startedAt" format:"date-time"`
	FinishedAt    *string        `json:"finishedAt,omitempty" format:"date-time"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ResultSummary string         `json:"resultSummary,omitempty"`
}

type EventResponse struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts" format:"date-time"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entityKind,omitempty"`
	EntityID   string         `json:"entityId,omitempty"`
	Payload    map[string]any `json:"payload"`
}

func decodeJSONMap(raw string) map[string]any {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return map[string]any{"raw": raw}
	}
	return out
}

func runResponse(r domain.WorkflowRun) RunResponse {
	return RunResponse{
		ID:            r.ID,
		Type:          r.Type,
		Status:        r.Status,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
		Metadata:      decodeJSONMap(r.Metadata),
		ResultSummary: r.ResultSummary,
	}
}

func eventResponse(e domain.Event) EventResponse {
	payload := decodeJSONMap(e.Payload)
	if payload == nil {
		payload = map[string]any{}
	}
	return EventResponse{
		ID:         e.ID,
		TS:         e.TS,
		Type:       e.Type,
		EntityKind: e.EntityKind,
		EntityID:   e.EntityID,
		Payload:    payload,
	}
}

func registerRuns(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-runs",
		Method:      http.MethodGet,
		Path:        "/runs",
		Summary:     "List workflow runs, newest first",
		Tags:        []string{"ledger"},
	}, func(ctx context.Context, input *struct {
		Type   string `query:"type" enum:"PROJECT_BOOTSTRAP,DAILY_STANDUP,WEEKLY_REPORT,RELEASE_PREP"`
		Status string `query:"status" enum:"RUNNING,COMPLETED,FAILED"`
		Limit  int    `query:"limit" default:"50"`
	}) (*struct {
		Body []RunResponse `json:"body"`
	}, error) {
		runs, err := e.Repo.ListRuns(ctx, input.Type, input.Status, normalizeLimit(input.Limit))
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]RunResponse, 0, len(runs))
		for _, r := range runs {
			out = append(out, runResponse(r))
		}
		return &struct {
			Body []RunResponse `json:"body"`
		}{Body: out}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-run",
		Method:      http.MethodGet,
		Path:        "/runs/{id}",
		Summary:     "Get a workflow run",
		Tags:        []string{"ledger"},
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ID string `path:"id"`
	}) (*struct {
		Body RunResponse `json:"body"`
	}, error) {
		run, err := e.Repo.GetRun(ctx, input.ID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RunResponse `json:"body"`
		}{Body: runResponse(run)}, nil
	})
}

func registerEvents(api huma.API, e engine.Engine) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "List recent ledger events",
		Tags:        []string{"ledger"},
	}, func(ctx context.Context, input *struct {
		Type       string `query:"type"`
		EntityKind string `query:"entity_kind"`
		EntityID   string `query:"entity_id"`
		Limit      int    `query:"limit" default:"50"`
	}) (*struct {
		Body []EventResponse `json:"body"`
	}, error) {
		items, err := e.Repo.LatestEvents(ctx, normalizeLimit(input.Limit), input.Type, input.EntityKind, input.EntityID)
		if err != nil {
			return nil, handleError(err)
		}
		out := make([]EventResponse, 0, len(items))
		for _, evt := range items {
			out = append(out, eventResponse(evt))
		}
		return &struct {
			Body []EventResponse `json:"body"`
		}{Body: out}, nil
	})
}
