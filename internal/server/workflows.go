package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"studioflow/internal/agents"
	"studioflow/internal/app"
	"studioflow/internal/engine"
)

const dateLayout = "2006-01-02"

type NewProjectRequest struct {
	Name        string             `json:"name" minLength:"1" maxLength:"200"`
	Description string             `json:"description,omitempty" maxLength:"5000"`
	ClientInfo  *agents.ClientInfo `json:"clientInfo,omitempty"`
}

type DailyStandupRequest struct {
	Date string `json:"date,omitempty" format:"date" doc:"YYYY-MM-DD, defaults to today"`
}

type WeeklyReportRequest struct {
	WeekStart string `json:"weekStart,omitempty" format:"date-time"`
	WeekEnd   string `json:"weekEnd,omitempty" format:"date-time"`
}

type ReleasePrepRequest struct {
	ProjectID string `json:"projectId" minLength:"1"`
	Version   string `json:"version" minLength:"1" maxLength:"50"`
}

type DailySummaryRequest struct {
	Date    string   `json:"date,omitempty" format:"date"`
	ChatIDs []string `json:"chatIds,omitempty"`
}

type WorkflowResponse[T any] struct {
	Success bool `json:"success"`
	Result  T    `json:"result"`
}

type DailySummaryResponse struct {
	Success          bool              `json:"success"`
	Date             string            `json:"date"`
	Summary          string            `json:"summary"`
	FormattedSummary string            `json:"formattedSummary"`
	Stats            agents.DailyStats `json:"stats"`
	SentTo           []string          `json:"sentTo"`
}

func workflowOK[T any](v T) *struct {
	Body WorkflowResponse[T] `json:"body"`
} {
	return &struct {
		Body WorkflowResponse[T] `json:"body"`
	}{Body: WorkflowResponse[T]{Success: true, Result: v}}
}

func subject(ctx context.Context) string {
	if p, found := principalFromContext(ctx); found {
		return p.Subject
	}
	return "anonymous"
}

func parseDate(raw string, loc *time.Location) (time.Time, huma.StatusError) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	d, err := time.ParseInLocation(dateLayout, raw, loc)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request", "invalid date, expected YYYY-MM-DD", map[string]any{"date": raw})
	}
	return d, nil
}

func parseTimestamp(field, raw string) (time.Time, huma.StatusError) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, newAPIError(http.StatusBadRequest, "bad_request", "invalid "+field+", expected RFC 3339", map[string]any{field: raw})
	}
	return t, nil
}

func registerWorkflows(api huma.API, rt *app.Runtime) {
	e := rt.Engine

	huma.Register(api, huma.Operation{
		OperationID: "new-project",
		Method:      http.MethodPost,
		Path:        "/workflows/new-project",
		Summary:     "Bootstrap a project from a client brief",
		Tags:        []string{"workflows"},
		Errors:      []int{http.StatusBadRequest, http.StatusUnprocessableEntity},
	}, func(ctx context.Context, input *struct {
		Body NewProjectRequest `json:"body"`
	}) (*struct {
		Body WorkflowResponse[engine.BootstrapResult] `json:"body"`
	}, error) {
		if strings.TrimSpace(input.Body.Name) == "" {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "name is required", nil)
		}
		rt.Logger.Printf("new-project requested by %s: %s", subject(ctx), input.Body.Name)
		res, err := e.BootstrapProject(ctx, engine.NewProjectInput{
			Name:        input.Body.Name,
			Description: input.Body.Description,
			Client:      input.Body.ClientInfo,
		})
		if err != nil {
			return nil, handleRunError(err, res.RunID)
		}
		return workflowOK(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "daily-standup",
		Method:      http.MethodPost,
		Path:        "/workflows/daily-standup/run",
		Summary:     "Collect standups and summarize the day",
		Tags:        []string{"workflows"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body *DailyStandupRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body WorkflowResponse[engine.StandupResult] `json:"body"`
	}, error) {
		var req DailyStandupRequest
		if input.Body != nil {
			req = *input.Body
		}
		date, derr := parseDate(req.Date, e.Now().Location())
		if derr != nil {
			return nil, derr
		}
		res, err := e.RunDailyStandup(ctx, engine.StandupInput{Date: date})
		if err != nil {
			return nil, handleRunError(err, res.RunID)
		}
		return workflowOK(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "weekly-report",
		Method:      http.MethodPost,
		Path:        "/workflows/weekly-report/run",
		Summary:     "Report on a week of work",
		Tags:        []string{"workflows"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body *WeeklyReportRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body WorkflowResponse[engine.WeeklyResult] `json:"body"`
	}, error) {
		var req WeeklyReportRequest
		if input.Body != nil {
			req = *input.Body
		}
		start, serr := parseTimestamp("weekStart", req.WeekStart)
		if serr != nil {
			return nil, serr
		}
		end, serr := parseTimestamp("weekEnd", req.WeekEnd)
		if serr != nil {
			return nil, serr
		}
		res, err := e.RunWeeklyReport(ctx, engine.WeeklyInput{WeekStart: start, WeekEnd: end})
		if err != nil {
			return nil, handleRunError(err, res.RunID)
		}
		return workflowOK(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "release-prep",
		Method:      http.MethodPost,
		Path:        "/workflows/release-prep",
		Summary:     "Assess quality and write release notes",
		Tags:        []string{"workflows"},
		Errors:      []int{http.StatusBadRequest, http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Body ReleasePrepRequest `json:"body"`
	}) (*struct {
		Body WorkflowResponse[engine.ReleaseResult] `json:"body"`
	}, error) {
		res, err := e.PrepareRelease(ctx, engine.ReleaseInput{
			ProjectID: strings.TrimSpace(input.Body.ProjectID),
			Version:   strings.TrimSpace(input.Body.Version),
		})
		if err != nil {
			return nil, handleRunError(err, res.RunID)
		}
		return workflowOK(res), nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "daily-summary",
		Method:      http.MethodPost,
		Path:        "/workflows/daily-summary",
		Summary:     "Build the daily summary and send it to chats",
		Tags:        []string{"workflows"},
		Errors:      []int{http.StatusBadRequest},
	}, func(ctx context.Context, input *struct {
		Body *DailySummaryRequest `json:"body,omitempty" required:"false"`
	}) (*struct {
		Body DailySummaryResponse `json:"body"`
	}, error) {
		var req DailySummaryRequest
		if input.Body != nil {
			req = *input.Body
		}
		date, derr := parseDate(req.Date, e.Now().Location())
		if derr != nil {
			return nil, derr
		}
		if date.IsZero() {
			date = e.Now()
		}
		summary, sent, err := rt.SendDailySummary(ctx, date, req.ChatIDs)
		if err != nil {
			if summary.FormattedSummary == "" {
				return nil, handleError(err)
			}
			rt.Logger.Printf("warn: daily summary delivery: %v", err)
		}
		return &struct {
			Body DailySummaryResponse `json:"body"`
		}{Body: DailySummaryResponse{
			Success:          true,
			Date:             date.Format(dateLayout),
			Summary:          summary.Summary,
			FormattedSummary: summary.FormattedSummary,
			Stats:            summary.Stats,
			SentTo:           nonNilSlice(sent),
		}}, nil
	})
}
