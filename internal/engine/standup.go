package engine

import (
	"context"
	"fmt"
	"time"

	"studioflow/internal/domain"
	"studioflow/internal/events"
)

const nameStandup = "DailyStandup"

type StandupInput struct {
	// Date defaults to today.
	Date time.Time `json:"date"`
}

type StandupResult struct {
	RunID             string `json:"runId"`
	StandupsCollected int    `json:"standupsCollected"`
	StandupsCreated   int    `json:"standupsCreated"`
	Summary           string `json:"summary"`
	DailySummary      string `json:"dailySummary"`
	FormattedSummary  string `json:"formattedSummary"`
}

// RunDailyStandup seeds missing standups for the day and summarizes the team's activity.
func (e Engine) RunDailyStandup(ctx context.Context, in StandupInput) (StandupResult, error) {
	if in.Date.IsZero() {
		in.Date = e.now()
	}
	var out StandupResult
	meta := map[string]string{"date": in.Date.Format(time.RFC3339)}
	run, err := e.saga(ctx, domain.RunDailyStandup, nameStandup, meta, func(ctx context.Context, run domain.WorkflowRun) (string, error) {
		collected, err := e.Units.Ops.CollectStandups(ctx, in.Date)
		if err != nil {
			return "", fmt.Errorf("collect standups: %w", err)
		}
		out.StandupsCollected = collected.Collected
		out.StandupsCreated = len(collected.Created)
		for _, s := range collected.Created {
			if _, err := e.Ledger.LogEvent(ctx, domain.EventStandupSubmitted, "standup", s.ID, events.EventPayload{
				"standupId":  s.ID,
				"employeeId": s.EmployeeID,
				"date":       s.Date,
			}); err != nil {
				return "", err
			}
		}

		daily, err := e.Units.Ops.DailySummary(ctx, in.Date)
		if err != nil {
			return "", fmt.Errorf("daily summary: %w", err)
		}
		out.DailySummary = daily.Summary
		out.FormattedSummary = daily.FormattedSummary

		if out.Summary, err = e.Units.Narrator.Standup(ctx, collected.Collected); err != nil {
			return "", fmt.Errorf("standup summary: %w", err)
		}
		return fmt.Sprintf("%d standups collected.", collected.Collected), nil
	})
	out.RunID = run.ID
	return out, err
}
