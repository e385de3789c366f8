package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"studioflow/internal/agents"
	"studioflow/internal/domain"
	"studioflow/internal/repo"
)

const nameWeekly = "WeeklyReport"

type WeeklyInput struct {
	WeekStart time.Time `json:"weekStart"`
	WeekEnd   time.Time `json:"weekEnd"`
}

type WeeklyResult struct {
	RunID           string `json:"runId"`
	CompletedTasks  int    `json:"completedTasks"`
	OngoingProjects int    `json:"ongoingProjects"`
	BlockedItems    int    `json:"blockedItems"`
	Summary         string `json:"summary"`
}

// RunWeeklyReport reports on the window [WeekStart, WeekEnd], by default the last seven days.
func (e Engine) RunWeeklyReport(ctx context.Context, in WeeklyInput) (WeeklyResult, error) {
	now := e.now()
	if in.WeekEnd.IsZero() {
		in.WeekEnd = now
	}
	if in.WeekStart.IsZero() {
		in.WeekStart = in.WeekEnd.Add(-7 * 24 * time.Hour)
	}
	if in.WeekEnd.Before(in.WeekStart) {
		return WeeklyResult{}, errors.New("week end is before week start")
	}
	var out WeeklyResult
	meta := map[string]string{
		"weekStart": in.WeekStart.UTC().Format(time.RFC3339),
		"weekEnd":   in.WeekEnd.UTC().Format(time.RFC3339),
	}
	run, err := e.saga(ctx, domain.RunWeeklyReport, nameWeekly, meta, func(ctx context.Context, run domain.WorkflowRun) (string, error) {
		completed, err := e.Repo.ListTasks(ctx, repo.TaskFilters{
			Status:      domain.TaskDone,
			UpdatedFrom: in.WeekStart.UTC().Format(time.RFC3339),
			UpdatedTo:   in.WeekEnd.UTC().Format(time.RFC3339),
		})
		if err != nil {
			return "", fmt.Errorf("completed tasks: %w", err)
		}
		projects, err := e.Repo.ListProjects(ctx, domain.ProjectActive, domain.ProjectPlanning)
		if err != nil {
			return "", fmt.Errorf("ongoing projects: %w", err)
		}
		blocked, err := e.Repo.TasksByStatus(ctx, domain.TaskBlocked)
		if err != nil {
			return "", fmt.Errorf("blocked tasks: %w", err)
		}
		recent, err := e.Repo.EventsSince(ctx, in.WeekStart.UTC().Format(time.RFC3339))
		if err != nil {
			return "", fmt.Errorf("events: %w", err)
		}
		out.CompletedTasks = len(completed)
		out.OngoingProjects = len(projects)
		out.BlockedItems = len(blocked)

		if out.Summary, err = e.Units.Narrator.Weekly(ctx, agents.WeeklyStats{
			CompletedTasks:  out.CompletedTasks,
			OngoingProjects: out.OngoingProjects,
			BlockedItems:    out.BlockedItems,
			RecentEvents:    len(recent),
		}); err != nil {
			return "", fmt.Errorf("weekly summary: %w", err)
		}
		return fmt.Sprintf("Weekly report: %d tasks completed, %d active projects, %d blocked items.",
			out.CompletedTasks, out.OngoingProjects, out.BlockedItems), nil
	})
	out.RunID = run.ID
	return out, err
}
