package agents

import (
	"context"
	"fmt"
	"strings"
)

type WeeklyStats struct {
	CompletedTasks  int `json:"completedTasks"`
	OngoingProjects int `json:"ongoingProjects"`
	BlockedItems    int `json:"blockedItems"`
	RecentEvents    int `json:"recentEvents"`
}

// Narrator turns workflow numbers into a short human summary.
type Narrator struct {
	Base
}

func proseOnly(raw string) (string, error) { return raw, nil }

func (u Narrator) Weekly(ctx context.Context, s WeeklyStats) (string, error) {
	return decide(ctx, u.Base, decision[string]{
		unit:        "narrator",
		start:       "summarizing the week",
		temperature: 0.7,
		prompt: func() string {
			return fmt.Sprintf("Write a weekly report summary in a friendly, professional tone. Data: %d completed tasks, %d active projects, %d blocked items, %d events. Add priorities and recommendations.",
				s.CompletedTasks, s.OngoingProjects, s.BlockedItems, s.RecentEvents)
		},
		extract:  strings.TrimSpace,
		parse:    proseOnly,
		fallback: func() string { return weeklyTemplate(s) },
	}), nil
}

func weeklyTemplate(s WeeklyStats) string {
	status := "✅ Nothing blocked, work is flowing."
	if s.BlockedItems > 0 {
		status = "⚠️ There are blocked items that need attention."
	}
	return fmt.Sprintf("Weekly summary:\n- Completed tasks: %d\n- Active projects: %d\n- Blocked items: %d\n- Total events: %d\n\n%s",
		s.CompletedTasks, s.OngoingProjects, s.BlockedItems, s.RecentEvents, status)
}

// Standup summarizes a standup collection round.
func (u Narrator) Standup(ctx context.Context, collected int) (string, error) {
	if collected == 0 {
		return "No standups collected yet today. Waiting on the team.", nil
	}
	return decide(ctx, u.Base, decision[string]{
		unit:        "narrator",
		start:       "summarizing standups",
		temperature: 0.7,
		prompt: func() string {
			return fmt.Sprintf("%d standups were collected today. Write a daily standup summary in a friendly, professional tone covering finished work, ongoing work and blockers.", collected)
		},
		extract:  strings.TrimSpace,
		parse:    proseOnly,
		fallback: func() string { return fmt.Sprintf("Summary: %d standups collected today.", collected) },
	}), nil
}
