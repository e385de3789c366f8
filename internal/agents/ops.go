package agents

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"studioflow/internal/domain"
)

const (
	// WorkloadStep is added to an employee's workload per assigned task.
	WorkloadStep = 0.1

	placeholderYesterday = "Standup not submitted yet"
	placeholderToday     = "Waiting for standup"
	dateLayout           = "2006-01-02"
)

// OpsStore is the slice of the ledger the operations unit reads and writes.
type OpsStore interface {
	ActiveEmployees(ctx context.Context) ([]domain.Employee, error)
	StandupsByDate(ctx context.Context, date string) ([]domain.StandupEntry, error)
	InsertStandup(ctx context.Context, s domain.StandupEntry) (domain.StandupEntry, error)
	AssignTask(ctx context.Context, taskID, employeeID string) error
	UpdateEmployeeWorkload(ctx context.Context, id string, workload float64) (float64, error)
	TasksByAssignee(ctx context.Context, employeeID string) ([]domain.Task, error)
	TasksByStatus(ctx context.Context, status string) ([]domain.Task, error)
	TasksUpdatedBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error)
	ListProjects(ctx context.Context, statuses ...string) ([]domain.Project, error)
}

// Notifier delivers a direct message to an employee's chat.
type Notifier interface {
	Notify(ctx context.Context, chatID, text string) error
}

// Ops runs the team's routine operations: standups, assignment, nudges and
// the daily summary.
type Ops struct {
	Base
	Store    OpsStore
	Notifier Notifier
	Now      func() time.Time
}

func (u Ops) now() time.Time {
	if u.Now != nil {
		return u.Now()
	}
	return time.Now()
}

type StandupCollection struct {
	Collected int                   `json:"standupsCollected"`
	Created   []domain.StandupEntry `json:"created"`
	Summary   string                `json:"summary"`
}

// CollectStandups seeds a placeholder standup for every active employee who
// has none on date.
func (u Ops) CollectStandups(ctx context.Context, date time.Time) (StandupCollection, error) {
	day := date.Format(dateLayout)
	u.logf("ops: collecting standups for %s", day)
	employees, err := u.Store.ActiveEmployees(ctx)
	if err != nil {
		return StandupCollection{}, fmt.Errorf("active employees: %w", err)
	}
	existing, err := u.Store.StandupsByDate(ctx, day)
	if err != nil {
		return StandupCollection{}, fmt.Errorf("standups for %s: %w", day, err)
	}
	submitted := make(map[string]bool, len(existing))
	for _, s := range existing {
		submitted[s.EmployeeID] = true
	}

	out := StandupCollection{Created: []domain.StandupEntry{}}
	for _, e := range employees {
		if submitted[e.ID] {
			continue
		}
		s, err := u.Store.InsertStandup(ctx, domain.StandupEntry{
			EmployeeID: e.ID,
			Date:       day,
			Yesterday:  placeholderYesterday,
			Today:      placeholderToday,
		})
		if err != nil {
			return out, fmt.Errorf("create standup for %s: %w", e.Name, err)
		}
		out.Created = append(out.Created, s)
	}
	out.Collected = len(existing) + len(out.Created)
	if len(out.Created) > 0 {
		out.Summary = fmt.Sprintf("%d standups collected. %d new standups created.", out.Collected, len(out.Created))
	} else {
		out.Summary = fmt.Sprintf("%d standups collected. The whole team has submitted.", out.Collected)
	}
	return out, nil
}

type Assignment struct {
	TaskID       string  `json:"taskId"`
	EmployeeID   string  `json:"employeeId"`
	EmployeeName string  `json:"employeeName"`
	Workload     float64 `json:"workload"`
}

type AssignmentResult struct {
	Assigned    int          `json:"tasksAssigned"`
	Assignments []Assignment `json:"assignments"`
	Summary     string       `json:"summary"`
}

func assignable(role string) bool {
	switch role {
	case domain.RoleDeveloper, domain.RoleDesigner, domain.RoleQA:
		return true
	}
	return false
}

// AssignTasks hands taskIDs out round robin over the eligible employees,
// least loaded first. Each assignment raises the assignee's workload by
// WorkloadStep, capped at 1.
func (u Ops) AssignTasks(ctx context.Context, taskIDs []string) (AssignmentResult, error) {
	u.logf("ops: assigning %d tasks", len(taskIDs))
	out := AssignmentResult{Assignments: []Assignment{}}
	if len(taskIDs) == 0 {
		out.Summary = "No tasks to assign."
		return out, nil
	}
	employees, err := u.Store.ActiveEmployees(ctx)
	if err != nil {
		return out, fmt.Errorf("active employees: %w", err)
	}
	var pool []domain.Employee
	for _, e := range employees {
		if assignable(e.Role) {
			pool = append(pool, e)
		}
	}
	if len(pool) == 0 {
		out.Summary = "No developers available for assignment."
		return out, nil
	}
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].WorkloadScore < pool[j].WorkloadScore })

	for i, taskID := range taskIDs {
		e := &pool[i%len(pool)]
		if err := u.Store.AssignTask(ctx, taskID, e.ID); err != nil {
			return out, fmt.Errorf("assign task %s: %w", taskID, err)
		}
		w, err := u.Store.UpdateEmployeeWorkload(ctx, e.ID, clampFloat(e.WorkloadScore+WorkloadStep, 0, 1))
		if err != nil {
			return out, fmt.Errorf("update workload for %s: %w", e.Name, err)
		}
		e.WorkloadScore = w
		out.Assignments = append(out.Assignments, Assignment{TaskID: taskID, EmployeeID: e.ID, EmployeeName: e.Name, Workload: w})
	}
	out.Assigned = len(out.Assignments)
	out.Summary = fmt.Sprintf("%d tasks assigned. Workload balanced.", out.Assigned)
	return out, nil
}

type NudgeResult struct {
	NudgesSent int    `json:"nudgesSent"`
	Summary    string `json:"summary"`
}

// NudgeLateTasks reminds every active employee holding overdue, unfinished tasks.
// Without a Notifier or a chat id the reminder is only logged.
func (u Ops) NudgeLateTasks(ctx context.Context) (NudgeResult, error) {
	u.logf("ops: looking for late tasks")
	employees, err := u.Store.ActiveEmployees(ctx)
	if err != nil {
		return NudgeResult{}, fmt.Errorf("active employees: %w", err)
	}
	now := u.now()
	var out NudgeResult
	for _, e := range employees {
		tasks, err := u.Store.TasksByAssignee(ctx, e.ID)
		if err != nil {
			return out, fmt.Errorf("tasks for %s: %w", e.Name, err)
		}
		var late []string
		for _, t := range tasks {
			if t.DueDate == nil || t.Status == domain.TaskDone {
				continue
			}
			due, err := time.Parse(time.RFC3339, *t.DueDate)
			if err != nil {
				continue
			}
			if due.Before(now) {
				late = append(late, "- "+t.Title)
			}
		}
		if len(late) == 0 {
			continue
		}
		msg := fmt.Sprintf("Hi %s, a few tasks have slipped past their due date:\n\n%s\n\nLet me know if you need help, we'll sort it out together.",
			e.Name, strings.Join(late, "\n"))
		if u.Notifier == nil || e.ChatID == "" {
			u.logf("ops: nudge for %s: %s", e.Name, msg)
			out.NudgesSent++
			continue
		}
		if err := u.Notifier.Notify(ctx, e.ChatID, msg); err != nil {
			u.logf("warn: ops: nudge for %s failed: %v", e.Name, err)
			continue
		}
		out.NudgesSent++
	}
	out.Summary = fmt.Sprintf("Sent reminders for late tasks to %d people.", out.NudgesSent)
	return out, nil
}

type DailySummary struct {
	Stats            DailyStats `json:"stats"`
	Summary          string     `json:"summary"`
	FormattedSummary string     `json:"formattedSummary"`
}

// DailySummary aggregates the activity of date's calendar day in date's location.
func (u Ops) DailySummary(ctx context.Context, date time.Time) (DailySummary, error) {
	u.logf("ops: building daily summary for %s", date.Format(dateLayout))
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.AddDate(0, 0, 1).Add(-time.Second)

	updated, err := u.Store.TasksUpdatedBetween(ctx, start, end)
	if err != nil {
		return DailySummary{}, fmt.Errorf("tasks updated on %s: %w", start.Format(dateLayout), err)
	}
	stats := DailyStats{Date: start}
	for _, t := range updated {
		switch t.Status {
		case domain.TaskDone:
			stats.Completed = append(stats.Completed, t)
		case domain.TaskInProgress:
			stats.Started = append(stats.Started, t)
		}
	}
	if stats.Pending, err = u.Store.TasksByStatus(ctx, domain.TaskTodo); err != nil {
		return DailySummary{}, fmt.Errorf("pending tasks: %w", err)
	}
	if stats.Blocked, err = u.Store.TasksByStatus(ctx, domain.TaskBlocked); err != nil {
		return DailySummary{}, fmt.Errorf("blocked tasks: %w", err)
	}
	if stats.InProgress, err = u.Store.TasksByStatus(ctx, domain.TaskInProgress); err != nil {
		return DailySummary{}, fmt.Errorf("in progress tasks: %w", err)
	}
	standups, err := u.Store.StandupsByDate(ctx, start.Format(dateLayout))
	if err != nil {
		return DailySummary{}, fmt.Errorf("standups: %w", err)
	}
	submitters := map[string]bool{}
	for _, s := range standups {
		submitters[s.EmployeeID] = true
	}
	stats.Standups = len(standups)
	stats.Submitters = len(submitters)
	projects, err := u.Store.ListProjects(ctx, domain.ProjectActive, domain.ProjectPlanning)
	if err != nil {
		return DailySummary{}, fmt.Errorf("active projects: %w", err)
	}
	stats.ActiveProjects = len(projects)

	return DailySummary{
		Stats:            stats,
		Summary:          PlainDailySummary(stats),
		FormattedSummary: FormatDailySummary(stats),
	}, nil
}
