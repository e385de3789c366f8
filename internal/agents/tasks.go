package agents

import (
	"context"
	"fmt"
	"math"

	"studioflow/internal/domain"
)

// TaskStore persists planned tasks.
type TaskStore interface {
	InsertTask(ctx context.Context, t domain.Task) (domain.Task, error)
}

type BreakdownInput struct {
	ProjectID string    `json:"projectId"`
	Features  []Feature `json:"features"`
}

type Breakdown struct {
	TasksCreated int           `json:"tasksCreated"`
	TaskIDs      []string      `json:"taskIds"`
	Tasks        []domain.Task `json:"tasks"`
}

// Subtask is one role-specific slice of a feature.
type Subtask struct {
	Title         string
	Description   string
	EstimateHours float64
}

var subtaskRoles = []struct {
	suffix string
	share  float64
	what   string
}{
	{"Design", 0.3, "Design the user interface and flows for"},
	{"Backend", 0.4, "Build the API and data layer for"},
	{"Frontend", 0.2, "Implement the user interface for"},
	{"Test", 0.1, "Write and run tests for"},
}

// BreakdownFeature splits f into design, backend, frontend and test subtasks.
// Estimates are 0.3/0.4/0.2/0.1 of the feature estimate, DefaultFeatureHours
// when it has none.
func BreakdownFeature(f Feature) []Subtask {
	total := f.EstimatedHours
	if total <= 0 {
		total = DefaultFeatureHours
	}
	out := make([]Subtask, 0, len(subtaskRoles))
	for _, r := range subtaskRoles {
		out = append(out, Subtask{
			Title:         fmt.Sprintf("%s - %s", f.Name, r.suffix),
			Description:   fmt.Sprintf("%s %s", r.what, f.Name),
			EstimateHours: math.Round(total*r.share*100) / 100,
		})
	}
	return out
}

// TaskPlanner turns features into stored TODO tasks. It is always rule based.
type TaskPlanner struct {
	Base
	Store TaskStore
}

func (u TaskPlanner) Breakdown(ctx context.Context, in BreakdownInput) (Breakdown, error) {
	u.logf("tasks: breaking down %d features for project %s", len(in.Features), in.ProjectID)
	out := Breakdown{TaskIDs: []string{}, Tasks: []domain.Task{}}
	for _, f := range in.Features {
		for _, st := range BreakdownFeature(f) {
			hours := st.EstimateHours
			t, err := u.Store.InsertTask(ctx, domain.Task{
				ProjectID:     in.ProjectID,
				Title:         st.Title,
				Description:   st.Description,
				Status:        domain.TaskTodo,
				EstimateHours: &hours,
			})
			if err != nil {
				return out, fmt.Errorf("create task %q: %w", st.Title, err)
			}
			out.Tasks = append(out.Tasks, t)
			out.TaskIDs = append(out.TaskIDs, t.ID)
		}
	}
	out.TasksCreated = len(out.Tasks)
	return out, nil
}
