package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"studioflow/internal/domain"
)

const taskSelect = `SELECT t.id,t.project_id,t.title,t.description,t.status,t.assignee_id,COALESCE(e.name,''),t.estimate_hours,t.due_date,t.created_at,t.updated_at
FROM tasks t LEFT JOIN employees e ON e.id = t.assignee_id`

func scanTask(row rowScanner) (domain.Task, error) {
	var t domain.Task
	var description, assigneeID, dueDate sql.NullString
	var estimate sql.NullFloat64
	err := row.Scan(&t.ID, &t.ProjectID, &t.Title, &description, &t.Status, &assigneeID, &t.AssigneeName, &estimate, &dueDate, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	if err != nil {
		return t, err
	}
	if description.Valid {
		t.Description = description.String
	}
	if assigneeID.Valid {
		t.AssigneeID = &assigneeID.String
	}
	if estimate.Valid {
		t.EstimateHours = &estimate.Float64
	}
	if dueDate.Valid {
		t.DueDate = &dueDate.String
	}
	return t, nil
}

func (r Repo) InsertTask(ctx context.Context, t domain.Task) (domain.Task, error) {
	if t.Title == "" {
		return t, errors.New("task title is required")
	}
	if t.ProjectID == "" {
		return t, errors.New("task project is required")
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	if t.Status == "" {
		t.Status = domain.TaskTodo
	}
	if !domain.IsTaskStatus(t.Status) {
		return t, fmt.Errorf("unknown task status %q", t.Status)
	}
	if t.CreatedAt == "" {
		t.CreatedAt = r.now()
	}
	if t.UpdatedAt == "" {
		t.UpdatedAt = t.CreatedAt
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO tasks(id,project_id,title,description,status,assignee_id,estimate_hours,due_date,created_at,updated_at)
VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.ProjectID, t.Title, nullable(t.Description), t.Status, nullableStringPtr(t.AssigneeID),
		nullableFloatPtr(t.EstimateHours), nullableStringPtr(t.DueDate), t.CreatedAt, t.UpdatedAt)
	if err != nil {
		return t, fmt.Errorf("insert task: %w", err)
	}
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, id string) (domain.Task, error) {
	return scanTask(r.DB.QueryRowContext(ctx, taskSelect+` WHERE t.id=?`, id))
}

type TaskFilters struct {
	ProjectID  string
	Status     string
	AssigneeID string
	// UpdatedFrom and UpdatedTo bound updated_at inclusively (RFC3339, UTC).
	UpdatedFrom string
	UpdatedTo   string
	Limit       int
}

// ListTasks returns matching tasks in creation order.
func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	var clauses []string
	var args []any
	if f.ProjectID != "" {
		clauses = append(clauses, "t.project_id=?")
		args = append(args, f.ProjectID)
	}
	if f.Status != "" {
		clauses = append(clauses, "t.status=?")
		args = append(args, f.Status)
	}
	if f.AssigneeID != "" {
		clauses = append(clauses, "t.assignee_id=?")
		args = append(args, f.AssigneeID)
	}
	if f.UpdatedFrom != "" {
		clauses = append(clauses, "t.updated_at>=?")
		args = append(args, f.UpdatedFrom)
	}
	if f.UpdatedTo != "" {
		clauses = append(clauses, "t.updated_at<=?")
		args = append(args, f.UpdatedTo)
	}
	where := ""
	if len(clauses) > 0 {
		where = " WHERE " + strings.Join(clauses, " AND ")
	}
	query := taskSelect + where + ` ORDER BY t.created_at ASC, t.rowid ASC`
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) TasksByProject(ctx context.Context, projectID string) ([]domain.Task, error) {
	return r.ListTasks(ctx, TaskFilters{ProjectID: projectID})
}

func (r Repo) TasksByStatus(ctx context.Context, status string) ([]domain.Task, error) {
	return r.ListTasks(ctx, TaskFilters{Status: status})
}

func (r Repo) TasksByAssignee(ctx context.Context, employeeID string) ([]domain.Task, error) {
	return r.ListTasks(ctx, TaskFilters{AssigneeID: employeeID})
}

// TasksUpdatedBetween returns tasks whose last update falls in [from, to].
func (r Repo) TasksUpdatedBetween(ctx context.Context, from, to time.Time) ([]domain.Task, error) {
	return r.ListTasks(ctx, TaskFilters{
		UpdatedFrom: from.UTC().Format(time.RFC3339),
		UpdatedTo:   to.UTC().Format(time.RFC3339),
	})
}

func (r Repo) AssignTask(ctx context.Context, taskID, employeeID string) error {
	res, err := r.DB.ExecContext(ctx, `UPDATE tasks SET assignee_id=?, updated_at=? WHERE id=?`, employeeID, r.now(), taskID)
	if err != nil {
		return fmt.Errorf("assign task %s: %w", taskID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateTaskStatus moves a task to status. Without force only the transitions
// of the task lifecycle are accepted.
func (r Repo) UpdateTaskStatus(ctx context.Context, taskID, status string, force bool) (domain.Task, error) {
	t, err := r.GetTask(ctx, taskID)
	if err != nil {
		return t, err
	}
	if t.Status == status {
		return t, nil
	}
	if err := ensureTaskTransition(t.Status, status, force); err != nil {
		return t, err
	}
	t.Status = status
	t.UpdatedAt = r.now()
	if _, err := r.DB.ExecContext(ctx, `UPDATE tasks SET status=?, updated_at=? WHERE id=?`, t.Status, t.UpdatedAt, t.ID); err != nil {
		return t, fmt.Errorf("update task status: %w", err)
	}
	return t, nil
}

func ensureTaskTransition(oldStatus, newStatus string, force bool) error {
	if !domain.IsTaskStatus(newStatus) {
		return fmt.Errorf("unknown task status %q", newStatus)
	}
	if force {
		return nil
	}
	switch oldStatus {
	case domain.TaskTodo:
		if newStatus == domain.TaskInProgress || newStatus == domain.TaskBlocked {
			return nil
		}
	case domain.TaskInProgress:
		if newStatus == domain.TaskReview || newStatus == domain.TaskBlocked || newStatus == domain.TaskTodo {
			return nil
		}
	case domain.TaskReview:
		if newStatus == domain.TaskDone || newStatus == domain.TaskBlocked || newStatus == domain.TaskInProgress {
			return nil
		}
	case domain.TaskBlocked:
		if newStatus == domain.TaskTodo || newStatus == domain.TaskInProgress {
			return nil
		}
	}
	return fmt.Errorf("invalid task status transition %s -> %s", oldStatus, newStatus)
}

// CountTasksByStatus groups a project's tasks by status; an empty projectID counts all tasks.
func (r Repo) CountTasksByStatus(ctx context.Context, projectID string) (map[string]int, error) {
	query := `SELECT status, count(*) FROM tasks`
	var args []any
	if projectID != "" {
		query += ` WHERE project_id=?`
		args = append(args, projectID)
	}
	rows, err := r.DB.QueryContext(ctx, query+` GROUP BY status`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := map[string]int{}
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		res[status] = count
	}
	return res, rows.Err()
}
