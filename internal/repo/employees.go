package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"studioflow/internal/domain"
)

const employeeColumns = `id,name,email,role,is_active,workload_score,COALESCE(chat_id,''),created_at`

func scanEmployee(row rowScanner) (domain.Employee, error) {
	var e domain.Employee
	var active int
	err := row.Scan(&e.ID, &e.Name, &e.Email, &e.Role, &active, &e.WorkloadScore, &e.ChatID, &e.CreatedAt)
	if err == sql.ErrNoRows {
		return e, ErrNotFound
	}
	e.IsActive = active != 0
	return e, err
}

// ClampWorkload bounds a workload score to [0,1].
func ClampWorkload(w float64) float64 {
	if w < 0 {
		return 0
	}
	if w > 1 {
		return 1
	}
	return w
}

func (r Repo) InsertEmployee(ctx context.Context, e domain.Employee) (domain.Employee, error) {
	if e.Name == "" || e.Email == "" {
		return e, errors.New("employee name and email are required")
	}
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.Role == "" {
		e.Role = domain.RoleDeveloper
	}
	if e.CreatedAt == "" {
		e.CreatedAt = r.now()
	}
	e.WorkloadScore = ClampWorkload(e.WorkloadScore)
	active := 0
	if e.IsActive {
		active = 1
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO employees(id,name,email,role,is_active,workload_score,chat_id,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		e.ID, e.Name, e.Email, e.Role, active, e.WorkloadScore, nullable(e.ChatID), e.CreatedAt)
	if err != nil {
		return e, fmt.Errorf("insert employee: %w", err)
	}
	return e, nil
}

func (r Repo) GetEmployee(ctx context.Context, id string) (domain.Employee, error) {
	return scanEmployee(r.DB.QueryRowContext(ctx, `SELECT `+employeeColumns+` FROM employees WHERE id=?`, id))
}

func (r Repo) ListEmployees(ctx context.Context, activeOnly bool) ([]domain.Employee, error) {
	query := `SELECT ` + employeeColumns + ` FROM employees`
	if activeOnly {
		query += ` WHERE is_active=1`
	}
	rows, err := r.DB.QueryContext(ctx, query+` ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

func (r Repo) ActiveEmployees(ctx context.Context) ([]domain.Employee, error) {
	return r.ListEmployees(ctx, true)
}

// UpdateEmployeeWorkload stores the workload clamped to [0,1] and returns the stored value.
func (r Repo) UpdateEmployeeWorkload(ctx context.Context, id string, workload float64) (float64, error) {
	workload = ClampWorkload(workload)
	res, err := r.DB.ExecContext(ctx, `UPDATE employees SET workload_score=? WHERE id=?`, workload, id)
	if err != nil {
		return 0, fmt.Errorf("update workload %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return 0, ErrNotFound
	}
	return workload, nil
}

func (r Repo) SetEmployeeActive(ctx context.Context, id string, active bool) error {
	v := 0
	if active {
		v = 1
	}
	res, err := r.DB.ExecContext(ctx, `UPDATE employees SET is_active=? WHERE id=?`, v, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
