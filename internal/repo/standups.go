package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"studioflow/internal/domain"
)

// DateLayout is the storage format of standup dates.
const DateLayout = "2006-01-02"

func (r Repo) InsertStandup(ctx context.Context, s domain.StandupEntry) (domain.StandupEntry, error) {
	if s.EmployeeID == "" {
		return s, errors.New("standup employee is required")
	}
	if _, err := time.Parse(DateLayout, s.Date); err != nil {
		return s, fmt.Errorf("standup date %q: %w", s.Date, err)
	}
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	if s.CreatedAt == "" {
		s.CreatedAt = r.now()
	}
	_, err := r.DB.ExecContext(ctx, `INSERT INTO standups(id,employee_id,project_id,date,yesterday,today,blockers,created_at) VALUES (?,?,?,?,?,?,?,?)`,
		s.ID, s.EmployeeID, nullableStringPtr(s.ProjectID), s.Date, s.Yesterday, s.Today, nullableStringPtr(s.Blockers), s.CreatedAt)
	if err != nil {
		return s, fmt.Errorf("insert standup: %w", err)
	}
	return s, nil
}

func (r Repo) StandupsByDate(ctx context.Context, date string) ([]domain.StandupEntry, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT id,employee_id,project_id,date,yesterday,today,blockers,created_at FROM standups WHERE date=? ORDER BY created_at ASC, rowid ASC`, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.StandupEntry
	for rows.Next() {
		var s domain.StandupEntry
		var projectID, blockers sql.NullString
		if err := rows.Scan(&s.ID, &s.EmployeeID, &projectID, &s.Date, &s.Yesterday, &s.Today, &blockers, &s.CreatedAt); err != nil {
			return nil, err
		}
		if projectID.Valid {
			s.ProjectID = &projectID.String
		}
		if blockers.Valid {
			s.Blockers = &blockers.String
		}
		res = append(res, s)
	}
	return res, rows.Err()
}
