package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"studioflow/internal/config"
)

type Ticket struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	Status      string     `json:"status"`
	Assignees   []string   `json:"assignees"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    int        `json:"priority,omitempty"`
	URL         string     `json:"url"`
	ListID      string     `json:"listId"`
}

type NewTicket struct {
	Name        string
	Description string
	Assignees   []string
	DueDate     *time.Time
	Priority    int
}

// TicketUpdate changes only the fields that are set.
type TicketUpdate struct {
	Name        string     `json:"name,omitempty"`
	Description *string    `json:"description,omitempty"`
	Status      string     `json:"status,omitempty"`
	Assignees   []string   `json:"assignees,omitempty"`
	DueDate     *time.Time `json:"-"`
	Priority    *int       `json:"priority,omitempty"`
}

// Ticketing mirrors work items into an external tracker.
type Ticketing interface {
	CreateTask(ctx context.Context, listID string, t NewTicket) (Ticket, error)
	UpdateTask(ctx context.Context, taskID string, u TicketUpdate) (Ticket, error)
	GetTasks(ctx context.Context, listID string, includeClosed bool) ([]Ticket, error)
}

func NewTicketing(cfg config.ClickUpConfig, opts Options) Ticketing {
	if strings.TrimSpace(cfg.APIKey) == "" {
		opts.logger().Printf("warn: clickup api key not set, using simulated ticketing")
		return SimulatedTicketing{}
	}
	return &ClickUp{
		api: rest{
			BaseURL:    cfg.BaseURL,
			HTTPClient: opts.HTTPClient,
			Timeout:    30 * time.Second,
			Header:     http.Header{"Authorization": {cfg.APIKey}},
		},
		guard: guard{system: "clickup", opts: opts},
	}
}

type ClickUp struct {
	api   rest
	guard guard
}

type clickupTask struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      struct {
		Status string `json:"status"`
	} `json:"status"`
	Assignees []struct {
		Email string `json:"email"`
	} `json:"assignees"`
	DueDate  string `json:"due_date"`
	Priority *struct {
		ID string `json:"id"`
	} `json:"priority"`
	URL  string `json:"url"`
	List struct {
		ID string `json:"id"`
	} `json:"list"`
}

func (t clickupTask) ticket() Ticket {
	out := Ticket{
		ID:          t.ID,
		Name:        t.Name,
		Description: t.Description,
		Status:      t.Status.Status,
		Assignees:   make([]string, 0, len(t.Assignees)),
		URL:         t.URL,
		ListID:      t.List.ID,
	}
	for _, a := range t.Assignees {
		out.Assignees = append(out.Assignees, a.Email)
	}
	if ms, err := strconv.ParseInt(t.DueDate, 10, 64); err == nil {
		due := time.UnixMilli(ms).UTC()
		out.DueDate = &due
	}
	if t.Priority != nil {
		out.Priority, _ = strconv.Atoi(t.Priority.ID)
	}
	return out
}

func (c *ClickUp) CreateTask(ctx context.Context, listID string, t NewTicket) (Ticket, error) {
	if strings.TrimSpace(listID) == "" || strings.TrimSpace(t.Name) == "" {
		return Ticket{}, errors.New("list id and task name are required")
	}
	body := map[string]any{"name": t.Name}
	if t.Description != "" {
		body["description"] = t.Description
	}
	if len(t.Assignees) > 0 {
		body["assignees"] = t.Assignees
	}
	if t.DueDate != nil {
		body["due_date"] = t.DueDate.UnixMilli()
	}
	if t.Priority > 0 {
		body["priority"] = t.Priority
	}
	var raw clickupTask
	err := c.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		return c.api.do(ctx, http.MethodPost, fmt.Sprintf("list/%s/task", url.PathEscape(listID)), body, &raw)
	})
	if err != nil {
		if gerr := c.guard.recover("create task", err); gerr != nil {
			return Ticket{}, gerr
		}
		return SimulatedTicketing{}.CreateTask(ctx, listID, t)
	}
	return raw.ticket(), nil
}

func (c *ClickUp) UpdateTask(ctx context.Context, taskID string, u TicketUpdate) (Ticket, error) {
	if strings.TrimSpace(taskID) == "" {
		return Ticket{}, errors.New("task id is required")
	}
	body := map[string]any{}
	if u.Name != "" {
		body["name"] = u.Name
	}
	if u.Description != nil {
		body["description"] = *u.Description
	}
	if u.Status != "" {
		body["status"] = u.Status
	}
	if u.Assignees != nil {
		body["assignees"] = u.Assignees
	}
	if u.DueDate != nil {
		body["due_date"] = u.DueDate.UnixMilli()
	}
	if u.Priority != nil {
		body["priority"] = *u.Priority
	}
	var raw clickupTask
	err := c.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		return c.api.do(ctx, http.MethodPut, "task/"+url.PathEscape(taskID), body, &raw)
	})
	if err != nil {
		if gerr := c.guard.recover("update task", err); gerr != nil {
			return Ticket{}, gerr
		}
		return SimulatedTicketing{}.UpdateTask(ctx, taskID, u)
	}
	return raw.ticket(), nil
}

func (c *ClickUp) GetTasks(ctx context.Context, listID string, includeClosed bool) ([]Ticket, error) {
	if strings.TrimSpace(listID) == "" {
		return nil, errors.New("list id is required")
	}
	endpoint := fmt.Sprintf("list/%s/task", url.PathEscape(listID))
	if includeClosed {
		endpoint += "?include_closed=true"
	}
	var raw struct {
		Tasks []clickupTask `json:"tasks"`
	}
	err := c.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		raw.Tasks = nil
		return c.api.do(ctx, http.MethodGet, endpoint, nil, &raw)
	})
	if err != nil {
		if gerr := c.guard.recover("get tasks", err); gerr != nil {
			return nil, gerr
		}
		return SimulatedTicketing{}.GetTasks(ctx, listID, includeClosed)
	}
	out := make([]Ticket, 0, len(raw.Tasks))
	for _, t := range raw.Tasks {
		out = append(out, t.ticket())
	}
	return out, nil
}

type SimulatedTicketing struct{}

func (SimulatedTicketing) CreateTask(_ context.Context, listID string, t NewTicket) (Ticket, error) {
	id := fmt.Sprintf("clickup-task-%d", time.Now().UnixMilli())
	assignees := t.Assignees
	if assignees == nil {
		assignees = []string{}
	}
	return Ticket{
		ID:          id,
		Name:        t.Name,
		Description: t.Description,
		Status:      "to do",
		Assignees:   assignees,
		DueDate:     t.DueDate,
		Priority:    t.Priority,
		URL:         "https://app.clickup.com/t/" + id,
		ListID:      listID,
	}, nil
}

func (SimulatedTicketing) UpdateTask(_ context.Context, taskID string, u TicketUpdate) (Ticket, error) {
	out := Ticket{
		ID:        taskID,
		Name:      u.Name,
		Status:    u.Status,
		Assignees: u.Assignees,
		DueDate:   u.DueDate,
		URL:       "https://app.clickup.com/t/" + taskID,
		ListID:    "mock-list-id",
	}
	if out.Name == "" {
		out.Name = "Updated Task"
	}
	if out.Status == "" {
		out.Status = "to do"
	}
	if out.Assignees == nil {
		out.Assignees = []string{}
	}
	if u.Description != nil {
		out.Description = *u.Description
	}
	if u.Priority != nil {
		out.Priority = *u.Priority
	}
	return out, nil
}

func (SimulatedTicketing) GetTasks(_ context.Context, listID string, _ bool) ([]Ticket, error) {
	return []Ticket{{
		ID:          "clickup-task-1",
		Name:        "Sample Task",
		Description: "This is a sample task",
		Status:      "in progress",
		Assignees:   []string{},
		URL:         "https://app.clickup.com/t/1",
		ListID:      listID,
	}}, nil
}
