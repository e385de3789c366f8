package studioflowsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Client is a minimal studioflow HTTP API client.
type Client struct {
	BaseURL     string
	BasePath    string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  60 * time.Second,
	}
}

type ClientInfo struct {
	Name         string `json:"name,omitempty"`
	Email        string `json:"email,omitempty"`
	Company      string `json:"company,omitempty"`
	Requirements string `json:"requirements,omitempty"`
}

// BootstrapResult is the outcome of the new-project workflow (partial).
type BootstrapResult struct {
	RunID         string `json:"runId"`
	ProjectID     string `json:"projectId"`
	TasksCreated  int    `json:"tasksCreated"`
	TasksAssigned int    `json:"tasksAssigned"`
	Summary       string `json:"summary"`
}

type StandupResult struct {
	RunID             string `json:"runId"`
	StandupsCollected int    `json:"standupsCollected"`
	StandupsCreated   int    `json:"standupsCreated"`
	Summary           string `json:"summary"`
	DailySummary      string `json:"dailySummary"`
	FormattedSummary  string `json:"formattedSummary"`
}

type WeeklyResult struct {
	RunID           string `json:"runId"`
	CompletedTasks  int    `json:"completedTasks"`
	OngoingProjects int    `json:"ongoingProjects"`
	BlockedItems    int    `json:"blockedItems"`
	Summary         string `json:"summary"`
}

type QualityReport struct {
	Assessment      string   `json:"assessment"`
	TestSuggestions []string `json:"testSuggestions"`
	QualityScore    int      `json:"qualityScore"`
	ReadyForRelease bool     `json:"readyForRelease"`
}

type ReleaseResult struct {
	RunID             string        `json:"runId"`
	ProjectID         string        `json:"projectId"`
	Version           string        `json:"version"`
	Quality           QualityReport `json:"quality"`
	QualityAssessment string        `json:"qualityAssessment"`
	ReleaseNotes      string        `json:"releaseNotes"`
	Changelog         []string      `json:"changelog"`
}

type DailySummary struct {
	Date             string         `json:"date"`
	Summary          string         `json:"summary"`
	FormattedSummary string         `json:"formattedSummary"`
	Stats            map[string]any `json:"stats"`
	SentTo           []string       `json:"sentTo"`
}

// Run is a run ledger entry.
type Run struct {
	ID            string         `json:"id"`
	Type          string         `json:"type"`
	Status        string         `json:"status"`
	StartedAt     string         `json:"startedAt"`
	FinishedAt    *string        `json:"finishedAt,omitempty"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	ResultSummary string         `json:"resultSummary,omitempty"`
}

// Event represents a ledger event.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Type       string         `json:"type"`
	EntityKind string         `json:"entityKind"`
	EntityID   string         `json:"entityId"`
	Payload    map[string]any `json:"payload"`
}

// APIError wraps non-2xx responses. Code, Message and RunID are filled from
// the error envelope when the body carries one.
type APIError struct {
	StatusCode int
	Body       string
	Code       string
	Message    string
	RunID      string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error: status=%d code=%s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type result[T any] struct {
	Success bool `json:"success"`
	Result  T    `json:"result"`
}

// NewProject runs the project bootstrap workflow.
func (c *Client) NewProject(ctx context.Context, name, description string, client *ClientInfo) (BootstrapResult, error) {
	body := map[string]any{"name": name}
	if description != "" {
		body["description"] = description
	}
	if client != nil {
		body["clientInfo"] = client
	}
	var resp result[BootstrapResult]
	err := c.do(ctx, http.MethodPost, "workflows/new-project", body, &resp)
	return resp.Result, err
}

// RunDailyStandup runs the standup workflow; a zero date means today on the server.
func (c *Client) RunDailyStandup(ctx context.Context, date time.Time) (StandupResult, error) {
	body := map[string]any{}
	if !date.IsZero() {
		body["date"] = date.Format("2006-01-02")
	}
	var resp result[StandupResult]
	err := c.do(ctx, http.MethodPost, "workflows/daily-standup/run", body, &resp)
	return resp.Result, err
}

// RunWeeklyReport reports on [from, to]; zero bounds use the server defaults.
func (c *Client) RunWeeklyReport(ctx context.Context, from, to time.Time) (WeeklyResult, error) {
	body := map[string]any{}
	if !from.IsZero() {
		body["weekStart"] = from.UTC().Format(time.RFC3339)
	}
	if !to.IsZero() {
		body["weekEnd"] = to.UTC().Format(time.RFC3339)
	}
	var resp result[WeeklyResult]
	err := c.do(ctx, http.MethodPost, "workflows/weekly-report/run", body, &resp)
	return resp.Result, err
}

func (c *Client) PrepareRelease(ctx context.Context, projectID, version string) (ReleaseResult, error) {
	var resp result[ReleaseResult]
	err := c.do(ctx, http.MethodPost, "workflows/release-prep", map[string]any{"projectId": projectID, "version": version}, &resp)
	return resp.Result, err
}

// DailySummary builds the day's summary and sends it to chatIDs, or to the
// server's configured chats when none are given.
func (c *Client) DailySummary(ctx context.Context, date time.Time, chatIDs []string) (DailySummary, error) {
	body := map[string]any{}
	if !date.IsZero() {
		body["date"] = date.Format("2006-01-02")
	}
	if len(chatIDs) > 0 {
		body["chatIds"] = chatIDs
	}
	var resp DailySummary
	err := c.do(ctx, http.MethodPost, "workflows/daily-summary", body, &resp)
	return resp, err
}

// ListRuns lists runs newest first; empty filters match everything.
func (c *Client) ListRuns(ctx context.Context, runType, status string, limit int) ([]Run, error) {
	q := url.Values{}
	if runType != "" {
		q.Set("type", runType)
	}
	if status != "" {
		q.Set("status", status)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []Run
	err := c.do(ctx, http.MethodGet, withQuery("runs", q), nil, &resp)
	return resp, err
}

func (c *Client) GetRun(ctx context.Context, id string) (Run, error) {
	var resp Run
	err := c.do(ctx, http.MethodGet, "runs/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// ListEvents returns the latest ledger events, optionally of one type.
func (c *Client) ListEvents(ctx context.Context, evtType string, limit int) ([]Event, error) {
	q := url.Values{}
	if evtType != "" {
		q.Set("type", evtType)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, withQuery("events", q), nil, &resp)
	return resp, err
}

func withQuery(endpoint string, q url.Values) string {
	if len(q) == 0 {
		return endpoint
	}
	return endpoint + "?" + q.Encode()
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var envelope struct {
			Error   string         `json:"error"`
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		}
		if json.Unmarshal(b, &envelope) == nil {
			apiErr.Code = envelope.Code
			apiErr.Message = envelope.Error
			apiErr.RunID, _ = envelope.Details["runId"].(string)
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
