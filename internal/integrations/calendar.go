package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studioflow/internal/config"
)

const (
	slotWindow   = 7 * 24 * time.Hour
	workdayStart = 9
	workdayEnd   = 18
)

type CalendarEvent struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Start     time.Time `json:"startTime"`
	End       time.Time `json:"endTime"`
	Attendees []string  `json:"attendees"`
	URL       string    `json:"url,omitempty"`
}

// Calendar schedules meetings for the team.
type Calendar interface {
	ScheduleEvent(ctx context.Context, title string, start, end time.Time, attendees []string) (CalendarEvent, error)
	// FindAvailableSlot returns the first working-hours slot of the given
	// length in the next seven days, or nil when there is none.
	FindAvailableSlot(ctx context.Context, durationMinutes int, attendees []string) (*time.Time, error)
}

func NewCalendar(cfg config.CalendarConfig, opts Options) Calendar {
	if strings.TrimSpace(cfg.ClientID) == "" || strings.TrimSpace(cfg.ClientSecret) == "" || strings.TrimSpace(cfg.RefreshToken) == "" {
		opts.logger().Printf("warn: calendar credentials not set, using simulated calendar")
		return SimulatedCalendar{Now: opts.now}
	}
	calendarID := cfg.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &GoogleCalendar{
		cfg:        cfg,
		calendarID: calendarID,
		api:        rest{BaseURL: cfg.BaseURL, HTTPClient: opts.HTTPClient, Timeout: 30 * time.Second},
		guard:      guard{system: "calendar", opts: opts},
	}
}

type GoogleCalendar struct {
	cfg        config.CalendarConfig
	calendarID string
	api        rest
	guard      guard

	mu      sync.Mutex
	token   string
	expires time.Time
}

// accessToken exchanges the refresh token, reusing the result until shortly before it expires.
func (g *GoogleCalendar) accessToken(ctx context.Context) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	now := g.guard.opts.now()
	if g.token != "" && now.Before(g.expires) {
		return g.token, nil
	}

	form := url.Values{}
	form.Set("client_id", g.cfg.ClientID)
	form.Set("client_secret", g.cfg.ClientSecret)
	form.Set("refresh_token", g.cfg.RefreshToken)
	form.Set("grant_type", "refresh_token")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.cfg.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	client := g.api.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		return "", fmt.Errorf("refresh access token: %w", &APIError{StatusCode: resp.StatusCode, Body: string(data)})
	}
	var tok struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return "", fmt.Errorf("refresh access token: %w", err)
	}
	if tok.AccessToken == "" {
		return "", errors.New("refresh access token: empty token")
	}
	g.token = tok.AccessToken
	g.expires = now.Add(time.Duration(tok.ExpiresIn)*time.Second - time.Minute)
	return g.token, nil
}

func (g *GoogleCalendar) call(ctx context.Context, method, endpoint string, body, out any) error {
	return g.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		token, err := g.accessToken(ctx)
		if err != nil {
			return err
		}
		api := g.api
		api.Header = http.Header{"Authorization": {"Bearer " + token}}
		return api.do(ctx, method, endpoint, body, out)
	})
}

func (g *GoogleCalendar) ScheduleEvent(ctx context.Context, title string, start, end time.Time, attendees []string) (CalendarEvent, error) {
	if !end.After(start) {
		return CalendarEvent{}, errors.New("event end must be after start")
	}
	type when struct {
		DateTime string `json:"dateTime"`
		TimeZone string `json:"timeZone"`
	}
	type attendee struct {
		Email string `json:"email"`
	}
	body := struct {
		Summary   string     `json:"summary"`
		Start     when       `json:"start"`
		End       when       `json:"end"`
		Attendees []attendee `json:"attendees"`
	}{
		Summary:   title,
		Start:     when{DateTime: start.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		End:       when{DateTime: end.UTC().Format(time.RFC3339), TimeZone: "UTC"},
		Attendees: make([]attendee, 0, len(attendees)),
	}
	for _, a := range attendees {
		body.Attendees = append(body.Attendees, attendee{Email: a})
	}
	var raw struct {
		ID       string `json:"id"`
		Summary  string `json:"summary"`
		HTMLLink string `json:"htmlLink"`
	}
	err := g.call(ctx, http.MethodPost, fmt.Sprintf("calendars/%s/events", url.PathEscape(g.calendarID)), body, &raw)
	if err == nil && raw.ID == "" {
		err = errors.New("calendar returned no event id")
	}
	if err != nil {
		if gerr := g.guard.recover("schedule event", err); gerr != nil {
			return CalendarEvent{}, gerr
		}
		return SimulatedCalendar{Now: g.guard.opts.now}.ScheduleEvent(ctx, title, start, end, attendees)
	}
	if raw.Summary == "" {
		raw.Summary = title
	}
	return CalendarEvent{ID: raw.ID, Title: raw.Summary, Start: start, End: end, Attendees: attendees, URL: raw.HTMLLink}, nil
}

type busySlot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

func (g *GoogleCalendar) FindAvailableSlot(ctx context.Context, durationMinutes int, attendees []string) (*time.Time, error) {
	if durationMinutes <= 0 {
		return nil, errors.New("duration must be positive")
	}
	from := g.guard.opts.now()
	to := from.Add(slotWindow)
	type item struct {
		ID string `json:"id"`
	}
	body := struct {
		TimeMin string `json:"timeMin"`
		TimeMax string `json:"timeMax"`
		Items   []item `json:"items"`
	}{TimeMin: from.UTC().Format(time.RFC3339), TimeMax: to.UTC().Format(time.RFC3339)}
	for _, a := range attendees {
		body.Items = append(body.Items, item{ID: a})
	}
	var raw struct {
		Calendars map[string]struct {
			Busy []busySlot `json:"busy"`
		} `json:"calendars"`
	}
	if err := g.call(ctx, http.MethodPost, "freeBusy", body, &raw); err != nil {
		if gerr := g.guard.recover("find available slot", err); gerr != nil {
			return nil, gerr
		}
		return SimulatedCalendar{Now: g.guard.opts.now}.FindAvailableSlot(ctx, durationMinutes, attendees)
	}
	var busy []busySlot
	for _, c := range raw.Calendars {
		for _, b := range c.Busy {
			if !b.Start.IsZero() && !b.End.IsZero() {
				busy = append(busy, b)
			}
		}
	}
	return firstFreeSlot(from, to, time.Duration(durationMinutes)*time.Minute, busy), nil
}

// firstFreeSlot walks the window in working hours (UTC) and skips over busy intervals.
func firstFreeSlot(from, to time.Time, d time.Duration, busy []busySlot) *time.Time {
	sort.Slice(busy, func(i, j int) bool { return busy[i].Start.Before(busy[j].Start) })
	cur := from.UTC()
	for !cur.Add(d).After(to) {
		day := time.Date(cur.Year(), cur.Month(), cur.Day(), 0, 0, 0, 0, time.UTC)
		open := day.Add(workdayStart * time.Hour)
		closing := day.Add(workdayEnd * time.Hour)
		if cur.Before(open) {
			cur = open
			continue
		}
		if cur.Add(d).After(closing) {
			cur = day.Add(24*time.Hour + workdayStart*time.Hour)
			continue
		}
		moved := false
		for _, b := range busy {
			if b.Start.Before(cur.Add(d)) && b.End.After(cur) {
				cur = b.End.UTC()
				moved = true
				break
			}
		}
		if !moved {
			slot := cur
			return &slot
		}
	}
	return nil
}

// SimulatedCalendar accepts every event and offers a slot two hours out.
type SimulatedCalendar struct {
	Now func() time.Time
}

func (s SimulatedCalendar) ScheduleEvent(_ context.Context, title string, start, end time.Time, attendees []string) (CalendarEvent, error) {
	id := "cal-" + uuid.NewString()[:8]
	return CalendarEvent{
		ID:        id,
		Title:     title,
		Start:     start,
		End:       end,
		Attendees: attendees,
		URL:       "https://calendar.google.com/event?eid=" + id,
	}, nil
}

func (s SimulatedCalendar) FindAvailableSlot(_ context.Context, _ int, _ []string) (*time.Time, error) {
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now()
	}
	slot := now.Add(2 * time.Hour)
	return &slot, nil
}
