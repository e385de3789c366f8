package integrations

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"studioflow/internal/chat"
	"studioflow/internal/config"
)

var fixedNow = time.Date(2024, 3, 8, 8, 0, 0, 0, time.UTC)

func testOptions(production bool) Options {
	return Options{
		Production: production,
		Backoff: Backoff{
			Base:        time.Second,
			MaxAttempts: 3,
			Sleep:       func(context.Context, time.Duration) error { return nil },
		},
		Logger: log.New(io.Discard, "", 0),
		Now:    func() time.Time { return fixedNow },
	}
}

func TestBackoffRetriesOnlyRateLimits(t *testing.T) {
	var slept []time.Duration
	b := Backoff{
		Base:        time.Second,
		MaxAttempts: 3,
		Sleep: func(_ context.Context, d time.Duration) error {
			slept = append(slept, d)
			return nil
		},
	}

	calls := 0
	err := b.Do(context.Background(), func(context.Context) error {
		calls++
		return &APIError{StatusCode: http.StatusTooManyRequests}
	})
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected rate limit error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
	if len(slept) != 2 || slept[0] != time.Second || slept[1] != 2*time.Second {
		t.Fatalf("expected doubling delays, got %v", slept)
	}

	slept = nil
	calls = 0
	boom := errors.New("boom")
	err = b.Do(context.Background(), func(context.Context) error {
		calls++
		return boom
	})
	if !errors.Is(err, boom) || calls != 1 || len(slept) != 0 {
		t.Fatalf("non rate-limit error must not retry: err=%v calls=%d slept=%v", err, calls, slept)
	}

	calls = 0
	err = b.Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 2 {
			return fmt.Errorf("wrapped: %w", ErrRateLimited)
		}
		return nil
	})
	if err != nil || calls != 2 {
		t.Fatalf("expected success on retry: err=%v calls=%d", err, calls)
	}
}

func TestBackoffHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	b := Backoff{Base: time.Hour, MaxAttempts: 3}
	err := b.Do(ctx, func(context.Context) error { return ErrRateLimited })
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

func TestAPIErrorRateLimitClassification(t *testing.T) {
	cases := []struct {
		status int
		body   string
		want   bool
	}{
		{http.StatusTooManyRequests, "", true},
		{http.StatusForbidden, `{"message":"API rate limit exceeded"}`, true},
		{http.StatusForbidden, `{"message":"Resource not accessible"}`, false},
		{http.StatusInternalServerError, "rate limit", false},
	}
	for _, tc := range cases {
		err := error(&APIError{StatusCode: tc.status, Body: tc.body})
		if got := errors.Is(err, ErrRateLimited); got != tc.want {
			t.Fatalf("status %d body %q: got %v", tc.status, tc.body, got)
		}
	}
}

func TestCodeHostWithoutTokenIsSimulated(t *testing.T) {
	host := NewCodeHost(config.GitHubConfig{}, testOptions(true))
	commits, err := host.RecentCommits(context.Background(), "acme/app", fixedNow)
	if err != nil {
		t.Fatalf("commits: %v", err)
	}
	if len(commits) != 1 || commits[0].SHA != "abc123" || commits[0].URL != "https://github.com/acme/app/commit/abc123" {
		t.Fatalf("unexpected simulated commits %+v", commits)
	}
	issue, err := host.CreateIssue(context.Background(), "acme/app", "Bug", "")
	if err != nil || issue.URL != "https://github.com/acme/app/issues/1" {
		t.Fatalf("unexpected simulated issue %+v, %v", issue, err)
	}
}

func TestGitHubRecentCommits(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("missing token header: %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/repos/acme/app/commits" || r.URL.Query().Get("per_page") != "100" {
			t.Errorf("unexpected request %s", r.URL)
		}
		fmt.Fprint(w, `[
			{"sha":"1","html_url":"u1","commit":{"message":"fix: login\n\nlong body","author":{"email":"a@x.io","date":"2024-03-07T10:00:00Z"}},"author":{"login":"alice"}},
			{"sha":"2","html_url":"u2","commit":{"message":"chore: deps","author":{"email":"b@x.io","date":"2024-03-07T11:00:00Z"}},"author":null}
		]`)
	}))
	defer srv.Close()

	host := NewCodeHost(config.GitHubConfig{Token: "tok", BaseURL: srv.URL}, testOptions(true))
	commits, err := host.RecentCommits(context.Background(), "acme/app", fixedNow.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("commits: %v", err)
	}
	if len(commits) != 2 {
		t.Fatalf("expected 2 commits, got %d", len(commits))
	}
	if commits[0].Message != "fix: login" || commits[0].Author != "alice" {
		t.Fatalf("unexpected first commit %+v", commits[0])
	}
	if commits[1].Author != "b@x.io" {
		t.Fatalf("expected email fallback, got %q", commits[1].Author)
	}

	if _, err := host.RecentCommits(context.Background(), "not-a-repo", time.Time{}); err == nil {
		t.Fatal("expected repository format error")
	}
}

func TestLiveFailureByEnvironment(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	}))
	defer srv.Close()
	cfg := config.GitHubConfig{Token: "tok", BaseURL: srv.URL}

	dev := NewCodeHost(cfg, testOptions(false))
	commits, err := dev.RecentCommits(context.Background(), "acme/app", fixedNow)
	if err != nil {
		t.Fatalf("development must fall back, got %v", err)
	}
	if len(commits) != 1 || commits[0].SHA != "abc123" {
		t.Fatalf("expected simulated commits, got %+v", commits)
	}

	prod := NewCodeHost(cfg, testOptions(true))
	_, err = prod.RecentCommits(context.Background(), "acme/app", fixedNow)
	var ierr *Error
	if !errors.As(err, &ierr) {
		t.Fatalf("expected typed error, got %v", err)
	}
	if ierr.System != "github" || ierr.Op != "recent commits" {
		t.Fatalf("unexpected error fields %+v", ierr)
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("expected wrapped api error, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("non rate-limit failures must not retry, got %d calls", calls.Load())
	}
}

func TestLiveRateLimitIsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusForbidden)
			fmt.Fprint(w, `{"message":"API rate limit exceeded for user"}`)
			return
		}
		fmt.Fprint(w, `{"number":12,"title":"Bug","html_url":"https://github.com/acme/app/issues/12"}`)
	}))
	defer srv.Close()

	host := NewCodeHost(config.GitHubConfig{Token: "tok", BaseURL: srv.URL}, testOptions(true))
	issue, err := host.CreateIssue(context.Background(), "acme/app", "Bug", "details")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if issue.Number != 12 || calls.Load() != 3 {
		t.Fatalf("unexpected issue %+v after %d calls", issue, calls.Load())
	}
}

func TestClickUpTasks(t *testing.T) {
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "pk_1" {
			t.Errorf("missing api key header")
		}
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/list/L1/task":
			if r.URL.Query().Get("include_closed") != "true" {
				t.Errorf("expected include_closed, got %s", r.URL.RawQuery)
			}
			fmt.Fprint(w, `{"tasks":[{"id":"t1","name":"Ship","status":{"status":"in progress"},
				"assignees":[{"email":"dev@x.io"}],"due_date":"1709892000000","priority":{"id":"2"},
				"url":"https://app.clickup.com/t/t1","list":{"id":"L1"}}]}`)
		case r.Method == http.MethodPost && r.URL.Path == "/list/L1/task":
			json.NewDecoder(r.Body).Decode(&created)
			fmt.Fprint(w, `{"id":"t2","name":"New","status":{"status":"to do"},"assignees":[],"url":"u","list":{"id":"L1"}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tk := NewTicketing(config.ClickUpConfig{APIKey: "pk_1", BaseURL: srv.URL}, testOptions(true))
	tasks, err := tk.GetTasks(context.Background(), "L1", true)
	if err != nil {
		t.Fatalf("tasks: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("expected 1 task, got %d", len(tasks))
	}
	got := tasks[0]
	if got.Status != "in progress" || got.Priority != 2 || got.ListID != "L1" || len(got.Assignees) != 1 || got.Assignees[0] != "dev@x.io" {
		t.Fatalf("unexpected task %+v", got)
	}
	if got.DueDate == nil || !got.DueDate.Equal(time.UnixMilli(1709892000000)) {
		t.Fatalf("unexpected due date %v", got.DueDate)
	}

	due := fixedNow.Add(48 * time.Hour)
	ticket, err := tk.CreateTask(context.Background(), "L1", NewTicket{Name: "New", DueDate: &due, Priority: 3})
	if err != nil || ticket.ID != "t2" || ticket.Status != "to do" {
		t.Fatalf("unexpected ticket %+v, %v", ticket, err)
	}
	if created["name"] != "New" || created["priority"] != float64(3) || created["due_date"] != float64(due.UnixMilli()) {
		t.Fatalf("unexpected create body %v", created)
	}
}

func TestSimulatedTicketing(t *testing.T) {
	tk := NewTicketing(config.ClickUpConfig{}, testOptions(true))
	ticket, err := tk.CreateTask(context.Background(), "L9", NewTicket{Name: "Draft"})
	if err != nil || ticket.Status != "to do" || ticket.ListID != "L9" {
		t.Fatalf("unexpected simulated ticket %+v, %v", ticket, err)
	}
	updated, _ := tk.UpdateTask(context.Background(), "t1", TicketUpdate{Status: "done"})
	if updated.Name != "Updated Task" || updated.Status != "done" {
		t.Fatalf("unexpected simulated update %+v", updated)
	}
	tasks, _ := tk.GetTasks(context.Background(), "L9", false)
	if len(tasks) != 1 || tasks[0].Name != "Sample Task" || tasks[0].Status != "in progress" {
		t.Fatalf("unexpected simulated list %+v", tasks)
	}
}

func TestFirstFreeSlot(t *testing.T) {
	day := func(h, m int) time.Time { return time.Date(2024, 3, 8, h, m, 0, 0, time.UTC) }
	busy := []busySlot{
		{Start: day(10, 30), End: day(11, 0)},
		{Start: day(9, 0), End: day(10, 30)},
	}
	slot := firstFreeSlot(day(7, 30), day(7, 30).Add(slotWindow), time.Hour, busy)
	if slot == nil || !slot.Equal(day(11, 0)) {
		t.Fatalf("expected 11:00, got %v", slot)
	}

	slot = firstFreeSlot(day(17, 30), day(17, 30).Add(slotWindow), time.Hour, nil)
	if slot == nil || !slot.Equal(day(9, 0).Add(24*time.Hour)) {
		t.Fatalf("expected next morning, got %v", slot)
	}

	allWeek := []busySlot{{Start: day(0, 0), End: day(0, 0).Add(8 * 24 * time.Hour)}}
	if slot := firstFreeSlot(day(8, 0), day(8, 0).Add(slotWindow), time.Hour, allWeek); slot != nil {
		t.Fatalf("expected no slot, got %v", slot)
	}
}

func TestGoogleCalendarFindsSlot(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			r.ParseForm()
			if r.Form.Get("grant_type") != "refresh_token" || r.Form.Get("refresh_token") != "rt" {
				t.Errorf("unexpected token form %v", r.Form)
			}
			tokenCalls.Add(1)
			fmt.Fprint(w, `{"access_token":"at","expires_in":3600}`)
		case "/freeBusy":
			if r.Header.Get("Authorization") != "Bearer at" {
				t.Errorf("missing access token")
			}
			fmt.Fprint(w, `{"calendars":{"a@x.io":{"busy":[{"start":"2024-03-08T09:00:00Z","end":"2024-03-08T10:00:00Z"}]}}}`)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	cal := NewCalendar(config.CalendarConfig{
		ClientID: "id", ClientSecret: "secret", RefreshToken: "rt",
		BaseURL: srv.URL, TokenURL: srv.URL + "/token",
	}, testOptions(true))
	for i := 0; i < 2; i++ {
		slot, err := cal.FindAvailableSlot(context.Background(), 30, []string{"a@x.io"})
		if err != nil {
			t.Fatalf("slot: %v", err)
		}
		if slot == nil || !slot.Equal(time.Date(2024, 3, 8, 10, 0, 0, 0, time.UTC)) {
			t.Fatalf("expected 10:00, got %v", slot)
		}
	}
	if tokenCalls.Load() != 1 {
		t.Fatalf("expected cached access token, got %d refreshes", tokenCalls.Load())
	}
}

func TestSimulatedCalendar(t *testing.T) {
	cal := NewCalendar(config.CalendarConfig{}, testOptions(false))
	slot, err := cal.FindAvailableSlot(context.Background(), 30, nil)
	if err != nil || slot == nil || !slot.Equal(fixedNow.Add(2*time.Hour)) {
		t.Fatalf("unexpected simulated slot %v, %v", slot, err)
	}
	ev, err := cal.ScheduleEvent(context.Background(), "Kickoff", fixedNow, fixedNow.Add(time.Hour), []string{"a@x.io"})
	if err != nil || ev.Title != "Kickoff" || !strings.HasPrefix(ev.ID, "cal-") {
		t.Fatalf("unexpected simulated event %+v, %v", ev, err)
	}
}

type sentBody struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

func telegramServer(t *testing.T, updates string, sent chan<- sentBody) *httptest.Server {
	t.Helper()
	var once sync.Once
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/botT0K/sendMessage":
			var b sentBody
			json.NewDecoder(r.Body).Decode(&b)
			sent <- b
			fmt.Fprint(w, `{"ok":true,"result":{"message_id":7,"date":1709884800}}`)
		case "/botT0K/getUpdates":
			body := `{"ok":true,"result":[]}`
			once.Do(func() { body = updates })
			fmt.Fprint(w, body)
		default:
			http.NotFound(w, r)
		}
	}))
}

func summaryRouter() *chat.Router {
	r := chat.NewRouter(log.New(io.Discard, "", 0))
	r.HandleSummary(func(context.Context, time.Time) (string, error) {
		return "📊 *Daily Summary*", nil
	}, func() time.Time { return fixedNow })
	return r
}

func TestTelegramHandleUpdateReplies(t *testing.T) {
	sent := make(chan sentBody, 1)
	srv := telegramServer(t, "", sent)
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "T0K", BaseURL: srv.URL}, testOptions(true))
	tg.SetRouter(summaryRouter())
	err := tg.HandleUpdate(context.Background(), TelegramUpdate{
		UpdateID: 1,
		Message:  &TelegramMessage{Text: "/summary@studio_bot", Chat: TelegramChat{ID: 42}},
	})
	if err != nil {
		t.Fatalf("handle update: %v", err)
	}
	got := <-sent
	if got.ChatID != "42" || got.ParseMode != "Markdown" || got.Text != "📊 *Daily Summary*" {
		t.Fatalf("unexpected reply %+v", got)
	}
}

func TestTelegramPolling(t *testing.T) {
	sent := make(chan sentBody, 4)
	srv := telegramServer(t, `{"ok":true,"result":[{"update_id":5,"message":{"message_id":1,"text":"/help","chat":{"id":9}}}]}`, sent)
	defer srv.Close()

	tg := NewTelegram(config.TelegramConfig{BotToken: "T0K", BaseURL: srv.URL}, testOptions(true))
	tg.SetRouter(summaryRouter())
	if err := tg.StartPolling(context.Background()); err != nil {
		t.Fatalf("start polling: %v", err)
	}
	if err := tg.StartPolling(context.Background()); err != nil {
		t.Fatalf("second start must be a no-op: %v", err)
	}
	select {
	case got := <-sent:
		if got.ChatID != "9" || !strings.Contains(got.Text, "/summary") {
			t.Fatalf("unexpected help reply %+v", got)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reply sent while polling")
	}
	tg.StopPolling()
	tg.StopPolling()
}

func TestSimulatedTelegram(t *testing.T) {
	tg := NewTelegram(config.TelegramConfig{}, testOptions(true))
	if !tg.Simulated() {
		t.Fatal("expected simulated messenger")
	}
	msg, err := tg.SendMessageWithMarkdown(context.Background(), "1", "*hi*")
	if err != nil || msg.Text != "*hi*" || !msg.Timestamp.Equal(fixedNow) {
		t.Fatalf("unexpected simulated message %+v, %v", msg, err)
	}
	if err := tg.Notify(context.Background(), "", "x"); err == nil {
		t.Fatal("expected chat id error")
	}
	if err := tg.StartPolling(context.Background()); err != nil {
		t.Fatalf("simulated polling: %v", err)
	}
	tg.StopPolling()
}

func TestWhatsAppVerifyAndReply(t *testing.T) {
	var sent map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/PN1/messages" {
			http.NotFound(w, r)
			return
		}
		json.NewDecoder(r.Body).Decode(&sent)
		fmt.Fprint(w, `{"messages":[{"id":"wamid.1"}]}`)
	}))
	defer srv.Close()

	wa := NewWhatsApp(config.WhatsAppConfig{
		Enabled: true, AccessToken: "at", PhoneNumberID: "PN1", VerifyToken: "vt", BaseURL: srv.URL,
	}, testOptions(true))

	if c, ok := wa.VerifyWebhook("subscribe", "vt", "123"); !ok || c != "123" {
		t.Fatalf("expected handshake to pass, got %q %v", c, ok)
	}
	if _, ok := wa.VerifyWebhook("subscribe", "nope", "123"); ok {
		t.Fatal("expected wrong token to fail")
	}

	wa.SetRouter(summaryRouter())
	var n WhatsAppWebhook
	payload := `{"entry":[{"changes":[{"value":{"messages":[{"from":"905551112233","type":"text","text":{"body":"/summary"}}]}}]}]}`
	if err := json.Unmarshal([]byte(payload), &n); err != nil {
		t.Fatal(err)
	}
	if err := wa.HandleWebhook(context.Background(), n); err != nil {
		t.Fatalf("handle webhook: %v", err)
	}
	if sent["to"] != "905551112233" || sent["messaging_product"] != "whatsapp" {
		t.Fatalf("unexpected send body %v", sent)
	}
	text, _ := sent["text"].(map[string]any)
	if text["body"] != "📊 *Daily Summary*" {
		t.Fatalf("unexpected reply body %v", text)
	}
}
