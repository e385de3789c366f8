package chat

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		name string
		args []string
		ok   bool
	}{
		{"/summary", "summary", nil, true},
		{"/Summary@studio_bot 2024-01-15", "summary", []string{"2024-01-15"}, true},
		{"  /help  ", "help", nil, true},
		{"hello there", "", nil, false},
		{"/", "", nil, false},
		{"", "", nil, false},
	}
	for _, tc := range cases {
		cmd, ok := Parse(tc.in)
		if ok != tc.ok {
			t.Fatalf("Parse(%q) ok = %v", tc.in, ok)
		}
		if !ok {
			continue
		}
		if cmd.Name != tc.name || len(cmd.Args) != len(tc.args) {
			t.Fatalf("Parse(%q) = %+v", tc.in, cmd)
		}
		for i := range tc.args {
			if cmd.Args[i] != tc.args[i] {
				t.Fatalf("Parse(%q) args = %v", tc.in, cmd.Args)
			}
		}
	}
}

func newRouter() *Router {
	return NewRouter(log.New(io.Discard, "", 0))
}

func TestDispatchSummary(t *testing.T) {
	r := newRouter()
	now := time.Date(2024, 3, 8, 12, 0, 0, 0, time.UTC)
	var asked time.Time
	r.HandleSummary(func(_ context.Context, date time.Time) (string, error) {
		asked = date
		return "📊 summary", nil
	}, func() time.Time { return now })

	reply, ok := r.Dispatch(context.Background(), "42", "/summary")
	if !ok || reply.Text != "📊 summary" || !reply.Markdown {
		t.Fatalf("unexpected reply %+v", reply)
	}
	if !asked.Equal(now) {
		t.Fatalf("expected today, got %s", asked)
	}

	if _, ok := r.Dispatch(context.Background(), "42", "/SUMMARY@bot 2024-01-15"); !ok {
		t.Fatal("expected dispatch")
	}
	if got := asked.Format(DateLayout); got != "2024-01-15" {
		t.Fatalf("expected requested date, got %s", got)
	}

	reply, _ = r.Dispatch(context.Background(), "42", "/summary yesterday")
	if !strings.Contains(reply.Text, "YYYY-MM-DD") {
		t.Fatalf("expected date hint, got %q", reply.Text)
	}
}

func TestDispatchFailureApologizes(t *testing.T) {
	r := newRouter()
	r.HandleSummary(func(context.Context, time.Time) (string, error) {
		return "", errors.New("db down")
	}, nil)
	reply, ok := r.Dispatch(context.Background(), "1", "/summary")
	if !ok || !strings.HasPrefix(reply.Text, "Sorry") {
		t.Fatalf("expected apology, got %+v", reply)
	}
	if strings.Contains(reply.Text, "db down") {
		t.Fatal("internal error leaked to chat")
	}
}

func TestDispatchUnknownAndPlainText(t *testing.T) {
	r := newRouter()
	reply, ok := r.Dispatch(context.Background(), "1", "/dance")
	if !ok || !strings.Contains(reply.Text, "/help") {
		t.Fatalf("expected help hint, got %+v", reply)
	}
	if _, ok := r.Dispatch(context.Background(), "1", "good morning"); ok {
		t.Fatal("plain text must not dispatch")
	}
	help, _ := r.Dispatch(context.Background(), "1", "/help")
	if !strings.Contains(help.Text, "/start") || !strings.Contains(help.Text, "/help") {
		t.Fatalf("help lists commands: %q", help.Text)
	}
}
