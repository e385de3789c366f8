// Package chat turns slash commands from messaging platforms into replies.
package chat

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"
)

const DateLayout = "2006-01-02"

type Command struct {
	Name   string
	Args   []string
	ChatID string
}

type Reply struct {
	Text     string
	Markdown bool
}

type Handler func(ctx context.Context, cmd Command) (Reply, error)

// SummaryFunc renders the markdown daily summary for date.
type SummaryFunc func(ctx context.Context, date time.Time) (string, error)

// Parse reads "/name@bot arg1 arg2". ok is false for anything that is not a command.
func Parse(text string) (Command, bool) {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return Command{}, false
	}
	name := strings.TrimPrefix(fields[0], "/")
	name, _, _ = strings.Cut(name, "@")
	if name == "" {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(name), Args: fields[1:]}, true
}

type Router struct {
	Logger *log.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
	help     map[string]string
}

func NewRouter(logger *log.Logger) *Router {
	if logger == nil {
		logger = log.Default()
	}
	r := &Router{Logger: logger, handlers: map[string]Handler{}, help: map[string]string{}}
	r.Handle("start", "Start the bot", r.start)
	r.Handle("help", "Show this help", r.helpText)
	return r
}

// Handle registers h under name, replacing any previous handler.
func (r *Router) Handle(name, description string, h Handler) {
	name = strings.ToLower(strings.TrimPrefix(name, "/"))
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[name] = h
	r.help[name] = description
}

// HandleSummary wires /summary [YYYY-MM-DD] to fn.
func (r *Router) HandleSummary(fn SummaryFunc, now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	r.Handle("summary", "Daily summary, optionally for YYYY-MM-DD", func(ctx context.Context, cmd Command) (Reply, error) {
		date := now()
		if len(cmd.Args) > 0 {
			d, err := time.ParseInLocation(DateLayout, cmd.Args[0], date.Location())
			if err != nil {
				return Reply{Text: fmt.Sprintf("Invalid date %q, use YYYY-MM-DD (for example /summary 2024-01-15).", cmd.Args[0])}, nil
			}
			date = d
		}
		text, err := fn(ctx, date)
		if err != nil {
			return Reply{}, err
		}
		return Reply{Text: text, Markdown: true}, nil
	})
}

// Dispatch runs the handler for text. ok is false when text is not a command.
// Handler errors are logged and answered with an apology.
func (r *Router) Dispatch(ctx context.Context, chatID, text string) (Reply, bool) {
	cmd, ok := Parse(text)
	if !ok {
		return Reply{}, false
	}
	cmd.ChatID = chatID
	r.mu.RLock()
	h, found := r.handlers[cmd.Name]
	r.mu.RUnlock()
	if !found {
		return Reply{Text: fmt.Sprintf("Unknown command /%s. Send /help to see what I can do.", cmd.Name)}, true
	}
	reply, err := h(ctx, cmd)
	if err != nil {
		r.Logger.Printf("error: chat command /%s: %v", cmd.Name, err)
		return Reply{Text: "Sorry, something went wrong while handling /" + cmd.Name + ". Please try again later."}, true
	}
	return reply, true
}

func (r *Router) start(context.Context, Command) (Reply, error) {
	return Reply{Text: "Hello! Welcome to the studioflow bot.\n\nSend /help to see the available commands."}, nil
}

func (r *Router) helpText(context.Context, Command) (Reply, error) {
	r.mu.RLock()
	names := make([]string, 0, len(r.help))
	for name := range r.help {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	b.WriteString("📋 *studioflow commands*\n\n")
	for _, name := range names {
		fmt.Fprintf(&b, "/%s - %s\n", name, r.help[name])
	}
	r.mu.RUnlock()
	b.WriteString("\nExample: /summary 2024-01-15")
	return Reply{Text: b.String(), Markdown: true}, nil
}
