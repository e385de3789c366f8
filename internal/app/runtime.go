// Package app assembles the long-lived pieces shared by the CLI and the server.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"studioflow/internal/agents"
	"studioflow/internal/chat"
	"studioflow/internal/config"
	"studioflow/internal/db"
	"studioflow/internal/engine"
	"studioflow/internal/integrations"
	"studioflow/internal/llm"
	"studioflow/internal/migrate"
)

// Runtime is created once at start-up and closed at shutdown.
type Runtime struct {
	Config    *config.Config
	DB        *sql.DB
	Engine    engine.Engine
	Router    *chat.Router
	Telegram  *integrations.Telegram
	WhatsApp  *integrations.WhatsApp
	CodeHost  integrations.CodeHost
	Calendar  integrations.Calendar
	Ticketing integrations.Ticketing
	Logger    *log.Logger

	mu      sync.RWMutex
	chatIDs []string
}

// Open connects the database, applies migrations and wires the engine to the
// generation backend and the integration clients configured in cfg.
func Open(ctx context.Context, cfg *config.Config, logger *log.Logger) (*Runtime, error) {
	if logger == nil {
		logger = log.Default()
	}
	if cfg == nil {
		cfg = config.Default()
	}
	conn, err := db.Open(db.Config{Workspace: cfg.Workspace, Path: cfg.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := migrate.Migrate(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	var gen llm.Generator
	if cfg.Generation.Configured() {
		client, err := llm.NewAnthropic(ctx, llm.Config{
			APIKey:      cfg.Generation.APIKey,
			Model:       cfg.Generation.Model,
			MaxTokens:   cfg.Generation.MaxTokens,
			UseBedrock:  cfg.Generation.UseBedrock,
			AWSRegion:   cfg.Generation.AWSRegion,
			AWSProfile:  cfg.Generation.AWSProfile,
			Temperature: cfg.Generation.Temperature,
		})
		if err != nil {
			logger.Printf("warn: generation disabled: %v", err)
		} else {
			client.Logger = logger
			gen = client
		}
	} else {
		logger.Printf("warn: no generation credentials, decision units use their rules")
	}

	opts := integrations.OptionsFrom(cfg)
	opts.Logger = logger
	rt := &Runtime{
		Config:    cfg,
		DB:        conn,
		Router:    chat.NewRouter(logger),
		Telegram:  integrations.NewTelegram(cfg.Telegram, opts),
		WhatsApp:  integrations.NewWhatsApp(cfg.WhatsApp, opts),
		CodeHost:  integrations.NewCodeHost(cfg.GitHub, opts),
		Calendar:  integrations.NewCalendar(cfg.Calendar, opts),
		Ticketing: integrations.NewTicketing(cfg.ClickUp, opts),
		Logger:    logger,
		chatIDs:   append([]string(nil), cfg.Telegram.ChatIDs...),
	}
	rt.Engine = engine.New(conn, cfg, gen)
	rt.Engine.Logger = logger
	rt.Engine.Units = engine.DefaultUnits(agents.Base{Generator: gen, Logger: logger}, rt.Engine.Repo, rt.Telegram)

	rt.Router.HandleSummary(func(ctx context.Context, date time.Time) (string, error) {
		s, err := rt.Engine.DailySummary(ctx, date)
		if err != nil {
			return "", err
		}
		return s.FormattedSummary, nil
	}, rt.Engine.Now)
	rt.Telegram.SetRouter(rt.Router)
	rt.WhatsApp.SetRouter(rt.Router)
	return rt, nil
}

// Close stops polling and releases the database.
func (r *Runtime) Close() error {
	if r == nil {
		return nil
	}
	r.Telegram.StopPolling()
	if r.DB != nil {
		return r.DB.Close()
	}
	return nil
}

// SummaryChats are the chats that receive the daily summary by default.
func (r *Runtime) SummaryChats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.chatIDs...)
}

func (r *Runtime) SetSummaryChats(ids []string) {
	r.mu.Lock()
	r.chatIDs = append([]string(nil), ids...)
	r.mu.Unlock()
}

// SendDailySummary builds the summary for date and sends it to chatIDs, or to
// SummaryChats when chatIDs is empty. It returns the chats that received it.
func (r *Runtime) SendDailySummary(ctx context.Context, date time.Time, chatIDs []string) (agents.DailySummary, []string, error) {
	summary, err := r.Engine.DailySummary(ctx, date)
	if err != nil {
		return agents.DailySummary{}, nil, err
	}
	if len(chatIDs) == 0 {
		chatIDs = r.SummaryChats()
	}
	var sent []string
	var errs []error
	for _, id := range chatIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, err := r.Telegram.SendMessageWithMarkdown(ctx, id, summary.FormattedSummary); err != nil {
			errs = append(errs, fmt.Errorf("chat %s: %w", id, err))
			continue
		}
		sent = append(sent, id)
	}
	return summary, sent, errors.Join(errs...)
}

// WatchConfig reloads the summary chat list whenever the config file at path
// changes. It blocks until ctx is done.
func (r *Runtime) WatchConfig(ctx context.Context, path string) error {
	return config.Watch(ctx, path, r.Logger, func(cfg *config.Config) {
		r.SetSummaryChats(cfg.Telegram.ChatIDs)
		r.Logger.Printf("config reloaded: %d summary chats", len(cfg.Telegram.ChatIDs))
	})
}
