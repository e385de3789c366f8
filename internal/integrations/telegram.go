package integrations

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"studioflow/internal/chat"
	"studioflow/internal/config"
)

type SentMessage struct {
	ChatID    string    `json:"chatId"`
	Text      string    `json:"text"`
	MessageID int64     `json:"messageId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Dispatcher answers chat commands.
type Dispatcher interface {
	Dispatch(ctx context.Context, chatID, text string) (chat.Reply, bool)
}

// TelegramUpdate is the subset of a Bot API update that carries a text message.
type TelegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *TelegramMessage `json:"message,omitempty"`
}

type TelegramMessage struct {
	MessageID int64        `json:"message_id"`
	Date      int64        `json:"date"`
	Text      string       `json:"text"`
	Chat      TelegramChat `json:"chat"`
}

type TelegramChat struct {
	ID int64 `json:"id"`
}

// Telegram sends bot messages and answers commands, either through the Bot
// API or, without a token, by logging what would have been sent.
type Telegram struct {
	api       rest
	guard     guard
	simulated bool
	pollWait  time.Duration

	mu     sync.Mutex
	router Dispatcher
	cancel context.CancelFunc
	done   chan struct{}
	offset int64
}

func NewTelegram(cfg config.TelegramConfig, opts Options) *Telegram {
	t := &Telegram{guard: guard{system: "telegram", opts: opts}, pollWait: 30 * time.Second}
	if strings.TrimSpace(cfg.BotToken) == "" {
		opts.logger().Printf("warn: telegram bot token not set, using simulated messenger")
		t.simulated = true
		return t
	}
	t.api = rest{
		BaseURL:    strings.TrimRight(cfg.BaseURL, "/") + "/bot" + cfg.BotToken,
		HTTPClient: opts.HTTPClient,
		Timeout:    45 * time.Second,
	}
	return t
}

// Simulated reports whether the client runs without a bot token.
func (t *Telegram) Simulated() bool { return t.simulated }

// SetRouter installs the command dispatcher used by polling and webhooks.
func (t *Telegram) SetRouter(d Dispatcher) {
	t.mu.Lock()
	t.router = d
	t.mu.Unlock()
}

func (t *Telegram) SendMessage(ctx context.Context, chatID, text string) (SentMessage, error) {
	return t.send(ctx, chatID, text, "")
}

func (t *Telegram) SendMessageWithMarkdown(ctx context.Context, chatID, text string) (SentMessage, error) {
	return t.send(ctx, chatID, text, "Markdown")
}

// Notify sends a plain message.
func (t *Telegram) Notify(ctx context.Context, chatID, text string) error {
	_, err := t.SendMessage(ctx, chatID, text)
	return err
}

func (t *Telegram) send(ctx context.Context, chatID, text, parseMode string) (SentMessage, error) {
	if strings.TrimSpace(chatID) == "" {
		return SentMessage{}, errors.New("chat id is required")
	}
	if t.simulated {
		return t.simulate(chatID, text), nil
	}
	body := map[string]any{"chat_id": chatID, "text": text}
	if parseMode != "" {
		body["parse_mode"] = parseMode
	}
	var raw struct {
		OK     bool `json:"ok"`
		Result struct {
			MessageID int64 `json:"message_id"`
			Date      int64 `json:"date"`
		} `json:"result"`
		Description string `json:"description"`
	}
	err := t.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		if err := t.api.do(ctx, http.MethodPost, "sendMessage", body, &raw); err != nil {
			return err
		}
		if !raw.OK {
			return fmt.Errorf("telegram: %s", raw.Description)
		}
		return nil
	})
	if err != nil {
		if gerr := t.guard.recover("send message", err); gerr != nil {
			return SentMessage{}, gerr
		}
		return t.simulate(chatID, text), nil
	}
	return SentMessage{
		ChatID:    chatID,
		Text:      text,
		MessageID: raw.Result.MessageID,
		Timestamp: time.Unix(raw.Result.Date, 0).UTC(),
	}, nil
}

func (t *Telegram) simulate(chatID, text string) SentMessage {
	t.guard.opts.logger().Printf("telegram (simulated) to %s:\n%s", chatID, text)
	return SentMessage{ChatID: chatID, Text: text, Timestamp: t.guard.opts.now()}
}

// HandleUpdate routes a command in u and sends the reply back to its chat.
func (t *Telegram) HandleUpdate(ctx context.Context, u TelegramUpdate) error {
	if u.Message == nil || u.Message.Text == "" {
		return nil
	}
	t.mu.Lock()
	router := t.router
	t.mu.Unlock()
	if router == nil {
		return nil
	}
	chatID := strconv.FormatInt(u.Message.Chat.ID, 10)
	reply, ok := router.Dispatch(ctx, chatID, u.Message.Text)
	if !ok || reply.Text == "" {
		return nil
	}
	if reply.Markdown {
		_, err := t.SendMessageWithMarkdown(ctx, chatID, reply.Text)
		return err
	}
	_, err := t.SendMessage(ctx, chatID, reply.Text)
	return err
}

// StartPolling long-polls getUpdates in the background until ctx ends or
// StopPolling is called. Calling it while already polling is a no-op.
func (t *Telegram) StartPolling(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancel != nil {
		return nil
	}
	if t.simulated {
		t.guard.opts.logger().Printf("warn: telegram bot token not set, polling disabled")
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.done = make(chan struct{})
	go t.poll(ctx, t.done)
	t.guard.opts.logger().Printf("telegram polling started")
	return nil
}

func (t *Telegram) StopPolling() {
	t.mu.Lock()
	cancel, done := t.cancel, t.done
	t.cancel, t.done = nil, nil
	t.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	t.guard.opts.logger().Printf("telegram polling stopped")
}

func (t *Telegram) poll(ctx context.Context, done chan struct{}) {
	defer close(done)
	for ctx.Err() == nil {
		updates, err := t.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			t.guard.opts.logger().Printf("warn: telegram getUpdates: %v", err)
			if sleepCtx(ctx, t.guard.opts.Backoff.Delay(0)) != nil {
				return
			}
			continue
		}
		for _, u := range updates {
			t.offset = u.UpdateID + 1
			if err := t.HandleUpdate(ctx, u); err != nil {
				t.guard.opts.logger().Printf("error: telegram update %d: %v", u.UpdateID, err)
			}
		}
	}
}

func (t *Telegram) getUpdates(ctx context.Context) ([]TelegramUpdate, error) {
	var raw struct {
		OK          bool             `json:"ok"`
		Result      []TelegramUpdate `json:"result"`
		Description string           `json:"description"`
	}
	endpoint := fmt.Sprintf("getUpdates?timeout=%d&offset=%d", int(t.pollWait/time.Second), t.offset)
	if err := t.api.do(ctx, http.MethodGet, endpoint, nil, &raw); err != nil {
		return nil, err
	}
	if !raw.OK {
		return nil, fmt.Errorf("telegram: %s", raw.Description)
	}
	return raw.Result, nil
}
