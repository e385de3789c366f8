package integrations

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"studioflow/internal/config"
)

type WhatsAppMessage struct {
	ID        string    `json:"id"`
	To        string    `json:"to"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// WhatsAppWebhook is the Cloud API notification envelope.
type WhatsAppWebhook struct {
	Entry []struct {
		Changes []struct {
			Value struct {
				Messages []struct {
					From string `json:"from"`
					Type string `json:"type"`
					Text struct {
						Body string `json:"body"`
					} `json:"text"`
				} `json:"messages"`
			} `json:"value"`
		} `json:"changes"`
	} `json:"entry"`
}

// WhatsApp talks to the WhatsApp Cloud API.
type WhatsApp struct {
	api         rest
	guard       guard
	simulated   bool
	phoneID     string
	verifyToken string

	mu     sync.Mutex
	router Dispatcher
}

func NewWhatsApp(cfg config.WhatsAppConfig, opts Options) *WhatsApp {
	w := &WhatsApp{guard: guard{system: "whatsapp", opts: opts}, phoneID: cfg.PhoneNumberID, verifyToken: cfg.VerifyToken}
	if !cfg.Enabled || strings.TrimSpace(cfg.AccessToken) == "" || strings.TrimSpace(cfg.PhoneNumberID) == "" {
		if cfg.Enabled {
			opts.logger().Printf("warn: whatsapp credentials not set, using simulated client")
		}
		w.simulated = true
		return w
	}
	w.api = rest{
		BaseURL:    cfg.BaseURL,
		HTTPClient: opts.HTTPClient,
		Timeout:    30 * time.Second,
		Header:     http.Header{"Authorization": {"Bearer " + cfg.AccessToken}},
	}
	return w
}

func (w *WhatsApp) Simulated() bool { return w.simulated }

func (w *WhatsApp) SetRouter(d Dispatcher) {
	w.mu.Lock()
	w.router = d
	w.mu.Unlock()
}

// VerifyWebhook answers the subscription handshake. It returns the challenge
// to echo and whether the token matched.
func (w *WhatsApp) VerifyWebhook(mode, token, challenge string) (string, bool) {
	if mode != "subscribe" || w.verifyToken == "" {
		return "", false
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(w.verifyToken)) != 1 {
		return "", false
	}
	return challenge, true
}

func (w *WhatsApp) SendMessage(ctx context.Context, to, text string) (WhatsAppMessage, error) {
	return w.send(ctx, "individual", to, text)
}

func (w *WhatsApp) SendToGroup(ctx context.Context, groupID, text string) (WhatsAppMessage, error) {
	return w.send(ctx, "group", groupID, text)
}

func (w *WhatsApp) send(ctx context.Context, recipientType, to, text string) (WhatsAppMessage, error) {
	if strings.TrimSpace(to) == "" {
		return WhatsAppMessage{}, errors.New("recipient is required")
	}
	if w.simulated {
		return w.simulate(to, text), nil
	}
	body := map[string]any{
		"messaging_product": "whatsapp",
		"recipient_type":    recipientType,
		"to":                to,
		"type":              "text",
		"text":              map[string]string{"body": text},
	}
	var raw struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	err := w.guard.opts.Backoff.Do(ctx, func(ctx context.Context) error {
		return w.api.do(ctx, http.MethodPost, w.phoneID+"/messages", body, &raw)
	})
	if err == nil && len(raw.Messages) == 0 {
		err = errors.New("whatsapp returned no message id")
	}
	if err != nil {
		if gerr := w.guard.recover("send message", err); gerr != nil {
			return WhatsAppMessage{}, gerr
		}
		return w.simulate(to, text), nil
	}
	return WhatsAppMessage{ID: raw.Messages[0].ID, To: to, Message: text, Timestamp: w.guard.opts.now()}, nil
}

func (w *WhatsApp) simulate(to, text string) WhatsAppMessage {
	w.guard.opts.logger().Printf("whatsapp (simulated) to %s:\n%s", to, text)
	return WhatsAppMessage{ID: "wa-" + uuid.NewString()[:8], To: to, Message: text, Timestamp: w.guard.opts.now()}
}

// HandleWebhook answers every text command in the notification.
func (w *WhatsApp) HandleWebhook(ctx context.Context, n WhatsAppWebhook) error {
	w.mu.Lock()
	router := w.router
	w.mu.Unlock()
	if router == nil {
		return nil
	}
	var errs []error
	for _, e := range n.Entry {
		for _, c := range e.Changes {
			for _, m := range c.Value.Messages {
				if m.Type != "text" || m.Text.Body == "" {
					continue
				}
				reply, ok := router.Dispatch(ctx, m.From, m.Text.Body)
				if !ok || reply.Text == "" {
					continue
				}
				if _, err := w.SendMessage(ctx, m.From, reply.Text); err != nil {
					errs = append(errs, err)
				}
			}
		}
	}
	return errors.Join(errs...)
}
