package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"studioflow/internal/app"
	"studioflow/internal/domain"
	"studioflow/internal/events"
	"studioflow/internal/integrations"
)

// registerInbound mounts the platform webhooks as plain chi routes, since
// signatures are computed over the raw body.
func registerInbound(r chi.Router, basePath string, rt *app.Runtime) {
	h := inbound{rt: rt}
	prefix := path.Join(basePath, "webhooks")
	r.Post(prefix+"/github", h.github)
	r.Post(prefix+"/clickup", h.clickup)
	r.Post(prefix+"/telegram", h.telegram)
	r.Get(prefix+"/whatsapp", h.whatsappVerify)
	r.Post(prefix+"/whatsapp", h.whatsapp)
}

type inbound struct {
	rt *app.Runtime
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

var received = map[string]bool{"received": true}

func (h inbound) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.Unmarshal(bodyBytes(r.Context()), out); err != nil {
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "invalid json body", nil))
		return false
	}
	return true
}

// decodeObject decodes a webhook body that must be a JSON object; null is rejected.
func (h inbound) decodeObject(w http.ResponseWriter, r *http.Request) (map[string]any, bool) {
	var payload map[string]any
	if !h.decode(w, r, &payload) {
		return nil, false
	}
	if payload == nil {
		respondStatusError(w, newAPIError(http.StatusBadRequest, "bad_request", "webhook body must be a json object", nil))
		return nil, false
	}
	return payload, true
}

func (h inbound) record(w http.ResponseWriter, r *http.Request, evtType, entityID string, payload map[string]any) bool {
	if _, err := h.rt.Engine.Events.Append(r.Context(), nil, evtType, "webhook", entityID, events.EventPayload(payload)); err != nil {
		h.rt.Logger.Printf("error: record %s: %v", evtType, err)
		respondStatusError(w, handleError(err))
		return false
	}
	return true
}

// validGitHubSignature checks X-Hub-Signature-256 against the body.
func validGitHubSignature(secret string, body []byte, header string) bool {
	sig, found := strings.CutPrefix(header, "sha256=")
	if !found {
		return false
	}
	got, err := hex.DecodeString(sig)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(got, mac.Sum(nil))
}

func (h inbound) github(w http.ResponseWriter, r *http.Request) {
	body := bodyBytes(r.Context())
	if secret := h.rt.Config.GitHub.WebhookSecret; secret != "" {
		if !validGitHubSignature(secret, body, r.Header.Get("X-Hub-Signature-256")) {
			respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_signature", "invalid webhook signature", nil))
			return
		}
	}
	payload, ok := h.decodeObject(w, r)
	if !ok {
		return
	}
	kind := r.Header.Get("X-GitHub-Event")
	if kind == "" {
		kind = "push"
	}
	payload["githubEvent"] = kind
	if !h.record(w, r, domain.EventGithubCommit, r.Header.Get("X-GitHub-Delivery"), payload) {
		return
	}
	h.rt.Logger.Printf("github webhook received: %s", kind)
	writeJSON(w, http.StatusOK, received)
}

func (h inbound) clickup(w http.ResponseWriter, r *http.Request) {
	payload, ok := h.decodeObject(w, r)
	if !ok {
		return
	}
	evtType := domain.EventClickUpTaskUpdated
	event, _ := payload["event"].(string)
	switch event {
	case "taskCreated":
		evtType = domain.EventClickUpTaskCreated
	case "taskStatusUpdated":
		evtType = domain.EventClickUpTaskStatusChanged
	}
	taskID, _ := payload["task_id"].(string)
	if !h.record(w, r, evtType, taskID, payload) {
		return
	}
	h.rt.Logger.Printf("clickup webhook received: %s", event)
	writeJSON(w, http.StatusOK, received)
}

func (h inbound) telegram(w http.ResponseWriter, r *http.Request) {
	var update integrations.TelegramUpdate
	if !h.decode(w, r, &update) {
		return
	}
	var payload map[string]any
	_ = json.Unmarshal(bodyBytes(r.Context()), &payload)
	if !h.record(w, r, domain.EventTelegramMessage, "", payload) {
		return
	}
	if err := h.rt.Telegram.HandleUpdate(r.Context(), update); err != nil {
		h.rt.Logger.Printf("error: telegram update %d: %v", update.UpdateID, err)
	}
	writeJSON(w, http.StatusOK, received)
}

func (h inbound) whatsappVerify(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	challenge, verified := h.rt.WhatsApp.VerifyWebhook(q.Get("hub.mode"), q.Get("hub.verify_token"), q.Get("hub.challenge"))
	if !verified {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(challenge))
}

func (h inbound) whatsapp(w http.ResponseWriter, r *http.Request) {
	var n integrations.WhatsAppWebhook
	if !h.decode(w, r, &n) {
		return
	}
	var payload map[string]any
	_ = json.Unmarshal(bodyBytes(r.Context()), &payload)
	if !h.record(w, r, domain.EventWhatsAppMessage, "", payload) {
		return
	}
	if err := h.rt.WhatsApp.HandleWebhook(r.Context(), n); err != nil {
		h.rt.Logger.Printf("error: whatsapp webhook: %v", err)
	}
	writeJSON(w, http.StatusOK, received)
}
