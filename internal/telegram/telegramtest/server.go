// Package telegramtest provides an in-process fake of the Telegram Bot API.
package telegramtest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// Token is the bot token the fake accepts.
const Token = "123456:test-token"

// SentMessage is a sendMessage call captured by the fake.
type SentMessage struct {
	ChatID    string
	Text      string
	ParseMode string
}

// Server fakes the Bot API methods the bridge uses.
type Server struct {
	*httptest.Server

	mu         sync.Mutex
	sent       []SentMessage
	webhookURL string
	failSend   bool
}

// NewServer starts a fake closed on test cleanup.
func NewServer(t testing.TB) *Server {
	t.Helper()
	s := &Server{}
	s.Server = httptest.NewServer(http.HandlerFunc(s.handle))
	t.Cleanup(s.Close)
	return s
}

// Endpoint returns the API endpoint format string for the bot client.
func (s *Server) Endpoint() string {
	return s.URL + "/bot%s/%s"
}

// FailSends makes sendMessage answer with a Bot API error.
func (s *Server) FailSends(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failSend = fail
}

// Sent returns the captured messages.
func (s *Server) Sent() []SentMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]SentMessage(nil), s.sent...)
}

// WebhookURL returns the last registered webhook.
func (s *Server) WebhookURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.webhookURL
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	prefix := "/bot" + Token + "/"
	if !strings.HasPrefix(r.URL.Path, prefix) {
		reply(w, http.StatusUnauthorized, false, nil, 401, "Unauthorized")
		return
	}
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		_ = r.ParseForm()
	}

	switch strings.TrimPrefix(r.URL.Path, prefix) {
	case "getMe":
		reply(w, http.StatusOK, true, map[string]any{"id": 1, "is_bot": true, "first_name": "Bridge", "username": "bridge_bot"}, 0, "")
	case "sendMessage":
		s.mu.Lock()
		fail := s.failSend
		if !fail {
			s.sent = append(s.sent, SentMessage{
				ChatID:    r.FormValue("chat_id"),
				Text:      r.FormValue("text"),
				ParseMode: r.FormValue("parse_mode"),
			})
		}
		s.mu.Unlock()
		if fail {
			reply(w, http.StatusBadRequest, false, nil, 400, "Bad Request: chat not found")
			return
		}
		chatID, _ := strconv.ParseInt(r.FormValue("chat_id"), 10, 64)
		reply(w, http.StatusOK, true, map[string]any{
			"message_id": 1,
			"date":       0,
			"chat":       map[string]any{"id": chatID, "type": "supergroup"},
		}, 0, "")
	case "setWebhook":
		s.mu.Lock()
		s.webhookURL = r.FormValue("url")
		s.mu.Unlock()
		reply(w, http.StatusOK, true, true, 0, "Webhook was set")
	case "getWebhookInfo":
		s.mu.Lock()
		url := s.webhookURL
		s.mu.Unlock()
		reply(w, http.StatusOK, true, map[string]any{"url": url, "has_custom_certificate": false, "pending_update_count": 0}, 0, "")
	default:
		reply(w, http.StatusNotFound, false, nil, 404, "Not Found")
	}
}

func reply(w http.ResponseWriter, status int, ok bool, result any, code int, description string) {
	body := map[string]any{"ok": ok}
	if result != nil {
		body["result"] = result
	}
	if code != 0 {
		body["error_code"] = code
	}
	if description != "" {
		body["description"] = description
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
