package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/api/http/handlers"
	"github.com/spec-kit/desk-bridge/internal/auth"
	"github.com/spec-kit/desk-bridge/internal/config"
	"github.com/spec-kit/desk-bridge/internal/desk"
	"github.com/spec-kit/desk-bridge/internal/desk/desktest"
	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/events"
	"github.com/spec-kit/desk-bridge/internal/observability"
	"github.com/spec-kit/desk-bridge/internal/repository"
	"github.com/spec-kit/desk-bridge/internal/service"
	"github.com/spec-kit/desk-bridge/internal/telegram"
	"github.com/spec-kit/desk-bridge/internal/telegram/telegramtest"
)

const testChatID = "-100777"

type failingPinger struct{}

func (failingPinger) Ping(context.Context) error { return errors.New("connection refused") }

type testBridge struct {
	app    *fiber.App
	desk   *desktest.Server
	chat   *telegramtest.Server
	tokens *auth.TokenManager
	assoc  repository.AssociationRepository
}

type bridgeOptions struct {
	adminSecret string
	webhookURL  string
	readiness   map[string]handlers.Pinger
}

func newTestBridge(t *testing.T, opts bridgeOptions) *testBridge {
	t.Helper()
	deskServer := desktest.NewServer(t)
	chatServer := telegramtest.NewServer(t)

	cfg := &config.Config{
		App: config.AppConfig{Name: "desk-bridge", Version: "test", WebhookURL: opts.webhookURL},
		Telegram: config.TelegramConfig{
			BotToken:       telegramtest.Token,
			GroupChatID:    testChatID,
			APIEndpoint:    chatServer.Endpoint(),
			TimeoutSeconds: 5,
		},
		Desk: config.DeskConfig{
			OrgID:        "org-1",
			DepartmentID: "dep-1",
			AccessToken:  desktest.AccessToken,
			APIDomain:    deskServer.URL,
		},
	}

	bot, err := telegram.New(cfg.Telegram, zap.NewNop())
	require.NoError(t, err)

	metrics := observability.NewMetrics()
	store := desk.NewTokenStore(domain.Credential{AccessToken: cfg.Desk.AccessToken}, deskServer.URL+"/oauth/v2/token", desk.TokenStoreDependencies{Metrics: metrics})
	client := desk.NewRetryingClient(cfg.Desk.APIDomain, cfg.Desk.OrgID, desk.ClientDependencies{Credentials: store, Metrics: metrics})
	assoc := repository.NewMemoryAssociationRepository(100, time.Hour)
	dispatcher := events.NewInMemoryDispatcher(nil)
	journal := service.NewJournalService(dispatcher, nil, nil)
	journal.RegisterHandlers()

	relay := service.NewTicketRelay(service.TicketRelayDependencies{
		Contacts:     desk.NewContactResolver(client, nil),
		Tickets:      desk.NewTicketAPI(client, cfg.Desk.DepartmentID),
		Sender:       bot,
		Associations: assoc,
	})
	router := service.NewEventRouter(service.EventRouterDependencies{
		GroupChatID: bot.ChatID(),
		Relay:       relay,
		Dispatcher:  dispatcher,
		Metrics:     metrics,
	})
	tokens := auth.NewTokenManager(opts.adminSecret, 5)

	app := fiber.New()
	RegisterMiddlewares(app, zap.NewNop(), metrics, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:   handlers.NewHealthHandler(cfg, opts.readiness),
		Telegram: handlers.NewTelegramHandler(router, zap.NewNop()),
		Desk:     handlers.NewDeskHandler(router, zap.NewNop()),
		Admin: handlers.NewAdminHandler(handlers.AdminDependencies{
			Webhooks:     bot,
			Journal:      journal,
			Associations: assoc,
			PublicURL:    cfg.App.WebhookURL,
			Logger:       zap.NewNop(),
		}),
		AdminMiddleware: auth.NewAdminMiddleware(tokens),
		Metrics:         metrics,
	})

	return &testBridge{app: app, desk: deskServer, chat: chatServer, tokens: tokens, assoc: assoc}
}

func (b *testBridge) do(t *testing.T, method, path, body string, headers ...string) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	resp, err := b.app.Test(req, 10_000)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	} else {
		out["raw"] = string(raw)
	}
	return resp.StatusCode, out
}

const groupMessage = `{"update_id":1,"message":{"message_id":55,"date":0,
	"chat":{"id":-100777,"type":"supergroup"},
	"from":{"id":42,"is_bot":false,"first_name":"Ann"},
	"text":"Help"}}`

func TestTelegramWebhookCreatesTicket(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodPost, "/telegram-webhook", groupMessage)

	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	require.Len(t, b.chat.Sent(), 1)
	assert.Contains(t, b.chat.Sent()[0].Text, "Ticket #101 created!")

	status, body = b.do(t, nethttp.MethodGet, "/admin/messages/-100777/55", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "101", body["data"].(map[string]any)["ticket_number"])
}

func TestTelegramWebhookAlwaysAnswers200(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodPost, "/telegram-webhook", "{not json")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, false, body["ok"])

	b.desk.FailTickets(true)
	status, body = b.do(t, nethttp.MethodPost, "/telegram-webhook", groupMessage)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, false, body["ok"])
	require.Len(t, b.chat.Sent(), 1)
	assert.Contains(t, b.chat.Sent()[0].Text, "couldn't create ticket")
}

func TestTelegramWebhookIgnoresNonText(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})
	sticker := `{"update_id":2,"message":{"message_id":56,"date":0,
		"chat":{"id":-100777,"type":"supergroup"},
		"from":{"id":42,"is_bot":false,"first_name":"Ann"},
		"sticker":{"file_id":"x","file_unique_id":"y","width":1,"height":1,"is_animated":false}}}`

	status, body := b.do(t, nethttp.MethodPost, "/telegram-webhook", sticker)

	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	assert.Empty(t, b.desk.Tickets())
	assert.Empty(t, b.chat.Sent())
}

func TestDeskWebhook(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodGet, "/zoho-webhook", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "Webhook endpoint is active", body["message"])

	status, body = b.do(t, nethttp.MethodPost, "/zoho-webhook",
		`{"eventType":"TICKET_COMMENT_ADDED","ticketNumber":1007,"author":"Agent Lee","content":"Fixed."}`)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	require.Len(t, b.chat.Sent(), 1)
	assert.Contains(t, b.chat.Sent()[0].Text, "#1007")
	assert.Contains(t, b.chat.Sent()[0].Text, "Agent Lee")
	assert.Contains(t, b.chat.Sent()[0].Text, "Fixed.")

	status, body = b.do(t, nethttp.MethodPost, "/zoho-webhook",
		`[{"eventType":"TICKET_STATUS_CHANGED","ticketNumber":"1"},{"eventType":"TICKET_REPLY_ADDED","ticketNumber":"2","content":"On it"}]`)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, true, body["ok"])
	require.Len(t, b.chat.Sent(), 2)
	assert.Contains(t, b.chat.Sent()[1].Text, "Reply on Ticket #2")
}

func TestDeskWebhookReportsFailureWith200(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})
	b.chat.FailSends(true)

	status, body := b.do(t, nethttp.MethodPost, "/zoho-webhook", `{"eventType":"TICKET_REPLY_ADDED","content":"x"}`)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, false, body["ok"])

	status, body = b.do(t, nethttp.MethodPost, "/zoho-webhook", `nope`)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, false, body["ok"])
}

func TestHealthEndpoints(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{readiness: map[string]handlers.Pinger{"redis": failingPinger{}}})

	status, body := b.do(t, nethttp.MethodGet, "/health", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, true, body["telegram_configured"])
	assert.Equal(t, true, body["zoho_configured"])

	status, body = b.do(t, nethttp.MethodGet, "/health/live", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "alive", body["status"])

	status, body = b.do(t, nethttp.MethodGet, "/health/ready", "")
	assert.Equal(t, nethttp.StatusServiceUnavailable, status)
	assert.Equal(t, "DEPENDENCY_UNAVAILABLE", body["error"].(map[string]any)["code"])

	status, body = b.do(t, nethttp.MethodGet, "/", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Contains(t, body["raw"], "Bridge is Running")
}

func TestMetricsEndpoint(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})
	b.do(t, nethttp.MethodPost, "/telegram-webhook", groupMessage)

	status, body := b.do(t, nethttp.MethodGet, "/metrics", "")

	assert.Equal(t, nethttp.StatusOK, status)
	raw := body["raw"].(string)
	assert.Contains(t, raw, `bridge_relay_outcomes_total{direction="chat_to_desk",outcome="handled"} 1`)
	assert.Contains(t, raw, `bridge_desk_requests_total{operation="ticket_create",status="200"} 1`)
}

func TestAdminSetupWebhook(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{webhookURL: "https://bridge.example.org"})

	status, body := b.do(t, nethttp.MethodPost, "/admin/setup-webhook", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "https://bridge.example.org/telegram-webhook", body["data"].(map[string]any)["webhook_url"])
	assert.Equal(t, "https://bridge.example.org/telegram-webhook", b.chat.WebhookURL())

	status, body = b.do(t, nethttp.MethodGet, "/admin/webhook-info", "")
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "https://bridge.example.org/telegram-webhook", body["data"].(map[string]any)["url"])
}

func TestAdminSetupWebhookRequiresURL(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodPost, "/admin/setup-webhook", "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
	assert.Equal(t, "VALIDATION_FAILED", body["error"].(map[string]any)["code"])

	status, _ = b.do(t, nethttp.MethodPost, "/admin/setup-webhook", `{"base_url":"http://insecure.example.org"}`)
	assert.Equal(t, nethttp.StatusBadRequest, status)

	status, _ = b.do(t, nethttp.MethodPost, "/admin/setup-webhook", `{"base_url":"https://other.example.org/"}`)
	assert.Equal(t, nethttp.StatusOK, status)
	assert.Equal(t, "https://other.example.org/telegram-webhook", b.chat.WebhookURL())
}

func TestAdminRoutesRequireToken(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{adminSecret: "s3cret", webhookURL: "https://bridge.example.org"})

	status, body := b.do(t, nethttp.MethodGet, "/admin/webhook-info", "")
	assert.Equal(t, nethttp.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error"].(map[string]any)["code"])

	readOnly, _, err := b.tokens.GenerateToken("ops", []auth.Scope{auth.ScopeWebhookRead})
	require.NoError(t, err)

	status, _ = b.do(t, nethttp.MethodGet, "/admin/webhook-info", "", "Authorization", "Bearer "+readOnly)
	assert.Equal(t, nethttp.StatusOK, status)

	status, body = b.do(t, nethttp.MethodPost, "/admin/setup-webhook", "", "Authorization", "Bearer "+readOnly)
	assert.Equal(t, nethttp.StatusForbidden, status)
	assert.Equal(t, "FORBIDDEN", body["error"].(map[string]any)["code"])

	status, _ = b.do(t, nethttp.MethodPost, "/telegram-webhook", groupMessage)
	assert.Equal(t, nethttp.StatusOK, status)
}

func TestAdminJournalWithoutDatabase(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodGet, "/admin/journal?limit=5", "")

	assert.Equal(t, nethttp.StatusOK, status)
	assert.Empty(t, body["data"])
}

func TestAdminMessageLookup(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodGet, "/admin/messages/-100777/99", "")
	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])

	status, _ = b.do(t, nethttp.MethodGet, "/admin/messages/abc/99", "")
	assert.Equal(t, nethttp.StatusBadRequest, status)
}

func TestUnknownRouteIsJSON404(t *testing.T) {
	b := newTestBridge(t, bridgeOptions{})

	status, body := b.do(t, nethttp.MethodGet, "/nope", "")

	assert.Equal(t, nethttp.StatusNotFound, status)
	assert.Equal(t, "NOT_FOUND", body["error"].(map[string]any)["code"])
}
