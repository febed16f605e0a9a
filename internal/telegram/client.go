package telegram

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/config"
	"github.com/spec-kit/desk-bridge/internal/domain"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

// ErrNotConfigured is returned by Disabled for every call.
var ErrNotConfigured = errors.New("telegram bot token or group chat id not configured")

// WebhookPath is where the bot delivers updates.
const WebhookPath = "/telegram-webhook"

// WebhookURL joins the public base URL of the bridge with WebhookPath. Telegram only delivers
// to https endpoints.
func WebhookURL(base string) (string, error) {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return "", apperrors.NewValidationError("WEBHOOK_URL not set", map[string]any{
			"help": "set WEBHOOK_URL=https://your-domain.com or pass base_url",
		})
	}
	parsed, err := url.Parse(base)
	if err != nil || parsed.Scheme != "https" || parsed.Host == "" {
		return "", apperrors.NewValidationError("webhook base url must be an absolute https url", map[string]any{"base_url": base})
	}
	return base + WebhookPath, nil
}

// Sender delivers messages to the configured chat group.
type Sender interface {
	SendMessage(ctx context.Context, msg domain.ChatMessage) error
}

// WebhookManager registers and inspects the bot's webhook.
type WebhookManager interface {
	SetWebhook(ctx context.Context, target string) error
	WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error)
}

// Client talks to the Bot API on behalf of one group.
type Client struct {
	api    *tgbotapi.BotAPI
	chatID int64
	logger *zap.Logger
}

// New connects to the Bot API and verifies the token with getMe.
func New(cfg config.TelegramConfig, logger *zap.Logger) (*Client, error) {
	chatID, err := cfg.ChatID()
	if err != nil {
		return nil, fmt.Errorf("parse group chat id: %w", err)
	}
	api, err := tgbotapi.NewBotAPIWithClient(cfg.BotToken, cfg.APIEndpoint, &http.Client{Timeout: cfg.Timeout()})
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName), zap.Int64("chat_id", chatID))
	return &Client{api: api, chatID: chatID, logger: logger}, nil
}

// ChatID returns the group this client posts to.
func (c *Client) ChatID() int64 {
	return c.chatID
}

// SendMessage posts msg to the group. Failures are returned, never retried.
func (c *Client) SendMessage(ctx context.Context, msg domain.ChatMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	out := tgbotapi.NewMessage(c.chatID, msg.Text)
	out.ParseMode = msg.ParseMode
	out.DisableWebPagePreview = true
	if _, err := c.api.Send(out); err != nil {
		c.logger.Error("Failed to send message", zap.Error(err), zap.Int64("chat_id", c.chatID))
		return mapError("sendMessage", err)
	}
	return nil
}

// SetWebhook points the bot at target.
func (c *Client) SetWebhook(ctx context.Context, target string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	wh, err := tgbotapi.NewWebhook(target)
	if err != nil {
		return apperrors.NewValidationError("invalid webhook url", map[string]any{"url": target})
	}
	resp, err := c.api.Request(wh)
	if err != nil {
		return mapError("setWebhook", err)
	}
	c.logger.Info("telegram webhook registered", zap.String("url", target), zap.String("description", resp.Description))
	return nil
}

// WebhookInfo returns the webhook Telegram currently has registered.
func (c *Client) WebhookInfo(ctx context.Context) (tgbotapi.WebhookInfo, error) {
	if err := ctx.Err(); err != nil {
		return tgbotapi.WebhookInfo{}, err
	}
	info, err := c.api.GetWebhookInfo()
	if err != nil {
		return tgbotapi.WebhookInfo{}, mapError("getWebhookInfo", err)
	}
	return info, nil
}

func mapError(op string, err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &apperrors.RemoteError{Status: apiErr.Code, Body: apiErr.Message}
	}
	return &apperrors.TransportError{Op: op, Err: err}
}

// Disabled stands in when the bot is not configured; every call fails with ErrNotConfigured.
type Disabled struct{}

func (Disabled) SendMessage(context.Context, domain.ChatMessage) error { return ErrNotConfigured }

func (Disabled) SetWebhook(context.Context, string) error { return ErrNotConfigured }

func (Disabled) WebhookInfo(context.Context) (tgbotapi.WebhookInfo, error) {
	return tgbotapi.WebhookInfo{}, ErrNotConfigured
}
