package desk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/spec-kit/desk-bridge/internal/domain"
	"github.com/spec-kit/desk-bridge/internal/observability"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

const (
	maxTokenResponseBytes = 64 << 10
	defaultRefreshTimeout = 30 * time.Second
)

// CredentialStore owns the ticket-system access credential.
type CredentialStore interface {
	// Current returns the active credential without side effects.
	Current() domain.Credential
	// Refresh exchanges the refresh token for a new access token.
	Refresh(ctx context.Context) error
	// RefreshStale refreshes only if stale is still the current access token. Concurrent
	// callers holding the same stale token share a single exchange.
	RefreshStale(ctx context.Context, stale string) error
}

// TokenStore is the in-memory CredentialStore backed by an OAuth token endpoint.
type TokenStore struct {
	mu         sync.RWMutex
	cred       domain.Credential
	tokenURL   string
	httpClient *http.Client
	group      singleflight.Group
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// TokenStoreDependencies bundles collaborators for the token store.
type TokenStoreDependencies struct {
	HTTPClient *http.Client
	Logger     *zap.Logger
	Metrics    *observability.Metrics
}

// NewTokenStore seeds the store with the startup credential.
func NewTokenStore(cred domain.Credential, tokenURL string, deps TokenStoreDependencies) *TokenStore {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{
		cred:       cred,
		tokenURL:   tokenURL,
		httpClient: client,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// Current returns the presently active credential.
func (s *TokenStore) Current() domain.Credential {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cred
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
	Error       string `json:"error"`
}

// Refresh performs one token exchange. It never retries.
func (s *TokenStore) Refresh(ctx context.Context) error {
	cred := s.Current()
	if !cred.CanRefresh() {
		s.logger.Error("token refresh skipped: missing refresh token or client credentials")
		s.metrics.RecordTokenRefresh("missing_credentials")
		return &apperrors.AuthError{Reason: apperrors.AuthMissingCredentials, Err: apperrors.ErrMissingCredentials}
	}

	s.logger.Info("refreshing ticket system access token")
	form := url.Values{
		"refresh_token": {cred.RefreshToken},
		"client_id":     {cred.ClientID},
		"client_secret": {cred.ClientSecret},
		"grant_type":    {"refresh_token"},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &apperrors.AuthError{Reason: apperrors.AuthTransport, Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("token refresh transport failure", zap.Error(err))
		s.metrics.RecordTokenRefresh("transport")
		return &apperrors.AuthError{Reason: apperrors.AuthTransport, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTokenResponseBytes))
	if err != nil {
		s.metrics.RecordTokenRefresh("transport")
		return &apperrors.AuthError{Reason: apperrors.AuthTransport, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		s.logger.Error("token refresh rejected", zap.Int("status", resp.StatusCode), zap.ByteString("body", body))
		s.metrics.RecordTokenRefresh("rejected")
		return &apperrors.AuthError{
			Reason: apperrors.AuthExchangeRejected,
			Status: resp.StatusCode,
			Err:    errors.New(strings.TrimSpace(string(body))),
		}
	}

	var parsed tokenResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		s.metrics.RecordTokenRefresh("rejected")
		return &apperrors.AuthError{Reason: apperrors.AuthExchangeRejected, Status: resp.StatusCode, Err: fmt.Errorf("decode token response: %w", err)}
	}
	if parsed.Error != "" || parsed.AccessToken == "" {
		s.logger.Error("token refresh returned no access token", zap.String("error", parsed.Error))
		s.metrics.RecordTokenRefresh("rejected")
		return &apperrors.AuthError{
			Reason: apperrors.AuthExchangeRejected,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("token endpoint error %q", parsed.Error),
		}
	}

	s.mu.Lock()
	s.cred.AccessToken = parsed.AccessToken
	s.mu.Unlock()

	s.metrics.RecordTokenRefresh("success")
	s.logger.Info("ticket system access token refreshed", zap.Int("expires_in", parsed.ExpiresIn))
	return nil
}

// RefreshStale collapses concurrent refreshes triggered by the same expired token.
func (s *TokenStore) RefreshStale(ctx context.Context, stale string) error {
	if s.Current().AccessToken != stale {
		return nil
	}
	_, err, _ := s.group.Do("refresh", func() (any, error) {
		if s.Current().AccessToken != stale {
			return nil, nil
		}
		// The exchange is shared, so one caller giving up must not fail the others.
		flightCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout())
		defer cancel()
		return nil, s.Refresh(flightCtx)
	})
	return err
}

func (s *TokenStore) refreshTimeout() time.Duration {
	if s.httpClient.Timeout > 0 {
		return s.httpClient.Timeout
	}
	return defaultRefreshTimeout
}
