package desk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/spec-kit/desk-bridge/internal/observability"
	apperrors "github.com/spec-kit/desk-bridge/pkg/util/errorutil"
)

const maxResponseBytes = 1 << 20

// Operation names label desk calls in logs and metrics.
const (
	OpContactSearch = "contact_search"
	OpContactCreate = "contact_create"
	OpTicketCreate  = "ticket_create"
)

// Request describes one logical call to the ticket-system API.
type Request struct {
	Operation string
	Method    string
	Path      string
	Query     url.Values
	Body      any
}

// Response is a successful ticket-system response.
type Response struct {
	Status int
	Body   []byte
}

// Decode unmarshals the response body. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if len(bytes.TrimSpace(r.Body)) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

// Doer issues ticket-system calls.
type Doer interface {
	Do(ctx context.Context, req Request) (*Response, error)
}

// RetryingClient applies the refresh-and-retry-once policy to every ticket-system call.
type RetryingClient struct {
	baseURL    string
	orgID      string
	creds      CredentialStore
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *observability.Metrics
}

// ClientDependencies bundles collaborators for the retrying client.
type ClientDependencies struct {
	Credentials CredentialStore
	HTTPClient  *http.Client
	Logger      *zap.Logger
	Metrics     *observability.Metrics
}

// NewRetryingClient constructs a client for the org-scoped API at baseURL.
func NewRetryingClient(baseURL, orgID string, deps ClientDependencies) *RetryingClient {
	client := deps.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RetryingClient{
		baseURL:    baseURL,
		orgID:      orgID,
		creds:      deps.Credentials,
		httpClient: client,
		logger:     logger,
		metrics:    deps.Metrics,
	}
}

// Do sends req. A 401 triggers one credential refresh and one reissue of the same body;
// every other failure is returned as is.
func (c *RetryingClient) Do(ctx context.Context, req Request) (*Response, error) {
	var payload []byte
	if req.Body != nil {
		var err error
		payload, err = json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("marshal %s body: %w", req.Operation, err)
		}
	}

	token := c.creds.Current().AccessToken
	resp, err := c.send(ctx, req, payload, token)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized {
		c.logger.Warn("ticket system rejected access token, refreshing", zap.String("operation", req.Operation))
		if err := c.creds.RefreshStale(ctx, token); err != nil {
			return nil, err
		}
		resp, err = c.send(ctx, req, payload, c.creds.Current().AccessToken)
		if err != nil {
			return nil, err
		}
	}

	if resp.Status < 200 || resp.Status >= 300 {
		c.logger.Error("ticket system call failed",
			zap.String("operation", req.Operation),
			zap.Int("status", resp.Status),
			zap.ByteString("body", resp.Body))
		return nil, &apperrors.RemoteError{Status: resp.Status, Body: string(resp.Body)}
	}
	return resp, nil
}

func (c *RetryingClient) send(ctx context.Context, req Request, payload []byte, token string) (*Response, error) {
	target := c.baseURL + req.Path
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build %s request: %w", req.Operation, err)
	}
	httpReq.Header.Set("Authorization", "Zoho-oauthtoken "+token)
	httpReq.Header.Set("orgId", c.orgID)
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.metrics.RecordDeskRequest(req.Operation, 0)
		c.logger.Error("ticket system unreachable", zap.String("operation", req.Operation), zap.Error(err))
		return nil, &apperrors.TransportError{Op: req.Operation, Err: err}
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		c.metrics.RecordDeskRequest(req.Operation, 0)
		return nil, &apperrors.TransportError{Op: req.Operation, Err: err}
	}
	c.metrics.RecordDeskRequest(req.Operation, httpResp.StatusCode)
	return &Response{Status: httpResp.StatusCode, Body: respBody}, nil
}
