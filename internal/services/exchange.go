package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/rhythmiq/internal/models"
	"github.com/desertthunder/rhythmiq/internal/shared"
)

// TokenPath is the control-plane route that exchanges an authorization code.
const TokenPath = "/api/spotify/token"

// ClientOpts configures the control-plane clients.
type ClientOpts struct {
	BaseURL    string
	Store      *TokenStore
	HTTPClient *http.Client // defaults to http.DefaultClient
	Logger     *log.Logger  // defaults to log.Default()
}

func (o ClientOpts) normalize() ClientOpts {
	o.BaseURL = strings.TrimSuffix(o.BaseURL, "/")
	if o.HTTPClient == nil {
		o.HTTPClient = http.DefaultClient
	}
	if o.Logger == nil {
		o.Logger = log.Default()
	}
	return o
}

// TokenResponse is the control-plane reply to a successful exchange.
type TokenResponse struct {
	SessionID string `json:"session_id"`
	ExpiresIn int    `json:"expires_in"`
}

// ExchangeClient trades one-time authorization codes for a control-plane session.
type ExchangeClient struct {
	baseURL    string
	store      *TokenStore
	httpClient *http.Client
	logger     *log.Logger

	mu        sync.Mutex
	submitted map[string]struct{}
}

// NewExchangeClient creates an [ExchangeClient] that records sessions in opts.Store.
func NewExchangeClient(opts ClientOpts) *ExchangeClient {
	opts = opts.normalize()
	return &ExchangeClient{
		baseURL:    opts.BaseURL,
		store:      opts.Store,
		httpClient: opts.HTTPClient,
		logger:     opts.Logger,
		submitted:  make(map[string]struct{}),
	}
}

// Exchange submits code to the control plane exactly once and records the resulting session.
//
// Every failure after the request is attempted is reported as [ExchangeFailed]; nothing is retried.
func (c *ExchangeClient) Exchange(ctx context.Context, code string) (*models.Session, error) {
	if code == "" {
		return nil, &AuthError{Kind: NoAuthorizationCode}
	}

	c.mu.Lock()
	if _, seen := c.submitted[code]; seen {
		c.mu.Unlock()
		return nil, &AuthError{Kind: ExchangeFailed, Endpoint: TokenPath, Err: shared.ErrCodeReused}
	}
	c.submitted[code] = struct{}{}
	c.mu.Unlock()

	resp, err := c.post(ctx, code)
	if err != nil {
		return nil, &AuthError{Kind: ExchangeFailed, Endpoint: TokenPath, Err: err}
	}

	c.store.Establish(resp.SessionID, resp.ExpiresIn)
	c.logger.Debug("session established", "expires_in", resp.ExpiresIn)

	session := c.store.Snapshot()
	return &session, nil
}

func (c *ExchangeClient) post(ctx context.Context, code string) (*TokenResponse, error) {
	body, err := json.Marshal(map[string]string{"code": code})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+TokenPath, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("%w: status %d", shared.ErrRequestFailed, resp.StatusCode)
	}

	var tr TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedResponse, err)
	}
	if tr.SessionID == "" {
		return nil, fmt.Errorf("%w: missing session_id", shared.ErrMalformedResponse)
	}
	if tr.ExpiresIn <= 0 {
		return nil, fmt.Errorf("%w: expires_in must be positive, got %d", shared.ErrMalformedResponse, tr.ExpiresIn)
	}
	return &tr, nil
}
