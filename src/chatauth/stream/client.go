package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/stake-plus/realm-chat-auth/src/chatauth/metrics"
)

const (
	DefaultBaseURL = "https://chat.stream-io-api.com"
	defaultTimeout = 10 * time.Second
)

// APIError is a non-2xx response from the Stream REST API.
type APIError struct {
	StatusCode int    `json:"StatusCode"`
	Code       int    `json:"code"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("stream api: status %d code %d: %s", e.StatusCode, e.Code, e.Message)
}

// Client is a server-side Stream Chat REST client.
type Client struct {
	baseURL    string
	apiKey     string
	tokens     Tokens
	httpClient *http.Client
	timeout    time.Duration
	log        zerolog.Logger
}

// NewClient creates a Stream Chat client. timeout bounds every call.
func NewClient(baseURL, apiKey, secret string, tokenTTL, timeout time.Duration, log zerolog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		tokens:     NewTokens(secret, tokenTTL),
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		log:        log.With().Str("component", "stream").Logger(),
	}
}

// EnableMultiTenancy turns on team scoping for the application.
func (c *Client) EnableMultiTenancy(ctx context.Context) error {
	return c.do(ctx, http.MethodPatch, "/app", nil, map[string]any{"multi_tenant_enabled": true}, nil)
}

// MintToken issues a client token for userID.
func (c *Client) MintToken(userID string) (string, error) {
	return c.tokens.UserToken(userID)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	defer metrics.ObserveCall("stream", method+" "+routeLabel(path), time.Now())

	serverToken, err := c.tokens.ServerToken()
	if err != nil {
		return fmt.Errorf("sign server token: %w", err)
	}

	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path+"?"+query.Encode(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", serverToken)
	req.Header.Set("Stream-Auth-Type", "jwt")
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(respBody, apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(respBody))
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// routeLabel collapses channel paths so metric labels stay bounded.
func routeLabel(path string) string {
	switch {
	case strings.HasPrefix(path, "/channels/") && strings.HasSuffix(path, "/query"):
		return "/channels/:type/:id/query"
	case strings.HasPrefix(path, "/channels/"):
		return "/channels/:type/:id"
	default:
		return path
	}
}
