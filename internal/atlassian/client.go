// Package atlassian issues authenticated requests against the Jira and
// Confluence REST APIs.
//
// The client is deliberately thin: one request, one response. It does not
// retry, does not impose a timeout of its own and does not interpret error
// bodies. Callers pattern-match failures through IsVersionConflict and
// IsNotFound.
package atlassian

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// Connection holds the settings needed to reach one Atlassian product.
type Connection struct {
	// Service names the product in error messages ("jira", "confluence").
	Service  string
	BaseURL  string
	Email    string
	APIToken string
}

// Validate returns a *ConfigError listing every missing setting.
func (c Connection) Validate() error {
	var missing []string
	if strings.TrimSpace(c.BaseURL) == "" {
		missing = append(missing, c.Service+".base_url")
	}
	if strings.TrimSpace(c.Email) == "" {
		missing = append(missing, c.Service+".email")
	}
	if strings.TrimSpace(c.APIToken) == "" {
		missing = append(missing, c.Service+".api_token")
	}
	if len(missing) > 0 {
		return &ConfigError{Service: c.Service, Missing: missing}
	}
	return nil
}

// Client sends requests to a single configured base URL.
type Client struct {
	conn       Connection
	httpClient *http.Client
	userAgent  string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the transport. Tests point this at httptest.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithUserAgent sets the User-Agent header sent with every request.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// NewClient creates a Client. The connection is validated lazily on every
// request so a server can start before credentials are in place.
func NewClient(conn Connection, opts ...Option) *Client {
	c := &Client{
		conn:       conn,
		httpClient: http.DefaultClient,
		userAgent:  "atlasmcp",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the configured base URL without a trailing slash.
func (c *Client) BaseURL() string {
	return strings.TrimRight(c.conn.BaseURL, "/")
}

// Do sends one request. On 2xx it returns the JSON body, the raw text
// encoded as a JSON string when the body is not JSON, or {} when the body
// is empty. Any other status yields a *TransportError.
func (c *Client) Do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	if err := c.conn.Validate(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encoding %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL()+path, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", "Basic "+basicToken(c.conn.Email, c.conn.APIToken))
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading %s %s response: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &TransportError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       string(data),
		}
	}

	return normalizeBody(data), nil
}

// Get is shorthand for Do with GET.
func (c *Client) Get(ctx context.Context, path string) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodGet, path, nil)
}

// Post is shorthand for Do with POST.
func (c *Client) Post(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPost, path, body)
}

// Put is shorthand for Do with PUT.
func (c *Client) Put(ctx context.Context, path string, body any) (json.RawMessage, error) {
	return c.Do(ctx, http.MethodPut, path, body)
}

// Decode unmarshals a response body into T.
func Decode[T any](raw json.RawMessage) (*T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}
	return &v, nil
}

func normalizeBody(data []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return json.RawMessage("{}")
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	// Marshalling a string cannot fail.
	text, _ := json.Marshal(string(data))
	return json.RawMessage(text)
}

func basicToken(email, token string) string {
	return base64.StdEncoding.EncodeToString([]byte(email + ":" + token))
}
