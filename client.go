package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Header names injected by the gateway.
const (
	HeaderContentType   = "Content-Type"
	HeaderAuthorization = "Authorization"
	HeaderOrganization  = "X-Organization-Id"
)

// Auth endpoints consumed by the portal layer.
const (
	EndpointLogin  = "/api/v1/auth/login"
	EndpointMe     = "/api/v1/auth/me"
	EndpointLogout = "/api/v1/auth/logout"
)

// HTTPDoer is the transport collaborator. *http.Client satisfies it.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

type ClientConfig struct {
	BaseURL    string
	HTTPClient HTTPDoer
	Logger     Logger
}

// Client is the request gateway: the single choke point for every
// authenticated call against the backend API. It injects credential and
// tenant headers, maps failures into the canonical error shape, and fires
// the deauthorization callback on unauthorized or tenant-invalid
// responses.
//
// The credential and tenant fields are mutated exclusively by the session
// store; the gateway never derives them itself.
type Client struct {
	baseURL string
	http    HTTPDoer
	logger  Logger

	mu             sync.RWMutex
	accessToken    string
	organizationID string
	onUnauthorized func()
}

var _ Gateway = (*Client)(nil)

// NewClient returns a gateway bound to the given base URL.
func NewClient(cfg ClientConfig) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	logger := cfg.Logger
	if logger == nil {
		logger = defLogger{}
	}

	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    httpClient,
		logger:  logger,
	}
}

// SetAccessToken sets the bearer credential used on subsequent calls.
// The token is never logged.
func (c *Client) SetAccessToken(token string) {
	c.mu.Lock()
	c.accessToken = token
	c.mu.Unlock()
}

// SetOrganizationID sets the tenant id injected on subsequent calls. The
// value is SSOT from the identity lookup, never chosen by callers.
func (c *Client) SetOrganizationID(id string) {
	c.mu.Lock()
	c.organizationID = id
	c.mu.Unlock()
}

// ClearCredentials drops both the bearer credential and the tenant id.
func (c *Client) ClearCredentials() {
	c.mu.Lock()
	c.accessToken = ""
	c.organizationID = ""
	c.mu.Unlock()
}

// OnUnauthorized registers the deauthorization subscriber. The session
// store registers itself exactly once during its own initialization; a
// second registration fails with ErrSubscriberRegistered.
func (c *Client) OnUnauthorized(fn func()) error {
	if fn == nil {
		return ErrSubscriberRegistered
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.onUnauthorized != nil {
		return ErrSubscriberRegistered
	}
	c.onUnauthorized = fn
	return nil
}

// Do issues a request and decodes the JSON response into out (when out is
// non-nil). Extra headers override the defaults, including Content-Type.
//
// Side effects per call are exactly: header injection, and the
// deauthorization callback at most once on a failing call. The success
// path never deauthorizes.
func (c *Client) Do(ctx context.Context, method, endpoint string, body, out any, headers map[string]string) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			// local failure, the request never left the process
			return &APIError{Code: CodeInternalError, Message: "invalid request body"}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return newNetworkError()
	}

	req.Header.Set(HeaderContentType, "application/json")

	c.mu.RLock()
	if c.accessToken != "" {
		req.Header.Set(HeaderAuthorization, "Bearer "+c.accessToken)
	}
	if c.organizationID != "" {
		req.Header.Set(HeaderOrganization, c.organizationID)
	}
	c.mu.RUnlock()

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	res, err := c.http.Do(req)
	if err != nil {
		// Collapse transport failures into the fixed NETWORK_ERROR; the
		// underlying exception never reaches callers.
		c.logger.Error("request transport failure: %s %s", method, endpoint)
		return newNetworkError()
	}
	defer res.Body.Close()

	// 401 forces deauthorization without attempting to parse a body.
	if res.StatusCode == http.StatusUnauthorized {
		c.deauthorize()
		return newAuthRequiredError()
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		apiErr := c.readError(res)
		if ShouldForceLogout(apiErr) {
			c.deauthorize()
		}
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, res.Body)
		return nil
	}

	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return &APIError{Code: CodeInternalError, Message: "invalid response body"}
	}

	return nil
}

// readError parses a non-2xx body as a canonical error, synthesizing
// INTERNAL_ERROR with the HTTP status when the body is not parseable.
func (c *Client) readError(res *http.Response) *APIError {
	var envelope errorEnvelope
	if err := json.NewDecoder(res.Body).Decode(&envelope); err != nil || envelope.Err.Code == "" {
		return newInternalError(res.StatusCode)
	}

	apiErr := envelope.Err
	apiErr.CorrelationID = envelope.CorrelationID
	return &apiErr
}

// deauthorize clears the in-memory credential/tenant fields and notifies
// the registered subscriber.
func (c *Client) deauthorize() {
	c.mu.Lock()
	c.accessToken = ""
	c.organizationID = ""
	fn := c.onUnauthorized
	c.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// Login calls POST /api/v1/auth/login.
func (c *Client) Login(ctx context.Context, payload LoginRequest) (*LoginResponse, error) {
	out := new(LoginResponse)
	if err := c.Do(ctx, http.MethodPost, EndpointLogin, payload, out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Me calls GET /api/v1/auth/me. Requires the bearer credential and the
// tenant header to be set.
func (c *Client) Me(ctx context.Context) (*UserInfo, error) {
	out := new(UserInfo)
	if err := c.Do(ctx, http.MethodGet, EndpointMe, nil, out, nil); err != nil {
		return nil, err
	}
	return out, nil
}

// Logout calls POST /api/v1/auth/logout to revoke the current token.
func (c *Client) Logout(ctx context.Context) (*MessageResponse, error) {
	out := new(MessageResponse)
	if err := c.Do(ctx, http.MethodPost, EndpointLogout, nil, out, nil); err != nil {
		return nil, err
	}
	return out, nil
}
