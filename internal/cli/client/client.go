package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/gridsight-dev/gridsight/internal/cli/events"
	"github.com/gridsight-dev/gridsight/internal/cli/session"
)

const (
	// DefaultTimeout leaves room for batch uploads of up to 100MB of video
	DefaultTimeout = 300 * time.Second

	HeaderAuthorization = "Authorization"
	HeaderRequestID     = "X-Request-ID"
	bearerPrefix        = "Bearer "
)

// Options configures a Client. BaseURL and Sessions are required.
type Options struct {
	BaseURL  string
	Timeout  time.Duration
	Sessions session.Store
	Bus      *events.Bus
	// RateLimit caps outgoing requests per second. Zero disables it.
	RateLimit float64
	// Insecure skips TLS verification for portals running on self-signed certificates
	Insecure bool
	Logger   zerolog.Logger
}

// Client represents an HTTP client for the portal API
type Client struct {
	baseURL    string
	httpClient *http.Client
	sessions   session.Store
	bus        *events.Bus
	limiter    *rate.Limiter
	log        zerolog.Logger
}

// Request describes one API call relative to the base URL
type Request struct {
	Method string
	Path   string
	Query  url.Values
	// Body is encoded as JSON when non-nil, or as multipart/form-data when it is a *Form
	Body any
	// Header is applied after the Authorization header, so a caller may replace it.
	// Empty values are ignored.
	Header http.Header
}

// Response is a 2xx response with its body fully read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	RequestID  string
}

// New creates a new API client
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	if _, err := url.Parse(opts.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if opts.Sessions == nil {
		return nil, fmt.Errorf("session store is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	if opts.Insecure {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		sessions: opts.Sessions,
		bus:      opts.Bus,
		log:      opts.Logger.With().Str("component", "client").Logger(),
	}
	if opts.RateLimit > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), 1)
	}
	return c, nil
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// BaseURL returns the portal address this client talks to
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Sessions returns the store the interceptors read and clear
func (c *Client) Sessions() session.Store {
	return c.sessions
}

// Send performs the request through both interceptors.
// Non-2xx responses come back as *StatusError; a 401 also clears the session
// and publishes AuthExpired before the error is returned.
func (c *Client) Send(ctx context.Context, r Request) (*Response, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return nil, err
	}

	c.beforeRequest(ctx, req, r.Header)
	requestID := req.Header.Get(HeaderRequestID)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &TransportError{Method: req.Method, URL: req.URL.Path, Err: err}
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debug().Err(err).Str("method", req.Method).Str("path", req.URL.Path).
			Str("request_id", requestID).Msg("request failed")
		return nil, &TransportError{Method: req.Method, URL: req.URL.Path, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Method: req.Method, URL: req.URL.Path, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	c.log.Debug().
		Str("method", req.Method).
		Str("path", req.URL.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Str("request_id", requestID).
		Msg("response received")

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       body,
		RequestID:  requestID,
	}
	if err := c.afterResponse(ctx, req, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) newRequest(ctx context.Context, r Request) (*http.Request, error) {
	target := c.baseURL + "/" + strings.TrimLeft(r.Path, "/")
	if len(r.Query) > 0 {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + r.Query.Encode()
	}

	var (
		body        io.Reader
		contentType string
	)
	switch b := r.Body.(type) {
	case nil:
	case *Form:
		if b == nil {
			break
		}
		buf, ct, err := b.encode()
		if err != nil {
			return nil, err
		}
		body, contentType = buf, ct
	default:
		jsonData, err := json.Marshal(r.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		body, contentType = bytes.NewReader(jsonData), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// beforeRequest attaches the bearer token when a session exists, then the caller's headers.
// It never fails: an unreadable session is sent without Authorization.
func (c *Client) beforeRequest(ctx context.Context, req *http.Request, overrides http.Header) {
	sess, err := c.sessions.Load(ctx)
	if err != nil {
		c.log.Warn().Err(err).Msg("failed to load session, sending request unauthenticated")
	} else if sess.Token != "" {
		req.Header.Set(HeaderAuthorization, bearerPrefix+sess.Token)
	}

	req.Header.Set(HeaderRequestID, ulid.Make().String())

	for key, values := range overrides {
		if len(values) == 0 || values[0] == "" {
			continue
		}
		if http.CanonicalHeaderKey(key) == HeaderAuthorization {
			c.log.Debug().Msg("caller replaced the Authorization header")
		}
		req.Header.Del(key)
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
}

func (c *Client) afterResponse(ctx context.Context, req *http.Request, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	statusErr := &StatusError{
		StatusCode: resp.StatusCode,
		Method:     req.Method,
		URL:        req.URL.Path,
		Body:       resp.Body,
	}

	if resp.StatusCode == http.StatusUnauthorized {
		c.expireSession(ctx, req, resp.RequestID)
	}
	return statusErr
}

// expireSession clears the stored credentials and tells the navigation owner.
// Both steps are safe to repeat when several requests fail at once.
func (c *Client) expireSession(ctx context.Context, req *http.Request, requestID string) {
	if err := c.sessions.Clear(context.WithoutCancel(ctx)); err != nil {
		c.log.Error().Err(err).Msg("failed to clear session after 401")
	}
	c.log.Info().Str("path", req.URL.Path).Msg("session expired")
	c.bus.PublishAuthExpired(events.AuthExpired{
		Method:    req.Method,
		URL:       req.URL.Path,
		RequestID: requestID,
	})
}
