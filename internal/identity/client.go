// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 LevelUp Contributors

package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/levelup/authflow/internal/auth"
)

// DefaultTimeout bounds a single request to the identity service.
const DefaultTimeout = 10 * time.Second

// maxResponseBytes caps how much of a response body is read.
const maxResponseBytes = 1 << 20

// Config configures a Client.
type Config struct {
	// URL is the GoTrue base URL, including its mount path
	// (for example https://project.supabase.co/auth/v1).
	URL string

	// APIKey is the public (anon) key sent with every request.
	APIKey string

	// RedirectURL is where emailed links send the user back to.
	RedirectURL string

	// Timeout bounds each request. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. The caller owns its transport.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBackoff sets the backoff used for retried calls.
func WithBackoff(newBackoff func() retry.Backoff) Option {
	return func(c *Client) {
		c.backoff = newBackoff
	}
}

// WithCodeVerifier seeds the PKCE verifier, for links requested by another
// process that handed the verifier over.
func WithCodeVerifier(verifier string) Option {
	return func(c *Client) {
		c.verifier = verifier
	}
}

// Client talks to a GoTrue identity service. It is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	apiKey      string
	redirectURL string
	http        *http.Client
	logger      *slog.Logger
	backoff     func() retry.Backoff

	mu       sync.Mutex
	verifier string
}

var _ auth.IdentityBackend = (*Client)(nil)

// New creates a Client.
// Returns an error if the URL is not absolute or the API key is missing.
func New(cfg Config, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, oops.With("url", cfg.URL).Wrapf(err, "invalid identity service url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, oops.With("url", cfg.URL).Errorf("identity service url must be absolute")
	}
	if cfg.APIKey == "" {
		return nil, oops.Errorf("identity service api key is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	c := &Client{
		baseURL:     base,
		apiKey:      cfg.APIKey,
		redirectURL: cfg.RedirectURL,
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger:  slog.New(slog.DiscardHandler),
		backoff: defaultBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func defaultBackoff() retry.Backoff {
	b := retry.NewExponential(200 * time.Millisecond)
	b = retry.WithJitterPercent(20, b)
	b = retry.WithCappedDuration(2*time.Second, b)
	return retry.WithMaxRetries(3, b)
}

// tokenResponse is the session payload of the token endpoints.
type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	User         struct {
		Email string `json:"email"`
	} `json:"user"`
}

func (t tokenResponse) session() *auth.Session {
	s := &auth.Session{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		UserEmail:    t.User.Email,
	}
	switch {
	case t.ExpiresAt > 0:
		s.ExpiresAt = time.Unix(t.ExpiresAt, 0)
	case t.ExpiresIn > 0:
		s.ExpiresAt = time.Now().Add(time.Duration(t.ExpiresIn) * time.Second)
	}
	return s
}

// ExchangeCodeForSession trades a recovery link code for a session using the
// verifier of the last password reset request. The verifier is consumed
// whether or not the exchange succeeds.
func (c *Client) ExchangeCodeForSession(ctx context.Context, code string) (*auth.Session, error) {
	verifier := c.takeVerifier()
	if verifier == "" {
		return nil, oops.With("operation", "exchange").Wrap(&auth.BackendError{
			ErrorCode: ErrorCodeVerifierMissing,
			Message:   "This link was requested from another device or session. Request a new link here to continue.",
		})
	}

	var out tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {"pkce"}},
		body: map[string]string{
			"auth_code":     code,
			"code_verifier": verifier,
		},
		out: &out,
	})
	if err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, nil
	}
	return out.session(), nil
}

// VerifyRecoveryToken checks a legacy recovery token against the user endpoint.
func (c *Client) VerifyRecoveryToken(ctx context.Context, token string) error {
	return c.retry(ctx, request{
		method: http.MethodGet,
		path:   "/user",
		bearer: token,
	})
}

// UpdatePassword sets the password of the session's user.
func (c *Client) UpdatePassword(ctx context.Context, session *auth.Session, newPassword string) error {
	if session == nil || session.AccessToken == "" {
		return oops.With("operation", "update_password").Errorf("session is required")
	}
	return c.do(ctx, request{
		method: http.MethodPut,
		path:   "/user",
		bearer: session.AccessToken,
		body:   map[string]string{"password": newPassword},
	})
}

// SignOut revokes the session's refresh tokens. A session the service no
// longer knows counts as signed out.
func (c *Client) SignOut(ctx context.Context, session *auth.Session) error {
	if session == nil || session.AccessToken == "" {
		return nil
	}
	err := c.retry(ctx, request{
		method: http.MethodPost,
		path:   "/logout",
		query:  url.Values{"scope": {"local"}},
		bearer: session.AccessToken,
	})
	var be *auth.BackendError
	if errors.As(err, &be) {
		switch be.Status {
		case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
			return nil
		}
	}
	return err
}

// ResendConfirmationEmail sends the sign-up confirmation email again.
func (c *Client) ResendConfirmationEmail(ctx context.Context, email string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/resend",
		query:  c.redirectQuery(),
		body: map[string]string{
			"type":  "signup",
			"email": email,
		},
	})
}

// RequestPasswordReset emails a recovery link. A fresh PKCE verifier is
// generated for the request and kept for the exchange.
func (c *Client) RequestPasswordReset(ctx context.Context, email string) error {
	verifier := newVerifier()
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/recover",
		query:  c.redirectQuery(),
		body: map[string]string{
			"email":                 email,
			"code_challenge":        challenge(verifier),
			"code_challenge_method": challengeMethod,
		},
	})
	if err != nil {
		return err
	}
	c.setVerifier(verifier)
	return nil
}

// SignUp registers a new account. The confirmation link is a plain redirect,
// not a code flow, so it never looks like a recovery link.
func (c *Client) SignUp(ctx context.Context, email, password string) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "/signup",
		query:  c.redirectQuery(),
		body: map[string]string{
			"email":    email,
			"password": password,
		},
	})
}

// SignInWithPassword authenticates with email and password.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*auth.Session, error) {
	var out tokenResponse
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "/token",
		query:  url.Values{"grant_type": {"password"}},
		body: map[string]string{
			"email":    email,
			"password": password,
		},
		out: &out,
	})
	if err != nil {
		return nil, err
	}
	return out.session(), nil
}

// CodeVerifier returns the verifier held for the next exchange, if any.
func (c *Client) CodeVerifier() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.verifier
}

func (c *Client) takeVerifier() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	v := c.verifier
	c.verifier = ""
	return v
}

func (c *Client) setVerifier(v string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.verifier = v
}

func (c *Client) redirectQuery() url.Values {
	if c.redirectURL == "" {
		return nil
	}
	return url.Values{"redirect_to": {c.redirectURL}}
}

type request struct {
	method string
	path   string
	query  url.Values
	bearer string
	body   any
	out    any
}

// retry issues req until it succeeds, fails permanently or the backoff runs
// out. Only transport failures, 429 and 5xx responses are retried.
func (c *Client) retry(ctx context.Context, req request) error {
	return retry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		err := c.do(ctx, req)
		if isRetryable(err) {
			c.logger.Debug("retrying identity request",
				"method", req.method,
				"path", req.path,
				"error", err.Error(),
			)
			return retry.RetryableError(err)
		}
		return err
	})
}

func (c *Client) do(ctx context.Context, req request) error {
	endpoint := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		endpoint.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		payload, err := json.Marshal(req.body)
		if err != nil {
			return oops.With("path", req.path).Wrapf(err, "encode request")
		}
		body = bytes.NewReader(payload)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.method, endpoint.String(), body)
	if err != nil {
		return oops.With("path", req.path).Wrapf(err, "build request")
	}
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("apikey", c.apiKey)
	if req.body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	bearer := req.bearer
	if bearer == "" {
		bearer = c.apiKey
	}
	httpReq.Header.Set("Authorization", "Bearer "+bearer)

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return oops.
			With("method", req.method, "path", req.path).
			Wrapf(err, "identity request failed")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return oops.
			With("method", req.method, "path", req.path, "status", resp.StatusCode).
			Wrapf(err, "read identity response")
	}

	c.logger.Debug("identity request",
		"method", req.method,
		"path", req.path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= http.StatusBadRequest {
		return oops.
			With("method", req.method, "path", req.path, "status", resp.StatusCode).
			Wrap(decodeError(resp.StatusCode, data))
	}
	if req.out != nil && len(bytes.TrimSpace(data)) > 0 {
		if err := json.Unmarshal(data, req.out); err != nil {
			return oops.
				With("method", req.method, "path", req.path).
				Wrapf(err, "decode identity response")
		}
	}
	return nil
}
