// Package supabase adapts the hosted auth/data backend: GoTrue endpoints
// for sessions and credentials, PostgREST for the profiles table.
package supabase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/teamblitzer/go-authsync"
)

// Config holds the hosted backend's connection options.
type Config struct {
	// BaseURL is the project URL, e.g. "https://xyzcompany.supabase.co".
	BaseURL string

	// AnonKey is the project's public API key.
	AnonKey string

	// ProfileTable is the profiles table name. Default "profiles".
	ProfileTable string

	// HTTPClient overrides the default client (10s timeout).
	HTTPClient *http.Client
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig(baseURL, anonKey string) Config {
	return Config{
		BaseURL:      baseURL,
		AnonKey:      anonKey,
		ProfileTable: "profiles",
	}
}

// Client implements authsync.Provider and authsync.ProfileStore over the
// hosted backend's HTTP API. The current session is held in memory; the
// backend refreshes it via the refresh token when it expires.
type Client struct {
	cfg    Config
	http   *http.Client
	logger authsync.Logger
	now    func() time.Time

	mu      sync.Mutex
	session *authsync.Session

	events chan authsync.AuthEvent
}

var (
	_ authsync.Provider     = (*Client)(nil)
	_ authsync.ProfileStore = (*Client)(nil)
)

// ClientOption customizes client construction.
type ClientOption func(*Client)

// WithLogger overrides the default logger.
func WithLogger(logger authsync.Logger) ClientOption {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// New validates the config and returns a client.
func New(cfg Config, opts ...ClientOption) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, goerrors.New("backend base URL is required", goerrors.CategoryBadInput)
	}
	if strings.TrimSpace(cfg.AnonKey) == "" {
		return nil, goerrors.New("backend anon key is required", goerrors.CategoryBadInput)
	}
	if cfg.ProfileTable == "" {
		cfg.ProfileTable = "profiles"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}

	c := &Client{
		cfg:    cfg,
		http:   httpClient,
		logger: authsync.DefaultLogger(),
		now:    time.Now,
		events: make(chan authsync.AuthEvent, 16),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}

	return c, nil
}

// Events implements authsync.Provider.
func (c *Client) Events() <-chan authsync.AuthEvent {
	return c.events
}

// GetSession implements authsync.Provider. An expired session is
// refreshed through the refresh token; refresh failure reads as "no
// session" rather than an error, the caller simply re-authenticates.
func (c *Client) GetSession(ctx context.Context) (*authsync.Session, error) {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()

	if session == nil {
		return nil, nil
	}

	if !session.Expired(c.now()) {
		return session, nil
	}

	if session.RefreshToken == "" {
		return nil, nil
	}

	refreshed, err := c.refreshSession(ctx, session.RefreshToken)
	if err != nil {
		c.logger.Warn("session refresh failed: %v", err)
		c.mu.Lock()
		c.session = nil
		c.mu.Unlock()
		return nil, nil
	}

	c.mu.Lock()
	c.session = refreshed
	c.mu.Unlock()

	c.publish(authsync.AuthEvent{Kind: authsync.AuthEventTokenRefreshed, Session: refreshed})
	return refreshed, nil
}

// SignUp implements authsync.Provider. Metadata rides in the "data" field
// so server-side triggers can provision the profile row.
func (c *Client) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*authsync.Identity, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
		"data":     metadata,
	}

	var res signUpResponse
	if err := c.doAuth(ctx, http.MethodPost, "/auth/v1/signup", payload, &res); err != nil {
		return nil, err
	}

	user := res.User
	if user == nil {
		// confirmation-gated projects return the bare user object
		user = &res.userObject
	}

	identity, err := user.identity()
	if err != nil {
		return nil, err
	}
	return &identity, nil
}

// SignInWithPassword implements authsync.Provider.
func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*authsync.Session, error) {
	payload := map[string]any{
		"email":    email,
		"password": password,
	}

	var res tokenResponse
	if err := c.doAuth(ctx, http.MethodPost, "/auth/v1/token?grant_type=password", payload, &res); err != nil {
		return nil, err
	}

	session, err := c.sessionFromToken(res)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.session = session
	c.mu.Unlock()

	c.publish(authsync.AuthEvent{Kind: authsync.AuthEventSignedIn, Session: session})
	return session, nil
}

// SignOut implements authsync.Provider. The local session is dropped
// before the revocation call; a revocation failure is still reported.
func (c *Client) SignOut(ctx context.Context) error {
	c.mu.Lock()
	session := c.session
	c.session = nil
	c.mu.Unlock()

	c.publish(authsync.AuthEvent{Kind: authsync.AuthEventSignedOut})

	if session == nil {
		return nil
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/auth/v1/logout", nil)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+session.AccessToken)

	resp, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "sign out request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.remoteError(resp)
	}
	return nil
}

func (c *Client) refreshSession(ctx context.Context, refreshToken string) (*authsync.Session, error) {
	payload := map[string]any{"refresh_token": refreshToken}

	var res tokenResponse
	if err := c.doAuth(ctx, http.MethodPost, "/auth/v1/token?grant_type=refresh_token", payload, &res); err != nil {
		return nil, err
	}
	return c.sessionFromToken(res)
}

type userObject struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func (u *userObject) identity() (authsync.Identity, error) {
	id, err := uuid.Parse(u.ID)
	if err != nil {
		return authsync.Identity{}, goerrors.Wrap(err, goerrors.CategoryBadInput, "backend returned a malformed user id")
	}
	return authsync.Identity{ID: id, Email: u.Email}, nil
}

type signUpResponse struct {
	User *userObject `json:"user"`
	userObject
}

type tokenResponse struct {
	AccessToken  string      `json:"access_token"`
	TokenType    string      `json:"token_type"`
	ExpiresIn    int64       `json:"expires_in"`
	RefreshToken string      `json:"refresh_token"`
	User         *userObject `json:"user"`
}

func (c *Client) sessionFromToken(res tokenResponse) (*authsync.Session, error) {
	if res.AccessToken == "" {
		return nil, goerrors.New("backend returned no access token", goerrors.CategoryInternal)
	}

	var identity authsync.Identity
	var err error
	if res.User != nil {
		identity, err = res.User.identity()
	} else {
		identity, err = identityFromAccessToken(res.AccessToken)
	}
	if err != nil {
		return nil, err
	}

	expires := expiryFromAccessToken(res.AccessToken)
	if expires == nil && res.ExpiresIn > 0 {
		t := c.now().Add(time.Duration(res.ExpiresIn) * time.Second)
		expires = &t
	}

	return &authsync.Session{
		AccessToken:  res.AccessToken,
		TokenType:    res.TokenType,
		RefreshToken: res.RefreshToken,
		ExpiresAt:    expires,
		Identity:     identity,
	}, nil
}

func (c *Client) doAuth(ctx context.Context, method, path string, payload, out any) error {
	req, err := c.newRequest(ctx, method, path, payload)
	if err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "auth request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return c.remoteError(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to decode auth response")
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload any) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to encode request payload")
		}
		body = bytes.NewReader(buf)
	}

	url := strings.TrimSuffix(c.cfg.BaseURL, "/") + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to build request")
	}

	req.Header.Set("apikey", c.cfg.AnonKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Client-Info", "go-authsync")
	return req, nil
}

// remoteError maps the backend's error payloads into the taxonomy,
// rewriting throttling and verification messages on the way.
func (c *Client) remoteError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var payload struct {
		Msg         string `json:"msg"`
		Message     string `json:"message"`
		Description string `json:"error_description"`
	}
	_ = json.Unmarshal(raw, &payload)

	msg := payload.Description
	if msg == "" {
		msg = payload.Msg
	}
	if msg == "" {
		msg = payload.Message
	}
	if msg == "" {
		msg = fmt.Sprintf("backend returned status %d", resp.StatusCode)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return authsync.ErrRateLimited
	}
	return authsync.ClassifyRemoteMessage(msg)
}

// publish drops events when the single consumer lags far behind.
func (c *Client) publish(event authsync.AuthEvent) {
	select {
	case c.events <- event:
	default:
		c.logger.Warn("auth event channel full, dropping %s", event.Kind)
	}
}
