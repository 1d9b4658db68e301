// Package client is the REST client used by sitectl. Every authenticated
// request carries the stored bearer token and the User-Id header; a 401 or
// 403 response clears the stored session.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/good-yellow-bee/sitecraft/internal/session"
	"github.com/good-yellow-bee/sitecraft/pkg/config"
)

// UserIDHeader names the caller on every authenticated request.
const UserIDHeader = "User-Id"

// ErrUnauthorized is returned when the server rejects the stored credential.
// The session has already been cleared when it is returned.
var ErrUnauthorized = errors.New("session expired or invalid, sign in again")

// APIError is a non-2xx response carrying the server's error envelope.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStatus reports whether err is a server response with the given status.
func IsStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == status
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	return IsStatus(err, http.StatusNotFound)
}

// Options configures a Client.
type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     *zerolog.Logger

	// UserAgent names the program on every request. The server stores it with
	// the refresh tokens it issues.
	UserAgent string
}

// Client talks to one sitecraft server.
type Client struct {
	baseURL   string
	http      *http.Client
	store     *session.Store
	log       zerolog.Logger
	userAgent string
}

// New creates a client for baseURL. store holds the credential and may be
// nil for unauthenticated use.
func New(baseURL string, store *session.Store, opts Options) *Client {
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	log := zerolog.Nop()
	if opts.Logger != nil {
		log = *opts.Logger
	}
	ua := opts.UserAgent
	if ua == "" {
		ua = config.UserAgent("sitecraft-client")
	}
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		http:      hc,
		store:     store,
		log:       log.With().Str("component", "client").Logger(),
		userAgent: ua,
	}
}

// BaseURL returns the server address.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Session returns the credential used for ctx: the one carried by ctx if
// any, otherwise the stored one.
func (c *Client) Session(ctx context.Context) (*session.Session, error) {
	if s, ok := session.FromContext(ctx); ok {
		return s, nil
	}
	if c.store == nil {
		return nil, session.ErrNoSession
	}
	return c.store.Get()
}

type request struct {
	method string
	path   string
	// body is JSON-encoded unless it is already []byte.
	body   any
	auth   bool
	accept string
}

// do sends req and decodes the data envelope into out. A nil out discards the body.
func (c *Client) do(ctx context.Context, req request, out any) error {
	resp, err := c.send(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	env := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode %s %s: %w", req.method, req.path, err)
	}
	return nil
}

// send performs req once and maps error statuses. Failures are returned to
// the caller as is; nothing is retried. On success the caller owns the body.
func (c *Client) send(ctx context.Context, req request) (*http.Response, error) {
	var payload []byte
	switch b := req.body.(type) {
	case nil:
	case []byte:
		payload = b
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		payload = raw
	}

	var sess *session.Session
	if req.auth {
		var err error
		if sess, err = c.Session(ctx); err != nil {
			return nil, err
		}
	}

	resp, err := c.roundTrip(ctx, req, payload, sess)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.method, req.path, err)
	}

	if resp.StatusCode < 400 {
		return resp, nil
	}
	defer resp.Body.Close()

	if req.auth && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
		c.clearSession()
		return nil, ErrUnauthorized
	}
	return nil, decodeError(resp)
}

func (c *Client) roundTrip(ctx context.Context, req request, payload []byte, sess *session.Session) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, c.baseURL+req.path, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	if req.accept != "" {
		httpReq.Header.Set("Accept", req.accept)
	} else {
		httpReq.Header.Set("Accept", "application/json")
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	if sess != nil {
		httpReq.Header.Set("Authorization", "Bearer "+sess.Token())
		httpReq.Header.Set(UserIDHeader, sess.UserID())
	}

	start := time.Now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, err
	}
	c.log.Debug().
		Str("method", req.method).
		Str("path", req.path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Msg("request")
	return resp, nil
}

func (c *Client) clearSession() {
	if c.store == nil {
		return
	}
	if err := c.store.Clear(); err != nil {
		c.log.Warn().Err(err).Msg("clear rejected session")
	}
}

func decodeError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode}
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&env); err == nil {
		apiErr.Code = env.Error.Code
		apiErr.Message = env.Error.Message
	}
	return apiErr
}
