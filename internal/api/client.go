// internal/api/client.go
//
// REST client for the remote Phanda API.
// Responsibilities:
//   - JSON request/response handling around the {success, data} envelope.
//   - Bearer auth from a TokenStore, renewed ahead of expiry when possible.
//   - On 401: refresh the token pair once and retry the request. When that is
//     impossible the stored session is cleared and ErrSessionExpired returned.
//
// Endpoint wrappers live in endpoints.go.

package api

import (
	"bytes"
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

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "http://192.168.1.104:9500/api"
	DefaultTimeout = 10 * time.Second
)

// TokenStore holds the session's token pair.
// Token returns nil when there is no session.
type TokenStore interface {
	Token(ctx context.Context) (*oauth2.Token, error)
	SetTokens(ctx context.Context, t Tokens) error
	ClearSession(ctx context.Context) error
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	DeviceID   string
	HTTPClient *http.Client // optional; its Transport is wrapped
}

// Client talks to the remote API. It is safe for concurrent use.
type Client struct {
	base   string
	http   *http.Client
	tokens TokenStore

	refreshMu sync.Mutex
}

// New returns a Client. tokens may be nil for anonymous use.
func New(opts Options, tokens TokenStore) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	hc := &http.Client{Timeout: timeout}
	if opts.HTTPClient != nil {
		cp := *opts.HTTPClient
		hc = &cp
		if hc.Timeout == 0 {
			hc.Timeout = timeout
		}
	}
	hc.Transport = newTransport(hc.Transport, opts.DeviceID)
	return &Client{base: base, http: hc, tokens: tokens}
}

// BaseURL returns the API root the client talks to.
func (c *Client) BaseURL() string { return c.base }

// Paths that never carry a bearer token.
var publicPaths = map[string]bool{
	"/auth/login":    true,
	"/auth/register": true,
	"/auth/refresh":  true,
}

// call performs one API round trip with auth, decoding data into out.
func (c *Client) call(ctx context.Context, method, path string, query url.Values, in, out any) error {
	var body []byte
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = b
	}

	if publicPaths[path] || c.tokens == nil {
		return c.send(ctx, method, path, query, body, nil, out)
	}

	tok, err := c.currentToken(ctx)
	if err != nil {
		return err
	}
	err = c.send(ctx, method, path, query, body, tok, out)
	if !IsStatus(err, http.StatusUnauthorized) || path == "/auth/logout" {
		return err
	}

	tok, err = c.renewOrExpire(ctx, tok)
	if err != nil {
		return err
	}
	return c.send(ctx, method, path, query, body, tok, out)
}

// currentToken returns the stored token, renewing it first when it is known
// to be expired. A failed early renewal is not fatal; the server gets the
// final say through a 401.
func (c *Client) currentToken(ctx context.Context) (*oauth2.Token, error) {
	tok, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if tok == nil || tok.Valid() || tok.AccessToken == "" || tok.RefreshToken == "" {
		return tok, nil
	}
	fresh, err := c.renew(ctx, tok)
	if err != nil {
		log.Debug().Err(err).Msg("early token refresh failed")
		return tok, nil
	}
	return fresh, nil
}

// renewOrExpire renews the session after a 401, clearing it on failure.
func (c *Client) renewOrExpire(ctx context.Context, used *oauth2.Token) (*oauth2.Token, error) {
	fresh, err := c.renew(ctx, used)
	if err == nil {
		return fresh, nil
	}
	if clearErr := c.tokens.ClearSession(ctx); clearErr != nil {
		log.Warn().Err(clearErr).Msg("clear expired session")
	}
	if errors.Is(err, ErrSessionExpired) {
		return nil, err
	}
	return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
}

// renew exchanges the refresh token for a new pair and stores it. When
// another caller already renewed since used was read, the stored pair is
// returned as is.
func (c *Client) renew(ctx context.Context, used *oauth2.Token) (*oauth2.Token, error) {
	c.refreshMu.Lock()
	defer c.refreshMu.Unlock()

	cur, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("read token: %w", err)
	}
	if cur == nil || cur.RefreshToken == "" {
		return nil, ErrSessionExpired
	}
	if used != nil && cur.AccessToken != used.AccessToken && cur.Valid() {
		return cur, nil
	}

	pair, err := c.Refresh(ctx, cur.RefreshToken)
	if err != nil {
		return nil, err
	}
	if err := c.tokens.SetTokens(ctx, pair); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	return c.tokens.Token(ctx)
}

// send performs a single HTTP exchange.
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body []byte, tok *oauth2.Token, out any) error {
	u := c.base + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if tok != nil && tok.AccessToken != "" {
		tok.SetAuthHeader(req)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	return decode(resp, out)
}

// decode unwraps the envelope. Non-2xx statuses and success=false both
// become *Error.
func decode(resp *http.Response, out any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	var env envelope
	parseErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &Error{Status: resp.StatusCode}
		if parseErr == nil {
			apiErr.Code, apiErr.Message = env.Error, env.Message
		}
		return apiErr
	}
	if parseErr != nil {
		return fmt.Errorf("decode response: %w", parseErr)
	}
	if !env.Success {
		return &Error{Status: resp.StatusCode, Code: env.Error, Message: env.Message}
	}
	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode data: %w", err)
	}
	return nil
}
