// Package tokenclient fetches chat and video credentials from the token
// service and exposes them as oauth2 token sources.
package tokenclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"golang.org/x/oauth2"
)

// EarlyExpiry is how long before exp a cached credential is refetched.
const EarlyExpiry = 5 * time.Minute

type Client struct {
	baseURL string
	http    *http.Client
	headers http.Header
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithIdentity sends the identity headers a trusted proxy would set.
func WithIdentity(id identity.Identity) Option {
	return func(c *Client) {
		c.headers.Set(identity.HeaderUserID, id.ID)
		if id.DisplayName != "" {
			c.headers.Set(identity.HeaderUserName, id.DisplayName)
		}
		if id.AvatarRef != "" {
			c.headers.Set(identity.HeaderUserAvatar, id.AvatarRef)
		}
	}
}

// WithBearer authenticates requests with an ID token.
func WithBearer(idToken string) Option {
	return func(c *Client) {
		c.headers.Set("Authorization", "Bearer "+idToken)
	}
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 15 * time.Second},
		headers: http.Header{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type sourceFunc func() (*oauth2.Token, error)

func (f sourceFunc) Token() (*oauth2.Token, error) {
	return f()
}

// ChatSource fetches a chat credential for the client's identity on every call.
func (c *Client) ChatSource() oauth2.TokenSource {
	return sourceFunc(func() (*oauth2.Token, error) {
		return c.fetch(context.Background(), http.MethodPost, "/token", nil)
	})
}

// VideoSource fetches a video credential for userID on every call.
func (c *Client) VideoSource(userID string) oauth2.TokenSource {
	return sourceFunc(func() (*oauth2.Token, error) {
		body, err := json.Marshal(map[string]string{"userId": userID})
		if err != nil {
			return nil, err
		}
		return c.fetch(context.Background(), http.MethodPost, "/video-token", body)
	})
}

// Provider caches src until EarlyExpiry before the credential expires.
func Provider(src oauth2.TokenSource) realtime.CredentialProvider {
	reuse := oauth2.ReuseTokenSourceWithExpiry(nil, src, EarlyExpiry)
	return func(ctx context.Context) (string, error) {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		tok, err := reuse.Token()
		if err != nil {
			return "", err
		}
		return tok.AccessToken, nil
	}
}

func (c *Client) fetch(ctx context.Context, method, path string, body []byte) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "build request: %v", err)
	}
	for k, v := range c.headers {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTransientNetwork, "%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrTransientNetwork, "read %s: %v", path, err)
	}
	if err := statusError(resp, payload); err != nil {
		return nil, err
	}

	var out struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(payload, &out); err != nil || out.Token == "" {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "decode %s response", path)
	}
	return credentialToken(out.Token)
}

func statusError(resp *http.Response, payload []byte) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusTooManyRequests:
		return rateLimited(resp)
	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return apperrors.Wrapf(apperrors.ErrMissingIdentity, "token service returned %d", resp.StatusCode)
	case resp.StatusCode == http.StatusBadRequest:
		return apperrors.Wrapf(apperrors.ErrValidation, "token service rejected request: %s", strings.TrimSpace(string(payload)))
	case resp.StatusCode == http.StatusBadGateway, resp.StatusCode == http.StatusServiceUnavailable, resp.StatusCode == http.StatusGatewayTimeout:
		return apperrors.Wrapf(apperrors.ErrTransientNetwork, "token service returned %d", resp.StatusCode)
	default:
		return apperrors.Wrapf(apperrors.ErrInternal, "token service returned %d", resp.StatusCode)
	}
}

func rateLimited(resp *http.Response) error {
	rl := &apperrors.RateLimitedError{RetryAfter: time.Second}
	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && secs > 0 {
		rl.RetryAfter = time.Duration(secs) * time.Second
	}
	if limit, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Limit")); err == nil {
		rl.Limit = limit
	}
	if remaining, err := strconv.Atoi(resp.Header.Get("X-RateLimit-Remaining")); err == nil {
		rl.Remaining = remaining
	}
	if reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64); err == nil {
		rl.Reset = time.Unix(reset, 0)
	}
	return rl
}

// credentialToken reads exp without verifying the signature; the backend
// that receives the credential verifies it.
func credentialToken(value string) (*oauth2.Token, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(value, claims); err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrInternal, "parse credential: %v", err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, fmt.Errorf("%w: credential has no expiry", apperrors.ErrInternal)
	}
	return &oauth2.Token{
		AccessToken: value,
		TokenType:   "Bearer",
		Expiry:      exp.Time,
	}, nil
}
