// Package wschat is a ChatBackend speaking JSON frames over a websocket.
package wschat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/rs/zerolog"
)

const (
	defaultPingInterval = 25 * time.Second
	defaultWriteTimeout = 5 * time.Second
	readLimit           = 64 << 10
)

var _ realtime.ChatBackend = (*Backend)(nil)

// Frame is the wire format of server messages.
type Frame struct {
	Type   string `json:"type"`
	Online bool   `json:"online,omitempty"`
	Error  string `json:"error,omitempty"`
}

type Backend struct {
	realtime.Emitter

	url          string
	dialer       *websocket.Dialer
	pingInterval time.Duration
	writeTimeout time.Duration
	log          zerolog.Logger

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	user    identity.Identity
	cancel  context.CancelFunc
}

type Option func(*Backend)

func WithDialer(d *websocket.Dialer) Option {
	return func(b *Backend) {
		b.dialer = d
	}
}

func WithPingInterval(d time.Duration) Option {
	return func(b *Backend) {
		b.pingInterval = d
	}
}

func New(rawURL string, opts ...Option) *Backend {
	b := &Backend{
		url:          rawURL,
		dialer:       websocket.DefaultDialer,
		pingInterval: defaultPingInterval,
		writeTimeout: defaultWriteTimeout,
		log:          logx.Component("wschat"),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// ConnectUser dials the server as id. Connecting while already connected is a
// no-op.
func (b *Backend) ConnectUser(ctx context.Context, id identity.Identity, credentials realtime.CredentialProvider) error {
	if id.ID == "" {
		return apperrors.ErrMissingIdentity
	}
	if credentials == nil {
		return apperrors.ErrMissingCredentials
	}

	b.mu.Lock()
	active := b.conn != nil
	b.mu.Unlock()
	if active {
		return nil
	}

	conn, err := b.dial(ctx, id, credentials)
	if err != nil {
		return err
	}

	b.mu.Lock()
	if b.conn != nil {
		b.mu.Unlock()
		_ = conn.Close()
		return nil
	}
	sessionCtx, cancel := context.WithCancel(context.Background())
	b.conn = conn
	b.user = id
	b.cancel = cancel
	b.mu.Unlock()

	b.serve(sessionCtx, conn)
	b.log.Info().Str("identity_id", id.ID).Msg("Chat connected")
	b.Emit(realtime.Event{Type: realtime.EventConnectionChanged, Online: true})
	return nil
}

func (b *Backend) dial(ctx context.Context, id identity.Identity, credentials realtime.CredentialProvider) (*websocket.Conn, error) {
	token, err := credentials(ctx)
	if err != nil {
		return nil, err
	}

	u, err := url.Parse(b.url)
	if err != nil {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "chat url %q", b.url)
	}
	q := u.Query()
	q.Set("user_id", id.ID)
	q.Set("token", token)
	u.RawQuery = q.Encode()

	conn, resp, err := b.dialer.DialContext(ctx, u.String(), nil)
	if resp != nil && resp.Body != nil {
		_ = resp.Body.Close()
	}
	if err != nil {
		return nil, handshakeError(resp, err)
	}
	conn.SetReadLimit(readLimit)
	return conn, nil
}

func handshakeError(resp *http.Response, err error) error {
	if resp == nil {
		return apperrors.Wrapf(apperrors.ErrTransientNetwork, "chat dial: %v", err)
	}
	switch resp.StatusCode {
	case http.StatusTooManyRequests:
		secs, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return &apperrors.RateLimitedError{RetryAfter: time.Duration(secs) * time.Second}
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Wrapf(apperrors.ErrMissingCredentials, "chat handshake rejected with %d", resp.StatusCode)
	case http.StatusBadRequest:
		return apperrors.Wrapf(apperrors.ErrValidation, "chat handshake rejected")
	default:
		return apperrors.Wrapf(apperrors.ErrTransientNetwork, "chat handshake returned %d", resp.StatusCode)
	}
}

func (b *Backend) serve(ctx context.Context, conn *websocket.Conn) {
	pongWait := 2 * b.pingInterval
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	go b.ping(ctx, conn)
	go b.read(conn)
}

func (b *Backend) ping(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(b.pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := b.writeControl(conn, websocket.PingMessage, nil); err != nil {
				_ = conn.Close()
				return
			}
		}
	}
}

func (b *Backend) read(conn *websocket.Conn) {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			b.dropped(conn, err)
			return
		}
		var f Frame
		if err := json.Unmarshal(raw, &f); err != nil {
			b.log.Warn().Err(err).Msg("Invalid chat frame")
			continue
		}
		b.dispatch(f)
	}
}

func (b *Backend) dispatch(f Frame) {
	switch realtime.EventType(f.Type) {
	case realtime.EventConnectionChanged:
		b.Emit(realtime.Event{Type: realtime.EventConnectionChanged, Online: f.Online})
	case realtime.EventConnectionError:
		b.Emit(realtime.Event{Type: realtime.EventConnectionError, Err: apperrors.New(f.Error)})
	default:
		b.log.Debug().Str("type", f.Type).Msg("Unhandled chat frame")
	}
}

// dropped handles a read failure. A connection closed by DisconnectUser is
// silent; anything else is reported offline and left for the caller to redial.
func (b *Backend) dropped(conn *websocket.Conn, err error) {
	b.mu.Lock()
	if b.conn != conn {
		b.mu.Unlock()
		return
	}
	b.conn = nil
	b.cancel()
	b.cancel = nil
	id := b.user
	b.mu.Unlock()
	_ = conn.Close()

	b.log.Warn().Err(err).Str("identity_id", id.ID).Msg("Chat connection lost")
	b.Emit(realtime.Event{Type: realtime.EventConnectionChanged, Online: false})
}

// DisconnectUser closes the connection. Disconnecting twice, or after the
// server dropped the connection, reports ErrAlreadyGone.
func (b *Backend) DisconnectUser(ctx context.Context) error {
	b.mu.Lock()
	conn, cancel := b.conn, b.cancel
	b.conn = nil
	b.cancel = nil
	b.mu.Unlock()

	if conn == nil {
		return apperrors.Wrapf(apperrors.ErrAlreadyGone, "chat user disconnected")
	}
	cancel()

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := b.writeControl(conn, websocket.CloseMessage, msg); err != nil {
		b.log.Debug().Err(err).Msg("Close frame not sent")
	}
	return conn.Close()
}

func (b *Backend) writeControl(conn *websocket.Conn, messageType int, data []byte) error {
	b.writeMu.Lock()
	defer b.writeMu.Unlock()
	return conn.WriteControl(messageType, data, time.Now().Add(b.writeTimeout))
}
