// Package fake provides in-memory chat and video backends. They count calls,
// record their history and can be scripted to fail.
package fake

import (
	"context"
	"sync"

	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/realtime"
)

var _ realtime.ChatBackend = (*Chat)(nil)

type Chat struct {
	realtime.Emitter

	mu              sync.Mutex
	connectErrs     []error
	connectHook     func(ctx context.Context) error
	connected       bool
	user            identity.Identity
	credential      string
	connectCalls    int
	disconnectCalls int
}

func NewChat() *Chat {
	return &Chat{}
}

// FailConnect queues errors returned by the next ConnectUser calls, in order.
func (c *Chat) FailConnect(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectErrs = append(c.connectErrs, errs...)
}

// OnConnect runs fn at the start of every ConnectUser call.
func (c *Chat) OnConnect(fn func(ctx context.Context) error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connectHook = fn
}

func (c *Chat) ConnectUser(ctx context.Context, id identity.Identity, credentials realtime.CredentialProvider) error {
	c.mu.Lock()
	c.connectCalls++
	hook := c.connectHook
	var scripted error
	if len(c.connectErrs) > 0 {
		scripted, c.connectErrs = c.connectErrs[0], c.connectErrs[1:]
	}
	c.mu.Unlock()

	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}
	if scripted != nil {
		return scripted
	}
	if credentials == nil {
		return apperrors.ErrMissingCredentials
	}
	cred, err := credentials(ctx)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.connected = true
	c.user = id
	c.credential = cred
	c.mu.Unlock()

	c.Emit(realtime.Event{Type: realtime.EventConnectionChanged, Online: true})
	return nil
}

func (c *Chat) DisconnectUser(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectCalls++
	if !c.connected {
		return apperrors.Wrapf(apperrors.ErrAlreadyGone, "chat user disconnected")
	}
	c.connected = false
	return nil
}

// Drop simulates the backend losing the connection.
func (c *Chat) Drop() {
	c.mu.Lock()
	c.connected = false
	c.mu.Unlock()
	c.Emit(realtime.Event{Type: realtime.EventConnectionChanged, Online: false})
}

func (c *Chat) Connected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Chat) User() identity.Identity {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.user
}

func (c *Chat) Credential() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.credential
}

func (c *Chat) ConnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectCalls
}

func (c *Chat) DisconnectCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.disconnectCalls
}
