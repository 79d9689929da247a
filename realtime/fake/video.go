package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/realtime"
)

var _ realtime.VideoBackend = (*Video)(nil)

type Video struct {
	realtime.Emitter

	mu          sync.Mutex
	connected   bool
	user        identity.Identity
	calls       map[string]*Call
	history     []string
	joinHook    func(ctx context.Context, callID string) error
	connectErrs []error
}

func NewVideo() *Video {
	return &Video{calls: make(map[string]*Call)}
}

func (v *Video) ConnectUser(ctx context.Context, id identity.Identity, credentials realtime.CredentialProvider) error {
	v.mu.Lock()
	var scripted error
	if len(v.connectErrs) > 0 {
		scripted, v.connectErrs = v.connectErrs[0], v.connectErrs[1:]
	}
	v.mu.Unlock()
	if scripted != nil {
		return scripted
	}
	if credentials != nil {
		if _, err := credentials(ctx); err != nil {
			return err
		}
	}
	v.mu.Lock()
	v.connected = true
	v.user = id
	v.mu.Unlock()
	return nil
}

func (v *Video) DisconnectUser(ctx context.Context) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.connected {
		return apperrors.Wrapf(apperrors.ErrAlreadyGone, "video user disconnected")
	}
	v.connected = false
	return nil
}

func (v *Video) Connected() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.connected
}

// FailConnect queues errors returned by the next ConnectUser calls.
func (v *Video) FailConnect(errs ...error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.connectErrs = append(v.connectErrs, errs...)
}

func (v *Video) Call(callType, id string) realtime.Call {
	v.mu.Lock()
	defer v.mu.Unlock()
	c, ok := v.calls[id]
	if !ok {
		c = &Call{video: v, id: id, callType: callType}
		v.calls[id] = c
	}
	return c
}

// OnJoin runs fn inside every Join before the call is marked joined.
func (v *Video) OnJoin(fn func(ctx context.Context, callID string) error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joinHook = fn
}

// Lookup returns the call record for id, or nil when no handle was created.
func (v *Video) Lookup(id string) *Call {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[id]
}

// History lists backend operations in the order they started, formatted
// as "<op>:<callID>".
func (v *Video) History() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]string(nil), v.history...)
}

// Ring delivers an incoming call.
func (v *Video) Ring(callID string, from identity.Identity, members ...string) {
	v.Emit(realtime.Event{Type: realtime.EventCallRing, CallID: callID, From: from, Members: members})
}

// End simulates the remote side ending callID.
func (v *Video) End(callID string) {
	if c := v.Lookup(callID); c != nil {
		c.mu.Lock()
		c.ended = true
		c.mu.Unlock()
	}
	v.Emit(realtime.Event{Type: realtime.EventCallEnded, CallID: callID})
}

func (v *Video) record(op, callID string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.history = append(v.history, op+":"+callID)
}

// Call is the in-memory state of one call.
type Call struct {
	video    *Video
	id       string
	callType string

	mu          sync.Mutex
	created     bool
	opts        realtime.CreateOptions
	joined      bool
	left        bool
	rejected    bool
	ended       bool
	leaveErrs   []error
	joinCalls   int
	leaveCalls  int
	rejectCalls int
}

var _ realtime.Call = (*Call)(nil)

func (c *Call) ID() string {
	return c.id
}

func (c *Call) GetOrCreate(ctx context.Context, opts realtime.CreateOptions) error {
	c.video.record("create", c.id)
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.created {
		c.created = true
		c.opts = opts
	}
	return nil
}

func (c *Call) Join(ctx context.Context) error {
	c.video.record("join", c.id)
	c.mu.Lock()
	c.joinCalls++
	c.mu.Unlock()

	c.video.mu.Lock()
	hook := c.video.joinHook
	c.video.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, c.id); err != nil {
			return err
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.joined = true
	c.left = false
	return nil
}

func (c *Call) Leave(ctx context.Context) error {
	c.video.record("leave", c.id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveCalls++
	if len(c.leaveErrs) > 0 {
		var err error
		err, c.leaveErrs = c.leaveErrs[0], c.leaveErrs[1:]
		return err
	}
	if c.left || !c.joined {
		return apperrors.Wrapf(apperrors.ErrAlreadyGone, "call %s has already been left", c.id)
	}
	c.joined = false
	c.left = true
	return nil
}

func (c *Call) Reject(ctx context.Context) error {
	c.video.record("reject", c.id)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejectCalls++
	if c.rejected {
		return apperrors.Wrapf(apperrors.ErrAlreadyGone, "call %s already rejected", c.id)
	}
	c.rejected = true
	return nil
}

// FailLeave queues errors returned by the next Leave calls.
func (c *Call) FailLeave(errs ...error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.leaveErrs = append(c.leaveErrs, errs...)
}

func (c *Call) Joined() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joined
}

func (c *Call) Left() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.left
}

func (c *Call) Rejected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rejected
}

func (c *Call) Ended() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ended
}

func (c *Call) Options() realtime.CreateOptions {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opts
}

func (c *Call) Counts() (join, leave, reject int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.joinCalls, c.leaveCalls, c.rejectCalls
}

func (c *Call) String() string {
	return fmt.Sprintf("%s:%s", c.callType, c.id)
}
