// Package calls owns the single video call slot of a logged-in identity:
// starting, joining by invite link, answering incoming rings and leaving.
package calls

import (
	"context"
	"strings"
	"sync"

	retrygo "github.com/avast/retry-go/v4"
	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/go-realtime-core/cleanup"
	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/internal/retry"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/jrsteele09/go-realtime-core/calls")

type Listener func(Session)

// Manager serialises every call operation for one identity. At most one
// session holds the slot; it is released to Idle only after the leave
// cooldown.
type Manager struct {
	backend     realtime.VideoBackend
	self        identity.Identity
	credentials realtime.CredentialProvider
	opts        Options
	clock       clock.Clock
	scheduler   *retry.Scheduler
	log         zerolog.Logger
	client      *cleanup.Guard

	connectMu sync.Mutex
	connected bool

	mu         sync.Mutex
	session    *session
	cooldown   *retry.Task
	lastErr    error
	unsubs     []func()
	listeners  map[int]Listener
	nextListen int
}

type Option func(*Manager)

func WithOptions(o Options) Option {
	return func(m *Manager) {
		m.opts = o
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func NewManager(backend realtime.VideoBackend, self identity.Identity, credentials realtime.CredentialProvider, opts ...Option) *Manager {
	m := &Manager{
		backend:     backend,
		self:        self,
		credentials: credentials,
		opts:        DefaultOptions(),
		clock:       clock.New(),
		client:      cleanup.NewGuard(),
		listeners:   make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.scheduler = retry.NewScheduler(m.clock)
	m.log = logx.Component("calls").With().Str("identity_id", self.ID).Logger()
	m.subscribe()
	return m
}

func (m *Manager) subscribe() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.unsubs != nil {
		return
	}
	m.unsubs = []func(){
		m.backend.On(realtime.EventCallRing, m.onRing),
		m.backend.On(realtime.EventCallEnded, m.onEnded),
		m.backend.On(realtime.EventCallLeft, m.onEnded),
		m.backend.On(realtime.EventParticipantJoined, m.onParticipantJoined),
		m.backend.On(realtime.EventParticipantLeft, m.onParticipantLeft),
	}
}

// Connect registers the identity with the video backend so incoming calls
// can ring. It is a no-op once connected, and re-arms a closed manager.
func (m *Manager) Connect(ctx context.Context) error {
	m.connectMu.Lock()
	defer m.connectMu.Unlock()
	if m.connected {
		return nil
	}
	if m.self.ID == "" {
		return apperrors.ErrMissingIdentity
	}
	if m.credentials == nil {
		return apperrors.ErrMissingCredentials
	}
	m.subscribe()
	if err := m.backend.ConnectUser(ctx, m.self, m.credentials); err != nil {
		return err
	}
	if m.client.TornDown() {
		m.client = cleanup.NewGuard()
	}
	m.connected = true
	return nil
}

// Start creates a new call, ringing target when one is given. It is rejected
// unless the slot is Idle.
func (m *Manager) Start(ctx context.Context, target *identity.Identity) error {
	ctx, span := tracer.Start(ctx, "calls.Start")
	defer span.End()
	if err := m.Connect(ctx); err != nil {
		return m.surface(err)
	}

	m.mu.Lock()
	if err := m.vacantLocked(); err != nil {
		m.mu.Unlock()
		m.log.Debug().Err(err).Msg("Start ignored")
		return err
	}
	targetID := ""
	if target != nil {
		targetID = target.ID
	}
	s := m.newSessionLocked(NewCallID(m.self.ID, targetID, m.clock.Now()), Initializing)
	if target != nil {
		s.addParticipant(*target)
	}
	m.session = s
	m.lastErr = nil
	opts := realtime.CreateOptions{
		CreatedBy: m.self.ID,
		Members:   s.memberIDs(),
		Ring:      m.opts.RingMode && target != nil,
	}
	m.mu.Unlock()

	span.SetAttributes(attribute.String("call_id", s.id))
	m.log.Info().Str("call_id", s.id).Msg("Starting call")
	m.notify()
	return m.establish(context.WithoutCancel(ctx), s, &opts)
}

// Join enters an existing call, typically from an invite link. An active call
// is left first and its Left state (or the leave grace) is awaited before the
// new call starts joining.
func (m *Manager) Join(ctx context.Context, callID, inviterName string) error {
	ctx, span := tracer.Start(ctx, "calls.Join", trace.WithAttributes(attribute.String("call_id", callID)))
	defer span.End()

	callID = strings.TrimSpace(callID)
	if callID == "" {
		return apperrors.Wrapf(apperrors.ErrInvalidInvite, "empty call id")
	}
	if err := m.Connect(ctx); err != nil {
		return m.surface(err)
	}

	m.mu.Lock()
	prev := m.session
	if prev != nil && prev.id == callID {
		switch {
		case prev.state == Ringing:
			m.mu.Unlock()
			return m.Accept(ctx)
		case prev.state == Initializing, prev.state == Joining, prev.state == Joined:
			m.mu.Unlock()
			return nil
		}
	}
	m.mu.Unlock()

	if prev != nil {
		if err := m.endBeforeJoin(ctx, prev); err != nil {
			return err
		}
	}

	m.mu.Lock()
	if m.session != nil && m.session != prev {
		m.mu.Unlock()
		return apperrors.Wrapf(apperrors.ErrConcurrencyConflict, "call %s took the slot during invite join", m.session.id)
	}
	m.cooldown.Cancel()
	m.cooldown = nil
	s := m.newSessionLocked(callID, Joining)
	s.inviteJoin = true
	s.inviterName = inviterName
	m.session = s
	m.lastErr = nil
	m.mu.Unlock()

	m.log.Info().Str("call_id", callID).Str("inviter", inviterName).Msg("Joining call by invite")
	m.notify()
	return m.establish(context.WithoutCancel(ctx), s, nil)
}

// JoinLink parses an invite link and joins the call it names.
func (m *Manager) JoinLink(ctx context.Context, rawURL string) error {
	inv, err := ParseInviteLink(rawURL)
	if err != nil {
		return err
	}
	return m.Join(ctx, inv.RoomID, inv.UserName)
}

// InviteLink builds the invite link for the current call.
func (m *Manager) InviteLink(origin string) (string, error) {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil || !s.state.Active() {
		return "", apperrors.Wrapf(apperrors.ErrNotFound, "no active call")
	}
	return BuildInviteLink(origin, s.id, m.self.Name())
}

// Leave ends the current call. Repeated and concurrent calls are no-ops.
func (m *Manager) Leave(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "calls.Leave")
	defer span.End()

	m.mu.Lock()
	s := m.session
	if s == nil {
		m.mu.Unlock()
		return nil
	}
	state := s.state
	m.mu.Unlock()

	switch state {
	case Ringing:
		return m.Reject(ctx)
	case Leaving, Left:
		return nil
	}
	return m.leave(ctx, s)
}

func (m *Manager) endBeforeJoin(ctx context.Context, prev *session) error {
	m.mu.Lock()
	state := prev.state
	m.mu.Unlock()

	switch state {
	case Left:
		return nil
	case Ringing:
		if err := m.rejectSession(ctx, prev); err != nil {
			m.log.Warn().Err(err).Str("call_id", prev.id).Msg("Failed to reject ringing call before invite join")
		}
		return nil
	}

	if err := m.leave(ctx, prev); err != nil {
		m.log.Warn().Err(err).Str("call_id", prev.id).Msg("Leave before invite join failed")
	}
	select {
	case <-prev.left:
	case <-m.clock.After(m.opts.LeaveGrace):
		m.log.Warn().Str("call_id", prev.id).Dur("grace", m.opts.LeaveGrace).Msg("Previous call did not confirm leave in time")
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// establish creates (when opts is set) and joins s, reverting the slot to Idle
// on failure.
func (m *Manager) establish(ctx context.Context, s *session, opts *realtime.CreateOptions) error {
	if opts != nil {
		if err := s.call.GetOrCreate(ctx, *opts); err != nil {
			return m.failed(s, err)
		}
		if !m.advance(s, Initializing, Joining) {
			return m.superseded(s)
		}
	}

	m.mu.Lock()
	if m.session != s || s.state != Joining {
		m.mu.Unlock()
		return m.superseded(s)
	}
	s.joining = true
	m.mu.Unlock()

	err := s.call.Join(ctx)

	m.mu.Lock()
	s.joining = false
	deferred := s.leaveDeferred
	m.mu.Unlock()
	if deferred {
		return m.deferredLeave(ctx, s, err == nil)
	}

	if err != nil {
		return m.failed(s, err)
	}
	if !m.advance(s, Joining, Joined) {
		return m.superseded(s)
	}
	m.log.Info().Str("call_id", s.id).Msg("Call joined")
	return nil
}

func (m *Manager) advance(s *session, from, to State) bool {
	m.mu.Lock()
	if m.session != s || s.state != from {
		m.mu.Unlock()
		return false
	}
	s.state = to
	m.mu.Unlock()
	m.notify()
	return true
}

func (m *Manager) failed(s *session, err error) error {
	m.mu.Lock()
	if m.session == s && (s.state == Initializing || s.state == Joining) {
		m.session = nil
		m.lastErr = err
	}
	m.mu.Unlock()
	m.log.Error().Err(err).Str("call_id", s.id).Msg("Call failed")
	m.notify()
	return err
}

// superseded handles a start or join whose session was left before the
// backend call was joined. The leave already ran, so nothing is released.
func (m *Manager) superseded(s *session) error {
	m.log.Info().Str("call_id", s.id).Msg("Call left while joining")
	return nil
}

// deferredLeave completes a leave requested while the backend join was in
// flight. The join result decides whether there is anything to release.
func (m *Manager) deferredLeave(ctx context.Context, s *session, joined bool) error {
	m.log.Info().Str("call_id", s.id).Bool("joined", joined).Msg("Call left while joining")
	var err error
	if joined {
		err = m.safeLeave(context.WithoutCancel(ctx), s.call)
	}
	m.finishLeave(s, err)
	return nil
}

func (m *Manager) leave(ctx context.Context, s *session) error {
	// An unmounting caller must not abandon a leave half way.
	ctx = context.WithoutCancel(ctx)
	return s.leave.Run(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		if s.state == Left {
			m.mu.Unlock()
			return nil
		}
		s.state = Leaving
		// The in-flight join releases the call once it settles.
		s.leaveDeferred = s.joining
		deferred := s.leaveDeferred
		m.mu.Unlock()
		m.notify()
		if deferred {
			m.log.Debug().Str("call_id", s.id).Msg("Leave deferred until join settles")
			return nil
		}

		err := m.safeLeave(ctx, s.call)
		m.finishLeave(s, err)
		return err
	})
}

// finishLeave moves s to Left and starts the cooldown that frees the slot.
func (m *Manager) finishLeave(s *session, err error) {
	m.mu.Lock()
	s.state = Left
	close(s.left)
	if err != nil {
		m.lastErr = err
	}
	if m.session == s {
		m.cooldown.Cancel()
		m.cooldown = m.scheduler.Schedule(m.opts.LeaveCooldown, func() { m.release(s) })
	}
	m.mu.Unlock()

	if err != nil {
		m.log.Error().Err(err).Str("call_id", s.id).Msg("Leave failed, released locally")
	} else {
		m.log.Info().Str("call_id", s.id).Msg("Call left")
	}
	m.notify()
}

// safeLeave retries the backend leave. A call the backend already considers
// left counts as success.
func (m *Manager) safeLeave(ctx context.Context, call realtime.Call) error {
	attempt := 0
	return retrygo.Do(
		func() error {
			attempt++
			err := call.Leave(ctx)
			if err == nil || apperrors.IsGone(err) {
				return nil
			}
			m.log.Warn().Err(err).Int("attempt", attempt).Str("call_id", call.ID()).Msg("Leave attempt failed")
			return err
		},
		retrygo.Context(ctx),
		retrygo.Attempts(uint(max(m.opts.LeaveAttempts, 1))),
		retrygo.Delay(m.opts.LeaveRetryDelay),
		retrygo.DelayType(retrygo.FixedDelay),
		retrygo.LastErrorOnly(true),
		retrygo.WithTimer(m.clock),
		retrygo.RetryIf(func(err error) bool {
			return !apperrors.Is(err, apperrors.ErrValidation)
		}),
	)
}

func (m *Manager) release(s *session) {
	m.mu.Lock()
	if m.session != s {
		m.mu.Unlock()
		return
	}
	m.session = nil
	m.cooldown = nil
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) vacantLocked() error {
	if m.session == nil {
		return nil
	}
	return apperrors.Wrapf(apperrors.ErrConcurrencyConflict, "call %s is %s", m.session.id, m.session.state)
}

func (m *Manager) newSessionLocked(id string, state State) *session {
	s := &session{
		id:        id,
		call:      m.backend.Call(m.opts.CallType, id),
		state:     state,
		createdAt: m.clock.Now(),
		leave:     cleanup.NewGuard(),
		left:      make(chan struct{}),
	}
	s.addParticipant(m.self)
	return s
}

func (m *Manager) surface(err error) error {
	m.mu.Lock()
	m.lastErr = err
	m.mu.Unlock()
	m.notify()
	return err
}

// Close leaves or rejects the current call, disconnects from the video
// backend and stops listening to backend events. A later Connect, Start or
// Join reconnects and resubscribes.
func (m *Manager) Close(ctx context.Context) error {
	err := m.Leave(ctx)

	m.mu.Lock()
	unsubs := m.unsubs
	m.unsubs = nil
	m.cooldown.Cancel()
	m.cooldown = nil
	if m.session != nil && m.session.state == Left {
		m.session = nil
	}
	m.mu.Unlock()

	for _, unsub := range unsubs {
		unsub()
	}

	m.connectMu.Lock()
	if m.connected {
		derr := m.client.Run(ctx, func(ctx context.Context) error {
			return m.backend.DisconnectUser(ctx)
		})
		if derr == nil {
			m.connected = false
		}
		if err == nil {
			err = derr
		}
	}
	m.connectMu.Unlock()
	m.notify()
	return err
}

func (m *Manager) Snapshot() Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() Session {
	if m.session == nil {
		return Session{State: Idle}
	}
	return m.session.snapshot()
}

// Status is the coarse view handed to the UI.
func (m *Manager) Status() apperrors.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return apperrors.Coarse(m.lastErr, apperrors.StatusCallFailed)
}

// Subscribe registers fn for session changes. The returned function stops
// further deliveries.
func (m *Manager) Subscribe(fn Listener) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextListen++
	id := m.nextListen
	m.listeners[id] = fn
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.listeners, id)
	}
}

func (m *Manager) notify() {
	m.mu.Lock()
	snap := m.snapshotLocked()
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
