// Package chat owns the single realtime chat channel of a logged-in identity.
package chat

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"
	"github.com/jrsteele09/go-realtime-core/cleanup"
	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/internal/retry"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/jrsteele09/go-realtime-core/chat")

type State string

const (
	Disconnected State = "disconnected"
	Connecting   State = "connecting"
	Connected    State = "connected"
	Reconnecting State = "reconnecting"
)

// Snapshot is the observable state of the connection.
type Snapshot struct {
	State      State
	RetryCount int
	// Err is the reason for the last failure, nil once connected.
	Err error
}

type Listener func(Snapshot)

// Manager drives the connect and reconnect state machine for one identity.
// All transitions happen under mu; backend calls are made without it.
type Manager struct {
	backend        realtime.ChatBackend
	identity       identity.Identity
	credentials    realtime.CredentialProvider
	policy         retry.Policy
	scheduler      *retry.Scheduler
	clock          clock.Clock
	connectTimeout time.Duration
	log            zerolog.Logger

	mu         sync.Mutex
	state      State
	retryCount int
	reason     error
	gen        uint64
	delays     backoff.BackOff
	pending    *retry.Task
	unsubs     []func()
	guard      *cleanup.Guard
	stale      bool
	attempting bool
	listeners  map[int]Listener
	nextListen int
}

type Option func(*Manager)

func WithPolicy(p retry.Policy) Option {
	return func(m *Manager) {
		m.policy = p
	}
}

func WithClock(c clock.Clock) Option {
	return func(m *Manager) {
		m.clock = c
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(m *Manager) {
		m.connectTimeout = d
	}
}

func NewManager(backend realtime.ChatBackend, id identity.Identity, credentials realtime.CredentialProvider, opts ...Option) *Manager {
	m := &Manager{
		backend:        backend,
		identity:       id,
		credentials:    credentials,
		policy:         retry.DefaultPolicy(),
		clock:          clock.New(),
		connectTimeout: 15 * time.Second,
		state:          Disconnected,
		guard:          cleanup.NewGuard(),
		listeners:      make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.scheduler = retry.NewScheduler(m.clock)
	m.log = logx.Component("chat").With().Str("identity_id", id.ID).Logger()
	return m
}

// EnsureConnected starts connecting unless a connection is already live or
// being established. The first attempt runs before it returns; later attempts
// are scheduled by the backoff policy and reported through Subscribe.
func (m *Manager) EnsureConnected(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "chat.EnsureConnected", trace.WithAttributes(attribute.String("identity_id", m.identity.ID)))
	defer span.End()

	m.mu.Lock()
	switch {
	case m.state != Disconnected:
		m.mu.Unlock()
		return nil
	case m.guard.InProgress():
		m.mu.Unlock()
		return apperrors.Wrapf(apperrors.ErrConcurrencyConflict, "chat teardown in progress")
	case m.attempting:
		m.mu.Unlock()
		return apperrors.Wrapf(apperrors.ErrConcurrencyConflict, "superseded chat connect still settling")
	case m.identity.ID == "":
		m.reason = apperrors.ErrMissingIdentity
		m.mu.Unlock()
		m.notify()
		return apperrors.ErrMissingIdentity
	case m.credentials == nil:
		m.reason = apperrors.ErrMissingCredentials
		m.mu.Unlock()
		m.notify()
		return apperrors.ErrMissingCredentials
	}
	if m.guard.TornDown() {
		m.guard = cleanup.NewGuard()
	}
	m.gen++
	gen := m.gen
	m.state = Connecting
	m.attempting = true
	m.retryCount = 0
	m.reason = nil
	m.delays = m.policy.Backoff()
	if m.unsubs == nil {
		m.unsubs = []func(){
			m.backend.On(realtime.EventConnectionChanged, m.onConnectionChanged),
			m.backend.On(realtime.EventConnectionError, m.onConnectionError),
		}
	}
	m.mu.Unlock()
	m.notify()

	// The attempt outlives a cancelled caller so the channel is never left half open.
	err := m.attempt(context.WithoutCancel(ctx), gen)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return err
}

func (m *Manager) attempt(ctx context.Context, gen uint64) error {
	actx, cancel := m.clock.WithTimeout(ctx, m.connectTimeout)
	defer cancel()

	err := m.backend.ConnectUser(actx, m.identity, m.credentials)
	if err == nil && actx.Err() != nil {
		err = actx.Err()
	}
	if apperrors.Is(err, context.DeadlineExceeded) {
		err = apperrors.Wrapf(apperrors.ErrTransientNetwork, "connect timed out after %s", m.connectTimeout)
	}

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			// Torn down while connecting; release what was just opened.
			if derr := m.backend.DisconnectUser(ctx); derr != nil && !apperrors.IsGone(derr) {
				m.log.Warn().Err(derr).Msg("Failed to release superseded connection")
			}
		}
		m.mu.Lock()
		m.attempting = false
		m.mu.Unlock()
		return nil
	}
	m.attempting = false
	if err == nil {
		m.state = Connected
		m.retryCount = 0
		m.reason = nil
		m.stale = false
		m.mu.Unlock()
		m.log.Info().Msg("Chat connected")
		m.notify()
		return nil
	}
	return m.failLocked(err, gen)
}

// failLocked records a failed attempt and either schedules the next one or
// gives up. Called with mu held; returns with it released.
func (m *Manager) failLocked(err error, gen uint64) error {
	m.reason = err
	if !apperrors.Retryable(err) {
		m.state = Disconnected
		m.mu.Unlock()
		m.log.Error().Err(err).Msg("Chat connect failed")
		m.notify()
		return err
	}

	delay := m.delays.NextBackOff()
	if delay == backoff.Stop {
		m.state = Disconnected
		m.reason = apperrors.Wrapf(apperrors.ErrRetriesExhausted, "chat connect after %d retries: %v", m.retryCount, err)
		reason := m.reason
		m.mu.Unlock()
		m.log.Error().Err(reason).Msg("Giving up on chat connection")
		m.notify()
		return reason
	}
	if retryAfter, ok := apperrors.RetryAfter(err); ok && retryAfter > delay {
		delay = retryAfter
	}
	m.retryCount++
	m.state = Reconnecting
	m.pending = m.scheduler.Schedule(delay, func() { m.retry(gen) })
	attempt := m.retryCount
	m.mu.Unlock()

	m.log.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Chat connect failed, retry scheduled")
	m.notify()
	return nil
}

func (m *Manager) retry(gen uint64) {
	m.mu.Lock()
	if gen != m.gen || m.state != Reconnecting {
		m.mu.Unlock()
		return
	}
	m.pending = nil
	m.state = Connecting
	m.attempting = true
	m.mu.Unlock()
	m.notify()

	_ = m.attempt(context.Background(), gen)
}

func (m *Manager) onConnectionChanged(ev realtime.Event) {
	m.mu.Lock()
	switch {
	case !ev.Online && m.state == Connected:
		m.delays = m.policy.Backoff()
		m.retryCount = 0
		m.reason = apperrors.Wrapf(apperrors.ErrTransientNetwork, "chat connection lost")
		m.failLocked(m.reason, m.gen)
		return
	case ev.Online && m.state == Reconnecting:
		// The backend recovered on its own.
		m.pending.Cancel()
		m.pending = nil
		m.state = Connected
		m.retryCount = 0
		m.reason = nil
		m.mu.Unlock()
		m.notify()
		return
	}
	m.mu.Unlock()
}

func (m *Manager) onConnectionError(ev realtime.Event) {
	m.log.Warn().Err(ev.Err).Msg("Chat backend reported an error")
}

// Teardown disconnects the channel at most once, cancelling any pending retry.
// Safe to call concurrently and when already disconnected.
func (m *Manager) Teardown(ctx context.Context) error {
	m.mu.Lock()
	guard := m.guard
	m.mu.Unlock()

	return guard.Run(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		m.pending.Cancel()
		m.pending = nil
		m.gen++
		// An attempt still in flight sees the new gen and releases its own
		// connection, so only settled states disconnect here.
		inFlight := m.state == Connecting
		live := (m.state != Disconnected && !inFlight) || m.stale
		unsubs := m.unsubs
		m.unsubs = nil
		m.state = Disconnected
		m.retryCount = 0
		m.reason = nil
		m.mu.Unlock()

		for _, unsub := range unsubs {
			unsub()
		}
		m.notify()
		if !live {
			if inFlight {
				m.log.Debug().Msg("Teardown during connect, release left to the attempt")
			}
			return nil
		}

		err := m.backend.DisconnectUser(ctx)
		if err != nil && !apperrors.IsGone(err) {
			m.mu.Lock()
			m.stale = true
			m.reason = err
			m.mu.Unlock()
			m.log.Error().Err(err).Msg("Chat disconnect failed")
			return err
		}
		m.mu.Lock()
		m.stale = false
		m.mu.Unlock()
		m.log.Info().Msg("Chat disconnected")
		return err
	})
}

func (m *Manager) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Snapshot{State: m.state, RetryCount: m.retryCount, Err: m.reason}
}

// Status is the coarse view handed to the UI.
func (m *Manager) Status() apperrors.Status {
	s := m.Snapshot()
	switch {
	case s.State == Connected:
		return apperrors.Status{Code: apperrors.StatusOK}
	case s.Err != nil:
		return apperrors.Coarse(s.Err, apperrors.StatusDisconnected)
	default:
		return apperrors.Status{Code: apperrors.StatusDisconnected, Message: string(s.State)}
	}
}

// Subscribe registers fn for state changes. The returned function stops
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
	snap := Snapshot{State: m.state, RetryCount: m.retryCount, Err: m.reason}
	listeners := make([]Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.Unlock()

	for _, l := range listeners {
		l(snap)
	}
}
