package chat_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/go-realtime-core/chat"
	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/internal/retry"
	"github.com/jrsteele09/go-realtime-core/realtime/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testFixture struct {
	clock   *clock.Mock
	backend *fake.Chat
	manager *chat.Manager
}

func staticCredential(ctx context.Context) (string, error) {
	return "credential", nil
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	mock := clock.NewMock()
	backend := fake.NewChat()
	m := chat.NewManager(backend, identity.Identity{ID: "u1", DisplayName: "Ann"}, staticCredential,
		chat.WithClock(mock),
		chat.WithPolicy(retry.Policy{Base: 2 * time.Second, Multiplier: 2, MaxRetries: 3}),
	)
	return &testFixture{clock: mock, backend: backend, manager: m}
}

func (f *testFixture) waitFor(t *testing.T, cond func(chat.Snapshot) bool) {
	t.Helper()
	require.Eventually(t, func() bool { return cond(f.manager.Snapshot()) }, time.Second, time.Millisecond)
}

func rateLimited() error {
	return &apperrors.RateLimitedError{RetryAfter: 500 * time.Millisecond}
}

func TestEnsureConnected_Connects(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.Equal(t, chat.Connected, f.manager.Snapshot().State)
	require.Equal(t, apperrors.StatusOK, f.manager.Status().Code)
	require.Equal(t, "credential", f.backend.Credential())
	require.Equal(t, "u1", f.backend.User().ID)
}

func TestEnsureConnected_Idempotent(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.Equal(t, 1, f.backend.ConnectCalls())
}

func TestEnsureConnected_NoOpWhileConnecting(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.OnConnect(func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.EnsureConnected(context.Background()) }()
	<-entered

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.Equal(t, chat.Connecting, f.manager.Snapshot().State)

	f.backend.OnConnect(nil)
	close(release)
	require.NoError(t, <-done)
	require.Equal(t, 1, f.backend.ConnectCalls())
	require.Equal(t, chat.Connected, f.manager.Snapshot().State)
}

func TestEnsureConnected_BackoffThenTerminal(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.FailConnect(rateLimited(), rateLimited(), rateLimited(), rateLimited())

	var mu sync.Mutex
	var attempts []time.Time
	f.backend.OnConnect(func(ctx context.Context) error {
		mu.Lock()
		defer mu.Unlock()
		attempts = append(attempts, f.clock.Now())
		return nil
	})

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.Equal(t, chat.Reconnecting, f.manager.Snapshot().State)

	for retryNo, delay := range []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second} {
		f.waitFor(t, func(s chat.Snapshot) bool { return s.RetryCount == retryNo+1 && s.State == chat.Reconnecting })

		f.clock.Add(delay - time.Millisecond)
		require.Equal(t, retryNo+1, f.backend.ConnectCalls(), "retry %d fired early", retryNo+1)
		f.clock.Add(time.Millisecond)
		require.Eventually(t, func() bool { return f.backend.ConnectCalls() == retryNo+2 }, time.Second, time.Millisecond)
	}

	f.waitFor(t, func(s chat.Snapshot) bool { return s.State == chat.Disconnected })
	snap := f.manager.Snapshot()
	require.ErrorIs(t, snap.Err, apperrors.ErrRetriesExhausted)
	require.Equal(t, apperrors.StatusDisconnected, f.manager.Status().Code)

	mu.Lock()
	require.Len(t, attempts, 4)
	require.Equal(t, 2*time.Second, attempts[1].Sub(attempts[0]))
	require.Equal(t, 4*time.Second, attempts[2].Sub(attempts[1]))
	require.Equal(t, 8*time.Second, attempts[3].Sub(attempts[2]))
	mu.Unlock()

	f.clock.Add(time.Minute)
	require.Equal(t, 4, f.backend.ConnectCalls())
}

func TestEnsureConnected_HonoursServerRetryAfter(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.FailConnect(&apperrors.RateLimitedError{RetryAfter: 5 * time.Second})

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	f.waitFor(t, func(s chat.Snapshot) bool { return s.State == chat.Reconnecting })

	f.clock.Add(4 * time.Second)
	require.Equal(t, 1, f.backend.ConnectCalls())
	f.clock.Add(time.Second)
	f.waitFor(t, func(s chat.Snapshot) bool { return s.State == chat.Connected })
	require.Equal(t, 2, f.backend.ConnectCalls())
}

func TestEnsureConnected_ValidationIsTerminal(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.FailConnect(apperrors.ErrMissingCredentials)

	err := f.manager.EnsureConnected(context.Background())
	require.ErrorIs(t, err, apperrors.ErrValidation)

	snap := f.manager.Snapshot()
	require.Equal(t, chat.Disconnected, snap.State)
	require.Equal(t, apperrors.StatusInvalid, f.manager.Status().Code)

	f.clock.Add(time.Minute)
	require.Equal(t, 1, f.backend.ConnectCalls())
}

func TestEnsureConnected_MissingIdentity(t *testing.T) {
	backend := fake.NewChat()
	m := chat.NewManager(backend, identity.Identity{}, staticCredential)

	require.ErrorIs(t, m.EnsureConnected(context.Background()), apperrors.ErrMissingIdentity)
	require.Equal(t, 0, backend.ConnectCalls())
}

func TestEnsureConnected_TimeoutIsTransient(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	f.backend.OnConnect(func(ctx context.Context) error {
		close(entered)
		<-ctx.Done()
		return ctx.Err()
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.EnsureConnected(context.Background()) }()
	<-entered
	f.backend.OnConnect(nil)

	f.clock.Add(15 * time.Second)
	require.NoError(t, <-done)

	snap := f.manager.Snapshot()
	require.Equal(t, chat.Reconnecting, snap.State)
	require.ErrorIs(t, snap.Err, apperrors.ErrTransientNetwork)
}

func TestNetworkLoss_Reconnects(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.EnsureConnected(context.Background()))

	f.backend.Drop()
	require.Equal(t, chat.Reconnecting, f.manager.Snapshot().State)

	f.clock.Add(2 * time.Second)
	f.waitFor(t, func(s chat.Snapshot) bool { return s.State == chat.Connected })
	require.Equal(t, 2, f.backend.ConnectCalls())
}

func TestTeardown_ConcurrentCallsDisconnectOnce(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.EnsureConnected(context.Background()))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.manager.Teardown(context.Background()))
		}()
	}
	wg.Wait()

	require.Equal(t, 1, f.backend.DisconnectCalls())
	require.Equal(t, chat.Disconnected, f.manager.Snapshot().State)
	require.False(t, f.backend.Connected())
}

func TestTeardown_DuringConnectDisconnectsOnce(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.OnConnect(func(ctx context.Context) error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.EnsureConnected(context.Background()) }()
	<-entered
	require.Equal(t, chat.Connecting, f.manager.Snapshot().State)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.manager.Teardown(context.Background()))
		}()
	}
	wg.Wait()
	require.Equal(t, 0, f.backend.DisconnectCalls())

	err := f.manager.EnsureConnected(context.Background())
	require.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)

	close(release)
	require.NoError(t, <-done)

	require.Equal(t, 1, f.backend.DisconnectCalls())
	require.False(t, f.backend.Connected())
	require.Equal(t, chat.Disconnected, f.manager.Snapshot().State)
}

func TestTeardown_DuringFailedConnectDoesNotDisconnect(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.OnConnect(func(ctx context.Context) error {
		close(entered)
		<-release
		return apperrors.ErrTransientNetwork
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.EnsureConnected(context.Background()) }()
	<-entered

	require.NoError(t, f.manager.Teardown(context.Background()))
	close(release)
	require.NoError(t, <-done)

	require.Equal(t, 0, f.backend.DisconnectCalls())
	require.Equal(t, chat.Disconnected, f.manager.Snapshot().State)
}

func TestTeardown_CancelsPendingRetry(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.FailConnect(rateLimited())

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	f.waitFor(t, func(s chat.Snapshot) bool { return s.State == chat.Reconnecting })

	require.NoError(t, f.manager.Teardown(context.Background()))
	f.clock.Add(time.Minute)
	time.Sleep(10 * time.Millisecond)

	require.Equal(t, 1, f.backend.ConnectCalls())
	require.Equal(t, chat.Disconnected, f.manager.Snapshot().State)
}

func TestTeardown_WhenNeverConnected(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.manager.Teardown(context.Background()))
	require.Equal(t, 0, f.backend.DisconnectCalls())
}

func TestTeardown_ThenReconnect(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.NoError(t, f.manager.Teardown(context.Background()))

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	require.Equal(t, chat.Connected, f.manager.Snapshot().State)
	require.Equal(t, 2, f.backend.ConnectCalls())
}

func TestSubscribe_StopsAfterUnsubscribe(t *testing.T) {
	f := setupTestFixture(t)

	var mu sync.Mutex
	var seen []chat.State
	unsubscribe := f.manager.Subscribe(func(s chat.Snapshot) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, s.State)
	})

	require.NoError(t, f.manager.EnsureConnected(context.Background()))
	unsubscribe()
	require.NoError(t, f.manager.Teardown(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []chat.State{chat.Connecting, chat.Connected}, seen)
}
