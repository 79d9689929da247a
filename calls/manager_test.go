package calls_test

import (
	"context"
	"errors"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/go-realtime-core/calls"
	"github.com/jrsteele09/go-realtime-core/identity"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/jrsteele09/go-realtime-core/realtime/fake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ann = identity.Identity{ID: "u1", DisplayName: "Ann Lee"}
	bob = identity.Identity{ID: "u2", DisplayName: "Bob"}
)

type testFixture struct {
	clock   *clock.Mock
	backend *fake.Video
	manager *calls.Manager

	mu      sync.Mutex
	history []calls.Session
}

func staticCredential(ctx context.Context) (string, error) {
	return "video-credential", nil
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{clock: clock.NewMock(), backend: fake.NewVideo()}
	f.manager = calls.NewManager(f.backend, ann, staticCredential,
		calls.WithClock(f.clock),
		calls.WithOptions(calls.DefaultOptions()),
	)
	f.manager.Subscribe(func(s calls.Session) {
		f.mu.Lock()
		defer f.mu.Unlock()
		f.history = append(f.history, s)
	})
	require.NoError(t, f.manager.Connect(context.Background()))
	return f
}

func (f *testFixture) sessions() []calls.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.history)
}

// indexOf returns the first recorded transition of callID into state.
func (f *testFixture) indexOf(callID string, state calls.State) int {
	return slices.IndexFunc(f.sessions(), func(s calls.Session) bool {
		return s.ID == callID && s.State == state
	})
}

func (f *testFixture) waitState(t *testing.T, state calls.State) {
	t.Helper()
	require.Eventually(t, func() bool { return f.manager.Snapshot().State == state }, time.Second, time.Millisecond)
}

func (f *testFixture) startJoined(t *testing.T) string {
	t.Helper()
	require.NoError(t, f.manager.Start(context.Background(), &bob))
	snap := f.manager.Snapshot()
	require.Equal(t, calls.Joined, snap.State)
	return snap.ID
}

func TestStart_JoinsNewCall(t *testing.T) {
	f := setupTestFixture(t)

	id := f.startJoined(t)
	require.True(t, strings.HasPrefix(id, "call-u1-u2-"))

	snap := f.manager.Snapshot()
	require.ElementsMatch(t, []identity.Identity{ann, bob}, snap.Participants)
	require.False(t, snap.IsInviteJoin)

	call := f.backend.Lookup(id)
	require.True(t, call.Joined())
	require.True(t, call.Options().Ring)
	require.ElementsMatch(t, []string{"u1", "u2"}, call.Options().Members)

	require.Less(t, f.indexOf(id, calls.Initializing), f.indexOf(id, calls.Joining))
	require.Less(t, f.indexOf(id, calls.Joining), f.indexOf(id, calls.Joined))
	require.Equal(t, apperrors.StatusOK, f.manager.Status().Code)
}

func TestStart_RejectedWhileActive(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)

	err := f.manager.Start(context.Background(), nil)
	require.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)
	require.Equal(t, id, f.manager.Snapshot().ID)
}

func TestStart_SecondStartWhileJoiningIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.OnJoin(func(ctx context.Context, callID string) error {
		close(entered)
		<-release
		return nil
	})

	first := make(chan error, 1)
	go func() { first <- f.manager.Start(context.Background(), &bob) }()
	<-entered

	time.Sleep(50 * time.Millisecond)
	err := f.manager.Start(context.Background(), &bob)
	require.ErrorIs(t, err, apperrors.ErrConcurrencyConflict)

	close(release)
	require.NoError(t, <-first)

	joined := 0
	ids := map[string]bool{}
	for _, s := range f.sessions() {
		if s.State.Active() {
			ids[s.ID] = true
		}
		if s.State == calls.Joined {
			joined++
		}
	}
	require.Equal(t, 1, joined)
	require.Len(t, ids, 1)
}

func TestLeave_CooldownThenIdle(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)

	require.NoError(t, f.manager.Leave(context.Background()))
	require.Equal(t, calls.Left, f.manager.Snapshot().State)
	require.True(t, f.backend.Lookup(id).Left())

	// The slot stays occupied during the cooldown.
	require.ErrorIs(t, f.manager.Start(context.Background(), nil), apperrors.ErrConcurrencyConflict)

	f.clock.Add(3 * time.Second)
	f.waitState(t, calls.Idle)
	require.NoError(t, f.manager.Start(context.Background(), nil))
}

func TestLeave_ConcurrentCallsLeaveOnce(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.manager.Leave(context.Background()))
		}()
	}
	wg.Wait()

	_, leaves, _ := f.backend.Lookup(id).Counts()
	require.Equal(t, 1, leaves)
	require.Equal(t, calls.Left, f.manager.Snapshot().State)
}

func TestLeave_DuringJoinLeavesOnce(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.OnJoin(func(ctx context.Context, callID string) error {
		close(entered)
		<-release
		return nil
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.Join(context.Background(), "c1", "Bob") }()
	<-entered

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, f.manager.Leave(context.Background()))
		}()
	}
	wg.Wait()
	require.Equal(t, calls.Leaving, f.manager.Snapshot().State)

	close(release)
	require.NoError(t, <-done)

	call := f.backend.Lookup("c1")
	joins, leaves, _ := call.Counts()
	require.Equal(t, 1, joins)
	require.Equal(t, 1, leaves)
	require.True(t, call.Left())
	require.Equal(t, []string{"join:c1", "leave:c1"}, f.backend.History())
	require.Equal(t, calls.Left, f.manager.Snapshot().State)
	require.Equal(t, -1, f.indexOf("c1", calls.Joined))
}

func TestLeave_DuringFailedJoinSkipsBackend(t *testing.T) {
	f := setupTestFixture(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	f.backend.OnJoin(func(ctx context.Context, callID string) error {
		close(entered)
		<-release
		return apperrors.ErrTransientNetwork
	})

	done := make(chan error, 1)
	go func() { done <- f.manager.Join(context.Background(), "c1", "") }()
	<-entered

	require.NoError(t, f.manager.Leave(context.Background()))
	close(release)
	require.NoError(t, <-done)

	_, leaves, _ := f.backend.Lookup("c1").Counts()
	require.Equal(t, 0, leaves)
	require.Equal(t, calls.Left, f.manager.Snapshot().State)
}

func TestLeave_AlreadyLeftIsSuccess(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)
	f.backend.Lookup(id).FailLeave(apperrors.Wrapf(apperrors.ErrAlreadyGone, "call has already been left"))

	require.NoError(t, f.manager.Leave(context.Background()))
	require.Equal(t, calls.Left, f.manager.Snapshot().State)
	require.Equal(t, apperrors.StatusOK, f.manager.Status().Code)
}

func TestLeave_RetriesTransientFailures(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)
	call := f.backend.Lookup(id)
	call.FailLeave(apperrors.ErrTransientNetwork, apperrors.ErrTransientNetwork)

	done := make(chan error, 1)
	go func() { done <- f.manager.Leave(context.Background()) }()

	require.Eventually(t, func() bool {
		select {
		case err := <-done:
			return assert.NoError(t, err)
		default:
			f.clock.Add(500 * time.Millisecond)
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)

	_, leaves, _ := call.Counts()
	require.Equal(t, 3, leaves)
	require.True(t, call.Left())
}

func TestLeave_FromIdleIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.Leave(context.Background()))
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
}

func TestJoin_InviteWhileIdle(t *testing.T) {
	f := setupTestFixture(t)

	require.NoError(t, f.manager.Join(context.Background(), "c1", "Bob"))

	snap := f.manager.Snapshot()
	require.Equal(t, calls.Joined, snap.State)
	require.Equal(t, "c1", snap.ID)
	require.True(t, snap.IsInviteJoin)
	require.Equal(t, "Bob", snap.InviterName)
	require.Equal(t, []string{"join:c1"}, f.backend.History())
}

func TestJoin_InviteEndsActiveCallFirst(t *testing.T) {
	f := setupTestFixture(t)
	a := f.startJoined(t)

	link, err := calls.BuildInviteLink("https://app.example", "call-b", "Bob")
	require.NoError(t, err)
	require.NoError(t, f.manager.JoinLink(context.Background(), link))

	snap := f.manager.Snapshot()
	require.Equal(t, "call-b", snap.ID)
	require.Equal(t, calls.Joined, snap.State)
	require.True(t, f.backend.Lookup(a).Left())

	aLeft := f.indexOf(a, calls.Left)
	bJoining := f.indexOf("call-b", calls.Joining)
	require.GreaterOrEqual(t, aLeft, 0)
	require.Less(t, aLeft, bJoining)

	history := f.backend.History()
	require.Less(t, slices.Index(history, "leave:"+a), slices.Index(history, "join:call-b"))

	// The cooldown of call A must not release call B.
	f.clock.Add(10 * time.Second)
	time.Sleep(10 * time.Millisecond)
	require.Equal(t, "call-b", f.manager.Snapshot().ID)
}

func TestJoin_WaitsForInFlightLeaveOrGrace(t *testing.T) {
	f := setupTestFixture(t)
	a := f.startJoined(t)
	// Leave hangs on the first attempt until the retry delay elapses.
	f.backend.Lookup(a).FailLeave(apperrors.ErrTransientNetwork)

	leaving := make(chan error, 1)
	go func() { leaving <- f.manager.Leave(context.Background()) }()
	f.waitState(t, calls.Leaving)

	joined := make(chan error, 1)
	go func() { joined <- f.manager.Join(context.Background(), "call-b", "Bob") }()

	require.Eventually(t, func() bool {
		select {
		case err := <-joined:
			return assert.NoError(t, err)
		default:
			f.clock.Add(250 * time.Millisecond)
			return false
		}
	}, 2*time.Second, 5*time.Millisecond)
	require.NoError(t, <-leaving)

	require.Less(t, f.indexOf(a, calls.Left), f.indexOf("call-b", calls.Joining))
	require.Equal(t, calls.Joined, f.manager.Snapshot().State)
}

func TestJoin_SameCallIsNoOp(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.Join(context.Background(), "c1", ""))

	require.NoError(t, f.manager.Join(context.Background(), "c1", ""))
	joins, _, _ := f.backend.Lookup("c1").Counts()
	require.Equal(t, 1, joins)
}

func TestJoin_InvalidLink(t *testing.T) {
	f := setupTestFixture(t)

	err := f.manager.JoinLink(context.Background(), "https://app.example/messages?action=join")
	require.ErrorIs(t, err, apperrors.ErrInvalidInvite)
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
}

func TestJoin_FailureRevertsToIdle(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnJoin(func(ctx context.Context, callID string) error {
		return apperrors.ErrTransientNetwork
	})

	err := f.manager.Join(context.Background(), "c1", "")
	require.ErrorIs(t, err, apperrors.ErrTransientNetwork)
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
	require.Equal(t, apperrors.StatusCallFailed, f.manager.Status().Code)
}

func TestIncoming_AcceptOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Ring("c9", bob, "u1", "u2")

	snap := f.manager.Snapshot()
	require.Equal(t, calls.Ringing, snap.State)
	require.Equal(t, bob, snap.Caller)

	require.NoError(t, f.manager.Accept(context.Background()))
	require.NoError(t, f.manager.Accept(context.Background()))
	require.NoError(t, f.manager.Reject(context.Background()))

	require.Equal(t, calls.Joined, f.manager.Snapshot().State)
	joins, _, rejects := f.backend.Lookup("c9").Counts()
	require.Equal(t, 1, joins)
	require.Equal(t, 0, rejects)
}

func TestIncoming_RejectOnce(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Ring("c9", bob)

	require.NoError(t, f.manager.Reject(context.Background()))
	require.NoError(t, f.manager.Reject(context.Background()))

	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
	_, _, rejects := f.backend.Lookup("c9").Counts()
	require.Equal(t, 1, rejects)
	require.ErrorIs(t, f.manager.Accept(context.Background()), apperrors.ErrNotFound)
}

func TestIncoming_IgnoredWhileBusy(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)

	f.backend.Ring("c9", bob)
	require.Equal(t, id, f.manager.Snapshot().ID)
	require.Nil(t, f.backend.Lookup("c9"))
}

func TestIncoming_OwnRingIgnored(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Ring("c9", ann)
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
}

func TestIncoming_CallerHangsUp(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Ring("c9", bob)

	f.backend.End("c9")
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
	require.ErrorIs(t, f.manager.Accept(context.Background()), apperrors.ErrNotFound)
}

func TestJoin_WhileRingingRejectsFirst(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.Ring("c9", bob)

	require.NoError(t, f.manager.Join(context.Background(), "c1", "Cat"))
	require.True(t, f.backend.Lookup("c9").Rejected())
	require.Equal(t, "c1", f.manager.Snapshot().ID)
}

func TestRemoteEnd_LeavesActiveCall(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)

	f.backend.End(id)
	require.Equal(t, calls.Left, f.manager.Snapshot().State)

	f.clock.Add(3 * time.Second)
	f.waitState(t, calls.Idle)
}

func TestParticipants_TrackEvents(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.Join(context.Background(), "c1", ""))

	f.backend.Emit(participantEvent(true, "c1", bob))
	require.ElementsMatch(t, []identity.Identity{ann, bob}, f.manager.Snapshot().Participants)

	f.backend.Emit(participantEvent(false, "c1", bob))
	require.Equal(t, []identity.Identity{ann}, f.manager.Snapshot().Participants)
}

func TestClose_LeavesAndDisconnects(t *testing.T) {
	f := setupTestFixture(t)
	id := f.startJoined(t)

	require.NoError(t, f.manager.Close(context.Background()))
	require.True(t, f.backend.Lookup(id).Left())
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)

	// Events no longer reach the manager.
	f.backend.Ring("c9", bob)
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
}

func TestClose_ThenReconnect(t *testing.T) {
	f := setupTestFixture(t)
	require.NoError(t, f.manager.Close(context.Background()))
	require.False(t, f.backend.Connected())
	require.Zero(t, f.backend.Count(realtime.EventCallRing))

	require.NoError(t, f.manager.Connect(context.Background()))
	require.True(t, f.backend.Connected())
	require.Equal(t, 1, f.backend.Count(realtime.EventCallRing))

	f.backend.Ring("c9", bob)
	require.Equal(t, calls.Ringing, f.manager.Snapshot().State)

	require.NoError(t, f.manager.Close(context.Background()))
	require.False(t, f.backend.Connected())
	require.True(t, f.backend.Lookup("c9").Rejected())
}

func TestStart_CreateFailureSurfaces(t *testing.T) {
	f := setupTestFixture(t)
	f.backend.OnJoin(func(ctx context.Context, callID string) error {
		return errors.New("sfu unreachable")
	})

	err := f.manager.Start(context.Background(), &bob)
	require.Error(t, err)
	require.Equal(t, calls.Idle, f.manager.Snapshot().State)
	require.Equal(t, apperrors.StatusCallFailed, f.manager.Status().Code)
}
