package calls

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jrsteele09/go-realtime-core/cleanup"
	"github.com/jrsteele09/go-realtime-core/identity"
	"github.com/jrsteele09/go-realtime-core/internal/config"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/samber/lo"
)

type State string

const (
	Idle         State = "idle"
	Ringing      State = "ringing"
	Initializing State = "initializing"
	Joining      State = "joining"
	Joined       State = "joined"
	Leaving      State = "leaving"
	Left         State = "left"
)

// Active reports whether s occupies the single call slot of an identity.
func (s State) Active() bool {
	switch s {
	case Initializing, Joining, Joined, Leaving:
		return true
	}
	return false
}

// Session is a point-in-time copy of the current call.
type Session struct {
	ID           string
	State        State
	Participants []identity.Identity
	IsInviteJoin bool
	InviterName  string
	Caller       identity.Identity
	CreatedAt    time.Time
}

type Options struct {
	CallType string
	// RingMode rings the target on Start; otherwise the target joins by link.
	RingMode        bool
	LeaveGrace      time.Duration
	LeaveCooldown   time.Duration
	LeaveAttempts   int
	LeaveRetryDelay time.Duration
}

func DefaultOptions() Options {
	return Options{
		CallType:        "default",
		RingMode:        true,
		LeaveGrace:      2500 * time.Millisecond,
		LeaveCooldown:   3 * time.Second,
		LeaveAttempts:   3,
		LeaveRetryDelay: time.Second,
	}
}

func OptionsFrom(cfg config.CallConfig) Options {
	return Options{
		CallType:        cfg.GetCallType(),
		RingMode:        cfg.GetRingMode(),
		LeaveGrace:      cfg.GetLeaveGrace(),
		LeaveCooldown:   cfg.GetLeaveCooldown(),
		LeaveAttempts:   cfg.GetLeaveAttempts(),
		LeaveRetryDelay: cfg.GetLeaveRetryDelay(),
	}
}

// NewCallID builds call-<self>[-<target>]-<unixMillis>-<nonce>.
func NewCallID(selfID, targetID string, now time.Time) string {
	parts := []string{"call", selfID}
	if targetID != "" {
		parts = append(parts, targetID)
	}
	parts = append(parts, strconv.FormatInt(now.UnixMilli(), 10), uuid.NewString()[:8])
	return strings.Join(parts, "-")
}

// session is the manager-owned call state. Fields are guarded by Manager.mu.
type session struct {
	id           string
	call         realtime.Call
	state        State
	participants []identity.Identity
	inviteJoin   bool
	inviterName  string
	caller       identity.Identity
	createdAt    time.Time

	// leave runs the backend leave at most once.
	leave *cleanup.Guard
	// joining is set while the backend join is in flight. A leave arriving
	// then sets leaveDeferred and the join path performs the release.
	joining       bool
	leaveDeferred bool
	// answer is set for incoming calls so accept and reject happen at most once.
	answer *cleanup.Guard
	// left is closed when the session reaches Left.
	left chan struct{}
}

func (s *session) addParticipant(p identity.Identity) {
	s.participants = lo.UniqBy(append(s.participants, p), func(p identity.Identity) string {
		return p.ID
	})
}

func (s *session) removeParticipant(id string) {
	s.participants = lo.Reject(s.participants, func(p identity.Identity, _ int) bool {
		return p.ID == id
	})
}

func (s *session) memberIDs() []string {
	return lo.Map(s.participants, func(p identity.Identity, _ int) string {
		return p.ID
	})
}

func (s *session) snapshot() Session {
	return Session{
		ID:           s.id,
		State:        s.state,
		Participants: append([]identity.Identity(nil), s.participants...),
		IsInviteJoin: s.inviteJoin,
		InviterName:  s.inviterName,
		Caller:       s.caller,
		CreatedAt:    s.createdAt,
	}
}
