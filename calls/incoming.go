package calls

import (
	"context"

	"github.com/jrsteele09/go-realtime-core/cleanup"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/realtime"
)

// Accept joins the ringing call. Only the first Accept or Reject for a ring
// has any effect.
func (m *Manager) Accept(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "calls.Accept")
	defer span.End()

	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil || s.answer == nil {
		return apperrors.Wrapf(apperrors.ErrNotFound, "no incoming call")
	}

	return s.answer.Run(context.WithoutCancel(ctx), func(ctx context.Context) error {
		if !m.advance(s, Ringing, Joining) {
			return nil
		}
		m.log.Info().Str("call_id", s.id).Str("caller", s.caller.ID).Msg("Accepted incoming call")
		return m.establish(ctx, s, nil)
	})
}

// Reject declines the ringing call, falling back to leave when the backend
// has no reject. The slot returns to Idle immediately.
func (m *Manager) Reject(ctx context.Context) error {
	m.mu.Lock()
	s := m.session
	m.mu.Unlock()
	if s == nil || s.answer == nil {
		return nil
	}
	return m.rejectSession(ctx, s)
}

func (m *Manager) rejectSession(ctx context.Context, s *session) error {
	return s.answer.Run(context.WithoutCancel(ctx), func(ctx context.Context) error {
		m.mu.Lock()
		if m.session != s || s.state != Ringing {
			m.mu.Unlock()
			return nil
		}
		m.mu.Unlock()

		err := s.call.Reject(ctx)
		if apperrors.Is(err, apperrors.ErrUnsupported) {
			err = s.call.Leave(ctx)
		}
		m.discard(s)
		if err != nil && !apperrors.IsGone(err) {
			m.log.Warn().Err(err).Str("call_id", s.id).Msg("Reject failed")
			return err
		}
		m.log.Info().Str("call_id", s.id).Msg("Rejected incoming call")
		return nil
	})
}

// discard drops a ringing session without a cooldown.
func (m *Manager) discard(s *session) {
	m.mu.Lock()
	if m.session == s {
		m.session = nil
	}
	if s.state == Ringing {
		s.state = Left
		close(s.left)
	}
	m.mu.Unlock()
	m.notify()
}

func (m *Manager) onRing(ev realtime.Event) {
	if ev.CallID == "" || ev.From.ID == m.self.ID {
		return
	}

	m.mu.Lock()
	if m.session != nil {
		busy := m.session.snapshot()
		m.mu.Unlock()
		m.log.Info().
			Str("call_id", ev.CallID).
			Str("caller", ev.From.ID).
			Str("busy_with", busy.ID).
			Str("state", string(busy.State)).
			Msg("Ignoring incoming call while busy")
		return
	}
	s := m.newSessionLocked(ev.CallID, Ringing)
	s.caller = ev.From
	s.addParticipant(ev.From)
	s.answer = cleanup.NewGuard()
	m.session = s
	m.lastErr = nil
	m.mu.Unlock()

	m.log.Info().Str("call_id", ev.CallID).Str("caller", ev.From.ID).Msg("Incoming call")
	m.notify()
}

// onEnded handles the remote side ending or removing us from the call.
func (m *Manager) onEnded(ev realtime.Event) {
	m.mu.Lock()
	s := m.session
	if s == nil || s.id != ev.CallID {
		m.mu.Unlock()
		return
	}
	state := s.state
	m.mu.Unlock()

	switch state {
	case Ringing:
		// The caller hung up before an answer; claim the answer so a late
		// Accept is a no-op.
		_ = s.answer.Run(context.Background(), func(context.Context) error {
			m.discard(s)
			return nil
		})
	case Initializing, Joining, Joined:
		if err := m.leave(context.Background(), s); err != nil {
			m.log.Warn().Err(err).Str("call_id", s.id).Msg("Leave after remote end failed")
		}
	}
}

func (m *Manager) onParticipantJoined(ev realtime.Event) {
	m.updateParticipants(ev, true)
}

func (m *Manager) onParticipantLeft(ev realtime.Event) {
	m.updateParticipants(ev, false)
}

func (m *Manager) updateParticipants(ev realtime.Event, joined bool) {
	m.mu.Lock()
	s := m.session
	if s == nil || s.id != ev.CallID || ev.From.ID == "" {
		m.mu.Unlock()
		return
	}
	if joined {
		s.addParticipant(ev.From)
	} else {
		s.removeParticipant(ev.From.ID)
	}
	m.mu.Unlock()
	m.notify()
}
