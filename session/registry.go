// Package session keeps one chat connection and one call manager per
// logged-in identity. The registry travels in a context rather than living
// in package state, so identities stay isolated from each other.
package session

import (
	"context"
	"sync"

	"github.com/benbjohnson/clock"
	"github.com/jrsteele09/go-realtime-core/calls"
	"github.com/jrsteele09/go-realtime-core/chat"
	"github.com/jrsteele09/go-realtime-core/identity"
	"github.com/jrsteele09/go-realtime-core/internal/config"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/jrsteele09/go-realtime-core/internal/retry"
	"github.com/jrsteele09/go-realtime-core/realtime"
	"github.com/rs/zerolog"
)

// Deps builds the per-identity collaborators.
type Deps struct {
	NewChat          func(identity.Identity) realtime.ChatBackend
	NewVideo         func(identity.Identity) realtime.VideoBackend
	ChatCredentials  func(identity.Identity) realtime.CredentialProvider
	VideoCredentials func(identity.Identity) realtime.CredentialProvider
	Clock            clock.Clock
	Config           config.Config
	// Logger defaults to the "session" component logger.
	Logger *zerolog.Logger
}

// Session is the live state of one identity.
type Session struct {
	Identity identity.Identity
	Chat     *chat.Manager
	Calls    *calls.Manager
}

// Connect ensures the chat channel and registers with the video backend.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.Chat.EnsureConnected(ctx); err != nil {
		return err
	}
	return s.Calls.Connect(ctx)
}

// Close leaves any call, then tears the chat channel down.
func (s *Session) Close(ctx context.Context) error {
	callErr := s.Calls.Close(ctx)
	chatErr := s.Chat.Teardown(ctx)
	return apperrors.Join(callErr, chatErr)
}

type Registry struct {
	deps Deps
	log  zerolog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewRegistry(deps Deps) (*Registry, error) {
	if deps.NewChat == nil || deps.NewVideo == nil {
		return nil, apperrors.Wrapf(apperrors.ErrValidation, "chat and video backend factories are required")
	}
	if deps.Clock == nil {
		deps.Clock = clock.New()
	}
	if deps.Config == nil {
		deps.Config = config.Default()
	}
	log := logx.Component("session")
	if deps.Logger != nil {
		log = *deps.Logger
	}
	return &Registry{
		deps:     deps,
		log:      log,
		sessions: make(map[string]*Session),
	}, nil
}

// Open returns the session for id, creating it on first use.
func (r *Registry) Open(id identity.Identity) (*Session, error) {
	if id.ID == "" {
		return nil, apperrors.ErrMissingIdentity
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id.ID]; ok {
		return s, nil
	}

	cfg := r.deps.Config
	s := &Session{
		Identity: id,
		Chat: chat.NewManager(r.deps.NewChat(id), id, provider(r.deps.ChatCredentials, id),
			chat.WithClock(r.deps.Clock),
			chat.WithPolicy(retry.PolicyFrom(cfg)),
			chat.WithConnectTimeout(cfg.GetConnectTimeout()),
		),
		Calls: calls.NewManager(r.deps.NewVideo(id), id, provider(r.deps.VideoCredentials, id),
			calls.WithClock(r.deps.Clock),
			calls.WithOptions(calls.OptionsFrom(cfg)),
		),
	}
	r.sessions[id.ID] = s
	r.log.Info().Str("identity_id", id.ID).Msg("Session opened")
	return s, nil
}

func (r *Registry) Get(identityID string) (*Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[identityID]
	return s, ok
}

// Close tears down and forgets the session for identityID. Closing an
// unknown identity is a no-op.
func (r *Registry) Close(ctx context.Context, identityID string) error {
	r.mu.Lock()
	s, ok := r.sessions[identityID]
	delete(r.sessions, identityID)
	r.mu.Unlock()
	if !ok {
		return nil
	}

	err := s.Close(ctx)
	if err != nil {
		r.log.Error().Err(err).Str("identity_id", identityID).Msg("Session closed with errors")
	} else {
		r.log.Info().Str("identity_id", identityID).Msg("Session closed")
	}
	return err
}

// CloseAll closes every open session concurrently.
func (r *Registry) CloseAll(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.sessions))
	for id := range r.sessions {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			if err := r.Close(ctx, id); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(id)
	}
	wg.Wait()
	return apperrors.Join(errs...)
}

func provider(factory func(identity.Identity) realtime.CredentialProvider, id identity.Identity) realtime.CredentialProvider {
	if factory == nil {
		return nil
	}
	return factory(id)
}

type registryKey struct{}

// WithRegistry returns a copy of ctx carrying r.
func WithRegistry(ctx context.Context, r *Registry) context.Context {
	return context.WithValue(ctx, registryKey{}, r)
}

// FromContext returns the registry stored by WithRegistry.
func FromContext(ctx context.Context) (*Registry, bool) {
	r, ok := ctx.Value(registryKey{}).(*Registry)
	return r, ok && r != nil
}
