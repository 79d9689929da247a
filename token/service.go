package token

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/internal/logx"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("github.com/jrsteele09/go-realtime-core/token")

// Service issues short-lived signed credentials for one backend audience.
// Every request counts against the identity's rate window, including
// requests answered from the cache.
type Service struct {
	audience string
	signer   Signer
	claims   ClaimsFunc
	cache    CredentialCache
	metrics  *Metrics
	clock    clock.Clock
	log      zerolog.Logger

	ttl             time.Duration
	safetyMargin    time.Duration
	clockSkew       time.Duration
	minSpacing      time.Duration
	maxRequests     int
	window          time.Duration
	maxCacheEntries int

	mu        sync.Mutex
	windows   map[string]*RateWindow
	throttles map[string]*rate.Limiter
}

type ServiceOption func(*Service)

func WithClock(c clock.Clock) ServiceOption {
	return func(s *Service) {
		s.clock = c
	}
}

func WithAudience(audience string) ServiceOption {
	return func(s *Service) {
		s.audience = audience
	}
}

func WithClaims(claims ClaimsFunc) ServiceOption {
	return func(s *Service) {
		s.claims = claims
	}
}

func WithTTL(ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.ttl = ttl
	}
}

func WithRateLimit(maxRequests int, window time.Duration) ServiceOption {
	return func(s *Service) {
		s.maxRequests = maxRequests
		s.window = window
	}
}

// WithExpiry sets how close to expiry a cached credential stops being served
// and how far IssuedAt is backdated.
func WithExpiry(safetyMargin, clockSkew time.Duration) ServiceOption {
	return func(s *Service) {
		s.safetyMargin = safetyMargin
		s.clockSkew = clockSkew
	}
}

func WithMinSpacing(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.minSpacing = d
	}
}

func WithCache(cache CredentialCache, maxEntries int) ServiceOption {
	return func(s *Service) {
		if cache != nil {
			s.cache = cache
		}
		s.maxCacheEntries = maxEntries
	}
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// NewService creates a Service. A nil signer is accepted; Issue then fails
// with ErrSigningUnavailable.
func NewService(signer Signer, opts ...ServiceOption) *Service {
	s := &Service{
		audience:        "chat",
		signer:          signer,
		claims:          ChatClaims,
		cache:           NewMemoryCache(),
		clock:           clock.New(),
		ttl:             time.Hour,
		safetyMargin:    5 * time.Minute,
		clockSkew:       time.Minute,
		minSpacing:      2 * time.Second,
		maxRequests:     10,
		window:          time.Minute,
		maxCacheEntries: 1000,
		windows:         make(map[string]*RateWindow),
		throttles:       make(map[string]*rate.Limiter),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logx.Component("token").With().Str("audience", s.audience).Logger()
	return s
}

func (s *Service) Audience() string {
	return s.audience
}

// Issue returns a credential for identityID, reusing the cached one while it
// is outside the safety margin of its expiry.
func (s *Service) Issue(ctx context.Context, identityID string) (*Credential, error) {
	ctx, span := tracer.Start(ctx, "token.Issue", trace.WithAttributes(
		attribute.String("audience", s.audience),
		attribute.String("identity_id", identityID),
	))
	defer span.End()

	cred, err := s.issue(ctx, strings.TrimSpace(identityID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	return cred, nil
}

func (s *Service) issue(ctx context.Context, identityID string) (*Credential, error) {
	if identityID == "" {
		return nil, apperrors.ErrMissingIdentity
	}
	if s.signer == nil {
		s.metrics.incSigningFailure(s.audience)
		return nil, apperrors.ErrSigningUnavailable
	}

	s.mu.Lock()
	now := s.clock.Now()
	if err := s.admit(identityID, now); err != nil {
		s.mu.Unlock()
		s.metrics.incRateLimited(s.audience)
		s.log.Debug().Str("identity_id", identityID).Err(err).Msg("Token request rate limited")
		return nil, err
	}
	if cred, ok := s.cached(identityID, now); ok {
		s.mu.Unlock()
		s.metrics.incCacheHit(s.audience)
		return cred, nil
	}
	reservation := s.throttle(identityID).ReserveN(now, 1)
	delay := reservation.DelayFrom(now)
	s.mu.Unlock()

	if delay > 0 {
		s.log.Debug().Str("identity_id", identityID).Dur("delay", delay).Msg("Throttling fresh issuance")
		select {
		case <-s.clock.After(delay):
		case <-ctx.Done():
			reservation.CancelAt(s.clock.Now())
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	now = s.clock.Now()
	// A concurrent request may have issued while this one waited.
	if cred, ok := s.cached(identityID, now); ok {
		s.metrics.incCacheHit(s.audience)
		return cred, nil
	}

	cred := &Credential{
		IssuedAt:  now.Add(-s.clockSkew),
		ExpiresAt: now.Add(s.ttl),
		SubjectID: identityID,
	}
	value, err := s.signer.Sign(s.claims(identityID, cred.IssuedAt, cred.ExpiresAt))
	if err != nil {
		s.metrics.incSigningFailure(s.audience)
		s.log.Error().Err(err).Str("identity_id", identityID).Msg("Failed to sign credential")
		return nil, apperrors.Wrapf(apperrors.ErrSigningFailed, "%v", err)
	}
	cred.Value = value

	s.cache.Put(cred)
	s.metrics.incIssued(s.audience)
	if s.maxCacheEntries > 0 && s.cache.Len() > s.maxCacheEntries {
		s.evict(now)
	}
	return cred, nil
}

// Quota reports the current window for identityID without counting a request.
func (s *Service) Quota(identityID string) Quota {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	w, ok := s.windows[identityID]
	if !ok || w.expired(now) {
		return Quota{Limit: s.maxRequests, Remaining: s.maxRequests, Reset: now.Add(s.window)}
	}
	return Quota{
		Limit:     w.MaxRequests,
		Remaining: max(w.MaxRequests-w.Count, 0),
		Reset:     w.reset(),
	}
}

// admit counts a request against the identity's window. Callers hold s.mu.
func (s *Service) admit(identityID string, now time.Time) error {
	w, ok := s.windows[identityID]
	if !ok || w.expired(now) {
		w = &RateWindow{WindowStart: now, WindowDuration: s.window, MaxRequests: s.maxRequests}
		s.windows[identityID] = w
	}
	if w.Count >= w.MaxRequests {
		retryAfter := w.reset().Sub(now)
		if retryAfter <= 0 {
			retryAfter = time.Second
		}
		return &apperrors.RateLimitedError{
			RetryAfter: retryAfter,
			Limit:      w.MaxRequests,
			Remaining:  0,
			Reset:      w.reset(),
		}
	}
	w.Count++
	return nil
}

func (s *Service) cached(identityID string, now time.Time) (*Credential, bool) {
	cred, ok := s.cache.Get(identityID)
	if !ok || cred.ExpiringSoon(now, s.safetyMargin) {
		return nil, false
	}
	return cred, true
}

func (s *Service) throttle(identityID string) *rate.Limiter {
	l, ok := s.throttles[identityID]
	if !ok {
		l = rate.NewLimiter(rate.Every(s.minSpacing), 1)
		s.throttles[identityID] = l
	}
	return l
}

// evict drops expired credentials and the bookkeeping for identities that
// have no live window. Callers hold s.mu.
func (s *Service) evict(now time.Time) {
	removed := s.cache.EvictExpired(now)
	for id, w := range s.windows {
		if w.expired(now) {
			delete(s.windows, id)
			if _, ok := s.cache.Get(id); !ok {
				delete(s.throttles, id)
			}
		}
	}
	s.log.Debug().Int("removed", removed).Int("remaining", s.cache.Len()).Msg("Evicted expired credentials")
}
