package token_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-realtime-core/internal/errors"
	"github.com/jrsteele09/go-realtime-core/token"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-for-hmac-signing"

type countingSigner struct {
	token.Signer
	calls atomic.Int32
	err   error
}

func (c *countingSigner) Sign(claims jwt.MapClaims) (string, error) {
	c.calls.Add(1)
	if c.err != nil {
		return "", c.err
	}
	return c.Signer.Sign(claims)
}

type testFixture struct {
	clock    *clock.Mock
	signer   *countingSigner
	registry *prometheus.Registry
	service  *token.Service
}

func setupTestFixture(t *testing.T, opts ...token.ServiceOption) *testFixture {
	t.Helper()
	mock := clock.NewMock()
	mock.Set(time.Date(2026, 1, 2, 15, 0, 0, 0, time.UTC))
	signer := &countingSigner{Signer: token.NewHMACSigner(testSecret)}
	registry := prometheus.NewRegistry()
	metrics := token.NewMetrics(registry)
	all := append([]token.ServiceOption{token.WithClock(mock), token.WithMetrics(metrics)}, opts...)
	return &testFixture{
		clock:    mock,
		signer:   signer,
		registry: registry,
		service:  token.NewService(signer, all...),
	}
}

func parseClaims(t *testing.T, value string) jwt.MapClaims {
	t.Helper()
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(value, claims, token.NewHMACSigner(testSecret).GetVerificationKey,
		jwt.WithoutClaimsValidation())
	require.NoError(t, err)
	return claims
}

func TestIssue_MissingIdentity(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.service.Issue(context.Background(), "  ")
	require.ErrorIs(t, err, apperrors.ErrMissingIdentity)
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestIssue_ChatCredential(t *testing.T) {
	f := setupTestFixture(t)
	now := f.clock.Now()

	cred, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, "u1", cred.SubjectID)
	require.Equal(t, now.Add(-time.Minute), cred.IssuedAt)
	require.Equal(t, now.Add(time.Hour), cred.ExpiresAt)

	claims := parseClaims(t, cred.Value)
	require.Equal(t, "u1", claims["user_id"])
	require.EqualValues(t, now.Add(time.Hour).Unix(), claims["exp"])
	require.EqualValues(t, now.Add(-time.Minute).Unix(), claims["iat"])
}

func TestIssue_VideoCredential(t *testing.T) {
	f := setupTestFixture(t,
		token.WithAudience("video"),
		token.WithClaims(token.VideoClaims("stream-video")),
		token.WithTTL(24*time.Hour),
	)

	cred, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)

	claims := parseClaims(t, cred.Value)
	require.Equal(t, "u1", claims["user_id"])
	require.Equal(t, "stream-video", claims["iss"])
	require.Equal(t, "user/u1", claims["sub"])
	require.Equal(t, f.clock.Now().Add(24*time.Hour), cred.ExpiresAt)
}

func TestIssue_CachedCredentialReused(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)

	f.clock.Add(10 * time.Minute)
	second, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)

	require.Equal(t, first.Value, second.Value)
	require.EqualValues(t, 1, f.signer.calls.Load())
}

func TestIssue_ReissuedInsideSafetyMargin(t *testing.T) {
	f := setupTestFixture(t)

	first, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)

	// 56 minutes in, the 1h credential is within the 5 minute margin.
	f.clock.Add(56 * time.Minute)
	second, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)

	require.NotEqual(t, first.Value, second.Value)
	require.True(t, second.ExpiresAt.After(first.ExpiresAt))
	require.EqualValues(t, 2, f.signer.calls.Load())
}

func TestIssue_RateLimitedOnEleventhRequest(t *testing.T) {
	f := setupTestFixture(t)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		_, err := f.service.Issue(ctx, "u1")
		require.NoError(t, err, "request %d", i+1)
	}
	f.clock.Add(20 * time.Second)

	_, err := f.service.Issue(ctx, "u1")
	require.ErrorIs(t, err, apperrors.ErrRateLimited)
	require.EqualValues(t, 10, counterValue(t, f, "issued")+counterValue(t, f, "cache_hits"))

	retryAfter, ok := apperrors.RetryAfter(err)
	require.True(t, ok)
	require.Equal(t, 40*time.Second, retryAfter)
	require.EqualValues(t, 1, counterValue(t, f, "rate_limited"))

	quota := f.service.Quota("u1")
	require.Equal(t, 10, quota.Limit)
	require.Equal(t, 0, quota.Remaining)

	// Another identity has its own window.
	_, err = f.service.Issue(ctx, "u2")
	require.NoError(t, err)
}

func TestIssue_RateWindowResets(t *testing.T) {
	f := setupTestFixture(t, token.WithRateLimit(2, time.Minute))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := f.service.Issue(ctx, "u1")
		require.NoError(t, err)
	}
	_, err := f.service.Issue(ctx, "u1")
	require.ErrorIs(t, err, apperrors.ErrRateLimited)

	f.clock.Add(time.Minute + time.Second)
	_, err = f.service.Issue(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, f.service.Quota("u1").Remaining)
}

func TestIssue_FreshIssuanceSpacing(t *testing.T) {
	// A TTL shorter than the safety margin forces every request to sign.
	f := setupTestFixture(t, token.WithTTL(time.Minute))
	ctx := context.Background()

	first, err := f.service.Issue(ctx, "u1")
	require.NoError(t, err)

	done := make(chan *token.Credential, 1)
	go func() {
		cred, err := f.service.Issue(ctx, "u1")
		if err == nil {
			done <- cred
		}
		close(done)
	}()

	var second *token.Credential
	require.Eventually(t, func() bool {
		select {
		case second = <-done:
			return true
		default:
			f.clock.Add(250 * time.Millisecond)
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)

	require.NotNil(t, second)
	require.GreaterOrEqual(t, second.IssuedAt.Sub(first.IssuedAt), 2*time.Second)
	require.EqualValues(t, 2, f.signer.calls.Load())
}

func TestIssue_SpacingHonoursContext(t *testing.T) {
	f := setupTestFixture(t, token.WithTTL(time.Minute))

	_, err := f.service.Issue(context.Background(), "u1")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = f.service.Issue(ctx, "u1")
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, f.signer.calls.Load())
}

func TestIssue_SigningUnavailable(t *testing.T) {
	service := token.NewService(token.NewHMACSigner(""))

	_, err := service.Issue(context.Background(), "u1")
	require.ErrorIs(t, err, apperrors.ErrSigningUnavailable)
	require.False(t, apperrors.Retryable(err))
}

func TestIssue_SigningFailed(t *testing.T) {
	f := setupTestFixture(t)
	f.signer.err = errors.New("hsm offline")

	_, err := f.service.Issue(context.Background(), "u1")
	require.ErrorIs(t, err, apperrors.ErrSigningFailed)
	require.EqualValues(t, 1, counterValue(t, f, "signing_failures"))
}

func TestIssue_EvictsExpiredWhenBoundExceeded(t *testing.T) {
	cache := token.NewMemoryCache()
	f := setupTestFixture(t, token.WithCache(cache, 2))
	ctx := context.Background()

	_, err := f.service.Issue(ctx, "u1")
	require.NoError(t, err)
	_, err = f.service.Issue(ctx, "u2")
	require.NoError(t, err)

	f.clock.Add(2 * time.Hour)
	_, err = f.service.Issue(ctx, "u3")
	require.NoError(t, err)

	require.Equal(t, 1, cache.Len())
	_, ok := cache.Get("u3")
	require.True(t, ok)
}

func counterValue(t *testing.T, f *testFixture, name string) float64 {
	t.Helper()
	families, err := f.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "realtime_token_"+name+"_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			return m.GetCounter().GetValue()
		}
	}
	return 0
}
