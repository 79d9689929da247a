// Package retry holds the backoff policy and the clock-driven scheduler that
// replaces ad-hoc timer chains in the managers.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/jrsteele09/go-realtime-core/internal/config"
)

// Policy describes the delay between retry attempts after transient failures.
type Policy struct {
	Base       time.Duration
	Multiplier float64
	MaxRetries int
	// Jitter is the randomization factor applied to each delay, 0 disables it.
	Jitter float64
}

// DefaultPolicy is base 2s, factor 2, three retries.
func DefaultPolicy() Policy {
	return Policy{Base: 2 * time.Second, Multiplier: 2, MaxRetries: 3, Jitter: 0.1}
}

// Backoff returns a fresh delay sequence for one connect lifecycle. NextBackOff
// yields backoff.Stop once MaxRetries delays have been handed out.
func (p Policy) Backoff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.Base
	b.Multiplier = p.Multiplier
	b.RandomizationFactor = p.Jitter
	b.MaxInterval = p.Delay(p.MaxRetries) * 2
	b.MaxElapsedTime = 0
	b.Reset()
	return backoff.WithMaxRetries(b, uint64(p.MaxRetries))
}

// Delay returns the un-jittered delay before retry n (1-based).
func (p Policy) Delay(n int) time.Duration {
	if n < 1 {
		return 0
	}
	d := float64(p.Base)
	for i := 1; i < n; i++ {
		d *= p.Multiplier
	}
	return time.Duration(d)
}

// PolicyFrom reads the connection backoff settings.
func PolicyFrom(cfg config.ConnectionConfig) Policy {
	return Policy{
		Base:       cfg.GetBackoffBase(),
		Multiplier: cfg.GetBackoffFactor(),
		MaxRetries: cfg.GetBackoffMaxRetries(),
		Jitter:     cfg.GetBackoffJitter(),
	}
}
