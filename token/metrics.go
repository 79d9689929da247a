package token

import "github.com/prometheus/client_golang/prometheus"

// Metrics counts issuance outcomes per audience.
type Metrics struct {
	issued          *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	rateLimited     *prometheus.CounterVec
	signingFailures *prometheus.CounterVec
}

// NewMetrics registers the token counters on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		issued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Subsystem: "token",
			Name:      "issued_total",
			Help:      "Credentials freshly signed.",
		}, []string{"audience"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Subsystem: "token",
			Name:      "cache_hits_total",
			Help:      "Requests served from the credential cache.",
		}, []string{"audience"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Subsystem: "token",
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the per-identity rate window.",
		}, []string{"audience"}),
		signingFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "realtime",
			Subsystem: "token",
			Name:      "signing_failures_total",
			Help:      "Credentials that could not be signed.",
		}, []string{"audience"}),
	}
	reg.MustRegister(m.issued, m.cacheHits, m.rateLimited, m.signingFailures)
	return m
}

func (m *Metrics) incIssued(audience string) {
	if m != nil {
		m.issued.WithLabelValues(audience).Inc()
	}
}

func (m *Metrics) incCacheHit(audience string) {
	if m != nil {
		m.cacheHits.WithLabelValues(audience).Inc()
	}
}

func (m *Metrics) incRateLimited(audience string) {
	if m != nil {
		m.rateLimited.WithLabelValues(audience).Inc()
	}
}

func (m *Metrics) incSigningFailure(audience string) {
	if m != nil {
		m.signingFailures.WithLabelValues(audience).Inc()
	}
}
