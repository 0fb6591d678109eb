// Package metrics exposes the engine's Prometheus instruments.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the engine instruments. Register them on any registerer;
// passing nil skips registration, which keeps tests independent.
type Metrics struct {
	LoginsTotal         *prometheus.CounterVec
	LoginDuration       prometheus.Histogram
	SessionsCreated     prometheus.Counter
	SessionsInvalidated *prometheus.CounterVec
	CodesIssued         *prometheus.CounterVec
	CodesVerified       *prometheus.CounterVec
	AdmissionRejections *prometheus.CounterVec
}

// New builds the instrument set and registers it on reg when non-nil.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		LoginsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_logins_total",
			Help: "Login attempts by outcome.",
		}, []string{"result"}),
		LoginDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "authcore_login_duration_seconds",
			Help:    "Login latency in seconds, hashing included.",
			Buckets: prometheus.DefBuckets,
		}),
		SessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "authcore_sessions_created_total",
			Help: "Sessions opened.",
		}),
		SessionsInvalidated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_sessions_invalidated_total",
			Help: "Sessions invalidated by reason.",
		}, []string{"reason"}),
		CodesIssued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_verification_codes_issued_total",
			Help: "Verification codes issued by channel.",
		}, []string{"channel"}),
		CodesVerified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_verification_codes_verified_total",
			Help: "Verification outcomes.",
		}, []string{"result"}),
		AdmissionRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "authcore_admission_rejections_total",
			Help: "Requests shed at the admission controls.",
		}, []string{"control"}),
	}

	if reg != nil {
		reg.MustRegister(
			m.LoginsTotal, m.LoginDuration, m.SessionsCreated, m.SessionsInvalidated,
			m.CodesIssued, m.CodesVerified, m.AdmissionRejections,
		)
	}
	return m
}

// ObserveLogin records one login attempt.
func (m *Metrics) ObserveLogin(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.LoginsTotal.WithLabelValues(result).Inc()
	m.LoginDuration.Observe(elapsed.Seconds())
}
