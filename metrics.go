package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Validation results reported on arena_token_validations_total.
const (
	ValidationResultOK       = "ok"
	ValidationResultInvalid  = "invalid"
	ValidationResultNotFound = "not_found"
	ValidationResultError    = "error"
)

// Metrics groups the arena collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	tokensIssued     *prometheus.CounterVec
	tokenValidations *prometheus.CounterVec
	tokenReuse       prometheus.Counter
	tokensRevoked    prometheus.Counter
	connections      *prometheus.GaugeVec
	admissions       *prometheus.CounterVec
	invites          *prometheus.CounterVec
}

// NewMetrics registers the arena collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		tokensIssued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_tokens_issued_total",
			Help: "Total number of tokens issued by kind",
		}, []string{"kind"}),
		tokenValidations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_token_validations_total",
			Help: "Total number of token validations by kind and result",
		}, []string{"kind", "result"}),
		tokenReuse: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_token_reuse_detected_total",
			Help: "Total number of replayed persisted tokens that triggered revocation",
		}),
		tokensRevoked: f.NewCounter(prometheus.CounterOpts{
			Name: "arena_tokens_revoked_total",
			Help: "Total number of persisted tokens removed by bulk revocation",
		}),
		connections: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "arena_realtime_connections",
			Help: "Number of admitted realtime connections by namespace",
		}, []string{"namespace"}),
		admissions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_realtime_admissions_total",
			Help: "Total number of admission handshakes by namespace and result",
		}, []string{"namespace", "result"}),
		invites: f.NewCounterVec(prometheus.CounterOpts{
			Name: "arena_invites_total",
			Help: "Total number of invites by outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) TokenIssued(kind TokenKind) {
	if m == nil {
		return
	}
	m.tokensIssued.WithLabelValues(kind.String()).Inc()
}

func (m *Metrics) TokenValidated(kind TokenKind, result string) {
	if m == nil {
		return
	}
	m.tokenValidations.WithLabelValues(kind.String(), result).Inc()
}

func (m *Metrics) TokenReuseDetected() {
	if m == nil {
		return
	}
	m.tokenReuse.Inc()
}

func (m *Metrics) TokensRevoked(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.tokensRevoked.Add(float64(n))
}

func (m *Metrics) ConnectionOpened(namespace string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(namespace).Inc()
}

func (m *Metrics) ConnectionClosed(namespace string) {
	if m == nil {
		return
	}
	m.connections.WithLabelValues(namespace).Dec()
}

func (m *Metrics) Admission(namespace, result string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(namespace, result).Inc()
}

func (m *Metrics) Invite(outcome string) {
	if m == nil {
		return
	}
	m.invites.WithLabelValues(outcome).Inc()
}
