// Package metrics описывает метрики Prometheus сервиса аутентификации.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

// Результаты операций в метках.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Metrics набор счётчиков. Методы безопасно вызывать на nil.
type Metrics struct {
	HTTPLatency    *prometheus.HistogramVec
	Logins         *prometheus.CounterVec
	TokensIssued   *prometheus.CounterVec
	TokensRevoked  *prometheus.CounterVec
	GateRejections *prometheus.CounterVec
	Resets         *prometheus.CounterVec
	NotifierSends  *prometheus.CounterVec
}

// New создает метрики и регистрирует их в reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_requests_latency_seconds",
				Help:    "Latency of HTTP requests.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route", "status"},
		),
		Logins: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_logins_total",
				Help: "Login attempts by result.",
			},
			[]string{"result"},
		),
		TokensIssued: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_issued_total",
				Help: "Issued tokens by kind.",
			},
			[]string{"kind"},
		),
		TokensRevoked: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_tokens_revoked_total",
				Help: "Revoked tokens by kind.",
			},
			[]string{"kind"},
		),
		GateRejections: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_gate_rejections_total",
				Help: "Requests rejected by authentication gates.",
			},
			[]string{"gate"},
		),
		Resets: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_password_resets_total",
				Help: "Password reset attempts by result.",
			},
			[]string{"result"},
		),
		NotifierSends: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_notifier_sends_total",
				Help: "Recovery mails handed to the notifier by result.",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.HTTPLatency, m.Logins, m.TokensIssued, m.TokensRevoked,
		m.GateRejections, m.Resets, m.NotifierSends)
	return m
}

// Handler отдает метрики из реестра по умолчанию.
var Handler = promhttp.Handler

func result(ok bool) string {
	if ok {
		return ResultSuccess
	}
	return ResultFailure
}

// Login учитывает попытку входа.
func (m *Metrics) Login(ok bool) {
	if m == nil {
		return
	}
	m.Logins.WithLabelValues(result(ok)).Inc()
}

// TokenIssued учитывает выданный токен.
func (m *Metrics) TokenIssued(kind models.TokenKind) {
	if m == nil {
		return
	}
	m.TokensIssued.WithLabelValues(string(kind)).Inc()
}

// TokenRevoked учитывает n отозванных токенов.
func (m *Metrics) TokenRevoked(kind models.TokenKind, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.TokensRevoked.WithLabelValues(string(kind)).Add(float64(n))
}

// GateRejected учитывает отказ гейта.
func (m *Metrics) GateRejected(gate string) {
	if m == nil {
		return
	}
	m.GateRejections.WithLabelValues(gate).Inc()
}

// Reset учитывает попытку смены пароля.
func (m *Metrics) Reset(ok bool) {
	if m == nil {
		return
	}
	m.Resets.WithLabelValues(result(ok)).Inc()
}

// NotifierSend учитывает отправку письма.
func (m *Metrics) NotifierSend(ok bool) {
	if m == nil {
		return
	}
	m.NotifierSends.WithLabelValues(result(ok)).Inc()
}
