package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/gig-messenger/internal/models"
)

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.Login(true)
	m.Login(false)
	m.Login(false)
	m.TokenIssued(models.TokenKindSession)
	m.TokenRevoked(models.TokenKindSession, 3)
	m.TokenRevoked(models.TokenKindReset, 0)
	m.GateRejected("session")
	m.Reset(true)
	m.NotifierSend(false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Logins.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Logins.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TokensIssued.WithLabelValues("session")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.TokensRevoked.WithLabelValues("session")))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.TokensRevoked.WithLabelValues("reset")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GateRejections.WithLabelValues("session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Resets.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotifierSends.WithLabelValues(ResultFailure)))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Login(true)
		m.TokenIssued(models.TokenKindReset)
		m.TokenRevoked(models.TokenKindReset, 1)
		m.GateRejected("reset")
		m.Reset(false)
		m.NotifierSend(true)
	})
}

func TestNew_DuplicateRegistrationPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
