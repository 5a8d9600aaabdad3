package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestAttemptAndHandler(t *testing.T) {
	m := New()

	m.Attempt("local", OutcomeSuccess)
	m.Attempt("local", OutcomeSuccess)
	m.Attempt("google", OutcomeRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("local", OutcomeSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthAttempts.WithLabelValues("google", OutcomeRejected)))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `secrets_auth_attempts_total{method="local",outcome="success"} 2`)
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.SecretsStored.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.SecretsStored))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.SecretsStored))
}
