package httpserver

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/and161185/invisicipher/internal/errs"
)

func TestMetrics_CountsRequestsAndOutcomes(t *testing.T) {
	m := NewMetrics()
	f := &fakeAuth{}
	h := NewRouter(NewHandler(f, zap.NewNop()).WithMetrics(m))

	rec := serve(h, http.MethodPost, "/api/auth/signup", aliceSignup, nil)
	require.Equal(t, http.StatusCreated, rec.Code)

	f.loginErr = errs.ErrInvalidCredentials
	rec = serve(h, http.MethodPost, "/api/auth/login", `{"identifier":"a","password":"b"}`, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	serve(h, http.MethodPost, "/api/auth/login", `{"identifier":"a","password":"b"}`, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.auth.WithLabelValues("signup", "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.auth.WithLabelValues("login", "denied")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/auth/login", http.MethodPost, "401")))

	rec = serve(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `invisicipher_auth_attempts_total{op="login",result="denied"} 2`)
	assert.Contains(t, body, "invisicipher_http_request_duration_seconds")
}

func TestMetrics_DisabledByDefault(t *testing.T) {
	h := NewRouter(NewHandler(&fakeAuth{}, zap.NewNop()))
	rec := serve(h, http.MethodGet, "/metrics", "", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":            nil,
		"invalid_input": &errs.ValidationError{},
		"duplicate":     errs.ErrAlreadyExists,
		"denied":        errs.ErrInvalidCredentials,
		"rate_limited":  &errs.RateLimitError{},
		"error":         errors.New("db down"),
	}
	for want, err := range cases {
		assert.Equal(t, want, outcome(err), "%v", err)
	}
}

func TestMetrics_CountsRecoveredPanics(t *testing.T) {
	m := NewMetrics()
	h := NewRouter(NewHandler(&fakeAuth{panicOn: "signup"}, zap.NewNop()).WithMetrics(m))

	rec := serve(h, http.MethodPost, "/api/auth/signup", aliceSignup, nil)
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.requests.WithLabelValues("/api/auth/signup", http.MethodPost, "500")))
}
