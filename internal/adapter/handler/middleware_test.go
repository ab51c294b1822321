package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srgjo27/eventflow/internal/platform/logging"
)

func TestRequestLogger_LogsStatusAndPath(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()

	var sawRequestID bool
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, sawRequestID = logging.FromContext(r.Context()).Data["request_id"]
		w.WriteHeader(http.StatusCreated)
	})

	req := httptest.NewRequest(http.MethodPost, "/purchases", nil)
	rec := httptest.NewRecorder()

	RequestLogger(next, logger).ServeHTTP(rec, req)

	assert.True(t, sawRequestID, "handlers get a request-scoped logger")
	assert.NotEmpty(t, rec.Header().Get(requestIDHeader))

	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.InfoLevel, entry.Level)
	assert.Equal(t, "POST", entry.Data["method"])
	assert.Equal(t, "/purchases", entry.Data["path"])
	assert.Equal(t, http.StatusCreated, entry.Data["status"])
}

func TestRequestLogger_KeepsIncomingRequestID(t *testing.T) {
	t.Parallel()

	logger, hook := test.NewNullLogger()
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "req-42")
	rec := httptest.NewRecorder()

	RequestLogger(next, logger).ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(requestIDHeader))
	assert.Equal(t, "req-42", hook.LastEntry().Data["request_id"])
	assert.Equal(t, http.StatusOK, hook.LastEntry().Data["status"])
}

func TestCORS(t *testing.T) {
	t.Parallel()

	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	h := CORS([]string{"https://app.eventflow.dev"}, next)

	t.Run("allowed preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/purchases", nil)
		req.Header.Set("Origin", "https://app.eventflow.dev")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "https://app.eventflow.dev", rec.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("forbidden preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/purchases", nil)
		req.Header.Set("Origin", "https://evil.example")
		req.Header.Set("Access-Control-Request-Method", "POST")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("wildcard", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		req.Header.Set("Origin", "https://any.example")
		rec := httptest.NewRecorder()

		CORS([]string{"*"}, next).ServeHTTP(rec, req)

		assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
	})
}
