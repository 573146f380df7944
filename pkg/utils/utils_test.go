package utils

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, ParseLogLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, ParseLogLevel("WARN"))
	assert.Equal(t, zapcore.ErrorLevel, ParseLogLevel("error"))
	assert.Equal(t, DefaultLogLevel, ParseLogLevel("verbose"))
}

func TestErrorHandlerMiddlewareWritesRecordedError(t *testing.T) {
	handler := ErrorHandlerMiddleware(zap.NewNop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		SetError(r, errors.New("node not found"), http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/replicas/a", nil)
	req.Header.Set("X-Request-ID", "req-1")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"node not found","code":404,"path":"/api/replicas/a","method":"GET","request_id":"req-1"}`, rec.Body.String())
}

func TestErrorHandlerMiddlewareRecoversPanic(t *testing.T) {
	handler := ErrorHandlerMiddleware(zap.NewNop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	var seen string
	handler := RequestIDMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = r.Header.Get("X-Request-ID")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.NotEmpty(t, seen)
	assert.Equal(t, seen, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Request-ID", "given")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "given", rec.Header().Get("X-Request-ID"))
}

func TestSetTimeNow(t *testing.T) {
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	old := SetTimeNow(func() time.Time { return fixed })
	defer SetTimeNow(old)

	assert.Equal(t, fixed, GetTimeNow())
}
