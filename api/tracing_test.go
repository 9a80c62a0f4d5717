package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestSanitizeRequestID(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"uuid", "550e8400-e29b-41d4-a716-446655440000", "550e8400-e29b-41d4-a716-446655440000"},
		{"underscore", "req_abc_123", "req_abc_123"},
		{"markup stripped", "req<script>alert(1)</script>123", "reqscriptalert1script123"},
		{"log injection", "abc\n\rINFO: fake log", "abcINFOfakelog"},
		{"empty", "", ""},
		{"truncated", strings.Repeat("a", 100), strings.Repeat("a", 64)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeRequestID(tt.input))
		})
	}
}

func TestRequestID_Echoed(t *testing.T) {
	a := NewAPI(testConfig(), zap.NewNop().Sugar())
	var seen string
	a.Mount("/api/transactions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetRequestID(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/transactions", nil)
	req.Header.Set(requestIDHeader, "client-req-42")
	rr := serve(a, req)

	assert.Equal(t, "client-req-42", rr.Header().Get(requestIDHeader))
	assert.Equal(t, "client-req-42", seen)
}

func TestRequestID_Generated(t *testing.T) {
	a, _ := setupTestAPI(t, testConfig())

	rr := serve(a, httptest.NewRequest(http.MethodGet, "/elsewhere", nil))

	id := rr.Header().Get(requestIDHeader)
	require.NotEmpty(t, id)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
}

func TestRequestID_LogsCompletion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	a := NewAPI(testConfig(), zap.New(core).Sugar())
	a.Mount("/api/transactions", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/api/transactions", nil)
	req.Header.Set(requestIDHeader, "abc")
	serve(a, req)

	entries := logs.FilterMessage("request_completed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "abc", fields["request_id"])
	assert.EqualValues(t, http.StatusAccepted, fields["status"])
	assert.Equal(t, "/api/transactions", fields["path"])
}

func TestResponseWriterWrapper(t *testing.T) {
	rr := httptest.NewRecorder()
	w := &responseWriterWrapper{ResponseWriter: rr, statusCode: http.StatusOK}

	w.WriteHeader(http.StatusNotFound)
	w.WriteHeader(http.StatusOK)

	assert.Equal(t, http.StatusNotFound, w.statusCode)
	assert.Same(t, rr, w.Unwrap())
}

func TestLogWithRequestID(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	logger := zap.New(core).Sugar()

	LogWithRequestID(WithRequestID(context.Background(), "r-1"), logger).Info("hello")
	LogWithRequestID(context.Background(), logger).Info("anon")

	all := logs.All()
	require.Len(t, all, 2)
	assert.Equal(t, "r-1", all[0].ContextMap()["request_id"])
	assert.Equal(t, "unknown", all[1].ContextMap()["request_id"])
	assert.Nil(t, LogWithRequestID(context.Background(), nil))
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()

	_, ok := GetRequestID(ctx)
	assert.False(t, ok)
	_, ok = JSONBody(ctx)
	assert.False(t, ok)

	ctx = WithRequestID(WithJSONBody(ctx, []byte(`{}`)), "req-1")

	id, ok := GetRequestID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "req-1", id)
	body, ok := JSONBody(ctx)
	assert.True(t, ok)
	assert.Equal(t, `{}`, string(body))
}
