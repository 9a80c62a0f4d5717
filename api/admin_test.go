package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeStore struct {
	ready     bool
	healthErr error
}

func (f *fakeStore) Ready() bool { return f.ready }
func (f *fakeStore) HealthCheck(ctx context.Context) error { return f.healthErr }

func getAdmin(t *testing.T, s *AdminServer, path string) (*httptest.ResponseRecorder, HealthResponse) {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))

	var body HealthResponse
	if rr.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
	}
	return rr, body
}

func TestAdmin_Healthz(t *testing.T) {
	s := NewAdminServer(&fakeStore{}, zap.NewNop().Sugar())

	rr, body := getAdmin(t, s, "/healthz")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", body.Status)
}

func TestAdmin_Readyz(t *testing.T) {
	tests := []struct {
		name       string
		store      *fakeStore
		wantStatus int
		wantStore  string
	}{
		{"pending", &fakeStore{}, http.StatusServiceUnavailable, "pending"},
		{"connected", &fakeStore{ready: true}, http.StatusOK, "connected"},
		{"ping fails", &fakeStore{ready: true, healthErr: errors.New("ping timeout")}, http.StatusServiceUnavailable, "unhealthy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewAdminServer(tt.store, zap.NewNop().Sugar())

			rr, body := getAdmin(t, s, "/readyz")

			assert.Equal(t, tt.wantStatus, rr.Code)
			assert.Equal(t, tt.wantStore, body.Store)
		})
	}
}

func TestAdmin_Readyz_RedactsConnectionString(t *testing.T) {
	store := &fakeStore{ready: true, healthErr: errors.New("dial mongodb://user:pw@db:27017 failed")}
	s := NewAdminServer(store, zap.NewNop().Sugar())

	_, body := getAdmin(t, s, "/readyz")

	assert.NotContains(t, body.Error, "pw@db")
	assert.Contains(t, body.Error, "[DATABASE_CONNECTION]")
}

func TestAdmin_Metrics(t *testing.T) {
	s := NewAdminServer(&fakeStore{}, zap.NewNop().Sugar())

	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "txserver_store_ready")
}

func TestAdmin_ListenServeStop(t *testing.T) {
	s := NewAdminServer(&fakeStore{}, zap.NewNop().Sugar())

	addr, err := s.Listen("127.0.0.1:0")
	require.NoError(t, err)
	errCh := make(chan error, 1)
	go func() { errCh <- s.Serve() }()

	resp, err := http.Get("http://" + addr.String() + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, <-errCh)
}
