package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// ReadinessChecker reports whether the backing store can serve requests
type ReadinessChecker interface {
	Ready() bool
	HealthCheck(ctx context.Context) error
}

// AdminServer serves metrics and health probes on a separate listener so the
// public surface stays limited to the mounted route tables
type AdminServer struct {
	router   *mux.Router
	server   *http.Server
	listener net.Listener
	store    ReadinessChecker
	logger   *zap.SugaredLogger
}

// HealthResponse is the body of the health endpoints
type HealthResponse struct {
	Status string `json:"status"`
	Store  string `json:"store,omitempty"`
	Error  string `json:"error,omitempty"`
}

// NewAdminServer creates the admin server
func NewAdminServer(store ReadinessChecker, logger *zap.SugaredLogger) *AdminServer {
	s := &AdminServer{
		router: mux.NewRouter(),
		store:  store,
		logger: logger,
	}
	s.router.HandleFunc("/healthz", s.healthz).Methods(http.MethodGet)
	s.router.HandleFunc("/readyz", s.readyz).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler())
	return s
}

// Handler returns the admin router
func (s *AdminServer) Handler() http.Handler {
	return s.router
}

// healthz reports process liveness; it never depends on the store
func (s *AdminServer) healthz(w http.ResponseWriter, r *http.Request) {
	RespondJSON(w, HealthResponse{Status: "ok"}, http.StatusOK, s.logger)
}

// readyz reports whether the store connection is established and answering
func (s *AdminServer) readyz(w http.ResponseWriter, r *http.Request) {
	if !s.store.Ready() {
		RespondJSON(w, HealthResponse{Status: "unavailable", Store: "pending"}, http.StatusServiceUnavailable, s.logger)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.store.HealthCheck(ctx); err != nil {
		RespondJSON(w, HealthResponse{
			Status: "unavailable",
			Store:  "unhealthy",
			Error:  sanitizeErrorMessage(err.Error()),
		}, http.StatusServiceUnavailable, s.logger)
		return
	}

	RespondJSON(w, HealthResponse{Status: "ok", Store: "connected"}, http.StatusOK, s.logger)
}

// Listen binds the admin listener
func (s *AdminServer) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	s.listener = ln
	s.server = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ln.Addr(), nil
}

// Serve blocks until Stop; it returns nil after a clean shutdown
func (s *AdminServer) Serve() error {
	if s.server == nil {
		return errors.New("admin: Serve called before Listen")
	}
	if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop shuts the admin server down
func (s *AdminServer) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	err := s.server.Shutdown(ctx)
	if cerr := s.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}
