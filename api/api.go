// Package api is the HTTP application: the router, the middleware chain every
// request passes through, route table mounting, and the listener lifecycle.
package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"txserver/config"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// rateLimiterEntry holds a rate limiter with last seen time
type rateLimiterEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// API holds the API server
type API struct {
	router   *mux.Router
	handler  http.Handler
	server   *http.Server
	listener net.Listener
	config   *config.Config
	logger   *zap.SugaredLogger

	rateLimiters   map[string]*rateLimiterEntry
	rateLimitersMu sync.Mutex
	stopCh         chan struct{}
	stopOnce       sync.Once
}

// NewAPI creates the application with its middleware attached. No routes are
// registered; the caller mounts route tables with Mount.
func NewAPI(cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		router:       mux.NewRouter(),
		config:       cfg,
		logger:       logger,
		rateLimiters: make(map[string]*rateLimiterEntry),
		stopCh:       make(chan struct{}),
	}
	a.setupMiddleware()
	if a.rateLimitEnabled() {
		go a.cleanupRateLimiters()
	}
	return a
}

// setupMiddleware wraps the whole router, so unmatched paths see the same
// chain as mounted ones. Listed outermost first.
func (a *API) setupMiddleware() {
	chain := []func(http.Handler) http.Handler{
		a.requestIDMiddleware,
		a.metricsMiddleware,
	}
	if a.rateLimitEnabled() {
		chain = append(chain, a.rateLimitMiddleware)
	}
	chain = append(chain,
		a.corsMiddleware,
		a.jsonBodyMiddleware,
	)

	var h http.Handler = a.router
	for i := len(chain) - 1; i >= 0; i-- {
		h = chain[i](h)
	}
	a.handler = h
}

// Mount delegates every request to prefix, or below prefix/, to handler with
// the prefix stripped. Any method is accepted.
func (a *API) Mount(prefix string, handler http.Handler) {
	prefix = "/" + strings.Trim(prefix, "/")
	stripped := stripPrefix(prefix, handler)

	a.router.Path(prefix).Handler(stripped)
	a.router.PathPrefix(prefix + "/").Handler(stripped)

	a.logger.Infow("Routes mounted", "prefix", prefix)
}

// stripPrefix removes prefix from the request path, leaving at least "/"
func stripPrefix(prefix string, h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r2 := new(http.Request)
		*r2 = *r
		r2.URL = new(url.URL)
		*r2.URL = *r.URL

		p := strings.TrimPrefix(r.URL.Path, prefix)
		if p == "" {
			p = "/"
		}
		r2.URL.Path = p
		if r.URL.RawPath != "" {
			rp := strings.TrimPrefix(r.URL.RawPath, prefix)
			if rp == "" {
				rp = "/"
			}
			r2.URL.RawPath = rp
		}
		h.ServeHTTP(w, r2)
	})
}

// Handler returns the root handler including the middleware chain
func (a *API) Handler() http.Handler {
	return a.handler
}

// Listen binds addr. Binding is synchronous so a port conflict is reported
// to the caller instead of surfacing later from a goroutine.
func (a *API) Listen(addr string) (net.Addr, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}
	a.listener = ln
	a.server = &http.Server{
		Handler:           a.handler,
		ReadHeaderTimeout: a.config.API.ReadHeaderTimeout,
	}
	return ln.Addr(), nil
}

// Serve accepts connections on the bound listener until Stop is called.
// It returns nil after a clean shutdown.
func (a *API) Serve() error {
	if a.server == nil || a.listener == nil {
		return errors.New("api: Serve called before Listen")
	}
	err := a.server.Serve(a.listener)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop stops the API server
func (a *API) Stop(ctx context.Context) error {
	a.stopOnce.Do(func() { close(a.stopCh) })
	if a.server == nil {
		return nil
	}
	err := a.server.Shutdown(ctx)
	// Shutdown only closes listeners handed to Serve
	if cerr := a.listener.Close(); cerr != nil && !errors.Is(cerr, net.ErrClosed) && err == nil {
		err = cerr
	}
	return err
}
