package bootstrap

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"syscall"
	"testing"
	"time"

	"txserver/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.StartupMode = config.StartupModeGraceful
	cfg.MongoDB.URI = "not-a-mongodb-uri"
	cfg.MongoDB.ConnectTimeout = time.Second
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	cfg.API.RoutePrefix = config.DefaultRoutePrefix
	cfg.API.AllowedOrigins = []string{"*"}
	cfg.API.JSONBodyLimit = 1024
	cfg.API.ReadHeaderTimeout = time.Second
	cfg.Log.Level = "debug"
	cfg.Log.Format = "console"
	return cfg
}

func startTestApp(t *testing.T, cfg *config.Config) (*App, *observer.ObservedLogs) {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	app := NewAppWithConfig(cfg, zap.New(core))
	t.Cleanup(app.Shutdown)

	require.NoError(t, app.Start(context.Background()))
	return app, logs
}

func waitForStore(t *testing.T, app *App) {
	t.Helper()
	select {
	case <-app.Store.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("store connection attempt did not finish")
	}
}

func get(t *testing.T, addr net.Addr, path string) int {
	t.Helper()
	resp, err := http.Get("http://" + addr.String() + path)
	require.NoError(t, err)
	resp.Body.Close()
	return resp.StatusCode
}

func TestStart_ServesDespiteConnectionFailure(t *testing.T) {
	app, logs := startTestApp(t, testConfig())
	waitForStore(t, app)

	require.NotNil(t, app.Addr())
	port := app.Addr().(*net.TCPAddr).Port
	assert.Equal(t, 1, logs.FilterMessage(fmt.Sprintf("Server running on port %d", port)).Len())

	failures := logs.FilterMessage("MongoDB connection error").All()
	require.Len(t, failures, 1)
	assert.Equal(t, zapcore.ErrorLevel, failures[0].Level)
	assert.Contains(t, failures[0].ContextMap()["hint"], "malformed")
	assert.False(t, app.Store.Ready())

	// The route table still answers, degraded
	assert.Equal(t, http.StatusServiceUnavailable, get(t, app.Addr(), "/api/transactions"))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, app.Addr(), "/api/transactions/65f0c0ffee0000000000beef"))
}

func TestStart_OtherPathsNotFound(t *testing.T) {
	app, _ := startTestApp(t, testConfig())

	for _, path := range []string{"/", "/api", "/api/transactionsX", "/metrics"} {
		assert.Equal(t, http.StatusNotFound, get(t, app.Addr(), path), path)
	}
}

func TestStart_MissingURIGraceful(t *testing.T) {
	cfg := testConfig()
	cfg.MongoDB.URI = ""
	app, logs := startTestApp(t, cfg)
	waitForStore(t, app)

	failures := logs.FilterMessage("MongoDB connection error").All()
	require.Len(t, failures, 1)
	assert.Contains(t, failures[0].ContextMap()["hint"], "MONGODB_URI is not set")
	assert.Equal(t, http.StatusServiceUnavailable, get(t, app.Addr(), "/api/transactions"))
}

func TestStart_PortInUse(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	cfg := testConfig()
	cfg.API.Port = ln.Addr().(*net.TCPAddr).Port

	app := NewAppWithConfig(cfg, zap.NewNop())
	defer app.Shutdown()

	err = app.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to listen")
	assert.Nil(t, app.Addr())
}

func TestStart_AdminServer(t *testing.T) {
	cfg := testConfig()
	cfg.Admin.Addr = "127.0.0.1:0"
	app, _ := startTestApp(t, cfg)
	waitForStore(t, app)

	require.NotNil(t, app.AdminAddr())
	assert.Equal(t, http.StatusOK, get(t, app.AdminAddr(), "/healthz"))
	assert.Equal(t, http.StatusServiceUnavailable, get(t, app.AdminAddr(), "/readyz"))
	assert.Equal(t, http.StatusOK, get(t, app.AdminAddr(), "/metrics"))
}

func TestShutdown_StopsServing(t *testing.T) {
	app, logs := startTestApp(t, testConfig())
	addr := app.Addr().String()

	app.Shutdown()
	app.Shutdown()

	_, err := http.Get("http://" + addr + "/api/transactions")
	assert.Error(t, err)
	assert.Equal(t, 1, logs.FilterMessage("Shutdown complete").Len())
}

func withEnv(t *testing.T, key string, value *string) {
	t.Helper()
	prev, had := os.LookupEnv(key)
	if value == nil {
		os.Unsetenv(key)
	} else {
		os.Setenv(key, *value)
	}
	t.Cleanup(func() {
		if had {
			os.Setenv(key, prev)
		} else {
			os.Unsetenv(key)
		}
	})
}

func TestNewApp_Port(t *testing.T) {
	port := "8080"
	tests := []struct {
		name     string
		port     *string
		expected string
	}{
		{"default", nil, ":5000"},
		{"from PORT", &port, ":8080"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withEnv(t, "PORT", tt.port)
			withEnv(t, "MONGODB_URI", nil)

			app, err := NewApp(config.LoadOptions{EnvFile: "testdata-missing.env"})
			require.NoError(t, err)
			defer app.Shutdown()

			assert.Equal(t, tt.expected, app.Config.ListenAddr())
		})
	}
}

func TestNewApp_SignalBeforeWaitIsNotLost(t *testing.T) {
	port := "0"
	withEnv(t, "PORT", &port)
	withEnv(t, "MONGODB_URI", nil)

	app, err := NewApp(config.LoadOptions{EnvFile: "testdata-missing.env"})
	require.NoError(t, err)
	defer app.Shutdown()

	// Delivered before Start, while nothing is waiting yet
	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))
	require.NoError(t, app.Start(context.Background()))

	done := make(chan struct{})
	go func() {
		app.WaitForShutdown()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not observe the early signal")
	}
}

func TestNewApp_InvalidConfig(t *testing.T) {
	bad := "not-a-port"
	withEnv(t, "PORT", &bad)

	_, err := NewApp(config.LoadOptions{EnvFile: "testdata-missing.env"})
	require.Error(t, err)
	assert.True(t, strings.HasPrefix(err.Error(), "failed to load config"))
}
