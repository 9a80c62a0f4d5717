//go:build integration

// Package integration runs the server against a real MongoDB started with
// testcontainers. Run with: go test -tags integration ./tests/integration/...
package integration

import (
	"context"
	"fmt"
	"testing"
	"time"

	"txserver/config"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// Container configuration constants
const (
	mongoImage            = "mongo:7"
	mongoPort             = "27017/tcp"
	testDatabaseName      = "txserver_integration_test"
	containerStartTimeout = 120 * time.Second
)

// TestInfrastructure holds the MongoDB container and a config pointing at it
type TestInfrastructure struct {
	MongoContainer testcontainers.Container
	MongoURI       string
	Config         *config.Config
}

// SetupTestInfrastructure starts MongoDB and returns a config for it
func SetupTestInfrastructure(t *testing.T) *TestInfrastructure {
	t.Helper()
	ctx := context.Background()

	container := setupMongoContainer(t, ctx)
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("Warning: failed to terminate MongoDB container: %v", err)
		}
	})

	host, err := container.Host(ctx)
	require.NoError(t, err, "Failed to get MongoDB container host")
	mappedPort, err := container.MappedPort(ctx, mongoPort)
	require.NoError(t, err, "Failed to get MongoDB mapped port")

	uri := fmt.Sprintf("mongodb://%s:%s/%s", host, mappedPort.Port(), testDatabaseName)

	cfg := &config.Config{}
	cfg.StartupMode = config.StartupModeStrict
	cfg.MongoDB.URI = uri
	cfg.MongoDB.ConnectTimeout = 30 * time.Second
	cfg.MongoDB.MaxPoolSize = 10
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	cfg.API.RoutePrefix = config.DefaultRoutePrefix
	cfg.API.AllowedOrigins = []string{"*"}
	cfg.API.JSONBodyLimit = 100 * 1024
	cfg.API.ReadHeaderTimeout = 10 * time.Second
	cfg.Log.Level = "info"
	cfg.Log.Format = "console"

	return &TestInfrastructure{
		MongoContainer: container,
		MongoURI:       uri,
		Config:         cfg,
	}
}

// setupMongoContainer creates and starts a MongoDB testcontainer
func setupMongoContainer(t *testing.T, ctx context.Context) testcontainers.Container {
	req := testcontainers.ContainerRequest{
		Image:        mongoImage,
		ExposedPorts: []string{mongoPort},
		WaitingFor: wait.ForAll(
			wait.ForLog("Waiting for connections"),
			wait.ForListeningPort(mongoPort),
		).WithDeadline(containerStartTimeout),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err, "Failed to start MongoDB container")

	t.Logf("MongoDB container started successfully")
	return container
}
