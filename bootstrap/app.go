package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"txserver/api"
	"txserver/config"
	"txserver/storage"
	"txserver/transactions"

	"go.uber.org/zap"
)

const (
	shutdownTimeout       = 5 * time.Second
	storeOperationTimeout = 10 * time.Second
)

// App is the transaction server with all its components
type App struct {
	// Configuration
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	// Components
	Store       *storage.Connector
	APIServer   *api.API
	AdminServer *api.AdminServer

	addr          net.Addr
	adminAddr     net.Addr
	cancelConnect context.CancelFunc

	// Lifecycle
	signals      chan os.Signal
	serviceWg    *sync.WaitGroup
	shutdownOnce sync.Once
}

// NewApp loads configuration, builds the logger and creates the application
func NewApp(opts config.LoadOptions) (*App, error) {
	cfg, err := InitConfig(opts)
	if err != nil {
		return nil, err
	}

	logger, sugar, err := InitLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	app := NewAppWithConfig(cfg, logger)
	app.notifySignals()
	logConfig(cfg, sugar)
	return app, nil
}

// NewAppWithConfig creates the application from an already loaded config
func NewAppWithConfig(cfg *config.Config, logger *zap.Logger) *App {
	sugar := logger.Sugar()
	return &App{
		Config:    cfg,
		Logger:    logger,
		Sugar:     sugar,
		Store:     InitStore(cfg, sugar),
		APIServer: api.NewAPI(cfg, sugar),
		serviceWg: &sync.WaitGroup{},
	}
}

// Start connects to MongoDB in the background, mounts the route table and
// starts listening. Only a failure to bind is returned; the store connection
// outcome is logged and never blocks serving.
func (a *App) Start(ctx context.Context) error {
	connectCtx, cancel := context.WithCancel(ctx)
	a.cancelConnect = cancel
	a.Store.Connect(connectCtx)

	txStorage := storage.NewTransactionStorage(a.Store, storeOperationTimeout, a.Sugar)
	a.APIServer.Mount(a.Config.API.RoutePrefix, transactions.NewHandler(txStorage, a.Sugar))

	if a.Config.Admin.Addr != "" {
		if err := a.startAdminServer(); err != nil {
			return err
		}
	}

	addr, err := a.APIServer.Listen(a.Config.ListenAddr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", a.Config.ListenAddr(), err)
	}
	a.addr = addr

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		if err := a.APIServer.Serve(); err != nil {
			a.Sugar.Errorw("API server stopped unexpectedly", "error", err)
		}
	}()

	a.Sugar.Infof("Server running on port %d", portOf(addr))
	return nil
}

// startAdminServer serves metrics and health probes on the admin address
func (a *App) startAdminServer() error {
	a.AdminServer = api.NewAdminServer(a.Store, a.Sugar)
	addr, err := a.AdminServer.Listen(a.Config.Admin.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on admin address %s: %w", a.Config.Admin.Addr, err)
	}
	a.adminAddr = addr

	a.serviceWg.Add(1)
	go func() {
		defer a.serviceWg.Done()
		if err := a.AdminServer.Serve(); err != nil {
			a.Sugar.Errorw("Admin server stopped unexpectedly", "error", err)
		}
	}()

	a.Sugar.Infow("Admin server listening", "addr", addr.String())
	return nil
}

// Addr returns the address the API server is bound to, or nil before Start
func (a *App) Addr() net.Addr {
	return a.addr
}

// AdminAddr returns the admin server address, or nil when it is disabled
func (a *App) AdminAddr() net.Addr {
	return a.adminAddr
}

// notifySignals starts capturing SIGINT and SIGTERM. A signal that arrives
// before WaitForShutdown is buffered instead of killing the process.
func (a *App) notifySignals() {
	if a.signals != nil {
		return
	}
	a.signals = make(chan os.Signal, 1)
	signal.Notify(a.signals, os.Interrupt, syscall.SIGTERM)
}

// WaitForShutdown blocks until a shutdown signal is received
func (a *App) WaitForShutdown() {
	a.notifySignals()
	sig := <-a.signals
	a.Sugar.Infow("Shutdown signal received", "signal", sig.String())
}

// Shutdown stops the servers and closes the store. Safe to call more than once.
func (a *App) Shutdown() {
	a.shutdownOnce.Do(a.shutdown)
}

func (a *App) shutdown() {
	a.Sugar.Info("Shutting down...")
	if a.signals != nil {
		signal.Stop(a.signals)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.APIServer.Stop(ctx); err != nil {
		a.Sugar.Errorw("Failed to stop API server", "error", err)
	}
	if a.AdminServer != nil {
		if err := a.AdminServer.Stop(ctx); err != nil {
			a.Sugar.Errorw("Failed to stop admin server", "error", err)
		}
	}

	done := make(chan struct{})
	go func() {
		a.serviceWg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.Sugar.Warn("Server goroutine shutdown timed out")
	}

	// A connection attempt still in flight is abandoned before closing
	if a.cancelConnect != nil {
		a.cancelConnect()
		select {
		case <-a.Store.Done():
		case <-ctx.Done():
		}
	}
	if err := a.Store.Close(ctx); err != nil && !errors.Is(err, context.Canceled) {
		a.Sugar.Errorw("Failed to close MongoDB connection", "error", err)
	}

	a.Sugar.Info("Shutdown complete")
	_ = a.Logger.Sync()
}

func portOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
