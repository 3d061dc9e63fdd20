package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"

	"mentorhub/internal/api"
	"mentorhub/internal/client"
	"mentorhub/internal/config"
	"mentorhub/internal/dashboard"
	"mentorhub/internal/store"
	"mentorhub/internal/websocket"
	"mentorhub/pkg/types"
)

// Application coordinates the gateway components.
// Clean dependency injection pattern with proper initialization order
type Application struct {
	config     *config.Config
	log        *zap.Logger
	store      *store.Store
	client     *client.Client
	registry   *websocket.Registry
	apiServer  *api.Server
	httpServer *http.Server
	listener   net.Listener
}

// NewApplication creates a new application instance with all components initialized
// Component initialization follows strict dependency order:
// Store → Client → Registry → WebSocket → API → HTTP
func NewApplication(cfg *config.Config, log *zap.Logger) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = zap.NewNop()
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// STEP 1: Open the local store (integrity log)
	st, err := OpenStore(cfg, log)
	if err != nil {
		return nil, err
	}

	// STEP 2: Base backend client; every request derives a token-bound copy
	base, err := NewClient(cfg, "", log)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	// STEP 3: Refresh-hint registry and websocket handler
	registry := websocket.NewRegistry(log)
	wsHandler := websocket.NewHandler(registry,
		websocket.AuthenticatorFunc(func(ctx context.Context, token string) (*types.Account, error) {
			return base.WithToken(token).Me(ctx)
		}),
		cfg.WebSocket, cfg.HTTP.AllowedOrigins, log)

	// STEP 4: API gateway
	apiServer := api.NewServer(api.Options{
		Services: func(token string) *dashboard.Service {
			return dashboard.NewService(base.WithToken(token),
				dashboard.WithWarningRecorder(st),
				dashboard.WithNotifier(registry),
				dashboard.WithLogger(log))
		},
		Store:              st,
		Registry:           registry,
		WebSocket:          wsHandler,
		AllowedOrigins:     cfg.HTTP.AllowedOrigins,
		MutationsPerMinute: cfg.HTTP.MutationsPerMinute,
		Logger:             log,
	})

	httpServer := &http.Server{
		Addr:         cfg.HTTP.Addr(),
		Handler:      apiServer,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return &Application{
		config:     cfg,
		log:        log,
		store:      st,
		client:     base,
		registry:   registry,
		apiServer:  apiServer,
		httpServer: httpServer,
	}, nil
}

// OpenStore opens the local SQLite store described by cfg.
func OpenStore(cfg *config.Config, log *zap.Logger) (*store.Store, error) {
	storeConfig := store.DefaultConfig()
	storeConfig.Path = cfg.Store.Path
	storeConfig.ConnMaxLifetime = cfg.Store.Timeout
	storeConfig.ConnMaxIdleTime = cfg.Store.Timeout / 3
	storeConfig.WriteTimeout = cfg.Store.Timeout

	st, err := store.Open(storeConfig, log)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

// NewClient builds a backend client for cfg authenticated with token.
func NewClient(cfg *config.Config, token string, log *zap.Logger) (*client.Client, error) {
	c, err := client.New(client.Options{
		BaseURL: cfg.API.BaseURL,
		Token:   token,
		Timeout: cfg.API.Timeout,
		Logger:  log,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}
	return c, nil
}

// Start binds the listener and serves in the background.
func (app *Application) Start(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	listener, err := net.Listen("tcp", app.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", app.httpServer.Addr, err)
	}
	app.listener = listener

	go func() {
		if err := app.httpServer.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			app.log.Error("HTTP server error", zap.Error(err))
		}
	}()

	app.log.Info("MentorHub gateway started",
		zap.String("addr", app.GetAddr()),
		zap.String("backend", app.client.BaseURL()))
	return nil
}

// Stop gracefully shuts down the application
// Reverse dependency order: HTTP → WebSocket → Store
func (app *Application) Stop(ctx context.Context) error {
	app.log.Info("Shutting down MentorHub gateway")

	var errs []error
	if err := app.httpServer.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("HTTP server shutdown: %w", err))
	}

	// hijacked websocket connections are not tracked by Shutdown
	app.registry.CloseAll()

	if err := app.store.Close(); err != nil {
		errs = append(errs, fmt.Errorf("store shutdown: %w", err))
	}

	app.log.Info("MentorHub gateway shutdown complete")
	return errors.Join(errs...)
}

// GetAddr returns the bound address once started, the configured one before.
func (app *Application) GetAddr() string {
	if app.listener != nil {
		return app.listener.Addr().String()
	}
	return app.httpServer.Addr
}

// ShutdownTimeout bounds graceful shutdown.
const ShutdownTimeout = 10 * time.Second
