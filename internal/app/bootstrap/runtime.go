package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	cacheadapter "github.com/latchkey-io/latchkey/internal/adapters/cache"
	httpadapter "github.com/latchkey-io/latchkey/internal/adapters/http"
	"github.com/latchkey-io/latchkey/internal/adapters/memory"
	"github.com/latchkey-io/latchkey/internal/adapters/postgres"
	"github.com/latchkey-io/latchkey/internal/adapters/security"
	"github.com/latchkey-io/latchkey/internal/application"
	"github.com/latchkey-io/latchkey/internal/auth"
	"github.com/latchkey-io/latchkey/internal/ports"
)

// Runtime is the wired process: configuration resolved, stores
// connected, strategy instantiated, routes mounted. Strategy creation
// happens exactly once, here; an unknown AUTH_TYPE aborts construction
// so the process never serves with a strategy the operator did not
// choose.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	strategy   auth.Strategy
	service    *application.Service
	httpServer *http.Server
	cleanupFn  func(context.Context)
}

// NewRuntime loads configuration and composes the process.
func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)
	logger.Info("bootstrapping authentication service",
		"service_id", cfg.ServiceID,
		"http_port", cfg.HTTPPort,
		"auth_type", cfg.AuthType,
	)

	var (
		users    ports.UserLookup
		writer   ports.UserWriter
		sessions ports.SessionStore
		durable  ports.SessionStore
		cleanup  = func(context.Context) {}
	)

	if cfg.DatabaseURL != "" {
		pool, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		sqlDB, err := pool.DB()
		if err != nil {
			return nil, fmt.Errorf("gorm sql db: %w", err)
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		userStore := postgres.NewUserStore(pool)
		users = userStore
		writer = userStore
		durable = postgres.NewSessionStore(pool)
		cleanup = func(context.Context) { _ = sqlDB.Close() }
	} else {
		// No database configured: serve from an in-memory directory.
		// Fine for local runs, useless for session_db_auth.
		dir := memory.NewUserDirectory()
		users = dir
		writer = dir
	}

	if cfg.AuthType == auth.TypeSessionDB && cfg.SessionStore == StoreRedis {
		client, err := cacheadapter.Connect(ctx, cfg.RedisURL)
		if err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		if err := client.Ping(ctx).Err(); err != nil {
			cleanup(ctx)
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		durable = cacheadapter.NewSessionStore(client)
		pgCleanup := cleanup
		cleanup = func(ctx context.Context) {
			_ = client.Close()
			pgCleanup(ctx)
		}
	}

	sessions = memory.NewSessionStore()

	strategyCfg := auth.Config{
		CookieName:      cfg.SessionName,
		SessionDuration: cfg.SessionDuration,
	}
	strategy, err := auth.NewRegistry().Create(cfg.AuthType, strategyCfg, auth.Collaborators{
		Users:           users,
		Verifier:        security.NewBcryptHasher(cfg.BcryptCost),
		Sessions:        sessions,
		DurableSessions: durable,
	})
	if err != nil {
		cleanup(ctx)
		return nil, fmt.Errorf("create auth strategy: %w", err)
	}

	manager, _ := strategy.(auth.SessionManager)
	activeSessions := sessions
	if cfg.AuthType == auth.TypeSessionDB {
		activeSessions = durable
	}

	svc := application.NewService(application.Dependencies{
		Users:    users,
		Writer:   writer,
		Verifier: security.NewBcryptHasher(cfg.BcryptCost),
		Sessions: activeSessions,
		Manager:  manager,
		Logger:   logger,
	})

	excluded := cfg.ExcludedPaths
	if len(excluded) == 0 {
		excluded = httpadapter.DefaultExcludedPaths
	}

	handler := httpadapter.NewHandler(svc, strategy, cfg.SessionName, cfg.SessionDuration)
	guard := httpadapter.NewAuthMiddleware(strategy, excluded)
	router := httpadapter.NewRouter(handler, guard)

	return &Runtime{
		cfg:      cfg,
		logger:   logger,
		strategy: strategy,
		service:  svc,
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
			Handler:           router,
			ReadHeaderTimeout: 5 * time.Second,
		},
		cleanupFn: cleanup,
	}, nil
}

// Service exposes the use-case layer to CLI commands.
func (r *Runtime) Service() *application.Service { return r.service }

// Config returns the resolved configuration.
func (r *Runtime) Config() Config { return r.cfg }

// Run serves HTTP until the context is canceled or a signal arrives,
// then shuts down gracefully.
func (r *Runtime) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("http server started",
			"addr", r.httpServer.Addr,
			"auth_type", r.strategy.Name(),
		)
		if err := r.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case err := <-errCh:
		r.logger.Error("server failure", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
	defer cancel()
	_ = r.httpServer.Shutdown(shutdownCtx)
	r.cleanupFn(shutdownCtx)
	return nil
}

// Close releases connections without serving. CLI commands that only
// need the service call this when done.
func (r *Runtime) Close(ctx context.Context) {
	r.cleanupFn(ctx)
}
