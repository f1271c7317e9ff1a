// Package server собирает приложение: хранилище, сервисы, маршруты,
// admission control и graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/iudanet/taskkeeper/internal/server/auth"
	"github.com/iudanet/taskkeeper/internal/server/config"
	"github.com/iudanet/taskkeeper/internal/server/handlers"
	"github.com/iudanet/taskkeeper/internal/server/jwt"
	"github.com/iudanet/taskkeeper/internal/server/middleware"
	"github.com/iudanet/taskkeeper/internal/server/ratelimit"
	"github.com/iudanet/taskkeeper/internal/server/storage/sqlite"
)

const shutdownTimeout = 10 * time.Second

// App инкапсулирует зависимости сервера taskkeeper
type App struct {
	cfg     *config.Config
	logger  *slog.Logger
	version string

	storage    *sqlite.Storage
	jwtService *jwt.Service
	gate       *middleware.AdmissionGate
}

// NewApp создает приложение и инициализирует хранилище
func NewApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, version string) (*App, error) {
	store, err := sqlite.New(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("storage init error: %w", err)
	}

	app := &App{
		cfg:        cfg,
		logger:     logger,
		version:    version,
		storage:    store,
		jwtService: jwt.NewService(cfg.JWTSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL),
		gate:       middleware.NewAdmissionGate(logger, ratelimit.NewMemoryStore()),
	}
	app.configureGate()

	return app, nil
}

// configureGate заполняет таблицу политик admission control.
// Таблица фиксируется на старте, на лету политики не меняются
func (a *App) configureGate() {
	authPolicy := middleware.Policy{Limit: a.cfg.AuthRateLimit, Window: a.cfg.AuthRateWindow}
	refreshPolicy := middleware.Policy{Limit: a.cfg.RefreshRateLimit, Window: a.cfg.AuthRateWindow}
	taskPolicy := middleware.Policy{Limit: a.cfg.TaskRateLimit, Window: a.cfg.TaskRateWindow, PerUser: true}

	// Неаутентифицированные endpoints ограничиваются по IP
	a.gate.SetPolicy("POST /api/v1/auth/register", authPolicy)
	a.gate.SetPolicy("POST /api/v1/auth/login", authPolicy)
	a.gate.SetPolicy("POST /api/v1/auth/refresh", refreshPolicy)
	a.gate.SetPolicy("POST /api/v1/auth/logout", refreshPolicy)

	// Аутентифицированные endpoints ограничиваются по пользователю
	a.gate.SetPolicy("GET /api/v1/auth/me", taskPolicy)
	a.gate.SetPolicy("GET /api/v1/tasks", taskPolicy)
	a.gate.SetPolicy("POST /api/v1/tasks", taskPolicy)
	a.gate.SetPolicy("GET /api/v1/tasks/{id}", taskPolicy)
	a.gate.SetPolicy("PUT /api/v1/tasks/{id}", taskPolicy)
	a.gate.SetPolicy("DELETE /api/v1/tasks/{id}", taskPolicy)
}

// Routes собирает маршруты и цепочки middleware
func (a *App) Routes() http.Handler {
	authService := auth.NewService(a.logger, a.storage, a.storage, a.jwtService)
	authHandler := handlers.NewAuthHandler(a.logger, authService)
	taskHandler := handlers.NewTaskHandler(a.logger, a.storage)
	healthHandler := handlers.NewHealthHandler(a.logger, a.storage.DB(), a.version)

	authMw := middleware.AuthMiddleware(a.logger, a.jwtService)

	mux := http.NewServeMux()

	// public регистрирует маршрут только с admission gate
	public := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, a.gate.Middleware(pattern)(h))
	}
	// protected дополнительно требует access token.
	// Auth идет снаружи gate, чтобы ключ лимита был per-user
	protected := func(pattern string, h http.HandlerFunc) {
		mux.Handle(pattern, authMw(a.gate.Middleware(pattern)(h)))
	}

	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	public("POST /api/v1/auth/register", authHandler.Register)
	public("POST /api/v1/auth/login", authHandler.Login)
	public("POST /api/v1/auth/refresh", authHandler.Refresh)
	public("POST /api/v1/auth/logout", authHandler.Logout)

	protected("GET /api/v1/auth/me", authHandler.Me)
	protected("GET /api/v1/tasks", taskHandler.List)
	protected("POST /api/v1/tasks", taskHandler.Create)
	protected("GET /api/v1/tasks/{id}", taskHandler.Get)
	protected("PUT /api/v1/tasks/{id}", taskHandler.Update)
	protected("DELETE /api/v1/tasks/{id}", taskHandler.Delete)

	// Внешние слои: recovery снаружи, логирование всех запросов кроме health
	chain := middleware.LoggingWithSkip(a.logger, []string{"/api/v1/health"})(mux)
	chain = middleware.RecoveryMiddleware(a.logger)(chain)

	return chain
}

// Run запускает HTTP сервер и блокируется до SIGINT/SIGTERM.
// После сигнала сервер дорабатывает открытые запросы в пределах shutdownTimeout
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              a.cfg.Address,
		Handler:           a.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			slog.String("address", a.cfg.Address),
			slog.String("version", a.version))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown error: %w", err)
	}

	if err := a.storage.Close(); err != nil {
		return fmt.Errorf("storage close error: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}
