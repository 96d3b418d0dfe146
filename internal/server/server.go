// Package server собирает HTTP API: маршруты, цепочку middleware и
// жизненный цикл http.Server с graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/iudanet/gophgate/internal/server/handlers"
	"github.com/iudanet/gophgate/internal/server/metrics"
	"github.com/iudanet/gophgate/internal/server/middleware"
)

const shutdownTimeout = 10 * time.Second

// Sessions сценарии сессии плюс строгая проверка access токена для logout
type Sessions interface {
	handlers.SessionService
	middleware.Authenticator
}

// Options параметры HTTP слоя
type Options struct {
	Metrics    *metrics.Metrics // nil отключает /metrics и метрики запросов
	Addr       string
	Version    string
	RateLimit  int
	RateWindow time.Duration
}

// Server HTTP сервер gophgate
type Server struct {
	logger  *slog.Logger
	limiter *middleware.RateLimiter
	handler http.Handler
	opts    Options
}

// New создает сервер и регистрирует маршруты
func New(opts Options, logger *slog.Logger, sessions Sessions, deps ...handlers.Pinger) *Server {
	authHandler := handlers.NewAuthHandler(logger, sessions)
	healthHandler := handlers.NewHealthHandler(logger, opts.Version, deps...)
	requireAuth := middleware.AuthMiddleware(logger, sessions)

	mux := http.NewServeMux()

	// Публичные маршруты
	mux.HandleFunc("POST /api/v1/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/v1/auth/login/token", authHandler.LoginWithToken)
	mux.HandleFunc("POST /api/v1/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/v1/auth/token/temporary", authHandler.TemporaryToken)
	mux.HandleFunc("POST /api/v1/auth/token/refresh", authHandler.Refresh)
	mux.HandleFunc("POST /api/v1/auth/token/validate", authHandler.Validate)
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)

	// Требуют access токен
	mux.Handle("POST /api/v1/auth/logout", requireAuth(http.HandlerFunc(authHandler.Logout)))

	if opts.Metrics != nil {
		mux.Handle("GET /metrics", opts.Metrics.Handler())
	}

	rateLimit, limiter := middleware.RateLimitMiddleware(opts.RateLimit, opts.RateWindow, logger)

	// Порядок: recovery -> logging -> metrics -> rate limit -> mux
	var h http.Handler = rateLimit(mux)
	if opts.Metrics != nil {
		h = middleware.MetricsMiddleware(opts.Metrics)(h)
	}
	h = middleware.LoggingWithSkip(logger, []string{"/metrics", "/api/v1/health"})(h)
	h = middleware.RecoveryMiddleware(logger)(h)

	return &Server{
		logger:  logger,
		limiter: limiter,
		handler: h,
		opts:    opts,
	}
}

// Handler корневой handler со всей цепочкой middleware
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run слушает opts.Addr и блокируется до отмены ctx или ошибки сервера
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve обслуживает ln до отмены ctx, затем корректно завершает активные запросы
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	defer s.limiter.Stop()

	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.logger.InfoContext(ctx, "Server starting", slog.String("addr", ln.Addr().String()))

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("Shutting down server")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	s.logger.Info("Server stopped")
	return nil
}

// Close освобождает ресурсы middleware, если Serve не вызывался
func (s *Server) Close() {
	s.limiter.Stop()
}
