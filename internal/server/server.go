// Пакет server — HTTP-сервер portal-api с graceful shutdown.
// Без TLS — TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/infraservicos/portal-api/internal/api/handlers"
	"github.com/infraservicos/portal-api/internal/api/middleware"
	"github.com/infraservicos/portal-api/internal/config"
	"github.com/infraservicos/portal-api/internal/i18n"
)

// Префиксы монтирования guard-ов.
const (
	AdminPrefix      = "/api/admin"
	TechnicianPrefix = "/api/technician"
)

// Guards — Bearer guard-ы двух клиентских приложений.
type Guards struct {
	Admin      *middleware.BearerGuard
	Technician *middleware.BearerGuard
}

// Server — HTTP-сервер portal-api.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
func New(cfg *config.Config, logger *slog.Logger, handler *handlers.APIHandler, guards Guards) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(logger, handler, guards),
		ReadTimeout:  30 * time.Second,
		// Загрузка видео до MaxRequestBytes идёт дольше минуты
		WriteTimeout: 10 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// NewRouter собирает chi-роутер всех маршрутов.
//
// Guard монтируется на весь префикс приложения; POST {prefix}/auth/login
// guard пропускает сам. Health, metrics, OpenAPI и чат публичные.
func NewRouter(logger *slog.Logger, h *handlers.APIHandler, guards Guards) http.Handler {
	router := chi.NewRouter()

	// Глобальные middleware (применяются ко ВСЕМ маршрутам)
	router.Use(middleware.MetricsMiddleware())
	router.Use(middleware.RequestLogger(logger))
	router.Use(i18n.Middleware())

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)
	router.Get("/api/openapi.yaml", h.GetOpenAPI)

	router.Route(AdminPrefix, func(r chi.Router) {
		r.Use(guards.Admin.Middleware())

		r.Post("/auth/login", h.AdminLogin)
		r.Get("/auth/me", h.Me)

		r.Get("/uploads", h.ListUploads)
		r.Get("/uploads/{id}", h.GetUpload)
		r.Get("/uploads/{id}/content", h.GetUploadContent)
		r.Delete("/uploads/{id}", h.DeleteUpload)

		r.Get("/users", h.ListUsers)
		r.Post("/users", h.CreateUser)
	})

	router.Route(TechnicianPrefix, func(r chi.Router) {
		r.Use(guards.Technician.Middleware())

		r.Post("/auth/login", h.TechnicianLogin)
		r.Get("/auth/me", h.Me)

		r.Get("/uploads", h.ListOwnUploads)
		r.Post("/uploads", h.CreateUpload)
		r.Post("/uploads/validate", h.ValidateUpload)
	})

	router.Route("/api/chat", func(r chi.Router) {
		r.Post("/messages", h.SendChatMessage)
		r.Get("/sessions/{id}", h.GetChatTranscript)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	// Канал для ошибок сервера
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	// Ожидание сигнала завершения
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
