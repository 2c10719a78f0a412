// Пакет server — HTTP-сервер Member Gateway с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на ingress.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/devicehub/member-gateway/internal/api/handlers"
	"github.com/devicehub/member-gateway/internal/api/middleware"
	"github.com/devicehub/member-gateway/internal/config"
)

// Публичные префиксы, не требующие JWT.
var publicPrefixes = []string{"/health", "/metrics"}

// Доступ к API: чтение — любой участник или SA с updates:read/updates:write,
// изменение — участник или SA с updates:write.
var (
	memberRoles = []string{middleware.RoleMember, middleware.RoleAdmin}
	readScopes  = []string{middleware.ScopeUpdatesRead, middleware.ScopeUpdatesWrite}
	writeScopes = []string{middleware.ScopeUpdatesWrite}
)

// RouterOptions — middleware, подключаемые к router.
type RouterOptions struct {
	Logger *slog.Logger
	// Auth — JWT middleware (обязателен)
	Auth func(http.Handler) http.Handler
	// Validator — проверка запроса по OpenAPI-контракту (может быть nil)
	Validator func(http.Handler) http.Handler
}

// NewRouter собирает chi-router: request id, логирование, метрики,
// JWT (кроме health/metrics), проверка ролей и валидация по контракту.
func NewRouter(h *handlers.APIHandler, opts RouterOptions) http.Handler {
	router := chi.NewRouter()

	router.Use(chimw.RequestID)
	router.Use(middleware.RequestLogger(opts.Logger))
	router.Use(middleware.MetricsMiddleware())
	router.Use(JWTAuthWithExclusions(opts.Auth, publicPrefixes...))

	router.Get("/health/live", h.HealthLive)
	router.Get("/health/ready", h.HealthReady)
	router.Get("/metrics", h.GetMetrics)

	router.Route("/api/v1", func(r chi.Router) {
		read := r.With(guard(memberRoles, readScopes, opts.Validator)...)
		write := r.With(guard(memberRoles, writeScopes, opts.Validator)...)

		read.Get("/updates", h.ListUpdates)
		write.Post("/updates", h.CreateUpdate)
		read.Get("/updates/statuses", h.ListStatusCompatibilities)
		read.Get("/updates/{updateId}", h.GetUpdate)
		write.Put("/updates/{updateId}/status", h.ChangeUpdateStatus)
		write.Delete("/updates/{updateId}", h.DeleteUpdate)

		read.Get("/packages", h.ListPackages)
		write.Post("/packages", h.UploadPackage)
		read.Get("/packages/{packageId}", h.GetPackage)
		write.Delete("/packages/{packageId}", h.DeletePackage)

		read.Get("/segments", h.ListSegments)
		write.Post("/segments", h.CreateSegment)
		read.Get("/segments/{segmentId}", h.GetSegment)
		write.Delete("/segments/{segmentId}", h.DeleteSegment)
	})

	return router
}

// guard — проверка ролей, затем валидация по контракту: 403 раньше 400.
func guard(roles, scopes []string, validator func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	chain := []func(http.Handler) http.Handler{middleware.RequireRoleOrScope(roles, scopes)}
	if validator != nil {
		chain = append(chain, validator)
	}
	return chain
}

// Server — HTTP-сервер Member Gateway.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер поверх готового handler (см. NewRouter).
func New(cfg *config.Config, logger *slog.Logger, handler http.Handler) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger,
		cfg:        cfg,
	}
}

// JWTAuthWithExclusions оборачивает middleware, пропуская указанные пути.
// Запросы к путям, начинающимся с любого из excludePrefixes, проходят без middleware.
func JWTAuthWithExclusions(mw func(http.Handler) http.Handler, excludePrefixes ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		protected := mw(next)
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, prefix := range excludePrefixes {
				if strings.HasPrefix(r.URL.Path, prefix) {
					next.ServeHTTP(w, r)
					return
				}
			}
			protected.ServeHTTP(w, r)
		})
	}
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
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

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
