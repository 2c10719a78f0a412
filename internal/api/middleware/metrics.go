// metrics.go — Prometheus HTTP метрики для Member Gateway.
// Регистрирует метрики: mg_http_requests_total, mg_http_request_duration_seconds.
// Нормализация путей предотвращает взрывной рост кардинальности.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики Member Gateway
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mg_http_requests_total",
			Help: "Общее количество HTTP-запросов к Member Gateway",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mg_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к Member Gateway в секундах",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
// Записывает количество запросов и длительность для каждого endpoint.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			// Нормализуем путь для лейблов метрик
			// (заменяем UUID на {id} для предотвращения кардинальности)
			normalizedPath := normalizePath(r.URL.Path)

			wrapped := newMetricsResponseWriter(w)
			next.ServeHTTP(wrapped, r)

			duration := time.Since(start).Seconds()
			status := strconv.Itoa(wrapped.statusCode)

			httpRequestsTotal.WithLabelValues(r.Method, normalizedPath, status).Inc()
			httpRequestDuration.WithLabelValues(r.Method, normalizedPath).Observe(duration)
		})
	}
}

// metricsResponseWriter — обёртка для перехвата статус-кода.
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode int
}

func newMetricsResponseWriter(w http.ResponseWriter) *metricsResponseWriter {
	return &metricsResponseWriter{ResponseWriter: w, statusCode: http.StatusOK}
}

func (rw *metricsResponseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Unwrap позволяет http.ResponseController получить доступ к оригинальному ResponseWriter.
func (rw *metricsResponseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// collections — коллекции API, у которых второй сегмент пути — идентификатор.
var collections = map[string]bool{
	"updates":  true,
	"packages": true,
	"segments": true,
}

// normalizePath заменяет идентификаторы в пути на {id} для предотвращения
// взрывного роста кардинальности метрик.
// /api/v1/updates/a1b2c3d4-... → /api/v1/updates/{id}
// /api/v1/updates/a1b2c3d4-.../status → /api/v1/updates/{id}/status
// /api/v1/updates/statuses остаётся как есть.
func normalizePath(path string) string {
	// Статические пути — возвращаем как есть
	switch path {
	case "/health/live", "/health/ready", "/metrics",
		"/api/v1/updates", "/api/v1/updates/statuses",
		"/api/v1/packages", "/api/v1/segments":
		return path
	}

	const apiPrefix = "/api/v1/"
	rest, ok := strings.CutPrefix(path, apiPrefix)
	if !ok {
		return "other"
	}

	parts := strings.Split(rest, "/")
	if !collections[parts[0]] || len(parts) < 2 || parts[1] == "" {
		return "other"
	}

	switch {
	case len(parts) == 2:
		return apiPrefix + parts[0] + "/{id}"
	case len(parts) == 3 && parts[0] == "updates" && parts[2] == "status":
		return "/api/v1/updates/{id}/status"
	default:
		return "other"
	}
}
