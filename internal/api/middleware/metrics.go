// metrics.go — Prometheus HTTP метрики portal-api.
// Регистрирует метрики: portal_http_requests_total, portal_http_request_duration_seconds.
package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP метрики
var (
	// httpRequestsTotal — общее количество HTTP-запросов.
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_http_requests_total",
			Help: "Общее количество HTTP-запросов к portal-api",
		},
		[]string{"method", "path", "status"},
	)

	// httpRequestDuration — гистограмма длительности HTTP-запросов.
	// Загрузка видео идёт минутами, поэтому верхние бакеты шире DefBuckets.
	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_http_request_duration_seconds",
			Help:    "Длительность HTTP-запросов к portal-api в секундах",
			Buckets: append(prometheus.DefBuckets, 30, 60, 120, 300),
		},
		[]string{"method", "path"},
	)
)

// MetricsMiddleware возвращает HTTP middleware для сбора Prometheus метрик.
func MetricsMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

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

// knownPrefixes — корни маршрутов API. Запросы вне них сводятся к одному лейблу,
// чтобы сканеры не раздували кардинальность.
var knownPrefixes = []string{
	"/api/admin/",
	"/api/technician/",
	"/api/chat/",
}

const chatSessionsPrefix = "/api/chat/sessions/"

// normalizePath заменяет UUID-сегменты пути на {id}.
// /api/admin/uploads/a1b2c3d4-.../content → /api/admin/uploads/{id}/content
func normalizePath(path string) string {
	switch path {
	case "/health/live", "/health/ready", "/metrics", "/api/openapi.yaml":
		return path
	}

	known := false
	for _, p := range knownPrefixes {
		if strings.HasPrefix(path, p) {
			known = true
			break
		}
	}
	if !known {
		return "other"
	}
	// Идентификатор сессии чата задаёт клиент
	if strings.HasPrefix(path, chatSessionsPrefix) {
		return chatSessionsPrefix + "{id}"
	}

	segments := strings.Split(path, "/")
	for i, seg := range segments {
		if len(seg) == 36 {
			if _, err := uuid.Parse(seg); err == nil {
				segments[i] = "{id}"
			}
		}
	}
	return strings.Join(segments, "/")
}
