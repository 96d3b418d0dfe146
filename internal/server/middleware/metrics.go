package middleware

import (
	"net/http"
	"strings"
	"time"
)

// RequestObserver принимает результат каждого HTTP запроса
type RequestObserver interface {
	ObserveRequest(method, path string, status int, elapsed time.Duration)
}

// MetricsMiddleware считает запросы и их длительность.
// Метка пути берется из шаблона маршрута ServeMux (r.Pattern заполняется
// mux'ом на том же *http.Request), сырой URL в метки не попадает.
func MetricsMiddleware(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrapResponseWriter(w)

			next.ServeHTTP(wrapped, r)

			obs.ObserveRequest(r.Method, routeLabel(r.Pattern), wrapped.statusCode, time.Since(start))
		})
	}
}

// routeLabel "POST /api/v1/auth/login" -> "/api/v1/auth/login"
func routeLabel(pattern string) string {
	if pattern == "" {
		return "unmatched"
	}
	if _, path, ok := strings.Cut(pattern, " "); ok {
		return path
	}
	return pattern
}
