package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNormalizePath(t *testing.T) {
	tests := []struct {
		path string
		want string
	}{
		{"/health/live", "/health/live"},
		{"/metrics", "/metrics"},
		{"/api/openapi.yaml", "/api/openapi.yaml"},
		{"/api/admin/uploads", "/api/admin/uploads"},
		{"/api/admin/uploads/550e8400-e29b-41d4-a716-446655440000", "/api/admin/uploads/{id}"},
		{"/api/admin/uploads/550e8400-e29b-41d4-a716-446655440000/content", "/api/admin/uploads/{id}/content"},
		{"/api/chat/sessions/550e8400-e29b-41d4-a716-446655440000", "/api/chat/sessions/{id}"},
		{"/api/chat/sessions/session_1712345678_k3j9x", "/api/chat/sessions/{id}"},
		{"/api/technician/uploads/validate", "/api/technician/uploads/validate"},
		{"/wp-login.php", "other"},
		{"/api/admin/uploads/not-a-uuid", "/api/admin/uploads/not-a-uuid"},
	}

	for _, tt := range tests {
		if got := normalizePath(tt.path); got != tt.want {
			t.Errorf("normalizePath(%q) = %q, ожидается %q", tt.path, got, tt.want)
		}
	}
}

func TestMetricsMiddleware_PassesStatus(t *testing.T) {
	handler := MetricsMiddleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chat/messages", nil))

	if rec.Code != http.StatusTeapot {
		t.Errorf("ожидался статус 418, получен %d", rec.Code)
	}
}
