package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/infraservicos/portal-api/internal/domain/rbac"
)

// decodeLogLine разбирает единственную JSON-строку лога.
func decodeLogLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("лог не JSON: %v (%s)", err, buf.String())
	}
	return entry
}

func TestRequestLogger_LevelByStatus(t *testing.T) {
	tests := []struct {
		status int
		level  string
	}{
		{http.StatusOK, "INFO"},
		{http.StatusNotFound, "WARN"},
		{http.StatusInternalServerError, "ERROR"},
	}

	for _, tt := range tests {
		var buf bytes.Buffer
		logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

		handler := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tt.status)
			_, _ = w.Write([]byte("ok"))
		}))

		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/chat/messages", nil))

		entry := decodeLogLine(t, &buf)
		if entry["level"] != tt.level {
			t.Errorf("статус %d: ожидался уровень %s, получен %v", tt.status, tt.level, entry["level"])
		}
		if entry["bytes"] != float64(2) {
			t.Errorf("ожидался bytes=2, получен %v", entry["bytes"])
		}
		if _, ok := entry["principal"]; ok {
			t.Error("principal не должен логироваться для публичного маршрута")
		}
	}
}

func TestRequestLogger_Principal(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	guard := newAdminGuard(testAdminSecret)
	handler := RequestLogger(logger)(guard.Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})))

	claims := jwt.MapClaims{
		"sub": "admin-42",
		"exp": jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	req := httptest.NewRequest(http.MethodGet, "/api/admin/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.SigningMethodHS256, testAdminSecret, claims))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	entry := decodeLogLine(t, &buf)
	if entry["principal"] != "admin-42" {
		t.Errorf("ожидался principal=admin-42, получен %v", entry["principal"])
	}
	if entry["role"] != rbac.RoleAdmin {
		t.Errorf("ожидалась role=admin, получена %v", entry["role"])
	}
}
