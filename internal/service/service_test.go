package service

import (
	"log/slog"
	"os"
	"testing"

	"github.com/infraservicos/portal-api/internal/i18n"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// testBundle загружает встроенные каталоги переводов.
func testBundle(t *testing.T) *i18n.Bundle {
	t.Helper()
	b := i18n.NewBundle(testLogger())
	if err := i18n.LoadFromEmbedFS(b, testLogger()); err != nil {
		t.Fatalf("не удалось загрузить каталоги: %v", err)
	}
	return b
}
