// Пакет config — загрузка и валидация конфигурации portal-api
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Бэкенды хранения бинарных вложений.
const (
	StorageLocal = "local"
	StorageS3    = "s3"
)

// Config содержит все параметры конфигурации portal-api.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- Токены ---

	// Секрет HS256 для admin-панели (JWT_SECRET). Может быть пустым:
	// тогда защищённые маршруты отвечают 500, процесс не падает.
	JWTSecret string
	// Секрет HS256 для приложения техников (JWT_SECRET_TECHNICIAN)
	JWTSecretTechnician string
	// Время жизни выдаваемого токена
	TokenTTL time.Duration
	// Допустимое отклонение часов при проверке exp (по умолчанию 0)
	JWTLeeway time.Duration

	// --- Загрузки ---

	// Потолок размера изображения
	MaxImageBytes int64
	// Потолок размера видео
	MaxVideoBytes int64
	// Потолок всего multipart-запроса
	MaxRequestBytes int64
	// Бэкенд хранения: local или s3
	StorageBackend string
	// Каталог для local-бэкенда
	DataDir string

	// --- S3 ---

	S3Bucket    string
	S3Region    string
	S3Endpoint  string
	S3AccessKey string
	S3SecretKey string

	// --- Чат ---

	// URL webhook-а чат-бота (пусто — чат отвечает только fallback-сообщением)
	ChatWebhookURL string
	// Таймаут одного запроса к webhook
	ChatTimeout time.Duration
	// Максимум одновременно хранимых сессий
	ChatSessions int
	// Время жизни транскрипта сессии
	ChatSessionTTL time.Duration

	// --- Уведомления ---

	// URL Redis (пусто — уведомления только логируются)
	RedisURL string
	// Канал публикации push-уведомлений
	RedisChannel string

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Процесс ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
	// Мягкий лимит памяти Go runtime
	MemoryLimit int64
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// PORTAL_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("PORTAL_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("PORTAL_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("PORTAL_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("PORTAL_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("PORTAL_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("PORTAL_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	cfg.DBHost, err = getEnvRequired("PORTAL_DB_HOST")
	if err != nil {
		return nil, err
	}

	cfg.DBPort, err = getEnvInt("PORTAL_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_DB_PORT: %w", err)
	}

	cfg.DBName, err = getEnvRequired("PORTAL_DB_NAME")
	if err != nil {
		return nil, err
	}

	cfg.DBUser, err = getEnvRequired("PORTAL_DB_USER")
	if err != nil {
		return nil, err
	}

	cfg.DBPassword, err = getEnvRequired("PORTAL_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	cfg.DBSSLMode = getEnvDefault("PORTAL_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("PORTAL_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Токены ---

	// JWT_SECRET и JWT_SECRET_TECHNICIAN не обязательны на старте:
	// их отсутствие обрабатывается guard-ом на каждом запросе.
	cfg.JWTSecret = os.Getenv("JWT_SECRET")
	cfg.JWTSecretTechnician = os.Getenv("JWT_SECRET_TECHNICIAN")

	cfg.TokenTTL, err = getEnvDuration("PORTAL_TOKEN_TTL", 8*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_TOKEN_TTL: %w", err)
	}
	if cfg.TokenTTL <= 0 {
		return nil, fmt.Errorf("PORTAL_TOKEN_TTL: значение должно быть положительным")
	}

	cfg.JWTLeeway, err = getEnvDuration("PORTAL_JWT_LEEWAY", 0)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_JWT_LEEWAY: %w", err)
	}
	if cfg.JWTLeeway < 0 {
		return nil, fmt.Errorf("PORTAL_JWT_LEEWAY: значение не может быть отрицательным")
	}

	// --- Загрузки ---

	cfg.MaxImageBytes, err = getEnvInt64("PORTAL_UPLOAD_MAX_IMAGE_BYTES", 20<<20)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_UPLOAD_MAX_IMAGE_BYTES: %w", err)
	}

	cfg.MaxVideoBytes, err = getEnvInt64("PORTAL_UPLOAD_MAX_VIDEO_BYTES", 300<<20)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_UPLOAD_MAX_VIDEO_BYTES: %w", err)
	}

	cfg.MaxRequestBytes, err = getEnvInt64("PORTAL_UPLOAD_MAX_REQUEST_BYTES", 310<<20)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_UPLOAD_MAX_REQUEST_BYTES: %w", err)
	}
	if cfg.MaxImageBytes <= 0 || cfg.MaxVideoBytes <= 0 {
		return nil, fmt.Errorf("PORTAL_UPLOAD_MAX_*_BYTES: лимиты должны быть положительными")
	}
	if cfg.MaxRequestBytes < cfg.MaxVideoBytes || cfg.MaxRequestBytes < cfg.MaxImageBytes {
		return nil, fmt.Errorf("PORTAL_UPLOAD_MAX_REQUEST_BYTES: значение %d меньше лимита вложения", cfg.MaxRequestBytes)
	}

	cfg.StorageBackend = getEnvDefault("PORTAL_STORAGE_BACKEND", StorageLocal)
	switch cfg.StorageBackend {
	case StorageLocal:
		cfg.DataDir = getEnvDefault("PORTAL_DATA_DIR", "/var/lib/portal-api/uploads")
	case StorageS3:
		if err := loadS3(cfg); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("PORTAL_STORAGE_BACKEND: недопустимое значение %q, допустимые: local, s3", cfg.StorageBackend)
	}

	// --- Чат ---

	cfg.ChatWebhookURL = getEnvDefault("PORTAL_CHAT_WEBHOOK_URL", "")
	if cfg.ChatWebhookURL != "" {
		if _, err := url.ParseRequestURI(cfg.ChatWebhookURL); err != nil {
			return nil, fmt.Errorf("PORTAL_CHAT_WEBHOOK_URL: некорректный URL %q", cfg.ChatWebhookURL)
		}
	}

	cfg.ChatTimeout, err = getEnvDuration("PORTAL_CHAT_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_CHAT_TIMEOUT: %w", err)
	}

	cfg.ChatSessions, err = getEnvInt("PORTAL_CHAT_SESSIONS", 10000)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_CHAT_SESSIONS: %w", err)
	}
	if cfg.ChatSessions < 1 || cfg.ChatSessions > 1000000 {
		return nil, fmt.Errorf("PORTAL_CHAT_SESSIONS: значение %d вне допустимого диапазона 1-1000000", cfg.ChatSessions)
	}

	cfg.ChatSessionTTL, err = getEnvDuration("PORTAL_CHAT_SESSION_TTL", 2*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_CHAT_SESSION_TTL: %w", err)
	}

	// --- Уведомления ---

	cfg.RedisURL = getEnvDefault("PORTAL_REDIS_URL", "")
	cfg.RedisChannel = getEnvDefault("PORTAL_REDIS_CHANNEL", "portal:push")

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("PORTAL_DEPHEALTH_GROUP", "portal")
	cfg.DephealthCheckInterval, err = getEnvDuration("PORTAL_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Процесс ---

	cfg.ShutdownTimeout, err = getEnvDuration("PORTAL_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_SHUTDOWN_TIMEOUT: %w", err)
	}

	// PORTAL_MEMORY_LIMIT — соответствует потолку 300 MB, после которого
	// процесс перезапускается менеджером процессов.
	cfg.MemoryLimit, err = getEnvInt64("PORTAL_MEMORY_LIMIT", 300<<20)
	if err != nil {
		return nil, fmt.Errorf("PORTAL_MEMORY_LIMIT: %w", err)
	}

	return cfg, nil
}

// loadS3 загружает параметры S3-бэкенда. Bucket обязателен.
func loadS3(cfg *Config) error {
	var err error
	cfg.S3Bucket, err = getEnvRequired("PORTAL_S3_BUCKET")
	if err != nil {
		return err
	}
	cfg.S3Region = getEnvDefault("PORTAL_S3_REGION", "us-east-1")
	cfg.S3Endpoint = strings.TrimRight(getEnvDefault("PORTAL_S3_ENDPOINT", ""), "/")
	cfg.S3AccessKey = getEnvDefault("PORTAL_S3_ACCESS_KEY", "")
	cfg.S3SecretKey = getEnvDefault("PORTAL_S3_SECRET_KEY", "")
	if (cfg.S3AccessKey == "") != (cfg.S3SecretKey == "") {
		return fmt.Errorf("PORTAL_S3_ACCESS_KEY и PORTAL_S3_SECRET_KEY задаются вместе")
	}
	return nil
}

// AdminSecret возвращает секрет admin-панели.
func (c *Config) AdminSecret() []byte {
	return []byte(c.JWTSecret)
}

// TechnicianSecret возвращает секрет приложения техников.
// Если JWT_SECRET_TECHNICIAN не задан, используется JWT_SECRET.
func (c *Config) TechnicianSecret() []byte {
	if c.JWTSecretTechnician != "" {
		return []byte(c.JWTSecretTechnician)
	}
	return []byte(c.JWTSecret)
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов topologymetrics).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s@%s:%d/%s", c.DBUser, c.DBHost, c.DBPort, c.DBName)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvInt64 понимает как байты, так и суффиксы KiB/MiB/GiB (20MiB).
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	return parseBytes(val)
}

func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseBytes разбирает размер: "1048576", "20MiB", "1GiB".
func parseBytes(s string) (int64, error) {
	s = strings.TrimSpace(s)
	multipliers := []struct {
		suffix string
		mult   int64
	}{
		{"GiB", 1 << 30},
		{"MiB", 1 << 20},
		{"KiB", 1 << 10},
	}
	mult := int64(1)
	for _, m := range multipliers {
		if strings.HasSuffix(s, m.suffix) {
			mult = m.mult
			s = strings.TrimSpace(strings.TrimSuffix(s, m.suffix))
			break
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("некорректный размер: %q", s)
	}
	return n * mult, nil
}

func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
