// Точка входа portal-api — бэкенд сайта InfraServiços.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// выбирает хранилище вложений и канал уведомлений, создаёт сервисы,
// guard-ы admin-панели и приложения техников, запускает topologymetrics
// и HTTP-сервер с graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"
	"runtime/debug"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/infraservicos/portal-api/internal/api/contract"
	"github.com/infraservicos/portal-api/internal/api/handlers"
	"github.com/infraservicos/portal-api/internal/api/middleware"
	"github.com/infraservicos/portal-api/internal/auth"
	"github.com/infraservicos/portal-api/internal/chatclient"
	"github.com/infraservicos/portal-api/internal/config"
	"github.com/infraservicos/portal-api/internal/database"
	"github.com/infraservicos/portal-api/internal/domain/draft"
	"github.com/infraservicos/portal-api/internal/domain/rbac"
	"github.com/infraservicos/portal-api/internal/i18n"
	"github.com/infraservicos/portal-api/internal/notify"
	"github.com/infraservicos/portal-api/internal/repository"
	"github.com/infraservicos/portal-api/internal/server"
	"github.com/infraservicos/portal-api/internal/service"
	"github.com/infraservicos/portal-api/internal/storage"
	"github.com/infraservicos/portal-api/internal/storage/filestore"
	"github.com/infraservicos/portal-api/internal/storage/objectstore"
)

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("portal-api запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("storage_backend", cfg.StorageBackend),
	)

	debug.SetMemoryLimit(cfg.MemoryLimit)

	if cfg.JWTSecret == "" {
		logger.Warn("JWT_SECRET не задан, защищённые маршруты будут отвечать 500")
	}

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	readiness := map[string]handlers.ReadinessChecker{
		"postgresql": database.NewReadinessChecker(pool),
	}

	// 5. Хранилище вложений
	var store storage.ObjectStore
	switch cfg.StorageBackend {
	case config.StorageS3:
		store, err = objectstore.New(ctx, objectstore.Config{
			Bucket:    cfg.S3Bucket,
			Region:    cfg.S3Region,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		}, logger)
	default:
		store, err = filestore.New(cfg.DataDir)
	}
	if err != nil {
		logger.Error("Ошибка инициализации хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 6. Канал push-уведомлений
	var notifier notify.Notifier = notify.NewLogNotifier(logger)
	if cfg.RedisURL != "" {
		redisNotifier, redisErr := notify.NewRedisNotifier(ctx, cfg.RedisURL, cfg.RedisChannel, logger)
		if redisErr != nil {
			logger.Error("Ошибка подключения к Redis", slog.String("error", redisErr.Error()))
			os.Exit(1)
		}
		defer redisNotifier.Close()
		notifier = redisNotifier
		readiness["redis"] = redisNotifier
		logger.Info("Уведомления публикуются в Redis", slog.String("channel", cfg.RedisChannel))
	} else {
		logger.Info("PORTAL_REDIS_URL не задан, уведомления только логируются")
	}

	// 7. Каталоги переводов
	bundle := i18n.Init(logger)
	if err := i18n.LoadFromEmbedFS(bundle, logger); err != nil {
		logger.Error("Ошибка загрузки переводов", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 8. OpenAPI-контракт
	apiContract, err := contract.Load(ctx)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 9. Services
	issuers := map[string]*auth.Issuer{
		rbac.RoleAdmin:      auth.NewIssuer(cfg.AdminSecret, cfg.TokenTTL),
		rbac.RoleTechnician: auth.NewIssuer(cfg.TechnicianSecret, cfg.TokenTTL),
	}
	authSvc := service.NewAuthService(repository.NewUserRepository(pool), issuers, logger)

	uploadSvc := service.NewUploadService(pool, store, notifier, bundle,
		draft.Limits{MaxImageBytes: cfg.MaxImageBytes, MaxVideoBytes: cfg.MaxVideoBytes},
		logger,
	)

	chatClient := chatclient.New(cfg.ChatWebhookURL, cfg.ChatTimeout, logger)
	if !chatClient.Configured() {
		logger.Warn("PORTAL_CHAT_WEBHOOK_URL не задан, чат отвечает только fallback-сообщением")
	}
	chatSvc := service.NewChatService(chatClient, bundle, cfg.ChatSessions, cfg.ChatSessionTTL, logger)

	// 10. API handler
	apiHandler := handlers.NewAPIHandler(
		handlers.NewHealthHandler(readiness),
		authSvc,
		uploadSvc,
		chatSvc,
		apiContract,
		bundle,
		cfg.MaxRequestBytes,
		logger,
	)

	// 11. Bearer guard-ы
	guards := server.Guards{
		Admin: middleware.NewBearerGuard(middleware.GuardConfig{
			Name:        rbac.RoleAdmin,
			MountPrefix: server.AdminPrefix,
			Secret:      cfg.AdminSecret,
			Leeway:      cfg.JWTLeeway,
			MapClaims:   middleware.RoleClaimMapper(rbac.RoleAdmin),
			Messages:    middleware.AdminMessages,
		}, logger),
		Technician: middleware.NewBearerGuard(middleware.GuardConfig{
			Name:        rbac.RoleTechnician,
			MountPrefix: server.TechnicianPrefix,
			Secret:      cfg.TechnicianSecret,
			Leeway:      cfg.JWTLeeway,
			MapClaims:   middleware.RoleClaimMapper(rbac.RoleTechnician),
			Messages:    middleware.TechnicianMessages,
		}, logger),
	}

	// 12. topologymetrics — мониторинг зависимостей (PostgreSQL + чат-webhook)
	dephealthSvc, dephealthErr := service.NewDephealthService(service.DephealthConfig{
		ServiceID:      "portal-api",
		Group:          cfg.DephealthGroup,
		DB:             pgDB,
		PostgresURL:    cfg.DatabaseURL(),
		ChatWebhookURL: cfg.ChatWebhookURL,
		CheckInterval:  cfg.DephealthCheckInterval,
	}, logger)
	if dephealthErr != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", dephealthErr.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 13. Создание и запуск HTTP-сервера
	srv := server.New(cfg, logger, apiHandler, guards)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 14. Graceful shutdown фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("portal-api остановлен")
}
