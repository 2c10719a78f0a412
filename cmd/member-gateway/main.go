// Точка входа Member Gateway — API шлюза для участников платформы DeviceHub.
// Загружает конфигурацию, создаёт клиенты бэкендов (auth, package, update),
// кэши и сервисный слой, запускает topologymetrics и HTTP-сервер
// с JWT middleware, валидацией по OpenAPI и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/devicehub/member-gateway/internal/api/handlers"
	"github.com/devicehub/member-gateway/internal/api/middleware"
	"github.com/devicehub/member-gateway/internal/api/openapi"
	"github.com/devicehub/member-gateway/internal/authclient"
	"github.com/devicehub/member-gateway/internal/backend"
	"github.com/devicehub/member-gateway/internal/config"
	"github.com/devicehub/member-gateway/internal/domain/model"
	"github.com/devicehub/member-gateway/internal/packageclient"
	"github.com/devicehub/member-gateway/internal/server"
	"github.com/devicehub/member-gateway/internal/service"
	"github.com/devicehub/member-gateway/internal/updateclient"
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
	logger.Info("Member Gateway запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
	)

	if os.Getenv("MG_DEPHEALTH_GROUP") == "" {
		logger.Warn("MG_DEPHEALTH_GROUP не задана, используется значение по умолчанию",
			slog.String("default", cfg.DephealthGroup),
		)
	}

	// 3. HTTP-клиенты бэкендов: обычный и для загрузки пакетов
	httpClient, err := backend.NewHTTPClient(cfg.CACertPath, cfg.BackendTimeout)
	if err != nil {
		logger.Error("Ошибка создания HTTP-клиента", slog.String("error", err.Error()))
		os.Exit(1)
	}
	uploadHTTPClient, err := backend.NewHTTPClient(cfg.CACertPath, cfg.UploadTimeout)
	if err != nil {
		logger.Error("Ошибка создания HTTP-клиента загрузки", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if cfg.CACertPath != "" {
		logger.Info("CA-сертификат загружен", slog.String("path", cfg.CACertPath))
	}

	// 4. Клиенты бэкендов; SA-токен Auth Service подписывает запросы к остальным
	authClient := authclient.New(cfg.AuthURL, httpClient, cfg.ClientID, cfg.ClientSecret, logger)
	packageClient := packageclient.New(cfg.PackageURL, httpClient, uploadHTTPClient, authClient.GetToken, logger)
	updateClient := updateclient.New(cfg.UpdateURL, httpClient, authClient.GetToken, logger)

	// 5. Services
	packageCache := service.NewCache[model.PackageInfo]("packages", cfg.CacheMaxSize, cfg.CacheTTL)
	segmentCache := service.NewCache[model.Segment]("segments", cfg.CacheMaxSize, cfg.CacheTTL)

	packagesSvc := service.NewPackageService(packageClient, packageCache, logger)
	segmentsSvc := service.NewSegmentService(updateClient, segmentCache, logger)
	updatesSvc := service.NewUpdateService(updateClient, packagesSvc, segmentsSvc, cfg.ResolveConcurrency, logger)

	// 6. topologymetrics — мониторинг бэкендов
	ctx := context.Background()
	dephealthSvc, err := service.NewDephealthService(
		"member-gateway",
		cfg.DephealthGroup,
		[]service.Dependency{
			{Name: "auth-service", URL: cfg.AuthURL},
			{Name: "package-service", URL: cfg.PackageURL},
			{Name: "update-service", URL: cfg.UpdateURL},
		},
		cfg.DephealthCheckInterval,
		cfg.DephealthIsEntry,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
		dephealthSvc = nil
	} else if startErr := dephealthSvc.Start(ctx); startErr != nil {
		logger.Warn("Ошибка запуска topologymetrics", slog.String("error", startErr.Error()))
		dephealthSvc = nil
	} else {
		logger.Info("topologymetrics запущен",
			slog.String("group", cfg.DephealthGroup),
			slog.String("check_interval", cfg.DephealthCheckInterval.String()),
		)
	}

	// 7. Readiness: JWKS + бэкенды
	jwksChecker, err := middleware.NewJWKSReadinessChecker(cfg.JWTJWKSURL, cfg.CACertPath, cfg.ReadinessTimeout)
	if err != nil {
		logger.Error("Ошибка создания JWKS readiness checker", slog.String("error", err.Error()))
		os.Exit(1)
	}
	healthHandler := handlers.NewHealthHandler(map[string]handlers.ReadinessChecker{
		"jwks":    jwksChecker,
		"auth":    handlers.BackendChecker{Backend: authClient.Backend()},
		"package": handlers.BackendChecker{Backend: packageClient.Backend()},
		"update":  handlers.BackendChecker{Backend: updateClient.Backend()},
	}, cfg.ReadinessTimeout)

	// 8. API handler
	apiHandler := handlers.NewAPIHandler(healthHandler, updatesSvc, packagesSvc, segmentsSvc, logger)
	apiHandler.SetUploadTimeout(cfg.UploadTimeout)

	// 9. JWT middleware и валидация по контракту
	jwtAuth, err := middleware.NewJWTAuth(
		cfg.JWTJWKSURL,
		cfg.CACertPath,
		cfg.JWTIssuer,
		cfg.RoleAdminGroups,
		cfg.RoleMemberGroups,
		cfg.JWKSClientTimeout,
		cfg.JWKSRefreshInterval,
		cfg.JWTLeeway,
		logger,
	)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	validator, err := middleware.NewRequestValidator(openapi.Spec, logger)
	if err != nil {
		logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 10. Создание и запуск HTTP-сервера
	router := server.NewRouter(apiHandler, server.RouterOptions{
		Logger:    logger,
		Auth:      jwtAuth.Middleware(),
		Validator: validator.Middleware(),
	})
	srv := server.New(cfg, logger, router)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		if dephealthSvc != nil {
			dephealthSvc.Stop()
		}
		os.Exit(1)
	}

	// 11. Остановка фоновых задач
	if dephealthSvc != nil {
		dephealthSvc.Stop()
	}

	logger.Info("Member Gateway остановлен")
}
