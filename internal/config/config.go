// Пакет config — загрузка и валидация конфигурации Member Gateway
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации Member Gateway.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Бэкенды ---

	// AuthURL — базовый URL сервиса авторизации (выдача SA-токена)
	AuthURL string
	// PackageURL — базовый URL хранилища пакетов
	PackageURL string
	// UpdateURL — базовый URL сервиса обновлений и сегментов
	UpdateURL string
	// ClientID, ClientSecret — учётные данные SA шлюза (client_credentials)
	ClientID     string
	ClientSecret string
	// BackendTimeout — таймаут обычных запросов к бэкендам
	BackendTimeout time.Duration
	// UploadTimeout — таймаут проксирования загрузки пакета
	UploadTimeout time.Duration
	// CACertPath — CA-сертификат для TLS к бэкендам и JWKS (опционально)
	CACertPath string

	// --- JWT ---

	JWTJWKSURL          string
	JWTIssuer           string
	JWTLeeway           time.Duration
	JWKSClientTimeout   time.Duration
	JWKSRefreshInterval time.Duration
	// ReadinessTimeout — таймаут readiness-проверок JWKS и бэкендов
	ReadinessTimeout time.Duration

	// --- Маппинг групп → ролей ---

	RoleAdminGroups  []string
	RoleMemberGroups []string

	// --- Кэш и разрешение ссылок ---

	// CacheMaxSize — ёмкость LRU-кэшей пакетов и сегментов
	CacheMaxSize int
	// CacheTTL — время жизни записей кэша
	CacheTTL time.Duration
	// ResolveConcurrency — параллельность разрешения обновлений страницы
	ResolveConcurrency int

	// --- Мониторинг зависимостей ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration
	// DephealthIsEntry — лейбл isentry=yes (точка входа в граф)
	DephealthIsEntry bool

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:cyclop,funlen // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// MG_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("MG_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("MG_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("MG_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// MG_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("MG_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("MG_LOG_LEVEL: %w", err)
	}

	// MG_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("MG_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("MG_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("MG_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_HTTP_READ_TIMEOUT: %w", err)
	}

	// MG_HTTP_WRITE_TIMEOUT — покрывает загрузку пакета (по умолчанию 10m)
	cfg.HTTPWriteTimeout, err = getEnvDuration("MG_HTTP_WRITE_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MG_HTTP_WRITE_TIMEOUT: %w", err)
	}

	cfg.HTTPIdleTimeout, err = getEnvDuration("MG_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- Бэкенды ---

	if cfg.AuthURL, err = getEnvURL("MG_AUTH_URL"); err != nil {
		return nil, err
	}
	if cfg.PackageURL, err = getEnvURL("MG_PACKAGE_URL"); err != nil {
		return nil, err
	}
	if cfg.UpdateURL, err = getEnvURL("MG_UPDATE_URL"); err != nil {
		return nil, err
	}

	if cfg.ClientID, err = getEnvRequired("MG_CLIENT_ID"); err != nil {
		return nil, err
	}
	if cfg.ClientSecret, err = getEnvRequired("MG_CLIENT_SECRET"); err != nil {
		return nil, err
	}

	// MG_BACKEND_TIMEOUT — таймаут запросов к бэкендам (по умолчанию 30s)
	cfg.BackendTimeout, err = getEnvDuration("MG_BACKEND_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_BACKEND_TIMEOUT: %w", err)
	}

	// MG_UPLOAD_TIMEOUT — таймаут загрузки пакета (по умолчанию 10m)
	cfg.UploadTimeout, err = getEnvDuration("MG_UPLOAD_TIMEOUT", 10*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MG_UPLOAD_TIMEOUT: %w", err)
	}

	// MG_CA_CERT_PATH — путь к CA-сертификату (опционально)
	cfg.CACertPath = getEnvDefault("MG_CA_CERT_PATH", "")

	// --- JWT ---

	// MG_JWT_JWKS_URL — обязательный
	if cfg.JWTJWKSURL, err = getEnvRequired("MG_JWT_JWKS_URL"); err != nil {
		return nil, err
	}

	// MG_JWT_ISSUER — пустой: issuer не проверяется
	cfg.JWTIssuer = getEnvDefault("MG_JWT_ISSUER", "")

	cfg.JWTLeeway, err = getEnvDuration("MG_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_JWT_LEEWAY: %w", err)
	}

	cfg.JWKSClientTimeout, err = getEnvDurationFallback("MG_JWKS_CLIENT_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_JWKS_CLIENT_TIMEOUT: %w", err)
	}

	cfg.JWKSRefreshInterval, err = getEnvDurationFallback("MG_JWKS_REFRESH_INTERVAL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MG_JWKS_REFRESH_INTERVAL: %w", err)
	}

	cfg.ReadinessTimeout, err = getEnvDurationFallback("MG_READINESS_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_READINESS_TIMEOUT: %w", err)
	}

	// --- Маппинг групп → ролей ---

	cfg.RoleAdminGroups = parseCSV(getEnvDefault("MG_ROLE_ADMIN_GROUPS", "devicehub-admins"))
	cfg.RoleMemberGroups = parseCSV(getEnvDefault("MG_ROLE_MEMBER_GROUPS", "devicehub-members"))

	// --- Кэш ---

	cfg.CacheMaxSize, err = getEnvInt("MG_CACHE_MAX_SIZE", 10000)
	if err != nil {
		return nil, fmt.Errorf("MG_CACHE_MAX_SIZE: %w", err)
	}
	if cfg.CacheMaxSize < 1 {
		return nil, fmt.Errorf("MG_CACHE_MAX_SIZE: значение должно быть > 0")
	}

	cfg.CacheTTL, err = getEnvDurationFallback("MG_CACHE_TTL", 5*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("MG_CACHE_TTL: %w", err)
	}

	cfg.ResolveConcurrency, err = getEnvInt("MG_RESOLVE_CONCURRENCY", 8)
	if err != nil {
		return nil, fmt.Errorf("MG_RESOLVE_CONCURRENCY: %w", err)
	}
	if cfg.ResolveConcurrency < 1 || cfg.ResolveConcurrency > 256 {
		return nil, fmt.Errorf("MG_RESOLVE_CONCURRENCY: значение %d вне допустимого диапазона 1-256", cfg.ResolveConcurrency)
	}

	// --- Мониторинг зависимостей ---

	cfg.DephealthGroup = getEnvDefault("MG_DEPHEALTH_GROUP", "devicehub")

	cfg.DephealthCheckInterval, err = getEnvDurationFallback("MG_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// DEPHEALTH_ISENTRY — общая переменная topologymetrics, без префикса
	cfg.DephealthIsEntry, err = getEnvBool("DEPHEALTH_ISENTRY", false)
	if err != nil {
		return nil, fmt.Errorf("DEPHEALTH_ISENTRY: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("MG_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("MG_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
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

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvURL возвращает обязательный http(s) URL без trailing slash.
func getEnvURL(key string) (string, error) {
	val, err := getEnvRequired(key)
	if err != nil {
		return "", err
	}
	if !strings.HasPrefix(val, "http://") && !strings.HasPrefix(val, "https://") {
		return "", fmt.Errorf("%s: ожидается http:// или https:// URL, получено %q", key, val)
	}
	return strings.TrimRight(val, "/"), nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
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

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
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

// getEnvDurationFallback возвращает time.Duration из переменной окружения.
// Если переменная не задана, используется fallbackVal.
// Если задана — парсится и валидируется (> 0).
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallbackVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
