// Пакет backend — общая HTTP-обвязка клиентов бэкенд-сервисов платформы.
// TLS с кастомным CA (MG_CA_CERT_PATH), SA-токен в Authorization,
// JSON-запросы/ответы, типизированная ошибка для не-2xx ответов.
package backend

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/devicehub/member-gateway/internal/domain/model"
)

// maxErrorBody — сколько байт тела ошибки сохраняется в StatusError.
const maxErrorBody = 4096

var (
	// ErrUnavailable — бэкенд не ответил (сеть, таймаут, TLS).
	ErrUnavailable = errors.New("бэкенд недоступен")
	// ErrInvalidResponse — ответ 2xx не декодируется в ожидаемую модель.
	ErrInvalidResponse = errors.New("некорректный ответ бэкенда")
)

// Prometheus-метрики исходящих запросов.
var (
	backendRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mg_backend_requests_total",
		Help: "Общее количество запросов к бэкенд-сервисам.",
	}, []string{"service", "method", "status"})

	backendRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "mg_backend_request_duration_seconds",
		Help:    "Длительность запросов к бэкенд-сервисам.",
		Buckets: prometheus.DefBuckets,
	}, []string{"service", "method"})
)

// TokenProvider — функция, возвращающая SA-токен для авторизации запросов.
// Обычно это authclient.Client.GetToken.
type TokenProvider func(ctx context.Context) (string, error)

// StatusError — бэкенд ответил статусом вне 2xx.
type StatusError struct {
	// Service — имя бэкенда (auth, package, update)
	Service string
	// StatusCode — HTTP статус ответа
	StatusCode int
	// Body — начало тела ответа
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s вернул статус %d: %s", e.Service, e.StatusCode, e.Body)
}

// Client — HTTP-клиент одного бэкенд-сервиса.
type Client struct {
	httpClient    *http.Client
	service       string
	baseURL       string
	tokenProvider TokenProvider
	logger        *slog.Logger
}

// NewHTTPClient создаёт http.Client с таймаутом и, если задан caCertPath,
// пулом доверия, дополненным этим CA.
func NewHTTPClient(caCertPath string, timeout time.Duration) (*http.Client, error) {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConnsPerHost: 10,
	}

	if caCertPath != "" {
		tlsConfig, err := BuildTLSConfig(caCertPath)
		if err != nil {
			return nil, fmt.Errorf("загрузка CA-сертификата: %w", err)
		}
		transport.TLSClientConfig = tlsConfig
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}, nil
}

// New создаёт клиент бэкенда.
// service — имя для логов, метрик и ошибок; baseURL — например, http://update-service:8080.
// tokenProvider может быть nil для публичных endpoints.
func New(service, baseURL string, httpClient *http.Client, tokenProvider TokenProvider, logger *slog.Logger) *Client {
	return &Client{
		httpClient:    httpClient,
		service:       service,
		baseURL:       normalizeURL(baseURL),
		tokenProvider: tokenProvider,
		logger:        logger.With(slog.String("component", service+"_client")),
	}
}

// Service возвращает имя бэкенда.
func (c *Client) Service() string { return c.service }

// BaseURL возвращает базовый URL без trailing slash.
func (c *Client) BaseURL() string { return c.baseURL }

// NewRequest создаёт запрос к baseURL+path с query-параметрами.
func (c *Client) NewRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}
	if body == nil {
		body = http.NoBody
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("создание запроса %s %s: %w", method, path, err)
	}
	return req, nil
}

// Do добавляет SA-токен и выполняет запрос.
// Для статуса вне 2xx тело закрывается и возвращается *StatusError.
// При успехе вызывающий код ОБЯЗАН закрыть resp.Body.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	if c.tokenProvider != nil {
		token, err := c.tokenProvider(req.Context())
		if err != nil {
			return nil, fmt.Errorf("получение токена для %s: %w", c.service, err)
		}
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	backendRequestDuration.WithLabelValues(c.service, req.Method).Observe(time.Since(start).Seconds())
	if err != nil {
		backendRequestsTotal.WithLabelValues(c.service, req.Method, "error").Inc()
		return nil, fmt.Errorf("%w: запрос %s %s к %s: %w", ErrUnavailable, req.Method, req.URL.Path, c.service, err)
	}
	backendRequestsTotal.WithLabelValues(c.service, req.Method, strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

		c.logger.Debug("Бэкенд вернул ошибку",
			slog.String("method", req.Method),
			slog.String("path", req.URL.Path),
			slog.Int("status", resp.StatusCode),
		)
		return nil, &StatusError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
	}

	return resp, nil
}

// GetJSON выполняет GET и декодирует JSON-ответ в out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	req, err := c.NewRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	return c.DoJSON(req, out)
}

// SendJSON кодирует in в тело запроса method и декодирует ответ в out.
// out может быть nil, тогда тело ответа отбрасывается.
func (c *Client) SendJSON(ctx context.Context, method, path string, in, out any) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("кодирование запроса %s %s: %w", method, path, err)
	}

	req, err := c.NewRequest(ctx, method, path, nil, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.DoJSON(req, out)
}

// Delete выполняет DELETE; тело ответа игнорируется.
func (c *Client) Delete(ctx context.Context, path string) error {
	req, err := c.NewRequest(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		return err
	}
	return c.DoJSON(req, nil)
}

// CheckReady проверяет готовность бэкенда (GET /health/ready, без токена).
func (c *Client) CheckReady(ctx context.Context) error {
	req, err := c.NewRequest(ctx, http.MethodGet, "/health/ready", nil, nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrUnavailable, c.service, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s /health/ready вернул статус %d", c.service, resp.StatusCode)
	}
	return nil
}

// DoJSON выполняет подготовленный запрос и декодирует JSON-ответ в out.
// out может быть nil, тогда тело ответа отбрасывается.
func (c *Client) DoJSON(req *http.Request, out any) error {
	resp, err := c.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s %s от %s: %w", ErrInvalidResponse, req.Method, req.URL.Path, c.service, err)
	}
	return nil
}

// PageQuery строит query-параметры пагинации для list-запросов.
func PageQuery(p model.PageRequest) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(p.Limit))
	q.Set("offset", strconv.Itoa(p.Offset))
	return q
}

// PathEscape экранирует идентификатор для подстановки в путь.
func PathEscape(id string) string {
	return url.PathEscape(id)
}

// BuildTLSConfig создаёт TLS-конфигурацию с кастомным CA-сертификатом.
func BuildTLSConfig(caCertPath string) (*tls.Config, error) {
	caCert, err := os.ReadFile(caCertPath)
	if err != nil {
		return nil, fmt.Errorf("чтение CA-сертификата: %w", err)
	}

	caCertPool, err := x509.SystemCertPool()
	if err != nil {
		caCertPool = x509.NewCertPool()
	}
	if !caCertPool.AppendCertsFromPEM(caCert) {
		return nil, fmt.Errorf("CA-сертификат %s не содержит PEM-блоков", caCertPath)
	}

	return &tls.Config{
		RootCAs:    caCertPool,
		MinVersion: tls.VersionTLS12,
	}, nil
}

// normalizeURL убирает trailing slash из URL.
func normalizeURL(rawURL string) string {
	return strings.TrimRight(rawURL, "/")
}
