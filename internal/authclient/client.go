// Пакет authclient — клиент сервиса авторизации платформы.
// Получает SA-токен шлюза через client_credentials grant и кэширует его
// до истечения (с запасом 30 секунд). GetToken используется как
// backend.TokenProvider клиентами Package и Update Service.
package authclient

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/devicehub/member-gateway/internal/backend"
)

// tokenPath — token endpoint сервиса авторизации.
const tokenPath = "/auth/token"

// expiryMargin — запас до истечения, после которого токен запрашивается заново.
const expiryMargin = 30 * time.Second

// tokenInfo — закэшированный SA-токен с временем истечения.
type tokenInfo struct {
	accessToken string
	expiresAt   time.Time
}

// Client — клиент сервиса авторизации.
type Client struct {
	backend      *backend.Client
	clientID     string
	clientSecret string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	logger       *slog.Logger

	// now подменяется в тестах
	now func() time.Time

	// Кэш SA-токена (thread-safe)
	mu    sync.RWMutex
	token *tokenInfo
}

// New создаёт клиент сервиса авторизации.
// authURL — базовый URL (например, http://auth-service:8080).
func New(authURL string, httpClient *http.Client, clientID, clientSecret string, logger *slog.Logger) *Client {
	return &Client{
		backend:      backend.New("auth", authURL, httpClient, nil, logger),
		clientID:     clientID,
		clientSecret: clientSecret,
		logger:       logger.With(slog.String("component", "auth_client")),
		now:          time.Now,
	}
}

// Backend возвращает нижележащий клиент (для readiness-проверки).
func (c *Client) Backend() *backend.Client {
	return c.backend
}

// GetToken возвращает SA-токен для авторизации запросов.
// Если токен ещё валиден (exp - 30s), возвращает закэшированный,
// иначе запрашивает новый через client_credentials grant.
func (c *Client) GetToken(ctx context.Context) (string, error) {
	// Проверяем кэш (read lock)
	c.mu.RLock()
	if c.token != nil && c.now().Before(c.token.expiresAt) {
		token := c.token.accessToken
		c.mu.RUnlock()
		return token, nil
	}
	c.mu.RUnlock()

	// Запрашиваем новый токен (write lock)
	c.mu.Lock()
	defer c.mu.Unlock()

	// Double-check после получения write lock
	if c.token != nil && c.now().Before(c.token.expiresAt) {
		return c.token.accessToken, nil
	}

	return c.requestToken(ctx)
}

// Invalidate сбрасывает закэшированный токен.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.token = nil
	c.mu.Unlock()
}

// requestToken запрашивает новый SA-токен через client_credentials grant.
// Вызывается под write lock.
func (c *Client) requestToken(ctx context.Context) (string, error) {
	data := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
	}

	req, err := c.backend.NewRequest(ctx, http.MethodPost, tokenPath, nil, strings.NewReader(data.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var tokenResp struct {
		Token     string `json:"access_token"` //nolint:gosec // G117: JSON-маппинг OAuth2 ответа
		ExpiresIn int    `json:"expires_in"`
		TokenType string `json:"token_type"`
	}
	if err := c.backend.DoJSON(req, &tokenResp); err != nil {
		return "", fmt.Errorf("запрос SA-токена: %w", err)
	}

	if tokenResp.Token == "" {
		return "", errors.New("пустой access_token в ответе сервиса авторизации")
	}

	// Кэшируем токен (с запасом 30 секунд до истечения)
	c.token = &tokenInfo{
		accessToken: tokenResp.Token,
		expiresAt:   c.now().Add(time.Duration(tokenResp.ExpiresIn)*time.Second - expiryMargin),
	}

	c.logger.Debug("SA-токен получен",
		slog.Int("expires_in", tokenResp.ExpiresIn),
	)

	return tokenResp.Token, nil
}
