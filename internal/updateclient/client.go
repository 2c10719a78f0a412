// Пакет updateclient — клиент Update Service.
// Update Service хранит обновления и сегменты устройств, выполняет переходы
// статусов и поставляет таблицу совместимости статусов. Шлюз только
// проксирует операции от имени пользователя.
package updateclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/devicehub/member-gateway/internal/backend"
	"github.com/devicehub/member-gateway/internal/domain/model"
)

// statusChange — тело запроса смены статуса.
type statusChange struct {
	Status model.UpdateStatus `json:"status"`
}

// Client — клиент Update Service.
type Client struct {
	api    *backend.Client
	logger *slog.Logger
}

// New создаёт клиент Update Service.
func New(updateURL string, httpClient *http.Client, tokenProvider backend.TokenProvider, logger *slog.Logger) *Client {
	return &Client{
		api:    backend.New("update", updateURL, httpClient, tokenProvider, logger),
		logger: logger.With(slog.String("component", "update_client")),
	}
}

// Backend возвращает нижележащий клиент (для readiness-проверки).
func (c *Client) Backend() *backend.Client {
	return c.api
}

// --- Обновления ---

// GetUpdate запрашивает обновление пользователя.
// GET /api/v1/users/{userId}/updates/{uuid}
func (c *Client) GetUpdate(ctx context.Context, userID, updateID string) (*model.Update, error) {
	var u model.Update
	if err := c.api.GetJSON(ctx, updatePath(userID, updateID), nil, &u); err != nil {
		return nil, fmt.Errorf("получение обновления %s: %w", updateID, err)
	}
	return &u, nil
}

// ListUpdates возвращает страницу обновлений пользователя.
// GET /api/v1/users/{userId}/updates?limit=&offset=
func (c *Client) ListUpdates(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Update], error) {
	var result model.Page[model.Update]
	if err := c.api.GetJSON(ctx, updatesPath(userID), backend.PageQuery(page), &result); err != nil {
		return nil, fmt.Errorf("список обновлений: %w", err)
	}
	return &result, nil
}

// CreateUpdate сохраняет новое обновление; revisionId и creationDate назначает Update Service.
// POST /api/v1/users/{userId}/updates
func (c *Client) CreateUpdate(ctx context.Context, u *model.Update) (*model.Update, error) {
	var created model.Update
	if err := c.api.SendJSON(ctx, http.MethodPost, updatesPath(u.UserID), u, &created); err != nil {
		return nil, fmt.Errorf("создание обновления %s: %w", u.UUID, err)
	}
	return &created, nil
}

// ChangeStatus переводит обновление в статус target.
// Допустимость перехода проверяет Update Service.
// PUT /api/v1/users/{userId}/updates/{uuid}/status
func (c *Client) ChangeStatus(ctx context.Context, userID, updateID string, target model.UpdateStatus) (*model.Update, error) {
	var updated model.Update
	path := updatePath(userID, updateID) + "/status"
	if err := c.api.SendJSON(ctx, http.MethodPut, path, statusChange{Status: target}, &updated); err != nil {
		return nil, fmt.Errorf("смена статуса обновления %s на %s: %w", updateID, target, err)
	}

	c.logger.Info("Статус обновления изменён",
		slog.String("update_id", updateID),
		slog.String("status", string(updated.Status)),
	)
	return &updated, nil
}

// DeleteUpdate удаляет обновление пользователя.
// DELETE /api/v1/users/{userId}/updates/{uuid}
func (c *Client) DeleteUpdate(ctx context.Context, userID, updateID string) error {
	if err := c.api.Delete(ctx, updatePath(userID, updateID)); err != nil {
		return fmt.Errorf("удаление обновления %s: %w", updateID, err)
	}
	return nil
}

// StatusCompatibilities возвращает таблицу совместимости статусов.
// GET /api/v1/updates/statuses
func (c *Client) StatusCompatibilities(ctx context.Context) ([]model.UpdateStatusCompatibility, error) {
	var table []model.UpdateStatusCompatibility
	if err := c.api.GetJSON(ctx, "/api/v1/updates/statuses", nil, &table); err != nil {
		return nil, fmt.Errorf("таблица совместимости статусов: %w", err)
	}
	return table, nil
}

// --- Сегменты ---

// FetchSegment запрашивает сегмент пользователя.
// GET /api/v1/users/{userId}/segments/{id}
func (c *Client) FetchSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error) {
	var s model.Segment
	if err := c.api.GetJSON(ctx, segmentPath(userID, segmentID), nil, &s); err != nil {
		return nil, fmt.Errorf("получение сегмента %s: %w", segmentID, err)
	}
	return &s, nil
}

// ListSegments возвращает страницу сегментов пользователя.
func (c *Client) ListSegments(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error) {
	var result model.Page[model.Segment]
	if err := c.api.GetJSON(ctx, segmentsPath(userID), backend.PageQuery(page), &result); err != nil {
		return nil, fmt.Errorf("список сегментов: %w", err)
	}
	return &result, nil
}

// CreateSegment сохраняет новый сегмент.
func (c *Client) CreateSegment(ctx context.Context, s *model.Segment) (*model.Segment, error) {
	var created model.Segment
	if err := c.api.SendJSON(ctx, http.MethodPost, segmentsPath(s.UserID), s, &created); err != nil {
		return nil, fmt.Errorf("создание сегмента %s: %w", s.Name, err)
	}
	return &created, nil
}

// DeleteSegment удаляет сегмент пользователя.
func (c *Client) DeleteSegment(ctx context.Context, userID, segmentID string) error {
	if err := c.api.Delete(ctx, segmentPath(userID, segmentID)); err != nil {
		return fmt.Errorf("удаление сегмента %s: %w", segmentID, err)
	}
	return nil
}

func updatesPath(userID string) string {
	return "/api/v1/users/" + backend.PathEscape(userID) + "/updates"
}

func updatePath(userID, updateID string) string {
	return updatesPath(userID) + "/" + backend.PathEscape(updateID)
}

func segmentsPath(userID string) string {
	return "/api/v1/users/" + backend.PathEscape(userID) + "/segments"
}

func segmentPath(userID, segmentID string) string {
	return segmentsPath(userID) + "/" + backend.PathEscape(segmentID)
}
