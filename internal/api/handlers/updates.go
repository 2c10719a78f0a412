// updates.go — обработчики /api/v1/updates endpoints.
// Обновления пользователя в форме DetailedUpdate: список, создание черновика,
// смена статуса, удаление, таблица совместимости статусов.
package handlers

import (
	"net/http"
	"time"

	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/devicehub/member-gateway/internal/domain/model"
	"github.com/devicehub/member-gateway/internal/service"
)

// createUpdateRequest — тело POST /api/v1/updates.
type createUpdateRequest struct {
	Name                 string              `json:"name"`
	Description          string              `json:"description"`
	PackageID            openapi_types.UUID  `json:"packageId"`
	SegmentID            *openapi_types.UUID `json:"segmentId,omitempty"`
	ScheduledDate        *time.Time          `json:"scheduledDate,omitempty"`
	AdditionalProperties *model.Properties   `json:"additionalProperties,omitempty"`
}

// changeStatusRequest — тело PUT /api/v1/updates/{updateId}/status.
type changeStatusRequest struct {
	Status string `json:"status"`
}

// ListUpdates — GET /api/v1/updates.
func (h *APIHandler) ListUpdates(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}

	result, err := h.updates.ListDetailedUpdates(r.Context(), userID, page)
	if err != nil {
		h.writeServiceError(w, err, "Пакет или сегмент обновления не найден", "Ошибка получения списка обновлений")
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, page))
}

// CreateUpdate — POST /api/v1/updates.
// Создаёт черновик (draft); uuid назначает шлюз.
func (h *APIHandler) CreateUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createUpdateRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var segmentID *string
	if req.SegmentID != nil {
		s := req.SegmentID.String()
		segmentID = &s
	}

	d, err := h.updates.CreateUpdate(r.Context(), userID, service.CreateUpdateRequest{
		Name:                 req.Name,
		Description:          req.Description,
		PackageID:            req.PackageID.String(),
		SegmentID:            segmentID,
		ScheduledDate:        req.ScheduledDate,
		AdditionalProperties: req.AdditionalProperties,
	})
	if err != nil {
		h.writeServiceError(w, err, "Пакет или сегмент не найден", "Ошибка создания обновления")
		return
	}

	writeJSON(w, http.StatusCreated, d)
}

// ListStatusCompatibilities — GET /api/v1/updates/statuses.
func (h *APIHandler) ListStatusCompatibilities(w http.ResponseWriter, r *http.Request) {
	if _, ok := requireUser(w, r); !ok {
		return
	}

	table, err := h.updates.StatusCompatibilities(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "Таблица статусов не найдена", "Ошибка получения таблицы статусов")
		return
	}
	if table == nil {
		table = []model.UpdateStatusCompatibility{}
	}

	writeJSON(w, http.StatusOK, table)
}

// GetUpdate — GET /api/v1/updates/{updateId}.
func (h *APIHandler) GetUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	updateID, ok := bindID(w, r, "updateId")
	if !ok {
		return
	}

	d, err := h.updates.GetDetailedUpdate(r.Context(), userID, updateID)
	if err != nil {
		h.writeServiceError(w, err, "Обновление не найдено", "Ошибка получения обновления")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// ChangeUpdateStatus — PUT /api/v1/updates/{updateId}/status.
// Неизвестный статус — 400 до обращения к Update Service,
// запрещённый переход — 409 от Update Service.
func (h *APIHandler) ChangeUpdateStatus(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	updateID, ok := bindID(w, r, "updateId")
	if !ok {
		return
	}

	var req changeStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	d, err := h.updates.ChangeStatus(r.Context(), userID, updateID, req.Status)
	if err != nil {
		h.writeServiceError(w, err, "Обновление не найдено", "Ошибка смены статуса обновления")
		return
	}

	writeJSON(w, http.StatusOK, d)
}

// DeleteUpdate — DELETE /api/v1/updates/{updateId}.
func (h *APIHandler) DeleteUpdate(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	updateID, ok := bindID(w, r, "updateId")
	if !ok {
		return
	}

	if err := h.updates.DeleteUpdate(r.Context(), userID, updateID); err != nil {
		h.writeServiceError(w, err, "Обновление не найдено", "Ошибка удаления обновления")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
