// segments.go — обработчики /api/v1/segments endpoints.
package handlers

import (
	"net/http"

	"github.com/devicehub/member-gateway/internal/service"
)

// createSegmentRequest — тело POST /api/v1/segments.
type createSegmentRequest struct {
	Name        string   `json:"name"`
	Description *string  `json:"description,omitempty"`
	DeviceIDs   []string `json:"deviceIds"`
}

// ListSegments — GET /api/v1/segments.
func (h *APIHandler) ListSegments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}

	result, err := h.segments.ListSegments(r.Context(), userID, page)
	if err != nil {
		h.writeServiceError(w, err, "Сегменты не найдены", "Ошибка получения списка сегментов")
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, page))
}

// CreateSegment — POST /api/v1/segments.
func (h *APIHandler) CreateSegment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req createSegmentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	seg, err := h.segments.CreateSegment(r.Context(), userID, service.CreateSegmentRequest{
		Name:        req.Name,
		Description: req.Description,
		DeviceIDs:   req.DeviceIDs,
	})
	if err != nil {
		h.writeServiceError(w, err, "Сегмент не найден", "Ошибка создания сегмента")
		return
	}

	writeJSON(w, http.StatusCreated, seg)
}

// GetSegment — GET /api/v1/segments/{segmentId}.
func (h *APIHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	segmentID, ok := bindID(w, r, "segmentId")
	if !ok {
		return
	}

	seg, err := h.segments.GetSegment(r.Context(), userID, segmentID)
	if err != nil {
		h.writeServiceError(w, err, "Сегмент не найден", "Ошибка получения сегмента")
		return
	}

	writeJSON(w, http.StatusOK, seg)
}

// DeleteSegment — DELETE /api/v1/segments/{segmentId}.
func (h *APIHandler) DeleteSegment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	segmentID, ok := bindID(w, r, "segmentId")
	if !ok {
		return
	}

	if err := h.segments.DeleteSegment(r.Context(), userID, segmentID); err != nil {
		h.writeServiceError(w, err, "Сегмент не найден", "Ошибка удаления сегмента")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
