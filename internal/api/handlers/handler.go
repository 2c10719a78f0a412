// handler.go — основной обработчик API Member Gateway.
// Объединяет health и бизнес-обработчики, делегируя запросы в сервисный слой.
// Пользователь для бэкендов — sub из JWT (middleware.SubjectFromContext).
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
	openapi_types "github.com/oapi-codegen/runtime/types"

	apierrors "github.com/devicehub/member-gateway/internal/api/errors"
	"github.com/devicehub/member-gateway/internal/api/middleware"
	"github.com/devicehub/member-gateway/internal/domain/model"
	"github.com/devicehub/member-gateway/internal/service"
)

// maxJSONBody — ограничение размера JSON-тела запроса.
const maxJSONBody = 1 << 20

// UpdateService — операции над обновлениями пользователя.
type UpdateService interface {
	GetDetailedUpdate(ctx context.Context, userID, updateID string) (*model.DetailedUpdate, error)
	ListDetailedUpdates(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.DetailedUpdate], error)
	CreateUpdate(ctx context.Context, userID string, req service.CreateUpdateRequest) (*model.DetailedUpdate, error)
	ChangeStatus(ctx context.Context, userID, updateID, rawStatus string) (*model.DetailedUpdate, error)
	DeleteUpdate(ctx context.Context, userID, updateID string) error
	StatusCompatibilities(ctx context.Context) ([]model.UpdateStatusCompatibility, error)
}

// PackageService — операции над пакетами пользователя.
type PackageService interface {
	GetPackage(ctx context.Context, userID, packageID string) (*model.PackageInfo, error)
	ListPackages(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error)
	UploadPackage(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error)
	DeletePackage(ctx context.Context, userID, packageID string) error
}

// SegmentService — операции над сегментами пользователя.
type SegmentService interface {
	GetSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error)
	ListSegments(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error)
	CreateSegment(ctx context.Context, userID string, req service.CreateSegmentRequest) (*model.Segment, error)
	DeleteSegment(ctx context.Context, userID, segmentID string) error
}

// APIHandler — основной обработчик API Member Gateway.
type APIHandler struct {
	health   *HealthHandler
	updates  UpdateService
	packages PackageService
	segments SegmentService
	logger   *slog.Logger

	// uploadTimeout — сколько может длиться приём тела загрузки пакета;
	// 0 — действуют таймауты сервера
	uploadTimeout time.Duration
}

// NewAPIHandler создаёт основной обработчик API.
func NewAPIHandler(
	health *HealthHandler,
	updates UpdateService,
	packages PackageService,
	segments SegmentService,
	logger *slog.Logger,
) *APIHandler {
	return &APIHandler{
		health:   health,
		updates:  updates,
		packages: packages,
		segments: segments,
		logger:   logger.With(slog.String("component", "api_handler")),
	}
}

// SetUploadTimeout задаёт дедлайн приёма и ответа для POST /api/v1/packages.
// ReadTimeout сервера рассчитан на обычные запросы и оборвал бы потоковую загрузку.
func (h *APIHandler) SetUploadTimeout(d time.Duration) {
	h.uploadTimeout = d
}

// --- Health endpoints (делегируются в HealthHandler) ---

// HealthLive — liveness probe.
func (h *APIHandler) HealthLive(w http.ResponseWriter, r *http.Request) {
	h.health.HealthLive(w, r)
}

// HealthReady — readiness probe.
func (h *APIHandler) HealthReady(w http.ResponseWriter, r *http.Request) {
	h.health.HealthReady(w, r)
}

// GetMetrics — Prometheus метрики.
func (h *APIHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	h.health.GetMetrics(w, r)
}

// --- Вспомогательные функции ---

// listResponse — страница в формате API.
type listResponse[T any] struct {
	Items   []T  `json:"items"`
	Total   int  `json:"total"`
	Limit   int  `json:"limit"`
	Offset  int  `json:"offset"`
	HasMore bool `json:"hasMore"`
}

// newListResponse строит ответ из страницы бэкенда и запрошенной пагинации.
func newListResponse[T any](page *model.Page[T], req model.PageRequest) listResponse[T] {
	items := page.Items
	if items == nil {
		items = []T{}
	}
	return listResponse[T]{
		Items:   items,
		Total:   page.Total,
		Limit:   req.Limit,
		Offset:  req.Offset,
		HasMore: req.Offset+len(items) < page.Total,
	}
}

// writeJSON записывает JSON-ответ с указанным статусом.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// decodeJSON читает JSON-тело запроса; при ошибке пишет 400.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody)).Decode(dst); err != nil {
		apierrors.ValidationError(w, "Некорректный JSON: "+err.Error())
		return false
	}
	return true
}

// paginationDefaults нормализует параметры пагинации.
// Возвращает корректные limit и offset.
func paginationDefaults(limit, offset *int) (limitVal, offsetVal int) {
	l := 100
	o := 0

	if limit != nil {
		l = *limit
		if l < 1 {
			l = 1
		}
		if l > 1000 {
			l = 1000
		}
	}

	if offset != nil {
		o = *offset
		if o < 0 {
			o = 0
		}
	}

	return l, o
}

// bindPage связывает query-параметры limit/offset и нормализует их.
func bindPage(w http.ResponseWriter, r *http.Request) (model.PageRequest, bool) {
	var limit, offset *int

	if err := runtime.BindQueryParameter("form", true, false, "limit", r.URL.Query(), &limit); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр limit: "+err.Error())
		return model.PageRequest{}, false
	}
	if err := runtime.BindQueryParameter("form", true, false, "offset", r.URL.Query(), &offset); err != nil {
		apierrors.ValidationError(w, "Некорректный параметр offset: "+err.Error())
		return model.PageRequest{}, false
	}

	l, o := paginationDefaults(limit, offset)
	return model.PageRequest{Limit: l, Offset: o}, true
}

// bindID связывает path-параметр UUID.
func bindID(w http.ResponseWriter, r *http.Request, name string) (string, bool) {
	var id openapi_types.UUID
	err := runtime.BindStyledParameterWithOptions("simple", name, chi.URLParam(r, name), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		apierrors.ValidationError(w, "Некорректный параметр "+name+": ожидается UUID")
		return "", false
	}
	return id.String(), true
}

// requireUser возвращает sub текущего субъекта; при отсутствии пишет 401.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID := middleware.SubjectFromContext(r.Context())
	if userID == "" {
		apierrors.Unauthorized(w, "Отсутствуют claims")
		return "", false
	}
	return userID, true
}

// writeServiceError переводит ошибку сервисного слоя в HTTP-ответ.
// notFound — сообщение для 404, action — описание операции для лога и 500.
func (h *APIHandler) writeServiceError(w http.ResponseWriter, err error, notFound, action string) {
	var unknownStatus *model.UnknownStatusError
	var invalid *model.ValidationError

	// Порядок важен: в цепочке ErrUpstreamData может лежать
	// *model.UnknownStatusError из ответа бэкенда, это не ошибка клиента.
	switch {
	case errors.Is(err, service.ErrUpstreamData):
		h.logger.Error(action+": некорректные данные бэкенда", slog.String("error", err.Error()))
		apierrors.BadUpstreamData(w, "Бэкенд-сервис вернул некорректные данные")
	case errors.As(err, &unknownStatus):
		apierrors.ValidationError(w, unknownStatus.Error())
	case errors.As(err, &invalid):
		apierrors.ValidationError(w, invalid.Error())
	case errors.Is(err, service.ErrValidation):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrNotFound):
		apierrors.NotFound(w, notFound)
	case errors.Is(err, service.ErrConflict):
		apierrors.Conflict(w, err.Error())
	case errors.Is(err, service.ErrBackendUnavailable):
		h.logger.Warn(action+": бэкенд недоступен", slog.String("error", err.Error()))
		apierrors.BackendUnavailable(w, "Бэкенд-сервис недоступен")
	default:
		h.logger.Error(action, slog.String("error", err.Error()))
		apierrors.InternalError(w, action)
	}
}
