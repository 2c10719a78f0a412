package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/devicehub/member-gateway/internal/api/middleware"
	"github.com/devicehub/member-gateway/internal/domain/model"
	"github.com/devicehub/member-gateway/internal/service"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Моки сервисов ---

type mockUpdateService struct {
	getFn      func(ctx context.Context, userID, updateID string) (*model.DetailedUpdate, error)
	listFn     func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.DetailedUpdate], error)
	createFn   func(ctx context.Context, userID string, req service.CreateUpdateRequest) (*model.DetailedUpdate, error)
	changeFn   func(ctx context.Context, userID, updateID, rawStatus string) (*model.DetailedUpdate, error)
	deleteFn   func(ctx context.Context, userID, updateID string) error
	statusesFn func(ctx context.Context) ([]model.UpdateStatusCompatibility, error)
}

func (m *mockUpdateService) GetDetailedUpdate(ctx context.Context, userID, updateID string) (*model.DetailedUpdate, error) {
	return m.getFn(ctx, userID, updateID)
}

func (m *mockUpdateService) ListDetailedUpdates(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.DetailedUpdate], error) {
	return m.listFn(ctx, userID, page)
}

func (m *mockUpdateService) CreateUpdate(ctx context.Context, userID string, req service.CreateUpdateRequest) (*model.DetailedUpdate, error) {
	return m.createFn(ctx, userID, req)
}

func (m *mockUpdateService) ChangeStatus(ctx context.Context, userID, updateID, rawStatus string) (*model.DetailedUpdate, error) {
	return m.changeFn(ctx, userID, updateID, rawStatus)
}

func (m *mockUpdateService) DeleteUpdate(ctx context.Context, userID, updateID string) error {
	return m.deleteFn(ctx, userID, updateID)
}

func (m *mockUpdateService) StatusCompatibilities(ctx context.Context) ([]model.UpdateStatusCompatibility, error) {
	return m.statusesFn(ctx)
}

type mockPackageService struct {
	getFn    func(ctx context.Context, userID, packageID string) (*model.PackageInfo, error)
	listFn   func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error)
	uploadFn func(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error)
	deleteFn func(ctx context.Context, userID, packageID string) error
}

func (m *mockPackageService) GetPackage(ctx context.Context, userID, packageID string) (*model.PackageInfo, error) {
	return m.getFn(ctx, userID, packageID)
}

func (m *mockPackageService) ListPackages(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error) {
	return m.listFn(ctx, userID, page)
}

func (m *mockPackageService) UploadPackage(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error) {
	return m.uploadFn(ctx, userID, fileName, content)
}

func (m *mockPackageService) DeletePackage(ctx context.Context, userID, packageID string) error {
	return m.deleteFn(ctx, userID, packageID)
}

type mockSegmentService struct {
	getFn    func(ctx context.Context, userID, segmentID string) (*model.Segment, error)
	listFn   func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error)
	createFn func(ctx context.Context, userID string, req service.CreateSegmentRequest) (*model.Segment, error)
	deleteFn func(ctx context.Context, userID, segmentID string) error
}

func (m *mockSegmentService) GetSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error) {
	return m.getFn(ctx, userID, segmentID)
}

func (m *mockSegmentService) ListSegments(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error) {
	return m.listFn(ctx, userID, page)
}

func (m *mockSegmentService) CreateSegment(ctx context.Context, userID string, req service.CreateSegmentRequest) (*model.Segment, error) {
	return m.createFn(ctx, userID, req)
}

func (m *mockSegmentService) DeleteSegment(ctx context.Context, userID, segmentID string) error {
	return m.deleteFn(ctx, userID, segmentID)
}

// --- Тестовый router ---

const testUserID = "user-1"

// newTestRouter регистрирует маршруты API без JWT; claims подставляются напрямую.
func newTestRouter(h *APIHandler) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			claims := &middleware.AuthClaims{
				Subject:       testUserID,
				SubjectType:   middleware.SubjectTypeUser,
				EffectiveRole: middleware.RoleMember,
			}
			ctx := context.WithValue(req.Context(), middleware.ContextKeyClaims, claims)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})

	r.Get("/api/v1/updates", h.ListUpdates)
	r.Post("/api/v1/updates", h.CreateUpdate)
	r.Get("/api/v1/updates/statuses", h.ListStatusCompatibilities)
	r.Get("/api/v1/updates/{updateId}", h.GetUpdate)
	r.Put("/api/v1/updates/{updateId}/status", h.ChangeUpdateStatus)
	r.Delete("/api/v1/updates/{updateId}", h.DeleteUpdate)
	r.Get("/api/v1/packages", h.ListPackages)
	r.Post("/api/v1/packages", h.UploadPackage)
	r.Get("/api/v1/packages/{packageId}", h.GetPackage)
	r.Delete("/api/v1/packages/{packageId}", h.DeletePackage)
	r.Get("/api/v1/segments", h.ListSegments)
	r.Post("/api/v1/segments", h.CreateSegment)
	r.Get("/api/v1/segments/{segmentId}", h.GetSegment)
	r.Delete("/api/v1/segments/{segmentId}", h.DeleteSegment)
	return r
}

func newTestHandler(u *mockUpdateService, p *mockPackageService, s *mockSegmentService) *APIHandler {
	return NewAPIHandler(NewHealthHandler(nil, 0), u, p, s, testLogger())
}

// doRequest выполняет запрос к router.
func doRequest(t *testing.T, h http.Handler, method, target, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}
