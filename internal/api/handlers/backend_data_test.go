package handlers

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	apierrors "github.com/devicehub/member-gateway/internal/api/errors"
	"github.com/devicehub/member-gateway/internal/domain/model"
	"github.com/devicehub/member-gateway/internal/service"
	"github.com/devicehub/member-gateway/internal/updateclient"
)

// setupUpdateBackend поднимает Update Service на httptest и собирает поверх него
// настоящие updateclient, UpdateService и APIHandler.
func setupUpdateBackend(t *testing.T, packages *mockPackageService, handler http.HandlerFunc) http.Handler {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := updateclient.New(srv.URL, srv.Client(), nil, testLogger())
	segments := &mockSegmentService{
		getFn: func(_ context.Context, userID, segmentID string) (*model.Segment, error) {
			return &model.Segment{ID: segmentID, UserID: userID, Name: "lab", DeviceIDs: []string{}}, nil
		},
	}
	updates := service.NewUpdateService(client, packages, segments, 4, testLogger())
	return newTestRouter(NewAPIHandler(NewHealthHandler(nil, 0), updates, packages, segments, testLogger()))
}

func packagesByID() *mockPackageService {
	return &mockPackageService{
		getFn: func(_ context.Context, userID, packageID string) (*model.PackageInfo, error) {
			return &model.PackageInfo{ID: packageID, UserID: userID, FileName: "fw.bin"}, nil
		},
	}
}

func backendUpdateJSON(id, packageID, status string) string {
	return fmt.Sprintf(`{"uuid":%q,"userId":%q,"revisionId":1,"name":"fw","packageId":%q,`+
		`"status":%q,"creationDate":"2026-01-10T08:00:00Z"}`, id, testUserID, packageID, status)
}

// TestGetUpdate_UnknownStatusFromBackend проверяет, что неизвестный статус
// в ответе Update Service даёт 502, а не ошибку клиента.
func TestGetUpdate_UnknownStatusFromBackend(t *testing.T) {
	router := setupUpdateBackend(t, packagesByID(), func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/users/"+testUserID+"/updates/"+testUpdateID {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(backendUpdateJSON(testUpdateID, testPackageID, "youpla")))
	})

	w := doRequest(t, router, http.MethodGet, "/api/v1/updates/"+testUpdateID, "", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("статус = %d, ожидался 502: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w.Body.String()); code != apierrors.CodeBadUpstreamData {
		t.Errorf("code = %q, ожидался %s", code, apierrors.CodeBadUpstreamData)
	}
}

// TestGetUpdate_KnownStatusFromBackend — тот же путь с корректным статусом.
func TestGetUpdate_KnownStatusFromBackend(t *testing.T) {
	router := setupUpdateBackend(t, packagesByID(), func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(backendUpdateJSON(testUpdateID, testPackageID, "published")))
	})

	w := doRequest(t, router, http.MethodGet, "/api/v1/updates/"+testUpdateID, "", "")
	if w.Code != http.StatusOK {
		t.Fatalf("статус = %d: %s", w.Code, w.Body.String())
	}
}

// TestListUpdates_DanglingPackage проверяет, что элемент страницы с удалённым
// пакетом даёт 502 для всего списка, а не 404.
func TestListUpdates_DanglingPackage(t *testing.T) {
	const gonePackageID = "0b2d3e4f-5a6b-4c3e-9a7f-6f1c2a4e8d1b"
	packages := &mockPackageService{
		getFn: func(_ context.Context, userID, packageID string) (*model.PackageInfo, error) {
			if packageID == gonePackageID {
				return nil, fmt.Errorf("%w: пакет %s", service.ErrNotFound, packageID)
			}
			return &model.PackageInfo{ID: packageID, UserID: userID}, nil
		},
	}
	router := setupUpdateBackend(t, packages, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprintf(w, `{"items":[%s,%s],"total":2,"limit":20,"offset":0}`,
			backendUpdateJSON("u-1", testPackageID, "draft"),
			backendUpdateJSON("u-2", gonePackageID, "draft"))
	})

	w := doRequest(t, router, http.MethodGet, "/api/v1/updates", "", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("статус = %d, ожидался 502: %s", w.Code, w.Body.String())
	}
	if code := errorCode(t, w.Body.String()); code != apierrors.CodeBadUpstreamData {
		t.Errorf("code = %q", code)
	}
}

// TestCreateUpdate_ReservedAdditionalProperties проверяет, что свойства,
// совпадающие с полями обновления, отклоняются до обращения к Update Service.
func TestCreateUpdate_ReservedAdditionalProperties(t *testing.T) {
	var calls atomic.Int32
	router := setupUpdateBackend(t, packagesByID(), func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	tests := []struct {
		name  string
		props string
	}{
		{"userId", `{"userId":"victim"}`},
		{"status", `{"status":"published"}`},
		{"оба", `{"userId":"victim","status":"published"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := fmt.Sprintf(`{"name":"fw","packageId":%q,"additionalProperties":%s}`, testPackageID, tt.props)
			w := doRequest(t, router, http.MethodPost, "/api/v1/updates", "application/json", body)
			if w.Code != http.StatusBadRequest {
				t.Fatalf("статус = %d, ожидался 400: %s", w.Code, w.Body.String())
			}
			if code := errorCode(t, w.Body.String()); code != apierrors.CodeValidationError {
				t.Errorf("code = %q", code)
			}
		})
	}
	if n := calls.Load(); n != 0 {
		t.Errorf("Update Service вызван %d раз", n)
	}
}
