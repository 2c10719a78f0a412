package service

import (
	"context"
	"io"
	"log/slog"
	"os"

	"github.com/devicehub/member-gateway/internal/domain/model"
)

// testLogger создаёт logger для тестов.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

// --- Mock Update Service ---

type mockUpdateBackend struct {
	getUpdateFn             func(ctx context.Context, userID, updateID string) (*model.Update, error)
	listUpdatesFn           func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Update], error)
	createUpdateFn          func(ctx context.Context, u *model.Update) (*model.Update, error)
	changeStatusFn          func(ctx context.Context, userID, updateID string, target model.UpdateStatus) (*model.Update, error)
	deleteUpdateFn          func(ctx context.Context, userID, updateID string) error
	statusCompatibilitiesFn func(ctx context.Context) ([]model.UpdateStatusCompatibility, error)
}

func (m *mockUpdateBackend) GetUpdate(ctx context.Context, userID, updateID string) (*model.Update, error) {
	return m.getUpdateFn(ctx, userID, updateID)
}

func (m *mockUpdateBackend) ListUpdates(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Update], error) {
	return m.listUpdatesFn(ctx, userID, page)
}

func (m *mockUpdateBackend) CreateUpdate(ctx context.Context, u *model.Update) (*model.Update, error) {
	return m.createUpdateFn(ctx, u)
}

func (m *mockUpdateBackend) ChangeStatus(ctx context.Context, userID, updateID string, target model.UpdateStatus) (*model.Update, error) {
	return m.changeStatusFn(ctx, userID, updateID, target)
}

func (m *mockUpdateBackend) DeleteUpdate(ctx context.Context, userID, updateID string) error {
	return m.deleteUpdateFn(ctx, userID, updateID)
}

func (m *mockUpdateBackend) StatusCompatibilities(ctx context.Context) ([]model.UpdateStatusCompatibility, error) {
	return m.statusCompatibilitiesFn(ctx)
}

// --- Mock Package Service ---

type mockPackageBackend struct {
	fetchFn  func(ctx context.Context, userID, packageID string) (*model.PackageInfo, error)
	listFn   func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error)
	uploadFn func(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error)
	deleteFn func(ctx context.Context, userID, packageID string) error
}

func (m *mockPackageBackend) FetchPackageInfo(ctx context.Context, userID, packageID string) (*model.PackageInfo, error) {
	return m.fetchFn(ctx, userID, packageID)
}

func (m *mockPackageBackend) ListPackages(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error) {
	return m.listFn(ctx, userID, page)
}

func (m *mockPackageBackend) UploadPackage(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error) {
	return m.uploadFn(ctx, userID, fileName, content)
}

func (m *mockPackageBackend) DeletePackage(ctx context.Context, userID, packageID string) error {
	return m.deleteFn(ctx, userID, packageID)
}

// --- Mock сегментов ---

type mockSegmentBackend struct {
	fetchFn  func(ctx context.Context, userID, segmentID string) (*model.Segment, error)
	listFn   func(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error)
	createFn func(ctx context.Context, s *model.Segment) (*model.Segment, error)
	deleteFn func(ctx context.Context, userID, segmentID string) error
}

func (m *mockSegmentBackend) FetchSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error) {
	return m.fetchFn(ctx, userID, segmentID)
}

func (m *mockSegmentBackend) ListSegments(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error) {
	return m.listFn(ctx, userID, page)
}

func (m *mockSegmentBackend) CreateSegment(ctx context.Context, s *model.Segment) (*model.Segment, error) {
	return m.createFn(ctx, s)
}

func (m *mockSegmentBackend) DeleteSegment(ctx context.Context, userID, segmentID string) error {
	return m.deleteFn(ctx, userID, segmentID)
}
