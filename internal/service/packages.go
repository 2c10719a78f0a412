// packages.go — сервис пакетов: метаданные и потоковая загрузка через Package Service.
// PackageInfo неизменяем после создания, поэтому записи кэшируются
// и инвалидируются только при удалении.
package service

import (
	"context"
	"io"
	"log/slog"

	"github.com/devicehub/member-gateway/internal/domain/model"
)

// PackageBackend — операции Package Service, нужные сервису.
type PackageBackend interface {
	FetchPackageInfo(ctx context.Context, userID, packageID string) (*model.PackageInfo, error)
	ListPackages(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error)
	UploadPackage(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error)
	DeletePackage(ctx context.Context, userID, packageID string) error
}

// PackageService — сервис пакетов.
type PackageService struct {
	backend PackageBackend
	cache   *Cache[model.PackageInfo]
	logger  *slog.Logger
}

// NewPackageService создаёт сервис пакетов.
func NewPackageService(backend PackageBackend, cache *Cache[model.PackageInfo], logger *slog.Logger) *PackageService {
	return &PackageService{
		backend: backend,
		cache:   cache,
		logger:  logger.With(slog.String("component", "package_service")),
	}
}

// GetPackage возвращает метаданные пакета пользователя (из кэша или Package Service).
func (s *PackageService) GetPackage(ctx context.Context, userID, packageID string) (*model.PackageInfo, error) {
	key := ownedKey(userID, packageID)
	if info, ok := s.cache.Get(key); ok {
		return &info, nil
	}

	info, err := s.backend.FetchPackageInfo(ctx, userID, packageID)
	if err != nil {
		return nil, mapBackendError(err)
	}

	s.cache.Set(key, *info)
	return info, nil
}

// ListPackages возвращает страницу пакетов пользователя и прогревает кэш.
func (s *PackageService) ListPackages(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error) {
	result, err := s.backend.ListPackages(ctx, userID, page)
	if err != nil {
		return nil, mapBackendError(err)
	}

	for _, info := range result.Items {
		s.cache.Set(ownedKey(userID, info.ID), info)
	}
	return result, nil
}

// UploadPackage потоково загружает пакет в Package Service.
func (s *PackageService) UploadPackage(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error) {
	info, err := s.backend.UploadPackage(ctx, userID, fileName, content)
	if err != nil {
		return nil, mapBackendError(err)
	}

	s.cache.Set(ownedKey(userID, info.ID), *info)
	return info, nil
}

// DeletePackage удаляет пакет и инвалидирует кэш.
func (s *PackageService) DeletePackage(ctx context.Context, userID, packageID string) error {
	// Инвалидируем до запроса: при ошибке запись перечитается
	s.cache.Delete(ownedKey(userID, packageID))

	if err := s.backend.DeletePackage(ctx, userID, packageID); err != nil {
		return mapBackendError(err)
	}

	s.logger.Info("Пакет удалён",
		slog.String("user_id", userID),
		slog.String("package_id", packageID),
	)
	return nil
}
