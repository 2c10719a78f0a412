// segments.go — сервис сегментов устройств (хранятся в Update Service).
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/devicehub/member-gateway/internal/domain/model"
)

// SegmentBackend — операции Update Service над сегментами.
type SegmentBackend interface {
	FetchSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error)
	ListSegments(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error)
	CreateSegment(ctx context.Context, s *model.Segment) (*model.Segment, error)
	DeleteSegment(ctx context.Context, userID, segmentID string) error
}

// CreateSegmentRequest — данные для создания сегмента.
type CreateSegmentRequest struct {
	Name        string
	Description *string
	DeviceIDs   []string
}

// SegmentService — сервис сегментов.
type SegmentService struct {
	backend SegmentBackend
	cache   *Cache[model.Segment]
	logger  *slog.Logger
}

// NewSegmentService создаёт сервис сегментов.
// Кэш хранит сегменты по значению: каждый вызов GetSegment получает свою копию.
func NewSegmentService(backend SegmentBackend, cache *Cache[model.Segment], logger *slog.Logger) *SegmentService {
	return &SegmentService{
		backend: backend,
		cache:   cache,
		logger:  logger.With(slog.String("component", "segment_service")),
	}
}

// GetSegment возвращает сегмент пользователя (из кэша или Update Service).
func (s *SegmentService) GetSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error) {
	key := ownedKey(userID, segmentID)
	if seg, ok := s.cache.Get(key); ok {
		c := seg.Clone()
		return &c, nil
	}

	seg, err := s.backend.FetchSegment(ctx, userID, segmentID)
	if err != nil {
		return nil, mapBackendError(err)
	}

	s.cache.Set(key, seg.Clone())
	return seg, nil
}

// ListSegments возвращает страницу сегментов пользователя.
func (s *SegmentService) ListSegments(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Segment], error) {
	result, err := s.backend.ListSegments(ctx, userID, page)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return result, nil
}

// CreateSegment создаёт сегмент с идентификатором, сгенерированным шлюзом.
func (s *SegmentService) CreateSegment(ctx context.Context, userID string, req CreateSegmentRequest) (*model.Segment, error) {
	seg, err := model.NewSegment(model.SegmentParams{
		ID:          uuid.NewString(),
		UserID:      userID,
		Name:        req.Name,
		Description: req.Description,
		DeviceIDs:   req.DeviceIDs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	created, err := s.backend.CreateSegment(ctx, seg)
	if err != nil {
		return nil, mapBackendError(err)
	}

	s.cache.Set(ownedKey(userID, created.ID), created.Clone())
	s.logger.Info("Сегмент создан",
		slog.String("user_id", userID),
		slog.String("segment_id", created.ID),
		slog.Int("devices", len(created.DeviceIDs)),
	)
	return created, nil
}

// DeleteSegment удаляет сегмент и инвалидирует кэш.
func (s *SegmentService) DeleteSegment(ctx context.Context, userID, segmentID string) error {
	s.cache.Delete(ownedKey(userID, segmentID))

	if err := s.backend.DeleteSegment(ctx, userID, segmentID); err != nil {
		return mapBackendError(err)
	}

	s.logger.Info("Сегмент удалён",
		slog.String("user_id", userID),
		slog.String("segment_id", segmentID),
	)
	return nil
}
