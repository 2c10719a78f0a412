// updates.go — сервис обновлений.
// Собирает DetailedUpdate: обновление из Update Service, пакет и сегмент
// разрешаются параллельно (errgroup), любая ошибка разрешения прерывает
// сборку до вызова model.NewDetailedUpdate.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"github.com/devicehub/member-gateway/internal/domain/model"
)

// Prometheus-метрики сборки DetailedUpdate.
var (
	detailedUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "mg_detailed_updates_total",
		Help: "Количество собранных DetailedUpdate (по результату).",
	}, []string{"result"})

	resolveDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "mg_update_resolve_duration_seconds",
		Help:    "Длительность разрешения пакета и сегмента для обновления.",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	})
)

// UpdateBackend — операции Update Service над обновлениями.
type UpdateBackend interface {
	GetUpdate(ctx context.Context, userID, updateID string) (*model.Update, error)
	ListUpdates(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.Update], error)
	CreateUpdate(ctx context.Context, u *model.Update) (*model.Update, error)
	ChangeStatus(ctx context.Context, userID, updateID string, target model.UpdateStatus) (*model.Update, error)
	DeleteUpdate(ctx context.Context, userID, updateID string) error
	StatusCompatibilities(ctx context.Context) ([]model.UpdateStatusCompatibility, error)
}

// PackageResolver — разрешение packageId в PackageInfo.
type PackageResolver interface {
	GetPackage(ctx context.Context, userID, packageID string) (*model.PackageInfo, error)
}

// SegmentResolver — разрешение segmentId в Segment.
type SegmentResolver interface {
	GetSegment(ctx context.Context, userID, segmentID string) (*model.Segment, error)
}

// CreateUpdateRequest — данные для создания обновления.
type CreateUpdateRequest struct {
	Name                 string
	Description          string
	PackageID            string
	SegmentID            *string
	ScheduledDate        *time.Time
	AdditionalProperties *model.Properties
}

// UpdateService — сервис обновлений.
type UpdateService struct {
	updates     UpdateBackend
	packages    PackageResolver
	segments    SegmentResolver
	concurrency int
	logger      *slog.Logger
}

// NewUpdateService создаёт сервис обновлений.
// concurrency — сколько обновлений страницы разрешается одновременно (MG_RESOLVE_CONCURRENCY).
func NewUpdateService(
	updates UpdateBackend,
	packages PackageResolver,
	segments SegmentResolver,
	concurrency int,
	logger *slog.Logger,
) *UpdateService {
	if concurrency < 1 {
		concurrency = 1
	}
	return &UpdateService{
		updates:     updates,
		packages:    packages,
		segments:    segments,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "update_service")),
	}
}

// GetDetailedUpdate возвращает обновление пользователя с разрешёнными пакетом и сегментом.
func (s *UpdateService) GetDetailedUpdate(ctx context.Context, userID, updateID string) (*model.DetailedUpdate, error) {
	u, err := s.updates.GetUpdate(ctx, userID, updateID)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return s.detail(ctx, userID, u)
}

// ListDetailedUpdates возвращает страницу обновлений пользователя.
// Элементы разрешаются параллельно, не более concurrency одновременно;
// порядок страницы сохраняется. Страница собирается целиком или не
// собирается: неразрешённая ссылка элемента (например, удалённый пакет)
// возвращается как ErrUpstreamData, а не как 404 списка.
func (s *UpdateService) ListDetailedUpdates(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.DetailedUpdate], error) {
	result, err := s.updates.ListUpdates(ctx, userID, page)
	if err != nil {
		return nil, mapBackendError(err)
	}

	items := make([]model.DetailedUpdate, len(result.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range result.Items {
		g.Go(func() error {
			d, err := s.detail(gctx, userID, &result.Items[i])
			if errors.Is(err, ErrNotFound) {
				return fmt.Errorf("%w: %w", ErrUpstreamData, err)
			}
			if err != nil {
				return err
			}
			items[i] = *d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &model.Page[model.DetailedUpdate]{
		Items:  items,
		Total:  result.Total,
		Limit:  result.Limit,
		Offset: result.Offset,
	}, nil
}

// CreateUpdate создаёт черновик обновления.
// Пакет и сегмент проверяются до обращения к Update Service:
// ссылка на чужой или несуществующий ресурс не сохраняется.
func (s *UpdateService) CreateUpdate(ctx context.Context, userID string, req CreateUpdateRequest) (*model.DetailedUpdate, error) {
	u, err := model.NewUpdate(model.UpdateParams{
		UUID:                 uuid.NewString(),
		UserID:               userID,
		Name:                 req.Name,
		Description:          req.Description,
		PackageID:            req.PackageID,
		SegmentID:            req.SegmentID,
		ScheduledDate:        req.ScheduledDate,
		Status:               model.StatusDraft,
		AdditionalProperties: req.AdditionalProperties,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrValidation, err)
	}

	pkg, seg, err := s.resolve(ctx, userID, u)
	if err != nil {
		return nil, err
	}

	created, err := s.updates.CreateUpdate(ctx, u)
	if err != nil {
		return nil, mapBackendError(err)
	}

	s.logger.Info("Обновление создано",
		slog.String("user_id", userID),
		slog.String("update_id", created.UUID),
		slog.String("package_id", created.PackageID),
	)

	d := model.NewDetailedUpdate(created, *pkg, seg)
	return &d, nil
}

// ChangeStatus переводит обновление в статус rawStatus.
// Неизвестный статус возвращается как *model.UnknownStatusError и в
// Update Service не передаётся.
func (s *UpdateService) ChangeStatus(ctx context.Context, userID, updateID, rawStatus string) (*model.DetailedUpdate, error) {
	target, err := model.ParseUpdateStatus(rawStatus)
	if err != nil {
		return nil, err
	}

	updated, err := s.updates.ChangeStatus(ctx, userID, updateID, target)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return s.detail(ctx, userID, updated)
}

// DeleteUpdate удаляет обновление пользователя.
func (s *UpdateService) DeleteUpdate(ctx context.Context, userID, updateID string) error {
	if err := s.updates.DeleteUpdate(ctx, userID, updateID); err != nil {
		return mapBackendError(err)
	}

	s.logger.Info("Обновление удалено",
		slog.String("user_id", userID),
		slog.String("update_id", updateID),
	)
	return nil
}

// StatusCompatibilities возвращает таблицу совместимости статусов Update Service.
func (s *UpdateService) StatusCompatibilities(ctx context.Context) ([]model.UpdateStatusCompatibility, error) {
	table, err := s.updates.StatusCompatibilities(ctx)
	if err != nil {
		return nil, mapBackendError(err)
	}
	return table, nil
}

// detail разрешает пакет и сегмент обновления и собирает DetailedUpdate.
func (s *UpdateService) detail(ctx context.Context, userID string, u *model.Update) (*model.DetailedUpdate, error) {
	pkg, seg, err := s.resolve(ctx, userID, u)
	if err != nil {
		detailedUpdatesTotal.WithLabelValues("error").Inc()
		return nil, err
	}

	d := model.NewDetailedUpdate(u, *pkg, seg)
	detailedUpdatesTotal.WithLabelValues("success").Inc()
	return &d, nil
}

// resolve параллельно получает пакет и, если задан segmentId, сегмент обновления.
func (s *UpdateService) resolve(ctx context.Context, userID string, u *model.Update) (*model.PackageInfo, *model.Segment, error) {
	start := time.Now()
	defer func() { resolveDuration.Observe(time.Since(start).Seconds()) }()

	var (
		pkg *model.PackageInfo
		seg *model.Segment
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info, err := s.packages.GetPackage(gctx, userID, u.PackageID)
		if err != nil {
			return fmt.Errorf("пакет %s обновления %s: %w", u.PackageID, u.UUID, err)
		}
		pkg = info
		return nil
	})
	if u.HasSegment() {
		segmentID := *u.SegmentID
		g.Go(func() error {
			resolved, err := s.segments.GetSegment(gctx, userID, segmentID)
			if err != nil {
				return fmt.Errorf("сегмент %s обновления %s: %w", segmentID, u.UUID, err)
			}
			seg = resolved
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("Не удалось разрешить ссылки обновления",
			slog.String("update_id", u.UUID),
			slog.String("error", err.Error()),
		)
		return nil, nil, err
	}
	return pkg, seg, nil
}
