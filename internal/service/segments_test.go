package service

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/devicehub/member-gateway/internal/backend"
	"github.com/devicehub/member-gateway/internal/domain/model"
)

// TestSegmentService_Create проверяет создание сегмента с UUID шлюза.
func TestSegmentService_Create(t *testing.T) {
	cache := NewCache[model.Segment]("test_seg_create", 10, time.Minute)
	sb := &mockSegmentBackend{
		createFn: func(_ context.Context, s *model.Segment) (*model.Segment, error) {
			return s, nil
		},
	}
	svc := NewSegmentService(sb, cache, testLogger())

	seg, err := svc.CreateSegment(context.Background(), "user-1", CreateSegmentRequest{
		Name:      "lab",
		DeviceIDs: []string{"dev-1"},
	})
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if len(seg.ID) != 36 || seg.UserID != "user-1" {
		t.Errorf("seg = %+v", seg)
	}
	if _, ok := cache.Get(ownedKey("user-1", seg.ID)); !ok {
		t.Error("созданный сегмент должен попасть в кэш")
	}
}

// TestSegmentService_Create_Validation проверяет отказ для пустого имени.
func TestSegmentService_Create_Validation(t *testing.T) {
	sb := &mockSegmentBackend{
		createFn: func(context.Context, *model.Segment) (*model.Segment, error) {
			t.Error("CreateSegment не должен вызываться")
			return nil, nil
		},
	}
	svc := NewSegmentService(sb, NewCache[model.Segment]("test_seg_validation", 10, time.Minute), testLogger())

	_, err := svc.CreateSegment(context.Background(), "user-1", CreateSegmentRequest{})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ожидалась ErrValidation, получено: %v", err)
	}
}

// TestSegmentService_GetAndDelete проверяет кэширование и инвалидацию.
func TestSegmentService_GetAndDelete(t *testing.T) {
	calls := 0
	sb := &mockSegmentBackend{
		fetchFn: func(_ context.Context, userID, segmentID string) (*model.Segment, error) {
			calls++
			if segmentID == "missing" {
				return nil, &backend.StatusError{StatusCode: http.StatusNotFound}
			}
			return &model.Segment{ID: segmentID, UserID: userID}, nil
		},
		deleteFn: func(context.Context, string, string) error { return nil },
		listFn: func(context.Context, string, model.PageRequest) (*model.Page[model.Segment], error) {
			return &model.Page[model.Segment]{Items: []model.Segment{}}, nil
		},
	}
	svc := NewSegmentService(sb, NewCache[model.Segment]("test_seg_getdelete", 10, time.Minute), testLogger())
	ctx := context.Background()

	for range 2 {
		if _, err := svc.GetSegment(ctx, "user-1", "seg-1"); err != nil {
			t.Fatalf("неожиданная ошибка: %v", err)
		}
	}
	if calls != 1 {
		t.Errorf("обращений: %d, ожидалось 1", calls)
	}

	if err := svc.DeleteSegment(ctx, "user-1", "seg-1"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if _, err := svc.GetSegment(ctx, "user-1", "seg-1"); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if calls != 2 {
		t.Errorf("после удаления запись должна перечитываться, обращений: %d", calls)
	}

	if _, err := svc.GetSegment(ctx, "user-1", "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("ожидалась ErrNotFound, получено: %v", err)
	}

	if _, err := svc.ListSegments(ctx, "user-1", model.PageRequest{Limit: 10}); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
}

// TestSegmentService_GetSegment_CopyIsolation проверяет, что изменение
// возвращённого сегмента не портит запись кэша.
func TestSegmentService_GetSegment_CopyIsolation(t *testing.T) {
	sb := &mockSegmentBackend{
		fetchFn: func(_ context.Context, userID, segmentID string) (*model.Segment, error) {
			return &model.Segment{ID: segmentID, UserID: userID, Name: "lab", DeviceIDs: []string{"dev-1"}}, nil
		},
	}
	svc := NewSegmentService(sb, NewCache[model.Segment]("test_seg_isolation", 10, time.Minute), testLogger())
	ctx := context.Background()

	first, err := svc.GetSegment(ctx, "user-1", "seg-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	first.Name = "changed"
	first.DeviceIDs[0] = "dev-x"

	second, err := svc.GetSegment(ctx, "user-1", "seg-1")
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if second.Name != "lab" || second.DeviceIDs[0] != "dev-1" {
		t.Errorf("кэш изменён через предыдущий результат: %+v", second)
	}

	second.DeviceIDs[0] = "dev-y"
	third, _ := svc.GetSegment(ctx, "user-1", "seg-1")
	if third.DeviceIDs[0] != "dev-1" {
		t.Errorf("попадания в кэш делят срез устройств: %+v", third)
	}
}
