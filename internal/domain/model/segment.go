// segment.go — сегмент устройств, на который нацеливается обновление.
package model

import (
	"fmt"
	"strings"
	"time"
)

// Segment — именованная группа устройств пользователя (из Update Service).
type Segment struct {
	// ID — идентификатор сегмента
	ID string `json:"id"`
	// UserID — владелец сегмента
	UserID string `json:"userId"`
	// Name — имя сегмента
	Name string `json:"name"`
	// Description — описание (опционально)
	Description *string `json:"description,omitempty"`
	// DeviceIDs — устройства, входящие в сегмент
	DeviceIDs []string `json:"deviceIds"`
	// CreationDate — время создания (опционально)
	CreationDate *time.Time `json:"creationDate,omitempty"`
}

// SegmentParams — входные данные для NewSegment.
type SegmentParams struct {
	ID           string
	UserID       string
	Name         string
	Description  *string
	DeviceIDs    []string
	CreationDate *time.Time
}

// NewSegment создаёт Segment, копируя входные данные.
// Возвращает *ValidationError, если обязательное поле не задано
// или среди устройств есть пустой идентификатор.
func NewSegment(p SegmentParams) (*Segment, error) {
	required := []struct{ field, value string }{
		{"id", p.ID},
		{"userId", p.UserID},
		{"name", p.Name},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &ValidationError{Field: r.field, Reason: "обязательное поле не задано"}
		}
	}

	devices := make([]string, 0, len(p.DeviceIDs))
	for i, id := range p.DeviceIDs {
		if strings.TrimSpace(id) == "" {
			return nil, &ValidationError{
				Field:  fmt.Sprintf("deviceIds[%d]", i),
				Reason: "пустой идентификатор устройства",
			}
		}
		devices = append(devices, id)
	}

	return &Segment{
		ID:           p.ID,
		UserID:       p.UserID,
		Name:         p.Name,
		Description:  copyString(p.Description),
		DeviceIDs:    devices,
		CreationDate: copyTime(p.CreationDate),
	}, nil
}

// Clone возвращает независимую копию сегмента.
func (s Segment) Clone() Segment {
	c := s
	c.Description = copyString(s.Description)
	c.CreationDate = copyTime(s.CreationDate)
	if s.DeviceIDs != nil {
		c.DeviceIDs = append([]string(nil), s.DeviceIDs...)
	}
	return c
}
