// update.go — обновление (Update) и его конструктор.
// Update — запись, принадлежащая пользователю; статусом управляет
// Update Service, шлюз только создаёт черновики и проксирует переходы.
package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ValidationError — нарушены обязательные поля при конструировании модели.
type ValidationError struct {
	// Field — имя поля на проводе
	Field string
	// Reason — описание нарушения
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// Update — обновление прошивки/пакета для устройств пользователя.
// Поля, отсутствующие на проводе, представлены nil.
type Update struct {
	// UUID — идентификатор обновления (генерируется при создании)
	UUID string `json:"uuid"`
	// UserID — владелец обновления (sub из JWT)
	UserID string `json:"userId"`
	// RevisionID — номер ревизии, растёт монотонно, назначается Update Service
	RevisionID int64 `json:"revisionId"`
	// Name — человекочитаемое имя
	Name string `json:"name"`
	// Description — описание (может быть пустым)
	Description string `json:"description"`
	// PackageID — идентификатор пакета в Package Service
	PackageID string `json:"packageId"`
	// SegmentID — целевой сегмент устройств (опционально)
	SegmentID *string `json:"segmentId,omitempty"`
	// CreationDate — время создания (опционально)
	CreationDate *time.Time `json:"creationDate,omitempty"`
	// ScheduledDate — запланированная дата публикации (опционально)
	ScheduledDate *time.Time `json:"scheduledDate,omitempty"`
	// Status — текущий статус
	Status UpdateStatus `json:"status"`
	// AdditionalProperties — открытый набор свойств; на проводе
	// разворачивается в корень объекта рядом с известными полями
	AdditionalProperties *Properties `json:"-"`
}

// updateFields — известные поля Update на проводе.
var updateFields = map[string]struct{}{
	"uuid": {}, "userId": {}, "revisionId": {}, "name": {}, "description": {},
	"packageId": {}, "segmentId": {}, "creationDate": {}, "scheduledDate": {},
	"status": {},
}

// UpdateParams — входные данные для NewUpdate.
type UpdateParams struct {
	UUID                 string
	UserID               string
	RevisionID           int64
	Name                 string
	Description          string
	PackageID            string
	SegmentID            *string
	CreationDate         *time.Time
	ScheduledDate        *time.Time
	Status               UpdateStatus
	AdditionalProperties *Properties
}

// NewUpdate создаёт Update из параметров, копируя опциональные поля.
// Пустой статус означает черновик. Возвращает *ValidationError,
// если обязательное поле не задано.
func NewUpdate(p UpdateParams) (*Update, error) {
	required := []struct{ field, value string }{
		{"uuid", p.UUID},
		{"userId", p.UserID},
		{"name", p.Name},
		{"packageId", p.PackageID},
	}
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			return nil, &ValidationError{Field: r.field, Reason: "обязательное поле не задано"}
		}
	}
	if p.RevisionID < 0 {
		return nil, &ValidationError{Field: "revisionId", Reason: "не может быть отрицательным"}
	}

	status := p.Status
	if status == "" {
		status = StatusDraft
	}
	if !status.IsValid() {
		return nil, &UnknownStatusError{Value: string(status)}
	}

	if p.SegmentID != nil && strings.TrimSpace(*p.SegmentID) == "" {
		return nil, &ValidationError{Field: "segmentId", Reason: "не может быть пустой строкой"}
	}

	// Свойства не могут подменять известные поля на проводе
	for _, key := range p.AdditionalProperties.Keys() {
		if _, reserved := updateFields[key]; reserved {
			return nil, &ValidationError{
				Field:  "additionalProperties." + key,
				Reason: "ключ совпадает с полем обновления",
			}
		}
	}

	return &Update{
		UUID:                 p.UUID,
		UserID:               p.UserID,
		RevisionID:           p.RevisionID,
		Name:                 p.Name,
		Description:          p.Description,
		PackageID:            p.PackageID,
		SegmentID:            copyString(p.SegmentID),
		CreationDate:         copyTime(p.CreationDate),
		ScheduledDate:        copyTime(p.ScheduledDate),
		Status:               status,
		AdditionalProperties: p.AdditionalProperties.Clone(),
	}, nil
}

// GetCreationDate возвращает дату создания, если она задана.
func (u *Update) GetCreationDate() (time.Time, bool) {
	if u.CreationDate == nil {
		return time.Time{}, false
	}
	return *u.CreationDate, true
}

// GetAdditionalProperties возвращает дополнительные свойства, если они заданы.
func (u *Update) GetAdditionalProperties() (*Properties, bool) {
	if u.AdditionalProperties == nil {
		return nil, false
	}
	return u.AdditionalProperties, true
}

// HasSegment сообщает, нацелено ли обновление на сегмент.
func (u *Update) HasSegment() bool {
	return u.SegmentID != nil
}

// MarshalJSON кодирует известные поля и разворачивает AdditionalProperties в корень.
func (u Update) MarshalJSON() ([]byte, error) {
	type plain Update
	return marshalOpenObject(plain(u), u.AdditionalProperties, updateFields)
}

// UnmarshalJSON декодирует известные поля; все прочие ключи корня
// попадают в AdditionalProperties в исходном порядке.
// Неизвестный статус возвращается как *UnknownStatusError.
func (u *Update) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}

	type plain Update
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := extractOpenProperties(data, updateFields)
	if err != nil {
		return err
	}

	*u = Update(decoded)
	u.AdditionalProperties = extra
	return nil
}

// --- Открытые объекты ---

// marshalOpenObject кодирует v и дописывает свойства props в тот же JSON-объект.
// Ключи props из reserved пропускаются: известные поля v всегда побеждают.
func marshalOpenObject(v any, props *Properties, reserved map[string]struct{}) ([]byte, error) {
	known, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	props = withoutKeys(props, reserved)
	if props.Len() == 0 {
		return known, nil
	}

	extra, err := props.MarshalJSON()
	if err != nil {
		return nil, err
	}

	// known = {...}, extra = {...}: склеиваем без внешних скобок
	known = bytes.TrimSpace(known)
	var buf bytes.Buffer
	buf.Grow(len(known) + len(extra))
	buf.Write(known[:len(known)-1])
	if len(known) > 2 {
		buf.WriteByte(',')
	}
	buf.Write(extra[1:])
	return buf.Bytes(), nil
}

// withoutKeys возвращает props без ключей из reserved.
// Если пересечения нет, возвращает props как есть.
func withoutKeys(props *Properties, reserved map[string]struct{}) *Properties {
	var filtered *Properties
	for _, key := range props.Keys() {
		if _, ok := reserved[key]; !ok {
			continue
		}
		if filtered == nil {
			filtered = props.Clone()
		}
		filtered.Delete(key)
	}
	if filtered == nil {
		return props
	}
	return filtered
}

// extractOpenProperties возвращает ключи объекта data, не входящие в known.
// Если таких ключей нет, возвращает nil (свойства отсутствуют).
func extractOpenProperties(data []byte, known map[string]struct{}) (*Properties, error) {
	all, err := ParseProperties(data)
	if err != nil {
		return nil, err
	}

	var extra *Properties
	for _, key := range all.Keys() {
		if _, ok := known[key]; ok {
			continue
		}
		if extra == nil {
			extra = NewProperties()
		}
		v, _ := all.Get(key)
		extra.Set(key, v)
	}
	return extra, nil
}

func isJSONNull(data []byte) bool {
	return bytes.Equal(bytes.TrimSpace(data), []byte("null"))
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
