// detailed_update.go — представление обновления для чтения.
// DetailedUpdate объединяет Update с уже разрешёнными PackageInfo и Segment,
// чтобы клиент не запрашивал их отдельно. Не хранится, живёт до сериализации.
package model

import (
	"encoding/json"
	"time"
)

// DetailedUpdate — обновление с разрешёнными пакетом и сегментом.
type DetailedUpdate struct {
	UUID          string       `json:"uuid"`
	UserID        string       `json:"userId"`
	RevisionID    int64        `json:"revisionId"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Status        UpdateStatus `json:"status"`
	ScheduledDate *time.Time   `json:"scheduledDate,omitempty"`
	CreationDate  *time.Time   `json:"creationDate,omitempty"`
	PackageInfo   PackageInfo  `json:"packageInfo"`
	Segment       *Segment     `json:"segment,omitempty"`
	// AdditionalProperties разворачиваются в корень объекта, как у Update
	AdditionalProperties *Properties `json:"-"`
}

// NewDetailedUpdate собирает DetailedUpdate из обновления и уже разрешённых
// пакета и сегмента. Ввода-вывода нет: за соответствие packageInfo и segment
// полям packageId/segmentId отвечает вызывающий код. Если segment == nil,
// поле остаётся пустым даже при заданном segmentId.
func NewDetailedUpdate(u *Update, packageInfo PackageInfo, segment *Segment) DetailedUpdate {
	d := DetailedUpdate{
		UUID:          u.UUID,
		UserID:        u.UserID,
		RevisionID:    u.RevisionID,
		Name:          u.Name,
		Description:   u.Description,
		Status:        u.Status,
		ScheduledDate: u.ScheduledDate,
		PackageInfo:   packageInfo,
		Segment:       segment,
	}

	if props, ok := u.GetAdditionalProperties(); ok {
		d.AdditionalProperties = props.Clone()
	}
	if created, ok := u.GetCreationDate(); ok {
		d.CreationDate = &created
	}

	return d
}

// MarshalJSON кодирует известные поля и разворачивает AdditionalProperties в корень.
func (d DetailedUpdate) MarshalJSON() ([]byte, error) {
	type plain DetailedUpdate
	return marshalOpenObject(plain(d), d.AdditionalProperties, detailedUpdateFields)
}

// detailedUpdateFields — известные поля DetailedUpdate на проводе.
var detailedUpdateFields = map[string]struct{}{
	"uuid": {}, "userId": {}, "revisionId": {}, "name": {}, "description": {},
	"status": {}, "scheduledDate": {}, "creationDate": {}, "packageInfo": {},
	"segment": {},
}

// UnmarshalJSON декодирует представление, собирая неизвестные ключи в AdditionalProperties.
func (d *DetailedUpdate) UnmarshalJSON(data []byte) error {
	if isJSONNull(data) {
		return nil
	}

	type plain DetailedUpdate
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}

	extra, err := extractOpenProperties(data, detailedUpdateFields)
	if err != nil {
		return err
	}

	*d = DetailedUpdate(decoded)
	d.AdditionalProperties = extra
	return nil
}
