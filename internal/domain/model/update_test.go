package model

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

func validUpdateParams() UpdateParams {
	return UpdateParams{
		UUID:        "2b1b7c3e-0000-4000-8000-000000000001",
		UserID:      "user-1",
		Name:        "firmware 1.2",
		Description: "исправления",
		PackageID:   "pkg-1",
	}
}

// TestNewUpdate_Defaults проверяет статус по умолчанию и отсутствие опциональных полей.
func TestNewUpdate_Defaults(t *testing.T) {
	u, err := NewUpdate(validUpdateParams())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if u.Status != StatusDraft {
		t.Errorf("Status = %q, ожидался %q", u.Status, StatusDraft)
	}
	if _, ok := u.GetCreationDate(); ok {
		t.Error("CreationDate должен отсутствовать")
	}
	if _, ok := u.GetAdditionalProperties(); ok {
		t.Error("AdditionalProperties должны отсутствовать")
	}
	if u.HasSegment() {
		t.Error("сегмент не задан")
	}
}

// TestNewUpdate_Validation проверяет отказ при нарушении обязательных полей.
func TestNewUpdate_Validation(t *testing.T) {
	empty := ""
	tests := []struct {
		name   string
		mutate func(p *UpdateParams)
		field  string
	}{
		{"без uuid", func(p *UpdateParams) { p.UUID = "" }, "uuid"},
		{"без userId", func(p *UpdateParams) { p.UserID = " " }, "userId"},
		{"без name", func(p *UpdateParams) { p.Name = "" }, "name"},
		{"без packageId", func(p *UpdateParams) { p.PackageID = "" }, "packageId"},
		{"отрицательная ревизия", func(p *UpdateParams) { p.RevisionID = -1 }, "revisionId"},
		{"пустой segmentId", func(p *UpdateParams) { p.SegmentID = &empty }, "segmentId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := validUpdateParams()
			tt.mutate(&p)

			_, err := NewUpdate(p)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("ожидалась ValidationError, получено: %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Field = %q, ожидалось %q", vErr.Field, tt.field)
			}
		})
	}
}

// TestNewUpdate_UnknownStatus проверяет отказ для статуса вне набора.
func TestNewUpdate_UnknownStatus(t *testing.T) {
	p := validUpdateParams()
	p.Status = "youpla"

	_, err := NewUpdate(p)
	var unknown *UnknownStatusError
	if !errors.As(err, &unknown) {
		t.Fatalf("ожидалась UnknownStatusError, получено: %v", err)
	}
}

// TestNewUpdate_CopiesOptional проверяет, что опциональные поля копируются.
func TestNewUpdate_CopiesOptional(t *testing.T) {
	seg := "seg-1"
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	props := NewProperties()
	props.Set("channel", StringValue("beta"))

	p := validUpdateParams()
	p.SegmentID = &seg
	p.CreationDate = &created
	p.AdditionalProperties = props

	u, err := NewUpdate(p)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	seg = "seg-2"
	created = created.Add(time.Hour)
	props.Set("channel", StringValue("stable"))

	if *u.SegmentID != "seg-1" {
		t.Errorf("SegmentID = %q, ожидался seg-1", *u.SegmentID)
	}
	if got, _ := u.GetCreationDate(); !got.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("CreationDate = %v", got)
	}
	v, _ := u.AdditionalProperties.Get("channel")
	if s, _ := v.AsString(); s != "beta" {
		t.Errorf("channel = %q, ожидалось beta", s)
	}
}

// TestUpdate_JSONFlattensProperties проверяет разворачивание свойств в корень объекта.
func TestUpdate_JSONFlattensProperties(t *testing.T) {
	props := NewProperties()
	props.Set("channel", StringValue("beta"))
	props.Set("priority", IntValue(3))

	p := validUpdateParams()
	p.AdditionalProperties = props
	u, err := NewUpdate(p)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	s := string(out)
	if !strings.HasSuffix(s, `"status":"draft","channel":"beta","priority":3}`) {
		t.Errorf("Marshal = %s", s)
	}
	if strings.Contains(s, "creationDate") || strings.Contains(s, "segmentId") {
		t.Errorf("отсутствующие поля не должны кодироваться: %s", s)
	}
}

// TestNewUpdate_ReservedPropertyKeys проверяет отказ для свойств,
// совпадающих с известными полями обновления.
func TestNewUpdate_ReservedPropertyKeys(t *testing.T) {
	for _, key := range []string{"userId", "status", "uuid", "packageId"} {
		t.Run(key, func(t *testing.T) {
			props := NewProperties()
			props.Set("channel", StringValue("beta"))
			props.Set(key, StringValue("victim"))

			p := validUpdateParams()
			p.AdditionalProperties = props

			_, err := NewUpdate(p)
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("ожидалась ValidationError, получено: %v", err)
			}
			if vErr.Field != "additionalProperties."+key {
				t.Errorf("Field = %q", vErr.Field)
			}
		})
	}
}

// TestUpdate_MarshalSkipsCollidingProperties проверяет, что свойство с именем
// известного поля не попадает в JSON и не подменяет значение поля.
func TestUpdate_MarshalSkipsCollidingProperties(t *testing.T) {
	props := NewProperties()
	props.Set("userId", StringValue("victim"))
	props.Set("status", StringValue("published"))
	props.Set("channel", StringValue("beta"))

	u := Update{
		UUID:                 "u1",
		UserID:               "user-1",
		Name:                 "n",
		PackageID:            "p1",
		Status:               StatusDraft,
		AdditionalProperties: props,
	}

	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	s := string(out)
	if n := strings.Count(s, `"userId"`); n != 1 {
		t.Errorf("userId встречается %d раз: %s", n, s)
	}
	if n := strings.Count(s, `"status"`); n != 1 {
		t.Errorf("status встречается %d раз: %s", n, s)
	}

	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if decoded["userId"] != "user-1" || decoded["status"] != "draft" || decoded["channel"] != "beta" {
		t.Errorf("decoded = %v", decoded)
	}
	if props.Len() != 3 {
		t.Errorf("исходные свойства изменены: Len = %d", props.Len())
	}
}

// TestUpdate_UnmarshalCollectsUnknownKeys проверяет сбор неизвестных ключей.
func TestUpdate_UnmarshalCollectsUnknownKeys(t *testing.T) {
	data := `{"uuid":"u1","userId":"user-1","revisionId":4,"name":"n","description":"",` +
		`"packageId":"p1","segmentId":"s1","status":"published","rollout":{"percent":10},"tags":["a"]}`

	var u Update
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	if u.Status != StatusPublished {
		t.Errorf("Status = %q", u.Status)
	}
	if u.RevisionID != 4 {
		t.Errorf("RevisionID = %d", u.RevisionID)
	}
	if !u.HasSegment() || *u.SegmentID != "s1" {
		t.Errorf("SegmentID = %v", u.SegmentID)
	}
	if got := u.AdditionalProperties.Keys(); strings.Join(got, ",") != "rollout,tags" {
		t.Errorf("AdditionalProperties keys = %v", got)
	}

	// Повторная сериализация возвращает исходный документ
	out, err := json.Marshal(u)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if string(out) != data {
		t.Errorf("Marshal = %s\nожидалось  %s", out, data)
	}
}

// TestUpdate_UnmarshalWithoutExtraKeys проверяет, что свойства остаются отсутствующими.
func TestUpdate_UnmarshalWithoutExtraKeys(t *testing.T) {
	var u Update
	data := `{"uuid":"u1","userId":"x","name":"n","packageId":"p","status":"draft"}`
	if err := json.Unmarshal([]byte(data), &u); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if _, ok := u.GetAdditionalProperties(); ok {
		t.Error("AdditionalProperties должны отсутствовать")
	}
}

// TestUpdate_UnmarshalUnknownStatus проверяет проброс UnknownStatusError.
func TestUpdate_UnmarshalUnknownStatus(t *testing.T) {
	var u Update
	err := json.Unmarshal([]byte(`{"uuid":"u1","status":"youpla"}`), &u)
	var unknown *UnknownStatusError
	if !errors.As(err, &unknown) {
		t.Fatalf("ожидалась UnknownStatusError, получено: %v", err)
	}
}
