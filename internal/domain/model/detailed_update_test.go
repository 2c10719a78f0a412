package model

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func testPackageInfo() PackageInfo {
	return PackageInfo{
		ID:        "pkg-1",
		VersionID: "v1",
		MD5:       "d41d8cd98f00b204e9800998ecf8427e",
		Size:      2048,
		FileName:  "fw.bin",
		UserID:    "user-1",
	}
}

// TestNewDetailedUpdate_CopiesFields проверяет перенос полей из обновления.
func TestNewDetailedUpdate_CopiesFields(t *testing.T) {
	scheduled := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	created := time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC)
	props := NewProperties()
	props.Set("channel", StringValue("beta"))

	p := validUpdateParams()
	p.RevisionID = 7
	p.Status = StatusScheduled
	p.ScheduledDate = &scheduled
	p.CreationDate = &created
	p.AdditionalProperties = props
	u, err := NewUpdate(p)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	d := NewDetailedUpdate(u, testPackageInfo(), nil)

	if d.UUID != u.UUID || d.UserID != u.UserID || d.Name != u.Name || d.Description != u.Description {
		t.Errorf("идентифицирующие поля не совпадают: %+v", d)
	}
	if d.RevisionID != 7 {
		t.Errorf("RevisionID = %d, ожидалось 7", d.RevisionID)
	}
	if d.Status != StatusScheduled {
		t.Errorf("Status = %q", d.Status)
	}
	if d.ScheduledDate == nil || !d.ScheduledDate.Equal(scheduled) {
		t.Errorf("ScheduledDate = %v", d.ScheduledDate)
	}
	if d.CreationDate == nil || !d.CreationDate.Equal(created) {
		t.Errorf("CreationDate = %v", d.CreationDate)
	}
	if d.PackageInfo != testPackageInfo() {
		t.Errorf("PackageInfo = %+v", d.PackageInfo)
	}
	if d.AdditionalProperties.Len() != 1 {
		t.Errorf("AdditionalProperties.Len = %d", d.AdditionalProperties.Len())
	}
}

// TestNewDetailedUpdate_AbsentDates проверяет, что отсутствующие даты не подставляются.
func TestNewDetailedUpdate_AbsentDates(t *testing.T) {
	u, err := NewUpdate(validUpdateParams())
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	d := NewDetailedUpdate(u, testPackageInfo(), nil)

	if d.CreationDate != nil {
		t.Errorf("CreationDate = %v, ожидалось отсутствие", d.CreationDate)
	}
	if d.ScheduledDate != nil {
		t.Errorf("ScheduledDate = %v, ожидалось отсутствие", d.ScheduledDate)
	}
	if d.AdditionalProperties != nil {
		t.Error("AdditionalProperties должны отсутствовать")
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	for _, field := range []string{"creationDate", "scheduledDate", "segment"} {
		if strings.Contains(string(out), `"`+field+`"`) {
			t.Errorf("поле %s не должно кодироваться: %s", field, out)
		}
	}
}

// TestNewDetailedUpdate_SegmentNotResolved проверяет, что сегмент не появляется
// сам по себе, даже если обновление нацелено на сегмент.
func TestNewDetailedUpdate_SegmentNotResolved(t *testing.T) {
	seg := "seg-1"
	p := validUpdateParams()
	p.SegmentID = &seg
	u, err := NewUpdate(p)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	d := NewDetailedUpdate(u, testPackageInfo(), nil)
	if d.Segment != nil {
		t.Errorf("Segment = %+v, ожидалось отсутствие", d.Segment)
	}

	resolved := &Segment{ID: seg, UserID: "user-1", Name: "lab", DeviceIDs: []string{"dev-1"}}
	d = NewDetailedUpdate(u, testPackageInfo(), resolved)
	if d.Segment == nil || d.Segment.ID != seg {
		t.Errorf("Segment = %+v, ожидался %s", d.Segment, seg)
	}
}

// TestDetailedUpdate_JSON проверяет форму представления на проводе.
func TestDetailedUpdate_JSON(t *testing.T) {
	props := NewProperties()
	props.Set("channel", StringValue("beta"))

	p := validUpdateParams()
	p.AdditionalProperties = props
	u, err := NewUpdate(p)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	segment := &Segment{ID: "seg-1", UserID: "user-1", Name: "lab", DeviceIDs: []string{"dev-1"}}
	out, err := json.Marshal(NewDetailedUpdate(u, testPackageInfo(), segment))
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}

	want := `{"uuid":"2b1b7c3e-0000-4000-8000-000000000001","userId":"user-1","revisionId":0,` +
		`"name":"firmware 1.2","description":"исправления","status":"draft",` +
		`"packageInfo":{"id":"pkg-1","versionId":"v1","md5":"d41d8cd98f00b204e9800998ecf8427e",` +
		`"size":2048,"fileName":"fw.bin","userId":"user-1"},` +
		`"segment":{"id":"seg-1","userId":"user-1","name":"lab","deviceIds":["dev-1"]},` +
		`"channel":"beta"}`
	if string(out) != want {
		t.Errorf("Marshal =\n%s\nожидалось\n%s", out, want)
	}

	var back DetailedUpdate
	if err := json.Unmarshal(out, &back); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if back.Segment == nil || back.AdditionalProperties.Len() != 1 {
		t.Errorf("обратное декодирование потеряло данные: %+v", back)
	}
}

// TestDetailedUpdate_MarshalSkipsCollidingProperties проверяет, что свойство
// с именем поля представления (в т.ч. packageInfo) не дублирует ключ.
func TestDetailedUpdate_MarshalSkipsCollidingProperties(t *testing.T) {
	props := NewProperties()
	props.Set("userId", StringValue("victim"))
	props.Set("packageInfo", NullValue())
	props.Set("channel", StringValue("beta"))

	d := DetailedUpdate{
		UUID:                 "u1",
		UserID:               "user-1",
		Name:                 "n",
		Status:               StatusDraft,
		PackageInfo:          testPackageInfo(),
		AdditionalProperties: props,
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(out, &decoded); err != nil {
		t.Fatalf("неожиданная ошибка: %v", err)
	}
	if decoded["userId"] != "user-1" || decoded["packageInfo"] == nil || decoded["channel"] != "beta" {
		t.Errorf("Marshal = %s", out)
	}
}
