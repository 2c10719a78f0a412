// Пакет model — доменные модели Member Gateway.
//
// status.go — жизненный цикл обновления (UpdateStatus) и его wire-кодек.
// Таблица name → status строится один раз при инициализации пакета
// из фиксированного набора и дальше только читается.
package model

import "fmt"

// UpdateStatus — статус обновления в жизненном цикле.
// На проводе передаётся каноническим именем в нижнем регистре.
type UpdateStatus string

const (
	// StatusDraft — черновик, начальный статус любого обновления.
	StatusDraft UpdateStatus = "draft"
	// StatusPublished — обновление опубликовано для устройств.
	StatusPublished UpdateStatus = "published"
	// StatusArchived — обновление снято с публикации.
	StatusArchived UpdateStatus = "archived"
	// StatusScheduled — публикация запланирована на scheduledDate.
	StatusScheduled UpdateStatus = "scheduled"
)

// allUpdateStatuses — закрытый набор статусов в порядке объявления.
var allUpdateStatuses = [...]UpdateStatus{
	StatusDraft,
	StatusPublished,
	StatusArchived,
	StatusScheduled,
}

// statusByName — таблица декодирования, read-only после init.
var statusByName = buildStatusTable()

func buildStatusTable() map[string]UpdateStatus {
	table := make(map[string]UpdateStatus, len(allUpdateStatuses))
	for _, s := range allUpdateStatuses {
		table[string(s)] = s
	}
	return table
}

// AllUpdateStatuses возвращает копию закрытого набора статусов.
func AllUpdateStatuses() []UpdateStatus {
	out := make([]UpdateStatus, len(allUpdateStatuses))
	copy(out, allUpdateStatuses[:])
	return out
}

// UnknownStatusError — строка не совпадает ни с одним каноническим именем статуса.
// Признак проблемы целостности данных у источника строки, повтор не поможет.
type UnknownStatusError struct {
	Value string
}

func (e *UnknownStatusError) Error() string {
	return fmt.Sprintf("неизвестный статус обновления: %q, допустимые: draft, published, archived, scheduled", e.Value)
}

// ParseUpdateStatus декодирует каноническое имя статуса.
// Сравнение точное и регистрозависимое, без нормализации.
func ParseUpdateStatus(s string) (UpdateStatus, error) {
	status, ok := statusByName[s]
	if !ok {
		return "", &UnknownStatusError{Value: s}
	}
	return status, nil
}

// String возвращает каноническое имя статуса.
func (s UpdateStatus) String() string {
	return string(s)
}

// IsValid проверяет, входит ли значение в закрытый набор.
func (s UpdateStatus) IsValid() bool {
	_, ok := statusByName[string(s)]
	return ok
}

// MarshalText кодирует статус в каноническое имя.
// Для значений, полученных через константы или ParseUpdateStatus, ошибки не бывает.
func (s UpdateStatus) MarshalText() ([]byte, error) {
	if !s.IsValid() {
		return nil, &UnknownStatusError{Value: string(s)}
	}
	return []byte(s), nil
}

// UnmarshalText декодирует статус через таблицу statusByName.
func (s *UpdateStatus) UnmarshalText(text []byte) error {
	status, err := ParseUpdateStatus(string(text))
	if err != nil {
		return err
	}
	*s = status
	return nil
}
