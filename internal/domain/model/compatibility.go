// compatibility.go — таблица совместимости статусов обновления.
// Запись политики: из какого статуса в какие разрешено перевести обновление.
// Граф переходов здесь не проверяется, таблицу поставляет Update Service.
package model

import "encoding/json"

// UpdateStatusCompatibility — статус и упорядоченный список совместимых с ним статусов.
// Порядок значим для вызывающего кода. Дубликаты и переход в себя допустимы
// (draft → draft встречается в реальных данных).
type UpdateStatusCompatibility struct {
	// Name — исходный статус
	Name UpdateStatus
	// Compatibilities — статусы, в которые допустим перевод
	Compatibilities []UpdateStatus
}

// NewUpdateStatusCompatibility создаёт запись совместимости, копируя список целевых статусов.
func NewUpdateStatusCompatibility(name UpdateStatus, compatible ...UpdateStatus) UpdateStatusCompatibility {
	c := UpdateStatusCompatibility{
		Name:            name,
		Compatibilities: make([]UpdateStatus, len(compatible)),
	}
	copy(c.Compatibilities, compatible)
	return c
}

// Allows проверяет, есть ли target среди совместимых статусов.
func (c UpdateStatusCompatibility) Allows(target UpdateStatus) bool {
	for _, s := range c.Compatibilities {
		if s == target {
			return true
		}
	}
	return false
}

// compatibilityWire — форма записи на проводе.
type compatibilityWire struct {
	Name             string   `json:"name"`
	CompatibleStatus []string `json:"compatibleStatus"`
}

// MarshalJSON сериализует запись в {"name": ..., "compatibleStatus": [...]}.
// Порядок сохраняется, пустой список кодируется как [].
func (c UpdateStatusCompatibility) MarshalJSON() ([]byte, error) {
	name, err := c.Name.MarshalText()
	if err != nil {
		return nil, err
	}

	wire := compatibilityWire{
		Name:             string(name),
		CompatibleStatus: make([]string, 0, len(c.Compatibilities)),
	}
	for _, s := range c.Compatibilities {
		text, err := s.MarshalText()
		if err != nil {
			return nil, err
		}
		wire.CompatibleStatus = append(wire.CompatibleStatus, string(text))
	}

	return json.Marshal(wire)
}

// UnmarshalJSON читает запись той же формы.
// Если хотя бы один статус не декодируется, возвращается *UnknownStatusError
// и получатель остаётся без изменений.
func (c *UpdateStatusCompatibility) UnmarshalJSON(data []byte) error {
	var wire compatibilityWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}

	name, err := ParseUpdateStatus(wire.Name)
	if err != nil {
		return err
	}

	compatible := make([]UpdateStatus, 0, len(wire.CompatibleStatus))
	for _, raw := range wire.CompatibleStatus {
		s, err := ParseUpdateStatus(raw)
		if err != nil {
			return err
		}
		compatible = append(compatible, s)
	}

	c.Name = name
	c.Compatibilities = compatible
	return nil
}
