// properties.go — открытый набор дополнительных свойств обновления.
// Properties — упорядоченное отображение строка → Value, где Value —
// размеченное динамическое JSON-значение. Разбор идёт потоково через
// json.Decoder.Token, без reflection и без промежуточного map[string]any,
// поэтому порядок ключей источника сохраняется.
package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
)

// ValueKind — тип динамического значения.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	KindObject
	KindArray
)

// String возвращает имя типа значения.
func (k ValueKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindObject:
		return "object"
	case KindArray:
		return "array"
	default:
		return "ValueKind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Value — размеченное JSON-значение. Нулевое значение — null.
type Value struct {
	kind ValueKind
	str  string
	num  json.Number
	b    bool
	obj  *Properties
	arr  []Value
}

// NullValue возвращает JSON null.
func NullValue() Value { return Value{kind: KindNull} }

// StringValue оборачивает строку.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// NumberValue оборачивает число в исходном текстовом представлении.
func NumberValue(n json.Number) Value { return Value{kind: KindNumber, num: n} }

// IntValue оборачивает целое число.
func IntValue(i int64) Value {
	return NumberValue(json.Number(strconv.FormatInt(i, 10)))
}

// BoolValue оборачивает булево значение.
func BoolValue(b bool) Value { return Value{kind: KindBool, b: b} }

// ObjectValue оборачивает вложенный объект.
func ObjectValue(p *Properties) Value {
	if p == nil {
		p = NewProperties()
	}
	return Value{kind: KindObject, obj: p}
}

// ArrayValue оборачивает массив значений.
func ArrayValue(items ...Value) Value {
	arr := make([]Value, len(items))
	copy(arr, items)
	return Value{kind: KindArray, arr: arr}
}

// Kind возвращает тип значения.
func (v Value) Kind() ValueKind { return v.kind }

// AsString возвращает строку, если значение строковое.
func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

// AsNumber возвращает число, если значение числовое.
func (v Value) AsNumber() (json.Number, bool) { return v.num, v.kind == KindNumber }

// AsBool возвращает булево, если значение булево.
func (v Value) AsBool() (value, ok bool) { return v.b, v.kind == KindBool }

// AsObject возвращает вложенный объект, если значение — объект.
func (v Value) AsObject() (*Properties, bool) { return v.obj, v.kind == KindObject }

// AsArray возвращает элементы, если значение — массив.
func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

// clone возвращает глубокую копию значения.
func (v Value) clone() Value {
	switch v.kind {
	case KindObject:
		return Value{kind: KindObject, obj: v.obj.Clone()}
	case KindArray:
		arr := make([]Value, len(v.arr))
		for i, item := range v.arr {
			arr[i] = item.clone()
		}
		return Value{kind: KindArray, arr: arr}
	default:
		return v
	}
}

// MarshalJSON кодирует значение согласно его типу.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindString:
		return json.Marshal(v.str)
	case KindNumber:
		// json.Number проверяется кодировщиком на корректность литерала
		return json.Marshal(v.num)
	case KindBool:
		return []byte(strconv.FormatBool(v.b)), nil
	case KindObject:
		return v.obj.MarshalJSON()
	case KindArray:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, item := range v.arr {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := item.MarshalJSON()
			if err != nil {
				return nil, err
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	default:
		return nil, fmt.Errorf("неизвестный тип значения: %s", v.kind)
	}
}

// UnmarshalJSON разбирает произвольное JSON-значение.
func (v *Value) UnmarshalJSON(data []byte) error {
	dec := newValueDecoder(data)
	parsed, err := decodeValue(dec)
	if err != nil {
		return err
	}
	if err := expectEOF(dec); err != nil {
		return err
	}
	*v = parsed
	return nil
}

// Properties — упорядоченное отображение имя → значение.
// Порядок — порядок первой вставки ключа. Не потокобезопасно.
type Properties struct {
	keys   []string
	values map[string]Value
}

// NewProperties создаёт пустой набор свойств.
func NewProperties() *Properties {
	return &Properties{values: make(map[string]Value)}
}

// Len возвращает количество свойств. Безопасен для nil.
func (p *Properties) Len() int {
	if p == nil {
		return 0
	}
	return len(p.keys)
}

// Keys возвращает копию ключей в порядке вставки.
func (p *Properties) Keys() []string {
	if p == nil {
		return nil
	}
	out := make([]string, len(p.keys))
	copy(out, p.keys)
	return out
}

// Get возвращает значение свойства.
func (p *Properties) Get(key string) (Value, bool) {
	if p == nil {
		return Value{}, false
	}
	v, ok := p.values[key]
	return v, ok
}

// Set добавляет или заменяет свойство. Заменённый ключ сохраняет позицию.
func (p *Properties) Set(key string, v Value) {
	if p.values == nil {
		p.values = make(map[string]Value)
	}
	if _, exists := p.values[key]; !exists {
		p.keys = append(p.keys, key)
	}
	p.values[key] = v
}

// Delete удаляет свойство.
func (p *Properties) Delete(key string) {
	if _, exists := p.values[key]; !exists {
		return
	}
	delete(p.values, key)
	for i, k := range p.keys {
		if k == key {
			p.keys = append(p.keys[:i], p.keys[i+1:]...)
			break
		}
	}
}

// Clone возвращает глубокую копию. Для nil возвращает nil.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return nil
	}
	out := &Properties{
		keys:   make([]string, len(p.keys)),
		values: make(map[string]Value, len(p.values)),
	}
	copy(out.keys, p.keys)
	for k, v := range p.values {
		out.values[k] = v.clone()
	}
	return out
}

// MarshalJSON кодирует свойства JSON-объектом в порядке вставки.
func (p *Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, key := range p.Keys() {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(key)
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')

		vb, err := p.values[key].MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("свойство %q: %w", key, err)
		}
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON разбирает JSON-объект, сохраняя порядок ключей.
func (p *Properties) UnmarshalJSON(data []byte) error {
	parsed, err := ParseProperties(data)
	if err != nil {
		return err
	}
	*p = *parsed
	return nil
}

// ParseProperties разбирает JSON-объект в Properties.
// Повторяющийся ключ заменяет значение, позиция остаётся от первого вхождения.
func ParseProperties(data []byte) (*Properties, error) {
	dec := newValueDecoder(data)

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("разбор свойств: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, errors.New("разбор свойств: ожидался JSON-объект")
	}

	props, err := decodeObjectBody(dec)
	if err != nil {
		return nil, fmt.Errorf("разбор свойств: %w", err)
	}
	if err := expectEOF(dec); err != nil {
		return nil, fmt.Errorf("разбор свойств: %w", err)
	}
	return props, nil
}

// --- Потоковый разбор ---

func newValueDecoder(data []byte) *json.Decoder {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec
}

func decodeValue(dec *json.Decoder) (Value, error) {
	tok, err := dec.Token()
	if err != nil {
		return Value{}, err
	}

	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			obj, err := decodeObjectBody(dec)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindObject, obj: obj}, nil
		case '[':
			items, err := decodeArrayBody(dec)
			if err != nil {
				return Value{}, err
			}
			return Value{kind: KindArray, arr: items}, nil
		default:
			return Value{}, fmt.Errorf("неожиданный разделитель %q", t.String())
		}
	case string:
		return StringValue(t), nil
	case json.Number:
		return NumberValue(t), nil
	case bool:
		return BoolValue(t), nil
	case nil:
		return NullValue(), nil
	default:
		return Value{}, fmt.Errorf("неожиданный токен %v", tok)
	}
}

// decodeObjectBody читает пары ключ-значение после открывающей '{'.
func decodeObjectBody(dec *json.Decoder) (*Properties, error) {
	props := NewProperties()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("ожидался ключ объекта, получен %v", tok)
		}

		v, err := decodeValue(dec)
		if err != nil {
			return nil, fmt.Errorf("свойство %q: %w", key, err)
		}
		props.Set(key, v)
	}

	// Закрывающая '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return props, nil
}

// decodeArrayBody читает элементы после открывающей '['.
func decodeArrayBody(dec *json.Decoder) ([]Value, error) {
	items := make([]Value, 0)
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		items = append(items, v)
	}

	// Закрывающая ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return items, nil
}

func expectEOF(dec *json.Decoder) error {
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("лишние данные после JSON-значения")
	}
	return nil
}
