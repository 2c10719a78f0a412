// page.go — страница результатов list-операций бэкендов.
package model

// PageRequest — параметры пагинации (limit/offset).
type PageRequest struct {
	Limit  int
	Offset int
}

// Page — страница элементов и общее количество.
type Page[T any] struct {
	// Items — элементы страницы
	Items []T `json:"items"`
	// Total — общее количество элементов
	Total int `json:"total"`
	// Limit — запрошенный лимит
	Limit int `json:"limit"`
	// Offset — текущее смещение
	Offset int `json:"offset"`
}

// HasMore сообщает, есть ли элементы после этой страницы.
func (p Page[T]) HasMore() bool {
	return p.Offset+len(p.Items) < p.Total
}
