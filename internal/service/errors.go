// errors.go — ошибки бизнес-логики сервисного слоя.
package service

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/devicehub/member-gateway/internal/backend"
)

var (
	// ErrNotFound — ресурс не найден.
	ErrNotFound = errors.New("ресурс не найден")
	// ErrConflict — конфликт (ресурс уже существует или переход статуса запрещён).
	ErrConflict = errors.New("конфликт")
	// ErrValidation — ошибка валидации входных данных.
	ErrValidation = errors.New("ошибка валидации")
	// ErrBackendUnavailable — бэкенд-сервис недоступен или вернул 5xx.
	ErrBackendUnavailable = errors.New("бэкенд-сервис недоступен")
	// ErrUpstreamData — данные бэкенда не согласованы: ответ не декодируется
	// (например, неизвестный статус) или ссылка обновления не разрешается.
	ErrUpstreamData = errors.New("некорректные данные бэкенда")
)

// mapBackendError переводит ошибку клиента бэкенда в ошибку сервисного слоя.
// Исходная ошибка остаётся в цепочке для errors.As.
func mapBackendError(err error) error {
	if err == nil {
		return nil
	}

	var statusErr *backend.StatusError
	switch {
	case errors.As(err, &statusErr):
		switch {
		case statusErr.StatusCode == http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrNotFound, err)
		case statusErr.StatusCode == http.StatusConflict:
			return fmt.Errorf("%w: %w", ErrConflict, err)
		case statusErr.StatusCode == http.StatusBadRequest,
			statusErr.StatusCode == http.StatusUnprocessableEntity:
			return fmt.Errorf("%w: %w", ErrValidation, err)
		case statusErr.StatusCode >= http.StatusInternalServerError:
			return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
		}
	case errors.Is(err, backend.ErrUnavailable):
		return fmt.Errorf("%w: %w", ErrBackendUnavailable, err)
	case errors.Is(err, backend.ErrInvalidResponse):
		return fmt.Errorf("%w: %w", ErrUpstreamData, err)
	}
	return err
}
