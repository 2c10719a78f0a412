// validation.go — валидация входящих запросов по встроенному OpenAPI-контракту.
// Маршрут ищется через kin-openapi gorillamux router; неизвестные пути
// пропускаются дальше (404/405 отдаёт chi). Тело multipart-запросов
// не валидируется, чтобы загрузка пакета оставалась потоковой.
package middleware

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/gorillamux"

	apierrors "github.com/devicehub/member-gateway/internal/api/errors"
)

// RequestValidator — middleware валидации запросов по OpenAPI.
type RequestValidator struct {
	router routers.Router
	logger *slog.Logger
}

// NewRequestValidator загружает и проверяет OpenAPI-документ, строит router.
func NewRequestValidator(contract []byte, logger *slog.Logger) (*RequestValidator, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(contract)
	if err != nil {
		return nil, fmt.Errorf("загрузка OpenAPI: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("невалидный OpenAPI: %w", err)
	}

	router, err := gorillamux.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("создание OpenAPI router: %w", err)
	}

	return &RequestValidator{
		router: router,
		logger: logger.With(slog.String("component", "request_validator")),
	}, nil
}

// Middleware возвращает HTTP middleware валидации.
// Ошибки валидации — 400 VALIDATION_ERROR.
func (v *RequestValidator) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route, pathParams, err := v.router.FindRoute(r)
			if err != nil {
				// Маршрут не описан в контракте
				next.ServeHTTP(w, r)
				return
			}

			input := &openapi3filter.RequestValidationInput{
				Request:    r,
				PathParams: pathParams,
				Route:      route,
				Options: &openapi3filter.Options{
					AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
					ExcludeRequestBody: isMultipart(r),
				},
			}

			if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
				v.logger.Debug("Запрос не прошёл валидацию",
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				apierrors.ValidationError(w, validationMessage(err))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// isMultipart проверяет Content-Type multipart/*.
func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && strings.HasPrefix(mediaType, "multipart/")
}

// validationMessage формирует краткое сообщение из ошибки kin-openapi.
func validationMessage(err error) string {
	var reqErr *openapi3filter.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.Parameter != nil:
			return fmt.Sprintf("Некорректный параметр %s: %s", reqErr.Parameter.Name, reasonOf(reqErr))
		case reqErr.RequestBody != nil:
			return "Некорректное тело запроса: " + reasonOf(reqErr)
		}
	}
	return "Некорректный запрос: " + err.Error()
}

func reasonOf(reqErr *openapi3filter.RequestError) string {
	if reqErr.Err != nil {
		return reqErr.Err.Error()
	}
	return reqErr.Reason
}
