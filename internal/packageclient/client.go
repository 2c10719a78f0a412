// Пакет packageclient — клиент Package Service (хранилище бинарных пакетов).
// Метаданные (PackageInfo) запрашиваются JSON-запросами, загрузка пакета
// проксируется потоково: multipart-тело пишется в io.Pipe по мере чтения
// исходного потока и целиком в памяти не держится.
package packageclient

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"

	"github.com/devicehub/member-gateway/internal/backend"
	"github.com/devicehub/member-gateway/internal/domain/model"
)

// FileField — имя поля формы с содержимым пакета.
const FileField = "file"

// Client — клиент Package Service.
type Client struct {
	api    *backend.Client
	upload *backend.Client
	logger *slog.Logger
}

// New создаёт клиент Package Service.
// httpClient используется для метаданных, uploadHTTPClient — для загрузки
// (обычно с увеличенным таймаутом MG_UPLOAD_TIMEOUT).
func New(
	packageURL string,
	httpClient *http.Client,
	uploadHTTPClient *http.Client,
	tokenProvider backend.TokenProvider,
	logger *slog.Logger,
) *Client {
	return &Client{
		api:    backend.New("package", packageURL, httpClient, tokenProvider, logger),
		upload: backend.New("package", packageURL, uploadHTTPClient, tokenProvider, logger),
		logger: logger.With(slog.String("component", "package_client")),
	}
}

// Backend возвращает нижележащий клиент (для readiness-проверки).
func (c *Client) Backend() *backend.Client {
	return c.api
}

// FetchPackageInfo запрашивает метаданные пакета пользователя.
// GET /api/v1/users/{userId}/packages/{id}
func (c *Client) FetchPackageInfo(ctx context.Context, userID, packageID string) (*model.PackageInfo, error) {
	var info model.PackageInfo
	if err := c.api.GetJSON(ctx, packagePath(userID, packageID), nil, &info); err != nil {
		return nil, fmt.Errorf("получение пакета %s: %w", packageID, err)
	}
	return &info, nil
}

// ListPackages возвращает страницу пакетов пользователя.
// GET /api/v1/users/{userId}/packages?limit=&offset=
func (c *Client) ListPackages(ctx context.Context, userID string, page model.PageRequest) (*model.Page[model.PackageInfo], error) {
	var result model.Page[model.PackageInfo]
	if err := c.api.GetJSON(ctx, packagesPath(userID), backend.PageQuery(page), &result); err != nil {
		return nil, fmt.Errorf("список пакетов: %w", err)
	}
	return &result, nil
}

// DeletePackage удаляет пакет пользователя.
// DELETE /api/v1/users/{userId}/packages/{id}
func (c *Client) DeletePackage(ctx context.Context, userID, packageID string) error {
	if err := c.api.Delete(ctx, packagePath(userID, packageID)); err != nil {
		return fmt.Errorf("удаление пакета %s: %w", packageID, err)
	}
	return nil
}

// UploadPackage потоково загружает пакет и возвращает его метаданные.
// POST /api/v1/users/{userId}/packages (multipart/form-data, поле "file")
func (c *Client) UploadPackage(ctx context.Context, userID, fileName string, content io.Reader) (*model.PackageInfo, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	// Писатель формы работает параллельно с отправкой запроса
	go func() {
		part, err := mw.CreateFormFile(FileField, fileName)
		if err != nil {
			pw.CloseWithError(err)
			return
		}
		if _, err := io.Copy(part, content); err != nil {
			pw.CloseWithError(fmt.Errorf("чтение содержимого пакета: %w", err))
			return
		}
		pw.CloseWithError(mw.Close())
	}()

	req, err := c.upload.NewRequest(ctx, http.MethodPost, packagesPath(userID), nil, pr)
	if err != nil {
		pr.CloseWithError(err)
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var info model.PackageInfo
	if err := c.upload.DoJSON(req, &info); err != nil {
		// Разблокирует писателя, если запрос завершился раньше чтения тела
		pr.CloseWithError(err)
		return nil, fmt.Errorf("загрузка пакета %s: %w", fileName, err)
	}

	c.logger.Info("Пакет загружен",
		slog.String("package_id", info.ID),
		slog.String("file_name", info.FileName),
		slog.Int64("size", info.Size),
	)
	return &info, nil
}

func packagesPath(userID string) string {
	return "/api/v1/users/" + backend.PathEscape(userID) + "/packages"
}

func packagePath(userID, packageID string) string {
	return packagesPath(userID) + "/" + backend.PathEscape(packageID)
}
