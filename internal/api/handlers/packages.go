// packages.go — обработчики /api/v1/packages endpoints.
// Загрузка проксируется в Package Service потоково: часть multipart "file"
// передаётся дальше без буферизации в памяти или на диске.
package handlers

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	apierrors "github.com/devicehub/member-gateway/internal/api/errors"
	"github.com/devicehub/member-gateway/internal/packageclient"
)

// ListPackages — GET /api/v1/packages.
func (h *APIHandler) ListPackages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page, ok := bindPage(w, r)
	if !ok {
		return
	}

	result, err := h.packages.ListPackages(r.Context(), userID, page)
	if err != nil {
		h.writeServiceError(w, err, "Пакеты не найдены", "Ошибка получения списка пакетов")
		return
	}

	writeJSON(w, http.StatusOK, newListResponse(result, page))
}

// UploadPackage — POST /api/v1/packages (multipart/form-data, поле file).
func (h *APIHandler) UploadPackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	h.extendUploadDeadline(w)

	reader, err := r.MultipartReader()
	if err != nil {
		apierrors.ValidationError(w, "Ожидается multipart/form-data")
		return
	}

	part, err := nextFilePart(reader)
	if err != nil {
		apierrors.ValidationError(w, "Некорректная загрузка: "+err.Error())
		return
	}
	defer part.Close()

	info, err := h.packages.UploadPackage(r.Context(), userID, part.FileName(), part)
	if err != nil {
		h.writeServiceError(w, err, "Пакет не найден", "Ошибка загрузки пакета")
		return
	}

	writeJSON(w, http.StatusCreated, info)
}

// extendUploadDeadline продлевает дедлайны соединения на время загрузки.
// ResponseRecorder и HTTP/2 без поддержки дедлайнов не считаются ошибкой.
func (h *APIHandler) extendUploadDeadline(w http.ResponseWriter) {
	if h.uploadTimeout <= 0 {
		return
	}
	deadline := time.Now().Add(h.uploadTimeout)
	rc := http.NewResponseController(w)
	if err := rc.SetReadDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Не удалось продлить дедлайн чтения загрузки", slog.String("error", err.Error()))
	}
	if err := rc.SetWriteDeadline(deadline); err != nil && !errors.Is(err, http.ErrNotSupported) {
		h.logger.Warn("Не удалось продлить дедлайн записи загрузки", slog.String("error", err.Error()))
	}
}

// nextFilePart пропускает части до поля file с непустым именем файла.
func nextFilePart(reader *multipart.Reader) (*multipart.Part, error) {
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("отсутствует поле " + packageclient.FileField)
		}
		if err != nil {
			return nil, fmt.Errorf("multipart-тело: %w", err)
		}
		if part.FormName() == packageclient.FileField {
			if part.FileName() == "" {
				part.Close()
				return nil, errors.New("поле " + packageclient.FileField + " должно содержать имя файла")
			}
			return part, nil
		}
		part.Close()
	}
}

// GetPackage — GET /api/v1/packages/{packageId}.
func (h *APIHandler) GetPackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	packageID, ok := bindID(w, r, "packageId")
	if !ok {
		return
	}

	info, err := h.packages.GetPackage(r.Context(), userID, packageID)
	if err != nil {
		h.writeServiceError(w, err, "Пакет не найден", "Ошибка получения пакета")
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// DeletePackage — DELETE /api/v1/packages/{packageId}.
func (h *APIHandler) DeletePackage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	packageID, ok := bindID(w, r, "packageId")
	if !ok {
		return
	}

	if err := h.packages.DeletePackage(r.Context(), userID, packageID); err != nil {
		h.writeServiceError(w, err, "Пакет не найден", "Ошибка удаления пакета")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
