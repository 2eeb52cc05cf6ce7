// files.go — HTTP handlers файловых операций.
// Upload, List, Download, Delete.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"

	apierrors "github.com/bigkaa/goartstore/fileupload/internal/api/errors"
	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
	"github.com/bigkaa/goartstore/fileupload/internal/service"
)

// FileFieldName — имя поля multipart формы с содержимым файла.
const FileFieldName = "filedata"

// multipartOverhead — запас на заголовки multipart сверх размера файла.
const multipartOverhead = 1 << 20

// Uploader — загрузка файла.
type Uploader interface {
	Upload(ctx context.Context, req service.UploadRequest) (*model.FileRecord, error)
}

// FileStore — список, открытие и удаление файлов.
type FileStore interface {
	List(ctx context.Context) ([]*model.FileRecord, error)
	Open(ctx context.Context, id int64) (*os.File, *model.FileRecord, error)
	Delete(ctx context.Context, id int64) error
}

// FilesHandler — обработчик файловых endpoints.
type FilesHandler struct {
	uploader    Uploader
	files       FileStore
	maxFileSize int64
	logger      *slog.Logger
}

// NewFilesHandler создаёт обработчик файловых endpoints.
func NewFilesHandler(uploader Uploader, files FileStore, maxFileSize int64, logger *slog.Logger) *FilesHandler {
	return &FilesHandler{
		uploader:    uploader,
		files:       files,
		maxFileSize: maxFileSize,
		logger:      logger.With(slog.String("component", "files_handler")),
	}
}

// uploadResponse — ответ на успешную загрузку.
type uploadResponse struct {
	Message string            `json:"message"`
	File    *model.FileRecord `json:"file"`
}

// messageResponse — ответ с подтверждением.
type messageResponse struct {
	Message string `json:"message"`
}

// UploadFile обрабатывает POST /upload.
// Multipart form, поле filedata. Тело читается потоком без буферизации
// файла в памяти или во временной директории.
func (h *FilesHandler) UploadFile(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+multipartOverhead)

	mr, err := r.MultipartReader()
	if err != nil {
		apierrors.NoFilePayload(w, fmt.Sprintf("Ожидается multipart/form-data с полем %q", FileFieldName))
		return
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			apierrors.NoFilePayload(w, fmt.Sprintf("Поле %q с файлом обязательно", FileFieldName))
			return
		}
		if err != nil {
			if isBodyTooLarge(err) {
				apierrors.FileTooLarge(w, h.tooLargeMessage())
				return
			}
			apierrors.ValidationError(w, fmt.Sprintf("Ошибка разбора multipart: %s", err.Error()))
			return
		}

		// Пустое имя файла — браузер отправил форму без выбранного файла
		if part.FormName() != FileFieldName || part.FileName() == "" {
			part.Close()
			continue
		}

		record, ok := h.upload(w, r, part.FileName(), part.Header.Get("Content-Type"), part)
		part.Close()
		if !ok {
			return
		}

		// Допускается один файл: лишний отменяет всю загрузку
		if hasExtraFile(mr) {
			if err := h.files.Delete(r.Context(), record.ID); err != nil {
				h.logger.Error("Не удалось отменить загрузку с лишним файлом",
					slog.Int64("id", record.ID),
					slog.String("stored_name", record.StoredName),
					slog.String("error", err.Error()),
				)
			}
			apierrors.ValidationError(w, fmt.Sprintf("Поле %q должно содержать один файл", FileFieldName))
			return
		}

		writeJSON(w, http.StatusOK, uploadResponse{Message: "Файл сохранен!", File: record})
		return
	}
}

// hasExtraFile дочитывает форму и сообщает, есть ли в ней ещё один
// файл в поле filedata. Ошибки разбора хвоста формы игнорируются.
func hasExtraFile(mr *multipart.Reader) bool {
	for {
		part, err := mr.NextPart()
		if err != nil {
			return false
		}
		extra := part.FormName() == FileFieldName && part.FileName() != ""
		part.Close()
		if extra {
			return true
		}
	}
}

// upload передаёт содержимое координатору. При ошибке пишет ответ и
// возвращает false.
func (h *FilesHandler) upload(w http.ResponseWriter, r *http.Request, filename, contentType string, body io.Reader) (*model.FileRecord, bool) {
	req := service.UploadRequest{
		Reader:       body,
		OriginalName: filename,
	}
	if ct := strings.TrimSpace(contentType); ct != "" {
		req.MediaType = &ct
	}

	record, err := h.uploader.Upload(r.Context(), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNoFilePayload):
			apierrors.NoFilePayload(w, "Файл не передан")
		case errors.Is(err, service.ErrSizeLimitExceeded), isBodyTooLarge(err):
			apierrors.FileTooLarge(w, h.tooLargeMessage())
		case errors.Is(err, service.ErrMetadataCommitFailed):
			apierrors.MetadataCommitFailed(w, "Ошибка сохранения")
		default:
			apierrors.UploadFailed(w, "Ошибка сохранения")
		}
		return nil, false
	}
	return record, true
}

// ListFiles обрабатывает GET /files. Новые файлы первыми.
func (h *FilesHandler) ListFiles(w http.ResponseWriter, r *http.Request) {
	files, err := h.files.List(r.Context())
	if err != nil {
		h.logger.Error("Ошибка получения списка файлов", slog.String("error", err.Error()))
		apierrors.InternalError(w, "Ошибка получения списка файлов")
		return
	}
	writeJSON(w, http.StatusOK, files)
}

// DownloadFile обрабатывает GET /download/{id}.
// Поддерживает Range requests (206) и ETag (If-None-Match → 304).
func (h *FilesHandler) DownloadFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}

	f, record, err := h.files.Open(r.Context(), id)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			apierrors.NotFound(w, "Файл не найден")
		case errors.Is(err, service.ErrBlobMissing):
			apierrors.BlobMissing(w, "Содержимое файла отсутствует в хранилище")
		default:
			h.logger.Error("Ошибка открытия файла",
				slog.Int64("id", id),
				slog.String("error", err.Error()),
			)
			apierrors.InternalError(w, "Ошибка скачивания файла")
		}
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", record.ContentType())
	w.Header().Set("Content-Disposition", contentDisposition(record.OriginalName))
	w.Header().Set("ETag", fmt.Sprintf("\"%d-%d\"", record.ID, record.UploadedAt.UnixNano()))

	// Содержимое по ID неизменно, поэтому время загрузки служит Last-Modified
	http.ServeContent(w, r, record.OriginalName, record.UploadedAt, f)
}

// DeleteFile обрабатывает DELETE /file/{id}.
func (h *FilesHandler) DeleteFile(w http.ResponseWriter, r *http.Request) {
	id, ok := parseFileID(w, r)
	if !ok {
		return
	}

	if err := h.files.Delete(r.Context(), id); err != nil {
		if errors.Is(err, service.ErrNotFound) {
			apierrors.NotFound(w, "Файл не найден")
			return
		}
		h.logger.Error("Ошибка удаления файла",
			slog.Int64("id", id),
			slog.String("error", err.Error()),
		)
		apierrors.InternalError(w, "Ошибка удаления файла")
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Message: "Файл удален"})
}

func (h *FilesHandler) tooLargeMessage() string {
	return fmt.Sprintf("Размер файла превышает максимум %d байт", h.maxFileSize)
}

// parseFileID извлекает ID файла из пути. ID, который не может
// принадлежать ни одной записи, даёт 404 как отсутствующий файл.
func parseFileID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	var id int64
	err := runtime.BindStyledParameterWithOptions("simple", "id", chi.URLParam(r, "id"), &id,
		runtime.BindStyledParameterOptions{
			ParamLocation: runtime.ParamLocationPath,
			Explode:       false,
			Required:      true,
		})
	if err != nil || id <= 0 {
		apierrors.NotFound(w, "Файл не найден")
		return 0, false
	}
	return id, true
}

// contentDisposition формирует заголовок attachment с оригинальным именем.
// Не-ASCII имена кодируются по RFC 2231.
func contentDisposition(filename string) string {
	if v := mime.FormatMediaType("attachment", map[string]string{"filename": filename}); v != "" {
		return v
	}
	return "attachment"
}

func isBodyTooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
