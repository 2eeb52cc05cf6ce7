// Пакет errors — конструкторы стандартных ошибок API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors //nolint:revive // конфликт имени со stdlib, импортируется как apierrors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок API.
const (
	CodeNoFilePayload        = "NO_FILE_PAYLOAD"
	CodeFileTooLarge         = "FILE_TOO_LARGE"
	CodeUploadFailed         = "UPLOAD_FAILED"
	CodeMetadataCommitFailed = "METADATA_COMMIT_FAILED"
	CodeNotFound             = "NOT_FOUND"
	CodeBlobMissing          = "BLOB_MISSING"
	CodeValidationError      = "VALIDATION_ERROR"
	CodeReconcileInProgress  = "RECONCILE_IN_PROGRESS"
	CodeInternalError        = "INTERNAL_ERROR"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// NoFilePayload — 400 запрос не содержит файла.
func NoFilePayload(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeNoFilePayload, message)
}

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// BlobMissing — 404 запись есть, но содержимое файла отсутствует на диске.
func BlobMissing(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeBlobMissing, message)
}

// FileTooLarge — 413 файл превышает лимит.
func FileTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeFileTooLarge, message)
}

// ReconcileInProgress — 409 сверка уже выполняется.
func ReconcileInProgress(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeReconcileInProgress, message)
}

// UploadFailed — 500 не удалось сохранить содержимое файла.
func UploadFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeUploadFailed, message)
}

// MetadataCommitFailed — 500 файл сохранён, но запись в индекс не удалась.
func MetadataCommitFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeMetadataCommitFailed, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
