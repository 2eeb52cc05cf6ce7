// errors.go — ошибки бизнес-логики сервисного слоя.
// HTTP-слой сопоставляет их с кодами ответа через errors.Is.
package service

import "errors"

var (
	// ErrNoFilePayload — запрос не содержит файла.
	ErrNoFilePayload = errors.New("файл не передан")
	// ErrSizeLimitExceeded — файл больше допустимого размера.
	ErrSizeLimitExceeded = errors.New("файл превышает допустимый размер")
	// ErrUploadFailed — не удалось сохранить содержимое файла.
	ErrUploadFailed = errors.New("ошибка сохранения файла")
	// ErrMetadataCommitFailed — содержимое сохранено, запись в индекс не создана.
	ErrMetadataCommitFailed = errors.New("ошибка записи метаданных файла")
	// ErrNotFound — запись файла не найдена в индексе.
	ErrNotFound = errors.New("файл не найден")
	// ErrBlobMissing — запись есть, содержимое на диске отсутствует.
	ErrBlobMissing = errors.New("содержимое файла отсутствует в хранилище")
	// ErrReconcileInProgress — сверка уже выполняется.
	ErrReconcileInProgress = errors.New("сверка уже выполняется")
)
