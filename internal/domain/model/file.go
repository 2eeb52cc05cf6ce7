// Пакет model — доменные модели сервиса загрузки файлов.
package model

import "time"

// FileRecord — запись индекса метаданных о загруженном файле.
// Хранится в таблице files. Порядок полей определяет порядок
// ключей в JSON-ответе GET /files.
type FileRecord struct {
	// ID — идентификатор, назначается индексом при вставке (BIGSERIAL)
	ID int64 `json:"id"`

	// StoredName — имя blob в директории хранения.
	// Уникально, не совпадает с OriginalName.
	StoredName string `json:"stored_name"`

	// OriginalName — имя файла, переданное клиентом.
	// Используется как имя для сохранения при скачивании.
	OriginalName string `json:"original_name"`

	// MediaType — заявленный клиентом MIME-тип (опционально)
	MediaType *string `json:"media_type"`

	// Size — размер сохранённого blob в байтах
	Size int64 `json:"size"`

	// UploadedAt — время загрузки (UTC), ключ сортировки списка
	UploadedAt time.Time `json:"uploaded_at"`
}

// ContentType возвращает MIME-тип для отдачи файла.
// Если тип не был указан при загрузке — application/octet-stream.
func (f *FileRecord) ContentType() string {
	if f.MediaType == nil || *f.MediaType == "" {
		return "application/octet-stream"
	}
	return *f.MediaType
}
