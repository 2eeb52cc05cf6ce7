// Пакет service — бизнес-логика сервиса загрузки файлов.
// upload.go — координатор загрузки: blob на диск, затем запись в индекс.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/bigkaa/goartstore/fileupload/internal/api/middleware"
	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
	"github.com/bigkaa/goartstore/fileupload/internal/repository"
	"github.com/bigkaa/goartstore/fileupload/internal/storage/blobstore"
)

// UploadRequest — разобранный на HTTP-границе запрос загрузки.
type UploadRequest struct {
	// Reader — поток содержимого файла
	Reader io.Reader
	// OriginalName — имя файла, переданное клиентом
	OriginalName string
	// MediaType — объявленный клиентом MIME-тип (nil — не указан)
	MediaType *string
}

// UploadService — координатор загрузки файлов.
type UploadService struct {
	store  *blobstore.Store
	repo   repository.FileRepository
	logger *slog.Logger
}

// NewUploadService создаёт координатор загрузки.
func NewUploadService(
	store *blobstore.Store,
	repo repository.FileRepository,
	logger *slog.Logger,
) *UploadService {
	return &UploadService{
		store:  store,
		repo:   repo,
		logger: logger.With(slog.String("component", "upload_service")),
	}
}

// Upload сохраняет файл и регистрирует его в индексе.
//
// Поток:
//  1. blobstore.Stage — streaming запись во временный файл
//  2. Staged.Commit — фиксация под уникальным именем
//  3. repository.Insert — запись метаданных
//
// Шаги 2 и 3 выполняются в одном окне фиксации: сверка не удаляет
// blob, запись о котором ещё не завершена.
//
// Отката нет. Если Insert не удался, blob остаётся на диске (orphan),
// имя логируется, а сверка позже сообщит о нём.
func (s *UploadService) Upload(ctx context.Context, req UploadRequest) (*model.FileRecord, error) {
	if req.Reader == nil {
		middleware.OperationsTotal.WithLabelValues("upload", "rejected").Inc()
		return nil, ErrNoFilePayload
	}

	// 1. Сохраняем содержимое
	staged, err := s.store.Stage(ctx, req.Reader, req.OriginalName)
	if err != nil {
		if errors.Is(err, blobstore.ErrSizeLimitExceeded) {
			middleware.OperationsTotal.WithLabelValues("upload", "too_large").Inc()
			s.logger.Warn("Файл превышает допустимый размер",
				slog.String("filename", req.OriginalName),
				slog.Int64("max_size", s.store.MaxSize()),
			)
			return nil, fmt.Errorf("%w: %w", ErrSizeLimitExceeded, err)
		}
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка сохранения файла",
			slog.String("filename", req.OriginalName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}
	defer staged.Discard()

	// 2. Фиксируем под именем хранения в окне фиксации
	release := s.store.BeginCommit()
	defer release()

	put, err := staged.Commit()
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "error").Inc()
		s.logger.Error("Ошибка фиксации файла",
			slog.String("filename", req.OriginalName),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrUploadFailed, err)
	}

	// 3. Регистрируем в индексе. Время загрузки фиксируется после
	// сохранения содержимого.
	record := &model.FileRecord{
		StoredName:   put.StoredName,
		OriginalName: req.OriginalName,
		MediaType:    req.MediaType,
		Size:         put.Size,
		UploadedAt:   time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, record); err != nil {
		middleware.OperationsTotal.WithLabelValues("upload", "metadata_error").Inc()
		middleware.OrphanBlobsTotal.Inc()
		s.logger.Error("Ошибка записи метаданных, blob оставлен без записи",
			slog.String("stored_name", put.StoredName),
			slog.String("filename", req.OriginalName),
			slog.Int64("size", put.Size),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("%w: %w", ErrMetadataCommitFailed, err)
	}

	middleware.OperationsTotal.WithLabelValues("upload", "success").Inc()
	middleware.UploadedBytesTotal.Add(float64(put.Size))

	s.logger.Info("Файл загружен",
		slog.Int64("id", record.ID),
		slog.String("stored_name", record.StoredName),
		slog.String("filename", record.OriginalName),
		slog.Int64("size", record.Size),
	)

	return record, nil
}
