// files.go — сервис чтения и удаления файлов: список, скачивание, удаление.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/bigkaa/goartstore/fileupload/internal/api/middleware"
	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
	"github.com/bigkaa/goartstore/fileupload/internal/repository"
	"github.com/bigkaa/goartstore/fileupload/internal/storage/blobstore"
)

// FileService — сервис списка, скачивания и удаления файлов.
type FileService struct {
	store  *blobstore.Store
	repo   repository.FileRepository
	cache  *RecordCache
	locks  idLocks
	logger *slog.Logger
}

// NewFileService создаёт сервис. cache может быть nil.
func NewFileService(
	store *blobstore.Store,
	repo repository.FileRepository,
	cache *RecordCache,
	logger *slog.Logger,
) *FileService {
	return &FileService{
		store:  store,
		repo:   repo,
		cache:  cache,
		logger: logger.With(slog.String("component", "file_service")),
	}
}

// List возвращает все записи индекса, новые первыми.
func (s *FileService) List(ctx context.Context) ([]*model.FileRecord, error) {
	files, err := s.repo.ListAll(ctx)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("list", "error").Inc()
		return nil, fmt.Errorf("получение списка файлов: %w", err)
	}
	middleware.OperationsTotal.WithLabelValues("list", "success").Inc()
	return files, nil
}

// Open находит запись и открывает её содержимое для скачивания.
// Вызывающий код обязан закрыть файл.
//
// Открытый дескриптор продолжает отдавать полное содержимое, даже если
// параллельное удаление уберёт blob из директории.
func (s *FileService) Open(ctx context.Context, id int64) (*os.File, *model.FileRecord, error) {
	mu := s.locks.forID(id)
	mu.RLock()
	defer mu.RUnlock()

	record, err := s.lookup(ctx, id)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("download", resultLabel(err)).Inc()
		return nil, nil, err
	}

	f, err := s.store.Open(record.StoredName)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			middleware.OperationsTotal.WithLabelValues("download", "blob_missing").Inc()
			s.logger.Warn("Запись есть, содержимое отсутствует",
				slog.Int64("id", id),
				slog.String("stored_name", record.StoredName),
			)
			return nil, nil, fmt.Errorf("%w: %s", ErrBlobMissing, record.StoredName)
		}
		middleware.OperationsTotal.WithLabelValues("download", "error").Inc()
		return nil, nil, fmt.Errorf("открытие файла %d: %w", id, err)
	}

	middleware.OperationsTotal.WithLabelValues("download", "success").Inc()
	return f, record, nil
}

// Delete удаляет содержимое файла, затем запись индекса.
// Отсутствующий на диске blob не мешает удалению записи.
// Если не удалось удалить blob, запись сохраняется.
func (s *FileService) Delete(ctx context.Context, id int64) error {
	mu := s.locks.forID(id)
	mu.Lock()
	defer mu.Unlock()

	record, err := s.lookup(ctx, id)
	if err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", resultLabel(err)).Inc()
		return err
	}

	if err := s.store.Delete(record.StoredName); err != nil {
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Ошибка удаления содержимого файла",
			slog.Int64("id", id),
			slog.String("stored_name", record.StoredName),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("удаление содержимого файла %d: %w", id, err)
	}

	s.cache.Delete(id)

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			middleware.OperationsTotal.WithLabelValues("delete", "not_found").Inc()
			return ErrNotFound
		}
		middleware.OperationsTotal.WithLabelValues("delete", "error").Inc()
		s.logger.Error("Содержимое удалено, запись индекса осталась",
			slog.Int64("id", id),
			slog.String("stored_name", record.StoredName),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("удаление записи файла %d: %w", id, err)
	}

	middleware.OperationsTotal.WithLabelValues("delete", "success").Inc()
	s.logger.Info("Файл удалён",
		slog.Int64("id", id),
		slog.String("stored_name", record.StoredName),
		slog.String("filename", record.OriginalName),
	)
	return nil
}

// lookup получает запись из кэша или индекса.
func (s *FileService) lookup(ctx context.Context, id int64) (*model.FileRecord, error) {
	if record, ok := s.cache.Get(id); ok {
		return record, nil
	}

	record, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("получение записи файла %d: %w", id, err)
	}

	s.cache.Set(record)
	return record, nil
}

func resultLabel(err error) string {
	if errors.Is(err, ErrNotFound) {
		return "not_found"
	}
	return "error"
}
