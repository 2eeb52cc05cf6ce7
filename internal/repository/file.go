package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
)

// FileRepository — индекс метаданных загруженных файлов (таблица files).
type FileRepository interface {
	// Insert сохраняет запись. ID назначается базой данных,
	// UploadedAt — текущее время, если не задано.
	Insert(ctx context.Context, f *model.FileRecord) error
	// FindByID возвращает запись по ID.
	FindByID(ctx context.Context, id int64) (*model.FileRecord, error)
	// ListAll возвращает все записи, новые первыми.
	ListAll(ctx context.Context) ([]*model.FileRecord, error)
	// Delete удаляет запись по ID.
	Delete(ctx context.Context, id int64) error
}

// fileRepo — реализация FileRepository.
type fileRepo struct {
	db DBTX
}

// NewFileRepository создаёт репозиторий индекса файлов.
func NewFileRepository(db DBTX) FileRepository {
	return &fileRepo{db: db}
}

const fileColumns = `id, stored_name, original_name, media_type, size, uploaded_at`

func (r *fileRepo) Insert(ctx context.Context, f *model.FileRecord) error {
	// NULL → DEFAULT now() на стороне PostgreSQL
	var uploadedAt *time.Time
	if !f.UploadedAt.IsZero() {
		uploadedAt = &f.UploadedAt
	}

	query := `
		INSERT INTO files (stored_name, original_name, media_type, size, uploaded_at)
		VALUES ($1, $2, $3, $4, COALESCE($5::timestamptz, now()))
		RETURNING id, uploaded_at`

	err := r.db.QueryRow(ctx, query,
		f.StoredName, f.OriginalName, f.MediaType, f.Size, uploadedAt,
	).Scan(&f.ID, &f.UploadedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: blob %s уже зарегистрирован", ErrConflict, f.StoredName)
		}
		return fmt.Errorf("ошибка вставки записи файла: %w", err)
	}
	f.UploadedAt = f.UploadedAt.UTC()
	return nil
}

func (r *fileRepo) FindByID(ctx context.Context, id int64) (*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files WHERE id = $1`

	f, err := scanFile(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("ошибка получения файла %d: %w", id, err)
	}
	return f, nil
}

func (r *fileRepo) ListAll(ctx context.Context) ([]*model.FileRecord, error) {
	query := `SELECT ` + fileColumns + ` FROM files ORDER BY uploaded_at DESC, id DESC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения списка файлов: %w", err)
	}
	defer rows.Close()

	result := make([]*model.FileRecord, 0)
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("ошибка сканирования файла: %w", err)
		}
		result = append(result, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка чтения списка файлов: %w", err)
	}
	return result, nil
}

func (r *fileRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления файла %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanFile читает одну строку в порядке fileColumns.
func scanFile(row pgx.Row) (*model.FileRecord, error) {
	f := &model.FileRecord{}
	if err := row.Scan(
		&f.ID, &f.StoredName, &f.OriginalName, &f.MediaType, &f.Size, &f.UploadedAt,
	); err != nil {
		return nil, err
	}
	f.UploadedAt = f.UploadedAt.UTC()
	return f, nil
}
