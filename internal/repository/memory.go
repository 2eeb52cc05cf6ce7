package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
)

// MemoryFileRepository — потокобезопасная in-memory реализация FileRepository.
//
// Не персистентная: содержимое теряется при рестарте. Используется
// в тестах сервисного и HTTP слоя, где PostgreSQL не нужен.
// Семантика совпадает с PostgreSQL-реализацией: возрастающие ID,
// уникальность stored_name, сортировка по uploaded_at DESC, id DESC.
type MemoryFileRepository struct {
	mu     sync.RWMutex
	files  map[int64]*model.FileRecord // id → запись
	names  map[string]int64            // stored_name → id
	nextID int64
}

// NewMemoryFileRepository создаёт пустой in-memory индекс.
func NewMemoryFileRepository() *MemoryFileRepository {
	return &MemoryFileRepository{
		files: make(map[int64]*model.FileRecord),
		names: make(map[string]int64),
	}
}

// Insert добавляет запись, назначая ей следующий ID.
func (m *MemoryFileRepository) Insert(_ context.Context, f *model.FileRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.names[f.StoredName]; ok {
		return fmt.Errorf("%w: blob %s уже зарегистрирован", ErrConflict, f.StoredName)
	}

	m.nextID++
	f.ID = m.nextID
	if f.UploadedAt.IsZero() {
		f.UploadedAt = time.Now().UTC()
	}

	// Храним копию, чтобы избежать data race при внешних изменениях
	m.files[f.ID] = copyRecord(f)
	m.names[f.StoredName] = f.ID
	return nil
}

// FindByID возвращает копию записи по ID.
func (m *MemoryFileRepository) FindByID(_ context.Context, id int64) (*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	f, ok := m.files[id]
	if !ok {
		return nil, ErrNotFound
	}
	return copyRecord(f), nil
}

// ListAll возвращает копии всех записей, новые первыми.
func (m *MemoryFileRepository) ListAll(_ context.Context) ([]*model.FileRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*model.FileRecord, 0, len(m.files))
	for _, f := range m.files {
		result = append(result, copyRecord(f))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].UploadedAt.Equal(result[j].UploadedAt) {
			return result[i].ID > result[j].ID
		}
		return result[i].UploadedAt.After(result[j].UploadedAt)
	})
	return result, nil
}

// Delete удаляет запись по ID.
func (m *MemoryFileRepository) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.files[id]
	if !ok {
		return ErrNotFound
	}
	delete(m.names, f.StoredName)
	delete(m.files, id)
	return nil
}

// Count возвращает количество записей.
func (m *MemoryFileRepository) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

func copyRecord(f *model.FileRecord) *model.FileRecord {
	c := *f
	if f.MediaType != nil {
		mt := *f.MediaType
		c.MediaType = &mt
	}
	return &c
}

// Проверка соответствия интерфейсу на этапе компиляции.
var _ FileRepository = (*MemoryFileRepository)(nil)
