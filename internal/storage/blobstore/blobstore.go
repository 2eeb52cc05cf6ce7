// Пакет blobstore — хранение содержимого загруженных файлов на диске.
// Обеспечивает streaming-запись с ограничением размера, чтение
// и идемпотентное удаление blob по имени хранения.
//
// Имя хранения генерируется из оригинального имени и UUID v4 и никогда
// не совпадает с именем, переданным клиентом, поэтому загрузки с одинаковыми
// именами не перезаписывают друг друга.
package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Ошибки blob store.
var (
	// ErrSizeLimitExceeded — поток превысил максимальный размер файла.
	ErrSizeLimitExceeded = errors.New("превышен максимальный размер файла")
	// ErrIOFailure — ошибка ввода-вывода при работе с диском.
	ErrIOFailure = errors.New("ошибка ввода-вывода")
	// ErrBlobNotFound — blob с указанным именем не существует.
	ErrBlobNotFound = errors.New("blob не найден")
	// ErrInvalidName — имя хранения не является именем файла в директории.
	ErrInvalidName = errors.New("некорректное имя blob")
)

const (
	// tmpPrefix — префикс временных файлов. Скрытые файлы не считаются blob.
	tmpPrefix = ".upload-"
	tmpSuffix = ".tmp"

	// maxNameLen — ограничение длины базовой части имени.
	maxNameLen = 50
	// maxExtLen — ограничение длины расширения (без точки).
	maxExtLen = 16
	// commitAttempts — число попыток зафиксировать blob под новым именем.
	commitAttempts = 3
)

// Store — хранилище blob в одной директории.
type Store struct {
	// dataDir — директория хранения (FU_DATA_DIR)
	dataDir string
	// maxSize — максимальный размер blob в байтах
	maxSize int64
	// commits — фиксации blob держат RLock до записи в индекс,
	// удаление orphan blob держит Lock
	commits sync.RWMutex
}

// Staged — содержимое, записанное во временный файл и ещё не
// зафиксированное под именем хранения.
type Staged struct {
	store         *Store
	tmpPath       string
	suggestedName string
	size          int64
}

// PutResult — результат сохранения blob.
type PutResult struct {
	// StoredName — имя файла в dataDir
	StoredName string
	// Size — количество записанных байт
	Size int64
}

// BlobInfo — сведения о blob на диске.
type BlobInfo struct {
	StoredName string
	Size       int64
	ModTime    time.Time
}

// New создаёт Store. Создаёт директорию, если она не существует.
func New(dataDir string, maxSize int64) (*Store, error) {
	if maxSize <= 0 {
		return nil, fmt.Errorf("максимальный размер должен быть положительным: %d", maxSize)
	}
	if err := os.MkdirAll(dataDir, 0o750); err != nil {
		return nil, fmt.Errorf("не удалось создать директорию данных %s: %w", dataDir, err)
	}

	return &Store{dataDir: dataDir, maxSize: maxSize}, nil
}

// DataDir возвращает путь к директории данных.
func (s *Store) DataDir() string {
	return s.dataDir
}

// MaxSize возвращает максимальный размер blob.
func (s *Store) MaxSize() int64 {
	return s.maxSize
}

// Put записывает поток в новый blob.
// suggestedName — оригинальное имя файла, используется только как основа
// для имени хранения.
func (s *Store) Put(ctx context.Context, r io.Reader, suggestedName string) (*PutResult, error) {
	staged, err := s.Stage(ctx, r, suggestedName)
	if err != nil {
		return nil, err
	}
	defer staged.Discard()

	release := s.BeginCommit()
	defer release()
	return staged.Commit()
}

// Stage записывает поток во временный файл.
//
// Паттерн: temp файл → запись с подсчётом байт → fsync. Фиксация под
// уникальным именем выполняется отдельно через Commit. Вызывающий код
// обязан вызвать Discard.
func (s *Store) Stage(ctx context.Context, r io.Reader, suggestedName string) (*Staged, error) {
	f, err := os.CreateTemp(s.dataDir, tmpPrefix+"*"+tmpSuffix)
	if err != nil {
		return nil, fmt.Errorf("%w: создание временного файла: %w", ErrIOFailure, err)
	}
	tmpPath := f.Name()

	// Читаем не больше maxSize+1 байт: лишний байт означает превышение лимита
	limited := io.LimitReader(&ctxReader{ctx: ctx, r: r}, s.maxSize+1)

	size, err := io.Copy(f, limited)
	if err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: запись данных: %w", ErrIOFailure, err)
	}
	if size > s.maxSize {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: больше %d байт", ErrSizeLimitExceeded, s.maxSize)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: fsync: %w", ErrIOFailure, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmpPath)
		return nil, fmt.Errorf("%w: закрытие файла: %w", ErrIOFailure, err)
	}

	return &Staged{store: s, tmpPath: tmpPath, suggestedName: suggestedName, size: size}, nil
}

// Size возвращает количество записанных байт.
func (st *Staged) Size() int64 {
	return st.size
}

// Commit фиксирует содержимое под новым именем хранения.
// Вызывается между BeginCommit и его release.
func (st *Staged) Commit() (*PutResult, error) {
	storedName, err := st.store.commit(st.tmpPath, st.suggestedName)
	if err != nil {
		return nil, err
	}
	return &PutResult{StoredName: storedName, Size: st.size}, nil
}

// Discard удаляет временный файл. Зафиксированный blob не затрагивается.
func (st *Staged) Discard() {
	os.Remove(st.tmpPath)
}

// BeginCommit открывает окно фиксации blob. Окно должно закрываться
// после записи метаданных в индекс, чтобы PauseCommits не застал blob
// без записи. Окна разных загрузок не мешают друг другу.
func (s *Store) BeginCommit() (release func()) {
	s.commits.RLock()
	return s.commits.RUnlock
}

// PauseCommits ждёт закрытия всех открытых окон фиксации и не даёт
// открывать новые до вызова resume.
func (s *Store) PauseCommits() (resume func()) {
	s.commits.Lock()
	return s.commits.Unlock
}

// commit фиксирует temp файл под новым уникальным именем.
// os.Link завершается ошибкой, если имя занято, поэтому
// конкурентные загрузки не могут перезаписать чужой blob.
func (s *Store) commit(tmpPath, suggestedName string) (string, error) {
	var lastErr error
	for range commitAttempts {
		storedName := generateStoredName(suggestedName)
		err := os.Link(tmpPath, filepath.Join(s.dataDir, storedName))
		if err == nil {
			return storedName, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return "", fmt.Errorf("%w: фиксация blob: %w", ErrIOFailure, err)
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: не удалось подобрать уникальное имя: %w", ErrIOFailure, lastErr)
}

// Open открывает blob для чтения. Вызывающий код обязан закрыть файл.
func (s *Store) Open(storedName string) (*os.File, error) {
	if err := validateName(storedName); err != nil {
		return nil, err
	}

	f, err := os.Open(filepath.Join(s.dataDir, storedName))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrBlobNotFound, storedName)
		}
		return nil, fmt.Errorf("%w: открытие %s: %w", ErrIOFailure, storedName, err)
	}
	return f, nil
}

// Delete удаляет blob. Отсутствующий blob не считается ошибкой.
func (s *Store) Delete(storedName string) error {
	if err := validateName(storedName); err != nil {
		return err
	}

	err := os.Remove(filepath.Join(s.dataDir, storedName))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: удаление %s: %w", ErrIOFailure, storedName, err)
	}
	return nil
}

// Exists проверяет существование blob.
func (s *Store) Exists(storedName string) bool {
	if validateName(storedName) != nil {
		return false
	}
	_, err := os.Stat(filepath.Join(s.dataDir, storedName))
	return err == nil
}

// List возвращает все зафиксированные blob директории.
// Временные и скрытые файлы, а также поддиректории пропускаются.
func (s *Store) List() ([]BlobInfo, error) {
	entries, err := os.ReadDir(s.dataDir)
	if err != nil {
		return nil, fmt.Errorf("%w: чтение директории %s: %w", ErrIOFailure, s.dataDir, err)
	}

	result := make([]BlobInfo, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Файл удалён между ReadDir и Info
			continue
		}
		result = append(result, BlobInfo{
			StoredName: entry.Name(),
			Size:       info.Size(),
			ModTime:    info.ModTime(),
		})
	}
	return result, nil
}

// CheckWritable проверяет, что в директорию данных можно писать.
// Используется readiness probe.
func (s *Store) CheckWritable() error {
	f, err := os.CreateTemp(s.dataDir, tmpPrefix+"probe-*"+tmpSuffix)
	if err != nil {
		return fmt.Errorf("директория %s недоступна для записи: %w", s.dataDir, err)
	}
	name := f.Name()
	f.Close()
	return os.Remove(name)
}

// validateName проверяет, что имя — один элемент пути внутри dataDir.
func validateName(storedName string) error {
	if storedName == "" || storedName != filepath.Base(storedName) ||
		strings.HasPrefix(storedName, ".") || strings.ContainsAny(storedName, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidName, storedName)
	}
	return nil
}

// generateStoredName генерирует имя хранения blob.
// Формат: {name}_{uuid}.{ext}
// Пример: report_1b4e28ba-2fa1-41d2-883f-0016d3cca427.pdf
func generateStoredName(originalName string) string {
	base := filepath.Base(strings.ReplaceAll(originalName, `\`, "/"))
	ext := filepath.Ext(base)
	name := strings.TrimSuffix(base, ext)

	name = sanitize(name)
	if len([]rune(name)) > maxNameLen {
		name = string([]rune(name)[:maxNameLen])
	}

	ext = sanitizeExt(ext)
	uid := uuid.New().String()

	if ext != "" {
		return fmt.Sprintf("%s_%s.%s", name, uid, ext)
	}
	return fmt.Sprintf("%s_%s", name, uid)
}

// sanitize убирает небезопасные символы из строки для использования в имени файла.
// Оставляет только буквы, цифры, дефис и подчёркивание.
func sanitize(s string) string {
	var result strings.Builder
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') ||
			(r >= '0' && r <= '9') || r == '-' || r == '_' ||
			(r >= 0x0400 && r <= 0x04FF) { // Кириллица
			result.WriteRune(r)
		}
	}
	if result.Len() == 0 {
		return "file"
	}
	return result.String()
}

// sanitizeExt оставляет в расширении только латинские буквы и цифры.
func sanitizeExt(ext string) string {
	var result strings.Builder
	for _, r := range strings.TrimPrefix(ext, ".") {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			result.WriteRune(r)
		}
		if result.Len() >= maxExtLen {
			break
		}
	}
	return result.String()
}

// ctxReader прерывает чтение при отмене контекста запроса.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
