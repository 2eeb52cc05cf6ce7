package service

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
	"github.com/bigkaa/goartstore/fileupload/internal/repository"
	"github.com/bigkaa/goartstore/fileupload/internal/storage/blobstore"
)

// failingRepo — индекс, в котором Insert всегда завершается ошибкой.
type failingRepo struct {
	*repository.MemoryFileRepository
	insertErr error
}

func (f *failingRepo) Insert(_ context.Context, _ *model.FileRecord) error {
	return f.insertErr
}

// testEnv — окружение сервисного слоя на временной директории.
type testEnv struct {
	store   *blobstore.Store
	repo    *repository.MemoryFileRepository
	cache   *RecordCache
	uploads *UploadService
	files   *FileService
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEnv(t *testing.T, maxSize int64) *testEnv {
	t.Helper()

	store, err := blobstore.New(t.TempDir(), maxSize)
	if err != nil {
		t.Fatalf("blobstore.New() ошибка: %v", err)
	}
	repo := repository.NewMemoryFileRepository()
	cache := NewRecordCache(100, 0)
	logger := testLogger()

	return &testEnv{
		store:   store,
		repo:    repo,
		cache:   cache,
		uploads: NewUploadService(store, repo, logger),
		files:   NewFileService(store, repo, cache, logger),
	}
}

func (e *testEnv) upload(t *testing.T, name, content string) *model.FileRecord {
	t.Helper()
	rec, err := e.uploads.Upload(context.Background(), UploadRequest{
		Reader:       strings.NewReader(content),
		OriginalName: name,
	})
	if err != nil {
		t.Fatalf("Upload(%s) ошибка: %v", name, err)
	}
	return rec
}

func readBlob(t *testing.T, store *blobstore.Store, storedName string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join(store.DataDir(), storedName))
	if err != nil {
		t.Fatalf("чтение blob %s: %v", storedName, err)
	}
	return string(data)
}

func blobCount(t *testing.T, store *blobstore.Store) int {
	t.Helper()
	blobs, err := store.List()
	if err != nil {
		t.Fatalf("List() ошибка: %v", err)
	}
	return len(blobs)
}

func strPtr(s string) *string { return &s }
