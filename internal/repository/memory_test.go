package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/bigkaa/goartstore/fileupload/internal/domain/model"
)

func TestMemoryFileRepository_CRUD(t *testing.T) {
	repo := NewMemoryFileRepository()
	ctx := context.Background()

	f := &model.FileRecord{StoredName: "a_1.txt", OriginalName: "a.txt", MediaType: ptr("text/plain"), Size: 3}
	if err := repo.Insert(ctx, f); err != nil {
		t.Fatalf("Insert() ошибка: %v", err)
	}
	if f.ID != 1 {
		t.Errorf("ID = %d, хотели 1", f.ID)
	}
	if f.UploadedAt.IsZero() {
		t.Error("UploadedAt не установлен")
	}

	got, err := repo.FindByID(ctx, f.ID)
	if err != nil {
		t.Fatalf("FindByID() ошибка: %v", err)
	}
	if got.StoredName != f.StoredName || *got.MediaType != "text/plain" {
		t.Errorf("FindByID() = %+v", got)
	}

	// Изменение копии не влияет на индекс
	*got.MediaType = "changed"
	again, _ := repo.FindByID(ctx, f.ID)
	if *again.MediaType != "text/plain" {
		t.Error("индекс вернул разделяемую ссылку вместо копии")
	}

	if err := repo.Insert(ctx, &model.FileRecord{StoredName: "a_1.txt"}); !errors.Is(err, ErrConflict) {
		t.Errorf("ожидалась ErrConflict, получено %v", err)
	}

	if err := repo.Delete(ctx, f.ID); err != nil {
		t.Fatalf("Delete() ошибка: %v", err)
	}
	if _, err := repo.FindByID(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if err := repo.Delete(ctx, f.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("ожидалась ErrNotFound, получено %v", err)
	}
	if repo.Count() != 0 {
		t.Errorf("Count() = %d, хотели 0", repo.Count())
	}
}

func TestMemoryFileRepository_ListAllOrder(t *testing.T) {
	repo := NewMemoryFileRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	inputs := []time.Time{now.Add(-time.Hour), now, now.Add(-2 * time.Hour), now}
	for i, ts := range inputs {
		f := &model.FileRecord{StoredName: fmt.Sprintf("f_%d", i), UploadedAt: ts}
		if err := repo.Insert(ctx, f); err != nil {
			t.Fatalf("Insert() ошибка: %v", err)
		}
	}

	list, err := repo.ListAll(ctx)
	if err != nil {
		t.Fatalf("ListAll() ошибка: %v", err)
	}

	// Одинаковое время — больший ID первым
	wantIDs := []int64{4, 2, 1, 3}
	if len(list) != len(wantIDs) {
		t.Fatalf("ListAll() вернул %d записей, хотели %d", len(list), len(wantIDs))
	}
	for i, want := range wantIDs {
		if list[i].ID != want {
			t.Errorf("позиция %d: ID = %d, хотели %d", i, list[i].ID, want)
		}
	}
}

func TestMemoryFileRepository_ConcurrentInsert(t *testing.T) {
	repo := NewMemoryFileRepository()
	const n = 100

	var wg sync.WaitGroup
	ids := make([]int64, n)
	for i := range n {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			f := &model.FileRecord{StoredName: fmt.Sprintf("c_%d", i)}
			if err := repo.Insert(context.Background(), f); err != nil {
				t.Errorf("Insert() ошибка: %v", err)
			}
			ids[i] = f.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool, n)
	for _, id := range ids {
		if seen[id] {
			t.Fatalf("дублирующийся ID %d", id)
		}
		seen[id] = true
	}
}
