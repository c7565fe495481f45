package docstore

import (
	"context"
	"errors"
	"testing"

	"chronoplan/internal/domain"
)

func TestMemoryListenDeliversSnapshots(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	col := "users/u1/agendas"

	var snapshots [][]domain.Document
	reg, err := store.Listen(ctx, col, func(docs []domain.Document, err error) {
		if err != nil {
			t.Fatalf("не ожидали ошибку: %v", err)
		}
		snapshots = append(snapshots, docs)
	})
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	id, _ := store.Add(ctx, col, map[string]any{"title": "Rapat"})
	_ = store.Set(ctx, "users/u2/agendas/x", map[string]any{"title": "чужой"})
	_ = store.Delete(ctx, col+"/"+id)

	if len(snapshots) != 3 {
		t.Fatalf("ожидали 3 снимка (начальный, добавление, удаление), получили %d", len(snapshots))
	}
	if len(snapshots[0]) != 0 || len(snapshots[1]) != 1 || len(snapshots[2]) != 0 {
		t.Fatalf("неожиданные снимки: %+v", snapshots)
	}

	reg.Remove()
	reg.Remove()
	if store.Listeners(col) != 0 {
		t.Fatalf("слушатель должен быть снят")
	}
	_ = store.Set(ctx, col+"/late", map[string]any{})
	if len(snapshots) != 3 {
		t.Fatalf("после Remove снимки приходить не должны")
	}
}

func TestMemoryGetMissingAndOffline(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	if _, err := store.Get(ctx, "users/nobody"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали NotFound, получили %v", err)
	}
	store.SetOffline(errors.New("no route"))
	if err := store.Set(ctx, "users/u1", map[string]any{}); !errors.Is(err, domain.ErrNetwork) {
		t.Fatalf("ожидали Network, получили %v", err)
	}
}

func TestMemoryStoresCopies(t *testing.T) {
	store := NewMemory()
	ctx := context.Background()
	data := map[string]any{"labels": []any{"a"}}
	_ = store.Set(ctx, "users/u1/notes/n1", data)
	data["labels"].([]any)[0] = "mutated"
	doc, _ := store.Get(ctx, "users/u1/notes/n1")
	if doc.Data["labels"].([]any)[0] != "a" {
		t.Fatalf("хранилище должно копировать данные")
	}
}

func TestSplitPath(t *testing.T) {
	col, id := SplitPath("users/u1/agendas/a1")
	if col != "users/u1/agendas" || id != "a1" {
		t.Fatalf("SplitPath = %q %q", col, id)
	}
	col, id = SplitPath("users/u1")
	if col != "users" || id != "u1" {
		t.Fatalf("SplitPath = %q %q", col, id)
	}
}
