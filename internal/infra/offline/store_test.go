package offline

import (
	"context"
	"testing"

	"chronoplan/internal/domain"
)

func TestStorePutGetDelete(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()

	if err := s.Put(ctx, "users/u1/notes", "users/u1/notes/n1", "n1", map[string]any{"title": "Resep"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	doc, ok, err := s.Get(ctx, "users/u1/notes/n1")
	if err != nil || !ok || doc.Data["title"] != "Resep" {
		t.Fatalf("get = %+v %v %v", doc, ok, err)
	}
	_ = s.Delete(ctx, "users/u1/notes/n1")
	if _, ok, _ := s.Get(ctx, "users/u1/notes/n1"); ok {
		t.Fatalf("документ должен быть удалён")
	}
}

func TestStoreReplaceCollection(t *testing.T) {
	s, err := OpenMemory()
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer s.Close()
	ctx := context.Background()
	col := "users/u1/agendas"

	_ = s.Put(ctx, col, col+"/old", "old", map[string]any{"title": "lama"})
	err = s.ReplaceCollection(ctx, col, []domain.Document{
		{ID: "a", Data: map[string]any{"title": "A"}},
		{ID: "b", Data: map[string]any{"title": "B"}},
	})
	if err != nil {
		t.Fatalf("replace: %v", err)
	}
	docs, err := s.List(ctx, col)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 2 || docs[0].ID != "a" || docs[1].ID != "b" {
		t.Fatalf("ожидали [a b], получили %+v", docs)
	}
	if doc, ok, _ := s.Get(ctx, col+"/b"); !ok || doc.Data["title"] != "B" {
		t.Fatalf("документ b должен читаться по пути")
	}
}
