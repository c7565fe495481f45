package mapper

import (
	"encoding/json"
	"reflect"
	"testing"

	"chronoplan/internal/domain"
)

func TestAgendaRoundTrip(t *testing.T) {
	a := domain.Agenda{
		ID: "a1", Title: "Rapat", Description: "mingguan", Date: "2026-03-10",
		StartAt: 1_773_100_000_000, EndAt: 1_773_103_600_000, Status: domain.StatusDone,
		IsFavorite: true, ReminderMinutesBefore: 30, CreatedAt: 1, UpdatedAt: 2,
	}
	if got := AgendaFromRemote("a1", AgendaToRemote(a)); !reflect.DeepEqual(got, a) {
		t.Fatalf("toDomain(toRemote(a)) = %+v, want %+v", got, a)
	}

	remote := AgendaToRemote(a)
	if back := AgendaToRemote(AgendaFromRemote("a1", remote)); !reflect.DeepEqual(back, remote) {
		t.Fatalf("toRemote(toDomain(m)) = %+v, want %+v", back, remote)
	}
}

func TestNoteRoundTripThroughJSON(t *testing.T) {
	n := domain.Note{
		ID: "n1", Title: "Resep", Content: "Nasi goreng", ContentPreview: "Nasi goreng",
		Labels: []string{"dapur"}, Attachments: []string{"https://files/x.jpg"},
		IsFavorite: true, CreatedAt: 1_773_100_000_000, UpdatedAt: 1_773_100_000_001,
	}
	raw, err := json.Marshal(NoteToRemote(n))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if got := NoteFromRemote("n1", decoded); !reflect.DeepEqual(got, n) {
		t.Fatalf("после JSON получили %+v, want %+v", got, n)
	}
}

func TestMappersTolerateMissingFields(t *testing.T) {
	a := AgendaFromRemote("legacy", map[string]any{"title": "Lama", "startAt": "oops", "labels": 5})
	if a.Title != "Lama" || a.StartAt != 0 || a.Status != domain.StatusPending || a.ReminderMinutesBefore != 0 {
		t.Fatalf("неожиданные значения по умолчанию: %+v", a)
	}

	n := NoteFromRemote("legacy", map[string]any{"labels": []any{"ok", 3, "two"}})
	if !reflect.DeepEqual(n.Labels, []string{"ok", "two"}) || n.Attachments == nil {
		t.Fatalf("метки прочитаны неверно: %+v", n)
	}

	p := ProfileFromRemote("u1", nil)
	if p.UID != "u1" || p.Level != domain.DefaultLevel || p.AvatarURL != nil {
		t.Fatalf("профиль по умолчанию: %+v", p)
	}
}

func TestProfileOmitsNilOptionals(t *testing.T) {
	avatar := "https://files/avatars/1.jpg"
	m := ProfileToRemote(domain.UserProfile{UID: "u1", DisplayName: "Alice", Email: "a@b.co", Level: "Newbie", AvatarURL: &avatar})
	if _, ok := m[FieldBirthDate]; ok {
		t.Fatalf("birthDate должен отсутствовать")
	}
	if _, ok := m[FieldGender]; ok {
		t.Fatalf("gender должен отсутствовать")
	}
	if m[FieldAvatarURL] != avatar {
		t.Fatalf("avatarUrl = %v", m[FieldAvatarURL])
	}
	back := ProfileFromRemote("u1", m)
	if back.AvatarURL == nil || *back.AvatarURL != avatar || back.DisplayName != "Alice" {
		t.Fatalf("профиль после обратного преобразования: %+v", back)
	}
}
