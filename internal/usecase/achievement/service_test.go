package achievement

import (
	"testing"
	"time"

	"chronoplan/internal/domain"
)

func TestEvaluateUnlocks(t *testing.T) {
	svc := NewService(time.UTC)
	got := svc.Evaluate(domain.UserStats{CompletedAgendas: 12, TotalNotes: 4, CurrentStreak: 2})

	want := map[string]struct {
		unlocked bool
		current  int
	}{
		"first_agenda":  {true, 12},
		"agenda_master": {true, 12},
		"note_taker":    {false, 4},
		"week_streak":   {false, 2},
		"productive":    {false, 12},
		"organized":     {false, 4},
	}
	if len(got) != len(want) {
		t.Fatalf("ожидали %d достижений, получили %d", len(want), len(got))
	}
	for _, a := range got {
		w, ok := want[a.ID]
		if !ok {
			t.Fatalf("неизвестное достижение %s", a.ID)
		}
		if a.IsUnlocked != w.unlocked || a.CurrentCount != w.current {
			t.Fatalf("%s: ожидали %v/%d, получили %v/%d", a.ID, w.unlocked, w.current, a.IsUnlocked, a.CurrentCount)
		}
	}
	if got[0].ID != "first_agenda" || got[5].ID != "organized" {
		t.Fatalf("порядок определений должен сохраняться")
	}
}

func TestCalculateLevel(t *testing.T) {
	cases := map[int]int{0: 1, 99: 1, 100: 2, 250: 3, -5: 1}
	for xp, want := range cases {
		if got := CalculateLevel(xp); got != want {
			t.Fatalf("CalculateLevel(%d) = %d, ожидали %d", xp, got, want)
		}
	}
}

func TestUpdateStreak(t *testing.T) {
	cases := []struct {
		last             string
		current          int
		today            string
		wantCur, wantMax int
	}{
		{"", 0, "2025-03-10", 1, 1},
		{"2025-03-10", 3, "2025-03-10", 3, 3},
		{"2025-03-09", 3, "2025-03-10", 4, 4},
		{"2025-03-01", 3, "2025-03-10", 1, 3},
		{"2025-03-12", 3, "2025-03-10", 3, 3},
		{"garbage", 3, "2025-03-10", 1, 1},
	}
	for _, c := range cases {
		cur, longest := UpdateStreak(c.last, c.current, c.today)
		if cur != c.wantCur || longest != c.wantMax {
			t.Fatalf("UpdateStreak(%q, %d): ожидали %d/%d, получили %d/%d", c.last, c.current, c.wantCur, c.wantMax, cur, longest)
		}
	}
}

func ms(day string) int64 {
	t, _ := time.ParseInLocation(domain.DayLayout, day, time.UTC)
	return t.Add(10 * time.Hour).UnixMilli()
}

func TestStats(t *testing.T) {
	svc := NewService(time.UTC)
	agendas := []domain.Agenda{
		{Status: domain.StatusDone, CreatedAt: ms("2025-03-01"), UpdatedAt: ms("2025-03-02")},
		{Status: domain.StatusDone, CreatedAt: ms("2025-03-03"), UpdatedAt: ms("2025-03-03")},
		{Status: domain.StatusPending, CreatedAt: ms("2025-03-08"), UpdatedAt: ms("2025-03-08")},
	}
	notes := []domain.Note{
		{CreatedAt: ms("2025-03-09"), UpdatedAt: ms("2025-03-10")},
	}
	stats := svc.Stats(agendas, notes, "2025-03-10")
	if stats.TotalAgendas != 3 || stats.CompletedAgendas != 2 || stats.TotalNotes != 1 {
		t.Fatalf("неверные счётчики: %+v", stats)
	}
	if stats.CurrentStreak != 3 || stats.LongestStreak != 3 {
		t.Fatalf("ожидали серии 3/3, получили %d/%d", stats.CurrentStreak, stats.LongestStreak)
	}
	if stats.LastActiveDate != "2025-03-10" {
		t.Fatalf("последний активный день: %s", stats.LastActiveDate)
	}
	if stats.Experience != 25 || stats.Level != 1 {
		t.Fatalf("опыт и уровень: %d/%d", stats.Experience, stats.Level)
	}

	broken := svc.Stats(agendas[:2], nil, "2025-03-10")
	if broken.CurrentStreak != 0 || broken.LongestStreak != 3 {
		t.Fatalf("серия должна оборваться: %+v", broken)
	}
	if empty := svc.Stats(nil, nil, "2025-03-10"); empty.CurrentStreak != 0 || empty.Level != 1 {
		t.Fatalf("пустая статистика: %+v", empty)
	}
}
