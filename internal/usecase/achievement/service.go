package achievement

import (
	"sort"
	"time"

	"chronoplan/internal/domain"
)

// Очки опыта за активность.
const (
	XPPerCompletedAgenda = 10
	XPPerNote            = 5
	XPPerLevel           = 100
)

// Service вычисляет статистику и достижения. Состояния не хранит.
type Service struct {
	loc *time.Location
}

// NewService создаёт сервис. loc задаёт границы календарных дней.
func NewService(loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{loc: loc}
}

// Evaluate сопоставляет статистику с набором достижений.
func (s *Service) Evaluate(stats domain.UserStats) []domain.AchievementEvaluation {
	defs := domain.Achievements()
	out := make([]domain.AchievementEvaluation, 0, len(defs))
	for _, a := range defs {
		var current int
		switch a.Category {
		case domain.CategoryAgenda:
			current = stats.CompletedAgendas
		case domain.CategoryNote:
			current = stats.TotalNotes
		case domain.CategoryStreak:
			current = stats.CurrentStreak
		}
		out = append(out, domain.AchievementEvaluation{
			Achievement:  a,
			CurrentCount: current,
			IsUnlocked:   current >= a.RequiredCount,
		})
	}
	return out
}

// CalculateLevel переводит опыт в уровень, начиная с первого.
func CalculateLevel(experience int) int {
	if experience < 0 {
		experience = 0
	}
	return experience/XPPerLevel + 1
}

// UpdateStreak продлевает серию на день активности today и возвращает новую текущую
// и самую длинную серию. Дата today раньше lastActive серию не меняет.
func UpdateStreak(lastActive string, current int, today string) (int, int) {
	if lastActive == "" {
		return 1, 1
	}
	diff, err := domain.DaysBetween(lastActive, today)
	if err != nil {
		return 1, 1
	}
	switch {
	case diff < 0, diff == 0:
		return current, current
	case diff == 1:
		return current + 1, current + 1
	default:
		return 1, current
	}
}

// Stats строит снимок статистики по агендам и заметкам. Днём активности считается день
// создания или изменения любой записи. Текущая серия обрывается, если последний такой день
// раньше вчерашнего.
func (s *Service) Stats(agendas []domain.Agenda, notes []domain.Note, today string) domain.UserStats {
	stats := domain.UserStats{TotalAgendas: len(agendas), TotalNotes: len(notes)}
	days := make(map[string]struct{})
	mark := func(ms int64) {
		if ms > 0 {
			days[domain.DayKey(ms, s.loc)] = struct{}{}
		}
	}
	for _, a := range agendas {
		if a.Status == domain.StatusDone {
			stats.CompletedAgendas++
		}
		mark(a.CreatedAt)
		mark(a.UpdatedAt)
	}
	for _, n := range notes {
		mark(n.CreatedAt)
		mark(n.UpdatedAt)
	}

	ordered := make([]string, 0, len(days))
	for d := range days {
		if d <= today {
			ordered = append(ordered, d)
		}
	}
	sort.Strings(ordered)

	var current, longest int
	last := ""
	for _, d := range ordered {
		var best int
		current, best = UpdateStreak(last, current, d)
		longest = max(longest, best, current)
		last = d
	}
	if last != "" {
		if gap, err := domain.DaysBetween(last, today); err == nil && gap > 1 {
			current = 0
		}
	}
	stats.CurrentStreak = current
	stats.LongestStreak = longest
	stats.LastActiveDate = last
	stats.Experience = stats.CompletedAgendas*XPPerCompletedAgenda + stats.TotalNotes*XPPerNote
	stats.Level = CalculateLevel(stats.Experience)
	return stats
}
