package domain

// AchievementCategory определяет, какой показатель статистики считается прогрессом.
type AchievementCategory string

const (
	CategoryAgenda AchievementCategory = "agenda"
	CategoryNote   AchievementCategory = "note"
	CategoryStreak AchievementCategory = "streak"
)

// Achievement: неизменяемое описание достижения.
type Achievement struct {
	ID            string
	Name          string
	Description   string
	Icon          string
	RequiredCount int
	Category      AchievementCategory
}

// AchievementEvaluation: достижение с прогрессом для конкретного снимка статистики.
type AchievementEvaluation struct {
	Achievement
	CurrentCount int
	IsUnlocked   bool
}

var achievements = []Achievement{
	{ID: "first_agenda", Name: "Langkah Pertama", Description: "Buat agenda pertama kamu", Icon: "ic_star", RequiredCount: 1, Category: CategoryAgenda},
	{ID: "agenda_master", Name: "Master Agenda", Description: "Selesaikan 10 agenda", Icon: "ic_work", RequiredCount: 10, Category: CategoryAgenda},
	{ID: "note_taker", Name: "Pencatat Ulung", Description: "Buat 5 catatan", Icon: "ic_note", RequiredCount: 5, Category: CategoryNote},
	{ID: "week_streak", Name: "Konsisten!", Description: "Login 7 hari berturut-turut", Icon: "ic_calendar", RequiredCount: 7, Category: CategoryStreak},
	{ID: "productive", Name: "Sangat Produktif", Description: "Selesaikan 50 agenda", Icon: "ic_star", RequiredCount: 50, Category: CategoryAgenda},
	{ID: "organized", Name: "Terorganisir", Description: "Buat 20 catatan", Icon: "ic_note", RequiredCount: 20, Category: CategoryNote},
}

// Achievements возвращает копию набора достижений в фиксированном порядке.
func Achievements() []Achievement {
	out := make([]Achievement, len(achievements))
	copy(out, achievements)
	return out
}
