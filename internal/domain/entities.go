package domain

import (
	"sort"
	"strings"
	"time"
)

// AgendaStatus описывает состояние агенды.
type AgendaStatus string

const (
	// StatusPending: агенда ещё не выполнена.
	StatusPending AgendaStatus = "pending"
	// StatusDone: агенда выполнена.
	StatusDone AgendaStatus = "done"
	// StatusMissed: агенда помечена пропущенной.
	StatusMissed AgendaStatus = "missed"
	// StatusCanceled: агенда отменена.
	StatusCanceled AgendaStatus = "canceled"
)

// DefaultLevel: ранг нового профиля.
const DefaultLevel = "Newbie"

// DefaultDisplayName подставляется, когда имя при регистрации пустое.
const DefaultDisplayName = "Guest"

// DayLayout: формат календарного ключа дня.
const DayLayout = "2006-01-02"

// Agenda: задача, привязанная ко времени.
type Agenda struct {
	ID                    string
	Title                 string
	Description           string
	Date                  string
	StartAt               int64
	EndAt                 int64
	Status                AgendaStatus
	IsFavorite            bool
	ReminderMinutesBefore int
	CreatedAt             int64
	UpdatedAt             int64
}

// IsLate сообщает, просрочена ли агенда относительно дня today.
func (a Agenda) IsLate(today string) bool {
	return a.Status != StatusDone && a.Date != "" && a.Date < today
}

// ReminderAt возвращает момент напоминания в epoch ms и false, если напоминание выключено.
func (a Agenda) ReminderAt() (int64, bool) {
	if a.ReminderMinutesBefore <= 0 {
		return 0, false
	}
	return a.StartAt - int64(a.ReminderMinutesBefore)*time.Minute.Milliseconds(), true
}

// Note: заметка пользователя.
type Note struct {
	ID             string
	Title          string
	Content        string
	ContentPreview string
	Labels         []string
	Attachments    []string
	IsFavorite     bool
	CreatedAt      int64
	UpdatedAt      int64
}

// Matches проверяет вхождение запроса в заголовок, текст или метки без учёта регистра.
func (n Note) Matches(query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	if strings.Contains(strings.ToLower(n.Title), q) || strings.Contains(strings.ToLower(n.Content), q) {
		return true
	}
	for _, l := range n.Labels {
		if strings.Contains(strings.ToLower(l), q) {
			return true
		}
	}
	return false
}

// SortNotesByRecent упорядочивает заметки по updatedAt по убыванию.
func SortNotesByRecent(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].UpdatedAt != notes[j].UpdatedAt {
			return notes[i].UpdatedAt > notes[j].UpdatedAt
		}
		return notes[i].ID < notes[j].ID
	})
}

// UserProfile хранится в users/{uid}.
type UserProfile struct {
	UID         string
	DisplayName string
	Email       string
	AvatarURL   *string
	BirthDate   *string
	Gender      *string
	Level       string
	CreatedAt   int64
}

// UserStats вычисляется из потоков агенд и заметок и никогда не сохраняется.
type UserStats struct {
	TotalAgendas     int
	CompletedAgendas int
	TotalNotes       int
	CurrentStreak    int
	LongestStreak    int
	LastActiveDate   string
	Level            int
	Experience       int
}

// Identity: снимок аутентифицированного пользователя.
type Identity struct {
	UID           string
	Email         string
	EmailVerified bool
}

// DayKey возвращает календарный день момента ms в зоне loc.
func DayKey(ms int64, loc *time.Location) string {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(ms).In(loc).Format(DayLayout)
}

// DaysBetween считает разницу в календарных днях между from и to (to - from).
func DaysBetween(from, to string) (int, error) {
	a, err := time.Parse(DayLayout, from)
	if err != nil {
		return 0, err
	}
	b, err := time.Parse(DayLayout, to)
	if err != nil {
		return 0, err
	}
	return int(b.Sub(a).Hours() / 24), nil
}

// StrPtr возвращает указатель на непустую строку.
func StrPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
