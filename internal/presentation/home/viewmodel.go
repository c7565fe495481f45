// Package home собирает сводку главного экрана (расписание на сегодня, просрочки,
// диаграмма выполнения и последние заметки).
package home

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/state"
	"chronoplan/internal/stream"
)

// Лимиты сводки.
const (
	MaxScheduleEntries = 4
	MaxHistoryNotes    = 3
)

// Цвета и подписи сегментов диаграммы.
const (
	ColorDone        = "#4CAF50"
	ColorPending     = "#FFC107"
	ColorMissed      = "#F44336"
	ColorCanceled    = "#9E9E9E"
	ColorPlaceholder = "#E0E0E0"

	LabelDone        = "Selesai"
	LabelPending     = "Tertunda"
	LabelMissed      = "Terlewat"
	LabelCanceled    = "Dibatalkan"
	LabelPlaceholder = "Belum ada data"
	LoadingInfo      = "Memuat..."
)

// PieSlice: сегмент диаграммы выполнения. Percentage: доля от 0 до 1.
type PieSlice struct {
	Percentage float64
	Color      string
	Label      string
}

// ScheduleEntry: строка расписания на сегодня.
type ScheduleEntry struct {
	ID    string
	Icon  string
	Title string
}

// State: снимок главного экрана.
type State struct {
	Date           string
	InfoTugas      string
	JadwalHariIni  []ScheduleEntry
	HistoryNotes   []string
	TugasTerlambat int
	PieChartData   []PieSlice
	IsLoading      bool
	ErrorMessage   string

	Agendas []domain.Agenda
	Notes   []domain.Note
}

func placeholder() []PieSlice {
	return []PieSlice{{Percentage: 1, Color: ColorPlaceholder, Label: LabelPlaceholder}}
}

// ViewModel собирает сводку из объединённого потока агенд и заметок.
type ViewModel struct {
	repo  domain.ChronoRepository
	loc   *time.Location
	now   func() time.Time
	store *state.Store[State]
	log   zerolog.Logger
}

// New создаёт модель и подписывается на оба потока.
func New(repo domain.ChronoRepository, loc *time.Location, logger zerolog.Logger) *ViewModel {
	return newViewModel(repo, loc, time.Now, logger)
}

func newViewModel(repo domain.ChronoRepository, loc *time.Location, now func() time.Time, logger zerolog.Logger) *ViewModel {
	if loc == nil {
		loc = time.Local
	}
	vm := &ViewModel{
		repo: repo,
		loc:  loc,
		now:  now,
		log:  logger.With().Str("component", "home_vm").Logger(),
	}
	vm.store = state.New(State{
		Date:         presentation.LongDate(now().UnixMilli(), loc),
		InfoTugas:    LoadingInfo,
		PieChartData: placeholder(),
		IsLoading:    true,
	})
	open := func(ctx context.Context) domain.Feed[stream.Pair[[]domain.Agenda, []domain.Note]] {
		return stream.Combine(ctx, repo.ObserveAgendas(ctx), repo.ObserveNotes(ctx))
	}
	state.Collect(vm.store, open, func(p stream.Pair[[]domain.Agenda, []domain.Note]) {
		vm.store.Update(func(s State) State {
			return vm.summarize(s, p.First, p.Second)
		})
	}, func(err error) {
		if err == nil {
			return
		}
		vm.log.Warn().Err(err).Msg("home stream failed")
		vm.store.Update(func(s State) State {
			s.IsLoading = false
			s.ErrorMessage = presentation.Message(err)
			return s
		})
	})
	return vm
}

func (vm *ViewModel) today() string { return domain.DayKey(vm.now().UnixMilli(), vm.loc) }

func (vm *ViewModel) summarize(s State, agendas []domain.Agenda, notes []domain.Note) State {
	nowMs := vm.now().UnixMilli()
	today := domain.DayKey(nowMs, vm.loc)

	var todays []domain.Agenda
	var done, pending, missed, canceled, late int
	for _, a := range agendas {
		if a.IsLate(today) {
			late++
		}
		if a.Date != today {
			continue
		}
		todays = append(todays, a)
		switch a.Status {
		case domain.StatusDone:
			done++
		case domain.StatusPending:
			pending++
		case domain.StatusMissed:
			missed++
		case domain.StatusCanceled:
			canceled++
		}
	}

	schedule := make([]ScheduleEntry, 0, MaxScheduleEntries)
	for _, a := range todays {
		if len(schedule) == MaxScheduleEntries {
			break
		}
		schedule = append(schedule, ScheduleEntry{ID: a.ID, Icon: "ic_work", Title: a.Title})
	}

	pie := placeholder()
	// Агенды с незнакомым статусом в диаграмму не попадают.
	if total := float64(done + pending + missed + canceled); total > 0 {
		pie = pie[:0]
		for _, sl := range []PieSlice{
			{Percentage: float64(done) / total, Color: ColorDone, Label: LabelDone},
			{Percentage: float64(pending) / total, Color: ColorPending, Label: LabelPending},
			{Percentage: float64(missed) / total, Color: ColorMissed, Label: LabelMissed},
			{Percentage: float64(canceled) / total, Color: ColorCanceled, Label: LabelCanceled},
		} {
			if sl.Percentage > 0 {
				pie = append(pie, sl)
			}
		}
		if len(pie) == 0 {
			pie = placeholder()
		}
	}

	recent := append([]domain.Note(nil), notes...)
	domain.SortNotesByRecent(recent)
	history := make([]string, 0, MaxHistoryNotes)
	for i := 0; i < len(recent) && i < MaxHistoryNotes; i++ {
		history = append(history, recent[i].Title)
	}

	s.Date = presentation.LongDate(nowMs, vm.loc)
	s.InfoTugas = fmt.Sprintf("%d Tugas Hari Ini", len(todays))
	s.JadwalHariIni = schedule
	s.HistoryNotes = history
	s.TugasTerlambat = late
	s.PieChartData = pie
	s.IsLoading = false
	s.Agendas = agendas
	s.Notes = recent
	return s
}

// State возвращает текущий снимок.
func (vm *ViewModel) State() State { return vm.store.Snapshot() }

// Close отменяет подписку и незавершённые действия.
func (vm *ViewModel) Close() { vm.store.Close() }

// LateTasks возвращает невыполненные агенды прошлых дней, старые сверху.
func (vm *ViewModel) LateTasks() []domain.Agenda {
	today := vm.today()
	var out []domain.Agenda
	for _, a := range vm.store.Snapshot().Agendas {
		if a.IsLate(today) {
			out = append(out, a)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date < out[j].Date })
	return out
}

// FavoriteNotes возвращает избранные заметки, свежие сверху.
func (vm *ViewModel) FavoriteNotes() []domain.Note {
	var out []domain.Note
	for _, n := range vm.store.Snapshot().Notes {
		if n.IsFavorite {
			out = append(out, n)
		}
	}
	return out
}

// AllNotes возвращает все заметки, свежие сверху.
func (vm *ViewModel) AllNotes() []domain.Note {
	return append([]domain.Note(nil), vm.store.Snapshot().Notes...)
}

func (vm *ViewModel) run(op string, fn func(ctx context.Context) error) {
	vm.store.Launch(func(ctx context.Context) {
		if err := fn(ctx); err != nil {
			vm.log.Warn().Err(err).Str("op", op).Msg("home action failed")
			vm.store.Update(func(s State) State {
				s.ErrorMessage = presentation.Message(err)
				return s
			})
		}
	})
}

// DeleteAgenda удаляет агенду.
func (vm *ViewModel) DeleteAgenda(id string) {
	vm.run("delete agenda", func(ctx context.Context) error { return vm.repo.DeleteAgenda(ctx, id) })
}

// DeleteNote удаляет заметку.
func (vm *ViewModel) DeleteNote(id string) {
	vm.run("delete note", func(ctx context.Context) error { return vm.repo.DeleteNote(ctx, id) })
}

// ToggleFavorite переключает отметку избранного у заметки.
func (vm *ViewModel) ToggleFavorite(id string) {
	vm.run("favorite", func(ctx context.Context) error {
		for _, n := range vm.store.Snapshot().Notes {
			if n.ID == id {
				n.IsFavorite = !n.IsFavorite
				n.UpdatedAt = vm.now().UnixMilli()
				return vm.repo.UpdateNote(ctx, n)
			}
		}
		return nil
	})
}
