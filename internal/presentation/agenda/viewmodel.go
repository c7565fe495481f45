// Package agenda описывает состояние и действия экрана агенд.
package agenda

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/state"
	"chronoplan/internal/usecase/reminder"
)

// State: снимок экрана агенд.
type State struct {
	Agendas               []domain.Agenda
	TodayAgendas          []domain.Agenda
	SelectedDate          int64
	SelectedDateFormatted string
	IsLoading             bool
	ErrorMessage          string
	ShowAddDialog         bool
	ShowHistoryDialog     bool
	ShowDatePicker        bool
	SelectedAgenda        *domain.Agenda
	ShowDetailDialog      bool
}

// Reminders планирует и отзывает напоминания агенд.
type Reminders interface {
	Schedule(ctx context.Context, agendaID, title, body string, delay time.Duration) error
	Cancel(ctx context.Context, agendaID string) error
}

// ViewModel управляет экраном агенд.
type ViewModel struct {
	repo      domain.ChronoRepository
	reminders Reminders
	loc       *time.Location
	now       func() time.Time
	store     *state.Store[State]
	log       zerolog.Logger

	// toggles хранит статус, выбранный последним переключением, пока поток
	// не подтвердит его. writeMu упорядочивает записи переключений.
	toggleMu sync.Mutex
	toggles  map[string]*toggle
	writeMu  sync.Mutex
}

type toggle struct {
	target  domain.AgendaStatus
	written bool
}

// New создаёт модель и подписывается на агенды пользователя.
func New(repo domain.ChronoRepository, reminders Reminders, loc *time.Location, logger zerolog.Logger) *ViewModel {
	return newViewModel(repo, reminders, loc, time.Now, logger)
}

func newViewModel(repo domain.ChronoRepository, reminders Reminders, loc *time.Location, now func() time.Time, logger zerolog.Logger) *ViewModel {
	if loc == nil {
		loc = time.Local
	}
	vm := &ViewModel{
		repo:      repo,
		reminders: reminders,
		loc:       loc,
		now:       now,
		log:       logger.With().Str("component", "agenda_vm").Logger(),
		toggles:   make(map[string]*toggle),
	}
	vm.store = state.New(vm.derive(State{SelectedDate: now().UnixMilli(), IsLoading: true}))
	state.Collect(vm.store, repo.ObserveAgendas, func(list []domain.Agenda) {
		vm.store.Update(func(s State) State {
			s.Agendas = list
			s.IsLoading = false
			return vm.derive(s)
		})
		vm.settleToggles(list)
	}, func(err error) {
		if err == nil {
			return
		}
		vm.log.Warn().Err(err).Msg("agenda stream failed")
		vm.store.Update(func(s State) State {
			s.IsLoading = false
			s.ErrorMessage = presentation.Message(err)
			return s
		})
	})
	return vm
}

// derive пересчитывает срез выбранного дня и подпись даты из Agendas и SelectedDate.
func (vm *ViewModel) derive(s State) State {
	day := domain.DayKey(s.SelectedDate, vm.loc)
	today := make([]domain.Agenda, 0, len(s.Agendas))
	for _, a := range s.Agendas {
		if a.Date == day {
			today = append(today, a)
		}
	}
	s.TodayAgendas = today
	s.SelectedDateFormatted = presentation.LongDate(s.SelectedDate, vm.loc)
	return s
}

// State возвращает текущий снимок.
func (vm *ViewModel) State() State { return vm.store.Snapshot() }

// Close отменяет подписки и незавершённые действия.
func (vm *ViewModel) Close() { vm.store.Close() }

func (vm *ViewModel) fail(op string, err error) {
	vm.log.Warn().Err(err).Str("op", op).Msg("agenda action failed")
	vm.store.Update(func(s State) State {
		s.ErrorMessage = presentation.Message(err)
		return s
	})
}

func (vm *ViewModel) find(id string) (domain.Agenda, bool) {
	for _, a := range vm.store.Snapshot().Agendas {
		if a.ID == id {
			return a, true
		}
	}
	return domain.Agenda{}, false
}

// schedule ставит напоминание, если его момент ещё впереди.
func (vm *ViewModel) schedule(ctx context.Context, a domain.Agenda) error {
	at, ok := a.ReminderAt()
	if !ok {
		return nil
	}
	delay := time.Duration(at-vm.now().UnixMilli()) * time.Millisecond
	if delay <= 0 {
		return nil
	}
	return vm.reminders.Schedule(ctx, a.ID, a.Title, reminder.Body(a.ReminderMinutesBefore), delay)
}

// ToggleTaskDone переключает статус между done и pending. Направление выбирается в
// момент вызова с учётом ещё не подтверждённых переключений.
func (vm *ViewModel) ToggleTaskDone(id string) {
	vm.toggleMu.Lock()
	current, ok := vm.find(id)
	if !ok {
		vm.toggleMu.Unlock()
		return
	}
	base := current.Status
	if t, ok := vm.toggles[id]; ok {
		base = t.target
	}
	target := domain.StatusDone
	if base == domain.StatusDone {
		target = domain.StatusPending
	}
	vm.toggles[id] = &toggle{target: target}
	vm.toggleMu.Unlock()

	vm.store.Launch(func(ctx context.Context) {
		vm.writeMu.Lock()
		defer vm.writeMu.Unlock()

		vm.toggleMu.Lock()
		t, ok := vm.toggles[id]
		if !ok || t.written {
			vm.toggleMu.Unlock()
			return
		}
		t.written = true
		target := t.target
		vm.toggleMu.Unlock()

		current, ok := vm.find(id)
		if !ok {
			vm.dropToggle(id, target)
			return
		}
		updated := current
		updated.Status = target
		updated.UpdatedAt = vm.now().UnixMilli()
		if err := vm.repo.UpdateAgenda(ctx, updated); err != nil {
			vm.dropToggle(id, target)
			vm.fail("toggle", err)
			return
		}
		// Снимок может отставать от предыдущей записи, поэтому напоминание
		// пересобирается всегда.
		vm.resync(ctx, updated)
	})
}

// settleToggles забывает переключения, статус которых уже пришёл из потока.
// Вызывается после публикации снимка со списком.
func (vm *ViewModel) settleToggles(list []domain.Agenda) {
	vm.toggleMu.Lock()
	defer vm.toggleMu.Unlock()
	if len(vm.toggles) == 0 {
		return
	}
	for _, a := range list {
		if t, ok := vm.toggles[a.ID]; ok && t.written && t.target == a.Status {
			delete(vm.toggles, a.ID)
		}
	}
}

func (vm *ViewModel) dropToggle(id string, target domain.AgendaStatus) {
	vm.toggleMu.Lock()
	defer vm.toggleMu.Unlock()
	if t, ok := vm.toggles[id]; ok && t.target == target {
		delete(vm.toggles, id)
	}
}

// AddAgenda сохраняет агенду и планирует напоминание.
func (vm *ViewModel) AddAgenda(a domain.Agenda) {
	vm.store.Launch(func(ctx context.Context) {
		id, err := vm.repo.AddAgenda(ctx, a)
		if err != nil {
			vm.fail("add", err)
			return
		}
		a.ID = id
		if err := vm.schedule(ctx, a); err != nil {
			vm.log.Warn().Err(err).Str("agenda_id", id).Msg("schedule reminder")
		}
		vm.store.Update(func(s State) State {
			s.ShowAddDialog = false
			s.ErrorMessage = ""
			return s
		})
	})
}

// UpdateAgenda сохраняет правку и пересобирает напоминание.
func (vm *ViewModel) UpdateAgenda(a domain.Agenda) {
	prev, _ := vm.find(a.ID)
	vm.store.Launch(func(ctx context.Context) {
		if err := vm.repo.UpdateAgenda(ctx, a); err != nil {
			vm.fail("update", err)
			return
		}
		vm.reconcile(ctx, prev, a)
	})
}

// reconcile отзывает напоминание, если изменились время, смещение или статус, и ставит
// заново для невыполненной агенды.
func (vm *ViewModel) reconcile(ctx context.Context, prev, next domain.Agenda) {
	if prev.StartAt == next.StartAt && prev.ReminderMinutesBefore == next.ReminderMinutesBefore && prev.Status == next.Status {
		return
	}
	vm.resync(ctx, next)
}

// resync отзывает напоминания агенды и ставит новое, если она ещё не выполнена.
func (vm *ViewModel) resync(ctx context.Context, next domain.Agenda) {
	if err := vm.reminders.Cancel(ctx, next.ID); err != nil {
		vm.log.Warn().Err(err).Str("agenda_id", next.ID).Msg("cancel reminder")
	}
	if next.Status != domain.StatusPending {
		return
	}
	if err := vm.schedule(ctx, next); err != nil {
		vm.log.Warn().Err(err).Str("agenda_id", next.ID).Msg("schedule reminder")
	}
}

// DeleteAgenda удаляет агенду и её напоминания.
func (vm *ViewModel) DeleteAgenda(id string) {
	vm.store.Launch(func(ctx context.Context) {
		if err := vm.repo.DeleteAgenda(ctx, id); err != nil {
			vm.fail("delete", err)
			return
		}
		if err := vm.reminders.Cancel(ctx, id); err != nil {
			vm.log.Warn().Err(err).Str("agenda_id", id).Msg("cancel reminder")
		}
	})
}

// ChangeDate выбирает день по моменту ms.
func (vm *ViewModel) ChangeDate(ms int64) {
	vm.store.Update(func(s State) State {
		s.SelectedDate = ms
		s.ShowDatePicker = false
		return vm.derive(s)
	})
}

// ResetToToday возвращает выбор на текущий день.
func (vm *ViewModel) ResetToToday() { vm.ChangeDate(vm.now().UnixMilli()) }

func (vm *ViewModel) flip(fn func(*State)) {
	vm.store.Update(func(s State) State {
		fn(&s)
		return s
	})
}

func (vm *ViewModel) ShowAddDialog()     { vm.flip(func(s *State) { s.ShowAddDialog = true }) }
func (vm *ViewModel) HideAddDialog()     { vm.flip(func(s *State) { s.ShowAddDialog = false }) }
func (vm *ViewModel) ShowHistoryDialog() { vm.flip(func(s *State) { s.ShowHistoryDialog = true }) }
func (vm *ViewModel) HideHistoryDialog() { vm.flip(func(s *State) { s.ShowHistoryDialog = false }) }
func (vm *ViewModel) ShowDatePicker()    { vm.flip(func(s *State) { s.ShowDatePicker = true }) }
func (vm *ViewModel) HideDatePicker()    { vm.flip(func(s *State) { s.ShowDatePicker = false }) }
func (vm *ViewModel) ClearError()        { vm.flip(func(s *State) { s.ErrorMessage = "" }) }

// ShowAgendaDetail открывает карточку агенды.
func (vm *ViewModel) ShowAgendaDetail(a domain.Agenda) {
	vm.flip(func(s *State) {
		s.SelectedAgenda = &a
		s.ShowDetailDialog = true
	})
}

// ShowAgendaByID открывает карточку по идентификатору, например из диплинка напоминания.
func (vm *ViewModel) ShowAgendaByID(id string) bool {
	a, ok := vm.find(id)
	if ok {
		vm.ShowAgendaDetail(a)
	}
	return ok
}

func (vm *ViewModel) HideAgendaDetail() {
	vm.flip(func(s *State) {
		s.SelectedAgenda = nil
		s.ShowDetailDialog = false
	})
}
