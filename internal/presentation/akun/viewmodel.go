// Package akun показывает профиль пользователя, статистика и достижения.
package akun

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/state"
	"chronoplan/internal/stream"
	"chronoplan/internal/usecase/achievement"
)

// MsgNameRequired показывается при пустом имени.
const MsgNameRequired = "Nama harus diisi"

// State: снимок экрана профиля.
type State struct {
	Username           string
	Email              string
	Level              string
	AvatarURL          *string
	IsCalendarSynced   bool
	IsUploadingAvatar  bool
	ShowEditNameDialog bool
	Achievements       []domain.AchievementEvaluation
	Stats              domain.UserStats
	IsLoading          bool
	IsLoggedOut        bool
	ErrorMessage       string
}

// ViewModel управляет экраном профиля.
type ViewModel struct {
	repo         domain.ChronoRepository
	achievements *achievement.Service
	loc          *time.Location
	now          func() time.Time
	store        *state.Store[State]
	log          zerolog.Logger
}

// New создаёт модель, загружает профиль и подписывается на статистику.
func New(repo domain.ChronoRepository, achievements *achievement.Service, loc *time.Location, logger zerolog.Logger) *ViewModel {
	return newViewModel(repo, achievements, loc, time.Now, logger)
}

func newViewModel(repo domain.ChronoRepository, achievements *achievement.Service, loc *time.Location, now func() time.Time, logger zerolog.Logger) *ViewModel {
	if loc == nil {
		loc = time.Local
	}
	vm := &ViewModel{
		repo:         repo,
		achievements: achievements,
		loc:          loc,
		now:          now,
		store: state.New(State{
			Username:     domain.DefaultDisplayName,
			Level:        domain.DefaultLevel,
			Achievements: achievements.Evaluate(domain.UserStats{}),
		}),
		log: logger.With().Str("component", "akun_vm").Logger(),
	}
	vm.LoadProfile()

	open := func(ctx context.Context) domain.Feed[stream.Pair[[]domain.Agenda, []domain.Note]] {
		return stream.Combine(ctx, repo.ObserveAgendas(ctx), repo.ObserveNotes(ctx))
	}
	state.Collect(vm.store, open, func(p stream.Pair[[]domain.Agenda, []domain.Note]) {
		stats := vm.achievements.Stats(p.First, p.Second, domain.DayKey(vm.now().UnixMilli(), vm.loc))
		evaluated := vm.achievements.Evaluate(stats)
		vm.store.Update(func(s State) State {
			s.Stats = stats
			s.Achievements = evaluated
			return s
		})
	}, func(err error) {
		if err != nil {
			vm.log.Warn().Err(err).Msg("stats stream failed")
			vm.setError(err)
		}
	})
	return vm
}

// State возвращает текущий снимок.
func (vm *ViewModel) State() State { return vm.store.Snapshot() }

// Close отменяет подписки и незавершённые действия.
func (vm *ViewModel) Close() { vm.store.Close() }

func (vm *ViewModel) update(fn func(*State)) {
	vm.store.Update(func(s State) State {
		fn(&s)
		return s
	})
}

func (vm *ViewModel) setError(err error) {
	vm.update(func(s *State) { s.ErrorMessage = presentation.Message(err) })
}

func (vm *ViewModel) loadProfile(ctx context.Context) {
	vm.update(func(s *State) { s.IsLoading = true })
	p, err := vm.repo.GetProfile(ctx)
	if err != nil {
		vm.log.Warn().Err(err).Msg("load profile")
		vm.update(func(s *State) {
			s.IsLoading = false
			s.ErrorMessage = presentation.Message(err)
		})
		return
	}
	vm.update(func(s *State) {
		s.Username = p.DisplayName
		s.Email = p.Email
		s.Level = p.Level
		s.AvatarURL = p.AvatarURL
		s.IsLoading = false
	})
}

// LoadProfile перечитывает профиль.
func (vm *ViewModel) LoadProfile() {
	vm.store.Launch(vm.loadProfile)
}

// UploadAvatar загружает аватар в avatars/<ms>.jpg и записывает адрес в профиль.
func (vm *ViewModel) UploadAvatar(body io.Reader) {
	vm.update(func(s *State) { s.IsUploadingAvatar = true })
	vm.store.Launch(func(ctx context.Context) {
		url, err := vm.setAvatar(ctx, body)
		vm.update(func(s *State) {
			s.IsUploadingAvatar = false
			if err != nil {
				s.ErrorMessage = presentation.Message(err)
				return
			}
			s.AvatarURL = &url
		})
		if err != nil {
			vm.log.Warn().Err(err).Msg("avatar upload failed")
			return
		}
		vm.loadProfile(ctx)
	})
}

func (vm *ViewModel) setAvatar(ctx context.Context, body io.Reader) (string, error) {
	url, err := vm.repo.UploadAttachment(ctx, body, fmt.Sprintf("avatars/%d.jpg", vm.now().UnixMilli()))
	if err != nil {
		return "", err
	}
	p, err := vm.repo.GetProfile(ctx)
	if err != nil {
		return "", err
	}
	p.AvatarURL = &url
	if err := vm.repo.UpdateProfile(ctx, p); err != nil {
		return "", err
	}
	return url, nil
}

// UpdateUsername меняет отображаемое имя в профиле.
func (vm *ViewModel) UpdateUsername(name string) {
	name = strings.TrimSpace(name)
	if name == "" {
		vm.update(func(s *State) { s.ErrorMessage = MsgNameRequired })
		return
	}
	vm.store.Launch(func(ctx context.Context) {
		p, err := vm.repo.GetProfile(ctx)
		if err == nil {
			p.DisplayName = name
			err = vm.repo.UpdateProfile(ctx, p)
		}
		if err != nil {
			vm.log.Warn().Err(err).Msg("update username")
			vm.setError(err)
			return
		}
		vm.update(func(s *State) {
			s.Username = name
			s.ShowEditNameDialog = false
			s.ErrorMessage = ""
		})
	})
}

// Logout завершает сессию.
func (vm *ViewModel) Logout() {
	vm.store.Launch(func(ctx context.Context) {
		if err := vm.repo.SignOut(ctx); err != nil {
			vm.setError(err)
			return
		}
		vm.update(func(s *State) { s.IsLoggedOut = true })
	})
}

// ToggleCalendarSync запоминает выбор синхронизации календаря.
func (vm *ViewModel) ToggleCalendarSync(checked bool) {
	vm.update(func(s *State) { s.IsCalendarSynced = checked })
}

func (vm *ViewModel) ShowEditNameDialog() { vm.update(func(s *State) { s.ShowEditNameDialog = true }) }
func (vm *ViewModel) HideEditNameDialog() { vm.update(func(s *State) { s.ShowEditNameDialog = false }) }
