// Package auth реализует экраны входа и регистрации.
package auth

import (
	"context"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/state"
)

// SignInState: снимок экрана входа.
type SignInState struct {
	Email        string
	Password     string
	IsLoading    bool
	IsSignedIn   bool
	ErrorMessage string
}

// SignIn управляет экраном входа.
type SignIn struct {
	repo  domain.ChronoRepository
	store *state.Store[SignInState]
	log   zerolog.Logger
}

func NewSignIn(repo domain.ChronoRepository, logger zerolog.Logger) *SignIn {
	return &SignIn{
		repo:  repo,
		store: state.New(SignInState{}),
		log:   logger.With().Str("component", "signin_vm").Logger(),
	}
}

func (vm *SignIn) State() SignInState { return vm.store.Snapshot() }
func (vm *SignIn) Close()             { vm.store.Close() }

func (vm *SignIn) update(fn func(*SignInState)) {
	vm.store.Update(func(s SignInState) SignInState {
		fn(&s)
		return s
	})
}

func (vm *SignIn) OnEmailChange(v string) {
	vm.update(func(s *SignInState) { s.Email, s.ErrorMessage = v, "" })
}

func (vm *SignIn) OnPasswordChange(v string) {
	vm.update(func(s *SignInState) { s.Password, s.ErrorMessage = v, "" })
}

// SignIn входит с введёнными данными. Неподтверждённый адрес завершает сессию
// и показывает просьбу проверить почту.
func (vm *SignIn) SignIn() {
	cur := vm.State()
	vm.update(func(s *SignInState) { s.IsLoading, s.ErrorMessage = true, "" })
	vm.store.Launch(func(ctx context.Context) {
		id, err := vm.repo.SignIn(ctx, cur.Email, cur.Password)
		if err == nil && !id.EmailVerified {
			_ = vm.repo.SignOut(ctx)
			err = domain.E(domain.KindEmailUnverified, "sign in", nil)
		}
		if err != nil {
			vm.log.Info().Str("kind", string(domain.KindOf(err))).Msg("sign in rejected")
			vm.update(func(s *SignInState) {
				s.IsLoading = false
				s.ErrorMessage = signInMessage(err)
			})
			return
		}
		vm.update(func(s *SignInState) { s.IsLoading, s.IsSignedIn = false, true })
	})
}

// CheckAutoLogin вызывает onSignedIn, если уже есть подтверждённая сессия.
func (vm *SignIn) CheckAutoLogin(onSignedIn func()) {
	if id := vm.repo.CurrentUser(); id != nil && id.EmailVerified {
		onSignedIn()
	}
}

func signInMessage(err error) string {
	switch domain.KindOf(err) {
	case domain.KindWrongCredentials, domain.KindNotFound, domain.KindInvalidEmail:
		return presentation.MsgWrongCredentials
	}
	return presentation.Message(err)
}
