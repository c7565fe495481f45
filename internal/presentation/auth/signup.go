package auth

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/state"
)

// Тексты проверки формы регистрации.
const (
	MsgNameRequired     = "Nama harus diisi"
	MsgNameTooShort     = "Nama minimal 3 karakter"
	MsgEmailRequired    = "Email harus diisi"
	MsgEmailDummy       = "Gunakan email asli"
	MsgPasswordRequired = "Password harus diisi"
	MsgPasswordWeak     = "Password harus mengandung huruf dan angka"
	MsgCheckInbox       = "Link verifikasi sudah dikirim. Silakan cek inbox email Anda."
)

// MinNameLength: минимальная длина отображаемого имени.
const MinNameLength = 3

var dummyEmailParts = []string{
	"test", "dummy", "fake", "asdf", "qwerty",
	"aaaa", "bbbb", "cccc", "dddd", "eeee",
	"1234", "sample", "example",
}

// SignUpState: снимок экрана регистрации.
type SignUpState struct {
	DisplayName            string
	Email                  string
	Password               string
	IsLoading              bool
	ShowVerificationDialog bool
	NavigateToSignIn       bool
	InfoMessage            string
	ErrorMessage           string
}

// SignUp управляет экраном регистрации.
type SignUp struct {
	repo  domain.ChronoRepository
	store *state.Store[SignUpState]
	log   zerolog.Logger
}

func NewSignUp(repo domain.ChronoRepository, logger zerolog.Logger) *SignUp {
	return &SignUp{
		repo:  repo,
		store: state.New(SignUpState{}),
		log:   logger.With().Str("component", "signup_vm").Logger(),
	}
}

func (vm *SignUp) State() SignUpState { return vm.store.Snapshot() }
func (vm *SignUp) Close()             { vm.store.Close() }

func (vm *SignUp) update(fn func(*SignUpState)) {
	vm.store.Update(func(s SignUpState) SignUpState {
		fn(&s)
		return s
	})
}

func (vm *SignUp) OnDisplayNameChange(v string) {
	vm.update(func(s *SignUpState) { s.DisplayName, s.ErrorMessage = v, "" })
}

func (vm *SignUp) OnEmailChange(v string) {
	vm.update(func(s *SignUpState) { s.Email, s.ErrorMessage = v, "" })
}

func (vm *SignUp) OnPasswordChange(v string) {
	vm.update(func(s *SignUpState) { s.Password, s.ErrorMessage = v, "" })
}

// ValidateSignUp проверяет форму и возвращает текст первой ошибки или пустую строку.
func ValidateSignUp(name, email, password string) string {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	switch {
	case name == "":
		return MsgNameRequired
	case utf8.RuneCountInString(name) < MinNameLength:
		return MsgNameTooShort
	case email == "":
		return MsgEmailRequired
	case !domain.ValidEmail(email):
		return presentation.MsgInvalidEmail
	case isDummyEmail(email):
		return MsgEmailDummy
	case password == "":
		return MsgPasswordRequired
	case utf8.RuneCountInString(password) < domain.MinPasswordLength:
		return presentation.MsgWeakPassword
	case !hasLetterAndDigit(password):
		return MsgPasswordWeak
	}
	return ""
}

func isDummyEmail(email string) bool {
	email = strings.ToLower(email)
	for _, p := range dummyEmailParts {
		if strings.Contains(email, p) {
			return true
		}
	}
	return false
}

func hasLetterAndDigit(s string) bool {
	var letter, digit bool
	for _, r := range s {
		switch {
		case unicode.IsLetter(r):
			letter = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return letter && digit
}

// SignUp проверяет форму и регистрирует пользователя. После успеха сессия
// закрывается и показывается диалог подтверждения почты.
func (vm *SignUp) SignUp() {
	cur := vm.State()
	if msg := ValidateSignUp(cur.DisplayName, cur.Email, cur.Password); msg != "" {
		vm.update(func(s *SignUpState) { s.ErrorMessage = msg })
		return
	}
	vm.update(func(s *SignUpState) { s.IsLoading, s.ErrorMessage = true, "" })
	vm.store.Launch(func(ctx context.Context) {
		uid, err := vm.repo.SignUp(ctx, strings.TrimSpace(cur.Email), cur.Password, strings.TrimSpace(cur.DisplayName))
		if err != nil {
			vm.log.Info().Str("kind", string(domain.KindOf(err))).Msg("sign up rejected")
			vm.update(func(s *SignUpState) {
				s.IsLoading = false
				s.ErrorMessage = presentation.Message(err)
			})
			return
		}
		if err := vm.repo.SignOut(ctx); err != nil {
			vm.log.Warn().Err(err).Msg("sign out after sign up")
		}
		vm.log.Info().Str("uid", uid).Msg("account registered")
		vm.update(func(s *SignUpState) {
			s.IsLoading = false
			s.ShowVerificationDialog = true
			s.Password = ""
			s.InfoMessage = MsgCheckInbox
		})
	})
}

// DismissVerificationDialog закрывает диалог и отправляет на экран входа.
func (vm *SignUp) DismissVerificationDialog() {
	vm.update(func(s *SignUpState) {
		s.ShowVerificationDialog = false
		s.NavigateToSignIn = true
	})
}

// ClearNavigation сбрасывает флаг перехода после его обработки.
func (vm *SignUp) ClearNavigation() {
	vm.update(func(s *SignUpState) { s.NavigateToSignIn = false })
}
