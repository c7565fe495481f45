package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"chronoplan/internal/presentation"
	"chronoplan/internal/presentation/vmtest"
)

func TestValidateSignUp(t *testing.T) {
	cases := []struct {
		name, email, password string
		want                  string
	}{
		{"", "budi@chronoplan.id", "abc123", MsgNameRequired},
		{"  ", "budi@chronoplan.id", "abc123", MsgNameRequired},
		{"Bu", "budi@chronoplan.id", "abc123", MsgNameTooShort},
		{"Budi", "", "abc123", MsgEmailRequired},
		{"Budi", "budi@", "abc123", presentation.MsgInvalidEmail},
		{"Budi", "test.budi@chronoplan.id", "abc123", MsgEmailDummy},
		{"Budi", "budi@EXAMPLE.com", "abc123", MsgEmailDummy},
		{"Budi", "budi1234@chronoplan.id", "abc123", MsgEmailDummy},
		{"Budi", "budi@chronoplan.id", "", MsgPasswordRequired},
		{"Budi", "budi@chronoplan.id", "ab1", presentation.MsgWeakPassword},
		{"Budi", "budi@chronoplan.id", "abcdefg", MsgPasswordWeak},
		{"Budi", "budi@chronoplan.id", "1234567", MsgPasswordWeak},
		{"Budi", "budi@chronoplan.id", "abc123", ""},
	}
	for _, c := range cases {
		if got := ValidateSignUp(c.name, c.email, c.password); got != c.want {
			t.Fatalf("%q/%q/%q: ожидали %q, получили %q", c.name, c.email, c.password, c.want, got)
		}
	}
}

func TestSignUpFlow(t *testing.T) {
	st := vmtest.NewStack(t)
	vm := NewSignUp(st.UseCase, zerolog.Nop())
	t.Cleanup(vm.Close)

	vm.OnDisplayNameChange("Budi")
	vm.OnEmailChange("budi@chronoplan.id")
	vm.OnPasswordChange("rahasia1")
	vm.SignUp()
	vmtest.Eventually(t, func() bool { return vm.State().ShowVerificationDialog }, "диалог подтверждения")

	s := vm.State()
	if s.IsLoading || s.ErrorMessage != "" || s.InfoMessage != MsgCheckInbox {
		t.Fatalf("состояние после регистрации: %+v", s)
	}
	if _, ok := st.UseCase.CurrentUserID(); ok {
		t.Fatalf("после регистрации сессия должна быть закрыта")
	}
	if sent := st.Mail.Sent(); len(sent) != 1 || sent[0].To != "budi@chronoplan.id" {
		t.Fatalf("письмо подтверждения: %+v", sent)
	}

	vm.DismissVerificationDialog()
	s = vm.State()
	if s.ShowVerificationDialog || !s.NavigateToSignIn {
		t.Fatalf("после закрытия диалога: %+v", s)
	}
	vm.ClearNavigation()
	if vm.State().NavigateToSignIn {
		t.Fatalf("флаг перехода не сброшен")
	}

	vm.OnPasswordChange("rahasia1")
	vm.SignUp()
	vmtest.Eventually(t, func() bool { return vm.State().ErrorMessage != "" }, "повторная регистрация")
	if vm.State().ErrorMessage != presentation.MsgAlreadyRegistered {
		t.Fatalf("ожидали %q, получили %q", presentation.MsgAlreadyRegistered, vm.State().ErrorMessage)
	}
}

func TestSignUpRejectsDummyEmailLocally(t *testing.T) {
	st := vmtest.NewStack(t)
	vm := NewSignUp(st.UseCase, zerolog.Nop())
	t.Cleanup(vm.Close)

	vm.OnDisplayNameChange("Budi")
	vm.OnEmailChange("fake@chronoplan.id")
	vm.OnPasswordChange("rahasia1")
	vm.SignUp()
	if vm.State().ErrorMessage != MsgEmailDummy || vm.State().IsLoading {
		t.Fatalf("состояние: %+v", vm.State())
	}
	if st.Docs.Calls() != 0 || len(st.Mail.Sent()) != 0 {
		t.Fatalf("удалённых вызовов быть не должно")
	}

	vm.OnEmailChange("budi@chronoplan.id")
	if vm.State().ErrorMessage != "" {
		t.Fatalf("правка поля должна сбрасывать ошибку")
	}
}

func TestSignInMessages(t *testing.T) {
	st := vmtest.NewStack(t)
	ctx := context.Background()
	if _, err := st.UseCase.SignUp(ctx, "budi@chronoplan.id", "rahasia1", "Budi"); err != nil {
		t.Fatalf("регистрация: %v", err)
	}
	vm := NewSignIn(st.UseCase, zerolog.Nop())
	t.Cleanup(vm.Close)

	try := func(email, password, want string) {
		t.Helper()
		vm.OnEmailChange(email)
		vm.OnPasswordChange(password)
		vm.SignIn()
		vmtest.Eventually(t, func() bool { return !vm.State().IsLoading }, "вход")
		if got := vm.State().ErrorMessage; got != want {
			t.Fatalf("%s: ожидали %q, получили %q", email, want, got)
		}
	}

	try("budi@chronoplan.id", "salah999", presentation.MsgWrongCredentials)
	try("nobody@chronoplan.id", "rahasia1", presentation.MsgWrongCredentials)
	try("budi@chronoplan.id", "rahasia1", presentation.MsgEmailUnverified)
	if _, ok := st.UseCase.CurrentUserID(); ok {
		t.Fatalf("неподтверждённая сессия должна закрываться")
	}

	st.Identity.SetOffline(errors.New("no route"))
	try("budi@chronoplan.id", "rahasia1", presentation.MsgNetwork)
	st.Identity.SetOffline(nil)

	st.Identity.VerifyEmail("budi@chronoplan.id")
	try("budi@chronoplan.id", "rahasia1", "")
	if !vm.State().IsSignedIn {
		t.Fatalf("вход должен завершиться успехом")
	}
}

func TestCheckAutoLogin(t *testing.T) {
	st := vmtest.NewStack(t)
	vm := NewSignIn(st.UseCase, zerolog.Nop())
	t.Cleanup(vm.Close)

	called := false
	vm.CheckAutoLogin(func() { called = true })
	if called {
		t.Fatalf("без сессии переход не нужен")
	}
	st.SignIn(t, "alice@example.org")
	vm.CheckAutoLogin(func() { called = true })
	if !called {
		t.Fatalf("подтверждённая сессия должна пропускать экран входа")
	}
}
