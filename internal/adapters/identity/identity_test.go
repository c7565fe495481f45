package identity

import (
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/cache"
	"chronoplan/internal/infra/queue"
)

func newMemoryService(t *testing.T) (*Memory, *queue.MemoryMailQueue) {
	t.Helper()
	mail := queue.NewMemoryMailQueue()
	svc := NewMemory(NewVerifier("secret", time.Hour), mail, cache.NewMemory(), MailerConfig{BaseURL: "https://chronoplan.test/", Cooldown: time.Minute}, zerolog.Nop())
	return svc, mail
}

func TestMemoryCreateAndSignIn(t *testing.T) {
	svc, _ := newMemoryService(t)
	ctx := context.Background()

	id, err := svc.CreateWithEmailPassword(ctx, "Alice@Example.org", "Passw0rd")
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if svc.CurrentUser() == nil || svc.CurrentUser().UID != id.UID {
		t.Fatalf("после регистрации пользователь должен быть в сессии")
	}
	if _, err := svc.CreateWithEmailPassword(ctx, "alice@example.org", "Passw0rd"); !errors.Is(err, domain.ErrAlreadyRegistered) {
		t.Fatalf("ожидали AlreadyRegistered, получили %v", err)
	}

	_ = svc.SignOut(ctx)
	_ = svc.SignOut(ctx)
	if svc.CurrentUser() != nil {
		t.Fatalf("сессия должна быть закрыта")
	}

	if _, err := svc.SignInWithEmailPassword(ctx, "alice@example.org", "wrong"); !errors.Is(err, domain.ErrWrongCredentials) {
		t.Fatalf("ожидали WrongCredentials, получили %v", err)
	}
	if _, err := svc.SignInWithEmailPassword(ctx, "bob@example.org", "Passw0rd"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("ожидали NotFound, получили %v", err)
	}
	got, err := svc.SignInWithEmailPassword(ctx, "alice@example.org", "Passw0rd")
	if err != nil || got.EmailVerified {
		t.Fatalf("ожидали вход без подтверждения: %+v %v", got, err)
	}
}

func TestMemoryCreateValidation(t *testing.T) {
	svc, _ := newMemoryService(t)
	ctx := context.Background()
	if _, err := svc.CreateWithEmailPassword(ctx, "not-an-email", "Passw0rd"); !errors.Is(err, domain.ErrInvalidEmail) {
		t.Fatalf("ожидали InvalidEmail, получили %v", err)
	}
	if _, err := svc.CreateWithEmailPassword(ctx, "a@b.co", "123"); !errors.Is(err, domain.ErrWeakPassword) {
		t.Fatalf("ожидали WeakPassword, получили %v", err)
	}
}

func TestVerificationMailFlow(t *testing.T) {
	svc, mail := newMemoryService(t)
	ctx := context.Background()
	cfg := domain.VerificationConfig{ContinueURL: "chronoplan://verified", HandleInApp: true, PackageName: "com.chronoplan", MinimumVersion: "1"}

	if err := svc.SendEmailVerification(ctx, cfg); !errors.Is(err, domain.ErrNotAuthenticated) {
		t.Fatalf("без сессии ожидали NotAuthenticated, получили %v", err)
	}
	id, _ := svc.CreateWithEmailPassword(ctx, "alice@example.org", "Passw0rd")
	if err := svc.SendEmailVerification(ctx, cfg); err != nil {
		t.Fatalf("send: %v", err)
	}
	if err := svc.SendEmailVerification(ctx, cfg); err != nil {
		t.Fatalf("send: %v", err)
	}
	sent := mail.Sent()
	if len(sent) != 1 {
		t.Fatalf("повторный запрос должен гаситься, писем %d", len(sent))
	}

	link, err := url.Parse(sent[0].Link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	if link.Path != "/auth/verify" || link.Query().Get("continueUrl") != "chronoplan://verified" || link.Query().Get("apn") != "com.chronoplan" {
		t.Fatalf("неверная ссылка: %s", sent[0].Link)
	}

	uid, err := svc.ConfirmEmail(ctx, link.Query().Get("token"))
	if err != nil || uid != id.UID {
		t.Fatalf("confirm = %s, %v", uid, err)
	}
	reloaded, err := svc.ReloadCurrentUser(ctx)
	if err != nil || reloaded == nil || !reloaded.EmailVerified {
		t.Fatalf("после подтверждения ожидали verified: %+v %v", reloaded, err)
	}
}

func TestVerifierRejectsForeignTokens(t *testing.T) {
	v := NewVerifier("secret", time.Hour)
	other := NewVerifier("other", time.Hour)
	token, _ := other.Issue("u1", "a@b.co")
	if _, err := v.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("ожидали ErrInvalidToken, получили %v", err)
	}

	now := time.Now()
	v.now = func() time.Time { return now }
	token, _ = v.Issue("u1", "a@b.co")
	v.now = func() time.Time { return now.Add(2 * time.Hour) }
	if _, err := v.Parse(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("просроченный токен должен отклоняться")
	}
}

func TestMemoryReloadKeepsSignOut(t *testing.T) {
	svc, _ := newMemoryService(t)
	ctx := context.Background()
	if _, err := svc.CreateWithEmailPassword(ctx, "alice@example.org", "Passw0rd"); err != nil {
		t.Fatalf("регистрация: %v", err)
	}
	svc.VerifyEmail("alice@example.org")

	// Сессия запоминается до блокировки аккаунтов, выход происходит, пока блокировка занята.
	svc.mu.Lock()
	done := make(chan *domain.Identity, 1)
	go func() {
		id, _ := svc.ReloadCurrentUser(ctx)
		done <- id
	}()
	time.Sleep(20 * time.Millisecond)
	_ = svc.SignOut(ctx)
	svc.mu.Unlock()

	if id := <-done; id != nil {
		t.Fatalf("перечитывание после выхода не должно возвращать пользователя: %+v", id)
	}
	if svc.CurrentUser() != nil {
		t.Fatalf("перечитывание не должно восстанавливать закрытую сессию")
	}
}

func TestSessionRefreshComparesSession(t *testing.T) {
	var s session
	s.set(&domain.Identity{UID: "u1", Email: "a@chronoplan.id"})
	prev := s.current.Load()

	next := *prev
	next.EmailVerified = true
	if got := s.refresh(prev, next); got == nil || !got.EmailVerified {
		t.Fatalf("неизменная сессия обновляется: %+v", got)
	}

	stale := s.current.Load()
	s.set(&domain.Identity{UID: "u2", Email: "b@chronoplan.id"})
	if got := s.refresh(stale, domain.Identity{UID: "u1"}); got == nil || got.UID != "u2" {
		t.Fatalf("сменившаяся сессия не перезаписывается: %+v", got)
	}
}
