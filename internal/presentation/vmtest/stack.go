// Package vmtest собирает процессный стек сервисов для тестов экранов.
package vmtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/docstore"
	"chronoplan/internal/adapters/gateway"
	"chronoplan/internal/adapters/identity"
	"chronoplan/internal/adapters/objectstore"
	"chronoplan/internal/adapters/repo"
	"chronoplan/internal/domain"
	"chronoplan/internal/infra/cache"
	"chronoplan/internal/infra/queue"
	"chronoplan/internal/usecase/chrono"
	"chronoplan/internal/usecase/reminder"
)

// WIB: часовой пояс тестов.
var WIB = time.FixedZone("WIB", 7*3600)

// Start: начальный момент часов стека.
var Start = time.Date(2025, 3, 10, 9, 0, 0, 0, WIB)

// Clock: управляемые часы.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Stack: репозиторий поверх процессных реализаций внешних сервисов.
type Stack struct {
	UseCase   *chrono.Service
	Repo      *repo.Chrono
	Docs      *docstore.Memory
	Identity  *identity.Memory
	Objects   *objectstore.Memory
	Mail      *queue.MemoryMailQueue
	Reminders *queue.MemoryReminderQueue
	Scheduler *reminder.Scheduler
	Clock     *Clock
}

// NewStack собирает стек с часами, стоящими на Start.
func NewStack(t testing.TB) *Stack {
	t.Helper()
	clock := &Clock{now: Start}
	mail := queue.NewMemoryMailQueue()
	ids := identity.NewMemory(identity.NewVerifier("secret", time.Hour), mail, cache.NewMemory(),
		identity.MailerConfig{BaseURL: "https://chronoplan.test", Cooldown: time.Minute}, zerolog.Nop())
	docs := docstore.NewMemory()
	objects := objectstore.NewMemory("https://chronoplan.test")
	gw := gateway.New(ids, docs, objects, domain.VerificationConfig{ContinueURL: domain.VerifiedDeepLink}, zerolog.Nop())
	r := repo.NewChrono(gw, WIB, zerolog.Nop())
	r.SetClock(clock.Now)

	reminders := queue.NewMemoryReminderQueue(queue.ReminderOptions{})
	reminders.SetClock(clock.Now)
	scheduler := reminder.NewScheduler(reminders, zerolog.Nop())
	scheduler.SetClock(clock.Now)

	return &Stack{
		UseCase:   chrono.NewService(r),
		Repo:      r,
		Docs:      docs,
		Identity:  ids,
		Objects:   objects,
		Mail:      mail,
		Reminders: reminders,
		Scheduler: scheduler,
		Clock:     clock,
	}
}

// SignIn регистрирует подтверждённого пользователя и входит под ним.
func (s *Stack) SignIn(t testing.TB, email string) string {
	t.Helper()
	ctx := context.Background()
	uid, err := s.UseCase.SignUp(ctx, email, "Passw0rd", "Alice")
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	s.Identity.VerifyEmail(email)
	if _, err := s.UseCase.SignIn(ctx, email, "Passw0rd"); err != nil {
		t.Fatalf("sign in: %v", err)
	}
	return uid
}

// Eventually ждёт выполнения условия не дольше двух секунд.
func Eventually(t testing.TB, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("не дождались: %s", msg)
		}
		time.Sleep(5 * time.Millisecond)
	}
}
