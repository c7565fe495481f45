package navigation

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/presentation/vmtest"
)

func TestVerifiedLink(t *testing.T) {
	st := vmtest.NewStack(t)
	h := NewHandler(st.UseCase, zerolog.Nop())
	ctx := context.Background()

	got, err := h.Handle(ctx, domain.VerifiedDeepLink)
	if err != nil || got.Route != RouteSignIn {
		t.Fatalf("без сессии ожидали вход: %+v, %v", got, err)
	}

	// Сессия до подтверждения адреса.
	if _, err := st.Identity.CreateWithEmailPassword(ctx, "citra@chronoplan.id", "rahasia1"); err != nil {
		t.Fatalf("создание: %v", err)
	}
	if got, _ := h.Handle(ctx, domain.VerifiedDeepLink); got.Route != RouteSignIn {
		t.Fatalf("адрес ещё не подтверждён: %+v", got)
	}
	st.Identity.VerifyEmail("citra@chronoplan.id")
	if got, _ := h.Handle(ctx, domain.VerifiedDeepLink); got.Route != RouteMain {
		t.Fatalf("после подтверждения ожидали главный экран: %+v", got)
	}
	if h.Start() != RouteMain {
		t.Fatalf("стартовый экран должен быть главным")
	}
}

func TestAgendaLink(t *testing.T) {
	st := vmtest.NewStack(t)
	h := NewHandler(st.UseCase, zerolog.Nop())
	ctx := context.Background()
	link := domain.AgendaDeepLink("a 1")

	if got, _ := h.Handle(ctx, link); got.Route != RouteSignIn {
		t.Fatalf("без сессии агенда не открывается: %+v", got)
	}
	st.SignIn(t, "alice@example.org")
	got, err := h.Handle(ctx, link)
	if err != nil || got.Route != RouteAgenda || got.AgendaID != "a 1" {
		t.Fatalf("ожидали агенду: %+v, %v", got, err)
	}
}

func TestUnknownLinks(t *testing.T) {
	h := NewHandler(vmtest.NewStack(t).UseCase, zerolog.Nop())
	for _, raw := range []string{"https://chronoplan.test/verified", "chronoplan://settings", "chronoplan://agenda", "::"} {
		if _, err := h.Handle(context.Background(), raw); !errors.Is(err, ErrUnknownLink) {
			t.Fatalf("%q: ожидали ErrUnknownLink, получили %v", raw, err)
		}
	}
}
