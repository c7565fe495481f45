// Package navigation разбирает ссылки вида chronoplan://... и решает, на какой
// экран перейти.
package navigation

import (
	"context"
	"errors"
	"net/url"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
)

// Route: экран приложения.
type Route string

const (
	RouteSignIn Route = "signin"
	RouteSignUp Route = "signup"
	RouteMain   Route = "main"
	RouteAgenda Route = "agenda"
)

// ErrUnknownLink: ссылка не относится к приложению.
var ErrUnknownLink = errors.New("unknown deep link")

// Target: результат обработки ссылки.
type Target struct {
	Route    Route
	AgendaID string
}

// Identity: часть репозитория, нужная для обработки ссылок.
type Identity interface {
	CurrentUser() *domain.Identity
	ReloadUser(ctx context.Context) (*domain.Identity, error)
}

// Handler обрабатывает входящие ссылки.
type Handler struct {
	identity Identity
	log      zerolog.Logger
}

func NewHandler(identity Identity, logger zerolog.Logger) *Handler {
	return &Handler{identity: identity, log: logger.With().Str("component", "deeplink").Logger()}
}

// Start возвращает начальный экран: главный при подтверждённой сессии.
func (h *Handler) Start() Route {
	if id := h.identity.CurrentUser(); id != nil && id.EmailVerified {
		return RouteMain
	}
	return RouteSignIn
}

// Handle разбирает ссылку. chronoplan://verified перечитывает пользователя и
// ведёт на главный экран, если адрес подтверждён, иначе на вход.
// chronoplan://agenda?agendaId=<id> открывает агенду при активной сессии.
func (h *Handler) Handle(ctx context.Context, raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != domain.DeepLinkScheme {
		return Target{}, ErrUnknownLink
	}
	switch u.Host {
	case "verified":
		return h.verified(ctx), nil
	case "agenda":
		id := u.Query().Get("agendaId")
		if id == "" {
			return Target{}, ErrUnknownLink
		}
		if h.Start() != RouteMain {
			return Target{Route: RouteSignIn}, nil
		}
		return Target{Route: RouteAgenda, AgendaID: id}, nil
	}
	return Target{}, ErrUnknownLink
}

func (h *Handler) verified(ctx context.Context) Target {
	if h.identity.CurrentUser() == nil {
		return Target{Route: RouteSignIn}
	}
	id, err := h.identity.ReloadUser(ctx)
	if err != nil {
		h.log.Warn().Err(err).Msg("reload user after verification")
		return Target{Route: RouteSignIn}
	}
	if id != nil && id.EmailVerified {
		h.log.Info().Str("uid", id.UID).Msg("email verified")
		return Target{Route: RouteMain}
	}
	return Target{Route: RouteSignIn}
}
