// Package chrono задаёт единую точку входа слоя представления в репозиторий.
package chrono

import (
	"context"
	"io"

	"chronoplan/internal/domain"
)

// Service делегирует вызовы репозиторию.
type Service struct {
	repo domain.ChronoRepository
}

var _ domain.ChronoRepository = (*Service)(nil)

// NewService создаёт сервис.
func NewService(repo domain.ChronoRepository) *Service {
	return &Service{repo: repo}
}

// SignIn входит по email и паролю.
func (s *Service) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	return s.repo.SignIn(ctx, email, password)
}

// SignUp регистрирует пользователя.
func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (string, error) {
	return s.repo.SignUp(ctx, email, password, displayName)
}

// SignOut завершает сессию.
func (s *Service) SignOut(ctx context.Context) error { return s.repo.SignOut(ctx) }

// CurrentUserID возвращает идентификатор текущего пользователя.
func (s *Service) CurrentUserID() (string, bool) { return s.repo.CurrentUserID() }

// CurrentUser возвращает снимок текущего пользователя.
func (s *Service) CurrentUser() *domain.Identity { return s.repo.CurrentUser() }

// ReloadUser перечитывает текущего пользователя.
func (s *Service) ReloadUser(ctx context.Context) (*domain.Identity, error) {
	return s.repo.ReloadUser(ctx)
}

func (s *Service) GetProfile(ctx context.Context) (domain.UserProfile, error) {
	return s.repo.GetProfile(ctx)
}

func (s *Service) UpdateProfile(ctx context.Context, p domain.UserProfile) error {
	return s.repo.UpdateProfile(ctx, p)
}

// UploadAttachment загружает вложение. Пустой pathHint выбирает путь по умолчанию.
func (s *Service) UploadAttachment(ctx context.Context, body io.Reader, pathHint string) (string, error) {
	return s.repo.UploadAttachment(ctx, body, pathHint)
}

func (s *Service) ObserveAgendas(ctx context.Context) domain.Feed[[]domain.Agenda] {
	return s.repo.ObserveAgendas(ctx)
}

func (s *Service) AddAgenda(ctx context.Context, a domain.Agenda) (string, error) {
	return s.repo.AddAgenda(ctx, a)
}

func (s *Service) UpdateAgenda(ctx context.Context, a domain.Agenda) error {
	return s.repo.UpdateAgenda(ctx, a)
}

func (s *Service) DeleteAgenda(ctx context.Context, id string) error {
	return s.repo.DeleteAgenda(ctx, id)
}

func (s *Service) ObserveNotes(ctx context.Context) domain.Feed[[]domain.Note] {
	return s.repo.ObserveNotes(ctx)
}

func (s *Service) AddNote(ctx context.Context, n domain.Note) (string, error) {
	return s.repo.AddNote(ctx, n)
}

func (s *Service) UpdateNote(ctx context.Context, n domain.Note) error {
	return s.repo.UpdateNote(ctx, n)
}

func (s *Service) DeleteNote(ctx context.Context, id string) error {
	return s.repo.DeleteNote(ctx, id)
}
