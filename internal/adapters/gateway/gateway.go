// Package gateway задаёт тонкий фасад над внешними сервисами: идентификацией, хранилищем
// документов и хранилищем вложений.
package gateway

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
	"chronoplan/internal/stream"
)

// Имена коллекций пользователя.
const (
	CollectionUsers   = "users"
	CollectionAgendas = "agendas"
	CollectionNotes   = "notes"
)

// UserPath возвращает путь профиля.
func UserPath(uid string) string { return CollectionUsers + "/" + uid }

// UserCollection возвращает путь коллекции пользователя.
func UserCollection(uid, name string) string { return UserPath(uid) + "/" + name }

// Gateway объединяет внешние сервисы.
type Gateway struct {
	identity     domain.IdentityService
	docs         domain.DocumentStore
	objects      domain.ObjectStore
	verification domain.VerificationConfig
	log          zerolog.Logger
}

// New создаёт фасад.
func New(identity domain.IdentityService, docs domain.DocumentStore, objects domain.ObjectStore, verification domain.VerificationConfig, logger zerolog.Logger) *Gateway {
	return &Gateway{
		identity:     identity,
		docs:         docs,
		objects:      objects,
		verification: verification,
		log:          logger.With().Str("component", "gateway").Logger(),
	}
}

// CurrentUser возвращает снимок текущего пользователя.
func (g *Gateway) CurrentUser() *domain.Identity { return g.identity.CurrentUser() }

// UserID возвращает идентификатор текущего пользователя.
func (g *Gateway) UserID() (string, bool) {
	cur := g.identity.CurrentUser()
	if cur == nil {
		return "", false
	}
	return cur.UID, true
}

// CreateAccount регистрирует пользователя.
func (g *Gateway) CreateAccount(ctx context.Context, email, password string) (domain.Identity, error) {
	return g.identity.CreateWithEmailPassword(ctx, email, password)
}

// SignIn входит по email и паролю.
func (g *Gateway) SignIn(ctx context.Context, email, password string) (domain.Identity, error) {
	return g.identity.SignInWithEmailPassword(ctx, email, password)
}

// SignOut завершает сессию.
func (g *Gateway) SignOut(ctx context.Context) error { return g.identity.SignOut(ctx) }

// SendVerification отправляет письмо подтверждения текущему пользователю.
func (g *Gateway) SendVerification(ctx context.Context) error {
	return g.identity.SendEmailVerification(ctx, g.verification)
}

// ReloadUser перечитывает текущего пользователя.
func (g *Gateway) ReloadUser(ctx context.Context) (*domain.Identity, error) {
	return g.identity.ReloadCurrentUser(ctx)
}

// Get читает документ.
func (g *Gateway) Get(ctx context.Context, path string) (domain.Document, error) {
	return g.docs.Get(ctx, path)
}

// Set перезаписывает документ.
func (g *Gateway) Set(ctx context.Context, path string, data map[string]any) error {
	return g.docs.Set(ctx, path, data)
}

// Add создаёт документ в коллекции.
func (g *Gateway) Add(ctx context.Context, collection string, data map[string]any) (string, error) {
	return g.docs.Add(ctx, collection, data)
}

// Delete удаляет документ.
func (g *Gateway) Delete(ctx context.Context, path string) error {
	return g.docs.Delete(ctx, path)
}

// Listen открывает поток снимков коллекции. Слушатель снимается при закрытии потока.
func (g *Gateway) Listen(ctx context.Context, collection string) *stream.Feed[[]domain.Document] {
	name := collection[strings.LastIndex(collection, "/")+1:]
	return stream.FromCallback(ctx, func(em *stream.Emitter[[]domain.Document]) (func(), error) {
		reg, err := g.docs.Listen(ctx, collection, func(docs []domain.Document, err error) {
			if err != nil {
				metrics.StreamFailures.WithLabelValues(name).Inc()
				g.log.Warn().Err(err).Str("collection", name).Msg("collection listener failed")
				em.Fail(err)
				return
			}
			em.Send(docs)
		})
		if err != nil {
			metrics.StreamFailures.WithLabelValues(name).Inc()
			return nil, err
		}
		return reg.Remove, nil
	})
}

// Upload выполняет загрузку в два шага: запись файла и получение публичного URL.
func (g *Gateway) Upload(ctx context.Context, path string, body io.Reader, contentType string) (string, error) {
	const op = "upload attachment"
	if err := g.objects.Put(ctx, path, body, contentType); err != nil {
		if errors.Is(err, domain.ErrNetwork) {
			return "", err
		}
		return "", domain.E(domain.KindUpload, op, err)
	}
	url, err := g.objects.DownloadURL(ctx, path)
	if err != nil {
		if errors.Is(err, domain.ErrNetwork) {
			return "", err
		}
		return "", domain.E(domain.KindUpload, op, err)
	}
	return url, nil
}
