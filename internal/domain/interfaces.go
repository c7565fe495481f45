package domain

import (
	"context"
	"io"
	"time"
)

// VerificationConfig передаётся сервису идентификации при отправке письма подтверждения.
type VerificationConfig struct {
	ContinueURL    string
	HandleInApp    bool
	PackageName    string
	MinimumVersion string
}

// IdentityService: внешний сервис учётных записей. Ошибки уже переведены в таксономию Error.
type IdentityService interface {
	CreateWithEmailPassword(ctx context.Context, email, password string) (Identity, error)
	SignInWithEmailPassword(ctx context.Context, email, password string) (Identity, error)
	SignOut(ctx context.Context) error
	// CurrentUser возвращает nil, если сессии нет.
	CurrentUser() *Identity
	SendEmailVerification(ctx context.Context, cfg VerificationConfig) error
	ReloadCurrentUser(ctx context.Context) (*Identity, error)
}

// Document: полный снимок документа хранилища.
type Document struct {
	ID   string
	Data map[string]any
}

// ListenerRegistration снимает слушателя коллекции.
type ListenerRegistration interface {
	Remove()
}

// SnapshotFunc получает полный снимок коллекции или ошибку слушателя.
type SnapshotFunc func(docs []Document, err error)

// DocumentStore: иерархическое хранилище документов.
type DocumentStore interface {
	Get(ctx context.Context, path string) (Document, error)
	// Set перезаписывает документ целиком.
	Set(ctx context.Context, path string, data map[string]any) error
	// Add создаёт документ в коллекции и возвращает присвоенный идентификатор.
	Add(ctx context.Context, collection string, data map[string]any) (string, error)
	Delete(ctx context.Context, path string) error
	// Listen вызывает fn с начальным снимком и после каждого изменения коллекции.
	Listen(ctx context.Context, collection string, fn SnapshotFunc) (ListenerRegistration, error)
}

// ObjectStore: хранилище вложений с двухфазной загрузкой.
type ObjectStore interface {
	Put(ctx context.Context, path string, body io.Reader, contentType string) error
	DownloadURL(ctx context.Context, path string) (string, error)
}

// Importance: важность канала уведомлений.
type Importance int

const (
	ImportanceDefault Importance = iota
	ImportanceHigh
)

// NotificationChannel: канал уведомлений платформы.
type NotificationChannel struct {
	ID         string
	Name       string
	Importance Importance
}

// Notification: уведомление, которое публикует воркер напоминаний.
type Notification struct {
	ID           int32
	ChannelID    string
	Title        string
	Body         string
	DeepLink     string
	AutoCancel   bool
	HighPriority bool
}

// Notifier: подсистема уведомлений платформы.
type Notifier interface {
	EnsureChannel(ctx context.Context, ch NotificationChannel) error
	PermissionGranted(ctx context.Context) bool
	Post(ctx context.Context, n Notification) error
}

// Cache используется для простых TTL-хранилищ.
type Cache interface {
	Once(key string, ttl time.Duration, fn func() error) error
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
}

// Feed: холодный поток значений. Updates закрывается при завершении, после чего Err
// возвращает причину или nil.
type Feed[T any] interface {
	Updates() <-chan T
	Err() error
	Close()
}

// ChronoRepository: доменный контракт над удалёнными сервисами.
type ChronoRepository interface {
	SignIn(ctx context.Context, email, password string) (Identity, error)
	SignUp(ctx context.Context, email, password, displayName string) (string, error)
	SignOut(ctx context.Context) error
	CurrentUserID() (string, bool)
	CurrentUser() *Identity
	ReloadUser(ctx context.Context) (*Identity, error)

	GetProfile(ctx context.Context) (UserProfile, error)
	UpdateProfile(ctx context.Context, p UserProfile) error
	UploadAttachment(ctx context.Context, body io.Reader, pathHint string) (string, error)

	ObserveAgendas(ctx context.Context) Feed[[]Agenda]
	AddAgenda(ctx context.Context, a Agenda) (string, error)
	UpdateAgenda(ctx context.Context, a Agenda) error
	DeleteAgenda(ctx context.Context, id string) error

	ObserveNotes(ctx context.Context) Feed[[]Note]
	AddNote(ctx context.Context, n Note) (string, error)
	UpdateNote(ctx context.Context, n Note) error
	DeleteNote(ctx context.Context, id string) error
}
