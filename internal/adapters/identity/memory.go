package identity

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"chronoplan/internal/domain"
)

type account struct {
	uid      string
	hash     []byte
	verified bool
}

// Memory: процессный сервис идентификации.
type Memory struct {
	session
	mu       sync.Mutex
	accounts map[string]*account
	offline  error
}

var _ domain.IdentityService = (*Memory)(nil)

// NewMemory создаёт сервис без пользователей.
func NewMemory(verifier *Verifier, mail domain.MailQueue, cache domain.Cache, cfg MailerConfig, logger zerolog.Logger) *Memory {
	m := &Memory{accounts: make(map[string]*account)}
	m.session = session{verifier: verifier, mail: mail, cache: cache, cfg: cfg, log: logger.With().Str("component", "identity").Logger()}
	return m
}

// SetOffline заставляет сетевые операции возвращать ошибку сети.
func (m *Memory) SetOffline(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.offline = err
}

func (m *Memory) check(op string) error {
	if m.offline != nil {
		return domain.E(domain.KindNetwork, op, m.offline)
	}
	return nil
}

// CreateWithEmailPassword регистрирует пользователя и открывает сессию.
func (m *Memory) CreateWithEmailPassword(_ context.Context, email, password string) (domain.Identity, error) {
	const op = "create identity"
	email = normalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(op); err != nil {
		return domain.Identity{}, err
	}
	if err := validateCredentials(op, email, password); err != nil {
		return domain.Identity{}, err
	}
	if _, ok := m.accounts[email]; ok {
		return domain.Identity{}, domain.E(domain.KindAlreadyRegistered, op, nil)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return domain.Identity{}, domain.E(domain.KindUnknown, op, err)
	}
	acc := &account{uid: uuid.NewString(), hash: hash}
	m.accounts[email] = acc
	id := domain.Identity{UID: acc.uid, Email: email}
	m.set(&id)
	return id, nil
}

// SignInWithEmailPassword проверяет пароль и открывает сессию.
func (m *Memory) SignInWithEmailPassword(_ context.Context, email, password string) (domain.Identity, error) {
	const op = "sign in"
	email = normalizeEmail(email)
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(op); err != nil {
		return domain.Identity{}, err
	}
	acc, ok := m.accounts[email]
	if !ok {
		return domain.Identity{}, domain.E(domain.KindNotFound, op, nil)
	}
	if bcrypt.CompareHashAndPassword(acc.hash, []byte(password)) != nil {
		return domain.Identity{}, domain.E(domain.KindWrongCredentials, op, nil)
	}
	id := domain.Identity{UID: acc.uid, Email: email, EmailVerified: acc.verified}
	m.set(&id)
	return id, nil
}

// ReloadCurrentUser обновляет флаг подтверждения текущего пользователя. Если сессия
// сменилась во время чтения, возвращается новое состояние сессии.
func (m *Memory) ReloadCurrentUser(context.Context) (*domain.Identity, error) {
	prev := m.current.Load()
	if prev == nil {
		return nil, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check("reload user"); err != nil {
		return nil, err
	}
	acc, ok := m.accounts[prev.Email]
	if !ok {
		return nil, domain.E(domain.KindNotFound, "reload user", nil)
	}
	next := *prev
	next.EmailVerified = acc.verified
	return m.refresh(prev, next), nil
}

// ConfirmEmail отмечает адрес подтверждённым по токену из письма.
func (m *Memory) ConfirmEmail(_ context.Context, token string) (string, error) {
	uid, err := m.verifier.Parse(token)
	if err != nil {
		return "", domain.E(domain.KindValidationFailed, "confirm email", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, acc := range m.accounts {
		if acc.uid == uid {
			acc.verified = true
			return uid, nil
		}
	}
	return "", domain.E(domain.KindNotFound, "confirm email", nil)
}

// VerifyEmail отмечает адрес подтверждённым напрямую.
func (m *Memory) VerifyEmail(email string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[normalizeEmail(email)]
	if ok {
		acc.verified = true
	}
	return ok
}
