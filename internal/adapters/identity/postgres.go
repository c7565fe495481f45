package identity

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/db"
	"chronoplan/internal/infra/metrics"
)

// Postgres хранит учётные записи в таблице identities.
type Postgres struct {
	session
	pool *pgxpool.Pool
}

var _ domain.IdentityService = (*Postgres)(nil)

// NewPostgres создаёт сервис идентификации.
func NewPostgres(pool *pgxpool.Pool, verifier *Verifier, mail domain.MailQueue, cache domain.Cache, cfg MailerConfig, logger zerolog.Logger) *Postgres {
	p := &Postgres{pool: pool}
	p.session = session{verifier: verifier, mail: mail, cache: cache, cfg: cfg, log: logger.With().Str("component", "identity").Logger()}
	return p
}

func observe(op string, start time.Time, err error) {
	metrics.ObserveNetworkRequest("postgres", op, "identities", start, err)
}

// CreateWithEmailPassword регистрирует пользователя и открывает для него сессию.
func (p *Postgres) CreateWithEmailPassword(ctx context.Context, email, password string) (id domain.Identity, err error) {
	const op = "create identity"
	email = normalizeEmail(email)
	if err := validateCredentials(op, email, password); err != nil {
		return domain.Identity{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return domain.Identity{}, domain.E(domain.KindUnknown, op, err)
	}

	start := time.Now()
	defer func() { observe("create", start, err) }()
	id = domain.Identity{UID: uuid.NewString(), Email: email}
	_, err = p.pool.Exec(ctx, `INSERT INTO identities (uid, email, password_hash) VALUES ($1, $2, $3)`, id.UID, email, string(hash))
	if err != nil {
		if db.IsUniqueViolation(err) {
			return domain.Identity{}, domain.E(domain.KindAlreadyRegistered, op, nil)
		}
		return domain.Identity{}, db.Classify(op, err)
	}
	p.set(&id)
	return id, nil
}

// SignInWithEmailPassword проверяет пароль и открывает сессию.
func (p *Postgres) SignInWithEmailPassword(ctx context.Context, email, password string) (id domain.Identity, err error) {
	const op = "sign in"
	start := time.Now()
	defer func() { observe("sign_in", start, err) }()

	var hash string
	id.Email = normalizeEmail(email)
	err = p.pool.QueryRow(ctx, `SELECT uid, password_hash, email_verified FROM identities WHERE email = $1`, id.Email).
		Scan(&id.UID, &hash, &id.EmailVerified)
	if err != nil {
		return domain.Identity{}, db.Classify(op, err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return domain.Identity{}, domain.E(domain.KindWrongCredentials, op, nil)
	}
	p.set(&id)
	return id, nil
}

// ReloadCurrentUser перечитывает флаг подтверждения текущего пользователя.
func (p *Postgres) ReloadCurrentUser(ctx context.Context) (*domain.Identity, error) {
	prev := p.current.Load()
	if prev == nil {
		return nil, nil
	}
	next := *prev
	start := time.Now()
	err := p.pool.QueryRow(ctx, `SELECT email, email_verified FROM identities WHERE uid = $1`, next.UID).Scan(&next.Email, &next.EmailVerified)
	observe("reload", start, err)
	if err != nil {
		return nil, db.Classify("reload user", err)
	}
	return p.refresh(prev, next), nil
}

// ConfirmEmail отмечает адрес подтверждённым по токену из письма.
func (p *Postgres) ConfirmEmail(ctx context.Context, token string) (string, error) {
	uid, err := p.verifier.Parse(token)
	if err != nil {
		return "", domain.E(domain.KindValidationFailed, "confirm email", err)
	}
	start := time.Now()
	tag, err := p.pool.Exec(ctx, `UPDATE identities SET email_verified = TRUE WHERE uid = $1`, uid)
	observe("confirm", start, err)
	if err != nil {
		return "", db.Classify("confirm email", err)
	}
	if tag.RowsAffected() == 0 {
		return "", domain.E(domain.KindNotFound, "confirm email", errors.New("identity not found"))
	}
	return uid, nil
}
