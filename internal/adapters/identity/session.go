package identity

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
)

// MailerConfig описывает отправку писем подтверждения.
type MailerConfig struct {
	BaseURL  string
	Cooldown time.Duration
}

// session: процессный дескриптор текущего пользователя и отправка писем подтверждения,
// общие для всех реализаций сервиса идентификации.
type session struct {
	current  atomic.Pointer[domain.Identity]
	verifier *Verifier
	mail     domain.MailQueue
	cache    domain.Cache
	cfg      MailerConfig
	log      zerolog.Logger
}

func (s *session) set(id *domain.Identity) {
	if id == nil {
		s.current.Store(nil)
		return
	}
	cp := *id
	s.current.Store(&cp)
}

// refresh заменяет prev на next, только если сессия не сменилась с момента чтения prev.
// Возвращает актуального пользователя после попытки.
func (s *session) refresh(prev *domain.Identity, next domain.Identity) *domain.Identity {
	if s.current.CompareAndSwap(prev, &next) {
		cp := next
		return &cp
	}
	return s.CurrentUser()
}

// CurrentUser возвращает копию текущего пользователя или nil.
func (s *session) CurrentUser() *domain.Identity {
	cur := s.current.Load()
	if cur == nil {
		return nil
	}
	cp := *cur
	return &cp
}

// SignOut завершает сессию. Повторный вызов ничего не делает.
func (s *session) SignOut(context.Context) error {
	s.current.Store(nil)
	return nil
}

// SendEmailVerification ставит письмо со ссылкой подтверждения в очередь. Повторные запросы
// в пределах Cooldown игнорируются.
func (s *session) SendEmailVerification(ctx context.Context, cfg domain.VerificationConfig) error {
	cur := s.CurrentUser()
	if cur == nil {
		return domain.E(domain.KindNotAuthenticated, "send verification", nil)
	}
	send := func() error {
		token, err := s.verifier.Issue(cur.UID, cur.Email)
		if err != nil {
			return err
		}
		link := VerificationLink(s.cfg.BaseURL, token, cfg)
		job := domain.MailJob{
			ID:        uuid.NewString(),
			To:        cur.Email,
			Subject:   "Verifikasi email ChronoPlan",
			Body:      "Halo! Klik tautan berikut untuk memverifikasi email kamu:\n" + link,
			Link:      link,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.mail.Enqueue(ctx, job); err != nil {
			return domain.E(domain.KindNetwork, "send verification", fmt.Errorf("enqueue mail: %w", err))
		}
		s.log.Info().Str("uid", cur.UID).Str("mail_id", job.ID).Msg("verification mail queued")
		return nil
	}
	if s.cache == nil {
		return send()
	}
	return s.cache.Once("verify:"+cur.UID, s.cfg.Cooldown, send)
}
