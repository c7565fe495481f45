// Package notifier доставляет уведомления напоминаний.
package notifier

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
)

// Log пишет уведомления в журнал. Используется, когда бот не настроен.
type Log struct {
	log     zerolog.Logger
	granted bool

	mu       sync.Mutex
	channels map[string]domain.NotificationChannel
	posted   []domain.Notification
	mail     []domain.MailJob
}

var _ domain.Notifier = (*Log)(nil)

// NewLog создаёт журнальный уведомитель.
func NewLog(logger zerolog.Logger, granted bool) *Log {
	return &Log{
		log:      logger.With().Str("component", "log_notifier").Logger(),
		granted:  granted,
		channels: make(map[string]domain.NotificationChannel),
	}
}

// EnsureChannel регистрирует канал.
func (l *Log) EnsureChannel(_ context.Context, ch domain.NotificationChannel) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.channels[ch.ID] = ch
	return nil
}

// Channel возвращает зарегистрированный канал.
func (l *Log) Channel(id string) (domain.NotificationChannel, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ch, ok := l.channels[id]
	return ch, ok
}

// PermissionGranted возвращает настроенное разрешение.
func (l *Log) PermissionGranted(context.Context) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.granted
}

// SetPermission меняет разрешение.
func (l *Log) SetPermission(granted bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.granted = granted
}

// Post пишет уведомление в журнал.
func (l *Log) Post(_ context.Context, n domain.Notification) error {
	l.mu.Lock()
	l.posted = append(l.posted, n)
	l.mu.Unlock()
	l.log.Info().
		Int32("notification_id", n.ID).
		Str("channel", n.ChannelID).
		Str("title", n.Title).
		Str("body", n.Body).
		Str("deep_link", n.DeepLink).
		Bool("high_priority", n.HighPriority).
		Msg("notification posted")
	return nil
}

// Posted возвращает опубликованные уведомления.
func (l *Log) Posted() []domain.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.Notification(nil), l.posted...)
}

// Deliver пишет письмо в журнал.
func (l *Log) Deliver(_ context.Context, job domain.MailJob) error {
	l.mu.Lock()
	l.mail = append(l.mail, job)
	l.mu.Unlock()
	l.log.Info().
		Str("job_id", job.ID).
		Str("to", job.To).
		Str("subject", job.Subject).
		Str("link", job.Link).
		Msg("mail delivered")
	return nil
}

// Delivered возвращает доставленные письма.
func (l *Log) Delivered() []domain.MailJob {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]domain.MailJob(nil), l.mail...)
}
