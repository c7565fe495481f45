// Package reminder планирует и исполняет напоминания об агендах.
package reminder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
)

// Scheduler ставит отложенные уведомления в очередь и отзывает их по тегу агенды.
type Scheduler struct {
	queue domain.ReminderQueue
	now   func() time.Time
	log   zerolog.Logger
}

// NewScheduler создаёт планировщик.
func NewScheduler(queue domain.ReminderQueue, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		queue: queue,
		now:   time.Now,
		log:   logger.With().Str("component", "reminder_scheduler").Logger(),
	}
}

// SetClock подменяет источник времени.
func (s *Scheduler) SetClock(now func() time.Time) { s.now = now }

// Body формирует текст напоминания.
func Body(minutes int) string {
	return fmt.Sprintf("Dimulai %d menit lagi", minutes)
}

// Schedule ставит уведомление через delay. Неположительная задержка ничего не делает.
func (s *Scheduler) Schedule(ctx context.Context, agendaID, title, body string, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	job := domain.ReminderJob{
		ID:    uuid.NewString(),
		Tag:   domain.ReminderTag(agendaID),
		RunAt: s.now().Add(delay),
		Payload: map[string]string{
			domain.PayloadAgendaID: agendaID,
			domain.PayloadTitle:    title,
			domain.PayloadBody:     body,
		},
	}
	if err := s.queue.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("enqueue reminder: %w", err)
	}
	metrics.RemindersScheduled.Inc()
	s.log.Debug().Str("job_id", job.ID).Str("tag", job.Tag).Time("run_at", job.RunAt).Msg("reminder scheduled")
	return nil
}

// Cancel отзывает все напоминания агенды, включая уже выполняющиеся.
func (s *Scheduler) Cancel(ctx context.Context, agendaID string) error {
	tag := domain.ReminderTag(agendaID)
	n, err := s.queue.CancelTag(ctx, tag)
	if err != nil {
		return fmt.Errorf("cancel reminders: %w", err)
	}
	if n > 0 {
		metrics.RemindersCanceled.Add(float64(n))
		s.log.Debug().Str("tag", tag).Int("jobs", n).Msg("reminders canceled")
	}
	return nil
}
