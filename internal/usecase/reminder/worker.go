package reminder

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
)

// Канал уведомлений и тексты по умолчанию.
const (
	ChannelID    = "agenda_reminders"
	ChannelName  = "Agenda Reminders"
	DefaultTitle = "Agenda Reminder"
	DefaultBody  = "Kamu punya agenda segera!"
)

// Worker исполняет напоминания, срок которых наступил.
type Worker struct {
	queue       domain.ReminderQueue
	notifier    domain.Notifier
	maxAttempts int
	now         func() time.Time
	log         zerolog.Logger
}

// NewWorker создаёт воркер. maxAttempts ограничивает число попыток публикации.
func NewWorker(queue domain.ReminderQueue, notifier domain.Notifier, maxAttempts int, logger zerolog.Logger) *Worker {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &Worker{
		queue:       queue,
		notifier:    notifier,
		maxAttempts: maxAttempts,
		now:         time.Now,
		log:         logger.With().Str("component", "reminder_worker").Logger(),
	}
}

// Run обрабатывает задачи до отмены ctx.
func (w *Worker) Run(ctx context.Context) error {
	for {
		job, ack, err := w.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			w.log.Error().Err(err).Msg("receive reminder")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}
		w.handle(ctx, job, ack)
	}
}

func (w *Worker) handle(ctx context.Context, job domain.ReminderJob, ack domain.ReminderAckFunc) {
	logger := w.log.With().Str("job_id", job.ID).Str("tag", job.Tag).Logger()
	canceled, err := w.queue.IsCanceled(ctx, job.ID)
	if err != nil {
		logger.Warn().Err(err).Msg("check cancellation")
	}
	if canceled {
		metrics.RemindersSkipped.WithLabelValues("canceled").Inc()
		logger.Info().Msg("reminder canceled while running")
		w.ack(logger, ack, true)
		return
	}
	if err := w.Process(ctx, job); err != nil {
		if job.Attempts+1 >= w.maxAttempts {
			metrics.RemindersSkipped.WithLabelValues("attempts").Inc()
			logger.Error().Err(err).Int("attempts", job.Attempts+1).Msg("reminder dropped")
			w.ack(logger, ack, true)
			return
		}
		logger.Warn().Err(err).Int("attempts", job.Attempts+1).Msg("reminder will be retried")
		w.ack(logger, ack, false)
		return
	}
	w.ack(logger, ack, true)
}

func (w *Worker) ack(logger zerolog.Logger, ack domain.ReminderAckFunc, success bool) {
	if err := ack(success); err != nil {
		logger.Error().Err(err).Bool("success", success).Msg("ack reminder")
	}
}

// Process публикует уведомление задачи. Без разрешения на уведомления задача
// завершается успешно без публикации.
func (w *Worker) Process(ctx context.Context, job domain.ReminderJob) error {
	channel := domain.NotificationChannel{ID: ChannelID, Name: ChannelName, Importance: domain.ImportanceHigh}
	if err := w.notifier.EnsureChannel(ctx, channel); err != nil {
		return fmt.Errorf("ensure channel: %w", err)
	}
	if !w.notifier.PermissionGranted(ctx) {
		metrics.RemindersSkipped.WithLabelValues("permission").Inc()
		w.log.Info().Str("job_id", job.ID).Msg("notification permission missing")
		return nil
	}

	title := job.Payload[domain.PayloadTitle]
	if title == "" {
		title = DefaultTitle
	}
	body := job.Payload[domain.PayloadBody]
	if body == "" {
		body = DefaultBody
	}
	n := domain.Notification{
		ID:           int32(w.now().UnixMilli() % math.MaxInt32),
		ChannelID:    ChannelID,
		Title:        title,
		Body:         body,
		DeepLink:     domain.AgendaDeepLink(job.Payload[domain.PayloadAgendaID]),
		AutoCancel:   true,
		HighPriority: true,
	}
	if err := w.notifier.Post(ctx, n); err != nil {
		metrics.NotifierSendErrors.Inc()
		return fmt.Errorf("post notification: %w", err)
	}
	metrics.RemindersFired.Inc()
	w.log.Info().Str("job_id", job.ID).Str("agenda_id", job.Payload[domain.PayloadAgendaID]).Msg("reminder posted")
	return nil
}
