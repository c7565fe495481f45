// Package mail доставляет письма из исходящей очереди.
package mail

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
)

// Mailer доставляет одно письмо.
type Mailer interface {
	Deliver(ctx context.Context, job domain.MailJob) error
}

// Dispatcher читает очередь и передаёт письма Mailer. Неудачная доставка
// возвращает письмо в очередь после паузы retryDelay.
type Dispatcher struct {
	source     domain.MailSource
	mailer     Mailer
	retryDelay time.Duration
	log        zerolog.Logger
}

func NewDispatcher(source domain.MailSource, mailer Mailer, retryDelay time.Duration, logger zerolog.Logger) *Dispatcher {
	if retryDelay <= 0 {
		retryDelay = time.Second
	}
	return &Dispatcher{
		source:     source,
		mailer:     mailer,
		retryDelay: retryDelay,
		log:        logger.With().Str("component", "mail_dispatcher").Logger(),
	}
}

// Run обрабатывает письма до отмены ctx.
func (d *Dispatcher) Run(ctx context.Context) error {
	for {
		job, ack, err := d.source.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, context.Canceled) {
				return nil
			}
			d.log.Error().Err(err).Msg("receive mail")
			if !sleep(ctx, d.retryDelay) {
				return nil
			}
			continue
		}
		d.handle(ctx, job, ack)
	}
}

func (d *Dispatcher) handle(ctx context.Context, job domain.MailJob, ack domain.MailAckFunc) {
	log := d.log.With().Str("job_id", job.ID).Str("to", job.To).Logger()
	if err := d.mailer.Deliver(ctx, job); err != nil {
		metrics.MailDelivered.WithLabelValues("error").Inc()
		log.Warn().Err(err).Msg("deliver mail")
		sleep(ctx, d.retryDelay)
		if ackErr := ack(false); ackErr != nil {
			log.Error().Err(ackErr).Msg("requeue mail")
		}
		return
	}
	metrics.MailDelivered.WithLabelValues("ok").Inc()
	if err := ack(true); err != nil {
		log.Error().Err(err).Msg("ack mail")
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
