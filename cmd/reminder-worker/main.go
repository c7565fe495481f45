package main

import (
	"context"
	"os/signal"
	"sync"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"chronoplan/internal/app"
	"chronoplan/internal/infra/config"
	applog "chronoplan/internal/infra/log"
	"chronoplan/internal/infra/metrics"
	"chronoplan/internal/usecase/mail"
	"chronoplan/internal/usecase/reminder"
)

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "reminder-worker")

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	redisClient, err := app.Redis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("reminder-worker: нет подключения к Redis")
	}
	if redisClient == nil {
		logger.Fatal().Msg("reminder-worker: не указан адрес Redis (REDIS_ADDR)")
	}
	defer redisClient.Close()

	mailQueue, closeMail, err := app.OpenMailQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("reminder-worker: не удалось открыть очередь писем")
	}
	defer closeMail()

	outbox, err := app.Notifier(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("reminder-worker: не удалось создать уведомитель")
	}

	worker := reminder.NewWorker(app.ReminderQueue(cfg, redisClient), outbox, cfg.Reminders.MaxAttempts, logger)
	dispatcher := mail.NewDispatcher(mailQueue, outbox, cfg.Reminders.RetryDelay, logger)

	logger.Info().Msg("reminder-worker: старт")
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if err := worker.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("reminder-worker: воркер напоминаний остановлен")
		}
	}()
	go func() {
		defer wg.Done()
		if err := dispatcher.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("reminder-worker: рассылка остановлена")
		}
	}()
	wg.Wait()
	logger.Info().Msg("reminder-worker: остановка")
}
