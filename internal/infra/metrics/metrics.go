package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

var (
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "network_request_duration_seconds",
		Help:    "Длительность запросов к внешним сервисам",
		Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "network_request_total",
		Help: "Количество запросов к внешним сервисам",
	}, []string{"component", "operation", "target", "status"})

	ActiveListeners = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "document_listeners_active",
		Help: "Активные слушатели коллекций",
	}, []string{"collection"})

	StreamFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "stream_failures_total",
		Help: "Потоки, завершившиеся ошибкой",
	}, []string{"stream"})

	RemindersScheduled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_scheduled_total",
		Help: "Запланированные напоминания",
	})
	RemindersCanceled = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_canceled_total",
		Help: "Отозванные напоминания",
	})
	RemindersFired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reminders_fired_total",
		Help: "Опубликованные уведомления",
	})
	RemindersSkipped = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reminders_skipped_total",
		Help: "Напоминания, завершённые без уведомления",
	}, []string{"reason"})

	NotifierSendErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "notifier_send_errors_total",
		Help: "Ошибки отправки уведомлений",
	})

	MailDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "mail_delivered_total",
		Help: "Письма исходящей очереди по результату доставки",
	}, []string{"status"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		NetworkRequestDuration,
		NetworkRequestTotal,
		ActiveListeners,
		StreamFailures,
		RemindersScheduled,
		RemindersCanceled,
		RemindersFired,
		RemindersSkipped,
		NotifierSendErrors,
		MailDelivered,
	)
}

// StartServer запускает HTTP сервер с эндпоинтом /metrics.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: graceful shutdown failed")
		}
	}()

	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: server started")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: server stopped")
		}
	}()
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	if component == "" {
		component = "unknown"
	}
	if operation == "" {
		operation = "unknown"
	}
	if target == "" {
		target = "unknown"
	}
	status := "success"
	if err != nil {
		status = "error"
	}
	NetworkRequestDuration.WithLabelValues(component, operation, target, status).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(component, operation, target, status).Inc()
}

// ListenerStarted и ListenerStopped ведут учёт живых слушателей коллекции.
func ListenerStarted(collection string) { ActiveListeners.WithLabelValues(collection).Inc() }

// ListenerStopped уменьшает счётчик живых слушателей коллекции.
func ListenerStopped(collection string) { ActiveListeners.WithLabelValues(collection).Dec() }
