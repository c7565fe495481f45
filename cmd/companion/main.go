package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/docstore"
	"chronoplan/internal/adapters/gateway"
	"chronoplan/internal/adapters/identity"
	"chronoplan/internal/adapters/objectstore"
	"chronoplan/internal/adapters/repo"
	"chronoplan/internal/adapters/screens"
	"chronoplan/internal/app"
	"chronoplan/internal/domain"
	"chronoplan/internal/infra/cache"
	"chronoplan/internal/infra/config"
	"chronoplan/internal/infra/db"
	httpinfra "chronoplan/internal/infra/http"
	applog "chronoplan/internal/infra/log"
	"chronoplan/internal/infra/metrics"
	"chronoplan/internal/infra/offline"
	"chronoplan/internal/infra/queue"
	"chronoplan/internal/usecase/achievement"
	"chronoplan/internal/usecase/chrono"
	"chronoplan/internal/usecase/mail"
	"chronoplan/internal/usecase/reminder"
)

type identityService interface {
	domain.IdentityService
	screens.EmailConfirmer
}

type objectStore interface {
	domain.ObjectStore
	objectstore.Reader
}

type backend struct {
	docs     domain.DocumentStore
	objects  objectStore
	identity identityService
	close    func()
}

func main() {
	cfg := config.Load()
	logger := applog.NewLogger(cfg.AppEnv, "companion")
	loc := cfg.Location()

	metrics.MustRegister(prometheus.DefaultRegisterer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, logger.With().Str("component", "metrics").Logger(), cfg.MetricsAddr)

	redisClient, err := app.Redis(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("companion: нет подключения к Redis")
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	mailQueue, closeMail, err := app.OpenMailQueue(cfg, redisClient)
	if err != nil {
		logger.Fatal().Err(err).Msg("companion: не удалось открыть очередь писем")
	}
	defer closeMail()

	var throttle domain.Cache = cache.NewMemory()
	if redisClient != nil {
		throttle = cache.NewRedis(redisClient, "chronoplan:cache")
	}
	if cfg.Auth.VerificationSecret == "" {
		logger.Fatal().Msg("companion: не задан AUTH_VERIFICATION_SECRET")
	}
	verifier := identity.NewVerifier(cfg.Auth.VerificationSecret, cfg.Auth.VerificationTTL)
	mailer := identity.MailerConfig{BaseURL: cfg.PublicBaseURL, Cooldown: cfg.Auth.ResendCooldown}

	var be backend
	switch cfg.Backend {
	case config.BackendMemory:
		be = backend{
			docs:     docstore.NewMemory(),
			objects:  objectstore.NewMemory(cfg.PublicBaseURL),
			identity: identity.NewMemory(verifier, mailQueue, throttle, mailer, logger),
			close:    func() {},
		}
	case config.BackendPostgres:
		be = postgresBackend(ctx, cfg, verifier, mailQueue, throttle, mailer, logger)
	default:
		logger.Fatal().Str("backend", cfg.Backend).Msg("companion: неизвестный BACKEND")
	}
	defer be.close()

	gw := gateway.New(be.identity, be.docs, be.objects, domain.VerificationConfig{
		ContinueURL:    cfg.Auth.ContinueURL,
		HandleInApp:    true,
		PackageName:    cfg.Auth.PackageName,
		MinimumVersion: cfg.Auth.MinimumVersion,
	}, logger)
	useCase := chrono.NewService(repo.NewChrono(gw, loc, logger))

	reminders := app.ReminderQueue(cfg, redisClient)
	runInProcess(ctx, cfg, redisClient, reminders, mailQueue, logger)

	handler := screens.NewHandler(screens.Deps{
		Repo:         useCase,
		Reminders:    reminder.NewScheduler(reminders, logger),
		Achievements: achievement.NewService(loc),
		Confirmer:    be.identity,
		Files:        be.objects,
		ContinueURL:  cfg.Auth.ContinueURL,
		Location:     loc,
		Logger:       logger,
	})
	defer handler.Close()

	srv := httpinfra.NewServer(logger)
	handler.Routes(srv.Router)
	go func() {
		if err := srv.Start(fmt.Sprintf(":%d", cfg.Port)); err != nil {
			logger.Error().Err(err).Msg("companion: сервер остановлен")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("companion: остановка")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = srv.Shutdown(shutdownCtx)
}

func postgresBackend(ctx context.Context, cfg config.AppConfig, verifier *identity.Verifier, mailQueue domain.MailQueue, throttle domain.Cache, mailer identity.MailerConfig, logger zerolog.Logger) backend {
	pool, err := db.Connect(cfg.Postgres.DSN, cfg.Postgres.MaxConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("companion: нет подключения к БД")
	}
	if err := db.Migrate(ctx, pool); err != nil {
		logger.Fatal().Err(err).Msg("companion: миграция не выполнена")
	}
	local, err := offline.Open(cfg.Offline.CachePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("companion: не удалось открыть офлайн-кэш")
	}
	return backend{
		docs:     docstore.NewCached(docstore.NewPostgres(pool, cfg.Postgres.NotifyChannel, logger), local, logger),
		objects:  objectstore.NewPostgres(pool, cfg.PublicBaseURL),
		identity: identity.NewPostgres(pool, verifier, mailQueue, throttle, mailer, logger),
		close: func() {
			_ = local.Close()
			pool.Close()
		},
	}
}

// runInProcess запускает воркер напоминаний и рассылку писем внутри процесса, когда
// очереди процессные и отдельный reminder-worker их не увидит.
func runInProcess(ctx context.Context, cfg config.AppConfig, client *redis.Client, reminders domain.ReminderQueue, mailQueue app.MailQueue, logger zerolog.Logger) {
	_, memMail := mailQueue.(*queue.MemoryMailQueue)
	if client != nil && !memMail {
		return
	}
	outbox, err := app.Notifier(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("companion: не удалось создать уведомитель")
	}
	if client == nil {
		worker := reminder.NewWorker(reminders, outbox, cfg.Reminders.MaxAttempts, logger)
		go func() { _ = worker.Run(ctx) }()
		logger.Info().Msg("companion: воркер напоминаний запущен в процессе")
	}
	if memMail {
		dispatcher := mail.NewDispatcher(mailQueue, outbox, cfg.Reminders.RetryDelay, logger)
		go func() { _ = dispatcher.Run(ctx) }()
		logger.Info().Msg("companion: рассылка писем запущена в процессе")
	}
}
