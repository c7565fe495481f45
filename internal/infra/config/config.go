package config

import (
	"log"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Backend выбирает реализацию внешних сервисов.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// AppConfig описывает конфигурацию сервисов.
type AppConfig struct {
	AppEnv        string `envconfig:"APP_ENV" default:"dev"`
	TZ            string `envconfig:"TZ" default:"Asia/Jakarta"`
	Port          int    `envconfig:"PORT" default:"8080"`
	MetricsAddr   string `envconfig:"METRICS_ADDR" default:":9090"`
	PublicBaseURL string `envconfig:"PUBLIC_BASE_URL" default:"http://localhost:8080"`
	Backend       string `envconfig:"BACKEND" default:"postgres"`

	Postgres struct {
		DSN           string `envconfig:"PG_DSN"`
		NotifyChannel string `envconfig:"DOCS_NOTIFY_CHANNEL" default:"chronoplan_documents"`
		MaxConns      int32  `envconfig:"PG_MAX_CONNS" default:"8"`
	} `envconfig:""`

	RedisAddr   string `envconfig:"REDIS_ADDR"`
	RabbitMQURL string `envconfig:"RABBITMQ_URL"`

	Offline struct {
		CachePath string `envconfig:"OFFLINE_CACHE_PATH" default:"chronoplan-offline.db"`
	} `envconfig:""`

	Auth struct {
		VerificationSecret string        `envconfig:"AUTH_VERIFICATION_SECRET"`
		VerificationTTL    time.Duration `envconfig:"AUTH_VERIFICATION_TTL" default:"72h"`
		ResendCooldown     time.Duration `envconfig:"AUTH_RESEND_COOLDOWN" default:"1m"`
		ContinueURL        string        `envconfig:"AUTH_CONTINUE_URL" default:"chronoplan://verified"`
		PackageName        string        `envconfig:"AUTH_PACKAGE_NAME" default:"com.chronoplan"`
		MinimumVersion     string        `envconfig:"AUTH_MIN_VERSION" default:"1"`
	} `envconfig:""`

	Telegram struct {
		Token  string `envconfig:"TG_BOT_TOKEN"`
		ChatID int64  `envconfig:"TG_CHAT_ID"`
	} `envconfig:""`

	Reminders struct {
		Prefix       string        `envconfig:"REMINDER_QUEUE_PREFIX" default:"chronoplan:reminders"`
		PollInterval time.Duration `envconfig:"REMINDER_POLL_INTERVAL" default:"500ms"`
		Lease        time.Duration `envconfig:"REMINDER_LEASE" default:"1m"`
		RetryDelay   time.Duration `envconfig:"REMINDER_RETRY_DELAY" default:"30s"`
		MaxAttempts  int           `envconfig:"REMINDER_MAX_ATTEMPTS" default:"5"`
	} `envconfig:""`

	Queues struct {
		Mail string `envconfig:"MAIL_QUEUE_KEY" default:"chronoplan_mail"`
	} `envconfig:""`
}

// Location возвращает часовой пояс пользователя. Неизвестная зона заменяется на UTC.
func (c AppConfig) Location() *time.Location {
	loc, err := time.LoadLocation(c.TZ)
	if err != nil {
		return time.UTC
	}
	return loc
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
