// Package app собирает общие для бинарников зависимости из конфигурации.
package app

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/notifier"
	"chronoplan/internal/domain"
	"chronoplan/internal/infra/config"
	"chronoplan/internal/infra/queue"
)

// Redis подключается к Redis, если адрес задан. Без адреса возвращает nil.
func Redis(ctx context.Context, cfg config.AppConfig) (*redis.Client, error) {
	if cfg.RedisAddr == "" {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return client, nil
}

// ReminderOptions переводит конфиг в параметры очереди напоминаний.
func ReminderOptions(cfg config.AppConfig) queue.ReminderOptions {
	return queue.ReminderOptions{
		Lease:        cfg.Reminders.Lease,
		PollInterval: cfg.Reminders.PollInterval,
		RetryDelay:   cfg.Reminders.RetryDelay,
	}
}

// ReminderQueue выбирает очередь напоминаний: Redis при наличии клиента, иначе процессную.
func ReminderQueue(cfg config.AppConfig, client *redis.Client) domain.ReminderQueue {
	if client != nil {
		return queue.NewRedisReminderQueue(client, cfg.Reminders.Prefix, ReminderOptions(cfg))
	}
	return queue.NewMemoryReminderQueue(ReminderOptions(cfg))
}

// MailQueue: очередь писем, из которой можно и читать.
type MailQueue interface {
	domain.MailQueue
	domain.MailSource
}

// OpenMailQueue выбирает исходящую очередь писем: RabbitMQ, затем Redis, иначе процессную.
// Вторым значением возвращается функция закрытия соединения брокера.
func OpenMailQueue(cfg config.AppConfig, client *redis.Client) (MailQueue, func() error, error) {
	switch {
	case cfg.RabbitMQURL != "":
		rq, err := queue.NewRabbitMailQueue(cfg.RabbitMQURL, cfg.Queues.Mail)
		if err != nil {
			return nil, nil, err
		}
		return rq, rq.Close, nil
	case client != nil:
		return queue.NewRedisMailQueue(client, cfg.Queues.Mail), func() error { return nil }, nil
	}
	return queue.NewMemoryMailQueue(), func() error { return nil }, nil
}

// Outbox публикует напоминания и доставляет письма.
type Outbox interface {
	domain.Notifier
	Deliver(ctx context.Context, job domain.MailJob) error
}

// Notifier публикует через бота, если задан токен, иначе пишет в журнал.
func Notifier(cfg config.AppConfig, logger zerolog.Logger) (Outbox, error) {
	if cfg.Telegram.Token == "" {
		logger.Warn().Msg("TG_BOT_TOKEN не задан, уведомления пишутся в журнал")
		return notifier.NewLog(logger, true), nil
	}
	bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return notifier.NewTelegram(bot, cfg.Telegram.ChatID, cfg.PublicBaseURL, logger), nil
}
