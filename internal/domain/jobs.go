package domain

import (
	"context"
	"net/url"
	"time"
)

// Ключи полезной нагрузки задачи напоминания.
const (
	PayloadAgendaID = "agendaId"
	PayloadTitle    = "title"
	PayloadBody     = "body"
)

// ReminderTag возвращает тег задач напоминания агенды.
func ReminderTag(agendaID string) string {
	return "reminder:" + agendaID
}

// ReminderJob: отложенная задача уведомления.
type ReminderJob struct {
	ID       string            `json:"job_id"`
	Tag      string            `json:"tag"`
	RunAt    time.Time         `json:"run_at"`
	Payload  map[string]string `json:"payload"`
	Attempts int               `json:"attempts,omitempty"`
}

// ReminderAckFunc подтверждает выполнение задачи или просит повторить её позже.
type ReminderAckFunc func(success bool) error

// ReminderQueue: надёжная очередь отложенных задач с отменой по тегу.
type ReminderQueue interface {
	Enqueue(ctx context.Context, job ReminderJob) error
	// CancelTag отзывает ожидающие задачи с тегом и помечает уже выполняющиеся.
	CancelTag(ctx context.Context, tag string) (int, error)
	// Receive блокируется до наступления срока очередной задачи.
	Receive(ctx context.Context) (ReminderJob, ReminderAckFunc, error)
	IsCanceled(ctx context.Context, jobID string) (bool, error)
}

// MailJob: письмо в исходящей очереди.
type MailJob struct {
	ID        string    `json:"job_id"`
	To        string    `json:"to"`
	Subject   string    `json:"subject"`
	Body      string    `json:"body"`
	Link      string    `json:"link,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MailQueue принимает письма для отправки.
type MailQueue interface {
	Enqueue(ctx context.Context, job MailJob) error
}

// MailAckFunc подтверждает отправку письма или возвращает его в очередь.
type MailAckFunc func(success bool) error

// MailSource отдаёт письма исходящей очереди по одному.
type MailSource interface {
	Receive(ctx context.Context) (MailJob, MailAckFunc, error)
}

// Диплинки приложения.
const (
	DeepLinkScheme   = "chronoplan"
	VerifiedDeepLink = DeepLinkScheme + "://verified"
)

// AgendaDeepLink возвращает ссылку на карточку агенды.
func AgendaDeepLink(agendaID string) string {
	return DeepLinkScheme + "://agenda?agendaId=" + url.QueryEscape(agendaID)
}
