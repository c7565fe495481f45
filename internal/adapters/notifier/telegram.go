package notifier

import (
	"context"
	"errors"
	"html"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
)

const messageLimit = 4096

// Sender: часть tgbotapi.BotAPI, которой пользуется уведомитель.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram доставляет уведомления сообщением бота в указанный чат. Глубокая ссылка
// открывается кнопкой через HTTP-редирект сервиса.
type Telegram struct {
	bot         Sender
	chatID      int64
	openBaseURL string
	maxRetries  uint64
	log         zerolog.Logger

	mu       sync.Mutex
	channels map[string]domain.NotificationChannel
}

var _ domain.Notifier = (*Telegram)(nil)

// NewTelegram создаёт уведомитель. chatID == 0 означает, что разрешение не выдано.
func NewTelegram(bot Sender, chatID int64, publicBaseURL string, logger zerolog.Logger) *Telegram {
	return &Telegram{
		bot:         bot,
		chatID:      chatID,
		openBaseURL: strings.TrimRight(publicBaseURL, "/"),
		maxRetries:  3,
		log:         logger.With().Str("component", "telegram_notifier").Logger(),
		channels:    make(map[string]domain.NotificationChannel),
	}
}

// EnsureChannel запоминает канал: его имя становится заголовком сообщения.
func (t *Telegram) EnsureChannel(_ context.Context, ch domain.NotificationChannel) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, ok := t.channels[ch.ID]; !ok {
		t.channels[ch.ID] = ch
		t.log.Debug().Str("channel", ch.ID).Msg("notification channel registered")
	}
	return nil
}

// PermissionGranted сообщает, привязан ли чат.
func (t *Telegram) PermissionGranted(context.Context) bool {
	return t.bot != nil && t.chatID != 0
}

// Post отправляет уведомление, повторяя временные ошибки с экспоненциальной задержкой.
func (t *Telegram) Post(ctx context.Context, n domain.Notification) error {
	t.mu.Lock()
	ch := t.channels[n.ChannelID]
	t.mu.Unlock()

	header := "<b>" + html.EscapeString(n.Title) + "</b>"
	if ch.Name != "" {
		header = "🔔 " + html.EscapeString(ch.Name) + "\n" + header
	}
	parts := chunk(html.EscapeString(n.Body), messageLimit-len([]rune(header))-1)
	if len(parts) == 0 {
		parts = []string{""}
	}
	for i, part := range parts {
		text := part
		if i == 0 {
			text = strings.TrimRight(header+"\n"+part, "\n")
		}
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = tgbotapi.ModeHTML
		msg.DisableNotification = !n.HighPriority
		if i == len(parts)-1 && n.DeepLink != "" {
			markup := tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Buka agenda", t.openURL(n.DeepLink)),
			))
			msg.ReplyMarkup = markup
		}
		if err := t.send(ctx, msg); err != nil {
			metrics.NotifierSendErrors.Inc()
			return err
		}
	}
	return nil
}

func (t *Telegram) openURL(deepLink string) string {
	return t.openBaseURL + "/open?link=" + url.QueryEscape(deepLink)
}

func (t *Telegram) send(ctx context.Context, msg tgbotapi.MessageConfig) error {
	op := func() error {
		start := time.Now()
		_, err := t.bot.Send(msg)
		metrics.ObserveNetworkRequest("telegram_bot", "send_message", strconv.FormatInt(t.chatID, 10), start, err)
		if err == nil {
			return nil
		}
		var apiErr *tgbotapi.Error
		if errors.As(err, &apiErr) && apiErr.Code >= 400 && apiErr.Code < 500 && apiErr.Code != 429 {
			return backoff.Permanent(err)
		}
		t.log.Warn().Err(err).Msg("telegram send failed, retrying")
		return err
	}
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 200 * time.Millisecond
	policy.MaxInterval = 5 * time.Second
	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, t.maxRetries), ctx))
}

// chunk делит текст на части не длиннее limit символов, по возможности по переводам строк.
func chunk(text string, limit int) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if limit <= 0 {
		limit = messageLimit
	}
	runes := []rune(text)
	var parts []string
	for len(runes) > limit {
		cut := limit
		for i := limit; i > limit/2; i-- {
			if runes[i-1] == '\n' {
				cut = i
				break
			}
		}
		if part := strings.Trim(string(runes[:cut]), "\n"); part != "" {
			parts = append(parts, part)
		}
		runes = runes[cut:]
	}
	if rest := strings.Trim(string(runes), "\n"); rest != "" {
		parts = append(parts, rest)
	}
	return parts
}

// Deliver пересылает письмо из исходящей очереди в чат. Ссылка подтверждения
// становится кнопкой.
func (t *Telegram) Deliver(ctx context.Context, job domain.MailJob) error {
	if !t.PermissionGranted(ctx) {
		return errors.New("telegram chat is not configured")
	}
	text := "✉️ <b>" + html.EscapeString(job.Subject) + "</b>\n" +
		html.EscapeString(job.To) + "\n\n" + html.EscapeString(job.Body)
	parts := chunk(text, messageLimit)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(t.chatID, part)
		msg.ParseMode = tgbotapi.ModeHTML
		if i == len(parts)-1 && job.Link != "" {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonURL("Verifikasi email", job.Link),
			))
		}
		if err := t.send(ctx, msg); err != nil {
			return err
		}
	}
	return nil
}
