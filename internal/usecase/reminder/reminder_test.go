package reminder

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"chronoplan/internal/adapters/notifier"
	"chronoplan/internal/domain"
	"chronoplan/internal/infra/queue"
)

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newQueue() *queue.MemoryReminderQueue {
	q := queue.NewMemoryReminderQueue(queue.ReminderOptions{Lease: time.Minute, PollInterval: 5 * time.Millisecond, RetryDelay: time.Second})
	q.SetClock(func() time.Time { return base })
	return q
}

func TestScheduleEnqueuesTaggedJob(t *testing.T) {
	q := newQueue()
	s := NewScheduler(q, zerolog.Nop())
	s.now = func() time.Time { return base }
	ctx := context.Background()

	if err := s.Schedule(ctx, "a1", "Rapat", Body(30), 90*time.Minute); err != nil {
		t.Fatalf("schedule: %v", err)
	}
	jobs := q.Pending(domain.ReminderTag("a1"))
	if len(jobs) != 1 {
		t.Fatalf("ожидали одну задачу, получили %d", len(jobs))
	}
	job := jobs[0]
	if !job.RunAt.Equal(base.Add(90 * time.Minute)) {
		t.Fatalf("неверный срок: %v", job.RunAt)
	}
	if job.Payload[domain.PayloadAgendaID] != "a1" || job.Payload[domain.PayloadTitle] != "Rapat" || job.Payload[domain.PayloadBody] != "Dimulai 30 menit lagi" {
		t.Fatalf("неверная нагрузка: %+v", job.Payload)
	}

	for _, d := range []time.Duration{0, -time.Minute} {
		if err := s.Schedule(ctx, "a2", "x", "y", d); err != nil {
			t.Fatalf("schedule: %v", err)
		}
	}
	if len(q.Pending(domain.ReminderTag("a2"))) != 0 {
		t.Fatalf("неположительная задержка не должна ставить задачу")
	}

	_ = s.Schedule(ctx, "a1", "Rapat", "again", time.Hour)
	if err := s.Cancel(ctx, "a1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(q.Pending(domain.ReminderTag("a1"))) != 0 {
		t.Fatalf("все задачи тега должны быть отозваны")
	}
}

func TestProcessPostsNotification(t *testing.T) {
	n := notifier.NewLog(zerolog.Nop(), true)
	w := NewWorker(newQueue(), n, 3, zerolog.Nop())
	w.now = func() time.Time { return base }

	job := domain.ReminderJob{ID: "j1", Payload: map[string]string{domain.PayloadAgendaID: "a1"}}
	if err := w.Process(context.Background(), job); err != nil {
		t.Fatalf("process: %v", err)
	}
	ch, ok := n.Channel(ChannelID)
	if !ok || ch.Name != "Agenda Reminders" || ch.Importance != domain.ImportanceHigh {
		t.Fatalf("канал не создан: %+v", ch)
	}
	posted := n.Posted()
	if len(posted) != 1 {
		t.Fatalf("ожидали одно уведомление, получили %d", len(posted))
	}
	got := posted[0]
	if got.Title != DefaultTitle || got.Body != DefaultBody {
		t.Fatalf("ожидали тексты по умолчанию: %+v", got)
	}
	if got.DeepLink != "chronoplan://agenda?agendaId=a1" || !got.AutoCancel || !got.HighPriority {
		t.Fatalf("неверное уведомление: %+v", got)
	}
	if got.ID != int32(base.UnixMilli()%2147483647) {
		t.Fatalf("неверный id уведомления: %d", got.ID)
	}
}

func TestProcessWithoutPermission(t *testing.T) {
	n := notifier.NewLog(zerolog.Nop(), false)
	w := NewWorker(newQueue(), n, 3, zerolog.Nop())
	if err := w.Process(context.Background(), domain.ReminderJob{ID: "j1"}); err != nil {
		t.Fatalf("без разрешения задача должна завершаться успешно: %v", err)
	}
	if len(n.Posted()) != 0 {
		t.Fatalf("без разрешения уведомления не публикуются")
	}
	if _, ok := n.Channel(ChannelID); !ok {
		t.Fatalf("канал создаётся до проверки разрешения")
	}
}

type flakyNotifier struct {
	*notifier.Log
	mu    sync.Mutex
	fails int
}

func (f *flakyNotifier) Post(ctx context.Context, n domain.Notification) error {
	f.mu.Lock()
	if f.fails > 0 {
		f.fails--
		f.mu.Unlock()
		return errors.New("telegram unavailable")
	}
	f.mu.Unlock()
	return f.Log.Post(ctx, n)
}

func TestHandleRetriesAndCancellation(t *testing.T) {
	q := newQueue()
	n := &flakyNotifier{Log: notifier.NewLog(zerolog.Nop(), true), fails: 1}
	w := NewWorker(q, n, 3, zerolog.Nop())
	ctx := context.Background()

	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "j1", Tag: domain.ReminderTag("a1"), RunAt: base})
	job, ack, err := q.Receive(ctx)
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	w.handle(ctx, job, ack)
	pending := q.Pending(domain.ReminderTag("a1"))
	if len(pending) != 1 || pending[0].Attempts != 1 {
		t.Fatalf("после сбоя задача должна вернуться в очередь: %+v", pending)
	}

	q.SetClock(func() time.Time { return base.Add(time.Minute) })
	job, ack, _ = q.Receive(ctx)
	w.handle(ctx, job, ack)
	if len(n.Posted()) != 1 || len(q.Pending(domain.ReminderTag("a1"))) != 0 {
		t.Fatalf("повтор должен опубликовать уведомление")
	}

	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "j2", Tag: domain.ReminderTag("a2"), RunAt: base})
	job, ack, _ = q.Receive(ctx)
	if _, err := q.CancelTag(ctx, domain.ReminderTag("a2")); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	w.handle(ctx, job, ack)
	if len(n.Posted()) != 1 {
		t.Fatalf("отменённая во время выполнения задача не публикуется")
	}
}

func TestHandleDropsAfterMaxAttempts(t *testing.T) {
	q := newQueue()
	n := &flakyNotifier{Log: notifier.NewLog(zerolog.Nop(), true), fails: 10}
	w := NewWorker(q, n, 2, zerolog.Nop())
	ctx := context.Background()

	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "j1", Tag: "reminder:a1", RunAt: base, Attempts: 1})
	job, ack, _ := q.Receive(ctx)
	w.handle(ctx, job, ack)
	if len(q.Pending("reminder:a1")) != 0 {
		t.Fatalf("после последней попытки задача удаляется")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	q := newQueue()
	n := notifier.NewLog(zerolog.Nop(), true)
	w := NewWorker(q, n, 3, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "j1", Tag: "reminder:a1", RunAt: base, Payload: map[string]string{domain.PayloadAgendaID: "a1"}})

	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(2 * time.Second)
	for len(n.Posted()) == 0 {
		select {
		case <-deadline:
			t.Fatalf("воркер не обработал задачу")
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run должен завершаться без ошибки: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("Run не остановился")
	}
}
