package queue

import (
	"context"
	"testing"
	"time"

	"chronoplan/internal/domain"
)

func TestMemoryReminderQueueDeliversWhenDue(t *testing.T) {
	q := NewMemoryReminderQueue(ReminderOptions{PollInterval: 5 * time.Millisecond})
	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	q.SetClock(func() time.Time { return now })

	_ = q.Enqueue(context.Background(), domain.ReminderJob{Tag: domain.ReminderTag("a1"), RunAt: now.Add(time.Minute), Payload: map[string]string{"agendaId": "a1"}})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	if _, _, err := q.Receive(ctx); err == nil {
		t.Fatalf("задача не должна выдаваться раньше срока")
	}

	now = now.Add(time.Minute)
	q.SetClock(func() time.Time { return now })
	job, ack, err := q.Receive(context.Background())
	if err != nil {
		t.Fatalf("не ожидали ошибку: %v", err)
	}
	if job.Payload["agendaId"] != "a1" {
		t.Fatalf("payload = %v", job.Payload)
	}
	if err := ack(true); err != nil {
		t.Fatalf("ack: %v", err)
	}
	if len(q.Pending(domain.ReminderTag("a1"))) != 0 {
		t.Fatalf("после ack задач быть не должно")
	}
}

func TestMemoryReminderQueueCancelPendingAndRunning(t *testing.T) {
	q := NewMemoryReminderQueue(ReminderOptions{PollInterval: time.Millisecond})
	now := time.Now()
	q.SetClock(func() time.Time { return now })
	tag := domain.ReminderTag("a2")

	_ = q.Enqueue(context.Background(), domain.ReminderJob{ID: "running", Tag: tag, RunAt: now})
	_ = q.Enqueue(context.Background(), domain.ReminderJob{ID: "later", Tag: tag, RunAt: now.Add(time.Hour)})

	job, ack, err := q.Receive(context.Background())
	if err != nil || job.ID != "running" {
		t.Fatalf("Receive = %v, %v", job.ID, err)
	}
	n, _ := q.CancelTag(context.Background(), tag)
	if n != 2 {
		t.Fatalf("ожидали отмену двух задач, получили %d", n)
	}
	if canceled, _ := q.IsCanceled(context.Background(), "running"); !canceled {
		t.Fatalf("выполняющаяся задача должна быть помечена отменённой")
	}
	if len(q.Pending(tag)) != 0 {
		t.Fatalf("ожидающих задач не должно остаться")
	}
	_ = ack(true)
	if canceled, _ := q.IsCanceled(context.Background(), "running"); canceled {
		t.Fatalf("отметка должна сниматься после завершения")
	}
}

func TestMemoryReminderQueueRetryAndLeaseExpiry(t *testing.T) {
	q := NewMemoryReminderQueue(ReminderOptions{PollInterval: time.Millisecond, Lease: time.Minute, RetryDelay: 10 * time.Second})
	now := time.Now()
	q.SetClock(func() time.Time { return now })
	_ = q.Enqueue(context.Background(), domain.ReminderJob{ID: "j", Tag: "reminder:x", RunAt: now})

	_, ack, _ := q.Receive(context.Background())
	_ = ack(false)
	pending := q.Pending("reminder:x")
	if len(pending) != 1 || pending[0].Attempts != 1 || !pending[0].RunAt.Equal(now) {
		t.Fatalf("после retry ожидали задачу с attempts=1: %+v", pending)
	}

	now = now.Add(10 * time.Second)
	q.SetClock(func() time.Time { return now })
	if _, _, err := q.Receive(context.Background()); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	now = now.Add(2 * time.Minute)
	q.SetClock(func() time.Time { return now })
	job, _, err := q.Receive(context.Background())
	if err != nil || job.ID != "j" {
		t.Fatalf("просроченная аренда должна вернуть задачу: %v %v", job.ID, err)
	}
}
