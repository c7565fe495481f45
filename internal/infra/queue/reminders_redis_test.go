package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"chronoplan/internal/domain"
)

func newRedisReminders(t *testing.T, opts ReminderOptions) (*RedisReminderQueue, *redis.Client, *time.Time) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	now := time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC)
	q := NewRedisReminderQueue(client, "test:reminders", opts)
	q.now = func() time.Time { return now }
	return q, client, &now
}

func receiveNothing(t *testing.T, q *RedisReminderQueue) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()
	if job, _, err := q.Receive(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("очередь должна быть пуста, получили %q, %v", job.ID, err)
	}
}

func TestRedisReminderQueueOrdersByDueTime(t *testing.T) {
	q, _, now := newRedisReminders(t, ReminderOptions{PollInterval: 5 * time.Millisecond})
	ctx := context.Background()

	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "later", Tag: domain.ReminderTag("a1"), RunAt: now.Add(2 * time.Minute)})
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "sooner", Tag: domain.ReminderTag("a2"), RunAt: now.Add(time.Minute),
		Payload: map[string]string{domain.PayloadAgendaID: "a2", domain.PayloadTitle: "Rapat"}})
	receiveNothing(t, q)

	*now = now.Add(3 * time.Minute)
	job, ack, err := q.Receive(ctx)
	if err != nil || job.ID != "sooner" {
		t.Fatalf("первой ожидали ближайшую задачу: %q, %v", job.ID, err)
	}
	if job.Tag != domain.ReminderTag("a2") || job.Payload[domain.PayloadTitle] != "Rapat" || job.RunAt.UnixMilli() != now.Add(-2*time.Minute).UnixMilli() {
		t.Fatalf("задача прочитана неверно: %+v", job)
	}
	if err := ack(true); err != nil {
		t.Fatalf("ack: %v", err)
	}
	job, ack, err = q.Receive(ctx)
	if err != nil || job.ID != "later" {
		t.Fatalf("второй ожидали later: %q, %v", job.ID, err)
	}
	_ = ack(true)
	receiveNothing(t, q)
}

func TestRedisReminderQueueLeaseExpiryAndRetry(t *testing.T) {
	q, client, now := newRedisReminders(t, ReminderOptions{PollInterval: 5 * time.Millisecond, Lease: time.Minute, RetryDelay: 10 * time.Second})
	ctx := context.Background()
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "j", Tag: "reminder:x", RunAt: *now})

	if _, _, err := q.Receive(ctx); err != nil {
		t.Fatalf("Receive: %v", err)
	}
	receiveNothing(t, q)

	*now = now.Add(time.Minute + time.Second)
	job, ack, err := q.Receive(ctx)
	if err != nil || job.ID != "j" {
		t.Fatalf("просроченная аренда должна вернуть задачу: %q, %v", job.ID, err)
	}

	if err := ack(false); err != nil {
		t.Fatalf("ack(false): %v", err)
	}
	if n, _ := client.ZCard(ctx, q.processingKey()).Result(); n != 0 {
		t.Fatalf("аренда должна сниматься при повторе, осталось %d", n)
	}
	receiveNothing(t, q)

	*now = now.Add(10 * time.Second)
	job, ack, err = q.Receive(ctx)
	if err != nil || job.ID != "j" || job.Attempts != 1 {
		t.Fatalf("после RetryDelay ожидали задачу с attempts=1: %+v, %v", job, err)
	}
	_ = ack(true)
	if n, _ := client.Exists(ctx, q.jobKey("j")).Result(); n != 0 {
		t.Fatalf("после ack задача должна удаляться")
	}
}

func TestRedisReminderQueueCancelPending(t *testing.T) {
	q, client, now := newRedisReminders(t, ReminderOptions{PollInterval: 5 * time.Millisecond})
	ctx := context.Background()
	tag := domain.ReminderTag("a1")
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "p1", Tag: tag, RunAt: now.Add(time.Minute)})
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "p2", Tag: tag, RunAt: now.Add(time.Hour)})
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "other", Tag: domain.ReminderTag("a2"), RunAt: now.Add(time.Hour)})

	n, err := q.CancelTag(ctx, tag)
	if err != nil || n != 2 {
		t.Fatalf("CancelTag = %d, %v", n, err)
	}
	if canceled, _ := q.IsCanceled(ctx, "p1"); canceled {
		t.Fatalf("ожидающая задача не помечается как выполняющаяся")
	}
	if due, _ := client.ZRange(ctx, q.dueKey(), 0, -1).Result(); len(due) != 1 || due[0] != "other" {
		t.Fatalf("в расписании должна остаться только чужая задача: %v", due)
	}

	*now = now.Add(2 * time.Hour)
	job, _, err := q.Receive(ctx)
	if err != nil || job.ID != "other" {
		t.Fatalf("ожидали other: %q, %v", job.ID, err)
	}
}

func TestRedisReminderQueueCancelRunningIsNotRequeued(t *testing.T) {
	q, client, now := newRedisReminders(t, ReminderOptions{PollInterval: 5 * time.Millisecond, Lease: time.Minute, RetryDelay: time.Second})
	ctx := context.Background()
	tag := domain.ReminderTag("a1")
	_ = q.Enqueue(ctx, domain.ReminderJob{ID: "run", Tag: tag, RunAt: *now, Payload: map[string]string{domain.PayloadAgendaID: "a1"}})

	job, ack, err := q.Receive(ctx)
	if err != nil || job.ID != "run" {
		t.Fatalf("Receive = %q, %v", job.ID, err)
	}
	if n, _ := q.CancelTag(ctx, tag); n != 1 {
		t.Fatalf("выполняющаяся задача тоже считается отменённой, получили %d", n)
	}
	if canceled, _ := q.IsCanceled(ctx, "run"); !canceled {
		t.Fatalf("выполняющаяся задача должна быть помечена отменённой")
	}

	if err := ack(false); err != nil {
		t.Fatalf("ack(false): %v", err)
	}
	if n, _ := client.Exists(ctx, q.jobKey("run")).Result(); n != 0 {
		t.Fatalf("повтор не должен воссоздавать отменённую задачу")
	}
	if n, _ := client.ZCard(ctx, q.dueKey()).Result(); n != 0 {
		t.Fatalf("отменённая задача не возвращается в расписание, в очереди %d", n)
	}
	if n, _ := client.ZCard(ctx, q.processingKey()).Result(); n != 0 {
		t.Fatalf("аренда отменённой задачи должна сниматься, осталось %d", n)
	}

	*now = now.Add(2 * time.Minute)
	receiveNothing(t, q)
}
