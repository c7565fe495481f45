package queue

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"chronoplan/internal/domain"
)

// MemoryReminderQueue: процессная реализация очереди напоминаний с той же семантикой
// аренды и отмены, что и Redis.
type MemoryReminderQueue struct {
	mu         sync.Mutex
	jobs       map[string]domain.ReminderJob
	due        map[string]time.Time
	processing map[string]time.Time
	canceled   map[string]bool
	opts       ReminderOptions
	now        func() time.Time
}

var _ domain.ReminderQueue = (*MemoryReminderQueue)(nil)

// NewMemoryReminderQueue создаёт пустую очередь.
func NewMemoryReminderQueue(opts ReminderOptions) *MemoryReminderQueue {
	return &MemoryReminderQueue{
		jobs:       make(map[string]domain.ReminderJob),
		due:        make(map[string]time.Time),
		processing: make(map[string]time.Time),
		canceled:   make(map[string]bool),
		opts:       opts.withDefaults(),
		now:        time.Now,
	}
}

// SetClock подменяет источник времени.
func (q *MemoryReminderQueue) SetClock(now func() time.Time) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.now = now
}

// Enqueue сохраняет задачу.
func (q *MemoryReminderQueue) Enqueue(_ context.Context, job domain.ReminderJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload := make(map[string]string, len(job.Payload))
	for k, v := range job.Payload {
		payload[k] = v
	}
	job.Payload = payload
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs[job.ID] = job
	q.due[job.ID] = job.RunAt
	return nil
}

// Pending возвращает ожидающие задачи тега, упорядоченные по сроку.
func (q *MemoryReminderQueue) Pending(tag string) []domain.ReminderJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	var out []domain.ReminderJob
	for id := range q.due {
		if job := q.jobs[id]; job.Tag == tag {
			out = append(out, job)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RunAt.Before(out[j].RunAt) })
	return out
}

// CancelTag отзывает задачи тега.
func (q *MemoryReminderQueue) CancelTag(_ context.Context, tag string) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	canceled := 0
	for id, job := range q.jobs {
		if job.Tag != tag {
			continue
		}
		if _, ok := q.processing[id]; ok {
			q.canceled[id] = true
		}
		delete(q.due, id)
		delete(q.jobs, id)
		canceled++
	}
	return canceled, nil
}

// IsCanceled сообщает, была ли задача отозвана во время выполнения.
func (q *MemoryReminderQueue) IsCanceled(_ context.Context, jobID string) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.canceled[jobID], nil
}

// Receive ждёт задачу, срок которой наступил.
func (q *MemoryReminderQueue) Receive(ctx context.Context) (domain.ReminderJob, domain.ReminderAckFunc, error) {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()
	for {
		if job, ok := q.claim(); ok {
			return job, q.ackFunc(job), nil
		}
		select {
		case <-ctx.Done():
			return domain.ReminderJob{}, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *MemoryReminderQueue) claim() (domain.ReminderJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for id, until := range q.processing {
		if !until.After(now) {
			delete(q.processing, id)
			if _, ok := q.jobs[id]; ok {
				q.due[id] = now
			}
		}
	}
	var (
		best   string
		bestAt time.Time
	)
	for id, at := range q.due {
		if at.After(now) {
			continue
		}
		if best == "" || at.Before(bestAt) {
			best, bestAt = id, at
		}
	}
	if best == "" {
		return domain.ReminderJob{}, false
	}
	delete(q.due, best)
	q.processing[best] = now.Add(q.opts.Lease)
	return q.jobs[best], true
}

func (q *MemoryReminderQueue) ackFunc(job domain.ReminderJob) domain.ReminderAckFunc {
	return func(success bool) error {
		q.mu.Lock()
		defer q.mu.Unlock()
		delete(q.processing, job.ID)
		if success {
			delete(q.jobs, job.ID)
			delete(q.canceled, job.ID)
			return nil
		}
		stored, ok := q.jobs[job.ID]
		if !ok {
			return nil
		}
		stored.Attempts++
		q.jobs[job.ID] = stored
		q.due[job.ID] = q.now().Add(q.opts.RetryDelay)
		return nil
	}
}
