package queue

import (
	"context"
	"sync"

	"chronoplan/internal/domain"
)

// MemoryMailQueue хранит письма в процессе.
type MemoryMailQueue struct {
	mu     sync.Mutex
	jobs   []domain.MailJob
	signal chan struct{}
}

var _ domain.MailQueue = (*MemoryMailQueue)(nil)

// NewMemoryMailQueue создаёт пустую очередь.
func NewMemoryMailQueue() *MemoryMailQueue {
	return &MemoryMailQueue{signal: make(chan struct{}, 1)}
}

// Enqueue добавляет письмо.
func (q *MemoryMailQueue) Enqueue(_ context.Context, job domain.MailJob) error {
	q.mu.Lock()
	q.jobs = append(q.jobs, job)
	q.mu.Unlock()
	select {
	case q.signal <- struct{}{}:
	default:
	}
	return nil
}

// Sent возвращает копию очереди.
func (q *MemoryMailQueue) Sent() []domain.MailJob {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]domain.MailJob(nil), q.jobs...)
}

var (
	_ domain.MailSource = (*MemoryMailQueue)(nil)
	_ domain.MailSource = (*RedisMailQueue)(nil)
	_ domain.MailSource = (*RabbitMailQueue)(nil)
)

// Receive забирает первое письмо, ожидая его появления.
func (q *MemoryMailQueue) Receive(ctx context.Context) (domain.MailJob, domain.MailAckFunc, error) {
	for {
		q.mu.Lock()
		if len(q.jobs) > 0 {
			job := q.jobs[0]
			q.jobs = q.jobs[1:]
			q.mu.Unlock()
			ack := func(success bool) error {
				if success {
					return nil
				}
				return q.Enqueue(context.Background(), job)
			}
			return job, ack, nil
		}
		q.mu.Unlock()
		select {
		case <-ctx.Done():
			return domain.MailJob{}, nil, ctx.Err()
		case <-q.signal:
		}
	}
}
