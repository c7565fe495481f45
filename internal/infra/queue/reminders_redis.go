package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"chronoplan/internal/domain"
)

// maxRetryTx ограничивает повторы транзакции при конкурентном изменении задачи.
const maxRetryTx = 3

// ReminderOptions настраивает очередь напоминаний.
type ReminderOptions struct {
	// Lease: время, через которое невыполненная задача возвращается в очередь.
	Lease        time.Duration
	PollInterval time.Duration
	RetryDelay   time.Duration
}

func (o ReminderOptions) withDefaults() ReminderOptions {
	if o.Lease <= 0 {
		o.Lease = time.Minute
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 500 * time.Millisecond
	}
	if o.RetryDelay <= 0 {
		o.RetryDelay = 30 * time.Second
	}
	return o
}

// RedisReminderQueue хранит задачи в Redis: sorted set сроков, hash на задачу,
// set идентификаторов на тег и sorted set аренд выполняющихся задач.
type RedisReminderQueue struct {
	client *redis.Client
	prefix string
	opts   ReminderOptions
	now    func() time.Time
}

var _ domain.ReminderQueue = (*RedisReminderQueue)(nil)

// NewRedisReminderQueue создаёт очередь с префиксом ключей.
func NewRedisReminderQueue(client *redis.Client, prefix string, opts ReminderOptions) *RedisReminderQueue {
	return &RedisReminderQueue{client: client, prefix: prefix, opts: opts.withDefaults(), now: time.Now}
}

func (q *RedisReminderQueue) dueKey() string             { return q.prefix + ":due" }
func (q *RedisReminderQueue) processingKey() string      { return q.prefix + ":processing" }
func (q *RedisReminderQueue) jobKey(id string) string    { return q.prefix + ":job:" + id }
func (q *RedisReminderQueue) tagKey(tag string) string   { return q.prefix + ":tag:" + tag }
func (q *RedisReminderQueue) cancelKey(id string) string { return q.prefix + ":canceled:" + id }

// Enqueue сохраняет задачу и ставит её на срок RunAt.
func (q *RedisReminderQueue) Enqueue(ctx context.Context, job domain.ReminderJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	payload, err := json.Marshal(job.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	runAt := job.RunAt.UnixMilli()
	_, err = q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, q.jobKey(job.ID), map[string]any{
			"tag":      job.Tag,
			"run_at":   runAt,
			"payload":  string(payload),
			"attempts": job.Attempts,
		})
		pipe.ZAdd(ctx, q.dueKey(), redis.Z{Score: float64(runAt), Member: job.ID})
		if job.Tag != "" {
			pipe.SAdd(ctx, q.tagKey(job.Tag), job.ID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("enqueue reminder: %w", err)
	}
	return nil
}

// CancelTag удаляет ожидающие задачи тега и помечает выполняющиеся как отменённые.
func (q *RedisReminderQueue) CancelTag(ctx context.Context, tag string) (int, error) {
	ids, err := q.client.SMembers(ctx, q.tagKey(tag)).Result()
	if err != nil {
		return 0, fmt.Errorf("tag members: %w", err)
	}
	canceled := 0
	for _, id := range ids {
		removed, err := q.client.ZRem(ctx, q.dueKey(), id).Result()
		if err != nil {
			return canceled, fmt.Errorf("remove due: %w", err)
		}
		running := false
		if _, err := q.client.ZScore(ctx, q.processingKey(), id).Result(); err == nil {
			running = true
		} else if !errors.Is(err, redis.Nil) {
			return canceled, fmt.Errorf("lease lookup: %w", err)
		}
		if running {
			if err := q.client.Set(ctx, q.cancelKey(id), "1", 2*q.opts.Lease).Err(); err != nil {
				return canceled, fmt.Errorf("mark canceled: %w", err)
			}
		}
		if err := q.client.Del(ctx, q.jobKey(id)).Err(); err != nil {
			return canceled, fmt.Errorf("delete job: %w", err)
		}
		if removed > 0 || running {
			canceled++
		}
	}
	if err := q.client.Del(ctx, q.tagKey(tag)).Err(); err != nil {
		return canceled, fmt.Errorf("delete tag: %w", err)
	}
	return canceled, nil
}

// IsCanceled сообщает, была ли задача отозвана во время выполнения.
func (q *RedisReminderQueue) IsCanceled(ctx context.Context, jobID string) (bool, error) {
	n, err := q.client.Exists(ctx, q.cancelKey(jobID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Receive ждёт задачу, срок которой наступил, и берёт её в аренду.
func (q *RedisReminderQueue) Receive(ctx context.Context) (domain.ReminderJob, domain.ReminderAckFunc, error) {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()
	for {
		job, ok, err := q.claim(ctx)
		if err != nil {
			return domain.ReminderJob{}, nil, err
		}
		if ok {
			return job, q.ackFunc(job), nil
		}
		select {
		case <-ctx.Done():
			return domain.ReminderJob{}, nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *RedisReminderQueue) claim(ctx context.Context) (domain.ReminderJob, bool, error) {
	now := q.now()
	upTo := strconv.FormatInt(now.UnixMilli(), 10)

	expired, err := q.client.ZRangeByScore(ctx, q.processingKey(), &redis.ZRangeBy{Min: "-inf", Max: upTo}).Result()
	if err != nil {
		return domain.ReminderJob{}, false, fmt.Errorf("expired leases: %w", err)
	}
	for _, id := range expired {
		if n, _ := q.client.ZRem(ctx, q.processingKey(), id).Result(); n > 0 {
			if exists, _ := q.client.Exists(ctx, q.jobKey(id)).Result(); exists > 0 {
				q.client.ZAdd(ctx, q.dueKey(), redis.Z{Score: float64(now.UnixMilli()), Member: id})
			}
		}
	}

	for {
		ids, err := q.client.ZRangeByScore(ctx, q.dueKey(), &redis.ZRangeBy{Min: "-inf", Max: upTo, Count: 1}).Result()
		if err != nil {
			return domain.ReminderJob{}, false, fmt.Errorf("due jobs: %w", err)
		}
		if len(ids) == 0 {
			return domain.ReminderJob{}, false, nil
		}
		id := ids[0]
		removed, err := q.client.ZRem(ctx, q.dueKey(), id).Result()
		if err != nil {
			return domain.ReminderJob{}, false, fmt.Errorf("claim job: %w", err)
		}
		if removed == 0 {
			continue
		}
		leaseUntil := now.Add(q.opts.Lease).UnixMilli()
		if err := q.client.ZAdd(ctx, q.processingKey(), redis.Z{Score: float64(leaseUntil), Member: id}).Err(); err != nil {
			return domain.ReminderJob{}, false, fmt.Errorf("lease job: %w", err)
		}
		fields, err := q.client.HGetAll(ctx, q.jobKey(id)).Result()
		if err != nil {
			return domain.ReminderJob{}, false, fmt.Errorf("load job: %w", err)
		}
		if len(fields) == 0 {
			q.client.ZRem(ctx, q.processingKey(), id)
			continue
		}
		job, err := decodeReminder(id, fields)
		if err != nil {
			return domain.ReminderJob{}, false, err
		}
		return job, true, nil
	}
}

func decodeReminder(id string, fields map[string]string) (domain.ReminderJob, error) {
	runAt, _ := strconv.ParseInt(fields["run_at"], 10, 64)
	attempts, _ := strconv.Atoi(fields["attempts"])
	payload := map[string]string{}
	if raw := fields["payload"]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &payload); err != nil {
			return domain.ReminderJob{}, fmt.Errorf("decode payload: %w", err)
		}
	}
	return domain.ReminderJob{
		ID:       id,
		Tag:      fields["tag"],
		RunAt:    time.UnixMilli(runAt),
		Payload:  payload,
		Attempts: attempts,
	}, nil
}

func (q *RedisReminderQueue) ackFunc(job domain.ReminderJob) domain.ReminderAckFunc {
	return func(success bool) error {
		ctx := context.Background()
		if success {
			_, err := q.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.Del(ctx, q.jobKey(job.ID), q.cancelKey(job.ID))
				pipe.ZRem(ctx, q.processingKey(), job.ID)
				if job.Tag != "" {
					pipe.SRem(ctx, q.tagKey(job.Tag), job.ID)
				}
				return nil
			})
			return err
		}
		return q.retry(ctx, job.ID)
	}
}

// retry возвращает задачу в очередь через RetryDelay. Задача, отозванная во время
// выполнения, в очередь не возвращается.
func (q *RedisReminderQueue) retry(ctx context.Context, id string) error {
	retryAt := q.now().Add(q.opts.RetryDelay).UnixMilli()
	requeue := func(tx *redis.Tx) error {
		exists, err := tx.Exists(ctx, q.jobKey(id)).Result()
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.ZRem(ctx, q.processingKey(), id)
			if exists > 0 {
				pipe.HIncrBy(ctx, q.jobKey(id), "attempts", 1)
				pipe.ZAdd(ctx, q.dueKey(), redis.Z{Score: float64(retryAt), Member: id})
			}
			return nil
		})
		return err
	}
	for attempt := 0; attempt < maxRetryTx; attempt++ {
		err := q.client.Watch(ctx, requeue, q.jobKey(id))
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("requeue %s: %w", id, redis.TxFailedErr)
}
