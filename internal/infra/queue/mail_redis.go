package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chronoplan/internal/domain"
)

// RedisMailQueue: исходящая очередь писем на Redis list.
type RedisMailQueue struct {
	client *redis.Client
	key    string
}

var _ domain.MailQueue = (*RedisMailQueue)(nil)

// NewRedisMailQueue создаёт очередь по указанному ключу.
func NewRedisMailQueue(client *redis.Client, key string) *RedisMailQueue {
	return &RedisMailQueue{client: client, key: key}
}

// Enqueue публикует письмо.
func (q *RedisMailQueue) Enqueue(ctx context.Context, job domain.MailJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("push mail: %w", err)
	}
	return nil
}

// Receive блокирующе читает письмо. Неподтверждённое письмо возвращается в хвост очереди.
func (q *RedisMailQueue) Receive(ctx context.Context) (domain.MailJob, domain.MailAckFunc, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.MailJob{}, nil, err
		}
		res, err := q.client.BRPop(ctx, time.Second, q.key).Result()
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if ctx.Err() != nil {
					return domain.MailJob{}, nil, ctx.Err()
				}
				continue
			}
			if errors.Is(err, redis.Nil) {
				continue
			}
			return domain.MailJob{}, nil, err
		}
		if len(res) != 2 {
			return domain.MailJob{}, nil, errors.New("redis mail queue: unexpected response")
		}
		var job domain.MailJob
		if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
			return domain.MailJob{}, nil, fmt.Errorf("decode mail: %w", err)
		}
		raw := res[1]
		ack := func(success bool) error {
			if success {
				return nil
			}
			return q.client.RPush(context.Background(), q.key, raw).Err()
		}
		return job, ack, nil
	}
}
