package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"chronoplan/internal/domain"
	"chronoplan/internal/infra/metrics"
)

// RabbitMailQueue: исходящая очередь писем в RabbitMQ.
type RabbitMailQueue struct {
	conn  *amqp.Connection
	queue string

	mu      sync.Mutex
	pub     *amqp.Channel
	consume *amqp.Channel
	deliv   <-chan amqp.Delivery
}

var _ domain.MailQueue = (*RabbitMailQueue)(nil)

// NewRabbitMailQueue подключается к брокеру и объявляет durable очередь.
func NewRabbitMailQueue(amqpURL, queue string) (*RabbitMailQueue, error) {
	if amqpURL == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &RabbitMailQueue{conn: conn, queue: queue, pub: ch}, nil
}

// Enqueue публикует письмо с persistent доставкой.
func (q *RabbitMailQueue) Enqueue(ctx context.Context, job domain.MailJob) (err error) {
	start := time.Now()
	defer func() { metrics.ObserveNetworkRequest("rabbitmq", "publish", q.queue, start, err) }()

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal mail: %w", err)
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	err = q.pub.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    job.ID,
		Timestamp:    job.CreatedAt,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish mail: %w", err)
	}
	return nil
}

func (q *RabbitMailQueue) deliveries() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliv != nil {
		return q.deliv, nil
	}
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open consume channel: %w", err)
	}
	if err := ch.Qos(1, 0, false); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("set qos: %w", err)
	}
	d, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.consume, q.deliv = ch, d
	return d, nil
}

// Receive ждёт следующее письмо. Ack с success=false возвращает сообщение брокеру.
func (q *RabbitMailQueue) Receive(ctx context.Context) (domain.MailJob, domain.MailAckFunc, error) {
	deliveries, err := q.deliveries()
	if err != nil {
		return domain.MailJob{}, nil, err
	}
	for {
		select {
		case <-ctx.Done():
			return domain.MailJob{}, nil, ctx.Err()
		case d, ok := <-deliveries:
			if !ok {
				return domain.MailJob{}, nil, errors.New("rabbitmq: delivery channel closed")
			}
			var job domain.MailJob
			if err := json.Unmarshal(d.Body, &job); err != nil {
				_ = d.Nack(false, false)
				continue
			}
			ack := func(success bool) error {
				if success {
					return d.Ack(false)
				}
				return d.Nack(false, true)
			}
			return job, ack, nil
		}
	}
}

// Close закрывает каналы и соединение.
func (q *RabbitMailQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.consume != nil {
		_ = q.consume.Close()
	}
	_ = q.pub.Close()
	return q.conn.Close()
}
