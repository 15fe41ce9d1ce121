package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"ecojourney/internal/util"
	"ecojourney/pkg/domain"
)

// AMQPNotificationQueue delivers notifications over a durable RabbitMQ queue.
// Failed deliveries are republished with an incremented attempt header and
// dropped after maxRetries.
type AMQPNotificationQueue struct {
	conn       *amqp.Connection
	queue      string
	maxRetries int
	retryDelay time.Duration
}

type AMQPQueueConfig struct {
	URL        string
	Queue      string
	MaxRetries int
	RetryDelay time.Duration
}

func NewAMQPNotificationQueue(cfg AMQPQueueConfig) (*AMQPNotificationQueue, error) {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		return nil, errors.New("amqp url required")
	}
	name := strings.TrimSpace(cfg.Queue)
	if name == "" {
		return nil, errors.New("amqp queue name required")
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	retryDelay := cfg.RetryDelay
	if retryDelay <= 0 {
		retryDelay = 2 * time.Second
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	return &AMQPNotificationQueue{
		conn:       conn,
		queue:      name,
		maxRetries: maxRetries,
		retryDelay: retryDelay,
	}, nil
}

func (q *AMQPNotificationQueue) Enqueue(ctx context.Context, n domain.Notification) (JobStatus, error) {
	if strings.TrimSpace(string(n.Kind)) == "" {
		return JobStatus{}, errors.New("notification kind required")
	}
	if strings.TrimSpace(n.UserID) == "" {
		return JobStatus{}, errors.New("notification userId required")
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return JobStatus{}, fmt.Errorf("encode notification: %w", err)
	}
	job := JobStatus{
		ID:        util.NewID(),
		Kind:      string(n.Kind),
		Status:    StatusQueued,
		CreatedAt: time.Now().UTC(),
		UpdatedAt: time.Now().UTC(),
	}
	if err := q.publish(ctx, job.ID, payload, 0); err != nil {
		return JobStatus{}, err
	}
	return job, nil
}

func (q *AMQPNotificationQueue) publish(ctx context.Context, jobID string, payload []byte, attempts int) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	return ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		MessageId:    jobID,
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Headers:      amqp.Table{"x-attempts": int32(attempts)},
		Body:         payload,
	})
}

func (q *AMQPNotificationQueue) Start(ctx context.Context, concurrency int, handler Handler) {
	if concurrency <= 0 {
		concurrency = 1
	}
	for i := 0; i < concurrency; i++ {
		go q.consumeLoop(ctx, handler)
	}
}

func (q *AMQPNotificationQueue) consumeLoop(ctx context.Context, handler Handler) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if err := q.consume(ctx, handler); err != nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(q.retryDelay):
			}
		}
	}
}

func (q *AMQPNotificationQueue) consume(ctx context.Context, handler Handler) error {
	ch, err := q.conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			q.handleDelivery(ctx, d, handler)
		}
	}
}

func (q *AMQPNotificationQueue) handleDelivery(ctx context.Context, d amqp.Delivery, handler Handler) {
	var n domain.Notification
	if err := json.Unmarshal(d.Body, &n); err != nil {
		_ = d.Ack(false)
		return
	}
	attempts := deliveryAttempts(d) + 1
	if err := handler(ctx, n); err == nil {
		_ = d.Ack(false)
		return
	}
	if attempts >= q.maxRetries {
		_ = d.Ack(false)
		return
	}
	if q.retryDelay > 0 {
		select {
		case <-ctx.Done():
			_ = d.Nack(false, true)
			return
		case <-time.After(q.retryDelay):
		}
	}
	if err := q.publish(ctx, d.MessageId, d.Body, attempts); err != nil {
		_ = d.Nack(false, true)
		return
	}
	_ = d.Ack(false)
}

func deliveryAttempts(d amqp.Delivery) int {
	if d.Headers == nil {
		return 0
	}
	switch v := d.Headers["x-attempts"].(type) {
	case int32:
		return int(v)
	case int64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

// Close shuts down the AMQP connection.
func (q *AMQPNotificationQueue) Close() error {
	return q.conn.Close()
}
