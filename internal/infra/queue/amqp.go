package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/thealinfix/hypebot/internal/domain"
)

// AMQPCandidateQueue реализует очередь кандидатов через RabbitMQ.
type AMQPCandidateQueue struct {
	conn  *amqp.Connection
	ch    *amqp.Channel
	queue string

	mu         sync.Mutex
	deliveries <-chan amqp.Delivery
}

var _ domain.CandidateQueue = (*AMQPCandidateQueue)(nil)

// NewAMQPCandidateQueue подключается к брокеру и объявляет очередь.
func NewAMQPCandidateQueue(url, queue string) (*AMQPCandidateQueue, error) {
	if url == "" {
		return nil, errors.New("amqp url is empty")
	}
	if queue == "" {
		return nil, errors.New("queue name is empty")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}
	return &AMQPCandidateQueue{conn: conn, ch: ch, queue: queue}, nil
}

// Enqueue публикует кандидата в очередь.
func (q *AMQPCandidateQueue) Enqueue(ctx context.Context, c domain.Candidate) error {
	payload, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}
	err = q.ch.PublishWithContext(ctx, "", q.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         payload,
	})
	if err != nil {
		return fmt.Errorf("publish candidate: %w", err)
	}
	return nil
}

// Pop блокирующе читает кандидата из очереди.
func (q *AMQPCandidateQueue) Pop(ctx context.Context) (domain.Candidate, error) {
	deliveries, err := q.consumer()
	if err != nil {
		return domain.Candidate{}, err
	}
	select {
	case <-ctx.Done():
		return domain.Candidate{}, ctx.Err()
	case d, ok := <-deliveries:
		if !ok {
			return domain.Candidate{}, errors.New("amqp queue: consumer closed")
		}
		var c domain.Candidate
		if err := json.Unmarshal(d.Body, &c); err != nil {
			_ = d.Nack(false, false)
			return domain.Candidate{}, fmt.Errorf("decode candidate: %w", err)
		}
		if err := d.Ack(false); err != nil {
			return domain.Candidate{}, fmt.Errorf("ack candidate: %w", err)
		}
		return c, nil
	}
}

// Close закрывает канал и соединение.
func (q *AMQPCandidateQueue) Close() error {
	if err := q.ch.Close(); err != nil {
		return err
	}
	return q.conn.Close()
}

func (q *AMQPCandidateQueue) consumer() (<-chan amqp.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.deliveries != nil {
		return q.deliveries, nil
	}
	deliveries, err := q.ch.Consume(q.queue, "", false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	q.deliveries = deliveries
	return deliveries, nil
}
