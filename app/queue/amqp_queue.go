package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
	"go.uber.org/zap"
)

// AMQPQueue keeps send tasks in a durable RabbitMQ queue
type AMQPQueue struct {
	conn     *amqp.Connection
	name     string
	prefetch int
	logger   *zap.Logger

	pubMu sync.Mutex
	pubCh *amqp.Channel
}

// NewAMQPQueue dials url and declares a durable queue called name
func NewAMQPQueue(url, name string, prefetch int, logger *zap.Logger) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}

	if _, err := ch.QueueDeclare(
		name,  // name
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	); err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("failed to declare queue: %w", err)
	}

	return &AMQPQueue{
		conn:     conn,
		name:     name,
		prefetch: prefetch,
		logger:   logger,
		pubCh:    ch,
	}, nil
}

// Enqueue publishes task as a persistent JSON message
func (q *AMQPQueue) Enqueue(ctx context.Context, task SendTask) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	body, err := json.Marshal(task)
	if err != nil {
		return fmt.Errorf("failed to marshal send task: %w", err)
	}

	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	err = q.pubCh.Publish(
		"",     // exchange
		q.name, // routing key
		false,  // mandatory
		false,  // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
	if err != nil {
		return fmt.Errorf("failed to publish send task: %w", err)
	}
	return nil
}

// Deliveries consumes the queue with manual acks on a dedicated channel
func (q *AMQPQueue) Deliveries(ctx context.Context) (<-chan Delivery, error) {
	ch, err := q.conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	if q.prefetch > 0 {
		if err := ch.Qos(q.prefetch, 0, false); err != nil {
			ch.Close()
			return nil, fmt.Errorf("failed to set prefetch: %w", err)
		}
	}

	msgs, err := ch.Consume(
		q.name,
		"",
		false, // autoAck = false, tasks are acked after handling
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		ch.Close()
		return nil, fmt.Errorf("failed to register consumer: %w", err)
	}

	out := make(chan Delivery)
	go func() {
		defer close(out)
		defer ch.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case d, ok := <-msgs:
				if !ok {
					return
				}
				var task SendTask
				if err := json.Unmarshal(d.Body, &task); err != nil {
					q.logger.Warn("dropping malformed send task", zap.Error(err))
					_ = d.Ack(false)
					continue
				}
				delivery := Delivery{
					Task: task,
					ack:  func() error { return d.Ack(false) },
					nack: func(requeue bool) error { return d.Nack(false, requeue) },
				}
				select {
				case out <- delivery:
				case <-ctx.Done():
					_ = d.Nack(false, true)
					return
				}
			}
		}
	}()
	return out, nil
}

func (q *AMQPQueue) Durable() bool {
	return true
}

// Close closes the publishing channel and the connection
func (q *AMQPQueue) Close() error {
	q.pubMu.Lock()
	defer q.pubMu.Unlock()
	_ = q.pubCh.Close()
	return q.conn.Close()
}
