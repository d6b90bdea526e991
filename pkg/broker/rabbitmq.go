package broker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// RabbitMQ publishes events to a durable topic exchange. The connection is
// re-dialed lazily after a failure.
type RabbitMQ struct {
	url      string
	exchange string
	logger   *zap.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

// NewRabbitMQ dials the broker and declares the exchange.
func NewRabbitMQ(url, exchange string, logger *zap.Logger) (*RabbitMQ, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &RabbitMQ{url: url, exchange: exchange, logger: logger}
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.connect(); err != nil {
		return nil, err
	}
	logger.Info("RabbitMQ connected", zap.String("exchange", exchange))
	return r, nil
}

func (r *RabbitMQ) connect() error {
	conn, err := amqp.Dial(r.url)
	if err != nil {
		return fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(r.exchange, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("rabbitmq exchange declare: %w", err)
	}
	r.conn, r.ch = conn, ch
	return nil
}

// Publish sends data wrapped in an Event as a persistent message.
func (r *RabbitMQ) Publish(ctx context.Context, routingKey string, data interface{}) error {
	body, err := newEvent(routingKey, data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ch == nil || r.ch.IsClosed() {
		if err := r.connect(); err != nil {
			return err
		}
	}
	err = r.ch.PublishWithContext(ctx, r.exchange, routingKey, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	})
	if err != nil {
		r.logger.Warn("rabbitmq publish failed", zap.String("routing_key", routingKey), zap.Error(err))
		_ = r.ch.Close()
		r.ch = nil
		return fmt.Errorf("rabbitmq publish: %w", err)
	}
	return nil
}

// Close closes the channel and connection.
func (r *RabbitMQ) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	if r.ch != nil {
		errs = append(errs, r.ch.Close())
	}
	if r.conn != nil {
		errs = append(errs, r.conn.Close())
	}
	r.ch, r.conn = nil, nil
	return errors.Join(errs...)
}

// Handler processes one delivery. Returning an error rejects the message without requeue.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// Consume binds queue to the exchange with bindingKey and feeds deliveries to h until ctx is done.
// Lost connections are re-dialed with exponential backoff capped at 30s.
func Consume(ctx context.Context, url, exchange, queue, bindingKey string, h Handler, logger *zap.Logger) {
	backoff := time.Second
	for ctx.Err() == nil {
		err := consumeOnce(ctx, url, exchange, queue, bindingKey, h, logger)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("broker consumer stopped; reconnecting", zap.Error(err), zap.Duration("backoff", backoff))
		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}

func consumeOnce(ctx context.Context, url, exchange, queue, bindingKey string, h Handler, logger *zap.Logger) error {
	conn, err := amqp.Dial(url)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("channel open: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if err := ch.Qos(50, 0, false); err != nil {
		logger.Warn("broker consumer: set QoS failed", zap.Error(err))
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		return fmt.Errorf("exchange declare: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		return fmt.Errorf("queue declare: %w", err)
	}
	if err := ch.QueueBind(queue, bindingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("queue bind: %w", err)
	}
	msgs, err := ch.Consume(queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("queue consume: %w", err)
	}
	logger.Info("broker consumer started", zap.String("queue", queue), zap.String("binding", bindingKey))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case d, ok := <-msgs:
			if !ok {
				return errors.New("delivery channel closed")
			}
			if err := h(ctx, d.RoutingKey, d.Body); err != nil {
				logger.Warn("broker message rejected", zap.String("routing_key", d.RoutingKey), zap.Error(err))
				_ = d.Nack(false, false)
				continue
			}
			_ = d.Ack(false)
		}
	}
}
