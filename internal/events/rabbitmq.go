package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const rabbitConfirmTimeout = 5 * time.Second

var errRabbitNack = errors.New("rabbitmq: publish not acknowledged")

// confirmation is the broker's answer for one published message.
type confirmation interface {
	WaitContext(ctx context.Context) (bool, error)
}

type rabbitPublishFunc func(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error)

// RabbitPublisher publishes events to a durable topic exchange using the
// event type as routing key, waiting for the broker confirm of each message.
type RabbitPublisher struct {
	exchange string
	timeout  time.Duration

	mu      sync.Mutex
	conn    *amqp.Connection
	publish rabbitPublishFunc
}

func NewRabbitPublisher(url, exchange string) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("rabbitmq dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq exchange: %w", err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("rabbitmq confirm mode: %w", err)
	}
	return &RabbitPublisher{
		exchange: exchange,
		timeout:  rabbitConfirmTimeout,
		conn:     conn,
		publish: func(ctx context.Context, exchange, key string, msg amqp.Publishing) (confirmation, error) {
			dc, err := ch.PublishWithDeferredConfirmWithContext(ctx, exchange, key, false, false, msg)
			if err != nil {
				return nil, err
			}
			return dc, nil
		},
	}, nil
}

// Publish sends ev and blocks until the broker acks that message. Each
// message carries its own confirmation, so a timed out wait never consumes
// the confirm of a later publish.
func (r *RabbitPublisher) Publish(ctx context.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	r.mu.Lock()
	if r.publish == nil || (r.conn != nil && r.conn.IsClosed()) {
		r.mu.Unlock()
		return errors.New("rabbitmq: connection is not open")
	}
	dc, err := r.publish(ctx, r.exchange, string(ev.Type), amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Timestamp:    ev.At,
		Body:         body,
	})
	r.mu.Unlock()
	if err != nil {
		return err
	}

	acked, err := dc.WaitContext(ctx)
	if err != nil {
		return fmt.Errorf("rabbitmq confirm %s: %w", ev.Type, err)
	}
	if !acked {
		return errRabbitNack
	}
	return nil
}

func (r *RabbitPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.publish = nil
	if r.conn == nil {
		return nil
	}
	err := r.conn.Close()
	r.conn = nil
	return err
}
