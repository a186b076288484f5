package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"
	"github.com/z-wentao/docscribe/pkg/models"
)

// RabbitMQPublisher publishes events as persistent JSON messages on a
// durable queue through the default exchange.
type RabbitMQPublisher struct {
	queueName string
	log       zerolog.Logger

	// amqp channels are not safe for concurrent publishing
	mu      sync.Mutex
	conn    *amqp.Connection
	channel *amqp.Channel
	closed  bool
}

// NewRabbitMQPublisher dials the broker and declares the queue.
func NewRabbitMQPublisher(url, queueName string, log zerolog.Logger) (*RabbitMQPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial rabbitmq: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	// idempotent
	_, err = ch.QueueDeclare(
		queueName,
		true,  // durable
		false, // autoDelete
		false, // exclusive
		false, // noWait
		nil,
	)
	if err != nil {
		ch.Close()
		conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queueName, err)
	}

	p := &RabbitMQPublisher{
		queueName: queueName,
		log:       log.With().Str("component", "events").Str("queue", queueName).Logger(),
		conn:      conn,
		channel:   ch,
	}
	p.log.Info().Msg("rabbitmq publisher ready")
	return p, nil
}

// Fire publishes the event, giving up after five seconds.
func (p *RabbitMQPublisher) Fire(ctx context.Context, name string, dc models.DocumentContext) error {
	msg, err := newPublishing(name, dc, time.Now())
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return fmt.Errorf("publish %s: publisher closed", name)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err = p.channel.PublishWithContext(ctx,
		"",          // default exchange
		p.queueName, // routing key
		false,       // mandatory
		false,       // immediate
		msg,
	)
	if err != nil {
		return fmt.Errorf("publish %s: %w", name, err)
	}
	p.log.Debug().Str("event", name).Str("doc", dc.DocRef).Msg("event published")
	return nil
}

func newPublishing(name string, dc models.DocumentContext, at time.Time) (amqp.Publishing, error) {
	body, err := json.Marshal(Event{Name: name, Document: dc, FiredAt: at})
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("encode event %s: %w", name, err)
	}
	return amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		Type:         name,
		Body:         body,
		Timestamp:    at,
	}, nil
}

func (p *RabbitMQPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if p.channel != nil {
		p.channel.Close()
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
