package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

// dialTimeout bounds the broker handshake when the caller sets no deadline
const dialTimeout = 5 * time.Second

// AMQPPublisher publishes events as persistent JSON messages to a durable topic exchange
type AMQPPublisher struct {
	url      string
	exchange string
	logger   *zap.Logger

	// sem guards conn and ch; acquiring it respects the caller's context
	sem  chan struct{}
	conn *amqp.Connection
	ch   *amqp.Channel
}

func newAMQPPublisher(url, exchange string, logger *zap.Logger) *AMQPPublisher {
	return &AMQPPublisher{
		url:      url,
		exchange: exchange,
		logger:   logger,
		sem:      make(chan struct{}, 1),
	}
}

// NewAMQPPublisher dials the broker and declares the exchange
func NewAMQPPublisher(url, exchange string, logger *zap.Logger) (*AMQPPublisher, error) {
	p := newAMQPPublisher(url, exchange, logger)

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()

	if err := p.lock(ctx); err != nil {
		return nil, err
	}
	defer p.unlock()

	if err := p.connect(ctx); err != nil {
		return nil, err
	}

	return p, nil
}

func (p *AMQPPublisher) lock(ctx context.Context) error {
	select {
	case p.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("failed to acquire broker connection: %w", ctx.Err())
	}
}

func (p *AMQPPublisher) unlock() {
	<-p.sem
}

// connect must be called with the lock held. The handshake is bounded by the
// context deadline, or by dialTimeout when there is none.
func (p *AMQPPublisher) connect(ctx context.Context) error {
	timeout := dialTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = time.Until(deadline)
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}
	if timeout <= 0 {
		return fmt.Errorf("failed to dial broker: %w", context.DeadlineExceeded)
	}

	conn, err := amqp.DialConfig(p.url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
	if err != nil {
		return fmt.Errorf("failed to dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to open channel: %w", err)
	}

	if err := ch.ExchangeDeclare(p.exchange, amqp.ExchangeTopic, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return fmt.Errorf("failed to declare exchange %s: %w", p.exchange, err)
	}

	p.conn = conn
	p.ch = ch
	return nil
}

// Publish sends the event, reconnecting once if the connection was lost.
// Waiting for the connection and reconnecting both stop at the ctx deadline.
func (p *AMQPPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := newMessage(event)
	if err != nil {
		return err
	}

	if err := p.lock(ctx); err != nil {
		return err
	}
	defer p.unlock()

	if p.conn == nil || p.conn.IsClosed() || p.ch == nil || p.ch.IsClosed() {
		p.logger.Warn("AMQP connection lost, reconnecting")
		_ = p.closeLocked()
		if err := p.connect(ctx); err != nil {
			return err
		}
	}

	if err := p.ch.PublishWithContext(ctx, p.exchange, string(event.Type), false, false, msg); err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.Type, err)
	}

	return nil
}

// Close closes the channel and the connection
func (p *AMQPPublisher) Close() error {
	p.sem <- struct{}{}
	defer p.unlock()
	return p.closeLocked()
}

func (p *AMQPPublisher) closeLocked() error {
	var errs []error
	if p.ch != nil && !p.ch.IsClosed() {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil && !p.conn.IsClosed() {
		errs = append(errs, p.conn.Close())
	}
	p.ch, p.conn = nil, nil
	return errors.Join(errs...)
}

func newMessage(event Event) (amqp.Publishing, error) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	body, err := json.Marshal(event)
	if err != nil {
		return amqp.Publishing{}, fmt.Errorf("failed to encode %s event: %w", event.Type, err)
	}

	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    event.ID,
		Timestamp:    event.OccurredAt,
		Type:         string(event.Type),
		Body:         body,
	}, nil
}
