package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

// Publisher delivers auth events.  Callers treat failures as non-fatal.
type Publisher interface {
	Publish(ctx context.Context, ev AuthEvent) error
}

const defaultDialTimeout = 2 * time.Second

// NopPublisher drops every event; used when AMQP is disabled.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, AuthEvent) error { return nil }

// AMQPPublisher publishes persistent JSON messages to a durable queue via
// the default exchange.  One connection and channel are reused and
// re-dialed lazily after the broker drops them.
type AMQPPublisher struct {
	url         string
	queue       string
	logger      logrus.FieldLogger
	dialTimeout time.Duration

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

func NewAMQPPublisher(url, queue string, logger logrus.FieldLogger) *AMQPPublisher {
	return &AMQPPublisher{url: url, queue: queue, logger: logger, dialTimeout: defaultDialTimeout}
}

// WithDialTimeout bounds connection setup, TCP and AMQP handshake together.
func (p *AMQPPublisher) WithDialTimeout(d time.Duration) *AMQPPublisher {
	p.dialTimeout = d
	return p
}

// channel returns a live channel, dialing and declaring the queue when the
// previous connection is gone.  Must be called with mu held.
func (p *AMQPPublisher) channel(ctx context.Context) (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() && p.conn != nil && !p.conn.IsClosed() {
		return p.ch, nil
	}
	p.closeLocked()

	conn, err := dial(ctx, p.url, p.dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Ensure the queue exists (idempotent). Durable so messages survive broker restarts.
	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, ev AuthEvent) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel(ctx)
	if err != nil {
		p.logger.WithError(err).WithField("event", ev.Type).Warn("rabbitmq: publish skipped")
		return err
	}
	pub := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent, // store on disk
		Timestamp:    time.Now().UTC(),
		Type:         ev.Type,
		Body:         body,
	}
	if err := ch.PublishWithContext(ctx,
		"",      // default exchange
		p.queue, // routing key = queue name
		false,   // mandatory
		false,   // immediate
		pub,
	); err != nil {
		p.logger.WithError(err).WithField("event", ev.Type).Warn("rabbitmq: publish failed")
		p.closeLocked()
		return err
	}
	return nil
}

// dial connects with a deadline of timeout or ctx's deadline, whichever is
// sooner.  amqp.Dial alone waits up to 30s on a silent broker.
func dial(ctx context.Context, url string, timeout time.Duration) (*amqp.Connection, error) {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left < timeout {
			timeout = left
		}
	}
	if timeout <= 0 {
		return nil, context.DeadlineExceeded
	}
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat: 10 * time.Second,
		Locale:    "en_US",
		Dial:      amqp.DefaultDial(timeout),
	})
}

// Close releases the broker connection.
func (p *AMQPPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *AMQPPublisher) closeLocked() {
	if p.ch != nil {
		_ = p.ch.Close()
		p.ch = nil
	}
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}
