package queue

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ErrBufferFull is returned when events arrive faster than they drain.
var ErrBufferFull = errors.New("queue: event buffer full")

// ErrPublisherClosed is returned by Publish after Close.
var ErrPublisherClosed = errors.New("queue: publisher closed")

// BufferedPublisher hands events to a background goroutine so callers never
// wait on the broker.  Publish only enqueues; delivery failures are logged.
type BufferedPublisher struct {
	inner   Publisher
	timeout time.Duration
	logger  logrus.FieldLogger

	events    chan AuthEvent
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// NewBufferedPublisher starts the delivery goroutine.  Each event gets
// timeout to reach inner.
func NewBufferedPublisher(inner Publisher, size int, timeout time.Duration, logger logrus.FieldLogger) *BufferedPublisher {
	if size < 1 {
		size = 1
	}
	p := &BufferedPublisher{
		inner:   inner,
		timeout: timeout,
		logger:  logger,
		events:  make(chan AuthEvent, size),
		quit:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Publish enqueues ev without blocking.
func (p *BufferedPublisher) Publish(_ context.Context, ev AuthEvent) error {
	select {
	case <-p.quit:
		return ErrPublisherClosed
	default:
	}
	select {
	case p.events <- ev:
		return nil
	default:
		return ErrBufferFull
	}
}

// Close stops accepting events, delivers what is already queued and waits
// for the goroutine to exit or ctx to end.
func (p *BufferedPublisher) Close(ctx context.Context) error {
	p.closeOnce.Do(func() { close(p.quit) })
	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *BufferedPublisher) run() {
	defer close(p.done)
	for {
		select {
		case ev := <-p.events:
			p.deliver(ev)
		case <-p.quit:
			for {
				select {
				case ev := <-p.events:
					p.deliver(ev)
				default:
					return
				}
			}
		}
	}
}

func (p *BufferedPublisher) deliver(ev AuthEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()
	if err := p.inner.Publish(ctx, ev); err != nil {
		p.logger.WithError(err).WithField("event", ev.Type).Warn("auth event dropped")
	}
}
