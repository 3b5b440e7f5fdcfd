package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/yingtu35/linkcrawler/internal/progress"
)

const defaultWriteTimeout = 2 * time.Second

// MessageWriter is the part of kafka.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// EventPublisher publishes progress events to a Kafka topic, keyed by
// session so one crawl's events stay ordered within a partition. Delivery
// is best-effort: write failures are logged and counted, never returned
// to the crawl.
type EventPublisher struct {
	writer  MessageWriter
	timeout time.Duration
	log     *logrus.Entry

	mu     sync.Mutex
	failed int
	closed bool
}

// NewEventPublisher creates an asynchronous publisher for the given broker
// and topic.
func NewEventPublisher(broker, topic string) *EventPublisher {
	return NewEventPublisherWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(broker),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		Async:                  true,
		AllowAutoTopicCreation: false,
	})
}

// NewEventPublisherWithWriter builds a publisher using a custom writer (tests).
func NewEventPublisherWithWriter(writer MessageWriter) *EventPublisher {
	return &EventPublisher{
		writer:  writer,
		timeout: defaultWriteTimeout,
		log:     logrus.WithField("component", "kafka"),
	}
}

// Notify implements progress.Observer.
func (p *EventPublisher) Notify(e progress.Event) {
	if err := p.Publish(context.Background(), e); err != nil {
		p.mu.Lock()
		p.failed++
		p.mu.Unlock()
		p.log.Warnf("Failed to publish %s event: %v", e.Type, err)
	}
}

// Publish writes one event.
func (p *EventPublisher) Publish(ctx context.Context, e progress.Event) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errPublisherClosed
	}

	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(e.SessionID),
		Value: payload,
		Time:  e.Time.UTC(),
	}
	return p.writer.WriteMessages(ctx, msg)
}

// Failed returns how many events could not be published.
func (p *EventPublisher) Failed() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failed
}

// Close flushes and shuts down the underlying writer.
func (p *EventPublisher) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()
	return p.writer.Close()
}
