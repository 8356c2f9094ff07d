// Package service holds the adapters that deliver engine side effects to
// the outside world.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/rs/zerolog"

	"github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/checkin"
	q "github.com/jeffinho-ns/vamos-comemorar-next-sub001/internal/queue"
)

// QueuePublisher publishes check-in activities to q.ActivityQueue. It keeps
// one connection and channel open and redials on the next publish after a
// failure. Messages are persistent.
type QueuePublisher struct {
	url string
	log zerolog.Logger

	mu   sync.Mutex
	conn *amqp.Connection
	ch   *amqp.Channel
}

var _ checkin.Publisher = (*QueuePublisher)(nil)

func NewQueuePublisher(url string, log zerolog.Logger) *QueuePublisher {
	return &QueuePublisher{url: url, log: log.With().Str("component", "publisher").Logger()}
}

// channel returns the open channel, dialing when there is none. Callers
// hold p.mu.
func (p *QueuePublisher) channel() (*amqp.Channel, error) {
	if p.ch != nil && !p.ch.IsClosed() {
		return p.ch, nil
	}
	p.reset()
	conn, err := amqp.Dial(p.url)
	if err != nil {
		return nil, fmt.Errorf("dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("channel open: %w", err)
	}
	// Durable so the activity log survives broker restarts.
	if _, err := ch.QueueDeclare(q.ActivityQueue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("queue declare: %w", err)
	}
	p.conn, p.ch = conn, ch
	return ch, nil
}

func (p *QueuePublisher) reset() {
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
	p.conn, p.ch = nil, nil
}

// Publish sends one activity. Errors are logged and returned; the engine
// treats publishing as best effort.
func (p *QueuePublisher) Publish(ctx context.Context, a checkin.Activity) error {
	body, err := json.Marshal(q.FromActivity(a))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ch, err := p.channel()
	if err != nil {
		p.log.Warn().Err(err).Str("type", a.Type).Msg("publish skipped")
		return err
	}
	err = ch.PublishWithContext(ctx,
		"",              // default exchange
		q.ActivityQueue, // routing key = queue name
		false,           // mandatory
		false,           // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    a.ID,
			Timestamp:    time.Now().UTC(),
			Type:         a.Type,
			Body:         body,
		})
	if err != nil {
		p.log.Warn().Err(err).Str("type", a.Type).Msg("publish failed")
		p.reset()
		return err
	}
	return nil
}

// Close drops the broker connection.
func (p *QueuePublisher) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reset()
}
