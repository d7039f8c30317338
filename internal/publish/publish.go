// Package publish fans step snapshots out to display collaborators over
// AMQP. Every observed step becomes one persistent JSON message on a fanout
// exchange; the publisher waits for the broker's confirm before the next
// step may start.
package publish

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/nikonych/fliessfertigung/internal/engine"
)

// RoutingKey is set on every message. Fanout exchanges ignore it; bindings
// on topic exchanges can use it.
const RoutingKey = "sim.step"

// DefaultConfirmTimeout bounds the wait for a broker confirm.
const DefaultConfirmTimeout = 5 * time.Second

// StepMessage is the message body.
type StepMessage struct {
	RunID    string          `json:"run_id"`
	Step     int             `json:"step"`
	Day      int             `json:"day"`
	Snapshot engine.Snapshot `json:"snapshot"`
	Events   []engine.Event  `json:"events"`
}

// NewStepMessage builds the message for one observed step.
func NewStepMessage(snap engine.Snapshot, rep engine.StepReport) StepMessage {
	events := rep.Events
	if events == nil {
		events = []engine.Event{}
	}
	return StepMessage{
		RunID:    snap.RunID,
		Step:     snap.Step,
		Day:      snap.Day,
		Snapshot: snap,
		Events:   events,
	}
}

// channel is the part of *amqp.Channel the publisher uses.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// Publisher is an engine.Observer publishing step messages.
type Publisher struct {
	conn     *amqp.Connection
	ch       channel
	acks     <-chan amqp.Confirmation
	exchange string
	timeout  time.Duration

	mu sync.Mutex // serialises publish + confirm

	// tag is the delivery tag of the last publishing. The broker numbers
	// publishings on a confirm-mode channel from 1.
	tag uint64
}

// Dial connects to url, declares a durable fanout exchange and enables
// publisher confirms.
func Dial(url, exchange string) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("amqp dial: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("amqp channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchange, "fanout", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}
	if err := ch.Confirm(false); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("enable confirms: %w", err)
	}
	acks := ch.NotifyPublish(make(chan amqp.Confirmation, 16))

	p := newPublisher(ch, acks, exchange)
	p.conn = conn
	return p, nil
}

func newPublisher(ch channel, acks <-chan amqp.Confirmation, exchange string) *Publisher {
	return &Publisher{
		ch:       ch,
		acks:     acks,
		exchange: exchange,
		timeout:  DefaultConfirmTimeout,
	}
}

// Close closes the channel and the connection.
func (p *Publisher) Close() error {
	var errs []error
	if p.ch != nil {
		errs = append(errs, p.ch.Close())
	}
	if p.conn != nil {
		errs = append(errs, p.conn.Close())
	}
	return errors.Join(errs...)
}

// ObserveStep implements engine.Observer.
func (p *Publisher) ObserveStep(ctx context.Context, snap engine.Snapshot, rep engine.StepReport) error {
	body, err := json.Marshal(NewStepMessage(snap, rep))
	if err != nil {
		return fmt.Errorf("encode step message: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	err = p.ch.PublishWithContext(ctx, p.exchange, RoutingKey, false, false, amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    fmt.Sprintf("%s/%d", snap.RunID, snap.Step),
		Headers: amqp.Table{
			"run_id": snap.RunID,
			"day":    int32(snap.Day),
		},
		Body: body,
	})
	if err != nil {
		return fmt.Errorf("publish step %d: %w", snap.Step, err)
	}
	p.tag++

	// Confirms for earlier publishings that timed out may still arrive
	// first; they are dropped.
	for {
		select {
		case conf, ok := <-p.acks:
			if !ok {
				return errors.New("publish: confirm channel closed")
			}
			if conf.DeliveryTag < p.tag {
				continue
			}
			if !conf.Ack {
				return fmt.Errorf("publish step %d: broker nack", snap.Step)
			}
			return nil
		case <-ctx.Done():
			return fmt.Errorf("publish step %d: waiting for confirm: %w", snap.Step, ctx.Err())
		}
	}
}

var _ engine.Observer = (*Publisher)(nil)
