// Package events publishes what the engine and the workflow router did, for
// consumers outside this process (notification delivery, audit, analytics).
package events

import (
	"encoding/json"
	"sync"
	"time"

	"autoflow/app/config"
	"autoflow/pkg/amqpx"
	"autoflow/pkg/contextx"
	"autoflow/pkg/log"

	"github.com/google/uuid"
)

const (
	TopicRunCompleted          = "automation.run.completed"
	TopicActionDispatched      = "workflow.action.dispatched"
	TopicNotificationRequested = "notification.requested"
)

type Event struct {
	ID         string                 `json:"id"`
	Topic      string                 `json:"topic"`
	TenantID   string                 `json:"tenantId,omitempty"`
	RequestID  string                 `json:"requestId,omitempty"`
	OccurredAt time.Time              `json:"occurredAt"`
	Payload    map[string]interface{} `json:"payload"`
}

func NewEvent(ctx *contextx.Context, topic, tenantID string, payload map[string]interface{}) Event {
	ev := Event{
		ID:         uuid.NewString(),
		Topic:      topic,
		TenantID:   tenantID,
		OccurredAt: time.Now().UTC(),
		Payload:    payload,
	}
	if ctx != nil {
		ev.RequestID = ctx.GetRequestID()
	}
	return ev
}

type Publisher interface {
	Publish(ctx *contextx.Context, ev Event) error
}

// NewPublisher returns an AMQP publisher when messaging is enabled and a
// no-op otherwise.
func NewPublisher(cfg config.MessagingConfig) Publisher {
	if !cfg.Enabled {
		return NopPublisher{}
	}
	return NewAMQPPublisher(amqpx.Config{
		URL:      cfg.URL,
		Exchange: cfg.Exchange,
		Retry:    cfg.Retry,
	})
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx *contextx.Context, ev Event) error {
	log.Debugf(ctx, "event %s %s dropped, messaging disabled", ev.Topic, ev.ID)
	return nil
}

type AMQPPublisher struct {
	publisher *amqpx.Publisher
}

func NewAMQPPublisher(cfg amqpx.Config) *AMQPPublisher {
	return &AMQPPublisher{publisher: amqpx.NewPublisher(cfg)}
}

// Publish routes the event by its topic.
func (p *AMQPPublisher) Publish(ctx *contextx.Context, ev Event) error {
	body, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := p.publisher.Publish(ev.Topic, ev.ID, body); err != nil {
		log.Warnf(ctx, "publish event %s failed, error: %s", ev.Topic, err.Error())
		return err
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.publisher.Close()
}

// MemoryPublisher keeps events in memory, in publish order.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

func (m *MemoryPublisher) Publish(ctx *contextx.Context, ev Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *MemoryPublisher) Events(topic string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Event
	for _, ev := range m.events {
		if topic == "" || ev.Topic == topic {
			out = append(out, ev)
		}
	}
	return out
}
