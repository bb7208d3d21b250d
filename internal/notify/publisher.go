// Package notify publishes domain events to a RabbitMQ topic exchange so
// downstream consumers (mailers, activity feeds) can react to board changes.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"
)

const exchangeName = "taskboard.events"

// Routing keys for the events this service emits.
const (
	KeyProjectCreated = "project.created"
	KeyProjectUpdated = "project.updated"
	KeyProjectDeleted = "project.deleted"
	KeyTaskCreated    = "task.created"
	KeyTaskUpdated    = "task.updated"
	KeyTaskDeleted    = "task.deleted"
	KeyCommentAdded   = "task.comment.added"
)

// Event is the envelope every message carries.
type Event struct {
	Key        string    `json:"key"`
	ProjectID  string    `json:"projectId,omitempty"`
	TaskID     string    `json:"taskId,omitempty"`
	ActorID    string    `json:"actorId"`
	OccurredAt time.Time `json:"occurredAt"`
}

// Publisher writes events to RabbitMQ. A nil Publisher is safe to call and
// drops everything, so wiring stays optional.
type Publisher struct {
	conn *amqp.Connection
	ch   *amqp.Channel
	log  *zap.Logger
}

func NewPublisher(url string, log *zap.Logger) (*Publisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if err := ch.ExchangeDeclare(exchangeName, "topic", true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare exchange: %w", err)
	}
	return &Publisher{conn: conn, ch: ch, log: log}, nil
}

// Publish sends one event. Failures are logged, not returned: event delivery
// must never fail a request that already committed.
func (p *Publisher) Publish(ctx context.Context, event Event) {
	if p == nil {
		return
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		p.log.Error("encode event", zap.String("key", event.Key), zap.Error(err))
		return
	}
	err = p.ch.PublishWithContext(ctx, exchangeName, event.Key, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    event.OccurredAt,
		Body:         body,
	})
	if err != nil {
		p.log.Error("publish event", zap.String("key", event.Key), zap.Error(err))
	}
}

func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if p.ch != nil {
		_ = p.ch.Close()
	}
	if p.conn != nil {
		_ = p.conn.Close()
	}
}
