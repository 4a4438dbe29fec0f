package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypePipelineExecute   MessageType = "pipeline.execute"
	MessageTypePipelineCreated   MessageType = "pipeline.created"
	MessageTypePipelineCompleted MessageType = "pipeline.completed"
	MessageTypeStepCompleted     MessageType = "step.completed"
)

// Message — конверт сообщения.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// ExecutePayload — запрос на выполнение pipeline.
type ExecutePayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
}

// PipelineCreatedPayload — событие о созданном pipeline.
type PipelineCreatedPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	Name       string    `json:"name"`
	Steps      int       `json:"steps"`
}

// PipelineCompletedPayload — событие о завершённом pipeline.
type PipelineCompletedPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	Name       string    `json:"name"`
	Status     string    `json:"status"` // COMPLETED, FAILED или CANCELLED
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"duration_ms"`
}

// StepCompletedPayload — событие о завершённом шаге.
type StepCompletedPayload struct {
	PipelineID uuid.UUID `json:"pipeline_id"`
	StepID     string    `json:"step_id"`
	Success    bool      `json:"success"`
	Error      string    `json:"error,omitempty"`
}

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishExecute ставит pipeline в очередь на выполнение.
// Потребитель: sentra-server.
func (p *Publisher) PublishExecute(ctx context.Context, pipelineID uuid.UUID) error {
	return p.publish(ctx, ExchangePipelines, RoutingKeyExecute,
		MessageTypePipelineExecute, ExecutePayload{PipelineID: pipelineID})
}

// PublishPipelineCreated публикует событие о созданном pipeline.
func (p *Publisher) PublishPipelineCreated(ctx context.Context, payload PipelineCreatedPayload) error {
	return p.publish(ctx, ExchangeEvents, RoutingKeyLifecycle,
		MessageTypePipelineCreated, payload)
}

// PublishPipelineCompleted публикует событие о завершённом pipeline.
func (p *Publisher) PublishPipelineCompleted(ctx context.Context, payload PipelineCompletedPayload) error {
	return p.publish(ctx, ExchangeEvents, RoutingKeyLifecycle,
		MessageTypePipelineCompleted, payload)
}

// PublishStepCompleted публикует событие о завершённом шаге.
func (p *Publisher) PublishStepCompleted(ctx context.Context, payload StepCompletedPayload) error {
	return p.publish(ctx, ExchangeEvents, RoutingKeyLifecycle,
		MessageTypeStepCompleted, payload)
}

// publish оборачивает payload в конверт и публикует.
func (p *Publisher) publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, exchange, routingKey, msg)
}
