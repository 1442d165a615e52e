package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/mcp-worker/internal/domain"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeTaskSubmit    MessageType = "task.submit"
	MessageTypeTaskCompleted MessageType = "task.completed"
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

// TaskSubmitPayload — payload сообщения о постановке task.
type TaskSubmitPayload struct {
	TaskID      string         `json:"task_id,omitempty"`
	Type        string         `json:"type"`
	Payload     map[string]any `json:"payload,omitempty"`
	MaxAttempts int            `json:"max_attempts,omitempty"`
}

// TaskCompletedPayload — payload события о терминальном завершении task.
type TaskCompletedPayload struct {
	TaskID   string         `json:"task_id"`
	Type     string         `json:"type"`
	Status   string         `json:"status"` // SUCCEEDED или FAILED
	Attempt  int            `json:"attempt"`
	Outputs  map[string]any `json:"outputs,omitempty"`
	Error    string         `json:"error,omitempty"`
	Duration float64        `json:"duration_seconds"`
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

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
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

// PublishTaskCompleted публикует событие о терминальном завершении task.
func (p *Publisher) PublishTaskCompleted(ctx context.Context, task *domain.Task) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskCompleted,
		Payload:   completedPayload(task),
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeEvents, RoutingKeyCompleted, msg)
}

// PublishTaskSubmit ставит task через MQ. Используется внешними
// producers; сам воркер его не вызывает, но метод полезен в тестах
// и утилитах.
func (p *Publisher) PublishTaskSubmit(ctx context.Context, payload TaskSubmitPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeTaskSubmit,
		Payload:   payload,
		Timestamp: time.Now(),
	}
	return p.Publish(ctx, ExchangeTasks, RoutingKeySubmit, msg)
}

func completedPayload(task *domain.Task) TaskCompletedPayload {
	return TaskCompletedPayload{
		TaskID:   task.ID,
		Type:     task.Type,
		Status:   string(task.Status),
		Attempt:  task.Attempt,
		Outputs:  task.Outputs,
		Error:    task.Error,
		Duration: task.Duration().Seconds(),
	}
}
