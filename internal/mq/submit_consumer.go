package mq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/worker"
)

// Submitter — постановка tasks в движок. Реализуется worker.Worker.
type Submitter interface {
	Submit(task *domain.Task) error
}

// NewSubmitConsumer создаёт consumer очереди tasks.submit,
// транслирующий сообщения task.submit в постановку tasks.
//
// Невалидные submissions (неизвестный тип, дубликат id, не тот
// тип сообщения) уходят в DLQ; временные отказы (очередь заполнена,
// воркер в drain) возвращаются в очередь для повторной доставки.
func NewSubmitConsumer(conn *Connection, submitter Submitter, logger *slog.Logger) *Consumer {
	return NewConsumer(conn, logger, ConsumerConfig{
		Queue:   string(QueueTasksSubmit),
		Handler: submitHandler(submitter, logger),
	})
}

func submitHandler(submitter Submitter, logger *slog.Logger) Handler {
	return func(ctx context.Context, msg *Message) error {
		if msg.Type != MessageTypeTaskSubmit {
			return fmt.Errorf("%w: unexpected message type %s", ErrRejectMessage, msg.Type)
		}

		payload, err := ParsePayload[TaskSubmitPayload](msg)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrRejectMessage, err)
		}

		task := domain.NewTask(payload.TaskID, payload.Type, payload.Payload)
		if payload.MaxAttempts > 0 {
			task.MaxAttempts = payload.MaxAttempts
		}

		if err := submitter.Submit(task); err != nil {
			switch {
			case errors.Is(err, worker.ErrUnknownTaskType),
				errors.Is(err, worker.ErrDuplicateTask):
				return fmt.Errorf("%w: %v", ErrRejectMessage, err)
			default:
				// ErrQueueFull / ErrNotRunning — временные, requeue
				return err
			}
		}

		logger.Info("task submitted from queue",
			"task_id", task.ID,
			"task_type", task.Type,
			"message_id", msg.ID,
		)
		return nil
	}
}
