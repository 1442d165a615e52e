package api

import (
	"time"

	"github.com/shaiso/mcp-worker/internal/domain"
)

// SubmitTaskRequest — запрос на постановку task.
type SubmitTaskRequest struct {
	// ID — идентификатор task (опционально; генерируется, если пуст).
	ID string `json:"id,omitempty"`

	// Type — тип task (обязательно).
	Type string `json:"type"`

	// Payload — входные данные task.
	Payload map[string]any `json:"payload,omitempty"`

	// MaxAttempts — лимит выполнений с учётом retry (опционально).
	MaxAttempts int `json:"max_attempts,omitempty"`
}

// TaskAcceptedResponse — ответ на постановку без ожидания.
type TaskAcceptedResponse struct {
	TaskID string `json:"task_id"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

// TaskResultResponse — терминальный результат task (?wait=true).
type TaskResultResponse struct {
	TaskID     string         `json:"task_id"`
	Type       string         `json:"type"`
	Status     string         `json:"status"`
	Attempt    int            `json:"attempt"`
	Outputs    map[string]any `json:"outputs,omitempty"`
	Error      string         `json:"error,omitempty"`
	StartedAt  *time.Time     `json:"started_at,omitempty"`
	FinishedAt *time.Time     `json:"finished_at,omitempty"`
}

// StatusResponse — состояние воркера.
type StatusResponse struct {
	State       string   `json:"state"`
	Healthy     bool     `json:"healthy"`
	ActiveTasks int      `json:"active_tasks"`
	QueuedTasks int      `json:"queued_tasks"`
	TaskTypes   []string `json:"task_types"`
}

func taskResult(task *domain.Task) TaskResultResponse {
	return TaskResultResponse{
		TaskID:     task.ID,
		Type:       task.Type,
		Status:     string(task.Status),
		Attempt:    task.Attempt,
		Outputs:    task.Outputs,
		Error:      task.Error,
		StartedAt:  task.StartedAt,
		FinishedAt: task.FinishedAt,
	}
}
