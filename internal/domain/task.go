package domain

import (
	"time"

	"github.com/google/uuid"
)

// DefaultMaxAttempts — количество попыток выполнения по умолчанию.
const DefaultMaxAttempts = 3

// Task — единица фоновой работы.
//
// Task создаётся при submit (через HTTP API, MQ или планировщик)
// и выполняется пулом воркеров. После терминального статуса
// (SUCCEEDED/FAILED) task выбрасывается — очередь не персистентна.
type Task struct {
	// ID — уникальный идентификатор task.
	// Задаётся вызывающей стороной или генерируется при создании.
	ID string `json:"id"`

	// Type — тип task, выбирает handler:
	// "vector_index", "model_cache", "data_cleanup", "health_check".
	Type string `json:"type"`

	// Payload — входные данные, интерпретируются только handler'ом.
	Payload map[string]any `json:"payload,omitempty"`

	// Attempt — номер попытки, начиная с 0.
	// Увеличивается при каждом retry.
	Attempt int `json:"attempt"`

	// MaxAttempts — максимальное количество попыток выполнения.
	MaxAttempts int `json:"max_attempts"`

	// Status — текущий статус task.
	Status TaskStatus `json:"status"`

	// Outputs — результаты успешного выполнения.
	Outputs map[string]any `json:"outputs,omitempty"`

	// StartedAt — время начала текущей попытки.
	StartedAt *time.Time `json:"started_at,omitempty"`

	// FinishedAt — время завершения.
	FinishedAt *time.Time `json:"finished_at,omitempty"`

	// Error — текст ошибки при неудаче.
	Error string `json:"error,omitempty"`

	// CreatedAt — время создания task. Неизменяемо после submit.
	CreatedAt time.Time `json:"created_at"`
}

// NewTask создаёт task с заполненными умолчаниями.
// Пустой id заменяется сгенерированным UUID.
func NewTask(id, taskType string, payload map[string]any) *Task {
	if id == "" {
		id = uuid.New().String()
	}
	return &Task{
		ID:          id,
		Type:        taskType,
		Payload:     payload,
		Status:      TaskStatusQueued,
		MaxAttempts: DefaultMaxAttempts,
		CreatedAt:   time.Now(),
	}
}

// Duration возвращает продолжительность последней попытки.
func (t *Task) Duration() time.Duration {
	if t.StartedAt == nil || t.FinishedAt == nil {
		return 0
	}
	return t.FinishedAt.Sub(*t.StartedAt)
}

// IsFinished возвращает true, если task завершён.
func (t *Task) IsFinished() bool {
	return t.Status.IsTerminal()
}

// MarkRunning переводит task в статус RUNNING.
func (t *Task) MarkRunning() {
	now := time.Now()
	t.Status = TaskStatusRunning
	t.StartedAt = &now
}

// MarkSucceeded переводит task в статус SUCCEEDED с результатами.
func (t *Task) MarkSucceeded(outputs map[string]any) {
	now := time.Now()
	t.Status = TaskStatusSucceeded
	t.FinishedAt = &now
	t.Outputs = outputs
}

// MarkFailed переводит task в статус FAILED с ошибкой.
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.FinishedAt = &now
	t.Error = err
}

// ResetForRetry подготавливает task к повторной попытке:
// инкремент Attempt, сброс статуса в QUEUED, очистка ошибки.
func (t *Task) ResetForRetry() {
	t.Attempt++
	t.Status = TaskStatusQueued
	t.StartedAt = nil
	t.FinishedAt = nil
	t.Error = ""
}

// CanRetry проверяет, осталась ли хотя бы одна попытка.
// Попытки нумеруются с 0, всего допускается MaxAttempts выполнений.
func (t *Task) CanRetry() bool {
	return t.Attempt < t.MaxAttempts-1
}
