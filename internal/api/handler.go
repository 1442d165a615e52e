package api

import (
	"log/slog"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/worker"
)

// Engine — операции воркера, нужные API. Реализуется worker.Worker.
type Engine interface {
	Submit(task *domain.Task) error
	SubmitWait(task *domain.Task) (<-chan worker.Outcome, error)
	State() domain.WorkerState
	ActiveCount() int
	QueuedCount() int
	Healthy() bool
	Types() []string
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	engine Engine
	logger *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Engine Engine
	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		engine: cfg.Engine,
		logger: logger,
	}
}
