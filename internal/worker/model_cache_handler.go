package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/modelrunner"
)

// Операции model_cache.
const (
	OpPreload = "preload"
	OpEvict   = "evict"
)

// ModelCache — операции кэша моделей model runner'а.
// Реализуется modelrunner.Client.
type ModelCache interface {
	HasModel(ctx context.Context, model string) (bool, error)
	Preload(ctx context.Context, model string) error
	Evict(ctx context.Context, model string) error
}

// ModelCacheHandler обрабатывает tasks типа model_cache:
// прогрев и выселение моделей в model runner.
//
// Payload:
//
//	model_id  — идентификатор модели (обязательно; "model" как синоним)
//	operation — "preload" | "evict" (default: preload)
//	priority  — метка приоритета, прозрачно переносится в результат
type ModelCacheHandler struct {
	cache  ModelCache
	logger *slog.Logger
}

// NewModelCacheHandler создаёт handler кэша моделей.
func NewModelCacheHandler(cache ModelCache, logger *slog.Logger) *ModelCacheHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelCacheHandler{cache: cache, logger: logger}
}

// Execute выполняет операцию над кэшем моделей.
func (h *ModelCacheHandler) Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
	model, ok := payloadString(task.Payload, "model_id")
	if !ok || model == "" {
		var err error
		model, err = payloadStringRequired(task.Payload, "model")
		if err != nil {
			return nil, NonRetryable(fmt.Errorf("payload field %q is required", "model_id"))
		}
	}

	operation, ok := payloadString(task.Payload, "operation")
	if !ok || operation == "" {
		operation = OpPreload
	}

	known, err := h.cache.HasModel(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("failed to check model %s: %w", model, err)
	}
	if !known {
		// Неизвестная модель не появится от повторов.
		return nil, NonRetryable(fmt.Errorf("%w: %s", modelrunner.ErrModelNotFound, model))
	}

	switch operation {
	case OpPreload:
		err = h.cache.Preload(ctx, model)
	case OpEvict:
		err = h.cache.Evict(ctx, model)
	default:
		return nil, NonRetryable(fmt.Errorf("unknown model_cache operation: %s", operation))
	}
	if err != nil {
		if errors.Is(err, modelrunner.ErrModelNotFound) {
			return nil, NonRetryable(err)
		}
		return nil, fmt.Errorf("model_cache %s failed for %s: %w", operation, model, err)
	}

	h.logger.Info("model cache updated",
		"task_id", task.ID,
		"model", model,
		"operation", operation,
	)

	outputs := map[string]any{
		"model":     model,
		"operation": operation,
	}
	if priority, ok := payloadString(task.Payload, "priority"); ok && priority != "" {
		outputs["priority"] = priority
	}
	return &HandlerResult{Outputs: outputs}, nil
}
