package worker

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/telemetry"
)

// Probe — проверка доступности одного зависимого сервиса.
type Probe struct {
	// Name — имя сервиса в отчёте (qdrant, model_runner, database).
	Name string

	// Check возвращает nil, если сервис доступен.
	Check func(ctx context.Context) error
}

// HealthCheckHandler обрабатывает tasks типа health_check:
// опрашивает зависимые сервисы и обновляет метрику health.
//
// Payload не требуется. Недоступность любой зависимости — ошибка
// выполнения task (с retry); health gauge обновляется в обе стороны
// до возврата результата.
type HealthCheckHandler struct {
	probes  []Probe
	metrics *telemetry.Metrics
	logger  *slog.Logger
}

// NewHealthCheckHandler создаёт handler проверки здоровья.
func NewHealthCheckHandler(probes []Probe, metrics *telemetry.Metrics, logger *slog.Logger) *HealthCheckHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &HealthCheckHandler{probes: probes, metrics: metrics, logger: logger}
}

// Execute опрашивает все probes и выставляет агрегированный health.
func (h *HealthCheckHandler) Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
	services := map[string]any{}
	var failed []string

	for _, probe := range h.probes {
		if err := probe.Check(ctx); err != nil {
			failed = append(failed, probe.Name)
			services[probe.Name] = err.Error()
			h.logger.Warn("health probe failed",
				"task_id", task.ID,
				"service", probe.Name,
				"error", err,
			)
			continue
		}
		services[probe.Name] = "ok"
	}

	healthy := len(failed) == 0
	h.metrics.SetHealth(healthy)

	if !healthy {
		return &HandlerResult{Outputs: map[string]any{
			"healthy":  false,
			"services": services,
		}}, fmt.Errorf("unhealthy services: %s", strings.Join(failed, ", "))
	}

	h.logger.Debug("health check passed", "task_id", task.ID, "services", len(h.probes))
	return &HandlerResult{Outputs: map[string]any{
		"healthy":  true,
		"services": services,
	}}, nil
}
