package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/repo"
)

// defaultRetention — возраст записей по умолчанию, после которого
// они подлежат удалению.
const defaultRetention = 30 * 24 * time.Hour

// minRetention — защита от случайного вычищения свежих данных
// опечаткой в payload.
const minRetention = time.Hour

// CleanupStore — удаление устаревших записей по категориям.
// Реализуется repo.CleanupRepo.
type CleanupStore interface {
	Categories() []string
	CountOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error)
	DeleteOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error)
}

// DataCleanupHandler обрабатывает tasks типа data_cleanup:
// удаляет записи старше retention-порога из известных категорий.
//
// Payload:
//
//	category   — одна категория (опционально; default: все известные)
//	older_than — порог возраста, секунды или duration-строка
//	             (default: 720h; "retention" как синоним)
//	dry_run    — только посчитать, не удалять (default: false)
type DataCleanupHandler struct {
	store  CleanupStore
	logger *slog.Logger

	// now подменяется в тестах.
	now func() time.Time
}

// NewDataCleanupHandler создаёт handler очистки данных.
func NewDataCleanupHandler(store CleanupStore, logger *slog.Logger) *DataCleanupHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DataCleanupHandler{store: store, logger: logger, now: time.Now}
}

// Execute выполняет очистку устаревших записей.
func (h *DataCleanupHandler) Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
	retention, err := payloadDuration(task.Payload, "older_than", 0)
	if err != nil {
		return nil, err
	}
	if retention <= 0 {
		retention, err = payloadDuration(task.Payload, "retention", defaultRetention)
		if err != nil {
			return nil, err
		}
	}
	if retention < minRetention {
		return nil, NonRetryable(fmt.Errorf("age threshold %s is below minimum %s", retention, minRetention))
	}

	dryRun, _ := task.Payload["dry_run"].(bool)

	categories := h.store.Categories()
	if category, ok := payloadString(task.Payload, "category"); ok && category != "" {
		categories = []string{category}
	}

	cutoff := h.now().Add(-retention)
	removed := map[string]any{}
	var total int64

	for _, category := range categories {
		var n int64
		var err error
		if dryRun {
			n, err = h.store.CountOlderThan(ctx, category, cutoff)
		} else {
			n, err = h.store.DeleteOlderThan(ctx, category, cutoff)
		}
		if err != nil {
			if errors.Is(err, repo.ErrUnknownCategory) {
				return nil, NonRetryable(err)
			}
			return nil, fmt.Errorf("cleanup of %s failed: %w", category, err)
		}
		removed[category] = n
		total += n
	}

	h.logger.Info("data cleanup finished",
		"task_id", task.ID,
		"cutoff", cutoff,
		"dry_run", dryRun,
		"removed", total,
	)

	return &HandlerResult{Outputs: map[string]any{
		"cutoff":  cutoff.Format(time.RFC3339),
		"dry_run": dryRun,
		"removed": removed,
		"total":   total,
	}}, nil
}
