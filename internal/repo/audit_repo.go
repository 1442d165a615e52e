package repo

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/mcp-worker/internal/domain"
)

// AuditRepo пишет терминальные результаты tasks в таблицу task_audit.
type AuditRepo struct {
	pool *pgxpool.Pool
}

// NewAuditRepo создаёт новый AuditRepo.
func NewAuditRepo(pool *pgxpool.Pool) *AuditRepo {
	return &AuditRepo{pool: pool}
}

// Record сохраняет терминальный результат task.
// Повторная запись того же id перезаписывает предыдущий результат:
// id может быть переиспользован после терминального статуса.
func (r *AuditRepo) Record(ctx context.Context, task *domain.Task) error {
	payloadJSON, err := json.Marshal(task.Payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	outputsJSON, err := json.Marshal(task.Outputs)
	if err != nil {
		return fmt.Errorf("marshal outputs: %w", err)
	}

	query := `
		INSERT INTO task_audit (task_id, type, status, attempt, payload, outputs, error,
		                        started_at, finished_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NOW())
		ON CONFLICT (task_id) DO UPDATE
		SET status = EXCLUDED.status, attempt = EXCLUDED.attempt,
		    outputs = EXCLUDED.outputs, error = EXCLUDED.error,
		    started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at
	`
	_, err = r.pool.Exec(ctx, query,
		task.ID,
		task.Type,
		task.Status,
		task.Attempt,
		payloadJSON,
		outputsJSON,
		nullString(task.Error),
		task.StartedAt,
		task.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("insert task audit: %w", err)
	}
	return nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
