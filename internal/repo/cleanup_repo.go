package repo

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// cleanupTables — фиксированное соответствие категории и таблицы.
// Имя таблицы никогда не берётся из payload: категория — единственный
// вход, и она обязана быть в этом списке.
var cleanupTables = map[string]string{
	"chat_sessions":    "chat_sessions",
	"task_audit":       "task_audit",
	"document_uploads": "document_uploads",
}

// CleanupRepo удаляет устаревшие записи из таблиц с колонкой created_at.
type CleanupRepo struct {
	pool *pgxpool.Pool
}

// NewCleanupRepo создаёт новый CleanupRepo.
func NewCleanupRepo(pool *pgxpool.Pool) *CleanupRepo {
	return &CleanupRepo{pool: pool}
}

// Categories возвращает отсортированный список известных категорий.
func (r *CleanupRepo) Categories() []string {
	categories := make([]string, 0, len(cleanupTables))
	for c := range cleanupTables {
		categories = append(categories, c)
	}
	sort.Strings(categories)
	return categories
}

// CountOlderThan возвращает количество записей категории строго старше cutoff.
func (r *CleanupRepo) CountOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	table, ok := cleanupTables[category]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE created_at < $1`, table)
	if err := r.pool.QueryRow(ctx, query, cutoff).Scan(&count); err != nil {
		return 0, fmt.Errorf("count %s: %w", category, err)
	}
	return count, nil
}

// DeleteOlderThan удаляет записи категории строго старше cutoff
// и возвращает количество удалённых.
func (r *CleanupRepo) DeleteOlderThan(ctx context.Context, category string, cutoff time.Time) (int64, error) {
	table, ok := cleanupTables[category]
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownCategory, category)
	}

	query := fmt.Sprintf(`DELETE FROM %s WHERE created_at < $1`, table)
	result, err := r.pool.Exec(ctx, query, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete from %s: %w", category, err)
	}
	return result.RowsAffected(), nil
}
