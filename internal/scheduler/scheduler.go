package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/worker"
)

// defaultTickInterval — частота проверки due entries.
const defaultTickInterval = time.Second

// Submitter — постановка tasks в движок. Реализуется worker.Worker.
type Submitter interface {
	Submit(task *domain.Task) error
}

// Entry — одна периодическая task.
type Entry struct {
	// Name — имя entry; входит в id создаваемых tasks.
	Name string

	// TaskType — тип создаваемой task.
	TaskType string

	// Payload — payload создаваемой task.
	Payload map[string]any

	// Interval — фиксированный интервал. Используется, если CronExpr пуст.
	Interval time.Duration

	// CronExpr — cron-выражение (5 полей). Имеет приоритет над Interval.
	CronExpr string

	next time.Time
}

// Scheduler периодически ставит служебные tasks.
type Scheduler struct {
	submitter Submitter
	logger    *slog.Logger
	entries   []*Entry
	tick      time.Duration
}

// Config — конфигурация Scheduler.
type Config struct {
	Submitter Submitter
	Entries   []Entry
	Logger    *slog.Logger

	// TickInterval — частота проверки (default: 1s). Подменяется в тестах.
	TickInterval time.Duration
}

// New создаёт новый Scheduler. Ошибка — если у какой-то entry
// невалидное cron-выражение или не задан ни Interval, ни CronExpr.
func New(cfg Config) (*Scheduler, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	tick := cfg.TickInterval
	if tick <= 0 {
		tick = defaultTickInterval
	}

	now := time.Now()
	entries := make([]*Entry, 0, len(cfg.Entries))
	for i := range cfg.Entries {
		e := cfg.Entries[i]
		next, err := nextDue(&e, now)
		if err != nil {
			return nil, fmt.Errorf("entry %s: %w", e.Name, err)
		}
		e.next = next
		entries = append(entries, &e)
	}

	return &Scheduler{
		submitter: cfg.Submitter,
		logger:    logger,
		entries:   entries,
		tick:      tick,
	}, nil
}

// Run выполняет тики до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	s.logger.Info("scheduler started", "entries", len(s.entries))

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case now := <-ticker.C:
			s.Tick(now)
		}
	}
}

// Tick ставит tasks для всех due entries и сдвигает их next.
// Ошибки одной entry не блокируют остальные.
func (s *Scheduler) Tick(now time.Time) {
	for _, e := range s.entries {
		if now.Before(e.next) {
			continue
		}

		task := domain.NewTask(
			fmt.Sprintf("%s-%d", e.Name, e.next.Unix()),
			e.TaskType,
			e.Payload,
		)

		if err := s.submitter.Submit(task); err != nil {
			switch {
			case errors.Is(err, worker.ErrDuplicateTask):
				// Предыдущий запуск ещё не завершился
				s.logger.Debug("scheduled task still in flight, skipping",
					"entry", e.Name,
					"task_id", task.ID,
				)
			default:
				s.logger.Warn("failed to submit scheduled task",
					"entry", e.Name,
					"task_type", e.TaskType,
					"error", err,
				)
			}
		} else {
			s.logger.Info("scheduled task submitted",
				"entry", e.Name,
				"task_id", task.ID,
				"task_type", e.TaskType,
			)
		}

		next, err := nextDue(e, now)
		if err != nil {
			// Валидировано в New; сюда попасть нельзя
			s.logger.Error("failed to calculate next due", "entry", e.Name, "error", err)
			continue
		}
		e.next = next
	}
}
