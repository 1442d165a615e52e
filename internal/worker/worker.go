package worker

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/telemetry"
)

// Default configuration values.
const (
	defaultConcurrency = 4
	defaultTaskTimeout = 300 * time.Second
	defaultQueueSize   = 1024
)

// Outcome — терминальный результат task для ожидающего вызывающего.
type Outcome struct {
	// Task — task в терминальном статусе (SUCCEEDED или FAILED).
	Task *domain.Task

	// Err — nil при успехе; при неудаче — ErrRetryExhausted,
	// ErrShutdown или непосредственная причина (non-retryable).
	Err error
}

// CompletionPublisher публикует событие о терминальном завершении task.
// Реализуется mq.Publisher; nil — события не публикуются.
type CompletionPublisher interface {
	PublishTaskCompleted(ctx context.Context, task *domain.Task) error
}

// AuditLog персистирует терминальные результаты tasks.
// Реализуется repo.AuditRepo; nil — audit отключён.
type AuditLog interface {
	Record(ctx context.Context, task *domain.Task) error
}

// entry — task в очереди вместе с каналом ожидающего (если есть).
type entry struct {
	task *domain.Task
	done chan Outcome // nil для fire-and-forget
}

// Worker — движок диспетчеризации tasks.
//
// Worker владеет in-memory очередью и пулом горутин фиксированного
// размера. Конкурентность выполнения ограничена размером пула,
// каждая попытка — дедлайном TASK_TIMEOUT. Состояние жизненного
// цикла: STOPPED → STARTING → RUNNING → DRAINING → STOPPED.
type Worker struct {
	registry *Registry
	metrics  *telemetry.Metrics
	logger   *slog.Logger
	audit    AuditLog
	events   CompletionPublisher

	// Configuration
	concurrency    int
	taskTimeout    time.Duration
	queueSize      int
	baseRetryDelay time.Duration
	maxRetryDelay  time.Duration

	queue   chan *entry
	drainCh chan struct{}

	// tracked — ids от enqueue до терминального статуса.
	// Гарантирует, что tasks с одним id не выполняются конкурентно.
	mu      sync.RWMutex
	state   domain.WorkerState
	tracked map[string]*entry
	active  int

	execCtx    context.Context
	execCancel context.CancelFunc

	wg      sync.WaitGroup // пул воркеров
	retryWG sync.WaitGroup // отложенные retry
}

// Config — конфигурация Worker.
type Config struct {
	// Registry — реестр handlers (обязателен, минимум один handler).
	Registry *Registry

	// Metrics — метрики Prometheus (опционально).
	Metrics *telemetry.Metrics

	// Audit — audit-лог терминальных результатов (опционально).
	Audit AuditLog

	// Events — publisher событий task.completed (опционально).
	Events CompletionPublisher

	// Concurrency — размер пула воркеров (default: 4).
	Concurrency int

	// TaskTimeout — дедлайн одной попытки (default: 300s).
	TaskTimeout time.Duration

	// QueueSize — ёмкость очереди (default: 1024).
	QueueSize int

	// BaseRetryDelay — базовая задержка retry (default: 1s).
	BaseRetryDelay time.Duration

	// MaxRetryDelay — верхняя граница задержки retry (default: 30s).
	MaxRetryDelay time.Duration

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Worker.
func New(cfg Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}

	taskTimeout := cfg.TaskTimeout
	if taskTimeout <= 0 {
		taskTimeout = defaultTaskTimeout
	}

	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}

	baseRetryDelay := cfg.BaseRetryDelay
	if baseRetryDelay <= 0 {
		baseRetryDelay = defaultBaseRetryDelay
	}

	maxRetryDelay := cfg.MaxRetryDelay
	if maxRetryDelay <= 0 {
		maxRetryDelay = defaultMaxRetryDelay
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	registry := cfg.Registry
	if registry == nil {
		registry = NewRegistry()
	}

	return &Worker{
		registry:       registry,
		metrics:        cfg.Metrics,
		logger:         logger,
		audit:          cfg.Audit,
		events:         cfg.Events,
		concurrency:    concurrency,
		taskTimeout:    taskTimeout,
		queueSize:      queueSize,
		baseRetryDelay: baseRetryDelay,
		maxRetryDelay:  maxRetryDelay,
		state:          domain.WorkerStateStopped,
		tracked:        make(map[string]*entry),
	}
}

// Start запускает пул воркеров.
//
// Контексты выполнения tasks не наследуют отмену ctx: сигнал
// завершения процесса должен приводить к Stop(grace), а не к
// мгновенной отмене in-flight tasks.
func (w *Worker) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.state != domain.WorkerStateStopped {
		w.mu.Unlock()
		return ErrAlreadyStarted
	}
	w.state = domain.WorkerStateStarting
	w.mu.Unlock()

	if w.registry.Len() == 0 {
		w.mu.Lock()
		w.state = domain.WorkerStateStopped
		w.mu.Unlock()
		return ErrNoHandlers
	}

	w.execCtx, w.execCancel = context.WithCancel(context.WithoutCancel(ctx))
	w.queue = make(chan *entry, w.queueSize)
	w.drainCh = make(chan struct{})

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.run()
	}

	w.mu.Lock()
	w.state = domain.WorkerStateRunning
	w.mu.Unlock()

	w.logger.Info("worker started",
		"concurrency", w.concurrency,
		"task_timeout", w.taskTimeout,
		"queue_size", w.queueSize,
		"handlers", w.registry.Types(),
	)
	return nil
}

// Submit ставит task в очередь без ожидания результата.
//
// Синхронно отклоняет: неизвестный тип (ErrUnknownTaskType, task
// не попадает в очередь), дубликат id (ErrDuplicateTask),
// заполненную очередь (ErrQueueFull) и воркер не в RUNNING
// (ErrNotRunning). Пустой id заменяется сгенерированным UUID.
func (w *Worker) Submit(task *domain.Task) error {
	return w.submit(task, nil)
}

// SubmitWait ставит task в очередь и возвращает канал, из которого
// придёт терминальный Outcome (после успеха или исчерпания retry).
// Канал буферизован: вызывающий может не читать его без утечки.
func (w *Worker) SubmitWait(task *domain.Task) (<-chan Outcome, error) {
	done := make(chan Outcome, 1)
	if err := w.submit(task, done); err != nil {
		return nil, err
	}
	return done, nil
}

func (w *Worker) submit(task *domain.Task, done chan Outcome) error {
	if task == nil || task.Type == "" {
		return fmt.Errorf("%w: empty task type", ErrUnknownTaskType)
	}
	if !w.registry.Has(task.Type) {
		return fmt.Errorf("%w: %s", ErrUnknownTaskType, task.Type)
	}

	if task.ID == "" {
		task.ID = uuid.New().String()
	}
	if task.CreatedAt.IsZero() {
		task.CreatedAt = time.Now()
	}
	if task.MaxAttempts <= 0 {
		task.MaxAttempts = domain.DefaultMaxAttempts
	}
	task.Status = domain.TaskStatusQueued

	e := &entry{task: task, done: done}

	w.mu.Lock()
	if w.state != domain.WorkerStateRunning {
		state := w.state
		w.mu.Unlock()
		return fmt.Errorf("%w: state %s", ErrNotRunning, state)
	}
	if _, exists := w.tracked[task.ID]; exists {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateTask, task.ID)
	}
	w.tracked[task.ID] = e
	w.mu.Unlock()

	select {
	case w.queue <- e:
	default:
		w.untrack(task.ID)
		return fmt.Errorf("%w: %s", ErrQueueFull, task.ID)
	}

	w.logger.Debug("task enqueued",
		"task_id", task.ID,
		"task_type", task.Type,
	)
	return nil
}

// Stop переводит воркер в DRAINING и дожидается остановки.
//
// Новые submit отклоняются сразу. In-flight tasks дорабатывают
// grace-период; по его истечении их контексты отменяются и tasks
// фиксируются как failed-on-shutdown. Tasks из очереди и
// backoff-таймеров фиксируются как failed-on-shutdown без выполнения.
func (w *Worker) Stop(grace time.Duration) {
	w.mu.Lock()
	if w.state != domain.WorkerStateRunning {
		w.mu.Unlock()
		return
	}
	w.state = domain.WorkerStateDraining
	w.mu.Unlock()

	w.logger.Info("draining worker",
		"grace", grace,
		"active", w.ActiveCount(),
		"queued", len(w.queue),
	)

	close(w.drainCh)

	poolDone := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(poolDone)
	}()

	select {
	case <-poolDone:
	case <-time.After(grace):
		w.logger.Warn("grace period expired, cancelling in-flight tasks")
		w.execCancel()
		<-poolDone
	}

	w.retryWG.Wait()

	// Остаток очереди — failed-on-shutdown.
	for {
		select {
		case e := <-w.queue:
			w.cancelOnShutdown(e)
			continue
		default:
		}
		break
	}

	w.execCancel()

	w.mu.Lock()
	w.state = domain.WorkerStateStopped
	w.mu.Unlock()

	w.logger.Info("worker stopped")
}

// State возвращает текущее состояние жизненного цикла.
func (w *Worker) State() domain.WorkerState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// ActiveCount возвращает количество выполняющихся tasks.
func (w *Worker) ActiveCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.active
}

// QueuedCount возвращает количество tasks, ожидающих в очереди.
func (w *Worker) QueuedCount() int {
	return len(w.queue)
}

// Types возвращает зарегистрированные типы tasks.
func (w *Worker) Types() []string {
	return w.registry.Types()
}

// Healthy возвращает последний результат health_check.
func (w *Worker) Healthy() bool {
	return w.metrics.Healthy()
}

// untrack освобождает id task'а для повторного использования.
func (w *Worker) untrack(id string) {
	w.mu.Lock()
	delete(w.tracked, id)
	w.mu.Unlock()
}
