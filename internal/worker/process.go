package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/mcp-worker/internal/domain"
)

// Значения label status метрики tasks_processed.
const (
	statusSuccess = "success"
	statusFailure = "failure"
)

// finishTimeout — дедлайн на побочную фиксацию терминального
// результата (audit, событие task.completed).
const finishTimeout = 5 * time.Second

// run — цикл одного воркера пула.
func (w *Worker) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.drainCh:
			return
		case e := <-w.queue:
			w.process(e)
		}
	}
}

// process выполняет одну попытку task и обрабатывает результат.
func (w *Worker) process(e *entry) {
	task := e.task
	task.MarkRunning()

	w.mu.Lock()
	w.active++
	w.mu.Unlock()
	w.metrics.TaskStarted()

	start := time.Now()
	result, execErr := w.execute(task)
	duration := time.Since(start)

	w.metrics.TaskFinished()
	w.mu.Lock()
	w.active--
	w.mu.Unlock()
	w.metrics.ObserveDuration(task.Type, duration)

	// Успех: нет ни инфраструктурной, ни логической ошибки.
	if execErr == nil && (result == nil || result.Error == "") {
		var outputs map[string]any
		if result != nil {
			outputs = result.Outputs
		}
		task.MarkSucceeded(outputs)
		w.metrics.TaskProcessed(task.Type, statusSuccess)
		w.logger.Info("task_processed",
			"task_id", task.ID,
			"task_type", task.Type,
			"duration", duration,
			"attempt", task.Attempt,
		)
		w.finish(e, nil)
		return
	}

	errMsg := ""
	if execErr != nil {
		errMsg = execErr.Error()
	} else {
		errMsg = result.Error
	}

	w.metrics.TaskProcessed(task.Type, statusFailure)

	// Отмена на shutdown терминальна: процесс завершается, retry не будет.
	if execErr != nil && errors.Is(execErr, ErrShutdown) {
		w.failTerminal(e, duration, errMsg, execErr)
		return
	}

	retryable := !IsNonRetryable(execErr)
	if retryable && task.CanRetry() && !w.draining() {
		task.ResetForRetry()
		delay := backoffDelay(task.Attempt, w.baseRetryDelay, w.maxRetryDelay)
		w.logger.Warn("task_retrying",
			"task_id", task.ID,
			"task_type", task.Type,
			"duration", duration,
			"attempt", task.Attempt,
			"error", errMsg,
			"delay", delay,
		)
		w.scheduleRetry(e, delay)
		return
	}

	terminalErr := execErr
	if retryable {
		terminalErr = fmt.Errorf("%w: %s", ErrRetryExhausted, errMsg)
	} else if terminalErr == nil {
		terminalErr = fmt.Errorf("%w: %s", ErrExecutionFailed, errMsg)
	}
	w.failTerminal(e, duration, errMsg, terminalErr)
}

// failTerminal фиксирует терминальную неудачу task.
func (w *Worker) failTerminal(e *entry, duration time.Duration, errMsg string, terminalErr error) {
	task := e.task
	task.MarkFailed(errMsg)
	w.metrics.TaskFailed(task.Type)
	w.logger.Error("task_failed",
		"task_id", task.ID,
		"task_type", task.Type,
		"duration", duration,
		"attempt", task.Attempt,
		"error", errMsg,
	)
	w.finish(e, terminalErr)
}

// execute выполняет handler с дедлайном TASK_TIMEOUT.
//
// Handler работает в отдельной горутине: зависший handler не
// занимает слот воркера дольше дедлайна. Сама горутина handler'а
// завершится только кооперативно, когда заметит отмену ctx.
func (w *Worker) execute(task *domain.Task) (*HandlerResult, error) {
	handler, err := w.registry.Get(task.Type)
	if err != nil {
		// Тип валидируется на submit; сюда попадает только программная ошибка.
		return nil, NonRetryable(err)
	}

	ctx, cancel := context.WithTimeout(w.execCtx, w.taskTimeout)
	defer cancel()

	type execResult struct {
		result *HandlerResult
		err    error
	}

	resCh := make(chan execResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				resCh <- execResult{err: fmt.Errorf("handler panic: %v", r)}
			}
		}()
		result, err := handler.Execute(ctx, task)
		resCh <- execResult{result: result, err: err}
	}()

	select {
	case r := <-resCh:
		return r.result, r.err
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s after %s", ErrTaskTimeout, task.ID, w.taskTimeout)
		}
		return nil, fmt.Errorf("%w: %s", ErrShutdown, task.ID)
	}
}

// scheduleRetry ставит task на повторное выполнение после backoff-задержки.
// Слот воркера на время ожидания свободен. Retries одного task строго
// последовательны: id остаётся в tracked до терминального статуса.
func (w *Worker) scheduleRetry(e *entry, delay time.Duration) {
	w.retryWG.Add(1)
	go func() {
		defer w.retryWG.Done()

		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-w.drainCh:
			w.cancelOnShutdown(e)
			return
		}

		select {
		case w.queue <- e:
		case <-w.drainCh:
			w.cancelOnShutdown(e)
		}
	}()
}

// cancelOnShutdown фиксирует невыполненный task как failed-on-shutdown.
func (w *Worker) cancelOnShutdown(e *entry) {
	task := e.task
	task.MarkFailed(ErrShutdown.Error())
	w.metrics.TaskFailed(task.Type)
	w.logger.Warn("task_failed",
		"task_id", task.ID,
		"task_type", task.Type,
		"attempt", task.Attempt,
		"error", ErrShutdown.Error(),
	)
	w.finish(e, fmt.Errorf("%w: %s", ErrShutdown, task.ID))
}

// finish фиксирует терминальный результат: освобождает id,
// пишет audit, публикует событие, отдаёт Outcome ожидающему.
// Ошибки audit и событий не влияют на результат task.
func (w *Worker) finish(e *entry, terminalErr error) {
	task := e.task
	w.untrack(task.ID)

	if w.audit != nil {
		ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		if err := w.audit.Record(ctx, task); err != nil {
			w.logger.Warn("failed to record task audit",
				"task_id", task.ID,
				"error", err,
			)
		}
		cancel()
	}

	if w.events != nil {
		ctx, cancel := context.WithTimeout(context.Background(), finishTimeout)
		if err := w.events.PublishTaskCompleted(ctx, task); err != nil {
			w.logger.Warn("failed to publish task.completed",
				"task_id", task.ID,
				"error", err,
			)
		}
		cancel()
	}

	if e.done != nil {
		e.done <- Outcome{Task: task, Err: terminalErr}
	}
}

// draining проверяет, начался ли drain.
func (w *Worker) draining() bool {
	select {
	case <-w.drainCh:
		return true
	default:
		return false
	}
}
