package worker

import "errors"

// Ошибки воркера.
var (
	// ErrUnknownTaskType — для типа task не зарегистрирован handler.
	ErrUnknownTaskType = errors.New("unknown task type")

	// ErrDuplicateTask — task с таким id уже queued или in-flight.
	ErrDuplicateTask = errors.New("duplicate task id")

	// ErrQueueFull — очередь заполнена, submit отклонён.
	ErrQueueFull = errors.New("task queue is full")

	// ErrNotRunning — воркер не в состоянии RUNNING, submit невозможен.
	ErrNotRunning = errors.New("worker is not accepting tasks")

	// ErrAlreadyStarted — повторный Start.
	ErrAlreadyStarted = errors.New("worker already started")

	// ErrNoHandlers — запуск без единого зарегистрированного handler'а.
	ErrNoHandlers = errors.New("no task handlers registered")

	// ErrTaskTimeout — попытка выполнения превысила TASK_TIMEOUT.
	ErrTaskTimeout = errors.New("task execution timeout")

	// ErrExecutionFailed — handler вернул логическую ошибку.
	ErrExecutionFailed = errors.New("task execution failed")

	// ErrRetryExhausted — все попытки исчерпаны.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrShutdown — task отменён из-за завершения процесса.
	ErrShutdown = errors.New("task cancelled by shutdown")
)

// nonRetryableError помечает ошибку, после которой retry бессмысленен.
type nonRetryableError struct {
	err error
}

func (e *nonRetryableError) Error() string { return e.err.Error() }

func (e *nonRetryableError) Unwrap() error { return e.err }

// NonRetryable оборачивает ошибку как не подлежащую retry
// (некорректный payload, неизвестная модель и т.п. —
// класс ошибок, который повтор не исправит).
func NonRetryable(err error) error {
	if err == nil {
		return nil
	}
	return &nonRetryableError{err: err}
}

// IsNonRetryable проверяет, помечена ли ошибка через NonRetryable.
func IsNonRetryable(err error) bool {
	var nre *nonRetryableError
	return errors.As(err, &nre)
}
