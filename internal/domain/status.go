package domain

// TaskStatus — статус выполнения task.
//
// Жизненный цикл:
//
//	QUEUED → RUNNING → SUCCEEDED
//	                 ↘ FAILED (может быть retry → обратно в QUEUED)
type TaskStatus string

const (
	// TaskStatusQueued — task в очереди, ожидает выполнения.
	TaskStatusQueued TaskStatus = "QUEUED"

	// TaskStatusRunning — task выполняется воркером.
	TaskStatusRunning TaskStatus = "RUNNING"

	// TaskStatusSucceeded — task успешно завершён.
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"

	// TaskStatusFailed — task завершился с ошибкой (после всех retry).
	TaskStatusFailed TaskStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed:
		return true
	default:
		return false
	}
}

// WorkerState — состояние процесса-воркера.
//
// Жизненный цикл:
//
//	STOPPED → STARTING → RUNNING → DRAINING → STOPPED
type WorkerState string

const (
	// WorkerStateStopped — воркер не запущен (начальное и финальное состояние).
	WorkerStateStopped WorkerState = "STOPPED"

	// WorkerStateStarting — воркер инициализируется: регистрация handlers, запуск пула.
	WorkerStateStarting WorkerState = "STARTING"

	// WorkerStateRunning — воркер принимает и выполняет tasks.
	WorkerStateRunning WorkerState = "RUNNING"

	// WorkerStateDraining — воркер завершает работу: новые tasks не принимаются,
	// in-flight tasks дорабатывают в пределах grace-периода.
	WorkerStateDraining WorkerState = "DRAINING"
)
