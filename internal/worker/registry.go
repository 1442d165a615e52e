package worker

import (
	"context"
	"fmt"
	"sort"

	"github.com/shaiso/mcp-worker/internal/domain"
)

// Типы встроенных tasks.
const (
	TaskTypeVectorIndex = "vector_index"
	TaskTypeModelCache  = "model_cache"
	TaskTypeDataCleanup = "data_cleanup"
	TaskTypeHealthCheck = "health_check"
)

// HandlerResult — результат выполнения task.
type HandlerResult struct {
	// Outputs — выходные данные выполнения.
	Outputs map[string]any

	// Error — сообщение об ошибке (логическая ошибка выполнения).
	// Инфраструктурные ошибки возвращаются через error в Execute().
	Error string
}

// Handler — интерфейс обработчика одного типа task.
//
// task.Payload содержит входные данные, интерпретируемые только handler'ом.
// ctx несёт дедлайн TASK_TIMEOUT; handler обязан уважать отмену —
// бросать in-flight I/O при ctx.Done(). Принудительно прервать
// handler движок не может, контракт кооперативный.
type Handler interface {
	Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error)
}

// HandlerFunc — адаптер функции к интерфейсу Handler.
type HandlerFunc func(ctx context.Context, task *domain.Task) (*HandlerResult, error)

// Execute вызывает f.
func (f HandlerFunc) Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error) {
	return f(ctx, task)
}

// Registry — реестр handlers по типу task.
//
// Заполняется один раз при старте процесса и после запуска воркера
// не мутируется — конкурентные Register не поддерживаются.
type Registry struct {
	handlers map[string]Handler
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string]Handler)}
}

// Register добавляет handler для типа task.
func (r *Registry) Register(taskType string, handler Handler) {
	r.handlers[taskType] = handler
}

// Get возвращает handler для типа task.
func (r *Registry) Get(taskType string) (Handler, error) {
	handler, ok := r.handlers[taskType]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTaskType, taskType)
	}
	return handler, nil
}

// Has проверяет, зарегистрирован ли handler для типа task.
func (r *Registry) Has(taskType string) bool {
	_, ok := r.handlers[taskType]
	return ok
}

// Types возвращает отсортированный список зарегистрированных типов.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Len возвращает количество зарегистрированных handlers.
func (r *Registry) Len() int {
	return len(r.handlers)
}
