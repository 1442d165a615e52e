// Package worker выполняет фоновые tasks GenAI-стека.
//
// # Обзор
//
// Worker — движок диспетчеризации tasks, который:
//
//   - Принимает tasks через Submit (fire-and-forget) и SubmitWait (с ожиданием результата)
//   - Выполняет их пулом фиксированного размера (WORKER_CONCURRENCY)
//   - Ограничивает каждую попытку дедлайном TASK_TIMEOUT
//   - Реализует retry с exponential backoff и jitter
//   - Эмитит метрики Prometheus на каждую попытку
//   - Дорабатывает in-flight tasks при graceful shutdown (grace-период)
//
// Очередь in-memory и не персистентна: терминальные результаты
// фиксируются в метриках, логах и (опционально) audit-логе в БД,
// но не переигрываются после рестарта процесса.
//
// # Ключевые компоненты
//
// ## Worker
//
// Основная структура, владеющая очередью, пулом и жизненным циклом.
// Создаётся через New(cfg Config), запускается Start(ctx),
// останавливается Stop(grace).
//
//	w := worker.New(worker.Config{
//	    Registry: registry,
//	    Metrics:  metrics,
//	    Logger:   logger,
//	})
//
//	if err := w.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer w.Stop(10 * time.Second)
//
// ## Handler
//
// Интерфейс обработчика одного типа task:
//
//	type Handler interface {
//	    Execute(ctx context.Context, task *domain.Task) (*HandlerResult, error)
//	}
//
// Встроенные handlers:
//   - VectorIndexHandler — upsert документов в векторное хранилище (идемпотентно)
//   - ModelCacheHandler — preload/evict моделей через model runner
//   - DataCleanupHandler — удаление записей старше порога
//   - HealthCheckHandler — probes внешних сервисов, питает health gauge
//
// ## Registry
//
// Реестр handlers по типу task. Заполняется один раз при старте
// процесса и после этого не мутируется — submit неизвестного типа
// отклоняется синхронно с ErrUnknownTaskType, task не попадает в очередь.
//
// # Обработка task
//
//  1. Submit: валидация типа, проверка дубликата id, постановка в очередь
//  2. Свободный воркер пула забирает task, переводит в RUNNING
//  3. Handler выполняется в отдельной горутине с дедлайном TASK_TIMEOUT
//  4. Успех → SUCCEEDED, метрика success, терминальная фиксация
//  5. Ошибка/таймаут → метрика failure; если попытки остались —
//     re-enqueue с backoff-задержкой (слот воркера освобождается),
//     иначе FAILED и инкремент терминального счётчика
//
// # Семантика дубликатов
//
// Tasks с одинаковым id никогда не выполняются конкурентно:
// submit id, который уже queued или in-flight, отклоняется
// с ErrDuplicateTask. После терминального статуса id освобождается.
//
// # Ошибки
//
// Пакет различает два уровня ошибок handler'а:
//   - Инфраструктурные (error от Execute) — сеть, таймаут; retriable
//   - Логические (HandlerResult.Error) — неуспех предметной операции; retriable
//
// Ошибка, обёрнутая NonRetryable (некорректный payload, неизвестная
// модель), терминальна сразу, без retry.
//
// # Shutdown
//
// Stop(grace) переводит воркер в DRAINING: новые submit отклоняются,
// in-flight tasks дорабатывают grace-период, затем их контексты
// отменяются, а сами tasks фиксируются как failed-on-shutdown.
// Tasks, ожидавшие в очереди или backoff-таймере, тоже фиксируются
// как failed-on-shutdown — процесс завершается, retry не будет.
package worker
