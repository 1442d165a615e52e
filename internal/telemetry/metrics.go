package telemetry

import (
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// durationBuckets — границы гистограммы длительности tasks.
// Handlers варьируются от мгновенных health_check до долгой индексации.
var durationBuckets = []float64{
	0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300,
}

// Metrics — набор метрик воркера.
//
// Все методы безопасны для конкурентного вызова и никогда не паникуют
// в путь выполнения task: ошибка эмиссии метрик не должна ронять task.
// Методы nil-безопасны — воркер можно собрать без метрик в тестах.
type Metrics struct {
	tasksProcessed *prometheus.CounterVec
	tasksFailed    *prometheus.CounterVec
	taskDuration   *prometheus.HistogramVec
	activeTasks    prometheus.Gauge
	health         prometheus.Gauge

	// healthy дублирует gauge для чтения из кода (gauge read-only снаружи).
	healthy atomic.Bool
}

// NewMetrics создаёт и регистрирует метрики воркера.
// reg == nil — метрики создаются, но нигде не регистрируются
// (удобно в тестах, где scrape не нужен).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		tasksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_worker_tasks_processed_total",
			Help: "Total task execution attempts by type and outcome.",
		}, []string{"task_type", "status"}),

		tasksFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcp_worker_tasks_failed_total",
			Help: "Tasks that terminally failed after exhausting retries.",
		}, []string{"task_type"}),

		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mcp_worker_task_duration_seconds",
			Help:    "Task execution duration per attempt.",
			Buckets: durationBuckets,
		}, []string{"task_type"}),

		activeTasks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_worker_active_tasks",
			Help: "Number of tasks currently executing.",
		}),

		health: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mcp_worker_health",
			Help: "Worker health status (1=healthy, 0=unhealthy).",
		}),
	}

	// Стартуем оптимистично: health_check при запуске уточнит.
	m.health.Set(1)
	m.healthy.Store(true)

	if reg != nil {
		reg.MustRegister(
			m.tasksProcessed,
			m.tasksFailed,
			m.taskDuration,
			m.activeTasks,
			m.health,
		)
	}

	return m
}

// TaskStarted увеличивает gauge активных tasks.
func (m *Metrics) TaskStarted() {
	if m == nil {
		return
	}
	m.activeTasks.Inc()
}

// TaskFinished уменьшает gauge активных tasks.
func (m *Metrics) TaskFinished() {
	if m == nil {
		return
	}
	m.activeTasks.Dec()
}

// TaskProcessed фиксирует попытку выполнения.
// status: "success" или "failure".
func (m *Metrics) TaskProcessed(taskType, status string) {
	if m == nil {
		return
	}
	m.tasksProcessed.WithLabelValues(taskType, status).Inc()
}

// TaskFailed фиксирует терминальную неудачу (retry исчерпаны).
func (m *Metrics) TaskFailed(taskType string) {
	if m == nil {
		return
	}
	m.tasksFailed.WithLabelValues(taskType).Inc()
}

// ObserveDuration фиксирует длительность попытки.
func (m *Metrics) ObserveDuration(taskType string, d time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(taskType).Observe(d.Seconds())
}

// SetHealth обновляет health gauge по результату health_check.
func (m *Metrics) SetHealth(healthy bool) {
	if m == nil {
		return
	}
	if healthy {
		m.health.Set(1)
	} else {
		m.health.Set(0)
	}
	m.healthy.Store(healthy)
}

// Healthy возвращает последнее зафиксированное состояние health.
func (m *Metrics) Healthy() bool {
	if m == nil {
		return true
	}
	return m.healthy.Load()
}
