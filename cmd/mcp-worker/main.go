// MCP Worker — фоновый воркер платформы MCP.
//
// Worker:
//   - Принимает tasks по HTTP API и из RabbitMQ
//   - Выполняет vector_index, model_cache, data_cleanup, health_check
//   - Реализует retry с exponential backoff
//   - Отдаёт метрики Prometheus и health-статус
//
// Workers масштабируются горизонтально.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/mcp-worker/internal/api"
	"github.com/shaiso/mcp-worker/internal/domain"
	"github.com/shaiso/mcp-worker/internal/modelrunner"
	"github.com/shaiso/mcp-worker/internal/mq"
	"github.com/shaiso/mcp-worker/internal/repo"
	"github.com/shaiso/mcp-worker/internal/scheduler"
	"github.com/shaiso/mcp-worker/internal/telemetry"
	"github.com/shaiso/mcp-worker/internal/vectorstore"
	"github.com/shaiso/mcp-worker/internal/worker"
)

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting mcp-worker")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	// Клиенты внешних сервисов
	qdrant := vectorstore.New(vectorstore.Config{
		URL: envString("QDRANT_URL", "http://qdrant:6333"),
	})
	modelRunner := modelrunner.New(modelrunner.Config{
		URL: envString("MODEL_API_URL", "http://model-runner:8080/v1"),
	})

	// DB pool — опционален: без него data_cleanup и audit отключены
	var audit worker.AuditLog
	var cleanupStore worker.CleanupStore
	var dbProbe worker.Probe

	pool, err := repo.NewPool(ctx, os.Getenv("DB_URL"))
	if err != nil {
		logger.Warn("database not available, data_cleanup and audit disabled", "error", err)
	} else {
		defer pool.Close()
		logger.Info("database connected")

		audit = repo.NewAuditRepo(pool)
		cleanupStore = repo.NewCleanupRepo(pool)
		dbProbe = worker.Probe{Name: "database", Check: pool.Ping}
	}

	// RabbitMQ — опционален: без него tasks принимаются только по HTTP
	var publisher *mq.Publisher
	var mqConn *mq.Connection

	mqConn, err = mq.NewConnection(envString("RABBITMQ_URL", mq.DefaultURL()), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in HTTP-only mode", "error", err)
		mqConn = nil
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher = mq.NewPublisher(mqConn, logger)
	}

	// Probes для health_check
	probes := []worker.Probe{
		{Name: "qdrant", Check: qdrant.Healthz},
		{Name: "model_runner", Check: modelRunner.Healthz},
	}
	if dbProbe.Check != nil {
		probes = append(probes, dbProbe)
	}

	// Регистрируем handlers
	registry := worker.NewRegistry()
	registry.Register(worker.TaskTypeVectorIndex, worker.NewVectorIndexHandler(qdrant, modelRunner, logger))
	registry.Register(worker.TaskTypeModelCache, worker.NewModelCacheHandler(modelRunner, logger))
	registry.Register(worker.TaskTypeHealthCheck, worker.NewHealthCheckHandler(probes, metrics, logger))
	if cleanupStore != nil {
		registry.Register(worker.TaskTypeDataCleanup, worker.NewDataCleanupHandler(cleanupStore, logger))
	}

	// Создаём worker
	var events worker.CompletionPublisher
	if publisher != nil {
		events = publisher
	}
	w := worker.New(worker.Config{
		Registry:    registry,
		Metrics:     metrics,
		Audit:       audit,
		Events:      events,
		Concurrency: envInt("WORKER_CONCURRENCY", 4),
		TaskTimeout: envDuration("TASK_TIMEOUT", 300*time.Second),
		QueueSize:   envInt("QUEUE_SIZE", 1024),
		Logger:      logger,
	})

	// Запускаем worker
	if err := w.Start(ctx); err != nil {
		logger.Error("failed to start worker", "error", err)
		os.Exit(1)
	}

	// Consumer очереди tasks.submit
	if mqConn != nil {
		consumer := mq.NewSubmitConsumer(mqConn, w, logger)
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("submit consumer stopped", "error", err)
			}
		}()
	}

	// Scheduler: периодический health_check + ночной data_cleanup
	entries := []scheduler.Entry{
		{
			Name:     "health-check",
			TaskType: worker.TaskTypeHealthCheck,
			Interval: envDuration("HEALTH_CHECK_INTERVAL", 30*time.Second),
		},
	}
	if cleanupStore != nil {
		entries = append(entries, scheduler.Entry{
			Name:     "data-cleanup",
			TaskType: worker.TaskTypeDataCleanup,
			CronExpr: envString("CLEANUP_CRON", "0 3 * * *"),
		})
	}

	sched, err := scheduler.New(scheduler.Config{
		Submitter: w,
		Entries:   entries,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to create scheduler", "error", err)
		os.Exit(1)
	}
	go sched.Run(ctx)

	// Первый health_check сразу при старте, не дожидаясь интервала
	if err := w.Submit(domain.NewTask("", worker.TaskTypeHealthCheck, nil)); err != nil {
		logger.Warn("failed to submit initial health check", "error", err)
	}

	// HTTP: API + /healthz + /metrics
	mux := http.NewServeMux()
	apiHandler := api.NewHandler(api.Config{Engine: w, Logger: logger})
	apiHandler.RegisterRoutes(mux)
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		if !w.Healthy() {
			rw.WriteHeader(http.StatusServiceUnavailable)
			rw.Write([]byte("degraded"))
			return
		}
		rw.WriteHeader(http.StatusOK)
		rw.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":" + envString("WORKER_PORT", "9090")
	server := &http.Server{Addr: port, Handler: mux}

	go func() {
		logger.Info("listening", "addr", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "error", err)
			cancel()
		}
	}()

	// Ожидаем сигнал завершения
	<-ctx.Done()

	// Сначала перестаём принимать новые tasks, потом дорабатываем старые
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	server.Shutdown(shutdownCtx)
	shutdownCancel()

	w.Stop(envDuration("SHUTDOWN_GRACE", 10*time.Second))
	logger.Info("mcp-worker stopped")
}

// envString читает переменную окружения со значением по умолчанию.
func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// envInt читает целочисленную переменную окружения.
func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

// envDuration читает длительность: duration-литерал ("30s", "5m")
// или просто число секунд.
func envDuration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return time.Duration(n) * time.Second
	}
	return def
}
