// Package scheduler — периодическая постановка служебных tasks.
//
// Scheduler держит in-memory список entries; каждая описывает task,
// ставящийся по фиксированному интервалу или по cron-выражению.
// Из коробки воркер планирует периодический health_check и ночной
// data_cleanup.
//
// Идентификаторы tasks детерминированы ("{name}-{due_unix}"): если
// предыдущий запуск ещё выполняется, дубликат отклоняется движком
// и тик просто пропускается.
package scheduler
