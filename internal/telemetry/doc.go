// Package telemetry содержит общую инфраструктуру наблюдаемости:
// структурированное логирование (log/slog) и метрики Prometheus.
//
// Логи пишутся в JSON (production) или text (разработка),
// формат и уровень задаются переменными LOG_FORMAT и LOG_LEVEL.
//
// Метрики регистрируются в переданном prometheus.Registerer,
// что позволяет держать несколько независимых экземпляров в тестах.
package telemetry
