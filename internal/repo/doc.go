// Package repo — доступ к PostgreSQL через pgx.
//
// Репозитории:
//   - CleanupRepo — удаление устаревших записей по категориям
//     (используется handler'ом data_cleanup);
//   - AuditRepo — audit-лог терминальных результатов tasks.
//
// БД опциональна: при недоступном PostgreSQL воркер стартует
// в деградированном режиме без data_cleanup и audit.
package repo
