// Package api — HTTP API воркера.
//
// Эндпоинты:
//   - POST /api/v1/tasks — постановка task (?wait=true — дождаться
//     терминального результата в рамках запроса);
//   - GET  /api/v1/status — состояние воркера: lifecycle state,
//     активные и ожидающие tasks, зарегистрированные типы.
//
// Формат ответов единый: {"data": ...} при успехе,
// {"error": {"code", "message"}} при ошибке.
package api
