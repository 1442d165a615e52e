// Package mq — интеграция с RabbitMQ.
//
// Воркер использует RabbitMQ двумя способами:
//   - очередь tasks.submit — внешние системы ставят tasks через MQ
//     (альтернатива HTTP API);
//   - exchange mcp.events — воркер публикует событие task.completed
//     после каждого терминального результата.
//
// Сообщения из tasks.submit, которые невозможно обработать в принципе
// (битый JSON, неизвестный тип task, дубликат id), уходят в DLQ;
// временные отказы (заполненная очередь, drain) возвращаются
// в очередь для повторной доставки.
//
// RabbitMQ опционален: без него воркер принимает tasks только по HTTP.
package mq
