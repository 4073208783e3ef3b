// Package engine - HTTP клиент REST API оркестрационного движка.
//
// Runtime коннекторов использует движок для:
//   - создания process instance (start event)
//   - публикации сообщений (message catch / message start events)
//   - активации outbound заданий и их завершения
//     (complete, fail, throw error)
//
// Ошибочные ответы API (problem detail) возвращаются как *StatusError
// с gRPC кодом, который runtime превращает в HTTP статус webhook.
package engine
