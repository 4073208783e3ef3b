// Package rabbitmq - коннектор RabbitMQ.
//
// Outbound (io.camunda:connector-rabbitmq:1) публикует одно сообщение
// в exchange и возвращает {"statusResult": "success"}.
//
// Inbound (io.camunda:connector-rabbitmq-inbound:1) читает очередь и
// коррелирует каждое сообщение как {"message": {consumerTag, body, properties}}.
// Решение по сообщению зависит от результата корреляции:
//
//	успех                       → ack
//	неудача с Ignore            → ack
//	неудача, повтор возможен    → reject с возвратом в очередь
//	неудача, повтор невозможен  → reject без возврата
//	паника при корреляции       → reject с возвратом в очередь
package rabbitmq
