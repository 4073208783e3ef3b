// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go - соединение с брокером (reconnect, graceful shutdown)
//   - topology.go   - проверка очередей перед потреблением
//   - publisher.go  - публикация сообщений
//   - consumer.go   - потребление сообщений с явным решением ack/reject
//
// Пакет используется коннектором rabbitmq: outbound публикует через
// Publisher, inbound читает очередь через Consumer.
package mq
