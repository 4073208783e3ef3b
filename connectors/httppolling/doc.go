// Package httppolling - inbound коннектор, опрашивающий HTTP endpoint
// по расписанию и коррелирующий каждый ответ с процессом.
//
// Расписание задаётся одним из свойств:
//
//	inbound.cron                - cron выражение (5 полей) или дескриптор (@hourly)
//	inbound.httpRequestInterval: ISO-8601 длительность (default: PT50S)
//
// Переменные корреляции - {response: {status, headers, body}}.
package httppolling
