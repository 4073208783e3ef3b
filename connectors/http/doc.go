// Package http - outbound коннектор REST запросов.
//
// Переменные задания:
//
//	method          - HTTP метод (default: GET)
//	url             - адрес (обязательно)
//	headers         - заголовки
//	queryParameters: параметры строки запроса
//	body            - тело; строка отправляется как есть, остальное в JSON
//	authentication  - {type: noAuth|basic|bearer, username, password, token}
//	connectionTimeoutInSeconds: таймаут запроса (default: 20)
//
// Результат - {status, headers, body}. Ответ с кодом вне 2xx превращается
// в connector.Error с кодом, равным статусу, и переменными {response: ...}.
package http
