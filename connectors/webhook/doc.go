// Package webhook реализует inbound коннектор HTTP webhook.
//
// Executable регистрируется runtime под контекстом inbound.context и
// получает запросы POST /inbound/{context}. Для каждого запроса:
//
//  1. проверяется HTTP метод (inbound.method);
//  2. проверяется HMAC подпись (inbound.shouldValidateHmac);
//  3. разбирается тело (JSON, form-urlencoded, текст);
//  4. проверяется аутентификация (NONE, BASIC, APIKEY);
//  5. возвращается MappedRequest для корреляции.
//
// Выражения inbound.verificationExpression и inbound.responseExpression
// позволяют ответить на handshake запрос и сформировать ответ после корреляции.
package webhook
