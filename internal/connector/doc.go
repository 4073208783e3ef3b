// Package connector определяет контракты коннекторов.
//
// Outbound коннектор (OutboundFunction) вызывается заданием процесса
// и возвращает результат, который runtime превращает в переменные.
//
// Inbound коннектор (InboundExecutable) активируется runtime для группы
// BPMN элементов и коррелирует внешние события через InboundContext.
// WebhookExecutable: inbound коннектор, получающий события через
// HTTP endpoint /inbound/{context}.
//
// Ошибки коннекторов:
//   - InputError    - неверные входные данные, повторять бессмысленно
//   - Error         - ошибка выполнения с кодом для errorExpression
//   - RetryError    - ошибка с явными retries/backoff
//   - WebhookError  - webhook должен ответить заданным статусом
//   - SecurityError - проверка подписи/учётных данных не прошла
package connector
