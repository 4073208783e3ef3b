// Package expression вычисляет выражения коннекторов.
//
// Выражения - это Go templates над JSON-подобным контекстом
// (map[string]any). Используются для:
//   - activationCondition - условие активации inbound элемента
//   - correlationKeyExpression, messageIdExpression - ключи сообщений
//   - resultExpression - маппинг ответа в переменные процесса
//   - errorExpression - преобразование ответа в BPMN ошибку
//
// Ведущий "=" допускается и означает, что строка является выражением:
//
//	=request.body.orderId                 - путь, возвращает типизированное значение
//	=eq .request.body.type "order"        - pipeline, оборачивается в {{ }}
//	{"id": {{ json .request.body.id }}}   - шаблон, результат декодируется как JSON
package expression
