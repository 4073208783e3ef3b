// Package outbound выполняет outbound задания engine.
//
// Worker активирует задания по каждому зарегистрированному типу
// и передаёт их в Handler ограниченным пулом горутин.
//
// Handler вызывает функцию коннектора и завершает задание одним из трёх способов:
//
//	CompleteJob  - успешный результат (resultVariable / resultExpression)
//	ThrowError   - errorExpression вернуло bpmnError
//	FailJob      - ошибка коннектора или jobError из errorExpression
//
// Количество повторов по умолчанию - retries задания минус один.
// InputError не повторяется, RetryError переопределяет retries и backoff.
// Значения секретов в сообщениях об ошибках заменяются на "***".
package outbound
