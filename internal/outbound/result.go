package outbound

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/expression"
)

// MaxErrorMessageLength: предел длины сообщения об ошибке, отправляемого в engine.
const MaxErrorMessageLength = 6000

// Значения errorType в результате errorExpression.
const (
	errorTypeBPMN = "bpmnError"
	errorTypeJob  = "jobError"
)

// outcome: итог вызова коннектора до применения errorExpression.
type outcome struct {
	// response: ответ коннектора при успехе или {"error": {...}} при ошибке.
	response any

	// variables: выходные переменные успешного задания.
	variables map[string]any

	// err: ошибка с замаскированными секретами. nil означает успех.
	err     error
	retries int
	backoff time.Duration
}

// bpmnError: errorExpression требует бросить BPMN ошибку.
type bpmnError struct {
	code      string
	message   string
	variables map[string]any
}

// jobError: errorExpression требует завершить задание ошибкой.
type jobError struct {
	message   string
	variables map[string]any
	retries   int
	backoff   time.Duration
}

// outputVariables строит переменные процесса из ответа коннектора.
//
// resultVariable кладёт весь ответ под указанным именем,
// resultExpression вычисляется над ответом и сливается поверх.
func outputVariables(response any, resultVariable, resultExpression string) (map[string]any, error) {
	out := map[string]any{}
	if resultVariable == "" && resultExpression == "" {
		return out, nil
	}

	normalized, err := expression.Normalize(response)
	if err != nil {
		return nil, err
	}
	if resultVariable != "" {
		out[resultVariable] = normalized
	}
	if resultExpression != "" {
		mapped, err := expression.EvaluateToMap(resultExpression, normalized)
		if err != nil {
			return nil, err
		}
		for k, v := range mapped {
			out[k] = v
		}
	}
	return out, nil
}

// examineErrorExpression вычисляет errorExpression над ответом или ошибкой.
// Возвращает *bpmnError, *jobError или nil.
func examineErrorExpression(expr string, response any, retries int) (any, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	data := map[string]any{}
	normalized, err := expression.Normalize(response)
	if err != nil {
		return nil, err
	}
	if m, ok := normalized.(map[string]any); ok {
		for k, v := range m {
			data[k] = v
		}
	} else if normalized != nil {
		data["response"] = normalized
	}
	data["job"] = map[string]any{"retries": retries}

	result, err := expression.EvaluateToMap(expr, data)
	if err != nil || len(result) == 0 {
		return nil, err
	}

	errorType, _ := result["errorType"].(string)
	switch {
	case errorType == errorTypeJob:
		return parseJobError(result)
	case errorType == errorTypeBPMN || errorType == "" && result["code"] != nil:
		code := stringValue(result["code"])
		if code == "" {
			return nil, fmt.Errorf("%w: bpmnError requires a non-empty code", ErrInvalidErrorExpression)
		}
		return &bpmnError{
			code:      code,
			message:   stringValue(result["message"]),
			variables: mapValue(result["variables"]),
		}, nil
	default:
		return nil, fmt.Errorf("%w: unknown errorType %q", ErrInvalidErrorExpression, errorType)
	}
}

func parseJobError(result map[string]any) (*jobError, error) {
	je := &jobError{
		message:   stringValue(result["message"]),
		variables: mapValue(result["variables"]),
	}
	if r, ok := expression.Number(result["retries"]); ok {
		je.retries = int(r)
	} else if r, ok := result["retries"].(string); ok {
		if _, err := fmt.Sscan(r, &je.retries); err != nil {
			return nil, fmt.Errorf("%w: retries %q", ErrInvalidErrorExpression, r)
		}
	}
	if raw := stringValue(result["retryBackoff"]); raw != "" {
		d, err := domain.ParseISODuration(raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidBackoff, err)
		}
		je.backoff = d
	}
	return je, nil
}

// errorMap: представление ошибки, доступное в errorExpression как error.
func errorMap(err error, message string) map[string]any {
	out := map[string]any{
		"type":    errorTypeName(err),
		"message": truncate(message),
	}

	var ce *connector.Error
	var re *connector.RetryError
	switch {
	case errors.As(err, &ce):
		if ce.Code != "" {
			out["code"] = ce.Code
		}
		if ce.Variables != nil {
			out["variables"] = ce.Variables
		}
	case errors.As(err, &re):
		if re.Code != "" {
			out["code"] = re.Code
		}
	}
	return out
}

// errorTypeName возвращает имя типа ошибки без указателя: "connector.Error".
func errorTypeName(err error) string {
	var target error = err
	var ce *connector.Error
	var re *connector.RetryError
	var ie *connector.InputError
	switch {
	case errors.As(err, &ie):
		target = ie
	case errors.As(err, &re):
		target = re
	case errors.As(err, &ce):
		target = ce
	}
	return strings.TrimPrefix(fmt.Sprintf("%T", target), "*")
}

// truncate обрезает сообщение до MaxErrorMessageLength байт, не разрывая руну.
func truncate(s string) string {
	if len(s) <= MaxErrorMessageLength {
		return s
	}
	n := MaxErrorMessageLength
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func stringValue(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return s
	default:
		return fmt.Sprint(s)
	}
}

func mapValue(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
