package expression

import (
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
)

// templateFuncs: дополнительные функции для выражений.
var templateFuncs = template.FuncMap{
	// json: сериализует значение в JSON строку
	"json": toJSON,

	// toJSON: алиас для json
	"toJSON": toJSON,

	// fromJSON: парсит JSON строку
	"fromJSON": func(s string) any {
		result, err := DecodeJSON([]byte(s))
		if err != nil {
			return nil
		}
		return result
	},

	// num: приводит число из данных к float64 для сравнений (gt, lt)
	"num": func(v any) (float64, error) {
		if s, ok := v.(string); ok {
			v = json.Number(strings.TrimSpace(s))
		}
		f, ok := Number(v)
		if !ok {
			return 0, fmt.Errorf("%w: expected number, got %T", ErrUnexpectedType, v)
		}
		return f, nil
	},

	// default: возвращает значение по умолчанию, если первый аргумент пустой
	"default": func(def, val any) any {
		if isEmpty(val) {
			return def
		}
		return val
	},

	// coalesce: возвращает первое непустое значение
	"coalesce": func(values ...any) any {
		for _, v := range values {
			if !isEmpty(v) {
				return v
			}
		}
		return nil
	},

	// get: безопасное чтение ключа map (nil, если ключа или map нет)
	"get": func(m any, key string) any {
		if mm, ok := m.(map[string]any); ok {
			return mm[key]
		}
		return nil
	},

	// str: приводит значение к строке
	"str": stringify,

	// join: объединяет слайс строк
	"join": func(sep string, items []string) string {
		return strings.Join(items, sep)
	},

	// split: разбивает строку на слайс
	"split": func(sep, s string) []string {
		return strings.Split(s, sep)
	},

	"contains":  strings.Contains,
	"hasPrefix": strings.HasPrefix,
	"hasSuffix": strings.HasSuffix,
	"lower":     strings.ToLower,
	"upper":     strings.ToUpper,
	"trim":      strings.TrimSpace,
	"replace":   strings.ReplaceAll,

	// bpmnError: результат errorExpression, бросающий BPMN ошибку:
	//
	//	{{ bpmnError "NOT_FOUND" "order missing" }}
	"bpmnError": func(code, message string, variables ...map[string]any) string {
		out := map[string]any{"errorType": "bpmnError", "code": code, "message": message}
		if len(variables) > 0 && variables[0] != nil {
			out["variables"] = variables[0]
		}
		return toJSON(out)
	},

	// jobError: результат errorExpression, завершающий задание ошибкой.
	// Необязательные аргументы: retries (int), retryBackoff (ISO-8601),
	// variables (объект из данных).
	//
	//	{{ jobError "temporary failure" 3 "PT10S" .body }}
	"jobError": func(message string, opts ...any) string {
		out := map[string]any{"errorType": "jobError", "message": message}
		if len(opts) > 0 {
			out["retries"] = opts[0]
		}
		if len(opts) > 1 && opts[1] != nil && opts[1] != "" {
			out["retryBackoff"] = opts[1]
		}
		if len(opts) > 2 && opts[2] != nil {
			out["variables"] = opts[2]
		}
		return toJSON(out)
	},
}

func toJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("error: %v", err)
	}
	return string(b)
}

func isEmpty(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case float64:
		if t == float64(int64(t)) {
			return fmt.Sprintf("%d", int64(t))
		}
		return fmt.Sprintf("%g", t)
	case map[string]any, []any:
		return toJSON(t)
	default:
		return fmt.Sprint(t)
	}
}
