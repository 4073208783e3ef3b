package expression

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"text/template"
)

// noValue: то, что text/template печатает для отсутствующего значения.
const noValue = "<no value>"

// pathPattern: выражение вида request.body.id или .request.body.id.
var pathPattern = regexp.MustCompile(`^\.?[A-Za-z_][A-Za-z0-9_\-]*(\.[A-Za-z_][A-Za-z0-9_\-]*)*$`)

// cache хранит разобранные шаблоны: одни и те же выражения
// вычисляются на каждое событие.
var cache sync.Map // map[string]*template.Template

// Normalize приводит произвольное значение к JSON-подобному виду
// (map[string]any, []any, string, json.Number, float64, bool, nil).
func Normalize(v any) (any, error) {
	switch v.(type) {
	case nil, map[string]any, []any, string, json.Number, float64, bool:
		return v, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	out, err := DecodeJSON(b)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEvaluation, err)
	}
	return out, nil
}

// Evaluate вычисляет выражение над данными.
//
// Пустое выражение даёт nil. Путь возвращает значение как есть,
// шаблон рендерится, а результат декодируется как JSON, если это возможно.
func Evaluate(expr string, data any) (any, error) {
	v, rendered, err := evaluate(expr, data)
	if err != nil || !rendered {
		return v, err
	}
	return decode(v.(string)), nil
}

// evaluate вычисляет выражение. rendered: результат - текст шаблона.
func evaluate(expr string, data any) (any, bool, error) {
	src, isExpr := strip(expr)
	if src == "" {
		return nil, false, nil
	}

	if v, ok := literal(src); ok {
		return v, false, nil
	}

	ctx, err := Normalize(data)
	if err != nil {
		return nil, false, newError(expr, err)
	}

	if isPath(src, isExpr) {
		return lookup(ctx, src), false, nil
	}

	if !strings.Contains(src, "{{") {
		if !isExpr {
			// Строка без шаблона
			return src, false, nil
		}
		src = "{{ " + src + " }}"
	}

	out, err := render(src, ctx)
	if err != nil {
		return nil, false, newError(expr, err)
	}
	return out, true, nil
}

// EvaluateCondition вычисляет условие активации.
// Пустое условие считается выполненным.
func EvaluateCondition(expr string, data any) (bool, error) {
	src, isExpr := strip(expr)
	if src == "" {
		return true, nil
	}

	if _, ok := literal(src); !ok && !strings.Contains(src, "{{") {
		ctx, err := Normalize(data)
		if err != nil {
			return false, newError(expr, err)
		}
		if isPath(src, isExpr) {
			return truthy(lookup(ctx, src)), nil
		}
		// Оборачиваем условие в if, чтобы получить bool
		out, err := render(fmt.Sprintf(`{{if %s}}true{{else}}false{{end}}`, src), ctx)
		if err != nil {
			return false, newError(expr, err)
		}
		return out == "true", nil
	}

	v, err := Evaluate(expr, data)
	if err != nil {
		return false, err
	}
	switch b := v.(type) {
	case bool:
		return b, nil
	case nil:
		return false, nil
	case string:
		if parsed, perr := strconv.ParseBool(strings.TrimSpace(b)); perr == nil {
			return parsed, nil
		}
	}
	return false, newError(expr, fmt.Errorf("%w: expected boolean, got %T", ErrUnexpectedType, v))
}

// EvaluateToMap вычисляет выражение, которое должно вернуть объект.
// Пустое выражение или nil дают nil без ошибки.
func EvaluateToMap(expr string, data any) (map[string]any, error) {
	v, err := Evaluate(expr, data)
	if err != nil {
		return nil, err
	}
	switch m := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		return m, nil
	default:
		return nil, newError(expr, fmt.Errorf("%w: expected object, got %T", ErrUnexpectedType, v))
	}
}

// EvaluateString вычисляет выражение и приводит результат к строке.
// Текст шаблона возвращается как есть: "1.0" остаётся "1.0".
func EvaluateString(expr string, data any) (string, error) {
	v, rendered, err := evaluate(expr, data)
	if err != nil {
		return "", err
	}
	if rendered {
		out := v.(string)
		if strings.TrimSpace(out) == noValue {
			return "", nil
		}
		return out, nil
	}
	return stringify(v), nil
}

// Lookup читает значение по пути "a.b.c" из JSON-подобных данных.
func Lookup(data any, path string) any {
	ctx, err := Normalize(data)
	if err != nil {
		return nil
	}
	return lookup(ctx, path)
}

func strip(expr string) (string, bool) {
	s := strings.TrimSpace(expr)
	if strings.HasPrefix(s, "=") {
		return strings.TrimSpace(s[1:]), true
	}
	return s, false
}

func lookup(data any, path string) any {
	cur := data
	for _, part := range strings.Split(strings.TrimPrefix(path, "."), ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[part]
	}
	return cur
}

func render(src string, data any) (string, error) {
	var t *template.Template
	if cached, ok := cache.Load(src); ok {
		t = cached.(*template.Template)
	} else {
		parsed, err := template.New("expr").Funcs(templateFuncs).Parse(src)
		if err != nil {
			return "", err
		}
		cache.Store(src, parsed)
		t = parsed
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// decode пытается прочитать строку как JSON, иначе возвращает её как есть.
func decode(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" || trimmed == noValue {
		return nil
	}
	if v, err := DecodeJSON([]byte(trimmed)); err == nil {
		return v
	}
	return s
}

func isPath(src string, isExpr bool) bool {
	return pathPattern.MatchString(src) && (isExpr || strings.HasPrefix(src, "."))
}

// literal распознаёт JSON литералы: true, 42, "text", {"a": 1}.
func literal(src string) (any, bool) {
	v, err := DecodeJSON([]byte(src))
	if err != nil {
		return nil, false
	}
	return v, true
}

// truthy повторяет правила истинности text/template.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		if b, err := strconv.ParseBool(t); err == nil {
			return b
		}
		return t != ""
	case float64:
		return t != 0
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	default:
		return true
	}
}
