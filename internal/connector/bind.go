package connector

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Validator: модель, умеющая проверять себя после декодирования.
type Validator interface {
	Validate() error
}

// Bind декодирует src в dst через JSON и вызывает Validate, если dst его реализует.
// Ошибки декодирования и валидации возвращаются как InputError.
func Bind(src any, dst any) error {
	b, err := json.Marshal(src)
	if err != nil {
		return &InputError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return &InputError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
	}
	if v, ok := dst.(Validator); ok {
		if err := v.Validate(); err != nil {
			return &InputError{Err: fmt.Errorf("%w: %v", ErrInvalidConfig, err)}
		}
	}
	return nil
}

// Unflatten превращает свойства с точками в ключах во вложенные объекты:
//
//	{"inbound.context": "orders"} → {"inbound": {"context": "orders"}}
func Unflatten(props map[string]string) map[string]any {
	out := make(map[string]any)

	// Сортируем ключи, чтобы "a" обрабатывался раньше "a.b"
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		parts := strings.Split(key, ".")
		cur := out
		for i, part := range parts {
			if i == len(parts)-1 {
				if _, nested := cur[part].(map[string]any); !nested {
					cur[part] = props[key]
				}
				break
			}
			next, ok := cur[part].(map[string]any)
			if !ok {
				next = make(map[string]any)
				cur[part] = next
			}
			cur = next
		}
	}
	return out
}
