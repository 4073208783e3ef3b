package secrets

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
)

var (
	// ErrSecretUnavailable: ссылка на секрет не разрешилась.
	ErrSecretUnavailable = errors.New("secret unavailable")
)

var (
	// fullPattern: значение целиком является ссылкой: secrets.NAME
	fullPattern = regexp.MustCompile(`^secrets\.(\S+)$`)

	// placeholderPattern: ссылка внутри строки: {{secrets.NAME}}
	placeholderPattern = regexp.MustCompile(`\{\{\s*secrets\.(\S+?\s*)}}`)
)

// Mask: замена значений секретов в сообщениях об ошибках.
const Mask = "***"

// Handler подставляет значения секретов.
type Handler struct {
	provider Provider
}

// NewHandler создаёт Handler поверх провайдера.
func NewHandler(provider Provider) *Handler {
	return &Handler{provider: provider}
}

// Replace рекурсивно подставляет секреты в строки, map и слайсы.
// Остальные значения возвращаются как есть.
func (h *Handler) Replace(ctx context.Context, value any, tenantID string) (any, error) {
	switch v := value.(type) {
	case string:
		return h.ReplaceString(ctx, v, tenantID)

	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			replaced, err := h.Replace(ctx, item, tenantID)
			if err != nil {
				return nil, err
			}
			out[k] = replaced
		}
		return out, nil

	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			replaced, err := h.Replace(ctx, item, tenantID)
			if err != nil {
				return nil, err
			}
			out[i] = replaced
		}
		return out, nil

	case map[string]string:
		return h.ReplaceProperties(ctx, v, tenantID)

	default:
		return value, nil
	}
}

// ReplaceProperties подставляет секреты в плоские свойства inbound элемента.
func (h *Handler) ReplaceProperties(ctx context.Context, props map[string]string, tenantID string) (map[string]string, error) {
	out := make(map[string]string, len(props))
	for k, v := range props {
		replaced, err := h.ReplaceString(ctx, v, tenantID)
		if err != nil {
			return nil, err
		}
		out[k] = replaced
	}
	return out, nil
}

// ReplaceString подставляет секреты в одну строку.
func (h *Handler) ReplaceString(ctx context.Context, s, tenantID string) (string, error) {
	if m := fullPattern.FindStringSubmatch(strings.TrimSpace(s)); m != nil {
		return h.get(ctx, m[1], tenantID)
	}
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	var firstErr error
	out := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		name := strings.TrimSpace(placeholderPattern.FindStringSubmatch(match)[1])
		v, err := h.get(ctx, name, tenantID)
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			return match
		}
		return v
	})
	if firstErr != nil {
		return "", firstErr
	}
	return out, nil
}

// Resolved возвращает значения всех секретов, на которые ссылается value.
// Неразрешимые ссылки пропускаются. Используется для маскирования ошибок.
func (h *Handler) Resolved(ctx context.Context, value any, tenantID string) []string {
	var out []string
	for _, name := range References(value) {
		if v, err := h.get(ctx, name, tenantID); err == nil && v != "" {
			out = append(out, v)
		}
	}
	return out
}

func (h *Handler) get(ctx context.Context, name, tenantID string) (string, error) {
	if h.provider == nil {
		return "", fmt.Errorf("%w: Secret with name '%s' is not available", ErrSecretUnavailable, name)
	}
	v, err := h.provider.GetSecret(ctx, name, tenantID)
	if err != nil {
		if errors.Is(err, ErrSecretNotFound) {
			return "", fmt.Errorf("%w: Secret with name '%s' is not available", ErrSecretUnavailable, name)
		}
		return "", fmt.Errorf("%w: %s: %v", ErrSecretUnavailable, name, err)
	}
	return v, nil
}

// References возвращает отсортированные имена секретов, упомянутых в value.
func References(value any) []string {
	seen := make(map[string]struct{})
	collect(value, seen)

	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func collect(value any, seen map[string]struct{}) {
	switch v := value.(type) {
	case string:
		if m := fullPattern.FindStringSubmatch(strings.TrimSpace(v)); m != nil {
			seen[m[1]] = struct{}{}
			return
		}
		for _, m := range placeholderPattern.FindAllStringSubmatch(v, -1) {
			seen[strings.TrimSpace(m[1])] = struct{}{}
		}
	case map[string]any:
		for _, item := range v {
			collect(item, seen)
		}
	case []any:
		for _, item := range v {
			collect(item, seen)
		}
	case map[string]string:
		for _, item := range v {
			collect(item, seen)
		}
	}
}

// Hide заменяет значения секретов в сообщении на Mask.
func Hide(message string, secretValues []string) string {
	for _, s := range secretValues {
		if s == "" {
			continue
		}
		message = strings.ReplaceAll(message, s, Mask)
	}
	return message
}
