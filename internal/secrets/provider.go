package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
)

var (
	// ErrSecretNotFound: провайдер не знает секрета с таким именем.
	ErrSecretNotFound = errors.New("secret not found")
)

// Provider: источник значений секретов.
//
// Если секрета нет, GetSecret возвращает ErrSecretNotFound.
type Provider interface {
	GetSecret(ctx context.Context, name, tenantID string) (string, error)
}

// EnvProvider читает секреты из переменных окружения с префиксом.
type EnvProvider struct {
	Prefix string
}

// GetSecret возвращает значение переменной Prefix+name.
func (p EnvProvider) GetSecret(_ context.Context, name, _ string) (string, error) {
	if v, ok := os.LookupEnv(p.Prefix + name); ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}

// StaticProvider: секреты из конфигурации.
type StaticProvider map[string]string

// GetSecret возвращает значение по имени.
func (p StaticProvider) GetSecret(_ context.Context, name, _ string) (string, error) {
	if v, ok := p[name]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}

// Chain опрашивает провайдеры по порядку и возвращает первое найденное значение.
type Chain []Provider

// GetSecret возвращает значение первого провайдера, знающего секрет.
func (c Chain) GetSecret(ctx context.Context, name, tenantID string) (string, error) {
	for _, p := range c {
		if p == nil {
			continue
		}
		v, err := p.GetSecret(ctx, name, tenantID)
		if err == nil {
			return v, nil
		}
		if !errors.Is(err, ErrSecretNotFound) {
			return "", err
		}
	}
	return "", fmt.Errorf("%w: %s", ErrSecretNotFound, name)
}
