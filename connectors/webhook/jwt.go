package webhook

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/expression"
)

// jwtMethods: допустимые алгоритмы подписи токена.
var jwtMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// JWTProperties: свойства inbound.auth.jwt.*.
type JWTProperties struct {
	JWKURL string `json:"jwkUrl"`

	// PermissionsExpression вычисляется над claims токена и возвращает
	// список разрешений, например "=roles".
	PermissionsExpression string `json:"permissionsExpression"`

	// RequiredPermissions: `=["admin"]` или "admin,ops".
	RequiredPermissions string `json:"requiredPermissions"`
}

func (p JWTProperties) validate() error {
	if strings.TrimSpace(p.JWKURL) == "" {
		return fmt.Errorf("auth.jwt.jwkUrl is required for JWT auth")
	}
	required, err := p.required()
	if err != nil {
		return err
	}
	if len(required) > 0 && strings.TrimSpace(p.PermissionsExpression) == "" {
		return fmt.Errorf("auth.jwt.permissionsExpression is required when auth.jwt.requiredPermissions is set")
	}
	return nil
}

func (p JWTProperties) required() ([]string, error) {
	v, err := expression.Evaluate(p.RequiredPermissions, nil)
	if err != nil {
		return nil, fmt.Errorf("auth.jwt.requiredPermissions: %w", err)
	}
	return toStrings(v), nil
}

// jwtVerifier проверяет bearer токены по ключам JWKS.
// Набор ключей обновляется в фоне, пока жив контекст активации.
type jwtVerifier struct {
	keys       keyfunc.Keyfunc
	expression string
	required   []string
}

func newJWTVerifier(ctx context.Context, props JWTProperties) (*jwtVerifier, error) {
	required, err := props.required()
	if err != nil {
		return nil, connector.NewInputError("%v", err)
	}
	keys, err := keyfunc.NewDefaultCtx(ctx, []string{props.JWKURL})
	if err != nil {
		return nil, fmt.Errorf("failed to load JWKS from %s: %w", props.JWKURL, err)
	}
	return &jwtVerifier{keys: keys, expression: props.PermissionsExpression, required: required}, nil
}

func (v *jwtVerifier) check(headers map[string]string) error {
	raw := bearerToken(headerValue(headers, "Authorization"))
	if raw == "" {
		return connector.NewSecurityError(connector.ReasonInvalidCredentials, "JWT auth failed")
	}

	claims := jwt.MapClaims{}
	if _, err := jwt.ParseWithClaims(raw, claims, v.keys.Keyfunc, jwt.WithValidMethods(jwtMethods)); err != nil {
		return connector.NewSecurityError(connector.ReasonInvalidCredentials, "JWT auth failed")
	}

	if len(v.required) == 0 {
		return nil
	}
	// Ошибка выражения означает отсутствие разрешений
	granted, _ := expression.Evaluate(v.expression, map[string]any(claims))
	have := toStrings(granted)
	for _, p := range v.required {
		if !slices.Contains(have, p) {
			return connector.NewSecurityError(connector.ReasonForbidden, "Missing required permissions")
		}
	}
	return nil
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	const prefix = "bearer "
	if len(header) >= len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		header = header[len(prefix):]
	}
	return strings.TrimSpace(header)
}

// toStrings приводит список или строку через запятую к []string.
func toStrings(v any) []string {
	var out []string
	switch t := v.(type) {
	case []any:
		for _, item := range t {
			if item == nil {
				continue
			}
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
	case string:
		for _, item := range strings.Split(t, ",") {
			if s := strings.TrimSpace(item); s != "" {
				out = append(out, s)
			}
		}
	}
	return out
}
