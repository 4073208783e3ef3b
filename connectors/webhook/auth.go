package webhook

import (
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/expression"
)

// AuthType: способ аутентификации запросов.
type AuthType string

const (
	AuthNone   AuthType = "NONE"
	AuthBasic  AuthType = "BASIC"
	AuthAPIKey AuthType = "APIKEY"
	AuthJWT    AuthType = "JWT"
)

// AuthProperties: свойства inbound.auth.*.
type AuthProperties struct {
	Type          AuthType      `json:"type"`
	Username      string        `json:"username"`
	Password      string        `json:"password"`
	APIKey        string        `json:"apiKey"`
	APIKeyLocator string        `json:"apiKeyLocator"`
	JWT           JWTProperties `json:"jwt"`
}

func (a AuthProperties) is(t AuthType) bool {
	return AuthType(strings.ToUpper(string(a.Type))) == t
}

func (a AuthProperties) validate() error {
	switch AuthType(strings.ToUpper(string(a.Type))) {
	case AuthNone, "":
		return nil
	case AuthBasic:
		if a.Username == "" {
			return fmt.Errorf("auth.username is required for BASIC auth")
		}
		return nil
	case AuthAPIKey:
		if a.APIKey == "" || a.APIKeyLocator == "" {
			return fmt.Errorf("auth.apiKey and auth.apiKeyLocator are required for APIKEY auth")
		}
		return nil
	case AuthJWT:
		return a.JWT.validate()
	default:
		return fmt.Errorf("unsupported auth type %q", a.Type)
	}
}

// check проверяет запрос. request - контекст выражений {"request": ...}.
// JWT проверяет jwtVerifier: ему нужны ключи, загруженные при активации.
func (a AuthProperties) check(headers map[string]string, request map[string]any) error {
	switch AuthType(strings.ToUpper(string(a.Type))) {
	case AuthBasic:
		user, pass, ok := basicCredentials(headerValue(headers, "Authorization"))
		if !ok || !equal(user, a.Username) || !equal(pass, a.Password) {
			return connector.NewSecurityError(connector.ReasonInvalidCredentials, "invalid basic auth credentials")
		}

	case AuthAPIKey:
		key, err := expression.EvaluateString(a.APIKeyLocator, request)
		if err != nil || key == "" {
			return connector.NewSecurityError(connector.ReasonInvalidCredentials, "API key not found in request")
		}
		if !equal(key, a.APIKey) {
			return connector.NewSecurityError(connector.ReasonInvalidCredentials, "invalid API key")
		}
	}
	return nil
}

func basicCredentials(header string) (string, string, bool) {
	const prefix = "basic "
	if len(header) < len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", "", false
	}
	decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(header[len(prefix):]))
	if err != nil {
		return "", "", false
	}
	return strings.Cut(string(decoded), ":")
}

func equal(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
