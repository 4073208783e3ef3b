package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shaiso/Connectors/internal/expression"
)

const defaultTimeout = 20 * time.Second

// AuthType: тип аутентификации запроса.
type AuthType string

const (
	AuthNone   AuthType = "noAuth"
	AuthBasic  AuthType = "basic"
	AuthBearer AuthType = "bearer"
)

// Authentication: параметры аутентификации.
type Authentication struct {
	Type     AuthType `json:"type"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Token    string   `json:"token"`
}

// Request: переменные задания.
type Request struct {
	Method          string            `json:"method"`
	URL             string            `json:"url"`
	Headers         map[string]string `json:"headers"`
	QueryParameters map[string]string `json:"queryParameters"`
	Body            any               `json:"body"`
	Authentication  Authentication    `json:"authentication"`

	// ConnectionTimeoutInSeconds: число или строка с числом.
	ConnectionTimeoutInSeconds any `json:"connectionTimeoutInSeconds"`
}

// Validate проверяет запрос после декодирования.
func (r *Request) Validate() error {
	if strings.TrimSpace(r.URL) == "" {
		return errors.New("url is required")
	}
	u, err := url.Parse(r.URL)
	if err != nil {
		return fmt.Errorf("url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url: unsupported scheme %q", u.Scheme)
	}

	switch strings.ToUpper(r.method()) {
	case "GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS":
	default:
		return fmt.Errorf("unsupported method %q", r.Method)
	}

	switch r.Authentication.Type {
	case AuthNone, "":
	case AuthBasic:
		if r.Authentication.Username == "" {
			return errors.New("authentication.username is required for basic auth")
		}
	case AuthBearer:
		if r.Authentication.Token == "" {
			return errors.New("authentication.token is required for bearer auth")
		}
	default:
		return fmt.Errorf("unsupported authentication type %q", r.Authentication.Type)
	}

	if _, err := r.timeout(); err != nil {
		return err
	}
	return nil
}

func (r *Request) method() string {
	if r.Method == "" {
		return "GET"
	}
	return strings.ToUpper(r.Method)
}

// timeout возвращает таймаут запроса. 0 или пусто - значение по умолчанию.
func (r *Request) timeout() (time.Duration, error) {
	var secs float64
	switch v := r.ConnectionTimeoutInSeconds.(type) {
	case nil:
		return defaultTimeout, nil
	case float64, json.Number:
		secs, _ = expression.Number(v)
	case string:
		if strings.TrimSpace(v) == "" {
			return defaultTimeout, nil
		}
		parsed, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return 0, fmt.Errorf("connectionTimeoutInSeconds: %w", err)
		}
		secs = parsed
	default:
		return 0, fmt.Errorf("connectionTimeoutInSeconds: unexpected type %T", v)
	}
	if secs < 0 {
		return 0, fmt.Errorf("connectionTimeoutInSeconds must not be negative")
	}
	if secs == 0 {
		return defaultTimeout, nil
	}
	return time.Duration(secs * float64(time.Second)), nil
}
