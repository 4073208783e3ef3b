package rabbitmq

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strings"
)

// AuthType: способ задать параметры подключения.
type AuthType string

const (
	AuthCredentials AuthType = "credentials"
	AuthURI         AuthType = "uri"
)

// Authentication: учётные данные брокера.
type Authentication struct {
	AuthType AuthType `json:"authType"`
	UserName string   `json:"userName"`
	Password string   `json:"password"`
	URI      string   `json:"uri"`
}

// Connection: адрес брокера для AuthCredentials.
type Connection struct {
	VirtualHost string `json:"virtualHost"`
	HostName    string `json:"hostName"`
	Port        string `json:"port"`
}

func (a Authentication) validate(c Connection) error {
	switch a.AuthType {
	case AuthURI:
		if strings.TrimSpace(a.URI) == "" {
			return errors.New("authentication.uri is required")
		}
		if _, err := url.Parse(a.URI); err != nil {
			return fmt.Errorf("authentication.uri: %w", err)
		}
	case AuthCredentials, "":
		if a.UserName == "" || a.Password == "" {
			return errors.New("authentication.userName and authentication.password are required")
		}
		if c.HostName == "" || c.Port == "" {
			return errors.New("hostName and port are required for credentials authentication")
		}
	default:
		return fmt.Errorf("unsupported authType %q", a.AuthType)
	}
	return nil
}

// uri собирает amqp:// URI из свойств.
func (a Authentication) uri(c Connection) string {
	if a.AuthType == AuthURI {
		return a.URI
	}

	vhost := c.VirtualHost
	if vhost == "" {
		vhost = "/"
	}
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(a.UserName, a.Password),
		Host:   net.JoinHostPort(c.HostName, c.Port),
		// "/" как vhost кодируется в %2F
		RawPath: "/" + url.PathEscape(vhost),
		Path:    "/" + vhost,
	}
	return u.String()
}
