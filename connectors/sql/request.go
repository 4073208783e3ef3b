package sql

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// Database: поддерживаемые СУБД.
type Database string

const DatabasePostgres Database = "POSTGRESQL"

// Connection: параметры подключения: либо uri, либо отдельные поля.
type Connection struct {
	URI          string `json:"uri"`
	Host         string `json:"host"`
	Port         string `json:"port"`
	Username     string `json:"username"`
	Password     string `json:"password"`
	DatabaseName string `json:"databaseName"`
	SSLMode      string `json:"sslMode"`
}

// Data: запрос и его параметры.
type Data struct {
	Query         string `json:"query"`
	ReturnResults bool   `json:"returnResults"`

	// Variables: позиционные параметры ($1, $2, ...).
	Variables []any `json:"variables"`
}

// Request: переменные задания.
type Request struct {
	Database   Database   `json:"database"`
	Connection Connection `json:"connection"`
	Data       Data       `json:"data"`
}

// Validate проверяет запрос.
func (r *Request) Validate() error {
	if r.Database != "" && r.Database != DatabasePostgres {
		return fmt.Errorf("unsupported database %q", r.Database)
	}
	if strings.TrimSpace(r.Data.Query) == "" {
		return errors.New("data.query is required")
	}
	c := r.Connection
	if c.URI == "" && c.Host == "" {
		return errors.New("connection.uri or connection.host is required")
	}
	if c.URI == "" && c.Port != "" {
		if _, err := strconv.Atoi(c.Port); err != nil {
			return fmt.Errorf("connection.port: %w", err)
		}
	}
	return nil
}

// dsn возвращает строку подключения в формате URL.
func (c Connection) dsn() string {
	if c.URI != "" {
		return c.URI
	}
	port := c.Port
	if port == "" {
		port = "5432"
	}
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, port),
		Path:   "/" + c.DatabaseName,
	}
	if c.Username != "" {
		u.User = url.UserPassword(c.Username, c.Password)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}
