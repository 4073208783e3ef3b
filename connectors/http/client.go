package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/expression"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// Type: тип outbound задания.
const Type = "io.camunda:http-json:1"

// maxErrorBody: сколько байт тела ответа попадает в текст ошибки.
const maxErrorBody = 200

// Response: результат коннектора.
type Response struct {
	Status  int               `json:"status"`
	Headers map[string]string `json:"headers"`
	Body    any               `json:"body"`
}

// Client выполняет запросы. Используется outbound коннектором и inbound поллером.
type Client struct {
	http   *http.Client
	logger *slog.Logger
}

// NewClient создаёт Client. nil httpClient означает клиент с трассировкой otelhttp.
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{http: httpClient, logger: telemetry.OrDefault(logger)}
}

// Do выполняет запрос. Ответ вне 2xx возвращается вместе с *connector.Error.
func (c *Client) Do(ctx context.Context, r *Request) (*Response, error) {
	timeout, err := r.timeout()
	if err != nil {
		return nil, connector.NewInputError("%v", err)
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := c.build(ctx, r)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, connector.WrapError("HTTP_REQUEST_FAILED", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, connector.WrapError("HTTP_READ_FAILED", err)
	}

	out := &Response{
		Status:  resp.StatusCode,
		Headers: flattenHeaders(resp.Header),
		Body:    decodeBody(raw),
	}

	c.logger.Debug("http request completed",
		"method", req.Method,
		"url", req.URL.Redacted(),
		"status", resp.StatusCode,
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := string(raw)
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody] + "..."
		}
		return out, &connector.Error{
			Code:    strconv.Itoa(resp.StatusCode),
			Message: fmt.Sprintf("HTTP %d: %s", resp.StatusCode, body),
			Variables: map[string]any{
				"response": map[string]any{
					"status":  out.Status,
					"headers": out.Headers,
					"body":    out.Body,
				},
			},
		}
	}
	return out, nil
}

func (c *Client) build(ctx context.Context, r *Request) (*http.Request, error) {
	u, err := url.Parse(r.URL)
	if err != nil {
		return nil, connector.NewInputError("url: %v", err)
	}
	if len(r.QueryParameters) > 0 {
		q := u.Query()
		for k, v := range r.QueryParameters {
			q.Set(k, v)
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	contentType := ""
	switch b := r.Body.(type) {
	case nil:
	case string:
		body = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		if err != nil {
			return nil, connector.NewInputError("body: %v", err)
		}
		body = bytes.NewReader(raw)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, r.method(), u.String(), body)
	if err != nil {
		return nil, connector.NewInputError("create request: %v", err)
	}
	for k, v := range r.Headers {
		req.Header.Set(k, v)
	}
	if contentType != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", contentType)
	}

	switch r.Authentication.Type {
	case AuthBasic:
		req.SetBasicAuth(r.Authentication.Username, r.Authentication.Password)
	case AuthBearer:
		req.Header.Set("Authorization", "Bearer "+r.Authentication.Token)
	}
	return req, nil
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k := range h {
		out[k] = h.Get(k)
	}
	return out
}

// decodeBody возвращает JSON значение или строку. Пустое тело - nil.
func decodeBody(raw []byte) any {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	v, err := expression.DecodeJSON(raw)
	if err != nil {
		return string(raw)
	}
	return v
}
