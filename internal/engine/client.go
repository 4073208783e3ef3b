package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// Config: конфигурация клиента.
type Config struct {
	// BaseURL: адрес REST API движка, например http://localhost:8080.
	BaseURL string

	// Token: bearer токен (опционально).
	Token string

	// Timeout: таймаут HTTP запросов (по умолчанию 30s).
	// Для ActivateJobs к нему добавляется RequestTimeout long polling.
	Timeout time.Duration

	// HTTPClient: собственный HTTP клиент (для тестов).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// Client: HTTP клиент REST API движка.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	logger     *slog.Logger
}

// New создаёт клиент.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout + time.Minute}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		httpClient: httpClient,
		logger:     telemetry.OrDefault(cfg.Logger),
	}
}

// --- Process instances ---

// CreateInstanceCommand: создание process instance.
type CreateInstanceCommand struct {
	BpmnProcessID string         `json:"processDefinitionId"`
	Version       int            `json:"processDefinitionVersion,omitempty"`
	TenantID      string         `json:"tenantId,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// ProcessInstance: созданный process instance.
type ProcessInstance struct {
	ProcessInstanceKey   string `json:"processInstanceKey"`
	ProcessDefinitionKey string `json:"processDefinitionKey"`
	BpmnProcessID        string `json:"processDefinitionId"`
	Version              int    `json:"processDefinitionVersion"`
	TenantID             string `json:"tenantId"`
}

// CreateProcessInstance создаёт process instance.
func (c *Client) CreateProcessInstance(ctx context.Context, cmd CreateInstanceCommand) (*ProcessInstance, error) {
	var out ProcessInstance
	if err := c.post(ctx, "/v2/process-instances", cmd, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Messages ---

// PublishMessageCommand: публикация сообщения.
type PublishMessageCommand struct {
	Name           string
	CorrelationKey string
	TTL            time.Duration
	MessageID      string
	TenantID       string
	Variables      map[string]any
}

// PublishedMessage: ответ на публикацию.
type PublishedMessage struct {
	MessageKey string `json:"messageKey"`
	TenantID   string `json:"tenantId"`
}

// PublishMessage публикует сообщение.
// Повторная публикация с тем же MessageID даёт StatusError с codes.AlreadyExists.
func (c *Client) PublishMessage(ctx context.Context, cmd PublishMessageCommand) (*PublishedMessage, error) {
	body := map[string]any{
		"name":           cmd.Name,
		"correlationKey": cmd.CorrelationKey,
		"timeToLive":     cmd.TTL.Milliseconds(),
	}
	if cmd.MessageID != "" {
		body["messageId"] = cmd.MessageID
	}
	if cmd.TenantID != "" {
		body["tenantId"] = cmd.TenantID
	}
	if cmd.Variables != nil {
		body["variables"] = cmd.Variables
	}

	var out PublishedMessage
	if err := c.post(ctx, "/v2/messages/publication", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// --- Jobs ---

// ActivateJobsCommand: запрос заданий одного типа.
type ActivateJobsCommand struct {
	Type           string
	Worker         string
	Timeout        time.Duration
	MaxJobs        int
	FetchVariables []string
	RequestTimeout time.Duration
	TenantIDs      []string
}

// ActivateJobs активирует задания (long polling до RequestTimeout).
func (c *Client) ActivateJobs(ctx context.Context, cmd ActivateJobsCommand) ([]domain.Job, error) {
	body := map[string]any{
		"type":              cmd.Type,
		"worker":            cmd.Worker,
		"timeout":           cmd.Timeout.Milliseconds(),
		"maxJobsToActivate": cmd.MaxJobs,
	}
	if len(cmd.FetchVariables) > 0 {
		body["fetchVariable"] = cmd.FetchVariables
	}
	if cmd.RequestTimeout > 0 {
		body["requestTimeout"] = cmd.RequestTimeout.Milliseconds()
	}
	if len(cmd.TenantIDs) > 0 {
		body["tenantIds"] = cmd.TenantIDs
	}

	var out struct {
		Jobs []domain.Job `json:"jobs"`
	}
	if err := c.post(ctx, "/v2/jobs/activation", body, &out); err != nil {
		return nil, err
	}
	return out.Jobs, nil
}

// CompleteJob завершает задание с переменными.
func (c *Client) CompleteJob(ctx context.Context, jobKey string, variables map[string]any) error {
	body := map[string]any{}
	if variables != nil {
		body["variables"] = variables
	}
	return c.post(ctx, "/v2/jobs/"+url.PathEscape(jobKey)+"/completion", body, nil)
}

// FailJobCommand: неуспешное завершение задания.
type FailJobCommand struct {
	Retries      int
	ErrorMessage string
	RetryBackoff time.Duration
	Variables    map[string]any
}

// FailJob завершает задание ошибкой. При Retries == 0 движок создаёт инцидент.
func (c *Client) FailJob(ctx context.Context, jobKey string, cmd FailJobCommand) error {
	body := map[string]any{
		"retries":      cmd.Retries,
		"errorMessage": cmd.ErrorMessage,
	}
	if cmd.RetryBackoff > 0 {
		body["retryBackOff"] = cmd.RetryBackoff.Milliseconds()
	}
	if cmd.Variables != nil {
		body["variables"] = cmd.Variables
	}
	return c.post(ctx, "/v2/jobs/"+url.PathEscape(jobKey)+"/failure", body, nil)
}

// ThrowError бросает BPMN ошибку из задания.
func (c *Client) ThrowError(ctx context.Context, jobKey, code, message string, variables map[string]any) error {
	body := map[string]any{
		"errorCode":    code,
		"errorMessage": message,
	}
	if variables != nil {
		body["variables"] = variables
	}
	return c.post(ctx, "/v2/jobs/"+url.PathEscape(jobKey)+"/error", body, nil)
}

// --- Internal ---

// problemDetail: тело ошибки API (RFC 7807).
type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail"`
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: marshal request: %v", ErrRequest, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: create request: %v", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrRequest, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return c.statusError(resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil && err != io.EOF {
		return fmt.Errorf("%w: decode response: %v", ErrRequest, err)
	}
	return nil
}

func (c *Client) statusError(resp *http.Response) error {
	se := &StatusError{
		HTTPStatus: resp.StatusCode,
		Code:       CodeFromHTTP(resp.StatusCode),
	}

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var pd problemDetail
	if err := json.Unmarshal(raw, &pd); err == nil {
		se.Title = pd.Title
		se.Detail = pd.Detail
	} else {
		se.Detail = strings.TrimSpace(string(raw))
	}

	c.logger.Debug("engine request failed",
		"status", resp.StatusCode,
		"code", se.Code.String(),
		"detail", se.Detail,
	)
	return se
}
