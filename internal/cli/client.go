package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// --- API response types ---

// HealthResponse: состояние executable.
type HealthResponse struct {
	Status  string         `json:"status"`
	Error   *HealthError   `json:"error,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// HealthError: причина состояния DOWN.
type HealthError struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
}

// ElementResponse: элемент процесса, к которому привязан executable.
type ElementResponse struct {
	BpmnProcessID        string `json:"bpmnProcessId"`
	Version              int    `json:"version"`
	ProcessDefinitionKey string `json:"processDefinitionKey"`
	ElementID            string `json:"elementId"`
	TenantID             string `json:"tenantId"`
}

// ExecutableResponse: активный inbound executable.
type ExecutableResponse struct {
	ExecutableID        string            `json:"executableId"`
	Type                string            `json:"type"`
	TenantID            string            `json:"tenantId"`
	Elements            []ElementResponse `json:"elements"`
	Data                map[string]string `json:"data,omitempty"`
	Health              HealthResponse    `json:"health"`
	ActivationTimestamp int64             `json:"activationTimestamp"`
}

// InstancesResponse: executables одного типа коннектора.
type InstancesResponse struct {
	ConnectorID   string               `json:"connectorId"`
	ConnectorName string               `json:"connectorName"`
	Instances     []ExecutableResponse `json:"instances"`
}

// ActivityResponse: запись журнала активности.
type ActivityResponse struct {
	Severity  string `json:"severity"`
	Tag       string `json:"tag"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// OutboundResponse: зарегистрированный outbound коннектор.
type OutboundResponse struct {
	Name           string   `json:"name"`
	Type           string   `json:"type"`
	InputVariables []string `json:"inputVariables"`
	TimeoutMs      int64    `json:"timeout,omitempty"`
}

// ClusterResponse: объединённый ответ узлов кластера.
type ClusterResponse struct {
	Instances   []InstancesResponse
	Unreachable []string
}

// WebhookResponse: ответ runtime на вызов webhook.
type WebhookResponse struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// --- API request types ---

// WebhookRequest: параметры вызова webhook.
type WebhookRequest struct {
	Method  string
	Query   url.Values
	Headers map[string]string
	Body    []byte
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// unreachablePeersHeader перечисляет узлы, не ответившие на cluster-запрос.
const unreachablePeersHeader = "X-Unreachable-Peers"

// --- Client ---

// Client: HTTP-клиент для runtime API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Inbound instances ---

// ListInstances возвращает executables, сгруппированные по типу.
func (c *Client) ListInstances() ([]InstancesResponse, error) {
	var instances []InstancesResponse
	err := c.get("/inbound-instances", nil, &instances)
	return instances, err
}

// GetInstances возвращает executables одного типа коннектора.
func (c *Client) GetInstances(connectorType string) (*InstancesResponse, error) {
	var instances InstancesResponse
	err := c.get("/inbound-instances/"+url.PathEscape(connectorType), nil, &instances)
	return &instances, err
}

// GetLogs возвращает журнал активности executable.
func (c *Client) GetLogs(connectorType, executableID string) ([]ActivityResponse, error) {
	var logs []ActivityResponse
	path := "/inbound-instances/" + url.PathEscape(connectorType) +
		"/executables/" + url.PathEscape(executableID) + "/logs"
	err := c.get(path, nil, &logs)
	return logs, err
}

// ClusterInstances возвращает объединённое представление всех узлов.
func (c *Client) ClusterInstances() (*ClusterResponse, error) {
	resp, err := c.do(http.MethodGet, "/cluster/inbound-instances", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return nil, err
	}

	var cr ClusterResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr.Instances); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if v := resp.Header.Get(unreachablePeersHeader); v != "" {
		for _, peer := range strings.Split(v, ",") {
			cr.Unreachable = append(cr.Unreachable, strings.TrimSpace(peer))
		}
	}
	return &cr, nil
}

// --- Outbound ---

// ListOutbound возвращает зарегистрированные outbound коннекторы.
func (c *Client) ListOutbound() ([]OutboundResponse, error) {
	var connectors []OutboundResponse
	err := c.get("/outbound-connectors", nil, &connectors)
	return connectors, err
}

// --- Webhooks ---

// SendWebhook вызывает webhook по context path.
//
// Ответ возвращается как есть: статус webhook-эндпоинта является
// частью результата, а не ошибкой клиента.
func (c *Client) SendWebhook(contextPath string, req WebhookRequest) (*WebhookResponse, error) {
	method := req.Method
	if method == "" {
		method = http.MethodPost
	}

	target := c.WebhookURL(contextPath)
	if len(req.Query) > 0 {
		target += "?" + req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		body = bytes.NewReader(req.Body)
	}

	httpReq, err := http.NewRequest(method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Body != nil && httpReq.Header.Get("Content-Type") == "" {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &WebhookResponse{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}

// WebhookURL возвращает полный URL webhook для context path.
func (c *Client) WebhookURL(contextPath string) string {
	return c.baseURL + "/inbound/" + strings.TrimLeft(contextPath, "/")
}

// --- HTTP helpers ---

func (c *Client) get(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *Client) do(method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error.Message == "" {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
