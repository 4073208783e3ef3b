package cli

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shaiso/Connectors/connectors/webhook"
	"github.com/shaiso/Connectors/internal/connector"
)

const instancesJSON = `[{
	"connectorId": "io.camunda:webhook:1",
	"connectorName": "Webhook",
	"instances": [{
		"executableId": "0b6f0a4e-3c1f-5b7a-9d35-2a8e6c1f4b10",
		"type": "io.camunda:webhook:1",
		"tenantId": "<default>",
		"elements": [{"bpmnProcessId": "order", "version": 3, "elementId": "start", "tenantId": "<default>"}],
		"health": {"status": "UP"},
		"activationTimestamp": 1700000000000
	}]
}]`

func runCLI(t *testing.T, apiURL string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd("test", &stdout, &stderr)
	cmd.SetArgs(append([]string{"--api-url", apiURL}, args...))
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestClient_ListInstances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inbound-instances", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, instancesJSON)
	}))
	defer srv.Close()

	instances, err := NewClient(srv.URL + "/").ListInstances()
	require.NoError(t, err)
	require.Len(t, instances, 1)
	assert.Equal(t, "io.camunda:webhook:1", instances[0].ConnectorID)
	require.Len(t, instances[0].Instances, 1)
	assert.Equal(t, "UP", instances[0].Instances[0].Health.Status)
	assert.Equal(t, "order", instances[0].Instances[0].Elements[0].BpmnProcessID)
}

func TestClient_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		io.WriteString(w, `{"error":{"code":"NOT_FOUND","message":"no executable"}}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).GetInstances("io.camunda:unknown:1")
	require.Error(t, err)
	assert.Equal(t, "NOT_FOUND: no executable", err.Error())
}

func TestClient_ErrorWithoutEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).ListOutbound()
	require.Error(t, err)
	assert.Equal(t, "API error: HTTP 502", err.Error())
}

func TestClient_GetLogsEscapesPath(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.EscapedPath()
		io.WriteString(w, `[{"severity":"INFO","tag":"Activation","message":"activated","timestamp":"2024-01-01T00:00:00Z"}]`)
	}))
	defer srv.Close()

	logs, err := NewClient(srv.URL).GetLogs("io.camunda:webhook:1", "abc")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "activated", logs[0].Message)
	assert.Equal(t, "/inbound-instances/io.camunda:webhook:1/executables/abc/logs", gotPath)
}

func TestClient_ClusterInstancesUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/cluster/inbound-instances", r.URL.Path)
		w.Header().Set(unreachablePeersHeader, "http://a:8085, http://b:8085")
		io.WriteString(w, instancesJSON)
	}))
	defer srv.Close()

	cluster, err := NewClient(srv.URL).ClusterInstances()
	require.NoError(t, err)
	assert.Len(t, cluster.Instances, 1)
	assert.Equal(t, []string{"http://a:8085", "http://b:8085"}, cluster.Unreachable)
}

func TestClient_SendWebhookReturnsStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/inbound/orders", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		assert.JSONEq(t, `{"id":1}`, string(body))
		w.WriteHeader(http.StatusUnprocessableEntity)
		io.WriteString(w, `{"errorCode":"BAD","message":"nope"}`)
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL).SendWebhook("/orders", WebhookRequest{
		Method: http.MethodPut,
		Query:  url.Values{"page": {"1"}},
		Body:   []byte(`{"id":1}`),
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.JSONEq(t, `{"errorCode":"BAD","message":"nope"}`, string(resp.Body))
}

func TestSignRequest_VerifiedByWebhookConnector(t *testing.T) {
	tests := []struct {
		name   string
		scopes string
		method string
	}{
		{"body", "", http.MethodPost},
		{"url", "URL", http.MethodPost},
		{"url and parameters", "URL,PARAMETERS", http.MethodGet},
		{"default for get", "", http.MethodGet},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scopes, err := webhook.ParseScopes(tt.scopes)
			require.NoError(t, err)

			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				body, _ := io.ReadAll(r.Body)
				headers := make(map[string]string)
				for k := range r.Header {
					headers[k] = r.Header.Get(k)
				}
				params := make(map[string]string)
				for k := range r.URL.Query() {
					params[k] = r.URL.Query().Get(k)
				}
				err := webhook.VerifyHMAC(connector.WebhookPayload{
					RequestURL: "http://" + r.Host + r.URL.RequestURI(),
					Method:     r.Method,
					Headers:    headers,
					Params:     params,
					RawBody:    body,
				}, webhook.HMACConfig{
					Secret:    "s3cr3t",
					Header:    "X-Hub-Signature",
					Algorithm: webhook.SHA256,
					Scopes:    scopes,
				})
				if !assert.NoError(t, err) {
					w.WriteHeader(http.StatusUnauthorized)
					return
				}
				w.WriteHeader(http.StatusOK)
			}))
			defer srv.Close()

			_, stderr, err := runCLI(t, srv.URL,
				"webhook", "send", "orders",
				"-X", tt.method,
				"-d", `{"order":42}`,
				"-q", "b=2", "-q", "a=1",
				"--hmac-secret", "s3cr3t",
				"--hmac-header", "X-Hub-Signature",
				"--hmac-scopes", tt.scopes,
			)
			require.NoError(t, err)
			assert.Contains(t, stderr, "HTTP 200")
		})
	}
}

func TestWebhookSend_ErrorStatusFailsCommand(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/xml", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, stderr, err := runCLI(t, srv.URL, "webhook", "send", "missing", "-d", "<a/>", "-H", "Content-Type: application/xml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, stderr, "HTTP 404 Not Found")
}

func TestWebhookSend_InvalidHeader(t *testing.T) {
	_, _, err := runCLI(t, "http://127.0.0.1:1", "webhook", "send", "x", "-H", "no-separator")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid --header")
}

func TestHMACSign(t *testing.T) {
	stdout, _, err := runCLI(t, "http://unused", "--json",
		"hmac", "sign", "--secret", "key", "-d", "The quick brown fox jumps over the lazy dog")
	require.NoError(t, err)

	var out map[string]string
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	assert.Equal(t, "sha_256", out["algorithm"])
	assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", out["signature"])
}

func TestHMACSign_UnknownAlgorithm(t *testing.T) {
	_, _, err := runCLI(t, "http://unused", "hmac", "sign", "--secret", "key", "--algorithm", "md5", "-d", "x")
	require.Error(t, err)
}

func TestInstancesList_Table(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, instancesJSON)
	}))
	defer srv.Close()

	stdout, _, err := runCLI(t, srv.URL, "instances", "list")
	require.NoError(t, err)
	assert.Contains(t, stdout, "EXECUTABLE")
	assert.Contains(t, stdout, "0b6f0a4e-3c1f-5b7a-9d35-2a8e6c1f4b10")
	assert.Contains(t, stdout, "order/start v3")
	assert.Contains(t, stdout, "2023-11-14T22:13:20Z")
}

func TestOutboundList_JSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/outbound-connectors", r.URL.Path)
		io.WriteString(w, `[{"name":"REST","type":"io.camunda:http-json:1","inputVariables":["url","method"],"timeout":300000}]`)
	}))
	defer srv.Close()

	stdout, _, err := runCLI(t, srv.URL, "--json", "outbound", "list")
	require.NoError(t, err)

	var out []OutboundResponse
	require.NoError(t, json.Unmarshal([]byte(stdout), &out))
	require.Len(t, out, 1)
	assert.Equal(t, "io.camunda:http-json:1", out[0].Type)
	assert.Equal(t, int64(300000), out[0].TimeoutMs)
}

func TestClusterInstances_WarnsAboutUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(unreachablePeersHeader, "http://down:8085")
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	_, stderr, err := runCLI(t, srv.URL, "cluster", "instances")
	require.NoError(t, err)
	assert.Contains(t, stderr, "Warning: unreachable peers: http://down:8085")
}

func TestParsePairs(t *testing.T) {
	got, err := parsePairs([]string{"X-Token: abc", "Accept:text/plain"}, ":")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"X-Token": "abc", "Accept": "text/plain"}, got)

	_, err = parsePairs([]string{"=value"}, "=")
	assert.Error(t, err)
}
