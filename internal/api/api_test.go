package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/expression"
	"github.com/shaiso/Connectors/internal/inbound"
)

// fakeRegistry: InboundRegistry поверх фиксированных данных.
type fakeRegistry struct {
	targets   map[string]inbound.WebhookTarget
	instances []domain.ConnectorInstances
	logs      map[uuid.UUID][]domain.Activity
	lastQuery inbound.Query
}

func (f *fakeRegistry) Webhook(path string) (inbound.WebhookTarget, bool) {
	t, ok := f.targets[strings.Trim(path, "/")]
	return t, ok
}

func (f *fakeRegistry) Query(q inbound.Query) []domain.ActiveInboundConnector {
	f.lastQuery = q
	var out []domain.ActiveInboundConnector
	for _, group := range f.instances {
		for _, inst := range group.Instances {
			if q.Type == "" || inst.Type == q.Type {
				out = append(out, inst)
			}
		}
	}
	return out
}

func (f *fakeRegistry) Instances() []domain.ConnectorInstances { return f.instances }

func (f *fakeRegistry) InstancesByType(t string) (domain.ConnectorInstances, error) {
	for _, group := range f.instances {
		if group.ConnectorID == t {
			return group, nil
		}
	}
	return domain.ConnectorInstances{}, fmt.Errorf("%w: %s", inbound.ErrExecutableNotFound, t)
}

func (f *fakeRegistry) Logs(_ string, id uuid.UUID) ([]domain.Activity, error) {
	logs, ok := f.logs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", inbound.ErrExecutableNotFound, id)
	}
	return logs, nil
}

// fakeWebhook: webhook executable с заданным поведением.
type fakeWebhook struct {
	payload  connector.WebhookPayload
	result   *connector.WebhookResult
	err      error
	verify   *connector.WebhookHTTPResponse
	verifyOK bool
}

func (f *fakeWebhook) Activate(context.Context, connector.InboundContext) error { return nil }
func (f *fakeWebhook) Deactivate(context.Context) error                         { return nil }

func (f *fakeWebhook) TriggerWebhook(_ context.Context, p connector.WebhookPayload) (*connector.WebhookResult, error) {
	f.payload = p
	if f.err != nil {
		return nil, f.err
	}
	if f.result != nil {
		return f.result, nil
	}
	return &connector.WebhookResult{Request: connector.MappedRequest{Body: string(p.RawBody)}}, nil
}

// verifyingWebhook дополнительно реализует connector.Verifier.
type verifyingWebhook struct{ *fakeWebhook }

func (v verifyingWebhook) Verify(context.Context, connector.WebhookPayload) (*connector.WebhookHTTPResponse, error) {
	return v.verify, nil
}

// fakeContext: InboundContext с заданным результатом корреляции.
type fakeContext struct {
	result     domain.CorrelationResult
	correlated []connector.CorrelationRequest
	logs       []domain.Activity
}

func (c *fakeContext) Properties() map[string]any              { return nil }
func (c *fakeContext) BindProperties(any) error                { return nil }
func (c *fakeContext) Definition() connector.InboundDefinition { return connector.InboundDefinition{} }
func (c *fakeContext) CanActivate(any) domain.ActivationCheck  { return domain.ActivationCheck{} }
func (c *fakeContext) ReportHealth(domain.Health)              {}
func (c *fakeContext) Log(a domain.Activity)                   { c.logs = append(c.logs, a) }
func (c *fakeContext) Cancel(error)                            {}

func (c *fakeContext) Correlate(_ context.Context, req connector.CorrelationRequest) domain.CorrelationResult {
	c.correlated = append(c.correlated, req)
	return c.result
}

func newTestServer(t *testing.T, reg *fakeRegistry, cfg Config) *httptest.Server {
	t.Helper()
	cfg.Inbound = reg
	srv := httptest.NewServer(NewHandler(cfg).NewServeHandler())
	t.Cleanup(srv.Close)
	return srv
}

func webhookServer(t *testing.T, exec connector.WebhookExecutable, ic *fakeContext) *httptest.Server {
	t.Helper()
	reg := &fakeRegistry{targets: map[string]inbound.WebhookTarget{
		"orders": {ExecutableID: uuid.New(), Executable: exec, Context: ic},
	}}
	return newTestServer(t, reg, Config{})
}

func post(t *testing.T, url, body string, headers map[string]string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, url, strings.NewReader(body))
	require.NoError(t, err)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, string(raw)
}

func TestInboundWebhook_UnknownContext(t *testing.T) {
	srv := newTestServer(t, &fakeRegistry{}, Config{})

	resp, _ := post(t, srv.URL+"/inbound/missing", "{}", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestInboundWebhook_CorrelationResults(t *testing.T) {
	tests := []struct {
		name      string
		result    domain.CorrelationResult
		want      int
		wantBody  string
		emptyBody bool
	}{
		{name: "instance created", result: &domain.ProcessInstanceCreated{ProcessInstanceKey: "42"}, want: http.StatusCreated, wantBody: `"processInstanceKey":"42"`},
		{name: "message published", result: &domain.MessagePublished{MessageKey: "7"}, want: http.StatusOK, wantBody: `"messageKey":"7"`},
		{name: "already correlated", result: &domain.MessageAlreadyCorrelated{}, want: http.StatusOK},
		{name: "activation not met, discarded", result: domain.ActivationConditionNotMet(true), want: http.StatusOK, emptyBody: true},
		{name: "activation not met, forwarded", result: domain.ActivationConditionNotMet(false), want: http.StatusUnprocessableEntity, wantBody: "Activation condition not met"},
		{name: "invalid input", result: domain.InvalidInput("bad key", nil), want: http.StatusUnprocessableEntity, wantBody: `"message":"bad key"`},
		{name: "engine not found", result: domain.EngineStatus(codes.NotFound, "no process"), want: http.StatusNotFound, wantBody: "no process"},
		{name: "engine unavailable", result: domain.EngineStatus(codes.Unavailable, "down"), want: http.StatusServiceUnavailable, wantBody: "down"},
		// Внутренняя ошибка не раскрывается вызывающему
		{name: "other", result: domain.OtherFailure(errors.New("dial tcp 10.0.0.7:26500: refused")), want: http.StatusInternalServerError, emptyBody: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := &fakeContext{result: tt.result}
			srv := webhookServer(t, &fakeWebhook{}, ic)

			resp, body := post(t, srv.URL+"/inbound/orders", `{"id":1}`, nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.wantBody != "" {
				assert.Contains(t, body, tt.wantBody)
			}
			if tt.emptyBody {
				assert.Empty(t, body)
			}
			require.Len(t, ic.correlated, 1)
		})
	}
}

func TestInboundWebhook_IgnoredFailureUsesResponseExpression(t *testing.T) {
	called := false
	var seen connector.WebhookResultContext
	exec := &fakeWebhook{result: &connector.WebhookResult{
		Request: connector.MappedRequest{Body: map[string]any{"id": 1}},
		Response: func(rc connector.WebhookResultContext) (*connector.WebhookHTTPResponse, error) {
			called = true
			seen = rc
			return &connector.WebhookHTTPResponse{Body: map[string]any{"skipped": true}}, nil
		},
	}}
	srv := webhookServer(t, exec, &fakeContext{result: domain.ActivationConditionNotMet(true)})

	resp, body := post(t, srv.URL+"/inbound/orders", "{}", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"skipped":true}`, body)
	require.True(t, called)
	assert.Nil(t, seen.Correlation)
}

func TestInboundWebhook_ForwardedFailureSkipsResponseExpression(t *testing.T) {
	called := false
	exec := &fakeWebhook{result: &connector.WebhookResult{
		Response: func(connector.WebhookResultContext) (*connector.WebhookHTTPResponse, error) {
			called = true
			return &connector.WebhookHTTPResponse{Body: "ok"}, nil
		},
	}}
	srv := webhookServer(t, exec, &fakeContext{result: domain.ActivationConditionNotMet(false)})

	resp, _ := post(t, srv.URL+"/inbound/orders", "{}", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.False(t, called)
}

func TestInboundWebhook_PayloadMapping(t *testing.T) {
	exec := &fakeWebhook{}
	ic := &fakeContext{result: &domain.MessagePublished{}}
	srv := webhookServer(t, exec, ic)

	resp, _ := post(t, srv.URL+"/inbound/orders?source=shop&source=app", `{"id":1}`, map[string]string{
		"X-Signature":  "abc",
		"Content-Type": "application/json",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	p := exec.payload
	assert.Equal(t, http.MethodPost, p.Method)
	assert.Equal(t, "abc", p.Headers["x-signature"])
	assert.Equal(t, "application/json", p.Headers["content-type"])
	assert.Equal(t, "shop", p.Params["source"])
	assert.Equal(t, []string{"shop", "app"}, p.MultiQuery["source"])
	assert.Equal(t, `{"id":1}`, string(p.RawBody))
	assert.True(t, strings.HasPrefix(p.RequestURL, "http://"))
	assert.True(t, strings.HasSuffix(p.RequestURL, "/inbound/orders?source=shop&source=app"))

	require.NotEmpty(t, ic.logs)
	assert.Equal(t, tagWebhook, ic.logs[0].Tag)
}

func TestInboundWebhook_TriggerErrors(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		want     int
		wantBody string
	}{
		{"security", connector.NewSecurityError(connector.ReasonInvalidSignature, "bad hmac"), http.StatusUnauthorized, ""},
		{"forbidden", connector.NewSecurityError(connector.ReasonForbidden, "nope"), http.StatusForbidden, ""},
		{"method", &connector.WebhookError{StatusCode: http.StatusMethodNotAllowed, Message: "Method GET not supported"},
			http.StatusMethodNotAllowed, `"message":"Method GET not supported"`},
		{"expression", &expression.Error{Expression: "{{ .x }", Reason: "unexpected }"},
			http.StatusUnprocessableEntity, `"expression":"{{ .x }"`},
		{"connector", connector.NewError("AUTH_FAILED", "token expired"),
			http.StatusUnprocessableEntity, `"errorCode":"AUTH_FAILED"`},
		{"input", connector.NewInputError("unsupported content type"), http.StatusBadRequest, "unsupported content type"},
		{"other", errors.New("unexpected"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ic := &fakeContext{}
			srv := webhookServer(t, &fakeWebhook{err: tt.err}, ic)

			resp, body := post(t, srv.URL+"/inbound/orders", "{}", nil)
			assert.Equal(t, tt.want, resp.StatusCode)
			if tt.wantBody == "" {
				assert.Empty(t, body)
			} else {
				assert.Contains(t, body, tt.wantBody)
			}
			assert.Empty(t, ic.correlated)
		})
	}
}

func TestInboundWebhook_VerificationShortCircuits(t *testing.T) {
	exec := verifyingWebhook{&fakeWebhook{verify: &connector.WebhookHTTPResponse{
		Body: map[string]any{"challenge": "c-1"},
	}}}
	ic := &fakeContext{}
	srv := webhookServer(t, exec, ic)

	resp, body := post(t, srv.URL+"/inbound/orders", "{}", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"challenge":"c-1"}`, body)
	assert.Empty(t, ic.correlated)
}

func TestInboundWebhook_ResponseExpression(t *testing.T) {
	var seen connector.WebhookResultContext
	exec := &fakeWebhook{result: &connector.WebhookResult{
		Request: connector.MappedRequest{Body: map[string]any{"id": 1}},
		Response: func(rc connector.WebhookResultContext) (*connector.WebhookHTTPResponse, error) {
			seen = rc
			return &connector.WebhookHTTPResponse{
				Body:       "<b>accepted</b>",
				Headers:    map[string]string{"X-Handled": "1"},
				StatusCode: http.StatusAccepted,
			}, nil
		},
	}}
	ic := &fakeContext{result: &domain.ProcessInstanceCreated{ProcessInstanceKey: "1"}}
	srv := webhookServer(t, exec, ic)

	resp, body := post(t, srv.URL+"/inbound/orders", "{}", nil)
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("X-Handled"))
	assert.Equal(t, "&lt;b&gt;accepted&lt;/b&gt;", body)
	assert.IsType(t, &domain.ProcessInstanceCreated{}, seen.Correlation)
}

func TestInboundWebhook_ResponseDefaultsToCorrelationStatus(t *testing.T) {
	exec := &fakeWebhook{result: &connector.WebhookResult{
		Response: func(connector.WebhookResultContext) (*connector.WebhookHTTPResponse, error) {
			return &connector.WebhookHTTPResponse{Body: map[string]any{"ok": true}}, nil
		},
	}}
	srv := webhookServer(t, exec, &fakeContext{result: &domain.ProcessInstanceCreated{}})

	resp, body := post(t, srv.URL+"/inbound/orders", "{}", nil)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.JSONEq(t, `{"ok":true}`, body)
}

func TestInboundWebhook_BodyTooLarge(t *testing.T) {
	reg := &fakeRegistry{targets: map[string]inbound.WebhookTarget{
		"orders": {Executable: &fakeWebhook{}, Context: &fakeContext{}},
	}}
	srv := newTestServer(t, reg, Config{MaxBodyBytes: 8})

	resp, _ := post(t, srv.URL+"/inbound/orders", strings.Repeat("x", 64), nil)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestStatusForCode(t *testing.T) {
	tests := map[codes.Code]int{
		codes.Canceled:           499,
		codes.Unknown:            500,
		codes.Internal:           500,
		codes.DataLoss:           500,
		codes.InvalidArgument:    400,
		codes.DeadlineExceeded:   504,
		codes.NotFound:           404,
		codes.AlreadyExists:      409,
		codes.Aborted:            409,
		codes.PermissionDenied:   403,
		codes.ResourceExhausted:  429,
		codes.FailedPrecondition: 412,
		codes.OutOfRange:         416,
		codes.Unimplemented:      501,
		codes.Unavailable:        503,
		codes.Unauthenticated:    401,
		codes.OK:                 422,
	}
	for code, want := range tests {
		assert.Equal(t, want, StatusForCode(code), code.String())
	}
}

func sampleInstances(id uuid.UUID, health domain.HealthStatus) []domain.ConnectorInstances {
	return []domain.ConnectorInstances{{
		ConnectorID:   "io.camunda:webhook:1",
		ConnectorName: "Webhook",
		Instances: []domain.ActiveInboundConnector{{
			ExecutableID: id,
			Type:         "io.camunda:webhook:1",
			Health:       domain.Health{Status: health},
		}},
	}}
}

func getJSON(t *testing.T, url string, dst any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(dst))
	}
	return resp
}

func TestInstancesEndpoints(t *testing.T) {
	id := uuid.New()
	reg := &fakeRegistry{
		instances: sampleInstances(id, domain.HealthUp),
		logs: map[uuid.UUID][]domain.Activity{
			id: {domain.NewActivity(domain.SeverityInfo, "Webhook", "received")},
		},
	}
	srv := newTestServer(t, reg, Config{})

	var all []domain.ConnectorInstances
	getJSON(t, srv.URL+"/inbound-instances", &all)
	require.Len(t, all, 1)
	assert.Equal(t, id, all[0].Instances[0].ExecutableID)

	var one domain.ConnectorInstances
	getJSON(t, srv.URL+"/inbound-instances/io.camunda:webhook:1", &one)
	assert.Equal(t, "Webhook", one.ConnectorName)

	resp := getJSON(t, srv.URL+"/inbound-instances/unknown", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	var logs []domain.Activity
	getJSON(t, srv.URL+"/inbound-instances/io.camunda:webhook:1/executables/"+id.String()+"/logs", &logs)
	require.Len(t, logs, 1)
	assert.Equal(t, "received", logs[0].Message)

	resp = getJSON(t, srv.URL+"/inbound-instances/io.camunda:webhook:1/executables/not-a-uuid/logs", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/inbound-instances/io.camunda:webhook:1/executables/"+uuid.NewString()+"/logs", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestQueryInbound(t *testing.T) {
	reg := &fakeRegistry{instances: sampleInstances(uuid.New(), domain.HealthUp)}
	srv := newTestServer(t, reg, Config{})

	var active []domain.ActiveInboundConnector
	getJSON(t, srv.URL+"/inbound?type=io.camunda:webhook:1&bpmnProcessId=orders&elementId=start&tenantId=acme", &active)
	assert.Len(t, active, 1)
	assert.Equal(t, inbound.Query{
		Type: "io.camunda:webhook:1", BpmnProcessID: "orders", ElementID: "start", TenantID: "acme",
	}, reg.lastQuery)

	getJSON(t, srv.URL+"/inbound?type=other", &active)
	assert.Empty(t, active)
}

func TestListOutbound(t *testing.T) {
	connectors := connector.NewRegistry()
	connectors.RegisterOutbound(connector.OutboundDefinition{
		Name: "REST", Type: "io.camunda:http-json:1", Timeout: 2 * time.Second,
	}, connector.OutboundFunc(func(context.Context, connector.OutboundContext) (any, error) { return nil, nil }))
	srv := newTestServer(t, &fakeRegistry{}, Config{Connectors: connectors})

	var out []OutboundConnectorResponse
	getJSON(t, srv.URL+"/outbound-connectors", &out)
	require.Len(t, out, 1)
	assert.Equal(t, OutboundConnectorResponse{
		Name: "REST", Type: "io.camunda:http-json:1", InputVariables: []string{}, TimeoutMs: 2000,
	}, out[0])
}

func TestClusterInstances(t *testing.T) {
	id := uuid.New()
	peer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/inbound-instances", r.URL.Path)
		JSON(w, http.StatusOK, sampleInstances(id, domain.HealthDown))
	}))
	defer peer.Close()

	broken := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer broken.Close()

	reg := &fakeRegistry{instances: sampleInstances(id, domain.HealthUp)}
	srv := newTestServer(t, reg, Config{Peers: []string{peer.URL + "/", broken.URL}})

	var merged []domain.ConnectorInstances
	resp := getJSON(t, srv.URL+"/cluster/inbound-instances", &merged)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, broken.URL, resp.Header.Get(UnreachablePeersHeader))

	require.Len(t, merged, 1)
	require.Len(t, merged[0].Instances, 1)
	assert.Equal(t, domain.HealthDown, merged[0].Instances[0].Health.Status)
}

func TestClusterInstances_PeerOrderIsStable(t *testing.T) {
	id := uuid.New()
	downWith := func(msg string) []domain.ConnectorInstances {
		report := sampleInstances(id, domain.HealthDown)
		report[0].Instances[0].Health.Error = &domain.HealthError{Message: msg}
		return report
	}

	// Первый peer отвечает позже второго, но при равном статусе побеждает он
	slow := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		JSON(w, http.StatusOK, downWith("slow peer"))
	}))
	defer slow.Close()
	fast := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		JSON(w, http.StatusOK, downWith("fast peer"))
	}))
	defer fast.Close()

	reg := &fakeRegistry{instances: sampleInstances(id, domain.HealthUp)}
	srv := newTestServer(t, reg, Config{Peers: []string{slow.URL, fast.URL}})

	for range 3 {
		var merged []domain.ConnectorInstances
		resp := getJSON(t, srv.URL+"/cluster/inbound-instances", &merged)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Len(t, merged, 1)
		require.Len(t, merged[0].Instances, 1)
		require.NotNil(t, merged[0].Instances[0].Health.Error)
		assert.Equal(t, "slow peer", merged[0].Instances[0].Health.Error.Message)
	}
}

func TestHealthzAndRequestID(t *testing.T) {
	srv := newTestServer(t, &fakeRegistry{}, Config{})

	resp := getJSON(t, srv.URL+"/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp = getJSON(t, srv.URL+"/inbound-instances", nil)
	assert.NotEmpty(t, resp.Header.Get(RequestIDHeader))
}
