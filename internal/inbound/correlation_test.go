package inbound

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/engine"
	"github.com/shaiso/Connectors/internal/expression"
)

// fakeEngine записывает команды и отвечает заданными ошибками.
type fakeEngine struct {
	mu         sync.Mutex
	created    []engine.CreateInstanceCommand
	published  []engine.PublishMessageCommand
	createErr  error
	publishErr error
}

func (f *fakeEngine) CreateProcessInstance(_ context.Context, cmd engine.CreateInstanceCommand) (*engine.ProcessInstance, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.created = append(f.created, cmd)
	return &engine.ProcessInstance{ProcessInstanceKey: "100", BpmnProcessID: cmd.BpmnProcessID}, nil
}

func (f *fakeEngine) PublishMessage(_ context.Context, cmd engine.PublishMessageCommand) (*engine.PublishedMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return nil, f.publishErr
	}
	f.published = append(f.published, cmd)
	return &engine.PublishedMessage{MessageKey: "200"}, nil
}

func startElement(id string, props map[string]string) domain.InboundElement {
	base := map[string]string{domain.KeyInboundType: "io.camunda:webhook:1"}
	for k, v := range props {
		base[k] = v
	}
	return domain.InboundElement{
		ProcessElement: domain.ProcessElement{
			BpmnProcessID: "order-process", Version: 2, ProcessDefinitionKey: "1", ElementID: id, TenantID: domain.DefaultTenantID,
		},
		CorrelationPoint: domain.CorrelationPoint{Kind: domain.CorrelationStartEvent},
		Properties:       base,
	}
}

func messageElement(id string, kind domain.CorrelationPointKind, props map[string]string) domain.InboundElement {
	el := startElement(id, props)
	el.CorrelationPoint = domain.CorrelationPoint{Kind: kind, MessageName: "payment"}
	return el
}

func event() map[string]any {
	return map[string]any{
		"request": map[string]any{
			"body": map[string]any{"orderId": "o-1", "ok": true, "amount": 10},
		},
	}
}

func TestCorrelate_StartEvent(t *testing.T) {
	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng})

	el := startElement("start", map[string]string{
		domain.KeyActivationCondition: "=request.body.ok",
		domain.KeyResultVariable:      "payload",
	})

	result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "")

	created, ok := result.(*domain.ProcessInstanceCreated)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, "100", created.ProcessInstanceKey)
	assert.Equal(t, "start", created.Element.ElementID)

	require.Len(t, eng.created, 1)
	assert.Equal(t, "order-process", eng.created[0].BpmnProcessID)
	assert.Equal(t, 2, eng.created[0].Version)
	assert.Contains(t, eng.created[0].Variables, "payload")
}

func TestCorrelate_StartEventWithoutMapping(t *testing.T) {
	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng})

	result := h.Correlate(context.Background(), []domain.InboundElement{startElement("start", nil)}, event(), "")

	assert.True(t, result.IsSuccess())
	require.Len(t, eng.created, 1)
	assert.Equal(t, map[string]any{}, eng.created[0].Variables)
}

func TestCorrelate_ResultExpression(t *testing.T) {
	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng})

	el := startElement("start", map[string]string{
		domain.KeyResultVariable:   "raw",
		domain.KeyResultExpression: `={"orderId": {{json .request.body.orderId}}}`,
	})
	result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "")

	require.True(t, result.IsSuccess())
	vars := eng.created[0].Variables
	assert.Equal(t, "o-1", vars["orderId"])
	assert.Contains(t, vars, "raw")
}

func TestCorrelate_ActivationConditionNotMet(t *testing.T) {
	tests := []struct {
		name    string
		consume string
		discard bool
	}{
		{"forward to upstream", "", false},
		{"consume unmatched", "true", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCorrelationHandler(CorrelationConfig{Engine: &fakeEngine{}})
			el := startElement("start", map[string]string{
				domain.KeyActivationCondition:    `={{ eq .request.body.orderId "other" }}`,
				domain.KeyConsumeUnmatchedEvents: tt.consume,
			})

			result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "")

			failure, ok := result.(*domain.CorrelationFailure)
			require.True(t, ok)
			assert.Equal(t, domain.FailureActivationConditionNotMet, failure.Reason)
			assert.Equal(t, tt.discard, failure.Discard)
			assert.Equal(t, !tt.discard, failure.Strategy().Forward)
		})
	}
}

func TestCorrelate_MultipleMatches(t *testing.T) {
	h := NewCorrelationHandler(CorrelationConfig{Engine: &fakeEngine{}})
	elements := []domain.InboundElement{startElement("a", nil), startElement("b", nil)}

	result := h.Correlate(context.Background(), elements, event(), "")

	failure, ok := result.(*domain.CorrelationFailure)
	require.True(t, ok)
	assert.Equal(t, domain.FailureInvalidInput, failure.Reason)
	assert.ErrorIs(t, failure, ErrMultipleMatches)
	assert.Equal(t, "Multiple connectors are activated for the same input", failure.Message())
}

func TestCorrelate_SelectsMatchingElement(t *testing.T) {
	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng})
	elements := []domain.InboundElement{
		startElement("a", map[string]string{domain.KeyActivationCondition: "=false"}),
		startElement("b", map[string]string{domain.KeyActivationCondition: "=request.body.ok"}),
	}

	result := h.Correlate(context.Background(), elements, event(), "")

	created, ok := result.(*domain.ProcessInstanceCreated)
	require.True(t, ok)
	assert.Equal(t, "b", created.Element.ElementID)
}

func TestCorrelate_InvalidCondition(t *testing.T) {
	h := NewCorrelationHandler(CorrelationConfig{Engine: &fakeEngine{}})
	el := startElement("start", map[string]string{domain.KeyActivationCondition: "={{ if }}"})

	result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "")

	failure, ok := result.(*domain.CorrelationFailure)
	require.True(t, ok)
	assert.Equal(t, domain.FailureInvalidInput, failure.Reason)
}

func TestCorrelate_Message(t *testing.T) {
	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng})

	el := messageElement("catch", domain.CorrelationMessage, map[string]string{
		domain.KeyCorrelationKeyExpr:  "=request.body.orderId",
		domain.KeyMessageIDExpression: "=request.body.amount",
		domain.KeyMessageTTL:          "PT5M",
		domain.KeyResultVariable:      "payment",
	})

	result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "ignored")

	published, ok := result.(*domain.MessagePublished)
	require.True(t, ok, "got %#v", result)
	assert.Equal(t, "200", published.MessageKey)

	require.Len(t, eng.published, 1)
	cmd := eng.published[0]
	assert.Equal(t, "payment", cmd.Name)
	assert.Equal(t, "o-1", cmd.CorrelationKey)
	assert.Equal(t, "10", cmd.MessageID)
	assert.Equal(t, 5*time.Minute, cmd.TTL)
	assert.Contains(t, cmd.Variables, "payment")
}

func TestCorrelate_MessageDefaults(t *testing.T) {
	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng, DefaultTTL: 30 * time.Second})

	el := messageElement("catch", domain.CorrelationMessage, map[string]string{
		domain.KeyCorrelationKeyExpr: "=request.body.orderId",
	})
	result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "m-1")

	require.True(t, result.IsSuccess())
	cmd := eng.published[0]
	assert.Equal(t, "m-1", cmd.MessageID)
	assert.Equal(t, 30*time.Second, cmd.TTL)
	assert.Nil(t, cmd.Variables)
}

func TestCorrelate_CorrelationKey(t *testing.T) {
	tests := []struct {
		name    string
		kind    domain.CorrelationPointKind
		props   map[string]string
		success bool
	}{
		{
			name:    "intermediate event requires key",
			kind:    domain.CorrelationMessage,
			props:   map[string]string{domain.KeyCorrelationKeyExpr: "=request.body.missing"},
			success: false,
		},
		{
			name:    "message start event without key",
			kind:    domain.CorrelationMessageStart,
			props:   nil,
			success: true,
		},
		{
			name:    "intermediate event with broken key expression",
			kind:    domain.CorrelationMessage,
			props:   map[string]string{domain.KeyCorrelationKeyExpr: "={{ if }}"},
			success: false,
		},
		{
			name:    "message start event with broken key expression",
			kind:    domain.CorrelationMessageStart,
			props:   map[string]string{domain.KeyCorrelationKeyExpr: "={{ if }}"},
			success: true,
		},
		{
			name: "message start event with required key",
			kind: domain.CorrelationMessageStart,
			props: map[string]string{
				domain.KeyCorrelationKeyExpr:  "=request.body.missing",
				domain.KeyCorrelationRequired: "required",
			},
			success: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			eng := &fakeEngine{}
			h := NewCorrelationHandler(CorrelationConfig{Engine: eng})
			el := messageElement("msg", tt.kind, tt.props)

			result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "")

			assert.Equal(t, tt.success, result.IsSuccess())
			if !tt.success {
				failure := result.(*domain.CorrelationFailure)
				assert.Equal(t, domain.FailureInvalidInput, failure.Reason)
				assert.Contains(t, failure.Message(), "Wasn't able to obtain correlation key for expression")
				assert.Empty(t, eng.published)
			} else {
				require.Len(t, eng.published, 1)
				assert.Empty(t, eng.published[0].CorrelationKey)
			}
		})
	}
}

func TestCorrelate_PreservesJSONValues(t *testing.T) {
	// Тело как после разбора webhook: числа остаются json.Number
	body, err := expression.DecodeJSON([]byte(`{"orderId": 9007199254740993, "ref": "1.0"}`))
	require.NoError(t, err)
	data := map[string]any{"request": map[string]any{"body": body}}

	eng := &fakeEngine{}
	h := NewCorrelationHandler(CorrelationConfig{Engine: eng})
	el := messageElement("catch", domain.CorrelationMessage, map[string]string{
		domain.KeyCorrelationKeyExpr:  "=request.body.orderId",
		domain.KeyMessageIDExpression: "={{ .request.body.ref }}",
		domain.KeyResultExpression:    `={"orderId": {{ .request.body.orderId }}, "ref": {{ json .request.body.ref }}}`,
	})

	result := h.Correlate(context.Background(), []domain.InboundElement{el}, data, "")
	require.True(t, result.IsSuccess(), "got %#v", result)

	require.Len(t, eng.published, 1)
	cmd := eng.published[0]
	assert.Equal(t, "9007199254740993", cmd.CorrelationKey)
	assert.Equal(t, "1.0", cmd.MessageID)

	vars, err := json.Marshal(cmd.Variables)
	require.NoError(t, err)
	assert.JSONEq(t, `{"orderId": 9007199254740993, "ref": "1.0"}`, string(vars))
	assert.Contains(t, string(vars), "9007199254740993")
}

func TestCorrelate_EngineErrors(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		success   bool
		reason    domain.FailureReason
		retryable bool
	}{
		{
			name:    "already exists",
			err:     &engine.StatusError{HTTPStatus: http.StatusConflict, Code: codes.AlreadyExists},
			success: true,
		},
		{
			name:      "unavailable",
			err:       &engine.StatusError{HTTPStatus: http.StatusServiceUnavailable, Code: codes.Unavailable},
			reason:    domain.FailureEngineStatus,
			retryable: true,
		},
		{
			name:      "invalid argument",
			err:       &engine.StatusError{HTTPStatus: http.StatusBadRequest, Code: codes.InvalidArgument},
			reason:    domain.FailureEngineStatus,
			retryable: false,
		},
		{
			name:      "network",
			err:       errors.New("connection refused"),
			reason:    domain.FailureOther,
			retryable: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewCorrelationHandler(CorrelationConfig{Engine: &fakeEngine{publishErr: tt.err}})
			el := messageElement("catch", domain.CorrelationMessageStart, nil)

			result := h.Correlate(context.Background(), []domain.InboundElement{el}, event(), "m-1")

			if tt.success {
				_, ok := result.(*domain.MessageAlreadyCorrelated)
				assert.True(t, ok)
				return
			}
			failure, ok := result.(*domain.CorrelationFailure)
			require.True(t, ok)
			assert.Equal(t, tt.reason, failure.Reason)
			assert.Equal(t, tt.retryable, failure.Strategy().Retryable)
		})
	}
}

func TestCanActivate(t *testing.T) {
	h := NewCorrelationHandler(CorrelationConfig{Engine: &fakeEngine{}})
	el := startElement("start", map[string]string{domain.KeyActivationCondition: "=request.body.ok"})

	check := h.CanActivate([]domain.InboundElement{el}, event())
	require.True(t, check.CanActivate())
	assert.Equal(t, "start", check.Element.ElementID)

	check = h.CanActivate([]domain.InboundElement{el}, map[string]any{})
	assert.False(t, check.CanActivate())
	assert.Equal(t, domain.FailureActivationConditionNotMet, check.Failure.Reason)
}
