package connector

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type props struct {
	Inbound struct {
		Context string `json:"context"`
		Method  string `json:"method"`
	} `json:"inbound"`
}

func (p *props) Validate() error {
	if p.Inbound.Context == "" {
		return errors.New("inbound.context is required")
	}
	return nil
}

func TestUnflatten(t *testing.T) {
	out := Unflatten(map[string]string{
		"inbound.context": "orders",
		"inbound.method":  "post",
		"plain":           "value",
	})

	inbound, ok := out["inbound"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "orders", inbound["context"])
	assert.Equal(t, "post", inbound["method"])
	assert.Equal(t, "value", out["plain"])
}

func TestUnflatten_NestedWinsOverScalar(t *testing.T) {
	out := Unflatten(map[string]string{
		"auth":      "scalar",
		"auth.type": "BASIC",
	})

	auth, ok := out["auth"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "BASIC", auth["type"])
}

func TestBind(t *testing.T) {
	var p props
	err := Bind(Unflatten(map[string]string{"inbound.context": "orders"}), &p)
	require.NoError(t, err)
	assert.Equal(t, "orders", p.Inbound.Context)

	// Валидация
	var empty props
	err = Bind(map[string]any{}, &empty)
	require.Error(t, err)
	assert.True(t, IsInputError(err))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	fn := OutboundFunc(func(ctx context.Context, oc OutboundContext) (any, error) {
		return "ok", nil
	})
	r.RegisterOutbound(OutboundDefinition{Name: "Test", Type: "io.test:1"}, fn)

	reg, err := r.Outbound("io.test:1")
	require.NoError(t, err)
	assert.Equal(t, "Test", reg.Definition.Name)

	res, err := reg.Function.Execute(context.Background(), &SimpleOutboundContext{})
	require.NoError(t, err)
	assert.Equal(t, "ok", res)

	_, err = r.Outbound("unknown")
	assert.ErrorIs(t, err, ErrConnectorNotFound)

	r.RegisterInbound(InboundRegistration{Type: "webhook", Name: "Webhook"})
	assert.True(t, r.HasInbound("webhook"))
	assert.Equal(t, []string{"webhook"}, r.InboundTypes())

	r.UnregisterOutbound("io.test:1")
	assert.Empty(t, r.OutboundDefinitions())
}

func TestSecurityError_DefaultStatus(t *testing.T) {
	assert.Equal(t, 401, NewSecurityError(ReasonInvalidSignature, "bad").StatusCode)
	assert.Equal(t, 403, NewSecurityError(ReasonForbidden, "no").StatusCode)
}

func TestErrorMessages(t *testing.T) {
	cause := errors.New("vendor failure")
	err := WrapError("500", cause)
	assert.Equal(t, "vendor failure", err.Error())
	assert.ErrorIs(t, err, cause)

	assert.Equal(t, "CODE", NewError("CODE", "").Error())
	assert.True(t, IsInputError(NewInputError("field %s missing", "x")))
}
