package secrets

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testHandler() *Handler {
	return NewHandler(StaticProvider{
		"TOKEN":    "t0k3n",
		"USER":     "admin",
		"PASSWORD": "p@ss",
	})
}

func TestHandler_ReplaceString(t *testing.T) {
	ctx := context.Background()
	h := testHandler()

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"full value", "secrets.TOKEN", "t0k3n"},
		{"placeholder", "Bearer {{secrets.TOKEN}}", "Bearer t0k3n"},
		{"placeholder with spaces", "{{ secrets.USER }}:{{  secrets.PASSWORD }}", "admin:p@ss"},
		{"no secrets", "plain value", "plain value"},
		{"other template", "{{ .request.body }}", "{{ .request.body }}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := h.ReplaceString(ctx, tt.input, "<default>")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, out)
		})
	}
}

func TestHandler_MissingSecret(t *testing.T) {
	_, err := testHandler().ReplaceString(context.Background(), "{{secrets.UNKNOWN}}", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSecretUnavailable)
	assert.Contains(t, err.Error(), "Secret with name 'UNKNOWN' is not available")
}

func TestHandler_ReplaceNested(t *testing.T) {
	input := map[string]any{
		"auth": map[string]any{
			"token": "secrets.TOKEN",
		},
		"list":  []any{"{{secrets.USER}}", 42.0},
		"count": 3,
	}

	out, err := testHandler().Replace(context.Background(), input, "")
	require.NoError(t, err)

	m := out.(map[string]any)
	assert.Equal(t, "t0k3n", m["auth"].(map[string]any)["token"])
	assert.Equal(t, []any{"admin", 42.0}, m["list"])
	assert.Equal(t, 3, m["count"])

	// Исходные данные не изменились
	assert.Equal(t, "secrets.TOKEN", input["auth"].(map[string]any)["token"])
}

func TestReferencesAndResolved(t *testing.T) {
	input := map[string]any{
		"a": "secrets.TOKEN",
		"b": []any{"x {{secrets.USER}} y {{ secrets.TOKEN }}"},
		"c": "{{secrets.MISSING}}",
	}

	assert.Equal(t, []string{"MISSING", "TOKEN", "USER"}, References(input))
	assert.ElementsMatch(t, []string{"t0k3n", "admin"}, testHandler().Resolved(context.Background(), input, ""))
}

func TestChain(t *testing.T) {
	chain := Chain{StaticProvider{"A": "1"}, StaticProvider{"A": "2", "B": "3"}}

	v, err := chain.GetSecret(context.Background(), "A", "")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	v, err = chain.GetSecret(context.Background(), "B", "")
	require.NoError(t, err)
	assert.Equal(t, "3", v)

	_, err = chain.GetSecret(context.Background(), "C", "")
	assert.ErrorIs(t, err, ErrSecretNotFound)
}

type failingProvider struct{}

func (failingProvider) GetSecret(context.Context, string, string) (string, error) {
	return "", errors.New("db down")
}

func TestChain_ProviderError(t *testing.T) {
	_, err := Chain{failingProvider{}}.GetSecret(context.Background(), "A", "")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSecretNotFound)
}

func TestEnvProvider(t *testing.T) {
	t.Setenv("SECRET_API_KEY", "from-env")

	v, err := EnvProvider{Prefix: "SECRET_"}.GetSecret(context.Background(), "API_KEY", "")
	require.NoError(t, err)
	assert.Equal(t, "from-env", v)
}

func TestHide(t *testing.T) {
	assert.Equal(t, "token *** rejected", Hide("token t0k3n rejected", []string{"t0k3n", ""}))
}

// Значение секрета не должно оставаться в замаскированном сообщении.
func TestHideProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		secret := rapid.StringMatching(`[a-zA-Z0-9]{8,20}`).Draw(t, "secret")
		prefix := rapid.String().Draw(t, "prefix")
		suffix := rapid.String().Draw(t, "suffix")

		hidden := Hide(prefix+secret+suffix, []string{secret})

		if strings.Contains(hidden, secret) {
			t.Fatalf("secret leaked: %q", hidden)
		}
		if !strings.Contains(hidden, Mask) {
			t.Fatalf("mask not found in %q", hidden)
		}
	})
}

// Подстановка плейсхолдера эквивалентна прямой конкатенации значения.
func TestReplaceProperties(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		value := rapid.StringMatching(`[a-zA-Z0-9]{1,16}`).Draw(t, "value")
		prefix := rapid.StringMatching(`[a-z ]{0,10}`).Draw(t, "prefix")
		suffix := rapid.StringMatching(`[a-z ]{0,10}`).Draw(t, "suffix")

		h := NewHandler(StaticProvider{"S": value})
		out, err := h.ReplaceString(context.Background(), prefix+"{{secrets.S}}"+suffix, "")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out != prefix+value+suffix {
			t.Fatalf("expected %q, got %q", prefix+value+suffix, out)
		}
	})
}
