package webhook

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/expression"
)

// Type: тип inbound коннектора.
const Type = "io.camunda:webhook:1"

// methodAny: значение inbound.method, разрешающее любой метод.
const methodAny = "any"

// Properties: свойства коннектора после Unflatten.
type Properties struct {
	Inbound InboundProperties `json:"inbound"`
}

// InboundProperties: свойства inbound.*.
type InboundProperties struct {
	Context                string         `json:"context"`
	Method                 string         `json:"method"`
	Auth                   AuthProperties `json:"auth"`
	ShouldValidateHmac     string         `json:"shouldValidateHmac"`
	HmacSecret             string         `json:"hmacSecret"`
	HmacHeader             string         `json:"hmacHeader"`
	HmacAlgorithm          string         `json:"hmacAlgorithm"`
	HmacScopes             string         `json:"hmacScopes"`
	ResponseExpression     string         `json:"responseExpression"`
	VerificationExpression string         `json:"verificationExpression"`
}

// Validate проверяет свойства после декодирования.
func (p *Properties) Validate() error {
	in := p.Inbound
	if strings.TrimSpace(in.Context) == "" {
		return errors.New("inbound.context is required")
	}
	if in.hmacEnabled() {
		if in.HmacSecret == "" || in.HmacHeader == "" {
			return errors.New("inbound.hmacSecret and inbound.hmacHeader are required when HMAC validation is enabled")
		}
		if _, err := Algorithm(in.HmacAlgorithm).hash(); err != nil {
			return err
		}
		if _, err := ParseScopes(in.HmacScopes); err != nil {
			return err
		}
	}
	return in.Auth.validate()
}

func (p InboundProperties) hmacEnabled() bool {
	return strings.EqualFold(p.ShouldValidateHmac, "enabled")
}

// Executable: webhook executable.
type Executable struct {
	props  Properties
	scopes []Scope
	jwt    *jwtVerifier
	ic     connector.InboundContext
}

var (
	_ connector.WebhookExecutable = (*Executable)(nil)
	_ connector.Verifier          = (*Executable)(nil)
)

// New создаёт Executable.
func New() connector.InboundExecutable {
	return &Executable{}
}

// Registration возвращает регистрацию коннектора для реестра.
func Registration() connector.InboundRegistration {
	return connector.InboundRegistration{
		Type:                    Type,
		Name:                    "Webhook",
		DeduplicationProperties: []string{"inbound.context"},
		Factory:                 New,
	}
}

// Activate читает и проверяет свойства. Для JWT загружается JWKS:
// ключи обновляются, пока ctx не отменён.
func (e *Executable) Activate(ctx context.Context, ic connector.InboundContext) error {
	if err := ic.BindProperties(&e.props); err != nil {
		return err
	}
	scopes, err := ParseScopes(e.props.Inbound.HmacScopes)
	if err != nil {
		return err
	}
	e.scopes = scopes
	if e.props.Inbound.Auth.is(AuthJWT) {
		e.jwt, err = newJWTVerifier(ctx, e.props.Inbound.Auth.JWT)
		if err != nil {
			return err
		}
	}
	e.ic = ic
	ic.ReportHealth(domain.Up(map[string]any{"context": e.props.Inbound.Context}))
	return nil
}

// Deactivate ничего не освобождает: контекст снимает runtime.
func (e *Executable) Deactivate(context.Context) error {
	return nil
}

// TriggerWebhook проверяет запрос и возвращает разобранные данные.
func (e *Executable) TriggerWebhook(_ context.Context, payload connector.WebhookPayload) (*connector.WebhookResult, error) {
	in := e.props.Inbound

	if err := checkMethod(in.Method, payload.Method); err != nil {
		return nil, err
	}

	if in.hmacEnabled() {
		err := VerifyHMAC(payload, HMACConfig{
			Secret:    in.HmacSecret,
			Header:    in.HmacHeader,
			Algorithm: Algorithm(in.HmacAlgorithm),
			Scopes:    e.scopes,
		})
		if err != nil {
			return nil, err
		}
	}

	request, err := mapRequest(payload)
	if err != nil {
		return nil, err
	}

	if err := in.Auth.check(payload.Headers, requestContext(request)); err != nil {
		return nil, err
	}
	if e.jwt != nil {
		if err := e.jwt.check(payload.Headers); err != nil {
			return nil, err
		}
	}

	result := &connector.WebhookResult{Request: request}
	if expr := in.ResponseExpression; expr != "" {
		result.Response = func(rc connector.WebhookResultContext) (*connector.WebhookHTTPResponse, error) {
			return evaluateResponse(expr, rc)
		}
	}
	return result, nil
}

// Verify отвечает на handshake запрос, если verificationExpression вернуло объект.
func (e *Executable) Verify(_ context.Context, payload connector.WebhookPayload) (*connector.WebhookHTTPResponse, error) {
	expr := e.props.Inbound.VerificationExpression
	if expr == "" {
		return nil, nil
	}
	request, err := mapRequest(payload)
	if err != nil {
		return nil, err
	}
	return evaluateResponse(expr, requestContext(request))
}

func checkMethod(allowed, actual string) error {
	if allowed == "" || strings.EqualFold(allowed, methodAny) || strings.EqualFold(actual, methodAny) {
		return nil
	}
	if strings.EqualFold(allowed, actual) {
		return nil
	}
	return &connector.WebhookError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    fmt.Sprintf("Method %s not supported", strings.ToUpper(actual)),
	}
}

func mapRequest(payload connector.WebhookPayload) (connector.MappedRequest, error) {
	body, err := parseBody(payload.Headers, payload.RawBody)
	if err != nil {
		return connector.MappedRequest{}, err
	}
	headers := payload.Headers
	if headers == nil {
		headers = map[string]string{}
	}
	params := payload.Params
	if params == nil {
		params = map[string]string{}
	}
	return connector.MappedRequest{Body: body, Headers: headers, Params: params}, nil
}

func requestContext(request connector.MappedRequest) map[string]any {
	return map[string]any{
		"request": map[string]any{
			"body":    request.Body,
			"headers": request.Headers,
			"params":  request.Params,
		},
	}
}

// evaluateResponse вычисляет выражение в {body, headers, statusCode}.
// nil результат означает «ответ по умолчанию».
func evaluateResponse(expr string, data any) (*connector.WebhookHTTPResponse, error) {
	m, err := expression.EvaluateToMap(expr, data)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}

	resp := &connector.WebhookHTTPResponse{Body: m["body"]}
	if headers, ok := m["headers"].(map[string]any); ok {
		resp.Headers = make(map[string]string, len(headers))
		for k, v := range headers {
			resp.Headers[k] = fmt.Sprint(v)
		}
	}
	if code, ok := expression.Number(m["statusCode"]); ok {
		resp.StatusCode = int(code)
	} else if code, ok := m["statusCode"].(string); ok {
		resp.StatusCode, _ = strconv.Atoi(code)
	}
	return resp, nil
}
