package api

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"strconv"
	"strings"

	"google.golang.org/grpc/codes"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/expression"
	"github.com/shaiso/Connectors/internal/inbound"
	"github.com/shaiso/Connectors/internal/telemetry"
)

const tagWebhook = "Webhook"

// InboundWebhook обрабатывает запрос к /inbound/{context}.
//
// 1. Находит executable по контексту
// 2. Отвечает на handshake (Verifier), если executable его поддерживает
// 3. Вызывает TriggerWebhook и коррелирует результат
// 4. Формирует ответ из responseExpression или по результату корреляции
func (h *Handler) InboundWebhook(w http.ResponseWriter, r *http.Request) {
	rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
	defer func() {
		telemetry.WebhookRequests.WithLabelValues(strconv.Itoa(rw.status)).Inc()
	}()

	path := r.PathValue("context")
	target, ok := h.inbound.Webhook(path)
	if !ok {
		NotFound(rw, fmt.Sprintf("No webhook found for context: %s", path))
		return
	}

	payload, err := h.readPayload(r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			JSON(rw, http.StatusRequestEntityTooLarge, MessageBody{Message: err.Error()})
			return
		}
		BadRequest(rw, err.Error())
		return
	}

	ic := target.Context
	ic.Log(domain.NewActivity(domain.SeverityInfo, tagWebhook,
		fmt.Sprintf("Received %s request on context %q", payload.Method, path)))

	if v, ok := target.Executable.(connector.Verifier); ok {
		resp, err := v.Verify(r.Context(), payload)
		if err != nil {
			h.writeTriggerError(rw, ic, err)
			return
		}
		if resp != nil {
			ic.Log(domain.NewActivity(domain.SeverityInfo, tagWebhook, "Responded to verification request"))
			writeWebhookResponse(rw, resp, http.StatusOK)
			return
		}
	}

	result, err := target.Executable.TriggerWebhook(r.Context(), payload)
	if err != nil {
		h.writeTriggerError(rw, ic, err)
		return
	}

	correlation := ic.Correlate(r.Context(), connector.CorrelationRequest{
		Variables: connector.WebhookResultContext{
			Request:       result.Request,
			ConnectorData: result.ConnectorData,
		},
	})
	h.writeCorrelation(r.Context(), rw, ic, result, correlation)
}

// readPayload читает запрос. Заголовки приводятся к нижнему регистру.
func (h *Handler) readPayload(r *http.Request) (connector.WebhookPayload, error) {
	body, err := io.ReadAll(http.MaxBytesReader(nil, r.Body, h.maxBody))
	if err != nil {
		return connector.WebhookPayload{}, err
	}

	headers := make(map[string]string, len(r.Header))
	for k, v := range r.Header {
		if len(v) > 0 {
			headers[strings.ToLower(k)] = v[0]
		}
	}

	query := r.URL.Query()
	params := make(map[string]string, len(query))
	for k, v := range query {
		if len(v) > 0 {
			params[k] = v[0]
		}
	}

	return connector.WebhookPayload{
		RequestURL: requestURL(r),
		Method:     r.Method,
		Headers:    headers,
		Params:     params,
		RawBody:    body,
		MultiQuery: query,
	}, nil
}

func requestURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}

// writeTriggerError отвечает на ошибку Verify или TriggerWebhook.
func (h *Handler) writeTriggerError(w http.ResponseWriter, ic connector.InboundContext, err error) {
	ic.Log(domain.NewActivity(domain.SeverityWarning, tagWebhook, "Webhook rejected: "+err.Error()))

	var (
		secErr  *connector.SecurityError
		hookErr *connector.WebhookError
		exprErr *expression.Error
		connErr *connector.Error
	)
	switch {
	case errors.As(err, &secErr):
		w.WriteHeader(secErr.StatusCode)
	case errors.As(err, &hookErr):
		if hookErr.StatusCode >= 400 && hookErr.StatusCode < 500 {
			JSON(w, hookErr.StatusCode, MessageBody{Message: hookErr.Message})
			return
		}
		w.WriteHeader(hookErr.StatusCode)
	case errors.As(err, &exprErr):
		JSON(w, http.StatusUnprocessableEntity, ExpressionErrorBody{Reason: exprErr.Reason, Expression: exprErr.Expression})
	case errors.As(err, &connErr):
		JSON(w, http.StatusUnprocessableEntity, ConnectorErrorBody{ErrorCode: connErr.Code, Message: connErr.Error()})
	case connector.IsInputError(err):
		JSON(w, http.StatusBadRequest, MessageBody{Message: err.Error()})
	default:
		InternalError(w, h.logger, err)
	}
}

// writeCorrelation отвечает по результату корреляции.
//
// Неудача со стратегией Forward возвращается источнику ошибкой, остальные
// неудачи обрабатываются как успех без результата корреляции.
func (h *Handler) writeCorrelation(ctx context.Context, w http.ResponseWriter, ic connector.InboundContext,
	result *connector.WebhookResult, correlation domain.CorrelationResult) {

	status := http.StatusOK
	if failure, ok := correlation.(*domain.CorrelationFailure); ok {
		if failure.Strategy().Forward {
			writeCorrelationFailure(ctx, w, failure)
			return
		}
		correlation = nil
	} else if _, created := correlation.(*domain.ProcessInstanceCreated); created {
		status = http.StatusCreated
	}

	if result.Response != nil {
		resp, err := result.Response(connector.WebhookResultContext{
			Request:       result.Request,
			ConnectorData: result.ConnectorData,
			Correlation:   correlation,
		})
		if err != nil {
			h.writeTriggerError(w, ic, err)
			return
		}
		if resp != nil {
			writeWebhookResponse(w, resp, status)
			return
		}
	}
	if correlation == nil {
		w.WriteHeader(status)
		return
	}
	JSON(w, status, correlation)
}

// writeCorrelationFailure отвечает на неудачу, которую нужно вернуть источнику.
// Текст внутренней ошибки наружу не отдаётся.
func writeCorrelationFailure(ctx context.Context, w http.ResponseWriter, failure *domain.CorrelationFailure) {
	switch failure.Reason {
	case domain.FailureEngineStatus:
		JSON(w, StatusForCode(failure.Status), MessageBody{Message: failure.Message()})
	case domain.FailureOther:
		telemetry.FromContext(ctx).Error("webhook correlation failed", "error", failure)
		w.WriteHeader(http.StatusInternalServerError)
	default:
		JSON(w, http.StatusUnprocessableEntity, MessageBody{Message: failure.Message()})
	}
}

// writeWebhookResponse отправляет ответ, сформированный коннектором.
// Строковое тело экранируется как HTML.
func writeWebhookResponse(w http.ResponseWriter, resp *connector.WebhookHTTPResponse, defaultStatus int) {
	status := resp.StatusCode
	if status == 0 {
		status = defaultStatus
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}

	switch body := resp.Body.(type) {
	case nil:
		w.WriteHeader(status)
	case string:
		if w.Header().Get("Content-Type") == "" {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		}
		w.WriteHeader(status)
		io.WriteString(w, html.EscapeString(body))
	default:
		JSON(w, status, body)
	}
}

// StatusForCode сопоставляет статус engine HTTP статусу ответа webhook.
func StatusForCode(code codes.Code) int {
	switch code {
	case codes.Canceled:
		return 499
	case codes.Unknown, codes.Internal, codes.DataLoss:
		return http.StatusInternalServerError
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.OutOfRange:
		return http.StatusRequestedRangeNotSatisfiable
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusUnprocessableEntity
	}
}

var _ InboundRegistry = (*inbound.Registry)(nil)
