package engine

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	// ErrRequest: запрос не дошёл до движка (сеть, сериализация).
	ErrRequest = errors.New("engine request failed")
)

// StatusError: движок вернул ошибочный HTTP статус.
type StatusError struct {
	HTTPStatus int
	Code       codes.Code
	Title      string
	Detail     string
}

// Error реализует интерфейс error.
func (e *StatusError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("engine returned %s (%d): %s", e.Code, e.HTTPStatus, e.Detail)
	}
	return fmt.Sprintf("engine returned %s (%d)", e.Code, e.HTTPStatus)
}

// GRPCStatus позволяет использовать status.FromError / status.Code.
func (e *StatusError) GRPCStatus() *status.Status {
	return status.New(e.Code, e.Error())
}

// CodeFromHTTP переводит HTTP статус ответа движка в gRPC код.
func CodeFromHTTP(status int) codes.Code {
	switch status {
	case http.StatusBadRequest:
		return codes.InvalidArgument
	case http.StatusUnauthorized:
		return codes.Unauthenticated
	case http.StatusForbidden:
		return codes.PermissionDenied
	case http.StatusNotFound:
		return codes.NotFound
	case http.StatusConflict:
		return codes.AlreadyExists
	case http.StatusPreconditionFailed:
		return codes.FailedPrecondition
	case http.StatusRequestedRangeNotSatisfiable:
		return codes.OutOfRange
	case http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case 499:
		return codes.Canceled
	case http.StatusNotImplemented:
		return codes.Unimplemented
	case http.StatusServiceUnavailable:
		return codes.Unavailable
	case http.StatusGatewayTimeout:
		return codes.DeadlineExceeded
	case http.StatusInternalServerError:
		return codes.Internal
	default:
		return codes.Unknown
	}
}
