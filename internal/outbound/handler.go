package outbound

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/engine"
	"github.com/shaiso/Connectors/internal/secrets"
	"github.com/shaiso/Connectors/internal/telemetry"
)

const tracerName = "github.com/shaiso/Connectors/internal/outbound"

// JobClient: команды завершения заданий. Реализуется *engine.Client.
type JobClient interface {
	CompleteJob(ctx context.Context, jobKey string, variables map[string]any) error
	FailJob(ctx context.Context, jobKey string, cmd engine.FailJobCommand) error
	ThrowError(ctx context.Context, jobKey, code, message string, variables map[string]any) error
}

// HandlerConfig: конфигурация Handler.
type HandlerConfig struct {
	Client  JobClient
	Secrets *secrets.Handler
	Logger  *slog.Logger
}

// Handler выполняет одно задание и отправляет итог в engine.
type Handler struct {
	client  JobClient
	secrets *secrets.Handler
	logger  *slog.Logger
}

// NewHandler создаёт Handler.
func NewHandler(cfg HandlerConfig) *Handler {
	sh := cfg.Secrets
	if sh == nil {
		sh = secrets.NewHandler(nil)
	}
	return &Handler{
		client:  cfg.Client,
		secrets: sh,
		logger:  telemetry.OrDefault(cfg.Logger),
	}
}

// Handle вызывает fn для задания и завершает его.
// Возвращает ошибку только если engine не принял команду завершения.
func (h *Handler) Handle(ctx context.Context, fn connector.OutboundFunction, job *domain.Job) error {
	logger := telemetry.WithJobKey(h.logger, job.Key).With("type", job.Type, "tenant_id", job.TenantID)
	logger.Info("received job")

	ctx, span := telemetry.StartSpan(ctx, tracerName, "outbound.handle",
		attribute.String("job.type", job.Type),
		attribute.String("job.key", job.Key),
	)

	start := time.Now()
	out := h.execute(ctx, fn, job)
	telemetry.OutboundJobDuration.WithLabelValues(job.Type).Observe(time.Since(start).Seconds())

	result, err := h.finish(ctx, logger, job, out)
	telemetry.OutboundJobs.WithLabelValues(job.Type, result).Inc()
	telemetry.EndSpan(span, err)

	if err != nil {
		logger.Error("failed to report job result", "outcome", result, "error", err)
		return fmt.Errorf("report job %s: %w", job.Key, err)
	}
	return nil
}

// execute вызывает коннектор и строит outcome.
func (h *Handler) execute(ctx context.Context, fn connector.OutboundFunction, job *domain.Job) outcome {
	var backoff time.Duration
	if raw := job.Header(domain.KeyRetryBackoff); raw != "" {
		d, err := domain.ParseISODuration(raw)
		if err != nil {
			err = fmt.Errorf("%w: Failed to parse retry backoff header. Expected ISO-8601 duration, e.g. PT5M, got: %s",
				ErrInvalidBackoff, raw)
			return h.failure(ctx, job, err, 0, 0)
		}
		backoff = d
	}

	replaced, err := h.secrets.Replace(ctx, job.Variables, job.TenantID)
	if err != nil {
		return h.errorOutcome(ctx, job, err, backoff)
	}
	vars, _ := replaced.(map[string]any)
	if vars == nil {
		vars = map[string]any{}
	}

	oc := &connector.SimpleOutboundContext{
		Vars: vars,
		JobInfo: connector.JobContext{
			Key:                job.Key,
			Type:               job.Type,
			TenantID:           job.TenantID,
			BpmnProcessID:      job.BpmnProcessID,
			ProcessInstanceKey: job.ProcessInstanceKey,
			ElementID:          job.ElementID,
			Retries:            job.Retries,
			CustomHeaders:      job.CustomHeaders,
		},
	}

	// Коннектор не должен работать дольше блокировки задания в engine
	execCtx := ctx
	if job.Deadline > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithDeadline(ctx, job.DeadlineTime())
		defer cancel()
	}

	response, err := fn.Execute(execCtx, oc)
	if err != nil {
		return h.errorOutcome(ctx, job, err, backoff)
	}

	variables, err := outputVariables(response,
		job.Header(domain.KeyResultVariable), job.Header(domain.KeyResultExpression))
	if err != nil {
		return h.errorOutcome(ctx, job, err, backoff)
	}
	return outcome{response: response, variables: variables}
}

// errorOutcome применяет правила повторов к ошибке коннектора.
func (h *Handler) errorOutcome(ctx context.Context, job *domain.Job, err error, backoff time.Duration) outcome {
	retries := job.Retries - 1

	var re *connector.RetryError
	switch {
	case errors.As(err, &re):
		if re.Retries != nil {
			retries = *re.Retries
		}
		if re.Backoff != nil {
			backoff = *re.Backoff
		}
	case connector.IsInputError(err):
		retries = 0
	}
	return h.failure(ctx, job, err, retries, backoff)
}

func (h *Handler) failure(ctx context.Context, job *domain.Job, err error, retries int, backoff time.Duration) outcome {
	message := secrets.Hide(err.Error(), h.secrets.Resolved(ctx, job.Variables, job.TenantID))
	return outcome{
		response: map[string]any{"error": errorMap(err, message)},
		err:      errors.New(message),
		retries:  retries,
		backoff:  backoff,
	}
}

// finish применяет errorExpression и отправляет команду в engine.
// Возвращает исход для метрики.
func (h *Handler) finish(ctx context.Context, logger *slog.Logger, job *domain.Job, out outcome) (string, error) {
	handled, err := examineErrorExpression(job.Header(domain.KeyErrorExpression), out.response, job.Retries)
	if err != nil {
		// Ошибку в самом errorExpression не повторяем
		failed := h.failure(ctx, job, err, 0, 0)
		logger.Error("error expression failed", "error", failed.err)
		return telemetry.JobFailed, h.fail(ctx, job, failed)
	}

	switch e := handled.(type) {
	case *bpmnError:
		logger.Debug("throwing BPMN error", "code", e.code)
		return telemetry.JobBPMNError, h.client.ThrowError(ctx, job.Key, e.code, truncate(e.message), e.variables)

	case *jobError:
		logger.Debug("failing job from error expression", "retries", e.retries)
		return telemetry.JobFailed, h.fail(ctx, job, outcome{
			response: e.variables,
			err:      errors.New(e.message),
			retries:  e.retries,
			backoff:  e.backoff,
		})
	}

	if out.err != nil {
		logger.Error("job failed", "retries", max(out.retries, 0), "error", out.err)
		return telemetry.JobFailed, h.fail(ctx, job, out)
	}

	logger.Debug("completing job")
	return telemetry.JobCompleted, h.client.CompleteJob(ctx, job.Key, out.variables)
}

func (h *Handler) fail(ctx context.Context, job *domain.Job, out outcome) error {
	cmd := engine.FailJobCommand{
		Retries:      max(out.retries, 0),
		ErrorMessage: truncate(out.err.Error()),
		RetryBackoff: out.backoff,
	}
	if m, ok := out.response.(map[string]any); ok {
		cmd.Variables = m
	}
	return h.client.FailJob(ctx, job.Key, cmd)
}
