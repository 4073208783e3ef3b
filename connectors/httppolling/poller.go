package httppolling

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	httpconn "github.com/shaiso/Connectors/connectors/http"
	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// Type: тип inbound коннектора.
const Type = "io.camunda:http-polling:1"

const tagPoll = "Polling"

// Result: переменные корреляции.
type Result struct {
	Response *httpconn.Response `json:"response"`
}

// Executable опрашивает endpoint по расписанию.
type Executable struct {
	client *httpconn.Client
	logger *slog.Logger

	cron   *cron.Cron
	cancel context.CancelFunc

	// running защищает от наложения опросов, если запрос дольше интервала.
	running sync.Mutex
}

var _ connector.InboundExecutable = (*Executable)(nil)

// NewExecutable создаёт Executable.
func NewExecutable(client *httpconn.Client, logger *slog.Logger) *Executable {
	return &Executable{client: client, logger: telemetry.OrDefault(logger)}
}

// Registration возвращает регистрацию коннектора.
func Registration(client *httpconn.Client, logger *slog.Logger) connector.InboundRegistration {
	return connector.InboundRegistration{
		Type: Type,
		Name: "HTTP Polling",
		DeduplicationProperties: []string{
			"inbound.url",
			"inbound.method",
			"inbound.headers",
			"inbound.queryParameters",
			"inbound.httpRequestInterval",
			"inbound.cron",
		},
		Factory: func() connector.InboundExecutable { return NewExecutable(client, logger) },
	}
}

// Activate запускает расписание опроса.
func (e *Executable) Activate(ctx context.Context, ic connector.InboundContext) error {
	var props Properties
	if err := ic.BindProperties(&props); err != nil {
		return err
	}
	schedule, err := props.schedule()
	if err != nil {
		return err
	}
	req, err := props.request()
	if err != nil {
		return err
	}

	pollCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	e.cancel = cancel

	e.cron = cron.New(cron.WithLocation(time.UTC))
	e.cron.Schedule(schedule, cron.FuncJob(func() {
		e.poll(pollCtx, ic, req)
	}))
	e.cron.Start()

	ic.ReportHealth(domain.Up(map[string]any{"url": req.URL}))
	return nil
}

// Deactivate останавливает расписание и ждёт текущий опрос.
func (e *Executable) Deactivate(ctx context.Context) error {
	if e.cancel != nil {
		e.cancel()
	}
	if e.cron == nil {
		return nil
	}
	stopped := e.cron.Stop()
	select {
	case <-stopped.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// poll выполняет один запрос и коррелирует ответ.
func (e *Executable) poll(ctx context.Context, ic connector.InboundContext, req *httpconn.Request) {
	if !e.running.TryLock() {
		e.logger.Debug("previous poll still running, skipping")
		return
	}
	defer e.running.Unlock()

	resp, err := e.client.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		ic.Log(domain.NewActivity(domain.SeverityWarning, tagPoll, fmt.Sprintf("Polling request failed: %v", err)))
		ic.ReportHealth(domain.Down(err))
		return
	}
	ic.ReportHealth(domain.Up(map[string]any{"url": req.URL, "lastStatus": resp.Status}))

	result := ic.Correlate(ctx, connector.CorrelationRequest{Variables: Result{Response: resp}})
	if failure, ok := result.(*domain.CorrelationFailure); ok {
		ic.Log(domain.NewActivity(domain.SeverityWarning, tagPoll, "Failed to correlate polling response: "+failure.Message()))
		return
	}
	ic.Log(domain.NewActivity(domain.SeverityInfo, tagPoll, fmt.Sprintf("Polling response %d correlated", resp.Status)))
}
