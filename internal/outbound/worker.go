package outbound

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/engine"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// Значения по умолчанию.
const (
	defaultPollInterval   = 100 * time.Millisecond
	defaultMaxJobsActive  = 32
	defaultJobTimeout     = 5 * time.Minute
	defaultRequestTimeout = 10 * time.Second
	defaultWorkerName     = "connectors-runtime"
)

// JobActivator: активация заданий. Реализуется *engine.Client.
type JobActivator interface {
	ActivateJobs(ctx context.Context, cmd engine.ActivateJobsCommand) ([]domain.Job, error)
}

// Worker опрашивает engine по каждому зарегистрированному outbound типу.
//
// Для каждого типа работает отдельный цикл активации. Число одновременно
// выполняемых заданий одного типа ограничено MaxJobsActive.
type Worker struct {
	activator JobActivator
	registry  *connector.Registry
	handler   *Handler

	name           string
	pollInterval   time.Duration
	maxJobsActive  int
	jobTimeout     time.Duration
	requestTimeout time.Duration
	tenantIDs      []string

	// Lifecycle
	logger     *slog.Logger
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	stopped    bool
	stoppedMu  sync.RWMutex
}

// WorkerConfig: конфигурация Worker.
type WorkerConfig struct {
	Activator JobActivator
	Registry  *connector.Registry
	Handler   *Handler

	// Name: имя воркера в engine (default: connectors-runtime).
	Name string

	// PollInterval: пауза после пустой активации или ошибки (default: 100ms).
	PollInterval time.Duration

	// MaxJobsActive: предел параллельных заданий одного типа (default: 32).
	MaxJobsActive int

	// JobTimeout: время, на которое engine блокирует задание, если у коннектора
	// нет собственного Timeout (default: 5m). Выполнение ограничено дедлайном задания.
	JobTimeout time.Duration

	// RequestTimeout: long polling активации (default: 10s).
	RequestTimeout time.Duration

	TenantIDs []string

	Logger *slog.Logger
}

// NewWorker создаёт Worker.
func NewWorker(cfg WorkerConfig) *Worker {
	w := &Worker{
		activator:      cfg.Activator,
		registry:       cfg.Registry,
		handler:        cfg.Handler,
		name:           cfg.Name,
		pollInterval:   cfg.PollInterval,
		maxJobsActive:  cfg.MaxJobsActive,
		jobTimeout:     cfg.JobTimeout,
		requestTimeout: cfg.RequestTimeout,
		tenantIDs:      cfg.TenantIDs,
		logger:         telemetry.OrDefault(cfg.Logger),
	}
	if w.name == "" {
		w.name = defaultWorkerName
	}
	if w.pollInterval <= 0 {
		w.pollInterval = defaultPollInterval
	}
	if w.maxJobsActive <= 0 {
		w.maxJobsActive = defaultMaxJobsActive
	}
	if w.jobTimeout <= 0 {
		w.jobTimeout = defaultJobTimeout
	}
	if w.requestTimeout <= 0 {
		w.requestTimeout = defaultRequestTimeout
	}
	return w
}

// Start запускает цикл активации для каждого outbound коннектора реестра.
func (w *Worker) Start(ctx context.Context) error {
	if w.IsStopped() {
		return ErrWorkerStopped
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancelFunc = cancel

	defs := w.registry.OutboundDefinitions()
	w.logger.Info("starting outbound worker",
		"worker", w.name,
		"types", len(defs),
		"max_jobs_active", w.maxJobsActive,
	)

	for _, def := range defs {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			w.pollLoop(ctx, def)
		}()
	}
	return nil
}

// Stop останавливает активацию и ждёт завершения выполняемых заданий.
func (w *Worker) Stop() {
	w.stoppedMu.Lock()
	w.stopped = true
	w.stoppedMu.Unlock()

	w.logger.Info("stopping outbound worker...")
	if w.cancelFunc != nil {
		w.cancelFunc()
	}
	w.wg.Wait()
	w.logger.Info("outbound worker stopped")
}

// IsStopped проверяет, остановлен ли Worker.
func (w *Worker) IsStopped() bool {
	w.stoppedMu.RLock()
	defer w.stoppedMu.RUnlock()
	return w.stopped
}

// pollLoop активирует задания одного типа, пока не отменён ctx.
func (w *Worker) pollLoop(ctx context.Context, def connector.OutboundDefinition) {
	logger := telemetry.WithConnectorType(w.logger, def.Type)
	slots := make(chan struct{}, w.maxJobsActive)

	timeout := def.Timeout
	if timeout <= 0 {
		timeout = w.jobTimeout
	}

	for {
		// Ждём хотя бы одно свободное место
		select {
		case <-ctx.Done():
			return
		case slots <- struct{}{}:
			<-slots
		}

		jobs, err := w.activator.ActivateJobs(ctx, engine.ActivateJobsCommand{
			Type:           def.Type,
			Worker:         w.name,
			Timeout:        timeout,
			MaxJobs:        w.maxJobsActive - len(slots),
			FetchVariables: def.InputVariables,
			RequestTimeout: w.requestTimeout,
			TenantIDs:      w.tenantIDs,
		})
		if err != nil && ctx.Err() == nil {
			logger.Error("failed to activate jobs", "error", err)
		}

		if len(jobs) == 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
			continue
		}

		logger.Debug("activated jobs", "count", len(jobs))
		for i := range jobs {
			job := jobs[i]
			slots <- struct{}{}
			w.wg.Add(1)
			go func() {
				defer w.wg.Done()
				defer func() { <-slots }()
				w.run(ctx, def.Type, &job)
			}()
		}
	}
}

func (w *Worker) run(ctx context.Context, jobType string, job *domain.Job) {
	reg, err := w.registry.Outbound(jobType)
	if err != nil {
		w.logger.Error("outbound connector disappeared", "type", jobType, "error", err)
		return
	}

	// Ошибка уже залогирована Handler; задание вернётся в engine по таймауту
	_ = w.handler.Handle(ctx, reg.Function, job)
}
