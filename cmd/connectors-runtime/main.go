// Connectors runtime: outbound воркер, inbound executables и HTTP API
// (webhooks, состояние executables, метрики) в одном процессе.
//
// Настройки читаются из YAML файла CONNECTORS_CONFIG и переменных
// окружения (API_PORT, DB_URL, ENGINE_URL, ENGINE_TOKEN, CONNECTORS_PEERS,
// CONNECTORS_DEFINITIONS, CONNECTORS_WORKER_ENABLED).
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	httpconn "github.com/shaiso/Connectors/connectors/http"
	"github.com/shaiso/Connectors/connectors/httppolling"
	"github.com/shaiso/Connectors/connectors/rabbitmq"
	sqlconn "github.com/shaiso/Connectors/connectors/sql"
	"github.com/shaiso/Connectors/connectors/webhook"
	"github.com/shaiso/Connectors/internal/api"
	"github.com/shaiso/Connectors/internal/config"
	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/discovery"
	"github.com/shaiso/Connectors/internal/engine"
	"github.com/shaiso/Connectors/internal/inbound"
	"github.com/shaiso/Connectors/internal/outbound"
	"github.com/shaiso/Connectors/internal/repo"
	"github.com/shaiso/Connectors/internal/secrets"
	"github.com/shaiso/Connectors/internal/telemetry"
)

const serviceName = "connectors-runtime"

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting " + serviceName)

	cfg, err := config.Load(os.Getenv("CONNECTORS_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	shutdownTracing, err := telemetry.SetupTracing(ctx, telemetry.TracingConfigFromEnv(serviceName))
	if err != nil {
		logger.Error("failed to setup tracing", "error", err)
		os.Exit(1)
	}

	// Postgres опционален: без него определения читаются из файлов
	var pool *pgxpool.Pool
	if cfg.Database.URL != "" {
		pool, err = repo.NewPool(ctx, cfg.Database.URL)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		logger.Info("connected to database")

		if cfg.Database.Migrate {
			if err := repo.Migrate(ctx, pool); err != nil {
				logger.Error("failed to migrate database", "error", err)
				os.Exit(1)
			}
		}
	}

	// Коннекторы
	connectors := connector.NewRegistry()
	found, err := discovery.Discover(os.Environ(), catalog(logger))
	if err != nil {
		logger.Error("failed to discover connectors", "error", err)
		os.Exit(1)
	}
	found.Register(connectors)
	logger.Info("connectors registered",
		"outbound", len(found.Outbound),
		"inbound", len(found.Inbound),
		"from_env", found.FromEnv,
	)

	// Секреты: окружение, файл конфигурации, затем Postgres
	providers := secrets.Chain{secrets.EnvProvider{Prefix: "SECRET_"}, secrets.StaticProvider(cfg.Secrets)}
	if pool != nil {
		providers = append(providers, repo.NewSecretRepo(pool))
	}
	secretHandler := secrets.NewHandler(providers)

	engineClient := engine.New(engine.Config{
		BaseURL: cfg.Engine.URL,
		Token:   cfg.Engine.Token,
		Timeout: cfg.Engine.Timeout,
		Logger:  logger,
	})

	// Inbound
	registry := inbound.NewRegistry(inbound.RegistryConfig{
		Connectors: connectors,
		Correlation: inbound.NewCorrelationHandler(inbound.CorrelationConfig{
			Engine: engineClient,
			Logger: logger,
		}),
		Secrets: secretHandler,
		Logger:  logger,
	})
	registry.Start(ctx)

	importer := newImporter(ctx, cfg, pool, connectors, registry, logger)

	// Outbound
	var worker *outbound.Worker
	if cfg.WorkerEnabled() {
		worker = outbound.NewWorker(outbound.WorkerConfig{
			Activator: engineClient,
			Registry:  connectors,
			Handler: outbound.NewHandler(outbound.HandlerConfig{
				Client:  engineClient,
				Secrets: secretHandler,
				Logger:  logger,
			}),
			PollInterval:  cfg.Worker.PollInterval,
			MaxJobsActive: cfg.Worker.MaxJobsActive,
			TenantIDs:     cfg.Worker.TenantIDs,
			Logger:        logger,
		})
		if err := worker.Start(ctx); err != nil {
			logger.Error("failed to start worker", "error", err)
			os.Exit(1)
		}
	}

	// HTTP API
	handler := api.NewHandler(api.Config{
		Inbound:    registry,
		Connectors: connectors,
		Peers:      cfg.Peers,
		Logger:     logger,
	})

	addr := ":" + cfg.API.Port
	server := &http.Server{
		Addr:              addr,
		Handler:           handler.NewServeHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 30 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	if worker != nil {
		worker.Stop()
	}
	if importer != nil {
		<-importer
	}
	registry.Stop(shutdownCtx)
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Error("tracing shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// catalog возвращает встроенные реализации коннекторов.
func catalog(logger *slog.Logger) discovery.Catalog {
	client := httpconn.NewClient(nil, logger)

	return discovery.Catalog{
		Outbound: map[string]connector.OutboundRegistration{
			"http":     {Definition: httpconn.Definition(), Function: httpconn.NewFunction(client)},
			"rabbitmq": {Definition: rabbitmq.Definition(), Function: rabbitmq.NewFunction(nil, logger)},
			"sql":      {Definition: sqlconn.Definition(), Function: sqlconn.NewFunction(sqlconn.DefaultDriver, logger)},
		},
		Inbound: map[string]connector.InboundRegistration{
			"webhook":      webhook.Registration(),
			"rabbitmq":     rabbitmq.Registration(logger),
			"http-polling": httppolling.Registration(client, logger),
		},
	}
}

// newImporter запускает импорт определений и возвращает канал,
// закрываемый после остановки импорта. nil - источник не настроен.
func newImporter(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, connectors *connector.Registry, registry *inbound.Registry, logger *slog.Logger) <-chan struct{} {
	importerCfg := inbound.ImporterConfig{
		Store:    inbound.NewStateStore(connectors),
		Sink:     registry,
		Interval: cfg.Importer.Interval,
		Logger:   logger,
	}

	switch {
	case pool != nil:
		importerCfg.Source = repo.NewDefinitionRepo(pool)
		importerCfg.Locker = repo.NewAdvisoryLocker(pool, repo.ImporterLockKey)
	case cfg.DefinitionsPath != "":
		importerCfg.Source = config.NewFileSource(cfg.DefinitionsPath)
	default:
		logger.Warn("no process definition source configured, inbound connectors stay inactive")
		return nil
	}

	importer := inbound.NewImporter(importerCfg)

	// Изменения файлов определений применяются без ожидания очередного тика
	if pool == nil {
		watcher, err := config.NewWatcher(config.WatcherConfig{
			Path:     cfg.DefinitionsPath,
			OnChange: importer.Trigger,
			Logger:   logger,
		})
		if err != nil {
			logger.Warn("definitions hot reload disabled", "error", err)
		} else {
			go watcher.Run(ctx)
		}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		importer.Run(ctx)
	}()
	return done
}
