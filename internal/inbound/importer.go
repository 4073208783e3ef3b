package inbound

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/telemetry"
)

const defaultImportInterval = 5 * time.Second

// DefinitionSource: источник process definitions с inbound элементами.
// Реализуется repo.DefinitionRepo (Postgres) и config.FileSource (YAML).
type DefinitionSource interface {
	Definitions(ctx context.Context) ([]domain.ProcessDefinition, error)
}

// Locker: лидерская блокировка, чтобы импорт выполнял один экземпляр runtime.
type Locker interface {
	TryLock(ctx context.Context) (bool, error)
	Unlock(ctx context.Context) error
}

// EventSink принимает события активации. Реализуется *Registry.
type EventSink interface {
	Submit(ctx context.Context, ev Event) error
}

// ImporterConfig: конфигурация Importer.
type ImporterConfig struct {
	Source DefinitionSource
	Store  *StateStore
	Sink   EventSink

	// Locker: опционально; без него каждый экземпляр импортирует сам.
	Locker Locker

	// Interval: период опроса источника (default: 5s).
	Interval time.Duration

	Logger *slog.Logger
}

// Importer периодически читает определения и передаёт изменения в Registry.
type Importer struct {
	source   DefinitionSource
	store    *StateStore
	sink     EventSink
	locker   Locker
	interval time.Duration
	logger   *slog.Logger

	refresh chan struct{}
	hasLock bool
}

// NewImporter создаёт Importer.
func NewImporter(cfg ImporterConfig) *Importer {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultImportInterval
	}
	return &Importer{
		source:   cfg.Source,
		store:    cfg.Store,
		sink:     cfg.Sink,
		locker:   cfg.Locker,
		interval: interval,
		logger:   telemetry.OrDefault(cfg.Logger),
		refresh:  make(chan struct{}, 1),
	}
}

// Trigger запрашивает внеочередной импорт (например, после изменения файла).
func (im *Importer) Trigger() {
	select {
	case im.refresh <- struct{}{}:
	default:
	}
}

// Run выполняет импорт сразу и затем по таймеру, пока ctx не отменён.
func (im *Importer) Run(ctx context.Context) {
	tk := time.NewTicker(im.interval)
	defer tk.Stop()

	defer func() {
		if im.hasLock {
			if err := im.locker.Unlock(context.Background()); err != nil {
				im.logger.Warn("failed to release importer lock", "error", err)
			}
		}
	}()

	im.runTick(ctx)
	for {
		select {
		case <-tk.C:
			im.runTick(ctx)
		case <-im.refresh:
			im.runTick(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (im *Importer) runTick(ctx context.Context) {
	if err := im.Tick(ctx); err != nil && ctx.Err() == nil {
		im.logger.Error("inbound import failed", "error", err)
	}
}

// Tick выполняет один цикл импорта.
//
// 1. Пытается стать лидером (если задан Locker)
// 2. Читает определения из источника
// 3. Вычисляет изменения и отправляет события в Registry
func (im *Importer) Tick(ctx context.Context) error {
	if im.locker != nil && !im.hasLock {
		ok, err := im.locker.TryLock(ctx)
		if err != nil {
			return fmt.Errorf("acquire importer lock: %w", err)
		}
		im.hasLock = ok
		if !ok {
			// не лидер - пропускаем тик
			return nil
		}
		im.logger.Info("importer lock acquired")
	}

	defs, err := im.source.Definitions(ctx)
	if err != nil {
		return fmt.Errorf("load definitions: %w", err)
	}

	events := im.store.Update(defs)
	if len(events) == 0 {
		return nil
	}

	for _, ev := range events {
		if err := im.sink.Submit(ctx, ev); err != nil {
			return fmt.Errorf("submit %s event: %w", ev.Kind, err)
		}
	}

	im.logger.Info("inbound definitions imported",
		"definitions", len(defs),
		"events", len(events),
	)
	return nil
}
