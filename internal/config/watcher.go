package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/shaiso/Connectors/internal/telemetry"
)

const defaultDebounce = 100 * time.Millisecond

// Watcher следит за файлом или каталогом и вызывает OnChange после изменений.
// Серия событий в пределах Debounce схлопывается в один вызов.
type Watcher struct {
	path     string
	onChange func()
	debounce time.Duration
	logger   *slog.Logger

	fs *fsnotify.Watcher
}

// WatcherConfig: конфигурация Watcher.
type WatcherConfig struct {
	Path     string
	OnChange func()
	Debounce time.Duration
	Logger   *slog.Logger
}

// NewWatcher создаёт Watcher. Для файла наблюдается его каталог,
// чтобы переживать атомарную замену файла редакторами.
func NewWatcher(cfg WatcherConfig) (*Watcher, error) {
	abs, err := filepath.Abs(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("resolve path: %w", err)
	}
	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	dir := abs
	if info, err := os.Stat(abs); err != nil || !info.IsDir() {
		dir = filepath.Dir(abs)
	}
	if err := fs.Add(dir); err != nil {
		_ = fs.Close()
		return nil, fmt.Errorf("watch %s: %w", dir, err)
	}

	return &Watcher{
		path:     abs,
		onChange: cfg.OnChange,
		debounce: debounce,
		logger:   telemetry.OrDefault(cfg.Logger),
		fs:       fs,
	}, nil
}

// Run обрабатывает события, пока ctx не отменён. Закрывает fsnotify watcher при выходе.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fs.Close()

	var timer *time.Timer
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			if timer != nil {
				timer.Stop()
			}
			timer = time.AfterFunc(w.debounce, func() {
				w.logger.Info("definitions changed", "path", w.path)
				w.onChange()
			})

		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", "error", err)
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) && !ev.Has(fsnotify.Rename) {
		return false
	}
	name := filepath.Clean(ev.Name)
	if name == w.path {
		return true
	}
	// событие в наблюдаемом каталоге
	return filepath.Dir(name) == w.path && isYAML(name)
}
