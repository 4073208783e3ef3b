package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig: конфигурация не прошла валидацию.
var ErrInvalidConfig = errors.New("invalid config")

// Config: настройки runtime.
type Config struct {
	API      APIConfig      `yaml:"api"`
	Database DatabaseConfig `yaml:"database"`
	Engine   EngineConfig   `yaml:"engine"`
	Importer ImporterConfig `yaml:"importer"`
	Worker   WorkerConfig   `yaml:"worker"`

	// Peers: адреса runtime API других экземпляров для кластерного представления.
	Peers []string `yaml:"peers"`

	// Secrets: статические секреты.
	Secrets map[string]string `yaml:"secrets"`

	// DefinitionsPath: файл или каталог с YAML process definitions.
	DefinitionsPath string `yaml:"definitionsPath"`
}

type APIConfig struct {
	Port string `yaml:"port"`
}

type DatabaseConfig struct {
	// URL: пусто означает работу без Postgres.
	URL     string `yaml:"url"`
	Migrate bool   `yaml:"migrate"`
}

type EngineConfig struct {
	URL     string        `yaml:"url"`
	Token   string        `yaml:"token"`
	Timeout time.Duration `yaml:"timeout"`
}

type ImporterConfig struct {
	Interval time.Duration `yaml:"interval"`
}

type WorkerConfig struct {
	Enabled       *bool         `yaml:"enabled"`
	PollInterval  time.Duration `yaml:"pollInterval"`
	MaxJobsActive int           `yaml:"maxJobsActive"`
	TenantIDs     []string      `yaml:"tenantIds"`
}

// WorkerEnabled: запускать ли outbound воркер (default: true).
func (c *Config) WorkerEnabled() bool {
	return c.Worker.Enabled == nil || *c.Worker.Enabled
}

// Default возвращает конфигурацию по умолчанию.
func Default() *Config {
	return &Config{
		API:      APIConfig{Port: "8085"},
		Engine:   EngineConfig{URL: "http://localhost:8080", Timeout: 30 * time.Second},
		Importer: ImporterConfig{Interval: 5 * time.Second},
		Worker:   WorkerConfig{PollInterval: 100 * time.Millisecond, MaxJobsActive: 32},
		Secrets:  map[string]string{},
	}
}

// Load читает файл (если path не пуст) и применяет переменные окружения.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := Parse(data, cfg); err != nil {
			return nil, err
		}
	}
	ApplyEnv(cfg, os.LookupEnv)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse разбирает YAML поверх cfg. Неизвестные ключи - ошибка.
func Parse(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// ApplyEnv переопределяет значения из окружения.
func ApplyEnv(cfg *Config, lookup func(string) (string, bool)) {
	set := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	set("API_PORT", &cfg.API.Port)
	set("DB_URL", &cfg.Database.URL)
	set("ENGINE_URL", &cfg.Engine.URL)
	set("ENGINE_TOKEN", &cfg.Engine.Token)
	set("CONNECTORS_DEFINITIONS", &cfg.DefinitionsPath)

	if v, ok := lookup("CONNECTORS_PEERS"); ok && v != "" {
		cfg.Peers = splitList(v)
	}
	if v, ok := lookup("CONNECTORS_WORKER_ENABLED"); ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Worker.Enabled = &b
		}
	}
}

// Validate проверяет конфигурацию.
func (c *Config) Validate() error {
	if c.API.Port == "" {
		return fmt.Errorf("%w: api.port is required", ErrInvalidConfig)
	}
	if _, err := strconv.Atoi(c.API.Port); err != nil {
		return fmt.Errorf("%w: api.port: %v", ErrInvalidConfig, err)
	}
	if c.Worker.MaxJobsActive < 0 {
		return fmt.Errorf("%w: worker.maxJobsActive must not be negative", ErrInvalidConfig)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
