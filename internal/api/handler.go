package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/shaiso/Connectors/internal/connector"
	"github.com/shaiso/Connectors/internal/domain"
	"github.com/shaiso/Connectors/internal/inbound"
	"github.com/shaiso/Connectors/internal/telemetry"
)

// InboundRegistry: состояние inbound executables. Реализуется *inbound.Registry.
type InboundRegistry interface {
	Webhook(path string) (inbound.WebhookTarget, bool)
	Query(q inbound.Query) []domain.ActiveInboundConnector
	Instances() []domain.ConnectorInstances
	InstancesByType(connectorType string) (domain.ConnectorInstances, error)
	Logs(connectorType string, id uuid.UUID) ([]domain.Activity, error)
}

// Handler: главный обработчик API с зависимостями.
type Handler struct {
	inbound    InboundRegistry
	connectors *connector.Registry
	peers      []string
	client     *http.Client
	maxBody    int64
	logger     *slog.Logger
}

// Config: конфигурация для создания Handler.
type Config struct {
	Inbound    InboundRegistry
	Connectors *connector.Registry

	// Peers: базовые URL runtime API других экземпляров.
	Peers []string

	// PeerTimeout: таймаут запроса к одному peer (default: 5s).
	PeerTimeout time.Duration

	// MaxBodyBytes: ограничение тела webhook запроса (default: 10 MiB).
	MaxBodyBytes int64

	// HTTPClient: клиент для запросов к peers (для тестов).
	HTTPClient *http.Client

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.PeerTimeout
		if timeout <= 0 {
			timeout = 5 * time.Second
		}
		client = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	maxBody := cfg.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = 10 << 20
	}
	connectors := cfg.Connectors
	if connectors == nil {
		connectors = connector.NewRegistry()
	}

	return &Handler{
		inbound:    cfg.Inbound,
		connectors: connectors,
		peers:      cfg.Peers,
		client:     client,
		maxBody:    maxBody,
		logger:     telemetry.OrDefault(cfg.Logger),
	}
}
