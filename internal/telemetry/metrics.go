package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Действия над inbound executable для метрики активаций.
const (
	ActionActivated   = "activated"
	ActionDeactivated = "deactivated"
	ActionFailed      = "activation_failed"
)

// Исходы outbound заданий.
const (
	JobCompleted = "completed"
	JobFailed    = "failed"
	JobBPMNError = "bpmn_error"
)

var (
	// InboundActivations: активации и деактивации inbound коннекторов.
	InboundActivations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectors_inbound_activations_total",
		Help: "Inbound connector activations by action and type",
	}, []string{"action", "type"})

	// InboundCorrelations: результаты корреляции inbound событий.
	InboundCorrelations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectors_inbound_correlations_total",
		Help: "Inbound correlation results by type and result",
	}, []string{"type", "result"})

	// WebhookRequests: ответы webhook endpoint по статусу.
	WebhookRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectors_webhook_requests_total",
		Help: "Webhook requests by response status code",
	}, []string{"code"})

	// OutboundJobs: исходы outbound заданий.
	OutboundJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "connectors_outbound_jobs_total",
		Help: "Outbound jobs handled by type and outcome",
	}, []string{"type", "outcome"})

	// OutboundJobDuration: длительность вызова outbound функции.
	OutboundJobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "connectors_outbound_job_duration_seconds",
		Help:    "Outbound connector function execution time",
		Buckets: prometheus.DefBuckets,
	}, []string{"type"})
)
