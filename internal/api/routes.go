package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// RegisterRoutes регистрирует все маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		RequestID(),
		Logging(h.logger),
	)

	// Webhooks (GET покрывает и HEAD)
	webhook := chain(http.HandlerFunc(h.InboundWebhook))
	for _, method := range []string{"GET", "POST", "PUT", "DELETE"} {
		mux.Handle(method+" /inbound/{context...}", webhook)
	}

	// Inbound executables
	mux.Handle("GET /inbound-instances", chain(http.HandlerFunc(h.ListInstances)))
	mux.Handle("GET /inbound-instances/{type}", chain(http.HandlerFunc(h.GetInstances)))
	mux.Handle("GET /inbound-instances/{type}/executables/{id}/logs", chain(http.HandlerFunc(h.GetLogs)))
	mux.Handle("GET /inbound", chain(http.HandlerFunc(h.QueryInbound)))
	mux.Handle("GET /cluster/inbound-instances", chain(http.HandlerFunc(h.ClusterInstances)))

	// Outbound
	mux.Handle("GET /outbound-connectors", chain(http.HandlerFunc(h.ListOutbound)))

	// Service
	mux.HandleFunc("GET /healthz", h.Healthz)
	mux.Handle("GET /metrics", promhttp.Handler())
}

// NewServeHandler возвращает корневой handler с маршрутами и трассировкой.
func (h *Handler) NewServeHandler() http.Handler {
	mux := http.NewServeMux()
	h.RegisterRoutes(mux)
	return otelhttp.NewHandler(mux, "connectors.api")
}
