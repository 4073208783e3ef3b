// Package api - HTTP интерфейс runtime.
//
// Webhook endpoint:
//
//	GET|HEAD|POST|PUT|DELETE /inbound/{context}
//
// Управление и наблюдение:
//
//	GET /inbound-instances
//	GET /inbound-instances/{type}
//	GET /inbound-instances/{type}/executables/{id}/logs
//	GET /inbound
//	GET /cluster/inbound-instances
//	GET /outbound-connectors
//	GET /healthz
//	GET /metrics
package api
