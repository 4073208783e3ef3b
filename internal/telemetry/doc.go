// Package telemetry обеспечивает наблюдаемость runtime коннекторов.
//
// Включает:
//   - logging.go - structured logging через slog
//   - metrics.go - Prometheus метрики inbound/outbound коннекторов
//   - tracing.go - OpenTelemetry трейсинг (OTLP/gRPC экспорт)
//
// Все сервисы используют единый формат логирования
// и экспортируют метрики на /metrics endpoint.
package telemetry
