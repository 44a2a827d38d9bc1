package handler

import (
	"github.com/cvette/pmflow/internal/metrics"
	"github.com/cvette/pmflow/internal/server"
)

func NewBridgeRoute(handler *RequestHandler) server.HttpHandlerResult {
	return server.AsHttpPrefixHandler("/", handler)
}

func NewHealthRoute(handler *HealthHandler) server.HttpHandlerResult {
	return server.AsHttpHandler("/health", handler)
}

func NewMetricsRoute(m *metrics.Metrics) server.HttpHandlerResult {
	return server.AsHttpHandler("/metrics", m.Handler())
}
