package server

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hookbridge/hookbridge/internal/handlers"
	"github.com/hookbridge/hookbridge/internal/middleware"
)

// NewRouter constructs a ServeMux with gateway API routes registered.
func NewRouter(wh *handlers.WebhookHandler, ah *handlers.AdminHandler) http.Handler {
	mux := http.NewServeMux()

	// Webhook ingestion, one path per registered source
	mux.HandleFunc("POST /webhooks/{source}", wh.HandleWebhook)

	// Health endpoints
	mux.HandleFunc("GET /healthz", ah.Health)
	mux.HandleFunc("GET /readyz", ah.Ready)

	// Admin dead-letter surface
	mux.HandleFunc("GET /admin/dlq", ah.ListDeadLetters)
	mux.HandleFunc("GET /admin/dlq/stats", ah.DeadLetterStats)

	// Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())

	return middleware.RequestID(mux)
}
