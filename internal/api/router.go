package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Post("/command", s.handleDeviceCommand)
			})
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	wsPath := s.wsCfg.Path
	if wsPath == "" {
		wsPath = "/ws"
	}
	r.Get(wsPath, s.handleWebSocket)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, "method not allowed")
	})

	return r
}

// handleHealth returns the bridge status. It answers 503 while MQTT is
// disconnected or the last gateway poll failed.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	stats := s.bridge.Stats()
	connected := s.bridge.Connected()

	status, code := "ok", http.StatusOK
	switch {
	case !connected:
		status, code = "degraded", http.StatusServiceUnavailable
	case stats.LastPollError != "":
		status, code = "degraded", http.StatusServiceUnavailable
	}

	resp := map[string]any{
		"status":         status,
		"version":        s.version,
		"mqtt_connected": connected,
		"devices":        stats.Devices,
	}
	if !stats.LastPoll.IsZero() {
		resp["last_poll"] = stats.LastPoll.UTC()
	}
	if stats.LastPollError != "" {
		resp["last_poll_error"] = stats.LastPollError
	}
	writeJSON(w, code, resp)
}
