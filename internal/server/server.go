// Package server exposes the REST and WebSocket API.
package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tabsplit/tabsplit/internal/metrics"
	"github.com/tabsplit/tabsplit/internal/notifier"
	"github.com/tabsplit/tabsplit/internal/service"
)

// Server holds the handler dependencies.
type Server struct {
	groups   *service.GroupService
	receipts *service.ReceiptService
	notifier *notifier.Notifier
	metrics  *metrics.Metrics
	upgrader websocket.Upgrader

	allowedOrigin string
}

// New creates the API server.
func New(groups *service.GroupService, receipts *service.ReceiptService, n *notifier.Notifier, m *metrics.Metrics, allowedOrigin string) *Server {
	s := &Server{
		groups:        groups,
		receipts:      receipts,
		notifier:      n,
		metrics:       m,
		allowedOrigin: allowedOrigin,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if s.allowedOrigin == "*" {
				return true
			}
			return r.Header.Get("Origin") == s.allowedOrigin
		},
	}
	return s
}

// Handler builds the route table wrapped in logging and CORS middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/groups", s.handleCreateGroup)
	mux.HandleFunc("GET /api/groups", s.handleListGroups)
	mux.HandleFunc("GET /api/groups/{id}", s.handleGetGroup)
	mux.HandleFunc("PATCH /api/groups/{id}", s.handleUpdateGroup)
	mux.HandleFunc("DELETE /api/groups/{id}", s.handleDeleteGroup)
	mux.HandleFunc("GET /api/groups/slug/{slug}", s.handleGetGroupBySlug)
	mux.HandleFunc("GET /api/groups/{id}/version", s.handleGroupVersion)
	mux.HandleFunc("GET /api/groups/{id}/ws", s.handleWebSocket)

	mux.HandleFunc("POST /api/groups/{id}/receipts", s.handleCreateReceipt)
	mux.HandleFunc("GET /api/groups/{id}/receipts", s.handleListReceipts)
	mux.HandleFunc("POST /api/groups/{id}/receipts/scan", s.handleScanReceipt)
	mux.HandleFunc("GET /api/receipts/{id}", s.handleGetReceipt)
	mux.HandleFunc("PATCH /api/receipts/{id}", s.handleUpdateReceipt)
	mux.HandleFunc("DELETE /api/receipts/{id}", s.handleDeleteReceipt)
	mux.HandleFunc("GET /api/receipts/{id}/split", s.handleSplitReceipt)
	mux.HandleFunc("POST /api/receipts/{id}/entries", s.handleAddEntry)
	mux.HandleFunc("PATCH /api/entries/{id}", s.handleUpdateEntry)
	mux.HandleFunc("DELETE /api/entries/{id}", s.handleDeleteEntry)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", s.metrics.Handler())

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// statusRecorder captures the response code for logging and metrics.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// loggingMiddleware logs every request with its outcome and duration.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// WebSocket upgrades hijack the connection; the recorder wrapper
		// would hide the Hijacker interface from the upgrader.
		if websocket.IsWebSocketUpgrade(r) {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		s.metrics.HTTPRequests.WithLabelValues(r.Method, strconv.Itoa(rec.status)).Inc()
		slog.Info("request completed",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}

// corsMiddleware adds CORS headers for browser access.
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
