package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atelier-dev/atelier/internal/artifact"
	"github.com/atelier-dev/atelier/internal/ingest"
	"github.com/atelier-dev/atelier/internal/style"
)

// ServerConfig contains configuration for creating the API server.
type ServerConfig struct {
	Logger      *slog.Logger
	Artifacts   *artifact.Store   // Required
	Rerunner    *artifact.Rerunner // Required
	Styles      *style.Resolver   // Required
	Controller  *ingest.Controller // Required
	Pool        *pgxpool.Pool     // Optional: nil disables pool stats in /ready
	CORSOrigins []string          // Allowed origins for CORS
	TrustProxy  bool              // Trust X-Real-IP/X-Forwarded-For headers
	RateBurst   int               // Rate limiter burst size per IP (0 = default 60)
}

// Server is the JSON API HTTP server.
type Server struct {
	mux *http.ServeMux
}

// NewServer creates a new API server with all routes configured.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Artifacts == nil {
		return nil, errors.New("artifact store is required")
	}
	if cfg.Rerunner == nil {
		return nil, errors.New("rerunner is required")
	}
	if cfg.Styles == nil {
		return nil, errors.New("style resolver is required")
	}
	if cfg.Controller == nil {
		return nil, errors.New("ingestion controller is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ah := &artifactHandler{store: cfg.Artifacts, rerunner: cfg.Rerunner, logger: logger}
	sh := &styleHandler{resolver: cfg.Styles, logger: logger}
	ch := &chatHandler{controller: cfg.Controller, logger: logger}

	mux := http.NewServeMux()

	// Artifacts
	mux.HandleFunc("GET /api/v1/artifacts/{id}", ah.get)
	mux.HandleFunc("POST /api/v1/versions/{id}/rerun", ah.rerun)

	// Styles
	mux.HandleFunc("GET /api/v1/styles", sh.list)
	mux.HandleFunc("POST /api/v1/conversations/{id}/style", sh.setStyle)

	// Chat (SSE)
	mux.HandleFunc("POST /api/v1/chat", ch.stream)

	// Rate limiter: per-IP token bucket (1 token/sec refill)
	burst := cfg.RateBurst
	if burst <= 0 {
		burst = 60
	}
	rl := newRateLimiter(1.0, burst)

	// Build middleware stack (outermost first):
	//   Recovery → RequestID → Logging → CORS → RateLimit → Routes
	// RequestID must be before Logging so request_id is available in
	// log attributes. CORS must be before RateLimit so preflight
	// OPTIONS gets proper CORS headers.
	var handler http.Handler = mux
	handler = rateLimitMiddleware(rl, cfg.TrustProxy, logger)(handler)
	handler = corsMiddleware(cfg.CORSOrigins)(handler)
	handler = loggingMiddleware(logger)(handler)
	handler = requestIDMiddleware()(handler)
	handler = recoveryMiddleware(logger)(handler)

	// Health probes bypass the middleware stack.
	topMux := http.NewServeMux()
	topMux.HandleFunc("GET /health", health)
	topMux.Handle("GET /ready", readiness(cfg.Pool))
	topMux.Handle("/", handler)

	return &Server{mux: topMux}, nil
}

// Handler returns the server as an http.Handler.
func (s *Server) Handler() http.Handler {
	return s.mux
}
