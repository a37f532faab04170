package server

import (
	"log/slog"
	"net/http"
	"strings"
)

// Config contains server configuration options.
type Config struct {
	// AllowedOrigins is the list of allowed CORS origins.
	AllowedOrigins []string
	// StaticDir is served under StaticPrefix when set. It holds locally
	// published videos.
	StaticDir string
	// StaticPrefix is the URL path segment for StaticDir, e.g. "dubbed".
	StaticPrefix string
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() Config {
	return Config{
		AllowedOrigins: []string{"*"},
	}
}

// NewRouter creates a new HTTP router with all routes configured.
// It uses Go 1.22+ ServeMux with method-based routing.
func NewRouter(h *Handlers, logger *slog.Logger, cfg Config) http.Handler {
	mux := http.NewServeMux()

	// Register routes with method-based patterns (Go 1.22+)
	mux.HandleFunc("GET /{$}", h.Home)
	mux.HandleFunc("GET /health", h.Health)
	mux.HandleFunc("POST /api/dub", h.Dub)
	mux.HandleFunc("POST /api/detect_gender", h.DetectGender)

	if prefix := strings.Trim(cfg.StaticPrefix, "/"); cfg.StaticDir != "" && prefix != "" {
		// Files are stored as <StaticDir>/<prefix>/<name>, so the request
		// path maps onto StaticDir unchanged.
		mux.Handle("GET /"+prefix+"/", http.FileServer(http.Dir(cfg.StaticDir)))
	}

	// Apply middleware chain
	chain := ChainMiddleware(
		RequestIDMiddleware(),
		RecoveryMiddleware(logger),
		LoggingMiddleware(logger),
		CORSMiddleware(cfg.AllowedOrigins),
	)

	return chain(mux)
}
