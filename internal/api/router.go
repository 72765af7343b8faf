// Package api provides the HTTP surface for the streamable-http transport:
// the MCP endpoint plus health and version routes.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/semgrep-mcp/semgrep-mcp/internal/api/middleware"
	"github.com/semgrep-mcp/semgrep-mcp/internal/auth"
	"github.com/semgrep-mcp/semgrep-mcp/internal/config"
)

// NewRouter builds the HTTP router. mcpHandler serves the MCP protocol at
// /mcp; verifier may be nil to disable bearer auth.
func NewRouter(cfg *config.Config, mcpHandler http.Handler, verifier *auth.Verifier) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	// CORS runs before auth: browser preflights carry no Authorization
	// header and must be answered, not rejected with 401.
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Mcp-Session-Id", "X-Request-Id"},
		ExposedHeaders:   []string{"Mcp-Session-Id", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	// A nil *auth.Verifier must stay a nil interface inside the
	// middleware, so only assign when auth is actually configured.
	var tv middleware.TokenVerifier
	if verifier != nil {
		tv = verifier
	}
	r.Use(middleware.NewBearerAuth(tv).Handler)

	r.Get("/health", healthHandler(cfg))
	r.Get("/version", versionHandler(cfg))
	r.Mount("/mcp", mcpHandler)

	return r
}

func healthHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "ok",
			"version": cfg.Version,
		})
	}
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "semgrep-mcp",
		})
	}
}
