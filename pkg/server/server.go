// Package server provides the public entry point for initializing the
// Semgrep MCP server: configuration, telemetry, the engine session, and
// the MCP and HTTP surfaces, composed in one place.
package server

import (
	"context"
	"fmt"
	"net/http"

	mcpgo "github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog/log"

	"github.com/semgrep-mcp/semgrep-mcp/internal/api"
	"github.com/semgrep-mcp/semgrep-mcp/internal/auth"
	"github.com/semgrep-mcp/semgrep-mcp/internal/config"
	"github.com/semgrep-mcp/semgrep-mcp/internal/engine"
	"github.com/semgrep-mcp/semgrep-mcp/internal/mcpserver"
	"github.com/semgrep-mcp/semgrep-mcp/internal/registry"
	"github.com/semgrep-mcp/semgrep-mcp/internal/scan"
	"github.com/semgrep-mcp/semgrep-mcp/internal/telemetry"
)

// Options are CLI-level overrides applied on top of the environment
// configuration. Zero values mean "use the environment/default".
type Options struct {
	Transport   string
	Port        int
	SemgrepPath string
}

// Server holds the initialized Semgrep MCP server.
type Server struct {
	// MCP is the protocol server, for the stdio transport.
	MCP *mcpgo.MCPServer

	// Handler is the HTTP handler for the streamable-http transport.
	Handler http.Handler

	// Config is the resolved configuration.
	Config *config.Config

	// Session is the engine session; exposed for diagnostics.
	Session *engine.Session

	// ShutdownFunc must be called exactly once on shutdown. It
	// terminates the engine daemon and flushes telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components and returns a ready Server. Fails if the
// semgrep executable cannot be located or, when configured, the JWKS
// client cannot be built.
func New(ctx context.Context, opts Options) (*Server, error) {
	cfg := config.Load()
	if opts.Transport != "" {
		cfg.Transport = opts.Transport
	}
	if opts.Port > 0 {
		cfg.Port = opts.Port
	}
	if opts.SemgrepPath != "" {
		cfg.Engine.Path = opts.SemgrepPath
	}

	telemetryShutdown, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	locator := engine.NewLocator(cfg.Engine.Path)
	session, err := engine.Open(ctx, cfg.Engine, locator)
	if err != nil {
		_ = telemetryShutdown(ctx)
		return nil, err
	}
	log.Info().
		Str("semgrep", session.Executable().Path).
		Str("version", session.Executable().Version).
		Bool("pro_engine", session.ProEngineAvailable()).
		Bool("rpc", session.RPCActive()).
		Msg("Engine session established")

	appToken := cfg.Registry.AppToken
	if appToken == "" {
		appToken = registry.AppToken()
	}
	reg := registry.NewClient(cfg.Registry, appToken)

	var verifier *auth.Verifier
	if cfg.Auth.JWKSURL != "" {
		verifier, err = auth.NewVerifier(ctx, cfg.Auth)
		if err != nil {
			session.Shutdown()
			_ = telemetryShutdown(ctx)
			return nil, err
		}
		log.Info().Str("issuer", cfg.Auth.Issuer).Msg("Bearer token verification enabled")
	}

	scanner := scan.NewScanner(session)
	mcpSrv := mcpserver.New(cfg.Version, scanner, reg)

	streamable := mcpgo.NewStreamableHTTPServer(mcpSrv,
		mcpgo.WithStateLess(true),
	)

	return &Server{
		MCP:     mcpSrv,
		Handler: api.NewRouter(cfg, streamable, verifier),
		Config:  cfg,
		Session: session,
		ShutdownFunc: func(ctx context.Context) error {
			session.Shutdown()
			return telemetryShutdown(ctx)
		},
	}, nil
}
