package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/semgrep-mcp/semgrep-mcp/internal/config"
)

// Session is the server-lifetime connection to the semgrep engine. It is
// created once at startup, read by many concurrent tool calls, and shut
// down exactly once. Mode flags never change after Open returns.
type Session struct {
	exe        *Executable
	daemon     *daemon // nil unless daemon mode was selected and spawn succeeded
	proEngine  bool
	rpcEnabled bool
	hosted     bool

	shutdownOnce sync.Once
}

// shouldSpawnDaemon is the daemon-mode decision: spawn iff the Pro engine
// is installed, RPC mode is enabled, and this is not a hosted deployment.
func shouldSpawnDaemon(proAvailable, rpcEnabled, hosted bool) bool {
	return proAvailable && rpcEnabled && !hosted
}

// Open establishes the engine session. The executable must already be
// resolvable through loc; an unresolvable executable is fatal. A missing
// Pro engine is only a capability gap: the session still works in
// one-shot mode.
func Open(ctx context.Context, cfg config.EngineConfig, loc *Locator) (*Session, error) {
	exe, err := loc.Resolve(ctx)
	if err != nil {
		return nil, err
	}

	pro := probeProEngine(ctx, exe.Path)
	if !pro {
		log.Warn().Msg("Semgrep Pro engine not installed, daemon mode unavailable; scans use one-shot mode")
	}

	s := &Session{
		exe:        exe,
		proEngine:  pro,
		rpcEnabled: cfg.UseRPC,
		hosted:     cfg.Hosted,
	}

	if shouldSpawnDaemon(pro, cfg.UseRPC, cfg.Hosted) {
		d, err := startDaemon(exe.Path, cfg.RPCTrace)
		if err != nil {
			return nil, fmt.Errorf("daemon mode selected but spawn failed: %w", err)
		}
		s.daemon = d
	}

	return s, nil
}

// probeProEngine checks for the Pro engine via `--pro --version`. A
// non-zero exit means the feature is not installed; that is a capability
// flag, not an error.
func probeProEngine(ctx context.Context, exePath string) bool {
	_, err := RunOnce(ctx, exePath, "--pro", "--version")
	if err == nil {
		return true
	}

	var exitErr *ExitError
	if !errors.As(err, &exitErr) {
		// Probe failed for a reason other than the engine saying no.
		// Treat as unavailable but surface the cause.
		log.Warn().Err(err).Msg("Pro engine probe failed")
	}
	return false
}

// Executable returns the resolved engine binary for one-shot invocations.
func (s *Session) Executable() *Executable { return s.exe }

// ProEngineAvailable reports whether the Pro engine probe succeeded at
// session start.
func (s *Session) ProEngineAvailable() bool { return s.proEngine }

// RPCActive reports whether RPC calls can currently be routed to a live
// daemon. It becomes false permanently once the daemon is marked dead.
func (s *Session) RPCActive() bool {
	return s.daemon != nil && !s.daemon.dead.Load()
}

// Call sends one RPC request to the daemon and returns the decoded
// response object. It fails fast with ErrRPCUnavailable when the session
// has no live daemon; every RPC method must have a one-shot equivalent
// the caller can fall back to.
func (s *Session) Call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	if !s.RPCActive() || !s.proEngine {
		return nil, ErrRPCUnavailable
	}
	return s.daemon.call(ctx, method, args)
}

// Shutdown terminates the daemon if one was started. Idempotent; a
// session without a daemon is a no-op.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		if s.daemon != nil {
			s.daemon.terminate()
		}
	})
}
