package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the Semgrep MCP server.
type Config struct {
	Port      int
	Version   string
	Transport string
	Engine    EngineConfig
	Registry  RegistryConfig
	Telemetry TelemetryConfig
	Auth      AuthConfig
}

// EngineConfig controls how the external semgrep binary is reached.
type EngineConfig struct {
	// Path is an explicit path to the semgrep binary. When set, the
	// locator search is bypassed and the path is trusted as-is.
	Path string
	// UseRPC enables daemon mode (`semgrep mcp --pro`) when the Pro
	// engine is available. One-shot CLI mode is always available.
	UseRPC bool
	// Hosted marks this server as the hosted deployment, which never
	// spawns a daemon regardless of other settings.
	Hosted bool
	// RPCTrace passes --trace to the daemon for wire-level debugging.
	RPCTrace bool
}

// RegistryConfig points at the Semgrep web API.
type RegistryConfig struct {
	URL      string
	AppToken string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// AuthConfig configures bearer-token verification for the HTTP transport.
// Auth is enabled iff JWKSURL is non-empty.
type AuthConfig struct {
	JWKSURL  string
	Issuer   string
	Audience string
	// SkipAudienceCheck disables the audience claim check. Off by
	// default; only needed for dynamic client registration flows where
	// the audience is not known ahead of time.
	SkipAudienceCheck bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:      envInt("MCP_PORT", 8000),
		Version:   envStr("MCP_VERSION", "1.0.0"),
		Transport: envStr("MCP_TRANSPORT", "stdio"),
		Engine: EngineConfig{
			Path:     envStr("SEMGREP_PATH", ""),
			UseRPC:   envBool("SEMGREP_USE_RPC", true),
			Hosted:   envBool("SEMGREP_IS_HOSTED", false),
			RPCTrace: envBool("SEMGREP_RPC_TRACE", false),
		},
		Registry: RegistryConfig{
			URL:      envStr("SEMGREP_URL", "https://semgrep.dev"),
			AppToken: envStr("SEMGREP_APP_TOKEN", ""),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "semgrep-mcp"),
		},
		Auth: AuthConfig{
			JWKSURL:           envStr("AUTH_JWKS_URL", ""),
			Issuer:            envStr("AUTH_ISSUER", ""),
			Audience:          envStr("AUTH_AUDIENCE", ""),
			SkipAudienceCheck: envBool("AUTH_SKIP_AUDIENCE_CHECK", false),
		},
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
