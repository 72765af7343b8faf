package config

import "testing"

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{
		"MCP_PORT", "MCP_TRANSPORT", "SEMGREP_PATH", "SEMGREP_USE_RPC",
		"SEMGREP_IS_HOSTED", "SEMGREP_URL", "AUTH_JWKS_URL",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()

	if cfg.Port != 8000 {
		t.Errorf("Port = %d, want 8000", cfg.Port)
	}
	if cfg.Transport != "stdio" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "stdio")
	}
	if !cfg.Engine.UseRPC {
		t.Error("Engine.UseRPC = false, want true by default")
	}
	if cfg.Engine.Hosted {
		t.Error("Engine.Hosted = true, want false by default")
	}
	if cfg.Registry.URL != "https://semgrep.dev" {
		t.Errorf("Registry.URL = %q, want %q", cfg.Registry.URL, "https://semgrep.dev")
	}
	if cfg.Auth.JWKSURL != "" {
		t.Errorf("Auth.JWKSURL = %q, want empty (auth disabled)", cfg.Auth.JWKSURL)
	}
	if cfg.Auth.SkipAudienceCheck {
		t.Error("Auth.SkipAudienceCheck = true, want false by default")
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("MCP_PORT", "9090")
	t.Setenv("MCP_TRANSPORT", "streamable-http")
	t.Setenv("SEMGREP_PATH", "/opt/semgrep/bin/semgrep")
	t.Setenv("SEMGREP_USE_RPC", "false")
	t.Setenv("SEMGREP_IS_HOSTED", "true")
	t.Setenv("AUTH_JWKS_URL", "https://auth.example.com/.well-known/jwks.json")

	cfg := Load()

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.Transport != "streamable-http" {
		t.Errorf("Transport = %q, want %q", cfg.Transport, "streamable-http")
	}
	if cfg.Engine.Path != "/opt/semgrep/bin/semgrep" {
		t.Errorf("Engine.Path = %q", cfg.Engine.Path)
	}
	if cfg.Engine.UseRPC {
		t.Error("Engine.UseRPC = true, want false when disabled")
	}
	if !cfg.Engine.Hosted {
		t.Error("Engine.Hosted = false, want true")
	}
	if cfg.Auth.JWKSURL == "" {
		t.Error("Auth.JWKSURL empty, want configured URL")
	}
}
