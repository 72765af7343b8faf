// Package mcpserver wires the MCP server: tool and resource registration
// over the scanner, engine session, and registry client.
package mcpserver

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/semgrep-mcp/semgrep-mcp/internal/registry"
	"github.com/semgrep-mcp/semgrep-mcp/internal/scan"
)

const serverInstructions = `Semgrep MCP server. Use semgrep_scan to check code
for security vulnerabilities and bugs. Prefer semgrep_scan_local for files
already on disk and semgrep_scan for code supplied inline. Findings from the
Semgrep platform are available through semgrep_findings when an app token is
configured.`

// New creates the MCP server with all tools and resources registered.
func New(version string, scanner *scan.Scanner, reg *registry.Client) *server.MCPServer {
	s := server.NewMCPServer(
		"Semgrep",
		version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions),
	)

	registerTools(s, scanner, reg)
	registerResources(s, reg)

	return s
}
