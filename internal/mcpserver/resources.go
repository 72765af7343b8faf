package mcpserver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/semgrep-mcp/semgrep-mcp/internal/registry"
)

func registerResources(s *server.MCPServer, reg *registry.Client) {
	schema := mcp.NewResource(
		"semgrep://rule/schema",
		"Semgrep rule schema",
		mcp.WithResourceDescription("Specification of the Semgrep rule YAML syntax using JSON schema."),
		mcp.WithMIMEType("text/yaml"),
	)
	s.AddResource(schema, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		text, err := reg.RuleSchema(ctx)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "text/yaml", Text: text},
		}, nil
	})

	ruleTemplate := mcp.NewResourceTemplate(
		"semgrep://rule/{rule_id}/yaml",
		"Semgrep registry rule",
		mcp.WithTemplateDescription("Full Semgrep rule in YAML format from the Semgrep registry."),
		mcp.WithTemplateMIMEType("text/yaml"),
	)
	s.AddResourceTemplate(ruleTemplate, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		ruleID, err := ruleIDFromURI(req.Params.URI)
		if err != nil {
			return nil, err
		}
		text, err := reg.RuleYAML(ctx, ruleID)
		if err != nil {
			return nil, err
		}
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "text/yaml", Text: text},
		}, nil
	})
}

// ruleIDFromURI extracts the rule ID from semgrep://rule/<id>/yaml.
func ruleIDFromURI(uri string) (string, error) {
	trimmed, ok := strings.CutPrefix(uri, "semgrep://rule/")
	if !ok {
		return "", fmt.Errorf("unexpected resource URI: %s", uri)
	}
	ruleID, ok := strings.CutSuffix(trimmed, "/yaml")
	if !ok || ruleID == "" {
		return "", fmt.Errorf("unexpected resource URI: %s", uri)
	}
	return ruleID, nil
}
