package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/semgrep-mcp/semgrep-mcp/internal/registry"
	"github.com/semgrep-mcp/semgrep-mcp/internal/scan"
	"github.com/semgrep-mcp/semgrep-mcp/pkg/models"
)

func registerTools(s *server.MCPServer, scanner *scan.Scanner, reg *registry.Client) {
	s.AddTool(mcp.NewTool("semgrep_scan",
		mcp.WithDescription("Run a Semgrep scan on code files supplied inline and return the results in JSON format."),
		mcp.WithArray("code_files",
			mcp.Required(),
			mcp.Description("List of objects with 'path' and 'content' keys."),
		),
		mcp.WithString("config",
			mcp.Description("Optional Semgrep configuration (e.g. 'p/docker', 'p/xss', 'auto')."),
		),
	), scanContentHandler(scanner))

	s.AddTool(mcp.NewTool("semgrep_scan_local",
		mcp.WithDescription("Run a Semgrep scan on files already on this machine, given their absolute paths."),
		mcp.WithArray("local_files",
			mcp.Required(),
			mcp.Description("List of objects with a 'path' key holding an absolute file path."),
		),
		mcp.WithString("config",
			mcp.Description("Optional Semgrep configuration (e.g. 'p/docker', 'p/xss', 'auto')."),
		),
	), scanLocalHandler(scanner))

	s.AddTool(mcp.NewTool("semgrep_scan_with_custom_rule",
		mcp.WithDescription("Run a Semgrep scan with a custom rule in Semgrep YAML syntax."),
		mcp.WithArray("code_files",
			mcp.Required(),
			mcp.Description("List of objects with 'path' and 'content' keys."),
		),
		mcp.WithString("rule",
			mcp.Required(),
			mcp.Description("Semgrep YAML rule string."),
		),
	), scanWithRuleHandler(scanner))

	s.AddTool(mcp.NewTool("get_supported_languages",
		mcp.WithDescription("Return the list of languages the installed Semgrep engine supports."),
	), supportedLanguagesHandler(scanner))

	s.AddTool(mcp.NewTool("get_abstract_syntax_tree",
		mcp.WithDescription("Return the abstract syntax tree of a piece of code."),
		mcp.WithString("code", mcp.Required(), mcp.Description("Code content to parse.")),
		mcp.WithString("language", mcp.Required(), mcp.Description("Programming language of the code.")),
	), dumpASTHandler(scanner))

	s.AddTool(mcp.NewTool("semgrep_findings",
		mcp.WithDescription("Fetch findings from the Semgrep platform for the configured deployment."),
		mcp.WithString("status", mcp.Description("Filter by finding status (e.g. 'open', 'fixed').")),
		mcp.WithArray("severities", mcp.Description("Filter by severities (e.g. 'high', 'critical').")),
		mcp.WithNumber("page_size", mcp.Description("Maximum number of findings to return.")),
	), findingsHandler(reg))
}

func scanContentHandler(scanner *scan.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		files, err := codeFilesArg(req, "code_files")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := scanner.ScanContent(ctx, files, req.GetString("config", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func scanLocalHandler(scanner *scan.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, ok := req.GetArguments()["local_files"]
		if !ok {
			return mcp.NewToolResultError("local_files must be a non-empty list of file objects"), nil
		}

		var entries []struct {
			Path string `json:"path"`
		}
		if err := reencode(raw, &entries); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid local_files format: %v", err)), nil
		}
		paths := make([]string, 0, len(entries))
		for _, e := range entries {
			paths = append(paths, e.Path)
		}

		result, err := scanner.ScanLocal(ctx, paths, req.GetString("config", ""))
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func scanWithRuleHandler(scanner *scan.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		files, err := codeFilesArg(req, "code_files")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		rule, err := req.RequireString("rule")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		result, err := scanner.ScanWithRule(ctx, files, rule)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(result)
	}
}

func supportedLanguagesHandler(scanner *scan.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		languages, err := scanner.SupportedLanguages(ctx)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(strings.Join(languages, "\n")), nil
	}
}

func dumpASTHandler(scanner *scan.Scanner) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		code, err := req.RequireString("code")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		language, err := req.RequireString("language")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		ast, err := scanner.DumpAST(ctx, models.CodeFile{
			Path:    "snippet." + extensionFor(language),
			Content: code,
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(ast), nil
	}
}

func findingsHandler(reg *registry.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		var severities []string
		if raw, ok := req.GetArguments()["severities"]; ok {
			if err := reencode(raw, &severities); err != nil {
				return mcp.NewToolResultError(fmt.Sprintf("invalid severities format: %v", err)), nil
			}
		}

		findings, err := reg.Findings(ctx, registry.FindingsQuery{
			Status:     req.GetString("status", ""),
			Severities: severities,
			PageSize:   req.GetInt("page_size", 0),
		})
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(findings)
	}
}

// codeFilesArg decodes a code_files-style argument into CodeFile values.
func codeFilesArg(req mcp.CallToolRequest, key string) ([]models.CodeFile, error) {
	raw, ok := req.GetArguments()[key]
	if !ok {
		return nil, fmt.Errorf("%s must be a non-empty list of file objects", key)
	}

	var files []models.CodeFile
	if err := reencode(raw, &files); err != nil {
		return nil, fmt.Errorf("invalid %s format: %v", key, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%s must be a non-empty list of file objects", key)
	}
	return files, nil
}

// reencode converts an arbitrary decoded JSON value into a typed one.
func reencode(from any, to any) error {
	data, err := json.Marshal(from)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, to)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, err
	}
	return mcp.NewToolResultText(string(data)), nil
}

// extensionFor maps a language name to a plausible file extension so the
// engine can detect the snippet's language.
func extensionFor(language string) string {
	switch strings.ToLower(language) {
	case "python":
		return "py"
	case "javascript":
		return "js"
	case "typescript":
		return "ts"
	case "go", "golang":
		return "go"
	case "java":
		return "java"
	case "ruby":
		return "rb"
	case "c":
		return "c"
	case "cpp", "c++":
		return "cpp"
	case "rust":
		return "rs"
	case "kotlin":
		return "kt"
	case "php":
		return "php"
	default:
		return "txt"
	}
}
