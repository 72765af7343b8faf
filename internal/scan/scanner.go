package scan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/semgrep-mcp/semgrep-mcp/internal/engine"
	"github.com/semgrep-mcp/semgrep-mcp/pkg/models"
)

var tracer = otel.Tracer("semgrep-mcp")

// Scanner runs scans against the engine session, preferring the daemon
// RPC path when the session has one and falling back to one-shot CLI
// invocations otherwise.
type Scanner struct {
	session *engine.Session
}

// NewScanner creates a scanner bound to an open engine session.
func NewScanner(session *engine.Session) *Scanner {
	return &Scanner{session: session}
}

// ScanContent scans in-memory code files. With no explicit config and a
// live daemon the files are sent over RPC; otherwise they are staged to a
// temp directory and scanned with a fresh subprocess.
func (s *Scanner) ScanContent(ctx context.Context, files []models.CodeFile, config string) (*models.ScanResult, error) {
	cfg, err := ValidateConfig(config)
	if err != nil {
		return nil, err
	}

	scanID := uuid.NewString()
	ctx, span := tracer.Start(ctx, "semgrep.scan")
	defer span.End()
	span.SetAttributes(
		attribute.String("scan.id", scanID),
		attribute.Int("scan.files", len(files)),
		attribute.String("scan.config", cfg),
	)

	// The daemon only serves the default ruleset; an explicit config
	// always takes the CLI path.
	if cfg == "" && s.session.RPCActive() {
		span.SetAttributes(attribute.String("scan.mode", "rpc"))
		result, err := s.scanViaRPC(ctx, files)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, engine.ErrRPCUnavailable) && !errors.Is(err, engine.ErrDaemonNotRunning) {
			return nil, err
		}
		log.Warn().Err(err).Str("scan_id", scanID).Msg("RPC scan unavailable, falling back to one-shot")
	}

	span.SetAttributes(attribute.String("scan.mode", "one-shot"))
	return s.scanOneShot(ctx, files, cfg)
}

// ScanLocal reads files from the local filesystem and scans their
// contents. Paths must be absolute; only the basename is used as the
// staged name.
func (s *Scanner) ScanLocal(ctx context.Context, paths []string, config string) (*models.ScanResult, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("local_files must be a non-empty list of absolute paths")
	}

	files := make([]models.CodeFile, 0, len(paths))
	for _, p := range paths {
		abs, err := ValidateAbsolutePath(p, "local_files.path")
		if err != nil {
			return nil, err
		}
		content, err := os.ReadFile(abs)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", abs, err)
		}
		files = append(files, models.CodeFile{Path: filepath.Base(abs), Content: string(content)})
	}

	return s.ScanContent(ctx, files, config)
}

// ScanWithRule scans in-memory files against a caller-supplied rule in
// Semgrep YAML syntax. Always takes the one-shot path.
func (s *Scanner) ScanWithRule(ctx context.Context, files []models.CodeFile, rule string) (*models.ScanResult, error) {
	ruleDir, err := os.MkdirTemp("", "semgrep_rule_")
	if err != nil {
		return nil, fmt.Errorf("failed to create rule directory: %w", err)
	}
	defer os.RemoveAll(ruleDir)

	rulePath := filepath.Join(ruleDir, "rule.yaml")
	if err := os.WriteFile(rulePath, []byte(rule), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write rule file: %w", err)
	}

	return s.scanOneShot(ctx, files, rulePath)
}

// SupportedLanguages returns the languages the installed engine can scan.
func (s *Scanner) SupportedLanguages(ctx context.Context) ([]string, error) {
	out, err := engine.RunOnce(ctx, s.session.Executable().Path, "show", "supported-languages")
	if err != nil {
		return nil, err
	}

	var languages []string
	for _, line := range strings.Split(string(out), "\n") {
		if lang := strings.TrimSpace(line); lang != "" {
			languages = append(languages, lang)
		}
	}
	return languages, nil
}

// DumpAST returns the engine's abstract syntax tree for a single file.
func (s *Scanner) DumpAST(ctx context.Context, file models.CodeFile) (string, error) {
	dir, cleanup, err := StageFiles([]models.CodeFile{file})
	if err != nil {
		return "", err
	}
	defer cleanup()

	target, err := safeJoin(dir, file.Path)
	if err != nil {
		return "", err
	}

	out, err := engine.RunOnce(ctx, s.session.Executable().Path, "show", "dump-ast", "--json", target)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (s *Scanner) scanViaRPC(ctx context.Context, files []models.CodeFile) (*models.ScanResult, error) {
	payload := make([]map[string]string, 0, len(files))
	for _, f := range files {
		payload = append(payload, map[string]string{"file": f.Path, "content": f.Content})
	}

	raw, err := s.session.Call(ctx, "scanFiles", map[string]any{"files": payload})
	if err != nil {
		return nil, err
	}

	var result models.ScanResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode RPC scan result: %w", err)
	}
	return &result, nil
}

func (s *Scanner) scanOneShot(ctx context.Context, files []models.CodeFile, config string) (*models.ScanResult, error) {
	dir, cleanup, err := StageFiles(files)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	out, err := engine.RunOnce(ctx, s.session.Executable().Path, ScanArgs(dir, config)...)
	if err != nil {
		return nil, err
	}

	var result models.ScanResult
	if err := json.Unmarshal(out, &result); err != nil {
		return nil, fmt.Errorf("failed to parse scan output: %w", err)
	}

	RelativizeResults(&result, dir)
	return &result, nil
}
