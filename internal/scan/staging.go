// Package scan stages code files for the semgrep engine and normalizes
// scan results, choosing between the daemon RPC path and one-shot CLI
// invocations per request.
package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/semgrep-mcp/semgrep-mcp/pkg/models"
)

// safeJoin joins an untrusted relative path onto base and guarantees the
// result stays inside base. Empty paths and "." resolve to base itself.
func safeJoin(base, untrusted string) (string, error) {
	cleanBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}

	if untrusted == "" || untrusted == "." || strings.Trim(untrusted, "/") == "" {
		return cleanBase, nil
	}

	if filepath.IsAbs(untrusted) {
		return "", fmt.Errorf("path must be relative: %s", untrusted)
	}

	joined := filepath.Join(cleanBase, untrusted)
	rel, err := filepath.Rel(cleanBase, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path escapes the staging directory: %s", untrusted)
	}

	return joined, nil
}

// StageFiles writes the given code files into a fresh temp directory,
// preserving their relative paths. The caller must invoke cleanup when
// done with the directory.
func StageFiles(files []models.CodeFile) (dir string, cleanup func(), err error) {
	dir, err = os.MkdirTemp("", "semgrep_scan_")
	if err != nil {
		return "", nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	cleanup = func() { os.RemoveAll(dir) }

	for _, f := range files {
		if f.Path == "" {
			continue
		}

		target, err := safeJoin(dir, f.Path)
		if err != nil {
			cleanup()
			return "", nil, err
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to create directory for %s: %w", f.Path, err)
		}
		if err := os.WriteFile(target, []byte(f.Content), 0o644); err != nil {
			cleanup()
			return "", nil, fmt.Errorf("failed to write %s: %w", f.Path, err)
		}
	}

	return dir, cleanup, nil
}

// ScanArgs builds the one-shot CLI argument list for scanning target.
func ScanArgs(target, config string) []string {
	args := []string{"scan", "--json", "--experimental"}
	if config != "" {
		args = append(args, "--config", config)
	}
	return append(args, target)
}

// ValidateConfig accepts registry references (p/..., r/..., auto) as-is
// and requires anything else to be a clean absolute path.
func ValidateConfig(config string) (string, error) {
	if config == "" || config == "auto" ||
		strings.HasPrefix(config, "p/") || strings.HasPrefix(config, "r/") {
		return config, nil
	}
	return ValidateAbsolutePath(config, "config")
}

// ValidateAbsolutePath rejects relative paths and traversal sequences.
func ValidateAbsolutePath(path, param string) (string, error) {
	if !filepath.IsAbs(path) {
		return "", fmt.Errorf("%s must be an absolute path, got: %s", param, path)
	}
	normalized := filepath.Clean(path)
	if normalized != path && normalized+string(filepath.Separator) != path {
		return "", fmt.Errorf("%s contains path traversal sequences: %s", param, path)
	}
	return normalized, nil
}

// RelativizeResults rewrites staged temp-dir paths in the result back to
// the relative paths the caller submitted.
func RelativizeResults(result *models.ScanResult, dir string) {
	for _, finding := range result.Results {
		if p, ok := finding["path"].(string); ok {
			if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
				finding["path"] = rel
			}
		}
	}

	for i, p := range result.Paths.Scanned {
		if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
			result.Paths.Scanned[i] = rel
		}
	}

	for _, skipped := range result.Paths.Skipped {
		if p, ok := skipped["path"].(string); ok {
			if rel, err := filepath.Rel(dir, p); err == nil && !strings.HasPrefix(rel, "..") {
				skipped["path"] = rel
			}
		}
	}
}
