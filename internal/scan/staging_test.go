package scan

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/semgrep-mcp/semgrep-mcp/pkg/models"
)

func TestSafeJoin(t *testing.T) {
	base := t.TempDir()

	tests := []struct {
		name      string
		untrusted string
		want      string
		wantErr   bool
	}{
		{name: "simple file", untrusted: "main.go", want: filepath.Join(base, "main.go")},
		{name: "nested file", untrusted: "pkg/util/util.go", want: filepath.Join(base, "pkg", "util", "util.go")},
		{name: "empty resolves to base", untrusted: "", want: base},
		{name: "dot resolves to base", untrusted: ".", want: base},
		{name: "absolute rejected", untrusted: "/etc/passwd", wantErr: true},
		{name: "traversal rejected", untrusted: "../outside.go", wantErr: true},
		{name: "nested traversal rejected", untrusted: "pkg/../../outside.go", wantErr: true},
		{name: "deep traversal rejected", untrusted: "a/b/../../../../etc/passwd", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := safeJoin(base, tt.untrusted)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("safeJoin(%q) = %q, want error", tt.untrusted, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("safeJoin(%q) error: %v", tt.untrusted, err)
			}
			if got != tt.want {
				t.Errorf("safeJoin(%q) = %q, want %q", tt.untrusted, got, tt.want)
			}
		})
	}
}

func TestStageFiles(t *testing.T) {
	files := []models.CodeFile{
		{Path: "main.go", Content: "package main\n"},
		{Path: "internal/util/util.go", Content: "package util\n"},
		{Path: "", Content: "ignored"},
	}

	dir, cleanup, err := StageFiles(files)
	if err != nil {
		t.Fatalf("StageFiles() error: %v", err)
	}
	defer cleanup()

	for _, f := range files[:2] {
		content, err := os.ReadFile(filepath.Join(dir, f.Path))
		if err != nil {
			t.Fatalf("staged file %s missing: %v", f.Path, err)
		}
		if string(content) != f.Content {
			t.Errorf("staged %s = %q, want %q", f.Path, content, f.Content)
		}
	}

	cleanup()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("cleanup() left staging directory %s behind", dir)
	}
}

func TestStageFiles_RejectsTraversal(t *testing.T) {
	files := []models.CodeFile{
		{Path: "../escape.go", Content: "package main\n"},
	}

	dir, _, err := StageFiles(files)
	if err == nil {
		t.Fatalf("StageFiles() = %s, want error for traversal path", dir)
	}
}

func TestScanArgs(t *testing.T) {
	got := ScanArgs("/tmp/stage", "")
	want := []string{"scan", "--json", "--experimental", "/tmp/stage"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanArgs() = %v, want %v", got, want)
	}

	got = ScanArgs("/tmp/stage", "p/python")
	want = []string{"scan", "--json", "--experimental", "--config", "p/python", "/tmp/stage"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("ScanArgs() with config = %v, want %v", got, want)
	}
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		config  string
		want    string
		wantErr bool
	}{
		{config: "", want: ""},
		{config: "auto", want: "auto"},
		{config: "p/python", want: "p/python"},
		{config: "r/java.lang.security", want: "r/java.lang.security"},
		{config: "/etc/semgrep/rules.yaml", want: "/etc/semgrep/rules.yaml"},
		{config: "rules.yaml", wantErr: true},
		{config: "/etc/semgrep/../rules.yaml", wantErr: true},
	}

	for _, tt := range tests {
		got, err := ValidateConfig(tt.config)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ValidateConfig(%q) = %q, want error", tt.config, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ValidateConfig(%q) error: %v", tt.config, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ValidateConfig(%q) = %q, want %q", tt.config, got, tt.want)
		}
	}
}

func TestValidateAbsolutePath(t *testing.T) {
	if _, err := ValidateAbsolutePath("relative/path.go", "code_file"); err == nil {
		t.Error("ValidateAbsolutePath() accepted a relative path")
	}
	if _, err := ValidateAbsolutePath("/a/b/../c", "code_file"); err == nil {
		t.Error("ValidateAbsolutePath() accepted a traversal sequence")
	}
	got, err := ValidateAbsolutePath("/a/b/c.go", "code_file")
	if err != nil {
		t.Fatalf("ValidateAbsolutePath() error: %v", err)
	}
	if got != "/a/b/c.go" {
		t.Errorf("ValidateAbsolutePath() = %q, want %q", got, "/a/b/c.go")
	}
}

func TestRelativizeResults(t *testing.T) {
	dir := "/tmp/semgrep_scan_12345"
	result := &models.ScanResult{
		Results: []map[string]any{
			{"check_id": "rule-1", "path": filepath.Join(dir, "main.go")},
			{"check_id": "rule-2", "path": "/somewhere/else/other.go"},
		},
		Paths: models.ScanPaths{
			Scanned: []string{filepath.Join(dir, "main.go"), filepath.Join(dir, "sub", "x.go")},
			Skipped: []map[string]any{
				{"path": filepath.Join(dir, "big.min.js"), "reason": "too large"},
			},
		},
	}

	RelativizeResults(result, dir)

	if got := result.Results[0]["path"]; got != "main.go" {
		t.Errorf("finding path = %q, want %q", got, "main.go")
	}
	if got := result.Results[1]["path"]; got != "/somewhere/else/other.go" {
		t.Errorf("out-of-dir finding path rewritten to %q", got)
	}
	if got := result.Paths.Scanned[1]; got != filepath.Join("sub", "x.go") {
		t.Errorf("scanned path = %q, want %q", got, filepath.Join("sub", "x.go"))
	}
	if got := result.Paths.Skipped[0]["path"]; got != "big.min.js" {
		t.Errorf("skipped path = %q, want %q", got, "big.min.js")
	}
	if strings.Contains(result.Paths.Scanned[0], dir) {
		t.Errorf("scanned path still references staging dir: %q", result.Paths.Scanned[0])
	}
}
