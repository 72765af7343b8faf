// Package engine bridges tool calls to the external semgrep binary. It
// locates the executable, decides between daemon (RPC) mode and one-shot
// CLI mode, and owns the daemon subprocess lifecycle.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"
)

// Executable is a resolved, probe-verified semgrep binary.
type Executable struct {
	Path    string
	Version string
}

// Locator finds the semgrep executable across common install locations.
// Resolution happens once, on first use; concurrent callers during the
// first resolution wait for it rather than probing redundantly.
type Locator struct {
	mu       sync.Mutex
	resolved *Executable
	override string

	// probe runs a candidate with --version and returns the version
	// string. candidates lists the locations to search. Both are
	// swapped out in tests.
	probe      func(ctx context.Context, path string) (string, error)
	candidates func() []string
}

// NewLocator creates a locator. A non-empty override bypasses the search
// entirely and is trusted without a probe.
func NewLocator(override string) *Locator {
	return &Locator{
		override:   override,
		probe:      probeVersion,
		candidates: candidatePaths,
	}
}

// Resolve returns the semgrep executable, searching for it on first call
// and returning the cached result afterwards. Returns ErrNotInstalled if
// no candidate survives the version probe.
func (l *Locator) Resolve(ctx context.Context) (*Executable, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.resolved != nil {
		return l.resolved, nil
	}

	if l.override != "" {
		l.resolved = &Executable{Path: l.override, Version: "unknown"}
		log.Info().Str("path", l.override).Msg("Using configured semgrep path")
		return l.resolved, nil
	}

	for _, candidate := range l.candidates() {
		path := candidate
		if !filepath.IsAbs(path) {
			// Bare name: resolve through PATH first.
			found, err := exec.LookPath(path)
			if err != nil {
				continue
			}
			path = found
		} else if _, err := os.Stat(path); err != nil {
			continue
		}

		version, err := l.probe(ctx, path)
		if err != nil {
			continue
		}

		l.resolved = &Executable{Path: path, Version: version}
		log.Info().
			Str("path", path).
			Str("version", version).
			Msg("Semgrep executable resolved")
		return l.resolved, nil
	}

	return nil, ErrNotInstalled
}

// candidatePaths lists the locations to try, in order.
func candidatePaths() []string {
	paths := []string{
		"semgrep", // PATH
		"/usr/local/bin/semgrep",
		"/usr/bin/semgrep",
		"/opt/homebrew/bin/semgrep",
		"/opt/semgrep/bin/semgrep",
		"/home/linuxbrew/.linuxbrew/bin/semgrep",
		"/snap/bin/semgrep",
	}

	if runtime.GOOS == "windows" {
		if appData := os.Getenv("APPDATA"); appData != "" {
			paths = append(paths,
				filepath.Join(appData, "Python", "Scripts", "semgrep.exe"),
				filepath.Join(appData, "npm", "semgrep.cmd"),
			)
		}
	}

	return paths
}

func probeVersion(ctx context.Context, path string) (string, error) {
	out, err := exec.CommandContext(ctx, path, "--version").Output()
	if err != nil {
		return "", fmt.Errorf("version probe failed for %s: %w", path, err)
	}
	return strings.TrimSpace(string(out)), nil
}
