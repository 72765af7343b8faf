package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
)

// engineEnv returns the process environment for semgrep invocations,
// tagging them as MCP-originated so the engine's own telemetry can tell
// them apart.
func engineEnv() []string {
	return append(os.Environ(),
		"SEMGREP_MCP=true",
		"SEMGREP_USER_AGENT_APPEND=(MCP)",
		"SEMGREP_LOG_SRCS=mcp",
	)
}

// RunOnce spawns a fresh semgrep subprocess, waits for it to exit, and
// returns its stdout. Each call is fully independent and safe to run
// concurrently with any number of other calls.
//
// A non-zero exit is reported as an *ExitError carrying the exit code and
// captured stderr. A context deadline or cancellation kills the subprocess
// and is reported as ErrTimeout or the context error, never as an exit
// error.
func RunOnce(ctx context.Context, exePath string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, exePath, args...)
	cmd.Env = engineEnv()

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	// Deadline and cancellation take precedence: CommandContext has
	// already killed the subprocess, and the resulting exit status is
	// noise.
	switch ctx.Err() {
	case context.DeadlineExceeded:
		return nil, fmt.Errorf("%w after deadline: semgrep %v", ErrTimeout, args)
	case context.Canceled:
		return nil, ctx.Err()
	}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return nil, &ExitError{Code: exitErr.ExitCode(), Stderr: stderr.String()}
	}
	return nil, fmt.Errorf("failed to run semgrep: %w", err)
}
