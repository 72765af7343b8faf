package engine

import (
	"errors"
	"fmt"
)

// ErrNotInstalled is returned when no working semgrep executable could be
// found. This is fatal to every engine-dependent operation.
var ErrNotInstalled = errors.New(
	"semgrep is not installed or not in your PATH. " +
		"Please install Semgrep before using this tool. " +
		"Installation options: pip install semgrep, " +
		"macOS: brew install semgrep, " +
		"or see https://semgrep.dev/docs/getting-started/")

// ErrRPCUnavailable is returned when a caller invokes the RPC path on a
// session that has no daemon (hosted mode, Pro engine missing, RPC disabled,
// or the daemon was marked dead after a protocol error). Callers should use
// the one-shot CLI path instead.
var ErrRPCUnavailable = errors.New(
	"semgrep RPC is not available in this configuration; use the one-shot scan path instead")

// ErrDaemonNotRunning is returned when pipe I/O to the daemon fails mid-call.
var ErrDaemonNotRunning = errors.New(
	"semgrep daemon is not running; use the one-shot scan path instead")

// ErrTimeout is returned when an engine invocation exceeds its deadline.
var ErrTimeout = errors.New("semgrep invocation timed out")

// maxStderrLen bounds the stderr excerpt embedded in error messages. The
// full stderr is retained on the ExitError itself.
const maxStderrLen = 2000

// ExitError reports a semgrep subprocess that exited non-zero.
type ExitError struct {
	Code   int
	Stderr string
}

func (e *ExitError) Error() string {
	stderr := e.Stderr
	if len(stderr) > maxStderrLen {
		stderr = stderr[:maxStderrLen] + "... (truncated)"
	}
	return fmt.Sprintf("semgrep exited with code %d: %s", e.Code, stderr)
}

// ProtocolError reports a malformed envelope on the daemon pipe. After a
// ProtocolError the daemon is considered suspect and the session stops
// routing RPC calls to it.
type ProtocolError struct {
	Stage string // "read", "outer decode", "inner decode"
	Err   error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("semgrep RPC protocol error during %s: %v", e.Stage, e.Err)
}

func (e *ProtocolError) Unwrap() error { return e.Err }
