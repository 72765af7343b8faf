package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"
)

// daemon is a long-lived `semgrep mcp --pro` subprocess reached over its
// stdin/stdout pipes. The wire protocol is newline-delimited JSON: one
// request line `{"method": <name>, ...args}`, answered by one response
// line. The daemon double-encodes responses (a JSON string whose contents
// are themselves JSON), a fixed quirk of the engine that must be decoded
// in two passes.
type daemon struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout *bufio.Reader

	// mu serializes complete write+read round trips. The protocol is
	// strictly request-then-response on one shared pipe pair, so a
	// second writer before the first reader finishes would misattribute
	// responses.
	mu   sync.Mutex
	dead atomic.Bool
}

// startDaemon launches the engine in daemon mode with stdin/stdout piped.
// Stderr is inherited so engine diagnostics reach the server logs.
func startDaemon(exePath string, trace bool) (*daemon, error) {
	args := []string{"mcp", "--pro"}
	if trace {
		args = append(args, "--trace")
	}

	cmd := exec.Command(exePath, args...)
	cmd.Env = engineEnv()
	cmd.Stderr = os.Stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon stdin pipe: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to create daemon stdout pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start semgrep daemon: %w", err)
	}

	log.Info().
		Int("pid", cmd.Process.Pid).
		Bool("trace", trace).
		Msg("Semgrep daemon started")

	return &daemon{
		cmd:    cmd,
		stdin:  stdin,
		stdout: bufio.NewReader(stdout),
	}, nil
}

// call performs one RPC round trip. Cancelling ctx stops waiting for the
// response but leaves the daemon and its pipes intact for queued callers;
// the orphaned response is consumed and discarded by the round-trip
// goroutine, which completes the full exchange under the lock regardless.
func (d *daemon) call(ctx context.Context, method string, args map[string]any) (json.RawMessage, error) {
	if d.dead.Load() {
		return nil, ErrDaemonNotRunning
	}

	payload := make(map[string]any, len(args)+1)
	payload["method"] = method
	for k, v := range args {
		payload[k] = v
	}
	request, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode RPC request: %w", err)
	}

	type roundTrip struct {
		result json.RawMessage
		err    error
	}
	done := make(chan roundTrip, 1)

	go func() {
		d.mu.Lock()
		defer d.mu.Unlock()

		result, err := d.exchange(request)
		done <- roundTrip{result, err}
	}()

	select {
	case <-ctx.Done():
		// The goroutine still finishes the round trip under the lock,
		// so the next caller sees a consistent pipe.
		return nil, ctx.Err()
	case rt := <-done:
		return rt.result, rt.err
	}
}

// exchange writes one request line and reads one response line. Callers
// must hold d.mu.
func (d *daemon) exchange(request []byte) (json.RawMessage, error) {
	if _, err := d.stdin.Write(append(request, '\n')); err != nil {
		d.markDead("write failed", err)
		return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}

	line, err := d.stdout.ReadBytes('\n')
	if err != nil {
		d.markDead("read failed", err)
		return nil, fmt.Errorf("%w: %v", ErrDaemonNotRunning, err)
	}

	result, err := decodeEnvelope(line)
	if err != nil {
		d.markDead("malformed response", err)
		return nil, err
	}
	return result, nil
}

// decodeEnvelope unwraps one response line. The line is a JSON string
// literal; its contents are a second JSON document holding the actual
// object. Both passes are required.
func decodeEnvelope(line []byte) (json.RawMessage, error) {
	var outer string
	if err := json.Unmarshal(line, &outer); err != nil {
		return nil, &ProtocolError{Stage: "outer decode", Err: err}
	}

	var inner json.RawMessage
	if err := json.Unmarshal([]byte(outer), &inner); err != nil {
		return nil, &ProtocolError{Stage: "inner decode", Err: err}
	}
	return inner, nil
}

// markDead flags the daemon as unusable. Further calls fail fast; the
// session falls back to one-shot mode for the rest of the process.
func (d *daemon) markDead(reason string, err error) {
	if d.dead.CompareAndSwap(false, true) {
		log.Warn().
			Err(err).
			Str("reason", reason).
			Msg("Semgrep daemon marked dead, falling back to one-shot mode")
	}
}

// terminate stops the daemon: interrupt first, kill after a grace period.
func (d *daemon) terminate() {
	d.dead.Store(true)

	if d.cmd.Process == nil {
		return
	}

	log.Info().Int("pid", d.cmd.Process.Pid).Msg("Stopping semgrep daemon")
	_ = d.stdin.Close()
	_ = d.cmd.Process.Signal(os.Interrupt)

	waited := make(chan struct{})
	go func() {
		_ = d.cmd.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(3 * time.Second):
		_ = d.cmd.Process.Kill()
		<-waited
	}
}
