package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
	"testing"
	"time"
)

// newStubDaemon wires a daemon to an in-process echo server that answers
// every request with a double-encoded {"method": <received method>}.
func newStubDaemon(t *testing.T, delay time.Duration) *daemon {
	t.Helper()

	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()

	go func() {
		scanner := bufio.NewScanner(reqR)
		for scanner.Scan() {
			var req map[string]any
			if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
				continue
			}
			if delay > 0 {
				time.Sleep(delay)
			}
			inner, _ := json.Marshal(map[string]any{"method": req["method"]})
			outer, _ := json.Marshal(string(inner))
			respW.Write(append(outer, '\n'))
		}
	}()

	return &daemon{stdin: reqW, stdout: bufio.NewReader(respR)}
}

func TestDecodeEnvelope_RoundTrip(t *testing.T) {
	original := map[string]any{
		"results": []any{map[string]any{"path": "a.py", "line": float64(3)}},
		"errors":  []any{},
		"version": "1.99.0",
	}

	inner, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}
	outer, err := json.Marshal(string(inner))
	if err != nil {
		t.Fatal(err)
	}

	decoded, err := decodeEnvelope(append(outer, '\n'))
	if err != nil {
		t.Fatalf("decodeEnvelope() error = %v", err)
	}

	var got map[string]any
	if err := json.Unmarshal(decoded, &got); err != nil {
		t.Fatalf("decoded envelope is not valid JSON: %v", err)
	}
	if !reflect.DeepEqual(got, original) {
		t.Errorf("decodeEnvelope() = %#v, want %#v", got, original)
	}
}

func TestDecodeEnvelope_SingleEncodingIsProtocolError(t *testing.T) {
	// A response that was only encoded once must be rejected, not
	// silently accepted.
	line, _ := json.Marshal(map[string]any{"results": []any{}})

	_, err := decodeEnvelope(append(line, '\n'))
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("decodeEnvelope() error = %v, want *ProtocolError", err)
	}
}

// N concurrent callers each receive the response for their own method.
func TestCall_SerializesConcurrentCallers(t *testing.T) {
	d := newStubDaemon(t, 0)

	const n = 50
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()

			method := fmt.Sprintf("method-%d", i)
			raw, err := d.call(context.Background(), method, nil)
			if err != nil {
				errs[i] = err
				return
			}

			var resp struct {
				Method string `json:"method"`
			}
			if err := json.Unmarshal(raw, &resp); err != nil {
				errs[i] = err
				return
			}
			if resp.Method != method {
				errs[i] = fmt.Errorf("got response for %q, want %q", resp.Method, method)
			}
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Errorf("caller %d: %v", i, err)
		}
	}
}

func TestCall_ProtocolErrorMarksDaemonDead(t *testing.T) {
	reqR, reqW := io.Pipe()
	respR, respW := io.Pipe()
	go func() {
		scanner := bufio.NewScanner(reqR)
		for scanner.Scan() {
			respW.Write([]byte("not json at all\n"))
		}
	}()
	d := &daemon{stdin: reqW, stdout: bufio.NewReader(respR)}

	_, err := d.call(context.Background(), "scanFiles", nil)
	var protoErr *ProtocolError
	if !errors.As(err, &protoErr) {
		t.Fatalf("call() error = %v, want *ProtocolError", err)
	}
	if !d.dead.Load() {
		t.Error("daemon not marked dead after protocol error")
	}

	_, err = d.call(context.Background(), "scanFiles", nil)
	if !errors.Is(err, ErrDaemonNotRunning) {
		t.Errorf("call() after protocol error = %v, want ErrDaemonNotRunning", err)
	}
}

// Cancelling a call stops waiting but leaves the daemon usable; the
// orphaned response is never delivered to the next caller.
func TestCall_CancellationLeavesDaemonIntact(t *testing.T) {
	d := newStubDaemon(t, 200*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := d.call(ctx, "cancelled-method", nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("call() error = %v, want context.Canceled", err)
	}
	if d.dead.Load() {
		t.Fatal("cancellation must not mark the daemon dead")
	}

	raw, err := d.call(context.Background(), "second-method", nil)
	if err != nil {
		t.Fatalf("call() after cancellation error = %v", err)
	}
	var resp struct {
		Method string `json:"method"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Method != "second-method" {
		t.Errorf("got response for %q, want %q (orphaned response misattributed)", resp.Method, "second-method")
	}
}
