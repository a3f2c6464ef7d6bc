package plugin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"time"
)

// ErrTimeout is returned when a plugin runs past the executor timeout.
var ErrTimeout = errors.New("plugin execution timeout")

// Executor runs plugin processes. Each call is bounded by the executor
// timeout and by the caller's context. Calls started with Go share a
// context that Shutdown cancels.
type Executor struct {
	timeout time.Duration
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewExecutor creates a new Executor with the specified timeout in milliseconds.
func NewExecutor(timeoutMs int) *Executor {
	ctx, cancel := context.WithCancel(context.Background())
	return &Executor{
		timeout: time.Duration(timeoutMs) * time.Millisecond,
		ctx:     ctx,
		cancel:  cancel,
	}
}

// Execute runs plugin once, writing req as JSON to its stdin and parsing
// its stdout as a Response. A plugin that reports failure in its Response
// is not an error here; callers check Response.Success.
func (e *Executor) Execute(ctx context.Context, plugin *Plugin, req *Request) (*Response, error) {
	reqJSON, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, plugin.Executable)
	cmd.Dir = plugin.Path
	cmd.Stdin = bytes.NewReader(reqJSON)
	cmd.WaitDelay = time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err = cmd.Run()

	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		return nil, fmt.Errorf("%w after %v", ErrTimeout, e.timeout)
	case errors.Is(ctx.Err(), context.Canceled):
		return nil, fmt.Errorf("plugin %s canceled: %w", plugin.Manifest.Name, ctx.Err())
	case err != nil:
		if s := stderr.String(); s != "" {
			return nil, fmt.Errorf("plugin execution failed: %w, stderr: %s", err, s)
		}
		return nil, fmt.Errorf("plugin execution failed: %w", err)
	}

	var response Response
	if err := json.Unmarshal(stdout.Bytes(), &response); err != nil {
		return nil, fmt.Errorf("failed to parse plugin response: %w, stdout: %s", err, stdout.String())
	}
	return &response, nil
}

// Go runs fn on a new goroutine tracked by Wait. fn receives the
// executor's background context.
func (e *Executor) Go(fn func(ctx context.Context)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		fn(e.ctx)
	}()
}

// Wait blocks until every call started with Go has returned.
func (e *Executor) Wait() {
	e.wg.Wait()
}

// Shutdown cancels the calls started with Go and waits for them to return.
// Calls started after Shutdown see a canceled context.
func (e *Executor) Shutdown() {
	e.cancel()
	e.wg.Wait()
}
