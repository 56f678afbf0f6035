// Package execrun is the scoped process execution primitive shared by the
// consumer-test and provider-verify stages: spawn, capture both streams in
// full, enforce a deadline, return one immutable result.
package execrun

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

// Spec describes one subprocess invocation.
type Spec struct {
	// Dir is the working directory; empty means the current directory.
	Dir string

	// Command is the executable name, resolved through PATH.
	Command string

	// Args are passed as-is.
	Args []string

	// Timeout bounds the whole invocation. Zero means no bound.
	Timeout time.Duration

	// Env entries are appended to the inherited environment.
	Env []string
}

// Result is the immutable outcome of one invocation.
type Result struct {
	// ExitCode is the process exit status; -1 when the process was killed.
	ExitCode int

	// Stdout and Stderr are the full captured streams, never truncated or
	// summarized: the raw assertion output is the diagnostic.
	Stdout string
	Stderr string

	// TimedOut is set when the deadline killed the process.
	TimedOut bool

	// Duration is the observed wall time.
	Duration time.Duration
}

// CombinedOutput renders both streams for operator-facing reports.
func (r *Result) CombinedOutput() string {
	if r.Stderr == "" {
		return r.Stdout
	}
	if r.Stdout == "" {
		return r.Stderr
	}
	return r.Stdout + "\n" + r.Stderr
}

// Run executes the spec. A non-zero exit status is not an error here; the
// caller decides what it means. The returned error covers spawn failures
// only.
func Run(ctx context.Context, spec Spec) (*Result, error) {
	if spec.Command == "" {
		return nil, fmt.Errorf("empty command")
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if spec.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	cmd := exec.Command(spec.Command, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(os.Environ(), spec.Env...)

	// Children go into their own process group so a timeout kills the
	// whole tree, not just the direct child.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", spec.Command, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	var waitErr error
	timedOut := false
	select {
	case <-runCtx.Done():
		if cmd.Process != nil {
			syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
		}
		<-done
		timedOut = errors.Is(runCtx.Err(), context.DeadlineExceeded)
		if !timedOut {
			// Interrupted by the caller, not the deadline.
			return nil, fmt.Errorf("execution cancelled: %w", runCtx.Err())
		}
	case waitErr = <-done:
	}

	res := &Result{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		TimedOut: timedOut,
		Duration: time.Since(start),
	}

	switch {
	case timedOut:
		res.ExitCode = -1
	case waitErr == nil:
		res.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("wait for %s: %w", spec.Command, waitErr)
		}
	}

	return res, nil
}
