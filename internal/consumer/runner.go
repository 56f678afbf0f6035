// Package consumer runs the consumer project's test suite and collects the
// contract file it is expected to emit.
package consumer

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/drpact/pactgen/internal/contract"
	"github.com/drpact/pactgen/internal/execrun"
)

// TestFailedError reports a consumer test run with a non-zero exit. Output
// carries the captured streams verbatim; the raw assertion text is the
// diagnostic and is never summarized.
type TestFailedError struct {
	ExitCode int
	Output   string
	TimedOut bool
}

func (e *TestFailedError) Error() string {
	if e.TimedOut {
		return "consumer tests timed out"
	}
	return fmt.Sprintf("consumer tests failed with exit code %d", e.ExitCode)
}

// ContractMissingError reports a passing test run that produced no pact
// file. The tests passed but there is nothing to verify, which is its own
// defect, distinct from a test failure.
type ContractMissingError struct {
	Path string
}

func (e *ContractMissingError) Error() string {
	return fmt.Sprintf("consumer tests passed but no contract file was produced at %s", e.Path)
}

// Runner invokes the consumer test command.
type Runner struct {
	// Dir is the consumer project directory.
	Dir string

	// Command is the test command (executable + args).
	Command []string

	// ContractPath is where the test run emits the pact file.
	ContractPath string

	// Timeout bounds the subprocess.
	Timeout time.Duration

	Logger *slog.Logger
}

// Run executes the tests and, on success, loads the produced contract.
func (r *Runner) Run(ctx context.Context) (*contract.Contract, *execrun.Result, error) {
	if len(r.Command) == 0 {
		return nil, nil, fmt.Errorf("no consumer test command configured")
	}

	r.Logger.Info("running consumer tests",
		slog.String("dir", r.Dir),
		slog.Any("command", r.Command))

	res, err := execrun.Run(ctx, execrun.Spec{
		Dir:     r.Dir,
		Command: r.Command[0],
		Args:    r.Command[1:],
		Timeout: r.Timeout,
	})
	if err != nil {
		return nil, nil, err
	}

	if res.TimedOut || res.ExitCode != 0 {
		return nil, res, &TestFailedError{
			ExitCode: res.ExitCode,
			Output:   res.CombinedOutput(),
			TimedOut: res.TimedOut,
		}
	}

	if _, err := os.Stat(r.ContractPath); err != nil {
		if os.IsNotExist(err) {
			return nil, res, &ContractMissingError{Path: r.ContractPath}
		}
		return nil, res, fmt.Errorf("stat contract file: %w", err)
	}

	c, err := contract.Load(r.ContractPath)
	if err != nil {
		return nil, res, fmt.Errorf("load contract: %w", err)
	}

	r.Logger.Info("contract produced",
		slog.String("path", r.ContractPath),
		slog.Int("interactions", len(c.Interactions)),
		slog.String("consumer", c.Consumer.Name),
		slog.String("provider", c.Provider.Name))
	return c, res, nil
}
