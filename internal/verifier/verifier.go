// Package verifier shells out to the provider-side verification command,
// which replays the contract against a live provider instance.
package verifier

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/drpact/pactgen/internal/execrun"
)

// VerificationFailedError reports a failed verification run. Output is
// passed through unmodified: it contains the field-level mismatch
// diagnostics that are the whole point of the run.
type VerificationFailedError struct {
	ExitCode int
	Output   string
	TimedOut bool
}

func (e *VerificationFailedError) Error() string {
	if e.TimedOut {
		return "provider verification timed out"
	}
	return fmt.Sprintf("provider verification failed with exit code %d", e.ExitCode)
}

// Verifier invokes the provider verification command.
type Verifier struct {
	// Dir is the working directory for the command; may be empty.
	Dir string

	// Command is the verification command (executable + args). The pact
	// path and provider URL are appended as flags.
	Command []string

	// ContractPath is the pact file to verify.
	ContractPath string

	// ProviderURL is the address of the running provider.
	ProviderURL string

	// Timeout bounds the subprocess.
	Timeout time.Duration

	Logger *slog.Logger
}

// Run executes the verification command. A zero exit means every
// interaction was verified.
func (v *Verifier) Run(ctx context.Context) (*execrun.Result, error) {
	if len(v.Command) == 0 {
		return nil, fmt.Errorf("no provider verify command configured")
	}

	args := append(append([]string{}, v.Command[1:]...),
		"--pact", v.ContractPath,
		"--provider-url", v.ProviderURL)

	v.Logger.Info("verifying provider against contract",
		slog.String("pact", v.ContractPath),
		slog.String("provider_url", v.ProviderURL))

	res, err := execrun.Run(ctx, execrun.Spec{
		Dir:     v.Dir,
		Command: v.Command[0],
		Args:    args,
		Timeout: v.Timeout,
	})
	if err != nil {
		return nil, err
	}

	if res.TimedOut || res.ExitCode != 0 {
		return res, &VerificationFailedError{
			ExitCode: res.ExitCode,
			Output:   res.CombinedOutput(),
			TimedOut: res.TimedOut,
		}
	}
	return res, nil
}
