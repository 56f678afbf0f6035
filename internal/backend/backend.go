// Package backend abstracts over the generative-model vendors that can
// serve a generation run. Concrete clients live in subpackages and register
// themselves through the registry; nothing outside this package sees
// vendor-specific behavior.
package backend

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/drpact/pactgen/internal/config"
	"github.com/drpact/pactgen/internal/domain"
)

// Client is the capability a model backend exposes.
type Client interface {
	// Name identifies the backend in logs and responses.
	Name() string

	// Complete submits the assembled prompt and returns the raw model
	// output. Failures are *domain.BackendError.
	Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error)
}

// retryBackoff is the pause before the single permitted retry.
var retryBackoff = 2 * time.Second

// Caller wraps a Client with the run-level calling discipline: a deadline
// on every call and at most one retry, only for retryable failures.
type Caller struct {
	client  Client
	timeout time.Duration
	logger  *slog.Logger
}

// NewCaller builds the Caller for a configured backend.
func NewCaller(cfg config.BackendConfig, timeout time.Duration, logger *slog.Logger) (*Caller, error) {
	client, err := Create(cfg)
	if err != nil {
		return nil, err
	}
	return &Caller{client: client, timeout: timeout, logger: logger}, nil
}

// Name returns the wrapped backend's name.
func (c *Caller) Name() string { return c.client.Name() }

// Complete performs a bounded completion call. A rate-limited or
// network-failed attempt is retried exactly once; authentication and
// availability failures propagate immediately.
func (c *Caller) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	resp, err := c.attempt(ctx, p)
	if err == nil {
		return resp, nil
	}

	be, ok := domain.AsBackendError(err)
	if !ok || !be.Retryable() {
		return nil, err
	}

	c.logger.Warn("completion failed, retrying once",
		slog.String("backend", c.client.Name()),
		slog.String("kind", string(be.Kind)),
		slog.String("error", be.Message))

	select {
	case <-time.After(retryBackoff):
	case <-ctx.Done():
		return nil, domain.NewBackendError(c.client.Name(), domain.ErrNetworkError, ctx.Err().Error())
	}

	return c.attempt(ctx, p)
}

func (c *Caller) attempt(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.client.Complete(callCtx, p)
	if err != nil {
		// A deadline hit inside the vendor client surfaces as a plain
		// context error; normalize it to the network kind.
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewBackendError(c.client.Name(), domain.ErrNetworkError,
				"completion exceeded the "+c.timeout.String()+" deadline")
		}
		return nil, err
	}

	c.logger.Info("completion received",
		slog.String("backend", c.client.Name()),
		slog.Int("prompt_tokens", p.TokenCount),
		slog.Int("response_bytes", len(resp.RawText)),
		slog.Duration("duration", time.Since(start)))
	return resp, nil
}
