package backend

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/drpact/pactgen/internal/domain"
)

type fakeClient struct {
	name     string
	errs     []error
	calls    int
	response *domain.ModelResponse
}

func (f *fakeClient) Name() string { return f.name }

func (f *fakeClient) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	idx := f.calls
	f.calls++
	if idx < len(f.errs) && f.errs[idx] != nil {
		return nil, f.errs[idx]
	}
	if f.response != nil {
		return f.response, nil
	}
	return &domain.ModelResponse{RawText: "```js\nok\n```", Backend: f.name}, nil
}

func newTestCaller(client Client) *Caller {
	return &Caller{
		client:  client,
		timeout: time.Second,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestCallerSuccessFirstAttempt(t *testing.T) {
	fake := &fakeClient{name: "openai"}
	caller := newTestCaller(fake)

	resp, err := caller.Complete(context.Background(), &domain.GenerationPrompt{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.RawText == "" {
		t.Error("empty response")
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

func TestCallerRetriesOnceForRateLimit(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = old }()

	fake := &fakeClient{
		name: "anthropic",
		errs: []error{domain.NewBackendError("anthropic", domain.ErrRateLimited, "throttled")},
	}
	caller := newTestCaller(fake)

	resp, err := caller.Complete(context.Background(), &domain.GenerationPrompt{})
	if err != nil {
		t.Fatalf("Complete() error = %v, want retry to succeed", err)
	}
	if resp == nil {
		t.Fatal("nil response after successful retry")
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want 2", fake.calls)
	}
}

func TestCallerRetriesAtMostOnce(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = old }()

	throttled := domain.NewBackendError("openai", domain.ErrRateLimited, "throttled")
	fake := &fakeClient{name: "openai", errs: []error{throttled, throttled, throttled}}
	caller := newTestCaller(fake)

	_, err := caller.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil, want failure after second attempt")
	}
	if fake.calls != 2 {
		t.Errorf("calls = %d, want exactly 2", fake.calls)
	}
	be, ok := domain.AsBackendError(err)
	if !ok || be.Kind != domain.ErrRateLimited {
		t.Errorf("error = %v, want rate_limited", err)
	}
}

func TestCallerDoesNotRetryAuthFailure(t *testing.T) {
	fake := &fakeClient{
		name: "openai",
		errs: []error{domain.NewBackendError("openai", domain.ErrAuthFailure, "invalid key")},
	}
	caller := newTestCaller(fake)

	_, err := caller.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil, want auth failure")
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for auth failures)", fake.calls)
	}
}

func TestCallerDoesNotRetryBackendUnavailable(t *testing.T) {
	fake := &fakeClient{
		name: "ollama",
		errs: []error{domain.NewBackendError("ollama", domain.ErrBackendUnavailable, "cannot reach Ollama")},
	}
	caller := newTestCaller(fake)

	_, err := caller.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil, want failure")
	}
	if fake.calls != 1 {
		t.Errorf("calls = %d, want 1", fake.calls)
	}
}

type slowClient struct{ name string }

func (s *slowClient) Name() string { return s.name }

func (s *slowClient) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestCallerDeadlineBecomesNetworkError(t *testing.T) {
	old := retryBackoff
	retryBackoff = time.Millisecond
	defer func() { retryBackoff = old }()

	caller := &Caller{
		client:  &slowClient{name: "openai"},
		timeout: 10 * time.Millisecond,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	_, err := caller.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil, want deadline failure")
	}
	be, ok := domain.AsBackendError(err)
	if !ok {
		t.Fatalf("error = %v, want *domain.BackendError", err)
	}
	if be.Kind != domain.ErrNetworkError {
		t.Errorf("Kind = %s, want network_error", be.Kind)
	}
}
