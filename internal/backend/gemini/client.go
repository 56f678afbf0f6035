// Package gemini implements the model backend for the Google Gemini API
// through the official genai client.
package gemini

import (
	"context"
	"errors"
	"sync"

	genai "google.golang.org/genai"

	"github.com/drpact/pactgen/internal/backend"
	"github.com/drpact/pactgen/internal/config"
	"github.com/drpact/pactgen/internal/domain"
)

const maxOutputTokens = 4000

// RegisterFactory registers this backend type with the registry.
func RegisterFactory() {
	if backend.Registered("gemini") {
		return
	}
	backend.Register(backend.Factory{
		Type:           "gemini",
		Description:    "Google Gemini API (official genai client)",
		Create:         createFromConfig,
		RequiresAPIKey: true,
	})
}

func createFromConfig(cfg config.BackendConfig) (backend.Client, error) {
	return &Client{name: cfg.Name, apiKey: cfg.APIKey, model: cfg.Model}, nil
}

// Client wraps the official genai client. The underlying client wants a
// context at construction time, so it is created lazily on first use.
type Client struct {
	name   string
	apiKey string
	model  string

	once    sync.Once
	cli     *genai.Client
	initErr error
}

func (c *Client) Name() string { return c.name }

// Complete sends the prompt with the template as the system instruction.
func (c *Client) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	c.once.Do(func() {
		c.cli, c.initErr = genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.apiKey,
			Backend: genai.BackendGeminiAPI,
		})
	})
	if c.initErr != nil {
		return nil, domain.NewBackendError(c.name, domain.ErrBackendUnavailable, "create client: "+c.initErr.Error())
	}

	resp, err := c.cli.Models.GenerateContent(ctx, c.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: p.User}}}},
		&genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: p.System}}},
			Temperature:       genai.Ptr[float32](0.2),
			MaxOutputTokens:   maxOutputTokens,
		})
	if err != nil {
		return nil, classify(c.name, err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "response contained no candidates")
	}

	text := resp.Candidates[0].Content.Parts[0].Text
	if text == "" {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "response contained no text")
	}

	return &domain.ModelResponse{RawText: text, Backend: c.name, Model: c.model}, nil
}

func classify(name string, err error) *domain.BackendError {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		kind := domain.ClassifyStatus(apiErr.Code, apiErr.Status)
		return domain.NewBackendError(name, kind, apiErr.Message).WithStatusCode(apiErr.Code)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBackendError(name, domain.ErrNetworkError, "request timed out: "+err.Error())
	}
	return domain.NewBackendError(name, domain.ErrNetworkError, err.Error())
}
