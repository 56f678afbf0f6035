// Package openai implements the model backend for the OpenAI chat
// completions API and for OpenAI-compatible vendors (groq) reached through
// a custom base URL.
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/drpact/pactgen/internal/backend"
	"github.com/drpact/pactgen/internal/config"
	"github.com/drpact/pactgen/internal/domain"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Low temperature for consistent code output.
const (
	temperature = 0.2
	maxTokens   = 4000
)

// RegisterFactory registers this backend type with the registry.
func RegisterFactory() {
	if backend.Registered("openai") {
		return
	}
	backend.Register(backend.Factory{
		Type:           "openai",
		Description:    "OpenAI chat completions API (and compatible vendors via base_url)",
		Create:         createFromConfig,
		RequiresAPIKey: true,
	})
}

func createFromConfig(cfg config.BackendConfig) (backend.Client, error) {
	c := &Client{
		name:       cfg.Name,
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return c, nil
}

// Client is a minimal HTTP client for the chat completions endpoint.
type Client struct {
	name       string
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

// WithHTTPClient overrides the HTTP client. Tests only.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	c.httpClient = httpClient
	return c
}

func (c *Client) Name() string { return c.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
		Code    string `json:"code"`
	} `json:"error"`
}

// Complete submits the prompt as a system+user message pair.
func (c *Client) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	body, err := json.Marshal(&chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: p.System},
			{Role: "user", Content: p.User},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, transportError(c.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transportError(c.name, err)
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr errorResponse
		code, message := "", string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			code, message = apiErr.Error.Code, apiErr.Error.Message
		}
		kind := domain.ClassifyStatus(resp.StatusCode, code)
		return nil, domain.NewBackendError(c.name, kind, message).WithStatusCode(resp.StatusCode)
	}

	var result chatResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "unmarshal response: "+err.Error())
	}
	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "response contained no choices")
	}

	return &domain.ModelResponse{
		RawText: result.Choices[0].Message.Content,
		Backend: c.name,
		Model:   c.model,
	}, nil
}

func transportError(name string, err error) *domain.BackendError {
	if errors.Is(err, context.DeadlineExceeded) {
		return domain.NewBackendError(name, domain.ErrNetworkError, "request timed out: "+err.Error())
	}
	return domain.NewBackendError(name, domain.ErrNetworkError, err.Error())
}
