// Package anthropic implements the model backend for the Anthropic
// messages API.
package anthropic

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

const (
	defaultBaseURL = "https://api.anthropic.com"
	apiVersion     = "2023-06-01"
	maxTokens      = 4000
)

// RegisterFactory registers this backend type with the registry.
func RegisterFactory() {
	if backend.Registered("anthropic") {
		return
	}
	backend.Register(backend.Factory{
		Type:           "anthropic",
		Description:    "Anthropic messages API",
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

// Client is a minimal HTTP client for the messages endpoint.
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

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
}

type errorResponse struct {
	Error struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete submits the prompt with the template as the system prompt,
// which is a top-level field in the messages API.
func (c *Client) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	body, err := json.Marshal(&messagesRequest{
		Model:     c.model,
		MaxTokens: maxTokens,
		System:    p.System,
		Messages:  []message{{Role: "user", Content: p.User}},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", apiVersion)

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
		code, msg := "", string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error.Message != "" {
			code, msg = apiErr.Error.Type, apiErr.Error.Message
		}
		kind := domain.ClassifyStatus(resp.StatusCode, code)
		return nil, domain.NewBackendError(c.name, kind, msg).WithStatusCode(resp.StatusCode)
	}

	var result messagesResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "unmarshal response: "+err.Error())
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "response contained no text content")
	}

	return &domain.ModelResponse{
		RawText: text.String(),
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
