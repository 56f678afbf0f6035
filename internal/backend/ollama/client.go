// Package ollama implements the model backend for a locally running Ollama
// instance. No credentials are required.
package ollama

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

const defaultBaseURL = "http://localhost:11434"

// RegisterFactory registers this backend type with the registry.
func RegisterFactory() {
	if backend.Registered("ollama") {
		return
	}
	backend.Register(backend.Factory{
		Type:        "ollama",
		Description: "local Ollama instance (/api/generate)",
		Create:      createFromConfig,
	})
}

func createFromConfig(cfg config.BackendConfig) (backend.Client, error) {
	c := &Client{
		name:       cfg.Name,
		model:      cfg.Model,
		baseURL:    defaultBaseURL,
		httpClient: http.DefaultClient,
	}
	if cfg.BaseURL != "" {
		c.baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	return c, nil
}

// Client talks to Ollama's non-streaming generate endpoint.
type Client struct {
	name       string
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

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options,omitempty"`
}

type generateResponse struct {
	Response string `json:"response"`
	Error    string `json:"error"`
}

// Complete concatenates system and user prompts; the generate endpoint has
// no separate system slot.
func (c *Client) Complete(ctx context.Context, p *domain.GenerationPrompt) (*domain.ModelResponse, error) {
	body, err := json.Marshal(&generateRequest{
		Model:  c.model,
		Prompt: p.System + "\n\n" + p.User,
		Stream: false,
		Options: map[string]any{
			"temperature": 0.2,
			"num_predict": 4000,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, domain.NewBackendError(c.name, domain.ErrNetworkError, "request timed out: "+err.Error())
		}
		// A refused connection means Ollama is not running at all.
		return nil, domain.NewBackendError(c.name, domain.ErrBackendUnavailable,
			"cannot reach Ollama at "+c.baseURL+": "+err.Error())
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, domain.NewBackendError(c.name, domain.ErrNetworkError, err.Error())
	}

	if resp.StatusCode != http.StatusOK {
		var apiErr generateResponse
		msg := string(respBody)
		if json.Unmarshal(respBody, &apiErr) == nil && apiErr.Error != "" {
			msg = apiErr.Error
		}
		kind := domain.ClassifyStatus(resp.StatusCode, "")
		return nil, domain.NewBackendError(c.name, kind, msg).WithStatusCode(resp.StatusCode)
	}

	var result generateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "unmarshal response: "+err.Error())
	}
	if result.Response == "" {
		return nil, domain.NewBackendError(c.name, domain.ErrMalformedResponse, "response contained no text")
	}

	return &domain.ModelResponse{RawText: result.Response, Backend: c.name, Model: c.model}, nil
}
