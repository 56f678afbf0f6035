package ollama

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/drpact/pactgen/internal/config"
	"github.com/drpact/pactgen/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := createFromConfig(config.BackendConfig{
		Name:    "ollama",
		Type:    "ollama",
		Model:   "codellama",
		BaseURL: srv.URL,
	})
	if err != nil {
		t.Fatal(err)
	}
	return c.(*Client)
}

func TestCompleteSuccess(t *testing.T) {
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(generateResponse{Response: "```js\ntest\n```"})
	})

	resp, err := client.Complete(context.Background(), &domain.GenerationPrompt{
		System: "sys",
		User:   "usr",
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.RawText != "```js\ntest\n```" {
		t.Errorf("RawText = %q", resp.RawText)
	}
	if gotReq.Stream {
		t.Error("Stream = true, want non-streaming")
	}
	// System and user prompts are joined since the endpoint has one slot.
	if !strings.Contains(gotReq.Prompt, "sys") || !strings.Contains(gotReq.Prompt, "usr") {
		t.Errorf("Prompt = %q, want both sections", gotReq.Prompt)
	}
}

func TestCompleteConnectionRefusedIsUnavailable(t *testing.T) {
	c, err := createFromConfig(config.BackendConfig{
		Name:    "ollama",
		Model:   "codellama",
		BaseURL: "http://127.0.0.1:1",
	})
	if err != nil {
		t.Fatal(err)
	}

	_, err = c.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil, want unavailable")
	}
	be, ok := domain.AsBackendError(err)
	if !ok {
		t.Fatalf("error = %v, want *domain.BackendError", err)
	}
	if be.Kind != domain.ErrBackendUnavailable {
		t.Errorf("Kind = %s, want backend_unavailable", be.Kind)
	}
	if !strings.Contains(be.Message, "cannot reach Ollama") {
		t.Errorf("Message = %q", be.Message)
	}
}

func TestCompleteModelNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(generateResponse{Error: "model 'missing' not found"})
	})

	_, err := client.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil")
	}
	be, ok := domain.AsBackendError(err)
	if !ok {
		t.Fatal("not a backend error")
	}
	if be.Kind != domain.ErrMalformedResponse {
		t.Errorf("Kind = %s", be.Kind)
	}
	if !strings.Contains(be.Message, "not found") {
		t.Errorf("Message = %q, want vendor diagnostic kept verbatim", be.Message)
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(generateResponse{Response: ""})
	})

	_, err := client.Complete(context.Background(), &domain.GenerationPrompt{})
	if err == nil {
		t.Fatal("Complete() error = nil")
	}
	be, _ := domain.AsBackendError(err)
	if be == nil || be.Kind != domain.ErrMalformedResponse {
		t.Errorf("error = %v, want malformed_response", err)
	}
}
