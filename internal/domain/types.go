// Package domain holds the types shared across pipeline stages.
package domain

// GenerationRequest carries everything needed to produce one contract-test
// generation run. It is built once by the orchestrator and never mutated.
type GenerationRequest struct {
	// ConsumerSource is the consumer-side HTTP wrapper source, verbatim.
	ConsumerSource string

	// ProviderSource is the provider implementation source, verbatim.
	// May be empty; generation then falls back to consumer-only analysis.
	ProviderSource string

	// PromptTemplate is the system prompt the completion request starts with.
	PromptTemplate string

	// Backend is the configured model backend name (openai, anthropic, ...).
	Backend string
}

// GenerationPrompt is the assembled completion request handed to a backend.
type GenerationPrompt struct {
	// System is the backend-agnostic system prompt.
	System string

	// User is the delimited source material plus the closing instruction.
	User string

	// TokenCount is the estimated token count of System+User.
	TokenCount int
}

// ModelResponse is a successful completion from a backend.
// Failures are reported as *BackendError instead.
type ModelResponse struct {
	// RawText is the model output before any extraction.
	RawText string

	// Backend names the backend that produced the response.
	Backend string

	// Model is the concrete model identifier used for the call.
	Model string
}
