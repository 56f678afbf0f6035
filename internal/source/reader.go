// Package source loads the raw material for a generation run: the consumer
// wrapper source, the provider implementation source, and the prompt
// template. No parsing happens here.
package source

import (
	"fmt"
	"os"

	"github.com/drpact/pactgen/internal/domain"
)

// Reader loads source blobs from disk.
type Reader struct {
	ConsumerPath string
	ProviderPath string
	TemplatePath string

	// DefaultTemplate is used when TemplatePath is empty.
	DefaultTemplate string
}

// Load reads all inputs and builds the immutable GenerationRequest.
// A missing provider source is tolerated: generation then relies on the
// consumer source alone. A missing consumer source or template is fatal.
func (r *Reader) Load(backend string) (*domain.GenerationRequest, error) {
	consumer, err := os.ReadFile(r.ConsumerPath)
	if err != nil {
		return nil, fmt.Errorf("read consumer source %s: %w", r.ConsumerPath, err)
	}

	var provider []byte
	if r.ProviderPath != "" {
		provider, err = os.ReadFile(r.ProviderPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read provider source %s: %w", r.ProviderPath, err)
			}
			provider = nil
		}
	}

	template := r.DefaultTemplate
	if r.TemplatePath != "" {
		raw, err := os.ReadFile(r.TemplatePath)
		if err != nil {
			return nil, fmt.Errorf("read prompt template %s: %w", r.TemplatePath, err)
		}
		template = string(raw)
	}
	if template == "" {
		return nil, fmt.Errorf("no prompt template available")
	}

	return &domain.GenerationRequest{
		ConsumerSource: string(consumer),
		ProviderSource: string(provider),
		PromptTemplate: template,
		Backend:        backend,
	}, nil
}
