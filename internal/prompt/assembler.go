// Package prompt assembles the completion request sent to a model backend.
package prompt

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/tiktoken-go/tokenizer"

	"github.com/drpact/pactgen/internal/domain"
)

//go:embed template.txt
var defaultTemplate string

// DefaultTemplate returns the embedded system prompt.
func DefaultTemplate() string { return defaultTemplate }

// sectionMarker delimits the source sections inside the user prompt. The
// token is long and project-specific so real source text never contains it;
// assembly refuses to proceed if it somehow does, rather than emit a prompt
// whose sections cannot be told apart.
const sectionMarker = "=====8<===== PACTGEN-SECTION-BOUNDARY-d41c6a =====8<====="

const closingInstruction = "Respond with exactly one fenced code block containing the complete " +
	"generated test source. No prose before or after the block."

// CollisionError reports a source blob that contains the section marker.
type CollisionError struct {
	Section string
}

func (e *CollisionError) Error() string {
	return fmt.Sprintf("%s source contains the prompt section marker; refusing to assemble", e.Section)
}

// Assembler builds GenerationPrompts and accounts for their token cost.
type Assembler struct {
	// MaxTokens rejects prompts above this estimated size. Zero disables
	// the ceiling.
	MaxTokens int

	codec tokenizer.Codec
}

// NewAssembler creates an assembler with a cl100k token counter.
func NewAssembler(maxTokens int) (*Assembler, error) {
	codec, err := tokenizer.Get(tokenizer.Cl100kBase)
	if err != nil {
		return nil, fmt.Errorf("load tokenizer: %w", err)
	}
	return &Assembler{MaxTokens: maxTokens, codec: codec}, nil
}

// Assemble merges the template and source blobs into one completion request.
// The consumer section is always present; the provider section only when
// provider source was found. Both blobs are carried verbatim.
func (a *Assembler) Assemble(req *domain.GenerationRequest) (*domain.GenerationPrompt, error) {
	if strings.Contains(req.ConsumerSource, sectionMarker) {
		return nil, &CollisionError{Section: "consumer"}
	}
	if strings.Contains(req.ProviderSource, sectionMarker) {
		return nil, &CollisionError{Section: "provider"}
	}

	var b strings.Builder
	b.WriteString("Analyze these files and generate Pact contract tests.\n\n")
	b.WriteString(sectionMarker + " CONSUMER\n")
	b.WriteString(req.ConsumerSource)
	if !strings.HasSuffix(req.ConsumerSource, "\n") {
		b.WriteByte('\n')
	}
	if req.ProviderSource != "" {
		b.WriteString(sectionMarker + " PROVIDER\n")
		b.WriteString(req.ProviderSource)
		if !strings.HasSuffix(req.ProviderSource, "\n") {
			b.WriteByte('\n')
		}
	}
	b.WriteString(sectionMarker + " END\n\n")
	b.WriteString(closingInstruction)

	p := &domain.GenerationPrompt{
		System: req.PromptTemplate,
		User:   b.String(),
	}

	count, err := a.countTokens(p.System + "\n" + p.User)
	if err != nil {
		return nil, err
	}
	p.TokenCount = count

	if a.MaxTokens > 0 && count > a.MaxTokens {
		return nil, fmt.Errorf("assembled prompt is %d tokens, over the %d token ceiling", count, a.MaxTokens)
	}

	return p, nil
}

func (a *Assembler) countTokens(text string) (int, error) {
	ids, _, err := a.codec.Encode(text)
	if err != nil {
		return 0, fmt.Errorf("count prompt tokens: %w", err)
	}
	return len(ids), nil
}
