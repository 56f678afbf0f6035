package registration

import (
	"github.com/drpact/pactgen/internal/backend/anthropic"
	"github.com/drpact/pactgen/internal/backend/gemini"
	"github.com/drpact/pactgen/internal/backend/ollama"
	"github.com/drpact/pactgen/internal/backend/openai"
)

// RegisterBuiltins registers the built-in model backends explicitly.
// Called from cmd/pactgen and tests before wiring the registry; avoids
// init-based side effects.
func RegisterBuiltins() {
	openai.RegisterFactory()
	anthropic.RegisterFactory()
	gemini.RegisterFactory()
	ollama.RegisterFactory()
}
