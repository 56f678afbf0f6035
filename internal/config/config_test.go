package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.Backend)
	// The demo defaults must reference the provider source this repo ships.
	assert.Equal(t, "internal/riskalgo/service.go", cfg.Paths.ProviderSource)
	assert.Equal(t, "pacts/InsulinPumpUI-RiskAlgoService.json", cfg.Paths.ContractFile)
	assert.Equal(t, 60*time.Second, cfg.Timeouts.Model)
	assert.Equal(t, 120*time.Second, cfg.Timeouts.ConsumerTest)
	assert.Equal(t, 24000, cfg.Prompt.MaxTokens)
	assert.Equal(t, []string{"typescript", "ts"}, cfg.Prompt.LanguageTags)
	assert.Equal(t, []string{"npm", "test"}, cfg.Consumer.TestCommand)
	assert.Equal(t, "http://localhost:7001", cfg.Provider.BaseURL)
	assert.Len(t, cfg.Backends, 5)
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.Backend)
}

func TestLoadYAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pactgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
backend: ollama
timeouts:
  model: 90s
prompt:
  max_tokens: 8000
consumer:
  dir: my-consumer
  test_command: ["npx", "jest", "--runInBand"]
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "ollama", cfg.Backend)
	assert.Equal(t, 90*time.Second, cfg.Timeouts.Model)
	assert.Equal(t, 8000, cfg.Prompt.MaxTokens)
	assert.Equal(t, "my-consumer", cfg.Consumer.Dir)
	assert.Equal(t, []string{"npx", "jest", "--runInBand"}, cfg.Consumer.TestCommand)
	// Untouched keys keep their defaults.
	assert.Equal(t, 120*time.Second, cfg.Timeouts.ConsumerTest)
}

func TestLoadMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pactgen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("backend: [unclosed"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("PACTGEN_BACKEND", "anthropic")
	t.Setenv("PACTGEN_TIMEOUTS__MODEL", "45s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.Backend)
	assert.Equal(t, 45*time.Second, cfg.Timeouts.Model)
}

func TestAPIKeySubstitution(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")
	t.Setenv("GEMINI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)

	openai, err := cfg.BackendByName("openai")
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", openai.APIKey)

	// An unset variable substitutes to empty, not to the ${VAR} literal.
	gemini, err := cfg.BackendByName("gemini")
	require.NoError(t, err)
	assert.Equal(t, "", gemini.APIKey)
}

func TestBackendByName(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	groq, err := cfg.BackendByName("groq")
	require.NoError(t, err)
	assert.Equal(t, "openai", groq.Type)
	assert.Equal(t, "https://api.groq.com/openai/v1", groq.BaseURL)

	ollama, err := cfg.BackendByName("ollama")
	require.NoError(t, err)
	assert.Equal(t, "ollama", ollama.Type)
	assert.Empty(t, ollama.APIKey)

	_, err = cfg.BackendByName("mistral")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown backend "mistral"`)
	assert.Contains(t, err.Error(), "openai")
}

func TestSubstituteEnvVars(t *testing.T) {
	t.Setenv("PACTGEN_TEST_A", "alpha")
	t.Setenv("PACTGEN_TEST_B", "beta")

	tests := []struct{ in, want string }{
		{"${PACTGEN_TEST_A}", "alpha"},
		{"prefix-${PACTGEN_TEST_A}-${PACTGEN_TEST_B}", "prefix-alpha-beta"},
		{"no vars here", "no vars here"},
		{"${PACTGEN_TEST_UNSET}", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, substituteEnvVars(tt.in))
	}
}
