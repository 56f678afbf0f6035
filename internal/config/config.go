// Package config loads pipeline configuration from an optional YAML file
// and PACTGEN_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	// Backend selects which model backend to use for generation.
	Backend string `koanf:"backend"`

	Paths    PathsConfig     `koanf:"paths"`
	Timeouts TimeoutsConfig  `koanf:"timeouts"`
	Prompt   PromptConfig    `koanf:"prompt"`
	Consumer ConsumerConfig  `koanf:"consumer"`
	Provider ProviderConfig  `koanf:"provider"`
	Backends []BackendConfig `koanf:"backends"`
}

type PathsConfig struct {
	// ConsumerSource is the consumer HTTP wrapper source file.
	ConsumerSource string `koanf:"consumer_source"`

	// ProviderSource is the provider implementation source file.
	// Optional; when absent the prompt omits the provider section.
	ProviderSource string `koanf:"provider_source"`

	// PromptTemplate overrides the embedded system prompt when set.
	PromptTemplate string `koanf:"prompt_template"`

	// GeneratedTest is where the extracted contract test is written.
	GeneratedTest string `koanf:"generated_test"`

	// ContractFile is where the consumer test run emits the pact.
	ContractFile string `koanf:"contract_file"`
}

type TimeoutsConfig struct {
	// Model bounds a single completion call.
	Model time.Duration `koanf:"model"`

	// ConsumerTest bounds the consumer test subprocess.
	ConsumerTest time.Duration `koanf:"consumer_test"`

	// ProviderVerify bounds the provider verification subprocess.
	ProviderVerify time.Duration `koanf:"provider_verify"`
}

type PromptConfig struct {
	// MaxTokens caps the assembled prompt size.
	MaxTokens int `koanf:"max_tokens"`

	// LanguageTags are the fence tags accepted during extraction.
	LanguageTags []string `koanf:"language_tags"`
}

type ConsumerConfig struct {
	// Dir is the consumer project directory the test command runs in.
	Dir string `koanf:"dir"`

	// TestCommand runs the consumer test suite. First element is the
	// executable, the rest are arguments.
	TestCommand []string `koanf:"test_command"`
}

type ProviderConfig struct {
	// Dir is the provider project directory the verify command runs in.
	Dir string `koanf:"dir"`

	// VerifyCommand runs provider-side verification against BaseURL.
	VerifyCommand []string `koanf:"verify_command"`

	// BaseURL is the address of the running provider instance.
	BaseURL string `koanf:"base_url"`
}

type BackendConfig struct {
	// Name is the backend selector used by --provider.
	Name string `koanf:"name"`

	// Type names the client implementation (openai, anthropic, gemini,
	// ollama). Groq is type openai with a custom base URL.
	Type string `koanf:"type"`

	// Model is the model identifier sent to the backend.
	Model string `koanf:"model"`

	// APIKey supports ${ENV_VAR} substitution.
	APIKey string `koanf:"api_key"`

	// BaseURL overrides the backend's default endpoint.
	BaseURL string `koanf:"base_url"`
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads configuration from configPath (optional) and the environment.
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if err := loadDefaults(k); err != nil {
		return nil, err
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("load %s: %w", configPath, err)
			}
		}
	}

	// Environment overrides: PACTGEN_TIMEOUTS__MODEL=90s etc.
	if err := k.Load(env.Provider("PACTGEN_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "PACTGEN_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Credentials are referenced as ${VAR} so keys never live in the file.
	for i := range cfg.Backends {
		cfg.Backends[i].APIKey = substituteEnvVars(cfg.Backends[i].APIKey)
	}

	return &cfg, nil
}

// BackendByName returns the configuration for the named backend.
func (c *Config) BackendByName(name string) (BackendConfig, error) {
	for _, b := range c.Backends {
		if b.Name == name {
			return b, nil
		}
	}
	known := make([]string, 0, len(c.Backends))
	for _, b := range c.Backends {
		known = append(known, b.Name)
	}
	return BackendConfig{}, fmt.Errorf("unknown backend %q (configured: %s)", name, strings.Join(known, ", "))
}

func loadDefaults(k *koanf.Koanf) error {
	// The defaults describe the demo workspace: a TypeScript consumer under
	// consumer-ts/ and the bundled riskalgo provider from this repository.
	// The provider source default must point at a file that exists when
	// running from the repo root, since a missing provider source silently
	// drops the min-length inference from the prompt.
	defaults := map[string]any{
		"backend":                  "gemini",
		"paths.consumer_source":    "consumer-ts/src/insulinClient.ts",
		"paths.provider_source":    "internal/riskalgo/service.go",
		"paths.generated_test":     "consumer-ts/tests/contract.spec.ts",
		"paths.contract_file":      "pacts/InsulinPumpUI-RiskAlgoService.json",
		"timeouts.model":           "60s",
		"timeouts.consumer_test":   "120s",
		"timeouts.provider_verify": "120s",
		"prompt.max_tokens":        24000,
		"prompt.language_tags":     []string{"typescript", "ts"},
		"consumer.dir":             "consumer-ts",
		"consumer.test_command":    []string{"npm", "test"},
		"provider.base_url":        "http://localhost:7001",
		"provider.verify_command":  []string{"pactverify"},
	}
	for key, val := range defaults {
		if err := k.Set(key, val); err != nil {
			return err
		}
	}

	backends := []map[string]any{
		{"name": "openai", "type": "openai", "model": "gpt-4o", "api_key": "${OPENAI_API_KEY}"},
		{"name": "anthropic", "type": "anthropic", "model": "claude-3-5-sonnet-20241022", "api_key": "${ANTHROPIC_API_KEY}"},
		{"name": "gemini", "type": "gemini", "model": "gemini-2.0-flash", "api_key": "${GEMINI_API_KEY}"},
		{"name": "groq", "type": "openai", "model": "llama-3.3-70b-versatile", "api_key": "${GROQ_API_KEY}", "base_url": "https://api.groq.com/openai/v1"},
		{"name": "ollama", "type": "ollama", "model": "llama3.2", "base_url": "http://localhost:11434"},
	}
	return k.Set("backends", backends)
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
