package backend

import (
	"fmt"
	"sort"
	"sync"

	"github.com/drpact/pactgen/internal/config"
)

// Factory creates a Client of one backend type from configuration.
type Factory struct {
	// Type is the backend type identifier used in configuration
	// (openai, anthropic, gemini, ollama).
	Type string

	// Description is a human-readable summary for --list output.
	Description string

	// Create instantiates the client.
	Create func(cfg config.BackendConfig) (Client, error)

	// RequiresAPIKey marks backends that refuse to start without
	// credentials. The env var name is carried in the config value.
	RequiresAPIKey bool
}

var (
	factoryMu  sync.RWMutex
	factoryMap = make(map[string]Factory)
)

// Register registers a backend factory. Called from each client package's
// registration function; panics on duplicates since that is a wiring bug.
func Register(f Factory) {
	factoryMu.Lock()
	defer factoryMu.Unlock()

	if f.Type == "" {
		panic("backend factory type cannot be empty")
	}
	if f.Create == nil {
		panic(fmt.Sprintf("backend factory %q must have a Create function", f.Type))
	}
	if _, exists := factoryMap[f.Type]; exists {
		panic(fmt.Sprintf("backend factory %q already registered", f.Type))
	}
	factoryMap[f.Type] = f
}

// Create instantiates a client from configuration using the registered
// factory for its type.
func Create(cfg config.BackendConfig) (Client, error) {
	factoryMu.RLock()
	f, ok := factoryMap[cfg.Type]
	factoryMu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no backend factory registered for type %q (registered: %v)", cfg.Type, Types())
	}
	if f.RequiresAPIKey && cfg.APIKey == "" {
		return nil, fmt.Errorf("backend %q has no API key; set the credential environment variable for it", cfg.Name)
	}
	return f.Create(cfg)
}

// Registered reports whether a factory for the type exists.
func Registered(backendType string) bool {
	factoryMu.RLock()
	defer factoryMu.RUnlock()
	_, ok := factoryMap[backendType]
	return ok
}

// Types lists the registered backend types, sorted.
func Types() []string {
	factoryMu.RLock()
	defer factoryMu.RUnlock()

	types := make([]string, 0, len(factoryMap))
	for t := range factoryMap {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// clearFactories removes all registered factories. Tests only.
func clearFactories() {
	factoryMu.Lock()
	defer factoryMu.Unlock()
	factoryMap = make(map[string]Factory)
}
