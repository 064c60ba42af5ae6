package config

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/llm"
	"github.com/Yuhamixli/voice-input-assistant/pkg/provider/transcribe"
)

// ErrProviderNotRegistered is returned by New* methods when no factory has
// been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// ErrProviderRegistered is returned by Register* methods when a factory is
// already registered under the given name.
var ErrProviderRegistered = errors.New("config: provider already registered")

// EngineFactory constructs a transcription engine from its config entry.
type EngineFactory func(ProviderEntry) (transcribe.Engine, error)

// LLMFactory constructs an LLM provider from its config entry.
type LLMFactory func(ProviderEntry) (llm.Provider, error)

// Registry maps provider names to their constructor functions for each
// provider kind. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	engines map[string]EngineFactory
	llms    map[string]LLMFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		engines: make(map[string]EngineFactory),
		llms:    make(map[string]LLMFactory),
	}
}

// RegisterEngine registers a transcription engine factory under name.
// Returns [ErrProviderRegistered] if name is already taken.
func (r *Registry) RegisterEngine(name string, factory EngineFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.engines[name]; ok {
		return fmt.Errorf("%w: engine/%q", ErrProviderRegistered, name)
	}
	r.engines[name] = factory
	return nil
}

// RegisterLLM registers an LLM provider factory under name.
// Returns [ErrProviderRegistered] if name is already taken.
func (r *Registry) RegisterLLM(name string, factory LLMFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.llms[name]; ok {
		return fmt.Errorf("%w: llm/%q", ErrProviderRegistered, name)
	}
	r.llms[name] = factory
	return nil
}

// NewEngine instantiates a transcription engine using the factory registered
// under entry.Name. Returns [ErrProviderNotRegistered] if no factory has
// been registered for that name.
func (r *Registry) NewEngine(entry ProviderEntry) (transcribe.Engine, error) {
	r.mu.RLock()
	factory, ok := r.engines[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: engine/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// NewLLM instantiates an LLM provider using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if no factory has been
// registered for that name.
func (r *Registry) NewLLM(entry ProviderEntry) (llm.Provider, error) {
	r.mu.RLock()
	factory, ok := r.llms[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: llm/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// EngineNames returns the sorted list of registered engine names.
// Used by the CLI for error messages and -list flags.
func (r *Registry) EngineNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.engines))
	for name := range r.engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// LLMNames returns the sorted list of registered LLM provider names.
func (r *Registry) LLMNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.llms))
	for name := range r.llms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
