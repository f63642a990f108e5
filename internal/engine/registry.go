package engine

import (
	"fmt"
	"slices"
	"sync"

	"github.com/ekisa-team/melo-api/internal/config"
)

// Factory builds an engine from the loaded configuration.
type Factory func(cfg *config.Config) (Engine, error)

// Registry maps engine provider names to factories.
type Registry struct {
	factories map[config.EngineProvider]Factory
	mu        sync.RWMutex
}

// NewRegistry creates a new engine registry.
func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[config.EngineProvider]Factory),
	}
}

// Register adds a factory, replacing any previous one for provider.
func (r *Registry) Register(provider config.EngineProvider, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.factories[provider] = f
}

// Providers returns the registered provider names in sorted order.
func (r *Registry) Providers() []config.EngineProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	providers := make([]config.EngineProvider, 0, len(r.factories))
	for p := range r.factories {
		providers = append(providers, p)
	}
	slices.Sort(providers)

	return providers
}

// New builds the engine selected by cfg.Engine.Provider.
func (r *Registry) New(cfg *config.Config) (Engine, error) {
	r.mu.RLock()
	f, ok := r.factories[cfg.Engine.Provider]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, cfg.Engine.Provider)
	}

	eng, err := f(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s engine: %w", cfg.Engine.Provider, err)
	}

	return eng, nil
}
