package ai

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	ProviderGemini     = "gemini"
	ProviderOllama     = "ollama"
	ProviderOpenRouter = "openrouter"
)

type ProviderFactory func(ctx context.Context, cfg Config) (Provider, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]ProviderFactory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]ProviderFactory)}
}

// DefaultRegistry knows every built-in provider.
func DefaultRegistry(log zerolog.Logger) *Registry {
	r := NewRegistry()
	r.Register(ProviderGemini, func(ctx context.Context, cfg Config) (Provider, error) {
		return NewGeminiProvider(ctx, cfg)
	})
	r.Register(ProviderOllama, func(_ context.Context, cfg Config) (Provider, error) {
		return NewOllamaProvider(cfg, log), nil
	})
	r.Register(ProviderOpenRouter, func(_ context.Context, cfg Config) (Provider, error) {
		return NewOpenRouterProvider(cfg, log), nil
	})
	return r
}

func normName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (r *Registry) Register(name string, f ProviderFactory) {
	name = normName(name)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

// Get builds the provider named by cfg.Provider.
func (r *Registry) Get(ctx context.Context, cfg Config) (Provider, error) {
	name := normName(cfg.Provider)
	r.mu.RLock()
	f, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		return nil, &ConfigError{Provider: name, Message: fmt.Sprintf("unknown ai provider: %s", name)}
	}
	return f(ctx, cfg)
}

func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for n := range r.factories {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
