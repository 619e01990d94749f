// Package provider defines the interface and implementations for answer
// engine adapters. Each adapter owns its API's request shape and returns a
// uniform RawPayload; parsing and matching happen downstream.
package provider

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sells-group/citewatch/internal/model"
)

// SystemMessage is the instruction sent ahead of every evaluation prompt.
// It pins the response to the JSON schema the parser expects.
const SystemMessage = "You are doing an evaluation. For the given query, list relevant agencies with domain citations. " +
	"Citations MUST be domain names only (example.com). Do not invent domains. " +
	"If you are unsure about a domain, return \"unknown\" for that domain. " +
	"You MUST output valid JSON only, following this schema: \n\n" +
	"{\n" +
	"\"query\": \"...\",\n" +
	"\"results\": [\n" +
	"{\n" +
	"\"agency\": \"\",\n" +
	"\"domain\": \"\",\n" +
	"\"comment\": \"\"\n" +
	"}\n" +
	"]\n" +
	"}\n\n" +
	"Do NOT include any conversational text, explanation, or commentary outside JSON."

// Provider is one configured answer engine.
type Provider interface {
	// Name returns the provider identifier ("openai", "perplexity", ...).
	Name() string
	// Model returns the display label for the model being queried.
	Model() string
	// Kind returns the response shape the parser should expect.
	Kind() model.ProviderKind
	// Fetch sends one prompt and returns the raw response. Each call is an
	// independent request; callers re-invoke Fetch to re-issue a prompt.
	Fetch(ctx context.Context, prompt string) (model.RawPayload, error)
}

// Registry manages the configured providers in registration order.
type Registry struct {
	mu        sync.RWMutex
	order     []string
	providers map[string]Provider
}

// NewRegistry creates an empty provider registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider under its name/model pair. Re-registering a key
// replaces the previous provider without changing its position.
func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := registryKey(p)
	if _, exists := r.providers[key]; !exists {
		r.order = append(r.order, key)
	}
	r.providers[key] = p
}

// Get returns a provider by name and model, or nil if not registered.
func (r *Registry) Get(name, model string) Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.providers[name+"/"+model]
}

// All returns the registered providers in registration order.
func (r *Registry) All() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.order))
	for _, key := range r.order {
		out = append(out, r.providers[key])
	}
	return out
}

func registryKey(p Provider) string {
	return p.Name() + "/" + p.Model()
}

// Throttled wraps a provider with a shared request rate limit. Fetch blocks
// until the limiter grants a slot or the context is done.
func Throttled(p Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return p
	}
	return &throttled{Provider: p, limiter: limiter}
}

type throttled struct {
	Provider
	limiter *rate.Limiter
}

func (t *throttled) Fetch(ctx context.Context, prompt string) (model.RawPayload, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return model.RawPayload{}, err
	}
	return t.Provider.Fetch(ctx, prompt)
}
