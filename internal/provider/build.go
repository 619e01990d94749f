package provider

import (
	"sort"
	"strings"

	"golang.org/x/time/rate"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/config"
	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/pkg/openrouter"
	"github.com/sells-group/citewatch/pkg/perplexity"
)

// labelFor compresses an OpenRouter model slug into a filesystem-friendly
// display label: "openai/gpt-oss-20b:free:online" -> "gpt-oss-20b-free-online".
func labelFor(slug string) string {
	if i := strings.LastIndex(slug, "/"); i >= 0 {
		slug = slug[i+1:]
	}
	return strings.ReplaceAll(slug, ":", "-")
}

// FromConfig builds the provider registry from configuration. Providers
// without an API key are skipped; each configured provider shares one rate
// limiter so concurrent prompt fan-out stays under the provider rate limit.
func FromConfig(cfg *config.Config) (*Registry, error) {
	reg := NewRegistry()

	newLimiter := func() *rate.Limiter {
		if cfg.Eval.RequestsPerSec <= 0 {
			return nil
		}
		return rate.NewLimiter(rate.Limit(cfg.Eval.RequestsPerSec), 1)
	}

	if cfg.OpenAI.Key != "" {
		p := NewOpenAI(cfg.OpenAI.Key, cfg.OpenAI.BaseURL, cfg.OpenAI.Model, "")
		reg.Register(Throttled(p, newLimiter()))
	}

	if cfg.Perplexity.Key != "" {
		client := perplexity.NewClient(cfg.Perplexity.Key,
			perplexity.WithBaseURL(cfg.Perplexity.BaseURL))
		p := NewPerplexity(client, cfg.Perplexity.Model, "", cfg.Eval.Temperature).
			WithSearchDomains(cfg.Perplexity.SearchDomains)
		reg.Register(Throttled(p, newLimiter()))
	}

	if cfg.OpenRouter.Key != "" {
		opts := []openrouter.Option{openrouter.WithBaseURL(cfg.OpenRouter.BaseURL)}
		if cfg.OpenRouter.Referer != "" {
			opts = append(opts, openrouter.WithReferer(cfg.OpenRouter.Referer, cfg.OpenRouter.Title))
		}
		client := openrouter.NewClient(cfg.OpenRouter.Key, opts...)
		// All OpenRouter model slugs share one limiter: they hit the same
		// API key and quota.
		limiter := newLimiter()
		for _, slug := range cfg.OpenRouter.Models {
			p := NewOpenRouter(client, slug, labelFor(slug), cfg.Eval.Temperature)
			reg.Register(Throttled(p, limiter))
		}
	}

	if len(reg.All()) == 0 {
		return nil, eris.New("provider: no providers configured, set at least one API key")
	}
	return reg, nil
}

// Specs describes the registered providers for logs and reports.
func Specs(reg *Registry) []model.ProviderConfig {
	providers := reg.All()
	specs := make([]model.ProviderConfig, 0, len(providers))
	for _, p := range providers {
		specs = append(specs, model.ProviderConfig{
			Name:  p.Name(),
			Model: p.Model(),
			Kind:  p.Kind(),
		})
	}
	return specs
}

// Filter narrows a registry to the given model slugs. An empty slug list
// returns the registry unchanged.
func Filter(reg *Registry, slugs []string) (*Registry, error) {
	requested := map[string]bool{}
	for _, slug := range slugs {
		if slug = strings.TrimSpace(slug); slug != "" {
			requested[slug] = true
		}
	}
	if len(requested) == 0 {
		return reg, nil
	}

	out := NewRegistry()
	for _, p := range reg.All() {
		if requested[p.Model()] {
			out.Register(p)
			delete(requested, p.Model())
		}
	}
	if len(requested) > 0 {
		unknown := make([]string, 0, len(requested))
		for slug := range requested {
			unknown = append(unknown, slug)
		}
		sort.Strings(unknown)
		return nil, eris.Errorf("provider: unknown model(s): %s", strings.Join(unknown, ", "))
	}
	return out, nil
}
