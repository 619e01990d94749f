package model

// ProviderKind identifies the response shape a provider emits. Field-name
// knowledge for each shape lives in the parser's per-kind adapter.
type ProviderKind string

const (
	// KindOpenAI is an OpenAI-compatible chat-completions search endpoint.
	KindOpenAI ProviderKind = "openai"
	// KindPerplexity is a Perplexity-style endpoint that reports a
	// top-level citations array alongside the answer text.
	KindPerplexity ProviderKind = "perplexity"
	// KindOpenRouter is an OpenRouter chat-completions endpoint running
	// search-grounded (":online") models.
	KindOpenRouter ProviderKind = "openrouter"
)

// ProviderConfig describes one configured answer engine.
type ProviderConfig struct {
	Name  string       `json:"name" yaml:"name"`
	Model string       `json:"model" yaml:"model"`
	Kind  ProviderKind `json:"kind" yaml:"kind"`
	// Label is the display name used in logs and reports; defaults to Model.
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// DisplayLabel returns the label to report the provider's model under.
func (p ProviderConfig) DisplayLabel() string {
	if p.Label != "" {
		return p.Label
	}
	return p.Model
}

// RawPayload is one provider response, untouched by citation semantics.
// Text is the answer body (JSON or prose). Citations carries any URL list
// the provider's envelope reported out-of-band, in the provider's order.
type RawPayload struct {
	Text      string   `json:"text"`
	Citations []string `json:"citations,omitempty"`
}
