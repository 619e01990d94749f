package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/pkg/perplexity"
)

// Perplexity queries the Perplexity sonar API. The answer's citations array
// comes back on the payload in the API's ranking order.
type Perplexity struct {
	client        perplexity.Client
	model         string
	label         string
	temperature   float64
	searchDomains []string
}

// NewPerplexity creates a Perplexity provider.
func NewPerplexity(client perplexity.Client, modelSlug, label string, temperature float64) *Perplexity {
	if label == "" {
		label = modelSlug
	}
	return &Perplexity{
		client:      client,
		model:       modelSlug,
		label:       label,
		temperature: temperature,
	}
}

// WithSearchDomains restricts web search to the listed domains on every
// request this provider sends.
func (p *Perplexity) WithSearchDomains(domains []string) *Perplexity {
	p.searchDomains = domains
	return p
}

func (p *Perplexity) Name() string             { return "perplexity" }
func (p *Perplexity) Model() string            { return p.label }
func (p *Perplexity) Kind() model.ProviderKind { return model.KindPerplexity }

func (p *Perplexity) Fetch(ctx context.Context, prompt string) (model.RawPayload, error) {
	temp := p.temperature
	resp, err := p.client.ChatCompletion(ctx, perplexity.ChatCompletionRequest{
		Model: p.model,
		Messages: []perplexity.Message{
			{Role: "system", Content: SystemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature:        &temp,
		SearchDomainFilter: p.searchDomains,
	})
	if err != nil {
		return model.RawPayload{}, err
	}
	if len(resp.Choices) == 0 {
		return model.RawPayload{}, eris.New("perplexity: response has no choices")
	}
	return model.RawPayload{
		Text:      resp.Choices[0].Message.Content,
		Citations: resp.Citations,
	}, nil
}
