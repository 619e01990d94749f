package provider

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/pkg/openrouter"
)

// OpenRouter queries one model slug through the OpenRouter API. Search
// grounding comes from the ":online" model suffix; any URL annotations on
// the answer are carried through as citations.
type OpenRouter struct {
	client      openrouter.Client
	model       string
	label       string
	temperature float64
}

// NewOpenRouter creates an OpenRouter provider for one model slug.
func NewOpenRouter(client openrouter.Client, modelSlug, label string, temperature float64) *OpenRouter {
	if label == "" {
		label = modelSlug
	}
	return &OpenRouter{
		client:      client,
		model:       modelSlug,
		label:       label,
		temperature: temperature,
	}
}

func (p *OpenRouter) Name() string             { return "openrouter" }
func (p *OpenRouter) Model() string            { return p.label }
func (p *OpenRouter) Kind() model.ProviderKind { return model.KindOpenRouter }

func (p *OpenRouter) Fetch(ctx context.Context, prompt string) (model.RawPayload, error) {
	temp := p.temperature
	resp, err := p.client.ChatCompletion(ctx, openrouter.ChatCompletionRequest{
		Model: p.model,
		Messages: []openrouter.Message{
			{Role: "system", Content: SystemMessage},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
	})
	if err != nil {
		return model.RawPayload{}, err
	}
	if len(resp.Choices) == 0 {
		return model.RawPayload{}, eris.New("openrouter: response has no choices")
	}

	msg := resp.Choices[0].Message
	payload := model.RawPayload{Text: msg.Content}
	for _, ann := range msg.Annotations {
		if ann.URLCitation != nil && ann.URLCitation.URL != "" {
			payload.Citations = append(payload.Citations, ann.URLCitation.URL)
		}
	}
	return payload, nil
}
