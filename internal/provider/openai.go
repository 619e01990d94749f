package provider

import (
	"context"

	openai "github.com/sashabaranov/go-openai"

	"github.com/rotisserie/eris"
	"github.com/sells-group/citewatch/internal/model"
)

// OpenAI queries an OpenAI chat-completions search model.
type OpenAI struct {
	client *openai.Client
	model  string
	label  string
}

// NewOpenAI creates an OpenAI provider. An empty baseURL uses the public
// API endpoint.
func NewOpenAI(apiKey, baseURL, modelSlug, label string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if label == "" {
		label = modelSlug
	}
	return &OpenAI{
		client: openai.NewClientWithConfig(cfg),
		model:  modelSlug,
		label:  label,
	}
}

func (p *OpenAI) Name() string             { return "openai" }
func (p *OpenAI) Model() string            { return p.label }
func (p *OpenAI) Kind() model.ProviderKind { return model.KindOpenAI }

// Fetch sends one prompt. Search-preview models reject sampling parameters,
// so the request carries none.
func (p *OpenAI) Fetch(ctx context.Context, prompt string) (model.RawPayload, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemMessage},
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return model.RawPayload{}, eris.Wrap(err, "openai: chat completion")
	}
	if len(resp.Choices) == 0 {
		return model.RawPayload{}, eris.New("openai: response has no choices")
	}

	// Chat completions carry citations inline in the text; URL extraction
	// happens downstream in the parser.
	return model.RawPayload{Text: resp.Choices[0].Message.Content}, nil
}
