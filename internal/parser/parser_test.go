package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citewatch/internal/model"
)

func TestParseSchemaResponse(t *testing.T) {
	payload := model.RawPayload{
		Text: `{
			"query": "best project management tools",
			"results": [
				{"agency": "Asana", "domain": "https://www.Asana.com/", "comment": "See https://asana.com/features for details"},
				{"agency": "Monday", "domain": "monday.com", "comment": "no links here"},
				{"agency": "Asana again", "domain": "asana.com", "comment": ""}
			]
		}`,
	}

	ext, parsed, valid := Parse(payload, model.KindOpenRouter)

	assert.True(t, valid)
	require.NotNil(t, parsed)
	assert.Equal(t, []string{"asana.com", "monday.com"}, ext.Domains)
	assert.Equal(t, []int{1, 2}, ext.Ranks)
	assert.Equal(t, []string{"https://asana.com/features"}, ext.URLs)
}

func TestParseSnippetRepair(t *testing.T) {
	payload := model.RawPayload{
		Text: "Sure! Here is the JSON you asked for:\n```json\n" +
			`{"query": "q", "results": [{"agency": "A", "domain": "example.com", "comment": ""}]}` +
			"\n```\nLet me know if you need anything else.",
	}

	ext, parsed, valid := Parse(payload, model.KindOpenRouter)

	assert.False(t, valid, "prose-wrapped JSON is recovered but not valid")
	require.NotNil(t, parsed)
	assert.Equal(t, []string{"example.com"}, ext.Domains)
	assert.Equal(t, []int{1}, ext.Ranks)
}

func TestParseGarbageNeverFails(t *testing.T) {
	tests := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"binary", "\x00\x01\x02 not json at all"},
		{"unbalanced", `{"results": [`},
		{"html", "<html><body>rate limited</body></html>"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			ext, parsed, valid := Parse(model.RawPayload{Text: tc.text}, model.KindOpenAI)
			assert.False(t, valid)
			assert.Nil(t, parsed)
			assert.Empty(t, ext.Domains)
		})
	}
}

func TestParseEmptyCitationsObjectIsValid(t *testing.T) {
	ext, parsed, valid := Parse(model.RawPayload{Text: `{"citations": []}`}, model.KindPerplexity)

	assert.True(t, valid)
	require.NotNil(t, parsed)
	assert.Empty(t, ext.Domains)
	assert.Empty(t, ext.URLs)
}

func TestParseTextFallbackExtractsURLs(t *testing.T) {
	payload := model.RawPayload{
		Text: "Top picks: https://www.Asana.com/pricing and (https://monday.com) " +
			"plus https://asana.com/pricing again.",
	}

	ext, parsed, valid := Parse(payload, model.KindOpenAI)

	assert.False(t, valid)
	assert.Nil(t, parsed)
	assert.Equal(t, []string{"https://asana.com/pricing", "https://monday.com"}, ext.URLs)
	assert.Empty(t, ext.Domains, "text fallback yields URLs only")
}

func TestParsePerplexityCitationsRanked(t *testing.T) {
	payload := model.RawPayload{
		Text: "Asana and Monday are the leading tools.",
		Citations: []string{
			"https://asana.com/guide",
			"https://www.monday.com/blog",
			"https://asana.com/pricing",
		},
	}

	ext, _, valid := Parse(payload, model.KindPerplexity)

	assert.False(t, valid)
	assert.Equal(t, []string{"asana.com", "monday.com"}, ext.Domains)
	assert.Equal(t, []int{1, 2}, ext.Ranks, "citation positions become ranks")
	assert.Equal(t, []string{
		"https://asana.com/guide",
		"https://monday.com/blog",
		"https://asana.com/pricing",
	}, ext.URLs)
}

func TestParsePerplexityContentRanksWin(t *testing.T) {
	payload := model.RawPayload{
		Text:      `{"query": "q", "results": [{"agency": "M", "domain": "monday.com", "comment": ""}]}`,
		Citations: []string{"https://asana.com"},
	}

	ext, _, valid := Parse(payload, model.KindPerplexity)

	assert.True(t, valid)
	assert.Equal(t, []string{"monday.com"}, ext.Domains, "envelope does not override content domains")
	assert.Equal(t, []int{1}, ext.Ranks)
	assert.Contains(t, ext.URLs, "https://asana.com")
}

func TestParseUnranked_CitationsMergeIntoURLsOnly(t *testing.T) {
	payload := model.RawPayload{
		Text:      "not json",
		Citations: []string{"https://example.com/a", "https://example.com/a"},
	}

	ext, _, _ := Parse(payload, model.KindOpenRouter)

	assert.Empty(t, ext.Domains)
	assert.Equal(t, []string{"https://example.com/a"}, ext.URLs)
}
