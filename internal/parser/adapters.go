package parser

import (
	"github.com/sells-group/citewatch/internal/domain"
	"github.com/sells-group/citewatch/internal/model"
)

// adapter owns a provider kind's field-name knowledge. All prompted
// providers are asked for the same response schema, so the adapters differ
// only in where ranked citations live in the envelope.
type adapter struct {
	// citationsRanked marks providers whose envelope citation array is an
	// ordered ranking rather than an unordered source list.
	citationsRanked bool
}

func adapterFor(kind model.ProviderKind) adapter {
	switch kind {
	case model.KindPerplexity:
		return adapter{citationsRanked: true}
	default:
		return adapter{}
	}
}

// extract pulls domains, ranks, and URLs out of a decoded response object
// following the prompted schema: a "results" array of objects carrying a
// "domain" and a free-text "comment". Ranks are the 1-based positions in
// the results array. Objects missing fields are skipped, never fatal.
func (a adapter) extract(parsed map[string]any) model.ParsedExtraction {
	var ext model.ParsedExtraction

	results, _ := parsed["results"].([]any)
	seenDomain := make(map[string]bool)
	seenURL := make(map[string]bool)

	rank := 0
	for _, item := range results {
		entry, ok := item.(map[string]any)
		if !ok {
			continue
		}
		rank++

		if raw, ok := entry["domain"].(string); ok {
			if dom := domain.Normalize(raw); dom != "" && !seenDomain[dom] {
				seenDomain[dom] = true
				ext.Domains = append(ext.Domains, dom)
				ext.Ranks = append(ext.Ranks, rank)
			}
		}

		if comment, ok := entry["comment"].(string); ok {
			for _, u := range extractURLsFromText(comment) {
				if !seenURL[u] {
					seenURL[u] = true
					ext.URLs = append(ext.URLs, u)
				}
			}
		}
	}

	// Some models also list sources as a top-level "citations" array even
	// when following the prompted schema.
	if cites, ok := parsed["citations"].([]any); ok {
		for _, item := range cites {
			raw, ok := item.(string)
			if !ok {
				continue
			}
			if u := domain.NormalizeURL(raw); u != "" && !seenURL[u] {
				seenURL[u] = true
				ext.URLs = append(ext.URLs, u)
			}
		}
	}

	return ext
}
