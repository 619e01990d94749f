// Package parser turns raw provider payloads into structured citation
// extractions. Decoding never fails outward: a payload that is not valid
// JSON degrades to a best-effort URL scan of the raw text. Re-issuing the
// provider call on invalid JSON is the orchestrator's job, not this
// package's.
package parser

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/sells-group/citewatch/internal/domain"
	"github.com/sells-group/citewatch/internal/model"
)

var urlPattern = regexp.MustCompile(`https?://[^\s)\]]+`)

// Parse extracts cited domains, URLs, and ranks from one provider payload.
// The returned map is the decoded JSON object when one could be recovered
// (nil otherwise), and valid reports whether the payload text decoded as
// JSON on its own; a snippet recovered from surrounding prose does not
// count as valid. Parse always returns a usable extraction, possibly empty.
func Parse(payload model.RawPayload, kind model.ProviderKind) (model.ParsedExtraction, map[string]any, bool) {
	ad := adapterFor(kind)

	parsed, valid := decodeObject(payload.Text)

	var ext model.ParsedExtraction
	if parsed != nil {
		ext = ad.extract(parsed)
	} else {
		// Best-effort fallback: scan the raw text for URL tokens.
		ext.URLs = extractURLsFromText(payload.Text)
	}

	mergeCitations(&ext, payload.Citations, ad.citationsRanked)

	return ext, parsed, valid
}

// decodeObject decodes text as a JSON object, falling back to the outermost
// {...} snippet when the text wraps JSON in prose or code fences. The valid
// flag is true only for a clean whole-text decode.
func decodeObject(text string) (map[string]any, bool) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err == nil {
		return obj, true
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start >= 0 && end > start {
		snippet := text[start : end+1]
		if err := json.Unmarshal([]byte(snippet), &obj); err == nil {
			return obj, false
		}
	}
	return nil, false
}

// extractURLsFromText scans prose for http(s) tokens, normalizing and
// deduplicating while preserving first-seen order.
func extractURLsFromText(text string) []string {
	if text == "" {
		return nil
	}
	var urls []string
	seen := make(map[string]bool)
	for _, match := range urlPattern.FindAllString(text, -1) {
		normalized := domain.NormalizeURL(match)
		if normalized != "" && !seen[normalized] {
			seen[normalized] = true
			urls = append(urls, normalized)
		}
	}
	return urls
}

// mergeCitations folds envelope-level citation URLs into the extraction.
// When the provider's citation array order is a ranking (Perplexity), the
// cited domains and their positions are carried through as ranks, but only
// if the content itself did not already supply ranked domains.
func mergeCitations(ext *model.ParsedExtraction, citations []string, ranked bool) {
	if len(citations) == 0 {
		return
	}

	seen := make(map[string]bool, len(ext.URLs))
	for _, u := range ext.URLs {
		seen[u] = true
	}

	deriveDomains := ranked && len(ext.Domains) == 0
	seenDomain := make(map[string]bool)

	for i, raw := range citations {
		normalized := domain.NormalizeURL(raw)
		if normalized == "" {
			continue
		}
		if !seen[normalized] {
			seen[normalized] = true
			ext.URLs = append(ext.URLs, normalized)
		}
		if deriveDomains {
			dom := domain.FromURL(raw)
			if dom != "" && !seenDomain[dom] {
				seenDomain[dom] = true
				ext.Domains = append(ext.Domains, dom)
				ext.Ranks = append(ext.Ranks, i+1)
			}
		}
	}
}
