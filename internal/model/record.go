package model

import (
	"fmt"
	"sort"
	"strings"
)

// ParsedExtraction is what the parser pulls out of one RawPayload.
// Domains are normalized, in the provider's result order. Ranks align with
// Domains when the provider reports positions and is empty otherwise;
// downstream code must never fabricate ranks. URLs are deduplicated cited
// URLs in first-seen order.
type ParsedExtraction struct {
	Domains []string `json:"domains"`
	Ranks   []int    `json:"ranks"`
	URLs    []string `json:"urls"`
}

// MatchRecord is one target domain found in an extraction.
type MatchRecord struct {
	Domain      string   `json:"domain"`
	Ranks       []int    `json:"ranks"`
	TargetURLs  []string `json:"target_urls"`
	MatchedURLs []string `json:"matched_urls"`
	CitedURLs   []string `json:"cited_urls"`
}

// ResultRecord is the persisted outcome of one (prompt, provider) pair.
// It is immutable once assembled and append-only in storage.
type ResultRecord struct {
	Prompt      string              `json:"prompt"`
	Raw         string              `json:"raw"`
	Parsed      map[string]any      `json:"parsed"`
	JSONValid   bool                `json:"json_valid"`
	Domains     []string            `json:"domains"`
	DomainRanks map[string][]int    `json:"domain_ranks"`
	Matches     []MatchRecord       `json:"matches"`
	DomainURLs  map[string][]string `json:"domain_urls"`
	// Error notes a provider-call failure; the record is degraded, not absent.
	Error         string `json:"error,omitempty"`
	ErrorCategory string `json:"error_category,omitempty"`
}

// Cited reports whether any target was cited. Invariant: true iff Matches
// is non-empty.
func (r ResultRecord) Cited() bool {
	return len(r.Matches) > 0
}

// RunLog is one provider's complete set of per-prompt results for one
// invocation. Immutable once written.
type RunLog struct {
	Timestamp string         `json:"timestamp"`
	Provider  string         `json:"provider"`
	Model     string         `json:"model"`
	Results   []ResultRecord `json:"results"`
}

// CitedCount returns how many results in the log cited a target.
func (l RunLog) CitedCount() int {
	n := 0
	for _, r := range l.Results {
		if r.Cited() {
			n++
		}
	}
	return n
}

// StatusLine renders the human-readable per-result status. It is a pure
// function of (cited, citedURLs, ranks) so the CLI and the dashboard API
// produce identical strings.
func StatusLine(cited bool, citedURLs []string, ranks []int) string {
	if !cited || len(citedURLs) == 0 {
		return "no target URLs cited"
	}
	status := "cited URL(s): " + strings.Join(citedURLs, ", ")
	if len(ranks) > 0 {
		status += "\nrank(s): " + joinRanks(ranks)
	}
	return status
}

// joinRanks renders sorted, deduplicated ranks as "1, 3, 7".
func joinRanks(ranks []int) string {
	seen := make(map[int]bool, len(ranks))
	var uniq []int
	for _, r := range ranks {
		if !seen[r] {
			seen[r] = true
			uniq = append(uniq, r)
		}
	}
	sort.Ints(uniq)
	parts := make([]string, len(uniq))
	for i, r := range uniq {
		parts[i] = fmt.Sprintf("%d", r)
	}
	return strings.Join(parts, ", ")
}
