package runlog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sells-group/citewatch/internal/model"
)

const rankNA = "rank n/a"

// otherURLLimit caps the "Other cited URLs" column in markdown tables.
const otherURLLimit = 3

// DescribeMatch renders one match for status lines:
// "asana.com (ranks [1]); cited URL(s): https://asana.com/pricing".
func DescribeMatch(match model.MatchRecord) string {
	rankStr := rankNA
	if len(match.Ranks) > 0 {
		rankStr = "ranks [" + joinInts(match.Ranks) + "]"
	}
	pieces := []string{fmt.Sprintf("%s (%s)", match.Domain, rankStr)}

	switch {
	case len(match.MatchedURLs) > 0:
		pieces = append(pieces, "cited URL(s): "+strings.Join(match.MatchedURLs, ", "))
	case len(match.CitedURLs) > 0:
		pieces = append(pieces, "cited URL(s): "+strings.Join(match.CitedURLs, ", "))
	case len(match.TargetURLs) > 0:
		pieces = append(pieces, "exact URL not found")
	default:
		pieces = append(pieces, "no URL targets")
	}
	return strings.Join(pieces, "; ")
}

// FormatProviderTable renders one provider's results as a markdown table
// for main_log.md and last_summary.md.
func FormatProviderTable(log model.RunLog) string {
	lines := []string{
		fmt.Sprintf("### Provider: %s | Model: %s", log.Provider, log.Model),
		"| Prompt | Target Domain | Status | Other cited URLs |",
		"| --- | --- | --- | --- |",
	}
	for _, rec := range log.Results {
		prompt := escapePipe(rec.Prompt)

		targetDomains := make(map[string]bool, len(rec.Matches))
		for _, m := range rec.Matches {
			if m.Domain != "" {
				targetDomains[m.Domain] = true
			}
		}
		otherURLs := OtherCitedURLs(rec.DomainURLs, targetDomains, otherURLLimit)
		otherCell := cellOrDash(otherURLs)

		var domainCell, status string
		if len(rec.Matches) == 0 {
			status = "no target domains cited"
		} else {
			var links, descriptions []string
			for _, m := range rec.Matches {
				if m.Domain != "" {
					links = append(links, fmt.Sprintf("[%s](https://%s)", m.Domain, m.Domain))
				}
				descriptions = append(descriptions, DescribeMatch(m))
			}
			domainCell = strings.Join(links, "<br>")
			status = strings.Join(descriptions, "; ")
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s | %s |", prompt, domainCell, status, otherCell))
	}
	return strings.Join(lines, "\n")
}

// FormatConsoleTable renders the compact per-prompt table printed after a
// run: first matched domain and its best rank per prompt.
func FormatConsoleTable(log model.RunLog) string {
	lines := []string{
		"| Prompt | Target Found | Rank |",
		"| --- | --- | --- |",
	}
	for _, rec := range log.Results {
		prompt := escapePipe(rec.Prompt)
		targetCell, rankStr := "❌", "—"
		if len(rec.Matches) > 0 {
			match := rec.Matches[0]
			targetCell = "✅ " + match.Domain
			if len(match.Ranks) > 0 {
				rankStr = strconv.Itoa(match.Ranks[0])
			}
		}
		lines = append(lines, fmt.Sprintf("| %s | %s | %s |", prompt, targetCell, rankStr))
	}
	return strings.Join(lines, "\n")
}

// OtherCitedURLs collects cited URLs from non-target domains, capped at
// limit. Domains are visited in sorted order so output is stable.
func OtherCitedURLs(domainURLs map[string][]string, targetDomains map[string]bool, limit int) []string {
	domains := make([]string, 0, len(domainURLs))
	for dom := range domainURLs {
		if !targetDomains[dom] {
			domains = append(domains, dom)
		}
	}
	sort.Strings(domains)

	var urls []string
	seen := make(map[string]bool)
	for _, dom := range domains {
		for _, u := range domainURLs[dom] {
			if seen[u] {
				continue
			}
			seen[u] = true
			urls = append(urls, u)
			if limit > 0 && len(urls) >= limit {
				return urls
			}
		}
	}
	return urls
}

func cellOrDash(items []string) string {
	if len(items) == 0 {
		return "—"
	}
	return strings.Join(items, "<br>")
}

func escapePipe(text string) string {
	return strings.ReplaceAll(text, "|", "\\|")
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, ", ")
}
