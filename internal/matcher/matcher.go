// Package matcher compares parsed citation extractions against a target
// list. Targets match cited domains under the containment policy from the
// domain package, so a bare "asana.com" target matches a cited
// "app.asana.com" and vice versa. Targets carrying a path additionally
// constrain which cited URLs count as matched.
package matcher

import (
	"github.com/sells-group/citewatch/internal/domain"
	"github.com/sells-group/citewatch/internal/model"
)

// Outcome is the result of matching one extraction against the targets.
type Outcome struct {
	// Matches holds one record per cited domain that matched a target, in
	// the order the domain was first observed.
	Matches []model.MatchRecord
	// DomainRanks maps each cited domain to its reported result positions.
	DomainRanks map[string][]int
	// DomainURLs maps each cited domain to its cited URLs, first-seen order.
	DomainURLs map[string][]string
}

// Match groups the extraction's URLs and ranks by domain, then checks every
// observed domain against every target. It never fails: an empty extraction
// yields an empty outcome.
func Match(ext model.ParsedExtraction, targets []model.TargetSpec) Outcome {
	out := Outcome{
		DomainRanks: make(map[string][]int),
		DomainURLs:  make(map[string][]string),
	}

	// Observed domains in first-seen order: ranked content domains first,
	// then any domain that only appears via a cited URL.
	var observed []string
	seen := make(map[string]bool)

	for i, dom := range ext.Domains {
		if dom == "" {
			continue
		}
		if !seen[dom] {
			seen[dom] = true
			observed = append(observed, dom)
		}
		if i < len(ext.Ranks) {
			out.DomainRanks[dom] = append(out.DomainRanks[dom], ext.Ranks[i])
		}
	}

	for _, u := range ext.URLs {
		dom := domain.FromURL(u)
		if dom == "" {
			continue
		}
		if !seen[dom] {
			seen[dom] = true
			observed = append(observed, dom)
		}
		if !containsString(out.DomainURLs[dom], u) {
			out.DomainURLs[dom] = append(out.DomainURLs[dom], u)
		}
	}

	if len(targets) == 0 || len(observed) == 0 {
		return out
	}

	for _, dom := range observed {
		var matched []model.TargetSpec
		for _, target := range targets {
			if domain.SameSite(dom, target.Domain) {
				matched = append(matched, target)
			}
		}
		if len(matched) == 0 {
			continue
		}

		rec := model.MatchRecord{
			Domain:    dom,
			Ranks:     out.DomainRanks[dom],
			CitedURLs: out.DomainURLs[dom],
		}

		// TargetURLs carries the original target entries that matched.
		// Path-bearing targets additionally restrict which cited URLs
		// count as matched; a domain-only target accepts them all.
		pathTargets := make(map[string]bool)
		for _, target := range matched {
			if !containsString(rec.TargetURLs, target.Original) {
				rec.TargetURLs = append(rec.TargetURLs, target.Original)
			}
			if target.HasPath && target.URL != "" {
				pathTargets[domain.StripScheme(target.URL)] = true
			}
		}

		hasBareTarget := false
		for _, target := range matched {
			if !target.HasPath {
				hasBareTarget = true
			}
		}
		if hasBareTarget || len(pathTargets) == 0 {
			rec.MatchedURLs = append([]string(nil), rec.CitedURLs...)
		} else {
			for _, u := range rec.CitedURLs {
				if pathTargets[domain.StripScheme(u)] {
					rec.MatchedURLs = append(rec.MatchedURLs, u)
				}
			}
		}

		out.Matches = append(out.Matches, rec)
	}

	return out
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
