package model

import (
	"github.com/sells-group/citewatch/internal/domain"
)

// TargetSpec is one domain the operator wants to detect citations of.
// Original preserves the operator's input verbatim; Domain is the normalized
// comparable form; URL is set only when the input carried a path, so exact
// URL matching can be reported separately from domain matching.
type TargetSpec struct {
	Original string `json:"original"`
	Domain   string `json:"domain"`
	URL      string `json:"url,omitempty"`
	HasPath  bool   `json:"has_path"`
}

// NewTargetSpec builds a TargetSpec from an operator-supplied domain or URL
// string. Returns ok=false for blank or hostless input.
func NewTargetSpec(entry string) (TargetSpec, bool) {
	dom := domain.FromURL(entry)
	if dom == "" {
		return TargetSpec{}, false
	}
	normalized := domain.NormalizeURL(entry)
	hasPath := normalized != "" && normalized != "https://"+dom && normalized != "http://"+dom
	spec := TargetSpec{
		Original: entry,
		Domain:   dom,
		HasPath:  hasPath,
	}
	if hasPath {
		spec.URL = normalized
	}
	return spec, true
}
