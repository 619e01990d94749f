package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Cluster groups prompts by topic for reporting.
type Cluster struct {
	ID       string   `yaml:"id" json:"id"`
	Name     string   `yaml:"name" json:"name"`
	Icon     string   `yaml:"icon" json:"icon"`
	Patterns []string `yaml:"patterns" json:"patterns"`
}

// Uncategorized is the fallback cluster for prompts matching no pattern.
const Uncategorized = "uncategorized"

// DefaultClusters is the built-in cluster set, used when no clusters file
// is configured.
func DefaultClusters() []Cluster {
	return []Cluster{
		{ID: "reddit", Name: "Reddit Marketing", Icon: "🔴", Patterns: []string{"reddit"}},
		{ID: "devmarketing", Name: "Developer Marketing", Icon: "📝", Patterns: []string{"developer marketing", "dev marketing", "developer-focused"}},
		{ID: "content", Name: "Tech Content", Icon: "✍️", Patterns: []string{"content marketing", "tech content"}},
		{ID: "docs", Name: "Product Documentation", Icon: "📄", Patterns: []string{"documentation", "technical docs", "product docs"}},
		{ID: "seo", Name: "SEO / AEO", Icon: "🔍", Patterns: []string{"seo", "aeo", "search engine", "search optimization"}},
		{ID: "video", Name: "Video Production", Icon: "🎬", Patterns: []string{"video", "youtube", "video production"}},
		{ID: "webflow", Name: "Webflow", Icon: "🌐", Patterns: []string{"webflow"}},
		{ID: "b2b-saas", Name: "B2B SaaS", Icon: "💼", Patterns: []string{"b2b saas", "saas marketing"}},
		{ID: "ai-startups", Name: "AI Startups", Icon: "🤖", Patterns: []string{"ai startup", "ai agent", "ai-native"}},
	}
}

// LoadClusters reads cluster definitions from a YAML or JSON file. The
// file is either a `{clusters: [...]}` wrapper object or a bare list of
// clusters. A missing file falls back to the built-in set; a present but
// malformed file is an error.
func LoadClusters(path string) ([]Cluster, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return DefaultClusters(), nil
		}
		return nil, eris.Wrapf(err, "registry: read clusters file %s", path)
	}

	var file struct {
		Clusters []Cluster `yaml:"clusters" json:"clusters"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		var bare []Cluster
		if bareErr := yaml.Unmarshal(data, &bare); bareErr != nil {
			return nil, eris.Wrapf(err, "registry: parse clusters file %s", path)
		}
		file.Clusters = bare
	}
	if len(file.Clusters) == 0 {
		return DefaultClusters(), nil
	}
	return file.Clusters, nil
}

// DetectCluster assigns a prompt to the first cluster whose pattern occurs
// in the prompt text, case-insensitive.
func DetectCluster(prompt string, clusters []Cluster) string {
	lower := strings.ToLower(prompt)
	for _, cluster := range clusters {
		for _, pattern := range cluster.Patterns {
			if pattern != "" && strings.Contains(lower, pattern) {
				return cluster.ID
			}
		}
	}
	return Uncategorized
}

var keywordPatterns = []string{
	"ai", "b2b", "saas", "startup", "devtools", "developer",
	"marketing", "content", "seo", "aeo", "reddit", "video",
	"documentation", "tech", "growth", "enterprise", "opensource",
}

// ExtractKeywords tags a prompt with up to five known keywords.
func ExtractKeywords(prompt string) []string {
	lower := strings.ToLower(prompt)
	var keywords []string
	for _, kw := range keywordPatterns {
		if strings.Contains(lower, kw) {
			keywords = append(keywords, kw)
			if len(keywords) == 5 {
				break
			}
		}
	}
	return keywords
}
