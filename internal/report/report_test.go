package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/registry"
)

func intPtr(n int) *int { return &n }

func TestScore(t *testing.T) {
	tests := []struct {
		name      string
		rate      float64
		avgRank   float64
		rank1Rate float64
		want      float64
	}{
		{"perfect", 1.0, 1.0, 1.0, 0.85},
		{"never cited", 0, 0, 0, 0},
		{"half cited no rank", 0.5, 0, 0, 0.25},
		{"cited at rank 3", 1.0, 3.0, 0, 0.57},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, Score(tt.rate, tt.avgRank, tt.rank1Rate), 0.001)
		})
	}
}

func TestComputePromptStats(t *testing.T) {
	prompts := []model.Prompt{
		{ID: 1, Text: "best project management software", ClusterID: "project_management", Active: true},
		{ID: 2, Text: "top email marketing tools", ClusterID: "marketing", Active: true},
	}
	runs := []model.RunRow{
		{PromptID: 1, Timestamp: "20260110T000000Z", Cited: true, Rank: intPtr(1)},
		{PromptID: 1, Timestamp: "20260120T000000Z", Cited: true, Rank: intPtr(3)},
		{PromptID: 1, Timestamp: "20260115T000000Z", Cited: false},
		{PromptID: 2, Timestamp: "20260110T000000Z", Cited: false},
	}

	stats := ComputePromptStats(prompts, runs)
	require.Len(t, stats, 2)

	// Highest score first.
	top := stats[0]
	assert.Equal(t, int64(1), top.PromptID)
	assert.Equal(t, 3, top.TotalRuns)
	assert.Equal(t, 2, top.TotalCited)
	assert.InDelta(t, 66.7, top.CitationRate, 0.01)
	assert.InDelta(t, 2.0, top.AvgRank, 0.01)
	assert.Equal(t, 1, top.Rank1Count)
	assert.InDelta(t, 33.3, top.Rank1Rate, 0.01)
	assert.Equal(t, "20260120T000000Z", top.LastRun)
	// 0.667*0.5 + (1/3)*0.3 + 0.333*0.2
	assert.InDelta(t, 0.5, top.Score, 0.01)

	bottom := stats[1]
	assert.Zero(t, bottom.Score)
	assert.Zero(t, bottom.CitationRate)
}

func TestComputePromptStatsNoRuns(t *testing.T) {
	stats := ComputePromptStats([]model.Prompt{{ID: 1, Text: "p"}}, nil)
	require.Len(t, stats, 1)
	assert.Zero(t, stats[0].TotalRuns)
	assert.Zero(t, stats[0].Score)
	assert.Empty(t, stats[0].LastRun)
}

func TestComputeClusterStats(t *testing.T) {
	clusters := []registry.Cluster{
		{ID: "project_management", Name: "Project Management", Icon: "📋", Patterns: []string{"project management"}},
		{ID: "seo", Name: "SEO / AEO", Icon: "🔍", Patterns: []string{"seo"}},
	}
	promptStats := []PromptStats{
		{Prompt: "best pm tool", ClusterID: "project_management", TotalRuns: 2, TotalCited: 2, AvgRank: 1.0, Score: 0.8},
		{Prompt: "second pm tool", ClusterID: "project_management", TotalRuns: 2, TotalCited: 0, Score: 0},
		{Prompt: "weird prompt", ClusterID: "no_such_cluster", TotalRuns: 1, TotalCited: 1, AvgRank: 2.0, Score: 0.6},
	}

	stats := ComputeClusterStats(clusters, promptStats)
	require.Len(t, stats, 2)

	byID := map[string]ClusterStats{}
	for _, c := range stats {
		byID[c.ID] = c
	}

	pm := byID["project_management"]
	assert.Equal(t, 2, pm.PromptCount)
	assert.InDelta(t, 50.0, pm.CitationRate, 0.01)
	assert.InDelta(t, 1.0, pm.AvgRank, 0.01)
	assert.InDelta(t, 0.4, pm.Score, 0.01)

	// Unknown cluster ids fall back to uncategorized.
	unc := byID[registry.Uncategorized]
	assert.Equal(t, 1, unc.PromptCount)
	assert.Equal(t, []string{"weird prompt"}, unc.Prompts)

	// Sorted by score descending.
	assert.Equal(t, registry.Uncategorized, stats[0].ID)
}

func TestComputeModelStats(t *testing.T) {
	runs := []model.RunRow{
		{Model: "sonar", Provider: "perplexity", Cited: true, Rank: intPtr(1)},
		{Model: "sonar", Provider: "perplexity", Cited: true, Rank: intPtr(3)},
		{Model: "sonar", Provider: "perplexity", Cited: false},
		{Model: "gpt-4o-search-preview", Provider: "openai", Cited: false},
	}

	stats := ComputeModelStats(runs)
	require.Len(t, stats, 2)

	sonar := stats[0]
	assert.Equal(t, "sonar", sonar.Model)
	assert.Equal(t, 3, sonar.TotalRuns)
	assert.Equal(t, 2, sonar.TotalCited)
	assert.InDelta(t, 66.7, sonar.CitationRate, 0.01)
	assert.InDelta(t, 2.0, sonar.AvgRank, 0.01)

	assert.Equal(t, "gpt-4o-search-preview", stats[1].Model)
	assert.Zero(t, stats[1].CitationRate)
}

func TestComputeSummary(t *testing.T) {
	prompts := []model.Prompt{
		{ID: 1, Active: true},
		{ID: 2, Active: true},
		{ID: 3, Active: false},
	}
	runs := []model.RunRow{
		{Model: "sonar", Provider: "perplexity", Cited: true},
		{Model: "sonar", Provider: "perplexity", Cited: false},
		{Model: "gpt-4o-search-preview", Provider: "openai", Cited: true},
	}
	clusters := []ClusterStats{{ID: "a"}, {ID: "b"}}

	s := ComputeSummary(prompts, runs, clusters)
	assert.Equal(t, 2, s.TotalPrompts)
	assert.Equal(t, 3, s.TotalRuns)
	assert.Equal(t, 2, s.TotalCited)
	assert.InDelta(t, 66.7, s.AvgCitationRate, 0.01)
	assert.Equal(t, "gpt-4o-search-preview", s.TopModel)
	assert.InDelta(t, 100.0, s.TopModelRate, 0.01)
	assert.Equal(t, 2, s.ClustersCount)
}

func TestPromptInSet(t *testing.T) {
	set := []string{"Best project management software", "top CRM tools for startups"}

	assert.True(t, PromptInSet("best project management software", set))
	assert.True(t, PromptInSet("what is the best project management software in 2026", set))
	assert.True(t, PromptInSet("top CRM tools", set))
	assert.False(t, PromptInSet("best accounting platform", set))
	assert.False(t, PromptInSet("", set))
}
