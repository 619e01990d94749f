// Package report computes citation statistics over stored runs: per-prompt
// performance, cluster rollups, per-model comparisons, and the dashboard
// summary. All aggregation happens in memory so the numbers are identical
// across the sqlite and postgres backends.
package report

import (
	"math"
	"sort"
	"strings"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/registry"
)

// PromptStats aggregates run outcomes for one prompt.
type PromptStats struct {
	PromptID     int64    `json:"prompt_id"`
	Prompt       string   `json:"prompt"`
	ClusterID    string   `json:"cluster_id"`
	Keywords     []string `json:"keywords"`
	TotalRuns    int      `json:"total_runs"`
	TotalCited   int      `json:"total_cited"`
	CitationRate float64  `json:"citation_rate"`
	AvgRank      float64  `json:"avg_rank"`
	Rank1Count   int      `json:"rank_1_count"`
	Rank1Rate    float64  `json:"rank_1_rate"`
	Score        float64  `json:"score"`
	LastRun      string   `json:"last_run,omitempty"`
}

// ClusterStats rolls PromptStats up to a prompt cluster.
type ClusterStats struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Icon         string   `json:"icon"`
	Prompts      []string `json:"prompts"`
	PromptCount  int      `json:"prompt_count"`
	CitationRate float64  `json:"citation_rate"`
	AvgRank      float64  `json:"avg_rank"`
	Score        float64  `json:"score"`
}

// ModelStats compares citation performance across models.
type ModelStats struct {
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	TotalRuns    int     `json:"total_runs"`
	TotalCited   int     `json:"total_cited"`
	CitationRate float64 `json:"citation_rate"`
	AvgRank      float64 `json:"avg_rank"`
}

// Summary is the dashboard header block.
type Summary struct {
	TotalPrompts    int     `json:"total_prompts"`
	TotalRuns       int     `json:"total_runs"`
	TotalCited      int     `json:"total_cited"`
	AvgCitationRate float64 `json:"avg_citation_rate"`
	TopModel        string  `json:"top_model,omitempty"`
	TopModelRate    float64 `json:"top_model_rate"`
	ClustersCount   int     `json:"clusters_count"`
}

// Score combines citation rate, average rank, and first-position rate into a
// single comparable number. Rates are fractions in [0, 1].
func Score(citationRate, avgRank, rank1Rate float64) float64 {
	rankScore := 0.0
	if avgRank > 0 {
		rankScore = 1 / (avgRank + 1)
	}
	return round2(citationRate*0.5 + rankScore*0.3 + rank1Rate*0.2)
}

// ComputePromptStats aggregates runs per prompt and sorts by score
// descending.
func ComputePromptStats(prompts []model.Prompt, runs []model.RunRow) []PromptStats {
	byPrompt := make(map[int64][]model.RunRow, len(prompts))
	for _, r := range runs {
		byPrompt[r.PromptID] = append(byPrompt[r.PromptID], r)
	}

	stats := make([]PromptStats, 0, len(prompts))
	for _, p := range prompts {
		rows := byPrompt[p.ID]

		var cited, rank1, rankSum, ranked int
		lastRun := ""
		for _, r := range rows {
			if r.Timestamp > lastRun {
				lastRun = r.Timestamp
			}
			if !r.Cited {
				continue
			}
			cited++
			if r.Rank != nil {
				rankSum += *r.Rank
				ranked++
				if *r.Rank == 1 {
					rank1++
				}
			}
		}

		total := len(rows)
		rate, rank1Rate, avgRank := 0.0, 0.0, 0.0
		if total > 0 {
			rate = float64(cited) / float64(total)
			rank1Rate = float64(rank1) / float64(total)
		}
		if ranked > 0 {
			avgRank = float64(rankSum) / float64(ranked)
		}

		stats = append(stats, PromptStats{
			PromptID:     p.ID,
			Prompt:       p.Text,
			ClusterID:    p.ClusterID,
			Keywords:     p.Keywords,
			TotalRuns:    total,
			TotalCited:   cited,
			CitationRate: round1(rate * 100),
			AvgRank:      round1(avgRank),
			Rank1Count:   rank1,
			Rank1Rate:    round1(rank1Rate * 100),
			Score:        Score(rate, avgRank, rank1Rate),
			LastRun:      lastRun,
		})
	}

	sort.SliceStable(stats, func(i, j int) bool { return stats[i].Score > stats[j].Score })
	return stats
}

// ComputeClusterStats rolls prompt stats into their clusters. Prompts whose
// cluster is unknown land in the uncategorized bucket. Empty clusters are
// dropped and the rest sorted by score descending.
func ComputeClusterStats(clusters []registry.Cluster, promptStats []PromptStats) []ClusterStats {
	order := make([]string, 0, len(clusters)+1)
	byID := make(map[string]*ClusterStats, len(clusters)+1)
	for _, c := range clusters {
		byID[c.ID] = &ClusterStats{ID: c.ID, Name: c.Name, Icon: c.Icon}
		order = append(order, c.ID)
	}
	if _, ok := byID[registry.Uncategorized]; !ok {
		byID[registry.Uncategorized] = &ClusterStats{ID: registry.Uncategorized, Name: "Uncategorized", Icon: "📋"}
		order = append(order, registry.Uncategorized)
	}

	type rollup struct {
		totalRuns  int
		totalCited int
		rankSum    float64
		ranked     int
		scoreSum   float64
	}
	agg := make(map[string]*rollup, len(byID))

	for _, s := range promptStats {
		id := s.ClusterID
		if _, ok := byID[id]; !ok {
			id = registry.Uncategorized
		}
		c := byID[id]
		c.Prompts = append(c.Prompts, s.Prompt)
		c.PromptCount++

		r := agg[id]
		if r == nil {
			r = &rollup{}
			agg[id] = r
		}
		r.totalRuns += s.TotalRuns
		r.totalCited += s.TotalCited
		if s.AvgRank > 0 {
			r.rankSum += s.AvgRank
			r.ranked++
		}
		r.scoreSum += s.Score
	}

	out := make([]ClusterStats, 0, len(order))
	for _, id := range order {
		c := byID[id]
		if c.PromptCount == 0 {
			continue
		}
		r := agg[id]
		if r.totalRuns > 0 {
			c.CitationRate = round1(float64(r.totalCited) / float64(r.totalRuns) * 100)
		}
		if r.ranked > 0 {
			c.AvgRank = round1(r.rankSum / float64(r.ranked))
		}
		c.Score = round2(r.scoreSum / float64(c.PromptCount))
		out = append(out, *c)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Score > out[j].Score })
	return out
}

// ComputeModelStats aggregates runs per model, sorted by citations
// descending.
func ComputeModelStats(runs []model.RunRow) []ModelStats {
	type rollup struct {
		provider string
		total    int
		cited    int
		rankSum  int
		ranked   int
	}
	byModel := map[string]*rollup{}
	var order []string

	for _, run := range runs {
		r := byModel[run.Model]
		if r == nil {
			r = &rollup{provider: run.Provider}
			byModel[run.Model] = r
			order = append(order, run.Model)
		}
		r.total++
		if run.Cited {
			r.cited++
			if run.Rank != nil {
				r.rankSum += *run.Rank
				r.ranked++
			}
		}
	}

	out := make([]ModelStats, 0, len(order))
	for _, name := range order {
		r := byModel[name]
		s := ModelStats{
			Model:      name,
			Provider:   r.provider,
			TotalRuns:  r.total,
			TotalCited: r.cited,
		}
		if r.total > 0 {
			s.CitationRate = round1(float64(r.cited) / float64(r.total) * 100)
		}
		if r.ranked > 0 {
			s.AvgRank = round1(float64(r.rankSum) / float64(r.ranked))
		}
		out = append(out, s)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalCited > out[j].TotalCited })
	return out
}

// ComputeSummary builds the dashboard header numbers.
func ComputeSummary(prompts []model.Prompt, runs []model.RunRow, clusters []ClusterStats) Summary {
	s := Summary{ClustersCount: len(clusters)}
	for _, p := range prompts {
		if p.Active {
			s.TotalPrompts++
		}
	}

	s.TotalRuns = len(runs)
	for _, r := range runs {
		if r.Cited {
			s.TotalCited++
		}
	}
	if s.TotalRuns > 0 {
		s.AvgCitationRate = round1(float64(s.TotalCited) / float64(s.TotalRuns) * 100)
	}

	for _, m := range ComputeModelStats(runs) {
		if m.CitationRate > s.TopModelRate || s.TopModel == "" {
			s.TopModel = m.Model
			s.TopModelRate = m.CitationRate
		}
	}
	return s
}

// PromptInSet reports whether a prompt belongs to a cluster's prompt list,
// tolerating the paraphrased variants that show up in older run files. A
// prompt matches on equality or when either string contains the other.
func PromptInSet(prompt string, clusterPrompts []string) bool {
	p := strings.ToLower(strings.TrimSpace(prompt))
	if p == "" {
		return false
	}
	for _, cp := range clusterPrompts {
		c := strings.ToLower(strings.TrimSpace(cp))
		if c == "" {
			continue
		}
		if p == c || strings.Contains(p, c) || strings.Contains(c, p) {
			return true
		}
	}
	return false
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

func round2(v float64) float64 { return math.Round(v*100) / 100 }
