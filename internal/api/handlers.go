package api

import (
	"net/http"
	"sort"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/report"
	"github.com/sells-group/citewatch/internal/runlog"
	"github.com/sells-group/citewatch/internal/store"
)

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prompts, err := s.store.ListPrompts(ctx, "", false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	runs, err := s.store.ListRunRows(ctx, store.RunFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	promptStats := report.ComputePromptStats(prompts, runs)
	clusterStats := report.ComputeClusterStats(s.clusters, promptStats)
	writeJSON(w, http.StatusOK, report.ComputeSummary(prompts, runs, clusterStats))
}

func (s *Server) handleClusters(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prompts, err := s.store.ListPrompts(ctx, "", false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	runs, err := s.store.ListRunRows(ctx, store.RunFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	promptStats := report.ComputePromptStats(prompts, runs)
	writeJSON(w, http.StatusOK, map[string]any{
		"clusters": report.ComputeClusterStats(s.clusters, promptStats),
	})
}

func (s *Server) handleClusterDetail(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clusterID := chi.URLParam(r, "clusterID")

	var name, icon string
	for _, c := range s.clusters {
		if c.ID == clusterID {
			name, icon = c.Name, c.Icon
			break
		}
	}
	if name == "" && clusterID != "uncategorized" {
		writeError(w, http.StatusNotFound, "cluster not found")
		return
	}
	if name == "" {
		name, icon = "Uncategorized", "📋"
	}

	prompts, err := s.store.ListPrompts(ctx, clusterID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	promptIDs := make(map[int64]bool, len(prompts))
	promptTexts := make([]string, 0, len(prompts))
	for _, p := range prompts {
		promptIDs[p.ID] = true
		promptTexts = append(promptTexts, p.Text)
	}

	allRuns, err := s.store.ListRunRows(ctx, store.RunFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var runs []model.RunRow
	for _, row := range allRuns {
		if promptIDs[row.PromptID] || report.PromptInSet(row.Prompt, promptTexts) {
			runs = append(runs, row)
		}
	}

	grouped := groupRunsByTimestamp(runs)
	if len(grouped) > 10 {
		grouped = grouped[:10]
	}
	s.attachOtherURLs(grouped)
	latest := s.latestWithAllModels(grouped)

	promptStats := report.ComputePromptStats(prompts, runs)
	writeJSON(w, http.StatusOK, map[string]any{
		"cluster": map[string]any{
			"id":   clusterID,
			"name": name,
			"icon": icon,
		},
		"prompts":    promptTexts,
		"stats":      promptStats,
		"runs":       grouped,
		"latest_run": latest,
	})
}

type timestampGroup struct {
	Timestamp string       `json:"timestamp"`
	Models    []modelGroup `json:"models"`
}

type modelGroup struct {
	Model      string       `json:"model"`
	Provider   string       `json:"provider"`
	Results    []rowSummary `json:"results"`
	CitedCount int          `json:"cited_count"`
	TotalCount int          `json:"total_count"`
}

type rowSummary struct {
	Prompt    string   `json:"prompt"`
	Cited     bool     `json:"cited"`
	CitedURLs []string `json:"cited_urls"`
	Rank      *int     `json:"rank"`
	Status    string   `json:"status"`
	OtherURLs []string `json:"other_urls"`
}

// latestWithAllModels returns the newest timestamp group padded so every
// configured model appears, with empty results for models that have no
// rows yet. With no runs at all the timestamp is empty.
func (s *Server) latestWithAllModels(grouped []timestampGroup) timestampGroup {
	var latest timestampGroup
	if len(grouped) > 0 {
		latest = grouped[0]
	}
	present := map[string]bool{}
	for _, mg := range latest.Models {
		present[mg.Model] = true
	}
	if s.registry != nil {
		for _, p := range s.registry.All() {
			if !present[p.Model()] {
				latest.Models = append(latest.Models, modelGroup{
					Model:    p.Model(),
					Provider: p.Name(),
					Results:  []rowSummary{},
				})
			}
		}
	}
	return latest
}

// attachOtherURLs fills in cited URLs from non-target domains, read back
// from the run log files since the store keeps target citations only.
// Groups whose log files are gone keep an empty list.
func (s *Server) attachOtherURLs(groups []timestampGroup) {
	for gi := range groups {
		logs, err := runlog.ForTimestamp(s.logs.Dir(), groups[gi].Timestamp)
		if err != nil {
			continue
		}
		byModel := map[string]map[string][]string{}
		for _, log := range logs {
			prompts := map[string][]string{}
			for _, rec := range log.Results {
				targetDomains := map[string]bool{}
				for _, m := range rec.Matches {
					targetDomains[m.Domain] = true
				}
				prompts[rec.Prompt] = runlog.OtherCitedURLs(rec.DomainURLs, targetDomains, 10)
			}
			byModel[log.Model] = prompts
		}
		for mi := range groups[gi].Models {
			mg := &groups[gi].Models[mi]
			prompts := byModel[mg.Model]
			if prompts == nil {
				continue
			}
			for ri := range mg.Results {
				mg.Results[ri].OtherURLs = prompts[mg.Results[ri].Prompt]
			}
		}
	}
}

// groupRunsByTimestamp folds flat run rows into per-timestamp, per-model
// groups, newest timestamp first.
func groupRunsByTimestamp(runs []model.RunRow) []timestampGroup {
	byTS := map[string]map[string]*modelGroup{}
	for _, row := range runs {
		models := byTS[row.Timestamp]
		if models == nil {
			models = map[string]*modelGroup{}
			byTS[row.Timestamp] = models
		}
		mg := models[row.Model]
		if mg == nil {
			mg = &modelGroup{Model: row.Model, Provider: row.Provider}
			models[row.Model] = mg
		}

		var ranks []int
		if row.Rank != nil {
			ranks = []int{*row.Rank}
		}
		mg.Results = append(mg.Results, rowSummary{
			Prompt:    row.Prompt,
			Cited:     row.Cited,
			CitedURLs: row.CitedURLs,
			Rank:      row.Rank,
			Status:    model.StatusLine(row.Cited, row.CitedURLs, ranks),
		})
		mg.TotalCount++
		if row.Cited {
			mg.CitedCount++
		}
	}

	out := make([]timestampGroup, 0, len(byTS))
	for ts, models := range byTS {
		group := timestampGroup{Timestamp: ts}
		names := make([]string, 0, len(models))
		for name := range models {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			group.Models = append(group.Models, *models[name])
		}
		out = append(out, group)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp > out[j].Timestamp })
	return out
}

func (s *Server) handlePrompts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	clusterID := r.URL.Query().Get("cluster_id")

	prompts, err := s.store.ListPrompts(ctx, clusterID, false)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	runs, err := s.store.ListRunRows(ctx, store.RunFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	stats := report.ComputePromptStats(prompts, runs)
	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": stats,
		"total":   len(stats),
	})
}

func (s *Server) handleModels(w http.ResponseWriter, r *http.Request) {
	runs, err := s.store.ListRunRows(r.Context(), store.RunFilter{})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"configured": provider.Specs(s.registry),
		"stats":      report.ComputeModelStats(runs),
	})
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	logs, err := runlog.List(s.logs.Dir())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	type runOverview struct {
		Timestamp    string              `json:"timestamp"`
		Models       []map[string]string `json:"models"`
		TotalPrompts int                 `json:"total_prompts"`
		CitedCount   int                 `json:"cited_count"`
	}
	byTS := map[string]*runOverview{}
	var order []string
	for _, log := range logs {
		ov := byTS[log.Timestamp]
		if ov == nil {
			ov = &runOverview{Timestamp: log.Timestamp}
			byTS[log.Timestamp] = ov
			order = append(order, log.Timestamp)
		}
		ov.Models = append(ov.Models, map[string]string{
			"model":    log.Model,
			"provider": log.Provider,
		})
		ov.TotalPrompts += len(log.Results)
		ov.CitedCount += log.CitedCount()
	}

	if len(order) > limit {
		order = order[:limit]
	}
	out := make([]runOverview, 0, len(order))
	for _, ts := range order {
		out = append(out, *byTS[ts])
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": out})
}

func (s *Server) handleRunDetail(w http.ResponseWriter, r *http.Request) {
	timestamp := chi.URLParam(r, "timestamp")

	logs, err := runlog.ForTimestamp(s.logs.Dir(), timestamp)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}

	type resultDetail struct {
		Prompt    string   `json:"prompt"`
		Cited     bool     `json:"cited"`
		CitedURLs []string `json:"cited_urls"`
		Rank      *int     `json:"rank"`
		OtherURLs []string `json:"other_urls"`
	}
	type modelDetail struct {
		Model      string         `json:"model"`
		Provider   string         `json:"provider"`
		Results    []resultDetail `json:"results"`
		CitedCount int            `json:"cited_count"`
		TotalCount int            `json:"total_count"`
	}

	models := make([]modelDetail, 0, len(logs))
	for _, log := range logs {
		md := modelDetail{
			Model:      log.Model,
			Provider:   log.Provider,
			CitedCount: log.CitedCount(),
			TotalCount: len(log.Results),
		}
		for _, rec := range log.Results {
			detail := resultDetail{
				Prompt: rec.Prompt,
				Cited:  rec.Cited(),
			}
			targetDomains := map[string]bool{}
			for _, m := range rec.Matches {
				targetDomains[m.Domain] = true
				if detail.CitedURLs == nil {
					urls := m.CitedURLs
					if len(urls) == 0 {
						urls = m.MatchedURLs
					}
					detail.CitedURLs = urls
				}
				if detail.Rank == nil && len(m.Ranks) > 0 {
					rank := m.Ranks[0]
					detail.Rank = &rank
				}
			}
			detail.OtherURLs = runlog.OtherCitedURLs(rec.DomainURLs, targetDomains, 5)
			md.Results = append(md.Results, detail)
		}
		models = append(models, md)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"timestamp": timestamp,
		"models":    models,
	})
}
