package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/registry"
	"github.com/sells-group/citewatch/internal/runlog"
	"github.com/sells-group/citewatch/internal/runner"
)

type evaluateRequest struct {
	Prompts []string `json:"prompts"`
	Targets []string `json:"targets"`
	Models  []string `json:"models"`
}

type citeRequest struct {
	Prompts []string `json:"prompts"`
	Domain  string   `json:"domain"`
	Company string   `json:"company"`
	Models  []string `json:"models"`
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var req evaluateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompts := trimmed(req.Prompts)
	if len(prompts) == 0 {
		prompts = s.defaultPrompts
	}
	if len(prompts) == 0 {
		writeError(w, http.StatusBadRequest, "at least one prompt is required")
		return
	}

	var targets []model.TargetSpec
	if len(req.Targets) > 0 {
		for _, raw := range req.Targets {
			if spec, ok := model.NewTargetSpec(raw); ok {
				targets = append(targets, spec)
			}
		}
		if len(targets) == 0 {
			writeError(w, http.StatusBadRequest, "at least one valid target is required")
			return
		}
	} else {
		targets = s.defaultTargets
	}

	reg, err := s.providersFor(req.Models)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	targetStrings := make([]string, len(targets))
	for i, t := range targets {
		targetStrings[i] = t.Original
	}
	modelSlugs := make([]string, 0, len(reg.All()))
	for _, p := range reg.All() {
		modelSlugs = append(modelSlugs, p.Model())
	}

	job, err := s.store.CreateJob(r.Context(), prompts, targetStrings, modelSlugs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	go s.runJob(job.ID, reg, prompts, targets)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"job_id": job.ID,
		"status": job.Status,
	})
}

// runJob executes an evaluation in the background, persisting run logs and
// job progress as each provider finishes.
func (s *Server) runJob(jobID int64, reg *provider.Registry, prompts []string, targets []model.TargetSpec) {
	ctx := context.Background()
	log := zap.L().With(zap.Int64("job_id", jobID))

	if err := s.store.StartJob(ctx, jobID, len(reg.All())); err != nil {
		log.Error("start job", zap.Error(err))
		return
	}

	r := runner.New(reg, s.runOpts)
	logs, err := r.Run(ctx, prompts, targets)
	if err != nil {
		_ = s.store.FailJob(ctx, jobID, err.Error())
		log.Error("evaluation failed", zap.Error(err))
		return
	}

	progress := 0
	for _, rl := range logs {
		if err := s.persistRun(ctx, rl); err != nil {
			_ = s.store.FailJob(ctx, jobID, err.Error())
			log.Error("persist run", zap.Error(err))
			return
		}
		progress++
		if err := s.store.UpdateJobProgress(ctx, jobID, progress); err != nil {
			log.Warn("job progress", zap.Error(err))
		}
	}

	if len(logs) > 0 {
		blocks := make([]string, 0, len(logs))
		for _, rl := range logs {
			blocks = append(blocks, runlog.FormatProviderTable(rl))
		}
		ts := logs[0].Timestamp
		if err := s.logs.AppendMainLog(ts, blocks); err != nil {
			log.Warn("append main log", zap.Error(err))
		}
		if err := s.logs.WriteLastSummary(ts, blocks); err != nil {
			log.Warn("write last summary", zap.Error(err))
		}
	}

	summary := fmt.Sprintf("%d provider run(s), %d prompt(s)", len(logs), len(prompts))
	if err := s.store.CompleteJob(ctx, jobID, summary); err != nil {
		log.Error("complete job", zap.Error(err))
		return
	}
	log.Info("job complete", zap.String("summary", summary))
}

// persistRun seeds cluster metadata for new prompts, records rows in the
// store, and writes the run file.
func (s *Server) persistRun(ctx context.Context, rl model.RunLog) error {
	for _, rec := range rl.Results {
		clusterID := registry.DetectCluster(rec.Prompt, s.clusters)
		if _, err := s.store.EnsurePrompt(ctx, rec.Prompt, clusterID, registry.ExtractKeywords(rec.Prompt)); err != nil {
			return err
		}
	}
	if err := s.store.RecordRun(ctx, rl); err != nil {
		return err
	}
	return s.logs.WriteRun(rl)
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "jobID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid job id")
		return
	}

	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleCite(w http.ResponseWriter, r *http.Request) {
	var req citeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	prompts := trimmed(req.Prompts)
	if len(prompts) == 0 {
		prompts = s.defaultPrompts
	}
	if len(prompts) == 0 {
		writeError(w, http.StatusBadRequest, "at least one prompt is required")
		return
	}

	input := strings.TrimSpace(req.Domain)
	if input == "" {
		input = strings.TrimSpace(req.Company)
	}
	if input == "" {
		writeError(w, http.StatusBadRequest, "domain or company is required")
		return
	}
	spec, ok := model.NewTargetSpec(input)
	if !ok {
		writeError(w, http.StatusBadRequest, "invalid target input")
		return
	}

	reg, err := s.providersFor(req.Models)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	logs, err := runner.New(reg, s.runOpts).Run(r.Context(), prompts, []model.TargetSpec{spec})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	for _, rl := range logs {
		if err := s.persistRun(r.Context(), rl); err != nil {
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"prompts": prompts,
		"domain":  spec.Domain,
		"records": logs,
	})
}

// providersFor narrows the configured registry to the requested model slugs.
// An empty request selects every configured provider.
func (s *Server) providersFor(slugs []string) (*provider.Registry, error) {
	return provider.Filter(s.registry, slugs)
}

func trimmed(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// RunEvaluation evaluates the default prompt and target sets against every
// configured provider, tracked as a job like an evaluate request. Used by
// the cron scheduler.
func (s *Server) RunEvaluation(ctx context.Context) error {
	if len(s.defaultPrompts) == 0 {
		return eris.New("no default prompts configured")
	}

	targetStrings := make([]string, len(s.defaultTargets))
	for i, t := range s.defaultTargets {
		targetStrings[i] = t.Original
	}
	modelSlugs := make([]string, 0, len(s.registry.All()))
	for _, p := range s.registry.All() {
		modelSlugs = append(modelSlugs, p.Model())
	}

	job, err := s.store.CreateJob(ctx, s.defaultPrompts, targetStrings, modelSlugs)
	if err != nil {
		return err
	}
	s.runJob(job.ID, s.registry, s.defaultPrompts, s.defaultTargets)
	return nil
}
