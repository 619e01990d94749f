// Package runner orchestrates evaluation runs: it fans prompts out across
// the configured providers, parses and matches each response, and assembles
// one RunLog per provider with results in original prompt order.
package runner

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/citewatch/internal/matcher"
	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/parser"
	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/resilience"
)

// TimestampLayout is the run identifier format, UTC.
const TimestampLayout = "20060102T150405Z"

// Options tunes run behavior.
type Options struct {
	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int
	// CallTimeout bounds each individual provider call.
	CallTimeout time.Duration
}

// Runner executes evaluation runs against a provider registry.
type Runner struct {
	registry    *provider.Registry
	concurrency int
	callTimeout time.Duration
	now         func() time.Time
}

// New creates a Runner. Zero option fields fall back to safe defaults.
func New(registry *provider.Registry, opts Options) *Runner {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 45 * time.Second
	}
	return &Runner{
		registry:    registry,
		concurrency: opts.Concurrency,
		callTimeout: opts.CallTimeout,
		now:         time.Now,
	}
}

// Run evaluates every prompt against every registered provider and returns
// one RunLog per provider, results ordered by the input prompt order. A
// failed (prompt, provider) pair becomes a degraded record and never aborts
// the rest of the run. Cancelling ctx stops new calls; in-flight calls
// finish and the partial logs are returned alongside ctx's error.
func (r *Runner) Run(ctx context.Context, prompts []string, targets []model.TargetSpec) ([]model.RunLog, error) {
	ts := r.now().UTC().Format(TimestampLayout)
	providers := r.registry.All()

	logs := make([]model.RunLog, len(providers))
	for i, p := range providers {
		logs[i] = model.RunLog{
			Timestamp: ts,
			Provider:  p.Name(),
			Model:     p.Model(),
			Results:   make([]model.ResultRecord, len(prompts)),
		}
	}

	var g errgroup.Group
	g.SetLimit(r.concurrency)

	for pi, p := range providers {
		for qi, prompt := range prompts {
			pi, qi, p, prompt := pi, qi, p, prompt
			g.Go(func() error {
				logs[pi].Results[qi] = r.evaluate(ctx, p, qi, prompt, targets)
				return nil
			})
		}
	}
	// Workers only report through the results slices.
	_ = g.Wait()

	return logs, ctx.Err()
}

// evaluate runs one (prompt, provider) pair through fetch, parse, and
// match. When the first response is not valid JSON the prompt is re-issued
// exactly once; the second response wins unless it recovered strictly less.
func (r *Runner) evaluate(ctx context.Context, p provider.Provider, idx int, prompt string, targets []model.TargetSpec) model.ResultRecord {
	rec := model.ResultRecord{Prompt: prompt}
	log := zap.L().With(
		zap.String("provider", p.Name()),
		zap.String("model", p.Model()),
		zap.Int("prompt_index", idx),
	)

	if err := ctx.Err(); err != nil {
		rec.Error = err.Error()
		rec.ErrorCategory = resilience.Categorize(err)
		return rec
	}

	payload, err := r.fetch(ctx, p, prompt)
	if err != nil {
		log.Warn("provider call failed", zap.Int("attempt", 1), zap.Error(err))
		rec.Error = err.Error()
		rec.ErrorCategory = resilience.Categorize(err)
		return rec
	}

	ext, parsed, valid := parser.Parse(payload, p.Kind())
	raw := payload.Text

	if !valid {
		log.Debug("response not valid JSON, re-issuing prompt", zap.Int("attempt", 2))
		payload2, err2 := r.fetch(ctx, p, prompt)
		switch {
		case err2 != nil:
			log.Warn("provider call failed", zap.Int("attempt", 2), zap.Error(err2))
			rec.Error = err2.Error()
			rec.ErrorCategory = resilience.Categorize(err2)
		default:
			ext2, parsed2, valid2 := parser.Parse(payload2, p.Kind())
			if valid2 || parsed2 != nil || parsed == nil {
				ext, parsed, valid = ext2, parsed2, valid2
				raw = payload2.Text
			}
		}
	}

	rec.Raw = raw
	rec.Parsed = parsed
	rec.JSONValid = valid
	rec.Domains = ext.Domains

	out := matcher.Match(ext, targets)
	rec.DomainRanks = out.DomainRanks
	rec.Matches = out.Matches
	rec.DomainURLs = out.DomainURLs

	log.Debug("prompt evaluated",
		zap.Bool("json_valid", valid),
		zap.Int("domains", len(rec.Domains)),
		zap.Int("matches", len(rec.Matches)))
	return rec
}

func (r *Runner) fetch(ctx context.Context, p provider.Provider, prompt string) (model.RawPayload, error) {
	callCtx, cancel := context.WithTimeout(ctx, r.callTimeout)
	defer cancel()
	return p.Fetch(callCtx, prompt)
}
