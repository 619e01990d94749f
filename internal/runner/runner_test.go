package runner

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/provider"
	"github.com/sells-group/citewatch/internal/resilience"
)

// scriptedProvider returns queued responses per prompt, counting calls.
type scriptedProvider struct {
	mu      sync.Mutex
	name    string
	label   string
	kind    model.ProviderKind
	scripts map[string][]response
	calls   map[string]int
	delay   time.Duration
}

type response struct {
	payload model.RawPayload
	err     error
}

func newScripted(name, label string) *scriptedProvider {
	return &scriptedProvider{
		name:    name,
		label:   label,
		kind:    model.KindOpenRouter,
		scripts: make(map[string][]response),
		calls:   make(map[string]int),
	}
}

func (s *scriptedProvider) on(prompt string, responses ...response) *scriptedProvider {
	s.scripts[prompt] = responses
	return s
}

func (s *scriptedProvider) Name() string             { return s.name }
func (s *scriptedProvider) Model() string            { return s.label }
func (s *scriptedProvider) Kind() model.ProviderKind { return s.kind }

func (s *scriptedProvider) Fetch(ctx context.Context, prompt string) (model.RawPayload, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return model.RawPayload{}, ctx.Err()
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	n := s.calls[prompt]
	s.calls[prompt] = n + 1
	script := s.scripts[prompt]
	if len(script) == 0 {
		return model.RawPayload{}, eris.Errorf("no script for prompt %q", prompt)
	}
	if n >= len(script) {
		n = len(script) - 1
	}
	return script[n].payload, script[n].err
}

func (s *scriptedProvider) callCount(prompt string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[prompt]
}

func validJSON(domain string) model.RawPayload {
	return model.RawPayload{Text: fmt.Sprintf(
		`{"query":"q","results":[{"agency":"A","domain":%q,"comment":""}]}`, domain)}
}

func registryWith(providers ...provider.Provider) *provider.Registry {
	reg := provider.NewRegistry()
	for _, p := range providers {
		reg.Register(p)
	}
	return reg
}

func targetsFor(t *testing.T, entries ...string) []model.TargetSpec {
	t.Helper()
	var specs []model.TargetSpec
	for _, e := range entries {
		spec, ok := model.NewTargetSpec(e)
		require.True(t, ok)
		specs = append(specs, spec)
	}
	return specs
}

func TestRunSingleValidResponse(t *testing.T) {
	p := newScripted("openrouter", "m").on("best tools", response{payload: validJSON("asana.com")})
	r := New(registryWith(p), Options{Concurrency: 2, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), []string{"best tools"}, targetsFor(t, "asana.com"))
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Results, 1)

	rec := logs[0].Results[0]
	assert.True(t, rec.JSONValid)
	assert.True(t, rec.Cited())
	assert.Equal(t, 1, p.callCount("best tools"), "valid first response, one call only")
	assert.Equal(t, 1, logs[0].CitedCount())
}

func TestRunRetryBound(t *testing.T) {
	p := newScripted("openrouter", "m").on("q",
		response{payload: model.RawPayload{Text: "not json at all"}},
		response{payload: model.RawPayload{Text: "still not json"}},
	)
	r := New(registryWith(p), Options{Concurrency: 1, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)

	rec := logs[0].Results[0]
	assert.False(t, rec.JSONValid)
	assert.Equal(t, 2, p.callCount("q"), "exactly two calls, never a third")
	assert.Empty(t, rec.Error)
}

func TestRunGarbageThenValid(t *testing.T) {
	p := newScripted("openrouter", "m").on("q",
		response{payload: model.RawPayload{Text: "garbage &&&"}},
		response{payload: validJSON("asana.com")},
	)
	r := New(registryWith(p), Options{Concurrency: 1, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), []string{"q"}, targetsFor(t, "asana.com"))
	require.NoError(t, err)

	rec := logs[0].Results[0]
	assert.True(t, rec.JSONValid)
	require.Len(t, rec.Matches, 1)
	assert.Equal(t, "asana.com", rec.Matches[0].Domain)
	assert.Equal(t, 2, p.callCount("q"))
}

func TestRunTextFallbackKept(t *testing.T) {
	// Both attempts prose: the record degrades to URL extraction but still
	// matches targets through cited URLs.
	prose := model.RawPayload{Text: "Try https://asana.com/features for this."}
	p := newScripted("openrouter", "m").on("q",
		response{payload: prose},
		response{payload: prose},
	)
	r := New(registryWith(p), Options{Concurrency: 1, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), []string{"q"}, targetsFor(t, "asana.com"))
	require.NoError(t, err)

	rec := logs[0].Results[0]
	assert.False(t, rec.JSONValid)
	require.Len(t, rec.Matches, 1)
	assert.Equal(t, []string{"https://asana.com/features"}, rec.Matches[0].CitedURLs)
}

func TestRunOrderPreservation(t *testing.T) {
	prompts := []string{"p1", "p2", "p3", "p4", "p5"}
	p := newScripted("openrouter", "m")
	p.delay = 10 * time.Millisecond
	for i, prompt := range prompts {
		p.on(prompt, response{payload: validJSON(fmt.Sprintf("site%d.com", i))})
	}
	r := New(registryWith(p), Options{Concurrency: 5, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), prompts, nil)
	require.NoError(t, err)

	require.Len(t, logs[0].Results, len(prompts))
	for i, rec := range logs[0].Results {
		assert.Equal(t, prompts[i], rec.Prompt, "results follow prompt order")
	}
}

func TestRunFailureIsolation(t *testing.T) {
	good := newScripted("openrouter", "good").
		on("p1", response{payload: validJSON("asana.com")}).
		on("p2", response{payload: validJSON("monday.com")})
	bad := newScripted("perplexity", "bad").
		on("p1", response{err: eris.New("perplexity: unexpected status 500: boom")}).
		on("p2", response{payload: validJSON("asana.com")})
	bad.kind = model.KindPerplexity

	r := New(registryWith(good, bad), Options{Concurrency: 4, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), []string{"p1", "p2"}, targetsFor(t, "asana.com"))
	require.NoError(t, err)
	require.Len(t, logs, 2)

	assert.True(t, logs[0].Results[0].Cited())
	assert.False(t, logs[0].Results[1].Cited())

	failed := logs[1].Results[0]
	assert.NotEmpty(t, failed.Error)
	assert.Equal(t, resilience.CategoryTransient, failed.ErrorCategory)
	assert.False(t, failed.Cited())

	assert.True(t, logs[1].Results[1].Cited(), "other prompts on the failed provider still run")
}

func TestRunCitedInvariant(t *testing.T) {
	p := newScripted("openrouter", "m").
		on("hit", response{payload: validJSON("asana.com")}).
		on("miss", response{payload: validJSON("other.io")}).
		on("fail", response{err: eris.New("boom")})
	r := New(registryWith(p), Options{Concurrency: 2, CallTimeout: time.Second})

	logs, err := r.Run(context.Background(), []string{"hit", "miss", "fail"}, targetsFor(t, "asana.com"))
	require.NoError(t, err)

	for _, rec := range logs[0].Results {
		assert.Equal(t, len(rec.Matches) > 0, rec.Cited(), "prompt %q", rec.Prompt)
	}
	assert.Equal(t, 1, logs[0].CitedCount())
}

func TestRunCancellationFlushesPartial(t *testing.T) {
	p := newScripted("openrouter", "m")
	p.delay = 50 * time.Millisecond
	prompts := []string{"p1", "p2", "p3", "p4"}
	for _, prompt := range prompts {
		p.on(prompt, response{payload: validJSON("asana.com")})
	}
	r := New(registryWith(p), Options{Concurrency: 1, CallTimeout: time.Second})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(75 * time.Millisecond)
		cancel()
	}()

	logs, err := r.Run(ctx, prompts, targetsFor(t, "asana.com"))
	require.ErrorIs(t, err, context.Canceled)
	require.Len(t, logs, 1)
	require.Len(t, logs[0].Results, len(prompts))

	// The first prompt finished before cancellation; later ones degraded.
	assert.True(t, logs[0].Results[0].Cited())
	last := logs[0].Results[len(prompts)-1]
	assert.NotEmpty(t, last.Error)
	assert.Equal(t, resilience.CategoryCancelled, last.ErrorCategory)
}

func TestRunTimestampSharedAcrossProviders(t *testing.T) {
	a := newScripted("openrouter", "a").on("q", response{payload: validJSON("x.com")})
	b := newScripted("openrouter", "b").on("q", response{payload: validJSON("x.com")})
	r := New(registryWith(a, b), Options{Concurrency: 2, CallTimeout: time.Second})
	r.now = func() time.Time { return time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC) }

	logs, err := r.Run(context.Background(), []string{"q"}, nil)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "20260301T123000Z", logs[0].Timestamp)
	assert.Equal(t, logs[0].Timestamp, logs[1].Timestamp)
}
