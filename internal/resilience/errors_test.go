package resilience

import (
	"context"
	"fmt"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
)

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CategoryTimeout},
		{"cancelled", context.Canceled, CategoryCancelled},
		{"rate limit", eris.Errorf("perplexity: unexpected status 429: slow down"), CategoryRateLimit},
		{"server error", eris.Errorf("openrouter: unexpected status 502: bad gateway"), CategoryTransient},
		{"auth failure", eris.Errorf("openrouter: unexpected status 401: bad key"), CategoryProvider},
		{"bad request", eris.Errorf("perplexity: unexpected status 400: invalid"), CategoryProvider},
		{"conn reset", eris.New("send request: read: connection reset by peer"), CategoryTransient},
		{"opaque", eris.New("something odd"), CategoryProvider},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Categorize(tc.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, status := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(status), "status %d", status)
	}
	for _, status := range []int{200, 301, 400, 401, 403, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(status), "status %d", status)
	}
}

func TestIsTransientStringHeuristics(t *testing.T) {
	assert.True(t, IsTransient(eris.New("dial tcp: i/o timeout")))
	assert.True(t, IsTransient(eris.New("lookup api.example.com: no such host")))
	assert.False(t, IsTransient(eris.New("invalid request body")))
	assert.False(t, IsTransient(nil))
}
