package model

import "time"

// Prompt is a tracked evaluation prompt.
type Prompt struct {
	ID        int64     `json:"id"`
	Text      string    `json:"prompt"`
	ClusterID string    `json:"cluster_id"`
	Keywords  []string  `json:"keywords"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Target is a tracked target domain.
type Target struct {
	ID        int64     `json:"id"`
	Domain    string    `json:"domain"`
	Company   string    `json:"company,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

// RunRow is one (run, prompt) outcome flattened for querying: was the
// prompt cited, at what best rank, with which URLs.
type RunRow struct {
	ID             int64     `json:"id"`
	Timestamp      string    `json:"timestamp"`
	Provider       string    `json:"provider"`
	Model          string    `json:"model"`
	PromptID       int64     `json:"prompt_id"`
	Prompt         string    `json:"prompt"`
	Cited          bool      `json:"cited"`
	Rank           *int      `json:"rank,omitempty"`
	CitedURLs      []string  `json:"cited_urls"`
	RawResponse    string    `json:"raw_response,omitempty"`
	ParsedResponse string    `json:"parsed_response,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// JobStatus tracks background evaluation jobs.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
)

// Job is a queued evaluation request processed asynchronously.
type Job struct {
	ID          int64      `json:"id"`
	Status      JobStatus  `json:"status"`
	Prompts     []string   `json:"prompts"`
	Targets     []string   `json:"targets"`
	Models      []string   `json:"models"`
	Progress    int        `json:"progress"`
	Total       int        `json:"total"`
	Result      string     `json:"result,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// BestRank returns the lowest (best) rank across a record's matches, or nil
// when no match carries a rank.
func (r ResultRecord) BestRank() *int {
	var best *int
	for _, m := range r.Matches {
		for _, rank := range m.Ranks {
			rank := rank
			if best == nil || rank < *best {
				best = &rank
			}
		}
	}
	return best
}

// AllCitedURLs returns every matched domain's cited URLs, first-seen order.
// A match with no cited URLs falls back to its matched URLs so a citation
// never vanishes from storage just because the provider omitted link text.
func (r ResultRecord) AllCitedURLs() []string {
	var urls []string
	seen := make(map[string]bool)
	for _, m := range r.Matches {
		cited := m.CitedURLs
		if len(cited) == 0 {
			cited = m.MatchedURLs
		}
		for _, u := range cited {
			if !seen[u] {
				seen[u] = true
				urls = append(urls, u)
			}
		}
	}
	return urls
}
