package export

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/report"
)

func TestWorkbookRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.xlsx")
	rank := 2

	runs := []model.RunRow{
		{
			Timestamp: "20260115T120000Z",
			Provider:  "perplexity",
			Model:     "sonar",
			Prompt:    "best project management software",
			Cited:     true,
			Rank:      &rank,
			CitedURLs: []string{"https://asana.com/features", "https://asana.com/pricing"},
		},
		{
			Timestamp: "20260115T120000Z",
			Provider:  "openai",
			Model:     "gpt-4o-search-preview",
			Prompt:    "top crm tools",
		},
	}
	stats := Stats{
		Prompts: []report.PromptStats{
			{Prompt: "best project management software", ClusterID: "project_management", TotalRuns: 2, TotalCited: 1, CitationRate: 50, AvgRank: 2, Score: 0.35},
		},
		Clusters: []report.ClusterStats{
			{ID: "project_management", Name: "Project Management", PromptCount: 1, CitationRate: 50, AvgRank: 2, Score: 0.35},
		},
		Models: []report.ModelStats{
			{Model: "sonar", Provider: "perplexity", TotalRuns: 1, TotalCited: 1, CitationRate: 100, AvgRank: 2},
			{Model: "gpt-4o-search-preview", Provider: "openai", TotalRuns: 1},
		},
	}

	require.NoError(t, Workbook(path, runs, stats))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 4)

	runsSheet := f.Sheets[0]
	assert.Equal(t, "Runs", runsSheet.Name)
	require.Len(t, runsSheet.Rows, 3)
	assert.Equal(t, "Timestamp", runsSheet.Rows[0].Cells[0].String())
	assert.Equal(t, "yes", runsSheet.Rows[1].Cells[4].String())
	assert.Equal(t, "2", runsSheet.Rows[1].Cells[5].String())
	assert.Equal(t, "https://asana.com/features, https://asana.com/pricing", runsSheet.Rows[1].Cells[6].String())
	assert.Equal(t, "no", runsSheet.Rows[2].Cells[4].String())
	assert.Equal(t, "", runsSheet.Rows[2].Cells[5].String())

	promptsSheet := f.Sheets[1]
	assert.Equal(t, "Prompts", promptsSheet.Name)
	require.Len(t, promptsSheet.Rows, 2)
	assert.Equal(t, "project_management", promptsSheet.Rows[1].Cells[1].String())
	assert.Equal(t, "0.35", promptsSheet.Rows[1].Cells[7].String())

	clustersSheet := f.Sheets[2]
	assert.Equal(t, "Clusters", clustersSheet.Name)
	require.Len(t, clustersSheet.Rows, 2)
	assert.Equal(t, "Project Management", clustersSheet.Rows[1].Cells[0].String())
	assert.Equal(t, "50", clustersSheet.Rows[1].Cells[2].String())

	modelsSheet := f.Sheets[3]
	assert.Equal(t, "Models", modelsSheet.Name)
	require.Len(t, modelsSheet.Rows, 3)
	assert.Equal(t, "sonar", modelsSheet.Rows[1].Cells[0].String())
	assert.Equal(t, "100", modelsSheet.Rows[1].Cells[4].String())
}
