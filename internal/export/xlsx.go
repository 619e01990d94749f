// Package export renders stored runs and citation statistics to XLSX
// workbooks for offline analysis.
package export

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/citewatch/internal/model"
	"github.com/sells-group/citewatch/internal/report"
)

var runHeader = []string{"Timestamp", "Provider", "Model", "Prompt", "Cited", "Rank", "Cited URLs"}

var promptHeader = []string{"Prompt", "Cluster", "Runs", "Cited", "Citation Rate %", "Avg Rank", "Rank 1 Count", "Score"}

var clusterHeader = []string{"Cluster", "Prompts", "Citation Rate %", "Avg Rank", "Score"}

var modelHeader = []string{"Model", "Provider", "Runs", "Cited", "Citation Rate %", "Avg Rank"}

// Stats carries the aggregate views that become workbook sheets.
type Stats struct {
	Prompts  []report.PromptStats
	Clusters []report.ClusterStats
	Models   []report.ModelStats
}

// Workbook writes the run rows plus prompt, cluster, and model stats to
// path, one sheet each.
func Workbook(path string, runs []model.RunRow, stats Stats) error {
	f := xlsx.NewFile()

	if err := addRunsSheet(f, runs); err != nil {
		return err
	}
	if err := addPromptsSheet(f, stats.Prompts); err != nil {
		return err
	}
	if err := addClustersSheet(f, stats.Clusters); err != nil {
		return err
	}
	if err := addModelsSheet(f, stats.Models); err != nil {
		return err
	}

	return eris.Wrapf(f.Save(path), "export: save %s", path)
}

func addRunsSheet(f *xlsx.File, runs []model.RunRow) error {
	sheet, err := f.AddSheet("Runs")
	if err != nil {
		return eris.Wrap(err, "export: add runs sheet")
	}

	writeRow(sheet, runHeader)
	for _, r := range runs {
		rank := ""
		if r.Rank != nil {
			rank = strconv.Itoa(*r.Rank)
		}
		cited := "no"
		if r.Cited {
			cited = "yes"
		}
		writeRow(sheet, []string{
			r.Timestamp, r.Provider, r.Model, r.Prompt, cited, rank, strings.Join(r.CitedURLs, ", "),
		})
	}
	return nil
}

func addPromptsSheet(f *xlsx.File, stats []report.PromptStats) error {
	sheet, err := f.AddSheet("Prompts")
	if err != nil {
		return eris.Wrap(err, "export: add prompts sheet")
	}

	writeRow(sheet, promptHeader)
	for _, s := range stats {
		writeRow(sheet, []string{
			s.Prompt,
			s.ClusterID,
			strconv.Itoa(s.TotalRuns),
			strconv.Itoa(s.TotalCited),
			formatFloat(s.CitationRate),
			formatFloat(s.AvgRank),
			strconv.Itoa(s.Rank1Count),
			formatFloat(s.Score),
		})
	}
	return nil
}

func addClustersSheet(f *xlsx.File, stats []report.ClusterStats) error {
	sheet, err := f.AddSheet("Clusters")
	if err != nil {
		return eris.Wrap(err, "export: add clusters sheet")
	}

	writeRow(sheet, clusterHeader)
	for _, c := range stats {
		writeRow(sheet, []string{
			c.Name,
			strconv.Itoa(c.PromptCount),
			formatFloat(c.CitationRate),
			formatFloat(c.AvgRank),
			formatFloat(c.Score),
		})
	}
	return nil
}

func addModelsSheet(f *xlsx.File, stats []report.ModelStats) error {
	sheet, err := f.AddSheet("Models")
	if err != nil {
		return eris.Wrap(err, "export: add models sheet")
	}

	writeRow(sheet, modelHeader)
	for _, m := range stats {
		writeRow(sheet, []string{
			m.Model,
			m.Provider,
			strconv.Itoa(m.TotalRuns),
			strconv.Itoa(m.TotalCited),
			formatFloat(m.CitationRate),
			formatFloat(m.AvgRank),
		})
	}
	return nil
}

func writeRow(sheet *xlsx.Sheet, cells []string) {
	row := sheet.AddRow()
	for _, c := range cells {
		row.AddCell().Value = c
	}
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
