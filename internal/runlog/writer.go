// Package runlog persists evaluation runs to the append-only log
// directory: one pretty-printed JSON file per (run, provider), a master
// JSONL stream, and markdown summaries for humans.
package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/model"
)

const (
	masterLogName  = "master_log.jsonl"
	mainLogName    = "main_log.md"
	summaryName    = "last_summary.md"
	mainLogHeader  = "# Citation runs\n\n"
	runFilePattern = "run_*.json"
)

var unsafeModelChars = regexp.MustCompile(`[^A-Za-z0-9_.-]+`)

// Writer persists run logs under one directory.
type Writer struct {
	dir string
}

// NewWriter creates a Writer rooted at dir. The directory is created on
// first write.
func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Dir returns the log directory.
func (w *Writer) Dir() string { return w.dir }

// WriteRun persists one provider's RunLog as
// run_<timestamp>_<provider>_<model>.json and appends a compact line to
// master_log.jsonl.
func (w *Writer) WriteRun(log model.RunLog) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrap(err, "runlog: create log dir")
	}

	pretty, err := json.MarshalIndent(log, "", "  ")
	if err != nil {
		return eris.Wrap(err, "runlog: marshal run")
	}
	path := filepath.Join(w.dir, RunFileName(log.Timestamp, log.Provider, log.Model))
	if err := os.WriteFile(path, pretty, 0o644); err != nil {
		return eris.Wrapf(err, "runlog: write %s", path)
	}

	compact, err := json.Marshal(log)
	if err != nil {
		return eris.Wrap(err, "runlog: marshal run")
	}
	return w.appendLine(masterLogName, append(compact, '\n'))
}

// AppendMainLog appends one run's provider blocks to main_log.md, writing
// the document header when the file does not exist yet.
func (w *Writer) AppendMainLog(timestamp string, blocks []string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrap(err, "runlog: create log dir")
	}

	var sb strings.Builder
	path := filepath.Join(w.dir, mainLogName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		sb.WriteString(mainLogHeader)
	}
	sb.WriteString("## " + timestamp + "\n")
	for _, block := range blocks {
		sb.WriteString(block + "\n")
	}
	sb.WriteString("\n")

	return w.appendLine(mainLogName, []byte(sb.String()))
}

// WriteLastSummary replaces last_summary.md with this run's blocks.
func (w *Writer) WriteLastSummary(timestamp string, blocks []string) error {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return eris.Wrap(err, "runlog: create log dir")
	}

	content := "## " + timestamp + "\n" + strings.Join(blocks, "\n") + "\n"
	path := filepath.Join(w.dir, summaryName)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return eris.Wrapf(err, "runlog: write %s", path)
	}
	return nil
}

func (w *Writer) appendLine(name string, data []byte) error {
	path := filepath.Join(w.dir, name)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return eris.Wrapf(err, "runlog: open %s", path)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return eris.Wrapf(err, "runlog: append %s", path)
	}
	return nil
}

// RunFileName builds the per-run file name, sanitizing the model label so
// slugs like "openai/gpt-oss-20b:free:online" stay filesystem-safe.
func RunFileName(timestamp, provider, modelLabel string) string {
	safe := unsafeModelChars.ReplaceAllString(modelLabel, "-")
	if safe == "" {
		safe = "model"
	}
	return "run_" + timestamp + "_" + provider + "_" + safe + ".json"
}
