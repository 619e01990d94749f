package runlog

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/model"
)

// List loads every per-run JSON file under dir, newest timestamp first.
// Files that fail to parse are skipped so one corrupt file cannot hide the
// rest of the history.
func List(dir string) ([]model.RunLog, error) {
	pattern := filepath.Join(dir, runFilePattern)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, eris.Wrapf(err, "runlog: glob %s", pattern)
	}

	var logs []model.RunLog
	for _, path := range paths {
		log, err := readRunFile(path)
		if err != nil {
			continue
		}
		logs = append(logs, log)
	}

	sort.SliceStable(logs, func(i, j int) bool {
		if logs[i].Timestamp != logs[j].Timestamp {
			return logs[i].Timestamp > logs[j].Timestamp
		}
		if logs[i].Provider != logs[j].Provider {
			return logs[i].Provider < logs[j].Provider
		}
		return logs[i].Model < logs[j].Model
	})
	return logs, nil
}

// ForTimestamp returns the provider logs recorded under one run timestamp.
func ForTimestamp(dir, timestamp string) ([]model.RunLog, error) {
	logs, err := List(dir)
	if err != nil {
		return nil, err
	}
	var out []model.RunLog
	for _, log := range logs {
		if log.Timestamp == timestamp {
			out = append(out, log)
		}
	}
	if len(out) == 0 {
		return nil, eris.Errorf("runlog: no runs recorded at %s", timestamp)
	}
	return out, nil
}

// Timestamps returns the distinct run timestamps under dir, newest first.
func Timestamps(dir string) ([]string, error) {
	logs, err := List(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	seen := make(map[string]bool)
	for _, log := range logs {
		if !seen[log.Timestamp] {
			seen[log.Timestamp] = true
			out = append(out, log.Timestamp)
		}
	}
	return out, nil
}

func readRunFile(path string) (model.RunLog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RunLog{}, eris.Wrapf(err, "runlog: read %s", path)
	}
	var log model.RunLog
	if err := json.Unmarshal(data, &log); err != nil {
		return model.RunLog{}, eris.Wrapf(err, "runlog: parse %s", path)
	}
	if log.Timestamp == "" {
		// Fall back to the file name for hand-rolled files.
		base := strings.TrimSuffix(filepath.Base(path), ".json")
		parts := strings.SplitN(base, "_", 4)
		if len(parts) >= 2 {
			log.Timestamp = parts[1]
		}
	}
	return log, nil
}
