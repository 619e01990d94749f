// Package registry loads the evaluation inputs: prompt lists, target
// lists, and the cluster definitions used to group prompts in reports.
package registry

import (
	"bufio"
	"os"
	"strings"

	"github.com/rotisserie/eris"
)

// LoadPrompts reads one prompt per line. Blank lines and lines starting
// with '#' are skipped.
func LoadPrompts(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open prompts file %s", path)
	}
	defer f.Close()

	var prompts []string
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		prompts = append(prompts, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "registry: read prompts file %s", path)
	}
	return prompts, nil
}
