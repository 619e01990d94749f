package registry

import (
	"encoding/json"
	"os"

	"github.com/rotisserie/eris"

	"github.com/sells-group/citewatch/internal/model"
)

// LoadTargets reads a JSON array of domain or URL strings. Entries that do
// not normalize to a usable domain are dropped silently, matching the
// forgiving handling of hand-edited target files.
func LoadTargets(path string) ([]model.TargetSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read targets file %s", path)
	}

	var entries []any
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, eris.Wrapf(err, "registry: targets file %s must contain a JSON array of domain or URL strings", path)
	}

	var targets []model.TargetSpec
	for _, entry := range entries {
		s, ok := entry.(string)
		if !ok {
			continue
		}
		if spec, ok := model.NewTargetSpec(s); ok {
			targets = append(targets, spec)
		}
	}
	return targets, nil
}
