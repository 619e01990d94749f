package registry

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/citewatch/internal/domain"
)

// TargetImport is one row from a target spreadsheet.
type TargetImport struct {
	Domain  string
	Company string
}

// LoadTargetsXLSX reads target domains from the first sheet of an XLSX
// workbook. Column A holds the domain, column B an optional company name. A
// header row is detected and skipped when column A does not normalize to a
// domain with a dot in it.
func LoadTargetsXLSX(path string) ([]TargetImport, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("registry: %s has no sheets", path)
	}

	var targets []TargetImport
	for i, row := range f.Sheets[0].Rows {
		if len(row.Cells) == 0 {
			continue
		}
		raw := strings.TrimSpace(row.Cells[0].String())
		if raw == "" {
			continue
		}

		normalized := domain.Normalize(raw)
		if !strings.Contains(normalized, ".") {
			if i == 0 {
				continue // header row
			}
			return nil, eris.Errorf("registry: row %d: invalid domain %q", i+1, raw)
		}

		t := TargetImport{Domain: normalized}
		if len(row.Cells) > 1 {
			t.Company = strings.TrimSpace(row.Cells[1].String())
		}
		targets = append(targets, t)
	}
	return targets, nil
}
