// Package roster loads the tracked-complex population from operator-supplied
// XLSX workbooks.
package roster

import (
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"

	"github.com/redev-labs/complex-scanner/internal/model"
)

// column headers recognized in the first row, lowercased.
const (
	colName         = "name"
	colCity         = "city"
	colNeighborhood = "neighborhood"
	colStatus       = "status"
	colDeveloper    = "developer"
	colDevStrength  = "developer_strength"
	colUnitCount    = "unit_count"
	colPricePerSqm  = "price_per_sqm"
)

// LoadComplexesXLSX reads complexes from the first sheet of an XLSX file.
// The first row is a header naming the columns; only "name" is required.
// Blank rows are skipped.
func LoadComplexesXLSX(path string) ([]model.Complex, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "roster: open %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("roster: %s has no sheets", path)
	}
	sheet := f.Sheets[0]
	if len(sheet.Rows) == 0 {
		return nil, eris.Errorf("roster: %s is empty", path)
	}

	cols := make(map[string]int)
	for i, cell := range sheet.Rows[0].Cells {
		header := strings.ToLower(strings.TrimSpace(cell.String()))
		if header != "" {
			cols[header] = i
		}
	}
	if _, ok := cols[colName]; !ok {
		return nil, eris.Errorf("roster: %s has no %q column", path, colName)
	}

	var complexes []model.Complex
	for rowIdx, row := range sheet.Rows[1:] {
		get := func(col string) string {
			i, ok := cols[col]
			if !ok || i >= len(row.Cells) {
				return ""
			}
			return strings.TrimSpace(row.Cells[i].String())
		}

		name := get(colName)
		if name == "" {
			continue
		}

		c := model.Complex{
			Name:         name,
			City:         get(colCity),
			Neighborhood: get(colNeighborhood),
			Developer:    get(colDeveloper),
		}

		if s := get(colStatus); s != "" {
			status := model.PlanningStatus(strings.ToLower(s))
			if !status.Valid() {
				return nil, eris.Errorf("roster: row %d: unknown status %q", rowIdx+2, s)
			}
			c.Status = status
		}
		if v := get(colDevStrength); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, eris.Wrapf(err, "roster: row %d: developer_strength", rowIdx+2)
			}
			c.DeveloperStrength = n
		}
		if v := get(colUnitCount); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return nil, eris.Wrapf(err, "roster: row %d: unit_count", rowIdx+2)
			}
			c.UnitCount = n
		}
		if v := get(colPricePerSqm); v != "" {
			p, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return nil, eris.Wrapf(err, "roster: row %d: price_per_sqm", rowIdx+2)
			}
			c.PricePerSqm = p
		}

		complexes = append(complexes, c)
	}
	return complexes, nil
}
