package calendar

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// dateLayouts are accepted cell formats in holiday tables, tried in order.
var dateLayouts = []string{"2006-01-02", "02/01/2006", "2006-01-02 15:04:05"}

// LoadHolidaysXLSX reads a holiday table from the first sheet of an XLSX
// file. The first column of each row holds a date; a header row or blank
// rows are skipped silently, any other unparseable cell is an error.
func LoadHolidaysXLSX(path string) ([]time.Time, error) {
	f, err := xlsx.OpenFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "calendar: open holiday table %s", path)
	}
	if len(f.Sheets) == 0 {
		return nil, eris.Errorf("calendar: holiday table %s has no sheets", path)
	}

	var holidays []time.Time
	for i, row := range f.Sheets[0].Rows {
		if len(row.Cells) == 0 {
			continue
		}
		raw := strings.TrimSpace(row.Cells[0].String())
		if raw == "" {
			continue
		}

		d, err := parseHolidayDate(raw)
		if err != nil {
			if i == 0 {
				continue // header row
			}
			return nil, eris.Wrapf(err, "calendar: holiday table %s row %d", path, i+1)
		}
		holidays = append(holidays, d)
	}
	return holidays, nil
}

// ParseHolidayDates parses a list of yyyy-mm-dd strings, as supplied from
// config, into dates.
func ParseHolidayDates(raw []string) ([]time.Time, error) {
	holidays := make([]time.Time, 0, len(raw))
	for _, s := range raw {
		d, err := parseHolidayDate(strings.TrimSpace(s))
		if err != nil {
			return nil, eris.Wrapf(err, "calendar: holiday date %q", s)
		}
		holidays = append(holidays, d)
	}
	return holidays, nil
}

func parseHolidayDate(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d, nil
		}
	}
	return time.Time{}, eris.Errorf("unrecognized date %q", s)
}
