package locale

import (
	"strconv"
	"strings"
	"time"
)

// excelEpoch is day zero of the 1900 date system. Serial 1 is 1900-01-01;
// the offset to 1899-12-30 absorbs the historical leap-year bug.
var excelEpoch = time.Date(1899, time.December, 30, 0, 0, 0, 0, time.UTC)

// dateLayouts in trial order. The "02" layouts demand two digits, so the
// unpadded "2.1.2006" variants are listed separately for cells like
// "5.3.2024".
var dateLayouts = []string{
	"02.01.2006 15:04:05",
	"02.01.2006 15:04",
	"02.01.2006 15.04.05",
	"02.01.2006 15.04",
	"02.01.2006",
	"2.1.2006 15:04:05",
	"2.1.2006 15:04",
	"2.1.2006",
	"02/01/2006 15:04:05",
	"02/01/2006 15:04",
	"02/01/2006",
	"2/1/2006",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParseDate converts a spreadsheet cell into a timestamp. Purely numeric
// values are Excel serial dates (fractional part is the time of day);
// otherwise Turkish DD.MM.YYYY layouts and ISO fallbacks are tried in order.
// Returns nil when nothing matches.
func ParseDate(raw string) *time.Time {
	s := strings.TrimSpace(raw)
	if s == "" {
		return nil
	}

	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if serial <= 0 {
			return nil
		}
		days := int(serial)
		frac := serial - float64(days)
		t := excelEpoch.AddDate(0, 0, days).
			Add(time.Duration(frac * 24 * float64(time.Hour)))
		return &t
	}

	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
