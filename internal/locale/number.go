// Package locale parses numbers and dates the way Turkish marketplace
// exports format them. Columns mix Turkish and English locale conventions
// within a single sheet, so parsing is tolerant by construction: a value
// that cannot be read becomes zero (numbers) or nil (dates), never an error.
package locale

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseNumber converts a spreadsheet cell into a decimal amount.
//
// Both "1.234,56" (Turkish) and "1,234.56" (English) read as 1234.56: when
// both separators appear, the one occurring last is the decimal point.
// Currency glyphs and spaces are ignored, parenthesized values are negative,
// and empty or unreadable values become zero.
func ParseNumber(raw string) decimal.Decimal {
	s := strings.TrimSpace(raw)
	if s == "" {
		return decimal.Zero
	}

	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}

	// Keep digits, separators and the sign; everything else (₺, TL, TRY,
	// spaces, non-breaking spaces) is noise.
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && b.Len() == 0:
			b.WriteRune(r)
		}
	}
	s = b.String()
	if s == "" || s == "-" {
		return decimal.Zero
	}

	lastDot := strings.LastIndex(s, ".")
	lastComma := strings.LastIndex(s, ",")

	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			s = decimalizeLast(s, ',')
		} else {
			s = strings.ReplaceAll(s, ",", "")
			s = decimalizeLast(s, '.')
		}
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			s = strings.ReplaceAll(s, ".", "")
		} else if len(s)-lastDot-1 == 3 {
			// A lone period followed by exactly three digits is a
			// thousands mark in these exports ("1.234" is 1234).
			s = strings.ReplaceAll(s, ".", "")
		}
	}

	value, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	if negative {
		value = value.Neg()
	}
	return value
}

// decimalizeLast removes every occurrence of sep except the last, which
// becomes the decimal point. Handles malformed values like "1,234,56".
func decimalizeLast(s string, sep rune) string {
	last := strings.LastIndex(s, string(sep))
	if last < 0 {
		return s
	}
	head := strings.ReplaceAll(s[:last], string(sep), "")
	return head + "." + s[last+1:]
}
