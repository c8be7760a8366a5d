package services

import (
	"regexp"
	"strings"

	"github.com/Lllllllleong/payslipflow/internal/models"
)

// Month lookup tables. Both forms map to the same canonical 2-digit code.
var monthAbbrCodes = map[string]string{
	"JAN": "01", "FEB": "02", "MAR": "03", "APR": "04", "MAY": "05", "JUN": "06",
	"JUL": "07", "AUG": "08", "SEP": "09", "OCT": "10", "NOV": "11", "DEC": "12",
}

var monthFullCodes = map[string]string{
	"JANUARY": "01", "FEBRUARY": "02", "MARCH": "03", "APRIL": "04",
	"MAY": "05", "JUNE": "06", "JULY": "07", "AUGUST": "08",
	"SEPTEMBER": "09", "OCTOBER": "10", "NOVEMBER": "11", "DECEMBER": "12",
}

var (
	recordYearRe = regexp.MustCompile(`\b(20\d{2})\b`)

	// A 3-letter month abbreviation immediately adjacent to a 4-digit year
	// ("OCT-2023", "JAN 2024"). Preferred because it pins down which year
	// token belongs to the pay period when several years appear in the text.
	monthAbbrRe = regexp.MustCompile(`(?i)\b(JAN|FEB|MAR|APR|MAY|JUN|JUL|AUG|SEP|OCT|NOV|DEC)[-\s]?\s*(20\d{2})\b`)

	// A full month name followed by a 4-digit year ("October 2023").
	monthFullRe = regexp.MustCompile(`(?i)\b(JANUARY|FEBRUARY|MARCH|APRIL|MAY|JUNE|JULY|AUGUST|SEPTEMBER|OCTOBER|NOVEMBER|DECEMBER)\b[\s,-]*(20\d{2})\b`)

	// Exactly six consecutive digits bounded by non-digits. Free-form payslip
	// text is full of spurious numeric tokens; a narrow pattern that routes a
	// miss to the unmatched bucket beats a loose one that mis-tags documents.
	identifierRe = regexp.MustCompile(`(?:^|[^0-9])([0-9]{6})(?:[^0-9]|$)`)
)

// ExtractRecord parses a group's merged text into a structured record. It
// returns nil unless year, month and identifier all resolve; partial records
// do not exist.
func ExtractRecord(text string) *models.ExtractedRecord {
	if text == "" {
		return nil
	}

	var year, month string
	if m := recordYearRe.FindStringSubmatch(text); m != nil {
		year = m[1]
	}
	if m := monthAbbrRe.FindStringSubmatch(text); m != nil {
		month = monthAbbrCodes[strings.ToUpper(m[1])]
		year = m[2]
	} else if m := monthFullRe.FindStringSubmatch(text); m != nil {
		month = monthFullCodes[strings.ToUpper(m[1])]
		year = m[2]
	}

	var identifier string
	if m := identifierRe.FindStringSubmatch(text); m != nil {
		identifier = m[1]
	}

	if year == "" || month == "" || identifier == "" {
		return nil
	}
	return &models.ExtractedRecord{Year: year, Month: month, Identifier: identifier}
}
