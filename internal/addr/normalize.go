// Package addr normalizes raw US postal address strings and parses them
// into canonical components through an ordered fallback chain.
package addr

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	multiSpace = regexp.MustCompile(`\s+`)
	disallowed = regexp.MustCompile(`[^a-zA-Z0-9\s,\.#-]`)

	// stateBeforeZip finds a 2-letter token immediately preceding a
	// 5-digit (optionally +4) ZIP, e.g. "ny 10001".
	stateBeforeZip = regexp.MustCompile(`(?i)\b([a-z]{2})\s+(\d{5}(?:-\d{4})?)\b`)

	// diacritic folding: decompose, drop combining marks, recompose.
	asciiFold = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
)

// Clean canonicalizes a raw address string: folds accented characters to
// ASCII, strips characters outside the address alphabet, collapses
// whitespace, and uppercases a state abbreviation that sits directly
// before a ZIP code.
func Clean(s string) string {
	if s == "" {
		return s
	}

	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}

	s = disallowed.ReplaceAllString(s, "")
	s = multiSpace.ReplaceAllString(strings.TrimSpace(s), " ")

	s = stateBeforeZip.ReplaceAllStringFunc(s, func(m string) string {
		parts := stateBeforeZip.FindStringSubmatch(m)
		code := strings.ToUpper(parts[1])
		if !IsStateCode(code) {
			return m
		}
		return code + " " + parts[2]
	})

	return s
}

// streetSuffixes maps spelled-out street types to USPS-style suffixes.
var streetSuffixes = map[string]string{
	"street":    "St",
	"avenue":    "Ave",
	"boulevard": "Blvd",
	"road":      "Rd",
	"lane":      "Ln",
	"drive":     "Dr",
	"court":     "Ct",
	"place":     "Pl",
	"square":    "Sq",
	"terrace":   "Ter",
	"parkway":   "Pkwy",
	"highway":   "Hwy",
}

// AbbreviateStreet shortens a trailing spelled-out street type
// ("123 Main Street" -> "123 Main St"). Anything else passes through.
func AbbreviateStreet(street string) string {
	fields := strings.Fields(street)
	if len(fields) < 2 {
		return street
	}
	last := strings.ToLower(strings.TrimSuffix(fields[len(fields)-1], "."))
	if abbr, ok := streetSuffixes[last]; ok {
		fields[len(fields)-1] = abbr
	}
	return strings.Join(fields, " ")
}
