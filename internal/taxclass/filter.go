// Package taxclass normalizes property tax class codes and partitions
// records against a configured whitelist.
package taxclass

import (
	"strings"

	"github.com/sells-group/taxroll-cli/internal/model"
)

// descriptions labels the property classes that show up in the exports.
var descriptions = map[string]string{
	"CD": "Residential Condominium",
	"B9": "Mixed Residential & Commercial",
	"B2": "Office Buildings",
	"B3": "Industrial & Manufacturing",
	"C0": "Commercial Condominium",
	"B1": "Hotels & Apartments",
	"C1": "Walk-up Apartments",
	"A9": "Luxury Residential",
	"C2": "Elevator Apartments",
}

// aliases maps known alternate spellings to the canonical code. "CO"
// (letter O) appears in some exports for the commercial-condominium
// class "C0" (zero).
var aliases = map[string]string{
	"CO": "C0",
}

// Classify maps a raw class code to its canonical form. Unknown codes
// pass through uppercased and trimmed.
func Classify(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if canonical, ok := aliases[code]; ok {
		return canonical
	}
	return code
}

// Describe returns the human-readable label for a canonical class, or
// "Unknown" when the class is not in the table.
func Describe(code string) string {
	if d, ok := descriptions[Classify(code)]; ok {
		return d
	}
	return "Unknown"
}

// Filter partitions records by a whitelist of canonical class codes.
type Filter struct {
	whitelist map[string]struct{}
}

// NewFilter builds a filter from the configured class codes. Codes are
// canonicalized, so whitelisting either "CO" or "C0" admits both.
func NewFilter(classes []string) *Filter {
	wl := make(map[string]struct{}, len(classes))
	for _, c := range classes {
		wl[Classify(c)] = struct{}{}
	}
	return &Filter{whitelist: wl}
}

// Allowed reports whether the canonical form of code is whitelisted.
func (f *Filter) Allowed(code string) bool {
	_, ok := f.whitelist[Classify(code)]
	return ok
}

// Partition splits records into whitelisted and rejected sets, setting
// the canonical class on every record and tallying per-class counts
// with percentages over the full input. Pure and single-pass; empty
// input yields empty partitions.
func (f *Filter) Partition(records []model.Record) (valid []model.Record, invalid []model.Record, stats model.FilterStats) {
	stats = model.FilterStats{
		TotalRecords:   len(records),
		ValidClasses:   make(map[string]model.ClassCount),
		InvalidClasses: make(map[string]model.ClassCount),
	}

	for _, rec := range records {
		rec.Class = Classify(rec.Raw.PropertyClass)
		if f.Allowed(rec.Class) {
			valid = append(valid, rec)
			bump(stats.ValidClasses, rec.Class, true)
		} else {
			invalid = append(invalid, rec)
			bump(stats.InvalidClasses, rec.Class, false)
		}
	}

	stats.ValidRecords = len(valid)
	stats.FilteredOut = len(invalid)

	if stats.TotalRecords > 0 {
		fillPercentages(stats.ValidClasses, stats.TotalRecords)
		fillPercentages(stats.InvalidClasses, stats.TotalRecords)
	}
	return valid, invalid, stats
}

func bump(counts map[string]model.ClassCount, class string, describe bool) {
	c := counts[class]
	c.Count++
	if describe && c.Description == "" {
		c.Description = Describe(class)
	}
	counts[class] = c
}

func fillPercentages(counts map[string]model.ClassCount, total int) {
	for class, c := range counts {
		c.Percentage = float64(c.Count) / float64(total) * 100
		counts[class] = c
	}
}
