package article

import (
	"regexp"
	"strconv"
	"strings"
)

const monthPattern = `(Jan|Feb|Mar|Apr|May|Jun|Jul|Aug|Sept?|Oct|Nov|Dec)\.? \d{1,2}, `

// DateExtractor finds the call date in the preamble of a transcript.
type DateExtractor struct {
	re *regexp.Regexp
}

// NewDateExtractor restricts matches to the given publication years; with no
// years any four-digit year matches.
func NewDateExtractor(years []int) *DateExtractor {
	yearPattern := `\d{4}`
	if len(years) > 0 {
		parts := make([]string, 0, len(years))
		for _, y := range years {
			parts = append(parts, strconv.Itoa(y))
		}
		yearPattern = "(" + strings.Join(parts, "|") + ")"
	}
	return &DateExtractor{re: regexp.MustCompile(monthPattern + yearPattern)}
}

// Extract returns the first match, or nil.
func (d *DateExtractor) Extract(text string) *string {
	match := d.re.FindString(text)
	if match == "" {
		return nil
	}
	return &match
}
