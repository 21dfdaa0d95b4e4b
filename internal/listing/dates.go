package listing

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

var ErrDateUnparseable = errors.New("date unparseable")

// reMonthAbbrev matches an abbreviated month with an optional trailing dot,
// including the four-letter "Sept".
var reMonthAbbrev = regexp.MustCompile(`(?i)\b(jan|feb|mar|apr|jun|jul|aug|sept?|oct|nov|dec)\.?\s`)

// DateError carries the free-text date that could not be read.
type DateError struct {
	Text string
	Err  error
}

func (e *DateError) Error() string {
	return fmt.Sprintf("%v: %q", ErrDateUnparseable, e.Text)
}

func (e *DateError) Unwrap() error { return ErrDateUnparseable }

// ParseDate reads a free-text listing date such as "Jan 29, 2020",
// "Dec. 31, 2019" or "Sept. 30, 2019" as a UTC calendar date.
func ParseDate(text string) (time.Time, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return time.Time{}, &DateError{Text: text}
	}
	t, err := dateparse.ParseIn(trimmed, time.UTC)
	if err == nil {
		return t, nil
	}

	// Retry with the month reduced to its three-letter form.
	short := reMonthAbbrev.ReplaceAllStringFunc(trimmed, func(m string) string {
		return m[:3] + " "
	})
	if short != trimmed {
		if t, shortErr := dateparse.ParseIn(short, time.UTC); shortErr == nil {
			return t, nil
		}
	}
	return time.Time{}, &DateError{Text: text, Err: err}
}
