package stats

import (
	"regexp"
	"strings"
	"time"

	"github.com/yegors/gnss-jamming/internal/apperr"
)

// DateLayout is the canonical day format used in tables and file names
const DateLayout = "2006-01-02"

var dateLayouts = []string{
	DateLayout,
	"2006/01/02",
	"1/2/2006",
	"01-02-2006",
	"Jan 2, 2006",
	"Jan 2 2006",
	"January 2, 2006",
	"January 2 2006",
	"2 Jan 2006",
	"2 January 2006",
	time.RFC3339,
}

var ordinalSuffix = regexp.MustCompile(`\b(\d{1,2})(st|nd|rd|th)\b`)

// ParseDate reads a calendar day in one of the common written forms, for
// example "2024-02-05", "2/5/2024", "Feb 5, 2024" or "5th February 2024".
// Numeric day/month forms are read month first.
func ParseDate(s string) (time.Time, error) {
	clean := strings.Join(strings.Fields(ordinalSuffix.ReplaceAllString(s, "$1")), " ")
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, clean); err == nil {
			return Day(t), nil
		}
	}
	return time.Time{}, apperr.Config("date", "cannot read %q as a date", s)
}

// Day truncates t to midnight UTC of its calendar day
func Day(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ResolveDates turns the date inputs of a query into the dates to process
// and a short description. Exactly one of these shapes is accepted:
// start alone, start with a later end, or a non-empty series.
func ResolveDates(start, end *time.Time, series []time.Time) ([]time.Time, string, error) {
	if len(series) > 0 {
		if start != nil || end != nil {
			return nil, "", apperr.Config("dates", "a date series cannot be combined with a start or end date")
		}
		dates := make([]time.Time, len(series))
		parts := make([]string, len(series))
		for i, d := range series {
			dates[i] = Day(d)
			parts[i] = dates[i].Format(DateLayout)
		}
		return dates, "Dates: " + strings.Join(parts, ", "), nil
	}

	switch {
	case start == nil && end == nil:
		return nil, "", apperr.Config("dates", "no date range given")
	case start == nil:
		return nil, "", apperr.Config("dates", "only an end date was given; add a start date or a date series")
	case end == nil:
		d := Day(*start)
		return []time.Time{d}, d.Format(DateLayout), nil
	}

	from, to := Day(*start), Day(*end)
	if !from.Before(to) {
		return nil, "", apperr.Config("dates", "start date %s must come before end date %s", from.Format(DateLayout), to.Format(DateLayout))
	}

	var dates []time.Time
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		dates = append(dates, d)
	}
	return dates, "range from " + from.Format(DateLayout) + " to " + to.Format(DateLayout), nil
}
