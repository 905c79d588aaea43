// Package dates models calendar days and inclusive day ranges.
package dates

import (
	"sort"
	"time"

	"cloud.google.com/go/civil"

	"github.com/rohankatakam/dropdays/internal/errors"
)

// Layout is the textual form of a Day.
const Layout = "2006-01-02"

// Day is a calendar date with no time component.
type Day = civil.Date

// ParseDay parses a YYYY-MM-DD date. Out-of-range months and days are
// reported as validation errors.
func ParseDay(s string) (Day, error) {
	d, err := civil.ParseDate(s)
	if err != nil {
		return Day{}, errors.WrapValidation(err, "invalid date %q (want %s)", s, Layout)
	}
	return d, nil
}

// Of truncates t to its calendar date in t's own location.
func Of(t time.Time) Day {
	return civil.DateOf(t)
}

// Range is an inclusive range of calendar days. A Range with End before
// Start, or with an invalid end such as the zero Range, is empty.
type Range struct {
	Start Day
	End   Day
}

// NewRange validates and builds a range. An end before start is rejected;
// use the zero Range for an intentionally empty one.
func NewRange(start, end Day) (Range, error) {
	if !start.IsValid() || !end.IsValid() {
		return Range{}, errors.ValidationErrorf("invalid date range %s..%s", start, end)
	}
	if end.Before(start) {
		return Range{}, errors.ValidationErrorf("end date %s is before start date %s", end, start)
	}
	return Range{Start: start, End: end}, nil
}

// ParseRange parses both ends and validates the result.
func ParseRange(start, end string) (Range, error) {
	s, err := ParseDay(start)
	if err != nil {
		return Range{}, err
	}
	e, err := ParseDay(end)
	if err != nil {
		return Range{}, err
	}
	return NewRange(s, e)
}

// Len returns the number of days in the range.
func (r Range) Len() int {
	if !r.Start.IsValid() || !r.End.IsValid() || r.End.Before(r.Start) {
		return 0
	}
	return r.End.DaysSince(r.Start) + 1
}

// Contains reports whether d falls within the range.
func (r Range) Contains(d Day) bool {
	return r.Len() > 0 && !d.Before(r.Start) && !d.After(r.End)
}

// Days enumerates the range in ascending order.
func (r Range) Days() []Day {
	n := r.Len()
	days := make([]Day, 0, n)
	for i := 0; i < n; i++ {
		days = append(days, r.Start.AddDays(i))
	}
	return days
}

func (r Range) String() string {
	return r.Start.String() + ".." + r.End.String()
}

// Sort orders days ascending in place.
func Sort(days []Day) {
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
}

// Strings renders days in their textual form.
func Strings(days []Day) []string {
	out := make([]string, 0, len(days))
	for _, d := range days {
		out = append(out, d.String())
	}
	return out
}
