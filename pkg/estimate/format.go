package estimate

import (
	"fmt"
	"time"
)

// FormatDate renders a date as "Month DD, YYYY" in UTC. The zero time
// renders as the empty string.
func FormatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("January 02, 2006")
}

// Age renders the elapsed calendar time between created and now, e.g.
// "2 years and 3 months", "5 months", "12 days". Future or zero dates
// render as "0 days".
func Age(created, now time.Time) string {
	if created.IsZero() || created.After(now) {
		return "0 days"
	}
	years, months, days := calendarDiff(created.UTC(), now.UTC())
	switch {
	case years > 0:
		s := pluralize(years, "year")
		if months > 0 {
			s += " and " + pluralize(months, "month")
		}
		return s
	case months > 0:
		return pluralize(months, "month")
	default:
		return pluralize(days, "day")
	}
}

// calendarDiff decomposes now-created into calendar years, months, and
// days, borrowing from the month preceding now when the day underflows.
func calendarDiff(created, now time.Time) (years, months, days int) {
	years = now.Year() - created.Year()
	months = int(now.Month()) - int(created.Month())
	days = now.Day() - created.Day()
	if days < 0 {
		months--
		days += time.Date(now.Year(), now.Month(), 0, 0, 0, 0, 0, time.UTC).Day()
		if days < 0 {
			// created sits on a day the previous month doesn't have
			days = 0
		}
	}
	if months < 0 {
		years--
		months += 12
	}
	return years, months, days
}

func pluralize(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
