package scraper

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// "1 сентября 2025"
	ruDatePattern = regexp.MustCompile(`\b\d{1,2}\s+[А-Яа-яЁё]+\s+\d{4}\b`)
	// "10:00"
	clockPattern = regexp.MustCompile(`\b\d{2}:\d{2}\b`)
)

// ruMonths maps genitive Russian month names to months.
var ruMonths = map[string]time.Month{
	"января":   time.January,
	"февраля":  time.February,
	"марта":    time.March,
	"апреля":   time.April,
	"мая":      time.May,
	"июня":     time.June,
	"июля":     time.July,
	"августа":  time.August,
	"сентября": time.September,
	"октября":  time.October,
	"ноября":   time.November,
	"декабря":  time.December,
}

// FindRussianDate returns the first "<day> <month> <year>" token in text, or "".
func FindRussianDate(text string) string {
	return ruDatePattern.FindString(text)
}

// ParseRussianDate parses "1 сентября 2025" into midnight of that day in loc.
func ParseRussianDate(s string, loc *time.Location) (time.Time, error) {
	parts := strings.Fields(s)
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("cannot parse date from %q", s)
	}

	day, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid day in %q: %w", s, err)
	}
	month, ok := ruMonths[strings.ToLower(parts[1])]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown month %q in %q", parts[1], s)
	}
	year, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid year in %q: %w", s, err)
	}

	t := time.Date(year, month, day, 0, 0, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, fmt.Errorf("day %d out of range in %q", day, s)
	}
	return t, nil
}

// FindClockTimes returns every HH:MM token in text, in order.
func FindClockTimes(text string) []string {
	return clockPattern.FindAllString(text, -1)
}

// CombineDateClock places an HH:MM wall clock time on day in loc.
func CombineDateClock(day time.Time, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", day.Format("2006-01-02")+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid time %q: %w", clock, err)
	}
	return t, nil
}
