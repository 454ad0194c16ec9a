// Package dateutil normalizes the loose date and time phrases found in mail
// and chat into calendar-ready values.
package dateutil

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	DateLayout    = "2006-01-02"
	DefaultClock  = "09:00:00"
	latestEndTime = "23:59:00"
)

var (
	isoDateRe   = regexp.MustCompile(`^(\d{4})-(\d{1,2})-(\d{1,2})`)
	slashDateRe = regexp.MustCompile(`^(\d{1,2})[/.-](\d{1,2})(?:[/.-](\d{2,4}))?$`)
	clockRe     = regexp.MustCompile(`(?i)^(\d{1,2})(?:[:.](\d{2}))?(?::(\d{2}))?\s*(am|pm)?$`)

	weekdays = map[string]time.Weekday{
		"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday,
		"wednesday": time.Wednesday, "thursday": time.Thursday, "friday": time.Friday,
		"saturday": time.Saturday,
	}
)

// Standardize converts s into YYYY-MM-DD, resolving relative phrases against
// ref. The boolean is false when s is not a recognizable date.
func Standardize(s string, ref time.Time) (string, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", false
	}

	switch s {
	case "today", "tonight":
		return ref.Format(DateLayout), true
	case "tomorrow":
		return ref.AddDate(0, 0, 1).Format(DateLayout), true
	case "yesterday":
		return ref.AddDate(0, 0, -1).Format(DateLayout), true
	}

	next := false
	name := s
	if rest, ok := strings.CutPrefix(s, "next "); ok {
		next = true
		name = rest
	} else if rest, ok := strings.CutPrefix(s, "this "); ok {
		name = rest
	}
	if wd, ok := weekdays[name]; ok {
		diff := (int(wd) - int(ref.Weekday()) + 7) % 7
		if diff == 0 {
			diff = 7
		}
		// "next" always skips the upcoming occurrence, even on the same weekday.
		if next {
			diff += 7
		}
		return ref.AddDate(0, 0, diff).Format(DateLayout), true
	}

	if m := isoDateRe.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		d, _ := strconv.Atoi(m[3])
		return build(y, mo, d, ref.Location())
	}

	if m := slashDateRe.FindStringSubmatch(s); m != nil {
		a, _ := strconv.Atoi(m[1])
		b, _ := strconv.Atoi(m[2])
		month, day := a, b
		// Day-first when the first field cannot be a month.
		if a > 12 {
			month, day = b, a
		}
		year := ref.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		return build(year, month, day, ref.Location())
	}

	if t, err := time.ParseInLocation(time.RFC3339, s, ref.Location()); err == nil {
		return t.Format(DateLayout), true
	}
	for _, layout := range []string{"January 2, 2006", "Jan 2, 2006", "January 2", "Jan 2", "2 January 2006", "2 Jan 2006"} {
		if t, err := time.ParseInLocation(layout, s, ref.Location()); err == nil {
			if !strings.Contains(layout, "2006") {
				t = t.AddDate(ref.Year()-t.Year(), 0, 0)
			}
			return t.Format(DateLayout), true
		}
	}
	return "", false
}

func build(y, mo, d int, loc *time.Location) (string, bool) {
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return "", false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, loc)
	// Reject overflow such as 02/31.
	if t.Day() != d {
		return "", false
	}
	return t.Format(DateLayout), true
}

// ClockTime converts "3pm", "3:30 PM", "15:00" or "15.30" into HH:MM:SS.
// Unparseable input yields DefaultClock.
func ClockTime(s string) string {
	s = strings.TrimSpace(s)
	m := clockRe.FindStringSubmatch(s)
	if m == nil {
		return DefaultClock
	}
	h, _ := strconv.Atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute, _ = strconv.Atoi(m[2])
	}
	sec := 0
	if m[3] != "" {
		sec, _ = strconv.Atoi(m[3])
	}
	switch strings.ToLower(m[4]) {
	case "pm":
		if h < 12 {
			h += 12
		}
	case "am":
		if h == 12 {
			h = 0
		}
	}
	if h > 23 || minute > 59 || sec > 59 {
		return DefaultClock
	}
	return fmt.Sprintf("%02d:%02d:%02d", h, minute, sec)
}

// EndClockTime returns start plus one hour, capped at 23:59:00.
func EndClockTime(start string) string {
	t, err := time.Parse("15:04:05", start)
	if err != nil {
		t, _ = time.Parse("15:04:05", DefaultClock)
	}
	if t.Hour() >= 23 {
		return latestEndTime
	}
	return t.Add(time.Hour).Format("15:04:05")
}

// SameDay reports whether a and b fall on the same calendar day in loc.
func SameDay(a, b time.Time, loc *time.Location) bool {
	a, b = a.In(loc), b.In(loc)
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}
