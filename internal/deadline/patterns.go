package deadline

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

const (
	monthGroup = `(?P<month>jan(?:uary)?|feb(?:ruary)?|mar(?:ch)?|apr(?:il)?|may|june?|july?|aug(?:ust)?|sep(?:t(?:ember)?)?|oct(?:ober)?|nov(?:ember)?|dec(?:ember)?)\b\.?`

	clockGroup = `(?:\b(?P<hour>\d{1,2})(?:[:.](?P<minute>[0-5]\d))?\s*(?P<ampm>[ap]\.?m\b\.?)|\b(?P<hour24>[01]?\d|2[0-3]):(?P<minute24>[0-5]\d)\b)`

	// optional trailing time after a date, e.g. "16 Feb, 5pm" or "tomorrow at 17:30"
	clockSuffix = `(?:\s*(?:,|\bat\b|@|\bby\b)?\s*` + clockGroup + `)?`

	// time written before a date, e.g. "2 pm on 10 Jan"
	clockPrefix = clockGroup + `\s*,?\s+(?:on\s+)?(?:the\s+)?`
)

var months = map[string]time.Month{
	"jan": time.January, "feb": time.February, "mar": time.March, "apr": time.April,
	"may": time.May, "jun": time.June, "jul": time.July, "aug": time.August,
	"sep": time.September, "oct": time.October, "nov": time.November, "dec": time.December,
}

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "monday": time.Monday, "tuesday": time.Tuesday, "wednesday": time.Wednesday,
	"thursday": time.Thursday, "friday": time.Friday, "saturday": time.Saturday,
}

var counts = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
}

// match is one regexp hit with its named groups
type match struct {
	text   string
	start  int
	end    int
	groups map[string]string
}

func (m match) group(name string) string {
	return m.groups[name]
}

type resolver func(m match, ref time.Time) (time.Time, bool)

type pattern struct {
	name    string
	re      *regexp.Regexp
	resolve resolver
}

// patterns are matched against lowercased text
var patterns = []pattern{
	{
		name:    "day-month",
		re:      regexp.MustCompile(`\b(?P<day>\d{1,2})(?:st|nd|rd|th)?(?:\s+of\s+|\s*-\s*|\s+)` + monthGroup + `(?:(?:,?\s+|-)(?P<year>\d{4})\b)?` + clockSuffix),
		resolve: resolveNamedMonth,
	},
	{
		name:    "month-day",
		re:      regexp.MustCompile(`\b` + monthGroup + `\s*(?P<day>\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(?P<year>\d{4})\b)?` + clockSuffix),
		resolve: resolveNamedMonth,
	},
	{
		name:    "clock-day-month",
		re:      regexp.MustCompile(clockPrefix + `(?P<day>\d{1,2})(?:st|nd|rd|th)?(?:\s+of\s+|\s*-\s*|\s+)` + monthGroup + `(?:(?:,?\s+|-)(?P<year>\d{4})\b)?`),
		resolve: resolveNamedMonth,
	},
	{
		name:    "clock-month-day",
		re:      regexp.MustCompile(clockPrefix + monthGroup + `\s*(?P<day>\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s+(?P<year>\d{4})\b)?`),
		resolve: resolveNamedMonth,
	},
	{
		name:    "iso",
		re:      regexp.MustCompile(`\b(?P<iso>\d{4}-\d{2}-\d{2}(?:[t ]\d{2}:\d{2}(?::\d{2})?(?:z|[+-]\d{2}:?\d{2})?)?)\b`),
		resolve: resolveISO,
	},
	{
		name:    "numeric",
		re:      regexp.MustCompile(`\b(?P<numeric>\d{1,2}[/.]\d{1,2}[/.](?:\d{4}|\d{2}))\b` + clockSuffix),
		resolve: resolveNumeric,
	},
	{
		name:    "relative-day",
		re:      regexp.MustCompile(`\b(?P<rel>today|tomorrow)\b` + clockSuffix),
		resolve: resolveRelativeDay,
	},
	{
		name:    "weekday",
		re:      regexp.MustCompile(`\b(?:(?P<modifier>next|this)\s+)?(?P<weekday>monday|tuesday|wednesday|thursday|friday|saturday|sunday)\b` + clockSuffix),
		resolve: resolveWeekday,
	},
	{
		name:    "offset",
		re:      regexp.MustCompile(`\bin\s+(?P<count>\d{1,3}|an?|one|two|three|four|five|six|seven|eight|nine|ten)\s+(?P<unit>minute|hour|day|week)s?\b`),
		resolve: resolveOffset,
	},
	{
		name:    "clock",
		re:      regexp.MustCompile(clockGroup),
		resolve: resolveClock,
	},
}

// findAll returns every hit of every pattern, in pattern order
func findAll(p pattern, text string) []match {
	names := p.re.SubexpNames()
	var out []match
	for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
		m := match{
			text:   text[loc[0]:loc[1]],
			start:  loc[0],
			end:    loc[1],
			groups: make(map[string]string),
		}
		for i, name := range names {
			if name == "" || loc[2*i] < 0 {
				continue
			}
			m.groups[name] = text[loc[2*i]:loc[2*i+1]]
		}
		out = append(out, m)
	}
	return out
}

func resolveNamedMonth(m match, ref time.Time) (time.Time, bool) {
	month, ok := months[m.group("month")[:3]]
	if !ok {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(m.group("day"))
	if err != nil {
		return time.Time{}, false
	}

	year := ref.Year()
	explicitYear := m.group("year") != ""
	if explicitYear {
		if year, err = strconv.Atoi(m.group("year")); err != nil {
			return time.Time{}, false
		}
	}

	hour, minute, ok := clock(m)
	if !ok {
		return time.Time{}, false
	}
	t, ok := civil(year, month, day, hour, minute, ref.Location())
	if !ok {
		return time.Time{}, false
	}
	if !explicitYear && t.Before(ref) {
		t, ok = civil(year+1, month, day, hour, minute, ref.Location())
	}
	return t, ok
}

func resolveISO(m match, ref time.Time) (time.Time, bool) {
	return parseDate(strings.ToUpper(m.group("iso")), ref.Location())
}

func resolveNumeric(m match, ref time.Time) (time.Time, bool) {
	date, ok := parseDate(strings.ReplaceAll(m.group("numeric"), ".", "/"), ref.Location())
	if !ok {
		return time.Time{}, false
	}
	hour, minute, ok := clock(m)
	if !ok {
		return time.Time{}, false
	}
	return time.Date(date.Year(), date.Month(), date.Day(), hour, minute, 0, 0, ref.Location()), true
}

func resolveRelativeDay(m match, ref time.Time) (time.Time, bool) {
	days := 0
	if m.group("rel") == "tomorrow" {
		days = 1
	}
	return onDay(m, ref, days)
}

func resolveWeekday(m match, ref time.Time) (time.Time, bool) {
	wd, ok := weekdays[m.group("weekday")]
	if !ok {
		return time.Time{}, false
	}
	days := (int(wd) - int(ref.Weekday()) + 7) % 7
	if days == 0 && m.group("modifier") != "this" {
		days = 7
	}
	t, ok := onDay(m, ref, days)
	if ok && days == 0 && t.Before(ref) {
		// "this friday 9am" said on friday afternoon is next week
		return onDay(m, ref, 7)
	}
	return t, ok
}

func resolveOffset(m match, ref time.Time) (time.Time, bool) {
	n, ok := counts[m.group("count")]
	if !ok {
		var err error
		if n, err = strconv.Atoi(m.group("count")); err != nil {
			return time.Time{}, false
		}
	}
	switch m.group("unit") {
	case "minute":
		return ref.Add(time.Duration(n) * time.Minute), true
	case "hour":
		return ref.Add(time.Duration(n) * time.Hour), true
	case "day":
		return ref.AddDate(0, 0, n), true
	case "week":
		return ref.AddDate(0, 0, 7*n), true
	}
	return time.Time{}, false
}

// resolveClock places a bare time of day on the reference date, or the next
// day when that time has already passed
func resolveClock(m match, ref time.Time) (time.Time, bool) {
	if m.group("hour") == "" && m.group("hour24") == "" {
		return time.Time{}, false
	}
	hour, minute, ok := clock(m)
	if !ok {
		return time.Time{}, false
	}
	t, ok := civil(ref.Year(), ref.Month(), ref.Day(), hour, minute, ref.Location())
	if ok && t.Before(ref) {
		next := ref.AddDate(0, 0, 1)
		return civil(next.Year(), next.Month(), next.Day(), hour, minute, ref.Location())
	}
	return t, ok
}

// onDay shifts the reference date by days, keeping its clock unless the match names a time
func onDay(m match, ref time.Time, days int) (time.Time, bool) {
	day := ref.AddDate(0, 0, days)
	if m.group("hour") == "" && m.group("hour24") == "" {
		return day, true
	}
	hour, minute, ok := clock(m)
	if !ok {
		return time.Time{}, false
	}
	return civil(day.Year(), day.Month(), day.Day(), hour, minute, ref.Location())
}

// clock reads the optional time-of-day groups; midnight when absent
func clock(m match) (int, int, bool) {
	if h := m.group("hour"); h != "" {
		hour, err := strconv.Atoi(h)
		if err != nil || hour < 1 || hour > 12 {
			return 0, 0, false
		}
		minute := 0
		if mm := m.group("minute"); mm != "" {
			minute, _ = strconv.Atoi(mm)
		}
		hour %= 12
		if strings.HasPrefix(m.group("ampm"), "p") {
			hour += 12
		}
		return hour, minute, true
	}
	if h := m.group("hour24"); h != "" {
		hour, err := strconv.Atoi(h)
		if err != nil || hour > 23 {
			return 0, 0, false
		}
		minute, _ := strconv.Atoi(m.group("minute24"))
		return hour, minute, true
	}
	return 0, 0, true
}

// civil builds a wall-clock time, rejecting values time.Date would normalize
func civil(year int, month time.Month, day, hour, minute int, loc *time.Location) (time.Time, bool) {
	if day < 1 || day > 31 {
		return time.Time{}, false
	}
	t := time.Date(year, month, day, hour, minute, 0, 0, loc)
	if t.Day() != day || t.Month() != month {
		return time.Time{}, false
	}
	return t, true
}

// parseDate resolves numeric spans with day-before-month preference
func parseDate(s string, loc *time.Location) (t time.Time, ok bool) {
	defer func() {
		if recover() != nil {
			t, ok = time.Time{}, false
		}
	}()

	parsed, err := dateparse.ParseIn(s, loc,
		dateparse.PreferMonthFirst(false),
		dateparse.RetryAmbiguousDateWithSwap(true))
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
