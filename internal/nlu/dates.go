package nlu

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultDueHour is used when a date is given without a time of day.
const DefaultDueHour = 10

var monthNames = map[string]time.Month{
	"jan": time.January, "january": time.January,
	"feb": time.February, "february": time.February,
	"mar": time.March, "march": time.March,
	"apr": time.April, "april": time.April,
	"may": time.May,
	"jun": time.June, "june": time.June,
	"jul": time.July, "july": time.July,
	"aug": time.August, "august": time.August,
	"sep": time.September, "sept": time.September, "september": time.September,
	"oct": time.October, "october": time.October,
	"nov": time.November, "november": time.November,
	"dec": time.December, "december": time.December,
}

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tues": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thur": time.Thursday, "thurs": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

var numberWords = map[string]int{
	"a": 1, "an": 1, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10, "eleven": 11, "twelve": 12,
}

const (
	monthPattern   = `(jan|january|feb|february|mar|march|apr|april|may|jun|june|jul|july|aug|august|sep|sept|september|oct|october|nov|november|dec|december)`
	weekdayPattern = `(sunday|sun|monday|mon|tuesday|tues|tue|wednesday|wed|thursday|thurs|thur|thu|friday|fri|saturday|sat)`
	countPattern   = `(\d{1,3}|a|an|one|two|three|four|five|six|seven|eight|nine|ten|eleven|twelve)`
)

var (
	dayMonthRegex    = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)?\s+(?:of\s+)?` + monthPattern + `\b\.?(?:,?\s*(\d{4}))?`)
	monthDayRegex    = regexp.MustCompile(`(?i)\b` + monthPattern + `\.?\s+(\d{1,2})(?:st|nd|rd|th)?\b(?:,?\s*(\d{4}))?`)
	isoDateRegex     = regexp.MustCompile(`\b(\d{4})-(\d{2})-(\d{2})\b`)
	numericDateRegex = regexp.MustCompile(`\b(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2,4}))?\b`)
	dayAfterRegex    = regexp.MustCompile(`(?i)\bday after tomorrow\b`)
	todayRegex       = regexp.MustCompile(`(?i)\btoday\b`)
	tomorrowRegex    = regexp.MustCompile(`(?i)\b(tomorrow|tmrw|tmr)\b`)
	inDaysRegex      = regexp.MustCompile(`(?i)\bin\s+` + countPattern + `\s+days?\b`)
	inWeeksRegex     = regexp.MustCompile(`(?i)\bin\s+` + countPattern + `\s+weeks?\b`)
	onWeekdayRegex   = regexp.MustCompile(`(?i)\b(?:next|on|this|coming|by)\s+` + weekdayPattern + `\b`)

	bareWeekdayRegex = regexp.MustCompile(`(?i)\b` + weekdayPattern + `\b`)
	nextWeekRegex    = regexp.MustCompile(`(?i)\bnext\s+week\b`)
	inHoursRegex     = regexp.MustCompile(`(?i)\bin\s+` + countPattern + `\s+(hours?|hrs?)\b`)
	hinglishRegex    = regexp.MustCompile(`(?i)\b(aaj|kal|parso|parson)\b`)
	eveningRegex     = regexp.MustCompile(`(?i)\b(tonight|this evening|aaj raat|aaj shaam)\b`)

	meridiemTimeRegex = regexp.MustCompile(`(?i)\b(?:at\s+|by\s+|@\s*)?(\d{1,2})(?:[:.](\d{2}))?\s*(am\b|pm\b|a\.m\.|p\.m\.)`)
	clockTimeRegex    = regexp.MustCompile(`(?i)\b(?:at\s+|by\s+|@\s*)?([01]?\d|2[0-3]):([0-5]\d)\b`)
	atHourRegex       = regexp.MustCompile(`(?i)\b(?:at|by)\s+(\d{1,2})\b(?:\s*(?:o'?clock|baje))?`)
	noonRegex         = regexp.MustCompile(`(?i)\b(?:at\s+)?(noon|midday|morning|afternoon|evening)\b`)
	bajeRegex         = regexp.MustCompile(`(?i)\b(\d{1,2})\s*baje\b`)
)

// DateMatch is a resolved due date and the text spans that expressed it.
type DateMatch struct {
	When  time.Time
	Spans [][2]int
}

// ResolveDue finds a due date in text relative to ref. The strict grammar
// accepts explicit dates, today, tomorrow, day after tomorrow, next/on/by a
// weekday and "in N days". permissive adds bare weekdays, "next week", "in N
// hours", aaj/kal/parso, tonight/this evening and a bare time of day.
// Phrases such as "soon" or "next month" resolve to nothing.
func ResolveDue(text string, ref time.Time, permissive bool) (DateMatch, bool) {
	var (
		m             DateMatch
		day           time.Time
		hasDay        bool
		explicitClock bool
	)
	loc := ref.Location()
	today := time.Date(ref.Year(), ref.Month(), ref.Day(), 0, 0, 0, 0, loc)

	record := func(span []int) {
		m.Spans = append(m.Spans, [2]int{span[0], span[1]})
	}

	if permissive {
		if s := inHoursRegex.FindStringSubmatchIndex(text); s != nil {
			n := parseCount(text[s[2]:s[3]])
			if n > 0 {
				record(s[:2])
				m.When = ref.Add(time.Duration(n) * time.Hour).Truncate(time.Minute)
				return m, true
			}
		}
	}

	switch {
	case matchExplicit(text, today, &day, record):
		hasDay = true
	case findDayAfter(text, record):
		day, hasDay = today.AddDate(0, 0, 2), true
	case findSpan(tomorrowRegex, text, record):
		day, hasDay = today.AddDate(0, 0, 1), true
	case findSpan(todayRegex, text, record):
		day, hasDay = today, true
	default:
		if s := inDaysRegex.FindStringSubmatchIndex(text); s != nil {
			if n := parseCount(text[s[2]:s[3]]); n > 0 {
				record(s[:2])
				day, hasDay = today.AddDate(0, 0, n), true
				break
			}
		}
		if s := inWeeksRegex.FindStringSubmatchIndex(text); s != nil {
			if n := parseCount(text[s[2]:s[3]]); n > 0 {
				record(s[:2])
				day, hasDay = today.AddDate(0, 0, 7*n), true
				break
			}
		}
		if s := onWeekdayRegex.FindStringSubmatchIndex(text); s != nil {
			record(s[:2])
			day, hasDay = nextWeekday(today, weekdayNames[strings.ToLower(text[s[2]:s[3]])]), true
			break
		}
		if !permissive {
			break
		}
		if s := nextWeekRegex.FindStringIndex(text); s != nil {
			record(s)
			day, hasDay = today.AddDate(0, 0, 7), true
			break
		}
		if s := eveningRegex.FindStringIndex(text); s != nil {
			record(s)
			day, hasDay = today, true
			if !hasClock(text) {
				m.When = time.Date(today.Year(), today.Month(), today.Day(), 19, 0, 0, 0, loc)
				return m, true
			}
			break
		}
		if s := hinglishRegex.FindStringSubmatchIndex(text); s != nil {
			record(s[:2])
			switch strings.ToLower(text[s[2]:s[3]]) {
			case "aaj":
				day = today
			case "kal":
				day = today.AddDate(0, 0, 1)
			default:
				day = today.AddDate(0, 0, 2)
			}
			hasDay = true
			break
		}
		if s := bareWeekdayRegex.FindStringSubmatchIndex(text); s != nil {
			record(s[:2])
			day, hasDay = nextWeekday(today, weekdayNames[strings.ToLower(text[s[2]:s[3]])]), true
		}
	}

	hour, minute, clockSpan, ok := findClock(text)
	if ok {
		explicitClock = true
	}

	switch {
	case hasDay && explicitClock:
		record(clockSpan)
		m.When = time.Date(day.Year(), day.Month(), day.Day(), hour, minute, 0, 0, loc)
	case hasDay:
		m.When = time.Date(day.Year(), day.Month(), day.Day(), DefaultDueHour, 0, 0, 0, loc)
	case permissive && explicitClock:
		record(clockSpan)
		m.When = time.Date(today.Year(), today.Month(), today.Day(), hour, minute, 0, 0, loc)
		if !m.When.After(ref) {
			m.When = m.When.AddDate(0, 0, 1)
		}
	default:
		return DateMatch{}, false
	}
	return m, true
}

func matchExplicit(text string, today time.Time, day *time.Time, record func([]int)) bool {
	if s := isoDateRegex.FindStringSubmatchIndex(text); s != nil {
		y, _ := strconv.Atoi(text[s[2]:s[3]])
		mo, _ := strconv.Atoi(text[s[4]:s[5]])
		d, _ := strconv.Atoi(text[s[6]:s[7]])
		if t, ok := makeDate(y, mo, d, today.Location()); ok {
			record(s[:2])
			*day = t
			return true
		}
	}
	if s := dayMonthRegex.FindStringSubmatchIndex(text); s != nil {
		d, _ := strconv.Atoi(text[s[2]:s[3]])
		mo := int(monthNames[strings.ToLower(text[s[4]:s[5]])])
		if t, ok := resolveYear(text, s, 6, d, mo, today); ok {
			record(s[:2])
			*day = t
			return true
		}
	}
	if s := monthDayRegex.FindStringSubmatchIndex(text); s != nil {
		mo := int(monthNames[strings.ToLower(text[s[2]:s[3]])])
		d, _ := strconv.Atoi(text[s[4]:s[5]])
		if t, ok := resolveYear(text, s, 6, d, mo, today); ok {
			record(s[:2])
			*day = t
			return true
		}
	}
	if s := numericDateRegex.FindStringSubmatchIndex(text); s != nil {
		d, _ := strconv.Atoi(text[s[2]:s[3]])
		mo, _ := strconv.Atoi(text[s[4]:s[5]])
		if t, ok := resolveYear(text, s, 6, d, mo, today); ok {
			record(s[:2])
			*day = t
			return true
		}
	}
	return false
}

// resolveYear builds the date using the year group at index g of s when
// present. Without a year a date already past this year rolls to next year.
func resolveYear(text string, s []int, g, d, mo int, today time.Time) (time.Time, bool) {
	if s[g] >= 0 {
		y, _ := strconv.Atoi(text[s[g]:s[g+1]])
		if y < 100 {
			y += 2000
		}
		return makeDate(y, mo, d, today.Location())
	}
	t, ok := makeDate(today.Year(), mo, d, today.Location())
	if !ok {
		return t, false
	}
	if t.Before(today) {
		t, ok = makeDate(today.Year()+1, mo, d, today.Location())
	}
	return t, ok
}

func makeDate(y, mo, d int, loc *time.Location) (time.Time, bool) {
	if mo < 1 || mo > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(mo), d, 0, 0, 0, 0, loc)
	if t.Day() != d {
		return time.Time{}, false
	}
	return t, true
}

func findDayAfter(text string, record func([]int)) bool {
	if s := dayAfterRegex.FindStringIndex(text); s != nil {
		record(s)
		return true
	}
	return false
}

func findSpan(re *regexp.Regexp, text string, record func([]int)) bool {
	if s := re.FindStringIndex(text); s != nil {
		record(s)
		return true
	}
	return false
}

// nextWeekday returns the first day strictly after today falling on wd.
func nextWeekday(today time.Time, wd time.Weekday) time.Time {
	delta := (int(wd) - int(today.Weekday()) + 7) % 7
	if delta == 0 {
		delta = 7
	}
	return today.AddDate(0, 0, delta)
}

func hasClock(text string) bool {
	_, _, _, ok := findClock(text)
	return ok
}

// findClock extracts a time of day. Bare "at N" with N from 1 to 7 is read as
// afternoon.
func findClock(text string) (int, int, []int, bool) {
	if s := meridiemTimeRegex.FindStringSubmatchIndex(text); s != nil {
		h, _ := strconv.Atoi(text[s[2]:s[3]])
		mi := 0
		if s[4] >= 0 {
			mi, _ = strconv.Atoi(text[s[4]:s[5]])
		}
		if h < 1 || h > 12 || mi > 59 {
			return 0, 0, nil, false
		}
		pm := strings.HasPrefix(strings.ToLower(text[s[6]:s[7]]), "p")
		if pm && h != 12 {
			h += 12
		}
		if !pm && h == 12 {
			h = 0
		}
		return h, mi, s[:2], true
	}
	if s := clockTimeRegex.FindStringSubmatchIndex(text); s != nil {
		h, _ := strconv.Atoi(text[s[2]:s[3]])
		mi, _ := strconv.Atoi(text[s[4]:s[5]])
		return h, mi, s[:2], true
	}
	if s := bajeRegex.FindStringSubmatchIndex(text); s != nil {
		h, _ := strconv.Atoi(text[s[2]:s[3]])
		if h >= 1 && h <= 12 {
			if h <= 7 {
				h += 12
			}
			return h, 0, s[:2], true
		}
	}
	if s := atHourRegex.FindStringSubmatchIndex(text); s != nil {
		h, _ := strconv.Atoi(text[s[2]:s[3]])
		if h >= 1 && h <= 23 {
			if h <= 7 {
				h += 12
			}
			return h, 0, s[:2], true
		}
	}
	if s := noonRegex.FindStringSubmatchIndex(text); s != nil {
		var h int
		switch strings.ToLower(text[s[2]:s[3]]) {
		case "noon", "midday":
			h = 12
		case "morning":
			h = 10
		case "afternoon":
			h = 15
		default:
			h = 18
		}
		return h, 0, s[:2], true
	}
	return 0, 0, nil, false
}

func parseCount(s string) int {
	s = strings.ToLower(s)
	if n, ok := numberWords[s]; ok {
		return n
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
