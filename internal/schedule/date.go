package schedule

import (
	"regexp"
	"strings"
	"time"
)

// Ukrainian genitive month names as they appear in schedule posts
// ("графік на 23 жовтня").
var monthNames = map[string]time.Month{
	"січня":     time.January,
	"лютого":    time.February,
	"березня":   time.March,
	"квітня":    time.April,
	"травня":    time.May,
	"червня":    time.June,
	"липня":     time.July,
	"серпня":    time.August,
	"вересня":   time.September,
	"жовтня":    time.October,
	"листопада": time.November,
	"грудня":    time.December,
}

var dateRe = regexp.MustCompile(`(?i)(\d{1,2})\s+(січня|лютого|березня|квітня|травня|червня|липня|серпня|вересня|жовтня|листопада|грудня)`)

// ExtractDate finds the "<day> <month-name>" anchor in post text and resolves
// it to a concrete date in now's location, picking the nearest plausible year:
// a month more than 6 behind the current one is assumed to be next year.
func ExtractDate(text string, now time.Time) (time.Time, bool) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day := atoiSafe(m[1])
	month, ok := monthNames[strings.ToLower(m[2])]
	if !ok || day < 1 || day > 31 {
		return time.Time{}, false
	}
	year := now.Year()
	if int(month) < int(now.Month())-6 {
		year++
	}
	return time.Date(year, month, day, 0, 0, 0, 0, now.Location()), true
}

func atoiSafe(s string) int {
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}
